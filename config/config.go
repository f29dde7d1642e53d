package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

type Config struct {
	Server ServerConfig `mapstructure:"server"`
	Log    LogConfig    `mapstructure:"log"`
	Store  StoreConfig  `mapstructure:"store"`
	Kafka  KafkaConfig  `mapstructure:"kafka"`
	JWT    JWTConfig    `mapstructure:"jwt"`
	Admin  AdminConfig  `mapstructure:"admin"`
	Reaper ReaperConfig `mapstructure:"reaper"`
	Game   GameConfig   `mapstructure:"game"`
}

type ServerConfig struct {
	Addr           string   `mapstructure:"addr" validate:"required"`
	AllowedOrigins []string `mapstructure:"allowedorigins" validate:"required,min=1"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=console json"`
}

type StoreConfig struct {
	Driver        string `mapstructure:"driver" validate:"oneof=memory postgres redis"`
	PostgresURL   string `mapstructure:"postgresurl" validate:"required_if=Driver postgres"`
	RedisAddr     string `mapstructure:"redisaddr" validate:"required_if=Driver redis"`
	RedisPassword string `mapstructure:"redispassword"`
	RedisDB       int    `mapstructure:"redisdb"`
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type JWTConfig struct {
	Key    string        `mapstructure:"key" validate:"required,min=16"`
	MaxAge time.Duration `mapstructure:"maxage"`
}

type AdminConfig struct {
	Token string `mapstructure:"token"`
}

type ReaperConfig struct {
	Interval         time.Duration `mapstructure:"interval" validate:"gt=0"`
	HeartbeatTimeout time.Duration `mapstructure:"heartbeattimeout" validate:"gt=0"`
	CreationGrace    time.Duration `mapstructure:"creationgrace" validate:"gt=0"`
}

type GameConfig struct {
	RoundSeconds      int           `mapstructure:"roundseconds" validate:"min=10"`
	ChoiceSeconds     int           `mapstructure:"choiceseconds" validate:"min=1"`
	StrokeCapacity    int           `mapstructure:"strokecapacity" validate:"min=1"`
	ChatCapacity      int           `mapstructure:"chatcapacity" validate:"min=1"`
	PlayerTimeout     time.Duration `mapstructure:"playertimeout" validate:"gt=0"`
	SimplifyTolerance float64       `mapstructure:"simplifytolerance" validate:"gte=0"`
}

var validate = validator.New()

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":5000")
	v.SetDefault("server.allowedorigins", []string{"http://localhost:3000"})

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	v.SetDefault("store.driver", "memory")
	v.SetDefault("store.postgresurl", "")
	v.SetDefault("store.redisaddr", "")
	v.SetDefault("store.redispassword", "")
	v.SetDefault("store.redisdb", 0)

	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", "draw-and-guess.events")

	v.SetDefault("jwt.key", "")
	v.SetDefault("jwt.maxage", 7*24*time.Hour)

	v.SetDefault("admin.token", "")

	v.SetDefault("reaper.interval", 5*time.Minute)
	v.SetDefault("reaper.heartbeattimeout", 2*time.Minute)
	v.SetDefault("reaper.creationgrace", 10*time.Minute)

	v.SetDefault("game.roundseconds", 60)
	v.SetDefault("game.choiceseconds", 15)
	v.SetDefault("game.strokecapacity", 20)
	v.SetDefault("game.chatcapacity", 100)
	v.SetDefault("game.playertimeout", 2*time.Minute)
	v.SetDefault("game.simplifytolerance", 2.0)
}

// Load reads config.yaml from the given directories (the working directory when none are
// given), then applies DRAWGUESS_ environment overrides such as DRAWGUESS_STORE_DRIVER.
// A missing file is not an error.
func Load(paths ...string) (Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if len(paths) == 0 {
		paths = []string{".", "./config"}
	}
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	setDefaults(v)

	v.SetEnvPrefix("DRAWGUESS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := validate.Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
