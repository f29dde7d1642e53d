package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/lishuceo/draw-and-guess/auth"
	"github.com/lishuceo/draw-and-guess/config"
	"github.com/lishuceo/draw-and-guess/crypto"
	"github.com/lishuceo/draw-and-guess/events"
	"github.com/lishuceo/draw-and-guess/game"
	"github.com/lishuceo/draw-and-guess/logger"
	"github.com/lishuceo/draw-and-guess/memstore"
	"github.com/lishuceo/draw-and-guess/migrations"
	"github.com/lishuceo/draw-and-guess/reaper"
	"github.com/lishuceo/draw-and-guess/redisstore"
	"github.com/lishuceo/draw-and-guess/storage"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// CreateServer builds the engine with the origin allow-list. Requests without an Origin header
// come from non-browser clients and are let through.
func CreateServer(allowedOrigins []string) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.SetTrustedProxies([]string{"127.0.0.1", "10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16"})
	r.GET("/health", func(ctx *gin.Context) { ctx.String(200, "healthy") })

	r.Use(func(ctx *gin.Context) {
		origin := ctx.Request.Header.Get("Origin")

		if origin == "" || slices.Contains(allowedOrigins, origin) {
			ctx.Next()
			return
		}
		ctx.String(http.StatusForbidden, "forbidden origin")
		ctx.Abort()
	})

	r.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowCredentials: true,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders: []string{
			"Content-Type",
			"Authorization",
			"X-Admin-Token",
			"Upgrade",
			"Connection",
			"Sec-WebSocket-Key",
			"Sec-WebSocket-Version",
			"Sec-WebSocket-Extensions",
			"Sec-WebSocket-Protocol",
		},
	}))

	return r
}

type authRoutes interface {
	GuestHandler(ctx *gin.Context)
	LogoutHandler(ctx *gin.Context)
	RequireAuthMiddleware(trollTime time.Duration) gin.HandlerFunc
}

func RegisterRoutes(r *gin.Engine, authHandler authRoutes, gameHandler *game.GameHandler, sweeper *reaper.Reaper, adminToken string) {
	{
		authGroup := r.Group("/auth")
		authGroup.POST("/guest", authHandler.GuestHandler)
		authGroup.POST("/logout", authHandler.LogoutHandler)
	}

	{
		gameGroup := r.Group("/game")
		gameGroup.Use(authHandler.RequireAuthMiddleware(time.Second * 2))

		gameGroup.POST("/rooms", gameHandler.CreateRoomHandler)
		gameGroup.GET("/rooms", gameHandler.ListRoomsHandler)
		gameGroup.GET("/rooms/:roomid/ws", gameHandler.JoinRoomHandler)
		gameGroup.GET("/lobby/ws", gameHandler.LobbyHandler)
		gameGroup.GET("/schema", gameHandler.SchemaHandler)
	}

	r.POST("/admin/cleanup", sweeper.ManualCleanupHandler(adminToken))
}

// openStore selects the RoomStore driver. The returned func releases its connections.
func openStore(ctx context.Context, cfg config.StoreConfig) (game.RoomStore, func(), error) {
	switch cfg.Driver {
	case "postgres":
		if err := migrations.Migrate(cfg.PostgresURL); err != nil {
			return nil, nil, err
		}
		repo, err := storage.NewPostgresRepo(ctx, cfg.PostgresURL)
		if err != nil {
			return nil, nil, err
		}
		return repo, repo.Close, nil

	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		store, err := redisstore.New(ctx, client)
		if err != nil {
			client.Close()
			return nil, nil, err
		}
		return store, func() {
			store.Close()
			client.Close()
		}, nil

	case "memory", "":
		return memstore.New(), func() {}, nil

	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

type publisher interface {
	game.EventPublisher
	Close() error
}

func openEvents(cfg config.KafkaConfig) publisher {
	if len(cfg.Brokers) == 0 {
		return events.NewLogPublisher(log.Logger)
	}
	return events.NewKafkaPublisher(cfg.Brokers, cfg.Topic)
}

func gameConfig(cfg config.GameConfig) game.Config {
	gc := game.DefaultConfig()
	gc.RoundSeconds = cfg.RoundSeconds
	gc.ChoiceSeconds = cfg.ChoiceSeconds
	gc.StrokeCapacity = cfg.StrokeCapacity
	gc.ChatCapacity = cfg.ChatCapacity
	gc.PlayerTimeout = cfg.PlayerTimeout
	gc.SimplifyTolerance = cfg.SimplifyTolerance
	return gc
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	logger.Setup(cfg.Log.Level, cfg.Log.Format)
	if cfg.Log.Format == "json" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, os.Interrupt)
	defer stop()

	// Dependencies
	startCtx, cancelStart := context.WithTimeout(ctx, 30*time.Second)
	store, closeStore, err := openStore(startCtx, cfg.Store)
	cancelStart()
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.Store.Driver).Msg("failed to open room store")
	}
	defer closeStore()

	eventPublisher := openEvents(cfg.Kafka)
	defer eventPublisher.Close()

	idGen := game.NewIdGen()
	tickerGen := game.NewTickerGen()
	machine := game.NewMachine(gameConfig(cfg.Game), game.DefaultWordBank(), game.NewRandomSource(time.Now().UnixNano()), idGen)
	lobby := game.NewLobby(machine, store, eventPublisher, tickerGen)

	lobbyCtx, stopLobby := context.WithCancel(context.Background())
	lobbyStarted := make(chan struct{})
	go lobby.LobbyActor(lobbyCtx, lobbyStarted)
	<-lobbyStarted

	sweeper := reaper.New(store, eventPublisher, reaper.Policy{
		HeartbeatTimeout: cfg.Reaper.HeartbeatTimeout,
		CreationGrace:    cfg.Reaper.CreationGrace,
	}, tickerGen)
	go sweeper.Run(ctx, cfg.Reaper.Interval)

	passcodeHasher := crypto.NewArgon2idHasher(3, 1024*64, 32, 16, 1)
	tokenManager := crypto.NewJWTManager(cfg.JWT.Key, cfg.JWT.MaxAge)
	authHandler := auth.NewAuthHandler(tokenManager, idGen, cfg.JWT.MaxAge)
	gameHandler := game.NewGameHandler(lobby, store, machine, passcodeHasher, eventPublisher, cfg.Server.AllowedOrigins)

	r := CreateServer(cfg.Server.AllowedOrigins)
	RegisterRoutes(r, authHandler, gameHandler, sweeper, cfg.Admin.Token)

	srv := &http.Server{Addr: cfg.Server.Addr, Handler: r}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server stopped")
		}
	}()
	log.Info().Str("addr", cfg.Server.Addr).Str("store", cfg.Store.Driver).Msg("server started")

	<-ctx.Done()
	log.Info().Msg("SIGTERM or SIGINT received, shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("http shutdown incomplete")
	}
	stopLobby()
	log.Info().Msg("shutting down now")
}
