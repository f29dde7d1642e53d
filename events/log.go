package events

import (
	"context"

	"github.com/lishuceo/draw-and-guess/domain"
	"github.com/rs/zerolog"
)

// LogPublisher writes events to the log. It is used when no broker is configured.
type LogPublisher struct {
	logger zerolog.Logger
}

func NewLogPublisher(logger zerolog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger.With().Str("component", "events").Logger()}
}

func (p *LogPublisher) Publish(ctx context.Context, e domain.Event) error {
	ev := p.logger.Info().
		Str("type", string(e.Type)).
		Str("room", e.RoomID).
		Int64("ts", e.Timestamp)
	if e.Round > 0 {
		ev = ev.Int("round", e.Round)
	}
	if e.Word != "" {
		ev = ev.Str("word", e.Word)
	}
	if e.PlayerCount > 0 {
		ev = ev.Int("players", e.PlayerCount)
	}
	if e.Reason != "" {
		ev = ev.Str("reason", e.Reason)
	}
	ev.Msg("event")
	return nil
}

func (p *LogPublisher) Close() error {
	return nil
}
