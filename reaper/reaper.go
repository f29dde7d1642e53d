// Package reaper deletes rooms whose host has gone silent. It works against the RoomStore only;
// live room actors learn about a deletion through their own store subscription.
package reaper

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lishuceo/draw-and-guess/domain"
	"github.com/lishuceo/draw-and-guess/game"
	"github.com/rs/zerolog/log"
)

const (
	DefaultHeartbeatTimeout = 2 * time.Minute
	DefaultCreationGrace    = 10 * time.Minute
	DefaultInterval         = 5 * time.Minute
)

const (
	ReasonHostMissing = "host-missing"
	ReasonHeartbeat   = "host-heartbeat"
	ReasonRoomAge     = "room-age"
)

// Store is the subset of game.RoomStore the sweep needs.
type Store interface {
	List(ctx context.Context) ([]domain.Room, error)
	Delete(ctx context.Context, id string) error
}

type Policy struct {
	HeartbeatTimeout time.Duration
	CreationGrace    time.Duration
}

func DefaultPolicy() Policy {
	return Policy{HeartbeatTimeout: DefaultHeartbeatTimeout, CreationGrace: DefaultCreationGrace}
}

type RoomDetail struct {
	ID            string        `json:"id"`
	HostID        string        `json:"hostId"`
	PlayerCount   int           `json:"playerCount"`
	Status        domain.Status `json:"status"`
	HostHeartbeat *int64        `json:"hostHeartbeat,omitempty"`
	ShouldDelete  bool          `json:"shouldDelete"`
	Reason        string        `json:"reason"`
}

type Results struct {
	TotalRooms   int          `json:"totalRooms"`
	DeletedRooms int          `json:"deletedRooms"`
	ActiveRooms  int          `json:"activeRooms"`
	RoomDetails  []RoomDetail `json:"roomDetails"`
}

// Evaluate applies the staleness policy to one room. A host with a recorded heartbeat is judged
// by it; a host that never sent one is judged by the room's age.
func (p Policy) Evaluate(room domain.Room, now time.Time) RoomDetail {
	d := RoomDetail{
		ID:          room.ID,
		HostID:      room.HostID,
		PlayerCount: len(room.Players),
		Status:      room.Status,
	}

	host, ok := room.Host()
	if !ok {
		d.ShouldDelete = true
		d.Reason = ReasonHostMissing
		return d
	}

	nowMs := now.UnixMilli()
	if host.LastHeartbeat > 0 {
		hb := host.LastHeartbeat
		d.HostHeartbeat = &hb
		elapsed := time.Duration(nowMs-hb) * time.Millisecond
		d.Reason = fmt.Sprintf("%s: %ds ago", ReasonHeartbeat, int(elapsed.Seconds()))
		d.ShouldDelete = elapsed > p.HeartbeatTimeout
		return d
	}

	age := time.Duration(nowMs-room.CreatedAt) * time.Millisecond
	d.Reason = fmt.Sprintf("%s: %ds", ReasonRoomAge, int(age.Seconds()))
	d.ShouldDelete = age > p.CreationGrace
	return d
}

type Reaper struct {
	store         Store
	events        game.EventPublisher
	policy        Policy
	tickerCreator game.PeriodicTickerChannelCreator
	clock         func() time.Time
}

func New(store Store, events game.EventPublisher, policy Policy, tickerCreator game.PeriodicTickerChannelCreator) *Reaper {
	return &Reaper{
		store:         store,
		events:        events,
		policy:        policy,
		tickerCreator: tickerCreator,
		clock:         time.Now,
	}
}

// Sweep evaluates every stored room and deletes the stale ones. A room that disappears between
// List and Delete still counts as deleted. Any other delete failure aborts the sweep.
func (r *Reaper) Sweep(ctx context.Context) (Results, error) {
	rooms, err := r.store.List(ctx)
	if err != nil {
		return Results{}, err
	}

	now := r.clock()
	results := Results{TotalRooms: len(rooms), RoomDetails: make([]RoomDetail, 0, len(rooms))}
	for _, room := range rooms {
		d := r.policy.Evaluate(room, now)
		if d.ShouldDelete {
			if err := r.store.Delete(ctx, room.ID); err != nil && !errors.Is(err, domain.ErrRoomNotFound) {
				return results, fmt.Errorf("delete room %s: %w", room.ID, err)
			}
			r.publish(ctx, room, d.Reason)
			results.DeletedRooms++
		} else {
			results.ActiveRooms++
		}
		results.RoomDetails = append(results.RoomDetails, d)
	}
	return results, nil
}

func (r *Reaper) publish(ctx context.Context, room domain.Room, reason string) {
	if r.events == nil {
		return
	}
	e := domain.Event{
		Type:        domain.EventRoomDeleted,
		RoomID:      room.ID,
		PlayerCount: len(room.Players),
		Reason:      reason,
		Timestamp:   r.clock().UnixMilli(),
	}
	if err := r.events.Publish(ctx, e); err != nil {
		log.Warn().Err(err).Str("room", room.ID).Msg("failed to publish room.deleted")
	}
}

// Run sweeps on every tick until ctx is cancelled.
func (r *Reaper) Run(ctx context.Context, interval time.Duration) {
	ticks, stop := r.tickerCreator.Create(interval)
	defer stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticks:
			results, err := r.Sweep(ctx)
			if err != nil {
				log.Error().Err(err).Msg("room cleanup failed")
				continue
			}
			if results.DeletedRooms == 0 {
				log.Info().Int("total", results.TotalRooms).Msg("no rooms to clean up")
				continue
			}
			log.Info().
				Int("total", results.TotalRooms).
				Int("deleted", results.DeletedRooms).
				Int("active", results.ActiveRooms).
				Msg("inactive rooms deleted")
		}
	}
}
