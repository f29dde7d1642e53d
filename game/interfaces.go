package game

import (
	"context"
	"time"

	"github.com/lishuceo/draw-and-guess/domain"
)

// RoomStore is the persistence substrate. Update is atomic per call and last-write-wins per
// field. Subscribers receive the full room after every change, and exists=false once it is
// deleted.
type RoomStore interface {
	Create(ctx context.Context, room domain.Room) (string, error)
	Get(ctx context.Context, id string) (domain.Room, error)
	Update(ctx context.Context, id string, patch domain.RoomPatch) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]domain.Room, error)
	ListWhere(ctx context.Context, status domain.Status) ([]domain.Room, error)
	Subscribe(id string, fn func(room domain.Room, exists bool)) (unsubscribe func())
	SubscribeWhere(status domain.Status, fn func(rooms []domain.Room)) (unsubscribe func())
}

type NetworkSession interface {
	Close(errCode string)
	Write(data []byte) error
	Read() (data []byte, binary bool, err error)
	Ping() error
}

type UniqueIdGenerator interface {
	Generate() string
}

type PeriodicTickerChannelCreator interface {
	Create(duration time.Duration) (ticks <-chan time.Time, stop func())
}

type EventPublisher interface {
	Publish(ctx context.Context, e domain.Event) error
}

type PasscodeHasher interface {
	Hash(passcode string) (string, error)
	Compare(hash, passcode string) (bool, error)
}
