// Package memstore is an in-process RoomStore.
package memstore

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/lishuceo/draw-and-guess/domain"
	"github.com/lishuceo/draw-and-guess/feed"
)

type Store struct {
	// writeMu serializes writers including their notifications, so subscribers observe
	// changes in commit order. mu guards rooms and is never held while publishing.
	writeMu sync.Mutex
	mu      sync.RWMutex
	rooms   map[string]domain.Room
	feed    *feed.RoomFeed
}

func New() *Store {
	s := &Store{rooms: make(map[string]domain.Room)}
	s.feed = feed.NewRoomFeed(func(status domain.Status) ([]domain.Room, error) {
		return s.ListWhere(context.Background(), status)
	})
	return s
}

// Create stores room under a fresh id unless room.ID is already set.
func (s *Store) Create(ctx context.Context, room domain.Room) (string, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if room.ID == "" {
		room.ID = uuid.NewString()
	}
	stored := room.Clone()

	s.mu.Lock()
	s.rooms[room.ID] = stored
	s.mu.Unlock()

	s.feed.Publish(feed.Change{Room: stored.Clone(), Exists: true})
	return room.ID, nil
}

func (s *Store) Get(ctx context.Context, id string) (domain.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	room, ok := s.rooms[id]
	if !ok {
		return domain.Room{}, domain.ErrRoomNotFound
	}
	return room.Clone(), nil
}

func (s *Store) Update(ctx context.Context, id string, patch domain.RoomPatch) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	room, ok := s.rooms[id]
	if !ok {
		s.mu.Unlock()
		return domain.ErrRoomNotFound
	}
	patch.Apply(&room)
	s.rooms[id] = room
	snapshot := room.Clone()
	s.mu.Unlock()

	s.feed.Publish(feed.Change{Room: snapshot, Exists: true})
	return nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	_, ok := s.rooms[id]
	delete(s.rooms, id)
	s.mu.Unlock()

	if !ok {
		return domain.ErrRoomNotFound
	}
	s.feed.Deleted(id)
	return nil
}

// List returns every room ordered by creation time.
func (s *Store) List(ctx context.Context) ([]domain.Room, error) {
	return s.collect(func(domain.Room) bool { return true }), nil
}

func (s *Store) ListWhere(ctx context.Context, status domain.Status) ([]domain.Room, error) {
	return s.collect(func(r domain.Room) bool { return r.Status == status }), nil
}

func (s *Store) collect(keep func(domain.Room) bool) []domain.Room {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Room, 0, len(s.rooms))
	for _, r := range s.rooms {
		if keep(r) {
			out = append(out, r.Clone())
		}
	}
	slices.SortFunc(out, func(a, b domain.Room) int {
		if c := cmp.Compare(a.CreatedAt, b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}

func (s *Store) Subscribe(id string, fn func(room domain.Room, exists bool)) func() {
	return s.feed.Subscribe(id, fn)
}

func (s *Store) SubscribeWhere(status domain.Status, fn func(rooms []domain.Room)) func() {
	return s.feed.SubscribeWhere(status, fn)
}
