package feed

import (
	"sync"

	"github.com/lishuceo/draw-and-guess/domain"
)

// Change is one room notification. Exists is false once the room is deleted.
type Change struct {
	Room   domain.Room
	Exists bool
}

// RoomFeed adapts a Hub of room changes to the RoomStore subscription methods.
type RoomFeed struct {
	hub  *Hub[Change]
	list func(status domain.Status) ([]domain.Room, error)
}

// NewRoomFeed takes the lister used to rebuild a status listing after each change.
func NewRoomFeed(list func(status domain.Status) ([]domain.Room, error)) *RoomFeed {
	return &RoomFeed{hub: NewHub[Change](), list: list}
}

func (f *RoomFeed) Publish(c Change) {
	f.hub.Publish(c.Room.ID, c)
}

func (f *RoomFeed) Deleted(id string) {
	f.hub.Publish(id, Change{Room: domain.Room{ID: id}})
}

func (f *RoomFeed) Subscribe(id string, fn func(room domain.Room, exists bool)) func() {
	return f.hub.Subscribe(id, func(c Change) {
		fn(c.Room.Clone(), c.Exists)
	})
}

// SubscribeWhere calls fn with the full listing whenever a room enters, changes within or
// leaves status. Changes to rooms outside the listing are ignored. The lister must not be
// called with store locks held by the publisher.
func (f *RoomFeed) SubscribeWhere(status domain.Status, fn func(rooms []domain.Room)) func() {
	var mu sync.Mutex
	member := map[string]bool{}
	if rooms, err := f.list(status); err == nil {
		for _, r := range rooms {
			member[r.ID] = true
		}
	}
	return f.hub.SubscribeAll(func(id string, c Change) {
		mu.Lock()
		defer mu.Unlock()

		inside := c.Exists && c.Room.Status == status
		if !inside && !member[id] {
			return
		}
		if inside {
			member[id] = true
		} else {
			delete(member, id)
		}
		rooms, err := f.list(status)
		if err != nil {
			return
		}
		fn(rooms)
	})
}
