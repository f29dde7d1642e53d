// Package feed fans store change notifications out to subscribers.
package feed

import "sync"

// Hub delivers values published under a key to that key's subscribers, and every value to
// the SubscribeAll subscribers. Handlers run on the publisher's goroutine and must not block.
type Hub[T any] struct {
	mu   sync.RWMutex
	next uint64
	subs map[string]map[uint64]func(T)
	all  map[uint64]func(string, T)
}

func NewHub[T any]() *Hub[T] {
	return &Hub[T]{
		subs: make(map[string]map[uint64]func(T)),
		all:  make(map[uint64]func(string, T)),
	}
}

func (h *Hub[T]) Subscribe(key string, fn func(T)) (unsubscribe func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.next++
	id := h.next
	if h.subs[key] == nil {
		h.subs[key] = make(map[uint64]func(T))
	}
	h.subs[key][id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.subs[key], id)
			if len(h.subs[key]) == 0 {
				delete(h.subs, key)
			}
		})
	}
}

func (h *Hub[T]) SubscribeAll(fn func(key string, v T)) (unsubscribe func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.next++
	id := h.next
	h.all[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.all, id)
		})
	}
}

func (h *Hub[T]) Publish(key string, v T) {
	h.mu.RLock()
	keyed := make([]func(T), 0, len(h.subs[key]))
	for _, fn := range h.subs[key] {
		keyed = append(keyed, fn)
	}
	all := make([]func(string, T), 0, len(h.all))
	for _, fn := range h.all {
		all = append(all, fn)
	}
	h.mu.RUnlock()

	for _, fn := range keyed {
		fn(v)
	}
	for _, fn := range all {
		fn(key, v)
	}
}

// HasSubscribers reports whether anyone listens to key.
func (h *Hub[T]) HasSubscribers(key string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[key]) > 0
}
