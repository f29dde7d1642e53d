// Package redisstore is a RoomStore backed by Redis. Rooms are JSON strings under room:{id},
// indexed by sorted sets scored by creation time. Writes are optimistic WATCH/MULTI
// transactions that also PUBLISH the room id on room-changes.
//
// As with the PostgreSQL store, a room must be served by a single process at a time: connections
// for one room need sticky routing when several processes share the same Redis.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lishuceo/draw-and-guess/domain"
	"github.com/lishuceo/draw-and-guess/feed"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	changesChannel = "room-changes"
	allRoomsKey    = "rooms:all"
	maxTxAttempts  = 8
)

func roomKey(id string) string {
	return "room:" + id
}

func statusKey(status domain.Status) string {
	return "rooms:status:" + string(status)
}

type Store struct {
	client *redis.Client
	pubsub *redis.PubSub
	feed   *feed.RoomFeed

	done      chan struct{}
	closeOnce sync.Once
}

// New subscribes to the change channel before returning, so writes made afterwards are always
// delivered to local subscribers.
func New(ctx context.Context, client *redis.Client) (*Store, error) {
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.UnexpectedStoreError, err)
	}

	pubsub := client.Subscribe(ctx, changesChannel)
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("%w: %w", domain.UnexpectedStoreError, err)
	}

	s := &Store{client: client, pubsub: pubsub, done: make(chan struct{})}
	s.feed = feed.NewRoomFeed(func(status domain.Status) ([]domain.Room, error) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.ListWhere(ctx, status)
	})

	go s.listen()
	return s, nil
}

// Close stops the change listener. The client is owned by the caller.
func (s *Store) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.pubsub.Close()
		<-s.done
	})
	return err
}

func wrapErr(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %w", domain.UnexpectedStoreError, err)
}

// transact runs fn under WATCH on keys, retrying when another client touched them first.
func (s *Store) transact(ctx context.Context, fn func(tx *redis.Tx) error, keys ...string) error {
	for range maxTxAttempts {
		err := s.client.Watch(ctx, fn, keys...)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return domain.ErrRaceLost
}

func (s *Store) Create(ctx context.Context, room domain.Room) (string, error) {
	if room.ID == "" {
		room.ID = uuid.NewString()
	}
	doc, err := json.Marshal(room)
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.UnexpectedStoreError, err)
	}
	key := roomKey(room.ID)

	err = s.transact(ctx, func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if n > 0 {
			return domain.ErrRaceLost
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			score := float64(room.CreatedAt)
			pipe.Set(ctx, key, doc, 0)
			pipe.ZAdd(ctx, allRoomsKey, redis.Z{Score: score, Member: room.ID})
			pipe.ZAdd(ctx, statusKey(room.Status), redis.Z{Score: score, Member: room.ID})
			pipe.Publish(ctx, changesChannel, room.ID)
			return nil
		})
		return err
	}, key)
	if err != nil {
		if errors.Is(err, domain.ErrRaceLost) {
			return "", err
		}
		return "", wrapErr(err)
	}
	return room.ID, nil
}

func (s *Store) Get(ctx context.Context, id string) (domain.Room, error) {
	return getRoom(ctx, s.client, id)
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func getRoom(ctx context.Context, c getter, id string) (domain.Room, error) {
	doc, err := c.Get(ctx, roomKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.Room{}, domain.ErrRoomNotFound
		}
		return domain.Room{}, wrapErr(err)
	}
	var room domain.Room
	if err := json.Unmarshal(doc, &room); err != nil {
		return domain.Room{}, fmt.Errorf("%w: %w", domain.UnexpectedStoreError, err)
	}
	room.ID = id
	return room, nil
}

func (s *Store) Update(ctx context.Context, id string, patch domain.RoomPatch) error {
	key := roomKey(id)
	err := s.transact(ctx, func(tx *redis.Tx) error {
		room, err := getRoom(ctx, tx, id)
		if err != nil {
			return err
		}
		oldStatus := room.Status
		patch.Apply(&room)
		room.ID = id

		doc, err := json.Marshal(room)
		if err != nil {
			return fmt.Errorf("%w: %w", domain.UnexpectedStoreError, err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, doc, 0)
			if oldStatus != room.Status {
				pipe.ZRem(ctx, statusKey(oldStatus), id)
				pipe.ZAdd(ctx, statusKey(room.Status), redis.Z{Score: float64(room.CreatedAt), Member: id})
			}
			pipe.Publish(ctx, changesChannel, id)
			return nil
		})
		return err
	}, key)
	return classify(err)
}

func (s *Store) Delete(ctx context.Context, id string) error {
	key := roomKey(id)
	err := s.transact(ctx, func(tx *redis.Tx) error {
		room, err := getRoom(ctx, tx, id)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, key)
			pipe.ZRem(ctx, allRoomsKey, id)
			pipe.ZRem(ctx, statusKey(room.Status), id)
			pipe.Publish(ctx, changesChannel, id)
			return nil
		})
		return err
	}, key)
	return classify(err)
}

// classify passes domain errors through and wraps everything else.
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, domain.ErrRoomNotFound), errors.Is(err, domain.ErrRaceLost), errors.Is(err, domain.UnexpectedStoreError):
		return err
	default:
		return wrapErr(err)
	}
}

func (s *Store) List(ctx context.Context) ([]domain.Room, error) {
	return s.listIndex(ctx, allRoomsKey)
}

func (s *Store) ListWhere(ctx context.Context, status domain.Status) ([]domain.Room, error) {
	return s.listIndex(ctx, statusKey(status))
}

// listIndex loads the rooms of one sorted-set index in score order. Ids whose document vanished
// between the two reads are skipped.
func (s *Store) listIndex(ctx context.Context, index string) ([]domain.Room, error) {
	ids, err := s.client.ZRange(ctx, index, 0, -1).Result()
	if err != nil {
		return nil, wrapErr(err)
	}
	rooms := []domain.Room{}
	if len(ids) == 0 {
		return rooms, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = roomKey(id)
	}
	docs, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, wrapErr(err)
	}
	for i, d := range docs {
		str, ok := d.(string)
		if !ok {
			continue
		}
		var room domain.Room
		if err := json.Unmarshal([]byte(str), &room); err != nil {
			return nil, fmt.Errorf("%w: %w", domain.UnexpectedStoreError, err)
		}
		room.ID = ids[i]
		rooms = append(rooms, room)
	}
	return rooms, nil
}

func (s *Store) Subscribe(id string, fn func(room domain.Room, exists bool)) func() {
	return s.feed.Subscribe(id, fn)
}

func (s *Store) SubscribeWhere(status domain.Status, fn func(rooms []domain.Room)) func() {
	return s.feed.SubscribeWhere(status, fn)
}

// listen reloads every room announced on the change channel and republishes it locally.
// go-redis reconnects the subscription on its own; the channel closes only on Close.
func (s *Store) listen() {
	defer close(s.done)
	for msg := range s.pubsub.Channel() {
		s.reload(msg.Payload)
	}
}

func (s *Store) reload(id string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	room, err := s.Get(ctx, id)
	switch {
	case errors.Is(err, domain.ErrRoomNotFound):
		s.feed.Deleted(id)
	case err != nil:
		log.Error().Err(err).Str("room", id).Msg("failed to reload notified room")
	default:
		s.feed.Publish(feed.Change{Room: room, Exists: true})
	}
}
