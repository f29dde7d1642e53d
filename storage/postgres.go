// Package storage is the PostgreSQL RoomStore. Each room is one row holding the JSON document,
// with status and creation time copied into indexed columns for listings. Every write sends a
// NOTIFY on room_changes and a listener connection turns those into subscriber callbacks.
//
// Processes sharing a database see each other's listings and deletions, but a room's actor
// only adopts deletions from the feed. Deployments with more than one process must route every
// connection for a room to the same process.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lishuceo/draw-and-guess/domain"
	"github.com/lishuceo/draw-and-guess/feed"
	"github.com/rs/zerolog/log"
)

const (
	notifyChannel   = "room_changes"
	relistenBackoff = time.Second
)

type PostgresRepo struct {
	pool       *pgxpool.Pool
	connString string
	feed       *feed.RoomFeed

	cancel    context.CancelFunc
	done      chan struct{}
	listening chan struct{}
	closeOnce sync.Once
}

// NewPostgresRepo connects to the database and starts the change listener. It returns once the
// listener is subscribed, so writes made afterwards are always delivered.
func NewPostgresRepo(ctx context.Context, connString string) (*PostgresRepo, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: %w", domain.UnexpectedStoreError, err)
	}

	listenCtx, cancel := context.WithCancel(context.Background())
	repo := &PostgresRepo{
		pool:       pool,
		connString: connString,
		cancel:     cancel,
		done:       make(chan struct{}),
		listening:  make(chan struct{}),
	}
	repo.feed = feed.NewRoomFeed(func(status domain.Status) ([]domain.Room, error) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return repo.ListWhere(ctx, status)
	})

	go repo.listen(listenCtx)

	select {
	case <-repo.listening:
		return repo, nil
	case <-ctx.Done():
		repo.Close()
		return nil, ctx.Err()
	}
}

// Close stops the listener and releases the pool.
func (r *PostgresRepo) Close() {
	r.closeOnce.Do(func() {
		r.cancel()
		<-r.done
		r.pool.Close()
	})
}

func wrapErr(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %w", domain.UnexpectedStoreError, err)
}

func (r *PostgresRepo) Create(ctx context.Context, room domain.Room) (string, error) {
	if room.ID == "" {
		room.ID = uuid.NewString()
	}
	doc, err := json.Marshal(room)
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.UnexpectedStoreError, err)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return "", wrapErr(err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, "INSERT INTO rooms(id, status, created_at, doc) VALUES($1, $2, $3, $4)",
		room.ID, string(room.Status), room.CreatedAt, doc)
	if err != nil {
		var pgErr *pgconn.PgError
		// "23505" is the PostgreSQL error code for unique_violation
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return "", domain.ErrRaceLost
		}
		return "", wrapErr(err)
	}
	if err := notify(ctx, tx, room.ID); err != nil {
		return "", err
	}
	if err := tx.Commit(ctx); err != nil {
		return "", wrapErr(err)
	}
	return room.ID, nil
}

func (r *PostgresRepo) Get(ctx context.Context, id string) (domain.Room, error) {
	row := r.pool.QueryRow(ctx, "SELECT doc FROM rooms WHERE id = $1", id)
	return scanRoom(row, id)
}

// Update locks the row, applies the patch to the stored document and writes it back in one
// transaction.
func (r *PostgresRepo) Update(ctx context.Context, id string, patch domain.RoomPatch) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return wrapErr(err)
	}
	defer tx.Rollback(ctx)

	room, err := scanRoom(tx.QueryRow(ctx, "SELECT doc FROM rooms WHERE id = $1 FOR UPDATE", id), id)
	if err != nil {
		return err
	}
	patch.Apply(&room)
	room.ID = id

	doc, err := json.Marshal(room)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.UnexpectedStoreError, err)
	}
	if _, err := tx.Exec(ctx, "UPDATE rooms SET doc = $2, status = $3 WHERE id = $1", id, doc, string(room.Status)); err != nil {
		return wrapErr(err)
	}
	if err := notify(ctx, tx, id); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return wrapErr(err)
	}
	return nil
}

func (r *PostgresRepo) Delete(ctx context.Context, id string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return wrapErr(err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, "DELETE FROM rooms WHERE id = $1", id)
	if err != nil {
		return wrapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrRoomNotFound
	}
	if err := notify(ctx, tx, id); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return wrapErr(err)
	}
	return nil
}

func (r *PostgresRepo) List(ctx context.Context) ([]domain.Room, error) {
	rows, err := r.pool.Query(ctx, "SELECT id, doc FROM rooms ORDER BY created_at, id")
	if err != nil {
		return nil, wrapErr(err)
	}
	return collectRooms(rows)
}

func (r *PostgresRepo) ListWhere(ctx context.Context, status domain.Status) ([]domain.Room, error) {
	rows, err := r.pool.Query(ctx, "SELECT id, doc FROM rooms WHERE status = $1 ORDER BY created_at, id", string(status))
	if err != nil {
		return nil, wrapErr(err)
	}
	return collectRooms(rows)
}

func (r *PostgresRepo) Subscribe(id string, fn func(room domain.Room, exists bool)) func() {
	return r.feed.Subscribe(id, fn)
}

func (r *PostgresRepo) SubscribeWhere(status domain.Status, fn func(rooms []domain.Room)) func() {
	return r.feed.SubscribeWhere(status, fn)
}

func notify(ctx context.Context, tx pgx.Tx, id string) error {
	if _, err := tx.Exec(ctx, "SELECT pg_notify($1, $2)", notifyChannel, id); err != nil {
		return wrapErr(err)
	}
	return nil
}

func scanRoom(row pgx.Row, id string) (domain.Room, error) {
	var doc []byte
	if err := row.Scan(&doc); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
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

func collectRooms(rows pgx.Rows) ([]domain.Room, error) {
	defer rows.Close()

	rooms := []domain.Room{}
	for rows.Next() {
		var id string
		var doc []byte
		if err := rows.Scan(&id, &doc); err != nil {
			return nil, wrapErr(err)
		}
		var room domain.Room
		if err := json.Unmarshal(doc, &room); err != nil {
			return nil, fmt.Errorf("%w: %w", domain.UnexpectedStoreError, err)
		}
		room.ID = id
		rooms = append(rooms, room)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr(err)
	}
	return rooms, nil
}

// listen holds a dedicated connection on LISTEN room_changes and republishes every notified
// room to local subscribers. A dropped connection is re-established after a short pause.
func (r *PostgresRepo) listen(ctx context.Context) {
	defer close(r.done)
	first := true

	for {
		err := r.listenOnce(ctx, func() {
			if first {
				first = false
				close(r.listening)
			}
		})
		if ctx.Err() != nil {
			return
		}
		log.Warn().Err(err).Msg("room change listener dropped, reconnecting")
		select {
		case <-ctx.Done():
			return
		case <-time.After(relistenBackoff):
		}
	}
}

func (r *PostgresRepo) listenOnce(ctx context.Context, ready func()) error {
	conn, err := pgx.Connect(ctx, r.connString)
	if err != nil {
		return err
	}
	defer conn.Close(context.Background())

	if _, err := conn.Exec(ctx, "LISTEN "+notifyChannel); err != nil {
		return err
	}
	ready()

	for {
		n, err := conn.WaitForNotification(ctx)
		if err != nil {
			return err
		}
		r.reload(ctx, n.Payload)
	}
}

func (r *PostgresRepo) reload(ctx context.Context, id string) {
	getCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	room, err := r.Get(getCtx, id)
	switch {
	case errors.Is(err, domain.ErrRoomNotFound):
		r.feed.Deleted(id)
	case err != nil:
		log.Error().Err(err).Str("room", id).Msg("failed to reload notified room")
	default:
		r.feed.Publish(feed.Change{Room: room, Exists: true})
	}
}
