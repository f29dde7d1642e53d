package storage_test

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/lishuceo/draw-and-guess/domain"
	"github.com/lishuceo/draw-and-guess/migrations"
	"github.com/lishuceo/draw-and-guess/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

var repo *storage.PostgresRepo

func TestMain(m *testing.M) {
	ctx := context.Background()

	postgresContainer, err := postgres.Run(ctx,
		"postgres:16-alpine3.22",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testusername"),
		postgres.WithPassword("testpassword"),
		testcontainers.WithWaitStrategy(wait.ForLog("database system is ready to accept connections").WithOccurrence(2).WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		panic(err)
	}

	connString, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		panic(err)
	}

	if err := migrations.Migrate(connString); err != nil {
		panic(err)
	}

	repo, err = storage.NewPostgresRepo(ctx, connString)
	if err != nil {
		panic(err)
	}

	code := m.Run()

	repo.Close()
	postgresContainer.Terminate(ctx)
	os.Exit(code)
}

func newRoom(name string, createdAt int64) domain.Room {
	return domain.Room{
		Name:       name,
		HostID:     "host",
		Players:    []domain.Player{{ID: "host", Name: "Hana", IsHost: true}},
		MaxPlayers: 4,
		MaxRounds:  3,
		Status:     domain.StatusWaiting,
		Difficulty: domain.DifficultyEasy,
		CreatedAt:  createdAt,
	}
}

func TestPostgresRepo(t *testing.T) {
	ctx := context.Background()
	var id string

	t.Run("Create", func(t *testing.T) {
		var err error
		id, err = repo.Create(ctx, newRoom("crud", 1))
		require.NoError(t, err)
		assert.NotEmpty(t, id)
	})

	t.Run("Create_Duplicate", func(t *testing.T) {
		room := newRoom("dup", 1)
		room.ID = id
		_, err := repo.Create(ctx, room)
		assert.ErrorIs(t, err, domain.ErrRaceLost)
	})

	t.Run("Get", func(t *testing.T) {
		room, err := repo.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, id, room.ID)
		assert.Equal(t, "crud", room.Name)
		assert.Equal(t, domain.StatusWaiting, room.Status)
		require.Len(t, room.Players, 1)
		assert.True(t, room.Players[0].IsHost)
	})

	t.Run("Update", func(t *testing.T) {
		status := domain.StatusPlaying
		timeLeft := 42
		require.NoError(t, repo.Update(ctx, id, domain.RoomPatch{Status: &status, TimeLeft: &timeLeft}))

		room, err := repo.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusPlaying, room.Status)
		assert.Equal(t, 42, room.TimeLeft)
		assert.Equal(t, "crud", room.Name, "fields outside the patch are kept")

		var column string
		err = repo.GetPool().QueryRow(ctx, "SELECT status FROM rooms WHERE id = $1", id).Scan(&column)
		require.NoError(t, err)
		assert.Equal(t, "playing", column, "status column follows the document")
	})

	t.Run("Update_NotFound", func(t *testing.T) {
		timeLeft := 1
		err := repo.Update(ctx, "missing", domain.RoomPatch{TimeLeft: &timeLeft})
		assert.ErrorIs(t, err, domain.ErrRoomNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, repo.Delete(ctx, id))
		_, err := repo.Get(ctx, id)
		assert.ErrorIs(t, err, domain.ErrRoomNotFound)
		assert.ErrorIs(t, repo.Delete(ctx, id), domain.ErrRoomNotFound)
	})

	t.Run("Get_Canceled", func(t *testing.T) {
		canceled, cancel := context.WithCancel(ctx)
		cancel()
		_, err := repo.Get(canceled, "whatever")
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestPostgresRepo_ConcurrentUpdatesKeepDistinctFields(t *testing.T) {
	ctx := context.Background()
	id, err := repo.Create(ctx, newRoom("race", 2))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Delete(ctx, id) })

	var wg sync.WaitGroup
	for i := range 10 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			timeLeft := i
			assert.NoError(t, repo.Update(ctx, id, domain.RoomPatch{TimeLeft: &timeLeft}))
		}()
		go func() {
			defer wg.Done()
			round := 100 + i
			assert.NoError(t, repo.Update(ctx, id, domain.RoomPatch{CurrentRound: &round}))
		}()
	}
	wg.Wait()

	room, err := repo.Get(ctx, id)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, room.CurrentRound, 100)
	assert.Less(t, room.TimeLeft, 10)
	assert.Equal(t, "race", room.Name)
}

func TestPostgresRepo_ListWhere(t *testing.T) {
	ctx := context.Background()
	first, err := repo.Create(ctx, newRoom("first", 10))
	require.NoError(t, err)
	second, err := repo.Create(ctx, newRoom("second", 11))
	require.NoError(t, err)
	playing := newRoom("playing", 12)
	playing.Status = domain.StatusPlaying
	third, err := repo.Create(ctx, playing)
	require.NoError(t, err)
	t.Cleanup(func() {
		for _, id := range []string{first, second, third} {
			repo.Delete(ctx, id)
		}
	})

	waiting, err := repo.ListWhere(ctx, domain.StatusWaiting)
	require.NoError(t, err)
	var names []string
	for _, r := range waiting {
		names = append(names, r.Name)
	}
	assert.Equal(t, []string{"first", "second"}, names)

	all, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestPostgresRepo_Subscribe(t *testing.T) {
	ctx := context.Background()
	id, err := repo.Create(ctx, newRoom("feed", 20))
	require.NoError(t, err)

	type change struct {
		room   domain.Room
		exists bool
	}
	changes := make(chan change, 16)
	unsubscribe := repo.Subscribe(id, func(room domain.Room, exists bool) {
		changes <- change{room, exists}
	})
	defer unsubscribe()

	waitFor := func(what string, pred func(change) bool) {
		t.Helper()
		deadline := time.After(5 * time.Second)
		for {
			select {
			case c := <-changes:
				if pred(c) {
					return
				}
			case <-deadline:
				t.Fatalf("no notification for %s", what)
			}
		}
	}

	timeLeft := 7
	require.NoError(t, repo.Update(ctx, id, domain.RoomPatch{TimeLeft: &timeLeft}))
	waitFor("update", func(c change) bool { return c.exists && c.room.TimeLeft == 7 })

	require.NoError(t, repo.Delete(ctx, id))
	waitFor("delete", func(c change) bool { return !c.exists && c.room.ID == id })
}

func TestPostgresRepo_SubscribeWhere(t *testing.T) {
	ctx := context.Background()
	listings := make(chan []domain.Room, 16)
	unsubscribe := repo.SubscribeWhere(domain.StatusWaiting, func(rooms []domain.Room) {
		listings <- rooms
	})
	defer unsubscribe()

	id, err := repo.Create(ctx, newRoom("lobby", 30))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Delete(ctx, id) })

	waitFor := func(pred func([]domain.Room) bool) {
		t.Helper()
		deadline := time.After(5 * time.Second)
		for {
			select {
			case rooms := <-listings:
				if pred(rooms) {
					return
				}
			case <-deadline:
				t.Fatal("listing never matched")
			}
		}
	}
	contains := func(rooms []domain.Room) bool {
		for _, r := range rooms {
			if r.ID == id {
				return true
			}
		}
		return false
	}

	waitFor(contains)

	status := domain.StatusPlaying
	require.NoError(t, repo.Update(ctx, id, domain.RoomPatch{Status: &status}))
	waitFor(func(rooms []domain.Room) bool { return !contains(rooms) })
}
