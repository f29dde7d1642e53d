package game

import (
	"math"
	"testing"
	"time"

	"github.com/lishuceo/draw-and-guess/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.UnixMilli(1_700_000_000_000)

func newTestMachine(rng RandomSource) *Machine {
	bank := NewWordBank(map[domain.Difficulty][]domain.WordEntry{
		domain.DifficultyEasy: {
			{Word: "apple", Category: "fruit"},
			{Word: "cat", Category: "animal"},
			{Word: "sun", Category: "nature"},
		},
	})
	m := NewMachine(DefaultConfig(), bank, rng, &seqIds{})
	m.clock = func() time.Time { return testNow }
	return m
}

func newTestRoom(m *Machine, maxRounds int, ids ...string) domain.Room {
	room := m.NewRoom(RoomSettings{
		Name:       "test",
		MaxPlayers: 4,
		MaxRounds:  maxRounds,
		Difficulty: domain.DifficultyEasy,
	}, domain.Player{ID: ids[0], Name: ids[0]}, "")
	room.ID = "room"
	for _, id := range ids[1:] {
		if err := m.Join(&room, domain.Player{ID: id, Name: id}); err != nil {
			panic(err)
		}
	}
	return room
}

func choiceIndex(room domain.Room, word string) int {
	for i, c := range room.WordChoices {
		if c.Word == word {
			return i
		}
	}
	return -1
}

func scores(room domain.Room) map[string]int {
	out := map[string]int{}
	for _, p := range room.Players {
		out[p.ID] = p.Score
	}
	return out
}

func lastMessage(room domain.Room) domain.ChatMessage {
	return room.ChatMessages[len(room.ChatMessages)-1]
}

func TestMachine_GameScenario(t *testing.T) {
	t.Parallel()
	m := newTestMachine(&fixedRand{})
	room := newTestRoom(m, 2, "A", "B", "C")

	testCases := []struct {
		desc    string
		action  func() error
		wantErr error
		check   func(t *testing.T)
	}{
		{
			desc:    "guest cannot start",
			action:  func() error { return m.Start(&room, "B") },
			wantErr: domain.ErrInvalidAction,
			check: func(t *testing.T) {
				assert.Equal(t, domain.StatusWaiting, room.Status)
			},
		},
		{
			desc:   "host starts",
			action: func() error { return m.Start(&room, "A") },
			check: func(t *testing.T) {
				assert.Equal(t, domain.StatusPlaying, room.Status)
				assert.Equal(t, "A", room.CurrentDrawerID)
				assert.Equal(t, 1, room.CurrentRound)
				assert.Equal(t, 60, room.TimeLeft)
				assert.Equal(t, 15, room.ChoiceTimeLeft)
				assert.Len(t, room.WordChoices, CandidatesCount)
				assert.Empty(t, room.CurrentWord)
			},
		},
		{
			desc:    "host cannot start twice",
			action:  func() error { return m.Start(&room, "A") },
			wantErr: domain.ErrInvalidAction,
		},
		{
			desc:    "guesser cannot choose the word",
			action:  func() error { return m.ChooseWord(&room, "B", 0) },
			wantErr: domain.ErrInvalidAction,
		},
		{
			desc:    "out of range choice",
			action:  func() error { return m.ChooseWord(&room, "A", 3) },
			wantErr: domain.ErrInvalidAction,
		},
		{
			desc:   "drawer chooses apple",
			action: func() error { return m.ChooseWord(&room, "A", choiceIndex(room, "apple")) },
			check: func(t *testing.T) {
				assert.Equal(t, "apple", room.CurrentWord)
				assert.Equal(t, "fruit", room.WordCategory)
				assert.Equal(t, "_____", room.WordHint)
				assert.Equal(t, 5, room.WordLength)
				assert.Equal(t, []string{"apple"}, room.UsedWords)
				assert.Nil(t, room.WordChoices)
				assert.Equal(t, 60, room.TimeLeft)
			},
		},
		{
			desc:   "wrong guess is plain chat",
			action: func() error { return m.SendMessage(&room, "B", "pear") },
			check: func(t *testing.T) {
				msg := lastMessage(room)
				assert.Equal(t, "pear", msg.Text)
				assert.False(t, msg.IsCorrectGuess)
				assert.Equal(t, map[string]int{"A": 0, "B": 0, "C": 0}, scores(room))
			},
		},
		{
			desc:   "B guesses first",
			action: func() error { return m.SendMessage(&room, "B", "APPLE") },
			check: func(t *testing.T) {
				assert.Equal(t, map[string]int{"A": 10, "B": 150, "C": 0}, scores(room))
				assert.Equal(t, []string{"B"}, room.GuessedPlayerIDs)
				assert.Equal(t, domain.StatusPlaying, room.Status)
				msg := lastMessage(room)
				assert.True(t, msg.IsCorrectGuess)
				assert.Equal(t, "B guessed the word!", msg.Text)
				assert.NotContains(t, msg.Text, "apple")
			},
		},
		{
			desc:    "B cannot guess again",
			action:  func() error { return m.SendMessage(&room, "B", "apple") },
			wantErr: domain.ErrInvalidAction,
		},
		{
			desc:    "drawer cannot guess",
			action:  func() error { return m.SendMessage(&room, "A", "apple") },
			wantErr: domain.ErrInvalidAction,
		},
		{
			desc:   "C guesses second and the round ends",
			action: func() error { return m.SendMessage(&room, "C", "  Apple ") },
			check: func(t *testing.T) {
				assert.Equal(t, map[string]int{"A": 20, "B": 150, "C": 130}, scores(room))
				assert.Equal(t, domain.StatusRoundEnd, room.Status)
				assert.Len(t, room.GuessedPlayerIDs, len(room.Players)-1)
			},
		},
		{
			desc:   "guessing after the round is plain chat",
			action: func() error { return m.SendMessage(&room, "C", "apple") },
			check: func(t *testing.T) {
				assert.False(t, lastMessage(room).IsCorrectGuess)
				assert.Equal(t, 130, scores(room)["C"])
			},
		},
		{
			desc:   "next round rotates the drawer",
			action: func() error { return m.NextRound(&room, "A") },
			check: func(t *testing.T) {
				assert.Equal(t, domain.StatusPlaying, room.Status)
				assert.Equal(t, "B", room.CurrentDrawerID)
				assert.Equal(t, 2, room.CurrentRound)
				assert.Empty(t, room.GuessedPlayerIDs)
				assert.Empty(t, room.CurrentWord)
				assert.Equal(t, 0, room.StrokeBuffer.TotalSequence)
			},
		},
		{
			desc: "selection window lapses and a word is picked",
			action: func() error {
				for i := 0; i < 15; i++ {
					m.Tick(&room, testNow)
				}
				return nil
			},
			check: func(t *testing.T) {
				assert.NotEmpty(t, room.CurrentWord)
				assert.NotEqual(t, "apple", room.CurrentWord, "auto pick avoids used words")
				assert.Equal(t, 60, room.TimeLeft)
				assert.Len(t, room.UsedWords, 2)
			},
		},
		{
			desc: "timer runs out",
			action: func() error {
				for i := 0; i < 59; i++ {
					m.Tick(&room, testNow)
				}
				require.Equal(t, domain.StatusPlaying, room.Status)
				require.Equal(t, 1, room.TimeLeft)
				m.Tick(&room, testNow)
				return nil
			},
			check: func(t *testing.T) {
				assert.Equal(t, domain.StatusRoundEnd, room.Status)
				assert.Equal(t, 0, room.TimeLeft)
			},
		},
		{
			desc: "ticks after the round change nothing",
			action: func() error {
				changed, _ := m.Tick(&room, testNow)
				assert.False(t, changed)
				return nil
			},
		},
		{
			desc:   "last round ends the game",
			action: func() error { return m.NextRound(&room, "A") },
			check: func(t *testing.T) {
				assert.Equal(t, domain.StatusGameEnd, room.Status)
				assert.Contains(t, lastMessage(room).Text, "B wins with 150 points")
			},
		},
		{
			desc:   "rematch resets the game",
			action: func() error { return m.Rematch(&room, "A") },
			check: func(t *testing.T) {
				assert.Equal(t, domain.StatusWaiting, room.Status)
				assert.Equal(t, map[string]int{"A": 0, "B": 0, "C": 0}, scores(room))
				assert.Empty(t, room.UsedWords)
				assert.Empty(t, room.CurrentDrawerID)
				assert.Equal(t, 0, room.CurrentRound)
				assert.Len(t, room.ChatMessages, 1)
				assert.Len(t, room.Players, 3)
			},
		},
	}

	for _, tc := range testCases {
		err := tc.action()
		if tc.wantErr != nil {
			assert.ErrorIs(t, err, tc.wantErr, tc.desc)
		} else {
			assert.NoError(t, err, tc.desc)
		}
		if tc.check != nil {
			t.Run(tc.desc, tc.check)
		}
	}
}

func TestMachine_Join(t *testing.T) {
	t.Parallel()
	m := newTestMachine(&fixedRand{})
	room := newTestRoom(m, 1, "A", "B", "C", "D")

	assert.ErrorIs(t, m.Join(&room, domain.Player{ID: "E", Name: "E"}), domain.ErrRoomFull)
	assert.NoError(t, m.Join(&room, domain.Player{ID: "B", Name: "B"}), "rejoin is a reconnect")
	assert.Len(t, room.Players, 4)

	hosts := 0
	for _, p := range room.Players {
		if p.IsHost {
			hosts++
			assert.Equal(t, room.HostID, p.ID)
		}
	}
	assert.Equal(t, 1, hosts)
}

func TestMachine_Leave(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		desc       string
		setup      func(m *Machine, room *domain.Room)
		leaving    string
		wantEmpty  bool
		wantStatus domain.Status
		wantHost   string
	}{
		{
			desc:       "host leaving hands authority to the oldest player",
			leaving:    "A",
			wantStatus: domain.StatusWaiting,
			wantHost:   "B",
		},
		{
			desc: "drawer leaving ends the round",
			setup: func(m *Machine, room *domain.Room) {
				m.Start(room, "A")
				m.ChooseWord(room, "A", 0)
			},
			leaving:    "A",
			wantStatus: domain.StatusRoundEnd,
			wantHost:   "B",
		},
		{
			desc: "last missing guesser leaving ends the round",
			setup: func(m *Machine, room *domain.Room) {
				m.Start(room, "A")
				m.ChooseWord(room, "A", choiceIndex(*room, "apple"))
				m.SendMessage(room, "B", "apple")
			},
			leaving:    "C",
			wantStatus: domain.StatusRoundEnd,
			wantHost:   "A",
		},
		{
			desc: "dropping below two players ends the game",
			setup: func(m *Machine, room *domain.Room) {
				m.Leave(room, "C")
				m.Start(room, "A")
			},
			leaving:    "B",
			wantStatus: domain.StatusGameEnd,
			wantHost:   "A",
		},
		{
			desc: "last player leaving empties the room",
			setup: func(m *Machine, room *domain.Room) {
				m.Leave(room, "B")
				m.Leave(room, "C")
			},
			leaving:   "A",
			wantEmpty: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			t.Parallel()
			m := newTestMachine(&fixedRand{})
			room := newTestRoom(m, 3, "A", "B", "C")
			if tc.setup != nil {
				tc.setup(m, &room)
			}

			empty, err := m.Leave(&room, tc.leaving)
			require.NoError(t, err)
			assert.Equal(t, tc.wantEmpty, empty)
			if tc.wantEmpty {
				assert.Empty(t, room.Players)
				return
			}
			assert.Equal(t, tc.wantStatus, room.Status)
			assert.Equal(t, tc.wantHost, room.HostID)
			host, ok := room.Host()
			require.True(t, ok)
			assert.True(t, host.IsHost)
			assert.NotContains(t, room.GuessedPlayerIDs, tc.leaving)
		})
	}
}

func TestMachine_LeaveUnknownPlayer(t *testing.T) {
	t.Parallel()
	m := newTestMachine(&fixedRand{})
	room := newTestRoom(m, 1, "A", "B")
	_, err := m.Leave(&room, "ghost")
	assert.ErrorIs(t, err, domain.ErrInvalidAction)
	assert.Len(t, room.Players, 2)
}

func TestMachine_TransferHost(t *testing.T) {
	t.Parallel()
	m := newTestMachine(&fixedRand{})
	room := newTestRoom(m, 1, "A", "B")

	assert.ErrorIs(t, m.TransferHost(&room, "B", "B"), domain.ErrInvalidAction)
	assert.ErrorIs(t, m.TransferHost(&room, "A", "ghost"), domain.ErrInvalidAction)
	require.NoError(t, m.TransferHost(&room, "A", "B"))

	assert.Equal(t, "B", room.HostID)
	assert.False(t, room.Players[0].IsHost)
	assert.True(t, room.Players[1].IsHost)
	assert.Equal(t, "B is now the host.", lastMessage(room).Text)
}

func TestMachine_Draw(t *testing.T) {
	t.Parallel()
	m := newTestMachine(&fixedRand{})
	room := newTestRoom(m, 1, "A", "B")
	line := domain.Stroke{Points: pts(0, 0, 1, 1, 2, 2, 3, 3), Color: "#000", Width: 2}

	assert.ErrorIs(t, m.Draw(&room, "A", line), domain.ErrInvalidAction, "not playing")
	require.NoError(t, m.Start(&room, "A"))
	assert.ErrorIs(t, m.Draw(&room, "A", line), domain.ErrInvalidAction, "word not chosen")
	require.NoError(t, m.ChooseWord(&room, "A", 0))
	assert.ErrorIs(t, m.Draw(&room, "B", line), domain.ErrInvalidAction, "not the drawer")
	assert.ErrorIs(t, m.Draw(&room, "A", domain.Stroke{Points: pts(1, 1)}), domain.ErrInvalidAction, "single point")
	assert.ErrorIs(t, m.Draw(&room, "A", domain.Stroke{Width: 2, Points: pts(0, 0, math.NaN(), 5, 9, 9)}), domain.ErrInvalidAction, "NaN point")
	assert.ErrorIs(t, m.Draw(&room, "A", domain.Stroke{Width: 2, Points: pts(0, 0, math.Inf(1), 5)}), domain.ErrInvalidAction, "infinite point")
	assert.ErrorIs(t, m.Draw(&room, "A", domain.Stroke{Width: math.NaN(), Points: pts(0, 0, 1, 1)}), domain.ErrInvalidAction, "NaN width")
	assert.Zero(t, room.StrokeBuffer.TotalSequence)

	require.NoError(t, m.Draw(&room, "A", line))
	buf := room.StrokeBuffer
	require.Len(t, buf.Strokes, 1)
	assert.Equal(t, pts(0, 0, 3, 3), buf.Strokes[0].Points)
	assert.NotEmpty(t, buf.Strokes[0].ID)
	assert.Equal(t, 1, buf.TotalSequence)

	for i := 0; i < DefaultStrokeCapacity+5; i++ {
		require.NoError(t, m.Draw(&room, "A", line))
	}
	buf = room.StrokeBuffer
	assert.Len(t, buf.Strokes, DefaultStrokeCapacity)
	assert.Equal(t, DefaultStrokeCapacity+6, buf.TotalSequence)
	assert.Equal(t, buf.TotalSequence-len(buf.Strokes), buf.StartSequence)

	assert.ErrorIs(t, m.ClearCanvas(&room, "B"), domain.ErrInvalidAction)
	require.NoError(t, m.ClearCanvas(&room, "A"))
	assert.Equal(t, domain.StrokeBuffer{Strokes: []domain.Stroke{}}, room.StrokeBuffer)
}

func TestMachine_TickPrunesStalePlayers(t *testing.T) {
	t.Parallel()
	m := newTestMachine(&fixedRand{})
	room := newTestRoom(m, 1, "A", "B", "C")
	stale := testNow.Add(-3 * time.Minute).UnixMilli()
	room.Players[0].LastHeartbeat = stale
	room.Players[1].LastHeartbeat = stale
	room.Players[2].LastHeartbeat = testNow.Add(-30 * time.Second).UnixMilli()

	changed, empty := m.Tick(&room, testNow)
	assert.True(t, changed)
	assert.False(t, empty)
	ids := []string{}
	for _, p := range room.Players {
		ids = append(ids, p.ID)
	}
	assert.Equal(t, []string{"A", "C"}, ids, "the host is left to the reaper")
}

func TestMachine_Heartbeat(t *testing.T) {
	t.Parallel()
	m := newTestMachine(&fixedRand{})
	room := newTestRoom(m, 1, "A", "B")

	require.NoError(t, m.Apply(&room, "B", Action{Type: ActionHeartbeat}))
	assert.Equal(t, testNow.UnixMilli(), room.Players[1].LastHeartbeat)
	assert.Zero(t, room.Players[0].LastHeartbeat)
	assert.ErrorIs(t, m.Apply(&room, "ghost", Action{Type: ActionHeartbeat}), domain.ErrInvalidAction)
	assert.ErrorIs(t, m.Apply(&room, "A", Action{Type: "dance"}), domain.ErrInvalidAction)
}

func TestMachine_ChatIsCapped(t *testing.T) {
	t.Parallel()
	m := newTestMachine(&fixedRand{})
	m.cfg.ChatCapacity = 5
	room := newTestRoom(m, 1, "A", "B")

	for i := 0; i < 10; i++ {
		require.NoError(t, m.SendMessage(&room, "B", "hello"))
	}
	assert.Len(t, room.ChatMessages, 5)
	assert.ErrorIs(t, m.SendMessage(&room, "B", "   "), domain.ErrInvalidAction)
}

func TestWordHint(t *testing.T) {
	t.Parallel()
	testCases := []struct {
		word   string
		hint   string
		length int
	}{
		{"apple", "_____", 5},
		{"mona lisa", "____ ____", 8},
		{"", "", 0},
	}
	for _, tc := range testCases {
		assert.Equal(t, tc.hint, WordHint(tc.word), tc.word)
		assert.Equal(t, tc.length, WordLength(tc.word), tc.word)
	}
}
