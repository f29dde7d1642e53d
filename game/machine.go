package game

import (
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/lishuceo/draw-and-guess/domain"
)

type Config struct {
	RoundSeconds      int
	ChoiceSeconds     int
	StrokeCapacity    int
	ChatCapacity      int
	UsedWordsCapacity int
	MaxMessageLength  int
	SimplifyTolerance float64
	// PlayerTimeout prunes silent non-host players. Zero disables pruning.
	PlayerTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		RoundSeconds:      60,
		ChoiceSeconds:     15,
		StrokeCapacity:    DefaultStrokeCapacity,
		ChatCapacity:      100,
		UsedWordsCapacity: 50,
		MaxMessageLength:  200,
		SimplifyTolerance: DefaultSimplifyTolerance,
		PlayerTimeout:     2 * time.Minute,
	}
}

// Machine applies the room state transitions. It holds no room state of its own; the caller
// serializes calls per room, which the room actor does.
type Machine struct {
	cfg   Config
	bank  *WordBank
	rng   RandomSource
	ids   UniqueIdGenerator
	clock func() time.Time
}

func NewMachine(cfg Config, bank *WordBank, rng RandomSource, ids UniqueIdGenerator) *Machine {
	return &Machine{cfg: cfg, bank: bank, rng: rng, ids: ids, clock: time.Now}
}

func (m *Machine) Config() Config {
	return m.cfg
}

// NewRoom builds a fresh waiting room with host as its only player.
func (m *Machine) NewRoom(settings RoomSettings, host domain.Player, passcodeHash string) domain.Room {
	room := domain.Room{
		Name:             settings.Name,
		MaxPlayers:       settings.MaxPlayers,
		MaxRounds:        settings.MaxRounds,
		Difficulty:       settings.Difficulty,
		Status:           domain.StatusWaiting,
		Players:          []domain.Player{},
		UsedWords:        []string{},
		GuessedPlayerIDs: []string{},
		ChatMessages:     []domain.ChatMessage{},
		StrokeBuffer:     domain.StrokeBuffer{Strokes: []domain.Stroke{}},
		PasscodeHash:     passcodeHash,
		CreatedAt:        m.clock().UnixMilli(),
	}
	host.IsHost = true
	host.Score = 0
	room.HostID = host.ID
	room.Players = append(room.Players, host)
	return room
}

// Apply dispatches a client action. Join and leave are not actions; the actor handles them
// through Join and Leave.
func (m *Machine) Apply(room *domain.Room, playerID string, a Action) error {
	if room.PlayerIndex(playerID) < 0 {
		return domain.ErrInvalidAction
	}
	switch a.Type {
	case ActionStart:
		return m.Start(room, playerID)
	case ActionChooseWord:
		return m.ChooseWord(room, playerID, a.Index)
	case ActionMessage:
		return m.SendMessage(room, playerID, a.Text)
	case ActionStroke:
		if a.Stroke == nil {
			return domain.ErrInvalidAction
		}
		return m.Draw(room, playerID, *a.Stroke)
	case ActionClear:
		return m.ClearCanvas(room, playerID)
	case ActionNextRound:
		return m.NextRound(room, playerID)
	case ActionRematch:
		return m.Rematch(room, playerID)
	case ActionTransferHost:
		return m.TransferHost(room, playerID, a.PlayerID)
	case ActionHeartbeat:
		return m.Heartbeat(room, playerID)
	default:
		return domain.ErrInvalidAction
	}
}

// Join appends a player. Joining twice with the same id is a reconnect and changes nothing.
func (m *Machine) Join(room *domain.Room, p domain.Player) error {
	if room.PlayerIndex(p.ID) >= 0 {
		return nil
	}
	if room.MaxPlayers > 0 && len(room.Players) >= room.MaxPlayers {
		return domain.ErrRoomFull
	}
	p.Score = 0
	p.IsHost = len(room.Players) == 0
	if p.IsHost {
		room.HostID = p.ID
	}
	room.Players = append(room.Players, p)
	m.systemMessage(room, fmt.Sprintf("%s joined the room.", p.Name))
	return nil
}

// Leave removes a player and repairs every invariant that depended on them. It reports
// whether the room is now empty, in which case the caller deletes it.
func (m *Machine) Leave(room *domain.Room, playerID string) (bool, error) {
	i := room.PlayerIndex(playerID)
	if i < 0 {
		return len(room.Players) == 0, domain.ErrInvalidAction
	}
	leaving := room.Players[i]
	room.Players = append(room.Players[:i:i], room.Players[i+1:]...)
	room.GuessedPlayerIDs = removeString(room.GuessedPlayerIDs, playerID)

	if len(room.Players) == 0 {
		room.HostID = ""
		return true, nil
	}

	m.systemMessage(room, fmt.Sprintf("%s left the room.", leaving.Name))
	if leaving.ID == room.HostID {
		m.setHost(room, room.Players[0].ID)
	}

	switch room.Status {
	case domain.StatusPlaying, domain.StatusRoundEnd:
		if len(room.Players) < 2 {
			m.endGame(room)
			return false, nil
		}
		if room.Status != domain.StatusPlaying {
			break
		}
		if leaving.ID == room.CurrentDrawerID {
			m.endRound(room, fmt.Sprintf("%s stopped drawing.", leaving.Name))
		} else if room.CurrentWord != "" && allGuessed(room) {
			m.endRound(room, "")
		}
	}
	return false, nil
}

// TransferHost hands authority to another player.
func (m *Machine) TransferHost(room *domain.Room, actorID, targetID string) error {
	if actorID != room.HostID || targetID == actorID || room.PlayerIndex(targetID) < 0 {
		return domain.ErrInvalidAction
	}
	m.setHost(room, targetID)
	return nil
}

// Start moves a waiting room with at least two players into its first round.
func (m *Machine) Start(room *domain.Room, actorID string) error {
	if actorID != room.HostID || room.Status != domain.StatusWaiting || len(room.Players) < 2 {
		return domain.ErrInvalidAction
	}
	drawer := FirstDrawer(room.Players, m.rng)
	room.Status = domain.StatusPlaying
	room.CurrentRound = 1
	room.CurrentDrawerID = drawer
	m.beginTurn(room)
	name, _ := room.Player(drawer)
	m.systemMessage(room, fmt.Sprintf("Game started! %s draws first.", name.Name))
	return nil
}

// ChooseWord fixes the drawer's word from the offered candidates.
func (m *Machine) ChooseWord(room *domain.Room, actorID string, index int) error {
	if room.Status != domain.StatusPlaying || actorID != room.CurrentDrawerID || room.CurrentWord != "" {
		return domain.ErrInvalidAction
	}
	if index < 0 || index >= len(room.WordChoices) {
		return domain.ErrInvalidAction
	}
	m.setWord(room, room.WordChoices[index])
	return nil
}

// SendMessage posts chat text. Text matching the secret word counts as a guess and never
// enters the log verbatim.
func (m *Machine) SendMessage(room *domain.Room, actorID, text string) error {
	text = strings.TrimSpace(text)
	if text == "" || utf8.RuneCountInString(text) > m.cfg.MaxMessageLength {
		return domain.ErrInvalidAction
	}
	sender, ok := room.Player(actorID)
	if !ok {
		return domain.ErrInvalidAction
	}

	if room.Status == domain.StatusPlaying && room.CurrentWord != "" && strings.EqualFold(text, room.CurrentWord) {
		if actorID == room.CurrentDrawerID || room.HasGuessed(actorID) {
			return domain.ErrInvalidAction
		}
		done := applyCorrectGuess(room, actorID)
		m.appendChat(room, domain.ChatMessage{
			SenderID:       sender.ID,
			SenderName:     sender.Name,
			Text:           fmt.Sprintf("%s guessed the word!", sender.Name),
			IsCorrectGuess: true,
		})
		if done {
			m.endRound(room, "")
		}
		return nil
	}

	m.appendChat(room, domain.ChatMessage{SenderID: sender.ID, SenderName: sender.Name, Text: text})
	return nil
}

// Draw simplifies a finished gesture and pushes it into the stroke buffer.
func (m *Machine) Draw(room *domain.Room, actorID string, s domain.Stroke) error {
	if room.Status != domain.StatusPlaying || actorID != room.CurrentDrawerID || room.CurrentWord == "" {
		return domain.ErrInvalidAction
	}
	if len(s.Points) < 2 || !finiteStroke(s) {
		return domain.ErrInvalidAction
	}
	s.Points = Simplify(s.Points, m.cfg.SimplifyTolerance)
	if s.ID == "" {
		s.ID = m.ids.Generate()
	}
	PushStroke(&room.StrokeBuffer, s, m.cfg.StrokeCapacity)
	return nil
}

func (m *Machine) ClearCanvas(room *domain.Room, actorID string) error {
	if room.Status != domain.StatusPlaying || actorID != room.CurrentDrawerID {
		return domain.ErrInvalidAction
	}
	ResetStrokes(&room.StrokeBuffer)
	return nil
}

// NextRound advances a finished round, ending the game after the last one.
func (m *Machine) NextRound(room *domain.Room, actorID string) error {
	if actorID != room.HostID || room.Status != domain.StatusRoundEnd {
		return domain.ErrInvalidAction
	}
	if room.CurrentRound >= room.MaxRounds {
		m.endGame(room)
		return nil
	}
	room.CurrentDrawerID = NextDrawer(room.Players, room.CurrentDrawerID)
	room.CurrentRound++
	room.Status = domain.StatusPlaying
	m.beginTurn(room)
	drawer, _ := room.Player(room.CurrentDrawerID)
	m.systemMessage(room, fmt.Sprintf("Round %d: %s is drawing.", room.CurrentRound, drawer.Name))
	return nil
}

// Rematch returns a finished game to the waiting room with the roster intact.
func (m *Machine) Rematch(room *domain.Room, actorID string) error {
	if actorID != room.HostID || room.Status != domain.StatusGameEnd {
		return domain.ErrInvalidAction
	}
	for i := range room.Players {
		room.Players[i].Score = 0
	}
	m.clearTurn(room)
	room.Status = domain.StatusWaiting
	room.CurrentDrawerID = ""
	room.CurrentRound = 0
	room.TimeLeft = 0
	room.UsedWords = []string{}
	room.ChatMessages = []domain.ChatMessage{}
	host, _ := room.Host()
	m.systemMessage(room, fmt.Sprintf("%s started a new game. Waiting for players...", host.Name))
	return nil
}

func (m *Machine) Heartbeat(room *domain.Room, actorID string) error {
	i := room.PlayerIndex(actorID)
	if i < 0 {
		return domain.ErrInvalidAction
	}
	room.Players[i].LastHeartbeat = m.clock().UnixMilli()
	return nil
}

// Tick advances the room clock by one second. While the drawer is choosing, the selection
// window counts down instead of the round timer and a lapsed window picks a word. It reports
// whether anything changed and whether the room emptied out.
func (m *Machine) Tick(room *domain.Room, now time.Time) (changed bool, empty bool) {
	if m.pruneStalePlayers(room, now) {
		changed = true
		if len(room.Players) == 0 {
			return true, true
		}
	}
	if room.Status != domain.StatusPlaying {
		return changed, false
	}

	if room.CurrentWord == "" {
		if room.ChoiceTimeLeft > 0 {
			room.ChoiceTimeLeft--
		}
		if room.ChoiceTimeLeft == 0 {
			entry, ok := m.bank.AutoPick(room.Difficulty, room.UsedWords, m.rng)
			if !ok {
				m.endRound(room, "")
				return true, false
			}
			m.setWord(room, entry)
		}
		return true, false
	}

	if room.TimeLeft > 0 {
		room.TimeLeft--
	}
	if room.TimeLeft == 0 {
		m.endRound(room, "Time's up!")
	}
	return true, false
}

func (m *Machine) pruneStalePlayers(room *domain.Room, now time.Time) bool {
	if m.cfg.PlayerTimeout <= 0 {
		return false
	}
	cutoff := now.Add(-m.cfg.PlayerTimeout).UnixMilli()
	var stale []string
	for _, p := range room.Players {
		if p.ID != room.HostID && p.LastHeartbeat > 0 && p.LastHeartbeat < cutoff {
			stale = append(stale, p.ID)
		}
	}
	for _, id := range stale {
		m.Leave(room, id)
	}
	return len(stale) > 0
}

// beginTurn resets the per-turn fields and offers the drawer fresh candidates.
func (m *Machine) beginTurn(room *domain.Room) {
	m.clearTurn(room)
	room.TimeLeft = m.cfg.RoundSeconds
	room.WordChoices = m.bank.Candidates(room.Difficulty, room.UsedWords, CandidatesCount, m.rng)
	room.ChoiceTimeLeft = m.cfg.ChoiceSeconds
}

func (m *Machine) clearTurn(room *domain.Room) {
	room.CurrentWord = ""
	room.WordHint = ""
	room.WordCategory = ""
	room.WordLength = 0
	room.WordChoices = nil
	room.ChoiceTimeLeft = 0
	room.GuessedPlayerIDs = []string{}
	ResetStrokes(&room.StrokeBuffer)
}

func (m *Machine) setWord(room *domain.Room, entry domain.WordEntry) {
	room.CurrentWord = entry.Word
	room.WordCategory = entry.Category
	room.WordHint = WordHint(entry.Word)
	room.WordLength = WordLength(entry.Word)
	room.WordChoices = nil
	room.ChoiceTimeLeft = 0
	room.TimeLeft = m.cfg.RoundSeconds
	room.UsedWords = appendCapped(room.UsedWords, entry.Word, m.cfg.UsedWordsCapacity)
	drawer, _ := room.Player(room.CurrentDrawerID)
	m.systemMessage(room, fmt.Sprintf("%s picked a word. Start guessing!", drawer.Name))
}

func (m *Machine) endRound(room *domain.Room, reason string) {
	room.Status = domain.StatusRoundEnd
	room.WordChoices = nil
	room.ChoiceTimeLeft = 0
	if reason != "" {
		m.systemMessage(room, reason)
	}
	if room.CurrentWord != "" {
		m.systemMessage(room, fmt.Sprintf("Round over! The word was %q.", room.CurrentWord))
	} else {
		m.systemMessage(room, "Round over!")
	}
}

func (m *Machine) endGame(room *domain.Room) {
	room.Status = domain.StatusGameEnd
	room.WordChoices = nil
	room.ChoiceTimeLeft = 0
	if winner, ok := leader(room.Players); ok {
		m.systemMessage(room, fmt.Sprintf("Game over! %s wins with %d points.", winner.Name, winner.Score))
		return
	}
	m.systemMessage(room, "Game over!")
}

func (m *Machine) setHost(room *domain.Room, id string) {
	room.HostID = id
	for i := range room.Players {
		room.Players[i].IsHost = room.Players[i].ID == id
	}
	host, _ := room.Player(id)
	m.systemMessage(room, fmt.Sprintf("%s is now the host.", host.Name))
}

func (m *Machine) systemMessage(room *domain.Room, text string) {
	m.appendChat(room, domain.ChatMessage{SenderID: domain.SystemSenderID, SenderName: "System", Text: text})
}

func (m *Machine) appendChat(room *domain.Room, msg domain.ChatMessage) {
	msg.ID = m.ids.Generate()
	msg.Timestamp = m.clock().UnixMilli()
	room.ChatMessages = appendCapped(room.ChatMessages, msg, m.cfg.ChatCapacity)
}

// WordHint masks every non-space character with an underscore.
func WordHint(word string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return r
		}
		return '_'
	}, word)
}

// WordLength counts the non-whitespace characters of word.
func WordLength(word string) int {
	n := 0
	for _, r := range word {
		if !unicode.IsSpace(r) {
			n++
		}
	}
	return n
}

// leader returns the highest scorer, first in join order on ties.
func leader(players []domain.Player) (domain.Player, bool) {
	if len(players) == 0 {
		return domain.Player{}, false
	}
	best := players[0]
	for _, p := range players[1:] {
		if p.Score > best.Score {
			best = p
		}
	}
	return best, true
}

// appendCapped appends v and evicts from the head past capacity. A non-positive capacity
// means unbounded.
func appendCapped[T any](s []T, v T, capacity int) []T {
	s = append(s, v)
	if capacity > 0 && len(s) > capacity {
		s = append(make([]T, 0, capacity), s[len(s)-capacity:]...)
	}
	return s
}

func removeString(s []string, v string) []string {
	out := make([]string, 0, len(s))
	for _, x := range s {
		if x != v {
			out = append(out, x)
		}
	}
	return out
}
