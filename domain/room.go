package domain

type Status string

const (
	StatusWaiting  Status = "waiting"
	StatusPlaying  Status = "playing"
	StatusRoundEnd Status = "round_end"
	StatusGameEnd  Status = "game_end"
)

type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// SystemSenderID marks chat messages authored by the server.
const SystemSenderID = "system"

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Stroke is one continuous drawing gesture. It is immutable once accepted.
type Stroke struct {
	ID     string  `json:"id"`
	Points []Point `json:"points"`
	Color  string  `json:"color"`
	Width  float64 `json:"width"`
}

// StrokeBuffer is the bounded tail window of the strokes drawn in the current turn.
// TotalSequence - StartSequence == len(Strokes) at all times.
type StrokeBuffer struct {
	Strokes       []Stroke `json:"strokes"`
	StartSequence int      `json:"startSequence"`
	TotalSequence int      `json:"totalSequence"`
}

type Player struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Score int    `json:"score"`
	// IsHost mirrors Room.HostID so clients rendering a player list need no join.
	IsHost bool `json:"isHost"`
	// LastHeartbeat is wall-clock millis; zero until the first heartbeat.
	LastHeartbeat int64 `json:"lastHeartbeat,omitempty"`
}

type ChatMessage struct {
	ID             string `json:"id"`
	SenderID       string `json:"senderId"`
	SenderName     string `json:"senderName"`
	Text           string `json:"text"`
	Timestamp      int64  `json:"timestamp"`
	IsCorrectGuess bool   `json:"isCorrectGuess,omitempty"`
}

type WordEntry struct {
	Word     string `json:"word"`
	Category string `json:"category"`
}

// Room is the shared session record. Every field is replicated to clients except
// PasscodeHash, which is redacted before a snapshot leaves the server.
type Room struct {
	ID               string        `json:"id"`
	Name             string        `json:"name"`
	HostID           string        `json:"hostId"`
	Players          []Player      `json:"players"`
	MaxPlayers       int           `json:"maxPlayers"`
	Status           Status        `json:"status"`
	CurrentDrawerID  string        `json:"currentDrawerId"`
	CurrentRound     int           `json:"currentRound"`
	MaxRounds        int           `json:"maxRounds"`
	CurrentWord      string        `json:"currentWord"`
	WordHint         string        `json:"wordHint"`
	WordCategory     string        `json:"wordCategory"`
	WordLength       int           `json:"wordLength"`
	WordChoices      []WordEntry   `json:"wordChoices,omitempty"`
	ChoiceTimeLeft   int           `json:"choiceTimeLeft"`
	UsedWords        []string      `json:"usedWords"`
	GuessedPlayerIDs []string      `json:"guessedPlayerIds"`
	TimeLeft         int           `json:"timeLeft"`
	ChatMessages     []ChatMessage `json:"chatMessages"`
	StrokeBuffer     StrokeBuffer  `json:"strokeBuffer"`
	Difficulty       Difficulty    `json:"difficulty"`
	PasscodeHash     string        `json:"passcodeHash,omitempty"`
	CreatedAt        int64         `json:"createdAt"`
}

func (r *Room) PlayerIndex(id string) int {
	for i := range r.Players {
		if r.Players[i].ID == id {
			return i
		}
	}
	return -1
}

func (r *Room) Player(id string) (Player, bool) {
	i := r.PlayerIndex(id)
	if i < 0 {
		return Player{}, false
	}
	return r.Players[i], true
}

func (r *Room) Host() (Player, bool) {
	return r.Player(r.HostID)
}

func (r *Room) HasGuessed(id string) bool {
	for _, g := range r.GuessedPlayerIDs {
		if g == id {
			return true
		}
	}
	return false
}

// Clone returns a deep copy so snapshots handed to subscribers never alias actor state.
func (r Room) Clone() Room {
	c := r
	c.Players = cloneSlice(r.Players)
	c.WordChoices = cloneSlice(r.WordChoices)
	c.UsedWords = cloneSlice(r.UsedWords)
	c.GuessedPlayerIDs = cloneSlice(r.GuessedPlayerIDs)
	c.ChatMessages = cloneSlice(r.ChatMessages)
	c.StrokeBuffer = r.StrokeBuffer.Clone()
	return c
}

func (b StrokeBuffer) Clone() StrokeBuffer {
	c := b
	c.Strokes = cloneSlice(b.Strokes)
	for i := range c.Strokes {
		c.Strokes[i].Points = cloneSlice(c.Strokes[i].Points)
	}
	return c
}

func cloneSlice[T any](s []T) []T {
	if s == nil {
		return nil
	}
	return append(make([]T, 0, len(s)), s...)
}
