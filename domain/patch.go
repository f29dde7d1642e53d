package domain

// RoomPatch is a partial update of a Room. A nil field is left untouched. List fields replace
// the whole list, matching the "set whole array" semantics of the persistence substrate.
type RoomPatch struct {
	Name             *string
	HostID           *string
	Players          *[]Player
	MaxPlayers       *int
	Status           *Status
	CurrentDrawerID  *string
	CurrentRound     *int
	MaxRounds        *int
	CurrentWord      *string
	WordHint         *string
	WordCategory     *string
	WordLength       *int
	WordChoices      *[]WordEntry
	ChoiceTimeLeft   *int
	UsedWords        *[]string
	GuessedPlayerIDs *[]string
	TimeLeft         *int
	ChatMessages     *[]ChatMessage
	StrokeBuffer     *StrokeBuffer
	Difficulty       *Difficulty
	PasscodeHash     *string
}

// FullPatch overwrites every mutable field of the stored record with room's values.
// State-machine transitions are persisted this way so a duplicated write is harmless.
func FullPatch(room Room) RoomPatch {
	c := room.Clone()
	return RoomPatch{
		Name:             &c.Name,
		HostID:           &c.HostID,
		Players:          &c.Players,
		MaxPlayers:       &c.MaxPlayers,
		Status:           &c.Status,
		CurrentDrawerID:  &c.CurrentDrawerID,
		CurrentRound:     &c.CurrentRound,
		MaxRounds:        &c.MaxRounds,
		CurrentWord:      &c.CurrentWord,
		WordHint:         &c.WordHint,
		WordCategory:     &c.WordCategory,
		WordLength:       &c.WordLength,
		WordChoices:      &c.WordChoices,
		ChoiceTimeLeft:   &c.ChoiceTimeLeft,
		UsedWords:        &c.UsedWords,
		GuessedPlayerIDs: &c.GuessedPlayerIDs,
		TimeLeft:         &c.TimeLeft,
		ChatMessages:     &c.ChatMessages,
		StrokeBuffer:     &c.StrokeBuffer,
		Difficulty:       &c.Difficulty,
		PasscodeHash:     &c.PasscodeHash,
	}
}

// Apply writes the set fields of p into room. The room's ID and CreatedAt are never patched.
func (p RoomPatch) Apply(room *Room) {
	setIf(&room.Name, p.Name)
	setIf(&room.HostID, p.HostID)
	setSliceIf(&room.Players, p.Players)
	setIf(&room.MaxPlayers, p.MaxPlayers)
	setIf(&room.Status, p.Status)
	setIf(&room.CurrentDrawerID, p.CurrentDrawerID)
	setIf(&room.CurrentRound, p.CurrentRound)
	setIf(&room.MaxRounds, p.MaxRounds)
	setIf(&room.CurrentWord, p.CurrentWord)
	setIf(&room.WordHint, p.WordHint)
	setIf(&room.WordCategory, p.WordCategory)
	setIf(&room.WordLength, p.WordLength)
	setSliceIf(&room.WordChoices, p.WordChoices)
	setIf(&room.ChoiceTimeLeft, p.ChoiceTimeLeft)
	setSliceIf(&room.UsedWords, p.UsedWords)
	setSliceIf(&room.GuessedPlayerIDs, p.GuessedPlayerIDs)
	setIf(&room.TimeLeft, p.TimeLeft)
	setSliceIf(&room.ChatMessages, p.ChatMessages)
	if p.StrokeBuffer != nil {
		room.StrokeBuffer = p.StrokeBuffer.Clone()
	}
	setIf(&room.Difficulty, p.Difficulty)
	setIf(&room.PasscodeHash, p.PasscodeHash)
}

func setIf[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

func setSliceIf[T any](dst *[]T, src *[]T) {
	if src != nil {
		*dst = cloneSlice(*src)
	}
}
