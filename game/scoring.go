package game

import "github.com/lishuceo/draw-and-guess/domain"

const (
	GuessBaseScore   = 100
	FirstGuessBonus  = 50
	GuessBonusStep   = 20
	DrawerGuessAward = 10
)

// GuesserAward is the score for a correct guess given how many players guessed before.
// The bonus is 50, 30, 10 and then 0.
func GuesserAward(guessedSoFar int) int {
	return GuessBaseScore + max(0, FirstGuessBonus-GuessBonusStep*guessedSoFar)
}

// applyCorrectGuess awards the guesser and the drawer and records the guess. The caller has
// already checked that guesserID is an eligible guesser. It reports whether every guesser has
// now found the word.
func applyCorrectGuess(room *domain.Room, guesserID string) bool {
	award := GuesserAward(len(room.GuessedPlayerIDs))
	if i := room.PlayerIndex(guesserID); i >= 0 {
		room.Players[i].Score += award
	}
	if i := room.PlayerIndex(room.CurrentDrawerID); i >= 0 {
		room.Players[i].Score += DrawerGuessAward
	}
	room.GuessedPlayerIDs = append(room.GuessedPlayerIDs, guesserID)
	return allGuessed(room)
}

func allGuessed(room *domain.Room) bool {
	return len(room.Players) > 1 && len(room.GuessedPlayerIDs) >= len(room.Players)-1
}
