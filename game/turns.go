package game

import "github.com/lishuceo/draw-and-guess/domain"

// FirstDrawer picks the opening drawer uniformly at random.
func FirstDrawer(players []domain.Player, rng RandomSource) string {
	if len(players) == 0 {
		return ""
	}
	return players[rng.Intn(len(players))].ID
}

// NextDrawer rotates the drawer role in join order, wrapping around. When the previous
// drawer has left the room the rotation restarts at index 0.
func NextDrawer(players []domain.Player, currentDrawerID string) string {
	if len(players) == 0 {
		return ""
	}
	for i, p := range players {
		if p.ID == currentDrawerID {
			return players[(i+1)%len(players)].ID
		}
	}
	return players[0].ID
}
