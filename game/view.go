package game

import "github.com/lishuceo/draw-and-guess/domain"

// ViewFor redacts room for one viewer. The secret word and the candidates are shown only to
// the drawer while the round is being played, and the passcode hash never leaves the server.
func ViewFor(room domain.Room, viewerID string) domain.Room {
	view := room.Clone()
	view.PasscodeHash = ""
	if room.Status == domain.StatusPlaying && viewerID != room.CurrentDrawerID {
		view.CurrentWord = ""
		view.WordChoices = nil
	}
	if room.Status != domain.StatusPlaying {
		view.WordChoices = nil
	}
	return view
}

// LocalView is what one client derives from the snapshots it has observed.
type LocalView struct {
	SelfID   string
	Room     domain.Room
	Exists   bool
	Strokes  []domain.Stroke
	Cursor   int
	IsHost   bool
	IsDrawer bool
	// Removed is set once the room is gone or no longer lists SelfID.
	Removed bool
}

func NewLocalView(selfID string) LocalView {
	return LocalView{SelfID: selfID, Strokes: []domain.Stroke{}, Cursor: -1}
}

// Reduce folds a snapshot into v. It is pure, and reducing the same snapshot twice returns
// an equal view.
func Reduce(v LocalView, snapshot domain.Room, exists bool) LocalView {
	next := v
	if !exists {
		next.Exists = false
		next.Removed = true
		next.IsHost = false
		next.IsDrawer = false
		return next
	}

	next.Room = snapshot.Clone()
	next.Exists = true
	next.Strokes, next.Cursor, _ = SyncStrokes(v.Strokes, v.Cursor, snapshot.StrokeBuffer)
	next.IsHost = snapshot.HostID == v.SelfID
	next.IsDrawer = snapshot.CurrentDrawerID == v.SelfID && snapshot.Status == domain.StatusPlaying
	next.Removed = snapshot.PlayerIndex(v.SelfID) < 0
	return next
}
