package game

import "github.com/lishuceo/draw-and-guess/domain"

// DefaultStrokeCapacity bounds the strokes kept in a room's buffer. Snapshots carry at most
// this many strokes no matter how long the turn runs.
const DefaultStrokeCapacity = 20

// PushStroke appends s to the tail of buf, evicting from the head past capacity.
// TotalSequence advances by exactly one per call.
func PushStroke(buf *domain.StrokeBuffer, s domain.Stroke, capacity int) {
	if capacity < 1 {
		capacity = 1
	}
	buf.Strokes = append(buf.Strokes, s)
	if overflow := len(buf.Strokes) - capacity; overflow > 0 {
		buf.Strokes = append([]domain.Stroke(nil), buf.Strokes[overflow:]...)
		buf.StartSequence += overflow
	}
	buf.TotalSequence++
}

// ResetStrokes clears the buffer. Consumers read TotalSequence == 0 as "history cleared".
func ResetStrokes(buf *domain.StrokeBuffer) {
	*buf = domain.StrokeBuffer{Strokes: []domain.Stroke{}}
}

// SyncStrokes folds a buffer snapshot into a client's local stroke history. cursor is the
// sequence number of the last stroke already in history, -1 when none. It returns the new
// history, the new cursor and whether the history was wiped.
//
// The buffer is a lossy window: a client that misses more than its capacity between two
// observations resumes from the visible tail instead of replaying what it lost.
func SyncStrokes(history []domain.Stroke, cursor int, buf domain.StrokeBuffer) ([]domain.Stroke, int, bool) {
	if buf.TotalSequence == 0 {
		return []domain.Stroke{}, -1, len(history) > 0 || cursor != -1
	}

	// A cursor at or past the head means the buffer was cleared and refilled while we were
	// not looking.
	if cursor >= buf.TotalSequence {
		return appendStrokes(nil, buf.Strokes), buf.TotalSequence - 1, true
	}

	if cursor == -1 || cursor < buf.StartSequence-1 {
		return appendStrokes(history, buf.Strokes), buf.TotalSequence - 1, false
	}

	newCount := buf.TotalSequence - cursor - 1
	if newCount <= 0 {
		return history, cursor, false
	}
	if newCount > len(buf.Strokes) {
		newCount = len(buf.Strokes)
	}
	return appendStrokes(history, buf.Strokes[len(buf.Strokes)-newCount:]), buf.TotalSequence - 1, false
}

// appendStrokes never writes into history's backing array, so earlier views stay valid.
func appendStrokes(history []domain.Stroke, strokes []domain.Stroke) []domain.Stroke {
	out := make([]domain.Stroke, 0, len(history)+len(strokes))
	out = append(out, history...)
	for _, s := range strokes {
		s.Points = append([]domain.Point(nil), s.Points...)
		out = append(out, s)
	}
	return out
}

// StrokeReplica is the stateful form of SyncStrokes kept by a client.
type StrokeReplica struct {
	history []domain.Stroke
	cursor  int
}

func NewStrokeReplica() *StrokeReplica {
	return &StrokeReplica{history: []domain.Stroke{}, cursor: -1}
}

// Observe returns the strokes appended by this snapshot and whether history was wiped first.
func (r *StrokeReplica) Observe(buf domain.StrokeBuffer) (added []domain.Stroke, reset bool) {
	before := len(r.history)
	r.history, r.cursor, reset = SyncStrokes(r.history, r.cursor, buf)
	if reset {
		before = 0
	}
	return r.history[before:], reset
}

func (r *StrokeReplica) History() []domain.Stroke {
	return r.history
}

func (r *StrokeReplica) LastSyncedSequence() int {
	return r.cursor
}
