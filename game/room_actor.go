package game

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/lishuceo/draw-and-guess/domain"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const storeTimeout = 5 * time.Second

type envelope struct {
	action Action
	from   *Session
}

type joinRequest struct {
	roomID  string
	session *Session
	errChan chan error
}

func newJoinRequest(roomID string, s *Session) joinRequest {
	return joinRequest{roomID: roomID, session: s, errChan: make(chan error, 1)}
}

// roomActor owns one room. Every transition runs on its goroutine and is persisted as a full
// overwrite, so the store always holds a state the machine produced. It is the room's only
// writer: snapshots from the store are ignored except for deletion.
type roomActor struct {
	id       string
	room     domain.Room
	machine  *Machine
	store    RoomStore
	events   EventPublisher
	lobby    *Lobby
	sessions map[*Session]struct{}
	logger   zerolog.Logger

	inbox        chan envelope
	ticks        chan time.Time
	pings        chan struct{}
	joinRequests chan joinRequest
	disconnects  chan *Session
	deleted      chan struct{}
	deleteOnce   sync.Once
	stop         chan struct{}
	stopOnce     sync.Once
	done         chan struct{}
}

func newRoomActor(room domain.Room, machine *Machine, store RoomStore, events EventPublisher, lobby *Lobby) *roomActor {
	return &roomActor{
		id:           room.ID,
		room:         room,
		machine:      machine,
		store:        store,
		events:       events,
		lobby:        lobby,
		sessions:     make(map[*Session]struct{}),
		logger:       log.With().Str("room", room.ID).Logger(),
		inbox:        make(chan envelope, 1024),
		ticks:        make(chan time.Time, 4),
		pings:        make(chan struct{}, 1),
		joinRequests: make(chan joinRequest, 64),
		disconnects:  make(chan *Session, 64),
		deleted:      make(chan struct{}),
		stop:         make(chan struct{}),
		done:         make(chan struct{}),
	}
}

func (a *roomActor) Tick(now time.Time) {
	select {
	case a.ticks <- now:
	default:
	}
}

func (a *roomActor) PingPlayers() {
	select {
	case a.pings <- struct{}{}:
	default:
	}
}

func (a *roomActor) RequestJoin(req joinRequest) {
	select {
	case a.joinRequests <- req:
	default:
		req.errChan <- domain.ErrServerBusy
	}
}

func (a *roomActor) send(e envelope) bool {
	select {
	case a.inbox <- e:
		return true
	case <-a.done:
		return false
	}
}

func (a *roomActor) disconnect(s *Session) {
	select {
	case a.disconnects <- s:
	case <-a.done:
	}
}

// Stop ends the actor without touching the stored room, so another process can resume it.
func (a *roomActor) Stop() {
	a.stopOnce.Do(func() { close(a.stop) })
}

func (a *roomActor) markDeleted() {
	a.deleteOnce.Do(func() { close(a.deleted) })
}

func (a *roomActor) GameLoop() {
	unsubscribe := a.store.Subscribe(a.id, func(_ domain.Room, exists bool) {
		if !exists {
			a.markDeleted()
		}
	})
	defer func() {
		unsubscribe()
		close(a.done)
		a.drainJoinRequests()
		a.lobby.RemoveRoom(a)
	}()

	for {
		select {
		case <-a.stop:
			a.closeSessions(closeCodeShutdown)
			return

		case <-a.deleted:
			a.logger.Info().Msg("room deleted from store, closing sessions")
			a.closeSessions(domain.ErrRoomNotFound.Error())
			return

		case now := <-a.ticks:
			before := a.room.Clone()
			changed, empty := a.machine.Tick(&a.room, now)
			if empty {
				a.deleteRoom("empty")
				return
			}
			if changed {
				a.commit(before)
			}

		case <-a.pings:
			for s := range a.sessions {
				s.Ping()
			}

		case req := <-a.joinRequests:
			a.handleJoinRequest(req)

		case e := <-a.inbox:
			if a.handleAction(e) {
				return
			}

		case s := <-a.disconnects:
			delete(a.sessions, s)
		}
	}
}

func (a *roomActor) handleJoinRequest(req joinRequest) {
	before := a.room.Clone()
	if err := a.machine.Join(&a.room, req.session.player); err != nil {
		req.errChan <- err
		return
	}
	if a.room.PlayerIndex(req.session.player.ID) != before.PlayerIndex(req.session.player.ID) {
		if err := a.commit(before); err != nil {
			a.room = before
			req.errChan <- err
			return
		}
	}
	req.session.room = a
	a.sessions[req.session] = struct{}{}
	req.session.Send(MakeSnapshotFrame(ViewFor(a.room, req.session.player.ID)))
	req.errChan <- nil
}

// handleAction reports whether the actor should stop.
func (a *roomActor) handleAction(e envelope) bool {
	if e.action.Type == ActionLeave {
		before := a.room.Clone()
		empty, err := a.machine.Leave(&a.room, e.from.player.ID)
		delete(a.sessions, e.from)
		e.from.Close(closeCodeLeft)
		if err != nil {
			return false
		}
		if empty {
			a.deleteRoom("empty")
			return true
		}
		a.commit(before)
		return false
	}

	before := a.room.Clone()
	if err := a.machine.Apply(&a.room, e.from.player.ID, e.action); err != nil {
		a.room = before
		if !errors.Is(err, domain.ErrInvalidAction) {
			a.logger.Error().Err(err).Str("action", string(e.action.Type)).Msg("action failed")
		}
		return false
	}
	a.commit(before)
	return false
}

// commit writes the room as a full overwrite and emits lifecycle events for status changes.
func (a *roomActor) commit(before domain.Room) error {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	err := a.store.Update(ctx, a.id, domain.FullPatch(a.room))
	if err != nil {
		if errors.Is(err, domain.ErrRoomNotFound) {
			a.markDeleted()
		}
		a.logger.Error().Err(err).Msg("failed to persist room")
		return err
	}
	a.publishTransition(ctx, before)
	return nil
}

func (a *roomActor) publishTransition(ctx context.Context, before domain.Room) {
	if before.Status == a.room.Status {
		return
	}
	e := domain.Event{
		RoomID:      a.id,
		Round:       a.room.CurrentRound,
		PlayerCount: len(a.room.Players),
		Timestamp:   time.Now().UnixMilli(),
	}
	switch a.room.Status {
	case domain.StatusPlaying:
		if before.Status != domain.StatusWaiting {
			return
		}
		e.Type = domain.EventGameStarted
	case domain.StatusRoundEnd:
		e.Type = domain.EventRoundEnded
		e.Word = a.room.CurrentWord
	case domain.StatusGameEnd:
		e.Type = domain.EventGameEnded
	default:
		return
	}
	a.publish(ctx, e)
}

func (a *roomActor) deleteRoom(reason string) {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	if err := a.store.Delete(ctx, a.id); err != nil && !errors.Is(err, domain.ErrRoomNotFound) {
		a.logger.Error().Err(err).Msg("failed to delete room")
	}
	a.publish(ctx, domain.Event{Type: domain.EventRoomDeleted, RoomID: a.id, Reason: reason, Timestamp: time.Now().UnixMilli()})
	a.logger.Info().Str("reason", reason).Msg("room deleted")
	a.closeSessions(domain.ErrRoomNotFound.Error())
}

func (a *roomActor) publish(ctx context.Context, e domain.Event) {
	if a.events == nil {
		return
	}
	if err := a.events.Publish(ctx, e); err != nil {
		a.logger.Warn().Err(err).Str("event", string(e.Type)).Msg("failed to publish event")
	}
}

func (a *roomActor) closeSessions(code string) {
	for s := range a.sessions {
		s.Send(MakeErrorFrame(code))
		s.Close(code)
	}
	clear(a.sessions)
}

func (a *roomActor) drainJoinRequests() {
	for {
		select {
		case req := <-a.joinRequests:
			req.errChan <- domain.ErrRoomNotFound
		default:
			return
		}
	}
}
