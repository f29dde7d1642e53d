package game

import (
	"sync"
	"sync/atomic"

	"github.com/lishuceo/draw-and-guess/domain"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

const (
	outboxSize        = 64
	inboundRate       = 30
	inboundBurst      = 60
	closeCodeLeft     = "left"
	closeCodeRemoved  = "player-removed"
	closeCodeShutdown = "server-shutdown"
)

// Session is one player's websocket connection to a room. ReadPump feeds the room actor and
// WritePump drains the outbox; snapshots reach the outbox through the store subscription.
type Session struct {
	player      domain.Player
	socket      NetworkSession
	rateLimiter *rate.Limiter
	outbox      chan []byte
	pingChan    chan struct{}
	closed      chan struct{}
	closeOnce   sync.Once
	closeCode   string
	room        *roomActor
	unsubscribe func()
	// seenSelf is set by the first snapshot listing this player. Snapshots before the join
	// lands are not treated as a removal.
	seenSelf atomic.Bool
}

func NewSession(player domain.Player, socket NetworkSession) *Session {
	return &Session{
		player:      player,
		socket:      socket,
		rateLimiter: rate.NewLimiter(inboundRate, inboundBurst),
		outbox:      make(chan []byte, outboxSize),
		pingChan:    make(chan struct{}, 1),
		closed:      make(chan struct{}),
	}
}

func (s *Session) PlayerID() string {
	return s.player.ID
}

// Send queues a frame without blocking. A full outbox drops the frame; the next snapshot
// carries the full room, and the stroke cursor heals any gap.
func (s *Session) Send(data []byte) bool {
	select {
	case <-s.closed:
		return false
	default:
	}
	select {
	case s.outbox <- data:
		return true
	default:
		log.Debug().Str("player", s.player.ID).Msg("outbox full, dropping frame")
		return false
	}
}

func (s *Session) Ping() {
	select {
	case s.pingChan <- struct{}{}:
	default:
	}
}

// Close asks WritePump to close the socket with code. Only the first call counts.
func (s *Session) Close(code string) {
	s.closeOnce.Do(func() {
		s.closeCode = code
		close(s.closed)
	})
}

// Done is closed once the session has been asked to close.
func (s *Session) Done() <-chan struct{} {
	return s.closed
}

// observe is the store subscription callback. It must not block.
func (s *Session) observe(room domain.Room, exists bool) {
	if !exists {
		s.Close(domain.ErrRoomNotFound.Error())
		return
	}
	if room.PlayerIndex(s.player.ID) < 0 {
		if s.seenSelf.Load() {
			s.Close(closeCodeRemoved)
		}
		return
	}
	s.seenSelf.Store(true)
	s.Send(MakeSnapshotFrame(ViewFor(room, s.player.ID)))
}

func (s *Session) ReadPump() {
	left := false
	defer func() {
		if left {
			return
		}
		if s.room != nil {
			s.room.disconnect(s)
		}
		s.Close("")
	}()

	for {
		data, binary, err := s.socket.Read()
		if err != nil {
			return
		}
		if !s.rateLimiter.Allow() {
			continue
		}
		action, err := DecodeAction(data, binary)
		if err != nil {
			s.Send(MakeErrorFrame(ErrInvalidRequestFormatStr))
			continue
		}
		if s.room == nil {
			continue
		}
		if !s.room.send(envelope{action: action, from: s}) {
			return
		}
		if action.Type == ActionLeave {
			left = true
			return
		}
	}
}

func (s *Session) WritePump() {
	defer func() {
		if s.unsubscribe != nil {
			s.unsubscribe()
		}
	}()

	for {
		select {
		case data := <-s.outbox:
			if err := s.socket.Write(data); err != nil {
				s.Close("")
				s.socket.Close("")
				return
			}
		case <-s.pingChan:
			if err := s.socket.Ping(); err != nil {
				s.Close("")
				s.socket.Close("")
				return
			}
		case <-s.closed:
			s.flush()
			s.socket.Close(s.closeCode)
			return
		}
	}
}

// flush writes whatever is already queued so a final error frame still goes out.
func (s *Session) flush() {
	for {
		select {
		case data := <-s.outbox:
			if err := s.socket.Write(data); err != nil {
				return
			}
		default:
			return
		}
	}
}
