package game

import (
	"context"
	"time"

	"github.com/lishuceo/draw-and-guess/domain"
	"github.com/rs/zerolog/log"
)

type hydration struct {
	room domain.Room
	req  joinRequest
}

// Lobby owns the live room actors. It fans out the one-second clock and the ping timer,
// and starts an actor from the stored room the first time someone connects to it.
type Lobby struct {
	rooms         map[string]*roomActor
	machine       *Machine
	store         RoomStore
	events        EventPublisher
	tickerCreator PeriodicTickerChannelCreator

	joinRequests chan joinRequest
	hydrated     chan hydration
	removeRoom   chan *roomActor
	countReqs    chan chan int
	done         chan struct{}
}

func NewLobby(machine *Machine, store RoomStore, events EventPublisher, tickerCreator PeriodicTickerChannelCreator) *Lobby {
	return &Lobby{
		rooms:         map[string]*roomActor{},
		machine:       machine,
		store:         store,
		events:        events,
		tickerCreator: tickerCreator,
		joinRequests:  make(chan joinRequest, 256),
		hydrated:      make(chan hydration, 32),
		removeRoom:    make(chan *roomActor, 32),
		countReqs:     make(chan chan int),
		done:          make(chan struct{}),
	}
}

// Join attaches s to the room, starting its actor if needed. On success the session is
// registered with the actor and ready for its pumps.
func (l *Lobby) Join(ctx context.Context, roomID string, s *Session) error {
	req := newJoinRequest(roomID, s)
	select {
	case l.joinRequests <- req:
	case <-l.done:
		return domain.ErrServerBusy
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-req.errChan:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *Lobby) RemoveRoom(a *roomActor) {
	select {
	case l.removeRoom <- a:
	case <-l.done:
	}
}

// ActiveRooms returns how many room actors are running.
func (l *Lobby) ActiveRooms(ctx context.Context) int {
	resp := make(chan int, 1)
	select {
	case l.countReqs <- resp:
		return <-resp
	case <-l.done:
		return 0
	case <-ctx.Done():
		return -1
	}
}

func (l *Lobby) LobbyActor(ctx context.Context, started chan struct{}) {
	ticker, stopTicker := l.tickerCreator.Create(time.Second)
	pingTicker, stopPing := l.tickerCreator.Create(time.Second * 30)
	defer stopTicker()
	defer stopPing()

	close(started)

	for {
		select {
		case <-ctx.Done():
			close(l.done)
			for _, r := range l.rooms {
				r.Stop()
			}
			return

		case now := <-ticker:
			for _, r := range l.rooms {
				r.Tick(now)
			}

		case <-pingTicker:
			for _, r := range l.rooms {
				r.PingPlayers()
			}

		case req := <-l.joinRequests:
			l.handleJoinReq(req)

		case h := <-l.hydrated:
			l.handleHydrated(h)

		case r := <-l.removeRoom:
			if l.rooms[r.id] == r {
				delete(l.rooms, r.id)
			}
			l.redispatch(r)

		case resp := <-l.countReqs:
			resp <- len(l.rooms)
		}
	}
}

// liveRoom returns the running actor for id. An actor that already finished is dropped so the
// next join hydrates a fresh one.
func (l *Lobby) liveRoom(id string) (*roomActor, bool) {
	room, ok := l.rooms[id]
	if !ok {
		return nil, false
	}
	select {
	case <-room.done:
		delete(l.rooms, id)
		l.redispatch(room)
		return nil, false
	default:
		return room, true
	}
}

// redispatch hands joins that reached a finished actor after its final drain back to the
// hydration path.
func (l *Lobby) redispatch(dead *roomActor) {
	for {
		select {
		case req := <-dead.joinRequests:
			go l.hydrate(req)
		default:
			return
		}
	}
}

func (l *Lobby) handleJoinReq(req joinRequest) {
	if room, ok := l.liveRoom(req.roomID); ok {
		room.RequestJoin(req)
		return
	}
	go l.hydrate(req)
}

// hydrate loads the room outside the lobby goroutine so a slow store never stalls the clock.
func (l *Lobby) hydrate(req joinRequest) {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	room, err := l.store.Get(ctx, req.roomID)
	if err != nil {
		req.errChan <- err
		return
	}
	select {
	case l.hydrated <- hydration{room: room, req: req}:
	case <-l.done:
		req.errChan <- domain.ErrServerBusy
	}
}

func (l *Lobby) handleHydrated(h hydration) {
	room, ok := l.liveRoom(h.room.ID)
	if !ok {
		room = newRoomActor(h.room, l.machine, l.store, l.events, l)
		l.rooms[h.room.ID] = room
		go room.GameLoop()
		log.Debug().Str("room", h.room.ID).Msg("room actor started")
	}
	room.RequestJoin(h.req)
}
