// Package client is a Go client for the room websocket. It keeps a game.LocalView current by
// reducing every snapshot the server sends, and emits heartbeats while it runs.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/lishuceo/draw-and-guess/domain"
	"github.com/lishuceo/draw-and-guess/game"
	"github.com/rs/zerolog/log"
)

const (
	DefaultHeartbeatInterval = 30 * time.Second
	writeWait                = 10 * time.Second
)

var (
	ErrRemoved        = errors.New("player-removed")
	ErrServerShutdown = errors.New("server-shutdown")
)

// codeErrors maps the server's kebab-case codes back to sentinel errors.
var codeErrors = map[string]error{
	domain.ErrRoomNotFound.Error():  domain.ErrRoomNotFound,
	domain.ErrRoomFull.Error():      domain.ErrRoomFull,
	domain.ErrWrongPasscode.Error(): domain.ErrWrongPasscode,
	domain.ErrServerBusy.Error():    domain.ErrServerBusy,
	ErrRemoved.Error():              ErrRemoved,
	ErrServerShutdown.Error():       ErrServerShutdown,
}

func errorForCode(code string) error {
	if err, ok := codeErrors[code]; ok {
		return err
	}
	return fmt.Errorf("server error: %s", code)
}

type Client struct {
	conn    *websocket.Conn
	writeMu sync.Mutex

	mu   sync.Mutex
	view game.LocalView

	// OnView is called from Run after every snapshot.
	OnView func(game.LocalView)
	// OnError is called from Run for error frames that do not end the session.
	OnError           func(code string)
	HeartbeatInterval time.Duration
}

// Dial opens the room websocket. selfID is the caller's guest id, used to derive host and
// drawer flags. A rejected join is reported with the matching domain error.
func Dial(ctx context.Context, url string, header http.Header, selfID string) (*Client, error) {
	conn, res, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if err != nil {
		if res != nil && res.StatusCode != http.StatusSwitchingProtocols {
			body, _ := io.ReadAll(io.LimitReader(res.Body, 256))
			res.Body.Close()
			if code := strings.TrimSpace(string(body)); code != "" {
				return nil, errorForCode(code)
			}
			return nil, fmt.Errorf("dial %s: %s", url, res.Status)
		}
		return nil, err
	}
	return &Client{
		conn:              conn,
		view:              game.NewLocalView(selfID),
		HeartbeatInterval: DefaultHeartbeatInterval,
	}, nil
}

// View returns the latest reduced view.
func (c *Client) View() game.LocalView {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.view
}

// Run reads frames until the server closes the session or ctx is cancelled. It returns nil
// after a voluntary leave or cancellation.
func (c *Client) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go c.heartbeat(ctx)
	go func() {
		<-ctx.Done()
		c.conn.Close()
	}()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) {
				if closeErr.Text == "" || closeErr.Text == "left" {
					return nil
				}
				return errorForCode(closeErr.Text)
			}
			return err
		}

		var frame game.ServerFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			log.Warn().Err(err).Msg("dropping malformed server frame")
			continue
		}
		switch frame.Type {
		case game.FrameSnapshot:
			if frame.Room == nil {
				continue
			}
			c.apply(*frame.Room, true)
		case game.FrameError:
			if c.OnError != nil {
				c.OnError(frame.Code)
			}
		}
	}
}

func (c *Client) apply(room domain.Room, exists bool) {
	c.mu.Lock()
	c.view = game.Reduce(c.view, room, exists)
	v := c.view
	c.mu.Unlock()

	if c.OnView != nil {
		c.OnView(v)
	}
}

func (c *Client) heartbeat(ctx context.Context) {
	interval := c.HeartbeatInterval
	if interval <= 0 {
		interval = DefaultHeartbeatInterval
	}
	t := time.NewTicker(interval)
	defer t.Stop()

	if err := c.Heartbeat(); err != nil {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := c.Heartbeat(); err != nil {
				log.Debug().Err(err).Msg("heartbeat failed")
				return
			}
		}
	}
}

func (c *Client) send(a game.Action) error {
	data, err := json.Marshal(a)
	if err != nil {
		return err
	}
	return c.write(websocket.TextMessage, data)
}

func (c *Client) write(kind int, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(kind, data)
}

func (c *Client) Start() error { return c.send(game.Action{Type: game.ActionStart}) }

func (c *Client) ChooseWord(index int) error {
	return c.send(game.Action{Type: game.ActionChooseWord, Index: index})
}

func (c *Client) SendMessage(text string) error {
	return c.send(game.Action{Type: game.ActionMessage, Text: text})
}

// Draw sends a stroke as a binary frame.
func (c *Client) Draw(s domain.Stroke) error {
	return c.write(websocket.BinaryMessage, game.EncodeStroke(s))
}

func (c *Client) Clear() error     { return c.send(game.Action{Type: game.ActionClear}) }
func (c *Client) NextRound() error { return c.send(game.Action{Type: game.ActionNextRound}) }
func (c *Client) Rematch() error   { return c.send(game.Action{Type: game.ActionRematch}) }

func (c *Client) TransferHost(playerID string) error {
	return c.send(game.Action{Type: game.ActionTransferHost, PlayerID: playerID})
}

func (c *Client) Heartbeat() error { return c.send(game.Action{Type: game.ActionHeartbeat}) }

// Leave asks the server to remove the player. Run returns nil once the server confirms.
func (c *Client) Leave() error { return c.send(game.Action{Type: game.ActionLeave}) }

func (c *Client) Close() error {
	return c.conn.Close()
}
