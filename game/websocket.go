package game

import (
	"time"

	"github.com/gorilla/websocket"
)

const (
	pongWait   = time.Minute
	writeWait  = 10 * time.Second
	maxMessage = 64 * 1024
)

type websocketConnection struct {
	socket *websocket.Conn
}

func (wc *websocketConnection) Write(data []byte) error {
	wc.socket.SetWriteDeadline(time.Now().Add(writeWait))
	return wc.socket.WriteMessage(websocket.TextMessage, data)
}

func (wc *websocketConnection) Ping() error {
	wc.socket.SetWriteDeadline(time.Now().Add(writeWait))
	return wc.socket.WriteMessage(websocket.PingMessage, nil)
}

func (wc *websocketConnection) Read() ([]byte, bool, error) {
	kind, p, err := wc.socket.ReadMessage()
	return p, kind == websocket.BinaryMessage, err
}

func (wc *websocketConnection) Close(errCode string) {
	wc.socket.SetWriteDeadline(time.Now().Add(writeWait))
	wc.socket.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, errCode))
	wc.socket.Close()
}

func NewWebsocketConnection(conn *websocket.Conn) *websocketConnection {
	conn.SetReadLimit(maxMessage)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(appData string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	return &websocketConnection{conn}
}
