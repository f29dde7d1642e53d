package game

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"slices"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"
	"github.com/invopop/jsonschema"
	"github.com/lishuceo/draw-and-guess/domain"
	"github.com/rs/zerolog/log"
)

var (
	ErrUnauthenticatedStr      = "unauthenticated"
	ErrInvalidRequestFormatStr = "invalid-request-format"
	ErrUnknownStr              = "unknown-error"
)

const joinTimeout = 5 * time.Second

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validationMessage turns the first validator failure into a client-readable sentence.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return ErrInvalidRequestFormatStr
	}
	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "min":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s cannot exceed %s", fe.Field(), fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of %s", fe.Field(), strings.ReplaceAll(fe.Param(), " ", ", "))
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}

type RoomJoiner interface {
	Join(ctx context.Context, roomID string, s *Session) error
}

type GameHandler struct {
	lobby    RoomJoiner
	store    RoomStore
	machine  *Machine
	hasher   PasscodeHasher
	events   EventPublisher
	upgrader websocket.Upgrader
	schema   []byte
}

func NewGameHandler(lobby RoomJoiner, store RoomStore, machine *Machine, hasher PasscodeHasher, events EventPublisher, allowedOrigins []string) *GameHandler {
	return &GameHandler{
		lobby:   lobby,
		store:   store,
		machine: machine,
		hasher:  hasher,
		events:  events,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || slices.Contains(allowedOrigins, origin)
			},
		},
		schema: roomSchema(),
	}
}

func roomSchema() []byte {
	reflector := jsonschema.Reflector{AllowAdditionalProperties: true}
	schema := reflector.Reflect(new(ServerFrame))
	schema.Title = "Draw and Guess server frame"
	schema.Description = "Frames sent by the server over the room and lobby websockets"
	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		panic(err)
	}
	return data
}

func playerFromContext(ctx *gin.Context) (domain.Player, bool) {
	id := ctx.GetString("id")
	if id == "" {
		return domain.Player{}, false
	}
	name := ctx.GetString("name")
	if name == "" {
		name = "Guest"
	}
	return domain.Player{ID: id, Name: name}, true
}

func (h *GameHandler) CreateRoomHandler(ctx *gin.Context) {
	player, ok := playerFromContext(ctx)
	if !ok {
		ctx.String(http.StatusUnauthorized, ErrUnauthenticatedStr)
		ctx.Abort()
		return
	}

	var settings RoomSettings
	if err := ctx.ShouldBindJSON(&settings); err != nil {
		ctx.String(http.StatusBadRequest, ErrInvalidRequestFormatStr)
		ctx.Abort()
		return
	}
	settings.Name = strings.TrimSpace(settings.Name)
	if err := validate.Struct(settings); err != nil {
		ctx.String(http.StatusBadRequest, validationMessage(err))
		ctx.Abort()
		return
	}

	passcodeHash := ""
	if settings.Passcode != "" {
		hash, err := h.hasher.Hash(settings.Passcode)
		if err != nil {
			log.Error().Err(err).Msg("failed to hash room passcode")
			ctx.String(http.StatusInternalServerError, ErrUnknownStr)
			ctx.Abort()
			return
		}
		passcodeHash = hash
	}

	reqCtx := ctx.Request.Context()
	room := h.machine.NewRoom(settings, player, passcodeHash)
	id, err := h.store.Create(reqCtx, room)
	if err != nil {
		log.Error().Err(err).Str("player", player.ID).Msg("failed to create room")
		ctx.String(http.StatusInternalServerError, ErrUnknownStr)
		ctx.Abort()
		return
	}

	if h.events != nil {
		e := domain.Event{Type: domain.EventRoomCreated, RoomID: id, PlayerCount: 1, Timestamp: room.CreatedAt}
		if err := h.events.Publish(reqCtx, e); err != nil {
			log.Warn().Err(err).Str("room", id).Msg("failed to publish room.created")
		}
	}
	log.Info().Str("room", id).Str("host", player.ID).Msg("room created")
	ctx.JSON(http.StatusCreated, gin.H{"id": id})
}

func (h *GameHandler) ListRoomsHandler(ctx *gin.Context) {
	rooms, err := h.store.ListWhere(ctx.Request.Context(), domain.StatusWaiting)
	if err != nil {
		log.Error().Err(err).Msg("failed to list rooms")
		ctx.String(http.StatusInternalServerError, ErrUnknownStr)
		ctx.Abort()
		return
	}
	summaries := make([]RoomSummary, 0, len(rooms))
	for _, r := range rooms {
		summaries = append(summaries, Summarize(r))
	}
	ctx.JSON(http.StatusOK, summaries)
}

func (h *GameHandler) SchemaHandler(ctx *gin.Context) {
	ctx.Data(http.StatusOK, "application/schema+json", h.schema)
}

// admit checks capacity and passcode before the upgrade so a rejected player gets a plain
// HTTP status. Players already in the room are reconnecting and skip both checks.
func (h *GameHandler) admit(ctx context.Context, roomID, playerID, passcode string) (int, string) {
	room, err := h.store.Get(ctx, roomID)
	if err != nil {
		if errors.Is(err, domain.ErrRoomNotFound) {
			return http.StatusNotFound, domain.ErrRoomNotFound.Error()
		}
		log.Error().Err(err).Str("room", roomID).Msg("failed to load room")
		return http.StatusInternalServerError, ErrUnknownStr
	}
	if room.PlayerIndex(playerID) >= 0 {
		return http.StatusOK, ""
	}
	if room.MaxPlayers > 0 && len(room.Players) >= room.MaxPlayers {
		return http.StatusConflict, domain.ErrRoomFull.Error()
	}
	if room.PasscodeHash != "" {
		match, err := h.hasher.Compare(room.PasscodeHash, passcode)
		if err != nil {
			log.Error().Err(err).Str("room", roomID).Msg("failed to compare passcode")
			return http.StatusInternalServerError, ErrUnknownStr
		}
		if !match {
			return http.StatusForbidden, domain.ErrWrongPasscode.Error()
		}
	}
	return http.StatusOK, ""
}

func (h *GameHandler) JoinRoomHandler(ctx *gin.Context) {
	player, ok := playerFromContext(ctx)
	if !ok {
		ctx.String(http.StatusUnauthorized, ErrUnauthenticatedStr)
		ctx.Abort()
		return
	}
	roomID := ctx.Param("roomid")

	if status, code := h.admit(ctx.Request.Context(), roomID, player.ID, ctx.Query("passcode")); status != http.StatusOK {
		ctx.String(status, code)
		ctx.Abort()
		return
	}

	conn, err := h.upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
	if err != nil {
		log.Warn().Err(err).Str("ip", ctx.ClientIP()).Msg("websocket upgrade failed")
		return
	}

	session := NewSession(player, NewWebsocketConnection(conn))
	session.unsubscribe = h.store.Subscribe(roomID, session.observe)

	joinCtx, cancel := context.WithTimeout(context.Background(), joinTimeout)
	defer cancel()
	if err := h.lobby.Join(joinCtx, roomID, session); err != nil {
		session.unsubscribe()
		code := ErrUnknownStr
		switch {
		case errors.Is(err, domain.ErrRoomNotFound), errors.Is(err, domain.ErrRoomFull), errors.Is(err, domain.ErrServerBusy):
			code = err.Error()
		default:
			log.Error().Err(err).Str("room", roomID).Msg("join failed")
		}
		session.socket.Write(MakeErrorFrame(code))
		session.socket.Close(code)
		return
	}

	go session.WritePump()
	go session.ReadPump()
}

func (h *GameHandler) LobbyHandler(ctx *gin.Context) {
	player, ok := playerFromContext(ctx)
	if !ok {
		ctx.String(http.StatusUnauthorized, ErrUnauthenticatedStr)
		ctx.Abort()
		return
	}

	conn, err := h.upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
	if err != nil {
		log.Warn().Err(err).Str("ip", ctx.ClientIP()).Msg("websocket upgrade failed")
		return
	}

	session := NewSession(player, NewWebsocketConnection(conn))
	session.unsubscribe = h.store.SubscribeWhere(domain.StatusWaiting, func(rooms []domain.Room) {
		session.Send(MakeLobbyFrame(rooms))
	})
	if rooms, err := h.store.ListWhere(ctx.Request.Context(), domain.StatusWaiting); err == nil {
		session.Send(MakeLobbyFrame(rooms))
	}

	go session.WritePump()
	go keepAlive(session, 30*time.Second)
	go session.ReadPump()
}

// keepAlive pings a session that no room actor owns.
func keepAlive(s *Session, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			s.Ping()
		case <-s.Done():
			return
		}
	}
}
