package auth

import (
	"errors"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"github.com/lishuceo/draw-and-guess/domain"
	"github.com/rs/zerolog/log"
)

var (
	ErrMissingTokenStr         = "missing-token"
	ErrExpiredTokenStr         = "expired-token"
	ErrInvalidRequestFormatStr = "bad-request-format"
	ErrInvalidNameStr          = "invalid-name"
	ErrUnknownStr              = "unknown-error"
)

const maxNameLength = 24

type authHandler struct {
	tokens       TokenManager
	ids          IdGenerator
	cookieMaxAge time.Duration
	clock        func() time.Time
}

func NewAuthHandler(tokens TokenManager, ids IdGenerator, cookieMaxAge time.Duration) *authHandler {
	return &authHandler{tokens: tokens, ids: ids, cookieMaxAge: cookieMaxAge, clock: time.Now}
}

// RequireAuthMiddleware verifies the token cookie and stores the guest id and name in the
// gin context. Tampered tokens are answered slowly.
func (ah *authHandler) RequireAuthMiddleware(trollTime time.Duration) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		token, err := ctx.Cookie("token")
		if err != nil {
			ctx.String(http.StatusUnauthorized, ErrMissingTokenStr)
			ctx.Abort()
			return
		}
		id, name, err := ah.tokens.Verify(token)
		if err != nil {
			switch {
			case errors.Is(err, domain.ErrInvalidSigningAlg), errors.Is(err, domain.ErrInvalidTokenSignature), errors.Is(err, domain.ErrCorruptedToken):
				log.Warn().Err(err).Str("ip", ctx.ClientIP()).Msg("rejected tampered token")
				time.Sleep(trollTime)
				ctx.Status(http.StatusInternalServerError)
				ctx.Abort()
			case errors.Is(err, domain.ErrExpiredToken):
				ctx.String(http.StatusUnauthorized, ErrExpiredTokenStr)
				ctx.Abort()
			default:
				log.Error().Err(err).Msg("token verification failed")
				ctx.String(http.StatusInternalServerError, ErrUnknownStr)
				ctx.Abort()
			}
			return
		}

		ctx.Set("id", id)
		ctx.Set("name", name)
		ctx.Next()
	}
}

// GuestHandler issues a fresh guest identity. A caller that already holds a valid token keeps
// its id and only changes its display name.
func (ah *authHandler) GuestHandler(ctx *gin.Context) {
	var body struct {
		Name string `json:"name"`
	}
	if err := ctx.ShouldBindJSON(&body); err != nil {
		ctx.String(http.StatusBadRequest, ErrInvalidRequestFormatStr)
		ctx.Abort()
		return
	}
	name := strings.TrimSpace(body.Name)
	if name == "" || utf8.RuneCountInString(name) > maxNameLength {
		ctx.String(http.StatusBadRequest, ErrInvalidNameStr)
		ctx.Abort()
		return
	}

	id := ""
	if existing, err := ctx.Cookie("token"); err == nil {
		if prev, _, err := ah.tokens.Verify(existing); err == nil {
			id = prev
		}
	}
	if id == "" {
		id = ah.ids.Generate()
	}

	token, err := ah.tokens.Generate(id, name, ah.clock())
	if err != nil {
		log.Error().Err(err).Msg("failed to generate guest token")
		ctx.String(http.StatusInternalServerError, ErrUnknownStr)
		ctx.Abort()
		return
	}

	ctx.SetSameSite(http.SameSiteNoneMode)
	ctx.SetCookie("token", token, int(ah.cookieMaxAge.Seconds()), "/", "", true, true)
	ctx.JSON(http.StatusOK, gin.H{"id": id, "name": name})
}

func (ah *authHandler) LogoutHandler(ctx *gin.Context) {
	ctx.SetCookie("token", "", -1, "/", "", true, true)
	ctx.Status(http.StatusOK)
}
