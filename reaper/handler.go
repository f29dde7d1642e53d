package reaper

import (
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

type Report struct {
	Success   bool     `json:"success"`
	Timestamp string   `json:"timestamp,omitempty"`
	Results   *Results `json:"results,omitempty"`
	Error     string   `json:"error,omitempty"`
}

// ManualCleanupHandler runs one sweep on demand and returns the per-room report. When adminToken
// is set the request must carry it in X-Admin-Token.
func (r *Reaper) ManualCleanupHandler(adminToken string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if adminToken != "" {
			given := ctx.GetHeader("X-Admin-Token")
			if subtle.ConstantTimeCompare([]byte(given), []byte(adminToken)) != 1 {
				ctx.String(http.StatusUnauthorized, "unauthenticated")
				ctx.Abort()
				return
			}
		}

		log.Info().Str("ip", ctx.ClientIP()).Msg("manual room cleanup triggered")
		results, err := r.Sweep(ctx.Request.Context())
		if err != nil {
			log.Error().Err(err).Msg("manual room cleanup failed")
			ctx.JSON(http.StatusInternalServerError, Report{Success: false, Error: err.Error()})
			return
		}

		ctx.JSON(http.StatusOK, Report{
			Success:   true,
			Timestamp: r.clock().UTC().Format(time.RFC3339Nano),
			Results:   &results,
		})
	}
}
