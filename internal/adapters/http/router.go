package http

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/dkeye/rendezvous/internal/app"
	"github.com/dkeye/rendezvous/internal/config"
	"github.com/dkeye/rendezvous/internal/core"
	"github.com/dkeye/rendezvous/internal/domain"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Signaling is the matchmaking surface the public routes depend on.
type Signaling interface {
	Join(clientID domain.ClientID, roomID domain.RoomID) (app.JoinResult, error)
	LeaveQueue(clientID domain.ClientID) error
	Send(roomID domain.RoomID, from, to domain.ClientID, kind domain.Kind, payload domain.Payload) (domain.Message, error)
	Poll(roomID domain.RoomID, to domain.ClientID, after domain.Timestamp) ([]domain.Message, error)
}

// Admin is the inspection surface behind /api/admin.
type Admin interface {
	Rooms() []core.RoomInfo
	Stats() app.Stats
	CloseRoom(roomID domain.RoomID) bool
}

type Service interface {
	Signaling
	Admin
}

const sessionClientKey = "client_id"

func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug().
			Str("module", "adapters.http").
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("request")
	}
}

// BodyLimit caps request bodies at n bytes. Reads past the cap fail with
// *http.MaxBytesError, which the handlers turn into 413.
func BodyLimit(n int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if n > 0 && c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, n)
		}
		c.Next()
	}
}

func BearerAuth(token string) gin.HandlerFunc {
	want := []byte("Bearer " + token)
	return func(c *gin.Context) {
		got := []byte(strings.TrimSpace(c.GetHeader("Authorization")))
		if subtle.ConstantTimeCompare(got, want) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}

func whoAmI(c *gin.Context) {
	session := sessions.Default(c)
	id, _ := session.Get(sessionClientKey).(string)
	if id == "" {
		id = uuid.NewString()
		session.Set(sessionClientKey, id)
		if err := session.Save(); err != nil {
			log.Error().Err(err).Str("module", "adapters.http").Msg("session save failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "session unavailable"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"clientId": id})
}

func SetupRouter(cfg *config.Config, svc Service) *gin.Engine {
	switch cfg.Mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	} else {
		r.Use(RequestLogger())
	}
	r.Use(gin.Recovery())
	r.Use(BodyLimit(cfg.ReadLimit))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	h := &SignalingHandlers{
		svc:     svc,
		limiter: NewSendRateLimiter(cfg.SendRate.Limit, cfg.SendRate.Interval),
	}

	store := cookie.NewStore([]byte(cfg.Secret))
	store.Options(sessions.Options{Path: "/", MaxAge: 3600 * 24 * 7, HttpOnly: true})

	api := r.Group("/api/signaling")
	api.POST("/join", h.Join)
	api.POST("/leave", h.Leave)
	api.POST("/send", h.Send)
	api.GET("/poll", h.Poll)
	api.GET("/whoami", sessions.Sessions("RendezvousSession", store), whoAmI)

	if cfg.Admin.Enabled {
		admin := r.Group("/api/admin", BearerAuth(cfg.Admin.Token))
		ah := &AdminHandlers{svc: svc}
		admin.GET("/rooms", ah.Rooms)
		admin.GET("/stats", ah.Stats)
		admin.DELETE("/rooms/:id", ah.CloseRoom)
	}

	log.Info().Str("module", "adapters.http").Bool("admin", cfg.Admin.Enabled).Int("send_rate_limit", cfg.SendRate.Limit).Msg("router setup")
	return r
}
