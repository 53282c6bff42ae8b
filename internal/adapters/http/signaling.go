package http

import (
	"math"
	"net/http"
	"strconv"

	"github.com/dkeye/rendezvous/internal/app"
	"github.com/dkeye/rendezvous/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

type SignalingHandlers struct {
	svc     Signaling
	limiter *SendRateLimiter
}

type joinRequest struct {
	ClientID string `json:"clientId" binding:"required"`
	RoomID   string `json:"roomId"`
}

type leaveRequest struct {
	ClientID string `json:"clientId" binding:"required"`
}

type sendRequest struct {
	RoomID  string         `json:"roomId" binding:"required"`
	From    string         `json:"from" binding:"required"`
	To      string         `json:"to" binding:"required"`
	Kind    string         `json:"kind" binding:"required,oneof=offer answer ice leave"`
	// Payload is optional; an absent payload is stored as null.
	Payload domain.Payload `json:"payload"`
}

type pollQuery struct {
	RoomID string `form:"roomId" binding:"required"`
	To     string `form:"to" binding:"required"`
	After  string `form:"after"`
}

func joinResponse(res app.JoinResult) gin.H {
	if res.Mode == app.ModeRoom {
		return gin.H{
			"status":       res.Status,
			"participants": res.Participants,
			"others":       res.Others,
		}
	}
	if res.Status == app.StatusWaiting {
		return gin.H{"status": res.Status}
	}
	return gin.H{
		"status":    res.Status,
		"roomId":    res.RoomID,
		"peerId":    res.PeerID,
		"initiator": res.Initiator,
	}
}

func (h *SignalingHandlers) Join(c *gin.Context) {
	var req joinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, badRequest(err))
		return
	}
	res, err := h.svc.Join(domain.ClientID(req.ClientID), domain.RoomID(req.RoomID))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, joinResponse(res))
}

func (h *SignalingHandlers) Leave(c *gin.Context) {
	var req leaveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, badRequest(err))
		return
	}
	if err := h.svc.LeaveQueue(domain.ClientID(req.ClientID)); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *SignalingHandlers) Send(c *gin.Context) {
	var req sendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, badRequest(err))
		return
	}
	from := domain.ClientID(req.From)
	if !h.limiter.Allow(from) {
		log.Warn().Str("module", "adapters.http").Str("client_id", req.From).Str("room_id", req.RoomID).Msg("send rate limited")
		abortWithError(c, ErrRateLimited)
		return
	}
	_, err := h.svc.Send(domain.RoomID(req.RoomID), from, domain.ClientID(req.To), domain.Kind(req.Kind), req.Payload)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *SignalingHandlers) Poll(c *gin.Context) {
	var q pollQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		abortWithError(c, badRequest(err))
		return
	}
	msgs, err := h.svc.Poll(domain.RoomID(q.RoomID), domain.ClientID(q.To), parseAfter(q.After))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// parseAfter reads the poll cursor leniently: anything that is not a finite
// number means "from the beginning". Fractions are floored, which keeps
// ts > after exact for integer timestamps.
func parseAfter(s string) domain.Timestamp {
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	f = math.Floor(f)
	switch {
	case f >= math.MaxInt64:
		return domain.Timestamp(math.MaxInt64)
	case f <= math.MinInt64:
		return domain.Timestamp(math.MinInt64)
	}
	return domain.Timestamp(f)
}
