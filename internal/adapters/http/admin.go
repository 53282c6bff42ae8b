package http

import (
	"net/http"

	"github.com/dkeye/rendezvous/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

type AdminHandlers struct {
	svc Admin
}

func (h *AdminHandlers) Rooms(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"rooms": h.svc.Rooms()})
}

func (h *AdminHandlers) Stats(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.Stats())
}

func (h *AdminHandlers) CloseRoom(c *gin.Context) {
	id := domain.RoomID(c.Param("id"))
	if !h.svc.CloseRoom(id) {
		c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
		return
	}
	log.Info().Str("module", "adapters.http").Str("room_id", string(id)).Msg("room closed by admin")
	c.Status(http.StatusNoContent)
}
