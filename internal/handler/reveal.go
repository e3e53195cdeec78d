package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"secret-friend/internal/service"
)

// RevealHandler serves the participant endpoints, addressed by token.
type RevealHandler struct {
	reveals *service.RevealService
}

// NewRevealHandler creates a new RevealHandler.
func NewRevealHandler(reveals *service.RevealService) *RevealHandler {
	return &RevealHandler{reveals: reveals}
}

// Preview handles GET /api/games/:id/:token.
func (h *RevealHandler) Preview(c *gin.Context) {
	preview, err := h.reveals.Preview(c.Request.Context(), c.Param("id"), c.Param("token"))
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, preview)
}

// Reveal handles POST /api/games/:id/:token/reveal.
func (h *RevealHandler) Reveal(c *gin.Context) {
	revelation, err := h.reveals.Reveal(c.Request.Context(), c.Param("id"), c.Param("token"))
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, revelation)
}
