package handler

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"secret-friend/internal/service"
)

// Credential headers.
const (
	HeaderAdminPassword  = "X-Admin-Password"
	HeaderMasterPassword = "X-Master-Password"
)

type createGameRequest struct {
	Title         string   `json:"title"`
	AdminPassword string   `json:"admin_password"`
	Participants  []string `json:"participants"`
	PersonIDs     []string `json:"person_ids"`
}

type updateGameRequest struct {
	Title string `json:"title"`
}

type drawRequest struct {
	Force bool `json:"force"`
}

type addParticipantsRequest struct {
	Participants []string `json:"participants"`
}

type addParticipantsByIDsRequest struct {
	PersonIDs []string `json:"person_ids"`
}

type renameRequest struct {
	Name string `json:"name"`
}

// GameHandler serves the organizer endpoints.
type GameHandler struct {
	games *service.GameService
}

// NewGameHandler creates a new GameHandler.
func NewGameHandler(games *service.GameService) *GameHandler {
	return &GameHandler{games: games}
}

// Create handles POST /api/games.
func (h *GameHandler) Create(c *gin.Context) {
	var req createGameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid JSON body")
		return
	}

	res, err := h.games.Create(c.Request.Context(), service.CreateGameInput{
		Title:         req.Title,
		AdminPassword: req.AdminPassword,
		Participants:  req.Participants,
		PersonIDs:     req.PersonIDs,
	})
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

// List handles GET /api/games.
func (h *GameHandler) List(c *gin.Context) {
	games, err := h.games.List(c.Request.Context(), c.GetHeader(HeaderMasterPassword))
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, games)
}

// Status handles GET /api/games/:id.
func (h *GameHandler) Status(c *gin.Context) {
	status, err := h.games.Status(c.Request.Context(), c.Param("id"), adminPassword(c))
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

// Update handles PATCH /api/games/:id.
func (h *GameHandler) Update(c *gin.Context) {
	var req updateGameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid JSON body. Expected { \"title\": \"...\" }")
		return
	}

	status, err := h.games.UpdateTitle(c.Request.Context(), c.Param("id"), adminPassword(c), req.Title)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

// Delete handles DELETE /api/games/:id.
func (h *GameHandler) Delete(c *gin.Context) {
	if err := h.games.Delete(c.Request.Context(), c.Param("id"), adminPassword(c)); err != nil {
		RespondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Deactivate handles POST /api/games/:id/deactivate_game.
func (h *GameHandler) Deactivate(c *gin.Context) {
	h.setActive(c, false)
}

// Reactivate handles POST /api/games/:id/reactivate_game.
func (h *GameHandler) Reactivate(c *gin.Context) {
	h.setActive(c, true)
}

func (h *GameHandler) setActive(c *gin.Context, active bool) {
	status, err := h.games.SetActive(c.Request.Context(), c.Param("id"), adminPassword(c), active)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

// Links handles GET /api/games/:id/links.
func (h *GameHandler) Links(c *gin.Context) {
	links, err := h.games.Links(c.Request.Context(), c.Param("id"), adminPassword(c))
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, links)
}

// Draw handles POST /api/games/:id/draw. The body is optional; force can
// also be passed as a query parameter.
func (h *GameHandler) Draw(c *gin.Context) {
	var req drawRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			badRequest(c, "Invalid JSON body. Expected { \"force\": true|false }")
			return
		}
	}
	if q := c.Query("force"); q != "" {
		force, err := strconv.ParseBool(q)
		if err != nil {
			badRequest(c, "force must be a boolean")
			return
		}
		req.Force = req.Force || force
	}

	res, err := h.games.Draw(c.Request.Context(), c.Param("id"), adminPassword(c), req.Force)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// AddParticipants handles POST /api/games/:id/participants.
func (h *GameHandler) AddParticipants(c *gin.Context) {
	var req addParticipantsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid JSON body. Expected { \"participants\": [\"Ana\"] }")
		return
	}

	added, err := h.games.AddParticipants(c.Request.Context(), c.Param("id"), adminPassword(c), req.Participants)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"participants": added})
}

// AddParticipantsByIDs handles POST /api/games/:id/participants/by_ids.
func (h *GameHandler) AddParticipantsByIDs(c *gin.Context) {
	var req addParticipantsByIDsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid JSON body. Expected { \"person_ids\": [\"...\"] }")
		return
	}

	added, err := h.games.AddParticipantsByIDs(c.Request.Context(), c.Param("id"), adminPassword(c), req.PersonIDs)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"participants": added})
}

// RemoveParticipant handles DELETE /api/games/:id/participants/:pid.
func (h *GameHandler) RemoveParticipant(c *gin.Context) {
	err := h.games.RemoveParticipant(c.Request.Context(), c.Param("id"), adminPassword(c), c.Param("pid"))
	if err != nil {
		RespondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// RenameParticipant handles PATCH /api/games/:id/participants/:pid.
func (h *GameHandler) RenameParticipant(c *gin.Context) {
	var req renameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid JSON body. Expected { \"name\": \"...\" }")
		return
	}

	p, err := h.games.RenameParticipant(c.Request.Context(), c.Param("id"), adminPassword(c), c.Param("pid"), req.Name)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// DeactivateToken handles POST /api/games/:id/:token/deactivate.
func (h *GameHandler) DeactivateToken(c *gin.Context) {
	h.setTokenActive(c, false)
}

// ReactivateToken handles POST /api/games/:id/:token/reactivate.
func (h *GameHandler) ReactivateToken(c *gin.Context) {
	h.setTokenActive(c, true)
}

func (h *GameHandler) setTokenActive(c *gin.Context, active bool) {
	p, err := h.games.SetParticipantActive(c.Request.Context(), c.Param("id"), adminPassword(c), c.Param("token"), active)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func adminPassword(c *gin.Context) string {
	return c.GetHeader(HeaderAdminPassword)
}
