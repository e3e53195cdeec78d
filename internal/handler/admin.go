package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"secret-friend/internal/service"
)

type addPeopleRequest struct {
	Names []string `json:"names"`
}

// AdminHandler serves the people directory and installation-wide endpoints.
type AdminHandler struct {
	people *service.PeopleService
	admin  *service.AdminService
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(people *service.PeopleService, admin *service.AdminService) *AdminHandler {
	return &AdminHandler{people: people, admin: admin}
}

// ListPeople handles GET /api/people.
func (h *AdminHandler) ListPeople(c *gin.Context) {
	includeInactive, _ := strconv.ParseBool(c.Query("include_inactive"))

	people, err := h.people.List(c.Request.Context(), includeInactive)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, people)
}

// AddPeople handles POST /api/people.
func (h *AdminHandler) AddPeople(c *gin.Context) {
	var req addPeopleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid JSON body. Expected { \"names\": [\"Ana\"] }")
		return
	}

	people, err := h.people.Add(c.Request.Context(), masterPassword(c), req.Names)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, people)
}

// RenamePerson handles PATCH /api/people/:id.
func (h *AdminHandler) RenamePerson(c *gin.Context) {
	var req renameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid JSON body. Expected { \"name\": \"...\" }")
		return
	}

	person, err := h.people.Rename(c.Request.Context(), masterPassword(c), c.Param("id"), req.Name)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, person)
}

// DeactivatePerson handles POST /api/people/:id/deactivate.
func (h *AdminHandler) DeactivatePerson(c *gin.Context) {
	h.setPersonActive(c, false)
}

// ReactivatePerson handles POST /api/people/:id/reactivate.
func (h *AdminHandler) ReactivatePerson(c *gin.Context) {
	h.setPersonActive(c, true)
}

func (h *AdminHandler) setPersonActive(c *gin.Context, active bool) {
	person, err := h.people.SetActive(c.Request.Context(), masterPassword(c), c.Param("id"), active)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, person)
}

// Export handles GET /api/admin/export.
func (h *AdminHandler) Export(c *gin.Context) {
	backup, err := h.admin.Export(c.Request.Context(), masterPassword(c))
	if err != nil {
		RespondError(c, err)
		return
	}
	c.Header("Content-Disposition", "attachment; filename=backup.json")
	c.JSON(http.StatusOK, backup)
}

func masterPassword(c *gin.Context) string {
	return c.GetHeader(HeaderMasterPassword)
}
