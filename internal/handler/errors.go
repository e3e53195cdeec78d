// Package handler provides the HTTP handlers of the secret friend API.
package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"secret-friend/internal/pkg/lock"
	"secret-friend/internal/service"
)

// Error codes that are not tied to a service error.
const (
	CodeInvalidRequestBody = "invalid_request_body"
	CodeInternal           = "internal_error"
	CodeTimeout            = "request_timeout"
)

// ErrorBody is the envelope of every error response.
type ErrorBody struct {
	Detail ErrorDetail `json:"detail"`
}

// ErrorDetail carries a stable machine code and a human message.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorMapping struct {
	err    error
	status int
	code   string
}

// errorMappings is checked in order with errors.Is.
var errorMappings = []errorMapping{
	{service.ErrAdminPasswordRequired, http.StatusUnauthorized, "missing_admin_password"},
	{service.ErrInvalidAdminPassword, http.StatusUnauthorized, "invalid_admin_password"},
	{service.ErrMasterPasswordRequired, http.StatusUnauthorized, "missing_master_password"},
	{service.ErrInvalidMasterPassword, http.StatusUnauthorized, "invalid_master_password"},

	{service.ErrValidation, http.StatusBadRequest, "validation_error"},
	{service.ErrInsufficientParticipants, http.StatusBadRequest, "game_min_participants"},
	{service.ErrDuplicateName, http.StatusBadRequest, "duplicate_participant_names"},
	{service.ErrNoParticipantsToAdd, http.StatusBadRequest, "no_participants_to_add"},
	{service.ErrPersonUnavailable, http.StatusBadRequest, "person_not_found"},
	{service.ErrPersonAlreadyInGame, http.StatusBadRequest, "person_already_in_game"},
	{service.ErrDuplicatePerson, http.StatusBadRequest, "name_duplicate"},

	{service.ErrGameNotFound, http.StatusNotFound, "game_not_found"},
	{service.ErrParticipantNotFound, http.StatusNotFound, "participant_not_found"},
	{service.ErrTokenNotFound, http.StatusNotFound, "token_not_found"},
	{service.ErrLinkNotFound, http.StatusNotFound, "link_not_found"},
	{service.ErrPersonNotFound, http.StatusNotFound, "person_not_found"},

	{service.ErrGameInactive, http.StatusConflict, "game_inactive"},
	{service.ErrRevealsExist, http.StatusConflict, "game_reveal_conflict"},
	{service.ErrNotDrawable, http.StatusConflict, "assignment_not_ready"},
	{service.ErrAlreadyRevealed, http.StatusConflict, "assignment_already_viewed"},
}

// RespondError writes err as an error envelope. Unknown errors are logged and
// reported without their message.
func RespondError(c *gin.Context, err error) {
	status, body := errorResponse(err)
	if status >= http.StatusInternalServerError {
		log.Error().
			Err(err).
			Str("method", c.Request.Method).
			Str("route", c.FullPath()).
			Msg("Request failed")
	}
	c.AbortWithStatusJSON(status, body)
}

// errorResponse maps err to a status code and envelope.
func errorResponse(err error) (int, ErrorBody) {
	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			return m.status, newErrorBody(m.code, err.Error())
		}
	}

	switch {
	case errors.Is(err, service.ErrInvalidAssignmentState):
		return http.StatusInternalServerError, newErrorBody("invalid_assignment_state", "Invalid assignment state")
	case errors.Is(err, lock.ErrLockTimeout), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, newErrorBody(CodeTimeout, "Request timed out, try again")
	default:
		return http.StatusInternalServerError, newErrorBody(CodeInternal, "Internal server error")
	}
}

func newErrorBody(code, message string) ErrorBody {
	return ErrorBody{Detail: ErrorDetail{Code: code, Message: message}}
}

func badRequest(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, newErrorBody(CodeInvalidRequestBody, message))
}
