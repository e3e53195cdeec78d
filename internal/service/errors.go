// Package service provides business logic implementations.
package service

import (
	"errors"

	"secret-friend/internal/repository"
)

// Authorization errors.
var (
	ErrAdminPasswordRequired  = errors.New("missing admin password")
	ErrInvalidAdminPassword   = errors.New("invalid admin password")
	ErrMasterPasswordRequired = errors.New("missing master password")
	ErrInvalidMasterPassword  = errors.New("invalid master password")
)

// Game and participant errors.
var (
	ErrGameNotFound             = errors.New("game not found")
	ErrGameInactive             = errors.New("game is inactive")
	ErrValidation               = errors.New("invalid input")
	ErrInsufficientParticipants = errors.New("not enough participants")
	ErrDuplicateName            = errors.New("duplicate participant name")
	ErrRevealsExist             = errors.New("a participant already revealed the current draw")
	ErrParticipantNotFound      = errors.New("participant not found")
	ErrTokenNotFound            = errors.New("token not found")
	ErrNoParticipantsToAdd      = errors.New("no participants to add")
	ErrPersonUnavailable        = errors.New("person not found or inactive")
	ErrPersonAlreadyInGame      = errors.New("person already in game")
)

// Reveal errors.
var (
	ErrLinkNotFound           = errors.New("link not found")
	ErrNotDrawable            = errors.New("draw not performed yet")
	ErrAlreadyRevealed        = errors.New("assignment already revealed")
	ErrInvalidAssignmentState = errors.New("invalid assignment state")
)

// People directory errors.
var (
	ErrPersonNotFound  = errors.New("person not found")
	ErrDuplicatePerson = errors.New("person name already taken")
)

// storeError translates repository errors into service errors.
func storeError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrGameNotFound):
		return ErrGameNotFound
	case errors.Is(err, repository.ErrNameTaken):
		return ErrDuplicateName
	case errors.Is(err, repository.ErrPersonNotFound):
		return ErrPersonNotFound
	default:
		return err
	}
}
