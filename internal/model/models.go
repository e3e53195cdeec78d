// Package model defines the data models for the secret friend service.
package model

import (
	"strings"
	"time"
)

// Game is a gift-exchange round owned by an organizer.
type Game struct {
	ID                string    `db:"id"`
	Title             string    `db:"title"`
	AdminPasswordHash string    `db:"admin_password_hash"`
	Active            bool      `db:"active"`
	AssignmentVersion int       `db:"assignment_version"`
	AnyRevealed       bool      `db:"any_revealed"`
	CreatedAt         time.Time `db:"created_at"`
	UpdatedAt         time.Time `db:"updated_at"`
}

// Participant is a member of a game. Token is the capability that grants
// access to the participant-facing preview and reveal operations.
type Participant struct {
	ID                    string     `db:"id"`
	GameID                string     `db:"game_id"`
	PersonID              *string    `db:"person_id"`
	Name                  string     `db:"name"`
	Token                 string     `db:"token"`
	Active                bool       `db:"active"`
	Viewed                bool       `db:"viewed"`
	ViewedAt              *time.Time `db:"viewed_at"`
	AssignedParticipantID *string    `db:"assigned_participant_id"`
	Position              int        `db:"position"`
	CreatedAt             time.Time  `db:"created_at"`
}

// Person is an entry of the shared people directory.
type Person struct {
	ID     string `db:"id" json:"id"`
	Name   string `db:"name" json:"name"`
	Active bool   `db:"active" json:"active"`
}

// GameAggregate is a game together with its participants, in creation order.
// Stores load and persist it as one unit.
type GameAggregate struct {
	Game         Game
	Participants []*Participant
}

// GameSummary is a compact listing entry.
type GameSummary struct {
	GameID           string    `json:"game_id"`
	Title            string    `json:"title"`
	CreatedAt        time.Time `json:"created_at"`
	AnyRevealed      bool      `json:"any_revealed"`
	Active           bool      `json:"active"`
	ParticipantCount int       `json:"participant_count"`
}

// Participant returns the participant with the given ID, or nil.
func (a *GameAggregate) Participant(id string) *Participant {
	for _, p := range a.Participants {
		if p.ID == id {
			return p
		}
	}
	return nil
}

// ParticipantByToken returns the participant holding token, or nil.
func (a *GameAggregate) ParticipantByToken(token string) *Participant {
	for _, p := range a.Participants {
		if p.Token == token {
			return p
		}
	}
	return nil
}

// ActiveParticipantIDs returns the IDs of active participants in creation order.
func (a *GameAggregate) ActiveParticipantIDs() []string {
	ids := make([]string, 0, len(a.Participants))
	for _, p := range a.Participants {
		if p.Active {
			ids = append(ids, p.ID)
		}
	}
	return ids
}

// NextPosition returns the position for a participant appended to the game.
func (a *GameAggregate) NextPosition() int {
	next := 1
	for _, p := range a.Participants {
		if p.Position >= next {
			next = p.Position + 1
		}
	}
	return next
}

// NameKeys returns the uniqueness keys of all participant names.
func (a *GameAggregate) NameKeys() map[string]string {
	keys := make(map[string]string, len(a.Participants))
	for _, p := range a.Participants {
		keys[NameKey(p.Name)] = p.ID
	}
	return keys
}

// Summary builds the listing entry for the aggregate.
func (a *GameAggregate) Summary() GameSummary {
	return GameSummary{
		GameID:           a.Game.ID,
		Title:            a.Game.Title,
		CreatedAt:        a.Game.CreatedAt,
		AnyRevealed:      a.Game.AnyRevealed,
		Active:           a.Game.Active,
		ParticipantCount: len(a.Participants),
	}
}

// Clone returns a deep copy so callers can mutate it without touching the original.
func (a *GameAggregate) Clone() *GameAggregate {
	out := &GameAggregate{Game: a.Game, Participants: make([]*Participant, len(a.Participants))}
	for i, p := range a.Participants {
		cp := *p
		cp.PersonID = cloneString(p.PersonID)
		cp.AssignedParticipantID = cloneString(p.AssignedParticipantID)
		if p.ViewedAt != nil {
			t := *p.ViewedAt
			cp.ViewedAt = &t
		}
		out.Participants[i] = &cp
	}
	return out
}

// NormalizeName collapses runs of whitespace and trims the result.
func NormalizeName(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// NameKey is the case-insensitive uniqueness key of a name.
func NameKey(s string) string {
	return strings.ToLower(NormalizeName(s))
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
