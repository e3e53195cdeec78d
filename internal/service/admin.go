package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"secret-friend/internal/config"
	"secret-friend/internal/model"
)

// ExportedParticipant is a participant as written to a backup.
type ExportedParticipant struct {
	ID                    string     `json:"id"`
	PersonID              *string    `json:"person_id"`
	Name                  string     `json:"name"`
	Token                 string     `json:"token"`
	Active                bool       `json:"active"`
	Viewed                bool       `json:"viewed"`
	ViewedAt              *time.Time `json:"viewed_at"`
	AssignedParticipantID *string    `json:"assigned_participant_id"`
	CreatedAt             time.Time  `json:"created_at"`
}

// ExportedGame is a game as written to a backup.
type ExportedGame struct {
	ID                string                `json:"id"`
	Title             string                `json:"title"`
	AdminPasswordHash string                `json:"admin_password_hash"`
	Active            bool                  `json:"active"`
	AssignmentVersion int                   `json:"assignment_version"`
	AnyRevealed       bool                  `json:"any_revealed"`
	CreatedAt         time.Time             `json:"created_at"`
	UpdatedAt         time.Time             `json:"updated_at"`
	Participants      []ExportedParticipant `json:"participants"`
}

// Backup is the full state dump.
type Backup struct {
	ExportedAt time.Time      `json:"exported_at"`
	Games      []ExportedGame `json:"games"`
	People     []model.Person `json:"people"`
}

// AdminService provides installation-wide operations guarded by the master password.
type AdminService struct {
	games  GameStore
	people PeopleStore
	cfg    *config.Config
}

// NewAdminService creates a new AdminService instance.
func NewAdminService(games GameStore, people PeopleStore, cfg *config.Config) *AdminService {
	return &AdminService{games: games, people: people, cfg: cfg}
}

// Export dumps every game, participant and person.
func (s *AdminService) Export(ctx context.Context, masterPassword string) (*Backup, error) {
	if err := authorizeMaster(s.cfg, masterPassword); err != nil {
		return nil, err
	}

	summaries, err := s.games.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list games: %w", err)
	}

	games := make([]ExportedGame, 0, len(summaries))
	for _, summary := range summaries {
		agg, err := s.games.Get(ctx, summary.GameID)
		if err != nil {
			// Deleted since listing.
			if errors.Is(storeError(err), ErrGameNotFound) {
				continue
			}
			return nil, fmt.Errorf("failed to export game %s: %w", summary.GameID, err)
		}
		games = append(games, exportGame(agg))
	}

	people, err := s.people.List(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("failed to list people: %w", err)
	}

	return &Backup{
		ExportedAt: time.Now().UTC(),
		Games:      games,
		People:     people,
	}, nil
}

func exportGame(agg *model.GameAggregate) ExportedGame {
	g := agg.Game
	out := ExportedGame{
		ID:                g.ID,
		Title:             g.Title,
		AdminPasswordHash: g.AdminPasswordHash,
		Active:            g.Active,
		AssignmentVersion: g.AssignmentVersion,
		AnyRevealed:       g.AnyRevealed,
		CreatedAt:         g.CreatedAt,
		UpdatedAt:         g.UpdatedAt,
		Participants:      make([]ExportedParticipant, 0, len(agg.Participants)),
	}
	for _, p := range agg.Participants {
		out.Participants = append(out.Participants, ExportedParticipant{
			ID:                    p.ID,
			PersonID:              p.PersonID,
			Name:                  p.Name,
			Token:                 p.Token,
			Active:                p.Active,
			Viewed:                p.Viewed,
			ViewedAt:              p.ViewedAt,
			AssignedParticipantID: p.AssignedParticipantID,
			CreatedAt:             p.CreatedAt,
		})
	}
	return out
}
