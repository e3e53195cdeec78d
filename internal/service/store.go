package service

import (
	"context"

	"secret-friend/internal/model"
)

// GameStore persists games with their participants.
//
// Update must run fn against the current state of the game while excluding
// concurrent updates of the same game, and persist fn's changes only when fn
// returns nil.
type GameStore interface {
	Create(ctx context.Context, agg *model.GameAggregate) error
	Get(ctx context.Context, gameID string) (*model.GameAggregate, error)
	List(ctx context.Context) ([]model.GameSummary, error)
	Update(ctx context.Context, gameID string, fn func(*model.GameAggregate) error) error
	Delete(ctx context.Context, gameID string) error
}

// PeopleStore persists the shared people directory.
type PeopleStore interface {
	List(ctx context.Context, includeInactive bool) ([]model.Person, error)
	GetByIDs(ctx context.Context, ids []string) ([]model.Person, error)
	Create(ctx context.Context, people []model.Person) error
	Rename(ctx context.Context, id, name string) (*model.Person, error)
	SetActive(ctx context.Context, id string, active bool) (*model.Person, error)
}
