package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"secret-friend/internal/config"
	"secret-friend/internal/model"
	"secret-friend/internal/repository"
)

// PeopleService manages the shared people directory that games can draw
// participants from. Mutations require the master password when one is set.
type PeopleService struct {
	people PeopleStore
	cfg    *config.Config
}

// NewPeopleService creates a new PeopleService instance.
func NewPeopleService(people PeopleStore, cfg *config.Config) *PeopleService {
	return &PeopleService{people: people, cfg: cfg}
}

// List returns the directory ordered by name.
func (s *PeopleService) List(ctx context.Context, includeInactive bool) ([]model.Person, error) {
	people, err := s.people.List(ctx, includeInactive)
	if err != nil {
		return nil, fmt.Errorf("failed to list people: %w", err)
	}
	return people, nil
}

// Add inserts people by name. Blank entries are skipped; a duplicate within
// the batch or against the directory rejects the whole batch.
func (s *PeopleService) Add(ctx context.Context, masterPassword string, names []string) ([]model.Person, error) {
	if err := authorizeMaster(s.cfg, masterPassword); err != nil {
		return nil, err
	}

	people := make([]model.Person, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, raw := range names {
		if model.NormalizeName(raw) == "" {
			continue
		}
		name, err := normalizeName("person name", s.cfg.Rules.PersonName, raw)
		if err != nil {
			return nil, err
		}
		key := model.NameKey(name)
		if seen[key] {
			return nil, fmt.Errorf("%w: %s", ErrDuplicatePerson, name)
		}
		seen[key] = true
		people = append(people, model.Person{ID: uuid.NewString(), Name: name, Active: true})
	}
	if len(people) == 0 {
		return nil, fmt.Errorf("%w: no names given", ErrValidation)
	}

	if err := s.people.Create(ctx, people); err != nil {
		return nil, personError(err)
	}

	log.Info().Int("added", len(people)).Msg("People added to directory")
	return people, nil
}

// Rename changes a person's name. Games keep the participant name they were
// created with.
func (s *PeopleService) Rename(ctx context.Context, masterPassword, id, name string) (*model.Person, error) {
	if err := authorizeMaster(s.cfg, masterPassword); err != nil {
		return nil, err
	}
	name, err := normalizeName("person name", s.cfg.Rules.PersonName, name)
	if err != nil {
		return nil, err
	}

	person, err := s.people.Rename(ctx, id, name)
	if err != nil {
		return nil, personError(err)
	}
	return person, nil
}

// SetActive activates or deactivates a person. Inactive people cannot be
// added to games.
func (s *PeopleService) SetActive(ctx context.Context, masterPassword, id string, active bool) (*model.Person, error) {
	if err := authorizeMaster(s.cfg, masterPassword); err != nil {
		return nil, err
	}

	person, err := s.people.SetActive(ctx, id, active)
	if err != nil {
		return nil, personError(err)
	}

	log.Info().Str("person_id", id).Bool("active", active).Msg("Person activation changed")
	return person, nil
}

func personError(err error) error {
	switch {
	case errors.Is(err, repository.ErrNameTaken):
		return fmt.Errorf("%w: %v", ErrDuplicatePerson, err)
	case errors.Is(err, repository.ErrPersonNotFound):
		return ErrPersonNotFound
	default:
		return err
	}
}
