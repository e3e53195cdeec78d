package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"secret-friend/internal/model"
	"secret-friend/internal/pkg/lock"
)

// MemoryStore keeps games and people in process memory. It mirrors the
// PostgreSQL repositories, including per-game serialization of updates and
// case-insensitive name uniqueness, and is used for development and tests.
type MemoryStore struct {
	mu     sync.RWMutex
	games  map[string]*model.GameAggregate
	people map[string]model.Person
	locks  *lock.KeyLock
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		games:  make(map[string]*model.GameAggregate),
		people: make(map[string]model.Person),
		locks:  lock.NewKeyLock(),
	}
}

// Create stores a new game. Returns ErrGameExists if the ID is taken.
func (s *MemoryStore) Create(_ context.Context, agg *model.GameAggregate) error {
	if err := checkParticipantNames(agg); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.games[agg.Game.ID]; ok {
		return ErrGameExists
	}
	s.games[agg.Game.ID] = agg.Clone()
	return nil
}

// Get returns a copy of the game.
func (s *MemoryStore) Get(_ context.Context, gameID string) (*model.GameAggregate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	agg, ok := s.games[gameID]
	if !ok {
		return nil, ErrGameNotFound
	}
	return agg.Clone(), nil
}

// List returns summaries of all games, newest first.
func (s *MemoryStore) List(_ context.Context) ([]model.GameSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	summaries := make([]model.GameSummary, 0, len(s.games))
	for _, agg := range s.games {
		summaries = append(summaries, agg.Summary())
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].CreatedAt.After(summaries[j].CreatedAt)
	})
	return summaries, nil
}

// Update runs fn on a copy of the game while holding the game's lock and
// stores the copy only when fn succeeds.
func (s *MemoryStore) Update(ctx context.Context, gameID string, fn func(*model.GameAggregate) error) error {
	if err := s.locks.LockContext(ctx, gameID); err != nil {
		return err
	}
	defer s.locks.Unlock(gameID)

	working, err := s.Get(ctx, gameID)
	if err != nil {
		return err
	}

	if err := fn(working); err != nil {
		return err
	}
	if err := checkParticipantNames(working); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.games[gameID]; !ok {
		return ErrGameNotFound
	}
	s.games[gameID] = working
	return nil
}

// Delete removes a game.
func (s *MemoryStore) Delete(_ context.Context, gameID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.games[gameID]; !ok {
		return ErrGameNotFound
	}
	delete(s.games, gameID)
	return nil
}

// ListPeople returns people ordered by name.
func (s *MemoryStore) ListPeople(_ context.Context, includeInactive bool) ([]model.Person, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	people := make([]model.Person, 0, len(s.people))
	for _, p := range s.people {
		if p.Active || includeInactive {
			people = append(people, p)
		}
	}
	sortPeople(people)
	return people, nil
}

// GetPeopleByIDs returns the known people among ids, ordered by name.
func (s *MemoryStore) GetPeopleByIDs(_ context.Context, ids []string) ([]model.Person, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	people := make([]model.Person, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if p, ok := s.people[id]; ok && !seen[id] {
			seen[id] = true
			people = append(people, p)
		}
	}
	sortPeople(people)
	return people, nil
}

// CreatePeople inserts people atomically.
func (s *MemoryStore) CreatePeople(_ context.Context, people []model.Person) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	taken := make(map[string]bool, len(s.people)+len(people))
	for _, p := range s.people {
		taken[strings.ToLower(p.Name)] = true
	}
	for _, p := range people {
		key := strings.ToLower(p.Name)
		if taken[key] {
			return fmt.Errorf("%w: %s", ErrNameTaken, p.Name)
		}
		taken[key] = true
	}

	for _, p := range people {
		s.people[p.ID] = p
	}
	return nil
}

// RenamePerson changes a person's name.
func (s *MemoryStore) RenamePerson(_ context.Context, id, name string) (*model.Person, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.people[id]
	if !ok {
		return nil, ErrPersonNotFound
	}
	for otherID, other := range s.people {
		if otherID != id && strings.EqualFold(other.Name, name) {
			return nil, ErrNameTaken
		}
	}
	p.Name = name
	s.people[id] = p
	return &p, nil
}

// SetPersonActive flips a person's active flag.
func (s *MemoryStore) SetPersonActive(_ context.Context, id string, active bool) (*model.Person, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.people[id]
	if !ok {
		return nil, ErrPersonNotFound
	}
	p.Active = active
	s.people[id] = p
	return &p, nil
}

// People exposes the directory half of the store under the method names of
// PeopleRepository.
func (s *MemoryStore) People() *MemoryPeople {
	return &MemoryPeople{store: s}
}

// MemoryPeople adapts MemoryStore to the people directory method set.
type MemoryPeople struct {
	store *MemoryStore
}

// List returns people ordered by name.
func (m *MemoryPeople) List(ctx context.Context, includeInactive bool) ([]model.Person, error) {
	return m.store.ListPeople(ctx, includeInactive)
}

// GetByIDs returns the known people among ids.
func (m *MemoryPeople) GetByIDs(ctx context.Context, ids []string) ([]model.Person, error) {
	return m.store.GetPeopleByIDs(ctx, ids)
}

// Create inserts people atomically.
func (m *MemoryPeople) Create(ctx context.Context, people []model.Person) error {
	return m.store.CreatePeople(ctx, people)
}

// Rename changes a person's name.
func (m *MemoryPeople) Rename(ctx context.Context, id, name string) (*model.Person, error) {
	return m.store.RenamePerson(ctx, id, name)
}

// SetActive flips a person's active flag.
func (m *MemoryPeople) SetActive(ctx context.Context, id string, active bool) (*model.Person, error) {
	return m.store.SetPersonActive(ctx, id, active)
}

func checkParticipantNames(agg *model.GameAggregate) error {
	seen := make(map[string]bool, len(agg.Participants))
	for _, p := range agg.Participants {
		key := strings.ToLower(p.Name)
		if seen[key] {
			return fmt.Errorf("%w: %s", ErrNameTaken, p.Name)
		}
		seen[key] = true
	}
	return nil
}

func sortPeople(people []model.Person) {
	sort.Slice(people, func(i, j int) bool {
		return strings.ToLower(people[i].Name) < strings.ToLower(people[j].Name)
	})
}
