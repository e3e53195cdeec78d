package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"secret-friend/internal/config"
	"secret-friend/internal/draw"
	"secret-friend/internal/metrics"
	"secret-friend/internal/model"
	"secret-friend/internal/pkg/lock"
	"secret-friend/internal/pkg/secret"
	"secret-friend/internal/repository"
)

// maxGameIDAttempts bounds regeneration of colliding game IDs.
const maxGameIDAttempts = 5

// CreateGameInput describes a new game.
type CreateGameInput struct {
	Title         string
	AdminPassword string
	Participants  []string
	PersonIDs     []string
}

// CreateGameResult is returned by Create.
type CreateGameResult struct {
	GameID       string `json:"game_id"`
	ShareBaseURL string `json:"share_base_url"`
}

// ParticipantStatus is the organizer's view of a participant.
type ParticipantStatus struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Token    string  `json:"token"`
	Viewed   bool    `json:"viewed"`
	Active   bool    `json:"active"`
	PersonID *string `json:"person_id"`
}

// GameStatus is the organizer's view of a game.
type GameStatus struct {
	GameID            string              `json:"game_id"`
	Title             string              `json:"title"`
	CreatedAt         time.Time           `json:"created_at"`
	AssignmentVersion int                 `json:"assignment_version"`
	AnyRevealed       bool                `json:"any_revealed"`
	Active            bool                `json:"active"`
	Participants      []ParticipantStatus `json:"participants"`
}

// Link is a shareable participant link.
type Link struct {
	ParticipantID string `json:"participant_id"`
	Token         string `json:"token"`
	Name          string `json:"name"`
	Link          string `json:"link"`
}

// DrawResult is returned by Draw.
type DrawResult struct {
	AssignmentVersion int `json:"assignment_version"`
}

// GameService handles the organizer side of a game: lifecycle, participants
// and draws. Every mutation of a game is serialized per game ID.
type GameService struct {
	games        GameStore
	people       PeopleStore
	locks        *lock.KeyLock
	drawer       *draw.Drawer
	ids          *secret.Generator
	hasher       *secret.Hasher
	cfg          *config.Config
	shareBaseURL string
	now          func() time.Time
}

// NewGameService creates a new GameService instance.
func NewGameService(games GameStore, people PeopleStore, locks *lock.KeyLock, cfg *config.Config) *GameService {
	return &GameService{
		games:  games,
		people: people,
		locks:  locks,
		drawer: draw.New(&draw.Config{
			MinParticipants: cfg.Game.MinParticipants,
			MaxAttempts:     cfg.Game.MaxDrawAttempts,
		}),
		ids:          secret.NewGenerator(cfg.Game.GameIDLength, cfg.Game.TokenBytes),
		hasher:       secret.NewHasher(cfg.Game.BcryptCost),
		cfg:          cfg,
		shareBaseURL: strings.TrimRight(cfg.Server.ShareBaseURL, "/"),
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// update serializes fn with every other mutation of the game.
func (s *GameService) update(ctx context.Context, gameID string, fn func(*model.GameAggregate) error) error {
	return s.locks.WithLockContext(ctx, gameID, func() error {
		return storeError(s.games.Update(ctx, gameID, fn))
	})
}

// Create validates the input and stores a new game with a participant per
// name and per directory person.
func (s *GameService) Create(ctx context.Context, in CreateGameInput) (*CreateGameResult, error) {
	title, err := validateTitle(s.cfg.Rules, in.Title)
	if err != nil {
		return nil, err
	}
	if err := validateAdminPassword(s.cfg.Rules, in.AdminPassword); err != nil {
		return nil, err
	}

	names, err := normalizeNames(s.cfg.Rules.ParticipantName, in.Participants, nil)
	if err != nil {
		return nil, err
	}

	persons, err := s.activePeople(ctx, in.PersonIDs)
	if err != nil {
		return nil, err
	}

	taken := make(map[string]string, len(names)+len(persons))
	for _, name := range names {
		taken[model.NameKey(name)] = ""
	}
	for _, p := range persons {
		key := model.NameKey(p.Name)
		if _, ok := taken[key]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateName, p.Name)
		}
		taken[key] = p.ID
	}

	if len(taken) < s.drawer.MinParticipants() {
		return nil, fmt.Errorf("%w: at least %d participants required, have %d",
			ErrInsufficientParticipants, s.drawer.MinParticipants(), len(taken))
	}

	hash, err := s.hasher.Hash(in.AdminPassword)
	if err != nil {
		return nil, err
	}

	now := s.now()
	agg := &model.GameAggregate{Game: model.Game{
		Title:             title,
		AdminPasswordHash: hash,
		Active:            true,
		CreatedAt:         now,
		UpdatedAt:         now,
	}}
	for _, name := range names {
		if err := s.appendParticipant(agg, name, nil, now); err != nil {
			return nil, err
		}
	}
	for _, p := range persons {
		personID := p.ID
		if err := s.appendParticipant(agg, p.Name, &personID, now); err != nil {
			return nil, err
		}
	}

	for attempt := 1; ; attempt++ {
		id, err := s.ids.GameID()
		if err != nil {
			return nil, err
		}
		agg.Game.ID = id
		for _, p := range agg.Participants {
			p.GameID = id
		}

		err = s.games.Create(ctx, agg)
		if err == nil {
			break
		}
		if !errors.Is(err, repository.ErrGameExists) || attempt >= maxGameIDAttempts {
			return nil, fmt.Errorf("failed to create game: %w", storeError(err))
		}
		log.Warn().Str("game_id", id).Msg("Game ID collision, regenerating")
	}

	metrics.GamesCreated.Inc()
	log.Info().
		Str("game_id", agg.Game.ID).
		Int("participants", len(agg.Participants)).
		Msg("Game created")

	return &CreateGameResult{GameID: agg.Game.ID, ShareBaseURL: s.shareBaseURL}, nil
}

// Status returns the organizer's view of the game.
func (s *GameService) Status(ctx context.Context, gameID, password string) (*GameStatus, error) {
	agg, err := authorizeAdmin(ctx, s.games, s.hasher, gameID, password)
	if err != nil {
		return nil, err
	}
	return gameStatus(agg), nil
}

// Links returns one shareable link per participant.
func (s *GameService) Links(ctx context.Context, gameID, password string) ([]Link, error) {
	agg, err := authorizeAdmin(ctx, s.games, s.hasher, gameID, password)
	if err != nil {
		return nil, err
	}

	links := make([]Link, 0, len(agg.Participants))
	for _, p := range agg.Participants {
		links = append(links, Link{
			ParticipantID: p.ID,
			Token:         p.Token,
			Name:          p.Name,
			Link:          s.link(agg.Game.ID, p.Token),
		})
	}
	return links, nil
}

// List returns all games, newest first.
func (s *GameService) List(ctx context.Context, masterPassword string) ([]model.GameSummary, error) {
	if err := authorizeMaster(s.cfg, masterPassword); err != nil {
		return nil, err
	}
	summaries, err := s.games.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list games: %w", err)
	}
	return summaries, nil
}

// UpdateTitle renames the game.
func (s *GameService) UpdateTitle(ctx context.Context, gameID, password, title string) (*GameStatus, error) {
	if _, err := authorizeAdmin(ctx, s.games, s.hasher, gameID, password); err != nil {
		return nil, err
	}
	title, err := validateTitle(s.cfg.Rules, title)
	if err != nil {
		return nil, err
	}

	var status *GameStatus
	err = s.update(ctx, gameID, func(agg *model.GameAggregate) error {
		agg.Game.Title = title
		agg.Game.UpdatedAt = s.now()
		status = gameStatus(agg)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return status, nil
}

// SetActive activates or deactivates the game. An inactive game keeps its
// data but refuses draws, token toggles and participant-facing access.
func (s *GameService) SetActive(ctx context.Context, gameID, password string, active bool) (*GameStatus, error) {
	if _, err := authorizeAdmin(ctx, s.games, s.hasher, gameID, password); err != nil {
		return nil, err
	}

	var status *GameStatus
	err := s.update(ctx, gameID, func(agg *model.GameAggregate) error {
		agg.Game.Active = active
		agg.Game.UpdatedAt = s.now()
		status = gameStatus(agg)
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().Str("game_id", gameID).Bool("active", active).Msg("Game activation changed")
	return status, nil
}

// Delete removes the game and all its participants.
func (s *GameService) Delete(ctx context.Context, gameID, password string) error {
	if _, err := authorizeAdmin(ctx, s.games, s.hasher, gameID, password); err != nil {
		return err
	}

	err := s.locks.WithLockContext(ctx, gameID, func() error {
		return storeError(s.games.Delete(ctx, gameID))
	})
	if err != nil {
		return err
	}

	log.Info().Str("game_id", gameID).Msg("Game deleted")
	return nil
}

// Draw computes a new assignment over the active participants.
// Unless force is set, a draw is refused once anyone revealed the current
// assignment. A successful draw resets every reveal, bumps the assignment
// version and clears the revealed flag; a failed one changes nothing.
func (s *GameService) Draw(ctx context.Context, gameID, password string, force bool) (*DrawResult, error) {
	if _, err := authorizeAdmin(ctx, s.games, s.hasher, gameID, password); err != nil {
		return nil, err
	}

	var version, shuffles int
	err := s.update(ctx, gameID, func(agg *model.GameAggregate) error {
		if !agg.Game.Active {
			return ErrGameInactive
		}
		if agg.Game.AnyRevealed && !force {
			return ErrRevealsExist
		}

		res, err := s.drawer.Draw(agg.ActiveParticipantIDs())
		if err != nil {
			if errors.Is(err, draw.ErrInsufficientParticipants) {
				return fmt.Errorf("%w: %v", ErrInsufficientParticipants, err)
			}
			return err
		}

		for _, p := range agg.Participants {
			p.Viewed = false
			p.ViewedAt = nil
			p.AssignedParticipantID = nil
			if receiver, ok := res.Assignment[p.ID]; ok {
				p.AssignedParticipantID = &receiver
			}
		}
		agg.Game.AssignmentVersion++
		agg.Game.AnyRevealed = false
		agg.Game.UpdatedAt = s.now()

		version = agg.Game.AssignmentVersion
		shuffles = res.Shuffles
		return nil
	})
	if err != nil {
		metrics.DrawCounter.WithLabelValues(drawOutcome(err)).Inc()
		return nil, err
	}

	metrics.DrawCounter.WithLabelValues(metrics.OutcomeSuccess).Inc()
	metrics.DrawShuffles.Observe(float64(shuffles))
	log.Info().
		Str("game_id", gameID).
		Int("assignment_version", version).
		Bool("force", force).
		Msg("Assignment drawn")

	return &DrawResult{AssignmentVersion: version}, nil
}

// AddParticipants appends participants by name.
func (s *GameService) AddParticipants(ctx context.Context, gameID, password string, names []string) ([]ParticipantStatus, error) {
	if _, err := authorizeAdmin(ctx, s.games, s.hasher, gameID, password); err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return nil, ErrNoParticipantsToAdd
	}

	var added []ParticipantStatus
	err := s.update(ctx, gameID, func(agg *model.GameAggregate) error {
		if agg.Game.AnyRevealed {
			return ErrRevealsExist
		}

		normalized, err := normalizeNames(s.cfg.Rules.ParticipantName, names, agg.NameKeys())
		if err != nil {
			return err
		}

		now := s.now()
		for _, name := range normalized {
			if err := s.appendParticipant(agg, name, nil, now); err != nil {
				return err
			}
			added = append(added, participantStatus(agg.Participants[len(agg.Participants)-1]))
		}
		agg.Game.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().Str("game_id", gameID).Int("added", len(added)).Msg("Participants added")
	return added, nil
}

// AddParticipantsByIDs appends participants linked to directory people.
func (s *GameService) AddParticipantsByIDs(ctx context.Context, gameID, password string, personIDs []string) ([]ParticipantStatus, error) {
	if _, err := authorizeAdmin(ctx, s.games, s.hasher, gameID, password); err != nil {
		return nil, err
	}

	persons, err := s.activePeople(ctx, personIDs)
	if err != nil {
		return nil, err
	}
	if len(persons) == 0 {
		return nil, ErrNoParticipantsToAdd
	}

	var added []ParticipantStatus
	err = s.update(ctx, gameID, func(agg *model.GameAggregate) error {
		if agg.Game.AnyRevealed {
			return ErrRevealsExist
		}

		inGame := make(map[string]bool, len(agg.Participants))
		for _, p := range agg.Participants {
			if p.PersonID != nil {
				inGame[*p.PersonID] = true
			}
		}
		taken := agg.NameKeys()

		now := s.now()
		for _, person := range persons {
			if inGame[person.ID] {
				return fmt.Errorf("%w: %s", ErrPersonAlreadyInGame, person.ID)
			}
			key := model.NameKey(person.Name)
			if _, ok := taken[key]; ok {
				return fmt.Errorf("%w: %s", ErrDuplicateName, person.Name)
			}
			taken[key] = person.ID

			personID := person.ID
			if err := s.appendParticipant(agg, person.Name, &personID, now); err != nil {
				return err
			}
			added = append(added, participantStatus(agg.Participants[len(agg.Participants)-1]))
		}
		agg.Game.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().Str("game_id", gameID).Int("added", len(added)).Msg("Participants added from directory")
	return added, nil
}

// RemoveParticipant deletes a participant. Whoever had drawn the removed
// participant is left without a recipient until the next draw.
func (s *GameService) RemoveParticipant(ctx context.Context, gameID, password, participantID string) error {
	if _, err := authorizeAdmin(ctx, s.games, s.hasher, gameID, password); err != nil {
		return err
	}

	err := s.update(ctx, gameID, func(agg *model.GameAggregate) error {
		if agg.Game.AnyRevealed {
			return ErrRevealsExist
		}

		kept := make([]*model.Participant, 0, len(agg.Participants))
		found := false
		for _, p := range agg.Participants {
			if p.ID == participantID {
				found = true
				continue
			}
			kept = append(kept, p)
		}
		if !found {
			return ErrParticipantNotFound
		}

		for _, p := range kept {
			if p.AssignedParticipantID != nil && *p.AssignedParticipantID == participantID {
				p.AssignedParticipantID = nil
			}
		}
		agg.Participants = kept
		agg.Game.UpdatedAt = s.now()
		return nil
	})
	if err != nil {
		return err
	}

	log.Info().Str("game_id", gameID).Str("participant_id", participantID).Msg("Participant removed")
	return nil
}

// RenameParticipant changes a participant's name. Token and recipient are kept.
func (s *GameService) RenameParticipant(ctx context.Context, gameID, password, participantID, name string) (*ParticipantStatus, error) {
	if _, err := authorizeAdmin(ctx, s.games, s.hasher, gameID, password); err != nil {
		return nil, err
	}
	name, err := normalizeName("participant name", s.cfg.Rules.ParticipantName, name)
	if err != nil {
		return nil, err
	}

	var renamed *ParticipantStatus
	err = s.update(ctx, gameID, func(agg *model.GameAggregate) error {
		p := agg.Participant(participantID)
		if p == nil {
			return ErrParticipantNotFound
		}
		if owner, ok := agg.NameKeys()[model.NameKey(name)]; ok && owner != participantID {
			return fmt.Errorf("%w: %s", ErrDuplicateName, name)
		}
		p.Name = name
		agg.Game.UpdatedAt = s.now()

		status := participantStatus(p)
		renamed = &status
		return nil
	})
	if err != nil {
		return nil, err
	}
	return renamed, nil
}

// SetParticipantActive toggles a participant by token. Existing assignments
// are not retracted and the token stays valid.
func (s *GameService) SetParticipantActive(ctx context.Context, gameID, password, token string, active bool) (*ParticipantStatus, error) {
	if _, err := authorizeAdmin(ctx, s.games, s.hasher, gameID, password); err != nil {
		return nil, err
	}

	var toggled *ParticipantStatus
	err := s.update(ctx, gameID, func(agg *model.GameAggregate) error {
		if !agg.Game.Active {
			return ErrGameInactive
		}
		p := agg.ParticipantByToken(token)
		if p == nil {
			return ErrTokenNotFound
		}
		p.Active = active
		agg.Game.UpdatedAt = s.now()

		status := participantStatus(p)
		toggled = &status
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("game_id", gameID).
		Str("participant_id", toggled.ID).
		Bool("active", active).
		Msg("Participant activation changed")
	return toggled, nil
}

// activePeople resolves directory people; each must exist and be active.
func (s *GameService) activePeople(ctx context.Context, personIDs []string) ([]model.Person, error) {
	if len(personIDs) == 0 {
		return nil, nil
	}

	unique := make([]string, 0, len(personIDs))
	seen := make(map[string]bool, len(personIDs))
	for _, id := range personIDs {
		if !seen[id] {
			seen[id] = true
			unique = append(unique, id)
		}
	}

	people, err := s.people.GetByIDs(ctx, unique)
	if err != nil {
		return nil, fmt.Errorf("failed to load people: %w", err)
	}

	byID := make(map[string]model.Person, len(people))
	for _, p := range people {
		byID[p.ID] = p
	}

	out := make([]model.Person, 0, len(unique))
	for _, id := range unique {
		p, ok := byID[id]
		if !ok || !p.Active {
			return nil, fmt.Errorf("%w: %s", ErrPersonUnavailable, id)
		}
		out = append(out, p)
	}
	return out, nil
}

func (s *GameService) appendParticipant(agg *model.GameAggregate, name string, personID *string, now time.Time) error {
	token, err := s.ids.Token()
	if err != nil {
		return err
	}
	agg.Participants = append(agg.Participants, &model.Participant{
		ID:        uuid.NewString(),
		GameID:    agg.Game.ID,
		PersonID:  personID,
		Name:      name,
		Token:     token,
		Active:    true,
		Position:  agg.NextPosition(),
		CreatedAt: now,
	})
	return nil
}

func (s *GameService) link(gameID, token string) string {
	return fmt.Sprintf("%s/game/%s/token/%s", s.shareBaseURL, gameID, token)
}

func gameStatus(agg *model.GameAggregate) *GameStatus {
	participants := make([]ParticipantStatus, 0, len(agg.Participants))
	for _, p := range agg.Participants {
		participants = append(participants, participantStatus(p))
	}
	return &GameStatus{
		GameID:            agg.Game.ID,
		Title:             agg.Game.Title,
		CreatedAt:         agg.Game.CreatedAt,
		AssignmentVersion: agg.Game.AssignmentVersion,
		AnyRevealed:       agg.Game.AnyRevealed,
		Active:            agg.Game.Active,
		Participants:      participants,
	}
}

func participantStatus(p *model.Participant) ParticipantStatus {
	return ParticipantStatus{
		ID:       p.ID,
		Name:     p.Name,
		Token:    p.Token,
		Viewed:   p.Viewed,
		Active:   p.Active,
		PersonID: p.PersonID,
	}
}

func drawOutcome(err error) string {
	switch {
	case errors.Is(err, ErrGameInactive),
		errors.Is(err, ErrRevealsExist),
		errors.Is(err, ErrInsufficientParticipants):
		return metrics.OutcomeRejected
	default:
		return metrics.OutcomeError
	}
}
