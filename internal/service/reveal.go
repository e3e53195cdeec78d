package service

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"secret-friend/internal/metrics"
	"secret-friend/internal/model"
	"secret-friend/internal/pkg/lock"
)

// Preview is what a participant sees before revealing.
type Preview struct {
	Name      string `json:"name"`
	Viewed    bool   `json:"viewed"`
	CanReveal bool   `json:"can_reveal"`
}

// Revelation carries the recipient's name.
type Revelation struct {
	AssignedTo string `json:"assigned_to"`
}

// RevealService handles the participant side of a game, addressed by token.
type RevealService struct {
	games GameStore
	locks *lock.KeyLock
	now   func() time.Time
}

// NewRevealService creates a new RevealService instance.
// locks must be the KeyLock shared with GameService.
func NewRevealService(games GameStore, locks *lock.KeyLock) *RevealService {
	return &RevealService{
		games: games,
		locks: locks,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Preview reports whether the participant can reveal, never the recipient.
func (s *RevealService) Preview(ctx context.Context, gameID, token string) (*Preview, error) {
	agg, err := s.games.Get(ctx, gameID)
	if err != nil {
		return nil, linkError(err)
	}

	p, err := reachable(agg, token)
	if err != nil {
		return nil, err
	}

	return &Preview{
		Name:      p.Name,
		Viewed:    p.Viewed,
		CanReveal: p.AssignedParticipantID != nil && !p.Viewed,
	}, nil
}

// Reveal returns the recipient's name once per assignment version. Of any
// number of concurrent calls for one token, exactly one succeeds.
func (s *RevealService) Reveal(ctx context.Context, gameID, token string) (*Revelation, error) {
	var revelation *Revelation
	var participantID string

	err := s.locks.WithLockContext(ctx, gameID, func() error {
		return s.games.Update(ctx, gameID, func(agg *model.GameAggregate) error {
			p, err := reachable(agg, token)
			if err != nil {
				return err
			}
			if p.AssignedParticipantID == nil {
				return ErrNotDrawable
			}
			if p.Viewed {
				return ErrAlreadyRevealed
			}

			receiver := agg.Participant(*p.AssignedParticipantID)
			if receiver == nil {
				return ErrInvalidAssignmentState
			}

			now := s.now()
			p.Viewed = true
			p.ViewedAt = &now
			agg.Game.AnyRevealed = true
			agg.Game.UpdatedAt = now

			participantID = p.ID
			revelation = &Revelation{AssignedTo: receiver.Name}
			return nil
		})
	})
	if err != nil {
		err = linkError(err)
		metrics.RevealCounter.WithLabelValues(revealOutcome(err)).Inc()
		if errors.Is(err, ErrInvalidAssignmentState) {
			log.Error().Str("game_id", gameID).Msg("Participant assigned to a missing recipient")
		}
		return nil, err
	}

	metrics.RevealCounter.WithLabelValues(metrics.OutcomeSuccess).Inc()
	log.Info().Str("game_id", gameID).Str("participant_id", participantID).Msg("Assignment revealed")
	return revelation, nil
}

// reachable returns the participant holding token if both the game and the
// participant are active.
func reachable(agg *model.GameAggregate, token string) (*model.Participant, error) {
	if !agg.Game.Active {
		return nil, ErrLinkNotFound
	}
	p := agg.ParticipantByToken(token)
	if p == nil || !p.Active {
		return nil, ErrLinkNotFound
	}
	return p, nil
}

// linkError hides whether a game exists from token holders.
func linkError(err error) error {
	err = storeError(err)
	if errors.Is(err, ErrGameNotFound) {
		return ErrLinkNotFound
	}
	return err
}

func revealOutcome(err error) string {
	switch {
	case errors.Is(err, ErrLinkNotFound),
		errors.Is(err, ErrNotDrawable),
		errors.Is(err, ErrAlreadyRevealed):
		return metrics.OutcomeRejected
	default:
		return metrics.OutcomeError
	}
}
