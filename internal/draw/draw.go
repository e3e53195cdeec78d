// Package draw computes secret friend assignments.
//
// An assignment is a derangement: a permutation of the participant IDs with no
// fixed point, so nobody draws themselves. Assign shuffles uniformly and rejects
// any shuffle with a fixed point, which keeps the result uniform over all
// derangements. For n >= 2 about e shuffles are needed on average.
package draw

import (
	crand "crypto/rand"
	"errors"
	"fmt"
	"math/rand/v2"
)

// Draw errors.
var (
	ErrInsufficientParticipants = errors.New("insufficient participants")
	ErrDrawExhausted            = errors.New("could not compute assignment within attempt limit")
	ErrDuplicateID              = errors.New("duplicate participant id")
)

// Exclusion reports whether giver must not be assigned receiver.
type Exclusion func(giver, receiver string) bool

// Config holds Drawer settings.
type Config struct {
	MinParticipants int
	MaxAttempts     int
	// Exclude is optional; nil means no constraints beyond "not yourself".
	Exclude Exclusion
}

// Drawer produces random derangements.
type Drawer struct {
	minParticipants int
	maxAttempts     int
	exclude         Exclusion
	shuffle         func(ids []string)
}

// New creates a Drawer. Missing limits fall back to 3 participants and 1000 attempts.
func New(cfg *Config) *Drawer {
	d := &Drawer{
		minParticipants: 3,
		maxAttempts:     1000,
		shuffle:         entropyShuffle,
	}
	if cfg != nil {
		if cfg.MinParticipants > 0 {
			d.minParticipants = cfg.MinParticipants
		}
		if cfg.MaxAttempts > 0 {
			d.maxAttempts = cfg.MaxAttempts
		}
		d.exclude = cfg.Exclude
	}
	return d
}

// MinParticipants returns the minimum number of IDs Assign accepts.
func (d *Drawer) MinParticipants() int {
	return d.minParticipants
}

// Result is a computed assignment together with the number of shuffles it took.
type Result struct {
	Assignment map[string]string
	Shuffles   int
}

// Assign returns a mapping giver -> receiver that is a bijection on ids with
// no fixed point. ids is not modified.
func (d *Drawer) Assign(ids []string) (map[string]string, error) {
	res, err := d.Draw(ids)
	if err != nil {
		return nil, err
	}
	return res.Assignment, nil
}

// Draw is Assign that also reports how many shuffles were needed.
func (d *Drawer) Draw(ids []string) (*Result, error) {
	n := len(ids)
	minimum := d.minParticipants
	if minimum < 2 {
		minimum = 2
	}
	if n < minimum {
		return nil, fmt.Errorf("%w: at least %d active participants required, have %d",
			ErrInsufficientParticipants, minimum, n)
	}

	seen := make(map[string]struct{}, n)
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateID, id)
		}
		seen[id] = struct{}{}
	}

	receivers := make([]string, n)
	for attempt := 1; attempt <= d.maxAttempts; attempt++ {
		copy(receivers, ids)
		d.shuffle(receivers)
		if d.valid(ids, receivers) {
			out := make(map[string]string, n)
			for i, giver := range ids {
				out[giver] = receivers[i]
			}
			return &Result{Assignment: out, Shuffles: attempt}, nil
		}
	}

	return nil, fmt.Errorf("%w (%d attempts, %d participants)", ErrDrawExhausted, d.maxAttempts, n)
}

func (d *Drawer) valid(givers, receivers []string) bool {
	for i, giver := range givers {
		if giver == receivers[i] {
			return false
		}
		if d.exclude != nil && d.exclude(giver, receivers[i]) {
			return false
		}
	}
	return true
}

// entropyShuffle runs a Fisher-Yates shuffle driven by a ChaCha8 stream seeded
// from the operating system's entropy source for every call.
func entropyShuffle(ids []string) {
	var seed [32]byte
	// crypto/rand.Read never returns an error on supported platforms.
	_, _ = crand.Read(seed[:])
	r := rand.New(rand.NewChaCha8(seed))
	r.Shuffle(len(ids), func(i, j int) {
		ids[i], ids[j] = ids[j], ids[i]
	})
}
