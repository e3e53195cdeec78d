// Package secret generates identifiers and tokens and hashes organizer passwords.
package secret

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

const gameIDAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// ErrPasswordMismatch is returned when a password does not match its hash.
var ErrPasswordMismatch = errors.New("password mismatch")

// Generator produces game IDs and participant tokens.
type Generator struct {
	gameIDLength int
	tokenBytes   int
}

// NewGenerator creates a Generator; zero values fall back to 6-char IDs and 16-byte tokens.
func NewGenerator(gameIDLength, tokenBytes int) *Generator {
	if gameIDLength <= 0 {
		gameIDLength = 6
	}
	if tokenBytes <= 0 {
		tokenBytes = 16
	}
	return &Generator{gameIDLength: gameIDLength, tokenBytes: tokenBytes}
}

// GameID returns a random identifier made of upper-case letters and digits.
func (g *Generator) GameID() (string, error) {
	buf := make([]byte, g.gameIDLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate game id: %w", err)
	}
	// 256 is not a multiple of 36; reject the biased tail.
	limit := byte(256 - 256%len(gameIDAlphabet))
	out := make([]byte, 0, g.gameIDLength)
	for len(out) < g.gameIDLength {
		for _, b := range buf {
			if b >= limit {
				continue
			}
			out = append(out, gameIDAlphabet[int(b)%len(gameIDAlphabet)])
			if len(out) == g.gameIDLength {
				break
			}
		}
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("failed to generate game id: %w", err)
		}
	}
	return string(out), nil
}

// Token returns an unguessable URL-safe participant token.
func (g *Generator) Token() (string, error) {
	buf := make([]byte, g.tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// Hasher hashes and verifies organizer passwords with bcrypt.
type Hasher struct {
	cost int
}

// NewHasher creates a Hasher; out-of-range costs fall back to bcrypt.DefaultCost.
func NewHasher(cost int) *Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &Hasher{cost: cost}
}

// Hash returns the bcrypt hash of password.
func (h *Hasher) Hash(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashed), nil
}

// Verify returns nil when password matches hash and ErrPasswordMismatch otherwise.
func (h *Hasher) Verify(hash, password string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return ErrPasswordMismatch
	}
	return nil
}
