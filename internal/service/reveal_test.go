package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRevealService_Scenario(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	id := env.createGame(t, "Ana", "Beto", "Caro")
	caro := env.participantByName(t, id, "Caro")

	res, err := env.games.Draw(ctx, id, adminPassword, false)
	require.NoError(t, err)
	assert.Equal(t, 1, res.AssignmentVersion)

	preview, err := env.reveals.Preview(ctx, id, caro.Token)
	require.NoError(t, err)
	assert.Equal(t, "Caro", preview.Name)
	assert.True(t, preview.CanReveal)
	assert.False(t, preview.Viewed)

	revelation, err := env.reveals.Reveal(ctx, id, caro.Token)
	require.NoError(t, err)
	assert.Contains(t, []string{"Ana", "Beto"}, revelation.AssignedTo)

	status, err := env.games.Status(ctx, id, adminPassword)
	require.NoError(t, err)
	assert.True(t, status.AnyRevealed)

	_, err = env.games.Draw(ctx, id, adminPassword, false)
	assert.ErrorIs(t, err, ErrRevealsExist)

	res, err = env.games.Draw(ctx, id, adminPassword, true)
	require.NoError(t, err)
	assert.Equal(t, 2, res.AssignmentVersion)

	status, err = env.games.Status(ctx, id, adminPassword)
	require.NoError(t, err)
	assert.False(t, status.AnyRevealed)
	for _, p := range status.Participants {
		assert.False(t, p.Viewed, p.Name)
	}

	preview, err = env.reveals.Preview(ctx, id, caro.Token)
	require.NoError(t, err)
	assert.True(t, preview.CanReveal)
}

func TestRevealService_AtMostOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	id := env.createGame(t, "Ana", "Beto", "Caro")
	ana := env.participantByName(t, id, "Ana")

	_, err := env.games.Draw(ctx, id, adminPassword, false)
	require.NoError(t, err)

	_, err = env.reveals.Reveal(ctx, id, ana.Token)
	require.NoError(t, err)

	_, err = env.reveals.Reveal(ctx, id, ana.Token)
	assert.ErrorIs(t, err, ErrAlreadyRevealed)

	preview, err := env.reveals.Preview(ctx, id, ana.Token)
	require.NoError(t, err)
	assert.True(t, preview.Viewed)
	assert.False(t, preview.CanReveal)
}

func TestRevealService_ConcurrentRevealSingleWinner(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	id := env.createGame(t, "Ana", "Beto", "Caro")
	beto := env.participantByName(t, id, "Beto")

	_, err := env.games.Draw(ctx, id, adminPassword, false)
	require.NoError(t, err)

	const callers = 16
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.reveals.Reveal(ctx, id, beto.Token)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, ErrAlreadyRevealed):
				conflicts++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, callers-1, conflicts)
}

func TestRevealService_NotDrawable(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	id := env.createGame(t, "Ana", "Beto", "Caro")
	ana := env.participantByName(t, id, "Ana")

	preview, err := env.reveals.Preview(ctx, id, ana.Token)
	require.NoError(t, err)
	assert.False(t, preview.CanReveal)

	_, err = env.reveals.Reveal(ctx, id, ana.Token)
	assert.ErrorIs(t, err, ErrNotDrawable)
}

func TestRevealService_RemovedRecipientLeavesGiverUndrawn(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	id := env.createGame(t, "Ana", "Beto", "Caro", "Dani")

	_, err := env.games.Draw(ctx, id, adminPassword, false)
	require.NoError(t, err)

	dani := env.participantByName(t, id, "Dani")
	var giverToken string
	agg, err := env.store.Get(ctx, id)
	require.NoError(t, err)
	for _, p := range agg.Participants {
		if p.AssignedParticipantID != nil && *p.AssignedParticipantID == dani.ID {
			giverToken = p.Token
		}
	}
	require.NotEmpty(t, giverToken)

	require.NoError(t, env.games.RemoveParticipant(ctx, id, adminPassword, dani.ID))

	_, err = env.reveals.Reveal(ctx, id, giverToken)
	assert.ErrorIs(t, err, ErrNotDrawable)
}

func TestRevealService_LinkNotFound(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	id := env.createGame(t, "Ana", "Beto", "Caro")
	ana := env.participantByName(t, id, "Ana")

	_, err := env.games.Draw(ctx, id, adminPassword, false)
	require.NoError(t, err)

	_, err = env.reveals.Preview(ctx, "ZZZZZZ", ana.Token)
	assert.ErrorIs(t, err, ErrLinkNotFound)

	_, err = env.reveals.Reveal(ctx, id, "unknown-token")
	assert.ErrorIs(t, err, ErrLinkNotFound)

	_, err = env.games.SetParticipantActive(ctx, id, adminPassword, ana.Token, false)
	require.NoError(t, err)
	_, err = env.reveals.Reveal(ctx, id, ana.Token)
	assert.ErrorIs(t, err, ErrLinkNotFound)

	beto := env.participantByName(t, id, "Beto")
	_, err = env.games.SetActive(ctx, id, adminPassword, false)
	require.NoError(t, err)
	_, err = env.reveals.Preview(ctx, id, beto.Token)
	assert.ErrorIs(t, err, ErrLinkNotFound)
}
