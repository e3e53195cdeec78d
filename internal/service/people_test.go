package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPeopleService(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	added, err := env.people.Add(ctx, "", []string{" Ana ", "", "Beto"})
	require.NoError(t, err)
	require.Len(t, added, 2)
	assert.Equal(t, "Ana", added[0].Name)

	_, err = env.people.Add(ctx, "", []string{"Caro", "ana"})
	assert.ErrorIs(t, err, ErrDuplicatePerson)

	_, err = env.people.Add(ctx, "", []string{"Dani", "dani"})
	assert.ErrorIs(t, err, ErrDuplicatePerson)

	_, err = env.people.Add(ctx, "", []string{"  "})
	assert.ErrorIs(t, err, ErrValidation)

	list, err := env.people.List(ctx, false)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	renamed, err := env.people.Rename(ctx, "", added[1].ID, "Bete")
	require.NoError(t, err)
	assert.Equal(t, "Bete", renamed.Name)

	_, err = env.people.Rename(ctx, "", added[1].ID, "ANA")
	assert.ErrorIs(t, err, ErrDuplicatePerson)

	_, err = env.people.Rename(ctx, "", "missing", "Zoe")
	assert.ErrorIs(t, err, ErrPersonNotFound)

	_, err = env.people.SetActive(ctx, "", added[0].ID, false)
	require.NoError(t, err)
	list, err = env.people.List(ctx, false)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestPeopleService_MasterPassword(t *testing.T) {
	env := newTestEnv(t)
	env.cfg.Admin.MasterPassword = "master"
	ctx := context.Background()

	_, err := env.people.Add(ctx, "", []string{"Ana"})
	assert.ErrorIs(t, err, ErrMasterPasswordRequired)

	_, err = env.people.Add(ctx, "nope", []string{"Ana"})
	assert.ErrorIs(t, err, ErrInvalidMasterPassword)

	added, err := env.people.Add(ctx, "master", []string{"Ana"})
	require.NoError(t, err)

	_, err = env.people.SetActive(ctx, "", added[0].ID, false)
	assert.ErrorIs(t, err, ErrMasterPasswordRequired)
}

func TestAdminService_Export(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.people.Add(ctx, "", []string{"Ana"})
	require.NoError(t, err)
	id := env.createGame(t, "Ana", "Beto", "Caro")
	_, err = env.games.Draw(ctx, id, adminPassword, false)
	require.NoError(t, err)

	backup, err := env.admin.Export(ctx, "")
	require.NoError(t, err)
	require.Len(t, backup.Games, 1)
	assert.Equal(t, id, backup.Games[0].ID)
	assert.Equal(t, 1, backup.Games[0].AssignmentVersion)
	require.Len(t, backup.Games[0].Participants, 3)
	assert.NotNil(t, backup.Games[0].Participants[0].AssignedParticipantID)
	assert.Len(t, backup.People, 1)

	env.cfg.Admin.MasterPassword = "master"
	_, err = env.admin.Export(ctx, "wrong")
	assert.ErrorIs(t, err, ErrInvalidMasterPassword)
}
