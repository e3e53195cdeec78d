package service

import (
	"context"
	"errors"

	"secret-friend/internal/config"
	"secret-friend/internal/model"
	"secret-friend/internal/pkg/secret"
)

// authorizeAdmin loads the game and checks the organizer password.
// A missing password is reported before the game lookup so that callers
// without credentials cannot probe for game IDs.
func authorizeAdmin(ctx context.Context, games GameStore, hasher *secret.Hasher, gameID, password string) (*model.GameAggregate, error) {
	if password == "" {
		return nil, ErrAdminPasswordRequired
	}

	agg, err := games.Get(ctx, gameID)
	if err != nil {
		return nil, storeError(err)
	}

	if err := hasher.Verify(agg.Game.AdminPasswordHash, password); err != nil {
		if errors.Is(err, secret.ErrPasswordMismatch) {
			return nil, ErrInvalidAdminPassword
		}
		return nil, err
	}
	return agg, nil
}

// authorizeMaster checks the master password. Without a configured master
// password every caller is accepted.
func authorizeMaster(cfg *config.Config, password string) error {
	if cfg.Admin.MasterPassword == "" {
		return nil
	}
	if password == "" {
		return ErrMasterPasswordRequired
	}
	if !cfg.IsMaster(password) {
		return ErrInvalidMasterPassword
	}
	return nil
}
