// Package repository provides data access layer implementations.
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"secret-friend/internal/model"
)

// Common errors for repository operations.
var (
	ErrGameNotFound   = errors.New("game not found")
	ErrGameExists     = errors.New("game id already taken")
	ErrPersonNotFound = errors.New("person not found")
	ErrNameTaken      = errors.New("name already taken")
)

const uniqueViolation = "23505"

// querier is the subset of pgx shared by the pool and transactions.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// GameRepository handles game and participant persistence in PostgreSQL.
type GameRepository struct {
	pool *pgxpool.Pool
}

// NewGameRepository creates a new GameRepository instance.
func NewGameRepository(pool *pgxpool.Pool) *GameRepository {
	return &GameRepository{pool: pool}
}

// Create inserts a game and its participants in one transaction.
// Returns ErrGameExists if the game ID is already used.
func (r *GameRepository) Create(ctx context.Context, agg *model.GameAggregate) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	const query = `
		INSERT INTO games (id, title, admin_password_hash, active, assignment_version, any_revealed, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	g := agg.Game
	_, err = tx.Exec(ctx, query, g.ID, g.Title, g.AdminPasswordHash, g.Active,
		g.AssignmentVersion, g.AnyRevealed, g.CreatedAt, g.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrGameExists
		}
		return fmt.Errorf("failed to create game: %w", err)
	}

	if err := upsertParticipants(ctx, tx, agg.Participants); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit game: %w", err)
	}
	return nil
}

// Get loads a game with its participants.
// Returns ErrGameNotFound if the game does not exist.
func (r *GameRepository) Get(ctx context.Context, gameID string) (*model.GameAggregate, error) {
	return loadAggregate(ctx, r.pool, gameID, false)
}

// List returns summaries of all games, newest first.
func (r *GameRepository) List(ctx context.Context) ([]model.GameSummary, error) {
	const query = `
		SELECT g.id, g.title, g.created_at, g.any_revealed, g.active, COUNT(p.id)
		FROM games g
		LEFT JOIN participants p ON p.game_id = g.id
		GROUP BY g.id
		ORDER BY g.created_at DESC
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list games: %w", err)
	}
	defer rows.Close()

	summaries := []model.GameSummary{}
	for rows.Next() {
		var s model.GameSummary
		if err := rows.Scan(&s.GameID, &s.Title, &s.CreatedAt, &s.AnyRevealed, &s.Active, &s.ParticipantCount); err != nil {
			return nil, fmt.Errorf("failed to scan game summary: %w", err)
		}
		summaries = append(summaries, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating games: %w", err)
	}

	return summaries, nil
}

// Update runs fn against the game inside a transaction holding the game row
// lock (SELECT ... FOR UPDATE). Changes made by fn are written only when fn
// returns nil; otherwise the transaction is rolled back and fn's error returned.
func (r *GameRepository) Update(ctx context.Context, gameID string, fn func(*model.GameAggregate) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	agg, err := loadAggregate(ctx, tx, gameID, true)
	if err != nil {
		return err
	}
	before := agg.Clone()

	if err := fn(agg); err != nil {
		return err
	}

	if err := persistChanges(ctx, tx, before, agg); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit game update: %w", err)
	}
	return nil
}

// Delete removes a game; participants are removed by cascade.
// Returns ErrGameNotFound if the game does not exist.
func (r *GameRepository) Delete(ctx context.Context, gameID string) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM games WHERE id = $1`, gameID)
	if err != nil {
		return fmt.Errorf("failed to delete game: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrGameNotFound
	}
	return nil
}

func loadAggregate(ctx context.Context, q querier, gameID string, forUpdate bool) (*model.GameAggregate, error) {
	query := `
		SELECT id, title, admin_password_hash, active, assignment_version, any_revealed, created_at, updated_at
		FROM games
		WHERE id = $1
	`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	var agg model.GameAggregate
	g := &agg.Game
	err := q.QueryRow(ctx, query, gameID).Scan(
		&g.ID,
		&g.Title,
		&g.AdminPasswordHash,
		&g.Active,
		&g.AssignmentVersion,
		&g.AnyRevealed,
		&g.CreatedAt,
		&g.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrGameNotFound
		}
		return nil, fmt.Errorf("failed to get game: %w", err)
	}

	const participantsQuery = `
		SELECT id::text, game_id, person_id::text, name, token, active, viewed, viewed_at,
		       assigned_participant_id::text, position, created_at
		FROM participants
		WHERE game_id = $1
		ORDER BY position
	`
	rows, err := q.Query(ctx, participantsQuery, gameID)
	if err != nil {
		return nil, fmt.Errorf("failed to get participants: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var p model.Participant
		err := rows.Scan(
			&p.ID,
			&p.GameID,
			&p.PersonID,
			&p.Name,
			&p.Token,
			&p.Active,
			&p.Viewed,
			&p.ViewedAt,
			&p.AssignedParticipantID,
			&p.Position,
			&p.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan participant: %w", err)
		}
		agg.Participants = append(agg.Participants, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating participants: %w", err)
	}

	return &agg, nil
}

// persistChanges writes the difference between before and after.
func persistChanges(ctx context.Context, tx pgx.Tx, before, after *model.GameAggregate) error {
	if before.Game != after.Game {
		const query = `
			UPDATE games
			SET title = $2, active = $3, assignment_version = $4, any_revealed = $5, updated_at = $6
			WHERE id = $1
		`
		g := after.Game
		if _, err := tx.Exec(ctx, query, g.ID, g.Title, g.Active, g.AssignmentVersion, g.AnyRevealed, g.UpdatedAt); err != nil {
			return fmt.Errorf("failed to update game: %w", err)
		}
	}

	kept := make(map[string]bool, len(after.Participants))
	for _, p := range after.Participants {
		kept[p.ID] = true
	}
	var removed []string
	for _, p := range before.Participants {
		if !kept[p.ID] {
			removed = append(removed, p.ID)
		}
	}
	if len(removed) > 0 {
		const query = `DELETE FROM participants WHERE game_id = $1 AND id::text = ANY($2)`
		if _, err := tx.Exec(ctx, query, after.Game.ID, removed); err != nil {
			return fmt.Errorf("failed to remove participants: %w", err)
		}
	}

	var changed []*model.Participant
	for _, p := range after.Participants {
		old := before.Participant(p.ID)
		if old == nil || !sameParticipant(old, p) {
			changed = append(changed, p)
		}
	}
	return upsertParticipants(ctx, tx, changed)
}

// upsertParticipants writes participants in a single batch round trip.
func upsertParticipants(ctx context.Context, tx pgx.Tx, participants []*model.Participant) error {
	if len(participants) == 0 {
		return nil
	}

	const query = `
		INSERT INTO participants (id, game_id, person_id, name, token, active, viewed, viewed_at,
		                          assigned_participant_id, position, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			active = EXCLUDED.active,
			viewed = EXCLUDED.viewed,
			viewed_at = EXCLUDED.viewed_at,
			assigned_participant_id = EXCLUDED.assigned_participant_id
	`

	batch := &pgx.Batch{}
	for _, p := range participants {
		batch.Queue(query, p.ID, p.GameID, p.PersonID, p.Name, p.Token, p.Active, p.Viewed,
			p.ViewedAt, p.AssignedParticipantID, p.Position, p.CreatedAt)
	}

	results := tx.SendBatch(ctx, batch)
	for range participants {
		if _, err := results.Exec(); err != nil {
			_ = results.Close()
			if isUniqueViolation(err) {
				return fmt.Errorf("%w: %v", ErrNameTaken, err)
			}
			return fmt.Errorf("failed to write participant: %w", err)
		}
	}
	if err := results.Close(); err != nil {
		return fmt.Errorf("failed to write participants: %w", err)
	}
	return nil
}

func sameParticipant(a, b *model.Participant) bool {
	return a.Name == b.Name &&
		a.Active == b.Active &&
		a.Viewed == b.Viewed &&
		equalTime(a, b) &&
		equalString(a.AssignedParticipantID, b.AssignedParticipantID)
}

func equalTime(a, b *model.Participant) bool {
	if a.ViewedAt == nil || b.ViewedAt == nil {
		return a.ViewedAt == nil && b.ViewedAt == nil
	}
	return a.ViewedAt.Equal(*b.ViewedAt)
}

func equalString(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
