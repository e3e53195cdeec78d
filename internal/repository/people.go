package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"secret-friend/internal/model"
)

// PeopleRepository handles the shared people directory in PostgreSQL.
type PeopleRepository struct {
	pool *pgxpool.Pool
}

// NewPeopleRepository creates a new PeopleRepository instance.
func NewPeopleRepository(pool *pgxpool.Pool) *PeopleRepository {
	return &PeopleRepository{pool: pool}
}

// List returns people ordered by name. Inactive entries are included only
// when includeInactive is set.
func (r *PeopleRepository) List(ctx context.Context, includeInactive bool) ([]model.Person, error) {
	const query = `
		SELECT id::text, name, active
		FROM people
		WHERE active OR $1
		ORDER BY LOWER(name)
	`

	rows, err := r.pool.Query(ctx, query, includeInactive)
	if err != nil {
		return nil, fmt.Errorf("failed to list people: %w", err)
	}
	return collectPeople(rows)
}

// GetByIDs returns the people with the given IDs, in directory order.
// Unknown IDs are skipped.
func (r *PeopleRepository) GetByIDs(ctx context.Context, ids []string) ([]model.Person, error) {
	if len(ids) == 0 {
		return []model.Person{}, nil
	}

	const query = `
		SELECT id::text, name, active
		FROM people
		WHERE id::text = ANY($1)
		ORDER BY LOWER(name)
	`

	rows, err := r.pool.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to get people: %w", err)
	}
	return collectPeople(rows)
}

// Create inserts people in a single transaction.
// Returns ErrNameTaken if any name collides with an existing entry.
func (r *PeopleRepository) Create(ctx context.Context, people []model.Person) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	const query = `INSERT INTO people (id, name, active) VALUES ($1, $2, $3)`
	for _, p := range people {
		if _, err := tx.Exec(ctx, query, p.ID, p.Name, p.Active); err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("%w: %s", ErrNameTaken, p.Name)
			}
			return fmt.Errorf("failed to create person: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit people: %w", err)
	}
	return nil
}

// Rename changes a person's name.
// Returns ErrPersonNotFound or ErrNameTaken.
func (r *PeopleRepository) Rename(ctx context.Context, id, name string) (*model.Person, error) {
	const query = `
		UPDATE people SET name = $2
		WHERE id::text = $1
		RETURNING id::text, name, active
	`
	return r.updateOne(ctx, query, id, name)
}

// SetActive flips a person's active flag.
// Returns ErrPersonNotFound if the person does not exist.
func (r *PeopleRepository) SetActive(ctx context.Context, id string, active bool) (*model.Person, error) {
	const query = `
		UPDATE people SET active = $2
		WHERE id::text = $1
		RETURNING id::text, name, active
	`
	return r.updateOne(ctx, query, id, active)
}

func (r *PeopleRepository) updateOne(ctx context.Context, query string, args ...any) (*model.Person, error) {
	var p model.Person
	err := r.pool.QueryRow(ctx, query, args...).Scan(&p.ID, &p.Name, &p.Active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPersonNotFound
		}
		if isUniqueViolation(err) {
			return nil, ErrNameTaken
		}
		return nil, fmt.Errorf("failed to update person: %w", err)
	}
	return &p, nil
}

func collectPeople(rows pgx.Rows) ([]model.Person, error) {
	defer rows.Close()

	people := []model.Person{}
	for rows.Next() {
		var p model.Person
		if err := rows.Scan(&p.ID, &p.Name, &p.Active); err != nil {
			return nil, fmt.Errorf("failed to scan person: %w", err)
		}
		people = append(people, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating people: %w", err)
	}
	return people, nil
}
