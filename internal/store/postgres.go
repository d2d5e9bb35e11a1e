package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/inklet-app/inklet/backend/internal/models"
)

// PostgresStore handles users and notes against PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Migrate creates the users and notes tables if they don't exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS users (
			id         UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			username   VARCHAR(50)  UNIQUE NOT NULL,
			email      VARCHAR(255) UNIQUE NOT NULL,
			password   VARCHAR(255) NOT NULL,
			style      VARCHAR(255) NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ  DEFAULT NOW()
		)
	`)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS notes (
			id         UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			user_id    UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			title      VARCHAR(255) NOT NULL,
			body       TEXT NOT NULL,
			tags       TEXT[] NOT NULL DEFAULT '{}',
			created_at TIMESTAMPTZ DEFAULT NOW(),
			updated_at TIMESTAMPTZ DEFAULT NOW()
		)
	`)
	return err
}

func (s *PostgresStore) CreateUser(ctx context.Context, username, email, hashedPassword, style string) (*models.User, error) {
	var u models.User
	err := s.pool.QueryRow(ctx,
		`INSERT INTO users (username, email, password, style)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, username, email, style, created_at`,
		username, email, hashedPassword, style,
	).Scan(&u.ID, &u.Username, &u.Email, &u.Style, &u.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return &u, nil
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	err := s.pool.QueryRow(ctx,
		`SELECT id, username, email, password, style, created_at FROM users WHERE email = $1`, email,
	).Scan(&u.ID, &u.Username, &u.Email, &u.Password, &u.Style, &u.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *PostgresStore) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	err := s.pool.QueryRow(ctx,
		`SELECT id, username, email, style, created_at FROM users WHERE id = $1`, id,
	).Scan(&u.ID, &u.Username, &u.Email, &u.Style, &u.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// UpdateUserStyle sets the account's default writing voice.
func (s *PostgresStore) UpdateUserStyle(ctx context.Context, id, style string) error {
	_, err := s.pool.Exec(ctx, `UPDATE users SET style = $2 WHERE id = $1`, id, style)
	return err
}

// GetUserStyle returns the account's default writing voice, which may be
// empty when the user never set one.
func (s *PostgresStore) GetUserStyle(ctx context.Context, id string) (string, error) {
	var style string
	err := s.pool.QueryRow(ctx, `SELECT style FROM users WHERE id = $1`, id).Scan(&style)
	if err != nil {
		return "", err
	}
	return style, nil
}

// ListUserIDs returns every user id; the daily scheduler sweeps over them.
func (s *PostgresStore) ListUserIDs(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT id FROM users`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *PostgresStore) CreateNote(ctx context.Context, userID string, req models.CreateNoteRequest) (*models.Note, error) {
	if req.Tags == nil {
		req.Tags = []string{}
	}
	var n models.Note
	err := s.pool.QueryRow(ctx,
		`INSERT INTO notes (user_id, title, body, tags)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, user_id, title, body, tags, created_at, updated_at`,
		userID, req.Title, req.Body, req.Tags,
	).Scan(&n.ID, &n.UserID, &n.Title, &n.Body, &n.Tags, &n.CreatedAt, &n.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("create note: %w", err)
	}
	return &n, nil
}

func (s *PostgresStore) GetNote(ctx context.Context, userID, id string) (*models.Note, error) {
	var n models.Note
	err := s.pool.QueryRow(ctx,
		`SELECT id, user_id, title, body, tags, created_at, updated_at
		 FROM notes WHERE user_id = $1 AND id = $2`, userID, id,
	).Scan(&n.ID, &n.UserID, &n.Title, &n.Body, &n.Tags, &n.CreatedAt, &n.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func (s *PostgresStore) ListNotesByUser(ctx context.Context, userID string) ([]models.Note, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, title, body, tags, created_at, updated_at
		 FROM notes WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanNotes(rows)
}

// GetNotesByIDs returns the user's notes matching ids, preserving only
// rows the user owns.
func (s *PostgresStore) GetNotesByIDs(ctx context.Context, userID string, ids []string) ([]models.Note, error) {
	if len(ids) == 0 {
		return []models.Note{}, nil
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, title, body, tags, created_at, updated_at
		 FROM notes WHERE user_id = $1 AND id = ANY($2)`, userID, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanNotes(rows)
}

func (s *PostgresStore) UpdateNote(ctx context.Context, userID, id string, req models.CreateNoteRequest) (*models.Note, error) {
	if req.Tags == nil {
		req.Tags = []string{}
	}
	var n models.Note
	err := s.pool.QueryRow(ctx,
		`UPDATE notes SET title = $3, body = $4, tags = $5, updated_at = NOW()
		 WHERE user_id = $1 AND id = $2
		 RETURNING id, user_id, title, body, tags, created_at, updated_at`,
		userID, id, req.Title, req.Body, req.Tags,
	).Scan(&n.ID, &n.UserID, &n.Title, &n.Body, &n.Tags, &n.CreatedAt, &n.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func (s *PostgresStore) DeleteNote(ctx context.Context, userID, id string) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM notes WHERE user_id = $1 AND id = $2`, userID, id)
	return err
}

func scanNotes(rows pgx.Rows) ([]models.Note, error) {
	notes := []models.Note{}
	for rows.Next() {
		var n models.Note
		if err := rows.Scan(&n.ID, &n.UserID, &n.Title, &n.Body, &n.Tags, &n.CreatedAt, &n.UpdatedAt); err != nil {
			return nil, err
		}
		notes = append(notes, n)
	}
	return notes, rows.Err()
}
