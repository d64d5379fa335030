package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/yeet-socket/yeet/internal/model"
)

const sessionColumns = `id, remote_addr, identity, status, prompts, failures, opened_at, updated_at, closed_at`

// SessionRepository provides data access for session audit records.
type SessionRepository struct {
	db *sql.DB
}

// NewSessionRepository creates a new SessionRepository.
func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Create inserts a new session into the database.
func (r *SessionRepository) Create(ctx context.Context, session *model.Session) error {
	query := `
		INSERT INTO sessions (` + sessionColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query,
		session.ID,
		session.RemoteAddr,
		nullString(session.Identity),
		session.Status,
		session.Prompts,
		session.Failures,
		session.OpenedAt,
		session.UpdatedAt,
		session.ClosedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	return nil
}

// GetByID retrieves a session by its ID.
func (r *SessionRepository) GetByID(ctx context.Context, id string) (*model.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE id = ?`

	session, err := scanSession(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return session, nil
}

// List retrieves the most recently opened sessions, newest first. A
// non-positive limit returns all of them.
func (r *SessionRepository) List(ctx context.Context, limit int) ([]*model.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions ORDER BY opened_at DESC, id`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*model.Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, session)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sessions: %w", err)
	}

	return sessions, nil
}

// SetIdentity records the identity announced by the peer.
func (r *SessionRepository) SetIdentity(ctx context.Context, id, identity string) error {
	query := `
		UPDATE sessions
		SET identity = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`
	return r.update(ctx, id, "set identity", query, identity, time.Now(), id, model.SessionStatusOpen)
}

// RecordPrompt counts one handled prompt and, when failed is set, one failure.
func (r *SessionRepository) RecordPrompt(ctx context.Context, id string, failed bool) error {
	failures := 0
	if failed {
		failures = 1
	}
	query := `
		UPDATE sessions
		SET prompts = prompts + 1, failures = failures + ?, updated_at = ?
		WHERE id = ? AND status = ?
	`
	return r.update(ctx, id, "record prompt", query, failures, time.Now(), id, model.SessionStatusOpen)
}

// Close marks a session closed at closedAt.
func (r *SessionRepository) Close(ctx context.Context, id string, closedAt time.Time) error {
	query := `
		UPDATE sessions
		SET status = ?, closed_at = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`
	return r.update(ctx, id, "close session", query,
		model.SessionStatusClosed, closedAt, closedAt, id, model.SessionStatusOpen)
}

// CloseStale closes every record still marked open, which after a restart
// can only belong to connections that no longer exist.
func (r *SessionRepository) CloseStale(ctx context.Context, closedAt time.Time) (int, error) {
	query := `
		UPDATE sessions
		SET status = ?, closed_at = ?, updated_at = ?
		WHERE status = ?
	`

	result, err := r.db.ExecContext(ctx, query,
		model.SessionStatusClosed, closedAt, closedAt, model.SessionStatusOpen)
	if err != nil {
		return 0, fmt.Errorf("failed to close stale sessions: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return int(n), nil
}

// CountOpen returns the number of sessions marked open.
func (r *SessionRepository) CountOpen(ctx context.Context) (int, error) {
	query := `SELECT COUNT(*) FROM sessions WHERE status = ?`

	var count int
	err := r.db.QueryRowContext(ctx, query, model.SessionStatusOpen).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count open sessions: %w", err)
	}

	return count, nil
}

// update runs a single-row UPDATE and maps a miss to ErrSessionNotFound or
// ErrSessionClosed.
func (r *SessionRepository) update(ctx context.Context, id, op, query string, args ...any) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to %s: %w", op, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected > 0 {
		return nil
	}

	if _, err := r.GetByID(ctx, id); err != nil {
		return err
	}
	return model.ErrSessionClosed
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*model.Session, error) {
	session := &model.Session{}
	var identity sql.NullString
	var closedAt sql.NullTime

	err := row.Scan(
		&session.ID,
		&session.RemoteAddr,
		&identity,
		&session.Status,
		&session.Prompts,
		&session.Failures,
		&session.OpenedAt,
		&session.UpdatedAt,
		&closedAt,
	)
	if err != nil {
		return nil, err
	}

	if identity.Valid {
		session.Identity = identity.String
	}
	if closedAt.Valid {
		t := closedAt.Time
		session.ClosedAt = &t
	}

	return session, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
