package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Staysteady/bpipe/internal/db"
	"github.com/Staysteady/bpipe/internal/models"
)

type SessionRepo struct {
	db *db.DB
}

func NewSessionRepo(d *db.DB) *SessionRepo {
	return &SessionRepo{db: d}
}

func (r *SessionRepo) Create(ctx context.Context, s *models.UserSession) error {
	conn, err := r.db.Conn()
	if err != nil {
		return err
	}
	_, err = conn.ExecContext(ctx,
		`INSERT INTO user_sessions (
			session_id, user_id, created_at, expires_at, is_active
		) VALUES (?, ?, ?, ?, ?)`,
		s.SessionID, s.UserID, s.CreatedAt, s.ExpiresAt, s.IsActive,
	)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// Get returns the session for a token, nil when absent or already
// invalidated. Expiry is NOT checked here; callers own that (and should
// invalidate lazily on detection).
func (r *SessionRepo) Get(ctx context.Context, sessionID string) (*models.UserSession, error) {
	conn, err := r.db.Conn()
	if err != nil {
		return nil, err
	}

	row := conn.QueryRowContext(ctx,
		`SELECT session_id, user_id, created_at, expires_at, is_active
		 FROM user_sessions
		 WHERE session_id = ? AND is_active = true`,
		sessionID,
	)

	var s models.UserSession
	err = row.Scan(&s.SessionID, &s.UserID, &s.CreatedAt, &s.ExpiresAt, &s.IsActive)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return &s, nil
}

// Invalidate flips the session inactive. Idempotent; invalidating an unknown
// or already-inactive token is not an error. There is no way back to valid.
func (r *SessionRepo) Invalidate(ctx context.Context, sessionID string) error {
	conn, err := r.db.Conn()
	if err != nil {
		return err
	}
	_, err = conn.ExecContext(ctx,
		`UPDATE user_sessions SET is_active = false WHERE session_id = ?`, sessionID)
	if err != nil {
		return fmt.Errorf("invalidate session: %w", err)
	}
	return nil
}

// SweepExpired deactivates every still-active session whose expiry has
// passed and returns how many were flipped by this call. Safe to repeat.
func (r *SessionRepo) SweepExpired(ctx context.Context) (int, error) {
	conn, err := r.db.Conn()
	if err != nil {
		return 0, err
	}

	now := time.Now()

	// Count first, then flip. The handle is single-caller (see db.DB), so
	// nothing can slip in between the two statements.
	var count int
	err = conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM user_sessions WHERE expires_at < ? AND is_active = true`,
		now,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count expired sessions: %w", err)
	}

	_, err = conn.ExecContext(ctx,
		`UPDATE user_sessions SET is_active = false WHERE expires_at < ? AND is_active = true`,
		now,
	)
	if err != nil {
		return 0, fmt.Errorf("sweep expired sessions: %w", err)
	}
	return count, nil
}
