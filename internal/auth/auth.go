// Package auth is the authentication facade over the user and session
// stores. It owns the hashing and session-duration policy; the stores only
// persist what they are given. There is no process-global current user:
// the session token is an explicit argument on every call, so the facade is
// reentrant and trivially testable.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Staysteady/bpipe/internal/models"
	"github.com/Staysteady/bpipe/internal/repository"
)

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrUsernameTaken      = errors.New("username already exists")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidSession     = errors.New("invalid or expired session")
)

const DefaultSessionDuration = 24 * time.Hour

type Manager struct {
	users      *repository.UserRepo
	sessions   *repository.SessionRepo
	sessionTTL time.Duration
}

func NewManager(users *repository.UserRepo, sessions *repository.SessionRepo, sessionTTL time.Duration) *Manager {
	if sessionTTL <= 0 {
		sessionTTL = DefaultSessionDuration
	}
	return &Manager{users: users, sessions: sessions, sessionTTL: sessionTTL}
}

// Register creates a new account. The duplicate checks here are a fast path
// for friendly errors; the users table carries UNIQUE constraints that make
// the race between check and insert harmless.
func (m *Manager) Register(ctx context.Context, username, email, password, role string) (*models.User, error) {
	if role == "" {
		role = models.RoleUser
	}

	if existing, err := m.users.GetByUsername(ctx, username); err != nil {
		return nil, err
	} else if existing != nil {
		return nil, ErrUsernameTaken
	}
	if existing, err := m.users.GetByEmail(ctx, email); err != nil {
		return nil, err
	} else if existing != nil {
		return nil, ErrEmailTaken
	}

	salt, err := GenerateSalt()
	if err != nil {
		return nil, err
	}

	user := &models.User{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        email,
		PasswordHash: HashPassword(password, salt),
		Salt:         salt,
		CreatedAt:    time.Now(),
		IsActive:     true,
		Role:         role,
	}

	if err := m.users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("create account: %w", err)
	}

	fmt.Printf("[AUTH] Created account: %s (%s)\n", username, role)
	return user, nil
}

// Login verifies credentials and mints a session. Expired sessions are swept
// opportunistically on every successful login.
func (m *Manager) Login(ctx context.Context, username, password string) (*models.User, *models.UserSession, error) {
	user, err := m.users.GetByUsername(ctx, username)
	if err != nil {
		return nil, nil, err
	}
	if user == nil || !VerifyPassword(password, user.Salt, user.PasswordHash) {
		return nil, nil, ErrInvalidCredentials
	}

	if err := m.users.TouchLastLogin(ctx, user.ID); err != nil {
		fmt.Printf("[AUTH] Warning: could not update last login for %s: %v\n", username, err)
	}

	now := time.Now()
	session := &models.UserSession{
		SessionID: uuid.NewString(),
		UserID:    user.ID,
		CreatedAt: now,
		ExpiresAt: now.Add(m.sessionTTL),
		IsActive:  true,
	}
	if err := m.sessions.Create(ctx, session); err != nil {
		return nil, nil, fmt.Errorf("create session: %w", err)
	}

	if swept, err := m.sessions.SweepExpired(ctx); err == nil && swept > 0 {
		fmt.Printf("[AUTH] Swept %d expired sessions\n", swept)
	}

	fmt.Printf("[AUTH] User %s logged in\n", username)
	return user, session, nil
}

// ValidateSession resolves a token to its user. An expired or orphaned
// session is lazily invalidated on detection.
func (m *Manager) ValidateSession(ctx context.Context, token string) (*models.User, error) {
	if token == "" {
		return nil, ErrInvalidSession
	}

	session, err := m.sessions.Get(ctx, token)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrInvalidSession
	}

	if session.Expired(time.Now()) {
		_ = m.sessions.Invalidate(ctx, token)
		return nil, ErrInvalidSession
	}

	user, err := m.users.GetByID(ctx, session.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		_ = m.sessions.Invalidate(ctx, token)
		return nil, ErrInvalidSession
	}

	return user, nil
}

// Logout invalidates the session for a token. Idempotent.
func (m *Manager) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return m.sessions.Invalidate(ctx, token)
}

// SweepExpired deactivates expired sessions, returning how many changed.
func (m *Manager) SweepExpired(ctx context.Context) (int, error) {
	return m.sessions.SweepExpired(ctx)
}
