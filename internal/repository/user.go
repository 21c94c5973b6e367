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

const userColumns = `id, username, email, password_hash, salt,
	created_at, last_login, is_active, role`

type UserRepo struct {
	db *db.DB
}

func NewUserRepo(d *db.DB) *UserRepo {
	return &UserRepo{db: d}
}

// Create inserts a new user. Username and email carry UNIQUE constraints in
// the schema, so a lost check-then-insert race fails here instead of
// producing duplicates.
func (r *UserRepo) Create(ctx context.Context, u *models.User) error {
	conn, err := r.db.Conn()
	if err != nil {
		return err
	}

	_, err = conn.ExecContext(ctx,
		`INSERT INTO users (
			id, username, email, password_hash, salt,
			created_at, last_login, is_active, role
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Username, u.Email, u.PasswordHash, u.Salt,
		u.CreatedAt, u.LastLogin, u.IsActive, u.Role,
	)
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// GetByUsername returns the active user with that username, nil when absent.
func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.getOne(ctx, `username = ?`, username)
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.getOne(ctx, `email = ?`, email)
}

func (r *UserRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	return r.getOne(ctx, `id = ?`, id)
}

func (r *UserRepo) getOne(ctx context.Context, where string, arg any) (*models.User, error) {
	conn, err := r.db.Conn()
	if err != nil {
		return nil, err
	}

	row := conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE `+where+` AND is_active = true`, arg)

	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// TouchLastLogin stamps the user's last_login with the current time.
func (r *UserRepo) TouchLastLogin(ctx context.Context, userID string) error {
	conn, err := r.db.Conn()
	if err != nil {
		return err
	}
	_, err = conn.ExecContext(ctx,
		`UPDATE users SET last_login = ? WHERE id = ?`, time.Now(), userID)
	if err != nil {
		return fmt.Errorf("touch last login: %w", err)
	}
	return nil
}

func scanUser(row scannable) (*models.User, error) {
	var u models.User
	var lastLogin sql.NullTime
	err := row.Scan(
		&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.Salt,
		&u.CreatedAt, &lastLogin, &u.IsActive, &u.Role,
	)
	if err != nil {
		return nil, err
	}
	if lastLogin.Valid {
		t := lastLogin.Time
		u.LastLogin = &t
	}
	return &u, nil
}
