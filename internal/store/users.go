package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/erazemk/zaupnik/internal/db"
	"github.com/erazemk/zaupnik/internal/model"
)

const userColumns = `id, username, display_name, email, password_hash, role, created_at, deleted_at`

func scanUser(rs rowScanner) (*model.User, error) {
	u := &model.User{}
	if err := rs.Scan(&u.ID, &u.Username, &u.DisplayName, &u.Email, &u.PasswordHash,
		&u.Role, &u.CreatedAt, &u.DeletedAt); err != nil {
		return nil, err
	}
	return u, nil
}

// CreateUser creates a new user.
func CreateUser(ctx context.Context, q db.Querier, username, displayName, email, passwordHash, role string) (*model.User, error) {
	if displayName == "" {
		displayName = username
	}

	id := uuid.NewString()
	_, err := q.ExecContext(ctx,
		`INSERT INTO users (id, username, display_name, email, password_hash, role, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, username, displayName, email, passwordHash, role, utc(time.Now()),
	)
	if err != nil {
		return nil, fmt.Errorf("creating user: %w", err)
	}

	return GetUser(ctx, q, id)
}

// GetUser returns a user by ID.
func GetUser(ctx context.Context, q db.Querier, id string) (*model.User, error) {
	u, err := scanUser(q.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting user: %w", err)
	}
	return u, nil
}

// GetUserByUsername returns a live user by username.
func GetUserByUsername(ctx context.Context, q db.Querier, username string) (*model.User, error) {
	u, err := scanUser(q.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = ? AND deleted_at IS NULL`, username,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting user by username: %w", err)
	}
	return u, nil
}

// GetUserByEmail returns the oldest live user registered with email.
func GetUserByEmail(ctx context.Context, q db.Querier, email string) (*model.User, error) {
	if email == "" {
		return nil, nil
	}
	u, err := scanUser(q.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users
		 WHERE email = ? AND deleted_at IS NULL
		 ORDER BY created_at LIMIT 1`, email,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting user by email: %w", err)
	}
	return u, nil
}

// ListUsers returns all non-deleted users.
func ListUsers(ctx context.Context, q db.Querier) ([]model.User, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE deleted_at IS NULL ORDER BY username`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning user: %w", err)
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

// UpdateUserPassword updates a user's password hash.
func UpdateUserPassword(ctx context.Context, q db.Querier, id, passwordHash string) error {
	_, err := q.ExecContext(ctx,
		`UPDATE users SET password_hash = ? WHERE id = ? AND deleted_at IS NULL`,
		passwordHash, id,
	)
	if err != nil {
		return fmt.Errorf("updating user password: %w", err)
	}
	return nil
}

// DeleteUser soft-deletes a user. Fails while the user still owns vaults,
// since every vault must keep exactly one owner.
func DeleteUser(ctx context.Context, q db.Querier, id string) error {
	var count int
	err := q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM vaults WHERE owner_id = ?`, id,
	).Scan(&count)
	if err != nil {
		return fmt.Errorf("checking owned vaults: %w", err)
	}
	if count > 0 {
		return fmt.Errorf("%w: user still owns %d vaults", model.ErrValidation, count)
	}

	_, err = q.ExecContext(ctx,
		`UPDATE users SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`,
		utc(time.Now()), id,
	)
	if err != nil {
		return fmt.Errorf("deleting user: %w", err)
	}
	return nil
}
