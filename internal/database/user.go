package database

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/hieudev/pricewatch/internal/models"
)

var (
	// ErrInvalidCredentials is returned when a username/password pair
	// does not match a stored account.
	ErrInvalidCredentials = errors.New("invalid username or password")
	// ErrLastAdmin guards the invariant that at least one admin account
	// exists at all times.
	ErrLastAdmin = errors.New("cannot remove the last admin account")
)

// HashPassword returns the hex SHA-256 digest of a password. Credentials
// travel as plaintext parameters in this API, so the hash only protects
// the stored column, nothing more.
func HashPassword(password string) string {
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:])
}

// CreateUser registers an account. Usernames are unique.
func (db *DB) CreateUser(ctx context.Context, username, password string, role models.Role) (*models.User, error) {
	query := `
		INSERT INTO users (username, password_hash, role)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`

	u := &models.User{Username: username, Role: role}
	err := db.pool.QueryRow(ctx, query, username, HashPassword(password), role).
		Scan(&u.ID, &u.CreatedAt)

	if isUniqueViolation(err) {
		return nil, ErrDuplicate
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return u, nil
}

// Authenticate checks a plaintext username/password pair against the
// stored hash.
func (db *DB) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	query := `
		SELECT id, username, role, created_at
		FROM users
		WHERE username = $1 AND password_hash = $2`

	u := &models.User{}
	err := db.pool.QueryRow(ctx, query, username, HashPassword(password)).
		Scan(&u.ID, &u.Username, &u.Role, &u.CreatedAt)

	if err == pgx.ErrNoRows {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("failed to authenticate: %w", err)
	}

	return u, nil
}

// AuthenticateAdmin is Authenticate plus a role check, used by the
// privileged endpoints that carry admin credentials on every call.
func (db *DB) AuthenticateAdmin(ctx context.Context, username, password string) (*models.User, error) {
	u, err := db.Authenticate(ctx, username, password)
	if err != nil {
		return nil, err
	}
	if u.Role != models.RoleAdmin {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

// ListUsers returns every account, newest first.
func (db *DB) ListUsers(ctx context.Context) ([]*models.User, error) {
	query := `
		SELECT id, username, role, created_at
		FROM users
		ORDER BY created_at DESC`

	rows, err := db.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		u := &models.User{}
		if err := rows.Scan(&u.ID, &u.Username, &u.Role, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return users, nil
}

// DeleteUser removes an account, refusing to delete the last remaining
// admin.
func (db *DB) DeleteUser(ctx context.Context, id int64) error {
	return db.Transaction(ctx, func(tx pgx.Tx) error {
		var role models.Role
		err := tx.QueryRow(ctx, `SELECT role FROM users WHERE id = $1 FOR UPDATE`, id).Scan(&role)
		if err == pgx.ErrNoRows {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to get user: %w", err)
		}

		if role == models.RoleAdmin {
			if err := requireAnotherAdmin(ctx, tx, id); err != nil {
				return err
			}
		}

		if _, err := tx.Exec(ctx, `DELETE FROM users WHERE id = $1`, id); err != nil {
			return fmt.Errorf("failed to delete user: %w", err)
		}
		return nil
	})
}

// UpdateUserRole changes an account's role, refusing to demote the last
// remaining admin.
func (db *DB) UpdateUserRole(ctx context.Context, id int64, role models.Role) error {
	return db.Transaction(ctx, func(tx pgx.Tx) error {
		if role == models.RoleUser {
			if err := requireAnotherAdmin(ctx, tx, id); err != nil {
				return err
			}
		}

		result, err := tx.Exec(ctx, `UPDATE users SET role = $2 WHERE id = $1`, id, role)
		if err != nil {
			return fmt.Errorf("failed to update role: %w", err)
		}
		if result.RowsAffected() == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// UpdateUserAccount renames an account and/or replaces its password.
// Empty fields are left unchanged.
func (db *DB) UpdateUserAccount(ctx context.Context, id int64, username, password string) error {
	query := `
		UPDATE users SET
			username = COALESCE(NULLIF($2, ''), username),
			password_hash = COALESCE(NULLIF($3, ''), password_hash)
		WHERE id = $1`

	var passwordHash string
	if password != "" {
		passwordHash = HashPassword(password)
	}

	result, err := db.pool.Exec(ctx, query, id, username, passwordHash)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("failed to update account: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// VerifyPassword checks an account's current password by id.
func (db *DB) VerifyPassword(ctx context.Context, id int64, password string) error {
	var ok bool
	err := db.pool.QueryRow(ctx,
		`SELECT password_hash = $2 FROM users WHERE id = $1`,
		id, HashPassword(password)).Scan(&ok)

	if err == pgx.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to verify password: %w", err)
	}
	if !ok {
		return ErrInvalidCredentials
	}
	return nil
}

// EnsureAdmin bootstraps the default admin account when no admin exists
// yet. It never resets an existing one.
func (db *DB) EnsureAdmin(ctx context.Context, username, password string) error {
	var count int
	err := db.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE role = 'admin'`).Scan(&count)
	if err != nil {
		return fmt.Errorf("failed to count admins: %w", err)
	}

	if count > 0 {
		return nil
	}

	if _, err := db.CreateUser(ctx, username, password, models.RoleAdmin); err != nil {
		return fmt.Errorf("failed to bootstrap admin: %w", err)
	}

	return nil
}

func requireAnotherAdmin(ctx context.Context, tx pgx.Tx, excludeID int64) error {
	var others int
	err := tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM users WHERE role = 'admin' AND id <> $1`, excludeID).Scan(&others)
	if err != nil {
		return fmt.Errorf("failed to count admins: %w", err)
	}
	if others == 0 {
		return ErrLastAdmin
	}
	return nil
}
