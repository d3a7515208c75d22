package users

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Store interface {
	GetByID(ctx context.Context, id int64) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	CreateAndInvite(ctx context.Context, user *User, token string, exp time.Duration) error
	Activate(ctx context.Context, token string) error
	Delete(ctx context.Context, id int64) error
	Update(ctx context.Context, user *User) error
	SaveRefreshToken(ctx context.Context, userID int64, refreshToken string) error
	GetRefreshToken(ctx context.Context, userID int64) (string, error)
	DeleteRefreshToken(ctx context.Context, userID int64) error
}

type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Store {
	return &Repository{db: db}
}

func (r *Repository) GetByID(ctx context.Context, id int64) (*User, error) {
	var u User
	err := r.db.QueryRow(ctx, `
SELECT id, first_name, last_name, email, password, role, is_active, created_at, updated_at
FROM users
WHERE id = $1 AND is_active = true
`, id).Scan(&u.ID, &u.FirstName, &u.LastName, &u.Email, &u.Password.hash, &u.Role, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

func (r *Repository) GetByEmail(ctx context.Context, email string) (*User, error) {
	var u User
	err := r.db.QueryRow(ctx, `
SELECT id, first_name, last_name, email, password, role, is_active, created_at, updated_at
FROM users
WHERE email = $1 AND is_active = true
`, email).Scan(&u.ID, &u.FirstName, &u.LastName, &u.Email, &u.Password.hash, &u.Role, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return &u, nil
}

// CreateAndInvite stores the user (inactive) together with its hashed
// invitation token in one transaction.
func (r *Repository) CreateAndInvite(ctx context.Context, user *User, token string, exp time.Duration) error {
	return r.withTx(ctx, func(tx pgx.Tx) error {
		if err := r.create(ctx, tx, user); err != nil {
			return err
		}

		_, err := tx.Exec(ctx, `
INSERT INTO user_invitations (token, user_id, expiry)
VALUES ($1, $2, $3)
`, token, user.ID, time.Now().Add(exp))
		if err != nil {
			return fmt.Errorf("create invitation: %w", err)
		}
		return nil
	})
}

func (r *Repository) create(ctx context.Context, tx pgx.Tx, user *User) error {
	role := user.Role
	if role == "" {
		role = "customer"
	}

	err := tx.QueryRow(ctx, `
INSERT INTO users (first_name, last_name, email, password, role)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, role, is_active, created_at, updated_at
`, user.FirstName, user.LastName, user.Email, user.Password.hash, role).
		Scan(&user.ID, &user.Role, &user.IsActive, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// Activate flips is_active using the sha256 of the plaintext token and burns
// the invitation.
func (r *Repository) Activate(ctx context.Context, token string) error {
	hash := sha256.Sum256([]byte(token))
	hashToken := hex.EncodeToString(hash[:])

	return r.withTx(ctx, func(tx pgx.Tx) error {
		var userID int64
		err := tx.QueryRow(ctx, `
SELECT user_id FROM user_invitations
WHERE token = $1 AND expiry > now()
`, hashToken).Scan(&userID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrNotFound
			}
			return fmt.Errorf("find invitation: %w", err)
		}

		if _, err := tx.Exec(ctx, `
UPDATE users SET is_active = true, updated_at = now() WHERE id = $1
`, userID); err != nil {
			return fmt.Errorf("activate user: %w", err)
		}

		if _, err := tx.Exec(ctx, `
DELETE FROM user_invitations WHERE user_id = $1
`, userID); err != nil {
			return fmt.Errorf("delete invitation: %w", err)
		}
		return nil
	})
}

func (r *Repository) Delete(ctx context.Context, id int64) error {
	return r.withTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM user_invitations WHERE user_id = $1`, id); err != nil {
			return fmt.Errorf("delete invitations: %w", err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM users WHERE id = $1`, id); err != nil {
			return fmt.Errorf("delete user: %w", err)
		}
		return nil
	})
}

func (r *Repository) Update(ctx context.Context, user *User) error {
	tag, err := r.db.Exec(ctx, `
UPDATE users
SET first_name = $2, last_name = $3, updated_at = now()
WHERE id = $1
`, user.ID, user.FirstName, user.LastName)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) SaveRefreshToken(ctx context.Context, userID int64, refreshToken string) error {
	_, err := r.db.Exec(ctx, `
UPDATE users SET refresh_token = $2, updated_at = now() WHERE id = $1
`, userID, refreshToken)
	return err
}

func (r *Repository) GetRefreshToken(ctx context.Context, userID int64) (string, error) {
	var token string
	err := r.db.QueryRow(ctx, `
SELECT COALESCE(refresh_token, '') FROM users WHERE id = $1
`, userID).Scan(&token)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("get refresh token: %w", err)
	}
	return token, nil
}

func (r *Repository) DeleteRefreshToken(ctx context.Context, userID int64) error {
	_, err := r.db.Exec(ctx, `
UPDATE users SET refresh_token = NULL, updated_at = now() WHERE id = $1
`, userID)
	return err
}

func (r *Repository) withTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
