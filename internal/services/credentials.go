package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/AnshRaj112/chatooz-backend/internal/models"
	"github.com/AnshRaj112/chatooz-backend/pkg/utils"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

const pqUniqueViolation = "23505"

// CredentialStore issues and checks email/password identities in PostgreSQL.
type CredentialStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewCredentialStore(db *sql.DB) *CredentialStore {
	return &CredentialStore{db: db, now: time.Now}
}

// Register creates a new identity. The email is stored normalized.
func (s *CredentialStore) Register(ctx context.Context, email, password string) (*models.Identity, error) {
	email = utils.NormalizeEmail(email)
	if !utils.IsValidEmail(email) {
		return nil, ErrBadEmail
	}
	if len(password) < utils.MinPasswordLength {
		return nil, ErrWeakPassword
	}

	hash, err := utils.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	identity := &models.Identity{
		ID:           uuid.NewString(),
		Email:        email,
		CreatedAt:    s.now().UTC(),
		PasswordHash: hash,
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO users (id, email, password_hash, created_at)
		VALUES ($1, $2, $3, $4)
	`, identity.ID, identity.Email, identity.PasswordHash, identity.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == pqUniqueViolation {
			return nil, ErrEmailInUse
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return identity, nil
}

// Authenticate checks an email/password pair.
func (s *CredentialStore) Authenticate(ctx context.Context, email, password string) (*models.Identity, error) {
	email = utils.NormalizeEmail(email)
	if !utils.IsValidEmail(email) {
		return nil, ErrBadEmail
	}

	identity, err := s.scanOne(ctx, `
		SELECT id, email, password_hash, display_name, email_verified, created_at
		FROM users
		WHERE LOWER(email) = $1
	`, email)
	if err != nil {
		return nil, err
	}

	ok, err := utils.VerifyPassword(password, identity.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		return nil, ErrWrongPassword
	}
	return identity, nil
}

// Get loads an identity by id.
func (s *CredentialStore) Get(ctx context.Context, id string) (*models.Identity, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNoSuchUser
	}
	return s.scanOne(ctx, `
		SELECT id, email, password_hash, display_name, email_verified, created_at
		FROM users
		WHERE id = $1
	`, id)
}

// SetDisplayName stores the name shown when no profile record is available.
func (s *CredentialStore) SetDisplayName(ctx context.Context, id, name string) error {
	return s.update(ctx, `UPDATE users SET display_name = $1 WHERE id = $2`, strings.TrimSpace(name), id)
}

// MarkEmailVerified flags the identity's email as confirmed.
func (s *CredentialStore) MarkEmailVerified(ctx context.Context, id string) error {
	return s.update(ctx, `UPDATE users SET email_verified = TRUE WHERE id = $1`, id)
}

func (s *CredentialStore) update(ctx context.Context, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return ErrNoSuchUser
	}
	return nil
}

func (s *CredentialStore) scanOne(ctx context.Context, query string, arg any) (*models.Identity, error) {
	var identity models.Identity
	err := s.db.QueryRowContext(ctx, query, arg).Scan(
		&identity.ID,
		&identity.Email,
		&identity.PasswordHash,
		&identity.DisplayName,
		&identity.EmailVerified,
		&identity.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNoSuchUser
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return &identity, nil
}
