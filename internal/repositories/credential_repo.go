package repositories

import (
	"context"
	"strings"
	"time"

	"github.com/BradenHooton/authguard/internal/database"
	"github.com/BradenHooton/authguard/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// CredentialRepository stores the local identity provider's accounts
type CredentialRepository struct {
	db   *database.DB
	pool *pgxpool.Pool
}

func NewCredentialRepository(db *database.DB) *CredentialRepository {
	return &CredentialRepository{db: db, pool: db.Pool}
}

const credentialColumns = `account_id, email, password_hash, email_verified, created_at, updated_at`

func scanCredentialRow(scanner rowScanner) (*models.Credential, error) {
	var cred models.Credential
	err := scanner.Scan(
		&cred.AccountID, &cred.Email, &cred.PasswordHash, &cred.EmailVerified,
		&cred.CreatedAt, &cred.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return &cred, nil
}

func (r *CredentialRepository) Create(ctx context.Context, email, passwordHash string) (*models.Credential, error) {
	now := time.Now()

	query := `
		INSERT INTO credentials (account_id, email, password_hash, email_verified, created_at, updated_at)
		VALUES ($1, $2, $3, FALSE, $4, $4)
		RETURNING ` + credentialColumns

	return scanCredentialRow(r.pool.QueryRow(ctx, query,
		uuid.NewString(), strings.ToLower(strings.TrimSpace(email)), passwordHash, now,
	))
}

func (r *CredentialRepository) GetByEmail(ctx context.Context, email string) (*models.Credential, error) {
	query := `SELECT ` + credentialColumns + ` FROM credentials WHERE LOWER(email) = LOWER($1)`

	return scanCredentialRow(r.pool.QueryRow(ctx, query, strings.TrimSpace(email)))
}

func (r *CredentialRepository) UpdatePassword(ctx context.Context, accountID, passwordHash string) error {
	query := `UPDATE credentials SET password_hash = $1, updated_at = NOW() WHERE account_id = $2`

	result, err := r.pool.Exec(ctx, query, passwordHash, accountID)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (r *CredentialRepository) MarkEmailVerified(ctx context.Context, accountID string) error {
	// the public profile flag moves with the credential
	return r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		result, err := tx.Exec(ctx,
			`UPDATE credentials SET email_verified = TRUE, updated_at = NOW() WHERE account_id = $1`, accountID)
		if err != nil {
			return database.MapPostgresError(err)
		}
		if result.RowsAffected() == 0 {
			return models.ErrNotFound
		}

		if _, err := tx.Exec(ctx,
			`UPDATE profiles SET is_verified = TRUE, updated_at = NOW() WHERE id = $1`, accountID); err != nil {
			return database.MapPostgresError(err)
		}
		return nil
	})
}
