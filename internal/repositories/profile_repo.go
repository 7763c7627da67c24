package repositories

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/BradenHooton/authguard/internal/database"
	"github.com/BradenHooton/authguard/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ProfileRepository is the Postgres user directory
type ProfileRepository struct {
	pool *pgxpool.Pool
}

func NewProfileRepository(db *database.DB) *ProfileRepository {
	return &ProfileRepository{pool: db.Pool}
}

// rowScanner is satisfied by pgx.Row and pgx.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

const profileColumns = `id, username, email, avatar_url, bio, followers_count, following_count, posts_count, is_verified, is_active, created_at, updated_at`

func scanProfileRow(scanner rowScanner) (*models.Profile, error) {
	var p models.Profile
	err := scanner.Scan(
		&p.ID, &p.Username, &p.Email, &p.AvatarURL, &p.Bio,
		&p.FollowersCount, &p.FollowingCount, &p.PostsCount,
		&p.IsVerified, &p.IsActive, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return &p, nil
}

// ResolveHandleToEmail returns the email registered for a username
func (r *ProfileRepository) ResolveHandleToEmail(ctx context.Context, handle string) (string, error) {
	var email string
	err := r.pool.QueryRow(ctx,
		`SELECT email FROM profiles WHERE LOWER(username) = LOWER($1)`,
		strings.TrimSpace(handle),
	).Scan(&email)
	if err != nil {
		return "", database.MapPostgresError(err)
	}
	return email, nil
}

func (r *ProfileRepository) UsernameExists(ctx context.Context, username string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM profiles WHERE LOWER(username) = LOWER($1))`,
		strings.TrimSpace(username),
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check username: %w", database.MapPostgresError(err))
	}
	return exists, nil
}

func (r *ProfileRepository) CreateProfile(ctx context.Context, accountID, username, email string) error {
	now := time.Now()
	query := `
		INSERT INTO profiles (id, username, email, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
	`

	if _, err := r.pool.Exec(ctx, query, accountID, strings.TrimSpace(username), strings.TrimSpace(email), now); err != nil {
		return database.MapPostgresError(err)
	}
	return nil
}

func (r *ProfileRepository) FetchProfile(ctx context.Context, accountID string) (*models.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE id = $1`
	return scanProfileRow(r.pool.QueryRow(ctx, query, accountID))
}

// UpdateProfile applies the non-nil fields of update
func (r *ProfileRepository) UpdateProfile(ctx context.Context, accountID string, update models.ProfileUpdate) (*models.Profile, error) {
	sets := make([]string, 0, 4)
	args := pgx.NamedArgs{"id": accountID}

	if update.Username != nil {
		sets = append(sets, "username = @username")
		args["username"] = strings.TrimSpace(*update.Username)
	}
	if update.Bio != nil {
		sets = append(sets, "bio = @bio")
		args["bio"] = *update.Bio
	}
	if update.AvatarURL != nil {
		sets = append(sets, "avatar_url = @avatar_url")
		args["avatar_url"] = *update.AvatarURL
	}
	if len(sets) == 0 {
		return r.FetchProfile(ctx, accountID)
	}
	sets = append(sets, "updated_at = NOW()")

	query := `UPDATE profiles SET ` + strings.Join(sets, ", ") + ` WHERE id = @id RETURNING ` + profileColumns
	return scanProfileRow(r.pool.QueryRow(ctx, query, args))
}
