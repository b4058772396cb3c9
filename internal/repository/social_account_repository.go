package repository

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/maheshrc27/postflow/internal/models"
)

// SocialAccountRepository is read-only: accounts are created and refreshed by
// the connection flow.
type SocialAccountRepository interface {
	GetByUserID(ctx context.Context, userID int64, platform string) (*models.SocialAccount, error)
}

type socialAccountRepository struct {
	db *sql.DB
}

func NewSocialAccountRepository(db *sql.DB) SocialAccountRepository {
	return &socialAccountRepository{db: db}
}

func (r *socialAccountRepository) GetByUserID(ctx context.Context, userID int64, platform string) (*models.SocialAccount, error) {
	query := `
		SELECT id, user_id, platform, account_id, account_username, access_token,
			COALESCE(token_expires_at, 'epoch'::timestamptz), account_status, created_at, updated_at
		FROM social_accounts
		WHERE user_id = $1 AND platform = $2 AND account_status = 'active'
		ORDER BY created_at ASC
		LIMIT 1
	`
	var sa models.SocialAccount
	err := r.db.QueryRowContext(ctx, query, userID, platform).Scan(&sa.ID, &sa.UserID, &sa.Platform, &sa.AccountID,
		&sa.AccountUsername, &sa.AccessToken, &sa.TokenExpiresAt, &sa.AccountStatus, &sa.CreatedAt, &sa.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}
	return &sa, nil
}
