package repository

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
)

type ApiKeyRepository interface {
	GetUserIDByKey(ctx context.Context, apiKey string) (int64, error)
}

type apiKeyRepository struct {
	db *sql.DB
}

func NewApiKeyRepository(db *sql.DB) ApiKeyRepository {
	return &apiKeyRepository{db: db}
}

func (r *apiKeyRepository) GetUserIDByKey(ctx context.Context, apiKey string) (int64, error) {
	var userID int64
	err := r.db.QueryRowContext(ctx, "SELECT user_id FROM api_keys WHERE api_key = $1", apiKey).Scan(&userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrNotFound
		}
		slog.Info(err.Error())
		return 0, err
	}
	return userID, nil
}
