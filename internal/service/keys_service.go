package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/maheshrc27/postflow/internal/repository"
)

var ErrUnknownAPIKey = errors.New("Key doesn't exist")

// ApiKeyService resolves API keys issued by the account settings flow.
type ApiKeyService interface {
	GetUserID(ctx context.Context, apiKey string) (int64, error)
}

type apiKeyService struct {
	k repository.ApiKeyRepository
}

func NewApiKeyService(k repository.ApiKeyRepository) ApiKeyService {
	return &apiKeyService{
		k: k,
	}
}

func (s *apiKeyService) GetUserID(ctx context.Context, apiKey string) (int64, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return 0, ErrUnknownAPIKey
	}

	userID, err := s.k.GetUserIDByKey(ctx, apiKey)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			slog.Info("unknown api key")
			return 0, ErrUnknownAPIKey
		}
		return 0, err
	}
	return userID, nil
}
