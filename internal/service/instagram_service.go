package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	config "github.com/maheshrc27/postflow/configs"
	"github.com/maheshrc27/postflow/internal/models"
	"github.com/maheshrc27/postflow/internal/transfer"
)

// Container status codes reported by the Graph API.
const (
	ContainerFinished   = "FINISHED"
	ContainerInProgress = "IN_PROGRESS"
	ContainerError      = "ERROR"
	ContainerExpired    = "EXPIRED"
)

type ContainerRequest struct {
	Form     string
	MediaURL string
	// IsVideo selects video_url over image_url for stories.
	IsVideo bool
	Caption string
}

// InstagramService is the three-call content publishing protocol. It holds no
// per-account state; every call takes the access token.
type InstagramService interface {
	CreateContainer(ctx context.Context, accountID, accessToken string, req ContainerRequest) (string, error)
	ContainerStatus(ctx context.Context, containerID, accessToken string) (string, error)
	PublishContainer(ctx context.Context, accountID, containerID, accessToken string) (string, error)
}

// GraphError is a non-2xx Graph API response.
type GraphError struct {
	StatusCode int
	Code       int
	Message    string
}

func (e *GraphError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("unexpected status code from Instagram: %d", e.StatusCode)
	}
	return fmt.Sprintf("instagram error %d (status %d): %s", e.Code, e.StatusCode, e.Message)
}

type instagramService struct {
	client  *http.Client
	baseURL string
}

func NewInstagramService(cfg config.Config) InstagramService {
	return &instagramService{
		client:  &http.Client{Timeout: 60 * time.Second},
		baseURL: strings.TrimRight(cfg.InstagramGraphURL, "/"),
	}
}

func (s *instagramService) CreateContainer(ctx context.Context, accountID, accessToken string, req ContainerRequest) (string, error) {
	payload := map[string]interface{}{
		"access_token": accessToken,
	}
	switch req.Form {
	case models.MediaFormImage:
		payload["image_url"] = req.MediaURL
		payload["caption"] = req.Caption
	case models.MediaFormReel:
		payload["media_type"] = "REELS"
		payload["video_url"] = req.MediaURL
		payload["caption"] = req.Caption
	case models.MediaFormStory:
		payload["media_type"] = "STORIES"
		if req.IsVideo {
			payload["video_url"] = req.MediaURL
		} else {
			payload["image_url"] = req.MediaURL
		}
	default:
		return "", fmt.Errorf("unsupported media form %q", req.Form)
	}

	var result transfer.InstagramIDResponse
	if err := s.post(ctx, fmt.Sprintf("%s/%s/media", s.baseURL, accountID), payload, &result); err != nil {
		return "", err
	}
	if result.ID == "" {
		return "", errors.New("no media ID returned from Instagram")
	}
	return result.ID, nil
}

func (s *instagramService) ContainerStatus(ctx context.Context, containerID, accessToken string) (string, error) {
	reqURL := fmt.Sprintf("%s/%s?fields=status_code,status&access_token=%s",
		s.baseURL, containerID, url.QueryEscape(accessToken))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return "", fmt.Errorf("error creating request: %w", err)
	}

	var result transfer.InstagramContainerStatus
	if err := s.do(req, &result); err != nil {
		return "", err
	}
	return result.StatusCode, nil
}

func (s *instagramService) PublishContainer(ctx context.Context, accountID, containerID, accessToken string) (string, error) {
	payload := map[string]interface{}{
		"creation_id":  containerID,
		"access_token": accessToken,
	}

	var result transfer.InstagramIDResponse
	if err := s.post(ctx, fmt.Sprintf("%s/%s/media_publish", s.baseURL, accountID), payload, &result); err != nil {
		return "", err
	}
	if result.ID == "" {
		return "", errors.New("no content ID returned from Instagram")
	}
	return result.ID, nil
}

func (s *instagramService) post(ctx context.Context, reqURL string, payload map[string]interface{}, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("error marshalling payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return s.do(req, out)
}

func (s *instagramService) do(req *http.Request, out interface{}) error {
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP request error: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("error reading response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		gerr := &GraphError{StatusCode: resp.StatusCode}
		var errResp transfer.InstagramErrorResponse
		if json.Unmarshal(respBody, &errResp) == nil {
			gerr.Code = errResp.Error.Code
			gerr.Message = errResp.Error.Message
		}
		slog.Info(gerr.Error(), "path", req.URL.Path)
		return gerr
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("error parsing response: %w", err)
	}
	return nil
}
