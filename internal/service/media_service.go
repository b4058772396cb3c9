package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/h2non/filetype"
	"github.com/h2non/filetype/types"
	config "github.com/maheshrc27/postflow/configs"
	"github.com/maheshrc27/postflow/internal/models"
	"github.com/maheshrc27/postflow/internal/transfer"
)

type Media struct {
	Data        []byte
	ContentType string
}

type MediaService interface {
	Acquire(ctx context.Context, item *models.QueueItem) (*Media, error)
}

// DownloadResolver turns a share URL into a direct, time-limited download URL.
type DownloadResolver interface {
	Resolve(ctx context.Context, shareURL string) (string, error)
}

// errStatus is a non-2xx response. It is never retried.
type errStatus struct {
	url  string
	code int
}

func (e *errStatus) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %d", e.url, e.code)
}

var errEmptyDownloadURL = errors.New("could not find download URL in lookup response")

var allowedMedia = map[string]struct{}{
	"mp4": {}, "mov": {}, "webm": {}, "jpg": {}, "png": {}, "webp": {}, "gif": {},
}

type mediaService struct {
	client   *http.Client
	resolver DownloadResolver
	retries  int
	delay    time.Duration
	sleep    sleepFunc
}

func NewMediaService(cfg config.Config, resolver DownloadResolver) MediaService {
	return &mediaService{
		client:   &http.Client{Timeout: 2 * time.Minute},
		resolver: resolver,
		retries:  cfg.Automation.FetchRetries,
		delay:    cfg.Automation.FetchRetryDelay,
		sleep:    sleepContext,
	}
}

func (s *mediaService) Acquire(ctx context.Context, item *models.QueueItem) (*Media, error) {
	src := item.SourceURL
	if item.MediaKind == models.MediaKindVideo && urlMediaType(src) == types.Unknown {
		direct, err := s.resolver.Resolve(ctx, src)
		if err != nil {
			return nil, stageError(StageAcquire, ErrAcquisitionFailed, fmt.Errorf("resolve %s: %w", src, err))
		}
		src = direct
	}

	var (
		data   []byte
		header string
	)
	err := withRetry(ctx, s.retries, s.delay, s.sleep, func() error {
		var err error
		data, header, err = s.fetch(ctx, src)
		return err
	})
	if err != nil {
		return nil, stageError(StageAcquire, ErrAcquisitionFailed, err)
	}
	if len(data) == 0 {
		return nil, stageError(StageAcquire, ErrAcquisitionFailed, fmt.Errorf("empty body from %s", src))
	}

	contentType, err := detectContentType(data, header, item.MediaKind)
	if err != nil {
		return nil, stageError(StageAcquire, ErrAcquisitionFailed, err)
	}

	slog.Info("media acquired", "item_id", item.ID, "bytes", len(data), "content_type", contentType)
	return &Media{Data: data, ContentType: contentType}, nil
}

func (s *mediaService) fetch(ctx context.Context, src string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return nil, "", &permanentError{err}
	}

	resp, err := s.client.Do(req)
	if err != nil {
		slog.Info(err.Error())
		return nil, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, "", &permanentError{&errStatus{url: src, code: resp.StatusCode}}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		slog.Info(err.Error())
		return nil, "", err
	}
	return data, resp.Header.Get("Content-Type"), nil
}

// detectContentType sniffs the bytes first and falls back to an image/* or
// video/* response header, then to the default type for the item's kind. Any
// other declared type (an HTML login wall, a JSON error) is rejected.
func detectContentType(data []byte, header, kind string) (string, error) {
	kindType, err := filetype.Match(data)
	if err == nil && kindType != types.Unknown {
		if _, ok := allowedMedia[kindType.Extension]; !ok {
			return "", fmt.Errorf("file type %s is not allowed", kindType.Extension)
		}
		return kindType.MIME.Value, nil
	}
	mediaType, _, _ := mime.ParseMediaType(header)
	switch {
	case strings.HasPrefix(mediaType, "image/"), strings.HasPrefix(mediaType, "video/"):
		return mediaType, nil
	case mediaType != "" && mediaType != "application/octet-stream":
		return "", fmt.Errorf("response is %s, not media", mediaType)
	}
	if kind == models.MediaKindImage {
		return "image/jpeg", nil
	}
	return "video/mp4", nil
}

// permanentError marks a failure withRetry must not retry.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// withRetry runs fn up to retries+1 times with a fixed delay between attempts.
// Errors wrapped in permanentError stop immediately.
func withRetry(ctx context.Context, retries int, delay time.Duration, sleep sleepFunc, fn func() error) error {
	var err error
	for attempt := 0; attempt <= retries; attempt++ {
		if attempt > 0 {
			slog.Info("retrying", "attempt", attempt+1, "error", err)
			if serr := sleep(ctx, delay); serr != nil {
				return fmt.Errorf("%w (retry aborted: %v)", err, serr)
			}
		}
		err = fn()
		if err == nil {
			return nil
		}
		var perm *permanentError
		if errors.As(err, &perm) {
			return perm.err
		}
	}
	return fmt.Errorf("after %d attempts: %w", retries+1, err)
}

type rapidAPIResolver struct {
	client  *http.Client
	baseURL string
	key     string
	host    string
	retries int
	delay   time.Duration
	sleep   sleepFunc
}

// NewRapidAPIResolver resolves TikTok share URLs through the RapidAPI TikTok
// download endpoint.
func NewRapidAPIResolver(cfg config.Config) DownloadResolver {
	return &rapidAPIResolver{
		client:  &http.Client{Timeout: 30 * time.Second},
		baseURL: "https://" + cfg.RapidAPI.Host,
		key:     cfg.RapidAPI.Key,
		host:    cfg.RapidAPI.Host,
		retries: cfg.Automation.FetchRetries,
		delay:   cfg.Automation.FetchRetryDelay,
		sleep:   sleepContext,
	}
}

func (r *rapidAPIResolver) Resolve(ctx context.Context, shareURL string) (string, error) {
	var direct string
	err := withRetry(ctx, r.retries, r.delay, r.sleep, func() error {
		var err error
		direct, err = r.lookup(ctx, shareURL)
		return err
	})
	if err != nil {
		return "", err
	}
	return direct, nil
}

func (r *rapidAPIResolver) lookup(ctx context.Context, shareURL string) (string, error) {
	reqURL := fmt.Sprintf("%s/api/download/video?url=%s", r.baseURL, url.QueryEscape(shareURL))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return "", &permanentError{err}
	}
	req.Header.Set("X-RapidAPI-Key", r.key)
	req.Header.Set("X-RapidAPI-Host", r.host)

	resp, err := r.client.Do(req)
	if err != nil {
		slog.Info(err.Error())
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &permanentError{&errStatus{url: reqURL, code: resp.StatusCode}}
	}

	var result transfer.VideoDownloadResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", &permanentError{fmt.Errorf("error parsing download lookup response: %w", err)}
	}
	if result.Error != "" {
		return "", &permanentError{errors.New(result.Error)}
	}
	if result.Code != 0 && result.Code != http.StatusOK {
		msg := result.Msg
		if msg == "" {
			msg = fmt.Sprintf("lookup returned code %d", result.Code)
		}
		return "", &permanentError{errors.New(msg)}
	}

	direct := result.DirectURL()
	if direct == "" {
		return "", errEmptyDownloadURL
	}
	return direct, nil
}
