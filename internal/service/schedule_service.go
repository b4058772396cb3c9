package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	config "github.com/maheshrc27/postflow/configs"
	"github.com/maheshrc27/postflow/internal/models"
	"github.com/maheshrc27/postflow/internal/repository"
	"github.com/maheshrc27/postflow/internal/transfer"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

const maxBulkItems = 100

// Nudger schedules an extra claim cycle at a given time. It never targets an
// item directly; claiming stays with the queue.
type Nudger interface {
	Nudge(ctx context.Context, itemID string, at time.Time) error
}

type ScheduleService interface {
	Schedule(ctx context.Context, userID int64, req transfer.ScheduleRequest) (*models.QueueItem, error)
	BulkSchedule(ctx context.Context, userID int64, req transfer.BulkScheduleRequest) ([]*models.QueueItem, error)
	List(ctx context.Context, statuses []string, id string) ([]*models.QueueItem, error)
	// Reset moves FAILED or PROCESSING items back to PENDING. It is the only
	// way out of a terminal status.
	Reset(ctx context.Context, statuses []string, id string) ([]string, error)
}

type scheduleService struct {
	maxDuration int
	q           repository.QueueRepository
	sa          repository.SocialAccountRepository
	nudger      Nudger
	now         func() time.Time
}

// NewScheduleService returns the scheduling surface. nudger may be nil.
func NewScheduleService(cfg config.Config, q repository.QueueRepository, sa repository.SocialAccountRepository, nudger Nudger) ScheduleService {
	return &scheduleService{
		maxDuration: cfg.Automation.MaxVideoDuration,
		q:           q,
		sa:          sa,
		nudger:      nudger,
		now:         time.Now,
	}
}

func (s *scheduleService) Schedule(ctx context.Context, userID int64, req transfer.ScheduleRequest) (*models.QueueItem, error) {
	if err := s.requireAccount(ctx, userID); err != nil {
		return nil, err
	}
	if !req.ScheduledAt.After(s.now()) {
		return nil, validationf("scheduled time must be in the future")
	}

	item, err := s.buildItem(userID, req.SourceURL, req.MediaKind, req.Metadata, req.ScheduledAt)
	if err != nil {
		return nil, err
	}

	if err := s.q.Create(ctx, nil, item); err != nil {
		return nil, fmt.Errorf("error creating queue item: %w", err)
	}

	s.nudge(ctx, item)
	return item, nil
}

func (s *scheduleService) BulkSchedule(ctx context.Context, userID int64, req transfer.BulkScheduleRequest) ([]*models.QueueItem, error) {
	if len(req.Items) == 0 {
		return nil, validationf("no items to schedule")
	}
	if len(req.Items) > maxBulkItems {
		return nil, validationf("at most %d items can be scheduled at once", maxBulkItems)
	}
	if req.IntervalMinutes < 0 {
		return nil, validationf("interval must not be negative")
	}
	if err := s.requireAccount(ctx, userID); err != nil {
		return nil, err
	}
	if !req.StartAt.After(s.now()) {
		return nil, validationf("start time must be in the future")
	}

	interval := time.Duration(req.IntervalMinutes) * time.Minute
	items := make([]*models.QueueItem, 0, len(req.Items))
	for i, in := range req.Items {
		item, err := s.buildItem(userID, in.SourceURL, in.MediaKind, in.Metadata, req.StartAt.Add(time.Duration(i)*interval))
		if err != nil {
			return nil, validationf("item %d: %s", i, err)
		}
		items = append(items, item)
	}

	if err := s.q.CreateMany(ctx, items); err != nil {
		return nil, err
	}

	for _, item := range items {
		s.nudge(ctx, item)
	}
	return items, nil
}

func (s *scheduleService) List(ctx context.Context, statuses []string, id string) ([]*models.QueueItem, error) {
	if len(statuses) == 0 {
		statuses = []string{models.QueueStatusPending, models.QueueStatusProcessing, models.QueueStatusCompleted, models.QueueStatusFailed}
	}
	return s.q.ListByStatus(ctx, statuses, id)
}

// CheckResetStatuses reports whether items in the given statuses may be reset.
// Only FAILED and PROCESSING qualify.
func CheckResetStatuses(statuses []string) error {
	if len(statuses) == 0 {
		return validationf("at least one status is required")
	}
	for _, st := range statuses {
		if st != models.QueueStatusFailed && st != models.QueueStatusProcessing {
			return validationf("status %s cannot be reset", st)
		}
	}
	return nil
}

func (s *scheduleService) Reset(ctx context.Context, statuses []string, id string) ([]string, error) {
	if err := CheckResetStatuses(statuses); err != nil {
		return nil, err
	}

	ids, err := s.q.ResetToPending(ctx, statuses, id)
	if err != nil {
		return nil, err
	}
	for _, resetID := range ids {
		slog.Warn("queue item reset to PENDING", "item_id", resetID, "from", strings.Join(statuses, ","))
	}
	return ids, nil
}

func (s *scheduleService) requireAccount(ctx context.Context, userID int64) error {
	if userID == 0 {
		return validationf("user is not valid")
	}
	account, err := s.sa.GetByUserID(ctx, userID, models.PlatformInstagram)
	if err != nil {
		return err
	}
	if account == nil {
		return validationf("please connect your Instagram account first")
	}
	return nil
}

func (s *scheduleService) buildItem(userID int64, sourceURL, kind string, meta transfer.QueueMetadata, at time.Time) (*models.QueueItem, error) {
	u, err := url.Parse(sourceURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, validationf("source url %q is not a valid http(s) URL", sourceURL)
	}

	kind = strings.ToUpper(strings.TrimSpace(kind))
	switch kind {
	case "":
		kind = inferMediaKind(sourceURL)
	case models.MediaKindImage, models.MediaKindVideo:
	default:
		return nil, validationf("media kind %q is not supported", kind)
	}

	if kind == models.MediaKindVideo && s.maxDuration > 0 && meta.Duration > s.maxDuration {
		return nil, validationf("video is too long (%ds > %ds)", meta.Duration, s.maxDuration)
	}

	form := strings.ToUpper(strings.TrimSpace(meta.Form))
	if form != "" && form != models.MediaFormStory {
		return nil, validationf("form %q is not supported", meta.Form)
	}

	id, err := gonanoid.New()
	if err != nil {
		return nil, fmt.Errorf("failed to generate queue item id: %w", err)
	}

	return &models.QueueItem{
		ID:          id,
		UserID:      userID,
		SourceURL:   sourceURL,
		ScheduledAt: at.UTC(),
		MediaKind:   kind,
		Metadata: models.QueueMetadata{
			Title:         meta.Title,
			OriginalTitle: meta.OriginalTitle,
			Author:        meta.Author,
			Duration:      meta.Duration,
			Form:          form,
		},
		Status: models.QueueStatusPending,
	}, nil
}

func (s *scheduleService) nudge(ctx context.Context, item *models.QueueItem) {
	if s.nudger == nil {
		return
	}
	if err := s.nudger.Nudge(ctx, item.ID, item.ScheduledAt); err != nil {
		slog.Warn("failed to schedule nudge, periodic trigger will pick the item up", "item_id", item.ID, "error", err)
	}
}

// inferMediaKind treats URLs with an image extension as IMAGE and everything
// else as VIDEO.
func inferMediaKind(sourceURL string) string {
	if urlMediaType(sourceURL).MIME.Type == "image" {
		return models.MediaKindImage
	}
	return models.MediaKindVideo
}
