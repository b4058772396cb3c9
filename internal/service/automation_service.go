package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	config "github.com/maheshrc27/postflow/configs"
	"github.com/maheshrc27/postflow/internal/models"
	"github.com/maheshrc27/postflow/internal/repository"
	"github.com/maheshrc27/postflow/internal/transfer"
	"github.com/maheshrc27/postflow/pkg/utils"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

type AutomationService interface {
	// ProcessNext claims at most one due item and runs it through the pipeline.
	// It returns nil when nothing is due. An error means the store itself could
	// not be used; item failures are reported in the result.
	ProcessNext(ctx context.Context) (*transfer.ProcessResult, error)
}

type automationService struct {
	secretKey string
	q         repository.QueueRepository
	sa        repository.SocialAccountRepository
	media     MediaService
	storage   StorageService
	publisher PublishService
	now       func() time.Time
}

func NewAutomationService(
	cfg config.Config,
	q repository.QueueRepository,
	sa repository.SocialAccountRepository,
	media MediaService,
	storage StorageService,
	publisher PublishService) AutomationService {
	return &automationService{
		secretKey: cfg.SecretKey,
		q:         q,
		sa:        sa,
		media:     media,
		storage:   storage,
		publisher: publisher,
		now:       time.Now,
	}
}

func (s *automationService) ProcessNext(ctx context.Context) (*transfer.ProcessResult, error) {
	item, err := s.q.ClaimNextDue(ctx, s.now())
	if err != nil {
		return nil, fmt.Errorf("failed to claim queue item: %w", err)
	}
	if item == nil {
		return nil, nil
	}
	slog.Info("claimed queue item", "item_id", item.ID, "user_id", item.UserID, "media_kind", item.MediaKind)

	post, err := s.run(ctx, item)

	// The item is PROCESSING from here on; finalize it regardless of the caller.
	ctx = context.WithoutCancel(ctx)

	var serr *storeError
	if errors.As(err, &serr) {
		slog.Error("store unavailable while processing, item left PROCESSING", "item_id", item.ID, "error", serr.err)
		return nil, fmt.Errorf("failed to process queue item %s: %w", item.ID, serr.err)
	}
	if err != nil {
		logLine := failureLog(err)
		slog.Error("queue item failed", "item_id", item.ID, "error", err)
		if ferr := s.q.Fail(ctx, item.ID, logLine); ferr != nil {
			return nil, fmt.Errorf("failed to record failure of queue item %s: %w", item.ID, ferr)
		}
		return &transfer.ProcessResult{ItemID: item.ID, Outcome: OutcomeFailure, Error: err.Error()}, nil
	}

	logLine := fmt.Sprintf("Published successfully. ID: %s", post.InstagramPostID)
	if err := s.q.Complete(ctx, item.ID, logLine, post); err != nil {
		slog.Error("published but could not record result",
			"item_id", item.ID, "content_id", post.InstagramPostID, "error", err)
		return nil, fmt.Errorf("failed to record success of queue item %s: %w", item.ID, err)
	}

	slog.Info("queue item published", "item_id", item.ID, "content_id", post.InstagramPostID)
	return &transfer.ProcessResult{ItemID: item.ID, Outcome: OutcomeSuccess, ContentID: post.InstagramPostID}, nil
}

// run executes account lookup, acquisition, upload and publish for one item.
// Any stage failure aborts the remaining stages.
func (s *automationService) run(ctx context.Context, item *models.QueueItem) (*models.Post, error) {
	account, err := s.sa.GetByUserID(ctx, item.UserID, models.PlatformInstagram)
	if err != nil {
		return nil, &storeError{fmt.Errorf("account lookup: %w", err)}
	}
	if account == nil {
		return nil, stageError(StageAccount, ErrNoConnectedAccount, fmt.Errorf("user %d has no connected Instagram account", item.UserID))
	}
	accessToken, err := utils.Decrypt(account.AccessToken, []byte(s.secretKey))
	if err != nil {
		return nil, stageError(StageAccount, ErrNoConnectedAccount, fmt.Errorf("unusable access token: %w", err))
	}

	media, err := s.media.Acquire(ctx, item)
	if err != nil {
		return nil, err
	}

	key := ObjectKey(item.UserID, item.ScheduledAt, item.ID, media.ContentType)
	publicURL, err := s.storage.Store(ctx, media.Data, media.ContentType, key)
	if err != nil {
		return nil, err
	}

	form, isVideo := MediaFormFor(item, media.ContentType)
	caption := RenderCaption(item, form)

	contentID, err := s.publisher.Publish(ctx, PublishRequest{
		AccountID:   account.AccountID,
		AccessToken: accessToken,
		Container: ContainerRequest{
			Form:     form,
			MediaURL: publicURL,
			IsVideo:  isVideo,
			Caption:  caption,
		},
	})
	if err != nil {
		return nil, err
	}

	postID, err := gonanoid.New()
	if err != nil {
		return nil, fmt.Errorf("failed to generate post id: %w", err)
	}

	return &models.Post{
		ID:              postID,
		UserID:          item.UserID,
		QueueItemID:     item.ID,
		Caption:         caption,
		MediaURLs:       []string{publicURL},
		MediaForm:       form,
		Status:          models.PostStatusPublished,
		InstagramPostID: contentID,
		ScheduledAt:     item.ScheduledAt,
	}, nil
}

// storeError is a backing store fault hit mid-pipeline. It is not an item
// outcome, so the item is not marked FAILED.
type storeError struct {
	err error
}

func (e *storeError) Error() string { return e.err.Error() }
func (e *storeError) Unwrap() error { return e.err }

func failureLog(err error) string {
	var perr *PipelineError
	if errors.As(err, &perr) {
		if perr.Err == nil {
			return fmt.Sprintf("Error [%s]: %s", perr.Stage, perr.Kind)
		}
		return fmt.Sprintf("Error [%s]: %s: %s", perr.Stage, perr.Kind, perr.Err)
	}
	return fmt.Sprintf("Error: %s", err)
}
