package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	config "github.com/maheshrc27/postflow/configs"
	"github.com/maheshrc27/postflow/internal/models"
)

type publishState int

const (
	stateCreating publishState = iota
	stateProcessingRemote
	stateReady
	statePublishing
	stateDone
	stateError
)

func (s publishState) String() string {
	switch s {
	case stateCreating:
		return "CREATING"
	case stateProcessingRemote:
		return "PROCESSING_REMOTE"
	case stateReady:
		return "READY"
	case statePublishing:
		return "PUBLISHING"
	case stateDone:
		return "DONE"
	case stateError:
		return "ERROR"
	}
	return "UNKNOWN"
}

type PublishRequest struct {
	AccountID   string
	AccessToken string
	Container   ContainerRequest
}

type PublishService interface {
	// Publish runs create, poll and publish for one container and returns the
	// permanent content ID.
	Publish(ctx context.Context, req PublishRequest) (string, error)
}

type publishService struct {
	ig       InstagramService
	interval time.Duration
	attempts int
	sleep    sleepFunc
}

func NewPublishService(cfg config.Config, ig InstagramService) PublishService {
	attempts := cfg.Automation.PollAttempts
	if attempts < 1 {
		attempts = 1
	}
	return &publishService{
		ig:       ig,
		interval: cfg.Automation.PollInterval,
		attempts: attempts,
		sleep:    sleepContext,
	}
}

// publishRun is the state of one Publish call.
type publishRun struct {
	req         PublishRequest
	state       publishState
	containerID string
	contentID   string
	polls       int
	err         error
}

func (s *publishService) Publish(ctx context.Context, req PublishRequest) (string, error) {
	run := &publishRun{req: req, state: stateCreating}

	for run.state != stateDone && run.state != stateError {
		prev := run.state
		switch run.state {
		case stateCreating:
			s.create(ctx, run)
			// A submitted container is seen through to a terminal state even
			// if the caller goes away.
			ctx = context.WithoutCancel(ctx)
		case stateProcessingRemote:
			s.poll(ctx, run)
		case stateReady:
			run.state = statePublishing
		case statePublishing:
			s.publish(ctx, run)
		}
		slog.Debug("publish transition", "from", prev, "to", run.state, "container_id", run.containerID)
	}

	if run.state == stateError {
		return "", run.err
	}
	return run.contentID, nil
}

func (s *publishService) create(ctx context.Context, run *publishRun) {
	id, err := s.ig.CreateContainer(ctx, run.req.AccountID, run.req.AccessToken, run.req.Container)
	if err != nil {
		run.fail(stageError(StageCreate, ErrRemoteCreate, err))
		return
	}
	run.containerID = id

	if needsRemoteProcessing(run.req.Container) {
		run.state = stateProcessingRemote
	} else {
		run.state = stateReady
	}
}

// poll performs one wait-then-check attempt. Failed status reads count
// against the budget like any other attempt.
func (s *publishService) poll(ctx context.Context, run *publishRun) {
	if run.polls >= s.attempts {
		run.fail(stageError(StageProcess, ErrRemoteProcessingTimeout,
			fmt.Errorf("container %s not ready after %d attempts", run.containerID, run.polls)))
		return
	}
	run.polls++

	if err := s.sleep(ctx, s.interval); err != nil {
		run.fail(stageError(StageProcess, ErrRemoteProcessingTimeout, err))
		return
	}

	status, err := s.ig.ContainerStatus(ctx, run.containerID, run.req.AccessToken)
	if err != nil {
		slog.Warn("container status check failed", "container_id", run.containerID, "attempt", run.polls, "error", err)
		return
	}

	switch status {
	case ContainerFinished:
		run.state = stateReady
	case ContainerError, ContainerExpired:
		run.fail(stageError(StageProcess, ErrRemoteProcessing,
			fmt.Errorf("container %s reported status %s", run.containerID, status)))
	default:
		slog.Info("container still processing", "container_id", run.containerID, "status", status, "attempt", run.polls)
	}
}

func (s *publishService) publish(ctx context.Context, run *publishRun) {
	id, err := s.ig.PublishContainer(ctx, run.req.AccountID, run.containerID, run.req.AccessToken)
	if err != nil {
		run.fail(stageError(StagePublish, ErrRemotePublish, err))
		return
	}
	run.contentID = id
	run.state = stateDone
}

func (r *publishRun) fail(err *PipelineError) {
	r.err = err
	r.state = stateError
}

// needsRemoteProcessing reports whether the container carries video, which the
// platform transcodes asynchronously.
func needsRemoteProcessing(c ContainerRequest) bool {
	switch c.Form {
	case models.MediaFormReel:
		return true
	case models.MediaFormStory:
		return c.IsVideo
	}
	return false
}
