package queue

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

const nudgeMaxRetry = 3

type enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Nudger schedules a process task at an item's due time so it does not wait
// for the next periodic trigger.
type Nudger struct {
	client enqueuer
}

func NewNudger(client *asynq.Client) *Nudger {
	return &Nudger{client: client}
}

func (n *Nudger) Nudge(ctx context.Context, itemID string, at time.Time) error {
	payload, err := json.Marshal(ProcessQueuePayload{ItemID: itemID})
	if err != nil {
		return err
	}

	task := asynq.NewTask(TaskTypeProcessQueue, payload)
	_, err = n.client.EnqueueContext(ctx, task,
		asynq.ProcessAt(at),
		asynq.TaskID("nudge:"+itemID),
		asynq.MaxRetry(nudgeMaxRetry),
	)
	if errors.Is(err, asynq.ErrTaskIDConflict) || errors.Is(err, asynq.ErrDuplicateTask) {
		return nil
	}
	if err != nil {
		slog.Info(err.Error())
		return err
	}

	slog.Info("nudge scheduled", "item_id", itemID, "at", at)
	return nil
}
