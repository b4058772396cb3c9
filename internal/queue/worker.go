package queue

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"
)

func (j *Queue) HandleProcessQueueTask(ctx context.Context, task *asynq.Task) error {
	var payload ProcessQueuePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return err
	}

	res, err := j.a.ProcessNext(ctx)
	if err != nil {
		// Store-level failure; let asynq retry the nudge.
		return err
	}
	if res == nil {
		slog.Info("nudge found nothing due", "item_id", payload.ItemID)
		return nil
	}

	slog.Info("nudge processed item", "nudged_item_id", payload.ItemID, "item_id", res.ItemID,
		"outcome", res.Outcome, "content_id", res.ContentID, "error", res.Error)
	return nil
}
