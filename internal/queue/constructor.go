package queue

import (
	"github.com/maheshrc27/postflow/internal/service"
)

type Queue struct {
	a service.AutomationService
}

func NewQueue(a service.AutomationService) *Queue {
	return &Queue{
		a: a,
	}
}

// TaskTypeProcessQueue runs one claim-and-process cycle. The item id in the
// payload is informational; the cycle claims whatever is due first.
const TaskTypeProcessQueue = "automation:process"

type ProcessQueuePayload struct {
	ItemID string `json:"item_id"`
}
