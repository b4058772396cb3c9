package transfer

import "time"

type QueueMetadata struct {
	Title         string `json:"title"`
	OriginalTitle string `json:"original_title"`
	Author        string `json:"author"`
	Duration      int    `json:"duration"`
	Form          string `json:"form"`
}

type ScheduleRequest struct {
	SourceURL   string        `json:"source_url"`
	ScheduledAt time.Time     `json:"scheduled_at"`
	MediaKind   string        `json:"media_kind"`
	Metadata    QueueMetadata `json:"metadata"`
}

type BulkScheduleItem struct {
	SourceURL string        `json:"source_url"`
	MediaKind string        `json:"media_kind"`
	Metadata  QueueMetadata `json:"metadata"`
}

type BulkScheduleRequest struct {
	Items           []BulkScheduleItem `json:"items"`
	StartAt         time.Time          `json:"start_at"`
	IntervalMinutes int                `json:"interval_minutes"`
}

// ProcessResult is the outcome of one claim-and-process cycle.
type ProcessResult struct {
	ItemID    string `json:"itemId"`
	Outcome   string `json:"outcome"`
	ContentID string `json:"contentId,omitempty"`
	Error     string `json:"error,omitempty"`
}
