package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

type QueueItem struct {
	ID          string        `db:"id" json:"id"`
	UserID      int64         `db:"user_id" json:"user_id"`
	SourceURL   string        `db:"source_url" json:"source_url"`
	ScheduledAt time.Time     `db:"scheduled_at" json:"scheduled_at"`
	MediaKind   string        `db:"media_kind" json:"media_kind"`
	Metadata    QueueMetadata `db:"metadata" json:"metadata"`
	Status      string        `db:"status" json:"status"`
	Logs        string        `db:"logs" json:"logs"`
	CreatedAt   time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time     `db:"updated_at" json:"updated_at"`
}

// QueueMetadata is carried through to the published record. Form may be set to
// MediaFormStory to publish as a story instead of the kind's default form.
type QueueMetadata struct {
	Title         string `json:"title,omitempty"`
	OriginalTitle string `json:"original_title,omitempty"`
	Author        string `json:"author,omitempty"`
	Duration      int    `json:"duration,omitempty"`
	Form          string `json:"form,omitempty"`
}

func (m QueueMetadata) Value() (driver.Value, error) {
	return json.Marshal(m)
}

func (m *QueueMetadata) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*m = QueueMetadata{}
		return nil
	case []byte:
		return json.Unmarshal(v, m)
	case string:
		return json.Unmarshal([]byte(v), m)
	default:
		return errors.New("unsupported metadata column type")
	}
}

const (
	MediaKindImage = "IMAGE"
	MediaKindVideo = "VIDEO"
)

const (
	QueueStatusPending    = "PENDING"
	QueueStatusProcessing = "PROCESSING"
	QueueStatusCompleted  = "COMPLETED"
	QueueStatusFailed     = "FAILED"
)
