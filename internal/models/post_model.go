package models

import "time"

// Post is the durable record of media that was actually made public.
type Post struct {
	ID              string    `db:"id" json:"id"`
	UserID          int64     `db:"user_id" json:"user_id"`
	QueueItemID     string    `db:"queue_item_id" json:"queue_item_id"`
	Caption         string    `db:"caption" json:"caption"`
	MediaURLs       []string  `db:"media_urls" json:"media_urls"`
	MediaForm       string    `db:"media_form" json:"media_form"`
	Status          string    `db:"status" json:"status"`
	InstagramPostID string    `db:"instagram_post_id" json:"instagram_post_id"`
	ScheduledAt     time.Time `db:"scheduled_at" json:"scheduled_at"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}

const (
	MediaFormImage = "IMAGE"
	MediaFormReel  = "REEL"
	MediaFormStory = "STORY"
)

const (
	PostStatusPublished = "PUBLISHED"
	PostStatusFailed    = "FAILED"
)
