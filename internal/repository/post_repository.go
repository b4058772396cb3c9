package repository

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/lib/pq"
	"github.com/maheshrc27/postflow/internal/models"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

type PostRepository interface {
	Create(ctx context.Context, tx *sql.Tx, post *models.Post) error
	GetByQueueItemID(ctx context.Context, queueItemID string) (*models.Post, error)
}

type postRepository struct {
	db *sql.DB
}

func NewPostRepository(db *sql.DB) PostRepository {
	return &postRepository{db: db}
}

func (r *postRepository) Create(ctx context.Context, tx *sql.Tx, post *models.Post) error {
	if post.ID == "" {
		id, err := gonanoid.New()
		if err != nil {
			return err
		}
		post.ID = id
	}

	query := `
		INSERT INTO posts (id, user_id, queue_item_id, caption, media_urls, media_form, status, instagram_post_id, scheduled_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at
	`
	args := []any{post.ID, post.UserID, post.QueueItemID, post.Caption, pq.Array(post.MediaURLs),
		post.MediaForm, post.Status, post.InstagramPostID, post.ScheduledAt}

	var err error
	if tx != nil {
		err = tx.QueryRowContext(ctx, query, args...).Scan(&post.CreatedAt)
	} else {
		err = r.db.QueryRowContext(ctx, query, args...).Scan(&post.CreatedAt)
	}
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *postRepository) GetByQueueItemID(ctx context.Context, queueItemID string) (*models.Post, error) {
	query := `SELECT id, user_id, queue_item_id, caption, media_urls, media_form, status, instagram_post_id, scheduled_at, created_at
		FROM posts WHERE queue_item_id = $1`

	var post models.Post
	err := r.db.QueryRowContext(ctx, query, queueItemID).Scan(&post.ID, &post.UserID, &post.QueueItemID, &post.Caption,
		pq.Array(&post.MediaURLs), &post.MediaForm, &post.Status, &post.InstagramPostID, &post.ScheduledAt, &post.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}
	return &post, nil
}
