package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"
	"github.com/maheshrc27/postflow/internal/models"
)

type QueueRepository interface {
	Create(ctx context.Context, tx *sql.Tx, item *models.QueueItem) error
	CreateMany(ctx context.Context, items []*models.QueueItem) error
	GetByID(ctx context.Context, id string) (*models.QueueItem, error)
	ClaimNextDue(ctx context.Context, now time.Time) (*models.QueueItem, error)
	Complete(ctx context.Context, id, logLine string, post *models.Post) error
	Fail(ctx context.Context, id, logLine string) error
	ListByStatus(ctx context.Context, statuses []string, id string) ([]*models.QueueItem, error)
	ResetToPending(ctx context.Context, statuses []string, id string) ([]string, error)
}

type queueRepository struct {
	db *sql.DB
	pr PostRepository
}

func NewQueueRepository(db *sql.DB, pr PostRepository) QueueRepository {
	return &queueRepository{db: db, pr: pr}
}

const queueColumns = `id, user_id, source_url, scheduled_at, media_kind, metadata, status, logs, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanQueueItem(row rowScanner) (*models.QueueItem, error) {
	var item models.QueueItem
	err := row.Scan(&item.ID, &item.UserID, &item.SourceURL, &item.ScheduledAt, &item.MediaKind,
		&item.Metadata, &item.Status, &item.Logs, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *queueRepository) Create(ctx context.Context, tx *sql.Tx, item *models.QueueItem) error {
	query := `
		INSERT INTO automation_queue (id, user_id, source_url, scheduled_at, media_kind, metadata, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`
	args := []any{item.ID, item.UserID, item.SourceURL, item.ScheduledAt, item.MediaKind, item.Metadata, models.QueueStatusPending}

	var err error
	if tx != nil {
		err = tx.QueryRowContext(ctx, query, args...).Scan(&item.CreatedAt, &item.UpdatedAt)
	} else {
		err = r.db.QueryRowContext(ctx, query, args...).Scan(&item.CreatedAt, &item.UpdatedAt)
	}
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	item.Status = models.QueueStatusPending
	return nil
}

// CreateMany inserts items in slice order within one transaction, so their
// insertion order matches the order given.
func (r *queueRepository) CreateMany(ctx context.Context, items []*models.QueueItem) (err error) {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	for _, item := range items {
		if err = r.Create(ctx, tx, item); err != nil {
			return fmt.Errorf("error creating queue item %s: %w", item.ID, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (r *queueRepository) GetByID(ctx context.Context, id string) (*models.QueueItem, error) {
	query := `SELECT ` + queueColumns + ` FROM automation_queue WHERE id = $1`
	item, err := scanQueueItem(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}
	return item, nil
}

// ClaimNextDue moves the earliest due PENDING item to PROCESSING and returns it.
// Selection and transition happen in a single statement: the row lock taken by
// the subquery is skipped by concurrent callers, and the outer status predicate
// makes the update conditional on the item still being PENDING. Returns nil when
// nothing is eligible.
func (r *queueRepository) ClaimNextDue(ctx context.Context, now time.Time) (*models.QueueItem, error) {
	query := `
		UPDATE automation_queue
		SET status = $2,
			updated_at = $1
		WHERE id = (
			SELECT id FROM automation_queue
			WHERE status = $3
			  AND scheduled_at <= $1
			ORDER BY scheduled_at ASC, seq ASC
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		AND status = $3
		RETURNING ` + queueColumns

	item, err := scanQueueItem(r.db.QueryRowContext(ctx, query, now, models.QueueStatusProcessing, models.QueueStatusPending))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}
	return item, nil
}

// Complete records the published post and marks the item COMPLETED in one
// transaction; neither write is visible without the other.
func (r *queueRepository) Complete(ctx context.Context, id, logLine string, post *models.Post) (err error) {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if err = finishItem(ctx, tx, id, models.QueueStatusCompleted, logLine); err != nil {
		return err
	}

	if err = r.pr.Create(ctx, tx, post); err != nil {
		return fmt.Errorf("error creating post for queue item %s: %w", id, err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (r *queueRepository) Fail(ctx context.Context, id, logLine string) (err error) {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if err = finishItem(ctx, tx, id, models.QueueStatusFailed, logLine); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// finishItem moves a PROCESSING item to a terminal status. Items in any other
// status are left untouched and ErrStatusConflict is returned.
func finishItem(ctx context.Context, tx *sql.Tx, id, status, logLine string) error {
	query := `
		UPDATE automation_queue
		SET status = $2,
			logs = $3,
			updated_at = $4
		WHERE id = $1 AND status = $5
	`
	result, err := tx.ExecContext(ctx, query, id, status, logLine, time.Now(), models.QueueStatusProcessing)
	if err != nil {
		slog.Info(err.Error())
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	if affected != 1 {
		return fmt.Errorf("finish queue item %s as %s: %w", id, status, ErrStatusConflict)
	}
	return nil
}

func (r *queueRepository) ListByStatus(ctx context.Context, statuses []string, id string) ([]*models.QueueItem, error) {
	query := `SELECT ` + queueColumns + ` FROM automation_queue
		WHERE status = ANY($1) AND ($2::text = '' OR id = $2)
		ORDER BY scheduled_at ASC, seq ASC`

	rows, err := r.db.QueryContext(ctx, query, pq.Array(statuses), id)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var items []*models.QueueItem
	for rows.Next() {
		item, err := scanQueueItem(rows)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	return items, nil
}

// ResetToPending is the manual recovery path. It never touches COMPLETED items
// and appends an audit line to each reset item's log.
func (r *queueRepository) ResetToPending(ctx context.Context, statuses []string, id string) ([]string, error) {
	for _, s := range statuses {
		if s != models.QueueStatusFailed && s != models.QueueStatusProcessing {
			return nil, fmt.Errorf("status %q cannot be reset", s)
		}
	}

	query := `
		UPDATE automation_queue
		SET status = $3,
			logs = logs || E'\n' || 'Reset to PENDING by operator from ' || status || ' at ' || to_char($4::timestamptz, 'YYYY-MM-DD"T"HH24:MI:SSOF'),
			updated_at = $4
		WHERE status = ANY($1) AND ($2::text = '' OR id = $2)
		RETURNING id
	`
	rows, err := r.db.QueryContext(ctx, query, pq.Array(statuses), id, models.QueueStatusPending, time.Now())
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var resetID string
		if err := rows.Scan(&resetID); err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		ids = append(ids, resetID)
	}
	if err := rows.Err(); err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	return ids, nil
}
