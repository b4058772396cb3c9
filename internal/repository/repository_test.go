package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/maheshrc27/postflow/internal/models"
)

// openTestDB connects to DB_URL and resets the schema's data. Tests using it
// are skipped when DB_URL is not set.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := os.Getenv("DB_URL")
	if dsn == "" {
		t.Skip("DB_URL not set")
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })

	if _, err := RunMigrations(db); err != nil {
		t.Fatalf("RunMigrations: %v", err)
	}
	if _, err := db.Exec(`TRUNCATE posts, automation_queue, social_accounts, api_keys RESTART IDENTITY CASCADE`); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	return db
}

func newItem(id string, at time.Time) *models.QueueItem {
	return &models.QueueItem{
		ID:          id,
		UserID:      7,
		SourceURL:   "https://example.com/" + id + ".jpg",
		ScheduledAt: at,
		MediaKind:   models.MediaKindImage,
		Metadata:    models.QueueMetadata{Title: "t " + id, Author: "jane"},
	}
}

func newRepos(db *sql.DB) (QueueRepository, PostRepository) {
	pr := NewPostRepository(db)
	return NewQueueRepository(db, pr), pr
}

func TestClaimNextDueOrderAndEligibility(t *testing.T) {
	db := openTestDB(t)
	q, _ := newRepos(db)
	ctx := context.Background()
	now := time.Now()

	items := []*models.QueueItem{
		newItem("later", now.Add(time.Hour)),
		newItem("b", now.Add(-time.Hour)),
		newItem("a", now.Add(-2*time.Hour)),
		newItem("c", now.Add(-time.Hour)),
	}
	if err := q.CreateMany(ctx, items); err != nil {
		t.Fatalf("CreateMany: %v", err)
	}

	var got []string
	for {
		item, err := q.ClaimNextDue(ctx, now)
		if err != nil {
			t.Fatalf("ClaimNextDue: %v", err)
		}
		if item == nil {
			break
		}
		if item.Status != models.QueueStatusProcessing {
			t.Errorf("claimed item status = %s", item.Status)
		}
		got = append(got, item.ID)
	}
	if strings.Join(got, ",") != "a,b,c" {
		t.Errorf("claim order = %v, want a,b,c", got)
	}

	later, err := q.GetByID(ctx, "later")
	if err != nil {
		t.Fatal(err)
	}
	if later.Status != models.QueueStatusPending {
		t.Errorf("future item status = %s, want PENDING", later.Status)
	}
	if later.Metadata.Title != "t later" {
		t.Errorf("metadata = %+v", later.Metadata)
	}
}

func TestClaimNextDueIsExclusive(t *testing.T) {
	db := openTestDB(t)
	q, _ := newRepos(db)
	ctx := context.Background()
	now := time.Now()

	const n = 20
	var items []*models.QueueItem
	for i := 0; i < n; i++ {
		items = append(items, newItem(fmt.Sprintf("item-%02d", i), now.Add(-time.Minute)))
	}
	if err := q.CreateMany(ctx, items); err != nil {
		t.Fatal(err)
	}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = map[string]int{}
	)
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				item, err := q.ClaimNextDue(ctx, now)
				if err != nil {
					t.Error(err)
					return
				}
				if item == nil {
					return
				}
				mu.Lock()
				seen[item.ID]++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if len(seen) != n {
		t.Errorf("claimed %d distinct items, want %d", len(seen), n)
	}
	for id, c := range seen {
		if c != 1 {
			t.Errorf("item %s claimed %d times", id, c)
		}
	}
}

func TestCompleteAndFailAreOneWay(t *testing.T) {
	db := openTestDB(t)
	q, pr := newRepos(db)
	ctx := context.Background()
	now := time.Now()

	if err := q.CreateMany(ctx, []*models.QueueItem{newItem("ok", now.Add(-time.Minute)), newItem("bad", now.Add(-time.Second))}); err != nil {
		t.Fatal(err)
	}

	post := &models.Post{
		UserID:          7,
		QueueItemID:     "ok",
		Caption:         "cap",
		MediaURLs:       []string{"https://pub/x.jpg"},
		MediaForm:       models.MediaFormImage,
		Status:          models.PostStatusPublished,
		InstagramPostID: "1800",
		ScheduledAt:     now,
	}
	if err := q.Complete(ctx, "ok", "Published successfully. ID: 1800", post); !errors.Is(err, ErrStatusConflict) {
		t.Fatalf("Complete on PENDING = %v, want ErrStatusConflict", err)
	}
	if saved, _ := pr.GetByQueueItemID(ctx, "ok"); saved != nil {
		t.Fatal("post visible after rejected completion")
	}

	if _, err := q.ClaimNextDue(ctx, now); err != nil {
		t.Fatal(err)
	}
	if err := q.Complete(ctx, "ok", "Published successfully. ID: 1800", post); err != nil {
		t.Fatalf("Complete: %v", err)
	}

	saved, err := pr.GetByQueueItemID(ctx, "ok")
	if err != nil || saved == nil {
		t.Fatalf("GetByQueueItemID = %v, %v", saved, err)
	}
	if saved.InstagramPostID != "1800" || len(saved.MediaURLs) != 1 {
		t.Errorf("post = %+v", saved)
	}
	item, _ := q.GetByID(ctx, "ok")
	if item.Status != models.QueueStatusCompleted || !strings.Contains(item.Logs, saved.InstagramPostID) {
		t.Errorf("item = %s %q", item.Status, item.Logs)
	}

	if err := q.Fail(ctx, "ok", "Error: late"); !errors.Is(err, ErrStatusConflict) {
		t.Errorf("Fail on COMPLETED = %v, want ErrStatusConflict", err)
	}
	dup := *post
	dup.ID = ""
	if err := q.Complete(ctx, "ok", "again", &dup); !errors.Is(err, ErrStatusConflict) {
		t.Errorf("second Complete = %v, want ErrStatusConflict", err)
	}
	var n int
	if err := db.QueryRow(`SELECT count(*) FROM posts WHERE instagram_post_id = '1800'`).Scan(&n); err != nil || n != 1 {
		t.Errorf("posts for content id = %d, want 1", n)
	}

	if _, err := q.ClaimNextDue(ctx, now); err != nil {
		t.Fatal(err)
	}
	if err := q.Fail(ctx, "bad", "Error [acquire]: AcquisitionFailed: 404"); err != nil {
		t.Fatalf("Fail: %v", err)
	}
	if saved, _ := pr.GetByQueueItemID(ctx, "bad"); saved != nil {
		t.Error("post written for failed item")
	}
}

func TestResetToPending(t *testing.T) {
	db := openTestDB(t)
	q, _ := newRepos(db)
	ctx := context.Background()
	now := time.Now()

	if err := q.CreateMany(ctx, []*models.QueueItem{newItem("f", now.Add(-time.Minute)), newItem("c", now.Add(-time.Second))}); err != nil {
		t.Fatal(err)
	}
	q.ClaimNextDue(ctx, now)
	q.Fail(ctx, "f", "Error: boom")
	q.ClaimNextDue(ctx, now)
	q.Complete(ctx, "c", "Published successfully. ID: 1", &models.Post{
		UserID: 7, QueueItemID: "c", MediaURLs: []string{"u"}, MediaForm: models.MediaFormImage,
		Status: models.PostStatusPublished, InstagramPostID: "1", ScheduledAt: now,
	})

	if _, err := q.ResetToPending(ctx, []string{models.QueueStatusCompleted}, ""); err == nil {
		t.Error("COMPLETED must not be resettable")
	}

	ids, err := q.ResetToPending(ctx, []string{models.QueueStatusFailed, models.QueueStatusProcessing}, "")
	if err != nil {
		t.Fatalf("ResetToPending: %v", err)
	}
	if len(ids) != 1 || ids[0] != "f" {
		t.Errorf("ids = %v", ids)
	}

	item, _ := q.GetByID(ctx, "f")
	if item.Status != models.QueueStatusPending {
		t.Errorf("status = %s", item.Status)
	}
	if !strings.HasPrefix(item.Logs, "Error: boom\nReset to PENDING by operator from FAILED") {
		t.Errorf("logs = %q", item.Logs)
	}
	if d := item.ScheduledAt.Sub(now.Add(-time.Minute)); d > time.Millisecond || d < -time.Millisecond {
		t.Errorf("scheduled_at changed to %v", item.ScheduledAt)
	}

	again, err := q.ClaimNextDue(ctx, now)
	if err != nil || again == nil || again.ID != "f" {
		t.Errorf("reset item not claimable: %v %v", again, err)
	}
}

func TestSocialAccountAndApiKeyLookups(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if _, err := db.Exec(`INSERT INTO social_accounts (user_id, platform, account_id, access_token) VALUES (7, 'instagram', '1784', 'enc')`); err != nil {
		t.Fatal(err)
	}
	if _, err := db.Exec(`INSERT INTO api_keys (user_id, api_key) VALUES (7, 'pk_1')`); err != nil {
		t.Fatal(err)
	}

	sa := NewSocialAccountRepository(db)
	acc, err := sa.GetByUserID(ctx, 7, models.PlatformInstagram)
	if err != nil || acc == nil || acc.AccountID != "1784" {
		t.Fatalf("GetByUserID = %+v, %v", acc, err)
	}
	if acc, err := sa.GetByUserID(ctx, 8, models.PlatformInstagram); err != nil || acc != nil {
		t.Errorf("missing account = %+v, %v", acc, err)
	}

	keys := NewApiKeyRepository(db)
	if id, err := keys.GetUserIDByKey(ctx, "pk_1"); err != nil || id != 7 {
		t.Errorf("GetUserIDByKey = %d, %v", id, err)
	}
	if _, err := keys.GetUserIDByKey(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown key err = %v", err)
	}
}
