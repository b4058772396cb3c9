package service

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/maheshrc27/postflow/internal/models"
	"github.com/maheshrc27/postflow/internal/repository"
	"github.com/maheshrc27/postflow/pkg/utils"
)

var testSecret = "0123456789abcdef0123456789abcdef"

func noSleep(ctx context.Context, d time.Duration) error { return nil }

// memQueue is an in-memory QueueRepository with the same conditional
// transitions as the Postgres one.
type memQueue struct {
	mu        sync.Mutex
	seq       int
	items     map[string]*models.QueueItem
	order     map[string]int
	posts     []*models.Post
	createErr error
	claimErr  error
	finishErr error
}

func newMemQueue(items ...*models.QueueItem) *memQueue {
	q := &memQueue{items: map[string]*models.QueueItem{}, order: map[string]int{}}
	for _, it := range items {
		q.insert(it)
	}
	return q
}

func (q *memQueue) insert(item *models.QueueItem) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.seq++
	cp := *item
	if cp.Status == "" {
		cp.Status = models.QueueStatusPending
	}
	q.items[cp.ID] = &cp
	q.order[cp.ID] = q.seq
}

func (q *memQueue) get(id string) models.QueueItem {
	q.mu.Lock()
	defer q.mu.Unlock()
	return *q.items[id]
}

func (q *memQueue) Create(ctx context.Context, tx *sql.Tx, item *models.QueueItem) error {
	if q.createErr != nil {
		return q.createErr
	}
	q.insert(item)
	return nil
}

func (q *memQueue) CreateMany(ctx context.Context, items []*models.QueueItem) error {
	if q.createErr != nil {
		return q.createErr
	}
	for _, it := range items {
		q.insert(it)
	}
	return nil
}

func (q *memQueue) GetByID(ctx context.Context, id string) (*models.QueueItem, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	it, ok := q.items[id]
	if !ok {
		return nil, nil
	}
	cp := *it
	return &cp, nil
}

func (q *memQueue) ClaimNextDue(ctx context.Context, now time.Time) (*models.QueueItem, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.claimErr != nil {
		return nil, q.claimErr
	}
	var due []*models.QueueItem
	for _, it := range q.items {
		if it.Status == models.QueueStatusPending && !it.ScheduledAt.After(now) {
			due = append(due, it)
		}
	}
	if len(due) == 0 {
		return nil, nil
	}
	sort.Slice(due, func(i, j int) bool {
		if !due[i].ScheduledAt.Equal(due[j].ScheduledAt) {
			return due[i].ScheduledAt.Before(due[j].ScheduledAt)
		}
		return q.order[due[i].ID] < q.order[due[j].ID]
	})
	due[0].Status = models.QueueStatusProcessing
	cp := *due[0]
	return &cp, nil
}

func (q *memQueue) finish(id, status, logLine string) error {
	if q.finishErr != nil {
		return q.finishErr
	}
	it, ok := q.items[id]
	if !ok || it.Status != models.QueueStatusProcessing {
		return repository.ErrStatusConflict
	}
	it.Status = status
	it.Logs = logLine
	return nil
}

func (q *memQueue) Complete(ctx context.Context, id, logLine string, post *models.Post) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if err := q.finish(id, models.QueueStatusCompleted, logLine); err != nil {
		return err
	}
	q.posts = append(q.posts, post)
	return nil
}

func (q *memQueue) Fail(ctx context.Context, id, logLine string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.finish(id, models.QueueStatusFailed, logLine)
}

func (q *memQueue) ListByStatus(ctx context.Context, statuses []string, id string) ([]*models.QueueItem, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []*models.QueueItem
	for _, it := range q.items {
		if matchesStatus(it, statuses, id) {
			cp := *it
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (q *memQueue) ResetToPending(ctx context.Context, statuses []string, id string) ([]string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var ids []string
	for _, it := range q.items {
		if matchesStatus(it, statuses, id) {
			it.Status = models.QueueStatusPending
			ids = append(ids, it.ID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func matchesStatus(it *models.QueueItem, statuses []string, id string) bool {
	if id != "" && it.ID != id {
		return false
	}
	for _, s := range statuses {
		if it.Status == s {
			return true
		}
	}
	return false
}

type fakeAccounts struct {
	mu      sync.Mutex
	account *models.SocialAccount
	err     error
	calls   int
}

func (f *fakeAccounts) GetByUserID(ctx context.Context, userID int64, platform string) (*models.SocialAccount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if f.account == nil || f.account.UserID != userID {
		return nil, nil
	}
	return f.account, nil
}

func connectedAccount(userID int64) *models.SocialAccount {
	token, err := utils.Encrypt([]byte("page-token"), []byte(testSecret))
	if err != nil {
		panic(err)
	}
	return &models.SocialAccount{
		ID:            1,
		UserID:        userID,
		Platform:      models.PlatformInstagram,
		AccountID:     "17841400000000000",
		AccessToken:   token,
		AccountStatus: "active",
	}
}

type fakeMedia struct {
	mu    sync.Mutex
	media *Media
	err   error
	calls int
}

func (f *fakeMedia) Acquire(ctx context.Context, item *models.QueueItem) (*Media, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.media, nil
}

type fakeStorage struct {
	mu   sync.Mutex
	err  error
	keys []string
}

func (f *fakeStorage) Store(ctx context.Context, data []byte, contentType, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.keys = append(f.keys, key)
	return "https://media.example.com/" + key, nil
}

// scriptedInstagram replays a fixed sequence of container statuses.
type scriptedInstagram struct {
	mu          sync.Mutex
	createErr   error
	publishErr  error
	statuses    []string
	statusErrs  []error
	created     []ContainerRequest
	statusCalls int
	published   []string
}

func (f *scriptedInstagram) CreateContainer(ctx context.Context, accountID, accessToken string, req ContainerRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return "", f.createErr
	}
	f.created = append(f.created, req)
	return "container-1", nil
}

func (f *scriptedInstagram) ContainerStatus(ctx context.Context, containerID, accessToken string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.statusCalls
	f.statusCalls++
	if i < len(f.statusErrs) && f.statusErrs[i] != nil {
		return "", f.statusErrs[i]
	}
	if len(f.statuses) == 0 {
		return ContainerInProgress, nil
	}
	if i >= len(f.statuses) {
		return f.statuses[len(f.statuses)-1], nil
	}
	return f.statuses[i], nil
}

func (f *scriptedInstagram) PublishContainer(ctx context.Context, accountID, containerID, accessToken string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.publishErr != nil {
		return "", f.publishErr
	}
	f.published = append(f.published, containerID)
	return "18000000000000001", nil
}

type fakeNudger struct {
	err    error
	nudges map[string]time.Time
}

func (f *fakeNudger) Nudge(ctx context.Context, itemID string, at time.Time) error {
	if f.err != nil {
		return f.err
	}
	if f.nudges == nil {
		f.nudges = map[string]time.Time{}
	}
	f.nudges[itemID] = at
	return nil
}

type fakePutter struct {
	err   error
	input *s3.PutObjectInput
}

func (f *fakePutter) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.input = params
	if f.err != nil {
		return nil, f.err
	}
	return &s3.PutObjectOutput{}, nil
}

var errBoom = errors.New("boom")

var (
	_ repository.QueueRepository         = (*memQueue)(nil)
	_ repository.SocialAccountRepository = (*fakeAccounts)(nil)
	_ InstagramService                   = (*scriptedInstagram)(nil)
	_ objectPutter                       = (*fakePutter)(nil)
)
