package job

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/maheshrc27/postflow/internal/transfer"
)

// TriggerResponse is the trigger endpoint's reply: either a message or the
// outcome of the processed item.
type TriggerResponse struct {
	Message string `json:"message,omitempty"`
	transfer.ProcessResult
}

// TriggerJob calls the process endpoint once per run. Runs never overlap: a
// tick that arrives while a previous run is still polling is skipped.
type TriggerJob struct {
	url    string
	secret string
	client *http.Client

	mu      sync.Mutex
	running bool
}

func NewTriggerJob(url, secret string, timeout time.Duration) *TriggerJob {
	return &TriggerJob{
		url:    url,
		secret: secret,
		client: &http.Client{Timeout: timeout},
	}
}

// Run is the cron entry point.
func (j *TriggerJob) Run() {
	j.mu.Lock()
	if j.running {
		j.mu.Unlock()
		slog.Info("previous trigger still running, skipping")
		return
	}
	j.running = true
	j.mu.Unlock()

	defer func() {
		j.mu.Lock()
		j.running = false
		j.mu.Unlock()
	}()

	res, err := j.Fire(context.Background())
	if err != nil {
		slog.Error("trigger failed", "error", err)
		return
	}
	if res.ItemID == "" {
		slog.Info("trigger done", "message", res.Message)
		return
	}
	slog.Info("trigger done", "item_id", res.ItemID, "outcome", res.Outcome, "content_id", res.ContentID, "error", res.Error)
}

// Fire sends one authenticated trigger request and decodes the reply.
func (j *TriggerJob) Fire(ctx context.Context) (*TriggerResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, j.url, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+j.secret)

	resp, err := j.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request error: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("trigger returned status %d: %s", resp.StatusCode, body)
	}

	var out TriggerResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("error parsing response: %w", err)
	}
	return &out, nil
}
