package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/fleetpulse/fleetpulse/internal/models"
)

// requestTimeout bounds each individual delivery attempt.
const requestTimeout = 10 * time.Second

// Transport delivers snapshots to the collector with bounded retries and
// exponential backoff. Delivery is best-effort and in-memory only: there
// is no persistent retry queue, and the caller decides what to do with a
// snapshot that exhausted its attempts.
type Transport struct {
	endpoint    string
	token       string
	maxAttempts int
	baseBackoff time.Duration

	client *http.Client
	log    *slog.Logger
	sleep  func(time.Duration) // swapped out in tests
}

// NewTransport creates a Transport for the given collector endpoint.
// token may be empty; when set it is sent as "Authorization: Bearer <token>".
func NewTransport(log *slog.Logger, endpoint, token string, maxAttempts int, baseBackoff time.Duration) *Transport {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Transport{
		endpoint:    endpoint,
		token:       token,
		maxAttempts: maxAttempts,
		baseBackoff: baseBackoff,
		client:      &http.Client{Timeout: requestTimeout},
		log:         log,
		sleep:       time.Sleep,
	}
}

// Send posts the snapshot, retrying on any transport error or non-2xx
// status with baseBackoff*2^attempt sleeps between attempts. It reports
// whether delivery eventually succeeded.
func (t *Transport) Send(ctx context.Context, snap *models.Snapshot) bool {
	body, err := json.Marshal(snap)
	if err != nil {
		t.log.Error("snapshot marshal failed", "error", err)
		return false
	}

	for attempt := 0; attempt < t.maxAttempts; attempt++ {
		if attempt > 0 {
			t.sleep(t.baseBackoff << (attempt - 1))
		}

		status, err := t.post(ctx, body)
		if err != nil {
			t.log.Error("send attempt failed", "attempt", attempt+1, "error", err)
			continue
		}
		if status >= 200 && status < 300 {
			t.log.Info("snapshot delivered", "attempt", attempt+1, "status", status)
			return true
		}
		t.log.Error("collector rejected snapshot", "attempt", attempt+1, "status", status)
	}

	t.log.Error("delivery failed after retries", "attempts", t.maxAttempts)
	return false
}

func (t *Transport) post(ctx context.Context, body []byte) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if t.token != "" {
		req.Header.Set("Authorization", "Bearer "+t.token)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}
