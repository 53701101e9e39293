// Package poller is the client side of lecture processing: it asks for a
// lecture's status until processing settles or a deadline passes.
package poller

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/MimeLyc/lecture-pipeline/internal/service"
	"github.com/MimeLyc/lecture-pipeline/pkg/log"
)

const (
	DefaultInterval = 5 * time.Second
	DefaultTimeout  = 5 * time.Minute
)

// ErrGaveUp is returned when the deadline passes before the lecture settles.
// The last view seen is returned alongside it.
var ErrGaveUp = errors.New("lecture still processing")

type Fetcher interface {
	FetchStatus(ctx context.Context, lectureID string) (*service.StatusView, error)
}

type Options struct {
	Interval time.Duration
	Timeout  time.Duration
	// OnUpdate sees every view, including the final one.
	OnUpdate func(*service.StatusView)
}

// Done reports whether a view needs no further polling: the run reached a
// terminal status, or both transcript and summary are present.
func Done(v *service.StatusView) bool {
	return v.Terminal() || (v.HasTranscript && v.HasSummary)
}

// Poll fetches the status every interval until Done, the timeout, or ctx
// cancellation. Fetch errors other than not-found are logged and retried.
func Poll(ctx context.Context, f Fetcher, lectureID string, opts Options) (*service.StatusView, error) {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}

	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	ticker := time.NewTicker(opts.Interval)
	defer ticker.Stop()

	var last *service.StatusView
	for {
		view, err := f.FetchStatus(ctx, lectureID)
		switch {
		case err == nil:
			last = view
			if opts.OnUpdate != nil {
				opts.OnUpdate(view)
			}
			if Done(view) {
				return view, nil
			}
		case service.IsKind(err, service.ErrNotFound):
			return nil, err
		case ctx.Err() == nil:
			log.Warn("status poll for %s failed: %v", lectureID, err)
		}

		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return last, ErrGaveUp
			}
			return last, ctx.Err()
		case <-ticker.C:
		}
	}
}

// HTTPFetcher reads GET /api/lectures/{id}/status.
type HTTPFetcher struct {
	baseURL string
	client  *http.Client
}

func NewHTTPFetcher(baseURL string, client *http.Client) *HTTPFetcher {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTPFetcher{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

func (h *HTTPFetcher) FetchStatus(ctx context.Context, lectureID string) (*service.StatusView, error) {
	endpoint := h.baseURL + "/api/lectures/" + url.PathEscape(lectureID) + "/status"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, service.NewError(service.ErrNotFound, "Lecture not found").WithContext("lecture", lectureID)
	default:
		var body struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&body)
		return nil, fmt.Errorf("status request returned %d: %s", resp.StatusCode, body.Error)
	}

	var view service.StatusView
	if err := json.NewDecoder(resp.Body).Decode(&view); err != nil {
		return nil, fmt.Errorf("decode status: %w", err)
	}
	return &view, nil
}
