package httpapi

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MimeLyc/lecture-pipeline/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedLectures returns the queued statuses in order, repeating the last.
type scriptedLectures struct {
	Lectures
	mu       sync.Mutex
	statuses []string
}

func (s *scriptedLectures) Status(_ context.Context, id string) (*service.StatusView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id != "lec-1" {
		return nil, service.NewError(service.ErrNotFound, "Lecture not found")
	}
	status := s.statuses[0]
	if len(s.statuses) > 1 {
		s.statuses = s.statuses[1:]
	}
	return &service.StatusView{LectureID: id, Status: status}, nil
}

func TestStatusStream_EndsAtTerminalStatus(t *testing.T) {
	lectures := &scriptedLectures{statuses: []string{"SCHEDULED", "SCHEDULED", "SCHEDULED", "COMPLETED"}}
	srv := NewServer(lectures, nil, WithStreamInterval(5*time.Millisecond))
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/lectures/lec-1/status/stream")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	var seen []string
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var view service.StatusView
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &view))
		seen = append(seen, view.Status)
	}
	// the first Status call is the existence check
	assert.Equal(t, []string{"SCHEDULED", "SCHEDULED", "COMPLETED"}, seen)
}

func TestStatusStream_UnknownLecture(t *testing.T) {
	srv := NewServer(&scriptedLectures{statuses: []string{"DRAFT"}}, nil)
	req := httptest.NewRequest(http.MethodGet, "/api/lectures/nope/status/stream", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
