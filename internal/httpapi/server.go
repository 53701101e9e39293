// Package httpapi exposes lecture operations and job records over HTTP.
package httpapi

import (
	"context"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/MimeLyc/lecture-pipeline/internal/jobs"
	"github.com/MimeLyc/lecture-pipeline/internal/persistence"
	"github.com/MimeLyc/lecture-pipeline/internal/service"
	"github.com/MimeLyc/lecture-pipeline/internal/subtitle"
	"github.com/MimeLyc/lecture-pipeline/pkg/icron"
	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Lectures is the operation set served under /api/lectures.
type Lectures interface {
	CreateLecture(ctx context.Context, title, description string) (*persistence.Lecture, error)
	GetLecture(ctx context.Context, id string) (*persistence.Lecture, error)
	ListLectures(ctx context.Context) ([]*persistence.Lecture, error)
	Upload(ctx context.Context, id, filename string, body io.Reader, title, description string) (*service.UploadResult, error)
	UploadRecording(ctx context.Context, id, filename string, body io.Reader) (*service.UploadResult, error)
	Process(ctx context.Context, id string) (*jobs.Job, bool, error)
	Retry(ctx context.Context, id string) (*jobs.Job, error)
	Chat(ctx context.Context, id, message string) (string, error)
	Search(ctx context.Context, id, query string) ([]string, error)
	Status(ctx context.Context, id string) (*service.StatusView, error)
	Captions(ctx context.Context, id, format string) ([]byte, subtitle.Format, error)
}

type JobLister interface {
	List() []*jobs.Job
	Get(id string) (*jobs.Job, bool)
}

type scheduleInfo interface {
	Info() *icron.TriggerInfo
}

type Server struct {
	lectures Lectures
	queue    JobLister
	schedule scheduleInfo

	uiEnabled   bool
	uiStaticDir string

	streamInterval time.Duration
	maxUploadBytes int64

	router  *mux.Router
	handler http.Handler
	server  *http.Server
}

type Option func(*Server)

func WithUI(staticDir string, enabled bool) Option {
	return func(s *Server) {
		s.uiStaticDir = staticDir
		s.uiEnabled = enabled
	}
}

// WithMaintenance reports the maintenance schedule on /healthz.
func WithMaintenance(info scheduleInfo) Option {
	return func(s *Server) {
		s.schedule = info
	}
}

func WithStreamInterval(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.streamInterval = d
		}
	}
}

func WithMaxUploadBytes(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxUploadBytes = n
		}
	}
}

func NewServer(lectures Lectures, queue JobLister, opts ...Option) *Server {
	s := &Server{
		lectures:       lectures,
		queue:          queue,
		streamInterval: time.Second,
		maxUploadBytes: 4 << 30,
		router:         mux.NewRouter(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	s.handler = s.router
	return s
}

func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) ListenAndServe(addr string) error {
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) handle(method, pattern string, h http.HandlerFunc) {
	s.router.Handle(pattern, otelhttp.NewHandler(h, method+" "+pattern)).Methods(method)
}

func (s *Server) routes() {
	s.router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)

	s.handle(http.MethodPost, "/api/lectures", s.handleCreateLecture)
	s.handle(http.MethodGet, "/api/lectures", s.handleListLectures)
	s.handle(http.MethodGet, "/api/lectures/{id}", s.handleGetLecture)
	s.handle(http.MethodPost, "/api/lectures/{id}/upload", s.handleUpload)
	s.handle(http.MethodPost, "/api/lectures/{id}/upload-recording", s.handleUploadRecording)
	s.handle(http.MethodPost, "/api/lectures/{id}/process", s.handleProcess)
	s.handle(http.MethodPost, "/api/lectures/{id}/retry-transcription", s.handleRetry)
	s.handle(http.MethodPost, "/api/lectures/{id}/chat", s.handleChat)
	s.handle(http.MethodPost, "/api/lectures/{id}/search", s.handleSearch)
	s.handle(http.MethodGet, "/api/lectures/{id}/status", s.handleStatus)
	s.handle(http.MethodGet, "/api/lectures/{id}/captions", s.handleCaptions)
	// no otelhttp span around a long-lived stream
	s.router.HandleFunc("/api/lectures/{id}/status/stream", s.handleStatusStream).Methods(http.MethodGet)

	s.handle(http.MethodGet, "/api/jobs", s.handleListJobs)
	s.handle(http.MethodGet, "/api/jobs/{id}", s.handleGetJob)

	s.router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	s.router.NotFoundHandler = http.HandlerFunc(s.handleStatic)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	ret := map[string]any{"ok": true}
	if s.schedule != nil {
		if info := s.schedule.Info(); info != nil {
			ret["maintenance"] = info
		}
	}
	writeJSON(w, http.StatusOK, ret)
}

func (s *Server) handleStatic(w http.ResponseWriter, r *http.Request) {
	if !s.uiEnabled || s.uiStaticDir == "" || strings.HasPrefix(r.URL.Path, "/api/") {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	rel := strings.TrimPrefix(path.Clean(r.URL.Path), "/")
	indexPath := filepath.Join(s.uiStaticDir, "index.html")

	if rel == "" || !strings.Contains(filepath.Base(rel), ".") {
		http.ServeFile(w, r, indexPath)
		return
	}

	filePath := filepath.Join(s.uiStaticDir, rel)
	if _, err := os.Stat(filePath); err != nil {
		// SPA fallback: non-existing static file path returns index
		http.ServeFile(w, r, indexPath)
		return
	}
	http.ServeFile(w, r, filePath)
}
