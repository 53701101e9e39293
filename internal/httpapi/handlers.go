package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/MimeLyc/lecture-pipeline/internal/service"
	"github.com/MimeLyc/lecture-pipeline/internal/subtitle"
	"github.com/gorilla/mux"
)

const multipartMemory = 32 << 20

type createLectureRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

type chatRequest struct {
	Message string `json:"message"`
}

type searchRequest struct {
	Query string `json:"query"`
}

func (s *Server) handleCreateLecture(w http.ResponseWriter, r *http.Request) {
	var req createLectureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	lecture, err := s.lectures.CreateLecture(r.Context(), req.Title, req.Description)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, lecture)
}

func (s *Server) handleListLectures(w http.ResponseWriter, r *http.Request) {
	lectures, err := s.lectures.ListLectures(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"lectures": lectures})
}

func (s *Server) handleGetLecture(w http.ResponseWriter, r *http.Request) {
	lecture, err := s.lectures.GetLecture(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, lecture)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart body")
		return
	}
	upload, header, err := r.FormFile("video")
	if err != nil {
		writeError(w, http.StatusBadRequest, "video file is required")
		return
	}
	defer upload.Close()

	res, err := s.lectures.Upload(r.Context(), mux.Vars(r)["id"], header.Filename, upload,
		r.FormValue("title"), r.FormValue("description"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, res)
}

func (s *Server) handleUploadRecording(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart body")
		return
	}
	upload, header, err := r.FormFile("recording")
	if err != nil {
		writeError(w, http.StatusBadRequest, "recording file is required")
		return
	}
	defer upload.Close()

	res, err := s.lectures.UploadRecording(r.Context(), mux.Vars(r)["id"], header.Filename, upload)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, res)
}

func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	job, created, err := s.lectures.Process(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"created": created,
		"job":     job,
	})
}

func (s *Server) handleRetry(w http.ResponseWriter, r *http.Request) {
	job, err := s.lectures.Retry(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"job": job,
	})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	answer, err := s.lectures.Chat(r.Context(), mux.Vars(r)["id"], req.Message)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"response": answer,
	})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	results, err := s.lectures.Search(r.Context(), mux.Vars(r)["id"], req.Query)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"results": results,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	view, err := s.lectures.Status(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// handleCaptions serves ?format=srt (default) or vtt.
func (s *Server) handleCaptions(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	if format == "" {
		format = string(subtitle.FormatSRT)
	}
	data, f, err := s.lectures.Captions(r.Context(), mux.Vars(r)["id"], format)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	w.Header().Set("Content-Type", f.ContentType())
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{
		"error": msg,
	})
}

func writeServiceError(w http.ResponseWriter, err error) {
	status := statusFor(service.KindOf(err))
	msg := err.Error()
	var svcErr *service.Error
	if errors.As(err, &svcErr) {
		msg = svcErr.Message
	}
	if status == http.StatusInternalServerError {
		service.LogError(err)
	}
	writeError(w, status, msg)
}

func statusFor(kind service.ErrorKind) int {
	switch kind {
	case service.ErrNotFound, service.ErrVideoMissing:
		return http.StatusNotFound
	case service.ErrValidation:
		return http.StatusBadRequest
	case service.ErrConflict:
		return http.StatusConflict
	case service.ErrTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
