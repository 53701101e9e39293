package httpapi

import (
	"net/http"

	"github.com/MimeLyc/lecture-pipeline/internal/jobs"
	"github.com/gorilla/mux"
)

// handleListJobs lists jobs newest first, optionally for one lecture
// (?lecture=<id>).
func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	all := s.queue.List()
	lectureID := r.URL.Query().Get("lecture")
	if lectureID == "" {
		writeJSON(w, http.StatusOK, all)
		return
	}
	ret := make([]*jobs.Job, 0, len(all))
	for _, job := range all {
		if job.LectureID == lectureID {
			ret = append(ret, job)
		}
	}
	writeJSON(w, http.StatusOK, ret)
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job, ok := s.queue.Get(mux.Vars(r)["id"])
	if !ok {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	writeJSON(w, http.StatusOK, job)
}
