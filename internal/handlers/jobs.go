package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/gorilla/mux"

	"video-rewrite/internal/database"
	"video-rewrite/internal/filesystem"
	"video-rewrite/internal/jobs"
	"video-rewrite/internal/logging"
	"video-rewrite/internal/mediatypes"
	"video-rewrite/internal/streaming"
)

const maxRequestBody = 64 << 10

// CreateJob submits a transcode job.
// POST /api/jobs
func (h *Handlers) CreateJob(w http.ResponseWriter, r *http.Request) {
	var req jobs.Request
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeJSONError(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	job, err := h.jobs.Submit(r.Context(), req)
	if err != nil {
		h.writeJobError(w, err)
		return
	}

	w.Header().Set("Location", "/api/jobs/"+job.ID)
	writeJSONStatus(w, http.StatusAccepted, job)
}

// ListJobs returns jobs newest first.
// GET /api/jobs?status=&limit=&offset=
func (h *Handlers) ListJobs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := database.ListOptions{Status: database.JobStatus(q.Get("status"))}
	if opts.Status != "" && !opts.Status.Valid() {
		writeJSONError(w, "Unknown status: "+q.Get("status"), http.StatusBadRequest)
		return
	}

	var err error
	if opts.Limit, err = intParam(q.Get("limit")); err != nil {
		writeJSONError(w, "Invalid limit", http.StatusBadRequest)
		return
	}
	if opts.Offset, err = intParam(q.Get("offset")); err != nil {
		writeJSONError(w, "Invalid offset", http.StatusBadRequest)
		return
	}

	list, err := h.jobs.List(r.Context(), opts)
	if err != nil {
		h.writeJobError(w, err)
		return
	}
	writeJSONStatus(w, http.StatusOK, list)
}

// GetJob returns one job.
// GET /api/jobs/{id}
func (h *Handlers) GetJob(w http.ResponseWriter, r *http.Request) {
	job, err := h.jobs.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.writeJobError(w, err)
		return
	}
	writeJSONStatus(w, http.StatusOK, job)
}

// CancelJob stops a queued or running job.
// DELETE /api/jobs/{id}
func (h *Handlers) CancelJob(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := h.jobs.Cancel(r.Context(), id); err != nil {
		h.writeJobError(w, err)
		return
	}
	writeJSONStatus(w, http.StatusAccepted, map[string]string{"id": id, "status": "cancelling"})
}

// GetJobOutput streams the output file of a succeeded job. Range requests
// are supported.
// GET /api/jobs/{id}/output
func (h *Handlers) GetJobOutput(w http.ResponseWriter, r *http.Request) {
	job, err := h.jobs.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.writeJobError(w, err)
		return
	}
	if job.Status != database.StatusSucceeded {
		writeJSONError(w, "Job has not succeeded (status "+string(job.Status)+")", http.StatusConflict)
		return
	}

	f, err := filesystem.OpenWithRetry(job.Destination, filesystem.DefaultRetryConfig())
	if err != nil {
		logging.Warn("Output of job %s unavailable: %v", job.ID, err)
		writeJSONError(w, "Output file not found", http.StatusGone)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || info.IsDir() {
		writeJSONError(w, "Output file not found", http.StatusGone)
		return
	}

	name := filepath.Base(job.Destination)
	w.Header().Set("Content-Type", mediatypes.GetMimeType(name))
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	http.ServeContent(w, r, name, info.ModTime(), f)
}

// WatchJob streams the job as NDJSON, one line per change, ending after the
// line with a terminal status.
// GET /api/jobs/{id}/watch
func (h *Handlers) WatchJob(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if _, err := h.jobs.Get(r.Context(), id); err != nil {
		h.writeJobError(w, err)
		return
	}

	var last *database.Job
	err := streaming.StreamJSON(r.Context(), w, h.stream, func(ctx context.Context) (any, bool, error) {
		job, err := h.jobs.Get(ctx, id)
		if err != nil {
			return nil, false, err
		}
		done := job.Status.Terminal()
		if last != nil && last.Status == job.Status && last.Progress == job.Progress {
			return nil, done, nil
		}
		last = job
		return job, done, nil
	})
	if err != nil {
		logging.Debug("Watch of job %s ended: %v", id, err)
	}
}

// writeJobError maps service errors to status codes.
func (h *Handlers) writeJobError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, jobs.ErrInvalidRequest):
		writeJSONError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, database.ErrNotFound):
		writeJSONError(w, "Job not found", http.StatusNotFound)
	case errors.Is(err, jobs.ErrNotActive):
		writeJSONError(w, "Job has already finished", http.StatusConflict)
	case errors.Is(err, jobs.ErrShuttingDown):
		writeJSONError(w, "Service is shutting down", http.StatusServiceUnavailable)
	default:
		logging.Error("Job request failed: %v", err)
		writeJSONError(w, "Internal server error", http.StatusInternalServerError)
	}
}

func intParam(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, errors.New("not a non-negative integer")
	}
	return n, nil
}
