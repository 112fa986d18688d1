package handlers

import (
	"errors"
	"net/http"
	"os"

	"video-rewrite/internal/filesystem"
	"video-rewrite/internal/logging"
)

// Inspect summarizes a container in the output directory.
// GET /api/inspect?path=
func (h *Handlers) Inspect(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("path")
	if raw == "" {
		writeJSONError(w, "path is required", http.StatusBadRequest)
		return
	}

	path, err := filesystem.ResolveWithin(h.outputDir, raw)
	if err != nil {
		writeJSONError(w, "path must be inside the output directory", http.StatusBadRequest)
		return
	}

	summary, err := h.inspect(path)
	switch {
	case err == nil:
		writeJSONStatus(w, http.StatusOK, summary)
	case errors.Is(err, os.ErrNotExist):
		writeJSONError(w, "File not found", http.StatusNotFound)
	default:
		logging.Debug("Inspect %s failed: %v", path, err)
		writeJSONError(w, "Not a readable QuickTime/MP4 file: "+err.Error(), http.StatusUnprocessableEntity)
	}
}
