package handlers

import "net/http"

// FilterInfo describes one filter variant.
type FilterInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Engine      string `json:"engine"`
}

// ListFilters returns the filter catalog in registration order.
// GET /api/filters
func (h *Handlers) ListFilters(w http.ResponseWriter, _ *http.Request) {
	variants := h.catalog.Variants()
	out := make([]FilterInfo, 0, len(variants))
	for _, v := range variants {
		out = append(out, FilterInfo{Name: v.Name, Description: v.Description, Engine: v.Engine})
	}
	w.Header().Set("Cache-Control", "max-age=60")
	writeJSONStatus(w, http.StatusOK, out)
}
