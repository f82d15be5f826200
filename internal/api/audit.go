package api

import (
	"net/http"
	"strconv"
	"time"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
	statsWindow     = 24 * time.Hour
)

// GET /api/audit?page=&size=
func (h *Handler) listAudit(w http.ResponseWriter, r *http.Request) {
	page, err := queryInt(r, "page", 0)
	if err != nil || page < 0 {
		writeError(w, http.StatusBadRequest, "page must be a non-negative integer")
		return
	}
	size, err := queryInt(r, "size", defaultPageSize)
	if err != nil || size <= 0 {
		writeError(w, http.StatusBadRequest, "size must be a positive integer")
		return
	}
	if size > maxPageSize {
		size = maxPageSize
	}

	res, err := h.deps.Audit.List(r.Context(), page, size)
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// GET /api/audit/stats
func (h *Handler) auditStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.deps.Audit.Stats(r.Context(), h.now().Add(-statsWindow))
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}
