package export

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rpattn/aquamind/internal/domain"
	"github.com/rpattn/aquamind/internal/repository"
	"github.com/rpattn/aquamind/pkg/filter"
)

type Handler struct {
	service        *Service
	maxRecommended int
	mux            *http.ServeMux
}

// NewHTTPHandler serves stored snapshots, their exports and a filter
// summary endpoint. maxRecommended tunes the large-selection warning.
func NewHTTPHandler(service *Service, maxRecommended int) http.Handler {
	h := &Handler{service: service, maxRecommended: maxRecommended, mux: http.NewServeMux()}
	h.mux.HandleFunc("GET /snapshots", h.handleList)
	h.mux.HandleFunc("GET /snapshots/{id}", h.handleGet)
	h.mux.HandleFunc("DELETE /snapshots/{id}", h.handleDelete)
	h.mux.HandleFunc("GET /snapshots/{id}/export", h.handleDownload)
	h.mux.HandleFunc("POST /snapshots/{id}/download-link", h.handleDownloadLink)
	h.mux.HandleFunc("GET /filters/summary", h.handleFilterSummary)
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	var opts repository.SnapshotFilter
	if raw := strings.TrimSpace(query.Get("endpoint")); raw != "" {
		endpoint, err := domain.ResolveEndpoint(raw)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		opts.Endpoint = endpoint
	}
	if raw := strings.TrimSpace(query.Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		opts.Limit = parsed
	}
	if raw := strings.TrimSpace(query.Get("offset")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			http.Error(w, "offset must be zero or positive", http.StatusBadRequest)
			return
		}
		opts.Offset = parsed
	}
	snapshots, err := h.service.Snapshots(r.Context(), opts)
	if err != nil {
		http.Error(w, fmt.Sprintf("list snapshots: %v", err), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, snapshots)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	snapshot, ok := h.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	if err := h.service.DeleteSnapshot(r.Context(), id); err != nil {
		writeLookupError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleDownload(w http.ResponseWriter, r *http.Request) {
	format, ok := domain.ParseExportFormat(strings.TrimSpace(r.URL.Query().Get("format")))
	if !ok {
		http.Error(w, "format must be xlsx or csv", http.StatusBadRequest)
		return
	}
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	token := strings.TrimSpace(r.URL.Query().Get("token"))
	if err := h.service.ValidateDownloadToken(id, token); err != nil {
		http.Error(w, err.Error(), http.StatusForbidden)
		return
	}
	snapshot, ok := h.lookup(w, r)
	if !ok {
		return
	}

	filename := FileName(snapshot, format)
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", filename))
	if _, err := h.service.Write(w, snapshot, format); err != nil {
		// headers are gone by now; the client sees a truncated body
		h.service.logger.Error("export download failed", zap.String("id", id.String()), zap.Error(err))
	}
}

type downloadLink struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (h *Handler) handleDownloadLink(w http.ResponseWriter, r *http.Request) {
	format, ok := domain.ParseExportFormat(strings.TrimSpace(r.URL.Query().Get("format")))
	if !ok {
		http.Error(w, "format must be xlsx or csv", http.StatusBadRequest)
		return
	}
	snapshot, ok := h.lookup(w, r)
	if !ok {
		return
	}
	token, expiresAt, enabled := h.service.DownloadToken(snapshot.ID)
	if !enabled {
		http.Error(w, "signed download links are disabled", http.StatusNotFound)
		return
	}
	query := url.Values{"format": {string(format)}, "token": {token}}
	writeJSON(w, http.StatusCreated, downloadLink{
		URL:       fmt.Sprintf("/snapshots/%s/export?%s", snapshot.ID, query.Encode()),
		ExpiresAt: expiresAt.UTC(),
	})
}

type filterSummaryResponse struct {
	Filters  map[string]string `json:"filters"`
	Summary  string            `json:"summary"`
	Warnings map[string]string `json:"warnings"`
}

// handleFilterSummary describes the `__in` parameters of the request.
// Non-positive IDs are dropped while parsing, so only warnings can arise.
func (h *Handler) handleFilterSummary(w http.ResponseWriter, r *http.Request) {
	selection := filter.ParseQuery(r.URL.Query())
	resp := filterSummaryResponse{
		Filters:  filter.FormatMultiEntityFilters(selection),
		Summary:  filter.CreateFilterSummary(selection),
		Warnings: map[string]string{},
	}
	for key, ids := range selection.All() {
		opt := filter.OptimizeEntityIDArray(ids, filter.EntityType(key), h.maxRecommended)
		if opt.Warning != "" {
			resp.Warnings[key] = opt.Warning
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) lookup(w http.ResponseWriter, r *http.Request) (domain.ListSnapshot, bool) {
	id, ok := parseID(w, r)
	if !ok {
		return domain.ListSnapshot{}, false
	}
	snapshot, err := h.service.Snapshot(r.Context(), id)
	if err != nil {
		writeLookupError(w, err)
		return domain.ListSnapshot{}, false
	}
	return snapshot, true
}

func parseID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(strings.TrimSpace(r.PathValue("id")))
	if err != nil {
		http.Error(w, fmt.Sprintf("invalid snapshot identifier: %v", err), http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}

func writeLookupError(w http.ResponseWriter, err error) {
	if errors.Is(err, repository.ErrSnapshotNotFound) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	http.Error(w, err.Error(), http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(payload)
}
