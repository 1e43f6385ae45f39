package entityloader

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/rpattn/aquamind/internal/domain"
	"github.com/rpattn/aquamind/pkg/filter"
)

// NewHTTPHandler resolves entities through the loaders attached to the
// request context. Routes:
//
//	GET /entities/{endpoint}/{id}
//	GET /entities/{endpoint}?ids=1,2,3
func NewHTTPHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /entities/{endpoint}/{id}", handleOne)
	mux.HandleFunc("GET /entities/{endpoint}", handleMany)
	return mux
}

func loaderFor(w http.ResponseWriter, r *http.Request) (*EntityLoader, bool) {
	loaders := FromContext(r.Context())
	if loaders == nil {
		http.Error(w, "entity loaders not configured", http.StatusInternalServerError)
		return nil, false
	}
	endpoint, err := domain.ResolveEndpoint(r.PathValue("endpoint"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return nil, false
	}
	return loaders.For(endpoint), true
}

func handleOne(w http.ResponseWriter, r *http.Request) {
	loader, ok := loaderFor(w, r)
	if !ok {
		return
	}
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.Error(w, "id must be an integer", http.StatusBadRequest)
		return
	}
	rec, err := loader.Load(r.Context(), id)
	if err != nil {
		var invalid *filter.InvalidIDError
		switch {
		case errors.Is(err, ErrNotFound):
			http.Error(w, err.Error(), http.StatusNotFound)
		case errors.As(err, &invalid):
			http.Error(w, err.Error(), http.StatusBadRequest)
		default:
			http.Error(w, err.Error(), http.StatusBadGateway)
		}
		return
	}
	writeJSON(w, rec)
}

func handleMany(w http.ResponseWriter, r *http.Request) {
	loader, ok := loaderFor(w, r)
	if !ok {
		return
	}
	ids := filter.ParseInFilter(r.URL.Query().Get("ids"))
	if len(ids) == 0 {
		http.Error(w, "ids must list at least one positive integer", http.StatusBadRequest)
		return
	}
	records, err := loader.LoadMany(r.Context(), ids)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	found := make([]domain.Record, 0, len(records))
	for _, rec := range records {
		if rec != nil {
			found = append(found, rec)
		}
	}
	writeJSON(w, found)
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}
