package serve

import (
	"encoding/json"
	"net/http"
	"strconv"

	"takecam/catalog"
)

const defaultHistoryLimit = 50

type TakeHistory interface {
	Recent(n int) ([]*catalog.TakeRecord, error)
}

// HistoryServer lists take records from the catalog across sessions.
type HistoryServer struct {
	Catalog TakeHistory
}

func (s *HistoryServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	limit := defaultHistoryLimit
	if l := r.Form.Get("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n <= 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	records, err := s.Catalog.Recent(limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(records); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
