package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/web3-frozen/unlock-emissions/internal/pipeline"
	"github.com/web3-frozen/unlock-emissions/internal/store"
)

const (
	defaultRunsLimit = 20
	maxRunsLimit     = 100
)

// RunStarter launches batch runs in the background.
type RunStarter interface {
	Start(ctx context.Context, indexes []int) (string, error)
	RegistrySize() int
}

// RunLister reads run history.
type RunLister interface {
	ListRuns(ctx context.Context, limit int) ([]store.Run, error)
}

// TriggerRun starts a batch over the requested adapter indexes. Runs are
// detached from the request and bound to ctx instead.
func TriggerRun(ctx context.Context, rs RunStarter) http.HandlerFunc {
	type request struct {
		ProtocolIndexes []int `json:"protocolIndexes"`
		All             bool  `json:"all"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		var req request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
			return
		}

		size := rs.RegistrySize()
		indexes := req.ProtocolIndexes
		if req.All {
			indexes = make([]int, size)
			for i := range indexes {
				indexes[i] = i
			}
		}
		if len(indexes) == 0 {
			http.Error(w, `{"error":"protocolIndexes or all required"}`, http.StatusBadRequest)
			return
		}
		for _, i := range indexes {
			if i < 0 || i >= size {
				http.Error(w, `{"error":"protocol index out of range"}`, http.StatusBadRequest)
				return
			}
		}

		id, err := rs.Start(ctx, indexes)
		if errors.Is(err, pipeline.ErrRunInProgress) {
			http.Error(w, `{"error":"a run is already in progress"}`, http.StatusConflict)
			return
		}
		if err != nil {
			http.Error(w, `{"error":"failed to start run"}`, http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		_ = json.NewEncoder(w).Encode(map[string]any{"run_id": id, "adapters": len(indexes)})
	}
}

func ListRuns(l RunLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := defaultRunsLimit
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				http.Error(w, `{"error":"invalid limit"}`, http.StatusBadRequest)
				return
			}
			limit = min(n, maxRunsLimit)
		}

		runs, err := l.ListRuns(r.Context(), limit)
		if err != nil {
			http.Error(w, `{"error":"failed to list runs"}`, http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(runs)
	}
}

// ListAdapters returns the adapter registry with the index used to address
// each adapter in a run.
func ListAdapters(names []string) http.HandlerFunc {
	type adapter struct {
		Index int    `json:"index"`
		Name  string `json:"name"`
	}
	list := make([]adapter, len(names))
	for i, n := range names {
		list[i] = adapter{Index: i, Name: n}
	}

	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(list)
	}
}
