// Package dispatch serves the dispatch journal and statistics.
package dispatch

import (
	"context"
	"net/http"
	"time"

	"github.com/kilianp07/techdispatch/api"
	coredispatch "github.com/kilianp07/techdispatch/core/dispatch"
	"github.com/kilianp07/techdispatch/core/dispatch/logging"
	"github.com/kilianp07/techdispatch/core/model"
)

// NewLogHandler returns an HTTP handler exposing the transition journal via
// GET /api/dispatch/logs. Requests must include an Authorization header with
// "Bearer <token>" when token is non-empty.
func NewLogHandler(store logging.LogStore, token string) http.Handler {
	return api.RequireBearer(token, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		params := r.URL.Query()
		q := logging.LogQuery{
			JobID:        params.Get("job_id"),
			TechnicianID: params.Get("technician_id"),
		}
		var err error
		if q.Start, err = parseTime(params.Get("start")); err != nil {
			api.BadRequest(w, "start: "+err.Error())
			return
		}
		if q.End, err = parseTime(params.Get("end")); err != nil {
			api.BadRequest(w, "end: "+err.Error())
			return
		}
		if s := params.Get("status"); s != "" {
			st, err := model.ParseStatus(s)
			if err != nil {
				api.BadRequest(w, err.Error())
				return
			}
			q.To = &st
		}
		records, err := store.Query(r.Context(), q)
		if err != nil {
			api.WriteError(w, err)
			return
		}
		if records == nil {
			records = []logging.LogRecord{}
		}
		api.WriteJSON(w, http.StatusOK, records)
	}))
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, s)
}

// StatsProvider computes a statistics snapshot.
type StatsProvider interface {
	Stats(ctx context.Context) (coredispatch.Stats, error)
}

// NewStatsHandler serves GET /api/dispatch/stats.
func NewStatsHandler(p StatsProvider, token string) http.Handler {
	return api.RequireBearer(token, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		st, err := p.Stats(r.Context())
		if err != nil {
			api.WriteError(w, err)
			return
		}
		api.WriteJSON(w, http.StatusOK, st)
	}))
}
