package api

import (
	"net/http"
	"strconv"

	"github.com/banshee-data/marker.place/internal/db"
	"github.com/banshee-data/marker.place/internal/httputil"
)

// maxJournalLimit caps the limit query parameter.
const maxJournalLimit = 1000

// listJournal serves journal entries newest first, optionally filtered
// by ?session= and capped by ?limit=.
func (s *Server) listJournal(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		httputil.ServiceUnavailable(w, "journal not attached")
		return
	}

	limit := db.DefaultJournalLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			httputil.BadRequest(w, "limit must be a positive integer")
			return
		}
		limit = min(n, maxJournalLimit)
	}

	entries, err := s.journal.List(r.Context(), r.URL.Query().Get("session"), limit)
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	httputil.WriteJSONOK(w, entries)
}

func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		httputil.ServiceUnavailable(w, "journal not attached")
		return
	}
	sessions, err := s.journal.Sessions(r.Context())
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	httputil.WriteJSONOK(w, sessions)
}
