package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/banshee-data/marker.place/internal/ar/session"
	"github.com/banshee-data/marker.place/internal/ar/status"
	"github.com/banshee-data/marker.place/internal/httputil"
	"github.com/banshee-data/marker.place/internal/version"
)

type versionInfo struct {
	Version   string `json:"version"`
	GitSHA    string `json:"git_sha"`
	BuildTime string `json:"build_time"`
}

type statusResponse struct {
	Session session.State   `json:"session"`
	Status  status.Snapshot `json:"status"`
	Version versionInfo     `json:"version"`
}

func (s *Server) showStatus(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSONOK(w, statusResponse{
		Session: s.ctrl.State(),
		Status:  s.ctrl.Board().Snapshot(),
		Version: versionInfo{
			Version:   version.Version,
			GitSHA:    version.GitSHA,
			BuildTime: version.BuildTime,
		},
	})
}

// streamStatus pushes every status board change as a server-sent event.
// The stream ends when the client goes away or the session loop stops.
func (s *Server) streamStatus(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		httputil.InternalServerError(w, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable buffering for nginx

	board := s.ctrl.Board()
	id, c := board.Subscribe()
	defer board.Unsubscribe(id)

	w.Write([]byte(": ping\n\n"))
	flusher.Flush()

	for {
		select {
		case snap, ok := <-c:
			if !ok {
				return
			}
			payload, err := json.Marshal(snap)
			if err != nil {
				return
			}
			if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
				return
			}
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}
