package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/banshee-data/marker.place/internal/ar"
	"github.com/banshee-data/marker.place/internal/ar/session"
	"github.com/banshee-data/marker.place/internal/httputil"
)

type modeRequest struct {
	Mode string `json:"mode"`
}

type placeRequest struct {
	X *float64 `json:"x"`
	Y *float64 `json:"y"`
}

type commandResponse struct {
	OK    bool          `json:"ok"`
	State session.State `json:"session"`
}

// do sends ev to the session loop and writes the outcome.
func (s *Server) do(w http.ResponseWriter, r *http.Request, ev session.Event) {
	ctx, cancel := context.WithTimeout(r.Context(), commandTimeout)
	defer cancel()

	err := s.ctrl.Do(ctx, ev)
	switch {
	case err == nil:
		httputil.WriteJSONOK(w, commandResponse{OK: true, State: s.ctrl.State()})
	case errors.Is(err, session.ErrNoFrame):
		httputil.WriteJSONError(w, http.StatusConflict, err.Error())
	case errors.Is(err, session.ErrNoHit):
		httputil.Unprocessable(w, err.Error())
	case errors.Is(err, session.ErrClosed),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		httputil.ServiceUnavailable(w, err.Error())
	default:
		httputil.InternalServerError(w, err.Error())
	}
}

func (s *Server) setMode(w http.ResponseWriter, r *http.Request) {
	var req modeRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	mode, err := ar.ParseMode(req.Mode)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	s.do(w, r, session.SetMode{Mode: mode})
}

func (s *Server) resetScene(w http.ResponseWriter, r *http.Request) {
	s.do(w, r, session.ResetScene{})
}

func (s *Server) placeAt(w http.ResponseWriter, r *http.Request) {
	var req placeRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	if req.X == nil || req.Y == nil {
		httputil.BadRequest(w, "x and y are required")
		return
	}
	s.do(w, r, session.PlaceAt{Point: ar.ScreenPoint{X: *req.X, Y: *req.Y}})
}
