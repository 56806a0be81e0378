package diag

import (
	"log/slog"
	"net/http"
	"time"

	"vidclient/internal/platform/logger"
	"vidclient/internal/platform/metrics"
	"vidclient/internal/playback"
	"vidclient/internal/upload"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// UploadSource is implemented by *upload.Controller.
type UploadSource interface {
	Sessions() []upload.Session
	Active() int
}

// PlaybackSource is implemented by *playback.Controller.
type PlaybackSource interface {
	Sessions() []playback.Info
	Active() int
}

// Sessions is the body of GET /sessions.
type Sessions struct {
	Uploads  []upload.Session `json:"uploads"`
	Playback []playback.Info  `json:"playback"`
}

// Handler exposes the client's in-flight state over HTTP. Either source may
// be nil when the running command has no such controller.
type Handler struct {
	uploads  UploadSource
	playback PlaybackSource
	log      *slog.Logger
	metrics  *metrics.Metrics
	started  time.Time
}

// NewHandler returns a Handler. Metrics may be nil to disable /metrics.
func NewHandler(uploads UploadSource, pb PlaybackSource, log *slog.Logger, m *metrics.Metrics) *Handler {
	return &Handler{uploads: uploads, playback: pb, log: log, metrics: m, started: time.Now()}
}

// Routes returns the chi router serving all diagnostics endpoints.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(logger.RequestLogger(h.log))
	if h.metrics != nil {
		r.Use(metrics.RequestMiddleware(h.metrics))
		r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
			h.metrics.Handler(h.updateGauges).ServeHTTP(w, r)
		})
	}
	r.Get("/healthz", h.Health)
	r.Route("/sessions", func(r chi.Router) {
		r.Get("/", h.ListSessions)
		r.Get("/playback/{session_id}", h.GetPlaybackSession)
	})
	return r
}

// Health handles GET /healthz.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"uptime_seconds": int64(time.Since(h.started).Seconds()),
	})
}

// ListSessions handles GET /sessions.
func (h *Handler) ListSessions(w http.ResponseWriter, r *http.Request) {
	body := Sessions{Uploads: []upload.Session{}, Playback: []playback.Info{}}
	if h.uploads != nil {
		body.Uploads = append(body.Uploads, h.uploads.Sessions()...)
	}
	if h.playback != nil {
		body.Playback = append(body.Playback, h.playback.Sessions()...)
	}
	writeJSON(w, http.StatusOK, body)
}

// GetPlaybackSession handles GET /sessions/playback/{session_id}.
func (h *Handler) GetPlaybackSession(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "session_id"))
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if h.playback != nil {
		for _, info := range h.playback.Sessions() {
			if info.ID == id {
				writeJSON(w, http.StatusOK, info)
				return
			}
		}
	}
	w.WriteHeader(http.StatusNotFound)
}

func (h *Handler) updateGauges() {
	if h.uploads != nil {
		h.metrics.SetActiveUploads(h.uploads.Active())
	}
	if h.playback != nil {
		h.metrics.SetActivePlaybackSessions(h.playback.Active())
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
