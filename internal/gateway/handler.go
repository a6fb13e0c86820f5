package gateway

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"stream-gateway/internal/platform/logger"
	"stream-gateway/internal/platform/ratelimit"

	"github.com/go-chi/chi/v5"
)

const (
	playlistContentType = "application/vnd.apple.mpegurl"

	notFoundBody   = "404 Not Found"
	overloadedBody = "Server is currently overloaded"
)

// Handler exposes the gateway over HTTP using go-chi. Every business route is
// executed through the Dispatcher and therefore through the admission gate.
type Handler struct {
	d   *Dispatcher
	log *slog.Logger
}

// NewHandler returns a Handler that dispatches through d.
func NewHandler(d *Dispatcher, log *slog.Logger) *Handler {
	return &Handler{d: d, log: log}
}

// Register mounts the gateway routes on r, including the not-found and
// method-not-allowed fallbacks.
func (h *Handler) Register(r chi.Router) {
	r.NotFound(h.NotFound)
	r.MethodNotAllowed(h.NotFound)

	r.Get("/stream", h.Stream)
	r.Route("/users", func(r chi.Router) {
		r.Post("/", h.RegisterUser)
		r.Route("/{user_id}", func(r chi.Router) {
			r.Get("/", h.GetSession)
			r.Delete("/", h.RemoveUser)
			r.Put("/bitrate", h.UpdateBitrate)
		})
	})
	r.Route("/videos/{video_id}", func(r chi.Router) {
		r.Get("/", h.GetVideo)
		r.Get("/master.m3u8", h.MasterPlaylist)
	})
}

var errMissingBitrate = errors.New("bitrate is required")

type registerUserBody struct {
	UserID  UserID `json:"user_id"`
	Bitrate int    `json:"bitrate"`
}

type updateBitrateBody struct {
	Bitrate *int `json:"bitrate"`
}

type errorBody struct {
	Error string `json:"error"`
}

// Stream handles GET /stream?user_id=...&video_id=...
func (h *Handler) Stream(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := h.request(r, RouteStream)
	req.UserID = UserID(q.Get("user_id"))
	req.VideoID = VideoID(q.Get("video_id"))

	resp, err := h.d.Dispatch(r.Context(), req)
	if err != nil {
		h.writeError(w, resp.Outcome)
		return
	}
	writeJSON(w, resp.Outcome.Status, resp.Stream)
}

// RegisterUser handles POST /users.
// Body: { "user_id": "u1", "bitrate": 720 }.
func (h *Handler) RegisterUser(w http.ResponseWriter, r *http.Request) {
	var body registerUserBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.badBody(w, r, err)
		return
	}

	req := h.request(r, RouteRegisterUser)
	req.UserID = body.UserID
	req.Bitrate = body.Bitrate

	resp, err := h.d.Dispatch(r.Context(), req)
	if err != nil {
		h.writeError(w, resp.Outcome)
		return
	}
	writeJSON(w, resp.Outcome.Status, resp.Session)
}

// UpdateBitrate handles PUT /users/{user_id}/bitrate.
// Body: { "bitrate": 1080 }.
func (h *Handler) UpdateBitrate(w http.ResponseWriter, r *http.Request) {
	var body updateBitrateBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.badBody(w, r, err)
		return
	}
	if body.Bitrate == nil {
		h.badBody(w, r, errMissingBitrate)
		return
	}

	req := h.request(r, RouteUpdateBitrate)
	req.UserID = UserID(chi.URLParam(r, "user_id"))
	req.Bitrate = *body.Bitrate

	resp, err := h.d.Dispatch(r.Context(), req)
	if err != nil {
		h.writeError(w, resp.Outcome)
		return
	}
	writeJSON(w, resp.Outcome.Status, resp.Session)
}

// GetSession handles GET /users/{user_id}.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	req := h.request(r, RouteGetSession)
	req.UserID = UserID(chi.URLParam(r, "user_id"))

	resp, err := h.d.Dispatch(r.Context(), req)
	if err != nil {
		h.writeError(w, resp.Outcome)
		return
	}
	writeJSON(w, resp.Outcome.Status, resp.Session)
}

// RemoveUser handles DELETE /users/{user_id}.
func (h *Handler) RemoveUser(w http.ResponseWriter, r *http.Request) {
	req := h.request(r, RouteRemoveUser)
	req.UserID = UserID(chi.URLParam(r, "user_id"))

	resp, err := h.d.Dispatch(r.Context(), req)
	if err != nil {
		h.writeError(w, resp.Outcome)
		return
	}
	w.WriteHeader(resp.Outcome.Status)
}

// GetVideo handles GET /videos/{video_id}.
func (h *Handler) GetVideo(w http.ResponseWriter, r *http.Request) {
	req := h.request(r, RouteGetVideo)
	req.VideoID = VideoID(chi.URLParam(r, "video_id"))

	resp, err := h.d.Dispatch(r.Context(), req)
	if err != nil {
		h.writeError(w, resp.Outcome)
		return
	}
	writeJSON(w, resp.Outcome.Status, resp.Video)
}

// MasterPlaylist handles GET /videos/{video_id}/master.m3u8[?user_id=...].
func (h *Handler) MasterPlaylist(w http.ResponseWriter, r *http.Request) {
	req := h.request(r, RouteMasterPlaylist)
	req.VideoID = VideoID(chi.URLParam(r, "video_id"))
	req.UserID = UserID(r.URL.Query().Get("user_id"))

	resp, err := h.d.Dispatch(r.Context(), req)
	if err != nil {
		h.writeError(w, resp.Outcome)
		return
	}
	w.Header().Set("Content-Type", playlistContentType)
	w.WriteHeader(resp.Outcome.Status)
	w.Write([]byte(resp.Playlist))
}

// NotFound answers any method and path the gateway does not serve. It never
// takes an admission permit.
func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	out := h.d.RouteNotFound(r.Context(), r.Method, r.URL.Path,
		r.Header.Get(ratelimit.CredentialHeader), logger.RequestIDFrom(r.Context()))
	h.writeError(w, out)
}

func (h *Handler) request(r *http.Request, route Route) Request {
	return Request{
		Route:      route,
		Credential: r.Header.Get(ratelimit.CredentialHeader),
		RequestID:  logger.RequestIDFrom(r.Context()),
	}
}

func (h *Handler) badBody(w http.ResponseWriter, r *http.Request, err error) {
	h.log.Debug("invalid request body",
		slog.String("path", r.URL.Path),
		slog.String("request_id", logger.RequestIDFrom(r.Context())),
		slog.String("error", err.Error()))
	h.writeError(w, Classify(ErrInvalidRequest))
}

// writeError renders a failed outcome. Routing and overload failures keep
// their plain-text bodies; business failures are JSON.
func (h *Handler) writeError(w http.ResponseWriter, out Outcome) {
	switch out.Kind {
	case OutcomeRouteNotFound:
		writeText(w, out.Status, notFoundBody)
	case OutcomeOverloaded:
		writeText(w, out.Status, overloadedBody)
	default:
		writeJSON(w, out.Status, errorBody{Error: string(out.Kind)})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	w.Write([]byte(body))
}
