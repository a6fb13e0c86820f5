package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"stream-gateway/internal/admission"
	"stream-gateway/internal/platform/metrics"
	"stream-gateway/internal/platform/stats"
)

// Route names an operation the dispatcher can execute.
type Route string

const (
	RouteStream         Route = "stream"
	RouteRegisterUser   Route = "register_user"
	RouteUpdateBitrate  Route = "update_bitrate"
	RouteGetSession     Route = "get_session"
	RouteRemoveUser     Route = "remove_user"
	RouteGetVideo       Route = "get_video"
	RouteMasterPlaylist Route = "master_playlist"

	routeUnrouted Route = "unrouted"
)

// successStatus is the HTTP status reported for a successful call per route.
var successStatus = map[Route]int{
	RouteStream:         http.StatusOK,
	RouteRegisterUser:   http.StatusCreated,
	RouteUpdateBitrate:  http.StatusOK,
	RouteGetSession:     http.StatusOK,
	RouteRemoveUser:     http.StatusNoContent,
	RouteGetVideo:       http.StatusOK,
	RouteMasterPlaylist: http.StatusOK,
}

// Request is a transport-independent inbound request.
type Request struct {
	Route      Route
	UserID     UserID
	VideoID    VideoID
	Bitrate    int
	Credential string
	RequestID  string
}

// Response carries the outcome of a dispatched request and, on success, the
// value produced by its route.
type Response struct {
	Route    Route
	Outcome  Outcome
	Stream   *StreamResult
	Session  *UserSession
	Video    *Video
	Playlist string
}

// Dispatcher admits requests through the gate and runs them against the
// session store and catalog. The permit is released on every exit path.
type Dispatcher struct {
	gate     *admission.Gate
	sessions *SessionStore
	catalog  *Catalog
	log      *slog.Logger
	metrics  *metrics.Metrics
	recorder stats.Recorder
	stats    *stats.Async
}

// DispatcherOption configures optional Dispatcher collaborators.
type DispatcherOption func(*Dispatcher)

// WithMetrics records admission and outcome counters in m.
func WithMetrics(m *metrics.Metrics) DispatcherOption {
	return func(d *Dispatcher) { d.metrics = m }
}

// WithRecorder reports every outcome to r on a best-effort basis. Events are
// queued and delivered in the background, so a slow r never delays a request;
// call Close to flush the queue.
func WithRecorder(r stats.Recorder) DispatcherOption {
	return func(d *Dispatcher) { d.recorder = r }
}

// NewDispatcher returns a Dispatcher over the given gate, sessions and catalog.
func NewDispatcher(gate *admission.Gate, sessions *SessionStore, catalog *Catalog, log *slog.Logger, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{gate: gate, sessions: sessions, catalog: catalog, log: log}
	for _, opt := range opts {
		opt(d)
	}
	if d.recorder != nil {
		d.stats = stats.NewAsync(d.recorder,
			stats.WithOnDrop(d.metrics.IncStatsDropped),
			stats.WithOnError(func(err error) {
				d.log.Debug("outcome stats not recorded", slog.String("error", err.Error()))
			}),
		)
	}
	return d
}

// Close flushes queued outcome stats. Dispatching after Close still works but
// no longer records stats.
func (d *Dispatcher) Close(ctx context.Context) error {
	if d.stats == nil {
		return nil
	}
	return d.stats.Close(ctx)
}

// Dispatch resolves, admits and executes req.
//
// Unknown routes and malformed arguments are rejected before admission and
// never consume a permit. A failure to obtain a permit is reported as
// ErrOverloaded wrapping the gate's error.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) (Response, error) {
	start := time.Now()
	resp := Response{Route: req.Route}

	err := validate(req)
	if err == nil {
		admitted := false
		err = d.gate.Do(ctx, func(ctx context.Context) error {
			admitted = true
			d.metrics.IncAdmitted()
			return d.execute(req, &resp)
		})
		if err != nil && !admitted {
			d.metrics.IncRejected()
			err = fmt.Errorf("%w: %w", ErrOverloaded, err)
		}
	}

	resp.Outcome = Classify(err)
	if err == nil {
		resp.Outcome.Status = successStatus[req.Route]
	}
	d.report(ctx, req, resp.Outcome, err, time.Since(start))
	return resp, err
}

func validate(req Request) error {
	if _, ok := successStatus[req.Route]; !ok {
		return fmt.Errorf("%w: %q", ErrRouteNotFound, req.Route)
	}
	switch req.Route {
	case RouteStream:
		if req.UserID == "" || req.VideoID == "" {
			return fmt.Errorf("%w: user_id and video_id are required", ErrInvalidRequest)
		}
	case RouteRegisterUser, RouteUpdateBitrate:
		if req.UserID == "" {
			return fmt.Errorf("%w: user_id is required", ErrInvalidRequest)
		}
		if req.Bitrate < 0 {
			return fmt.Errorf("%w: bitrate must not be negative, got %d", ErrInvalidRequest, req.Bitrate)
		}
	case RouteGetSession, RouteRemoveUser:
		if req.UserID == "" {
			return fmt.Errorf("%w: user_id is required", ErrInvalidRequest)
		}
	case RouteGetVideo, RouteMasterPlaylist:
		if req.VideoID == "" {
			return fmt.Errorf("%w: video_id is required", ErrInvalidRequest)
		}
	}
	return nil
}

// execute runs the business logic for req. Caller must hold a permit.
func (d *Dispatcher) execute(req Request, resp *Response) error {
	switch req.Route {
	case RouteStream:
		res, err := d.streamVideo(req.UserID, req.VideoID)
		if err != nil {
			return err
		}
		resp.Stream = &res

	case RouteRegisterUser:
		us, err := d.sessions.RegisterUser(req.UserID, req.Bitrate)
		if err != nil {
			return err
		}
		resp.Session = &us

	case RouteUpdateBitrate:
		us, err := d.sessions.UpdateBitrate(req.UserID, req.Bitrate)
		if err != nil {
			return err
		}
		resp.Session = &us

	case RouteGetSession:
		us, err := d.sessions.GetSession(req.UserID)
		if err != nil {
			return err
		}
		resp.Session = &us

	case RouteRemoveUser:
		return d.sessions.RemoveUser(req.UserID)

	case RouteGetVideo:
		v, err := d.catalog.FindVideo(req.VideoID)
		if err != nil {
			return err
		}
		resp.Video = &v

	case RouteMasterPlaylist:
		current := 0
		if req.UserID != "" {
			us, err := d.sessions.GetSession(req.UserID)
			if err != nil {
				return err
			}
			current = us.Bitrate
		}
		v, err := d.catalog.FindVideo(req.VideoID)
		if err != nil {
			return err
		}
		resp.Video = &v
		resp.Playlist = BuildMasterPlaylist(v, current)
	}
	return nil
}

// streamVideo decides whether userID may stream videoID and at what bitrate.
func (d *Dispatcher) streamVideo(userID UserID, videoID VideoID) (StreamResult, error) {
	us, err := d.sessions.GetSession(userID)
	if err != nil {
		return StreamResult{}, err
	}
	if _, err := d.catalog.FindVideo(videoID); err != nil {
		return StreamResult{}, err
	}
	return StreamResult{VideoID: videoID, UserID: userID, Bitrate: us.Bitrate}, nil
}

func (d *Dispatcher) report(ctx context.Context, req Request, out Outcome, err error, dur time.Duration) {
	attrs := []any{
		slog.String("route", string(req.Route)),
		slog.String("outcome", string(out.Kind)),
		slog.String("user_id", string(req.UserID)),
		slog.String("video_id", string(req.VideoID)),
		slog.String("request_id", req.RequestID),
		slog.Int64("duration_us", dur.Microseconds()),
	}
	switch out.Kind {
	case OutcomeSuccess:
		d.log.Debug("request dispatched", attrs...)
	case OutcomeLockUnavailable, OutcomeInternal:
		d.log.Error("request failed", append(attrs, slog.String("error", err.Error()))...)
	case OutcomeOverloaded:
		d.log.Warn("request not admitted", append(attrs, slog.String("error", err.Error()))...)
	default:
		d.log.Info("request rejected", append(attrs, slog.String("error", err.Error()))...)
	}

	d.metrics.IncOutcome(string(req.Route), string(out.Kind))

	if d.stats == nil {
		return
	}
	_ = d.stats.Record(ctx, stats.Event{
		Route:      string(req.Route),
		Outcome:    string(out.Kind),
		Credential: req.Credential,
		At:         time.Now(),
	})
}

// StreamVideo admits and executes a stream decision for userID and videoID.
func (d *Dispatcher) StreamVideo(ctx context.Context, userID UserID, videoID VideoID) (StreamResult, error) {
	resp, err := d.Dispatch(ctx, Request{Route: RouteStream, UserID: userID, VideoID: videoID})
	if err != nil {
		return StreamResult{}, err
	}
	return *resp.Stream, nil
}

// RegisterUser admits and executes a session registration, returning the
// stored session.
func (d *Dispatcher) RegisterUser(ctx context.Context, userID UserID, bitrate int) (UserSession, error) {
	resp, err := d.Dispatch(ctx, Request{Route: RouteRegisterUser, UserID: userID, Bitrate: bitrate})
	if err != nil {
		return UserSession{}, err
	}
	return *resp.Session, nil
}

// UpdateBitrate admits and executes a bitrate change for an existing session,
// returning the stored session.
func (d *Dispatcher) UpdateBitrate(ctx context.Context, userID UserID, bitrate int) (UserSession, error) {
	resp, err := d.Dispatch(ctx, Request{Route: RouteUpdateBitrate, UserID: userID, Bitrate: bitrate})
	if err != nil {
		return UserSession{}, err
	}
	return *resp.Session, nil
}

// GetSession admits and returns a snapshot of userID's session.
func (d *Dispatcher) GetSession(ctx context.Context, userID UserID) (UserSession, error) {
	resp, err := d.Dispatch(ctx, Request{Route: RouteGetSession, UserID: userID})
	if err != nil {
		return UserSession{}, err
	}
	return *resp.Session, nil
}

// RemoveUser admits and deletes userID's session.
func (d *Dispatcher) RemoveUser(ctx context.Context, userID UserID) error {
	_, err := d.Dispatch(ctx, Request{Route: RouteRemoveUser, UserID: userID})
	return err
}

// FindVideo admits and returns the catalog entry for videoID.
func (d *Dispatcher) FindVideo(ctx context.Context, videoID VideoID) (Video, error) {
	resp, err := d.Dispatch(ctx, Request{Route: RouteGetVideo, VideoID: videoID})
	if err != nil {
		return Video{}, err
	}
	return *resp.Video, nil
}

// Gate returns the admission gate requests are dispatched through.
func (d *Dispatcher) Gate() *admission.Gate { return d.gate }

// RouteNotFound records an unroutable request. No permit is taken.
func (d *Dispatcher) RouteNotFound(ctx context.Context, method, path, credential, requestID string) Outcome {
	err := fmt.Errorf("%w: %s %s", ErrRouteNotFound, method, path)
	out := Classify(err)
	d.report(ctx, Request{Route: routeUnrouted, Credential: credential, RequestID: requestID}, out, err, 0)
	return out
}
