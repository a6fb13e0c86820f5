package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"stream-gateway/internal/admission"
	"stream-gateway/internal/gateway"
	"stream-gateway/internal/platform/logger"
	"stream-gateway/internal/platform/ratelimit"

	"github.com/go-chi/chi/v5"
)

func newTestGateway(t *testing.T) (*httptest.Server, *admission.Gate) {
	t.Helper()
	gate, err := admission.New(4)
	if err != nil {
		t.Fatal(err)
	}
	catalog := gateway.NewCatalog()
	catalog.AddVideo("v1", []int{360, 720, 1080})
	d := gateway.NewDispatcher(gate, gateway.NewSessionStore(), catalog, logger.Discard())

	r := chi.NewRouter()
	gateway.NewHandler(d, logger.Discard()).Register(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, gate
}

func TestNew_rejects_bad_url(t *testing.T) {
	for _, u := range []string{"", "127.0.0.1:3000", "ftp://host", "http://"} {
		if _, err := New(u); err == nil {
			t.Errorf("New(%q): expected error", u)
		}
	}
}

func TestClient_round_trip(t *testing.T) {
	srv, _ := newTestGateway(t)
	c, err := New(srv.URL+"/", WithTimeout(2*time.Second))
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	us, err := c.RegisterUser(ctx, "u1", 720)
	if err != nil {
		t.Fatalf("RegisterUser: %v", err)
	}
	if us.UserID != "u1" || us.Bitrate != 720 {
		t.Errorf("unexpected session: %+v", us)
	}

	if _, err := c.UpdateBitrate(ctx, "u1", 1080); err != nil {
		t.Fatalf("UpdateBitrate: %v", err)
	}
	got, err := c.GetSession(ctx, "u1")
	if err != nil || got.Bitrate != 1080 {
		t.Fatalf("GetSession: %+v err=%v", got, err)
	}

	res, err := c.Stream(ctx, "u1", "v1")
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	if res != (gateway.StreamResult{VideoID: "v1", UserID: "u1", Bitrate: 1080}) {
		t.Errorf("unexpected stream result: %+v", res)
	}

	v, err := c.GetVideo(ctx, "v1")
	if err != nil || len(v.Bitrates) != 3 {
		t.Fatalf("GetVideo: %+v err=%v", v, err)
	}

	pl, err := c.MasterPlaylist(ctx, "v1", "u1")
	if err != nil {
		t.Fatalf("MasterPlaylist: %v", err)
	}
	if !strings.HasPrefix(pl, "#EXTM3U") || !strings.Contains(pl, "1080/playlist.m3u8") {
		t.Errorf("unexpected playlist: %s", pl)
	}

	if err := c.RemoveUser(ctx, "u1"); err != nil {
		t.Fatalf("RemoveUser: %v", err)
	}
}

func TestClient_errors_map_to_sentinels(t *testing.T) {
	srv, gate := newTestGateway(t)
	c, _ := New(srv.URL)
	ctx := context.Background()

	t.Run("user_not_found", func(t *testing.T) {
		_, err := c.UpdateBitrate(ctx, "ghost", 1080)
		if !errors.Is(err, gateway.ErrUserNotFound) {
			t.Errorf("expected ErrUserNotFound, got %v", err)
		}
		var apiErr *APIError
		if !errors.As(err, &apiErr) || apiErr.Status != http.StatusNotFound {
			t.Errorf("expected 404 APIError, got %v", err)
		}
	})

	t.Run("video_not_found", func(t *testing.T) {
		_, err := c.GetVideo(ctx, "missing")
		if !errors.Is(err, gateway.ErrVideoNotFound) {
			t.Errorf("expected ErrVideoNotFound, got %v", err)
		}
	})

	t.Run("escaped_ids", func(t *testing.T) {
		_, err := c.GetSession(ctx, "a/b c")
		if !errors.Is(err, gateway.ErrUserNotFound) {
			t.Errorf("expected ErrUserNotFound for escaped id, got %v", err)
		}
	})

	t.Run("overloaded", func(t *testing.T) {
		gate.Close()
		_, err := c.Stream(ctx, "u1", "v1")
		if !errors.Is(err, gateway.ErrOverloaded) {
			t.Errorf("expected ErrOverloaded, got %v", err)
		}
	})
}

func TestClient_sends_api_key(t *testing.T) {
	var seen string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r.Header.Get(ratelimit.CredentialHeader)
		w.Header().Set("Retry-After", "1")
		http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c, _ := New(srv.URL, WithAPIKey("key-1"))
	_, err := c.GetVideo(context.Background(), "v1")
	if seen != "key-1" {
		t.Errorf("expected api key header, got %q", seen)
	}
	if !errors.Is(err, ErrRateLimited) {
		t.Errorf("expected ErrRateLimited, got %v", err)
	}
}

func TestNew_http_client_options(t *testing.T) {
	t.Run("timeout_does_not_modify_caller_client", func(t *testing.T) {
		own := &http.Client{Timeout: time.Minute}
		c, err := New("http://127.0.0.1:3000", WithHTTPClient(own), WithTimeout(time.Second))
		if err != nil {
			t.Fatal(err)
		}
		if own.Timeout != time.Minute {
			t.Errorf("caller client modified: timeout %s", own.Timeout)
		}
		if c.http == own || c.http.Timeout != time.Second {
			t.Errorf("expected a copy with timeout 1s, got %s", c.http.Timeout)
		}
	})

	t.Run("option_order_does_not_matter", func(t *testing.T) {
		own := &http.Client{}
		c, _ := New("http://127.0.0.1:3000", WithTimeout(time.Second), WithHTTPClient(own))
		if c.http.Timeout != time.Second || own.Timeout != 0 {
			t.Errorf("timeout not applied to a copy: client %s, caller %s", c.http.Timeout, own.Timeout)
		}
	})

	t.Run("nil_http_client", func(t *testing.T) {
		c, err := New("http://127.0.0.1:3000", WithHTTPClient(nil), WithTimeout(time.Second))
		if err != nil {
			t.Fatal(err)
		}
		if c.http == nil || c.http.Timeout != time.Second {
			t.Errorf("expected default client with timeout, got %+v", c.http)
		}
	})
}
