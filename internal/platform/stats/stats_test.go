package stats

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func TestMemoryRecorder_Record(t *testing.T) {
	r := NewMemoryRecorder()
	ctx := context.Background()

	_ = r.Record(ctx, Event{Route: "stream", Outcome: "success"})
	_ = r.Record(ctx, Event{Route: "stream", Outcome: "success"})
	_ = r.Record(ctx, Event{Route: "get_session", Outcome: "user_not_found"})

	if got := r.Outcome("success"); got != 2 {
		t.Errorf("expected 2 successes, got %d", got)
	}
	if got := r.Route("get_session", "user_not_found"); got != 1 {
		t.Errorf("expected 1 get_session miss, got %d", got)
	}
}

func TestRedisRecorder_nil_is_noop(t *testing.T) {
	var r *RedisRecorder
	if err := r.Record(context.Background(), Event{Outcome: "success"}); err != nil {
		t.Errorf("nil recorder should be a no-op, got %v", err)
	}
}

func TestRedisRecorder_keys(t *testing.T) {
	r := NewRedisRecorder(nil, WithPrefix(":gw:stats:"), WithTrackCredentials(true))
	at := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)

	keys := r.keys(Event{Route: "stream", Outcome: "overloaded", Credential: "key-1", At: at})

	want := map[string]hashKey{
		"gw:stats:total":               {key: "gw:stats:total", field: "overloaded"},
		"gw:stats:minute:202603040506": {key: "gw:stats:minute:202603040506", field: "overloaded", expires: true},
		"gw:stats:route":               {key: "gw:stats:route", field: "stream:overloaded"},
		"gw:stats:credential:key-1":    {key: "gw:stats:credential:key-1", field: "overloaded", expires: true},
	}
	if len(keys) != len(want) {
		t.Fatalf("expected %d keys, got %d: %v", len(want), len(keys), keys)
	}
	for _, k := range keys {
		if w, ok := want[k.key]; !ok || w != k {
			t.Errorf("unexpected key %+v", k)
		}
	}
}

func TestRedisRecorder_keys_without_credentials(t *testing.T) {
	r := NewRedisRecorder(nil)
	for _, k := range r.keys(Event{Route: "stream", Outcome: "success", Credential: "secret"}) {
		if k.key == "gateway:stats:credential:secret" {
			t.Error("credentials must not be tracked unless enabled")
		}
	}
}

func TestRedisRecorder_Record_unreachable(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer func() { _ = rdb.Close() }()

	r := NewRedisRecorder(rdb)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := r.Record(ctx, Event{Route: "stream", Outcome: "success"}); err == nil {
		t.Error("expected error recording against an unreachable server")
	}
}
