package stats

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisRecorder increments outcome counters in Redis hashes:
//
//	<prefix>:total                    outcome -> count
//	<prefix>:route                    route:outcome -> count
//	<prefix>:minute:<YYYYMMDDhhmm>    outcome -> count (expires after ttl)
//	<prefix>:credential:<credential>  outcome -> count (only with WithTrackCredentials)
type RedisRecorder struct {
	rdb    redis.Cmdable
	prefix string
	ttl    time.Duration

	trackCredentials bool
}

// RedisOption configures a RedisRecorder.
type RedisOption func(*RedisRecorder)

// WithPrefix sets the key prefix. Surrounding colons are trimmed.
func WithPrefix(prefix string) RedisOption {
	return func(r *RedisRecorder) { r.prefix = strings.Trim(prefix, ":") }
}

// WithTTL sets the expiry of per-minute and per-credential keys.
func WithTTL(d time.Duration) RedisOption {
	return func(r *RedisRecorder) { r.ttl = d }
}

// WithTrackCredentials enables per-credential counters.
func WithTrackCredentials(track bool) RedisOption {
	return func(r *RedisRecorder) { r.trackCredentials = track }
}

// NewRedisRecorder returns a recorder writing through rdb.
func NewRedisRecorder(rdb redis.Cmdable, opts ...RedisOption) *RedisRecorder {
	r := &RedisRecorder{
		rdb:    rdb,
		prefix: "gateway:stats",
		ttl:    24 * time.Hour,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Record implements Recorder with a single pipelined round trip.
func (r *RedisRecorder) Record(ctx context.Context, ev Event) error {
	if r == nil || r.rdb == nil {
		return nil
	}

	pipe := r.rdb.Pipeline()
	for _, k := range r.keys(ev) {
		pipe.HIncrBy(ctx, k.key, k.field, 1)
		if k.expires && r.ttl > 0 {
			pipe.Expire(ctx, k.key, r.ttl)
		}
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("record outcome stats: %w", err)
	}
	return nil
}

type hashKey struct {
	key     string
	field   string
	expires bool
}

func (r *RedisRecorder) keys(ev Event) []hashKey {
	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}

	keys := []hashKey{
		{key: r.prefix + ":total", field: ev.Outcome},
		{key: fmt.Sprintf("%s:minute:%s", r.prefix, at.UTC().Format("200601021504")), field: ev.Outcome, expires: true},
	}
	if route := strings.TrimSpace(ev.Route); route != "" {
		keys = append(keys, hashKey{key: r.prefix + ":route", field: route + ":" + ev.Outcome})
	}
	if r.trackCredentials {
		if c := strings.TrimSpace(ev.Credential); c != "" {
			keys = append(keys, hashKey{key: r.prefix + ":credential:" + c, field: ev.Outcome, expires: true})
		}
	}
	return keys
}
