// internal/throttle/throttler.go
package throttle

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// SuggestedProviderLimits maps common email providers to their advertised
// hourly sending limits, surfaced to operators when they configure an SMTP
// profile.
var SuggestedProviderLimits = map[string]string{
	"Gmail / Google Workspace": "500/day (free), 2000/day (Workspace)",
	"Outlook / Office 365":     "10000/day, 30/minute",
	"Yahoo Mail":               "500/day",
	"Amazon SES":               "14/second (default quota)",
	"SendGrid":                 "100/day (free tier)",
	"Mailgun":                  "300/day (free tier)",
}

// SuggestedLimitFor returns the advertised limit for a provider name, or ""
// when unknown.
func SuggestedLimitFor(provider string) string {
	return SuggestedProviderLimits[provider]
}

// Throttler bounds the per-minute send rate for each SMTP host with a redis
// counter. A nil Throttler (redis not configured) never throttles.
type Throttler struct {
	rdb       *redis.Client
	perMinute int
}

func NewThrottler(rdb *redis.Client, perMinute int) *Throttler {
	if perMinute <= 0 {
		perMinute = 60
	}
	return &Throttler{rdb: rdb, perMinute: perMinute}
}

func (t *Throttler) key(host string, now time.Time) string {
	return fmt.Sprintf("throttle:%s:%d", strings.ToLower(host), now.Unix()/60)
}

// CanSend reports whether another send to host fits into the current minute
// window, consuming a slot when it does.
func (t *Throttler) CanSend(ctx context.Context, host string) (bool, error) {
	if t == nil || t.rdb == nil {
		return true, nil
	}

	key := t.key(host, time.Now())
	count, err := t.rdb.Incr(ctx, key).Result()
	if err != nil {
		return true, fmt.Errorf("throttle incr: %w", err)
	}
	if count == 1 {
		t.rdb.Expire(ctx, key, 2*time.Minute)
	}
	if count > int64(t.perMinute) {
		// Over budget: hand the slot back.
		t.rdb.Decr(ctx, key)
		return false, nil
	}
	return true, nil
}

// Wait blocks until a send slot for host is available or ctx is done.
// Throttled sends wait, they do not fail.
func (t *Throttler) Wait(ctx context.Context, host string) error {
	for {
		ok, err := t.CanSend(ctx, host)
		if err != nil {
			// Redis trouble must not take sending down with it.
			return nil
		}
		if ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Second):
		}
	}
}
