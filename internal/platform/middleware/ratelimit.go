// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package middleware

import (
	"context"
	"math"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/taibuivan/inkshelf/internal/platform/apperr"
	"github.com/taibuivan/inkshelf/internal/platform/constants"
	"github.com/taibuivan/inkshelf/internal/platform/respond"
)

// RateBudget is a token bucket size for one class of requests.
type RateBudget struct {
	RPS   float64
	Burst int
}

// RateLimitPolicy separates uploads from everything else. A multipart
// write carries page images, so uploads draw from their own smaller budget.
type RateLimitPolicy struct {
	Default RateBudget
	Upload  RateBudget
}

type clientBuckets struct {
	general  *rate.Limiter
	upload   *rate.Limiter
	lastSeen time.Time
}

// RateLimiter holds per-IP token buckets.
type RateLimiter struct {
	policy RateLimitPolicy
	now    func() time.Time

	mu      sync.Mutex
	clients map[string]*clientBuckets
}

// NewRateLimiter constructs a [RateLimiter]. Call [RateLimiter.Janitor] to
// evict idle clients.
func NewRateLimiter(policy RateLimitPolicy) *RateLimiter {
	return &RateLimiter{
		policy:  policy,
		now:     time.Now,
		clients: make(map[string]*clientBuckets),
	}
}

// WithClock replaces the time source used for token refill and eviction.
func (limiter *RateLimiter) WithClock(now func() time.Time) *RateLimiter {
	limiter.now = now
	return limiter
}

// Clients reports how many IPs currently hold buckets.
func (limiter *RateLimiter) Clients() int {
	limiter.mu.Lock()
	defer limiter.mu.Unlock()
	return len(limiter.clients)
}

// EvictIdle drops clients idle longer than [constants.RateLimitClientTTL].
func (limiter *RateLimiter) EvictIdle() {
	cutoff := limiter.now().Add(-constants.RateLimitClientTTL)

	limiter.mu.Lock()
	defer limiter.mu.Unlock()
	for ip, buckets := range limiter.clients {
		if buckets.lastSeen.Before(cutoff) {
			delete(limiter.clients, ip)
		}
	}
}

// Janitor runs [RateLimiter.EvictIdle] periodically until ctx is cancelled.
func (limiter *RateLimiter) Janitor(ctx context.Context) {
	ticker := time.NewTicker(constants.RateLimitCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			limiter.EvictIdle()
		case <-ctx.Done():
			return
		}
	}
}

// reserve takes one token from the bucket matching the request class. It
// returns zero when the request may proceed, or the wait until it could.
func (limiter *RateLimiter) reserve(ip string, upload bool) time.Duration {
	now := limiter.now()

	limiter.mu.Lock()
	defer limiter.mu.Unlock()

	buckets, found := limiter.clients[ip]
	if !found {
		buckets = &clientBuckets{
			general: rate.NewLimiter(rate.Limit(limiter.policy.Default.RPS), limiter.policy.Default.Burst),
			upload:  rate.NewLimiter(rate.Limit(limiter.policy.Upload.RPS), limiter.policy.Upload.Burst),
		}
		limiter.clients[ip] = buckets
	}
	buckets.lastSeen = now

	bucket := buckets.general
	if upload {
		bucket = buckets.upload
	}

	reservation := bucket.ReserveN(now, 1)
	if !reservation.OK() {
		return time.Second
	}
	delay := reservation.DelayFrom(now)
	if delay > 0 {
		reservation.CancelAt(now)
	}
	return delay
}

// Middleware rejects over-budget requests with 429 and a Retry-After header.
func (limiter *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		wait := limiter.reserve(RealIP(request), isUpload(request))
		if wait > 0 {
			seconds := int(math.Ceil(wait.Seconds()))
			writer.Header().Set(constants.HeaderRetryAfter, strconv.Itoa(max(seconds, 1)))
			respond.Error(writer, request, apperr.RateLimited())
			return
		}

		next.ServeHTTP(writer, request)
	})
}

func isUpload(request *http.Request) bool {
	switch request.Method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
	default:
		return false
	}
	mediaType, _, err := mime.ParseMediaType(request.Header.Get("Content-Type"))
	return err == nil && strings.HasPrefix(mediaType, "multipart/")
}
