package fetcher

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter throttles requests per host: a token bucket refilled at rpm
// per minute and a cap on requests in flight.
type RateLimiter struct {
	maxConcurrent int
	rpm           int
	hosts         map[string]*hostLimiter
	mu            sync.Mutex
}

type hostLimiter struct {
	sem     chan struct{}
	limiter *rate.Limiter
}

func NewRateLimiter(maxConcurrent, rpm int) *RateLimiter {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &RateLimiter{
		maxConcurrent: maxConcurrent,
		rpm:           rpm,
		hosts:         make(map[string]*hostLimiter),
	}
}

func (rl *RateLimiter) host(host string) *hostLimiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	h, ok := rl.hosts[host]
	if !ok {
		limit := rate.Inf
		if rl.rpm > 0 {
			limit = rate.Every(time.Minute / time.Duration(rl.rpm))
		}
		h = &hostLimiter{
			sem:     make(chan struct{}, rl.maxConcurrent),
			limiter: rate.NewLimiter(limit, rl.maxConcurrent),
		}
		rl.hosts[host] = h
	}
	return h
}

// Acquire blocks until a request to host may start or ctx is done. The
// caller holds an in-flight slot until it calls release.
func (rl *RateLimiter) Acquire(ctx context.Context, host string) (release func(), err error) {
	h := rl.host(host)

	select {
	case h.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if err := h.limiter.Wait(ctx); err != nil {
		<-h.sem
		return nil, err
	}

	var once sync.Once
	return func() { once.Do(func() { <-h.sem }) }, nil
}
