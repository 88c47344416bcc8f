package main

import (
	"net"
	"sync"

	"golang.org/x/time/rate"
)

// Per-client token buckets, keyed by remote host. The map is capped:
// a scan from many addresses resets it rather than growing without
// bound.
const maxTrackedClients = 10000

var (
	limiterMu sync.Mutex
	limiters  = map[string]*rate.Limiter{}
)

// rateLimitAllow reports whether another request from remoteAddr may
// proceed under the configured per-client rate.
func rateLimitAllow(remoteAddr string) bool {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		host = remoteAddr
	}

	rps, burst := 2.0, 10
	if settings != nil {
		if settings.RateLimit.RPS > 0 {
			rps = settings.RateLimit.RPS
		}
		if settings.RateLimit.Burst > 0 {
			burst = settings.RateLimit.Burst
		}
	}

	limiterMu.Lock()
	if len(limiters) >= maxTrackedClients {
		limiters = map[string]*rate.Limiter{}
	}
	lim, ok := limiters[host]
	if !ok {
		lim = rate.NewLimiter(rate.Limit(rps), burst)
		limiters[host] = lim
	}
	limiterMu.Unlock()

	return lim.Allow()
}
