// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package ratelimit paces outbound requests per upstream host.
package ratelimit

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// Config holds outbound rate limiting configuration.
type Config struct {
	// PerHostRate is the sustained request rate per host. Zero or less disables limiting.
	PerHostRate  rate.Limit
	PerHostBurst int
}

// FromRPS returns a per-host config for a requests-per-second setting.
func FromRPS(rps float64) Config {
	if rps <= 0 {
		return Config{PerHostRate: rate.Inf}
	}
	burst := int(rps)
	if burst < 1 {
		burst = 1
	}
	return Config{PerHostRate: rate.Limit(rps), PerHostBurst: burst}
}

// Limiter hands out one token bucket per host. The portal and the
// lecture-capture origins are paced independently.
type Limiter struct {
	config  Config
	mu      sync.Mutex
	perHost map[string]*rate.Limiter
}

// New creates a limiter. A nil *Limiter never blocks.
func New(config Config) *Limiter {
	return &Limiter{
		config:  config,
		perHost: make(map[string]*rate.Limiter),
	}
}

// Enabled reports whether requests are actually paced.
func (l *Limiter) Enabled() bool {
	return l != nil && l.config.PerHostRate != rate.Inf && l.config.PerHostRate > 0
}

// Wait blocks until a request to host may proceed or ctx is done.
func (l *Limiter) Wait(ctx context.Context, host string) error {
	if !l.Enabled() {
		return nil
	}
	return l.hostLimiter(host).Wait(ctx)
}

func (l *Limiter) hostLimiter(host string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	limiter, exists := l.perHost[host]
	if !exists {
		limiter = rate.NewLimiter(l.config.PerHostRate, l.config.PerHostBurst)
		l.perHost[host] = limiter
	}
	return limiter
}
