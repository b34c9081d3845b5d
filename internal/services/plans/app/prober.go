package app

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Prober restores connectivity after a transient store failure. While the
// service is offline it pings the store with doubling backoff and flips
// connectivity back online on the first success, which in turn triggers the
// queue's replay and the broker's re-arm.
type Prober struct {
	ping         func(ctx context.Context) error
	connectivity *Connectivity
	logger       *slog.Logger
	backoffBase  time.Duration
	sleep        func(ctx context.Context, d time.Duration) error

	mu      sync.Mutex
	probing bool
}

// NewProber constructs the prober around a store ping.
func NewProber(ping func(ctx context.Context) error, connectivity *Connectivity, logger *slog.Logger) *Prober {
	if logger == nil {
		logger = slog.Default()
	}
	return &Prober{
		ping:         ping,
		connectivity: connectivity,
		logger:       logger,
		backoffBase:  defaultBackoffBase,
		sleep:        sleepContext,
	}
}

// Start subscribes the prober to connectivity transitions, probing whenever
// the service goes offline. The returned cancel stops reacting to
// transitions; a probe loop already in flight stops with ctx.
func (p *Prober) Start(ctx context.Context) (cancel func()) {
	if p == nil || p.ping == nil || p.connectivity == nil {
		return func() {}
	}
	unsubscribe := p.connectivity.Subscribe(func(online bool) {
		if !online {
			p.probe(ctx)
		}
	})
	if !p.connectivity.Online() {
		p.probe(ctx)
	}
	return unsubscribe
}

// probe starts the background ping loop unless one is already running.
func (p *Prober) probe(ctx context.Context) {
	p.mu.Lock()
	if p.probing {
		p.mu.Unlock()
		return
	}
	p.probing = true
	p.mu.Unlock()

	go func() {
		defer func() {
			p.mu.Lock()
			p.probing = false
			p.mu.Unlock()
		}()

		delay := p.backoffBase
		for {
			if err := p.sleep(ctx, delay); err != nil {
				return
			}
			if p.connectivity.Online() {
				return
			}
			if err := p.ping(ctx); err != nil {
				p.logger.Debug("store still unreachable", "error", err)
			} else {
				p.logger.Info("store reachable again")
				p.connectivity.SetOnline(true)
				return
			}
			if delay *= 2; delay > maxBackoff {
				delay = maxBackoff
			}
		}
	}()
}
