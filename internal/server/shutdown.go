// Package server exposes the metrics and health endpoints of a running
// benchmark and shuts them down gracefully.
package server

import (
	"net/http"
	"sync"
	"time"
)

// ShutdownConfig bounds a graceful shutdown.
type ShutdownConfig struct {
	// Timeout bounds the whole shutdown (default 10s)
	Timeout time.Duration

	// Drain bounds the wait for in-flight scrapes (default 5s)
	Drain time.Duration
}

func (c ShutdownConfig) withDefaults() ShutdownConfig {
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
	if c.Drain <= 0 {
		c.Drain = 5 * time.Second
	}
	return c
}

// gate admits requests until it is closed and counts the ones in flight.
type gate struct {
	mu     sync.Mutex
	closed bool
	active int
	idle   chan struct{}
}

func (g *gate) enter() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return false
	}
	g.active++
	return true
}

func (g *gate) leave() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.active--
	if g.active == 0 && g.idle != nil {
		close(g.idle)
		g.idle = nil
	}
}

// close stops admitting requests. The returned channel is closed once no
// admitted request remains.
func (g *gate) close() <-chan struct{} {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.closed = true
	done := make(chan struct{})
	if g.active == 0 {
		close(done)
	} else {
		g.idle = done
	}
	return done
}

func (g *gate) inFlight() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.active
}

// wrap rejects requests with 503 once the gate is closed.
func (g *gate) wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !g.enter() {
			w.Header().Set("Connection", "close")
			http.Error(w, "shutting down", http.StatusServiceUnavailable)
			return
		}
		defer g.leave()
		next.ServeHTTP(w, r)
	})
}
