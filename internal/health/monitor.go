// Package health implements active health checking for registered
// backends. A Monitor runs in the background and periodically probes
// each backend in the pool by dialing it and writing the configured
// probe message; a backend that fails to dial is reaped from the pool.
//
// The probe is a raw TCP dial-and-write rather than an HTTP GET, and
// failure means removal from the pool rather than a flipped health flag,
// since placement.General works directly off the pool's live sequence
// with no separate health flag to consult.
package health

import (
	"context"
	"log/slog"
	"net"
	"sync"
	"time"

	"fliphashlb/internal/pool"
	"fliphashlb/internal/wire"
)

// Config holds the parameters for the health monitor.
type Config struct {
	Interval     time.Duration
	Timeout      time.Duration
	ProbeMessage string // e.g. "health check"
}

// Monitor periodically probes every backend currently in the pool and
// reaps the ones that fail to dial.
type Monitor struct {
	pool *pool.Pool
	cfg  Config

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a Monitor but does not start it; call Start to begin probing.
func New(p *pool.Pool, cfg Config) *Monitor {
	return &Monitor{pool: p, cfg: cfg}
}

// Start begins the background health-check loop. It runs an immediate
// check before the first ticker tick so dead backends are reaped quickly
// at startup.
func (m *Monitor) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()

		ticker := time.NewTicker(m.cfg.Interval)
		defer ticker.Stop()

		m.probeAll()

		for {
			select {
			case <-ticker.C:
				m.probeAll()
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop shuts down the background goroutine and waits for it to exit.
func (m *Monitor) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()
}

// probeAll checks every backend in the pool one at a time. Sequential
// probing is acceptable at the pool sizes this system targets and keeps a
// single tick's worth of dials from hammering every backend at once.
func (m *Monitor) probeAll() {
	for _, b := range m.pool.Snapshot() {
		m.probe(b)
	}
}

// probe dials b and writes the probe message. A dial failure reaps the
// backend from the pool; a successful dial counts as alive even if the
// write that follows fails — connection reachability, not protocol
// cooperation, is the health signal.
func (m *Monitor) probe(b pool.Backend) {
	conn, err := net.DialTimeout("tcp", b.ID(), m.cfg.Timeout)
	if err != nil {
		slog.Warn("health: backend failed to dial, reaping", "backend", b.ID(), "error", err)
		m.pool.Remove(b)
		return
	}
	defer conn.Close()

	conn.SetWriteDeadline(time.Now().Add(m.cfg.Timeout))
	if err := wire.WriteUTF(conn, m.cfg.ProbeMessage); err != nil {
		slog.Debug("health: probe write failed on an otherwise reachable backend", "backend", b.ID(), "error", err)
	}
}
