// Package dispatcher implements the core request-forwarding layer of the
// load balancer: the client accept loop, FlipHash backend selection, the
// OK handshake, and the bidirectional byte pipe with correct half-close
// semantics.
//
// The overall shape — constructor takes the shared state, one entry
// point per connection logs then forwards, errors are handled by
// reaping rather than propagating to the peer — generalizes an HTTP
// reverse-proxy director to a raw net.Conn byte pipe.
package dispatcher

import (
	"io"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"fliphashlb/internal/placement"
	"fliphashlb/internal/pool"
)

// Config holds the tunables for per-session handling.
type Config struct {
	DialTimeout time.Duration // default 2s
	PipeBuffer  int           // default 4096
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{DialTimeout: 2 * time.Second, PipeBuffer: 4096}
}

// Dispatcher picks a backend for each accepted client connection and
// proxies bytes to it. Its tunables live behind an atomic.Value so a
// config hot-reload can swap them in without disturbing sessions already
// in flight. It holds no other per-connection state; it is safe for
// concurrent use by many goroutines, one per accepted connection.
type Dispatcher struct {
	pool *pool.Pool
	cfg  atomic.Value // Config
}

// New returns a Dispatcher that selects backends from pool.
func New(p *pool.Pool, cfg Config) *Dispatcher {
	if cfg.PipeBuffer <= 0 {
		cfg.PipeBuffer = DefaultConfig().PipeBuffer
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = DefaultConfig().DialTimeout
	}
	d := &Dispatcher{pool: p}
	d.cfg.Store(cfg)
	return d
}

// SetConfig atomically replaces the dispatcher's tunables, taking effect
// for every session accepted from this point on.
func (d *Dispatcher) SetConfig(cfg Config) {
	if cfg.PipeBuffer <= 0 {
		cfg.PipeBuffer = DefaultConfig().PipeBuffer
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = DefaultConfig().DialTimeout
	}
	d.cfg.Store(cfg)
}

// HandleConn runs the full per-client session: pick, dial, acknowledge,
// pipe. It closes client unconditionally before returning.
func (d *Dispatcher) HandleConn(client net.Conn) {
	defer client.Close()
	cfg := d.cfg.Load().(Config)

	clientKey, err := clientIP(client)
	if err != nil {
		slog.Error("dispatcher: cannot resolve client key", "remote_addr", client.RemoteAddr(), "error", err)
		return
	}

	snap := d.pool.Snapshot()
	if len(snap) == 0 {
		if _, err := io.WriteString(client, "No backend server available\n"); err != nil {
			slog.Error("dispatcher: writing empty-pool notice failed", "error", err)
		}
		return
	}

	idx, err := placement.Pick(clientKey, len(snap))
	if err != nil {
		// Unreachable given the len(snap) == 0 guard above; placement misuse
		// is a programming error, not a runtime condition.
		slog.Error("dispatcher: placement.Pick failed on non-empty snapshot", "error", err)
		return
	}
	backend := snap[idx]

	backendConn, err := net.DialTimeout("tcp", backend.ID(), cfg.DialTimeout)
	if err != nil {
		slog.Warn("dispatcher: backend dial failed, reaping", "backend", backend.ID(), "error", err)
		d.pool.Remove(backend)
		return
	}
	defer backendConn.Close()

	if _, err := io.WriteString(client, "OK\n"); err != nil {
		slog.Error("dispatcher: writing OK failed", "client", client.RemoteAddr(), "error", err)
		return
	}

	slog.Debug("dispatcher: session established",
		"client", client.RemoteAddr(),
		"backend", backend.ID(),
	)

	pipeSession(client, backendConn, cfg.PipeBuffer)
}

// pipeSession runs the up-pipe and down-pipe concurrently and waits for
// both to terminate. The up-pipe half-closes backend's write side on
// client EOF so the backend observes end-of-request without losing its
// response; the down-pipe ends the session when the backend closes.
func pipeSession(client, backend net.Conn, bufSize int) {
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		buf := make([]byte, bufSize)
		if _, err := io.CopyBuffer(backend, client, buf); err != nil {
			slog.Debug("dispatcher: up-pipe ended", "error", err)
		}
		if cw, ok := backend.(interface{ CloseWrite() error }); ok {
			_ = cw.CloseWrite()
		}
	}()

	go func() {
		defer wg.Done()
		buf := make([]byte, bufSize)
		if _, err := io.CopyBuffer(client, backend, buf); err != nil {
			slog.Debug("dispatcher: down-pipe ended", "error", err)
		}
	}()

	wg.Wait()
}

// clientIP extracts the peer's bare IP address. The key is IP only, not
// port — an accepted limitation under NAT, where many clients share one
// address and therefore one backend.
func clientIP(conn net.Conn) (string, error) {
	host, _, err := net.SplitHostPort(conn.RemoteAddr().String())
	if err != nil {
		return "", err
	}
	return host, nil
}
