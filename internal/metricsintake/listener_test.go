package metricsintake_test

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fliphashlb/internal/metricsintake"
	"fliphashlb/internal/pool"
)

func TestMetricsIntake_ValidLineUpdatesPool(t *testing.T) {
	p := pool.New()
	srv, err := metricsintake.Listen("127.0.0.1:0", p)
	require.NoError(t, err)
	defer srv.Close()
	go srv.Serve()

	conn, err := net.DialTimeout("tcp", srv.Addr().String(), time.Second)
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte(`{"backendId":"10.0.0.5:9001","cpuLoad":0.42}` + "\n"))
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		_, ok := p.GetMetrics()["10.0.0.5:9001"]
		return ok
	}, time.Second, 10*time.Millisecond)
}

func TestMetricsIntake_StreamingMultipleLinesOnOneConnection(t *testing.T) {
	p := pool.New()
	srv, err := metricsintake.Listen("127.0.0.1:0", p)
	require.NoError(t, err)
	defer srv.Close()
	go srv.Serve()

	conn, err := net.DialTimeout("tcp", srv.Addr().String(), time.Second)
	require.NoError(t, err)
	defer conn.Close()

	conn.Write([]byte(`{"backendId":"a:1","cpuLoad":0.1}` + "\n"))
	conn.Write([]byte(`{"backendId":"a:1","cpuLoad":0.9}` + "\n"))

	assert.Eventually(t, func() bool {
		blob, ok := p.GetMetrics()["a:1"]
		return ok && string(blob) == `{"backendId":"a:1","cpuLoad":0.9}`
	}, time.Second, 10*time.Millisecond)
}

func TestMetricsIntake_LineWithoutBackendIDIsDiscarded(t *testing.T) {
	p := pool.New()
	srv, err := metricsintake.Listen("127.0.0.1:0", p)
	require.NoError(t, err)
	defer srv.Close()
	go srv.Serve()

	conn, err := net.DialTimeout("tcp", srv.Addr().String(), time.Second)
	require.NoError(t, err)
	defer conn.Close()

	conn.Write([]byte(`{"cpuLoad":0.1}` + "\n"))
	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, p.GetMetrics())
}

func TestMetricsIntake_AutoRegistersUnknownBackend(t *testing.T) {
	p := pool.New()
	srv, err := metricsintake.Listen("127.0.0.1:0", p)
	require.NoError(t, err)
	defer srv.Close()
	go srv.Serve()

	conn, err := net.DialTimeout("tcp", srv.Addr().String(), time.Second)
	require.NoError(t, err)
	defer conn.Close()

	conn.Write([]byte(`{"backendId":"10.0.0.9:7777"}` + "\n"))

	assert.Eventually(t, func() bool {
		for _, b := range p.Snapshot() {
			if b.ID() == "10.0.0.9:7777" {
				return true
			}
		}
		return false
	}, time.Second, 10*time.Millisecond)
}
