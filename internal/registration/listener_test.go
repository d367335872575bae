package registration_test

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fliphashlb/internal/pool"
	"fliphashlb/internal/registration"
)

func startServer(t *testing.T) (*registration.Server, *pool.Pool) {
	t.Helper()
	p := pool.New()
	srv, err := registration.Listen("127.0.0.1:0", p)
	require.NoError(t, err)
	t.Cleanup(func() { srv.Close() })
	go srv.Serve()
	return srv, p
}

func send(t *testing.T, addr net.Addr, line string) {
	t.Helper()
	conn, err := net.DialTimeout("tcp", addr.String(), time.Second)
	require.NoError(t, err)
	defer conn.Close()
	_, err = conn.Write([]byte(line))
	require.NoError(t, err)
}

func TestRegistration_WellFormedLineAddsBackend(t *testing.T) {
	srv, p := startServer(t)
	send(t, srv.Addr(), "10.0.0.5:9001\n")

	assert.Eventually(t, func() bool {
		return len(p.Snapshot()) == 1
	}, time.Second, 10*time.Millisecond)

	assert.Equal(t, pool.Backend{Host: "10.0.0.5", Port: 9001}, p.Snapshot()[0])
}

func TestRegistration_MalformedLineIsDiscarded(t *testing.T) {
	srv, p := startServer(t)
	send(t, srv.Addr(), "not-a-backend\n")

	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, p.Snapshot())
}

func TestRegistration_DuplicateRegistrationIsNoop(t *testing.T) {
	srv, p := startServer(t)
	send(t, srv.Addr(), "10.0.0.5:9001\n")
	assert.Eventually(t, func() bool { return len(p.Snapshot()) == 1 }, time.Second, 10*time.Millisecond)

	send(t, srv.Addr(), "10.0.0.5:9001\n")
	time.Sleep(50 * time.Millisecond)
	assert.Len(t, p.Snapshot(), 1)
}

func TestRegistration_ConnectionWithNoDataIsIgnored(t *testing.T) {
	srv, p := startServer(t)
	conn, err := net.DialTimeout("tcp", srv.Addr().String(), time.Second)
	require.NoError(t, err)
	conn.Close()

	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, p.Snapshot())
}
