// Command healthprobe is a minimal TCP probe used as Docker's HEALTHCHECK
// CMD for the load balancer's client listener. It exits 0 when it can
// open and write to the target address, and 1 otherwise.
//
// Usage:
//
//	healthprobe <host:port>
//
// Example (in Dockerfile):
//
//	HEALTHCHECK CMD ["/bin/healthprobe", "localhost:5000"]
package main

import (
	"fmt"
	"net"
	"os"
	"time"

	"fliphashlb/internal/wire"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: healthprobe <host:port>")
		os.Exit(1)
	}

	addr := os.Args[1]
	conn, err := net.DialTimeout("tcp", addr, 3*time.Second)
	if err != nil {
		fmt.Fprintf(os.Stderr, "healthprobe: %v\n", err)
		os.Exit(1)
	}
	defer conn.Close()

	conn.SetWriteDeadline(time.Now().Add(3 * time.Second))
	if err := wire.WriteUTF(conn, "health check"); err != nil {
		fmt.Fprintf(os.Stderr, "healthprobe: %v\n", err)
		os.Exit(1)
	}

	os.Exit(0)
}
