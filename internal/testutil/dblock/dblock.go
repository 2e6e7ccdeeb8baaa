// Package dblock serialises tests that share one Postgres database across
// packages. go test runs packages in parallel processes, so the lock is a
// loopback TCP listener rather than an in-process mutex.
package dblock

import (
	"net"
	"os"
	"time"
)

const defaultAddr = "127.0.0.1:45432"

// Acquire blocks until the lock is held and returns its release func.
// LEDGER_TEST_LOCK_ADDR overrides the listener address.
func Acquire() func() {
	addr := os.Getenv("LEDGER_TEST_LOCK_ADDR")
	if addr == "" {
		addr = defaultAddr
	}
	for {
		ln, err := net.Listen("tcp", addr)
		if err == nil {
			return func() { _ = ln.Close() }
		}
		time.Sleep(50 * time.Millisecond)
	}
}
