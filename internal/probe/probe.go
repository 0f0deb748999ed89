// Package probe answers "is something already listening here?" for the
// sidecar endpoints and polls an endpoint until it starts accepting
// connections.
package probe

import (
	"context"
	"net"
	"time"
)

// DefaultTimeout bounds a single liveness dial. It is kept short so a dead
// endpoint never stalls application startup.
const DefaultTimeout = 200 * time.Millisecond

// IsOpen reports whether a TCP connection to address succeeds within timeout.
// Any dial error, including a refused connection, means "not live".
func IsOpen(ctx context.Context, address string, timeout time.Duration) bool {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

// WaitOptions bounds a readiness poll.
type WaitOptions struct {
	Attempts int
	Interval time.Duration
	Timeout  time.Duration
}

// WaitForOpen probes address up to opts.Attempts times, sleeping
// opts.Interval between failed probes. It returns true as soon as the port is
// live and false when the attempts run out or ctx is done. Running out is
// not an error: callers decide what a slow endpoint means.
func WaitForOpen(ctx context.Context, address string, opts WaitOptions) bool {
	for attempt := 0; attempt < opts.Attempts; attempt++ {
		if IsOpen(ctx, address, opts.Timeout) {
			return true
		}
		if attempt == opts.Attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(opts.Interval):
		}
	}
	return false
}
