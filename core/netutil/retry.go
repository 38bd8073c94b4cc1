package netutil

import (
	"context"
	"errors"
	"net"
	"syscall"
)

// ShouldRetry reports whether a transport error is transient: timeouts,
// failed dials and connections reset before a response arrived. Caller
// cancellation and anything that produced an HTTP response are final.
func ShouldRetry(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return true
	}
	// *url.Error and *net.OpError both unwrap, so this also sees timeouts
	// nested inside them.
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
