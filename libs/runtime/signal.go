package runtime

import (
	"context"
	"os/signal"
	"syscall"
	"time"
)

// SignalContext is cancelled on SIGINT or SIGTERM.
func SignalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// ShutdownContext gives cleanup work a fresh deadline once the signal context is done.
func ShutdownContext(grace time.Duration) (context.Context, context.CancelFunc) {
	if grace <= 0 {
		grace = 10 * time.Second
	}
	return context.WithTimeout(context.Background(), grace)
}
