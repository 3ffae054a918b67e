package main

import (
	"context"
	"log/slog"
	"os/signal"
)

// withSignals returns a context cancelled by the first interrupt. In-flight
// rows finish; rows not yet dispatched are reported as cancelled. stop
// unregisters the handler so a second interrupt kills the process.
func withSignals(parent context.Context) (ctx context.Context, stop func()) {
	ctx, cancel := context.WithCancel(parent)
	ch := signalChannel()
	go func() {
		select {
		case sig := <-ch:
			slog.Warn("received shutdown signal, finishing in-flight rows", "signal", sig.String())
			signal.Stop(ch)
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, func() {
		signal.Stop(ch)
		cancel()
	}
}
