package util

import (
	"context"
	"os"
	"os/signal"
)

// SignalContext returns a context which is canceled when any of the
// given signals is received.
func SignalContext(ctx context.Context, sigs ...os.Signal) context.Context {
	sch := make(chan os.Signal, 1)
	sub, cancel := context.WithCancel(ctx)
	signal.Notify(sch, sigs...)

	go func() {
		select {
		case <-sub.Done():
			signal.Stop(sch)
		case <-sch:
			cancel()
		}
	}()

	return sub
}
