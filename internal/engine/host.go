package engine

import "context"

// Host owns the engine's single dedicated worker goroutine. It
// is an opaque handle whose only job is to keep that goroutine alive for as
// long as callers hold an AsyncLog; closing it joins the worker and closes
// both ingress channels, so producers observe EngineGone on any send that
// races past shutdown.
type Host struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Start constructs the engine (pool, both ingress channels, the sink) and
// launches its worker goroutine, returning the Host and a cloneable
// AsyncLog handle. Callers must keep both alive for the engine to remain
// reachable.
func Start(cfg Config, log CommitLog, metrics *Metrics) (*Host, AsyncLog) {
	ctx, cancel := context.WithCancel(context.Background())

	appendQ := newAppendIngress()
	metaQ := newMetaIngress()
	s := newSink(log, cfg, appendQ, metaQ, metrics)

	h := &Host{cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(h.done)
		s.run(ctx)
		appendQ.close()
		metaQ.close()
		// Requests that reached the ingress but were never handled are
		// failed with ErrCancelled rather than left waiting.
		if items, ok := appendQ.tryDrain(); ok {
			for _, item := range items {
				item.done <- appendResult{err: ErrCancelled}
			}
		}
		for item, ok := metaQ.tryDrain(); ok; item, ok = metaQ.tryDrain() {
			item.done <- metaResult{err: ErrCancelled}
		}
		_ = log.Close()
	}()

	return h, AsyncLog{appendQ: appendQ, metaQ: metaQ}
}

// Close stops the worker goroutine and blocks until it has exited,
// including the commit log's Close call.
func (h *Host) Close() {
	h.cancel()
	<-h.done
}

// Alive reports whether the worker goroutine is still running. Used by
// internal/admin's /healthz — liveness only, never the append/read path.
func (h *Host) Alive() bool {
	select {
	case <-h.done:
		return false
	default:
		return true
	}
}
