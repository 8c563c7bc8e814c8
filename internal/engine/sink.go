package engine

import (
	"context"
	"log/slog"
	"time"
)

// sink is the single-threaded consumer that owns
// the CommitLog, the buffer pool, and the flush bookkeeping (dirty,
// lastFlush), structured as a single loop that, per iteration, drains one
// side of the ingress and then consults the flush timer.
type sink struct {
	log           CommitLog
	pool          *BufferPool
	appendQ       *appendIngress
	metaQ         *metaIngress
	flushInterval time.Duration
	metrics       *Metrics

	dirty     bool
	lastFlush time.Time
}

func newSink(log CommitLog, cfg Config, appendQ *appendIngress, metaQ *metaIngress, metrics *Metrics) *sink {
	return &sink{
		log:           log,
		pool:          NewBufferPool(cfg.PoolCapacity, cfg.PoolBufInitialBytes),
		appendQ:       appendQ,
		metaQ:         metaQ,
		flushInterval: cfg.FlushInterval,
		metrics:       metrics,
		lastFlush:     time.Now(),
	}
}

// run drives the engine until ctx is cancelled. It never returns "ready for
// more" to its caller (there is no caller to return to) — it simply loops
// for the lifetime of the host, running forever as long as
// its host thread is alive".
func (s *sink) run(ctx context.Context) {
	toggle := false
	timer := time.NewTimer(s.flushInterval)
	defer timer.Stop()

	for {
		var handled bool
		// Alternate which side is tried first each iteration so neither
		// the append batch nor the meta request starves the other — fair
		// alternation is enough to avoid starving either side, not strict fairness.
		if toggle {
			handled = s.tryMeta() || s.tryAppend()
		} else {
			handled = s.tryAppend() || s.tryMeta()
		}
		toggle = !toggle

		if handled {
			s.maybeFlush()
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-s.appendQ.C():
		case <-s.metaQ.C():
		case <-timer.C:
			s.maybeFlush()
			timer.Reset(s.flushInterval)
		}
	}
}

func (s *sink) tryAppend() bool {
	batch, ok := s.appendQ.tryDrain()
	if !ok {
		return false
	}
	s.handleAppendBatch(batch)
	return true
}

func (s *sink) tryMeta() bool {
	item, ok := s.metaQ.tryDrain()
	if !ok {
		return false
	}
	s.handleMeta(item)
	return true
}

func (s *sink) handleAppendBatch(batch []appendItem) {
	if s.metrics != nil {
		s.metrics.QueueDepth.Set(float64(len(batch)))
		s.metrics.AppendBatchSize.Observe(float64(len(batch)))
	}

	buf := s.pool.checkout()
	var mb *MessageBatch
	if buf != nil {
		mb = newPooledBatch(buf, s.pool)
		if s.metrics != nil {
			s.metrics.PoolCheckoutHit.Inc()
		}
	} else {
		mb = newOwnedBatch(s.pool.newBuffer())
		if s.metrics != nil {
			s.metrics.PoolCheckoutMiss.Inc()
		}
	}

	payloads := make([][]byte, 0, len(batch))
	for _, item := range batch {
		mb.Append(item.payload)
		payloads = append(payloads, item.payload)
	}

	first, _, err := s.log.Append(payloads)
	if err != nil {
		// Uniform failure to every completion in the batch. dirty is
		// deliberately left untouched: a failed append has nothing new
		// to persist.
		for _, item := range batch {
			item.done <- appendResult{err: ErrAppendFailed}
		}
		if s.metrics != nil {
			s.metrics.AppendFailures.Inc()
		}
		mb.Release()
		return
	}

	offset := first
	for _, item := range batch {
		item.done <- appendResult{offset: offset}
		offset++
	}
	if s.metrics != nil {
		s.metrics.AppendsTotal.Add(float64(len(batch)))
	}
	s.dirty = true
	mb.Release()
}

func (s *sink) handleMeta(item metaItem) {
	switch item.kind {
	case metaLastOffset:
		item.done <- metaResult{offset: s.log.LastOffset()}
	case metaRead:
		payloads, err := s.log.Read(item.position, item.limit)
		if err != nil {
			if s.metrics != nil {
				s.metrics.ReadFailures.Inc()
			}
			item.done <- metaResult{err: ErrReadFailed}
			return
		}
		if s.metrics != nil {
			s.metrics.ReadsTotal.Inc()
		}
		item.done <- metaResult{batch: newBorrowedBatch(payloads)}
	}
}

// maybeFlush implements the flush policy exactly: a no-op unless
// dirty, and a fsync only once flushInterval has elapsed since the last
// successful flush. Flush errors are logged and retried next cycle —
// never surfaced to a producer.
func (s *sink) maybeFlush() {
	if !s.dirty {
		return
	}
	if time.Since(s.lastFlush) <= s.flushInterval {
		return
	}
	if err := s.log.Flush(); err != nil {
		slog.Error("commit log flush failed, will retry", "error", err)
		if s.metrics != nil {
			s.metrics.FlushFailures.Inc()
		}
		return
	}
	s.lastFlush = time.Now()
	s.dirty = false
	if s.metrics != nil {
		s.metrics.FlushesTotal.Inc()
	}
}
