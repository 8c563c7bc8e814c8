package engine

import "context"

// AsyncLog is the cloneable façade over the engine: holding only the two
// ingress sender halves, a copy of the struct is as cheap as copying two
// pointers, so no explicit Clone beyond Go's normal value-copy semantics is
// needed — assigning or passing an AsyncLog by value already gives the
// caller its own cheap handle sharing the same ingress.
type AsyncLog struct {
	appendQ *appendIngress
	metaQ   *metaIngress
}

// Append enqueues payload on the batched append ingress and waits for the
// engine's completion. ctx cancellation surfaces as ctx.Err(); the engine
// itself has no cancellation — the request still executes even if the
// caller stops waiting — dropping the future does not cancel the operation.
func (a AsyncLog) Append(ctx context.Context, payload []byte) (uint64, error) {
	done := make(chan appendResult, 1)
	if err := a.appendQ.send(appendItem{payload: payload, done: done}); err != nil {
		return 0, ErrEngineGone
	}
	select {
	case res := <-done:
		return res.offset, res.err
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// LastOffset returns the log's current highest assigned offset, or 0 if
// empty. Never fails once the request reaches the engine.
func (a AsyncLog) LastOffset(ctx context.Context) (uint64, error) {
	done := make(chan metaResult, 1)
	if err := a.metaQ.send(metaItem{kind: metaLastOffset, done: done}); err != nil {
		return 0, ErrEngineGone
	}
	select {
	case res := <-done:
		return res.offset, res.err
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// Read fetches messages starting at position, accumulating up to limit
// bytes. The returned batch is Borrowed — its messages are read-only views
// owned by the commit log, valid for the lifetime of the batch.
func (a AsyncLog) Read(ctx context.Context, position ReadPosition, limit uint32) (*MessageBatch, error) {
	done := make(chan metaResult, 1)
	item := metaItem{kind: metaRead, position: position, limit: limit, done: done}
	if err := a.metaQ.send(item); err != nil {
		return nil, ErrEngineGone
	}
	select {
	case res := <-done:
		if res.err != nil {
			return nil, res.err
		}
		return res.batch, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
