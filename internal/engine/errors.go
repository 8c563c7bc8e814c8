package engine

import "errors"

// Error kinds surfaced to callers of AsyncLog. AppendFailed is reported to
// every request in the failed append batch and ReadFailed only to the read
// that failed; EngineGone is a producer
// side send error; Cancelled means the engine was torn down before a
// completion fired. FlushFailed never reaches a caller — flush failures are
// logged and retried on the next cycle (see sink.go maybeFlush).
var (
	ErrAppendFailed = errors.New("engine: append failed")
	ErrReadFailed   = errors.New("engine: read failed")
	ErrCancelled    = errors.New("engine: cancelled")
	ErrFlushFailed  = errors.New("engine: flush failed")
	ErrEngineGone   = errors.New("engine: gone")
)
