package engine

// CommitLog is the external collaborator the engine drives: an
// append-only, offset-addressed store. internal/commitlog.Log implements
// this contract concretely on top of pebble; the engine only ever depends
// on this interface so it stays ignorant of the storage format.
type CommitLog interface {
	// Append writes payloads as one physical batch and returns the
	// contiguous offset range assigned to them, first == last-len(payloads)+1.
	Append(payloads [][]byte) (first, last uint64, err error)
	// Read returns the payloads starting at position, accumulating until
	// limit bytes have been collected or no further records exist.
	Read(position ReadPosition, limit uint32) ([][]byte, error)
	// Flush fsyncs all previously appended data.
	Flush() error
	// LastOffset returns the highest assigned offset, or 0 if empty.
	LastOffset() uint64
	// Close releases any resources held by the log.
	Close() error
}
