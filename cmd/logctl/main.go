package main

import (
	"flag"
	"fmt"
	"os"

	"asynclogd/internal/commitlog"
	"asynclogd/internal/engine"
)

// logctl opens a commit log directory offline (the engine must not be
// running against the same directory — pebble takes an exclusive lock)
// and prints segment bookkeeping and, optionally, a range of messages.
func main() {
	var (
		dir    string
		offset uint64
		limit  uint
		latest bool
	)
	flag.StringVar(&dir, "dir", "", "commit log directory (required)")
	flag.Uint64Var(&offset, "offset", 0, "offset to start reading from")
	flag.UintVar(&limit, "limit", 0, "max bytes to read; 0 means summary only, no read")
	flag.BoolVar(&latest, "latest", false, "read starting from the most recent message instead of -offset")
	flag.Parse()

	if dir == "" {
		fmt.Fprintln(os.Stderr, "-dir is required")
		os.Exit(2)
	}

	lg, err := commitlog.Open(dir, commitlog.Options{})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open %s: %v\n", dir, err)
		os.Exit(1)
	}
	defer lg.Close()

	fmt.Printf("dir:            %s\n", dir)
	fmt.Printf("last_offset:    %d\n", lg.LastOffset())
	fmt.Printf("segment_id:     %d\n", lg.SegmentID())
	fmt.Printf("segment_items:  %d\n", lg.SegmentItems())
	fmt.Printf("segment_bytes:  %d\n", lg.SegmentBytes())

	if limit == 0 {
		return
	}

	position := engine.ReadPosition{Offset: offset}
	if latest {
		position = engine.ReadPosition{Latest: true}
	}
	msgs, err := lg.Read(position, uint32(limit))
	if err != nil {
		fmt.Fprintf(os.Stderr, "read failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("\nread %d message(s):\n", len(msgs))
	for i, m := range msgs {
		fmt.Printf("  [%d] %d bytes: %q\n", i, len(m), truncate(m, 120))
	}
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "…"
}
