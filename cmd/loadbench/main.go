package main

import (
	"bufio"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/klauspost/cpuid/v2"
	"github.com/spf13/cobra"
)

// loadbench drives concurrent Append (or, with --op last-offset, LastOffset)
// requests against a running logd
// frontend over its binary TCP protocol and reports throughput and
// latency percentiles, in the spirit of a client-side throughput probe.
var (
	benchAddr       string
	benchConns      int
	benchDuration   time.Duration
	benchPayload    int
	benchOp         string
)

type metrics struct {
	total     int64
	failed    int64
	bytesSent int64

	mu        sync.Mutex
	durations []time.Duration
}

func (m *metrics) record(d time.Duration, n int, ok bool) {
	atomic.AddInt64(&m.total, 1)
	atomic.AddInt64(&m.bytesSent, int64(n))
	if !ok {
		atomic.AddInt64(&m.failed, 1)
		return
	}
	m.mu.Lock()
	m.durations = append(m.durations, d)
	m.mu.Unlock()
}

var rootCmd = &cobra.Command{
	Use:   "loadbench",
	Short: "Throughput and latency probe for an asynclogd frontend listener",
	RunE:  runBench,
}

func init() {
	rootCmd.Flags().StringVar(&benchAddr, "addr", "127.0.0.1:9092", "frontend TCP address")
	rootCmd.Flags().IntVar(&benchConns, "conns", 16, "concurrent connections")
	rootCmd.Flags().DurationVar(&benchDuration, "duration", 10*time.Second, "benchmark duration")
	rootCmd.Flags().IntVar(&benchPayload, "payload-size", 256, "append payload size in bytes")
	rootCmd.Flags().StringVar(&benchOp, "op", "append", "operation to drive: append, last-offset")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func printSystemInfo() {
	fmt.Println("system:")
	fmt.Printf("  cpu:    %s (%d physical / %d logical cores)\n", cpuid.CPU.BrandName, cpuid.CPU.PhysicalCores, cpuid.CPU.LogicalCores)
	fmt.Printf("  target: %s\n", benchAddr)
	fmt.Printf("  conns:  %d\n", benchConns)
}

func runBench(cmd *cobra.Command, args []string) error {
	printSystemInfo()

	payload := make([]byte, benchPayload)
	if _, err := rand.Read(payload); err != nil {
		return fmt.Errorf("generate payload: %w", err)
	}

	m := &metrics{}
	stop := make(chan struct{})
	var wg sync.WaitGroup

	for i := 0; i < benchConns; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			workerLoop(benchAddr, benchOp, payload, m, stop)
		}()
	}

	start := time.Now()
	time.AfterFunc(benchDuration, func() { close(stop) })
	wg.Wait()
	elapsed := time.Since(start)

	report(m, elapsed)
	return nil
}

func workerLoop(addr, op string, payload []byte, m *metrics, stop <-chan struct{}) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "dial %s: %v\n", addr, err)
		return
	}
	defer conn.Close()
	reader := bufio.NewReader(conn)

	var reqID uint64
	for {
		select {
		case <-stop:
			return
		default:
		}

		reqID++
		t0 := time.Now()
		ok := sendOne(conn, reader, reqID, op, payload)
		m.record(time.Since(t0), len(payload), ok)
	}
}

// sendOne writes one request frame and reads its matching response frame.
// Framing mirrors internal/frontend: u32 LE length | u64 LE request_id |
// u8 opcode/status | payload.
func sendOne(conn net.Conn, reader *bufio.Reader, reqID uint64, op string, payload []byte) bool {
	var opcode byte
	var body []byte
	switch op {
	case "last-offset":
		opcode = 2
	default:
		opcode = 0
		body = payload
	}

	frame := make([]byte, 4+8+1+len(body))
	binary.LittleEndian.PutUint32(frame[0:4], uint32(8+1+len(body)))
	binary.LittleEndian.PutUint64(frame[4:12], reqID)
	frame[12] = opcode
	copy(frame[13:], body)

	if _, err := conn.Write(frame); err != nil {
		return false
	}

	hdr := make([]byte, 4)
	if _, err := io.ReadFull(reader, hdr); err != nil {
		return false
	}
	n := binary.LittleEndian.Uint32(hdr)
	body2 := make([]byte, n)
	if _, err := io.ReadFull(reader, body2); err != nil {
		return false
	}
	status := body2[8]
	return status == 0
}

func report(m *metrics, elapsed time.Duration) {
	total := atomic.LoadInt64(&m.total)
	failed := atomic.LoadInt64(&m.failed)
	sent := atomic.LoadInt64(&m.bytesSent)

	m.mu.Lock()
	durations := append([]time.Duration(nil), m.durations...)
	m.mu.Unlock()
	sort.Slice(durations, func(i, j int) bool { return durations[i] < durations[j] })

	var p50, p90, p99 time.Duration
	if n := len(durations); n > 0 {
		p50 = durations[n*50/100]
		p90 = durations[min(n-1, n*90/100)]
		p99 = durations[min(n-1, n*99/100)]
	}

	fmt.Println()
	fmt.Println("results:")
	fmt.Printf("  duration:       %s\n", elapsed)
	fmt.Printf("  total requests: %d (%d failed)\n", total, failed)
	fmt.Printf("  throughput:     %.1f req/s, %.1f MB/s\n", float64(total)/elapsed.Seconds(), float64(sent)/1e6/elapsed.Seconds())
	fmt.Printf("  latency p50/p90/p99: %s / %s / %s\n", p50, p90, p99)
}

