// Package frontend is the TCP connection layer: a length-prefixed,
// request-ID-multiplexed wire protocol that drives the engine's AsyncLog
// handle on behalf of remote clients.
package frontend

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"io"
	"log/slog"
	"net"
	"sync"

	"golang.org/x/time/rate"

	"asynclogd/internal/engine"
)

// Opcodes carried in byte 12 of a request frame.
const (
	OpAppend     byte = 0
	OpRead       byte = 1
	OpLastOffset byte = 2
)

// Status codes carried in byte 12 of a response frame.
const (
	StatusOK           byte = 0
	StatusAppendFailed byte = 1
	StatusReadFailed   byte = 2
	StatusEngineGone   byte = 3
	StatusCancelled    byte = 4
)

// latestSentinel marks ReadPosition.Latest on the wire.
const latestSentinel = ^uint64(0)

// Config is the frontend's configuration.
type Config struct {
	Address           string
	MaxRequestsPerSec float64
	MaxRequestsBurst  int
}

// DefaultConfig returns the frontend's default configuration.
func DefaultConfig() Config {
	return Config{Address: ":9092", MaxRequestsPerSec: 0, MaxRequestsBurst: 64}
}

// Server accepts client connections and drives log, a cloned AsyncLog
// handle, cheap to copy per connection, no shared mutable state between
// connections beyond the engine's own ingress channels.
type Server struct {
	cfg Config
	log engine.AsyncLog
}

// New builds a Server bound to cfg and log. log is typically
// engine.Start's returned AsyncLog; each accepted connection gets its own
// copy of the handle.
func New(cfg Config, log engine.AsyncLog) *Server {
	return &Server{cfg: cfg, log: log}
}

// ListenAndServe accepts connections until ctx is cancelled. A framing
// error on one connection closes only that connection
// it never takes down the listener or another connection.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Address)
	if err != nil {
		return err
	}
	slog.Info("frontend listening", "address", s.cfg.Address)

	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	var wg sync.WaitGroup
	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				wg.Wait()
				return nil
			default:
				slog.Error("frontend accept failed", "error", err)
				continue
			}
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.handleConn(ctx, conn)
		}()
	}
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	var limiter *rate.Limiter
	if s.cfg.MaxRequestsPerSec > 0 {
		limiter = rate.NewLimiter(rate.Limit(s.cfg.MaxRequestsPerSec), s.cfg.MaxRequestsBurst)
	}

	reader := bufio.NewReader(conn)
	var writeMu sync.Mutex
	var inFlight sync.WaitGroup

	for {
		reqID, opcode, payload, err := readRequest(reader)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				slog.Debug("frontend connection closed on framing error", "remote", conn.RemoteAddr(), "error", err)
			}
			break
		}
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				break
			}
		}

		inFlight.Add(1)
		go func(reqID uint64, opcode byte, payload []byte) {
			defer inFlight.Done()
			status, respPayload := s.dispatch(ctx, opcode, payload)
			writeMu.Lock()
			defer writeMu.Unlock()
			if err := writeResponse(conn, reqID, status, respPayload); err != nil {
				slog.Debug("frontend write failed", "remote", conn.RemoteAddr(), "error", err)
			}
		}(reqID, opcode, payload)
	}
	inFlight.Wait()
}

// dispatch executes one request against the engine and returns the wire
// status byte plus response payload. Requests may complete out of order
// relative to arrival — each response frame carries its own request_id so
// clients can re-associate them — cross-producer ordering is unspecified.
func (s *Server) dispatch(ctx context.Context, opcode byte, payload []byte) (byte, []byte) {
	switch opcode {
	case OpAppend:
		offset, err := s.log.Append(ctx, payload)
		if err != nil {
			return statusFor(err, StatusAppendFailed), nil
		}
		return StatusOK, encodeUint64(offset)

	case OpRead:
		if len(payload) < 12 {
			return StatusReadFailed, nil
		}
		pos := binary.LittleEndian.Uint64(payload[0:8])
		limit := binary.LittleEndian.Uint32(payload[8:12])
		position := engine.ReadPosition{Offset: pos}
		if pos == latestSentinel {
			position = engine.ReadPosition{Latest: true}
		}
		batch, err := s.log.Read(ctx, position, limit)
		if err != nil {
			return statusFor(err, StatusReadFailed), nil
		}
		return StatusOK, encodeMessages(batch.Messages())

	case OpLastOffset:
		offset, err := s.log.LastOffset(ctx)
		if err != nil {
			return statusFor(err, StatusReadFailed), nil
		}
		return StatusOK, encodeUint64(offset)

	default:
		return StatusReadFailed, nil
	}
}

// statusFor maps an engine error to a wire status byte. fallback is used
// for an error that isn't one of the well-known sentinels, appropriate to
// whichever operation (Append vs. Read/LastOffset) called it.
func statusFor(err error, fallback byte) byte {
	switch {
	case errors.Is(err, engine.ErrEngineGone):
		return StatusEngineGone
	case errors.Is(err, engine.ErrAppendFailed):
		return StatusAppendFailed
	case errors.Is(err, engine.ErrReadFailed):
		return StatusReadFailed
	case errors.Is(err, engine.ErrCancelled), errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return StatusCancelled
	default:
		return fallback
	}
}

func encodeUint64(v uint64) []byte {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, v)
	return buf
}

// encodeMessages packs a Read result as a run of (u32 LE length, bytes)
// pairs so multi-message reads stay self-delimiting on the wire.
func encodeMessages(msgs [][]byte) []byte {
	size := 0
	for _, m := range msgs {
		size += 4 + len(m)
	}
	out := make([]byte, 0, size)
	lenBuf := make([]byte, 4)
	for _, m := range msgs {
		binary.LittleEndian.PutUint32(lenBuf, uint32(len(m)))
		out = append(out, lenBuf...)
		out = append(out, m...)
	}
	return out
}
