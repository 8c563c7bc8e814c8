package frontend

import (
	"context"
	"encoding/binary"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"asynclogd/internal/commitlog"
	"asynclogd/internal/engine"
)

func startTestServer(t *testing.T) (addr string, shutdown func()) {
	t.Helper()
	dir := t.TempDir()
	log, err := commitlog.Open(dir, commitlog.Options{})
	require.NoError(t, err)

	host, al := engine.Start(engine.DefaultConfig(), log, nil)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr = ln.Addr().String()
	ln.Close()

	cfg := DefaultConfig()
	cfg.Address = addr
	srv := New(cfg, al)

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = srv.ListenAndServe(ctx) }()
	time.Sleep(50 * time.Millisecond) // let the listener bind

	return addr, func() {
		cancel()
		host.Close()
	}
}

func dialAndRoundTrip(t *testing.T, addr string, reqID uint64, opcode byte, payload []byte) (byte, []byte) {
	t.Helper()
	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()

	length := uint32(9 + len(payload))
	buf := make([]byte, 4+length)
	binary.LittleEndian.PutUint32(buf[0:4], length)
	binary.LittleEndian.PutUint64(buf[4:12], reqID)
	buf[12] = opcode
	copy(buf[13:], payload)
	_, err = conn.Write(buf)
	require.NoError(t, err)

	var lenBuf [4]byte
	_, err = readFull(conn, lenBuf[:])
	require.NoError(t, err)
	respLen := binary.LittleEndian.Uint32(lenBuf[:])
	body := make([]byte, respLen)
	_, err = readFull(conn, body)
	require.NoError(t, err)

	gotID := binary.LittleEndian.Uint64(body[0:8])
	assert.Equal(t, reqID, gotID)
	status := body[8]
	return status, body[9:]
}

func readFull(conn net.Conn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := conn.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func TestFrontendAppendAndReadRoundTrip(t *testing.T) {
	addr, shutdown := startTestServer(t)
	defer shutdown()

	status, payload := dialAndRoundTrip(t, addr, 1, OpAppend, []byte("hello wire"))
	require.Equal(t, StatusOK, status)
	offset := binary.LittleEndian.Uint64(payload)
	assert.Equal(t, uint64(0), offset)

	readPayload := make([]byte, 12)
	binary.LittleEndian.PutUint64(readPayload[0:8], offset)
	binary.LittleEndian.PutUint32(readPayload[8:12], 1024)

	status, body := dialAndRoundTrip(t, addr, 2, OpRead, readPayload)
	require.Equal(t, StatusOK, status)
	msgLen := binary.LittleEndian.Uint32(body[0:4])
	msg := body[4 : 4+msgLen]
	assert.Equal(t, []byte("hello wire"), msg)
}

func TestFrontendLastOffset(t *testing.T) {
	addr, shutdown := startTestServer(t)
	defer shutdown()

	status, payload := dialAndRoundTrip(t, addr, 1, OpLastOffset, nil)
	require.Equal(t, StatusOK, status)
	assert.Equal(t, uint64(0), binary.LittleEndian.Uint64(payload))
}
