package frontend

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"net"
)

// maxFrameLength guards against a malformed or hostile length prefix
// forcing an unbounded allocation.
const maxFrameLength = 64 << 20

// readRequest reads one request frame: u32 LE length | u64 LE request_id |
// u8 opcode | payload. length counts everything after itself.
func readRequest(r *bufio.Reader) (reqID uint64, opcode byte, payload []byte, err error) {
	var lenBuf [4]byte
	if _, err = io.ReadFull(r, lenBuf[:]); err != nil {
		return 0, 0, nil, err
	}
	length := binary.LittleEndian.Uint32(lenBuf[:])
	if length < 9 || uint64(length) > maxFrameLength {
		return 0, 0, nil, fmt.Errorf("frontend: invalid frame length %d", length)
	}

	body := make([]byte, length)
	if _, err = io.ReadFull(r, body); err != nil {
		return 0, 0, nil, err
	}

	reqID = binary.LittleEndian.Uint64(body[0:8])
	opcode = body[8]
	payload = body[9:]
	return reqID, opcode, payload, nil
}

// writeResponse writes one response frame: u32 LE length | u64 LE
// request_id | u8 status | payload.
func writeResponse(w net.Conn, reqID uint64, status byte, payload []byte) error {
	length := uint32(9 + len(payload))
	buf := make([]byte, 4+length)
	binary.LittleEndian.PutUint32(buf[0:4], length)
	binary.LittleEndian.PutUint64(buf[4:12], reqID)
	buf[12] = status
	copy(buf[13:], payload)
	_, err := w.Write(buf)
	return err
}
