// Package envelope encodes and decodes the fixed command frame:
//
//	+--------+----------+---------------+---------+
//	| cmd:4  | seq:4    | payloadLen:4  | payload |
//	+--------+----------+---------------+---------+
//
// All integers are big-endian. The codec works on complete frames only;
// splitting a byte stream into frames is the transport's job.
package envelope

import (
	"encoding/binary"
	"fmt"
)

// HeaderSize is the encoded size of cmd, sequence and payload length.
const HeaderSize = 12

// Envelope is one decoded frame. Payload aliases the decoded buffer.
type Envelope struct {
	Cmd      int32
	Sequence int32
	Payload  []byte
}

// FrameCorruptionError reports a frame whose header does not describe
// its body. The connection that produced it cannot be trusted any more.
type FrameCorruptionError struct {
	Short    bool // frame ended inside the header
	Declared int  // payload length announced by the header
	Actual   int  // bytes following the header, or the whole frame when Short
}

func (e *FrameCorruptionError) Error() string {
	if e.Short {
		return fmt.Sprintf("envelope: corrupt frame: %d bytes is shorter than the %d byte header", e.Actual, HeaderSize)
	}
	return fmt.Sprintf("envelope: corrupt frame: header declares %d payload bytes, got %d", e.Declared, e.Actual)
}

// Encode serialises env into a new frame.
func Encode(env Envelope) []byte {
	frame := make([]byte, HeaderSize+len(env.Payload))
	binary.BigEndian.PutUint32(frame[0:4], uint32(env.Cmd))
	binary.BigEndian.PutUint32(frame[4:8], uint32(env.Sequence))
	binary.BigEndian.PutUint32(frame[8:12], uint32(len(env.Payload)))
	copy(frame[HeaderSize:], env.Payload)
	return frame
}

// Decode parses a complete frame. A zero length payload decodes to nil.
func Decode(frame []byte) (Envelope, error) {
	if len(frame) < HeaderSize {
		return Envelope{}, &FrameCorruptionError{Short: true, Declared: -1, Actual: len(frame)}
	}
	declared := int64(int32(binary.BigEndian.Uint32(frame[8:12])))
	actual := len(frame) - HeaderSize
	if declared != int64(actual) {
		return Envelope{}, &FrameCorruptionError{Declared: int(declared), Actual: actual}
	}

	env := Envelope{
		Cmd:      int32(binary.BigEndian.Uint32(frame[0:4])),
		Sequence: int32(binary.BigEndian.Uint32(frame[4:8])),
	}
	if actual > 0 {
		env.Payload = frame[HeaderSize:]
	}
	return env, nil
}
