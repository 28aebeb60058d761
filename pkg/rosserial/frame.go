package rosserial

import (
	"encoding/binary"
	"io"
)

// Header marks the start of a frame.
var Header = [2]byte{0xff, 0xfe}

// ControlTopicID is the topic ID reserved for negotiation.
const ControlTopicID uint16 = 0

// overhead is the number of bytes a frame adds around the payload.
const overhead = 8

// Checksum calculates 255 - (sum of all bytes mod 256).
func Checksum(parts ...[]byte) byte {
	var sum byte
	for _, p := range parts {
		for _, b := range p {
			sum += b
		}
	}
	return 0xff - sum
}

// Frame is one protocol unit.
type Frame struct {
	TopicID uint16
	Payload []byte
}

// Bytes returns the encoded frame.
// Payload length is truncated to 16 bits on the wire.
func (f *Frame) Bytes() []byte {
	b := make([]byte, len(f.Payload)+overhead)
	b[0], b[1] = Header[0], Header[1]
	binary.LittleEndian.PutUint16(b[2:4], uint16(len(f.Payload)))
	b[4] = Checksum(b[2:4])
	binary.LittleEndian.PutUint16(b[5:7], f.TopicID)
	copy(b[7:], f.Payload)
	b[len(b)-1] = Checksum(b[5 : len(b)-1])
	return b
}

// WriteTo writes the encoded frame with a single Write.
func (f *Frame) WriteTo(w io.Writer) (int64, error) {
	b := f.Bytes()
	n, err := w.Write(b)
	if err == nil && n < len(b) {
		err = io.ErrShortWrite
	}
	return int64(n), err
}

// EncodeFrame encodes payload for topicID.
func EncodeFrame(topicID uint16, payload []byte) []byte {
	return (&Frame{TopicID: topicID, Payload: payload}).Bytes()
}
