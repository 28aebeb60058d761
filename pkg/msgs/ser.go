package msgs

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// ErrShortBuffer indicates the payload ends before the message does.
var ErrShortBuffer = errors.New("short buffer")

// WriteUint8 appends a byte.
func WriteUint8(buf *bytes.Buffer, v uint8) {
	buf.WriteByte(v)
}

// WriteUint16 appends a little-endian uint16.
func WriteUint16(buf *bytes.Buffer, v uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	buf.Write(b[:])
}

// WriteUint32 appends a little-endian uint32.
func WriteUint32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

// WriteInt32 appends a little-endian int32.
func WriteInt32(buf *bytes.Buffer, v int32) {
	WriteUint32(buf, uint32(v))
}

// WriteString appends a length-prefixed string.
func WriteString(buf *bytes.Buffer, s string) {
	WriteUint32(buf, uint32(len(s)))
	buf.WriteString(s)
}

// ReadUint8 reads a byte.
func ReadUint8(r *bytes.Reader) (uint8, error) {
	b, err := r.ReadByte()
	if err != nil {
		return 0, ErrShortBuffer
	}
	return b, nil
}

// ReadUint16 reads a little-endian uint16.
func ReadUint16(r *bytes.Reader) (uint16, error) {
	var b [2]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, ErrShortBuffer
	}
	return binary.LittleEndian.Uint16(b[:]), nil
}

// ReadUint32 reads a little-endian uint32.
func ReadUint32(r *bytes.Reader) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, ErrShortBuffer
	}
	return binary.LittleEndian.Uint32(b[:]), nil
}

// ReadInt32 reads a little-endian int32.
func ReadInt32(r *bytes.Reader) (int32, error) {
	v, err := ReadUint32(r)
	return int32(v), err
}

// ReadString reads a length-prefixed string.
func ReadString(r *bytes.Reader) (string, error) {
	size, err := ReadUint32(r)
	if err != nil {
		return "", err
	}
	if int64(size) > int64(r.Len()) {
		return "", fmt.Errorf("string of %d bytes: %w", size, ErrShortBuffer)
	}
	b := make([]byte, size)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", ErrShortBuffer
	}
	return string(b), nil
}
