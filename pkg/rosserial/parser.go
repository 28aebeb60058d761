package rosserial

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

// State is where the parser is within a frame.
type State int

// Parser states.
const (
	// ScanningHeader means waiting for the frame header.
	ScanningHeader State = iota
	// ReadingLength means reading the length field and its checksum.
	ReadingLength
	// ReadingTopicID means reading the topic ID.
	ReadingTopicID
	// ReadingPayload means reading the payload and its checksum.
	ReadingPayload
)

func (s State) String() string {
	switch s {
	case ScanningHeader:
		return "ScanningHeader"
	case ReadingLength:
		return "ReadingLength"
	case ReadingTopicID:
		return "ReadingTopicID"
	case ReadingPayload:
		return "ReadingPayload"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// MaxPayload is the largest payload the length field can express.
const MaxPayload = 0xffff

type parseState int

const (
	stateHeader     parseState = iota // waiting for 0xff
	stateHeaderNext                   // got 0xff, waiting for 0xfe
	stateLength                       // reading 2 length bytes
	stateLengthChk                    // waiting for length checksum
	stateTopicID                      // reading 2 topic ID bytes
	statePayload                      // reading payload bytes
	statePayloadChk                   // waiting for payload checksum
)

// ParseResult indicates the result after one parsing step.
// At most one of Frame and Err is set.
type ParseResult struct {
	State State
	Frame *Frame
	Err   error
}

// Parser decodes frames one byte at a time.
// The zero value is ready to use.
type Parser struct {
	// MaxPayload rejects longer frames, 0 means MaxPayload.
	MaxPayload int

	state  parseState
	word   [2]byte
	count  int
	length int
	sum    byte
	frame  *Frame
}

// State gets the current state.
func (p *Parser) State() State {
	switch p.state {
	case stateLength, stateLengthChk:
		return ReadingLength
	case stateTopicID:
		return ReadingTopicID
	case statePayload, statePayloadChk:
		return ReadingPayload
	}
	return ScanningHeader
}

// Reset drops any partial frame.
func (p *Parser) Reset() {
	p.state, p.count, p.frame = stateHeader, 0, nil
}

// Parse consumes one byte.
func (p *Parser) Parse(b byte) (pr ParseResult) {
	pr.Frame, pr.Err = p.parseByte(b)
	pr.State = p.State()
	return
}

func (p *Parser) parseByte(b byte) (*Frame, error) {
	switch p.state {
	case stateHeader:
		if b == Header[0] {
			p.state = stateHeaderNext
		}
	case stateHeaderNext:
		switch b {
		case Header[1]:
			p.state, p.count = stateLength, 0
		case Header[0]:
			// 0xff 0xff 0xfe is still a header.
		default:
			p.state = stateHeader
		}
	case stateLength:
		if p.readWord(b) {
			p.state = stateLengthChk
		}
	case stateLengthChk:
		if expected := Checksum(p.word[:]); b != expected {
			p.Reset()
			return nil, &FramingError{
				Reason: "bad length",
				Err:    &ChecksumError{Field: ChecksumLength, Expected: expected, Actual: b},
			}
		}
		p.length = int(binary.LittleEndian.Uint16(p.word[:]))
		if max := p.maxPayload(); p.length > max {
			p.Reset()
			return nil, &FramingError{Reason: fmt.Sprintf("payload length %d exceeds %d", p.length, max)}
		}
		p.state = stateTopicID
	case stateTopicID:
		if p.readWord(b) {
			p.frame = &Frame{TopicID: binary.LittleEndian.Uint16(p.word[:])}
			p.sum = p.word[0] + p.word[1]
			if p.length == 0 {
				p.state = statePayloadChk
			} else {
				p.frame.Payload = make([]byte, 0, p.length)
				p.state = statePayload
			}
		}
	case statePayload:
		p.frame.Payload = append(p.frame.Payload, b)
		p.sum += b
		if len(p.frame.Payload) >= p.length {
			p.state = statePayloadChk
		}
	case statePayloadChk:
		frame := p.frame
		p.Reset()
		if p.sum+b != 0xff {
			return nil, &ChecksumError{
				Field:    ChecksumPayload,
				TopicID:  frame.TopicID,
				Expected: 0xff - p.sum,
				Actual:   b,
			}
		}
		return frame, nil
	}
	return nil, nil
}

func (p *Parser) readWord(b byte) bool {
	p.word[p.count] = b
	if p.count++; p.count < len(p.word) {
		return false
	}
	p.count = 0
	return true
}

func (p *Parser) maxPayload() int {
	if p.MaxPayload > 0 && p.MaxPayload < MaxPayload {
		return p.MaxPayload
	}
	return MaxPayload
}

// Decoder reads frames from a byte stream.
type Decoder struct {
	Parser Parser

	r   io.Reader
	buf []byte
	pos int
	end int
	err error
}

// NewDecoder creates a Decoder reading from r.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: r, buf: make([]byte, 256)}
}

// Decode returns the next valid frame.
// Validation failures are returned as *FramingError or *ChecksumError and
// decoding can continue with the next call. Read failures are returned as
// *TransportError, and ErrNoData is returned when a read yields nothing.
func (d *Decoder) Decode() (*Frame, error) {
	for {
		for d.pos < d.end {
			b := d.buf[d.pos]
			d.pos++
			if pr := d.Parser.Parse(b); pr.Err != nil {
				return nil, pr.Err
			} else if pr.Frame != nil {
				return pr.Frame, nil
			}
		}
		if err := d.err; err != nil {
			d.err = nil
			return nil, err
		}
		n, err := d.r.Read(d.buf)
		d.pos, d.end = 0, n
		if err != nil {
			if os.IsTimeout(err) {
				err = ErrNoData
			} else {
				err = &TransportError{Op: "read", Err: err}
			}
			if n == 0 {
				return nil, err
			}
			// consume what was read first.
			d.err = err
		} else if n == 0 {
			return nil, ErrNoData
		}
	}
}

// DecodeFrame reads a single valid frame from r.
// It is meant for complete streams such as captured bytes; validation
// failures are returned rather than skipped.
func DecodeFrame(r io.Reader) (*Frame, error) {
	d := NewDecoder(r)
	d.buf = d.buf[:1]
	for {
		frame, err := d.Decode()
		if err == ErrNoData {
			continue
		}
		return frame, err
	}
}
