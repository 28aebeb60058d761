package mqtt

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/fxamacker/cbor/v2"

	"github.com/robotalks/rosserial.go/pkg/msgs"
	"github.com/robotalks/rosserial.go/pkg/rosserial"
)

// Directions of mirrored frames.
const (
	DirRX = "rx"
	DirTX = "tx"
)

// ControlSegment is the broker topic segment of control frames.
const ControlSegment = "control"

// Envelope carries one mirrored frame.
type Envelope struct {
	Node      string `json:"node" cbor:"node"`
	Direction string `json:"dir" cbor:"dir"`
	TopicID   uint16 `json:"id" cbor:"id"`
	Topic     string `json:"topic,omitempty" cbor:"topic,omitempty"`
	Type      string `json:"type,omitempty" cbor:"type,omitempty"`
	MD5Sum    string `json:"md5sum,omitempty" cbor:"md5sum,omitempty"`
	Payload   []byte `json:"payload" cbor:"payload"`
}

// BrokerTopic is the topic the envelope is published to, relative to
// the queue prefix: <node>/<dir>/<topic>.
func (e *Envelope) BrokerTopic() string {
	var segment string
	switch {
	case e.TopicID == rosserial.ControlTopicID:
		segment = ControlSegment
	case e.Topic != "":
		segment = strings.Trim(e.Topic, "/")
	default:
		segment = "id/" + strconv.Itoa(int(e.TopicID))
	}
	return e.Node + "/" + e.Direction + "/" + segment
}

// Decode decodes the payload using the registered message type.
func (e *Envelope) Decode() (msgs.Message, error) {
	if e.Type == "" {
		return nil, fmt.Errorf("topic %d: unknown message type", e.TopicID)
	}
	typ, ok := msgs.LookupType(e.Type)
	if !ok {
		return nil, fmt.Errorf("topic %d: unregistered message type %s", e.TopicID, e.Type)
	}
	if e.MD5Sum != "" && e.MD5Sum != typ.MD5Sum() {
		return nil, fmt.Errorf("topic %d: %s md5sum mismatch: %s", e.TopicID, e.Type, e.MD5Sum)
	}
	return msgs.Unmarshal(typ, e.Payload)
}

// Codec encodes envelopes.
type Codec interface {
	Name() string
	Marshal(v interface{}) ([]byte, error)
	Unmarshal(data []byte, v interface{}) error
}

type cborCodec struct{}

func (cborCodec) Name() string                               { return "cbor" }
func (cborCodec) Marshal(v interface{}) ([]byte, error)      { return cbor.Marshal(v) }
func (cborCodec) Unmarshal(data []byte, v interface{}) error { return cbor.Unmarshal(data, v) }

type jsonCodec struct{}

func (jsonCodec) Name() string                               { return "json" }
func (jsonCodec) Marshal(v interface{}) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v interface{}) error { return json.Unmarshal(data, v) }

// Codecs.
var (
	CBOR Codec = cborCodec{}
	JSON Codec = jsonCodec{}
)

// CodecByName finds a codec, empty name means CBOR.
func CodecByName(name string) (Codec, error) {
	switch strings.ToLower(name) {
	case "", "cbor":
		return CBOR, nil
	case "json":
		return JSON, nil
	}
	return nil, fmt.Errorf("unknown encoding %q", name)
}
