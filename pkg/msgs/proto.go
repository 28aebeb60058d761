package msgs

import (
	"bytes"
	"io/ioutil"

	"github.com/golang/protobuf/proto"
)

// ProtoType carries protobuf messages as rosserial payloads.
// The peer must know the same type name and hash.
type ProtoType struct {
	name    string
	md5sum  string
	factory func() proto.Message
}

// NewProtoType creates a ProtoType. factory must return a new empty message.
func NewProtoType(name, md5sum string, factory func() proto.Message) *ProtoType {
	return &ProtoType{name: name, md5sum: md5sum, factory: factory}
}

// Name implements MessageType.
func (t *ProtoType) Name() string { return t.name }

// MD5Sum implements MessageType.
func (t *ProtoType) MD5Sum() string { return t.md5sum }

// NewMessage implements MessageType.
func (t *ProtoType) NewMessage() Message { return &Proto{Msg: t.factory(), typ: t} }

// Wrap wraps a protobuf message of this type.
func (t *ProtoType) Wrap(msg proto.Message) *Proto {
	return &Proto{Msg: msg, typ: t}
}

// Proto is a protobuf message wrapped as a Message.
type Proto struct {
	Msg proto.Message

	typ *ProtoType
}

// Type implements Message.
func (m *Proto) Type() MessageType { return m.typ }

// Serialize implements Message.
func (m *Proto) Serialize(buf *bytes.Buffer) error {
	data, err := proto.Marshal(m.Msg)
	if err != nil {
		return err
	}
	buf.Write(data)
	return nil
}

// Deserialize implements Message.
func (m *Proto) Deserialize(r *bytes.Reader) error {
	data, err := ioutil.ReadAll(r)
	if err != nil {
		return err
	}
	return proto.Unmarshal(data, m.Msg)
}
