package msgs

import (
	"bytes"
	"fmt"
)

// Direction tells the peer which way messages flow on a topic.
type Direction uint8

// Directions.
const (
	DirectionPublish   Direction = 0
	DirectionSubscribe Direction = 1
)

func (d Direction) String() string {
	switch d {
	case DirectionPublish:
		return "publish"
	case DirectionSubscribe:
		return "subscribe"
	}
	return fmt.Sprintf("direction(%d)", uint8(d))
}

// TopicInfo is the negotiation record sent on the control channel.
// It is rosserial_msgs/TopicInfo followed by a direction byte.
type TopicInfo struct {
	TopicID     uint16
	TopicName   string
	MessageType string
	MD5Sum      string
	BufferSize  int32
	Direction   Direction
}

type topicInfoType struct{}

// TopicInfoType is the MessageType of TopicInfo.
var TopicInfoType MessageType = topicInfoType{}

func (topicInfoType) Name() string        { return "rosserial_msgs/TopicInfo" }
func (topicInfoType) MD5Sum() string      { return "0ad51f88fc44892f8c10684077646005" }
func (topicInfoType) NewMessage() Message { return &TopicInfo{} }

// Type implements Message.
func (m *TopicInfo) Type() MessageType { return TopicInfoType }

// Serialize implements Message.
func (m *TopicInfo) Serialize(buf *bytes.Buffer) error {
	WriteUint16(buf, m.TopicID)
	WriteString(buf, m.TopicName)
	WriteString(buf, m.MessageType)
	WriteString(buf, m.MD5Sum)
	WriteInt32(buf, m.BufferSize)
	WriteUint8(buf, uint8(m.Direction))
	return nil
}

// Deserialize implements Message.
// The direction byte is optional so plain rosserial records decode too.
func (m *TopicInfo) Deserialize(r *bytes.Reader) (err error) {
	if m.TopicID, err = ReadUint16(r); err != nil {
		return
	}
	if m.TopicName, err = ReadString(r); err != nil {
		return
	}
	if m.MessageType, err = ReadString(r); err != nil {
		return
	}
	if m.MD5Sum, err = ReadString(r); err != nil {
		return
	}
	if m.BufferSize, err = ReadInt32(r); err != nil {
		return
	}
	m.Direction = DirectionPublish
	if r.Len() > 0 {
		var d uint8
		if d, err = ReadUint8(r); err != nil {
			return
		}
		m.Direction = Direction(d)
	}
	return nil
}
