package msgs

import (
	"bytes"
	"sort"
	"sync"
)

// MessageType describes a kind of message.
type MessageType interface {
	// Name is the ROS type name, e.g. std_msgs/String.
	Name() string
	// MD5Sum is the hash of the message definition.
	MD5Sum() string
	// NewMessage creates an empty message of this type.
	NewMessage() Message
}

// Message is a payload which can be carried on a topic.
type Message interface {
	Type() MessageType
	Serialize(*bytes.Buffer) error
	Deserialize(*bytes.Reader) error
}

var (
	typesLock    sync.RWMutex
	messageTypes = map[string]MessageType{
		StringType.Name():    StringType,
		TopicInfoType.Name(): TopicInfoType,
	}
)

// RegisterType makes a message type discoverable by name.
// Registering a name twice replaces the previous type.
func RegisterType(types ...MessageType) {
	typesLock.Lock()
	defer typesLock.Unlock()
	for _, t := range types {
		messageTypes[t.Name()] = t
	}
}

// LookupType finds a registered message type.
func LookupType(name string) (MessageType, bool) {
	typesLock.RLock()
	defer typesLock.RUnlock()
	t, ok := messageTypes[name]
	return t, ok
}

// TypeNames lists registered type names in order.
func TypeNames() []string {
	typesLock.RLock()
	names := make([]string, 0, len(messageTypes))
	for name := range messageTypes {
		names = append(names, name)
	}
	typesLock.RUnlock()
	sort.Strings(names)
	return names
}

// Marshal serializes a message into a new byte slice.
func Marshal(msg Message) ([]byte, error) {
	var buf bytes.Buffer
	if err := msg.Serialize(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Unmarshal creates a message of typ from data.
func Unmarshal(typ MessageType, data []byte) (Message, error) {
	msg := typ.NewMessage()
	if err := msg.Deserialize(bytes.NewReader(data)); err != nil {
		return nil, err
	}
	return msg, nil
}
