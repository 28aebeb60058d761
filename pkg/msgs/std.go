package msgs

import "bytes"

// String is std_msgs/String.
type String struct {
	Data string
}

type stringType struct{}

// StringType is the MessageType of String.
var StringType MessageType = stringType{}

func (stringType) Name() string        { return "std_msgs/String" }
func (stringType) MD5Sum() string      { return "992ce8a1687cec8c8bd883ec73ca41d1" }
func (stringType) NewMessage() Message { return &String{} }

// NewString creates a String.
func NewString(data string) *String {
	return &String{Data: data}
}

// Type implements Message.
func (m *String) Type() MessageType { return StringType }

// Serialize implements Message.
func (m *String) Serialize(buf *bytes.Buffer) error {
	WriteString(buf, m.Data)
	return nil
}

// Deserialize implements Message.
func (m *String) Deserialize(r *bytes.Reader) (err error) {
	m.Data, err = ReadString(r)
	return
}
