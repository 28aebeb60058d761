// Package rosserial implements the device side of the rosserial protocol.
package rosserial

// A frame on the wire is:
//
//	0xff 0xfe LEN_L LEN_H LEN_CHK ID_L ID_H PAYLOAD... CHK
//
// LEN_CHK covers the two length bytes and CHK covers the topic ID bytes
// and the payload. Both are 255 minus the byte sum modulo 256.
//
// Topic ID 0 is the control channel. The first time a topic is used the
// node sends a TopicInfo record on it to tell the peer which ID the
// topic got. IDs are allocated from 101 upward and never reused.
