// Package msgs defines the message contract used by rosserial nodes
// and the messages every node needs.
package msgs

// Payloads use the ROS serialization format: integers are little-endian
// and strings are prefixed by a uint32 byte length. Each message type
// carries its ROS type name and the MD5 sum of its definition, both sent
// to the peer during topic negotiation.
