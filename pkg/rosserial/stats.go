package rosserial

import "sync/atomic"

// Stats counts what the node has seen.
type Stats struct {
	FramesReceived  uint64
	FramesSent      uint64
	ControlFrames   uint64
	FramingErrors   uint64
	ChecksumErrors  uint64
	UnknownTopics   uint64
	DecodeErrors    uint64
	CallbackPanics  uint64
	TransportErrors uint64
}

type counters struct {
	framesReceived  atomic.Uint64
	framesSent      atomic.Uint64
	controlFrames   atomic.Uint64
	framingErrors   atomic.Uint64
	checksumErrors  atomic.Uint64
	unknownTopics   atomic.Uint64
	decodeErrors    atomic.Uint64
	callbackPanics  atomic.Uint64
	transportErrors atomic.Uint64
}

func (c *counters) snapshot() Stats {
	return Stats{
		FramesReceived:  c.framesReceived.Load(),
		FramesSent:      c.framesSent.Load(),
		ControlFrames:   c.controlFrames.Load(),
		FramingErrors:   c.framingErrors.Load(),
		ChecksumErrors:  c.checksumErrors.Load(),
		UnknownTopics:   c.unknownTopics.Load(),
		DecodeErrors:    c.decodeErrors.Load(),
		CallbackPanics:  c.callbackPanics.Load(),
		TransportErrors: c.transportErrors.Load(),
	}
}
