package rosserial

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/golang/glog"

	fx "github.com/robotalks/rosserial.go/pkg/framework"
	"github.com/robotalks/rosserial.go/pkg/msgs"
)

// DefaultBufferSize is the buffer size announced when none is given.
const DefaultBufferSize = 1024

// DefaultRetryInterval is the pause after a failed read.
const DefaultRetryInterval = 100 * time.Millisecond

// Observer is notified of every frame going through a node.
// It is called synchronously and must not block.
type Observer interface {
	FrameReceived(Frame)
	FrameSent(Frame)
}

// Node publishes and subscribes topics over a byte stream.
type Node struct {
	// Observer, if set, sees all validated frames.
	Observer Observer
	// RetryInterval is the pause after a transient read failure.
	RetryInterval time.Duration
	// MaxPayload rejects received frames with longer payloads.
	MaxPayload int

	rw       io.ReadWriter
	registry *Registry
	counters counters
	sendLock sync.Mutex
}

// NewNode creates a Node on the transport rw.
// Receiving starts when Run is called.
func NewNode(rw io.ReadWriter) *Node {
	return &Node{
		RetryInterval: DefaultRetryInterval,
		rw:            rw,
		registry:      NewRegistry(),
	}
}

// Name implements framework.Named.
func (n *Node) Name() string {
	return "rosserial"
}

// Registry exposes the topic registry.
func (n *Node) Registry() *Registry {
	return n.registry
}

// Topics lists negotiated topics.
func (n *Node) Topics() []Topic {
	return n.registry.Topics()
}

// TopicByID finds a topic by its ID.
func (n *Node) TopicByID(id uint16) (Topic, bool) {
	return n.registry.TopicByID(id)
}

// Stats returns a snapshot of counters.
func (n *Node) Stats() Stats {
	return n.counters.snapshot()
}

// Publish sends msg on the named topic, negotiating the topic first if
// this is its first use. bufferSize <= 0 means DefaultBufferSize.
// It returns once the bytes are written, no acknowledgement is expected.
func (n *Node) Publish(name string, msg msgs.Message, bufferSize int) error {
	if name == "" {
		return invalidArgument("empty topic name")
	}
	if msg == nil || msg.Type() == nil {
		return invalidArgument("nil message on topic %q", name)
	}
	var payload bytes.Buffer
	if err := msg.Serialize(&payload); err != nil {
		return err
	}

	n.sendLock.Lock()
	defer n.sendLock.Unlock()
	topic, err := n.negotiate(name, msg.Type(), msgs.DirectionPublish, bufferSize, nil)
	if err != nil {
		return err
	}
	return n.send(Frame{TopicID: topic.ID, Payload: payload.Bytes()})
}

// Subscribe registers cb for messages of typ on the named topic.
// The topic is negotiated on its first use. Subscribing again replaces
// the callback. bufferSize <= 0 means DefaultBufferSize.
func (n *Node) Subscribe(name string, typ msgs.MessageType, cb Callback, bufferSize int) error {
	if name == "" {
		return invalidArgument("empty topic name")
	}
	if cb == nil {
		return invalidArgument("nil callback on topic %q", name)
	}
	if typ == nil {
		return invalidArgument("nil message type on topic %q", name)
	}

	n.sendLock.Lock()
	defer n.sendLock.Unlock()
	_, err := n.negotiate(name, typ, msgs.DirectionSubscribe, bufferSize, &Subscriber{Type: typ, Callback: cb})
	return err
}

// negotiate must be called with sendLock held so the TopicInfo frame
// always precedes frames on the new ID.
func (n *Node) negotiate(name string, typ msgs.MessageType, dir msgs.Direction, bufferSize int, sub *Subscriber) (Topic, error) {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	topic, created, err := n.registry.Ensure(Topic{
		Name:        name,
		Direction:   dir,
		MessageType: typ.Name(),
		MD5Sum:      typ.MD5Sum(),
		BufferSize:  bufferSize,
	})
	if err != nil {
		return topic, err
	}
	if created {
		glog.Infof("topic %q (%s) %s as %d", name, topic.MessageType, dir, topic.ID)
	}
	if sub != nil {
		if err = n.registry.AddSubscriber(topic.ID, *sub); err != nil {
			return topic, err
		}
	}
	if topic.Negotiated() {
		return topic, nil
	}
	payload, err := msgs.Marshal(topic.Info())
	if err != nil {
		return topic, err
	}
	if err = n.send(Frame{TopicID: ControlTopicID, Payload: payload}); err != nil {
		return topic, err
	}
	n.registry.SetNegotiated(name)
	topic.negotiated = true
	return topic, nil
}

func (n *Node) send(frame Frame) error {
	if _, err := frame.WriteTo(n.rw); err != nil {
		return &TransportError{Op: "write", Err: err}
	}
	n.counters.framesSent.Add(1)
	if glog.V(2) {
		glog.Infof("TX %d: %d bytes", frame.TopicID, len(frame.Payload))
	}
	if o := n.Observer; o != nil {
		o.FrameSent(frame)
	}
	return nil
}

// Run receives frames and dispatches them to subscribers until ctx is
// done or the transport is closed. Malformed frames are logged, counted
// and skipped. If the transport is an io.Closer, it is closed on return.
func (n *Node) Run(ctx context.Context) error {
	if closer, ok := n.rw.(io.Closer); ok {
		return fx.RunWithContextCloser(ctx, closer, func() error {
			return n.receive(ctx)
		})
	}
	return n.receive(ctx)
}

// Close closes the transport if it can be closed.
func (n *Node) Close() error {
	if closer, ok := n.rw.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

func (n *Node) receive(ctx context.Context) error {
	dec := NewDecoder(n.rw)
	dec.Parser.MaxPayload = n.MaxPayload
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		frame, err := dec.Decode()
		if err != nil {
			if err = n.handleError(ctx, err); err != nil {
				return err
			}
			continue
		}
		n.dispatch(frame)
	}
}

func (n *Node) handleError(ctx context.Context, err error) error {
	var (
		checksumErr  *ChecksumError
		framingErr   *FramingError
		transportErr *TransportError
	)
	switch {
	case err == ErrNoData:
	case errors.As(err, &transportErr):
		if transportErr.Fatal() {
			return err
		}
		n.counters.transportErrors.Add(1)
		glog.Warningf("read failed, retry: %v", transportErr.Err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(n.RetryInterval):
		}
	case errors.As(err, &framingErr):
		n.counters.framingErrors.Add(1)
		glog.Warningf("frame dropped: %v", err)
	case errors.As(err, &checksumErr):
		n.counters.checksumErrors.Add(1)
		glog.Warningf("frame dropped: %v", err)
	default:
		return err
	}
	return nil
}

func (n *Node) dispatch(frame *Frame) {
	n.counters.framesReceived.Add(1)
	if glog.V(2) {
		glog.Infof("RX %d: %d bytes", frame.TopicID, len(frame.Payload))
	}
	if o := n.Observer; o != nil {
		o.FrameReceived(*frame)
	}
	if frame.TopicID == ControlTopicID {
		n.counters.controlFrames.Add(1)
		glog.V(1).Infof("control frame ignored: %d bytes", len(frame.Payload))
		return
	}
	sub, ok := n.registry.Subscriber(frame.TopicID)
	if !ok {
		n.counters.unknownTopics.Add(1)
		glog.V(1).Info((&UnknownTopicError{TopicID: frame.TopicID}).Error())
		return
	}
	msg, err := msgs.Unmarshal(sub.Type, frame.Payload)
	if err != nil {
		n.counters.decodeErrors.Add(1)
		glog.Warningf("topic %d: decode %s: %v", frame.TopicID, sub.Type.Name(), err)
		return
	}
	n.invoke(frame.TopicID, sub.Callback, msg)
}

func (n *Node) invoke(id uint16, cb Callback, msg msgs.Message) {
	defer func() {
		if r := recover(); r != nil {
			n.counters.callbackPanics.Add(1)
			glog.Errorf("topic %d: callback panic: %v", id, r)
		}
	}()
	cb(msg)
}
