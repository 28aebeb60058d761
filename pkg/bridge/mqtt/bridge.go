// Package mqtt mirrors rosserial frames to an MQTT broker.
package mqtt

import (
	"context"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/golang/glog"

	"github.com/robotalks/rosserial.go/pkg/msgs"
	"github.com/robotalks/rosserial.go/pkg/rosserial"
)

// DefaultPublishTimeout bounds the wait for a publish to complete.
const DefaultPublishTimeout = 5 * time.Second

// Publisher publishes payloads to broker topics.
type Publisher interface {
	Pub(topic string, payload []byte) paho.Token
}

// TopicResolver maps topic IDs to topics.
type TopicResolver interface {
	TopicByID(id uint16) (rosserial.Topic, bool)
}

type pendingPub struct {
	topic string
	token paho.Token
}

// Bridge is a rosserial.Observer publishing every frame as an Envelope.
type Bridge struct {
	Publisher      Publisher
	Topics         TopicResolver
	NodeID         string
	Codec          Codec
	PublishTimeout time.Duration

	pending chan pendingPub
}

// NewBridge creates a Bridge.
func NewBridge(pub Publisher, topics TopicResolver, nodeID string) *Bridge {
	return &Bridge{
		Publisher:      pub,
		Topics:         topics,
		NodeID:         nodeID,
		Codec:          CBOR,
		PublishTimeout: DefaultPublishTimeout,
		pending:        make(chan pendingPub, 64),
	}
}

// Name implements framework.Named.
func (b *Bridge) Name() string {
	return "mqtt-bridge"
}

// FrameReceived implements rosserial.Observer.
func (b *Bridge) FrameReceived(frame rosserial.Frame) {
	b.mirror(DirRX, frame)
}

// FrameSent implements rosserial.Observer.
func (b *Bridge) FrameSent(frame rosserial.Frame) {
	b.mirror(DirTX, frame)
}

// Envelope wraps a frame with what is known about its topic.
func (b *Bridge) Envelope(dir string, frame rosserial.Frame) *Envelope {
	env := &Envelope{
		Node:      b.NodeID,
		Direction: dir,
		TopicID:   frame.TopicID,
		Payload:   frame.Payload,
	}
	if frame.TopicID == rosserial.ControlTopicID {
		env.Type, env.MD5Sum = msgs.TopicInfoType.Name(), msgs.TopicInfoType.MD5Sum()
	} else if topic, ok := b.Topics.TopicByID(frame.TopicID); ok {
		env.Topic, env.Type, env.MD5Sum = topic.Name, topic.MessageType, topic.MD5Sum
	}
	return env
}

func (b *Bridge) mirror(dir string, frame rosserial.Frame) {
	env := b.Envelope(dir, frame)
	data, err := b.Codec.Marshal(env)
	if err != nil {
		glog.Warningf("encode frame %d: %v", frame.TopicID, err)
		return
	}
	topic := env.BrokerTopic()
	token := b.Publisher.Pub(topic, data)
	select {
	case b.pending <- pendingPub{topic: topic, token: token}:
	default:
		glog.V(1).Infof("PUB %q not tracked", topic)
	}
}

// Run reports failed publishes until ctx is done.
func (b *Bridge) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case p := <-b.pending:
			if !p.token.WaitTimeout(b.PublishTimeout) {
				glog.Warningf("PUB %q timeout", p.topic)
			} else if err := p.token.Error(); err != nil {
				glog.Warningf("PUB %q error: %v", p.topic, err)
			} else {
				glog.V(2).Infof("PUB %q", p.topic)
			}
		}
	}
}
