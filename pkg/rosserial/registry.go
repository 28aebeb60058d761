package rosserial

import (
	"fmt"
	"sort"
	"sync"

	"github.com/robotalks/rosserial.go/pkg/msgs"
)

// FirstTopicID is the first ID allocated to a topic.
// Lower IDs are reserved by the protocol.
const FirstTopicID uint16 = 101

// Topic describes a negotiated topic.
type Topic struct {
	Name        string
	ID          uint16
	Direction   msgs.Direction
	MessageType string
	MD5Sum      string
	BufferSize  int

	negotiated bool
}

// Negotiated tells whether the TopicInfo record reached the transport.
func (t Topic) Negotiated() bool {
	return t.negotiated
}

// Info builds the negotiation record.
func (t Topic) Info() *msgs.TopicInfo {
	return &msgs.TopicInfo{
		TopicID:     t.ID,
		TopicName:   t.Name,
		MessageType: t.MessageType,
		MD5Sum:      t.MD5Sum,
		BufferSize:  int32(t.BufferSize),
		Direction:   t.Direction,
	}
}

// Callback receives decoded messages of a subscribed topic.
type Callback func(msgs.Message)

// Subscriber is a registered subscription.
type Subscriber struct {
	Type     msgs.MessageType
	Callback Callback
}

// Registry maps topic names to IDs and IDs to subscribers.
// Topic names and IDs share one namespace; entries are never removed.
type Registry struct {
	nextID      uint32
	advertised  map[string]*Topic
	byID        map[uint16]*Topic
	subscribers map[uint16]Subscriber
	lock        sync.RWMutex
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		nextID:      uint32(FirstTopicID),
		advertised:  make(map[string]*Topic),
		byID:        make(map[uint16]*Topic),
		subscribers: make(map[uint16]Subscriber),
	}
}

// Advertise allocates a new ID for a topic name.
// The name must not be advertised already.
func (r *Registry) Advertise(topic Topic) (Topic, error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	if _, ok := r.advertised[topic.Name]; ok {
		return Topic{}, fmt.Errorf("%w: %q", ErrAlreadyAdvertised, topic.Name)
	}
	return r.advertise(topic)
}

// Ensure returns the topic with the given name, advertising it if needed.
// The first use of a name decides its ID, direction and type.
func (r *Registry) Ensure(topic Topic) (Topic, bool, error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	if t, ok := r.advertised[topic.Name]; ok {
		return *t, false, nil
	}
	t, err := r.advertise(topic)
	return t, err == nil, err
}

func (r *Registry) advertise(topic Topic) (Topic, error) {
	if r.nextID > 0xffff {
		return Topic{}, ErrTopicIDsExhausted
	}
	t := topic
	t.ID, t.negotiated = uint16(r.nextID), false
	r.nextID++
	r.advertised[t.Name] = &t
	r.byID[t.ID] = &t
	return t, nil
}

// SetNegotiated marks the topic as announced to the peer.
func (r *Registry) SetNegotiated(name string) {
	r.lock.Lock()
	if t, ok := r.advertised[name]; ok {
		t.negotiated = true
	}
	r.lock.Unlock()
}

// Lookup finds a topic by name.
func (r *Registry) Lookup(name string) (Topic, bool) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	if t, ok := r.advertised[name]; ok {
		return *t, true
	}
	return Topic{}, false
}

// TopicByID finds a topic by ID.
func (r *Registry) TopicByID(id uint16) (Topic, bool) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	if t, ok := r.byID[id]; ok {
		return *t, true
	}
	return Topic{}, false
}

// AddSubscriber registers a subscriber for an advertised topic ID,
// replacing any previous one.
func (r *Registry) AddSubscriber(id uint16, sub Subscriber) error {
	if sub.Callback == nil || sub.Type == nil {
		return invalidArgument("subscriber requires a callback and a message type")
	}
	r.lock.Lock()
	defer r.lock.Unlock()
	if _, ok := r.byID[id]; !ok {
		return invalidArgument("topic %d is not advertised", id)
	}
	r.subscribers[id] = sub
	return nil
}

// Subscriber finds the subscriber of a topic ID.
func (r *Registry) Subscriber(id uint16) (Subscriber, bool) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	sub, ok := r.subscribers[id]
	return sub, ok
}

// Topics lists all topics ordered by ID.
func (r *Registry) Topics() []Topic {
	r.lock.RLock()
	topics := make([]Topic, 0, len(r.byID))
	for _, t := range r.byID {
		topics = append(topics, *t)
	}
	r.lock.RUnlock()
	sort.Slice(topics, func(i, j int) bool { return topics[i].ID < topics[j].ID })
	return topics
}
