package rosserial

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/rosserial.go/pkg/msgs"
)

type testTransport struct {
	readCh  chan []byte
	closed  chan struct{}
	pending []byte

	lock       sync.Mutex
	written    bytes.Buffer
	failWrites bool
	closeOnce  sync.Once
}

func newTestTransport() *testTransport {
	return &testTransport{
		readCh: make(chan []byte, 16),
		closed: make(chan struct{}),
	}
}

func (s *testTransport) Read(p []byte) (int, error) {
	if len(s.pending) == 0 {
		select {
		case b, ok := <-s.readCh:
			if !ok {
				return 0, io.EOF
			}
			s.pending = b
		case <-s.closed:
			return 0, io.ErrClosedPipe
		}
	}
	n := copy(p, s.pending)
	s.pending = s.pending[n:]
	return n, nil
}

func (s *testTransport) Write(p []byte) (int, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.failWrites {
		return 0, errors.New("write failed")
	}
	return s.written.Write(p)
}

func (s *testTransport) Close() error {
	s.closeOnce.Do(func() { close(s.closed) })
	return nil
}

func (s *testTransport) inject(frames ...[]byte) {
	for _, f := range frames {
		s.readCh <- f
	}
}

func (s *testTransport) setFailWrites(fail bool) {
	s.lock.Lock()
	s.failWrites = fail
	s.lock.Unlock()
}

// sentFrames decodes everything written so far.
func (s *testTransport) sentFrames(t *testing.T) []*Frame {
	s.lock.Lock()
	data := append([]byte(nil), s.written.Bytes()...)
	s.lock.Unlock()
	r := bytes.NewReader(data)
	var frames []*Frame
	for r.Len() > 0 {
		frame, err := DecodeFrame(r)
		require.NoError(t, err)
		frames = append(frames, frame)
	}
	return frames
}

type nodeTestEnv struct {
	t         *testing.T
	transport *testTransport
	node      *Node
	cancel    context.CancelFunc
	done      chan error
}

func newNodeTestEnv(t *testing.T) *nodeTestEnv {
	env := &nodeTestEnv{t: t, transport: newTestTransport()}
	env.node = NewNode(env.transport)
	env.node.RetryInterval = time.Millisecond
	return env
}

func (e *nodeTestEnv) run() *nodeTestEnv {
	var ctx context.Context
	ctx, e.cancel = context.WithCancel(context.Background())
	e.done = make(chan error, 1)
	go func() { e.done <- e.node.Run(ctx) }()
	return e
}

func (e *nodeTestEnv) stop() error {
	e.cancel()
	select {
	case err := <-e.done:
		return err
	case <-time.After(time.Second):
		e.t.Fatal("node not stopped")
	}
	return nil
}

func stringPayload(t *testing.T, s string) []byte {
	data, err := msgs.Marshal(msgs.NewString(s))
	require.NoError(t, err)
	return data
}

func expectTopicInfo(t *testing.T, frame *Frame, expect msgs.TopicInfo) {
	require.Equal(t, ControlTopicID, frame.TopicID)
	info, err := msgs.Unmarshal(msgs.TopicInfoType, frame.Payload)
	require.NoError(t, err)
	require.Equal(t, &expect, info)
}

func expectString(t *testing.T, ch <-chan msgs.Message, s string) {
	select {
	case msg := <-ch:
		require.Equal(t, msgs.NewString(s), msg)
	case <-time.After(time.Second):
		t.Fatalf("timeout waiting for %q", s)
	}
}

func collect() (Callback, chan msgs.Message) {
	ch := make(chan msgs.Message, 16)
	return func(msg msgs.Message) { ch <- msg }, ch
}

func TestNodePublish(t *testing.T) {
	env := newNodeTestEnv(t)
	require.NoError(t, env.node.Publish("greet", msgs.NewString("hi"), 0))

	frames := env.transport.sentFrames(t)
	require.Len(t, frames, 2)
	expectTopicInfo(t, frames[0], msgs.TopicInfo{
		TopicID:     101,
		TopicName:   "greet",
		MessageType: "std_msgs/String",
		MD5Sum:      "992ce8a1687cec8c8bd883ec73ca41d1",
		BufferSize:  DefaultBufferSize,
		Direction:   msgs.DirectionPublish,
	})
	require.Equal(t, uint16(101), frames[1].TopicID)
	msg, err := msgs.Unmarshal(msgs.StringType, frames[1].Payload)
	require.NoError(t, err)
	require.Equal(t, msgs.NewString("hi"), msg)

	require.NoError(t, env.node.Publish("greet", msgs.NewString("again"), 0))
	frames = env.transport.sentFrames(t)
	require.Len(t, frames, 3, "topic must be negotiated only once")
	require.Equal(t, &Frame{TopicID: 101, Payload: stringPayload(t, "again")}, frames[2])
	require.Equal(t, uint64(3), env.node.Stats().FramesSent)
}

func TestNodeSharedNamespace(t *testing.T) {
	env := newNodeTestEnv(t)
	cb, _ := collect()
	require.NoError(t, env.node.Publish("greet", msgs.NewString("hi"), 0))
	require.NoError(t, env.node.Subscribe("greet", msgs.StringType, cb, 0))
	require.NoError(t, env.node.Subscribe("chat", msgs.StringType, cb, 256))
	require.NoError(t, env.node.Publish("chat", msgs.NewString("x"), 0))

	frames := env.transport.sentFrames(t)
	require.Len(t, frames, 4)
	require.Equal(t, ControlTopicID, frames[0].TopicID)
	require.Equal(t, uint16(101), frames[1].TopicID)
	expectTopicInfo(t, frames[2], msgs.TopicInfo{
		TopicID:     102,
		TopicName:   "chat",
		MessageType: "std_msgs/String",
		MD5Sum:      "992ce8a1687cec8c8bd883ec73ca41d1",
		BufferSize:  256,
		Direction:   msgs.DirectionSubscribe,
	})
	require.Equal(t, uint16(102), frames[3].TopicID)

	topics := env.node.Topics()
	require.Len(t, topics, 2)
	require.Equal(t, "greet", topics[0].Name)
	require.Equal(t, msgs.DirectionPublish, topics[0].Direction)
	_, ok := env.node.Registry().Subscriber(101)
	require.True(t, ok)
}

func TestNodeInvalidArguments(t *testing.T) {
	env := newNodeTestEnv(t)
	cb, _ := collect()
	testCases := []struct {
		name string
		fn   func() error
	}{
		{"nil callback", func() error { return env.node.Subscribe("greet", msgs.StringType, nil, 0) }},
		{"nil type", func() error { return env.node.Subscribe("greet", nil, cb, 0) }},
		{"empty subscribe name", func() error { return env.node.Subscribe("", msgs.StringType, cb, 0) }},
		{"nil message", func() error { return env.node.Publish("greet", nil, 0) }},
		{"empty publish name", func() error { return env.node.Publish("", msgs.NewString("hi"), 0) }},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			require.True(t, errors.Is(tc.fn(), ErrInvalidArgument))
		})
	}
	require.Empty(t, env.transport.sentFrames(t))
	require.Empty(t, env.node.Topics())
}

func TestNodeNegotiationRetry(t *testing.T) {
	env := newNodeTestEnv(t)
	env.transport.setFailWrites(true)
	err := env.node.Publish("greet", msgs.NewString("hi"), 0)
	var transportErr *TransportError
	require.True(t, errors.As(err, &transportErr))
	require.Equal(t, "write", transportErr.Op)

	topic, ok := env.node.Registry().Lookup("greet")
	require.True(t, ok)
	require.False(t, topic.Negotiated())

	env.transport.setFailWrites(false)
	require.NoError(t, env.node.Publish("greet", msgs.NewString("hi"), 0))
	frames := env.transport.sentFrames(t)
	require.Len(t, frames, 2)
	require.Equal(t, ControlTopicID, frames[0].TopicID)
	require.Equal(t, topic.ID, frames[1].TopicID)
}

func TestNodeConcurrentPublish(t *testing.T) {
	env := newNodeTestEnv(t)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				require.NoError(t, env.node.Publish("greet", msgs.NewString("hi"), 0))
			}
		}()
	}
	wg.Wait()
	frames := env.transport.sentFrames(t)
	require.Len(t, frames, 81)
	require.Equal(t, ControlTopicID, frames[0].TopicID)
	for _, f := range frames[1:] {
		require.Equal(t, uint16(101), f.TopicID)
	}
}

func TestNodeReceive(t *testing.T) {
	env := newNodeTestEnv(t)
	cb, ch := collect()
	require.NoError(t, env.node.Subscribe("greet", msgs.StringType, cb, 0))
	env.run()

	env.transport.inject(EncodeFrame(101, stringPayload(t, "hi")))
	expectString(t, ch, "hi")
	require.Empty(t, ch)

	require.Equal(t, context.Canceled, env.stop())
	require.Equal(t, uint64(1), env.node.Stats().FramesReceived)
}

func TestNodeReceiveSurvivesBadFrames(t *testing.T) {
	env := newNodeTestEnv(t)
	cb, ch := collect()
	require.NoError(t, env.node.Subscribe("greet", msgs.StringType, cb, 0))
	env.run()
	defer env.stop()

	corrupted := EncodeFrame(101, stringPayload(t, "bad"))
	corrupted[len(corrupted)-1] ^= 0x10
	badLength := EncodeFrame(101, stringPayload(t, "bad"))
	badLength[4] ^= 0x01
	valid := EncodeFrame(101, stringPayload(t, "ok"))

	env.transport.inject(
		corrupted,
		badLength,
		EncodeFrame(200, stringPayload(t, "nobody")),
		EncodeFrame(ControlTopicID, nil),
		EncodeFrame(101, []byte{9, 0}),
		// split across reads.
		valid[:3], valid[3:],
	)
	expectString(t, ch, "ok")
	require.Empty(t, ch)

	stats := env.node.Stats()
	require.Equal(t, uint64(1), stats.ChecksumErrors)
	require.Equal(t, uint64(1), stats.FramingErrors)
	require.Equal(t, uint64(1), stats.UnknownTopics)
	require.Equal(t, uint64(1), stats.ControlFrames)
	require.Equal(t, uint64(1), stats.DecodeErrors)
	require.Equal(t, uint64(4), stats.FramesReceived)
}

func TestNodeCallbackPanic(t *testing.T) {
	env := newNodeTestEnv(t)
	ch := make(chan msgs.Message, 1)
	require.NoError(t, env.node.Subscribe("greet", msgs.StringType, func(msg msgs.Message) {
		if msg.(*msgs.String).Data == "panic" {
			panic("boom")
		}
		ch <- msg
	}, 0))
	env.run()
	defer env.stop()

	env.transport.inject(
		EncodeFrame(101, stringPayload(t, "panic")),
		EncodeFrame(101, stringPayload(t, "after")),
	)
	expectString(t, ch, "after")
	require.Equal(t, uint64(1), env.node.Stats().CallbackPanics)
}

func TestNodeReceiveTransportClosed(t *testing.T) {
	env := newNodeTestEnv(t)
	env.run()
	close(env.transport.readCh)
	select {
	case err := <-env.done:
		var transportErr *TransportError
		require.True(t, errors.As(err, &transportErr))
		require.Equal(t, io.EOF, transportErr.Err)
	case <-time.After(time.Second):
		t.Fatal("node not stopped")
	}
}

type scriptedTransport struct {
	scriptedReader
	io.Writer
}

func TestNodeReceiveRetriesTransientErrors(t *testing.T) {
	cb, ch := collect()
	rw := &scriptedTransport{Writer: io.Discard}
	node := NewNode(rw)
	node.RetryInterval = time.Millisecond
	require.NoError(t, node.Subscribe("greet", msgs.StringType, cb, 0))
	rw.reads = []scriptedRead{
		{err: errors.New("framing overrun")},
		{err: timeoutError{}},
		{data: EncodeFrame(101, stringPayload(t, "hi"))},
	}
	err := node.Run(context.Background())
	var transportErr *TransportError
	require.True(t, errors.As(err, &transportErr))
	require.True(t, transportErr.Fatal())
	expectString(t, ch, "hi")
	require.Equal(t, uint64(1), node.Stats().TransportErrors)
}

type recordingObserver struct {
	lock     sync.Mutex
	received []Frame
	sent     []Frame
}

func (o *recordingObserver) FrameReceived(f Frame) {
	o.lock.Lock()
	o.received = append(o.received, f)
	o.lock.Unlock()
}

func (o *recordingObserver) FrameSent(f Frame) {
	o.lock.Lock()
	o.sent = append(o.sent, f)
	o.lock.Unlock()
}

func TestNodeObserver(t *testing.T) {
	env := newNodeTestEnv(t)
	observer := &recordingObserver{}
	env.node.Observer = observer
	cb, ch := collect()
	require.NoError(t, env.node.Subscribe("greet", msgs.StringType, cb, 0))
	env.run()
	defer env.stop()

	env.transport.inject(EncodeFrame(300, nil), EncodeFrame(101, stringPayload(t, "hi")))
	expectString(t, ch, "hi")

	observer.lock.Lock()
	defer observer.lock.Unlock()
	require.Len(t, observer.sent, 1)
	require.Equal(t, ControlTopicID, observer.sent[0].TopicID)
	require.Equal(t, []Frame{
		{TopicID: 300},
		{TopicID: 101, Payload: stringPayload(t, "hi")},
	}, observer.received)
}
