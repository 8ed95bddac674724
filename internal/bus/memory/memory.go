// Package memory is a reference bus.Adapter backed by in-process
// channels and maps. It stands in for a real local bus (ROS, a serial
// device bridge, and so on) in tests and local smoke runs; production
// deployments inject their own adapter satisfying bus.Adapter instead.
package memory

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ros-assistant/bustunnel/internal/bus"
)

// Adapter is a test/demo double for a local publish/subscribe bus. The
// zero value is not usable; construct with New.
type Adapter struct {
	mu         sync.Mutex
	topics     map[string][]string
	streams    map[string]*topicStream
	publishers map[string]*publisher
}

// New returns an empty Adapter: no topics, no mirror publishers.
func New() *Adapter {
	return &Adapter{
		topics:     make(map[string][]string),
		streams:    make(map[string]*topicStream),
		publishers: make(map[string]*publisher),
	}
}

// --- Driver API: simulates the real local bus side of the adapter. ---

// AddLocalTopic announces a topic on the local bus, as if a real
// publisher had just appeared. Safe to call repeatedly; each call
// overwrites the advertised type list, but once the engine has pinned
// a type for the name it ignores later lists, matching the "no type
// changes" invariant.
func (a *Adapter) AddLocalTopic(name string, types ...string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.topics[name] = append([]string(nil), types...)
}

// RemoveLocalTopic makes a topic disappear from the local bus.
func (a *Adapter) RemoveLocalTopic(name string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.topics, name)
}

// PublishLocal simulates the local bus emitting a payload on an
// existing topic. It blocks until the engine's raw subscription (if
// any) accepts the payload, ctx is cancelled, or there is no
// subscriber (in which case the payload is silently dropped, matching
// ordinary best-effort pub/sub semantics).
func (a *Adapter) PublishLocal(ctx context.Context, name string, payload []byte) {
	a.mu.Lock()
	ts := a.streams[name]
	a.mu.Unlock()
	if ts == nil {
		return
	}
	ts.publish(ctx, payload)
}

// AttachConsumer increments the downstream consumer count reported for
// a mirror publisher created via CreatePublisher, simulating a local
// consumer subscribing to the mirrored topic.
func (a *Adapter) AttachConsumer(name string) error {
	a.mu.Lock()
	p := a.publishers[name]
	a.mu.Unlock()
	if p == nil {
		return fmt.Errorf("memory: no mirror publisher for %q", name)
	}
	atomic.AddInt32(&p.consumerCount, 1)
	return nil
}

// DetachConsumer reverses AttachConsumer.
func (a *Adapter) DetachConsumer(name string) error {
	a.mu.Lock()
	p := a.publishers[name]
	a.mu.Unlock()
	if p == nil {
		return fmt.Errorf("memory: no mirror publisher for %q", name)
	}
	atomic.AddInt32(&p.consumerCount, -1)
	return nil
}

// Received returns the payloads published through the named mirror
// publisher, in arrival order.
func (a *Adapter) Received(name string) [][]byte {
	a.mu.Lock()
	p := a.publishers[name]
	a.mu.Unlock()
	if p == nil {
		return nil
	}
	return p.snapshot()
}

// HasPublisher reports whether a mirror publisher currently exists for
// name.
func (a *Adapter) HasPublisher(name string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.publishers[name]
	return ok
}

// HasSubscriber reports whether some raw subscription (typically a
// forwarder task) is currently attached to name, i.e. whether
// PublishLocal would deliver rather than drop.
func (a *Adapter) HasSubscriber(name string) bool {
	a.mu.Lock()
	ts, ok := a.streams[name]
	a.mu.Unlock()
	if !ok {
		return false
	}
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return ts.sub != nil
}

// --- bus.Adapter implementation: consumed by internal/engine. ---

func (a *Adapter) ListTopics(ctx context.Context) (map[string][]string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make(map[string][]string, len(a.topics))
	for name, types := range a.topics {
		out[name] = append([]string(nil), types...)
	}
	return out, nil
}

func (a *Adapter) CreatePublisher(ctx context.Context, name, topicType string) (bus.Publisher, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	p := &publisher{name: name, topicType: topicType}
	a.publishers[name] = p
	return p, nil
}

func (a *Adapter) SubscribeRaw(ctx context.Context, name, topicType string) (bus.Subscription, error) {
	a.mu.Lock()
	ts, ok := a.streams[name]
	if !ok {
		ts = newTopicStream()
		a.streams[name] = ts
	}
	a.mu.Unlock()

	sub := &subscription{ts: ts, ch: make(chan []byte), closed: make(chan struct{})}
	ts.setSub(sub)
	return sub, nil
}

// ServiceOnce is a no-op: the memory adapter delivers everything
// synchronously through channels and needs no explicit servicing.
func (a *Adapter) ServiceOnce(ctx context.Context, maxWait time.Duration) error {
	return nil
}

// --- internals ---

// topicStream fans a single active raw subscription out from
// PublishLocal calls. Only one subscriber is ever expected at a time,
// matching the engine's "at most one forwarder per topic" invariant.
type topicStream struct {
	mu  sync.Mutex
	sub *subscription
}

func newTopicStream() *topicStream {
	return &topicStream{}
}

func (ts *topicStream) setSub(s *subscription) {
	ts.mu.Lock()
	ts.sub = s
	ts.mu.Unlock()
}

func (ts *topicStream) clearSub(s *subscription) {
	ts.mu.Lock()
	if ts.sub == s {
		ts.sub = nil
	}
	ts.mu.Unlock()
}

func (ts *topicStream) publish(ctx context.Context, payload []byte) {
	ts.mu.Lock()
	sub := ts.sub
	ts.mu.Unlock()
	if sub == nil {
		return
	}
	select {
	case sub.ch <- payload:
	case <-sub.closed:
	case <-ctx.Done():
	}
}

type subscription struct {
	ts        *topicStream
	ch        chan []byte
	closeOnce sync.Once
	closed    chan struct{}
}

func (s *subscription) Next(ctx context.Context) ([]byte, bool, error) {
	select {
	case <-ctx.Done():
		return nil, false, ctx.Err()
	case <-s.closed:
		return nil, false, nil
	case payload := <-s.ch:
		return payload, true, nil
	}
}

func (s *subscription) Close() {
	s.closeOnce.Do(func() {
		close(s.closed)
		s.ts.clearSub(s)
	})
}

type publisher struct {
	name, topicType string

	mu            sync.Mutex
	received      [][]byte
	consumerCount int32
}

func (p *publisher) Publish(ctx context.Context, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.received = append(p.received, append([]byte(nil), payload...))
	return nil
}

func (p *publisher) DownstreamConsumerCount(ctx context.Context) (int, error) {
	return int(atomic.LoadInt32(&p.consumerCount)), nil
}

func (p *publisher) snapshot() [][]byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([][]byte, len(p.received))
	copy(out, p.received)
	return out
}
