// Package bus defines the abstract shim over a local publish/subscribe
// runtime that internal/engine consumes. Concrete adapters (a ROS
// bridge, a serial device bridge, and so on) live outside this module;
// internal/bus/memory ships a reference/test implementation.
package bus

import (
	"context"
	"time"
)

// Adapter is everything the tunnel engine needs from a local bus
// runtime.
type Adapter interface {
	// ListTopics returns the topics currently known to the local bus,
	// each mapped to the list of type identifiers reported for it.
	ListTopics(ctx context.Context) (map[string][]string, error)

	// CreatePublisher creates a publisher for a topic that was
	// announced by the remote peer (a mirror publisher).
	CreatePublisher(ctx context.Context, name, topicType string) (Publisher, error)

	// SubscribeRaw opens a raw subscription to a locally-known topic,
	// for relaying its payloads to the remote peer.
	SubscribeRaw(ctx context.Context, name, topicType string) (Subscription, error)

	// ServiceOnce gives adapters that require explicit servicing (no
	// background I/O thread of their own) a chance to make progress.
	// Adapters that service themselves may implement this as a no-op.
	ServiceOnce(ctx context.Context, maxWait time.Duration) error
}

// Publisher is an opaque handle to a mirror publisher created on the
// local bus for a topic announced by the remote peer.
type Publisher interface {
	// Publish forwards a raw payload received from the remote peer
	// onto the local bus.
	Publish(ctx context.Context, payload []byte) error

	// DownstreamConsumerCount reports how many local consumers are
	// currently attached to this publisher. The subscription scanner
	// polls this to decide whether to ask the remote peer to start or
	// stop forwarding.
	DownstreamConsumerCount(ctx context.Context) (int, error)
}

// Subscription is a live, non-restartable stream of payloads from a
// locally-known topic.
type Subscription interface {
	// Next blocks until a payload is available, the subscription
	// stream ends (ok=false, err=nil), or ctx is done (err=ctx.Err()).
	Next(ctx context.Context) (payload []byte, ok bool, err error)

	// Close releases the underlying subscription. Idempotent.
	Close()
}
