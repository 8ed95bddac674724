package engine

import (
	"context"

	"github.com/ros-assistant/bustunnel/internal/bus"
	"github.com/ros-assistant/bustunnel/internal/wire"
)

// runForwarder relays payloads published on a locally-known topic to
// the remote peer, until ctx is cancelled (the remote unsubscribed, or
// the engine is shutting down) or the underlying subscription ends.
// It owns exactly one bus.Subscription for its entire lifetime.
func runForwarder(ctx context.Context, busA bus.Adapter, name, topicType string, outbound chan<- wire.Message, log Logger) {
	sub, err := busA.SubscribeRaw(ctx, name, topicType)
	if err != nil {
		log.Errorf("subscribe to %q for forwarding: %v", name, err)
		return
	}
	defer sub.Close()

	for {
		payload, ok, err := sub.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Warnf("forwarder for %q stopping on read error: %v", name, err)
			return
		}
		if !ok {
			log.Debugf("forwarder for %q: subscription ended", name)
			return
		}

		select {
		case outbound <- wire.PublishToTopic{Name: name, Payload: payload}:
		case <-ctx.Done():
			return
		}
	}
}
