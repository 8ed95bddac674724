package engine

import (
	"context"

	"github.com/ros-assistant/bustunnel/internal/wire"
)

// scanSubscriptions polls the downstream consumer count of every
// mirror publisher and asks the remote to start or stop forwarding the
// corresponding topic accordingly. State.currentlySubscribed debounces
// this against repeated identical requests on every tick.
func scanSubscriptions(ctx context.Context, state *State, outbound chan<- wire.Message, log Logger) error {
	for name, pub := range state.inboundPublishers {
		count, err := pub.DownstreamConsumerCount(ctx)
		if err != nil {
			log.Warnf("consumer count for %q: %v", name, err)
			continue
		}

		_, subscribed := state.currentlySubscribed[name]
		switch {
		case count > 0 && !subscribed:
			state.currentlySubscribed[name] = struct{}{}
			select {
			case outbound <- wire.SetTopicSubscribed{Name: name, Subscribed: true}:
			case <-ctx.Done():
				return ctx.Err()
			}
		case count == 0 && subscribed:
			delete(state.currentlySubscribed, name)
			select {
			case outbound <- wire.SetTopicSubscribed{Name: name, Subscribed: false}:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	for name := range state.currentlySubscribed {
		if _, ok := state.inboundPublishers[name]; !ok {
			delete(state.currentlySubscribed, name)
		}
	}

	return nil
}
