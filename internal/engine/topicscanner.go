package engine

import (
	"context"
	"fmt"

	"github.com/ros-assistant/bustunnel/internal/bus"
	"github.com/ros-assistant/bustunnel/internal/wire"
)

// scanLocalTopics diffs the local bus's current topic list against
// State.known and emits NewTopic/DeletedTopic announcements for the
// difference. Only ever called from the loop goroutine, between ticks
// of the scan timer.
func scanLocalTopics(ctx context.Context, state *State, busA bus.Adapter, outbound chan<- wire.Message, log Logger) error {
	topics, err := busA.ListTopics(ctx)
	if err != nil {
		return fmt.Errorf("engine: list local topics: %w", err)
	}

	for name, types := range topics {
		if _, ok := state.known[name]; ok {
			continue
		}
		if len(types) == 0 {
			log.Errorf("topic %q reports no message types, skipping", name)
			continue
		}
		topicType := types[0]
		state.known[name] = topicType

		select {
		case outbound <- wire.NewTopic{Name: name, MessageType: topicType}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	for name := range state.known {
		if _, ok := topics[name]; ok {
			continue
		}
		delete(state.known, name)
		if cancel, ok := state.outboundSubscribers[name]; ok {
			cancel()
			delete(state.outboundSubscribers, name)
		}

		select {
		case outbound <- wire.DeletedTopic{Name: name}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return nil
}
