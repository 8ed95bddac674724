package engine

import (
	"context"

	"github.com/ros-assistant/bustunnel/internal/bus"
)

// State holds every map described in spec.md §3. It is exclusively
// owned by the goroutine running Engine.Run; nothing here is
// synchronized because nothing else is ever allowed to touch it.
type State struct {
	// known maps a local topic name to its pinned type identifier, for
	// topics the local bus currently exposes.
	known map[string]string

	// inboundPublishers maps a topic name to the local mirror
	// publisher created for a topic the remote peer announced.
	inboundPublishers map[string]bus.Publisher

	// outboundSubscribers maps a topic name to the cancellation handle
	// of the forwarder task currently relaying that topic's payloads
	// to the remote peer.
	outboundSubscribers map[string]context.CancelFunc

	// currentlySubscribed is the set of mirror-publisher names for
	// which we have already told the remote to start forwarding. It
	// exists purely to debounce edges in the subscription scanner.
	currentlySubscribed map[string]struct{}
}

// NewState returns an empty State, as at process startup.
func NewState() *State {
	return &State{
		known:               make(map[string]string),
		inboundPublishers:   make(map[string]bus.Publisher),
		outboundSubscribers: make(map[string]context.CancelFunc),
		currentlySubscribed: make(map[string]struct{}),
	}
}

// cancelAllForwarders fires every outstanding forwarder cancellation
// handle. Called once, during shutdown.
func (s *State) cancelAllForwarders() {
	for name, cancel := range s.outboundSubscribers {
		cancel()
		delete(s.outboundSubscribers, name)
	}
}
