package engine

import (
	"context"
	"fmt"

	"github.com/ros-assistant/bustunnel/internal/bus"
	"github.com/ros-assistant/bustunnel/internal/wire"
)

// ControlFlow tells the event loop whether to keep running after a
// processed message.
type ControlFlow int

const (
	ControlContinue ControlFlow = iota
	ControlShutdown
)

// Result is the outcome of processing a single inbound message.
type Result struct {
	Control ControlFlow

	// RemoteFatal is set when Control is ControlShutdown because the
	// remote sent FatalError. It tells the event loop not to echo a
	// Hangup or FatalError of its own back onto a stream the remote has
	// already abandoned.
	RemoteFatal bool
}

// Processor applies inbound wire.Messages to a State, calling out to
// the local bus adapter and spawning forwarder goroutines as needed.
// Process is only ever called from the goroutine that owns state, so
// state itself needs no locking.
type Processor struct {
	state    *State
	busA     bus.Adapter
	invoker  Invoker
	outbound chan<- wire.Message
	log      Logger
}

// NewProcessor builds a Processor over the given state and dependencies.
func NewProcessor(state *State, busA bus.Adapter, invoker Invoker, outbound chan<- wire.Message, log Logger) *Processor {
	return &Processor{state: state, busA: busA, invoker: invoker, outbound: outbound, log: log}
}

// Process applies a single inbound message and reports whether the
// event loop should keep running.
func (p *Processor) Process(ctx context.Context, msg wire.Message) (Result, error) {
	switch m := msg.(type) {
	case wire.FatalError:
		p.log.Errorf("remote reported a fatal error: %s", m.Message)
		return Result{Control: ControlShutdown, RemoteFatal: true}, nil

	case wire.Hangup:
		p.log.Info("remote requested a graceful hangup")
		return Result{Control: ControlShutdown}, nil

	case wire.NewTopic:
		p.handleNewTopic(ctx, m)
		return Result{Control: ControlContinue}, nil

	case wire.DeletedTopic:
		p.handleDeletedTopic(m)
		return Result{Control: ControlContinue}, nil

	case wire.SetTopicSubscribed:
		p.handleSetTopicSubscribed(ctx, m)
		return Result{Control: ControlContinue}, nil

	case wire.PublishToTopic:
		p.handlePublishToTopic(ctx, m)
		return Result{Control: ControlContinue}, nil

	default:
		return Result{}, fmt.Errorf("engine: unexpected message type %T", msg)
	}
}

// handleNewTopic mirrors a topic the remote just announced. A repeated
// announcement for a name we already mirror is a no-op: the type is
// pinned at first sight and never revisited.
func (p *Processor) handleNewTopic(ctx context.Context, m wire.NewTopic) {
	if _, ok := p.state.inboundPublishers[m.Name]; ok {
		p.log.Debugf("ignoring duplicate NewTopic for %q", m.Name)
		return
	}

	pub, err := p.busA.CreatePublisher(ctx, m.Name, m.MessageType)
	if err != nil {
		p.log.Errorf("create mirror publisher for %q: %v", m.Name, err)
		return
	}
	p.state.inboundPublishers[m.Name] = pub
	p.log.Infof("mirroring remote topic %q (%s)", m.Name, m.MessageType)
}

// handleDeletedTopic forgets a mirrored publisher the remote says is
// gone. Any consumer-count bookkeeping for it is dropped too, so the
// subscription scanner won't try to unsubscribe a name that no longer
// needs an entry sent at all.
func (p *Processor) handleDeletedTopic(m wire.DeletedTopic) {
	if _, ok := p.state.inboundPublishers[m.Name]; !ok {
		p.log.Warnf("ignoring DeletedTopic for unknown topic %q", m.Name)
		return
	}
	delete(p.state.inboundPublishers, m.Name)
	delete(p.state.currentlySubscribed, m.Name)
	p.log.Infof("remote topic %q removed", m.Name)
}

// handleSetTopicSubscribed starts or stops the forwarder task relaying
// a locally-known topic's payloads to the remote. A repeated subscribe
// request replaces the prior forwarder: the old handle is cancelled and
// a fresh one spawned in its place, matching the double-subscribe
// policy: log and overwrite.
func (p *Processor) handleSetTopicSubscribed(ctx context.Context, m wire.SetTopicSubscribed) {
	if m.Subscribed {
		if cancel, ok := p.state.outboundSubscribers[m.Name]; ok {
			p.log.Warnf("duplicate subscribe for %q, replacing existing forwarder", m.Name)
			cancel()
			delete(p.state.outboundSubscribers, m.Name)
		}
		topicType, known := p.state.known[m.Name]
		if !known {
			p.log.Warnf("subscribe request for unknown local topic %q", m.Name)
			return
		}

		fctx, cancel := context.WithCancel(ctx)
		p.state.outboundSubscribers[m.Name] = cancel
		name, outbound, busA, log := m.Name, p.outbound, p.busA, p.log
		p.invoker.Spawn(func() {
			runForwarder(fctx, busA, name, topicType, outbound, log)
		})
		p.log.Infof("forwarding %q to remote", m.Name)
		return
	}

	cancel, ok := p.state.outboundSubscribers[m.Name]
	if !ok {
		p.log.Warnf("ignoring unsubscribe for %q: not currently forwarding", m.Name)
		return
	}
	cancel()
	delete(p.state.outboundSubscribers, m.Name)
	p.log.Infof("stopped forwarding %q to remote", m.Name)
}

// handlePublishToTopic republishes a payload the remote forwarded onto
// our mirror of the topic it belongs to.
func (p *Processor) handlePublishToTopic(ctx context.Context, m wire.PublishToTopic) {
	pub, ok := p.state.inboundPublishers[m.Name]
	if !ok {
		p.log.Warnf("dropping publish for unknown mirrored topic %q", m.Name)
		return
	}
	if err := pub.Publish(ctx, m.Payload); err != nil {
		p.log.Errorf("publish to mirrored topic %q: %v", m.Name, err)
	}
}
