// Package engine implements the tunnel peer: the command processor,
// the periodic topic and subscription scanners, per-topic forwarder
// tasks, and the event loop that multiplexes them over a single
// wire.Encoder/wire.Decoder pair.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/ros-assistant/bustunnel/internal/bus"
	"github.com/ros-assistant/bustunnel/internal/wire"
)

const (
	defaultScanInterval    = 10 * time.Second
	defaultSpinInterval    = 100 * time.Millisecond
	defaultChannelCapacity = 10
)

type config struct {
	scanInterval    time.Duration
	spinInterval    time.Duration
	channelCapacity int
}

// Option tunes an Engine's timers and channel capacities. The defaults
// match spec.md §5.
type Option func(*config)

// WithScanInterval overrides how often the local topic list is polled.
func WithScanInterval(d time.Duration) Option {
	return func(c *config) { c.scanInterval = d }
}

// WithSpinInterval overrides how often downstream consumer counts are
// polled to decide subscription edges.
func WithSpinInterval(d time.Duration) Option {
	return func(c *config) { c.spinInterval = d }
}

// WithChannelCapacity overrides the bound on both the inbound and
// outbound message channels.
func WithChannelCapacity(n int) Option {
	return func(c *config) { c.channelCapacity = n }
}

// Engine is one side of a tunnel: it owns a single transport connection
// for its entire run and drives the handshake, scanners, forwarders and
// command processor over it until the connection ends or ctx is
// cancelled.
type Engine struct {
	busA bus.Adapter
	log  Logger
	cfg  config
}

// New builds an Engine against the given local bus adapter.
func New(busA bus.Adapter, log Logger, opts ...Option) *Engine {
	cfg := config{
		scanInterval:    defaultScanInterval,
		spinInterval:    defaultSpinInterval,
		channelCapacity: defaultChannelCapacity,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Engine{busA: busA, log: log, cfg: cfg}
}

// Run performs the handshake over conn and then drives the tunnel until
// ctx is cancelled, the remote hangs up or reports a fatal error, or an
// unrecoverable local error occurs. Run always closes conn before
// returning. A nil return means the session ended gracefully.
func (e *Engine) Run(ctx context.Context, conn io.ReadWriteCloser) error {
	enc := wire.NewEncoder(conn)
	dec := wire.NewDecoder(conn)

	if err := PerformHandshake(ctx, enc, dec, e.log); err != nil {
		conn.Close()
		return err
	}

	state := NewState()
	inbound := make(chan wire.Message, e.cfg.channelCapacity)
	outbound := make(chan wire.Message, e.cfg.channelCapacity)
	invoker := NewInvoker()
	processor := NewProcessor(state, e.busA, invoker, outbound, e.log)

	readErrCh := make(chan error, 1)
	stopReader := make(chan struct{})
	invoker.Spawn(func() { readLoop(dec, inbound, stopReader, readErrCh) })

	scanTimer := time.NewTicker(e.cfg.scanInterval)
	defer scanTimer.Stop()
	spinTimer := time.NewTicker(e.cfg.spinInterval)
	defer spinTimer.Stop()

	var (
		runErr      error
		sendHangup  bool
		remoteFatal bool
	)

	// Both scanners run once immediately rather than waiting out a full
	// tick interval, so the remote learns about the already-published
	// topic list and subscription state without an initial delay.
	if err := scanLocalTopics(ctx, state, e.busA, outbound, e.log); err != nil && !errors.Is(err, context.Canceled) {
		runErr = err
		goto shutdown
	}
	if err := scanSubscriptions(ctx, state, outbound, e.log); err != nil && !errors.Is(err, context.Canceled) {
		runErr = err
		goto shutdown
	}

loop:
	for {
		select {
		case <-ctx.Done():
			sendHangup = true
			break loop

		case err := <-readErrCh:
			runErr = fmt.Errorf("engine: read loop ended: %w", err)
			break loop

		case msg := <-inbound:
			result, err := processor.Process(ctx, msg)
			if err != nil {
				runErr = err
				break loop
			}
			if result.Control == ControlShutdown {
				remoteFatal = result.RemoteFatal
				if remoteFatal {
					runErr = errors.New("engine: remote reported a fatal error")
				} else {
					sendHangup = true
				}
				break loop
			}

		case msg := <-outbound:
			if err := enc.EncodeMessage(msg); err != nil {
				runErr = fmt.Errorf("engine: write frame: %w", err)
				break loop
			}

		case <-scanTimer.C:
			if err := scanLocalTopics(ctx, state, e.busA, outbound, e.log); err != nil && !errors.Is(err, context.Canceled) {
				runErr = err
				break loop
			}

		case <-spinTimer.C:
			if err := scanSubscriptions(ctx, state, outbound, e.log); err != nil && !errors.Is(err, context.Canceled) {
				runErr = err
				break loop
			}
		}
	}

shutdown:
	state.cancelAllForwarders()

	if !remoteFatal {
		e.drainOutbound(enc, outbound)
	}

	switch {
	case remoteFatal:
		// The remote already knows the session is over; sending
		// anything back onto its abandoned stream would be wasted.
	case sendHangup:
		if err := enc.EncodeMessage(wire.Hangup{}); err != nil {
			e.log.Warnf("failed to send farewell Hangup: %v", err)
		}
	case runErr != nil:
		if err := enc.EncodeMessage(wire.FatalError{Message: runErr.Error()}); err != nil {
			e.log.Warnf("failed to send farewell FatalError: %v", err)
		}
	}

	close(stopReader)
	conn.Close()
	invoker.Wait()

	return runErr
}

// drainOutbound flushes any messages already buffered on outbound
// before the farewell frame is written, so a forwarder's last
// PublishToTopic or a final scan tick's SetTopicSubscribed isn't
// silently lost. Only ever called after the loop has exited and all
// forwarders are cancelled, so outbound's buffer is no longer growing.
func (e *Engine) drainOutbound(enc *wire.Encoder, outbound <-chan wire.Message) {
	for {
		select {
		case msg := <-outbound:
			if err := enc.EncodeMessage(msg); err != nil {
				e.log.Warnf("failed to flush buffered message on shutdown: %v", err)
				return
			}
		default:
			return
		}
	}
}

// readLoop decodes frames until dec's underlying connection closes (or
// errors), or stop is closed. It is spawned once per Run and always
// exits once conn.Close() unblocks its pending read.
func readLoop(dec *wire.Decoder, inbound chan<- wire.Message, stop <-chan struct{}, errCh chan<- error) {
	for {
		msg, err := dec.DecodeMessage()
		if err != nil {
			select {
			case errCh <- err:
			case <-stop:
			}
			return
		}

		select {
		case inbound <- msg:
		case <-stop:
			return
		}
	}
}
