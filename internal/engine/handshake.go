package engine

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-version"

	"github.com/ros-assistant/bustunnel/internal/wire"
)

// ProtocolVersion is exchanged in the Header frame before anything else
// crosses the wire. It changes only when the framing or message
// enumeration itself changes incompatibly.
const ProtocolVersion uint16 = 0

// mismatchMessage is sent verbatim when the two peers' Header.Version
// fields disagree. The wording is fixed: operators grep logs for it.
const mismatchMessage = "Remote version incompatible."

// PerformHandshake exchanges Header frames over enc/dec and fails
// closed on any version mismatch. It sends our header concurrently with
// reading the remote's, so two peers dialing each other never deadlock,
// even over an unbuffered transport such as net.Pipe where a write
// blocks until the other side reads. If the read fails, a still-pending
// send finishes once the caller closes the transport.
func PerformHandshake(ctx context.Context, enc *wire.Encoder, dec *wire.Decoder, log Logger) error {
	sendErr := make(chan error, 1)
	go func() { sendErr <- enc.EncodeHeader(wire.Header{Version: ProtocolVersion}) }()

	remote, err := dec.DecodeHeader()
	if err != nil {
		return fmt.Errorf("engine: read handshake header: %w", err)
	}
	if err := <-sendErr; err != nil {
		return fmt.Errorf("engine: send handshake header: %w", err)
	}

	logVersionSkew(log, remote.Version)

	if remote.Version != ProtocolVersion {
		_ = enc.EncodeMessage(wire.FatalError{Message: mismatchMessage})
		return fmt.Errorf("engine: %s (local=%d remote=%d)", mismatchMessage, ProtocolVersion, remote.Version)
	}

	return nil
}

// logVersionSkew is purely diagnostic: it never influences whether the
// handshake succeeds, only what gets logged about it. Parsing both
// sides as dotted versions lets us say "remote is newer/older" instead
// of just "different".
func logVersionSkew(log Logger, remoteVersion uint16) {
	if remoteVersion == ProtocolVersion {
		return
	}

	local, err := version.NewVersion(fmt.Sprintf("%d.0.0", ProtocolVersion))
	if err != nil {
		return
	}
	remote, err := version.NewVersion(fmt.Sprintf("%d.0.0", remoteVersion))
	if err != nil {
		return
	}

	switch {
	case remote.GreaterThan(local):
		log.Warnf("remote protocol version %d is newer than ours (%d)", remoteVersion, ProtocolVersion)
	case remote.LessThan(local):
		log.Warnf("remote protocol version %d is older than ours (%d)", remoteVersion, ProtocolVersion)
	}
}
