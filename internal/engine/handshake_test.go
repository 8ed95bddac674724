package engine

import (
	"context"
	"io"
	"testing"

	"github.com/ros-assistant/bustunnel/internal/logging"
	"github.com/ros-assistant/bustunnel/internal/wire"
)

func TestPerformHandshake_MatchingVersionsSucceed(t *testing.T) {
	clientR, serverW := io.Pipe()
	serverR, clientW := io.Pipe()

	clientEnc := wire.NewEncoder(clientW)
	clientDec := wire.NewDecoder(clientR)
	serverEnc := wire.NewEncoder(serverW)
	serverDec := wire.NewDecoder(serverR)

	log := logging.NewLogrusLogger("test")

	errCh := make(chan error, 2)
	go func() { errCh <- PerformHandshake(context.Background(), clientEnc, clientDec, log) }()
	go func() { errCh <- PerformHandshake(context.Background(), serverEnc, serverDec, log) }()

	for i := 0; i < 2; i++ {
		if err := <-errCh; err != nil {
			t.Fatalf("PerformHandshake: %v", err)
		}
	}
}

func TestPerformHandshake_VersionMismatchIsFatal(t *testing.T) {
	clientR, serverW := io.Pipe()
	serverR, clientW := io.Pipe()

	clientEnc := wire.NewEncoder(clientW)
	clientDec := wire.NewDecoder(clientR)
	serverEnc := wire.NewEncoder(serverW)
	serverDec := wire.NewDecoder(serverR)

	log := logging.NewLogrusLogger("test")

	clientErrCh := make(chan error, 1)
	go func() { clientErrCh <- PerformHandshake(context.Background(), clientEnc, clientDec, log) }()

	// Act as a remote peer speaking a different version.
	if err := serverEnc.EncodeHeader(wire.Header{Version: ProtocolVersion + 1}); err != nil {
		t.Fatalf("EncodeHeader: %v", err)
	}
	if _, err := serverDec.DecodeHeader(); err != nil {
		t.Fatalf("DecodeHeader: %v", err)
	}

	msg, err := serverDec.DecodeMessage()
	if err != nil {
		t.Fatalf("DecodeMessage: %v", err)
	}
	fatal, ok := msg.(wire.FatalError)
	if !ok {
		t.Fatalf("expected FatalError, got %T", msg)
	}
	if fatal.Message != mismatchMessage {
		t.Fatalf("unexpected mismatch message: %q", fatal.Message)
	}

	if err := <-clientErrCh; err == nil {
		t.Fatal("expected PerformHandshake to fail on version mismatch")
	}
}
