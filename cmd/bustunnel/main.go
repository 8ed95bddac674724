// Command bustunnel bridges a local publish/subscribe bus to a remote
// peer across stdin/stdout. It is meant to be launched at the far end
// of a remote shell, with the near end launching an identical process
// and piping its own stdin/stdout to the remote one.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/prometheus/common/log"

	"github.com/ros-assistant/bustunnel/internal/bus/memory"
	"github.com/ros-assistant/bustunnel/internal/engine"
	"github.com/ros-assistant/bustunnel/internal/logging"
)

const (
	envScanInterval = "BUSTUNNEL_SCAN_INTERVAL"
	envSpinInterval = "BUSTUNNEL_SPIN_INTERVAL"

	defaultScanInterval = 10 * time.Second
	defaultSpinInterval = 100 * time.Millisecond
)

func main() {
	os.Exit(run())
}

func run() int {
	if isatty.IsTerminal(os.Stdout.Fd()) {
		log.Error("refusing to run with stdout attached to a terminal; bustunnel speaks a binary protocol over stdout")
		return 1
	}

	color.NoColor = !isatty.IsTerminal(os.Stderr.Fd())
	banner := color.New(color.FgCyan, color.Bold).SprintFunc()
	fmt.Fprintln(os.Stderr, banner("bustunnel starting"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	eng := engine.New(
		memory.New(),
		logging.NewLogrusLogger("engine"),
		engine.WithScanInterval(durationFromEnv(envScanInterval, defaultScanInterval)),
		engine.WithSpinInterval(durationFromEnv(envSpinInterval, defaultSpinInterval)),
	)

	if err := eng.Run(ctx, stdioPipe{}); err != nil {
		log.Errorf("tunnel ended: %v", err)
		return 1
	}

	fmt.Fprintln(os.Stderr, banner("bustunnel exiting"))
	return 0
}

// durationFromEnv parses name as a time.Duration, falling back to def
// when the variable is unset or malformed. The core engine never reads
// the environment itself; only this process boundary does.
func durationFromEnv(name string, def time.Duration) time.Duration {
	raw, ok := os.LookupEnv(name)
	if !ok {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		log.Warnf("%s=%q is not a valid duration, using default %s", name, raw, def)
		return def
	}
	return d
}

// stdioPipe adapts os.Stdin/os.Stdout to the single io.ReadWriteCloser
// the engine expects. Close tears down both directions; a real remote
// shell ending its session suffices to unblock any pending read.
type stdioPipe struct{}

func (stdioPipe) Read(p []byte) (int, error)  { return os.Stdin.Read(p) }
func (stdioPipe) Write(p []byte) (int, error) { return os.Stdout.Write(p) }
func (stdioPipe) Close() error {
	_ = os.Stdin.Close()
	return os.Stdout.Close()
}
