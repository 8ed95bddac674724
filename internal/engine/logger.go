package engine

import "github.com/ros-assistant/bustunnel/internal/logging"

// Logger is the logging surface used throughout this package. It is an
// alias rather than a fresh interface so that any internal/logging.Logger
// (in particular logging.NewLogrusLogger) can be passed in directly.
type Logger = logging.Logger
