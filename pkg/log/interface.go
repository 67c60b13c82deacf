// Package log provides the structured logging interface used across the
// bikeshare training job.
//
// The interface is slog-shaped (message plus alternating key/value fields) and
// backed by zerolog. Every pipeline component obtains a named logger and tags
// its records with the standard keys in attributes.go so that row counts,
// fold metrics and stage timings can be filtered downstream.
//
// Example usage:
//   logger := log.GetLoggerWithName("cleaning").With(
//       log.PhaseKey, log.PhasePreprocessing,
//   )
//   logger.Info("duration filter applied",
//       log.OperationKey, "filter",
//       log.SamplesKey, 90,
//   )

package log

import (
	"context"
)

// Logger is a structured logger with slog-style alternating key/value fields.
//
// Implementations must be safe for concurrent use: grid-search folds log from
// their own goroutines.
type Logger interface {
	// Debug logs per-fold and per-tree detail that is off in production.
	Debug(msg string, fields ...any)

	// Info logs stage progress, row counts and final metrics.
	//
	//   logger.Info("cross-validation finished",
	//       log.DurationMsKey, 5432,
	//       log.RMSEKey, 0.41,
	//   )
	Info(msg string, fields ...any)

	// Warn logs conditions that exclude data without failing the run.
	//
	//   logger.Warn("rows excluded",
	//       log.ExcludedKey, 12,
	//       "reason", "unparseable start date",
	//   )
	Warn(msg string, fields ...any)

	// Error logs a fatal condition. An error passed under ErrAttrKey is
	// rendered together with its stack trace.
	//
	//   logger.Error("training failed",
	//       log.ErrAttrKey, err,
	//       log.OperationKey, log.OperationFit,
	//   )
	Error(msg string, fields ...any)

	// With returns a child logger that adds fields to every record.
	//
	//   candidateLogger := logger.With(
	//       log.ModelNameKey, "RandomForestRegressor",
	//       log.CandidateKey, 2,
	//   )
	With(fields ...any) Logger

	// Enabled reports whether a record at level would be emitted.
	Enabled(ctx context.Context, level Level) bool
}

// Level represents a logging level, compatible with slog.Level.
type Level int

// Standard logging levels, values are compatible with slog.Level.
const (
	LevelDebug Level = -4 // Detailed diagnostic information
	LevelInfo  Level = 0  // General operational information
	LevelWarn  Level = 4  // Warning conditions
	LevelError Level = 8  // Error conditions
)

// String returns the string representation of the log level.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// LoggerProvider creates loggers. Tests swap the global provider for a
// TestLoggerProvider to capture output.
type LoggerProvider interface {
	// GetLogger returns the default logger instance.
	GetLogger() Logger

	// GetLoggerWithName returns a logger tagged with a component name.
	GetLoggerWithName(name string) Logger

	// SetLevel sets the minimum log level for all loggers created by this provider.
	SetLevel(level Level)
}
