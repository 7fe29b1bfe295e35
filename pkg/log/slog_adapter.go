package log

import (
	"context"
	"log/slog"
)

// SlogAdapter writes bridge events to an slog.Logger.
// Useful for development when you want to see bridge events in console.
type SlogAdapter struct {
	logger *slog.Logger
}

// NewSlogAdapter creates a new SlogAdapter that writes to the given slog.Logger.
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	return &SlogAdapter{logger: logger}
}

// Log writes the event to the slog logger at Debug level.
func (a *SlogAdapter) Log(event Event) {
	attrs := []slog.Attr{
		slog.String("direction", event.Direction.String()),
		slog.String("source", event.Source.String()),
		slog.String("category", event.Category.String()),
	}

	if event.DeviceID != "" {
		attrs = append(attrs, slog.String("device_id", event.DeviceID))
	}

	// Add type-specific attributes
	switch {
	case event.Command != nil:
		attrs = append(attrs,
			slog.String("script", event.Command.Script),
			slog.Bool("repeat", event.Command.Repeat),
			slog.String("disposition", event.Command.Disposition),
		)
	case event.Relay != nil:
		attrs = append(attrs, slog.String("kind", event.Relay.Kind.String()))
		if event.Relay.Command != "" {
			attrs = append(attrs, slog.String("command", event.Relay.Command))
		}
		if event.Relay.Status != "" {
			attrs = append(attrs, slog.String("status", event.Relay.Status))
		}
		if event.Relay.ExecutionTimeMs != 0 {
			attrs = append(attrs, slog.Int64("execution_time_ms", event.Relay.ExecutionTimeMs))
		}
		if event.Relay.Detail != "" {
			attrs = append(attrs, slog.String("detail", event.Relay.Detail))
		}
	case event.StateChange != nil:
		attrs = append(attrs,
			slog.String("entity", event.StateChange.Entity.String()),
			slog.String("old_state", event.StateChange.OldState),
			slog.String("new_state", event.StateChange.NewState),
		)
		if event.StateChange.Reason != "" {
			attrs = append(attrs, slog.String("reason", event.StateChange.Reason))
		}
	case event.Error != nil:
		attrs = append(attrs, slog.String("error_msg", event.Error.Message))
		if event.Error.Context != "" {
			attrs = append(attrs, slog.String("error_context", event.Error.Context))
		}
	}

	a.logger.LogAttrs(context.Background(), slog.LevelDebug, "bridge", attrs...)
}

// Compile-time interface satisfaction check.
var _ Logger = (*SlogAdapter)(nil)
