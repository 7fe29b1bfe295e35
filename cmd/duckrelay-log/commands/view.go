// Package commands implements the duckrelay-log CLI commands.
package commands

import (
	"fmt"
	"io"
	"strings"

	"github.com/duckrelay/duckrelay-go/pkg/log"
)

// ViewFilter specifies criteria for filtering events in the view command.
type ViewFilter struct {
	Source    *log.Source
	Direction *log.Direction
	Category  *log.Category
}

// formatEvent writes a human-readable representation of the event to w.
func formatEvent(w io.Writer, event log.Event) {
	// Header line: timestamp [device] DIRECTION SOURCE Type
	ts := event.Timestamp.UTC().Format("2006-01-02T15:04:05.000000Z")

	var typeLabel string
	switch {
	case event.Command != nil:
		typeLabel = "Command"
	case event.Relay != nil:
		typeLabel = event.Relay.Kind.String()
	case event.StateChange != nil:
		typeLabel = "State"
	case event.Error != nil:
		typeLabel = "Error"
	default:
		typeLabel = "Unknown"
	}

	device := event.DeviceID
	if device == "" {
		device = "-"
	}

	fmt.Fprintf(w, "%s [%s] %-3s %s %s\n", ts, device, event.Direction.String(), event.Source.String(), typeLabel)

	switch {
	case event.Command != nil:
		formatCommandDetails(w, event.Command)
	case event.Relay != nil:
		formatRelayDetails(w, event.Relay)
	case event.StateChange != nil:
		formatStateChangeDetails(w, event.StateChange)
	case event.Error != nil:
		formatErrorDetails(w, event.Error)
	}

	fmt.Fprintln(w) // Blank line between events
}

// formatCommandDetails writes inbound command details.
func formatCommandDetails(w io.Writer, cmd *log.CommandEvent) {
	fmt.Fprintf(w, "  Script: %q", cmd.Script)
	if cmd.Truncated {
		fmt.Fprintf(w, " (truncated)")
	}
	fmt.Fprintln(w)
	if cmd.Repeat {
		fmt.Fprintln(w, "  Repeat: true")
	}
	fmt.Fprintf(w, "  Disposition: %s\n", cmd.Disposition)
}

// formatRelayDetails writes serial relay details.
func formatRelayDetails(w io.Writer, relay *log.RelayEvent) {
	if relay.Command != "" {
		fmt.Fprintf(w, "  Command: %q\n", relay.Command)
	}
	if relay.Status != "" {
		fmt.Fprintf(w, "  Status: %s\n", relay.Status)
	}
	if relay.Kind == log.RelayDone {
		fmt.Fprintf(w, "  ExecutionTime: %dms\n", relay.ExecutionTimeMs)
	}
	if relay.Detail != "" {
		fmt.Fprintf(w, "  Detail: %s\n", relay.Detail)
	}
}

// formatStateChangeDetails writes state change details.
func formatStateChangeDetails(w io.Writer, sc *log.StateChangeEvent) {
	fmt.Fprintf(w, "  Entity: %s\n", sc.Entity.String())
	if sc.OldState != "" {
		fmt.Fprintf(w, "  %s -> %s\n", sc.OldState, sc.NewState)
	} else {
		fmt.Fprintf(w, "  -> %s\n", sc.NewState)
	}
	if sc.Reason != "" {
		fmt.Fprintf(w, "  Reason: %s\n", sc.Reason)
	}
}

// formatErrorDetails writes error details.
func formatErrorDetails(w io.Writer, err *log.ErrorEventData) {
	fmt.Fprintf(w, "  Message: %s\n", err.Message)
	if err.Context != "" {
		fmt.Fprintf(w, "  Context: %s\n", err.Context)
	}
}

// ParseSourceFlag parses a source string from command-line flag (case-insensitive).
func ParseSourceFlag(s string) (log.Source, error) {
	return parseSource(s)
}

// parseSource parses a source string (case-insensitive).
func parseSource(s string) (log.Source, error) {
	switch strings.ToLower(s) {
	case "network":
		return log.SourceNetwork, nil
	case "relay":
		return log.SourceRelay, nil
	case "connectivity":
		return log.SourceConnectivity, nil
	case "storage":
		return log.SourceStorage, nil
	case "provision":
		return log.SourceProvision, nil
	default:
		return 0, fmt.Errorf("invalid source: %s (must be network, relay, connectivity, storage, or provision)", s)
	}
}

// ParseDirectionFlag parses a direction string from command-line flag (case-insensitive).
func ParseDirectionFlag(s string) (log.Direction, error) {
	return parseDirection(s)
}

// parseDirection parses a direction string (case-insensitive).
func parseDirection(s string) (log.Direction, error) {
	switch strings.ToLower(s) {
	case "in":
		return log.DirectionIn, nil
	case "out":
		return log.DirectionOut, nil
	default:
		return 0, fmt.Errorf("invalid direction: %s (must be in or out)", s)
	}
}

// ParseCategoryFlag parses a category string from command-line flag (case-insensitive).
func ParseCategoryFlag(s string) (log.Category, error) {
	return parseCategory(s)
}

// parseCategory parses a category string (case-insensitive).
func parseCategory(s string) (log.Category, error) {
	switch strings.ToLower(s) {
	case "message":
		return log.CategoryMessage, nil
	case "reject":
		return log.CategoryReject, nil
	case "state":
		return log.CategoryState, nil
	case "timeout":
		return log.CategoryTimeout, nil
	case "error":
		return log.CategoryError, nil
	default:
		return 0, fmt.Errorf("invalid category: %s (must be message, reject, state, timeout, or error)", s)
	}
}

// RunView executes the view command.
func RunView(path string, filter ViewFilter, output io.Writer) error {
	reader, err := log.NewReader(path)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}

		if filter.Source != nil && event.Source != *filter.Source {
			continue
		}
		if filter.Direction != nil && event.Direction != *filter.Direction {
			continue
		}
		if filter.Category != nil && event.Category != *filter.Category {
			continue
		}

		formatEvent(output, event)
	}

	return nil
}
