package commands

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/duckrelay/duckrelay-go/pkg/log"
)

// Stats holds aggregate statistics about a log file.
type Stats struct {
	TotalEvents       int
	EventsBySource    map[log.Source]int
	EventsByCategory  map[log.Category]int
	EventsByDirection map[log.Direction]int
	Dispositions      map[string]int
	RelayKinds        map[log.RelayEventKind]int
	Devices           map[string]*DeviceStats
	Errors            int
	TimeRange         struct {
		Start time.Time
		End   time.Time
	}
}

// DeviceStats holds statistics for a single bridge identity.
type DeviceStats struct {
	FirstSeen time.Time
	LastSeen  time.Time
	Events    int
	Commands  int
	Timeouts  int
}

// RunStats analyzes the log file and prints statistics.
func RunStats(path string, w io.Writer) error {
	reader, err := log.NewReader(path)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	stats := &Stats{
		EventsBySource:    make(map[log.Source]int),
		EventsByCategory:  make(map[log.Category]int),
		EventsByDirection: make(map[log.Direction]int),
		Dispositions:      make(map[string]int),
		RelayKinds:        make(map[log.RelayEventKind]int),
		Devices:           make(map[string]*DeviceStats),
	}

	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}

		stats.TotalEvents++
		stats.EventsBySource[event.Source]++
		stats.EventsByCategory[event.Category]++
		stats.EventsByDirection[event.Direction]++

		// Track time range
		if stats.TimeRange.Start.IsZero() || event.Timestamp.Before(stats.TimeRange.Start) {
			stats.TimeRange.Start = event.Timestamp
		}
		if event.Timestamp.After(stats.TimeRange.End) {
			stats.TimeRange.End = event.Timestamp
		}

		// Track per-device stats
		dev, ok := stats.Devices[event.DeviceID]
		if !ok {
			dev = &DeviceStats{
				FirstSeen: event.Timestamp,
				LastSeen:  event.Timestamp,
			}
			stats.Devices[event.DeviceID] = dev
		}
		dev.Events++
		if event.Timestamp.After(dev.LastSeen) {
			dev.LastSeen = event.Timestamp
		}

		if event.Command != nil {
			dev.Commands++
			stats.Dispositions[event.Command.Disposition]++
		}

		if event.Relay != nil {
			stats.RelayKinds[event.Relay.Kind]++
			if event.Relay.Kind == log.RelayTimeout {
				dev.Timeouts++
			}
		}

		if event.Error != nil {
			stats.Errors++
		}
	}

	printStats(w, stats)
	return nil
}

func printStats(w io.Writer, stats *Stats) {
	fmt.Fprintln(w, "=== DuckRelay Event Log Statistics ===")
	fmt.Fprintln(w)

	// Time range
	if stats.TotalEvents > 0 {
		fmt.Fprintf(w, "Time Range: %s to %s\n",
			stats.TimeRange.Start.Format(time.RFC3339),
			stats.TimeRange.End.Format(time.RFC3339))
		fmt.Fprintf(w, "Duration:   %s\n", stats.TimeRange.End.Sub(stats.TimeRange.Start).Round(time.Second))
		fmt.Fprintln(w)
	}

	// Total events
	fmt.Fprintf(w, "Total Events: %d\n", stats.TotalEvents)
	fmt.Fprintln(w)

	// Events by source
	fmt.Fprintln(w, "Events by Source:")
	for _, src := range []log.Source{log.SourceNetwork, log.SourceRelay, log.SourceConnectivity, log.SourceStorage, log.SourceProvision} {
		if count := stats.EventsBySource[src]; count > 0 {
			fmt.Fprintf(w, "  %-14s %d\n", src.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	// Events by category
	fmt.Fprintln(w, "Events by Category:")
	for _, cat := range []log.Category{log.CategoryMessage, log.CategoryReject, log.CategoryState, log.CategoryTimeout, log.CategoryError} {
		if count := stats.EventsByCategory[cat]; count > 0 {
			fmt.Fprintf(w, "  %-14s %d\n", cat.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	// Events by direction
	fmt.Fprintln(w, "Events by Direction:")
	for _, dir := range []log.Direction{log.DirectionIn, log.DirectionOut} {
		if count := stats.EventsByDirection[dir]; count > 0 {
			fmt.Fprintf(w, "  %-14s %d\n", dir.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	// Command dispositions
	if len(stats.Dispositions) > 0 {
		fmt.Fprintln(w, "Command Dispositions:")
		names := make([]string, 0, len(stats.Dispositions))
		for name := range stats.Dispositions {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(w, "  %-20s %d\n", name+":", stats.Dispositions[name])
		}
		fmt.Fprintln(w)
	}

	// Relay traffic
	if len(stats.RelayKinds) > 0 {
		fmt.Fprintln(w, "Relay Traffic:")
		for _, kind := range []log.RelayEventKind{log.RelaySend, log.RelayDone, log.RelayError, log.RelayProgress, log.RelayTimeout} {
			if count := stats.RelayKinds[kind]; count > 0 {
				fmt.Fprintf(w, "  %-14s %d\n", kind.String()+":", count)
			}
		}
		fmt.Fprintln(w)
	}

	// Devices
	fmt.Fprintf(w, "Devices: %d\n", len(stats.Devices))
	if len(stats.Devices) > 0 {
		// Sort by first seen time
		type devInfo struct {
			id    string
			stats *DeviceStats
		}
		devices := make([]devInfo, 0, len(stats.Devices))
		for id, ds := range stats.Devices {
			devices = append(devices, devInfo{id, ds})
		}
		sort.Slice(devices, func(i, j int) bool {
			return devices[i].stats.FirstSeen.Before(devices[j].stats.FirstSeen)
		})

		fmt.Fprintln(w, "")
		for _, d := range devices {
			duration := d.stats.LastSeen.Sub(d.stats.FirstSeen).Round(time.Millisecond)
			id := d.id
			if id == "" {
				id = "(none)"
			}
			fmt.Fprintf(w, "  [%s] %d events, duration %s\n", id, d.stats.Events, duration)
			if d.stats.Commands > 0 {
				fmt.Fprintf(w, "           Commands: %d\n", d.stats.Commands)
			}
			if d.stats.Timeouts > 0 {
				fmt.Fprintf(w, "           Timeouts: %d\n", d.stats.Timeouts)
			}
		}
	}

	// Errors
	if stats.Errors > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Errors: %d\n", stats.Errors)
	}
}
