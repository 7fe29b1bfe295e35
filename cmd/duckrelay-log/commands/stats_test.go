package commands

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/duckrelay/duckrelay-go/pkg/log"
)

func TestStatsCountsBySource(t *testing.T) {
	ts := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)
	events := []log.Event{
		{Timestamp: ts, Source: log.SourceNetwork, Category: log.CategoryMessage},
		{Timestamp: ts, Source: log.SourceNetwork, Category: log.CategoryMessage},
		{Timestamp: ts, Source: log.SourceRelay, Category: log.CategoryMessage},
		{Timestamp: ts, Source: log.SourceConnectivity, Category: log.CategoryState},
	}

	path := createTestLogFile(t, events)

	var buf bytes.Buffer
	err := RunStats(path, &buf)
	if err != nil {
		t.Fatalf("RunStats failed: %v", err)
	}

	output := buf.String()

	if !strings.Contains(output, "Total Events: 4") {
		t.Errorf("expected total count, got: %s", output)
	}
	if !strings.Contains(output, "NETWORK:") {
		t.Error("expected NETWORK source in output")
	}
	if !strings.Contains(output, "RELAY:") {
		t.Error("expected RELAY source in output")
	}
	if !strings.Contains(output, "CONNECTIVITY:") {
		t.Error("expected CONNECTIVITY source in output")
	}
}

func TestStatsCountsDispositions(t *testing.T) {
	ts := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)
	events := []log.Event{
		{Timestamp: ts, Source: log.SourceNetwork, Category: log.CategoryMessage,
			Command: &log.CommandEvent{Script: "GUI r", Disposition: "FORWARDED"}},
		{Timestamp: ts, Source: log.SourceNetwork, Category: log.CategoryReject,
			Command: &log.CommandEvent{Script: "GUI r", Disposition: "REJECTED_DUPLICATE"}},
		{Timestamp: ts, Source: log.SourceNetwork, Category: log.CategoryReject,
			Command: &log.CommandEvent{Script: "GUI r", Disposition: "REJECTED_DUPLICATE"}},
	}

	path := createTestLogFile(t, events)

	var buf bytes.Buffer
	if err := RunStats(path, &buf); err != nil {
		t.Fatalf("RunStats failed: %v", err)
	}

	output := buf.String()
	if !strings.Contains(output, "FORWARDED:") {
		t.Error("expected FORWARDED disposition in output")
	}
	if !strings.Contains(output, "REJECTED_DUPLICATE:") {
		t.Error("expected REJECTED_DUPLICATE disposition in output")
	}
	if !strings.Contains(output, "REJECTED_DUPLICATE:") || !strings.Contains(output, "2") {
		t.Errorf("expected duplicate count of 2, got: %s", output)
	}
}

func TestStatsCountsRelayTraffic(t *testing.T) {
	ts := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)
	events := []log.Event{
		{Timestamp: ts, Source: log.SourceRelay, Category: log.CategoryMessage,
			Relay: &log.RelayEvent{Kind: log.RelaySend, Command: "GUI r"}},
		{Timestamp: ts, Source: log.SourceRelay, Category: log.CategoryMessage,
			Relay: &log.RelayEvent{Kind: log.RelayDone, Status: "success"}},
		{Timestamp: ts, Source: log.SourceRelay, Category: log.CategoryTimeout,
			Relay: &log.RelayEvent{Kind: log.RelayTimeout, Command: "GUI r"}},
	}

	path := createTestLogFile(t, events)

	var buf bytes.Buffer
	if err := RunStats(path, &buf); err != nil {
		t.Fatalf("RunStats failed: %v", err)
	}

	output := buf.String()
	if !strings.Contains(output, "Relay Traffic:") {
		t.Error("expected relay traffic section")
	}
	if !strings.Contains(output, "SEND:") {
		t.Error("expected SEND count in output")
	}
	if !strings.Contains(output, "DONE:") {
		t.Error("expected DONE count in output")
	}
	if !strings.Contains(output, "TIMEOUT:") {
		t.Error("expected TIMEOUT count in output")
	}
}

func TestStatsTracksDevices(t *testing.T) {
	ts := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)
	events := []log.Event{
		{Timestamp: ts, DeviceID: "esp01-kitchen", Source: log.SourceNetwork, Category: log.CategoryMessage,
			Command: &log.CommandEvent{Script: "GUI r", Disposition: "FORWARDED"}},
		{Timestamp: ts.Add(time.Minute), DeviceID: "esp01-kitchen", Source: log.SourceRelay, Category: log.CategoryTimeout,
			Relay: &log.RelayEvent{Kind: log.RelayTimeout, Command: "GUI r"}},
		{Timestamp: ts, DeviceID: "esp01-office", Source: log.SourceNetwork, Category: log.CategoryMessage},
	}

	path := createTestLogFile(t, events)

	var buf bytes.Buffer
	if err := RunStats(path, &buf); err != nil {
		t.Fatalf("RunStats failed: %v", err)
	}

	output := buf.String()
	if !strings.Contains(output, "Devices: 2") {
		t.Errorf("expected 2 devices, got: %s", output)
	}
	if !strings.Contains(output, "[esp01-kitchen] 2 events") {
		t.Errorf("expected per-device event count, got: %s", output)
	}
	if !strings.Contains(output, "Timeouts: 1") {
		t.Errorf("expected timeout count for device, got: %s", output)
	}
}

func TestStatsCountsErrors(t *testing.T) {
	ts := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)
	events := []log.Event{
		{Timestamp: ts, Source: log.SourceStorage, Category: log.CategoryError,
			Error: &log.ErrorEventData{Message: "write failed"}},
		{Timestamp: ts, Source: log.SourceNetwork, Category: log.CategoryMessage},
	}

	path := createTestLogFile(t, events)

	var buf bytes.Buffer
	if err := RunStats(path, &buf); err != nil {
		t.Fatalf("RunStats failed: %v", err)
	}

	if !strings.Contains(buf.String(), "Errors: 1") {
		t.Errorf("expected error count, got: %s", buf.String())
	}
}

func TestStatsEmptyFile(t *testing.T) {
	path := createTestLogFile(t, nil)

	var buf bytes.Buffer
	if err := RunStats(path, &buf); err != nil {
		t.Fatalf("RunStats failed: %v", err)
	}

	if !strings.Contains(buf.String(), "Total Events: 0") {
		t.Errorf("expected zero total, got: %s", buf.String())
	}
}
