package cli

import (
	"testing"
	"time"
)

func resetOutputFlags(t *testing.T) {
	t.Helper()
	oldOutput, oldJSON, oldCfg := flagOutput, flagJSON, cfg
	t.Cleanup(func() {
		flagOutput, flagJSON, cfg = oldOutput, oldJSON, oldCfg
	})
	flagOutput = ""
	flagJSON = false
}

func TestGetOutput_FlagPrecedence(t *testing.T) {
	resetOutputFlags(t)
	t.Setenv("HANOGT_OUTPUT_FORMAT", "yaml")

	flagJSON = true
	if got := GetOutput(); got != "json" {
		t.Fatalf("GetOutput()=%q want json", got)
	}

	flagJSON = false
	flagOutput = "yaml"
	if got := GetOutput(); got != "yaml" {
		t.Fatalf("GetOutput()=%q want yaml", got)
	}
}

func TestGetOutput_EnvFallback(t *testing.T) {
	resetOutputFlags(t)

	t.Setenv("HANOGT_OUTPUT_FORMAT", "json")
	if got := GetOutput(); got != "json" {
		t.Fatalf("GetOutput()=%q want json from env", got)
	}

	// Unknown env values fall through to the config default.
	t.Setenv("HANOGT_OUTPUT_FORMAT", "bogus")
	if got := GetOutput(); got != cfg.Output.Format {
		t.Fatalf("GetOutput()=%q want config default %q", got, cfg.Output.Format)
	}
}

func TestGetOutput_ConfigDefault(t *testing.T) {
	resetOutputFlags(t)
	t.Setenv("HANOGT_OUTPUT_FORMAT", "")

	cfg.Output.Format = "yaml"
	if got := GetOutput(); got != "yaml" {
		t.Fatalf("GetOutput()=%q want yaml from config", got)
	}

	cfg.Output.Format = ""
	if got := GetOutput(); got != "text" {
		t.Fatalf("GetOutput()=%q want text fallback", got)
	}
}

func TestEventFilterFromFlags(t *testing.T) {
	oldEmail, oldType, oldSince, oldLimit := flagEventsEmail, flagEventsType, flagEventsSince, flagEventsLimit
	t.Cleanup(func() {
		flagEventsEmail, flagEventsType, flagEventsSince, flagEventsLimit = oldEmail, oldType, oldSince, oldLimit
	})

	flagEventsEmail = "u@example.com"
	flagEventsType = "ban"
	flagEventsSince = "2026-08-01T00:00:00Z"
	flagEventsLimit = 10

	filter, err := eventFilterFromFlags()
	if err != nil {
		t.Fatalf("eventFilterFromFlags: %v", err)
	}
	if filter.Email != "u@example.com" || filter.EventType != "ban" || filter.Limit != 10 {
		t.Fatalf("unexpected filter: %+v", filter)
	}
	want := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	if !filter.Since.Equal(want) {
		t.Fatalf("unexpected since: %v", filter.Since)
	}

	flagEventsSince = "not-a-time"
	if _, err := eventFilterFromFlags(); err == nil {
		t.Fatalf("expected error for bad --since")
	}
}
