package main

import (
	"bytes"
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"lightmixer/internal/persist"
	"lightmixer/internal/store"
)

func TestParseLogLevel(t *testing.T) {
	for in, want := range map[string]LogLevel{"ERROR": LogLevelError, "warning": LogLevelWarn, "info": LogLevelInfo, "debug": LogLevelDebug, " Debug ": LogLevelDebug} {
		got, err := parseLogLevel(in)
		if err != nil || got != want {
			t.Errorf("parseLogLevel(%q): expected %q, got %q (%v)", in, want, got, err)
		}
	}
	if _, err := parseLogLevel("trace"); err == nil {
		t.Error("expected error for unknown level")
	}
	if got := LogLevelWarn.slogLevel(); got != slog.LevelWarn {
		t.Errorf("expected %v, got %v", slog.LevelWarn, got)
	}
	if got := LogLevel("").slogLevel(); got != slog.LevelInfo {
		t.Errorf("expected unset level to map to %v, got %v", slog.LevelInfo, got)
	}
}

// TestStoreCommand tests show and erase against a file store
func TestStoreCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.yaml")

	f, err := store.OpenFile(path, "")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	if err := f.Commit(context.Background(), persist.LedState{Enabled: false, Brightness: 64}); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	var out, errOut bytes.Buffer
	if err := run([]string{"store", "show", "--store-path", path}, &out, &errOut); err != nil {
		t.Fatalf("store show: %v", err)
	}
	if !strings.Contains(out.String(), "enabled=false brightness=64") {
		t.Errorf("expected stored state in output, got %q", out.String())
	}

	out.Reset()
	if err := run([]string{"store", "erase", "--store-path", path}, &out, &errOut); err != nil {
		t.Fatalf("store erase: %v", err)
	}
	out.Reset()
	if err := run([]string{"store", "show", "--store-path", path}, &out, &errOut); err != nil {
		t.Fatalf("store show: %v", err)
	}
	if !strings.Contains(out.String(), "no stored state") {
		t.Errorf("expected empty store after erase, got %q", out.String())
	}
}

func TestStoreCommand_Usage(t *testing.T) {
	var out, errOut bytes.Buffer
	err := run([]string{"store", "--store-path", filepath.Join(t.TempDir(), "s.yaml")}, &out, &errOut)
	if err == nil {
		t.Fatal("expected error without a store command")
	}
	if !strings.Contains(errOut.String(), "usage: lightmixer store") {
		t.Errorf("expected usage text, got %q", errOut.String())
	}
}

func TestRunVersion(t *testing.T) {
	var out, errOut bytes.Buffer
	if err := run([]string{"--version"}, &out, &errOut); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(out.String(), "lightmixer v"+version) {
		t.Errorf("expected version line, got %q", out.String())
	}
}
