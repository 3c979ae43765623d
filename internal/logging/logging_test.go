package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestInitConsole(t *testing.T) {
	var buf bytes.Buffer
	logger := Init(Options{Level: "warn", NoColor: true}, &buf)
	defer Close()

	logger.Info("hidden")
	logger.Warn("shown", "frame", "ravn-card")
	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("Expected info to be filtered at warn level")
	}
	if !strings.Contains(out, "shown") || !strings.Contains(out, "frame=ravn-card") {
		t.Errorf("Unexpected console output %q", out)
	}
	if slog.Default() != logger {
		t.Error("Expected Init to install the default logger")
	}
}

func TestInitJSONWithFile(t *testing.T) {
	var buf bytes.Buffer
	path := filepath.Join(t.TempDir(), "framecrop.log")
	logger := Init(Options{Level: "debug", Format: "json", File: path}, &buf)

	logger.Debug("decoded", "width", 640)
	if err := Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	var rec map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &rec); err != nil {
		t.Fatalf("Console output is not JSON: %v (%q)", err, buf.String())
	}
	if rec["msg"] != "decoded" || rec["app"] != "framecrop" {
		t.Errorf("Unexpected record %v", rec)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if !strings.Contains(string(data), `"width":640`) {
		t.Errorf("Expected record in log file, got %q", data)
	}
}

func TestFromEnvAndMerge(t *testing.T) {
	t.Setenv(EnvLevel, "debug")
	t.Setenv(EnvFormat, "json")
	t.Setenv(EnvSource, "TRUE")
	t.Setenv(EnvFile, "")

	opts := FromEnv()
	if opts.Level != "debug" || opts.Format != "json" || !opts.AddSource || opts.File != "" {
		t.Errorf("Unexpected options %+v", opts)
	}

	merged := Merge(Options{Level: "error", Format: "console", File: "x.log"})
	if merged.Level != "debug" || merged.Format != "json" || merged.File != "x.log" {
		t.Errorf("Unexpected merged options %+v", merged)
	}
}

func TestWithComponent(t *testing.T) {
	var buf bytes.Buffer
	Init(Options{Format: "json"}, &buf)
	defer Close()

	WithComponent("export").Info("done")
	if !strings.Contains(buf.String(), `"component":"export"`) {
		t.Errorf("Expected component attribute, got %q", buf.String())
	}
}
