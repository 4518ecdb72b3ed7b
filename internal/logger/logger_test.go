package logger

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// readEntries decodes the JSON lines written to a log file.
func readEntries(t *testing.T, path string) []map[string]any {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("failed to open log file: %v", err)
	}
	defer f.Close()

	var out []map[string]any
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var e map[string]any
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			t.Fatalf("log line is not JSON: %q", sc.Text())
		}
		out = append(out, e)
	}
	return out
}

func TestLoggingBeforeInit(t *testing.T) {
	// The package-level logger must be usable without Init.
	Info("not initialized yet", zap.Int("projectors", 0))
	Named("composite").Debug("still fine")
	Sync()
}

func TestComponentLevels(t *testing.T) {
	tempDir := t.TempDir()

	tests := []struct {
		level string
		want  []string
	}{
		{"error", []string{"commit failed"}},
		{"warn", []string{"skipping projector", "commit failed"}},
		{"info", []string{"terrain bound", "skipping projector", "commit failed"}},
		{"debug", []string{"recomposed", "terrain bound", "skipping projector", "commit failed"}},
		{"verbose", []string{"terrain bound", "skipping projector", "commit failed"}},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			logFile := filepath.Join(tempDir, tt.level+".log")
			if err := InitWithFileConfig(tt.level, FileConfig{Path: logFile, MaxSizeMB: 1}, false); err != nil {
				t.Fatalf("failed to init logger: %v", err)
			}

			Named("tool").Debug("recomposed", zap.String("reason", "poll"))
			Named("tool").Info("terrain bound", zap.Int("width", 16))
			Named("composite").Warn("skipping projector", zap.Uint64("id", 2))
			Named("tool").Error("commit failed")
			Sync()

			var got []string
			for _, e := range readEntries(t, logFile) {
				got = append(got, e["msg"].(string))
			}
			if strings.Join(got, "|") != strings.Join(tt.want, "|") {
				t.Errorf("logged %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNamed(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "named.log")
	if err := InitWithFileConfig("info", FileConfig{Path: logFile, MaxSizeMB: 1}, false); err != nil {
		t.Fatalf("failed to init logger: %v", err)
	}

	Named("storage").Info("generation committed", zap.Int64("id", 3))
	Named("scene").Warn("brush unavailable", zap.String("brush", "ridge.png"))
	Sync()

	entries := readEntries(t, logFile)
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0]["logger"] != "storage" || entries[0]["id"] != float64(3) {
		t.Errorf("storage entry = %v", entries[0])
	}
	if entries[1]["logger"] != "scene" || entries[1]["level"] != "WARN" {
		t.Errorf("scene entry = %v", entries[1])
	}
	if _, ok := entries[0]["caller"]; !ok {
		t.Error("file entries should carry the caller")
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"warn", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
		{"info", zapcore.InfoLevel},
		{"", zapcore.InfoLevel},
		{"loud", zapcore.InfoLevel},
	}
	for _, tt := range tests {
		if got := parseLevel(tt.in); got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestDefaultFileConfig(t *testing.T) {
	cfg := DefaultFileConfig("/tmp/heightproj.log")

	if cfg.Path != "/tmp/heightproj.log" {
		t.Errorf("expected path /tmp/heightproj.log, got %s", cfg.Path)
	}
	if cfg.MaxSizeMB != 20 || cfg.MaxBackups != 5 || cfg.MaxAgeDays != 14 {
		t.Errorf("unexpected rotation settings: %+v", cfg)
	}
	if !cfg.Compress {
		t.Error("expected Compress to be true")
	}
}
