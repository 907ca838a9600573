package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/example/tradeflow/internal/config"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		config   string
		override string
		want     slog.Level
		wantErr  bool
	}{
		{"", "", slog.LevelInfo, false},
		{"debug", "", slog.LevelDebug, false},
		{"info", "error", slog.LevelError, false},
		{"WARNING", "", slog.LevelWarn, false},
		{"loud", "", 0, true},
	}

	for _, tt := range tests {
		got, err := ParseLevel(tt.config, tt.override)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLevel(%q, %q) error = %v, wantErr %v", tt.config, tt.override, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("ParseLevel(%q, %q) = %v, want %v", tt.config, tt.override, got, tt.want)
		}
	}
}

func TestConfigure_WritesToFile(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() {
		slog.SetDefault(prev)
		_ = Configure(config.LogConfig{Level: "info"}, "")
	})

	path := filepath.Join(t.TempDir(), "logs", "tradeflow.log")
	if err := Configure(config.LogConfig{Level: "debug", File: path}, ""); err != nil {
		t.Fatalf("Configure failed: %v", err)
	}

	slog.Debug("engagement transitioned", "engagement_id", "ENG-001")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}
	if !strings.Contains(string(data), "engagement_id=ENG-001") {
		t.Errorf("expected log line in file, got %q", string(data))
	}
}
