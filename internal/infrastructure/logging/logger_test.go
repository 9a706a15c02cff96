package logging

import (
	"log/slog"
	"testing"

	"github.com/nerrad567/gray-logic-dali-bridge/internal/infrastructure/config"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"unknown", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := parseLevel(tt.input); got != tt.want {
				t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestNew(t *testing.T) {
	cfg := config.LoggingConfig{
		Level:  "debug",
		Format: "text",
		Output: "stderr",
	}

	logger := New(cfg, "1.0.0")
	if logger == nil {
		t.Fatal("New() returned nil")
	}
	if logger.Logger == nil {
		t.Fatal("New() returned logger with nil slog.Logger")
	}
}

func TestWith(t *testing.T) {
	logger := Default()
	child := logger.With("component", "gateway")

	if child == nil {
		t.Fatal("With() returned nil")
	}
	if child == logger {
		t.Error("With() should return a new logger instance")
	}
}

func TestForGateway(t *testing.T) {
	logger := Default()
	gwLogger := logger.ForGateway("DA0C8E5A6B21")

	if gwLogger == nil {
		t.Fatal("ForGateway() returned nil")
	}
	if gwLogger == logger {
		t.Error("ForGateway() should return a new logger instance")
	}
}

func TestDefault(t *testing.T) {
	logger := Default()
	if logger == nil {
		t.Fatal("Default() returned nil")
	}

	// Must be usable without panicking
	logger.Info("test message", "key", "value")
}
