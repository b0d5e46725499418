package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestNew_Levels(t *testing.T) {
	tests := []struct {
		level     string
		wantLevel zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"unknown", zerolog.InfoLevel}, // 알 수 없는 레벨은 info로
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			New(Options{Level: tt.level, Format: "json"})
			if zerolog.GlobalLevel() != tt.wantLevel {
				t.Errorf("level: got %v, want %v", zerolog.GlobalLevel(), tt.wantLevel)
			}
		})
	}
}

func TestLogger_JSONOutput(t *testing.T) {
	var buf bytes.Buffer
	log := New(Options{Level: "info", Format: "json", Env: "test", Out: &buf})

	log.WithFields(map[string]interface{}{
		"signal": "long_entry",
		"seq":    42,
	}).Info("Evaluation appended")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, buf.String())
	}

	if entry["signal"] != "long_entry" {
		t.Errorf("signal field: got %v", entry["signal"])
	}
	if entry["env"] != "test" {
		t.Errorf("env field: got %v", entry["env"])
	}
	if entry["message"] != "Evaluation appended" {
		t.Errorf("message: got %v", entry["message"])
	}
}

func TestLogger_WithError(t *testing.T) {
	var buf bytes.Buffer
	log := New(Options{Level: "info", Format: "json", Out: &buf})

	log.WithError(errors.New("export failed")).Error("Flush aborted")

	if !strings.Contains(buf.String(), "export failed") {
		t.Errorf("error not in output: %s", buf.String())
	}
}

func TestNop(t *testing.T) {
	// Nop 로거는 패닉 없이 모든 호출을 버린다
	log := Nop()
	log.Debug("a")
	log.Info("b")
	log.WithField("k", "v").Warn("c")
	log.WithError(errors.New("x")).Error("d")
}
