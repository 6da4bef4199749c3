package logger

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestNew(t *testing.T) {
	log := New(Options{})
	if log.GetLevel() != zerolog.InfoLevel {
		t.Errorf("Expected info level by default, got %s", log.GetLevel())
	}
}

func TestNew_LevelAndFormat(t *testing.T) {
	tests := []struct {
		name      string
		opts      Options
		wantLevel zerolog.Level
		wantJSON  bool
	}{
		{"debug console", Options{Level: "debug"}, zerolog.DebugLevel, false},
		{"warn json", Options{Level: "WARN", Format: "json"}, zerolog.WarnLevel, true},
		{"unknown level falls back to info", Options{Level: "chatty", Format: FormatJSON}, zerolog.InfoLevel, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			tt.opts.Writer = buf
			log := New(tt.opts)

			if log.GetLevel() != tt.wantLevel {
				t.Errorf("level = %s, want %s", log.GetLevel(), tt.wantLevel)
			}

			log.Error().Msg("boom")
			isJSON := strings.HasPrefix(strings.TrimSpace(buf.String()), "{")
			if isJSON != tt.wantJSON {
				t.Errorf("json output = %v, want %v: %s", isJSON, tt.wantJSON, buf.String())
			}
		})
	}
}

func TestNewWithWriter(t *testing.T) {
	buf := &bytes.Buffer{}
	log := NewWithWriter(buf)

	log.Info().Msg("test message")

	if !strings.Contains(buf.String(), "test message") {
		t.Errorf("Expected output to contain 'test message', got: %s", buf.String())
	}
}

func TestFromContext(t *testing.T) {
	buf := &bytes.Buffer{}
	ctx := WithContext(context.Background(), NewWithWriter(buf))

	l := FromContext(ctx)
	l.Info().Msg("test")

	if buf.Len() == 0 {
		t.Error("Expected log output from retrieved logger")
	}
}

func TestFromContext_DefaultLogger(t *testing.T) {
	log := FromContext(context.Background())

	if log.GetLevel() == zerolog.Disabled {
		t.Error("Expected default logger to be enabled")
	}
}

func TestWithFields(t *testing.T) {
	buf := &bytes.Buffer{}
	log := WithFields(NewWithWriter(buf), map[string]interface{}{
		"session_id": "s-1",
		"phase":      "reading",
	})

	log.Info().Msg("transition")

	output := buf.String()
	if !strings.Contains(output, `"session_id":"s-1"`) {
		t.Errorf("Expected output to contain session_id field, got: %s", output)
	}
	if !strings.Contains(output, `"phase":"reading"`) {
		t.Errorf("Expected output to contain phase field, got: %s", output)
	}
}
