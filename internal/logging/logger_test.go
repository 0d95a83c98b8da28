package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/arkilian/spatialbench/internal/metrics"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name   string
		format string
		level  string
	}{
		{"JSON Info", "json", "info"},
		{"JSON Debug", "json", "debug"},
		{"Console Warn", "console", "warn"},
		{"Text Error", "text", "error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger, err := NewLogger(Config{Format: tt.format, Level: tt.level, Output: zapcore.AddSync(&buf)})
			if err != nil {
				t.Fatalf("NewLogger() error = %v", err)
			}
			logger.Error("heartbeat")
			if !strings.Contains(buf.String(), "heartbeat") {
				t.Errorf("expected message in output, got: %s", buf.String())
			}
		})
	}
}

func TestNewLogger_InvalidLevel(t *testing.T) {
	if _, err := NewLogger(Config{Format: "json", Level: "loud"}); err == nil {
		t.Error("expected error for invalid log level")
	}
}

func TestNewLogger_InvalidFormat(t *testing.T) {
	if _, err := NewLogger(Config{Format: "xml", Level: "info"}); err == nil {
		t.Error("expected error for invalid log format")
	}
}

func TestStructuredLogging(t *testing.T) {
	var buf bytes.Buffer
	logger, _ := NewLogger(Config{Format: "json", Level: "info", Output: zapcore.AddSync(&buf)})

	logger.Info("query finished", zap.String("query", "Q1"), zap.Int("rows", 42))

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v (%s)", err, buf.String())
	}
	if entry["msg"] != "query finished" {
		t.Errorf("unexpected msg: %v", entry["msg"])
	}
	if entry["query"] != "Q1" {
		t.Errorf("unexpected query field: %v", entry["query"])
	}
	if entry["rows"] != float64(42) {
		t.Errorf("unexpected rows field: %v", entry["rows"])
	}
	if _, ok := entry["timestamp"]; !ok {
		t.Error("expected timestamp key")
	}
}

func TestLogLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger, _ := NewLogger(Config{Format: "json", Level: "warn", Output: zapcore.AddSync(&buf)})

	logger.Info("hidden")
	logger.Warn("shown")

	if strings.Contains(buf.String(), "hidden") {
		t.Error("info entry should be filtered at warn level")
	}
	if !strings.Contains(buf.String(), "shown") {
		t.Error("warn entry should be written")
	}
}

func TestMetricsHook(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	var buf bytes.Buffer
	logger, err := NewLogger(Config{Format: "json", Level: "info", Output: zapcore.AddSync(&buf), Metrics: m})
	if err != nil {
		t.Fatal(err)
	}

	child := logger.With(zap.String("run", "r1"))
	child.Info("one")
	child.Info("two")
	child.Error("three")
	child.Debug("filtered")

	if got := testutil.ToFloat64(m.LogEntriesTotal.WithLabelValues("info")); got != 2 {
		t.Errorf("info entries = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.LogEntriesTotal.WithLabelValues("error")); got != 1 {
		t.Errorf("error entries = %v, want 1", got)
	}
}

func TestOrNop(t *testing.T) {
	if OrNop(nil) == nil {
		t.Fatal("OrNop(nil) must return a usable logger")
	}
	l := DiscardLogger()
	if OrNop(l) != l {
		t.Error("OrNop should return the given logger")
	}
}
