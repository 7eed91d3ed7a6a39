package logging

import (
	"encoding/json"
	"io"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// captureStdout runs fn with stdout redirected and returns everything the logger wrote.
func captureStdout(t *testing.T, fn func()) string {
	t.Helper()

	resetLoggerForTest()
	t.Cleanup(resetLoggerForTest)

	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("failed to create pipe: %v", err)
	}
	defer func() { _ = r.Close() }()

	origStdout := os.Stdout
	os.Stdout = w
	defer func() { os.Stdout = origStdout }()

	fn()
	_ = Logger().Sync()

	if err := w.Close(); err != nil {
		t.Fatalf("failed to close writer: %v", err)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("failed to read log output: %v", err)
	}
	return strings.TrimSpace(string(data))
}

func captureEntry(t *testing.T, fn func(*zap.Logger)) map[string]any {
	t.Helper()
	line := captureStdout(t, func() { fn(Logger()) })
	if line == "" {
		t.Fatalf("expected log output, got empty string")
	}
	var payload map[string]any
	if err := json.Unmarshal([]byte(line), &payload); err != nil {
		t.Fatalf("failed to unmarshal log JSON %q: %v", line, err)
	}
	return payload
}

func resetLoggerForTest() {
	loggerOnce = sync.Once{}
	baseLogger = nil
	sugarLogger = nil
	loggerErr = nil
}

func TestLoggerStructuredOutput(t *testing.T) {
	payload := captureEntry(t, func(l *zap.Logger) {
		l.Info("GET /", zap.Int("status", 200))
	})

	if got := payload["severity"]; got != "INFO" {
		t.Fatalf("expected severity INFO, got %v", got)
	}
	if _, exists := payload["level"]; exists {
		t.Fatalf("did not expect a level field")
	}
	if got := payload["message"]; got != "GET /" {
		t.Fatalf("expected message 'GET /', got %v", got)
	}
	if got, ok := payload["status"].(float64); !ok || got != 200 {
		t.Fatalf("expected status 200, got %v", payload["status"])
	}
	ts, ok := payload["timestamp"].(string)
	if !ok {
		t.Fatalf("expected timestamp string, got %T", payload["timestamp"])
	}
	if _, err := time.Parse(RFC3339Micros, ts); err != nil {
		t.Fatalf("timestamp %q is not RFC3339Micros: %v", ts, err)
	}
	if caller, _ := payload["caller"].(string); !strings.Contains(caller, "logger_test.go") {
		t.Fatalf("expected caller to reference logger_test.go, got %q", caller)
	}
}

func TestEncodeSeverityMapping(t *testing.T) {
	tests := []struct {
		level    zapcore.Level
		expected string
	}{
		{zapcore.DebugLevel, "DEBUG"},
		{zapcore.InfoLevel, "INFO"},
		{zapcore.WarnLevel, "WARNING"},
		{zapcore.ErrorLevel, "ERROR"},
		{zapcore.DPanicLevel, "CRITICAL"},
		{zapcore.PanicLevel, "ALERT"},
		{zapcore.FatalLevel, "EMERGENCY"},
		{zapcore.Level(42), "DEFAULT"},
	}
	for _, tt := range tests {
		enc := &stringArrayEncoder{}
		encodeSeverity(tt.level, enc)
		if len(enc.values) != 1 || enc.values[0] != tt.expected {
			t.Fatalf("encodeSeverity(%v) = %v, want %s", tt.level, enc.values, tt.expected)
		}
	}
}

func TestEncodeTimeMicrosUsesUTC(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*60*60)
	enc := &stringArrayEncoder{}
	encodeTimeMicros(time.Date(2024, 6, 15, 13, 30, 45, 123456789, loc), enc)

	if len(enc.values) != 1 || enc.values[0] != "2024-06-15T10:30:45.123456Z" {
		t.Fatalf("unexpected timestamp encoding: %v", enc.values)
	}
}

func TestLoggerSingleton(t *testing.T) {
	resetLoggerForTest()
	t.Cleanup(resetLoggerForTest)

	if Logger() != Logger() {
		t.Fatal("expected Logger() to return the same instance")
	}
	if Sugar().Desugar().Core() != Logger().Core() {
		t.Fatal("expected Logger and Sugar to share the same core")
	}
	if err := Err(); err != nil {
		t.Fatalf("expected nil init error, got %v", err)
	}
}

func TestDebugSuppressedAtDefaultLevel(t *testing.T) {
	out := captureStdout(t, func() {
		Logger().Debug("debug message should not appear")
	})
	if strings.Contains(out, "debug message") {
		t.Fatalf("debug entries should be suppressed at info level, got %q", out)
	}
}

func TestSetLevelEnablesDebug(t *testing.T) {
	prev := Level()
	t.Cleanup(func() { _ = SetLevel(prev.String()) })

	if err := SetLevel("debug"); err != nil {
		t.Fatalf("SetLevel returned error: %v", err)
	}
	payload := captureEntry(t, func(l *zap.Logger) {
		l.Debug("now visible")
	})
	if got := payload["severity"]; got != "DEBUG" {
		t.Fatalf("expected severity DEBUG, got %v", got)
	}
}

func TestSetLevelRejectsUnknownName(t *testing.T) {
	prev := Level()
	if err := SetLevel("verbose"); err == nil {
		t.Fatal("expected error for unknown level name")
	}
	if Level() != prev {
		t.Fatalf("expected level to stay %v, got %v", prev, Level())
	}
}

// stringArrayEncoder collects strings appended via zapcore.PrimitiveArrayEncoder.
type stringArrayEncoder struct {
	values []string
}

func (e *stringArrayEncoder) AppendBool(bool)             {}
func (e *stringArrayEncoder) AppendByteString([]byte)     {}
func (e *stringArrayEncoder) AppendComplex128(complex128) {}
func (e *stringArrayEncoder) AppendComplex64(complex64)   {}
func (e *stringArrayEncoder) AppendFloat64(float64)       {}
func (e *stringArrayEncoder) AppendFloat32(float32)       {}
func (e *stringArrayEncoder) AppendInt(int)               {}
func (e *stringArrayEncoder) AppendInt64(int64)           {}
func (e *stringArrayEncoder) AppendInt32(int32)           {}
func (e *stringArrayEncoder) AppendInt16(int16)           {}
func (e *stringArrayEncoder) AppendInt8(int8)             {}
func (e *stringArrayEncoder) AppendString(s string)       { e.values = append(e.values, s) }
func (e *stringArrayEncoder) AppendUint(uint)             {}
func (e *stringArrayEncoder) AppendUint64(uint64)         {}
func (e *stringArrayEncoder) AppendUint32(uint32)         {}
func (e *stringArrayEncoder) AppendUint16(uint16)         {}
func (e *stringArrayEncoder) AppendUint8(uint8)           {}
func (e *stringArrayEncoder) AppendUintptr(uintptr)       {}
