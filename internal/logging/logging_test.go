package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func capture(t *testing.T, level string) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	l, err := New(Config{Level: level, Format: "json", Output: &buf})
	require.NoError(t, err)
	prev := Get()
	SetLogger(l)
	t.Cleanup(func() { SetLogger(prev) })
	return &buf
}

func decode(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &m))
	return m
}

func TestNew_RejectsBadConfig(t *testing.T) {
	_, err := New(Config{Level: "loud"})
	assert.ErrorContains(t, err, "unknown log level")
	_, err = New(Config{Format: "xml"})
	assert.ErrorContains(t, err, "unknown log format")
}

func TestFacade_FieldsAndScanID(t *testing.T) {
	buf := capture(t, "info")
	ctx := WithScanID(context.Background(), "scan-1")

	Info(ctx, "file extracted", Fields{"file": "a.go", "symbols": 3})

	m := decode(t, buf)
	assert.Equal(t, "file extracted", m["msg"])
	assert.Equal(t, "INFO", m["level"])
	assert.Equal(t, "scan-1", m["scan_id"])
	assert.Equal(t, "a.go", m["file"])
	assert.Equal(t, float64(3), m["symbols"])
}

func TestFacade_LevelFilter(t *testing.T) {
	buf := capture(t, "warn")
	Debug(context.Background(), "hidden", nil)
	Info(context.Background(), "hidden", nil)
	assert.Zero(t, buf.Len())

	Warn(context.Background(), "shown", nil)
	assert.NotZero(t, buf.Len())
}

func TestErrorWithError_AddsErrorKey(t *testing.T) {
	buf := capture(t, "debug")
	fields := Fields{"file": "x.sql"}
	ErrorWithError(context.Background(), errors.New("boom"), "extract failed", fields)

	m := decode(t, buf)
	assert.Equal(t, "boom", m["error"])
	assert.Equal(t, "x.sql", m["file"])
	assert.NotContains(t, fields, "error", "caller's map is not mutated")
}

func TestWithComponent(t *testing.T) {
	buf := capture(t, "info")
	WithComponent("orchestrator").Info(context.Background(), "hello", nil)

	m := decode(t, buf)
	assert.Equal(t, "orchestrator", m["component"])
	assert.Empty(t, ScanID(context.Background()))
}
