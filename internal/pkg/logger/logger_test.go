package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func capture(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() {
		SetOutput(nopWriter{})
		SetLevel(INFO)
		SetRedactPII(true)
	})
	return &buf
}

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) { return len(p), nil }

func decode(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestInfoWritesJSON(t *testing.T) {
	buf := capture(t)

	Info("multicast chunk sent", "component", "delivery", "chunk", 2, "err", errors.New("boom"))

	entry := decode(t, buf)
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "multicast chunk sent", entry["msg"])
	assert.Equal(t, "delivery", entry["component"])
	assert.Equal(t, float64(2), entry["chunk"])
	assert.Equal(t, "boom", entry["err"])
}

func TestLevelFiltering(t *testing.T) {
	buf := capture(t)
	SetLevel(WARN)

	Info("dropped")
	assert.Zero(t, buf.Len())

	Warn("kept")
	assert.NotZero(t, buf.Len())
}

func TestRedactsRecipientIDs(t *testing.T) {
	buf := capture(t)
	id := "U0123456789abcdef0123456789abcdef"

	Warn("push failed", "recipient", id)

	entry := decode(t, buf)
	assert.Equal(t, "U012***", entry["recipient"])
}

func TestRedactionDisabled(t *testing.T) {
	buf := capture(t)
	SetRedactPII(false)

	Info("owner", "email", "john.doe@example.com")

	entry := decode(t, buf)
	assert.Equal(t, "john.doe@example.com", entry["email"])
}

func TestRedactEmbedded(t *testing.T) {
	got := redactPIIValue("reason", "user U0123456789abcdef0123456789abcdef (john.doe@example.com) blocked")
	assert.Equal(t, "user U012*** (jo***@example.com) blocked", got)
}

func TestRedactEmail(t *testing.T) {
	assert.Equal(t, "jo***@example.com", RedactEmail("john.doe@example.com"))
	assert.Equal(t, "***@example.com", RedactEmail("ab@example.com"))
	assert.Equal(t, "***@***", RedactEmail("not-an-email"))
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, DEBUG, ParseLevel("debug"))
	assert.Equal(t, WARN, ParseLevel("WARNING"))
	assert.Equal(t, ERROR, ParseLevel("error"))
	assert.Equal(t, INFO, ParseLevel("bogus"))
}
