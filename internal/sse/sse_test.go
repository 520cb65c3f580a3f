package sse

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReaderSingleFrame(t *testing.T) {
	r := NewReader(strings.NewReader("id: 7\nevent: task.message\ndata: {\"a\":1}\n\n"))

	frame, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, "7", frame.ID)
	assert.Equal(t, "task.message", frame.Name)
	assert.Equal(t, `{"a":1}`, string(frame.Data))
}

func TestReaderMultiLineData(t *testing.T) {
	r := NewReader(strings.NewReader("event: x\ndata: line1\ndata: line2\n\n"))

	frame, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, "line1\nline2", string(frame.Data))
}

func TestReaderDefaultsToMessageName(t *testing.T) {
	r := NewReader(strings.NewReader("data: hi\n\n"))

	frame, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, "message", frame.Name)
}

func TestReaderSkipsCommentsAndUnknownFields(t *testing.T) {
	r := NewReader(strings.NewReader(": keepalive\nretry: 500\nevent: ping\ndata: {}\n\n"))

	frame, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, "ping", frame.Name)
	assert.Equal(t, "{}", string(frame.Data))
}

func TestReaderSequentialFrames(t *testing.T) {
	input := "id: 1\nevent: a\ndata: one\n\nid: 2\nevent: b\ndata: two\n\n"
	r := NewReader(strings.NewReader(input))

	first, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, "a", first.Name)

	second, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, "b", second.Name)
	assert.Equal(t, "2", second.ID)

	_, err = r.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestReaderCRLF(t *testing.T) {
	r := NewReader(strings.NewReader("event: x\r\ndata: y\r\n\r\n"))

	frame, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, "x", frame.Name)
	assert.Equal(t, "y", string(frame.Data))
}

func TestReaderDropsTruncatedFrame(t *testing.T) {
	r := NewReader(strings.NewReader("event: x\ndata: partial"))

	_, err := r.Next()
	assert.Error(t, err)
}

func TestWriteFrameRoundTrip(t *testing.T) {
	rec := httptest.NewRecorder()
	require.NoError(t, WriteFrame(rec, rec, "42", "task.message", []byte(`{"a":1}`)))

	frame, err := NewReader(rec.Body).Next()
	require.NoError(t, err)
	assert.Equal(t, "42", frame.ID)
	assert.Equal(t, "task.message", frame.Name)
	assert.Equal(t, `{"a":1}`, string(frame.Data))
}

func TestWriteFrameWithoutID(t *testing.T) {
	rec := httptest.NewRecorder()
	require.NoError(t, WriteFrame(rec, rec, "", "done", []byte("{}")))
	assert.NotContains(t, rec.Body.String(), "id:")
}
