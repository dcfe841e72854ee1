package stream

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/azfoundry/foundry-go/sdk/apierr"
)

// chunkReader hands out its input in fixed-size chunks to simulate
// unpredictable network arrival.
type chunkReader struct {
	data []byte
	size int
}

func (r *chunkReader) Read(p []byte) (int, error) {
	if len(r.data) == 0 {
		return 0, io.EOF
	}
	n := r.size
	if n > len(r.data) {
		n = len(r.data)
	}
	if n > len(p) {
		n = len(p)
	}
	copy(p, r.data[:n])
	r.data = r.data[n:]
	return n, nil
}

func collect(t *testing.T, e *Events) []string {
	t.Helper()
	var frames []string
	for e.Next() {
		frames = append(frames, string(e.Data()))
	}
	return frames
}

func TestEventsYieldsDataFramesInOrder(t *testing.T) {
	body := "data: {\"n\":1}\n" +
		"data: {\"n\":2}\n" +
		"data: {\"n\":3}\n" +
		"data: [DONE]\n"

	e := New(strings.NewReader(body))
	frames := collect(t, e)

	require.NoError(t, e.Err())
	assert.Equal(t, []string{`{"n":1}`, `{"n":2}`, `{"n":3}`}, frames)
}

func TestEventsIgnoresNonDataLines(t *testing.T) {
	body := ": keepalive\n" +
		"event: message\n" +
		"\n" +
		"data: payload\n" +
		"id: 42\n" +
		"data: [DONE]\n"

	e := New(strings.NewReader(body))
	frames := collect(t, e)

	require.NoError(t, e.Err())
	assert.Equal(t, []string{"payload"}, frames)
}

func TestEventsHandlesCRLFAndMissingSpace(t *testing.T) {
	body := "data: with-space\r\n" +
		"data:no-space\r\n" +
		"data:[DONE]\r\n"

	e := New(strings.NewReader(body))
	frames := collect(t, e)

	require.NoError(t, e.Err())
	assert.Equal(t, []string{"with-space", "no-space"}, frames)
}

func TestEventsAcrossChunkBoundaries(t *testing.T) {
	// A frame split across many tiny chunks arrives intact.
	body := "data: first frame body\ndata: second frame body\ndata: [DONE]\n"
	e := New(&chunkReader{data: []byte(body), size: 3})

	frames := collect(t, e)
	require.NoError(t, e.Err())
	assert.Equal(t, []string{"first frame body", "second frame body"}, frames)
}

func TestEventsStopsAtDoneSentinel(t *testing.T) {
	body := "data: before\n" +
		"data: [DONE]\n" +
		"data: after\n"

	e := New(strings.NewReader(body))
	frames := collect(t, e)

	require.NoError(t, e.Err())
	assert.Equal(t, []string{"before"}, frames, "frames after the sentinel must not surface")
	assert.False(t, e.Next(), "iterator stays exhausted")
}

func TestEventsEndsCleanlyOnEOFWithoutSentinel(t *testing.T) {
	e := New(strings.NewReader("data: only\n"))
	frames := collect(t, e)

	require.NoError(t, e.Err())
	assert.Equal(t, []string{"only"}, frames)
}

func TestEventsDropsUnterminatedTail(t *testing.T) {
	e := New(strings.NewReader("data: complete\ndata: cut off mid-li"))
	frames := collect(t, e)

	require.NoError(t, e.Err())
	assert.Equal(t, []string{"complete"}, frames)
}

func TestEventsLineAtBufferBoundYieldsOneFrame(t *testing.T) {
	const bound = 256

	// A single line of exactly bound-1 bytes, then the terminator.
	payload := strings.Repeat("x", bound-1-len("data: "))
	line := "data: " + payload
	require.Len(t, line, bound-1)

	e := NewSize(&chunkReader{data: []byte(line + "\n"), size: 7}, bound)

	require.True(t, e.Next())
	assert.Equal(t, payload, string(e.Data()))
	assert.False(t, e.Next())
	assert.NoError(t, e.Err())
}

func TestEventsLineOverBufferBoundFailsStream(t *testing.T) {
	const bound = 256

	e := NewSize(strings.NewReader("data: "+strings.Repeat("x", bound*2)), bound)

	assert.False(t, e.Next(), "oversized line must not produce a frame")
	err := e.Err()
	require.Error(t, err)
	assert.Equal(t, apierr.KindStream, apierr.KindOf(err))

	var ae *apierr.Error
	require.True(t, errors.As(err, &ae))
	assert.NotNil(t, ae.Cause, "protocol violation keeps the scanner error as cause")
}

func TestEventsSkipsInvalidUTF8Line(t *testing.T) {
	// An invalid line is dropped; the stream keeps going.
	body := "data: \xff\xfe\xfd\n" +
		"data: still alive\n" +
		"data: [DONE]\n"

	e := New(strings.NewReader(body))
	frames := collect(t, e)

	require.NoError(t, e.Err())
	assert.Equal(t, []string{"still alive"}, frames)
}

type errReader struct{ err error }

func (r errReader) Read(p []byte) (int, error) { return 0, r.err }

func TestEventsSourceFailureSurfacesAsStreamError(t *testing.T) {
	broken := io.MultiReader(
		strings.NewReader("data: one\n"),
		errReader{err: errors.New("connection reset")},
	)

	e := New(broken)
	require.True(t, e.Next())
	assert.Equal(t, "one", string(e.Data()))

	assert.False(t, e.Next())
	err := e.Err()
	require.Error(t, err)
	assert.Equal(t, apierr.KindStream, apierr.KindOf(err))
	assert.ErrorContains(t, err, "reading event stream")
}

func TestEventsEmptyDataLine(t *testing.T) {
	body := "data:\ndata: [DONE]\n"
	e := New(strings.NewReader(body))

	require.True(t, e.Next())
	assert.Empty(t, e.Data())
	assert.False(t, e.Next())
	require.NoError(t, e.Err())
}
