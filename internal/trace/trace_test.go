package trace_test

import (
	"bytes"
	"io"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"

	"github.com/picokern/netsock/internal/assert"
	"github.com/picokern/netsock/internal/trace"
)

func makeEvents(n int) []trace.Event {
	start := time.Date(2023, 7, 1, 12, 0, 0, 0, time.UTC).UnixNano()
	tasks := [3]uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	kinds := [...]trace.Kind{
		trace.TableCreate,
		trace.SockAlloc,
		trace.SockRetain,
		trace.SockRelease,
		trace.SockExhaust,
		trace.TableShare,
		trace.TableDrop,
	}

	events := make([]trace.Event, n)
	for i := range events {
		events[i] = trace.Event{
			Time: start + int64(i),
			Task: tasks[i%len(tasks)],
			Kind: kinds[i%len(kinds)],
			FD:   int32(128 + i%16),
			Refs: int32(i % 4),
		}
	}
	return events
}

func TestTraceRoundTrip(t *testing.T) {
	for _, compression := range []trace.Compression{
		trace.Uncompressed,
		trace.Snappy,
		trace.Zstd,
	} {
		t.Run(compression.String(), func(t *testing.T) {
			events := makeEvents(1000)

			buffer := new(bytes.Buffer)
			writer := trace.NewWriter(buffer, 64, compression)
			for _, e := range events {
				assert.OK(t, writer.WriteEvent(e))
			}
			assert.OK(t, writer.Flush())

			reader := trace.NewReader(buffer)
			got := make([]trace.Event, 0, len(events))
			for reader.Next() {
				got = append(got, reader.Event())
			}
			assert.OK(t, reader.Err())
			assert.Equal(t, reader.Compression(), compression)

			if diff := cmp.Diff(events, got); diff != "" {
				t.Fatal(diff)
			}
		})
	}
}

func TestTraceEmptyStream(t *testing.T) {
	buffer := new(bytes.Buffer)
	writer := trace.NewWriter(buffer, 0, trace.Zstd)
	assert.OK(t, writer.Flush())

	// The stream holds a header and no frames.
	reader := trace.NewReader(buffer)
	assert.Equal(t, reader.Next(), false)
	assert.OK(t, reader.Err())
	assert.Equal(t, reader.Compression(), trace.Zstd)
}

func TestTraceEmptyInput(t *testing.T) {
	reader := trace.NewReader(new(bytes.Buffer))
	assert.Equal(t, reader.Next(), false)
	assert.OK(t, reader.Err())
}

func TestTraceBadMagic(t *testing.T) {
	reader := trace.NewReader(bytes.NewReader([]byte("XXXXxxxx")))
	assert.Equal(t, reader.Next(), false)
	assert.True(t, reader.Err() != nil)
}

func TestTraceTruncated(t *testing.T) {
	buffer := new(bytes.Buffer)
	writer := trace.NewWriter(buffer, 16, trace.Snappy)
	for _, e := range makeEvents(10) {
		assert.OK(t, writer.WriteEvent(e))
	}
	assert.OK(t, writer.Flush())

	data := buffer.Bytes()
	reader := trace.NewReader(bytes.NewReader(data[:len(data)-3]))
	for reader.Next() {
	}
	assert.True(t, reader.Err() != nil)
}

func TestParseCompression(t *testing.T) {
	for _, test := range []struct {
		name string
		want trace.Compression
	}{
		{"none", trace.Uncompressed},
		{"", trace.Uncompressed},
		{"snappy", trace.Snappy},
		{"zstd", trace.Zstd},
	} {
		c, err := trace.ParseCompression(test.name)
		assert.OK(t, err)
		assert.Equal(t, c, test.want)
	}

	_, err := trace.ParseCompression("lz4")
	assert.True(t, err != nil)
}

func BenchmarkTraceWriter(b *testing.B) {
	for _, compression := range []trace.Compression{
		trace.Uncompressed,
		trace.Snappy,
		trace.Zstd,
	} {
		b.Run(compression.String(), func(b *testing.B) {
			writer := trace.NewWriter(io.Discard, trace.DefaultBatchSize, compression)
			events := makeEvents(256)
			b.SetBytes(33)

			for i := 0; i < b.N; i++ {
				if err := writer.WriteEvent(events[i%len(events)]); err != nil {
					b.Fatal(err)
				}
			}
			if err := writer.Flush(); err != nil {
				b.Fatal(err)
			}
		})
	}
}
