package trace

import (
	"encoding/binary"
	"fmt"
	"io"
	"sync"
)

const (
	// DefaultBatchSize is the number of events buffered per frame.
	DefaultBatchSize = 256

	// Frames never hold more events than this, keeping them well under
	// maxFrameSize even when the codec does not shrink them.
	maxBatchSize = 8192

	headerSize   = 8
	maxFrameSize = 1 << 20

	version = 1
)

var magic = [4]byte{'N', 'S', 'T', 'R'}

// Writer writes trace events to an output stream, batching them into
// compressed frames. It is safe for concurrent use.
type Writer struct {
	mu          sync.Mutex
	output      io.Writer
	compression Compression
	batchSize   int
	started     bool
	events      []Event
	scratch     []byte
	frame       []byte
}

// NewWriter creates a trace writer. Batches of batchSize events are
// flushed as they fill up; a final Flush emits the remainder and, on
// streams that never saw an event, the stream header.
func NewWriter(output io.Writer, batchSize int, compression Compression) *Writer {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if batchSize > maxBatchSize {
		batchSize = maxBatchSize
	}
	return &Writer{
		output:      output,
		compression: compression,
		batchSize:   batchSize,
		events:      make([]Event, 0, batchSize),
	}
}

// WriteEvent buffers an event, flushing the pending batch when it
// reaches the configured size.
func (w *Writer) WriteEvent(e Event) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.events = append(w.events, e)
	if len(w.events) >= w.batchSize {
		return w.flush()
	}
	return nil
}

// Flush writes the pending batch.
func (w *Writer) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.flush()
}

func (w *Writer) flush() error {
	if !w.started {
		var hdr [headerSize]byte
		copy(hdr[:4], magic[:])
		hdr[4] = version
		hdr[5] = uint8(w.compression)
		if _, err := w.output.Write(hdr[:]); err != nil {
			return fmt.Errorf("writing trace header: %w", err)
		}
		w.started = true
	}
	if len(w.events) == 0 {
		return nil
	}

	size := len(w.events) * eventSize
	if cap(w.scratch) < size {
		w.scratch = make([]byte, size)
	}
	w.scratch = w.scratch[:size]
	for i := range w.events {
		w.events[i].marshal(w.scratch[i*eventSize:])
	}

	w.frame = compress(w.frame, w.scratch, w.compression)

	var head [8]byte
	binary.LittleEndian.PutUint32(head[0:], uint32(4+len(w.frame)))
	binary.LittleEndian.PutUint32(head[4:], uint32(len(w.events)))
	if _, err := w.output.Write(head[:]); err != nil {
		return fmt.Errorf("writing trace frame: %w", err)
	}
	if _, err := w.output.Write(w.frame); err != nil {
		return fmt.Errorf("writing trace frame: %w", err)
	}
	w.events = w.events[:0]
	return nil
}
