package trace

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Reader iterates over the events of a trace stream.
//
// Callers should call Next to determine whether another event is
// available, retrieve it with Event, and check Err once Next returns
// false.
type Reader struct {
	input       io.Reader
	compression Compression
	started     bool
	events      []Event
	index       int
	current     Event
	err         error
	frame       []byte
	scratch     []byte
}

// NewReader creates a trace reader.
func NewReader(input io.Reader) *Reader {
	return &Reader{input: input}
}

// Next advances the reader to the next event.
func (r *Reader) Next() bool {
	if r.err != nil {
		return false
	}
	if !r.started {
		if err := r.readHeader(); err != nil {
			if err != io.EOF {
				r.err = err
			}
			return false
		}
		r.started = true
	}
	for r.index >= len(r.events) {
		if err := r.readFrame(); err != nil {
			if err != io.EOF {
				r.err = err
			}
			return false
		}
	}
	r.current = r.events[r.index]
	r.index++
	return true
}

// Event returns the event the reader is positioned on.
func (r *Reader) Event() Event {
	return r.current
}

// Err returns the first error encountered by the reader. Reaching the
// end of the stream is not an error.
func (r *Reader) Err() error {
	return r.err
}

// Compression returns the codec named by the stream header. It is only
// meaningful after the first call to Next.
func (r *Reader) Compression() Compression {
	return r.compression
}

func (r *Reader) readHeader() error {
	var hdr [headerSize]byte
	n, err := io.ReadFull(r.input, hdr[:])
	if n < headerSize {
		if err == io.EOF {
			if n == 0 {
				return err
			}
			err = io.ErrUnexpectedEOF
		}
		return fmt.Errorf("reading trace header: %w", err)
	}
	if [4]byte(hdr[:4]) != magic {
		return fmt.Errorf("not a trace stream")
	}
	if hdr[4] != version {
		return fmt.Errorf("unsupported trace version: %d", hdr[4])
	}
	r.compression = Compression(hdr[5])
	return nil
}

func (r *Reader) readFrame() error {
	var head [8]byte
	n, err := io.ReadFull(r.input, head[:])
	if n < len(head) {
		if err == io.EOF {
			if n == 0 {
				return err
			}
			err = io.ErrUnexpectedEOF
		}
		return fmt.Errorf("reading trace frame: %w", err)
	}

	frameSize := binary.LittleEndian.Uint32(head[0:])
	count := binary.LittleEndian.Uint32(head[4:])
	if frameSize > maxFrameSize {
		return fmt.Errorf("trace frame is too large (%d>%d)", frameSize, maxFrameSize)
	}
	if frameSize < 4 {
		return fmt.Errorf("trace frame is truncated")
	}

	size := int(frameSize) - 4
	if cap(r.frame) < size {
		r.frame = make([]byte, size)
	}
	r.frame = r.frame[:size]
	if _, err := io.ReadFull(r.input, r.frame); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return fmt.Errorf("reading %dB trace frame: %w", frameSize, err)
	}

	data, err := decompress(r.scratch, r.frame, r.compression)
	if err != nil {
		return fmt.Errorf("decompressing trace frame: %w", err)
	}
	r.scratch = data

	if len(data) != int(count)*eventSize {
		return fmt.Errorf("trace frame is corrupted: %d events in %dB", count, len(data))
	}

	r.events = r.events[:0]
	for off := 0; off < len(data); off += eventSize {
		var e Event
		e.unmarshal(data[off:])
		r.events = append(r.events, e)
	}
	r.index = 0
	return nil
}
