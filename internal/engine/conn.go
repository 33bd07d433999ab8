package engine

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/netstack/tcpip/header"
	"github.com/smallnest/ringbuffer"
	"golang.org/x/time/rate"

	"github.com/picokern/netsock/pkg/sock"
)

// Addr identifies one end of a loopback connection.
type Addr struct {
	Port uint16
}

func (a Addr) Network() string { return "lo" }

func (a Addr) String() string { return fmt.Sprintf("lo0:%d", a.Port) }

// conn is one endpoint of a connected socket pair.
//
// The ring buffer holds the frames written by the peer. All state of the
// inbound direction lives behind the endpoint mutex, including the
// sequence number the peer stamps on its next segment, so a sender and
// its receiver never hold two endpoint locks at once.
type conn struct {
	typ    sock.Socktype
	local  Addr
	remote Addr
	peer   *conn
	size   int

	// Number of descriptors sharing this endpoint.
	refs atomic.Int32

	// Sequence number of the next payload byte Recv expects. Senders
	// read it to stamp the ack field of outgoing segments.
	rseq atomic.Uint32

	mu      sync.Mutex
	rb      *ringbuffer.RingBuffer
	wseq    uint32 // sequence number of the next byte the peer writes
	pending []byte // stream payload decoded ahead of the reader
	closed  bool

	avail chan struct{}
	space chan struct{}
}

func newConn(typ sock.Socktype, size int, local, remote Addr) *conn {
	c := &conn{
		typ:    typ,
		local:  local,
		remote: remote,
		size:   size,
		rb:     ringbuffer.New(size),
		// Sequence numbers start at one, the implied SYN took zero.
		wseq:  1,
		avail: make(chan struct{}, 1),
		space: make(chan struct{}, 1),
	}
	c.refs.Store(1)
	c.rseq.Store(1)
	return c
}

func newConnPair(typ sock.Socktype, size int, a1, a2 Addr) (*conn, *conn) {
	c1 := newConn(typ, size, a1, a2)
	c2 := newConn(typ, size, a2, a1)
	c1.peer, c2.peer = c2, c1
	return c1, c2
}

func signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

func mustWrite(rb *ringbuffer.RingBuffer, p []byte) {
	if n, err := rb.Write(p); err != nil || n != len(p) {
		panic("BUG: loopback ring buffer rejected a sized write")
	}
}

func mustRead(rb *ringbuffer.RingBuffer, p []byte) {
	if n, err := rb.Read(p); err != nil || n != len(p) {
		panic("BUG: truncated frame on loopback wire")
	}
}

// pushFrame appends a length-delimited frame to the ring buffer. The
// caller holds the endpoint mutex and has checked that the frame fits.
func (c *conn) pushFrame(frame []byte) {
	if len(frame) > maxFrameLen {
		panic("BUG: oversized frame on loopback wire")
	}
	var prefix [framePrefixLen]byte
	binary.BigEndian.PutUint16(prefix[:], uint16(len(frame)))
	mustWrite(c.rb, prefix[:])
	mustWrite(c.rb, frame)
	signal(c.avail)
}

// pullFrame reads the next complete frame out of the ring buffer. The
// caller holds the endpoint mutex and has checked that the buffer is not
// empty; frames are written whole, so one being started means one is
// there.
func (c *conn) pullFrame() []byte {
	var prefix [framePrefixLen]byte
	mustRead(c.rb, prefix[:])
	frame := make([]byte, binary.BigEndian.Uint16(prefix[:]))
	mustRead(c.rb, frame)
	signal(c.space)
	return frame
}

// send writes p to the peer, split into segments of at most mss bytes.
// It blocks while the peer buffer is full, unless nonblock is set, in
// which case it reports what it wrote and EAGAIN when that is nothing.
func (c *conn) send(ctx context.Context, lim *rate.Limiter, nonblock bool, p []byte) (int, error) {
	if c.typ == sock.DGRAM {
		return c.sendDatagram(ctx, lim, nonblock, p)
	}

	dst := c.peer
	sent := 0
	for sent < len(p) {
		chunk := p[sent:]
		if len(chunk) > mss {
			chunk = chunk[:mss]
		}

		if lim != nil {
			if nonblock {
				if !lim.AllowN(time.Now(), len(chunk)) {
					return sendResult(sent, sock.EAGAIN)
				}
			} else if err := lim.WaitN(ctx, len(chunk)); err != nil {
				return sent, err
			}
		}

		for {
			dst.mu.Lock()
			if dst.closed {
				dst.mu.Unlock()
				signal(dst.space)
				return sent, sock.EPIPE
			}
			need := framePrefixLen + header.TCPMinimumSize + len(chunk)
			if dst.rb.Free() >= need {
				seg := encodeSegment(c.local.Port, c.remote.Port,
					dst.wseq, c.rseq.Load(),
					header.TCPFlagPsh|header.TCPFlagAck, chunk)
				dst.wseq += uint32(len(chunk))
				dst.pushFrame(seg)
				dst.mu.Unlock()
				sent += len(chunk)
				break
			}
			dst.mu.Unlock()

			if nonblock {
				return sendResult(sent, sock.EAGAIN)
			}
			select {
			case <-dst.space:
			case <-ctx.Done():
				return sent, ctx.Err()
			}
		}
	}
	return sent, nil
}

func (c *conn) sendDatagram(ctx context.Context, lim *rate.Limiter, nonblock bool, p []byte) (int, error) {
	need := framePrefixLen + header.UDPMinimumSize + len(p)
	if header.UDPMinimumSize+len(p) > maxFrameLen || need > c.size {
		return 0, sock.EMSGSIZE
	}

	if lim != nil {
		if nonblock {
			if !lim.AllowN(time.Now(), len(p)) {
				return 0, sock.EAGAIN
			}
		} else if err := lim.WaitN(ctx, len(p)); err != nil {
			return 0, err
		}
	}

	dst := c.peer
	for {
		dst.mu.Lock()
		if dst.closed {
			dst.mu.Unlock()
			signal(dst.space)
			return 0, sock.EPIPE
		}
		if dst.rb.Free() >= need {
			dst.pushFrame(encodeDatagram(c.local.Port, c.remote.Port, p))
			dst.mu.Unlock()
			return len(p), nil
		}
		dst.mu.Unlock()

		if nonblock {
			return 0, sock.EAGAIN
		}
		select {
		case <-dst.space:
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
}

// sendResult folds a partial non-blocking write into the return values
// of send: bytes written when there are any, the error otherwise.
func sendResult(sent int, err error) (int, error) {
	if sent > 0 {
		return sent, nil
	}
	return 0, err
}

// recv reads from the endpoint into p. Stream reads return any buffered
// payload first and keep the remainder of a segment for the next call;
// datagram reads consume one datagram and discard what does not fit.
func (c *conn) recv(ctx context.Context, nonblock bool, p []byte) (int, error) {
	for {
		c.mu.Lock()

		if len(c.pending) > 0 {
			n := copy(p, c.pending)
			c.pending = c.pending[n:]
			c.rseq.Add(uint32(n))
			c.mu.Unlock()
			return n, nil
		}

		if !c.rb.IsEmpty() {
			frame := c.pullFrame()
			switch c.typ {
			case sock.STREAM:
				tcp := decodeSegment(frame)
				if tcp.Flags()&header.TCPFlagFin != 0 {
					c.mu.Unlock()
					// avail carries a single token, pass the wakeup on to
					// other tasks blocked on the same endpoint.
					signal(c.avail)
					return 0, io.EOF
				}
				if tcp.SequenceNumber() != c.rseq.Load() {
					panic("BUG: out of order segment on loopback wire")
				}
				payload := tcp.Payload()
				n := copy(p, payload)
				c.pending = payload[n:]
				c.rseq.Add(uint32(n))
				c.mu.Unlock()
				return n, nil
			default:
				payload := decodeDatagram(frame).Payload()
				n := copy(p, payload)
				c.mu.Unlock()
				return n, nil
			}
		}

		closed := c.closed
		c.mu.Unlock()

		if closed {
			signal(c.avail)
			return 0, io.EOF
		}
		if nonblock {
			return 0, sock.EAGAIN
		}
		select {
		case <-c.avail:
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
}

// shutdown tears down both directions of the pair. On stream pairs a
// final empty Fin segment is left for the peer when there is room, so
// the reader drains buffered data before seeing the end of the stream.
func (c *conn) shutdown() {
	p := c.peer

	p.mu.Lock()
	if !p.closed {
		p.closed = true
		if c.typ == sock.STREAM {
			fin := encodeSegment(c.local.Port, c.remote.Port,
				p.wseq, 0, header.TCPFlagFin, nil)
			p.wseq++
			if p.rb.Free() >= framePrefixLen+len(fin) {
				p.pushFrame(fin)
			}
		}
	}
	p.mu.Unlock()

	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()

	signal(p.avail)
	signal(p.space)
	signal(c.avail)
	signal(c.space)
}
