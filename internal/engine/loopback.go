// Package engine implements the loopback protocol engine behind the
// socket layer. Socket pairs opened through it exchange TCP segments
// and UDP datagrams over in-memory ring buffers, one per direction.
package engine

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/picokern/netsock/internal/task"
	"github.com/picokern/netsock/pkg/sock"
)

var (
	// ErrInitialized is returned by Init when the engine is already up.
	ErrInitialized = errors.New("loopback engine already initialized")

	// ErrNotInitialized is returned when sockets are opened before the
	// engine was brought up.
	ErrNotInitialized = errors.New("loopback engine not initialized")
)

const (
	// DefaultBufferSize is the receive buffer size of each endpoint.
	DefaultBufferSize = 64 * 1024

	// Endpoint buffers are clamped to hold at least two full segments.
	minBufferSize = 4096

	// Port range handed out to loopback endpoints.
	firstPort = 49152
	lastPort  = 65535
)

// Loopback is an in-memory protocol engine. It satisfies sock.Engine
// and services the sockets handed out by the descriptor tables of the
// calling tasks.
type Loopback struct {
	log     *zap.Logger
	lim     *rate.Limiter
	bufsize int

	started atomic.Bool

	mu    sync.Mutex
	ports *portPool
}

// Option configures a Loopback engine.
type Option func(*Loopback)

// Logger sets the logger used by the engine.
func Logger(log *zap.Logger) Option {
	return func(lo *Loopback) { lo.log = log.Named("engine") }
}

// Throttle caps the engine throughput, in payload bytes per second.
func Throttle(limit rate.Limit, burst int) Option {
	return func(lo *Loopback) { lo.lim = rate.NewLimiter(limit, burst) }
}

// BufferSize sets the receive buffer size of each endpoint.
func BufferSize(size int) Option {
	return func(lo *Loopback) { lo.bufsize = size }
}

// NewLoopback creates a loopback engine. It must be brought up with
// sock.Initialize before sockets are opened through it.
func NewLoopback(opts ...Option) *Loopback {
	lo := &Loopback{
		log:     zap.NewNop(),
		bufsize: DefaultBufferSize,
	}
	for _, opt := range opts {
		opt(lo)
	}
	if lo.bufsize < minBufferSize {
		lo.bufsize = minBufferSize
	}
	return lo
}

// Init brings the engine up. It fails on a second call.
func (lo *Loopback) Init() error {
	if !lo.started.CompareAndSwap(false, true) {
		return ErrInitialized
	}
	lo.mu.Lock()
	lo.ports = newPortPool(firstPort, lastPort)
	lo.mu.Unlock()
	lo.log.Info("loopback engine up",
		zap.Int("buffer_size", lo.bufsize),
		zap.Bool("throttled", lo.lim != nil),
	)
	return nil
}

// BufferSize returns the receive buffer size of the endpoints opened by
// the engine.
func (lo *Loopback) BufferSize() int {
	return lo.bufsize
}

func (lo *Loopback) getPort() (uint16, error) {
	lo.mu.Lock()
	defer lo.mu.Unlock()
	port, ok := lo.ports.get()
	if !ok {
		return 0, sock.EADDRNOTAVAIL
	}
	return port, nil
}

func (lo *Loopback) putPort(port uint16) {
	lo.mu.Lock()
	lo.ports.put(port)
	lo.mu.Unlock()
}

// Pair opens a connected socket pair in the descriptor table of the
// calling task and returns the two descriptors.
func (lo *Loopback) Pair(ctx context.Context, typ sock.Socktype) (sock.Sockfd, sock.Sockfd, error) {
	if !lo.started.Load() {
		return -1, -1, ErrNotInitialized
	}
	var proto sock.Protocol
	switch typ {
	case sock.STREAM:
		proto = sock.TCP
	case sock.DGRAM:
		proto = sock.UDP
	default:
		return -1, -1, sock.EINVAL
	}

	table := task.Sockets(ctx)
	fd1, err := table.Allocate()
	if err != nil {
		return -1, -1, err
	}
	fd2, err := table.Allocate()
	if err != nil {
		table.Release(fd1)
		return -1, -1, err
	}

	p1, err := lo.getPort()
	if err != nil {
		table.Release(fd2)
		table.Release(fd1)
		return -1, -1, err
	}
	p2, err := lo.getPort()
	if err != nil {
		lo.putPort(p1)
		table.Release(fd2)
		table.Release(fd1)
		return -1, -1, err
	}

	c1, c2 := newConnPair(typ, lo.bufsize, Addr{Port: p1}, Addr{Port: p2})

	s1, s2 := table.Get(fd1), table.Get(fd2)
	s1.Type, s1.Proto, s1.Flags, s1.Conn = typ, proto, sock.Connected, c1
	s2.Type, s2.Proto, s2.Flags, s2.Conn = typ, proto, sock.Connected, c2

	lo.log.Debug("socket pair connected",
		zap.Stringer("type", typ),
		zap.Int32("fd1", fd1),
		zap.Int32("fd2", fd2),
		zap.Stringer("addr1", c1.local),
		zap.Stringer("addr2", c2.local),
	)
	return fd1, fd2, nil
}

// Dup opens a new descriptor referring to the same socket as fd.
func (lo *Loopback) Dup(ctx context.Context, fd sock.Sockfd) (sock.Sockfd, error) {
	table := task.Sockets(ctx)
	s := table.Get(fd)
	if s == nil || !s.Used() {
		return -1, sock.EBADF
	}
	fd2, err := table.Allocate()
	if err != nil {
		return -1, err
	}
	s2 := table.Get(fd2)
	s2.Type, s2.Proto, s2.Flags = s.Type, s.Proto, s.Flags
	if c, ok := s.Conn.(*conn); ok {
		c.refs.Add(1)
	}
	s2.Conn = s.Conn
	return fd2, nil
}

// Send writes p on the socket behind fd.
func (lo *Loopback) Send(ctx context.Context, fd sock.Sockfd, p []byte) (int, error) {
	s, c, err := lo.resolve(ctx, fd)
	if err != nil {
		return 0, err
	}
	return c.send(ctx, lo.lim, s.Flags.Has(sock.NonBlock), p)
}

// Recv reads from the socket behind fd into p.
func (lo *Loopback) Recv(ctx context.Context, fd sock.Sockfd, p []byte) (int, error) {
	s, c, err := lo.resolve(ctx, fd)
	if err != nil {
		return 0, err
	}
	return c.recv(ctx, s.Flags.Has(sock.NonBlock), p)
}

// Close releases the descriptor. The connection is torn down when this
// was the last descriptor referring to the socket.
func (lo *Loopback) Close(ctx context.Context, fd sock.Sockfd) error {
	table := task.Sockets(ctx)
	s := table.Get(fd)
	if s == nil || !s.Used() {
		return sock.EBADF
	}
	if s.Refs() == 1 {
		if c, ok := s.Conn.(*conn); ok && c.refs.Add(-1) == 0 {
			c.shutdown()
			lo.putPort(c.local.Port)
			lo.log.Debug("socket closed",
				zap.Int32("fd", fd),
				zap.Stringer("addr", c.local),
			)
		}
	}
	table.Release(fd)
	return nil
}

func (lo *Loopback) resolve(ctx context.Context, fd sock.Sockfd) (*sock.Socket, *conn, error) {
	s := task.Sockets(ctx).Get(fd)
	if s == nil || !s.Used() {
		return nil, nil, sock.EBADF
	}
	c, ok := s.Conn.(*conn)
	if !ok || c == nil {
		return nil, nil, sock.ENOTCONN
	}
	return s, c, nil
}
