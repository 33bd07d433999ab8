package sock

import "fmt"

// Errno is the error type reported by descriptor table operations.
//
// The values mirror the kernel error numbers a socket layer would set so
// that callers stacking a POSIX-like API on top can map them directly.
type Errno int32

const (
	// EINVAL indicates an invalid argument or table option.
	EINVAL Errno = 22

	// EMFILE indicates that the descriptor table is full.
	EMFILE Errno = 24

	// ENOMEM indicates that a descriptor table could not be created.
	ENOMEM Errno = 12

	// ESRCH indicates that no descriptor table is bound to the calling
	// execution context.
	ESRCH Errno = 3

	// EBADF indicates a descriptor outside the valid range, or one that
	// does not resolve to a socket in the bound table.
	EBADF Errno = 9

	// EAGAIN indicates that a non-blocking operation would have to wait.
	EAGAIN Errno = 11

	// EPIPE indicates a send on a socket whose peer has gone away.
	EPIPE Errno = 32

	// ENOTCONN indicates an operation on a socket that has no peer.
	ENOTCONN Errno = 107

	// EMSGSIZE indicates a datagram too large for the socket buffer.
	EMSGSIZE Errno = 90

	// EADDRNOTAVAIL indicates that the engine ran out of loopback ports.
	EADDRNOTAVAIL Errno = 99
)

func (e Errno) Error() string {
	switch e {
	case EINVAL:
		return "invalid argument"
	case EMFILE:
		return "too many open sockets"
	case ENOMEM:
		return "out of memory"
	case ESRCH:
		return "no descriptor table"
	case EBADF:
		return "bad socket descriptor"
	case EAGAIN:
		return "operation would block"
	case EPIPE:
		return "broken pipe"
	case ENOTCONN:
		return "socket not connected"
	case EMSGSIZE:
		return "message too long"
	case EADDRNOTAVAIL:
		return "address not available"
	default:
		return fmt.Sprintf("errno(%d)", int32(e))
	}
}

func (e Errno) String() string {
	switch e {
	case EINVAL:
		return "EINVAL"
	case EMFILE:
		return "EMFILE"
	case ENOMEM:
		return "ENOMEM"
	case ESRCH:
		return "ESRCH"
	case EBADF:
		return "EBADF"
	case EAGAIN:
		return "EAGAIN"
	case EPIPE:
		return "EPIPE"
	case ENOTCONN:
		return "ENOTCONN"
	case EMSGSIZE:
		return "EMSGSIZE"
	case EADDRNOTAVAIL:
		return "EADDRNOTAVAIL"
	default:
		return fmt.Sprintf("errno(%d)", int32(e))
	}
}
