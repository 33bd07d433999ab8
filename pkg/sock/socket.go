package sock

// Socktype is the communication style of a socket.
type Socktype uint8

const (
	// STREAM is a connection-oriented byte stream.
	STREAM Socktype = 1

	// DGRAM is a connectionless datagram exchange.
	DGRAM Socktype = 2
)

func (s Socktype) String() string {
	switch s {
	case STREAM:
		return "STREAM"
	case DGRAM:
		return "DGRAM"
	default:
		return "UNSPEC"
	}
}

// Protocol is the transport protocol carried by a socket.
type Protocol uint16

const (
	// IP lets the engine pick the protocol matching the socket type.
	IP Protocol = 0

	// TCP is the transmission control protocol.
	TCP Protocol = 6

	// UDP is the user datagram protocol.
	UDP Protocol = 17
)

func (p Protocol) String() string {
	switch p {
	case IP:
		return "IP"
	case TCP:
		return "TCP"
	case UDP:
		return "UDP"
	default:
		return "UNSPEC"
	}
}

// Flags describe the state of an open socket.
type Flags uint16

const (
	// Connected is set once the socket has a peer.
	Connected Flags = 1 << iota

	// Listening is set on sockets accepting connections.
	Listening

	// NonBlock makes socket operations fail instead of waiting.
	NonBlock
)

// Has returns true if all bits of f2 are set in f.
func (f Flags) Has(f2 Flags) bool {
	return f&f2 == f2
}

// Socket is one slot of a descriptor table.
//
// A zero Socket is a free slot; Table.Allocate claims it by resetting the
// slot and setting its reference count to one. All other fields are owned
// by the protocol engine once the slot is handed out, which is why they
// are exported while the reference count is managed by the table alone.
type Socket struct {
	crefs uint32

	// Type and Proto are fixed when the engine opens the socket.
	Type  Socktype
	Proto Protocol

	// Flags track the connection state of the socket.
	Flags Flags

	// Conn is the engine-owned connection state, if any.
	Conn any
}

// Refs returns the number of references held on the socket.
//
// The read takes no lock: a socket with zero references cannot gain one
// behind the caller's back except through Allocate, and callers
// inspecting a live socket already hold a reference keeping the count
// above zero.
func (s *Socket) Refs() int {
	return int(s.crefs)
}

// Used returns true if the slot is claimed.
func (s *Socket) Used() bool {
	return s.crefs > 0
}
