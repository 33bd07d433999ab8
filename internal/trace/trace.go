// Package trace records descriptor table activity to a compact binary
// stream, so that socket workloads can be inspected after the fact.
//
// Events are fixed-width records batched into length-prefixed frames.
// Frames are optionally compressed; the stream starts with a small
// header naming the codec.
package trace

import (
	"encoding/binary"
	"fmt"

	"github.com/google/uuid"
)

// Kind describes what a trace event witnessed.
type Kind uint8

const (
	// TableCreate records the creation of a descriptor table.
	TableCreate Kind = iota + 1

	// TableShare records a task taking a reference on a table.
	TableShare

	// TableDrop records a task dropping its reference on a table.
	TableDrop

	// SockAlloc records a descriptor allocation.
	SockAlloc

	// SockRetain records an extra reference taken on a socket.
	SockRetain

	// SockRelease records a reference dropped from a socket.
	SockRelease

	// SockExhaust records an allocation failing on a full table.
	SockExhaust
)

func (k Kind) String() string {
	switch k {
	case TableCreate:
		return "table-create"
	case TableShare:
		return "table-share"
	case TableDrop:
		return "table-drop"
	case SockAlloc:
		return "sock-alloc"
	case SockRetain:
		return "sock-retain"
	case SockRelease:
		return "sock-release"
	case SockExhaust:
		return "sock-exhaust"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// MarshalText makes kinds serialize as their names in json and yaml output.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Event is one record of descriptor table activity.
type Event struct {
	// Time is the time of the event, in nanoseconds since the epoch.
	Time int64 `json:"time"`

	// Task is the task the event happened in.
	Task uuid.UUID `json:"task"`

	// Kind tells what happened.
	Kind Kind `json:"kind"`

	// FD is the descriptor involved, -1 when the event concerns the
	// table as a whole.
	FD int32 `json:"fd"`

	// Refs is the reference count after the event: the slot count for
	// socket events, the table count for table events.
	Refs int32 `json:"refs"`
}

// eventSize is the encoded size of an Event.
const eventSize = 8 + 16 + 1 + 4 + 4

func (e *Event) marshal(b []byte) {
	_ = b[eventSize-1]
	binary.LittleEndian.PutUint64(b[0:], uint64(e.Time))
	copy(b[8:24], e.Task[:])
	b[24] = uint8(e.Kind)
	binary.LittleEndian.PutUint32(b[25:], uint32(e.FD))
	binary.LittleEndian.PutUint32(b[29:], uint32(e.Refs))
}

func (e *Event) unmarshal(b []byte) {
	_ = b[eventSize-1]
	e.Time = int64(binary.LittleEndian.Uint64(b[0:]))
	copy(e.Task[:], b[8:24])
	e.Kind = Kind(b[24])
	e.FD = int32(binary.LittleEndian.Uint32(b[25:]))
	e.Refs = int32(binary.LittleEndian.Uint32(b[29:]))
}
