package sock

import (
	"sync"
	"sync/atomic"
)

const (
	// DefaultCapacity is the number of socket slots in a table created
	// without the MaxSockets option.
	DefaultCapacity = 16

	// DefaultBase is the first descriptor number handed out by a table
	// created without the Base option. The offset keeps socket
	// descriptors out of the range used for file descriptors, so a
	// caller multiplexing both can tell them apart.
	DefaultBase Sockfd = 128

	// Tables refuse to grow beyond this many slots.
	maxTableSockets = 1 << 16
)

// Sockfd is a socket descriptor: an index into a descriptor table, offset
// by the table base.
type Sockfd = int32

// Table is a reference-counted array of socket slots shared by a group of
// tasks.
//
// Two independent synchronization domains protect a table. The slot array
// is guarded by a mutex, taken by Allocate, Release, Retain and the
// accounting methods; waiting on it is cheap and bounded. The table
// reference count is not covered by the mutex: it is a lone atomic so
// that contexts which must not block, such as a scheduler tearing down an
// exiting task, can still share or drop the table. The two must stay
// separate; folding the count under the mutex would force those contexts
// to wait on slot operations.
type Table struct {
	mu       sync.Mutex
	crefs    atomic.Int32
	base     Sockfd
	capacity int
	slots    []Socket
}

// TableOption configures a Table before it allocates its slots.
type TableOption func(*Table)

// MaxSockets sets the number of slots in the table.
func MaxSockets(n int) TableOption {
	return func(t *Table) { t.capacity = n }
}

// Base sets the first descriptor number handed out by the table.
func Base(fd Sockfd) TableOption {
	return func(t *Table) { t.base = fd }
}

// NewTable creates a descriptor table holding one reference for the
// caller. The table is freed when the last reference is dropped by
// DecRef.
func NewTable(opts ...TableOption) (*Table, error) {
	t := &Table{base: DefaultBase, capacity: DefaultCapacity}
	for _, opt := range opts {
		opt(t)
	}
	if t.capacity <= 0 || t.base < 0 {
		return nil, EINVAL
	}
	if t.capacity > maxTableSockets {
		return nil, ENOMEM
	}
	t.slots = make([]Socket, t.capacity)
	t.crefs.Store(1)
	return t, nil
}

// IncRef adds a reference to the table on behalf of another task. It is
// safe to call on a nil table, where it does nothing.
func (t *Table) IncRef() {
	if t != nil {
		t.crefs.Add(1)
	}
}

// DecRef drops one reference from the table. The last reference frees
// the slot array; releases past that point, like all releases on a nil
// table, do nothing.
func (t *Table) DecRef() {
	if t == nil {
		return
	}
	for {
		n := t.crefs.Load()
		if n <= 0 {
			return
		}
		if t.crefs.CompareAndSwap(n, n-1) {
			if n == 1 {
				t.destroy()
			}
			return
		}
	}
}

func (t *Table) destroy() {
	t.mu.Lock()
	for i := range t.slots {
		t.slots[i] = Socket{}
	}
	t.slots = nil
	t.mu.Unlock()
}

// Refs returns the number of tasks referencing the table.
func (t *Table) Refs() int {
	if t == nil {
		return 0
	}
	return int(t.crefs.Load())
}

// Allocate claims the first free slot, resets it, gives it one reference
// and returns its descriptor. It returns ESRCH when the table is nil or
// already freed, and EMFILE when every slot is in use.
func (t *Table) Allocate() (Sockfd, error) {
	if t == nil {
		return -1, ESRCH
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.slots == nil {
		return -1, ESRCH
	}
	for i := range t.slots {
		if t.slots[i].crefs == 0 {
			t.slots[i] = Socket{crefs: 1}
			return t.base + Sockfd(i), nil
		}
	}
	return -1, EMFILE
}

// Get translates a descriptor to its socket. It returns nil when the
// table is nil or the descriptor is out of range.
//
// The lookup takes no lock: the slot index is fixed for the life of the
// table, and the caller owns a reference on the socket keeping the slot
// claimed while it is being used.
func (t *Table) Get(fd Sockfd) *Socket {
	if t == nil {
		return nil
	}
	i := int(fd - t.base)
	if i < 0 || i >= len(t.slots) {
		return nil
	}
	return &t.slots[i]
}

// Retain adds a reference to the socket behind fd, so that the slot
// survives a Release by another holder. Retaining a free slot or a
// descriptor out of range does nothing.
func (t *Table) Retain(fd Sockfd) {
	if t == nil {
		return
	}
	t.mu.Lock()
	if i := int(fd - t.base); i >= 0 && i < len(t.slots) {
		if s := &t.slots[i]; s.crefs > 0 {
			s.crefs++
		}
	}
	t.mu.Unlock()
}

// Release drops one reference from the socket behind fd, freeing the
// slot when it was the last one. Releasing a free slot or a descriptor
// out of range does nothing, so callers may release unconditionally on
// their error paths.
func (t *Table) Release(fd Sockfd) {
	if t == nil {
		return
	}
	t.mu.Lock()
	if i := int(fd - t.base); i >= 0 && i < len(t.slots) {
		if s := &t.slots[i]; s.crefs > 1 {
			s.crefs--
		} else {
			*s = Socket{}
		}
	}
	t.mu.Unlock()
}

// Base returns the first descriptor number handed out by the table.
func (t *Table) Base() Sockfd {
	if t == nil {
		return -1
	}
	return t.base
}

// Capacity returns the number of slots in the table, zero once the table
// has been freed.
func (t *Table) Capacity() int {
	if t == nil {
		return 0
	}
	t.mu.Lock()
	n := len(t.slots)
	t.mu.Unlock()
	return n
}

// Free returns the number of unclaimed slots.
func (t *Table) Free() int {
	if t == nil {
		return 0
	}
	n := 0
	t.mu.Lock()
	for i := range t.slots {
		if t.slots[i].crefs == 0 {
			n++
		}
	}
	t.mu.Unlock()
	return n
}

// Stats is a point-in-time snapshot of a table.
type Stats struct {
	Capacity int `json:"capacity" yaml:"capacity"`
	Used     int `json:"used"     yaml:"used"`
	Free     int `json:"free"     yaml:"free"`
	Refs     int `json:"refs"     yaml:"refs"`
}

// Stats snapshots the slot accounting and table reference count.
func (t *Table) Stats() Stats {
	if t == nil {
		return Stats{}
	}
	stats := Stats{Refs: int(t.crefs.Load())}
	t.mu.Lock()
	stats.Capacity = len(t.slots)
	for i := range t.slots {
		if t.slots[i].crefs == 0 {
			stats.Free++
		}
	}
	t.mu.Unlock()
	stats.Used = stats.Capacity - stats.Free
	return stats
}
