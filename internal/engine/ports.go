package engine

import "math/bits"

// portPool hands out the port numbers stamped on loopback endpoints and
// takes them back when the endpoint is torn down. Ports are recycled
// lowest-first; a wrapping counter would eventually collide with a port
// still bound to a live endpoint on a long-lived engine.
type portPool struct {
	first uint16
	last  uint16
	used  bitset
}

func newPortPool(first, last uint16) *portPool {
	return &portPool{first: first, last: last}
}

// get returns the lowest free port of the range, or false when every
// port is in use.
func (p *portPool) get() (uint16, bool) {
	i := p.used.findFirstZeroBit()
	if i > int(p.last-p.first) {
		return 0, false
	}
	p.used.grow(i + 1)
	p.used.set(i)
	return p.first + uint16(i), true
}

// put returns a port to the pool. The port must have been obtained by a
// previous call to get or the method panics.
func (p *portPool) put(port uint16) {
	i := int(port - p.first)
	if !p.used.has(i) {
		panic("BUG: unused port returned to pool")
	}
	p.used.unset(i)
}

type bitset struct {
	bits []uint64
}

func (b *bitset) grow(n int) {
	if n = (n + 63) / 64; n > len(b.bits) {
		bits := make([]uint64, n)
		copy(bits, b.bits)
		b.bits = bits
	}
}

func (b *bitset) has(i int) bool {
	index := uint(i) / 64
	shift := uint(i) % 64
	return (b.bits[index] & uint64(1<<shift)) != 0
}

func (b *bitset) set(i int) {
	index := uint(i) / 64
	shift := uint(i) % 64
	b.bits[index] |= 1 << shift
}

func (b *bitset) unset(i int) {
	index := uint(i) / 64
	shift := uint(i) % 64
	b.bits[index] &= ^uint64(1 << shift)
}

func (b *bitset) findFirstZeroBit() int {
	for i, v := range b.bits {
		if v != ^uint64(0) {
			return 64*i + bits.TrailingZeros64(^v)
		}
	}
	return 64 * len(b.bits)
}
