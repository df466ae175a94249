package arena

import (
	"errors"
	"fmt"
	"unsafe"
)

// MaxCapacity bounds a single arena. Requests above it fail with ErrAllocation.
const MaxCapacity = 64 << 20

var (
	ErrAllocation = errors.New("arena: allocation failed")
	ErrExhausted  = errors.New("arena: exhausted")
	ErrReleased   = errors.New("arena: released")
)

// Region describes one allocation as an offset into the arena and a length.
type Region struct {
	Offset int
	Len    int
}

// End returns the first byte past the region.
func (r Region) End() int { return r.Offset + r.Len }

// Arena is a fixed-capacity bump allocator over one aligned byte block.
// Allocations only advance the offset; Reset rewinds it and Release drops the
// block. Single owner, no locking.
type Arena struct {
	raw       []byte // owned block, over-allocated so buf can start aligned
	buf       []byte // aligned view of length capacity
	capacity  int
	alignment int
	offset    int
	released  bool
}

// New allocates a zeroed block of capacityBytes rounded up to alignment.
// alignment must be a power of two.
func New(capacityBytes, alignment int) (*Arena, error) {
	if alignment <= 0 || alignment&(alignment-1) != 0 {
		return nil, fmt.Errorf("%w: alignment %d is not a power of two", ErrAllocation, alignment)
	}
	if alignment > MaxCapacity {
		return nil, fmt.Errorf("%w: alignment %d exceeds %d", ErrAllocation, alignment, MaxCapacity)
	}
	if capacityBytes <= 0 {
		return nil, fmt.Errorf("%w: capacity %d", ErrAllocation, capacityBytes)
	}
	if capacityBytes > MaxCapacity {
		return nil, fmt.Errorf("%w: capacity %d exceeds %d", ErrAllocation, capacityBytes, MaxCapacity)
	}
	// MaxCapacity is a multiple of any alignment accepted above, so rounding
	// stays within it.
	capacity := alignUp(capacityBytes, alignment)

	raw := make([]byte, capacity+alignment-1)
	base := int(uintptr(unsafe.Pointer(&raw[0])) & uintptr(alignment-1))
	skip := 0
	if base != 0 {
		skip = alignment - base
	}

	return &Arena{
		raw:       raw,
		buf:       raw[skip : skip+capacity : skip+capacity],
		capacity:  capacity,
		alignment: alignment,
	}, nil
}

// Allocate reserves elementSize*count bytes at the current offset. The offset
// advances by the size rounded up to the arena alignment. On ErrExhausted the
// offset is left unchanged.
func (a *Arena) Allocate(elementSize, count int) (Region, error) {
	if a.released {
		return Region{}, ErrReleased
	}
	if elementSize <= 0 || count <= 0 {
		return Region{}, fmt.Errorf("%w: element size %d, count %d", ErrAllocation, elementSize, count)
	}
	size := elementSize * count
	if size/count != elementSize {
		return Region{}, fmt.Errorf("%w: %d x %d overflows", ErrExhausted, elementSize, count)
	}
	// capacity and offset are multiples of the alignment, so once size fits
	// the rounded size fits too and alignUp cannot overflow.
	if size > a.capacity-a.offset {
		return Region{}, fmt.Errorf("%w: offset %d + %d > capacity %d", ErrExhausted, a.offset, size, a.capacity)
	}
	aligned := alignUp(size, a.alignment)

	r := Region{Offset: a.offset, Len: size}
	a.offset += aligned
	return r, nil
}

// Reset rewinds the offset to zero. Regions handed out before the reset are
// logically invalid; their bytes are left as they were.
func (a *Arena) Reset() {
	a.offset = 0
}

// Release drops the backing block. Size keeps reporting the capacity the
// arena was created with. Calling it again is a no-op.
func (a *Arena) Release() {
	if a.released {
		return
	}
	a.raw = nil
	a.buf = nil
	a.offset = 0
	a.released = true
}

// Bytes returns the bytes of r. It panics on a region outside the arena,
// which can only come from a caller mixing regions across arenas or resets.
func (a *Arena) Bytes(r Region) ([]byte, error) {
	if a.released {
		return nil, ErrReleased
	}
	if r.Offset < 0 || r.Len < 0 || r.Len > a.capacity-r.Offset {
		panic(fmt.Sprintf("arena: region [%d,%d) outside capacity %d", r.Offset, r.End(), a.capacity))
	}
	return a.buf[r.Offset:r.End():r.End()], nil
}

// Size returns the capacity in bytes, also after Release.
func (a *Arena) Size() int { return a.capacity }

func (a *Arena) Offset() int    { return a.offset }
func (a *Arena) Alignment() int { return a.alignment }
func (a *Arena) Released() bool { return a.released }

// Remaining returns the bytes still available before the next Reset, 0 once
// released.
func (a *Arena) Remaining() int {
	if a.released {
		return 0
	}
	return a.capacity - a.offset
}

// Slots views r as a slice of T. T must not contain Go pointers: the arena
// block is a []byte and the collector does not scan it. The region length
// must be a multiple of the size of T.
func Slots[T any](a *Arena, r Region) ([]T, error) {
	b, err := a.Bytes(r)
	if err != nil {
		return nil, err
	}
	var zero T
	size := int(unsafe.Sizeof(zero))
	if size == 0 || r.Len%size != 0 {
		return nil, fmt.Errorf("%w: region of %d bytes does not hold %d-byte elements", ErrAllocation, r.Len, size)
	}
	if r.Len == 0 {
		return nil, nil
	}
	if uintptr(unsafe.Pointer(&b[0]))%unsafe.Alignof(zero) != 0 {
		return nil, fmt.Errorf("%w: region at offset %d misaligned for element", ErrAllocation, r.Offset)
	}
	return unsafe.Slice((*T)(unsafe.Pointer(&b[0])), r.Len/size), nil
}

func alignUp(n, align int) int {
	return (n + align - 1) &^ (align - 1)
}
