package mem6

import (
	"fmt"
	"unsafe"
)

// Alloc draws count elements of T from a's enclave, dispatching on
// count*sizeof(T). count must be > 0; violating that is a precondition
// failure (Alloc panics), not a recoverable error. A request whose
// count*sizeof(T) exceeds the medium size class (1024 bytes) returns
// ErrOutOfMemory.
//
// The common case never touches the OS; only the rare page expansion can
// block on a commit syscall.
func Alloc[T any](a Allocator, count int) ([]T, error) {
	if count <= 0 {
		panic("mem6: Alloc: count must be > 0")
	}

	var zero T
	size := unsafe.Sizeof(zero) * uintptr(count)

	d, err := a.divisionFor(size)
	if err != nil {
		return nil, ErrOutOfMemory
	}

	idx, err := d.alloc(a.sys.commit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOutOfMemory, err)
	}

	addr := d.blockAddr(idx)
	return unsafe.Slice((*T)(unsafe.Pointer(addr)), count), nil
}

// Free returns s to a's enclave. s must have been returned by Alloc on
// this same Allocator and not already freed; violating that is undefined
// behavior. Free never fails: allocations larger than the medium class
// are silently ignored rather than rejected, so callers never have to
// handle a free-time error.
func Free[T any](a Allocator, s []T) {
	if len(s) == 0 {
		return
	}

	var zero T
	size := unsafe.Sizeof(zero) * uintptr(len(s))
	if size > mediumMaxSize {
		return
	}

	d, err := a.divisionFor(size)
	if err != nil {
		return
	}

	addr := uintptr(unsafe.Pointer(&s[0]))
	d.free(d.blockIndex(addr))
}
