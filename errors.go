package mem6

import "errors"

// errOutOfPages is internal: it never escapes this package, it is folded
// into ErrOutOfMemory at Alloc's public surface.
var (
	// ErrOutOfAddressSpace is returned from Startup when the OS refuses
	// the initial huge reservation.
	ErrOutOfAddressSpace = errors.New("mem6: out of address space")

	// ErrOutOfMemory is returned from Alloc when a page commit fails or
	// the requested size exceeds the medium size class.
	ErrOutOfMemory = errors.New("mem6: out of memory")

	errOutOfPages = errors.New("mem6: division out of pages")
)
