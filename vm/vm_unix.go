//go:build linux || darwin

package vm

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// reserve maps size bytes of anonymous, inaccessible memory. The mapping
// is never backed by physical pages until commit marks a sub-range
// readable/writable.
func reserve(size uintptr) (uintptr, error) {
	b, err := unix.Mmap(-1, 0, int(size), unix.PROT_NONE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return 0, fmt.Errorf("vm: reserve %d bytes: %w", size, err)
	}
	return uintptr(unsafe.Pointer(&b[0])), nil
}

func commit(base, size uintptr) error {
	b := unsafe.Slice((*byte)(unsafe.Pointer(base)), int(size))
	if err := unix.Mprotect(b, unix.PROT_READ|unix.PROT_WRITE); err != nil {
		return fmt.Errorf("vm: commit %#x+%d: %w", base, size, err)
	}
	return nil
}

func release(base, size uintptr) error {
	b := unsafe.Slice((*byte)(unsafe.Pointer(base)), int(size))
	if err := unix.Munmap(b); err != nil {
		return fmt.Errorf("vm: release %#x+%d: %w", base, size, err)
	}
	return nil
}
