//go:build windows

package vm

import (
	"fmt"

	"golang.org/x/sys/windows"
)

// reserve mirrors unix mmap(PROT_NONE) with VirtualAlloc's MEM_RESERVE:
// address space is claimed but carries no physical backing yet.
func reserve(size uintptr) (uintptr, error) {
	addr, err := windows.VirtualAlloc(0, size, windows.MEM_RESERVE, windows.PAGE_NOACCESS)
	if err != nil {
		return 0, fmt.Errorf("vm: reserve %d bytes: %w", size, err)
	}
	return addr, nil
}

func commit(base, size uintptr) error {
	if _, err := windows.VirtualAlloc(base, size, windows.MEM_COMMIT, windows.PAGE_READWRITE); err != nil {
		return fmt.Errorf("vm: commit %#x+%d: %w", base, size, err)
	}
	return nil
}

// release frees the entire reservation base belongs to. Windows requires
// MEM_RELEASE to target the whole region returned by MEM_RESERVE with a
// size of zero, so the size argument is intentionally unused here; base
// must be the address Reserve originally returned.
func release(base, _ uintptr) error {
	if err := windows.VirtualFree(base, 0, windows.MEM_RELEASE); err != nil {
		return fmt.Errorf("vm: release %#x: %w", base, err)
	}
	return nil
}
