package mem6

import (
	"fmt"
	"unsafe"

	"github.com/iansmith/mem6/vm"
)

// enclaveState is one enclave's share of the reservation: the small and
// medium pools, plus the reserved-but-never-initialized large and giant
// pool bases. Large and giant exist in address space only — nothing ever
// carves them into divisions.
type enclaveState struct {
	small  pool
	medium pool

	largeBase uintptr
	giantBase uintptr
}

// System is the process-wide allocator state, returned by Startup and
// torn down by Shutdown. It is a singleton object rather than package
// globals so that Startup/Shutdown can run more than once per process
// (tests do exactly that).
type System struct {
	base      uintptr
	totalSize uintptr
	enclaveCt int
	enclaves  []enclaveState
	closed    bool
}

// Startup reserves the single huge address range and lays out every
// enclave's pools within it. enclaveCt must be in [1, 32].
func Startup(enclaveCt int) (*System, error) {
	if enclaveCt <= 0 || enclaveCt > maxEnclaves {
		return nil, fmt.Errorf("mem6: enclaveCt must be in [1,%d], got %d", maxEnclaves, enclaveCt)
	}

	lay := computeLayout()
	total := lay.perEnclave * uintptr(enclaveCt)

	base, err := vm.Reserve(total)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOutOfAddressSpace, err)
	}

	sys := &System{
		base:      base,
		totalSize: total,
		enclaveCt: enclaveCt,
		enclaves:  make([]enclaveState, enclaveCt),
	}

	specs := classSpecs()
	smallSpecs, mediumSpecs := specs[:smallClassCt], specs[smallClassCt:]

	cursor := base
	for e := 0; e < enclaveCt; e++ {
		es := &sys.enclaves[e]

		smallBase := cursor
		cursor += smallPoolSize
		mediumBase := cursor
		cursor += mediumPoolSize
		es.largeBase = cursor
		cursor += largePoolSize
		es.giantBase = cursor
		cursor += giantPoolSize
		recordsBase := cursor
		cursor += lay.recordsSize
		freeListsBase := cursor
		cursor += lay.freeListsSize

		// Records are committed eagerly: the whole region is only a few
		// MB and eager commit keeps every page-record lookup branch-free.
		if err := vm.Commit(recordsBase, roundUpHostPage(lay.recordsSize)); err != nil {
			_ = vm.Release(base, total)
			return nil, fmt.Errorf("%w: commit records: %v", ErrOutOfAddressSpace, err)
		}

		records := unsafe.Slice((*PageRecord)(unsafe.Pointer(recordsBase)), lay.recordsCt)
		nodes := unsafe.Slice((*blockNode)(unsafe.Pointer(freeListsBase)), lay.freeListsCt)

		var recordCursor, nodeCursor uintptr
		initPool(&es.small, smallSpecs, smallBase, records, &recordCursor, freeListsBase, nodes, &nodeCursor)
		initPool(&es.medium, mediumSpecs, mediumBase, records, &recordCursor, freeListsBase, nodes, &nodeCursor)
	}

	return sys, nil
}

// Shutdown releases the entire reservation. Using any Allocator obtained
// from this System afterwards is undefined behavior.
func (s *System) Shutdown() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return vm.Release(s.base, s.totalSize)
}

// Enclave returns a value handle bound to enclave id.
func (s *System) Enclave(id int) (Allocator, error) {
	if id < 0 || id >= s.enclaveCt {
		return Allocator{}, fmt.Errorf("mem6: enclave id %d out of range [0,%d)", id, s.enclaveCt)
	}
	return Allocator{sys: s, id: id}, nil
}

func (s *System) commit(base, size uintptr) error {
	return vm.Commit(base, size)
}
