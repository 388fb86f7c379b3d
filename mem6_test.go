package mem6

import (
	"testing"
	"unsafe"
)

func TestAllocFreeRoundtrip(t *testing.T) {
	sys, err := Startup(5)
	if err != nil {
		t.Fatalf("Startup: %v", err)
	}
	defer sys.Shutdown()

	a, err := sys.Enclave(3)
	if err != nil {
		t.Fatalf("Enclave: %v", err)
	}

	s, err := Alloc[byte](a, 54)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	for i := range s {
		s[i] = byte(i)
	}
	for i := range s {
		if s[i] != byte(i) {
			t.Fatalf("s[%d] = %d, want %d", i, s[i], byte(i))
		}
	}
	Free(a, s)
}

func TestAllocFreeAllocFixpoint(t *testing.T) {
	sys, err := Startup(6)
	if err != nil {
		t.Fatalf("Startup: %v", err)
	}
	defer sys.Shutdown()

	a, err := sys.Enclave(5)
	if err != nil {
		t.Fatalf("Enclave: %v", err)
	}

	for i := 0; i < 5; i++ {
		s, err := Alloc[byte](a, 4)
		if err != nil {
			t.Fatalf("Alloc: %v", err)
		}
		Free(a, s)
	}

	var last []byte
	for i := 0; i < 4; i++ {
		s, err := Alloc[byte](a, 8)
		if err != nil {
			t.Fatalf("Alloc: %v", err)
		}
		last = s
		Free(a, s)
	}

	s1, err := Alloc[byte](a, 8)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	if &s1[0] != &last[0] {
		t.Errorf("alloc-free-alloc did not reuse the same base address")
	}
}

func TestDistinctClassesDontOverlap(t *testing.T) {
	sys, err := Startup(1)
	if err != nil {
		t.Fatalf("Startup: %v", err)
	}
	defer sys.Shutdown()

	a, err := sys.Enclave(0)
	if err != nil {
		t.Fatalf("Enclave: %v", err)
	}

	s1, err := Alloc[byte](a, 4)
	if err != nil {
		t.Fatalf("Alloc(4): %v", err)
	}
	s2, err := Alloc[byte](a, 4)
	if err != nil {
		t.Fatalf("Alloc(4): %v", err)
	}
	s3, err := Alloc[byte](a, 8)
	if err != nil {
		t.Fatalf("Alloc(8): %v", err)
	}

	if overlaps(s1, s2) || overlaps(s1, s3) || overlaps(s2, s3) {
		t.Fatalf("allocations overlap: s1=%p s2=%p s3=%p", &s1[0], &s2[0], &s3[0])
	}
}

func addrOf(s []byte) uintptr {
	return uintptr(unsafe.Pointer(&s[0]))
}

func overlaps(a, b []byte) bool {
	lo := func(s []byte) uintptr { return addrOf(s) }
	hi := func(s []byte) uintptr { return addrOf(s) + uintptr(len(s)) }
	return lo(a) < hi(b) && lo(b) < hi(a)
}

func TestSizeClassBoundaries(t *testing.T) {
	sys, err := Startup(1)
	if err != nil {
		t.Fatalf("Startup: %v", err)
	}
	defer sys.Shutdown()

	a, err := sys.Enclave(0)
	if err != nil {
		t.Fatalf("Enclave: %v", err)
	}

	cases := []struct {
		size    int
		wantErr bool
	}{
		{1, false},
		{8, false},
		{9, false},
		{64, false},
		{65, false},
		{128, false},
		{1024, false},
		{1025, true},
	}
	for _, c := range cases {
		s, err := Alloc[byte](a, c.size)
		if c.wantErr {
			if err == nil {
				t.Errorf("Alloc(%d): want error, got none", c.size)
			}
			continue
		}
		if err != nil {
			t.Errorf("Alloc(%d): %v", c.size, err)
			continue
		}
		Free(a, s)
	}
}

func TestPageExpansionCount(t *testing.T) {
	sys, err := Startup(1)
	if err != nil {
		t.Fatalf("Startup: %v", err)
	}
	defer sys.Shutdown()

	a, err := sys.Enclave(0)
	if err != nil {
		t.Fatalf("Enclave: %v", err)
	}

	d, err := a.divisionFor(16)
	if err != nil {
		t.Fatalf("divisionFor(16): %v", err)
	}

	const n = 4097
	held := make([]uint32, 0, n)
	for i := 0; i < n; i++ {
		idx, err := d.alloc(a.sys.commit)
		if err != nil {
			t.Fatalf("alloc #%d: %v", i, err)
		}
		held = append(held, idx)
	}

	if d.pageCt != 5 {
		t.Errorf("pageCt = %d, want 5", d.pageCt)
	}

	for _, idx := range held {
		d.free(idx)
	}
	for p := uint32(0); p < d.pageCt; p++ {
		if d.pages[p].FreeBlockCt != d.blocksPerPage {
			t.Errorf("page %d: FreeBlockCt = %d, want %d", p, d.pages[p].FreeBlockCt, d.blocksPerPage)
		}
	}
}

// TestPageExpansionNonDivisibleClass exercises a size class whose block
// size does not evenly divide its page size (24 bytes against a 16 KiB
// page, blocksPerPage == 682). Allocating past the first metadata group
// (metaGroupPages * blocksPerPage blocks) forces a second block-node
// metadata commit whose address is not naturally host-page-aligned,
// which is what TestPageExpansionCount's 16-byte class never exercises.
func TestPageExpansionNonDivisibleClass(t *testing.T) {
	sys, err := Startup(1)
	if err != nil {
		t.Fatalf("Startup: %v", err)
	}
	defer sys.Shutdown()

	a, err := sys.Enclave(0)
	if err != nil {
		t.Fatalf("Enclave: %v", err)
	}

	d, err := a.divisionFor(24)
	if err != nil {
		t.Fatalf("divisionFor(24): %v", err)
	}
	if d.blockSize != 24 {
		t.Fatalf("divisionFor(24) resolved to blockSize %d, want 24", d.blockSize)
	}
	if d.pageSize%d.blockSize == 0 {
		t.Fatalf("test assumes blockSize %d does not divide pageSize %d evenly", d.blockSize, d.pageSize)
	}

	groupSize := d.metaGroupPages * d.blocksPerPage

	const n = 4093 // one block past the first metadata group (6 * 682 = 4092 blocks)
	held := make([]uint32, 0, n)
	for i := 0; i < n; i++ {
		idx, err := d.alloc(a.sys.commit)
		if err != nil {
			t.Fatalf("alloc #%d (past group of %d blocks): %v", i, groupSize, err)
		}
		held = append(held, idx)
	}

	for _, idx := range held {
		d.free(idx)
	}
}

func TestBoundedResidentMemory(t *testing.T) {
	sys, err := Startup(8)
	if err != nil {
		t.Fatalf("Startup: %v", err)
	}
	defer sys.Shutdown()

	a, err := sys.Enclave(0)
	if err != nil {
		t.Fatalf("Enclave: %v", err)
	}

	const iterations = 2000
	for i := 0; i < iterations; i++ {
		s, err := Alloc[byte](a, 16)
		if err != nil {
			t.Fatalf("alloc #%d: %v", i, err)
		}
		Free(a, s)
	}

	d, err := a.divisionFor(16)
	if err != nil {
		t.Fatalf("divisionFor(16): %v", err)
	}
	if d.pageCt != 1 {
		t.Errorf("pageCt = %d after alternating alloc/free, want 1", d.pageCt)
	}
}

func TestOversizedAllocIsOutOfMemory(t *testing.T) {
	sys, err := Startup(2)
	if err != nil {
		t.Fatalf("Startup: %v", err)
	}
	defer sys.Shutdown()

	a, err := sys.Enclave(0)
	if err != nil {
		t.Fatalf("Enclave: %v", err)
	}

	if _, err := Alloc[byte](a, 2000); err != ErrOutOfMemory {
		t.Errorf("Alloc(2000): got %v, want ErrOutOfMemory", err)
	}
}

func TestAllocZeroCountPanics(t *testing.T) {
	sys, err := Startup(1)
	if err != nil {
		t.Fatalf("Startup: %v", err)
	}
	defer sys.Shutdown()

	a, err := sys.Enclave(0)
	if err != nil {
		t.Fatalf("Enclave: %v", err)
	}

	defer func() {
		if recover() == nil {
			t.Errorf("Alloc(0) did not panic")
		}
	}()
	_, _ = Alloc[byte](a, 0)
}

func TestDiagnosticsReportsLiveDivisions(t *testing.T) {
	sys, err := Startup(1)
	if err != nil {
		t.Fatalf("Startup: %v", err)
	}
	defer sys.Shutdown()

	a, err := sys.Enclave(0)
	if err != nil {
		t.Fatalf("Enclave: %v", err)
	}

	s, err := Alloc[byte](a, 16)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	defer Free(a, s)

	snaps, err := sys.Diagnostics(0)
	if err != nil {
		t.Fatalf("Diagnostics: %v", err)
	}
	if len(snaps) != smallClassCt+mediumClassCt {
		t.Errorf("len(snaps) = %d, want %d", len(snaps), smallClassCt+mediumClassCt)
	}
}
