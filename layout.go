package mem6

import "unsafe"

// Fixed geometry: size classes, pool sizes, page sizes. Nothing here is
// configurable at runtime — the whole point of a segregated-fit
// allocator is that the class table is baked in.
const (
	maxEnclaves = 32

	smallStep     uintptr = 8
	smallClassCt          = 8
	smallMaxSize  uintptr = smallStep * smallClassCt // 64
	smallPageSize uintptr = 16 * 1024

	mediumStep     uintptr = 128
	mediumClassCt          = 8
	mediumMaxSize  uintptr = mediumStep * mediumClassCt // 1024
	mediumPageSize uintptr = 64 * 1024

	smallPoolSize  uintptr = 512 << 20 // 512 MiB
	mediumPoolSize uintptr = 8 << 30   // 8 GiB
	largePoolSize  uintptr = 160 << 30 // reserved address space only, never carved into divisions
	giantPoolSize  uintptr = 256 << 30 // reserved address space only, never carved into divisions

	// hostPageSize is the commit granularity vm.Commit is guaranteed to
	// accept on every platform this module targets (x86-64 and arm64
	// Linux/Darwin/Windows all use a 4 KiB page or a multiple of it).
	hostPageSize uintptr = 4096
)

var (
	pageRecordSize = unsafe.Sizeof(PageRecord{})
	blockNodeSize  = unsafe.Sizeof(blockNode{})
)

// classSpec is the fixed per-size-class geometry of one division.
type classSpec struct {
	blockSize    uintptr
	divisionSize uintptr
	pageSize     uintptr
}

// classSpecs returns the 8 small then 8 medium division specs, in the
// fixed layout order of the reserved-region table.
func classSpecs() [smallClassCt + mediumClassCt]classSpec {
	var specs [smallClassCt + mediumClassCt]classSpec
	smallDivSize := smallPoolSize / smallClassCt
	mediumDivSize := mediumPoolSize / mediumClassCt
	for i := 0; i < smallClassCt; i++ {
		specs[i] = classSpec{
			blockSize:    smallStep * uintptr(i+1),
			divisionSize: smallDivSize,
			pageSize:     smallPageSize,
		}
	}
	for i := 0; i < mediumClassCt; i++ {
		specs[smallClassCt+i] = classSpec{
			blockSize:    mediumStep * uintptr(i+1),
			divisionSize: mediumDivSize,
			pageSize:     mediumPageSize,
		}
	}
	return specs
}

// blocksPerPage is floor(pageSize/blockSize). Not every class divides its
// page size evenly (24, 40, 48 and 56-byte blocks don't divide 16 KiB;
// 384, 640, 768 and 896-byte blocks don't divide 64 KiB), so a handful of
// bytes at the tail of each page go unused. Block addressing therefore
// has to work per-page rather than treating a division as one flat array.
func (c classSpec) blocksPerPage() uint32 {
	return uint32(c.pageSize / c.blockSize)
}

func (c classSpec) pagesPerDivision() uint32 {
	return uint32(c.divisionSize / c.pageSize)
}

func (c classSpec) blocksPerDivision() uint32 {
	return c.pagesPerDivision() * c.blocksPerPage()
}

// metaGroupPages is how many allocation pages' worth of blockNode entries
// are committed together as one block-node metadata chunk.
func (c classSpec) metaGroupPages() uint32 {
	return uint32(c.blockSize / blockNodeSize)
}

func (c classSpec) metaChunkBytes() uintptr {
	return uintptr(c.metaGroupPages()) * uintptr(c.blocksPerPage()) * blockNodeSize
}

// layout is the derived per-enclave sizing of the reserved-region table:
// pool sizes are fixed, records/free-lists sizes follow from the class
// table.
type layout struct {
	recordsCt     uintptr
	freeListsCt   uintptr
	recordsSize   uintptr
	freeListsSize uintptr
	perEnclave    uintptr
}

func computeLayout() layout {
	var lay layout
	for _, c := range classSpecs() {
		lay.recordsCt += uintptr(c.pagesPerDivision())
		lay.freeListsCt += uintptr(c.blocksPerDivision())
	}
	lay.recordsSize = lay.recordsCt * pageRecordSize
	lay.freeListsSize = lay.freeListsCt * blockNodeSize
	lay.perEnclave = smallPoolSize + mediumPoolSize + largePoolSize + giantPoolSize +
		lay.recordsSize + lay.freeListsSize
	return lay
}

func roundUpHostPage(n uintptr) uintptr {
	return (n + hostPageSize - 1) &^ (hostPageSize - 1)
}
