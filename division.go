package mem6

import "fmt"

// commitFunc matches vm.Commit's signature without importing vm directly,
// so division can be tested without a real reservation backing it.
type commitFunc func(base, size uintptr) error

// division is one size class's share of a pool. It owns a byte range for
// block storage, a slice of PageRecord (shared
// out of the enclave's records region) and a slice of blockNode (shared
// out of the enclave's free-lists region).
type division struct {
	base           uintptr
	blockSize      uintptr
	pageSize       uintptr
	blocksPerPage  uint32
	metaGroupPages uint32
	metaChunkBytes uintptr

	pages  []PageRecord
	blocks []blockNode

	// nodeBase is the byte address of this division's slice of the
	// free-lists region; blocks indexes into it logically, but metadata
	// commits happen against this raw address since commit granularity
	// doesn't line up with Go slice indices.
	nodeBase uintptr

	freePage  uint32
	freeBlock uint32
	pageCt    uint32
}

func (d *division) init(spec classSpec, base uintptr, pages []PageRecord, blocks []blockNode, nodeBase uintptr) {
	d.base = base
	d.blockSize = spec.blockSize
	d.pageSize = spec.pageSize
	d.blocksPerPage = spec.blocksPerPage()
	d.metaGroupPages = spec.metaGroupPages()
	d.metaChunkBytes = spec.metaChunkBytes()
	d.pages = pages
	d.blocks = blocks
	d.nodeBase = nodeBase
	d.freeBlock = NoBlock
	d.pageCt = 0
	d.initPages()
}

// initPages threads every page in the division into the free-page list,
// all starting uncommitted.
func (d *division) initPages() {
	n := uint32(len(d.pages))
	for i := uint32(0); i < n; i++ {
		d.pages[i].FreeBlockCt = NoBlock
		if i+1 < n {
			d.pages[i].NextFree = i + 1
		} else {
			d.pages[i].NextFree = NoBlock
		}
	}
	if n == 0 {
		d.freePage = NoBlock
	} else {
		d.freePage = 0
	}
}

// blockAddr and blockIndex translate between a division-local block index
// and its byte address. Blocks tile within a page, not across the whole
// division, because a handful of classes (24/40/48/56 and 384/640/768/896
// bytes) don't divide their page size evenly. When blockSize does divide
// pageSize evenly this collapses to the plain `idx*blockSize` formula.
func (d *division) blockAddr(idx uint32) uintptr {
	pageIdx := uintptr(idx / d.blocksPerPage)
	inPage := uintptr(idx % d.blocksPerPage)
	return d.base + pageIdx*d.pageSize + inPage*d.blockSize
}

func (d *division) blockIndex(addr uintptr) uint32 {
	off := addr - d.base
	pageIdx := off / d.pageSize
	inPage := (off % d.pageSize) / d.blockSize
	return uint32(pageIdx)*d.blocksPerPage + uint32(inPage)
}

// alloc pops a block off the free-block list, expanding the division
// with a fresh page first if the list is empty.
func (d *division) alloc(commit commitFunc) (uint32, error) {
	if d.freeBlock == NoBlock {
		if err := d.expand(commit); err != nil {
			return 0, err
		}
	}

	blockIdx := d.freeBlock
	d.freeBlock = d.blocks[blockIdx].NextFree
	d.pages[blockIdx/d.blocksPerPage].FreeBlockCt--
	return blockIdx, nil
}

// free pushes blockIdx back onto the free-block list. Size-class dispatch
// happens in the caller; by the time free runs, blockIdx is already
// known to belong to this division.
func (d *division) free(blockIdx uint32) {
	d.blocks[blockIdx].NextFree = d.freeBlock
	d.freeBlock = blockIdx
	d.pages[blockIdx/d.blocksPerPage].FreeBlockCt++
}

// expand commits one fresh page and threads its blocks onto the
// free-block list. This is the only place an alloc can block on a
// syscall.
func (d *division) expand(commit commitFunc) error {
	p := d.freePage
	if p == NoBlock {
		return errOutOfPages
	}
	d.freePage = d.pages[p].NextFree

	pageBase := d.base + uintptr(p)*d.pageSize
	if err := commit(pageBase, d.pageSize); err != nil {
		return fmt.Errorf("mem6: commit page %d: %w", p, err)
	}

	if err := d.maybeCommitNodeGroup(p, commit); err != nil {
		return err
	}

	d.pages[p].FreeBlockCt = d.blocksPerPage

	first := p * d.blocksPerPage
	for i := uint32(0); i < d.blocksPerPage; i++ {
		idx := first + i
		if i+1 < d.blocksPerPage {
			d.blocks[idx].NextFree = idx + 1
		} else {
			d.blocks[idx].NextFree = NoBlock
		}
	}
	d.freeBlock = first
	d.pageCt++
	return nil
}

// maybeCommitNodeGroup commits block-node metadata lazily: a division has
// far more allocation pages than block-node metadata pages, so metadata
// is committed once per group of metaGroupPages allocation pages, the
// first time any page in that group is touched.
//
// nodeAddr itself is not host-page-aligned for the classes where blockSize
// doesn't divide pageSize evenly (metaChunkBytes isn't a multiple of
// hostPageSize there), so the commit range has to be aligned down at the
// start and rounded up at the end rather than committed at nodeAddr
// directly — committing at a misaligned address fails the underlying
// mprotect/VirtualAlloc call. The end is also clamped to the host page
// that holds the end of this division's own slice of the free-lists
// region, so the final, possibly-partial group's commit reaches at most
// into that one page and not further into whatever follows it.
func (d *division) maybeCommitNodeGroup(p uint32, commit commitFunc) error {
	groupStart := p - p%d.metaGroupPages
	groupEnd := groupStart + d.metaGroupPages
	if total := uint32(len(d.pages)); groupEnd > total {
		groupEnd = total
	}

	for i := groupStart; i < groupEnd; i++ {
		if d.pages[i].FreeBlockCt != NoBlock {
			return nil // a prior page in this group already committed it
		}
	}

	group := groupStart / d.metaGroupPages
	nodeAddr := d.nodeBase + uintptr(group)*d.metaChunkBytes
	nodeRegionEnd := d.nodeBase + uintptr(len(d.blocks))*blockNodeSize

	start := nodeAddr &^ (hostPageSize - 1)
	end := roundUpHostPage(nodeAddr + d.metaChunkBytes)
	if regionEnd := roundUpHostPage(nodeRegionEnd); end > regionEnd {
		end = regionEnd
	}

	if err := commit(start, end-start); err != nil {
		return fmt.Errorf("mem6: commit node metadata group %d: %w", group, err)
	}
	return nil
}
