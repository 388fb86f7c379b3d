package mem6

// pool groups the eight size-class divisions of one size band (small or
// medium) within one enclave.
type pool struct {
	divisions [8]division
}

// initPool lays out the 8 divisions of one pool starting at base, slicing
// the enclave-wide records/free-lists regions at the given cursors and
// advancing them past what this pool consumed.
func initPool(p *pool, specs []classSpec, base uintptr, records []PageRecord, recordCursor *uintptr, nodeBase uintptr, nodes []blockNode, nodeCursor *uintptr) {
	divBase := base
	for i, spec := range specs {
		pagesCt := uintptr(spec.pagesPerDivision())
		blocksCt := uintptr(spec.blocksPerDivision())

		divRecords := records[*recordCursor : *recordCursor+pagesCt]
		divBlocks := nodes[*nodeCursor : *nodeCursor+blocksCt]
		divNodeBase := nodeBase + *nodeCursor*blockNodeSize

		p.divisions[i].init(spec, divBase, divRecords, divBlocks, divNodeBase)

		*recordCursor += pagesCt
		*nodeCursor += blocksCt
		divBase += spec.divisionSize
	}
}
