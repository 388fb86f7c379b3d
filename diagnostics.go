package mem6

import (
	"fmt"

	"github.com/iansmith/mem6/internal/bitfield"
)

// divisionFlags is the reporting-only status word for one division,
// packed with internal/bitfield. Nothing in Alloc/Free reads this; it
// exists purely for Diagnostics, a coarse aggregate view in place of
// per-allocation leak tracking.
type divisionFlags struct {
	HasFreeBlock    bool   `bitfield:",1"`
	HasFreePage     bool   `bitfield:",1"`
	CommittedPageCt uint32 `bitfield:",30"`
}

// Snapshot is one division's point-in-time status.
type Snapshot struct {
	Enclave int
	Pool    string
	Class   int
	Status  uint32
}

// Diagnostics returns one packed status word per live division (small
// classes then medium classes) of the given enclave. It never blocks and
// never touches the hot alloc/free path.
func (s *System) Diagnostics(enclaveID int) ([]Snapshot, error) {
	if enclaveID < 0 || enclaveID >= s.enclaveCt {
		return nil, fmt.Errorf("mem6: enclave id %d out of range [0,%d)", enclaveID, s.enclaveCt)
	}

	es := &s.enclaves[enclaveID]
	out := make([]Snapshot, 0, smallClassCt+mediumClassCt)
	for i := range es.small.divisions {
		snap, err := snapshotDivision(enclaveID, "small", i, &es.small.divisions[i])
		if err != nil {
			return nil, err
		}
		out = append(out, snap)
	}
	for i := range es.medium.divisions {
		snap, err := snapshotDivision(enclaveID, "medium", i, &es.medium.divisions[i])
		if err != nil {
			return nil, err
		}
		out = append(out, snap)
	}
	return out, nil
}

func snapshotDivision(enclaveID int, poolName string, idx int, d *division) (Snapshot, error) {
	flags := divisionFlags{
		HasFreeBlock:    d.freeBlock != NoBlock,
		HasFreePage:     d.freePage != NoBlock,
		CommittedPageCt: d.pageCt,
	}
	packed, err := bitfield.Pack(flags, &bitfield.Config{NumBits: 32})
	if err != nil {
		return Snapshot{}, fmt.Errorf("mem6: pack diagnostics for %s[%d]: %w", poolName, idx, err)
	}
	return Snapshot{Enclave: enclaveID, Pool: poolName, Class: idx, Status: uint32(packed)}, nil
}
