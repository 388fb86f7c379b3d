package bitfield

import "testing"

type divisionFlags struct {
	HasFreeBlock bool   `bitfield:",1"`
	HasFreePage  bool   `bitfield:",1"`
	PageCt       uint32 `bitfield:",30"`
}

func TestPackDivisionFlags(t *testing.T) {
	tests := []struct {
		name     string
		flags    divisionFlags
		expected uint64
		wantErr  bool
	}{
		{
			name:     "all zero",
			flags:    divisionFlags{},
			expected: 0,
		},
		{
			name:     "only has free block",
			flags:    divisionFlags{HasFreeBlock: true},
			expected: 0x1,
		},
		{
			name:     "only has free page",
			flags:    divisionFlags{HasFreePage: true},
			expected: 0x2,
		},
		{
			name:     "both flags and a page count",
			flags:    divisionFlags{HasFreeBlock: true, HasFreePage: true, PageCt: 5},
			expected: 0x3 | (5 << 2),
		},
		{
			name:    "page count overflows 30 bits",
			flags:   divisionFlags{PageCt: 1 << 30},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			packed, err := Pack(tt.flags, &Config{NumBits: 32})
			if (err != nil) != tt.wantErr {
				t.Fatalf("Pack() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if packed != tt.expected {
				t.Errorf("Pack() = 0x%x, want 0x%x", packed, tt.expected)
			}
		})
	}
}

func TestPackUnpackRoundTrip(t *testing.T) {
	want := divisionFlags{HasFreeBlock: true, HasFreePage: false, PageCt: 4097}
	packed, err := Pack(want, &Config{NumBits: 32})
	if err != nil {
		t.Fatalf("Pack() error = %v", err)
	}

	var got divisionFlags
	if err := Unpack(packed, &got); err != nil {
		t.Fatalf("Unpack() error = %v", err)
	}
	if got != want {
		t.Errorf("round trip mismatch: got %+v, want %+v", got, want)
	}
}
