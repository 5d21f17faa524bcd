package types

import "math"

// Sequence is a ledger-sequence number, the logical clock of the runtime.
type Sequence uint32

// MaxSequence is the largest representable ledger sequence.
const MaxSequence = Sequence(math.MaxUint32)

// SaturatingAdd returns s+d, capped at MaxSequence.
func (s Sequence) SaturatingAdd(d uint32) Sequence {
	if uint32(s) > math.MaxUint32-d {
		return MaxSequence
	}
	return s + Sequence(d)
}

// Later returns the larger of two sequences.
func Later(a, b Sequence) Sequence {
	if a > b {
		return a
	}
	return b
}
