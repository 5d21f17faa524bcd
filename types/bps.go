package types

import (
	"fmt"
	"math"
)

// BasisPoints is a share expressed in parts per 10,000.
type BasisPoints uint32

// MaxBasisPoints is 100%.
const MaxBasisPoints BasisPoints = 10_000

// Valid reports whether b is within [0, 10000].
func (b BasisPoints) Valid() bool { return b <= MaxBasisPoints }

// Complement returns 10000-b. b must be valid.
func (b BasisPoints) Complement() BasisPoints { return MaxBasisPoints - b }

// SumShares adds a share vector with checked uint32 arithmetic.
func SumShares(shares []BasisPoints) (uint32, error) {
	var sum uint32
	for _, s := range shares {
		if uint32(s) > math.MaxUint32-sum {
			return 0, fmt.Errorf("%w: bps sum", ErrOverflow)
		}
		sum += uint32(s)
	}
	return sum, nil
}

// ValidateShares fails unless the shares sum to exactly 10000.
func ValidateShares(shares []BasisPoints) error {
	sum, err := SumShares(shares)
	if err != nil {
		return err
	}
	if sum != uint32(MaxBasisPoints) {
		return fmt.Errorf("%w: got %d", ErrInvalidShares, sum)
	}
	return nil
}
