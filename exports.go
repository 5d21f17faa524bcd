package settle

import "github.com/xraph/settle/types"

// Re-export common types for convenience so users don't have to import types package.

// Address is re-exported from types package.
type Address = types.Address

// Amount is re-exported from types package.
type Amount = types.Amount

// BasisPoints is re-exported from types package.
type BasisPoints = types.BasisPoints

// Sequence is re-exported from types package.
type Sequence = types.Sequence

// Re-export constructors.
var (
	NewAmount   = types.NewAmount
	ParseAmount = types.ParseAmount
	MustAmount  = types.MustAmount
)

// MaxBasisPoints is the denominator of every share vector.
const MaxBasisPoints = types.MaxBasisPoints
