// Package clock provides ledger-sequence sources for the runtime. The
// sequence is the only notion of time contracts see; it never decreases.
package clock

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/xraph/settle/types"
)

// Clock reports the current ledger sequence.
type Clock interface {
	Sequence(ctx context.Context) (types.Sequence, error)
}

// Manual is a Clock advanced explicitly. The zero value starts at 0.
type Manual struct {
	mu  sync.Mutex
	seq types.Sequence
}

// NewManual returns a Manual clock at seq.
func NewManual(seq types.Sequence) *Manual {
	return &Manual{seq: seq}
}

// Sequence implements Clock.
func (m *Manual) Sequence(_ context.Context) (types.Sequence, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.seq, nil
}

// Set moves the clock to seq. Moving backwards is an error.
func (m *Manual) Set(seq types.Sequence) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if seq < m.seq {
		return fmt.Errorf("clock: sequence cannot decrease from %d to %d", m.seq, seq)
	}
	m.seq = seq
	return nil
}

// Advance moves the clock forward by d ledgers, saturating.
func (m *Manual) Advance(d uint32) types.Sequence {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq = m.seq.SaturatingAdd(d)
	return m.seq
}

// Interval derives the sequence from wall time: one ledger closes every
// Close after Genesis. A wall clock stepping backwards holds the sequence at
// the highest value already reported. The high-water mark lives in memory;
// a restarted process trusts the wall clock again.
type Interval struct {
	Genesis time.Time
	Close   time.Duration
	Now     func() time.Time

	mu   sync.Mutex
	last types.Sequence
}

// NewInterval returns an Interval clock using time.Now.
func NewInterval(genesis time.Time, closeEvery time.Duration) *Interval {
	return &Interval{Genesis: genesis, Close: closeEvery, Now: time.Now}
}

// Sequence implements Clock. Times before Genesis map to 0.
func (c *Interval) Sequence(_ context.Context) (types.Sequence, error) {
	if c.Close <= 0 {
		return 0, fmt.Errorf("clock: close interval must be positive, got %s", c.Close)
	}
	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	seq := types.Sequence(0)
	if elapsed := now().Sub(c.Genesis); elapsed > 0 {
		n := int64(elapsed / c.Close)
		if n > math.MaxUint32 {
			seq = types.MaxSequence
		} else {
			seq = types.Sequence(n)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.last = max(c.last, seq)
	return c.last, nil
}
