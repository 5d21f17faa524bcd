// Package host is the surface a contract sees while it runs: keyed storage,
// the ledger sequence, per-call authorization, event publishing and calls
// into asset contracts. An Env lives for exactly one invocation; its writes
// and events are buffered until the runtime commits them.
package host

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/xraph/settle"
	"github.com/xraph/settle/event"
	"github.com/xraph/settle/id"
	"github.com/xraph/settle/store"
	"github.com/xraph/settle/types"
)

// AssetContract is the Asset Transfer Interface: moving an amount of one
// asset between principals. Implementations read and write through env, so a
// transfer joins the caller's invocation and rolls back with it.
type AssetContract interface {
	Transfer(env *Env, from, to types.Address, amount types.Amount) error
}

// AssetResolver finds the contract registered at an asset address.
type AssetResolver interface {
	Asset(address types.Address) (AssetContract, bool)
}

// Params configures a new Env.
type Params struct {
	Reader       store.Reader
	Sequence     types.Sequence
	Signers      []types.Address
	Assets       AssetResolver
	InvocationID id.ID
	ReadOnly     bool
}

type pending struct {
	value   []byte
	deleted bool
}

// observed is the committed state of a key when the invocation first read it.
type observed struct {
	value   []byte
	present bool
}

// Env is the per-invocation execution environment.
type Env struct {
	ctx          context.Context
	reader       store.Reader
	seq          types.Sequence
	signers      map[types.Address]struct{}
	assets       AssetResolver
	invocationID id.ID
	readOnly     bool

	writes    map[Key]pending
	order     []Key
	reads     map[Key]observed
	readOrder []Key
	events    []event.Event
}

// New creates an Env over a snapshot reader.
func New(ctx context.Context, p Params) *Env {
	signers := make(map[types.Address]struct{}, len(p.Signers))
	for _, s := range p.Signers {
		signers[s] = struct{}{}
	}
	return &Env{
		ctx:          ctx,
		reader:       p.Reader,
		seq:          p.Sequence,
		signers:      signers,
		assets:       p.Assets,
		invocationID: p.InvocationID,
		readOnly:     p.ReadOnly,
		writes:       make(map[Key]pending),
		reads:        make(map[Key]observed),
	}
}

// Context returns the invocation context.
func (e *Env) Context() context.Context { return e.ctx }

// Sequence returns the current ledger sequence.
func (e *Env) Sequence() types.Sequence { return e.seq }

// InvocationID identifies the running invocation.
func (e *Env) InvocationID() id.ID { return e.invocationID }

// ──────────────────────────────────────────────────
// Storage
// ──────────────────────────────────────────────────

func (e *Env) raw(key Key) ([]byte, bool, error) {
	if w, ok := e.writes[key]; ok {
		if w.deleted {
			return nil, false, nil
		}
		return w.value, true, nil
	}
	// Repeated reads return the first observation, so the invocation works
	// from one view of each key even if another runtime commits meanwhile.
	if r, ok := e.reads[key]; ok {
		return r.value, r.present, nil
	}
	data, err := e.reader.Get(e.ctx, string(key))
	present := true
	if errors.Is(err, settle.ErrNotFound) {
		data, present = nil, false
	} else if err != nil {
		return nil, false, fmt.Errorf("host: read %s: %w", key, err)
	}
	e.reads[key] = observed{value: data, present: present}
	e.readOrder = append(e.readOrder, key)
	return data, present, nil
}

// Get decodes the record at key into v and reports whether it existed.
func (e *Env) Get(key Key, v any) (bool, error) {
	data, ok, err := e.raw(key)
	if err != nil || !ok {
		return false, err
	}
	if err := Unmarshal(data, v); err != nil {
		return false, err
	}
	return true, nil
}

// Has reports whether a record exists at key.
func (e *Env) Has(key Key) (bool, error) {
	_, ok, err := e.raw(key)
	return ok, err
}

// Set buffers a write of v at key.
func (e *Env) Set(key Key, v any) error {
	if e.readOnly {
		return fmt.Errorf("%w: set %s", settle.ErrReadOnly, key)
	}
	data, err := Marshal(v)
	if err != nil {
		return err
	}
	e.put(key, pending{value: data})
	return nil
}

// Remove buffers a delete of key.
func (e *Env) Remove(key Key) error {
	if e.readOnly {
		return fmt.Errorf("%w: remove %s", settle.ErrReadOnly, key)
	}
	e.put(key, pending{deleted: true})
	return nil
}

func (e *Env) put(key Key, p pending) {
	if _, seen := e.writes[key]; !seen {
		e.order = append(e.order, key)
	}
	e.writes[key] = p
}

// Changes returns the buffered writes in first-write order.
func (e *Env) Changes() []store.Op {
	ops := make([]store.Op, 0, len(e.order))
	for _, k := range e.order {
		w := e.writes[k]
		if w.deleted {
			ops = append(ops, store.Del(string(k)))
			continue
		}
		ops = append(ops, store.Put(string(k), w.value))
	}
	return ops
}

// Checks returns one check op per key read from the store, in first-read
// order. Applied ahead of Changes they reject the batch if any of those keys
// changed after it was read.
func (e *Env) Checks() []store.Op {
	ops := make([]store.Op, 0, len(e.readOrder))
	for _, k := range e.readOrder {
		r := e.reads[k]
		if !r.present {
			ops = append(ops, store.ExpectAbsent(string(k)))
			continue
		}
		ops = append(ops, store.Expect(string(k), r.value))
	}
	return ops
}

// ──────────────────────────────────────────────────
// Authorization
// ──────────────────────────────────────────────────

// IsAuthorized reports whether p signed the invocation.
func (e *Env) IsAuthorized(p types.Address) bool {
	_, ok := e.signers[p]
	return ok
}

// RequireAuth fails with settle.ErrUnauthorized unless p signed the
// invocation.
func (e *Env) RequireAuth(p types.Address) error {
	if !e.IsAuthorized(p) {
		return fmt.Errorf("%w: %s", settle.ErrUnauthorized, p)
	}
	return nil
}

// Signers returns the authorized principals, sorted.
func (e *Env) Signers() []types.Address {
	out := make([]types.Address, 0, len(e.signers))
	for s := range e.signers {
		out = append(out, s)
	}
	slices.Sort(out)
	return out
}

// ──────────────────────────────────────────────────
// Events and asset calls
// ──────────────────────────────────────────────────

// Publish buffers an event from contract. Events of a failed invocation are
// dropped with its writes.
func (e *Env) Publish(contract types.Address, p event.Payload) {
	if e.readOnly {
		return
	}
	e.events = append(e.events, event.Event{
		ID:           id.NewEventID(),
		InvocationID: e.invocationID,
		Contract:     contract,
		Topic:        p.Topic(),
		Sequence:     e.seq,
		Payload:      p,
	})
}

// Events returns the buffered events in publish order.
func (e *Env) Events() []event.Event {
	return slices.Clone(e.events)
}

// Transfer moves amount of asset from one principal to another through the
// registered asset contract.
func (e *Env) Transfer(asset, from, to types.Address, amount types.Amount) error {
	if e.assets == nil {
		return fmt.Errorf("%w: %s", settle.ErrNoAsset, asset)
	}
	c, ok := e.assets.Asset(asset)
	if !ok {
		return fmt.Errorf("%w: %s", settle.ErrNoAsset, asset)
	}
	return c.Transfer(e, from, to, amount)
}
