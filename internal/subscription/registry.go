package subscription

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/dyluth/tuplebridge/pkg/tuple"
)

// ErrDuplicateID is returned by Register when the id is already registered.
// Ids come from Allocate, so this indicates a programming error.
var ErrDuplicateID = errors.New("subscription: duplicate id")

// State is the lifecycle state of a registered subscription.
type State int32

const (
	// Active subscriptions may still emit values.
	Active State = iota
	// Completing subscriptions exhausted their matches and emit only Completed.
	Completing
	// Cancelled subscriptions emit nothing further.
	Cancelled
)

func (s State) String() string {
	switch s {
	case Active:
		return "active"
	case Completing:
		return "completing"
	case Cancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Entry is one live subscription. The registry owns the cancellation handle;
// callers only observe state through Live and State.
type Entry struct {
	ID       uint64
	Scope    tuple.Scope
	Criteria tuple.Tuple

	state  atomic.Int32
	ctx    context.Context
	cancel context.CancelFunc
}

// Context is the subscription's context. It is done once the subscription
// is cancelled or removed.
func (e *Entry) Context() context.Context {
	return e.ctx
}

// Live reports whether the subscription may still emit a NextValue.
func (e *Entry) Live() bool {
	return State(e.state.Load()) == Active
}

// State returns the current lifecycle state.
func (e *Entry) State() State {
	return State(e.state.Load())
}

// Registry maps subscription ids to their entries.
//
// Storage is a sync.Map, so operations on distinct ids never contend on a
// shared lock. Lifecycle transitions are compare-and-swap on the entry state:
// whichever of Cancel and Complete wins decides whether Completed is emitted.
type Registry struct {
	next    atomic.Uint64
	entries sync.Map // uint64 -> *Entry
	count   atomic.Int64
}

// NewRegistry creates an empty registry. The first allocated id is 1.
func NewRegistry() *Registry {
	return &Registry{}
}

// Allocate returns a fresh id. Ids are never reused within a process.
func (r *Registry) Allocate() uint64 {
	return r.next.Add(1)
}

// Register stores a new Active entry owning ctx and cancel, where cancel
// ends ctx. A nil ctx means context.Background().
func (r *Registry) Register(ctx context.Context, id uint64, scope tuple.Scope, criteria tuple.Tuple, cancel context.CancelFunc) (*Entry, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if cancel == nil {
		cancel = func() {}
	}
	e := &Entry{ID: id, Scope: scope, Criteria: criteria, ctx: ctx, cancel: cancel}
	if _, loaded := r.entries.LoadOrStore(id, e); loaded {
		return nil, fmt.Errorf("%w: %d", ErrDuplicateID, id)
	}
	r.count.Add(1)
	return e, nil
}

// Cancel moves an Active entry to Cancelled, removes it and invokes its
// cancellation handle exactly once. Returns false when id is not registered
// or has already started completing: Completed is then on its way and the
// subscription can no longer be cancelled.
func (r *Registry) Cancel(id uint64) bool {
	v, ok := r.entries.Load(id)
	if !ok {
		return false
	}
	e := v.(*Entry)
	if !e.state.CompareAndSwap(int32(Active), int32(Cancelled)) {
		return false
	}
	// Only the CAS winner deletes, so the count stays exact.
	r.entries.Delete(id)
	r.count.Add(-1)
	e.cancel()
	return true
}

// Complete marks a naturally exhausted subscription as Completing.
// Only the caller that gets true may emit Completed.
func (r *Registry) Complete(id uint64) bool {
	v, ok := r.entries.Load(id)
	if !ok {
		return false
	}
	return v.(*Entry).state.CompareAndSwap(int32(Active), int32(Completing))
}

// Remove drops a completed entry and releases its handle. It is a no-op
// when the entry was already cancelled.
func (r *Registry) Remove(id uint64) {
	v, ok := r.entries.LoadAndDelete(id)
	if !ok {
		return
	}
	r.count.Add(-1)
	v.(*Entry).cancel()
}

// Lookup returns the entry for id.
func (r *Registry) Lookup(id uint64) (*Entry, bool) {
	v, ok := r.entries.Load(id)
	if !ok {
		return nil, false
	}
	return v.(*Entry), true
}

// Len returns the number of registered subscriptions.
func (r *Registry) Len() int {
	return int(r.count.Load())
}

// IDs returns the registered ids in ascending order.
func (r *Registry) IDs() []uint64 {
	var ids []uint64
	r.entries.Range(func(k, _ any) bool {
		ids = append(ids, k.(uint64))
		return true
	})
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// CancelAll cancels every registered subscription and returns how many were cancelled.
func (r *Registry) CancelAll() int {
	n := 0
	for _, id := range r.IDs() {
		if r.Cancel(id) {
			n++
		}
	}
	return n
}

// Info describes a registered subscription for admin endpoints.
type Info struct {
	ID       uint64 `json:"id"`
	Scope    string `json:"scope"`
	State    string `json:"state"`
	Criteria string `json:"criteria"`
}

// Snapshot returns a point-in-time view of the registry ordered by id.
func (r *Registry) Snapshot() []Info {
	ids := r.IDs()
	out := make([]Info, 0, len(ids))
	for _, id := range ids {
		e, ok := r.Lookup(id)
		if !ok {
			continue
		}
		out = append(out, Info{
			ID:       e.ID,
			Scope:    e.Scope.String(),
			State:    e.State().String(),
			Criteria: e.Criteria.String(),
		})
	}
	return out
}
