package dfa

import (
	lru "github.com/hashicorp/golang-lru"
)

// normalizeCacheSize bounds the memo table behind Normalize. Normalize is
// pure in its argument, so caching it behind an LRU is a direct win for
// callers that renormalize the same state repeatedly; the size is generous
// enough that a typical whole-program run does not thrash it.
const normalizeCacheSize = 4096

// stateSlot is one entry in the StateManager's table: the canonical content
// plus a reference count. Every slot in the intern table holds at least one
// reference (the manager's own, taken when the state is first interned); a
// slot whose count drops to zero is removed from the table and its index
// pushed onto the free list for reuse -- a bump allocator with a free list,
// rendered as a Go slice instead of an arena pointer.
type stateSlot struct {
	state    *ProgramState
	refcount int
	hash     uint32
}

// StateManager hash-conses ProgramState values behind small ProgramStateRef
// handles: every state-producing operation goes through it, so
// two ProgramStates with identical content are always the same ref, and
// ProgramStateRef equality can stand in for deep equality everywhere else
// in the core.
type StateManager struct {
	slots []stateSlot
	free  []ProgramStateRef

	// byHash chains refs whose content hashes collide: one bucket per
	// hash, each a short list resolved by a true equals check.
	byHash map[uint32][]ProgramStateRef

	normalizeCache *lru.Cache

	defaultRef ProgramStateRef
	bottomRef  ProgramStateRef
}

// NewStateManager creates a StateManager with its two always-present
// sentinel states already interned: DefaultState (the empty state, top in
// every domain not yet bound) and BottomState (the distinguished
// unreachable program point).
func NewStateManager() *StateManager {
	cache, err := lru.New(normalizeCacheSize)
	if err != nil {
		// Only returns an error for a non-positive size, which is a
		// programming error in this file, not a runtime condition.
		panic(err)
	}
	mgr := &StateManager{
		byHash:         make(map[uint32][]ProgramStateRef),
		normalizeCache: cache,
	}
	mgr.defaultRef = mgr.intern(emptyProgramState())
	mgr.bottomRef = mgr.intern(bottomProgramState())
	return mgr
}

// DefaultState returns the handle for the empty ProgramState.
func (m *StateManager) DefaultState() ProgramStateRef { return m.defaultRef }

// BottomState returns the handle for the distinguished unreachable state.
func (m *StateManager) BottomState() ProgramStateRef { return m.bottomRef }

// DefaultStateFor builds the well-formed initial state for mgr's required
// analyses: every domain a required analysis registered, bound to its
// registered default (top-like) value, with empty auxiliary maps. This is
// the state a driver starts each traversal from.
func (m *StateManager) DefaultStateFor(mgr *AnalysisManager) ProgramStateRef {
	return m.initialStateFor(mgr, mgr.DomainDefault)
}

// BottomStateFor is DefaultStateFor with every domain bound to its
// registered bottom value instead.
func (m *StateManager) BottomStateFor(mgr *AnalysisManager) ProgramStateRef {
	return m.initialStateFor(mgr, mgr.DomainBottom)
}

func (m *StateManager) initialStateFor(mgr *AnalysisManager, value func(DomainID) AbstractValue) ProgramStateRef {
	raw := emptyProgramState()
	for _, aid := range mgr.RequiredAnalyses() {
		for _, did := range mgr.RegisteredDomainsIn(aid) {
			if v := value(did); v != nil {
				raw = raw.withValue(did, v)
			}
		}
	}
	return m.intern(raw)
}

// Get dereferences ref. It panics on an out-of-range ref; a released ref is
// not detected (its slot holds nil until an intern reuses it for other
// content). A ProgramStateRef is only ever handed out by this manager and
// callers are expected to treat it as an opaque, always-valid handle for as
// long as they hold a reference to it via Acquire.
func (m *StateManager) Get(ref ProgramStateRef) *ProgramState {
	return m.slots[int(ref)].state
}

// intern canonicalizes raw, returning the ref of an existing equal state if
// one is already interned, or allocating a new slot (reusing a freed one
// when available) otherwise. raw's ownership passes to the manager: the
// caller must not mutate it afterwards.
func (m *StateManager) intern(raw *ProgramState) ProgramStateRef {
	h := raw.hash()
	for _, candidate := range m.byHash[h] {
		if m.slots[int(candidate)].state.equals(raw) {
			return candidate
		}
	}

	var ref ProgramStateRef
	if n := len(m.free); n > 0 {
		ref = m.free[n-1]
		m.free = m.free[:n-1]
		m.slots[int(ref)] = stateSlot{state: raw, hash: h, refcount: 1}
	} else {
		ref = ProgramStateRef(len(m.slots))
		m.slots = append(m.slots, stateSlot{state: raw, hash: h, refcount: 1})
	}
	m.byHash[h] = append(m.byHash[h], ref)
	return ref
}

// Acquire increments ref's reference count. Callers that retain a
// ProgramStateRef beyond the dynamic extent of the callback that produced
// it (e.g. storing it as a fixpoint's per-location entry state) must
// Acquire it, and Release it once it is superseded.
func (m *StateManager) Acquire(ref ProgramStateRef) {
	m.slots[int(ref)].refcount++
}

// Release decrements ref's reference count, recycling the slot once it
// reaches zero: the state is removed from the intern table, its slot pushed
// onto the free list for the next intern to reuse. Releasing more often
// than the slot was referenced (once at intern, once per Acquire) is an
// invariant violation and panics. The two sentinel states are never
// recycled.
func (m *StateManager) Release(ref ProgramStateRef) {
	if ref == m.defaultRef || ref == m.bottomRef {
		return
	}
	slot := &m.slots[int(ref)]
	if slot.refcount == 0 {
		panic("dfa: Release of a ProgramState with no outstanding references")
	}
	slot.refcount--
	if slot.refcount > 0 {
		return
	}
	m.removeFromChain(ref, slot.hash)
	slot.state = nil
	m.free = append(m.free, ref)

	// Drop every memoized Normalize entry that mentions the recycled ref,
	// as key or as value: the slot is about to be repopulated with
	// unrelated content.
	m.normalizeCache.Remove(ref)
	for _, k := range m.normalizeCache.Keys() {
		if v, ok := m.normalizeCache.Peek(k); ok && v.(ProgramStateRef) == ref {
			m.normalizeCache.Remove(k)
		}
	}
}

func (m *StateManager) removeFromChain(ref ProgramStateRef, h uint32) {
	chain := m.byHash[h]
	for i, r := range chain {
		if r == ref {
			m.byHash[h] = append(chain[:i], chain[i+1:]...)
			return
		}
	}
}

// Get[D]-style typed accessor: GetValue looks up id's binding on ref,
// reporting whether it was bound and, if so, whether it has the expected
// concrete type.
func GetValue[D AbstractValue](m *StateManager, ref ProgramStateRef, id DomainID) (D, bool) {
	var zero D
	v, ok := m.Get(ref).get(id)
	if !ok {
		return zero, false
	}
	d, ok := v.(D)
	return d, ok
}

// Exists reports whether id has a binding on ref.
func (m *StateManager) Exists(ref ProgramStateRef, id DomainID) bool {
	return m.Get(ref).exists(id)
}

// SetValue returns the ref for the state obtained from ref by binding id to
// v, interning the result.
func (m *StateManager) SetValue(ref ProgramStateRef, id DomainID, v AbstractValue) ProgramStateRef {
	return m.intern(m.Get(ref).withValue(id, v))
}

// RemoveValue returns the ref for the state obtained from ref by removing
// id's binding, interning the result.
func (m *StateManager) RemoveValue(ref ProgramStateRef, id DomainID) ProgramStateRef {
	return m.intern(m.Get(ref).withoutValue(id))
}

// GetRegionSExpr and SetRegionSExpr are the auxiliary-map analogues of
// GetValue/SetValue, over the memory-region sexpr map.
func (m *StateManager) GetRegionSExpr(ref ProgramStateRef, id MemRegionID) (SExpr, bool) {
	return m.Get(ref).getRegion(id)
}

func (m *StateManager) SetRegionSExpr(ref ProgramStateRef, id MemRegionID, e SExpr) ProgramStateRef {
	return m.intern(m.Get(ref).withRegion(id, e))
}

// GetStmtSExpr and SetStmtSExpr are the statement-sexpr-map analogues.
func (m *StateManager) GetStmtSExpr(ref ProgramStateRef, id StmtID) (SExpr, bool) {
	return m.Get(ref).getStmt(id)
}

func (m *StateManager) SetStmtSExpr(ref ProgramStateRef, id StmtID, e SExpr) ProgramStateRef {
	return m.intern(m.Get(ref).withStmt(id, e))
}

// Join, JoinAtLoopHead, JoinConsecutiveIter, Widen, Meet and Narrow each
// compute the named lattice operation over the two states named by a and
// b, interning and returning the result.
func (m *StateManager) Join(a, b ProgramStateRef) ProgramStateRef {
	return m.intern(m.Get(a).join(m.Get(b)))
}

func (m *StateManager) JoinAtLoopHead(a, b ProgramStateRef) ProgramStateRef {
	return m.intern(m.Get(a).joinAtLoopHead(m.Get(b)))
}

func (m *StateManager) JoinConsecutiveIter(a, b ProgramStateRef) ProgramStateRef {
	return m.intern(m.Get(a).joinConsecutiveIter(m.Get(b)))
}

func (m *StateManager) Widen(a, b ProgramStateRef) ProgramStateRef {
	return m.intern(m.Get(a).widen(m.Get(b)))
}

func (m *StateManager) Meet(a, b ProgramStateRef) ProgramStateRef {
	return m.intern(m.Get(a).meet(m.Get(b)))
}

func (m *StateManager) Narrow(a, b ProgramStateRef) ProgramStateRef {
	return m.intern(m.Get(a).narrow(m.Get(b)))
}

// Leq and Equals compare the states named by a and b. Equals is always
// equivalent to a == b once both are interned through this manager; it is
// provided anyway so callers never need to special-case the comparison.
func (m *StateManager) Leq(a, b ProgramStateRef) bool {
	return m.Get(a).leq(m.Get(b))
}

func (m *StateManager) Equals(a, b ProgramStateRef) bool {
	return a == b
}

func (m *StateManager) IsTop(ref ProgramStateRef) bool    { return m.Get(ref).isTop() }
func (m *StateManager) IsBottom(ref ProgramStateRef) bool { return m.Get(ref).isBottom() }

// SetToTop returns the top state derived from ref: every domain binding is
// dropped (an unbound domain is treated as top), while the auxiliary sexpr
// maps carry through unchanged.
func (m *StateManager) SetToTop(ref ProgramStateRef) ProgramStateRef {
	return m.intern(m.Get(ref).withoutAllValues())
}

// SetToBottom returns the distinguished unreachable state. Bottom
// annihilates everything ref carried, auxiliary maps included: an
// unreachable program point has no bindings worth remembering.
func (m *StateManager) SetToBottom(ProgramStateRef) ProgramStateRef {
	return m.bottomRef
}

// Normalize returns the ref of ref's canonical form, memoized: repeated
// calls with the same input ref are O(1) after the first, which matters
// because every fixpoint iteration renormalizes its join result before
// comparing it against the previous iteration's state for convergence.
func (m *StateManager) Normalize(ref ProgramStateRef) ProgramStateRef {
	if cached, ok := m.normalizeCache.Get(ref); ok {
		return cached.(ProgramStateRef)
	}
	result := m.intern(m.Get(ref).normalize())
	m.normalizeCache.Add(ref, result)
	return result
}
