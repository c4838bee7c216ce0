package dfa

import (
	"fmt"
	"io"

	"github.com/benbjohnson/immutable"

	"github.com/knight-dfa/knight/utils"
)

// MemRegionID and StmtID are opaque handles for the auxiliary sexpr maps a
// ProgramState carries besides its per-domain abstract values: one mapping
// memory regions to a symbolic-expression binding, one mapping statement
// sites to a symbolic-expression summary.
type MemRegionID int
type StmtID int

// SExpr is an opaque symbolic-expression payload. The core never interprets
// it; it only requires enough structure to hash-cons ProgramState around it.
type SExpr interface {
	fmt.Stringer
	Hash() uint32
	Equal(other SExpr) bool
}

// intHasher is the immutable.Hasher for the plain-int-based ID types that
// key a ProgramState's maps.
type intHasher[T ~int] struct{}

func (intHasher[T]) Hash(v T) uint32 { return uint32(v) }
func (intHasher[T]) Equal(a, b T) bool { return a == b }

func domainHasher() immutable.Hasher[DomainID]       { return intHasher[DomainID]{} }
func memRegionHasher() immutable.Hasher[MemRegionID] { return intHasher[MemRegionID]{} }
func stmtHasher() immutable.Hasher[StmtID]           { return intHasher[StmtID]{} }

// ProgramState is an immutable, lattice-structured record: a map from
// DomainID to that domain's current AbstractValue, plus the two auxiliary
// sexpr maps. It is a plain value type -- every operation below returns a
// new ProgramState rather than mutating the receiver -- so that the
// StateManager can safely hash-cons it behind an opaque ProgramStateRef and
// two content-equal states are always the same interned object.
type ProgramState struct {
	values  *immutable.Map[DomainID, AbstractValue]
	regions *immutable.Map[MemRegionID, SExpr]
	stmts   *immutable.Map[StmtID, SExpr]

	// bottom marks this state as the distinguished unreachable program
	// point, independent of any per-domain bottom value -- a program point
	// can be unreachable before any domain has even been asked about it.
	bottom bool
}

func emptyProgramState() *ProgramState {
	return &ProgramState{
		values:  immutable.NewMap[DomainID, AbstractValue](domainHasher()),
		regions: immutable.NewMap[MemRegionID, SExpr](memRegionHasher()),
		stmts:   immutable.NewMap[StmtID, SExpr](stmtHasher()),
	}
}

func bottomProgramState() *ProgramState {
	s := emptyProgramState()
	s.bottom = true
	return s
}

func (s *ProgramState) clone() *ProgramState {
	cp := *s
	return &cp
}

// get returns the raw abstract value bound to id, if any.
func (s *ProgramState) get(id DomainID) (AbstractValue, bool) {
	return s.values.Get(id)
}

// exists reports whether id has a binding in this state.
func (s *ProgramState) exists(id DomainID) bool {
	_, ok := s.values.Get(id)
	return ok
}

// withValue returns a new state with id bound to v.
func (s *ProgramState) withValue(id DomainID, v AbstractValue) *ProgramState {
	cp := s.clone()
	cp.values = s.values.Set(id, v)
	return cp
}

// withoutValue returns a new state with id unbound.
func (s *ProgramState) withoutValue(id DomainID) *ProgramState {
	cp := s.clone()
	cp.values = s.values.Delete(id)
	return cp
}

func (s *ProgramState) getRegion(id MemRegionID) (SExpr, bool) {
	return s.regions.Get(id)
}

func (s *ProgramState) withRegion(id MemRegionID, e SExpr) *ProgramState {
	cp := s.clone()
	cp.regions = s.regions.Set(id, e)
	return cp
}

func (s *ProgramState) getStmt(id StmtID) (SExpr, bool) {
	return s.stmts.Get(id)
}

func (s *ProgramState) withStmt(id StmtID, e SExpr) *ProgramState {
	cp := s.clone()
	cp.stmts = s.stmts.Set(id, e)
	return cp
}

// combine folds the per-domain values of s and other together via combiner,
// producing a fresh state whose key set is the union of both operands'. A
// DomainID present in only one operand is carried through as-is: combiner
// is only ever asked to reconcile domains bound on both sides.
func (s *ProgramState) combine(other *ProgramState, combiner func(a, b AbstractValue) AbstractValue) *ProgramState {
	out := s.clone()
	values := s.values
	itr := other.values.Iterator()
	for !itr.Done() {
		id, ov, _ := itr.Next()
		if av, ok := s.values.Get(id); ok {
			values = values.Set(id, combiner(av, ov))
		} else {
			values = values.Set(id, ov)
		}
	}
	out.values = values
	out.regions = s.regions
	out.stmts = s.stmts
	return out
}

func joinValues(a, b AbstractValue) AbstractValue {
	cp := a.Clone()
	cp.JoinWith(b)
	return cp
}

func joinAtLoopHeadValues(a, b AbstractValue) AbstractValue {
	cp := a.Clone()
	JoinWithAtLoopHead(cp, b)
	return cp
}

func joinConsecutiveIterValues(a, b AbstractValue) AbstractValue {
	cp := a.Clone()
	JoinConsecutiveIterWith(cp, b)
	return cp
}

func widenValues(a, b AbstractValue) AbstractValue {
	cp := a.Clone()
	WidenWith(cp, b)
	return cp
}

func meetValues(a, b AbstractValue) AbstractValue {
	cp := a.Clone()
	MeetWith(cp, b)
	return cp
}

func narrowValues(a, b AbstractValue) AbstractValue {
	cp := a.Clone()
	NarrowWith(cp, b)
	return cp
}

// join returns the pointwise least upper bound of s and other. Bottom is
// join's identity element: joining with an unreachable program point just
// returns the other operand unchanged.
func (s *ProgramState) join(other *ProgramState) *ProgramState {
	if s.bottom {
		return other.clone()
	}
	if other.bottom {
		return s.clone()
	}
	return s.combine(other, joinValues)
}

func (s *ProgramState) joinAtLoopHead(other *ProgramState) *ProgramState {
	if s.bottom {
		return other.clone()
	}
	if other.bottom {
		return s.clone()
	}
	return s.combine(other, joinAtLoopHeadValues)
}

func (s *ProgramState) joinConsecutiveIter(other *ProgramState) *ProgramState {
	if s.bottom {
		return other.clone()
	}
	if other.bottom {
		return s.clone()
	}
	return s.combine(other, joinConsecutiveIterValues)
}

func (s *ProgramState) widen(other *ProgramState) *ProgramState {
	if s.bottom {
		return other.clone()
	}
	if other.bottom {
		return s.clone()
	}
	return s.combine(other, widenValues)
}

// meet, unlike join, is only defined over domains present on both operands:
// a domain absent from one operand has no information to meet against, so
// it is dropped from the result rather than carried through. An empty
// result (no domain in common) is meet's own vacuous-top edge case. Bottom
// is meet's annihilator: meeting with an unreachable program point is
// itself unreachable.
func (s *ProgramState) meet(other *ProgramState) *ProgramState {
	if s.bottom || other.bottom {
		return bottomProgramState()
	}
	out := s.clone()
	values := immutable.NewMap[DomainID, AbstractValue](domainHasher())
	itr := s.values.Iterator()
	for !itr.Done() {
		id, av, _ := itr.Next()
		if ov, ok := other.values.Get(id); ok {
			values = values.Set(id, meetValues(av, ov))
		}
	}
	out.values = values
	return out
}

func (s *ProgramState) narrow(other *ProgramState) *ProgramState {
	if s.bottom || other.bottom {
		return bottomProgramState()
	}
	out := s.clone()
	values := immutable.NewMap[DomainID, AbstractValue](domainHasher())
	itr := s.values.Iterator()
	for !itr.Done() {
		id, av, _ := itr.Next()
		if ov, ok := other.values.Get(id); ok {
			values = values.Set(id, narrowValues(av, ov))
		} else {
			values = values.Set(id, av)
		}
	}
	out.values = values
	return out
}

// leq reports whether s is less-than-or-equal to other, pointwise. A domain
// bound only in s must be bottom (the unbound side holds no value to be
// above), and a domain bound only in other must hold top (an unbound domain
// on s's side is treated as top, and top is only leq top).
func (s *ProgramState) leq(other *ProgramState) bool {
	if s.bottom {
		return true
	}
	if other.bottom {
		return false
	}
	itr := s.values.Iterator()
	for !itr.Done() {
		id, av, _ := itr.Next()
		ov, ok := other.values.Get(id)
		if !ok {
			if !av.IsBottom() {
				return false
			}
			continue
		}
		if !av.Leq(ov) {
			return false
		}
	}
	oitr := other.values.Iterator()
	for !oitr.Done() {
		id, ov, _ := oitr.Next()
		if _, ok := s.values.Get(id); !ok && !ov.IsTop() {
			return false
		}
	}
	return true
}

func (s *ProgramState) equals(other *ProgramState) bool {
	if s.bottom || other.bottom {
		return s.bottom == other.bottom
	}
	if s.values.Len() != other.values.Len() {
		return false
	}
	itr := s.values.Iterator()
	for !itr.Done() {
		id, av, _ := itr.Next()
		ov, ok := other.values.Get(id)
		if !ok || !av.Equals(ov) {
			return false
		}
	}
	return s.sexprEquals(other)
}

func (s *ProgramState) sexprEquals(other *ProgramState) bool {
	if s.regions.Len() != other.regions.Len() || s.stmts.Len() != other.stmts.Len() {
		return false
	}
	itr := s.regions.Iterator()
	for !itr.Done() {
		id, e, _ := itr.Next()
		oe, ok := other.regions.Get(id)
		if !ok || !e.Equal(oe) {
			return false
		}
	}
	sitr := s.stmts.Iterator()
	for !sitr.Done() {
		id, e, _ := sitr.Next()
		oe, ok := other.stmts.Get(id)
		if !ok || !e.Equal(oe) {
			return false
		}
	}
	return true
}

// isTop reports whether every bound domain value is top. An empty state
// (no domain bound at all) is vacuously top: an unbound domain constrains
// nothing.
func (s *ProgramState) isTop() bool {
	itr := s.values.Iterator()
	for !itr.Done() {
		_, v, _ := itr.Next()
		if !v.IsTop() {
			return false
		}
	}
	return true
}

// isBottom reports whether s is the distinguished unreachable state, or
// whether any bound domain value is itself bottom.
func (s *ProgramState) isBottom() bool {
	if s.bottom {
		return true
	}
	itr := s.values.Iterator()
	for !itr.Done() {
		_, v, _ := itr.Next()
		if v.IsBottom() {
			return true
		}
	}
	return false
}

// withoutAllValues drops every domain binding but keeps the auxiliary sexpr
// maps: since an unbound domain is treated as top, the result is the top
// state that still remembers its region/statement bindings.
func (s *ProgramState) withoutAllValues() *ProgramState {
	cp := s.clone()
	cp.values = immutable.NewMap[DomainID, AbstractValue](domainHasher())
	cp.bottom = false
	return cp
}

// normalize canonicalizes every bound domain value in place on a private
// clone, so sharing the original with other ProgramStates is unaffected.
func (s *ProgramState) normalize() *ProgramState {
	out := s.clone()
	values := immutable.NewMap[DomainID, AbstractValue](domainHasher())
	itr := s.values.Iterator()
	for !itr.Done() {
		id, v, _ := itr.Next()
		cp := v.Clone()
		cp.Normalize()
		values = values.Set(id, cp)
	}
	out.values = values
	return out
}

// hash folds every domain value's hash together with the two auxiliary
// sexpr maps. The sexpr maps must participate: the
// ref-equality-implies-content-equality invariant the StateManager promises
// is only sound if every field that equals() compares also contributes to
// hash().
func (s *ProgramState) hash() uint32 {
	if s.bottom {
		return 0x9e3779b9
	}
	h := uint32(0)
	itr := s.values.Iterator()
	for !itr.Done() {
		id, v, _ := itr.Next()
		h = utils.HashCombine(h, uint32(id), v.Hash())
	}
	ritr := s.regions.Iterator()
	for !ritr.Done() {
		id, e, _ := ritr.Next()
		h = utils.HashCombine(h, uint32(id), e.Hash())
	}
	sitr := s.stmts.Iterator()
	for !sitr.Done() {
		id, e, _ := sitr.Next()
		h = utils.HashCombine(h, uint32(id), e.Hash())
	}
	return h
}

// Dump writes a human-readable rendering of every bound domain value.
func (s *ProgramState) Dump(w io.Writer, names func(DomainID) string) {
	fmt.Fprintln(w, "ProgramState{")
	itr := s.values.Iterator()
	for !itr.Done() {
		id, v, _ := itr.Next()
		fmt.Fprintf(w, "  %s: ", names(id))
		v.Dump(w)
		fmt.Fprintln(w)
	}
	fmt.Fprintln(w, "}")
}

// ProgramStateRef is an opaque, small handle to a hash-consed ProgramState
// held by a StateManager. Two refs are equal if and only if the states they
// name are equal -- callers should never compare the states behind two refs
// structurally, only compare the refs themselves.
type ProgramStateRef int

// InvalidProgramStateRef is a sentinel for "no state". No StateManager
// method returns it; a handle the manager has recycled is not turned into it.
const InvalidProgramStateRef ProgramStateRef = -1
