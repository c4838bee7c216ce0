package dfa

import "io"

// AbstractValue is the lattice-element contract a plug-in abstract domain
// must satisfy. It is reference-shared: callers never mutate a
// shared value in place, they Clone, mutate the clone, then install the
// clone -- see StateManager.SetValue.
//
// Beyond this required capability set, a domain may optionally implement
// LoopHeadJoiner, ConsecutiveIterJoiner, Widener, Meeter and Narrower; a
// domain that does not is given a sensible default by the package-level
// JoinWithAtLoopHead/JoinConsecutiveIterWith/WidenWith/MeetWith/NarrowWith
// helpers, which every call site in this package uses instead of calling
// the interface method directly -- optional operations with defaults,
// expressed as a type assertion against a narrow interface.
type AbstractValue interface {
	// Kind identifies which DomainKind this value belongs to; the core
	// uses it only for diagnostics and sanity checks, never to decide
	// behavior.
	Kind() DomainKind

	IsBottom() bool
	IsTop() bool

	// Leq reports whether the receiver is less-than-or-equal to other in
	// the domain's partial order.
	Leq(other AbstractValue) bool
	// Equals reports value equality. A domain may rely on the default
	// Leq-both-ways definition by composing DefaultEquals.
	Equals(other AbstractValue) bool

	// Normalize canonicalizes the value in place. normalize is
	// idempotent and must preserve Equals.
	Normalize()

	// Clone returns a fresh, independently mutable value equal to the
	// receiver. Every in-place combinator below assumes the caller holds
	// exclusive ownership of the receiver, which Clone grants.
	Clone() AbstractValue

	// JoinWith mutates the receiver into the pointwise least upper bound
	// of the receiver and other. join must be commutative in its
	// result, though not necessarily in its implementation.
	JoinWith(other AbstractValue)

	// Dump writes a human-readable rendering of the value to w.
	Dump(w io.Writer)

	// Hash contributes this value's content to a fold-hash; two values
	// that Equals must produce the same Hash.
	Hash() uint32
}

// LoopHeadJoiner is implemented by domains whose join at a loop head
// (typically the start of widening) differs from their ordinary join.
type LoopHeadJoiner interface {
	JoinWithAtLoopHead(other AbstractValue)
}

// ConsecutiveIterJoiner is implemented by domains whose join between two
// consecutive fixpoint iterations differs from their ordinary join.
type ConsecutiveIterJoiner interface {
	JoinConsecutiveIterWith(other AbstractValue)
}

// Widener is implemented by domains with a genuine widening operator.
// Widen need not be monotone in its second argument but must
// over-approximate join.
type Widener interface {
	WidenWith(other AbstractValue)
}

// Meeter is implemented by domains that support a lower bound.
type Meeter interface {
	MeetWith(other AbstractValue)
}

// Narrower is implemented by domains with a genuine narrowing operator.
type Narrower interface {
	NarrowWith(other AbstractValue)
}

// JoinWithAtLoopHead applies v's loop-head join if it implements one,
// otherwise falls back to its ordinary join.
func JoinWithAtLoopHead(v AbstractValue, other AbstractValue) {
	if j, ok := v.(LoopHeadJoiner); ok {
		j.JoinWithAtLoopHead(other)
		return
	}
	v.JoinWith(other)
}

// JoinConsecutiveIterWith applies v's consecutive-iteration join if it
// implements one, otherwise falls back to its ordinary join.
func JoinConsecutiveIterWith(v AbstractValue, other AbstractValue) {
	if j, ok := v.(ConsecutiveIterJoiner); ok {
		j.JoinConsecutiveIterWith(other)
		return
	}
	v.JoinWith(other)
}

// WidenWith applies v's widening if it implements one, otherwise falls back
// to its ordinary join -- a domain with a finite-height lattice need not
// implement widening at all.
func WidenWith(v AbstractValue, other AbstractValue) {
	if w, ok := v.(Widener); ok {
		w.WidenWith(other)
		return
	}
	v.JoinWith(other)
}

// MeetWith applies v's meet if it implements one. A domain with no meet
// leaves the receiver unchanged.
func MeetWith(v AbstractValue, other AbstractValue) {
	if m, ok := v.(Meeter); ok {
		m.MeetWith(other)
	}
}

// NarrowWith applies v's narrowing if it implements one, otherwise falls
// back to MeetWith.
func NarrowWith(v AbstractValue, other AbstractValue) {
	if n, ok := v.(Narrower); ok {
		n.NarrowWith(other)
		return
	}
	MeetWith(v, other)
}

// DefaultEquals implements Equals in terms of two-way Leq, for domains that
// don't have a cheaper equality check.
func DefaultEquals(a, b AbstractValue) bool {
	return a.Leq(b) && b.Leq(a)
}

// DefaultValueFn constructs the default (top-like) initial value for a
// domain. BottomValueFn constructs its bottom value. Both are supplied by
// the domain's owning analysis at registration time and memoized by
// DomainID -- see Registrar.Domain and AddDomainDependency.
type (
	DefaultValueFn func() AbstractValue
	BottomValueFn  func() AbstractValue
)
