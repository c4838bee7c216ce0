// Package domains collects example abstract domains plugged into the core
// analysis engine (github.com/knight-dfa/knight/dfa). Each domain here
// implements dfa.AbstractValue, and exists to demonstrate and exercise the
// core's lattice-combinator dispatch, not as a from-scratch analysis suite.
package domains

import (
	"fmt"
	"io"

	"github.com/knight-dfa/knight/dfa"
)

// ZeronessKind is the five-point zero-ness lattice: a value is either known
// to be exactly zero, known to be non-zero, possibly either (MaybeZero,
// the join of Zero and NonZero), the unconstrained Top, or the unreachable
// Bottom.
type ZeronessKind int

const (
	ZeroBottom ZeronessKind = iota
	Zero
	NonZero
	MaybeZero
	ZeroTop
)

func (k ZeronessKind) String() string {
	switch k {
	case ZeroBottom:
		return "Bottom"
	case Zero:
		return "Zero"
	case NonZero:
		return "NonZero"
	case MaybeZero:
		return "MaybeZero"
	case ZeroTop:
		return "Top"
	default:
		return "Unknown"
	}
}

func joinZeroness(a, b ZeronessKind) ZeronessKind {
	if a == ZeroBottom {
		return b
	}
	if b == ZeroBottom {
		return a
	}
	if a == ZeroTop || b == ZeroTop {
		return ZeroTop
	}
	if a == MaybeZero || b == MaybeZero {
		return MaybeZero
	}
	if a == b {
		return a
	}
	return MaybeZero
}

func meetZeroness(a, b ZeronessKind) ZeronessKind {
	if a == ZeroBottom || b == ZeroBottom {
		return ZeroBottom
	}
	if a == ZeroTop {
		return b
	}
	if b == ZeroTop {
		return a
	}
	if a == b {
		return a
	}
	if a == MaybeZero {
		return b
	}
	if b == MaybeZero {
		return a
	}
	return ZeroBottom
}

func leqZeroness(a, b ZeronessKind) bool {
	return joinZeroness(a, b) == b
}

// ZeronessDomainKind is the DomainKind this domain registers under.
const ZeronessDomainKind dfa.DomainKind = "zeroness"

// ZeronessValue is the dfa.AbstractValue implementation for ZeronessKind: a
// flat lattice with finite height, so it needs no real widening -- the
// package-level WidenWith helper's fallback to JoinWith is exact here.
type ZeronessValue struct {
	k ZeronessKind
}

// NewZeronessValue wraps k as an AbstractValue.
func NewZeronessValue(k ZeronessKind) *ZeronessValue { return &ZeronessValue{k: k} }

func (v *ZeronessValue) Kind() dfa.DomainKind { return ZeronessDomainKind }
func (v *ZeronessValue) IsBottom() bool       { return v.k == ZeroBottom }
func (v *ZeronessValue) IsTop() bool          { return v.k == ZeroTop }

func (v *ZeronessValue) Leq(other dfa.AbstractValue) bool {
	return leqZeroness(v.k, other.(*ZeronessValue).k)
}

func (v *ZeronessValue) Equals(other dfa.AbstractValue) bool {
	o, ok := other.(*ZeronessValue)
	return ok && v.k == o.k
}

// Normalize is a no-op: ZeronessKind has no redundant representation to
// canonicalize.
func (v *ZeronessValue) Normalize() {}

func (v *ZeronessValue) Clone() dfa.AbstractValue {
	cp := *v
	return &cp
}

func (v *ZeronessValue) JoinWith(other dfa.AbstractValue) {
	v.k = joinZeroness(v.k, other.(*ZeronessValue).k)
}

func (v *ZeronessValue) MeetWith(other dfa.AbstractValue) {
	v.k = meetZeroness(v.k, other.(*ZeronessValue).k)
}

func (v *ZeronessValue) Dump(w io.Writer) {
	fmt.Fprintf(w, "zeroness(%s)", v.k)
}

func (v *ZeronessValue) Hash() uint32 { return uint32(v.k) }

var (
	_ dfa.AbstractValue = (*ZeronessValue)(nil)
	_ dfa.Meeter        = (*ZeronessValue)(nil)
)
