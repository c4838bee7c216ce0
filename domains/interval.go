package domains

import (
	"fmt"
	"io"
	"math"

	"github.com/knight-dfa/knight/dfa"
)

// bound is an interval endpoint: a finite int64, or one of the two
// infinities, with math.MinInt64/math.MaxInt64 as the infinite sentinels.
// This domain never needs to distinguish "the finite value MaxInt64" from
// "infinity", so one integer type covers all three cases.
type bound int64

const (
	negInf bound = math.MinInt64
	posInf bound = math.MaxInt64
)

func (b bound) String() string {
	switch b {
	case posInf:
		return "+inf"
	case negInf:
		return "-inf"
	default:
		return fmt.Sprintf("%d", int64(b))
	}
}

func minBound(a, b bound) bound {
	if a < b {
		return a
	}
	return b
}

func maxBound(a, b bound) bound {
	if a > b {
		return a
	}
	return b
}

// IntervalDomainKind is the DomainKind this domain registers under.
const IntervalDomainKind dfa.DomainKind = "interval"

// IntervalValue is a closed integer interval [Low, High], the classic
// infinite-height abstract domain: it needs a genuine widening operator,
// unlike ZeronessValue.
type IntervalValue struct {
	Low, High bound
	bottom    bool
}

// NewInterval creates a finite interval [low, high].
func NewInterval(low, high int64) *IntervalValue {
	return &IntervalValue{Low: bound(low), High: bound(high)}
}

// TopInterval is the unconstrained interval [-inf, +inf].
func TopInterval() *IntervalValue {
	return &IntervalValue{Low: negInf, High: posInf}
}

// BottomInterval is the empty interval, the domain's least element.
func BottomInterval() *IntervalValue {
	return &IntervalValue{bottom: true}
}

func (v *IntervalValue) Kind() dfa.DomainKind { return IntervalDomainKind }
func (v *IntervalValue) IsBottom() bool       { return v.bottom }
func (v *IntervalValue) IsTop() bool          { return !v.bottom && v.Low == negInf && v.High == posInf }

func (v *IntervalValue) Leq(o dfa.AbstractValue) bool {
	other := o.(*IntervalValue)
	if v.bottom {
		return true
	}
	if other.bottom {
		return false
	}
	return other.Low <= v.Low && v.High <= other.High
}

func (v *IntervalValue) Equals(o dfa.AbstractValue) bool {
	return dfa.DefaultEquals(v, o)
}

// Normalize canonicalizes an interval with crossed bounds (Low > High) to
// the canonical bottom representation.
func (v *IntervalValue) Normalize() {
	if !v.bottom && v.Low > v.High {
		v.bottom = true
		v.Low, v.High = 0, 0
	}
}

func (v *IntervalValue) Clone() dfa.AbstractValue {
	cp := *v
	return &cp
}

func (v *IntervalValue) JoinWith(o dfa.AbstractValue) {
	other := o.(*IntervalValue)
	if v.bottom {
		*v = *other
		return
	}
	if other.bottom {
		return
	}
	v.Low = minBound(v.Low, other.Low)
	v.High = maxBound(v.High, other.High)
}

// WidenWith jumps any bound that grew, on either side, straight to
// infinity -- the textbook interval widening, which guarantees termination
// on a lattice join() alone could not (the interval domain has infinite
// height).
func (v *IntervalValue) WidenWith(o dfa.AbstractValue) {
	other := o.(*IntervalValue)
	if v.bottom {
		*v = *other
		return
	}
	if other.bottom {
		return
	}
	if other.Low < v.Low {
		v.Low = negInf
	}
	if other.High > v.High {
		v.High = posInf
	}
}

func (v *IntervalValue) MeetWith(o dfa.AbstractValue) {
	other := o.(*IntervalValue)
	if v.bottom || other.bottom {
		v.bottom = true
		v.Low, v.High = 0, 0
		return
	}
	v.Low = maxBound(v.Low, other.Low)
	v.High = minBound(v.High, other.High)
	v.Normalize()
}

func (v *IntervalValue) Dump(w io.Writer) {
	if v.bottom {
		io.WriteString(w, "[]")
		return
	}
	fmt.Fprintf(w, "[%s, %s]", v.Low, v.High)
}

func (v *IntervalValue) Hash() uint32 {
	if v.bottom {
		return 0
	}
	h := uint32(v.Low) ^ uint32(v.Low>>32)
	h = h*31 + uint32(v.High) ^ uint32(v.High>>32)
	return h
}

var (
	_ dfa.AbstractValue = (*IntervalValue)(nil)
	_ dfa.Widener       = (*IntervalValue)(nil)
	_ dfa.Meeter        = (*IntervalValue)(nil)
)
