package domains

import (
	"testing"

	"github.com/knight-dfa/knight/dfa"
)

type noopAmbient struct{}

func (noopAmbient) Name() string { return "domains-test" }

func TestAnalysesRegisterTheirDomains(t *testing.T) {
	states := dfa.NewStateManager()
	mgr := dfa.NewAnalysisManager(noopAmbient{})

	z := NewZeronessAnalysis(states)
	iv := NewIntervalAnalysis(states)
	mgr.MarkRequired(mgr.RegisterAnalysis(z), mgr.RegisterAnalysis(iv))
	mgr.ComputeRequiredByDependencies()
	if err := mgr.EnableRequiredAnalyses(); err != nil {
		t.Fatal(err)
	}

	zd, ok := mgr.DomainID(ZeronessDomainKind)
	if !ok {
		t.Fatal("registering ZeronessAnalysis must register the zeroness domain")
	}
	if mgr.DomainOwner(zd) != z.ID() {
		t.Error("the zeroness domain must be owned by the zeroness analysis")
	}
	if _, ok := mgr.DomainID(IntervalDomainKind); !ok {
		t.Fatal("registering IntervalAnalysis must register the interval domain")
	}

	// The well-formed initial state binds both domains to their registered
	// initial values: the accumulator identity, bottom, for both.
	start := states.DefaultStateFor(mgr)
	for _, kind := range []dfa.DomainKind{ZeronessDomainKind, IntervalDomainKind} {
		id, _ := mgr.DomainID(kind)
		v, ok := dfa.GetValue[dfa.AbstractValue](states, start, id)
		if !ok {
			t.Fatalf("initial state must bind domain %q", kind)
		}
		if !v.IsBottom() {
			t.Errorf("domain %q must start from its accumulator identity (bottom)", kind)
		}
	}
}

func TestZeronessJoinLattice(t *testing.T) {
	cases := []struct {
		a, b, want ZeronessKind
	}{
		{ZeroBottom, Zero, Zero},
		{Zero, NonZero, MaybeZero},
		{Zero, Zero, Zero},
		{MaybeZero, NonZero, MaybeZero},
		{ZeroTop, Zero, ZeroTop},
	}
	for _, c := range cases {
		got := joinZeroness(c.a, c.b)
		if got != c.want {
			t.Errorf("joinZeroness(%s, %s) = %s, want %s", c.a, c.b, got, c.want)
		}
	}
}

func TestZeronessValueJoinWith(t *testing.T) {
	v := NewZeronessValue(Zero)
	v.JoinWith(NewZeronessValue(NonZero))
	if v.k != MaybeZero {
		t.Fatalf("JoinWith(Zero, NonZero) = %s, want MaybeZero", v.k)
	}
	if v.IsTop() || v.IsBottom() {
		t.Fatal("MaybeZero is neither top nor bottom")
	}
}

func TestIntervalJoinAndWiden(t *testing.T) {
	a := NewInterval(0, 10)
	b := NewInterval(5, 20)

	joined := a.Clone().(*IntervalValue)
	joined.JoinWith(b)
	if joined.Low != 0 || joined.High != 20 {
		t.Fatalf("join([0,10],[5,20]) = [%s,%s], want [0,20]", joined.Low, joined.High)
	}

	widened := NewInterval(0, 10)
	widened.WidenWith(NewInterval(-5, 20))
	if widened.Low != negInf || widened.High != posInf {
		t.Fatalf("widen must jump both growing bounds to infinity, got [%s,%s]", widened.Low, widened.High)
	}
}

func TestIntervalBottomIsJoinIdentity(t *testing.T) {
	bot := BottomInterval()
	ten := NewInterval(1, 10)

	joined := bot.Clone().(*IntervalValue)
	joined.JoinWith(ten)
	if !joined.Equals(ten) {
		t.Fatalf("joining bottom with [1,10] must yield [1,10]")
	}
}

func TestIntervalLeq(t *testing.T) {
	inner := NewInterval(2, 5)
	outer := NewInterval(0, 10)
	if !inner.Leq(outer) {
		t.Error("[2,5] must be leq [0,10]")
	}
	if outer.Leq(inner) {
		t.Error("[0,10] must not be leq [2,5]")
	}
}

func TestIntervalNormalizeCrossedBoundsIsBottom(t *testing.T) {
	v := NewInterval(10, 0)
	v.Normalize()
	if !v.IsBottom() {
		t.Fatal("an interval with crossed bounds must normalize to bottom")
	}
}
