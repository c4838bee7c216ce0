package dfa

import (
	"io"
	"testing"
)

// intValue is a tiny join-semilattice over non-negative ints with a
// distinguished top, used to exercise StateManager without pulling in a
// real plug-in domain.
type intValue struct {
	n   int
	top bool
}

const intTop = -1

func (v *intValue) Kind() DomainKind { return "int" }
func (v *intValue) IsBottom() bool   { return v.n == 0 && !v.top }
func (v *intValue) IsTop() bool      { return v.top }
func (v *intValue) Leq(o AbstractValue) bool {
	other := o.(*intValue)
	if other.top {
		return true
	}
	if v.top {
		return false
	}
	return v.n <= other.n
}
func (v *intValue) Equals(o AbstractValue) bool {
	other := o.(*intValue)
	return v.top == other.top && v.n == other.n
}
func (v *intValue) Normalize() {}
func (v *intValue) Clone() AbstractValue {
	cp := *v
	return &cp
}
func (v *intValue) JoinWith(o AbstractValue) {
	other := o.(*intValue)
	if v.top || other.top {
		v.top = true
		v.n = 0
		return
	}
	if other.n > v.n {
		v.n = other.n
	}
}
func (v *intValue) Dump(w io.Writer) { io.WriteString(w, "int") }
func (v *intValue) Hash() uint32 {
	if v.top {
		return 1 << 31
	}
	return uint32(v.n)
}

func newIntValue(n int) *intValue { return &intValue{n: n} }

func TestStateManagerInterningIsPointerEqual(t *testing.T) {
	mgr := NewStateManager()
	const domX DomainID = 0

	a := mgr.SetValue(mgr.DefaultState(), domX, newIntValue(3))
	b := mgr.SetValue(mgr.DefaultState(), domX, newIntValue(3))

	if a != b {
		t.Fatalf("two states built from equal content must intern to the same ref: a=%d b=%d", a, b)
	}

	c := mgr.SetValue(mgr.DefaultState(), domX, newIntValue(4))
	if a == c {
		t.Fatalf("states with different content must not share a ref")
	}
}

func TestStateManagerJoinPointwiseUnion(t *testing.T) {
	mgr := NewStateManager()
	const domX, domY DomainID = 0, 1

	onlyX := mgr.SetValue(mgr.DefaultState(), domX, newIntValue(1))
	onlyY := mgr.SetValue(mgr.DefaultState(), domY, newIntValue(2))

	joined := mgr.Join(onlyX, onlyY)

	xv, ok := GetValue[*intValue](mgr, joined, domX)
	if !ok || xv.n != 1 {
		t.Errorf("domain present only on the left must carry through join unchanged: got %v, ok=%v", xv, ok)
	}
	yv, ok := GetValue[*intValue](mgr, joined, domY)
	if !ok || yv.n != 2 {
		t.Errorf("domain present only on the right must carry through join unchanged: got %v, ok=%v", yv, ok)
	}
}

func TestStateManagerMeetDropsDisjointDomains(t *testing.T) {
	mgr := NewStateManager()
	const domX, domY DomainID = 0, 1

	onlyX := mgr.SetValue(mgr.DefaultState(), domX, newIntValue(1))
	onlyY := mgr.SetValue(mgr.DefaultState(), domY, newIntValue(2))

	met := mgr.Meet(onlyX, onlyY)
	if mgr.Exists(met, domX) || mgr.Exists(met, domY) {
		t.Error("meet over disjoint domains must drop both, not carry either through")
	}
	if !mgr.IsTop(met) {
		t.Error("meet over disjoint domains leaves no bindings, which is vacuously top")
	}
}

func TestStateManagerBottomIsJoinIdentity(t *testing.T) {
	mgr := NewStateManager()
	const domX DomainID = 0

	s := mgr.SetValue(mgr.DefaultState(), domX, newIntValue(7))
	joined := mgr.Join(mgr.BottomState(), s)
	if joined != s {
		t.Errorf("joining with bottom must be the identity: got %d, want %d", joined, s)
	}

	met := mgr.Meet(mgr.BottomState(), s)
	if !mgr.IsBottom(met) {
		t.Error("meeting with bottom must annihilate to bottom")
	}
}

func TestStateManagerDefaultStateIsVacuouslyTop(t *testing.T) {
	mgr := NewStateManager()
	if !mgr.IsTop(mgr.DefaultState()) {
		t.Error("a ProgramState with no domain bound is vacuously top")
	}
	if mgr.IsBottom(mgr.DefaultState()) {
		t.Error("the empty state must not be bottom")
	}
}

func TestStateManagerRefcountRecyclesSlot(t *testing.T) {
	mgr := NewStateManager()
	const domX DomainID = 0

	s := mgr.SetValue(mgr.DefaultState(), domX, newIntValue(42))
	mgr.Acquire(s)
	mgr.Release(s)

	// One reference (the intern-time one) still holds: re-deriving the
	// same content must hit the intern table, not allocate.
	s2 := mgr.SetValue(mgr.DefaultState(), domX, newIntValue(42))
	if s2 != s {
		t.Fatalf("content still interned must share its ref: got %d, want %d", s2, s)
	}

	// Dropping the last reference recycles the slot; the next intern of
	// fresh content reuses it from the free list.
	mgr.Release(s)
	s3 := mgr.SetValue(mgr.DefaultState(), domX, newIntValue(43))
	if s3 != s {
		t.Fatalf("a recycled slot must be reused by the next intern: got %d, want %d", s3, s)
	}
	if v, ok := GetValue[*intValue](mgr, s3, domX); !ok || v.n != 43 {
		t.Fatalf("the recycled slot must hold the new content: got %v, ok=%v", v, ok)
	}
}

type testSExpr string

func (e testSExpr) String() string { return string(e) }
func (e testSExpr) Hash() uint32 {
	var h uint32
	for i := 0; i < len(e); i++ {
		h = h*31 + uint32(e[i])
	}
	return h
}
func (e testSExpr) Equal(o SExpr) bool {
	oe, ok := o.(testSExpr)
	return ok && oe == e
}

// domainedAnalysis registers one domain whose default is top and whose
// bottom is the intValue lattice's least element, for exercising
// DefaultStateFor/BottomStateFor.
type domainedAnalysis struct {
	Base
	domain DomainID
}

func (a *domainedAnalysis) Kind() AnalysisKind { return "domained" }

func (a *domainedAnalysis) Initialize(reg *Registrar) {
	a.domain = reg.Domain("intdom",
		func() AbstractValue { return &intValue{top: true} },
		func() AbstractValue { return newIntValue(0) },
	)
}

func TestStateManagerInitialStatesBindRegisteredDomains(t *testing.T) {
	amgr := NewAnalysisManager(testAmbient{})
	a := &domainedAnalysis{}
	amgr.RegisterAnalysis(a)
	amgr.MarkRequired(a.ID())
	amgr.ComputeRequiredByDependencies()

	states := NewStateManager()

	def := states.DefaultStateFor(amgr)
	if !states.Exists(def, a.domain) {
		t.Fatal("the default state must bind every domain a required analysis registered")
	}
	if !states.IsTop(def) {
		t.Error("with a top default value, the default state must be top")
	}

	bot := states.BottomStateFor(amgr)
	if !states.Exists(bot, a.domain) {
		t.Fatal("the bottom state must bind every domain a required analysis registered")
	}
	if !states.IsBottom(bot) {
		t.Error("with a bottom value bound, the bottom state must be bottom")
	}
	if def == bot {
		t.Error("default and bottom states with distinct content must not intern to one ref")
	}
}

func TestStateManagerSetToTopAndSetToBottom(t *testing.T) {
	mgr := NewStateManager()
	const domX DomainID = 0
	const region MemRegionID = 7

	s := mgr.SetValue(mgr.DefaultState(), domX, newIntValue(3))
	s = mgr.SetRegionSExpr(s, region, testSExpr("x+1"))

	top := mgr.SetToTop(s)
	if mgr.Exists(top, domX) {
		t.Error("SetToTop must drop every domain binding")
	}
	if !mgr.IsTop(top) {
		t.Error("SetToTop's result must be top")
	}
	if e, ok := mgr.GetRegionSExpr(top, region); !ok || !e.Equal(testSExpr("x+1")) {
		t.Error("SetToTop must carry the auxiliary sexpr maps through unchanged")
	}

	if got := mgr.SetToBottom(s); got != mgr.BottomState() {
		t.Errorf("SetToBottom must return the distinguished bottom state, got %d", got)
	}
}

func TestStateManagerSExprMapsAreIndependentAndInterned(t *testing.T) {
	mgr := NewStateManager()
	const r1, r2 MemRegionID = 1, 2
	const st1 StmtID = 1

	s := mgr.SetRegionSExpr(mgr.DefaultState(), r1, testSExpr("a"))
	s2 := mgr.SetRegionSExpr(s, r2, testSExpr("b"))

	// Setting a different region must not disturb the first binding.
	if e, ok := mgr.GetRegionSExpr(s2, r1); !ok || !e.Equal(testSExpr("a")) {
		t.Error("binding a second region must leave the first region's sexpr unchanged")
	}
	if _, ok := mgr.GetRegionSExpr(mgr.DefaultState(), r1); ok {
		t.Error("the default state must not observe later sexpr bindings")
	}

	// States that differ only in an auxiliary map must not collide.
	withStmt := mgr.SetStmtSExpr(s, st1, testSExpr("call"))
	if withStmt == s {
		t.Error("states differing only in the statement sexpr map must intern to distinct refs")
	}

	// Equal auxiliary content re-derived must intern to the same ref.
	again := mgr.SetRegionSExpr(mgr.DefaultState(), r1, testSExpr("a"))
	if again != s {
		t.Errorf("equal sexpr content must share one ref: %d != %d", again, s)
	}
}

func TestStateManagerLatticeProperties(t *testing.T) {
	mgr := NewStateManager()
	const domX, domY DomainID = 0, 1

	a := mgr.SetValue(mgr.DefaultState(), domX, newIntValue(3))
	b := mgr.SetValue(mgr.SetValue(mgr.DefaultState(), domX, newIntValue(5)), domY, &intValue{top: true})

	joined := mgr.Join(a, b)
	if !mgr.Leq(a, joined) || !mgr.Leq(b, joined) {
		t.Error("both operands must be leq their join")
	}

	met := mgr.Meet(a, b)
	if !mgr.Leq(met, a) || !mgr.Leq(met, b) {
		t.Error("a meet must be leq both operands")
	}

	if mgr.Join(a, a) != a {
		t.Error("join must be idempotent: join(s, s) == s")
	}
	if mgr.Meet(a, a) != a {
		t.Error("meet must be idempotent: meet(s, s) == s")
	}

	n := mgr.Normalize(a)
	if mgr.Normalize(n) != n {
		t.Error("normalize must be idempotent: normalize(normalize(s)) == normalize(s)")
	}
}

func TestStateManagerLeqTreatsAbsentDomains(t *testing.T) {
	mgr := NewStateManager()
	const domX DomainID = 0

	// A domain bound only on the left must be bottom for leq to hold.
	leftBottom := mgr.SetValue(mgr.DefaultState(), domX, newIntValue(0))
	leftLive := mgr.SetValue(mgr.DefaultState(), domX, newIntValue(3))
	if !mgr.Leq(leftBottom, mgr.DefaultState()) {
		t.Error("a bottom binding absent on the right must not break leq")
	}
	if mgr.Leq(leftLive, mgr.DefaultState()) {
		t.Error("a non-bottom binding absent on the right must break leq")
	}

	// A domain bound only on the right must be top: the left side's absent
	// binding is treated as top, and top is only leq top.
	rightTop := mgr.SetValue(mgr.DefaultState(), domX, &intValue{top: true})
	rightLive := mgr.SetValue(mgr.DefaultState(), domX, newIntValue(3))
	if !mgr.Leq(mgr.DefaultState(), rightTop) {
		t.Error("a top binding absent on the left must not break leq")
	}
	if mgr.Leq(mgr.DefaultState(), rightLive) {
		t.Error("a non-top binding absent on the left must break leq")
	}
}

func TestStateManagerNormalizeIsMemoized(t *testing.T) {
	mgr := NewStateManager()
	const domX DomainID = 0

	s := mgr.SetValue(mgr.DefaultState(), domX, newIntValue(9))
	n1 := mgr.Normalize(s)
	n2 := mgr.Normalize(s)
	if n1 != n2 {
		t.Errorf("Normalize must be memoized and stable across calls: got %d then %d", n1, n2)
	}
}
