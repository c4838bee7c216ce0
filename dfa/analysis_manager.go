package dfa

import (
	"log"
	"sort"

	"golang.org/x/tools/container/intsets"
	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"

	"github.com/knight-dfa/knight/utils/worklist"
)

type analysisEntry struct {
	kind       AnalysisKind
	instance   Analysis
	privileged bool
}

type domainEntry struct {
	kind   DomainKind
	owner  AnalysisID
	def    DefaultValueFn
	bottom BottomValueFn
}

// AnalysisManager is the engine's scheduler: a registry of
// analyses and their declared domains, a dependency graph between them, a
// topological dispatch order derived from that graph, and the callback
// tables (begin-function / end-function / per-statement) that drive a
// single traversal. One AnalysisManager belongs to one analysis session; it
// is not safe for concurrent registration.
//
// An analysis moves through Registered -> Required -> Enabled over the
// manager's lifetime: RegisterAnalysis makes it known,
// ComputeRequiredByDependencies folds it into the required set (directly,
// via a dependency edge, or by privilege), and EnableAnalysis admits it to
// dispatch. Only enabled analyses ever see a callback.
type AnalysisManager struct {
	analyses *idTable[AnalysisKind]
	entries  []analysisEntry

	domains  *idTable[DomainKind]
	domEntry []domainEntry

	// deps[a] is the set of AnalysisIDs a depends on -- a must be
	// scheduled after every id in deps[a].
	deps map[AnalysisID]map[AnalysisID]struct{}

	required intsets.Sparse
	enabled  intsets.Sparse

	order      []AnalysisID
	rank       []int
	orderValid bool

	beginFuncs []beginFunctionRecord
	endFuncs   []endFunctionRecord
	stmts      []stmtRecord

	ambient Ambient
}

// NewAnalysisManager creates an empty AnalysisManager. ambient is threaded
// through to every AnalysisContext handed to a callback during dispatch.
func NewAnalysisManager(ambient Ambient) *AnalysisManager {
	return &AnalysisManager{
		analyses: newIDTable[AnalysisKind](),
		domains:  newIDTable[DomainKind](),
		deps:     make(map[AnalysisID]map[AnalysisID]struct{}),
		ambient:  ambient,
	}
}

type analysisIDSetter interface {
	setID(AnalysisID)
}

// RegisterAnalysis registers a, assigning it a stable AnalysisID and
// replaying its dependency, domain and callback declarations via
// Initialize. Registering the same Kind twice warns and keeps the first
// registration, discarding the new instance: a second registration attempt
// is a driver-configuration mistake worth a log line, not a fatal
// condition, since the first registration's callbacks are already wired.
func (m *AnalysisManager) RegisterAnalysis(a Analysis) AnalysisID {
	kind := a.Kind()
	id, isNew := m.analyses.intern(kind, string(kind))
	aid := AnalysisID(id)
	if !isNew {
		log.Printf("dfa: analysis %q already registered, keeping first registration", kind)
		return aid
	}

	m.entries = append(m.entries, analysisEntry{kind: kind, instance: a})
	m.deps[aid] = make(map[AnalysisID]struct{})
	if setter, ok := a.(analysisIDSetter); ok {
		setter.setID(aid)
	}

	m.orderValid = false
	a.Initialize(&Registrar{mgr: m, self: aid})
	return aid
}

// GetAnalysis returns the registered instance for kind, if any.
func (m *AnalysisManager) GetAnalysis(kind AnalysisKind) (Analysis, bool) {
	id, ok := m.analyses.id(kind)
	if !ok {
		return nil, false
	}
	return m.entries[id].instance, true
}

func (m *AnalysisManager) addDependency(self AnalysisID, dependency AnalysisKind) error {
	depID, ok := m.analyses.id(dependency)
	if !ok {
		return newError(UnknownAnalysis, "dependency %q is not a registered analysis", dependency)
	}
	m.deps[self][AnalysisID(depID)] = struct{}{}
	m.orderValid = false
	return nil
}

func (m *AnalysisManager) setPrivileged(self AnalysisID) {
	m.entries[self].privileged = true
}

// IsPrivileged reports whether id was registered as privileged.
func (m *AnalysisManager) IsPrivileged(id AnalysisID) bool {
	return m.entries[id].privileged
}

// RegisteredAnalysisIDs returns every AnalysisID registered on m, in
// registration order -- every analysis the manager knows about,
// independent of whether it is Required or Enabled.
func (m *AnalysisManager) RegisteredAnalysisIDs() []AnalysisID {
	ids := make([]AnalysisID, len(m.entries))
	for i := range m.entries {
		ids[i] = AnalysisID(i)
	}
	return ids
}

// AnalysisKindOf returns the Kind an AnalysisID was registered under.
func (m *AnalysisManager) AnalysisKindOf(id AnalysisID) AnalysisKind {
	return m.entries[id].kind
}

// AnalysisIDOf looks up the AnalysisID registered under kind.
func (m *AnalysisManager) AnalysisIDOf(kind AnalysisKind) (AnalysisID, bool) {
	id, ok := m.analyses.id(kind)
	return AnalysisID(id), ok
}

// AnalysisName returns the display name recorded for id, or "<unknown>" for
// an id that was never registered -- name lookups are diagnostic, never
// fatal.
func (m *AnalysisManager) AnalysisName(id AnalysisID) string {
	return m.analyses.name(int(id))
}

// DependenciesOf returns the AnalysisIDs id directly depends on (must run
// after), sorted ascending for deterministic iteration.
func (m *AnalysisManager) DependenciesOf(id AnalysisID) []AnalysisID {
	deps := make([]AnalysisID, 0, len(m.deps[id]))
	for dep := range m.deps[id] {
		deps = append(deps, dep)
	}
	sort.Slice(deps, func(i, j int) bool { return deps[i] < deps[j] })
	return deps
}

// MarkRequired seeds the required set with ids, ahead of a
// ComputeRequiredByDependencies call that closes it over the dependency
// relation. A driver typically marks the analyses its configuration names,
// then computes the closure once.
func (m *AnalysisManager) MarkRequired(ids ...AnalysisID) {
	for _, id := range ids {
		m.required.Insert(int(id))
	}
}

// IsRequired reports whether id is currently in the required set.
func (m *AnalysisManager) IsRequired(id AnalysisID) bool {
	return m.required.Has(int(id))
}

// RequiredAnalyses returns the AnalysisIDs currently marked required,
// sorted ascending.
func (m *AnalysisManager) RequiredAnalyses() []AnalysisID {
	return sparseToIDs(&m.required)
}

// ComputeRequiredByDependencies replaces the required set with its
// transitive closure under the dependency relation: everything currently
// required, plus every privileged analysis (privileged analyses always
// run regardless of the requested enable set), plus every analysis
// any of those (transitively) depends on. It returns the new required set,
// sorted ascending.
func (m *AnalysisManager) ComputeRequiredByDependencies() []AnalysisID {
	for i, e := range m.entries {
		if e.privileged {
			m.required.Insert(i)
		}
	}

	seeds := m.required.AppendTo(nil)
	start := make([]int, len(seeds))
	copy(start, seeds)

	worklist.StartV(start, func(next int, add func(int)) {
		for dep := range m.deps[AnalysisID(next)] {
			if m.required.Insert(int(dep)) {
				add(int(dep))
			}
		}
	})

	return sparseToIDs(&m.required)
}

// EnableAnalysis moves a required analysis into the enabled set, admitting
// its callbacks to dispatch. Every dependency of id must already be
// enabled; enabling out of dependency order returns a MissingDependency
// error. Enabling an already-enabled
// analysis is a no-op. Enabling also records id as required, so a driver
// that enables by hand never ends up dispatching an analysis the required
// set disowns -- every domain bound in a ProgramState must be owned by a
// required analysis.
func (m *AnalysisManager) EnableAnalysis(id AnalysisID) error {
	if int(id) < 0 || int(id) >= len(m.entries) {
		return newError(UnknownAnalysis, "cannot enable unregistered analysis id %d", id)
	}
	if m.enabled.Has(int(id)) {
		return nil
	}
	for dep := range m.deps[id] {
		if !m.enabled.Has(int(dep)) {
			return newError(MissingDependency, "analysis %q requires %q, which is not enabled",
				m.entries[id].kind, m.entries[dep].kind)
		}
	}
	m.enabled.Insert(int(id))
	m.required.Insert(int(id))
	return nil
}

// EnableRequiredAnalyses enables every required analysis, in full order, so
// dependencies are always enabled before their dependents. It computes the
// full order first if needed, propagating a DependencyCycle error.
func (m *AnalysisManager) EnableRequiredAnalyses() error {
	if _, err := m.ComputeFullOrderAfterRegistry(); err != nil {
		return err
	}
	for _, id := range m.GetOrdered(m.RequiredAnalyses()) {
		if err := m.EnableAnalysis(id); err != nil {
			return err
		}
	}
	return nil
}

// IsEnabled reports whether id has been enabled for dispatch.
func (m *AnalysisManager) IsEnabled(id AnalysisID) bool {
	return m.enabled.Has(int(id))
}

// EnabledAnalyses returns the enabled AnalysisIDs, sorted ascending.
func (m *AnalysisManager) EnabledAnalyses() []AnalysisID {
	return sparseToIDs(&m.enabled)
}

func sparseToIDs(s *intsets.Sparse) []AnalysisID {
	ints := s.AppendTo(nil)
	sort.Ints(ints)
	out := make([]AnalysisID, len(ints))
	for i, v := range ints {
		out[i] = AnalysisID(v)
	}
	return out
}

// RegisteredDomainsIn returns the DomainIDs owned by analysis id, sorted
// ascending.
func (m *AnalysisManager) RegisteredDomainsIn(id AnalysisID) []DomainID {
	var out []DomainID
	for did, e := range m.domEntry {
		if e.owner == id {
			out = append(out, DomainID(did))
		}
	}
	return out
}

func (m *AnalysisManager) addDomain(owner AnalysisID, kind DomainKind, def DefaultValueFn, bottom BottomValueFn) DomainID {
	id, isNew := m.domains.intern(kind, string(kind))
	did := DomainID(id)
	if !isNew {
		log.Printf("dfa: domain %q already registered, keeping first registration", kind)
		return did
	}
	m.domEntry = append(m.domEntry, domainEntry{kind: kind, owner: owner, def: def, bottom: bottom})
	return did
}

// AddDomainDependency is a typed convenience over Registrar.Domain, for an
// analysis whose domain value type D is known at the call site: it wraps D
// producer funcs into the AbstractValue-returning funcs the manager stores.
func AddDomainDependency[D AbstractValue](reg *Registrar, kind DomainKind, def func() D, bottom func() D) DomainID {
	return reg.Domain(kind,
		func() AbstractValue { return def() },
		func() AbstractValue { return bottom() },
	)
}

// DomainOwner, DomainDefault and DomainBottom look up a registered domain's
// owning analysis and its default/bottom value constructors.
func (m *AnalysisManager) DomainOwner(id DomainID) AnalysisID { return m.domEntry[id].owner }

// DomainKindOf returns the Kind a DomainID was registered under, for
// diagnostics and dumps (e.g. labelling a ProgramState.Dump by name instead
// of raw DomainID).
func (m *AnalysisManager) DomainKindOf(id DomainID) DomainKind { return m.domEntry[id].kind }

// DomainName is the domain analogue of AnalysisName.
func (m *AnalysisManager) DomainName(id DomainID) string {
	return m.domains.name(int(id))
}

func (m *AnalysisManager) DomainDefault(id DomainID) AbstractValue {
	if fn := m.domEntry[id].def; fn != nil {
		return fn()
	}
	return nil
}

func (m *AnalysisManager) DomainBottom(id DomainID) AbstractValue {
	if fn := m.domEntry[id].bottom; fn != nil {
		return fn()
	}
	return nil
}

// DomainID looks up the DomainID registered under kind.
func (m *AnalysisManager) DomainID(kind DomainKind) (DomainID, bool) {
	id, ok := m.domains.id(kind)
	return DomainID(id), ok
}

func (m *AnalysisManager) registerBeginFunction(owner AnalysisID, cb Trampoline) {
	m.beginFuncs = append(m.beginFuncs, beginFunctionRecord{owner: owner, cb: cb})
}

func (m *AnalysisManager) registerEndFunction(owner AnalysisID, cb EndFunctionTrampoline) {
	m.endFuncs = append(m.endFuncs, endFunctionRecord{owner: owner, cb: cb})
}

func (m *AnalysisManager) registerStmt(owner AnalysisID, phase Phase, matcher Matcher, cb StmtTrampoline) {
	if matcher == nil {
		matcher = MatchAny
	}
	m.stmts = append(m.stmts, stmtRecord{owner: owner, phase: phase, matcher: matcher, cb: cb})
}

// DependencyGraph exposes the registered analyses' dependency relation as a
// gonum graph.Directed: one node per AnalysisID, an edge dep -> a for every
// a that depends on dep. This is the same graph ComputeFullOrderAfterRegistry
// sorts internally, made available directly for callers that
// want to run their own gonum graph algorithms over it instead of only
// consuming the derived total order.
func (m *AnalysisManager) DependencyGraph() graph.Directed {
	return m.buildDependencyGraph()
}

func (m *AnalysisManager) buildDependencyGraph() *simple.DirectedGraph {
	g := simple.NewDirectedGraph()
	n := m.analyses.len()
	for i := 0; i < n; i++ {
		g.AddNode(simple.Node(int64(i)))
	}
	for a, depsOf := range m.deps {
		for dep := range depsOf {
			// dep must be scheduled before a: an edge dep -> a.
			g.SetEdge(simple.Edge{F: simple.Node(int64(dep)), T: simple.Node(int64(a))})
		}
	}
	return g
}

// ComputeFullOrderAfterRegistry topologically sorts every registered
// analysis by its dependency edges, breaking ties by ascending AnalysisID
// so the order is deterministic across runs. It returns a *Error of kind
// DependencyCycle if
// the dependency relation is not acyclic. On success the three callback
// vectors are re-sorted into the computed order once, so dispatch is a pure
// linear scan with no per-call sorting. The result is cached until the next
// registration or dependency declaration invalidates it.
func (m *AnalysisManager) ComputeFullOrderAfterRegistry() ([]AnalysisID, error) {
	if m.orderValid {
		return m.order, nil
	}

	g := m.buildDependencyGraph()

	sorted, err := topo.SortStabilized(g, func(nodes []graph.Node) {
		sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID() < nodes[j].ID() })
	})
	if err != nil {
		return nil, newError(DependencyCycle, "analysis dependency graph is cyclic: %v", err)
	}

	order := make([]AnalysisID, len(sorted))
	rank := make([]int, len(sorted))
	for i, nd := range sorted {
		order[i] = AnalysisID(nd.ID())
		rank[nd.ID()] = i
	}
	m.order = order
	m.rank = rank
	m.sortCallbacks()
	m.orderValid = true
	return order, nil
}

// sortCallbacks orders the three callback vectors by the owning analysis's
// position in the full order, preserving registration order within one
// analysis: between analyses the computed order decides, within one
// analysis registration order decides.
func (m *AnalysisManager) sortCallbacks() {
	sort.SliceStable(m.beginFuncs, func(i, j int) bool {
		return m.rank[m.beginFuncs[i].owner] < m.rank[m.beginFuncs[j].owner]
	})
	sort.SliceStable(m.endFuncs, func(i, j int) bool {
		return m.rank[m.endFuncs[i].owner] < m.rank[m.endFuncs[j].owner]
	})
	sort.SliceStable(m.stmts, func(i, j int) bool {
		return m.rank[m.stmts[i].owner] < m.rank[m.stmts[j].owner]
	})
}

// GetOrdered returns the members of subset arranged in the computed full
// order. It panics if the order has never been successfully computed.
func (m *AnalysisManager) GetOrdered(subset []AnalysisID) []AnalysisID {
	m.mustHaveOrder()
	member := intsets.Sparse{}
	for _, id := range subset {
		member.Insert(int(id))
	}
	out := make([]AnalysisID, 0, len(subset))
	for _, id := range m.order {
		if member.Has(int(id)) {
			out = append(out, id)
		}
	}
	return out
}

func (m *AnalysisManager) mustHaveOrder() {
	if !m.orderValid {
		panic("dfa: dispatch or ordered lookup before a successful ComputeFullOrderAfterRegistry")
	}
}

// RunBeginFunction runs every registered begin-function callback owned by
// an enabled analysis, in dependency order, threading the returned
// ProgramStateRef from one callback into ctx for the next.
func (m *AnalysisManager) RunBeginFunction(ctx *AnalysisContext) {
	m.mustHaveOrder()
	for _, rec := range m.beginFuncs {
		if !m.enabled.Has(int(rec.owner)) {
			continue
		}
		ctx.SetState(rec.cb(ctx))
	}
}

// RunEndFunction is the end-function analogue of RunBeginFunction; exit is
// the CFG exit node of the function being left.
func (m *AnalysisManager) RunEndFunction(exit Node, ctx *AnalysisContext) {
	m.mustHaveOrder()
	for _, rec := range m.endFuncs {
		if !m.enabled.Has(int(rec.owner)) {
			continue
		}
		ctx.SetState(rec.cb(exit, ctx))
	}
}

// RunForStmt dispatches every registered per-statement callback owned by an
// enabled analysis, for the given phase, whose matcher accepts stmt -- in
// dependency order. This is the tight linear scan the stmtRecord slice
// shape is meant to support: the vector is already sorted into
// dispatch order, so one pass per phase per statement suffices, with no
// per-call sorting or virtual dispatch.
func (m *AnalysisManager) RunForStmt(stmt Statement, phase Phase, ctx *AnalysisContext) {
	m.mustHaveOrder()
	for _, rec := range m.stmts {
		if rec.phase != phase {
			continue
		}
		if !m.enabled.Has(int(rec.owner)) {
			continue
		}
		if !rec.matcher(stmt) {
			continue
		}
		ctx.SetState(rec.cb(stmt, ctx))
	}
}

// RunPreStmt, RunEvalStmt and RunPostStmt are phase-fixed conveniences over
// RunForStmt.
func (m *AnalysisManager) RunPreStmt(stmt Statement, ctx *AnalysisContext) {
	m.RunForStmt(stmt, Pre, ctx)
}

func (m *AnalysisManager) RunEvalStmt(stmt Statement, ctx *AnalysisContext) {
	m.RunForStmt(stmt, Eval, ctx)
}

func (m *AnalysisManager) RunPostStmt(stmt Statement, ctx *AnalysisContext) {
	m.RunForStmt(stmt, Post, ctx)
}

// NewContext creates a fresh AnalysisContext bound to this manager and its
// ambient driver services.
func (m *AnalysisManager) NewContext() *AnalysisContext {
	return newAnalysisContext(m, m.ambient)
}
