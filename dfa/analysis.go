package dfa

// Analysis is the contract a plug-in analysis implements. Kind
// names the analysis for registration and diagnostics; Initialize is
// called once, after the analysis has been assigned its AnalysisID, and is
// where the analysis declares its dependencies, domains and callbacks
// through reg.
type Analysis interface {
	Kind() AnalysisKind
	Initialize(reg *Registrar)
}

// Registrar is the narrow, write-only facade AnalysisManager hands to an
// Analysis during Initialize: an analysis only ever declares its
// dependencies and callbacks through it, it never reaches back into the
// manager's bookkeeping directly. A dedicated type keeps the registration
// surface narrow instead of exposing the full manager to every analysis.
type Registrar struct {
	mgr  *AnalysisManager
	self AnalysisID
}

// Self returns the AnalysisID the manager assigned to the analysis being
// initialized.
func (r *Registrar) Self() AnalysisID { return r.self }

// DependsOn declares that the analysis being initialized must run after
// dependency, and that dependency's results are therefore available to it.
func (r *Registrar) DependsOn(dependency AnalysisKind) error {
	return r.mgr.addDependency(r.self, dependency)
}

// Privileged marks the analysis being initialized as privileged: it always
// runs, regardless of which analyses a driver chooses to enable.
func (r *Registrar) Privileged() {
	r.mgr.setPrivileged(r.self)
}

// Domain registers a DomainID for this analysis's own abstract domain, with
// the given default and bottom value constructors.
func (r *Registrar) Domain(kind DomainKind, def DefaultValueFn, bottom BottomValueFn) DomainID {
	return r.mgr.addDomain(r.self, kind, def, bottom)
}

// RequireDomain resolves kind to its registered DomainID, for an analysis
// that reads a domain one of its dependencies owns. Unlike Domain it never
// registers anything: naming a domain no analysis has registered is an
// UnknownDomain error. Registration order makes this sound -- an analysis's
// dependencies are registered before it, so their domains are already
// known when its Initialize runs.
func (r *Registrar) RequireDomain(kind DomainKind) (DomainID, error) {
	id, ok := r.mgr.domains.id(kind)
	if !ok {
		return 0, newError(UnknownDomain, "domain %q is not registered by any analysis", kind)
	}
	return DomainID(id), nil
}

// OnBeginFunction registers cb to run once at the start of every analyzed
// function activation.
func (r *Registrar) OnBeginFunction(cb Trampoline) {
	r.mgr.registerBeginFunction(r.self, cb)
}

// OnEndFunction registers cb to run once at the end of every analyzed
// function activation.
func (r *Registrar) OnEndFunction(cb EndFunctionTrampoline) {
	r.mgr.registerEndFunction(r.self, cb)
}

// OnStmt registers cb to run, during phase, for every statement matcher
// accepts.
func (r *Registrar) OnStmt(phase Phase, matcher Matcher, cb StmtTrampoline) {
	r.mgr.registerStmt(r.self, phase, matcher, cb)
}

// OnPreStmt, OnEvalStmt and OnPostStmt are phase-fixed conveniences over
// OnStmt, one per visit phase.
func (r *Registrar) OnPreStmt(matcher Matcher, cb StmtTrampoline) {
	r.OnStmt(Pre, matcher, cb)
}

func (r *Registrar) OnEvalStmt(matcher Matcher, cb StmtTrampoline) {
	r.OnStmt(Eval, matcher, cb)
}

func (r *Registrar) OnPostStmt(matcher Matcher, cb StmtTrampoline) {
	r.OnStmt(Post, matcher, cb)
}

// Base is an embeddable helper that remembers the AnalysisID a manager
// assigns during registration, so an embedding analysis does not need to
// declare its own field and plumbing for it: embedding Base gives an
// analysis its ID() accessor, and the manager fills it in once at
// registration time.
type Base struct {
	id AnalysisID
}

// ID returns the AnalysisID the owning AnalysisManager assigned to this
// analysis. It is only valid after RegisterAnalysis has run.
func (b *Base) ID() AnalysisID { return b.id }

func (b *Base) setID(id AnalysisID) { b.id = id }
