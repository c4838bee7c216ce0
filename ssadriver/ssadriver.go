// Package ssadriver is the demo external driver for the dfa core: it
// constructs the analysis machinery, then walks each procedure's CFG
// through it. It plays the role of a language front end -- lexing,
// parsing, building a procedure CFG -- using a real Go package's SSA form:
// an *ssa.Function's basic blocks are the procedure CFG, and its
// instructions are the statements.
//
// This package is deliberately thin. It does not implement a fixpoint
// iteration strategy -- the core provides the scheduling substrate, not
// the iteration loop. It performs one single-pass walk per reachable
// function, calling RunBeginFunction, RunPreStmt/RunEvalStmt/RunPostStmt
// and RunEndFunction in that order, and is a harness for exercising
// dispatch end-to-end, not an abstract interpreter.
package ssadriver

import (
	"fmt"
	"go/types"

	"golang.org/x/tools/go/callgraph/rta"
	"golang.org/x/tools/go/ssa"
	"golang.org/x/tools/go/ssa/ssautil"

	"github.com/knight-dfa/knight/dfa"
	"github.com/knight-dfa/knight/pkgutil"
)

// Ambient is the concrete dfa.Ambient this driver hands to every
// AnalysisContext: read-through access to the loaded SSA program, the
// driver-side services the core treats as opaque.
type Ambient struct {
	Prog  *ssa.Program
	Mains []*ssa.Package
}

func (a *Ambient) Name() string { return "ssadriver" }

// Packages returns every non-synthetic package in the loaded program,
// deduplicated against the ".test" variants go/packages produces when test
// files are in scope.
func (a *Ambient) Packages() []*ssa.Package {
	return pkgutil.AllPackages(a.Prog)
}

// stmtNode adapts an ssa.Instruction to dfa.Statement. ssa.Instruction
// already declares String(), so the adaptation is only needed to give the
// type a name distinct from the driver's own wrapper types in doc comments
// and panics; no behavior is added.
type stmtNode struct{ ssa.Instruction }

// blockNode adapts an *ssa.BasicBlock to dfa.Node, the handle
// end-function callbacks receive for the CFG exit node.
type blockNode struct{ *ssa.BasicBlock }

func (b blockNode) String() string {
	return fmt.Sprintf("block %d (%s) of %s", b.Index, b.Comment, b.Parent())
}

// Driver loads a Go package, builds its SSA form, and walks every function
// reachable from a main package's entry points through the given
// AnalysisManager.
type Driver struct {
	mgr    *dfa.AnalysisManager
	states *dfa.StateManager
}

// New creates a Driver bound to mgr and states. mgr decides which analyses
// actually see a callback: only enabled ones do, so the caller is expected
// to have run EnableRequiredAnalyses (or enabled by hand) before the first
// Run.
func New(mgr *dfa.AnalysisManager, states *dfa.StateManager) *Driver {
	return &Driver{mgr: mgr, states: states}
}

// Load loads the packages matching pattern (module-aware if modulePath is
// non-empty), builds their SSA form, and returns the whole-program Ambient
// plus every *ssa.Function reachable from a discovered main package's
// entry point, as found by RTA, that has a body and is not declared in a
// GOROOT package.
func Load(modulePath, pattern string) (*Ambient, []*ssa.Function, error) {
	pkgs, err := pkgutil.LoadPackages(pkgutil.LoadConfig{ModulePath: modulePath}, pattern)
	if err != nil {
		return nil, nil, fmt.Errorf("ssadriver: loading packages: %w", err)
	}

	prog, _ := ssautil.AllPackages(pkgs, 0)
	prog.Build()

	mains := ssautil.MainPackages(prog.AllPackages())
	if len(mains) == 0 {
		return nil, nil, fmt.Errorf("ssadriver: no main packages found in %q", pattern)
	}

	roots := make([]*ssa.Function, 0, len(mains))
	for _, m := range mains {
		if f := m.Func("main"); f != nil {
			roots = append(roots, f)
		}
		if f := m.Func("init"); f != nil {
			roots = append(roots, f)
		}
	}

	res := rta.Analyze(roots, true)
	funcs := make([]*ssa.Function, 0, len(res.Reachable))
	for f := range res.Reachable {
		// Functions declared in GOROOT packages are reachable via every
		// program that calls into the standard library, which would
		// otherwise dominate every walk's output; a driver analyzing a
		// user's own program wants its own reachable functions, not
		// fmt.Sprintf's.
		if f.Blocks != nil && !pkgutil.CheckInGoroot(f) {
			funcs = append(funcs, f)
		}
	}

	return &Ambient{Prog: prog, Mains: mains}, funcs, nil
}

// PrimaryMain picks the single most informative package among Mains, using
// pkgutil's member-count heuristic to skip synthesized ".test" packages in
// a mixed test-and-binary load.
func (a *Ambient) PrimaryMain() *ssa.Package {
	return pkgutil.GetMain(a.Mains)
}

// Run walks fn: RunBeginFunction once, then for each basic block in the
// function's dominance-preorder, RunPreStmt/RunEvalStmt/RunPostStmt for
// every instruction (Pre, then Eval, then Post within one statement), then
// RunEndFunction once the last block is visited. The dominance-preorder
// keeps the walk deterministic and loop-header-first, without committing
// to any fixpoint strategy: a single forward pass visits every reachable
// block exactly once.
func (d *Driver) Run(fn *ssa.Function, initial dfa.ProgramStateRef) dfa.ProgramStateRef {
	ctx := d.mgr.NewContext()
	ctx.SetState(initial)
	ctx.SetCurrentStackFrame(dfa.Root(fn.String()))

	d.mgr.RunBeginFunction(ctx)

	blocks := fn.DomPreorder()
	var last dfa.Node
	for _, b := range blocks {
		for _, instr := range b.Instrs {
			// The instruction itself is the dfa.Statement (ssa.Instruction
			// declares String()), so matchers can type-switch on it.
			var stmt dfa.Statement = instr
			d.mgr.RunPreStmt(stmt, ctx)
			d.mgr.RunEvalStmt(stmt, ctx)
			d.mgr.RunPostStmt(stmt, ctx)
		}
		last = blockNode{b}
	}

	if last != nil {
		d.mgr.RunEndFunction(last, ctx)
	}
	return ctx.State()
}

// RunAll walks every function in funcs independently, starting each from
// start, and returns the end state of every walked function keyed by its
// fully qualified name -- a whole-program smoke run, not an interprocedural
// fixpoint; call-edge-sensitive propagation between callers and callees is
// left to a real interprocedural analysis built on top of this core.
func (d *Driver) RunAll(funcs []*ssa.Function, start dfa.ProgramStateRef) map[string]dfa.ProgramStateRef {
	out := make(map[string]dfa.ProgramStateRef, len(funcs))
	for _, fn := range funcs {
		out[fn.String()] = d.Run(fn, start)
	}
	return out
}

// PackageTypeName renders a *types.Package-qualified name for
// diagnostics.
func PackageTypeName(pkg *types.Package, name string) string {
	if pkg == nil {
		return name
	}
	return pkg.Path() + "." + name
}
