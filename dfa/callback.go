package dfa

import "fmt"

// Statement is an opaque handle to a single statement within a procedure's
// control-flow graph. The core never inspects it beyond identity and
// whatever a registered Matcher chooses to test.
type Statement interface {
	fmt.Stringer
}

// Node is an opaque handle to a control-flow-graph node; used for the
// function-exit node handed to end-function callbacks.
type Node interface {
	fmt.Stringer
}

// Phase is the visit phase of a per-statement callback.
type Phase int

const (
	// Pre callbacks run before a statement's effects are evaluated.
	Pre Phase = iota
	// Eval callbacks evaluate the statement's abstract effect.
	Eval
	// Post callbacks run after a statement's effects are evaluated.
	Post
)

func (p Phase) String() string {
	switch p {
	case Pre:
		return "Pre"
	case Eval:
		return "Eval"
	case Post:
		return "Post"
	default:
		return "UnknownPhase"
	}
}

// Matcher decides whether a per-statement callback applies to a given
// statement. Matchers are plain predicates, not closures over mutable
// state, so they can be shared and evaluated cheaply during dispatch.
type Matcher func(stmt Statement) bool

// MatchAny is a Matcher that accepts every statement.
func MatchAny(Statement) bool { return true }

// Trampoline is the uniform dispatch signature every callback is reduced
// to: given the current context, produce the next ProgramState. Analyses
// close over their own typed logic and the AnalysisID that owns the
// callback; the manager only ever calls through this uniform shape. This
// keeps dispatch free of per-analysis types: a closure capturing the
// owning analysis, instead of a function pointer plus an untyped self
// pointer.
type Trampoline func(ctx *AnalysisContext) ProgramStateRef

// StmtTrampoline is the per-statement analogue of Trampoline: it also
// receives the statement being visited.
type StmtTrampoline func(stmt Statement, ctx *AnalysisContext) ProgramStateRef

// EndFunctionTrampoline is the end-function analogue: it also receives the
// CFG exit node.
type EndFunctionTrampoline func(exit Node, ctx *AnalysisContext) ProgramStateRef

// beginFunctionRecord and endFunctionRecord are intentionally small and
// hold only what dispatch needs, so the vectors that back them stream
// through memory.
type beginFunctionRecord struct {
	owner AnalysisID
	cb    Trampoline
}

type endFunctionRecord struct {
	owner AnalysisID
	cb    EndFunctionTrampoline
}

// stmtRecord is the fixed-shape per-statement callback record: owning
// analysis, phase, matcher, trampoline. Kept POD-like and packed into a
// contiguous slice on the manager so RunForStmt is a tight linear scan
// rather than per-analysis virtual dispatch.
type stmtRecord struct {
	owner   AnalysisID
	phase   Phase
	matcher Matcher
	cb      StmtTrampoline
}
