package domains

import (
	"go/constant"

	"golang.org/x/tools/go/ssa"

	"github.com/knight-dfa/knight/dfa"
)

// ZeronessAnalysis is a minimal dfa.Analysis wrapping ZeronessValue: it
// registers the zeroness domain and, on every evaluated *ssa.BinOp, folds
// in whatever it can tell about the statement's right operand without
// running a real abstract interpreter -- a flow-insensitive, whole-run
// summary rather than a per-variable fixpoint (the core's job stops at
// scheduling, not iteration strategy; see ssadriver for why no fixpoint
// engine sits underneath this). It is handed the StateManager at
// construction time, the same way a driver already owns it, rather than
// reaching for one through the AnalysisContext: the core only threads a
// ProgramStateRef through callbacks, never the manager that resolves it.
type ZeronessAnalysis struct {
	dfa.Base
	states *dfa.StateManager
	domain dfa.DomainID
}

// NewZeronessAnalysis creates a ZeronessAnalysis backed by states.
func NewZeronessAnalysis(states *dfa.StateManager) *ZeronessAnalysis {
	return &ZeronessAnalysis{states: states}
}

// ZeronessAnalysisKind is this analysis's registered AnalysisKind.
const ZeronessAnalysisKind dfa.AnalysisKind = "zeroness"

func (a *ZeronessAnalysis) Kind() dfa.AnalysisKind { return ZeronessAnalysisKind }

func (a *ZeronessAnalysis) Initialize(reg *dfa.Registrar) {
	// Both constructors produce the lattice's least element: this analysis
	// accumulates by join, so its initial value must be join's identity --
	// starting from Top would pin the summary at Top before the first
	// statement is even seen.
	a.domain = dfa.AddDomainDependency(reg, ZeronessDomainKind,
		func() *ZeronessValue { return NewZeronessValue(ZeroBottom) },
		func() *ZeronessValue { return NewZeronessValue(ZeroBottom) },
	)
	reg.OnEvalStmt(isBinOp, func(stmt dfa.Statement, ctx *dfa.AnalysisContext) dfa.ProgramStateRef {
		instr := stmt.(ssa.Instruction).(*ssa.BinOp)
		kind := zeronessOfOperand(instr.Y)
		return joinDomain(a.states, ctx.State(), a.domain, NewZeronessValue(kind))
	})
}

// IntervalAnalysis is the interval-domain analogue of ZeronessAnalysis: it
// widens a running interval by every integer *ssa.Const statement it is
// dispatched, exercising the Widener dispatch the zeroness domain never
// needs. It matches only statements that are themselves *ssa.Const values;
// constants appearing as operands of an instruction are not inspected, and
// an *ssa.Const is never an instruction of a basic block, so a driver that
// dispatches a function's instructions never hands it one.
type IntervalAnalysis struct {
	dfa.Base
	states *dfa.StateManager
	domain dfa.DomainID
}

// NewIntervalAnalysis creates an IntervalAnalysis backed by states.
func NewIntervalAnalysis(states *dfa.StateManager) *IntervalAnalysis {
	return &IntervalAnalysis{states: states}
}

// IntervalAnalysisKind is this analysis's registered AnalysisKind.
const IntervalAnalysisKind dfa.AnalysisKind = "interval"

func (a *IntervalAnalysis) Kind() dfa.AnalysisKind { return IntervalAnalysisKind }

func (a *IntervalAnalysis) Initialize(reg *dfa.Registrar) {
	a.domain = dfa.AddDomainDependency(reg, IntervalDomainKind,
		func() *IntervalValue { return BottomInterval() },
		func() *IntervalValue { return BottomInterval() },
	)
	reg.OnEvalStmt(isIntConst, func(stmt dfa.Statement, ctx *dfa.AnalysisContext) dfa.ProgramStateRef {
		instr := stmt.(ssa.Value).(*ssa.Const)
		n, ok := constant.Int64Val(instr.Value)
		if !ok {
			return ctx.State()
		}
		return widenDomain(a.states, ctx.State(), a.domain, NewInterval(n, n))
	})
}

func isBinOp(stmt dfa.Statement) bool {
	instr, ok := stmt.(ssa.Instruction)
	if !ok {
		return false
	}
	_, ok = instr.(*ssa.BinOp)
	return ok
}

func isIntConst(stmt dfa.Statement) bool {
	instr, ok := stmt.(ssa.Value)
	if !ok {
		return false
	}
	c, ok := instr.(*ssa.Const)
	if !ok || c.Value == nil {
		return false
	}
	return c.Value.Kind() == constant.Int
}

// zeronessOfOperand classifies an SSA value as Zero, NonZero or MaybeZero
// from its static form alone: an integer constant is decided outright,
// anything else is MaybeZero since no dataflow tracking backs this demo
// analysis.
func zeronessOfOperand(v ssa.Value) ZeronessKind {
	c, ok := v.(*ssa.Const)
	if !ok || c.Value == nil || c.Value.Kind() != constant.Int {
		return MaybeZero
	}
	n, ok := constant.Int64Val(c.Value)
	if !ok {
		return MaybeZero
	}
	if n == 0 {
		return Zero
	}
	return NonZero
}

// joinDomain and widenDomain look up domain's current value on ref (falling
// back to a copy of next if unbound, which gives the same result as starting
// from bottom, since both domains here have bottom as a JoinWith/WidenWith
// identity), combine it with next, and write the result back through states.
func joinDomain(states *dfa.StateManager, ref dfa.ProgramStateRef, domain dfa.DomainID, next dfa.AbstractValue) dfa.ProgramStateRef {
	cur := currentOrBottom(states, ref, domain, next)
	cur.JoinWith(next)
	return states.SetValue(ref, domain, cur)
}

func widenDomain(states *dfa.StateManager, ref dfa.ProgramStateRef, domain dfa.DomainID, next dfa.AbstractValue) dfa.ProgramStateRef {
	cur := currentOrBottom(states, ref, domain, next)
	dfa.WidenWith(cur, next)
	return states.SetValue(ref, domain, cur)
}

func currentOrBottom(states *dfa.StateManager, ref dfa.ProgramStateRef, domain dfa.DomainID, next dfa.AbstractValue) dfa.AbstractValue {
	cur, ok := dfa.GetValue[dfa.AbstractValue](states, ref, domain)
	if !ok {
		return next.Clone()
	}
	return cur.Clone()
}
