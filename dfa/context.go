package dfa

import "fmt"

// Ambient is the minimal read-through surface into the driver's own
// context: AST, source manager, region manager, whatever services the
// front end carries. The core never interprets source syntax itself; it
// only threads this handle through dispatch so analyses can reach driver
// services from inside a callback. A driver supplies its own
// implementation.
type Ambient interface {
	// Name identifies the ambient driver, for diagnostics and dumps.
	Name() string
}

// StackFrame identifies a call activation, so context-sensitive analyses
// can distinguish two activations of the same procedure: a parent link
// plus the call-site statement that created this frame (nil for the entry
// frame of a whole-program run).
type StackFrame struct {
	Parent   *StackFrame
	CallSite Statement
	Function string
}

// Root creates the entry stack frame for a procedure with no caller.
func Root(function string) *StackFrame {
	return &StackFrame{Function: function}
}

// Push creates a child frame representing a call from the receiver, at
// callSite, into callee.
func (f *StackFrame) Push(callSite Statement, callee string) *StackFrame {
	return &StackFrame{Parent: f, CallSite: callSite, Function: callee}
}

// Depth returns the number of activations between the receiver and the
// root frame, inclusive of the receiver.
func (f *StackFrame) Depth() int {
	d := 0
	for p := f; p != nil; p = p.Parent {
		d++
	}
	return d
}

func (f *StackFrame) String() string {
	if f == nil {
		return "<no frame>"
	}
	if f.Parent == nil {
		return f.Function
	}
	return fmt.Sprintf("%s <- %s", f.Function, f.Parent.String())
}

// AnalysisContext is the per-traversal scratch the AnalysisManager hands
// to every callback invocation. It carries the current
// ProgramState handle and the current stack frame, plus read-through
// access to the ambient driver services. SetState and SetCurrentStackFrame
// are its only mutators: a callback reads the current state, computes a new
// ProgramState handle through the StateManager, and writes it back.
type AnalysisContext struct {
	mgr     *AnalysisManager
	ambient Ambient
	state   ProgramStateRef
	frame   *StackFrame
}

func newAnalysisContext(mgr *AnalysisManager, ambient Ambient) *AnalysisContext {
	return &AnalysisContext{mgr: mgr, ambient: ambient}
}

// Manager returns the owning AnalysisManager, so a callback can look up
// sibling analyses (e.g. GetAnalysis) without capturing it separately.
func (c *AnalysisContext) Manager() *AnalysisManager { return c.mgr }

// Ambient returns the read-through driver services handle.
func (c *AnalysisContext) Ambient() Ambient { return c.ambient }

// State returns the current ProgramState handle.
func (c *AnalysisContext) State() ProgramStateRef { return c.state }

// SetState installs a new current ProgramState handle.
func (c *AnalysisContext) SetState(s ProgramStateRef) { c.state = s }

// CurrentStackFrame returns the handle identifying the function activation
// currently being analyzed.
func (c *AnalysisContext) CurrentStackFrame() *StackFrame { return c.frame }

// SetCurrentStackFrame installs a new current stack-frame handle.
func (c *AnalysisContext) SetCurrentStackFrame(f *StackFrame) { c.frame = f }
