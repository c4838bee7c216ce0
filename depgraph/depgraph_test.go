package depgraph

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/knight-dfa/knight/dfa"
)

type noopAmbient struct{}

func (noopAmbient) Name() string { return "depgraph-test" }

type fixedAnalysis struct {
	dfa.Base
	kind       dfa.AnalysisKind
	privileged bool
	dependsOn  dfa.AnalysisKind
}

func (a *fixedAnalysis) Kind() dfa.AnalysisKind { return a.kind }

func (a *fixedAnalysis) Initialize(reg *dfa.Registrar) {
	if a.privileged {
		reg.Privileged()
	}
	if a.dependsOn != "" {
		if err := reg.DependsOn(a.dependsOn); err != nil {
			panic(err)
		}
	}
}

func buildFixedManager() *dfa.AnalysisManager {
	mgr := dfa.NewAnalysisManager(noopAmbient{})
	mgr.RegisterAnalysis(&fixedAnalysis{kind: "zeroness", privileged: true})
	mgr.RegisterAnalysis(&fixedAnalysis{kind: "taint", dependsOn: "zeroness"})
	return mgr
}

func TestBuildAndDOT(t *testing.T) {
	mgr := buildFixedManager()
	g := Build(mgr, "fixture")
	goldie.New(t).Assert(t, t.Name(), []byte(g.DOT()))
}
