// Package depgraph renders an analysis manager's dependency graph for
// inspection: which analysis depends on which, and which are privileged.
// Rendering goes through goccy/go-graphviz's native Go API instead of
// shelling out to a local `dot` binary.
package depgraph

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"github.com/goccy/go-graphviz"

	"github.com/knight-dfa/knight/dfa"
)

// Attrs is a DOT attribute set, rendered in map-iteration order sorted by
// key so output is deterministic across runs -- this matters for golden
// tests.
type Attrs map[string]string

func (a Attrs) sortedKeys() []string {
	keys := make([]string, 0, len(a))
	for k := range a {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Node is one analysis in the rendered graph.
type Node struct {
	ID    string
	Attrs Attrs
}

// Edge is one dependency edge: From depends on To (To must run first).
type Edge struct {
	From, To string
	Attrs    Attrs
}

// Graph is the DOT-renderable dependency graph for one AnalysisManager.
type Graph struct {
	Title string
	Nodes []*Node
	Edges []*Edge
}

// Build walks mgr's registered analyses and dependency edges into a Graph.
// It does not require ComputeFullOrderAfterRegistry to have succeeded: a
// cyclic registry still renders, which is exactly when a driver most wants
// to look at the picture.
func Build(mgr *dfa.AnalysisManager, title string) *Graph {
	g := &Graph{Title: title}
	for _, id := range mgr.RegisteredAnalysisIDs() {
		attrs := Attrs{"label": string(mgr.AnalysisKindOf(id))}
		if mgr.IsPrivileged(id) {
			attrs["style"] = "filled"
			attrs["fillcolor"] = "lightgoldenrod"
		}
		g.Nodes = append(g.Nodes, &Node{ID: nodeID(id), Attrs: attrs})
	}
	for _, id := range mgr.RegisteredAnalysisIDs() {
		for _, dep := range mgr.DependenciesOf(id) {
			g.Edges = append(g.Edges, &Edge{From: nodeID(id), To: nodeID(dep)})
		}
	}
	return g
}

func nodeID(id dfa.AnalysisID) string { return fmt.Sprintf("a%d", id) }

// DOT renders the graph to the DOT language.
func (g *Graph) DOT() string {
	var b strings.Builder
	fmt.Fprintf(&b, "digraph %q {\n", g.Title)
	fmt.Fprintln(&b, "  rankdir=BT;")
	for _, n := range g.Nodes {
		fmt.Fprintf(&b, "  %s [%s];\n", n.ID, attrString(n.Attrs))
	}
	for _, e := range g.Edges {
		fmt.Fprintf(&b, "  %s -> %s [%s];\n", e.From, e.To, attrString(e.Attrs))
	}
	fmt.Fprintln(&b, "}")
	return b.String()
}

func attrString(a Attrs) string {
	parts := make([]string, 0, len(a))
	for _, k := range a.sortedKeys() {
		parts = append(parts, fmt.Sprintf("%s=%q", k, a[k]))
	}
	return strings.Join(parts, ", ")
}

// RenderSVG renders the graph to SVG bytes using goccy/go-graphviz's
// in-process renderer.
func (g *Graph) RenderSVG() ([]byte, error) {
	gv := graphviz.New()
	defer gv.Close()

	graph, err := graphviz.ParseBytes([]byte(g.DOT()))
	if err != nil {
		return nil, fmt.Errorf("depgraph: parsing generated dot: %w", err)
	}
	defer graph.Close()

	var buf bytes.Buffer
	if err := gv.Render(graph, graphviz.SVG, &buf); err != nil {
		return nil, fmt.Errorf("depgraph: rendering svg: %w", err)
	}
	return buf.Bytes(), nil
}
