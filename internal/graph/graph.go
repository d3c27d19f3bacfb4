// Package graph models the wikilink graph of a vault and renders it as Graphviz DOT.
package graph

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/starford/ansuz/internal/index"
)

// Edge is a directed link between two notes.
type Edge struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Graph is a set of note ids and the links between them. It is not safe for
// concurrent mutation.
type Graph struct {
	nodes map[string]struct{}
	edges map[Edge]struct{}
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{
		nodes: make(map[string]struct{}),
		edges: make(map[Edge]struct{}),
	}
}

// AddNote adds a node.
func (g *Graph) AddNote(id string) {
	g.nodes[id] = struct{}{}
}

// AddLink adds an edge, creating both endpoints. Dangling targets become nodes.
func (g *Graph) AddLink(from, to string) {
	g.AddNote(from)
	g.AddNote(to)
	g.edges[Edge{From: from, To: to}] = struct{}{}
}

// Nodes returns the node ids in sorted order.
func (g *Graph) Nodes() []string {
	out := make([]string, 0, len(g.nodes))
	for id := range g.nodes {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Edges returns the edges sorted by source then target.
func (g *Graph) Edges() []Edge {
	out := make([]Edge, 0, len(g.edges))
	for e := range g.edges {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].From != out[j].From {
			return out[i].From < out[j].From
		}
		return out[i].To < out[j].To
	})
	return out
}

// Render returns the graph in DOT format with deterministic ordering.
func (g *Graph) Render() string {
	var b strings.Builder
	b.WriteString("digraph notes {\n")
	for _, id := range g.Nodes() {
		fmt.Fprintf(&b, "  %q;\n", id)
	}
	for _, e := range g.Edges() {
		fmt.Fprintf(&b, "  %q -> %q;\n", e.From, e.To)
	}
	b.WriteString("}\n")
	return b.String()
}

// FromIndex builds the graph of every indexed note and its outgoing links.
func FromIndex(ctx context.Context, ix index.NoteIndex) (*Graph, error) {
	ids, err := ix.IDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("graph: ids: %w", err)
	}
	links, err := ix.Links(ctx)
	if err != nil {
		return nil, fmt.Errorf("graph: links: %w", err)
	}
	g := New()
	for id := range ids {
		g.AddNote(id)
	}
	for _, l := range links {
		g.AddLink(l.Source, l.Target)
	}
	return g, nil
}
