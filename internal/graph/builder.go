// Package graph assembles synthesis resources into a dependency graph. Nodes
// live in a contiguous arena and edges are index pairs into it.
package graph

import "fmt"

// Builder accumulates nodes for one synthesis run. It is not safe for
// concurrent use; each run owns its own Builder.
type Builder struct {
	nodes []Node
	edges []Edge
	index map[NodeID]int
}

func NewBuilder() *Builder {
	return &Builder{index: make(map[NodeID]int)}
}

// Add registers a node with its dependencies. Every dependency must already be
// registered and must not be emitted after the node.
func (b *Builder) Add(n Node, deps ...NodeID) (NodeID, error) {
	if n.Kind.Tier() < 0 {
		return "", &IntegrityError{Reason: fmt.Sprintf("unknown node kind %q", n.Kind), Node: n.ID}
	}
	if _, exists := b.index[n.ID]; exists {
		return "", &IntegrityError{Reason: "duplicate node identity", Node: n.ID}
	}

	slot := len(b.nodes)
	edges := make([]Edge, 0, len(deps))
	seen := make(map[NodeID]bool, len(deps))
	for _, dep := range deps {
		if seen[dep] {
			continue
		}
		seen[dep] = true
		to, ok := b.index[dep]
		if !ok {
			return "", &IntegrityError{Reason: "dangling dependency reference", Node: n.ID, Dependency: dep}
		}
		if b.nodes[to].Kind.Tier() > n.Kind.Tier() {
			return "", &IntegrityError{
				Reason:     fmt.Sprintf("%s cannot depend on %s", n.Kind, b.nodes[to].Kind),
				Node:       n.ID,
				Dependency: dep,
			}
		}
		edges = append(edges, Edge{From: slot, To: to})
	}

	n.DependsOn = nil
	b.nodes = append(b.nodes, n)
	b.index[n.ID] = slot
	b.edges = append(b.edges, edges...)
	return n.ID, nil
}

// MustAdd is Add for callers whose inputs are already validated; an
// integrity failure there is a programming error.
func (b *Builder) MustAdd(n Node, deps ...NodeID) NodeID {
	id, err := b.Add(n, deps...)
	if err != nil {
		panic(err)
	}
	return id
}

func (b *Builder) Len() int { return len(b.nodes) }

// Build orders the arena for emission and checks acyclicity and route
// ownership. The Builder must not be used afterwards.
func (b *Builder) Build() (*Graph, error) {
	return newGraph(b.nodes, b.edges)
}
