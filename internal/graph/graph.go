package graph

import (
	"container/heap"
	"fmt"
)

// Graph is an immutable, emission-ordered resource graph. Nodes appear in
// topological order: grants, functions, hosting, adapters, scaling policies,
// routes, and within a kind in registration order.
type Graph struct {
	nodes []Node
	edges []Edge
	index map[NodeID]int
}

func newGraph(nodes []Node, edges []Edge) (*Graph, error) {
	order, err := topoOrder(nodes, edges)
	if err != nil {
		return nil, err
	}

	// Re-slot the arena in emission order.
	slotOf := make([]int, len(nodes))
	for newSlot, oldSlot := range order {
		slotOf[oldSlot] = newSlot
	}
	g := &Graph{
		nodes: make([]Node, len(nodes)),
		edges: make([]Edge, len(edges)),
		index: make(map[NodeID]int, len(nodes)),
	}
	for newSlot, oldSlot := range order {
		n := nodes[oldSlot]
		n.DependsOn = nil
		g.nodes[newSlot] = n
		g.index[n.ID] = newSlot
	}
	for i, e := range edges {
		remapped := Edge{From: slotOf[e.From], To: slotOf[e.To]}
		g.edges[i] = remapped
		from := &g.nodes[remapped.From]
		from.DependsOn = append(from.DependsOn, g.nodes[remapped.To].ID)
	}

	if err := g.checkOwnership(); err != nil {
		return nil, err
	}
	return g, nil
}

// Nodes returns the nodes in emission order. Callers must not modify them.
func (g *Graph) Nodes() []Node { return g.nodes }

func (g *Graph) Len() int { return len(g.nodes) }

func (g *Graph) Node(id NodeID) (Node, bool) {
	slot, ok := g.index[id]
	if !ok {
		return Node{}, false
	}
	return g.nodes[slot], true
}

// Edges returns every dependency as (dependent, dependency) ID pairs.
func (g *Graph) Edges() [][2]NodeID {
	out := make([][2]NodeID, len(g.edges))
	for i, e := range g.edges {
		out[i] = [2]NodeID{g.nodes[e.From].ID, g.nodes[e.To].ID}
	}
	return out
}

// Position returns the emission index of id, or -1.
func (g *Graph) Position(id NodeID) int {
	if slot, ok := g.index[id]; ok {
		return slot
	}
	return -1
}

func (g *Graph) ByKind(kind NodeKind) []Node {
	var out []Node
	for _, n := range g.nodes {
		if n.Kind == kind {
			out = append(out, n)
		}
	}
	return out
}

func (g *Graph) CountByKind() map[NodeKind]int {
	counts := make(map[NodeKind]int, len(Kinds))
	for _, n := range g.nodes {
		counts[n.Kind]++
	}
	return counts
}

// Reachable returns every node reachable from id through dependency edges,
// excluding id itself, in emission order.
func (g *Graph) Reachable(id NodeID) []NodeID {
	start, ok := g.index[id]
	if !ok {
		return nil
	}
	adj := g.adjacency()
	visited := make([]bool, len(g.nodes))
	stack := []int{start}
	visited[start] = true
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, next := range adj[cur] {
			if !visited[next] {
				visited[next] = true
				stack = append(stack, next)
			}
		}
	}
	var out []NodeID
	for slot, seen := range visited {
		if seen && slot != start {
			out = append(out, g.nodes[slot].ID)
		}
	}
	return out
}

func (g *Graph) adjacency() [][]int {
	adj := make([][]int, len(g.nodes))
	for _, e := range g.edges {
		adj[e.From] = append(adj[e.From], e.To)
	}
	return adj
}

// checkOwnership enforces that every non-route node is reachable from
// exactly one route, and that the route shares its owner.
func (g *Graph) checkOwnership() error {
	adj := g.adjacency()
	owner := make([]int, len(g.nodes))
	for i := range owner {
		owner[i] = -1
	}

	for slot, n := range g.nodes {
		if n.Kind != KindRoute {
			continue
		}
		if owner[slot] != -1 {
			return &IntegrityError{Reason: "route is a dependency of another route", Node: n.ID}
		}
		owner[slot] = slot
		stack := append([]int(nil), adj[slot]...)
		for len(stack) > 0 {
			cur := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			switch owner[cur] {
			case slot:
				continue
			case -1:
			default:
				return &IntegrityError{
					Reason:     fmt.Sprintf("node shared with route %s", g.nodes[owner[cur]].ID),
					Node:       n.ID,
					Dependency: g.nodes[cur].ID,
				}
			}
			if g.nodes[cur].Owner != n.Owner {
				return &IntegrityError{
					Reason:     fmt.Sprintf("node owned by %q reached from route of %q", g.nodes[cur].Owner, n.Owner),
					Node:       n.ID,
					Dependency: g.nodes[cur].ID,
				}
			}
			owner[cur] = slot
			stack = append(stack, adj[cur]...)
		}
	}

	for slot, n := range g.nodes {
		if owner[slot] == -1 {
			return &IntegrityError{Reason: "orphan node not reachable from any route", Node: n.ID}
		}
	}
	return nil
}

// topoOrder runs Kahn's algorithm, always emitting the ready node with the
// lowest (tier, registration slot).
func topoOrder(nodes []Node, edges []Edge) ([]int, error) {
	indegree := make([]int, len(nodes))
	dependents := make([][]int, len(nodes))
	for _, e := range edges {
		indegree[e.From]++
		dependents[e.To] = append(dependents[e.To], e.From)
	}

	ready := &readyQueue{nodes: nodes}
	for slot := range nodes {
		if indegree[slot] == 0 {
			heap.Push(ready, slot)
		}
	}

	order := make([]int, 0, len(nodes))
	for ready.Len() > 0 {
		slot := heap.Pop(ready).(int)
		order = append(order, slot)
		for _, dep := range dependents[slot] {
			indegree[dep]--
			if indegree[dep] == 0 {
				heap.Push(ready, dep)
			}
		}
	}

	if len(order) != len(nodes) {
		for slot, d := range indegree {
			if d > 0 {
				return nil, &IntegrityError{Reason: "dependency cycle detected", Node: nodes[slot].ID}
			}
		}
	}
	return order, nil
}

type readyQueue struct {
	nodes []Node
	slots []int
}

func (q *readyQueue) Len() int { return len(q.slots) }

func (q *readyQueue) Less(i, j int) bool {
	a, b := q.slots[i], q.slots[j]
	ta, tb := q.nodes[a].Kind.Tier(), q.nodes[b].Kind.Tier()
	if ta != tb {
		return ta < tb
	}
	return a < b
}

func (q *readyQueue) Swap(i, j int) { q.slots[i], q.slots[j] = q.slots[j], q.slots[i] }

func (q *readyQueue) Push(x any) { q.slots = append(q.slots, x.(int)) }

func (q *readyQueue) Pop() any {
	old := q.slots
	n := len(old)
	x := old[n-1]
	q.slots = old[:n-1]
	return x
}
