package router

import (
	"github.com/af-corp/mlapi/internal/graph"
	"github.com/af-corp/mlapi/internal/types"
)

// Register adds the route node for e to the graph and its entry to the table.
// The route depends on its adapter and, when present, its scaling policy.
func Register(b *graph.Builder, t *Table, e types.Entity, headers []string, adapter graph.NodeID, scaling graph.NodeID) (Route, error) {
	r := Route{
		Name:            e.EntityName(),
		Kind:            e.EntityKind(),
		Path:            Path(e.EntityName()),
		IntegrationType: e.EntityIntegration().Type(),
		IntegrationRef:  adapter,
		Headers:         headers,
	}

	deps := []graph.NodeID{adapter}
	if scaling != "" {
		deps = append(deps, scaling)
	}
	if _, err := b.Add(graph.Node{
		ID:    graph.NewID(r.Name, graph.KindRoute),
		Kind:  graph.KindRoute,
		Owner: r.Name,
		Attributes: map[string]any{
			"path":            r.Path,
			"http_method":     "POST",
			"headers":         r.Headers,
			"integration_ref": string(r.IntegrationRef),
		},
	}, deps...); err != nil {
		return Route{}, err
	}

	if err := t.Add(r); err != nil {
		return Route{}, err
	}
	return r, nil
}
