package adapters

import (
	"fmt"

	"github.com/af-corp/mlapi/internal/graph"
	"github.com/af-corp/mlapi/internal/types"
)

// Target is the hosting resource an adapter forwards requests to.
type Target struct {
	Owner        string
	EndpointName string
	Hosting      graph.NodeID
}

// Strategy registers the integration adapter for one integration variant,
// together with whatever auxiliary resources that variant needs, and returns
// the adapter's node ID.
type Strategy interface {
	Type() types.IntegrationType
	Resolve(b *graph.Builder, target Target, headers []string) (graph.NodeID, error)
}

// For selects the strategy for an integration.
func For(integ types.Integration) (Strategy, error) {
	switch v := integ.(type) {
	case *types.Direct:
		return &DirectStrategy{}, nil
	case *types.Mediated:
		return &MediatedStrategy{Properties: v.Properties}, nil
	default:
		return nil, fmt.Errorf("unsupported integration %T", integ)
	}
}

// Resolve registers the adapter for entity e against its hosting target.
func Resolve(b *graph.Builder, e types.Entity, target Target, headers []string) (graph.NodeID, error) {
	strategy, err := For(e.EntityIntegration())
	if err != nil {
		return "", fmt.Errorf("resolving integration for %s: %w", e.EntityName(), err)
	}
	return strategy.Resolve(b, target, headers)
}

func headerParameters(headers []string) (integration map[string]string, method map[string]bool) {
	integration = make(map[string]string, len(headers))
	method = make(map[string]bool, len(headers))
	for _, h := range headers {
		integration["integration.request.header."+h] = "method.request.header." + h
		method["method.request.header."+h] = true
	}
	return integration, method
}
