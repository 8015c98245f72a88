// Package scaling derives target-tracking autoscaling policies for models.
package scaling

import (
	"fmt"

	"github.com/af-corp/mlapi/internal/types"
)

const (
	ServiceNamespace  = "sagemaker"
	ScalableDimension = "sagemaker:variant:DesiredInstanceCount"
	PredefinedMetric  = "SageMakerVariantInvocationsPerInstance"
	VariantName       = "AllTraffic"
)

// Policy keeps the average invocations per instance near Target while the
// instance count stays within [MinCapacity, MaxCapacity].
type Policy struct {
	ResourceID  string
	MinCapacity int
	MaxCapacity int
	Target      int
}

// Build returns the policy for a model, or false when the model declares no
// autoscaling. Endpoints are never scaled.
func Build(e types.Entity) (*Policy, bool) {
	m, ok := e.(*types.ModelSpec)
	if !ok || m.Autoscaling == nil {
		return nil, false
	}
	return &Policy{
		ResourceID:  ResourceID(types.HostingEndpointName(m)),
		MinCapacity: m.Autoscaling.MinCapacity,
		MaxCapacity: m.Autoscaling.MaxCapacity,
		Target:      m.Autoscaling.InvocationsPerInstance,
	}, true
}

func ResourceID(endpointName string) string {
	return fmt.Sprintf("endpoint/%s/variant/%s", endpointName, VariantName)
}

// Attributes renders the policy as graph node attributes.
func (p *Policy) Attributes() map[string]any {
	return map[string]any{
		"service_namespace":  ServiceNamespace,
		"resource_id":        p.ResourceID,
		"scalable_dimension": ScalableDimension,
		"min_capacity":       p.MinCapacity,
		"max_capacity":       p.MaxCapacity,
		"target_tracking": map[string]any{
			"predefined_metric": PredefinedMetric,
			"target_value":      p.Target,
		},
	}
}
