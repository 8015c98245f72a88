// Package descriptor turns validated configuration entries into the canonical
// model and endpoint descriptors the rest of synthesis works from.
package descriptor

import (
	"maps"

	"github.com/samber/lo"

	"github.com/af-corp/mlapi/internal/schema"
	"github.com/af-corp/mlapi/internal/types"
)

// Build converts a whole validated document, preserving file order.
func Build(doc *schema.Document) *types.Document {
	return &types.Document{
		Models: lo.Map(doc.Models, func(m schema.RawModel, _ int) *types.ModelSpec {
			return BuildModel(m)
		}),
		Endpoints: lo.Map(doc.Endpoints, func(e schema.RawEndpoint, _ int) *types.EndpointSpec {
			return BuildEndpoint(e)
		}),
	}
}

func BuildModel(raw schema.RawModel) *types.ModelSpec {
	m := &types.ModelSpec{
		Name:        raw.Name,
		Source:      buildSource(raw),
		Instance:    raw.Instance,
		Integration: BuildIntegration(raw.Integration),
	}
	if raw.Autoscaling != nil {
		m.Autoscaling = &types.AutoscalingSpec{
			MaxCapacity:            raw.Autoscaling.MaxCapacity,
			MinCapacity:            raw.Autoscaling.MinCapacity,
			InvocationsPerInstance: raw.Autoscaling.InvocationsPerInstance,
		}
	}
	return m
}

func BuildEndpoint(raw schema.RawEndpoint) *types.EndpointSpec {
	return &types.EndpointSpec{
		Name:        raw.Name,
		Integration: BuildIntegration(raw.Integration),
	}
}

func buildSource(raw schema.RawModel) types.ModelSource {
	if raw.ModelPackageARN != "" {
		return types.ModelSource{Kind: types.SourceModelPackage, Value: raw.ModelPackageARN}
	}
	return types.ModelSource{Kind: types.SourceModelID, Value: raw.ModelID}
}

// BuildIntegration resolves absent headers to an empty list and leaves
// optional function settings unset.
func BuildIntegration(raw schema.RawIntegration) types.Integration {
	headers := append([]string{}, raw.Headers...)

	if raw.Type != string(types.IntegrationLambda) || raw.Properties == nil {
		return &types.Direct{Headers: headers}
	}

	p := raw.Properties
	props := types.MediatedProperties{
		Code:        p.Code,
		Permissions: append([]string{}, p.Permissions...),
		Timeout:     p.Timeout,
		Layers:      append([]string(nil), p.Layers...),
		Environment: maps.Clone(p.Environment),
	}
	if p.Memory != nil {
		memory := *p.Memory
		props.Memory = &memory
	}
	if p.Runtime != nil {
		runtime := *p.Runtime
		props.Runtime = &runtime
	}
	return &types.Mediated{Headers: headers, Properties: props}
}
