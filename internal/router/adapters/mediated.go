package adapters

import (
	"maps"

	"github.com/af-corp/mlapi/internal/graph"
	"github.com/af-corp/mlapi/internal/types"
)

const (
	functionHandler    = "index.lambda_handler"
	basicExecutionRole = "service-role/AWSLambdaBasicExecutionRole"
	endpointNameEnvVar = "ENDPOINT_NAME"
)

// MediatedStrategy puts a function owned by exactly one entity between the
// adapter and the hosting resource. The function depends on one grant per
// permission.
type MediatedStrategy struct {
	Properties types.MediatedProperties
}

func (*MediatedStrategy) Type() types.IntegrationType { return types.IntegrationLambda }

func (s *MediatedStrategy) Resolve(b *graph.Builder, target Target, headers []string) (graph.NodeID, error) {
	grants := make([]graph.NodeID, 0, len(s.Properties.Permissions))
	for _, perm := range s.Properties.Permissions {
		id, err := b.Add(graph.Node{
			ID:    graph.NewID(target.Owner, graph.KindPermissionGrant, perm),
			Kind:  graph.KindPermissionGrant,
			Owner: target.Owner,
			Attributes: map[string]any{
				"effect":    "Allow",
				"action":    perm,
				"resources": []string{"*"},
			},
		})
		if err != nil {
			return "", err
		}
		grants = append(grants, id)
	}

	fn, err := b.Add(graph.Node{
		ID:         graph.NewID(target.Owner, graph.KindFunction),
		Kind:       graph.KindFunction,
		Owner:      target.Owner,
		Attributes: s.functionAttributes(target),
	}, grants...)
	if err != nil {
		return "", err
	}

	_, methodParams := headerParameters(headers)
	return b.Add(graph.Node{
		ID:    graph.NewID(target.Owner, graph.KindAdapter),
		Kind:  graph.KindAdapter,
		Owner: target.Owner,
		Attributes: map[string]any{
			"integration_type":          string(types.IntegrationLambda),
			"http_method":               "POST",
			"proxy":                     true,
			"function":                  string(fn),
			"method_request_parameters": methodParams,
		},
	}, target.Hosting, fn)
}

func (s *MediatedStrategy) functionAttributes(target Target) map[string]any {
	p := s.Properties

	env := make(map[string]string, len(p.Environment)+1)
	maps.Copy(env, p.Environment)
	env[endpointNameEnvVar] = target.EndpointName

	attrs := map[string]any{
		"handler":          functionHandler,
		"code":             p.Code,
		"timeout_seconds":  p.Timeout,
		"environment":      env,
		"managed_policies": []string{basicExecutionRole},
		"permissions":      append([]string(nil), p.Permissions...),
	}
	if p.Memory != nil {
		attrs["memory_mb"] = *p.Memory
	}
	if p.Runtime != nil {
		attrs["runtime"] = *p.Runtime
	}
	if len(p.Layers) > 0 {
		attrs["layers"] = append([]string(nil), p.Layers...)
	}
	return attrs
}
