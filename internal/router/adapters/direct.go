package adapters

import (
	"github.com/af-corp/mlapi/internal/graph"
	"github.com/af-corp/mlapi/internal/types"
)

const errorTemplate = `{ "error": $input.path("$.OriginalMessage") }`

// DirectStrategy wires the adapter straight to the hosting runtime.
type DirectStrategy struct{}

func (*DirectStrategy) Type() types.IntegrationType { return types.IntegrationAPI }

func (*DirectStrategy) Resolve(b *graph.Builder, target Target, headers []string) (graph.NodeID, error) {
	integrationParams, methodParams := headerParameters(headers)
	return b.Add(graph.Node{
		ID:    graph.NewID(target.Owner, graph.KindAdapter),
		Kind:  graph.KindAdapter,
		Owner: target.Owner,
		Attributes: map[string]any{
			"integration_type":          string(types.IntegrationAPI),
			"service":                   "runtime.sagemaker",
			"http_method":               "POST",
			"path":                      "endpoints/" + target.EndpointName + "/invocations",
			"request_parameters":        integrationParams,
			"method_request_parameters": methodParams,
			"responses":                 directResponses(),
		},
	}, target.Hosting)
}

func directResponses() []map[string]any {
	return []map[string]any{
		{
			"status_code":        "200",
			"response_templates": map[string]string{"application/json": "$input.json('$')"},
		},
		{
			"status_code":        "400",
			"selection_pattern":  `4\d{2}`,
			"response_templates": map[string]string{"application/json": errorTemplate},
		},
		{
			"status_code":        "500",
			"selection_pattern":  `5\d{2}`,
			"response_templates": map[string]string{"application/json": errorTemplate},
		},
	}
}
