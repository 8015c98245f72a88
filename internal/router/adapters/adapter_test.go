package adapters

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/af-corp/mlapi/internal/graph"
	"github.com/af-corp/mlapi/internal/types"
)

var testEnv = Environment{Region: "eu-west-1", Account: "123456789012"}

func intPtr(v int) *int       { return &v }
func strPtr(v string) *string { return &v }

func registerRoute(t *testing.T, b *graph.Builder, owner string, adapter graph.NodeID) {
	t.Helper()
	b.MustAdd(graph.Node{ID: graph.NewID(owner, graph.KindRoute), Kind: graph.KindRoute, Owner: owner}, adapter)
}

func TestFor(t *testing.T) {
	s, err := For(&types.Direct{})
	require.NoError(t, err)
	assert.Equal(t, types.IntegrationAPI, s.Type())

	s, err = For(&types.Mediated{})
	require.NoError(t, err)
	assert.Equal(t, types.IntegrationLambda, s.Type())

	_, err = For(nil)
	assert.Error(t, err)
}

func TestInvokeARNPattern(t *testing.T) {
	assert.Equal(t, "arn:aws:sagemaker:eu-west-1:123456789012:endpoint/open-llama*", testEnv.InvokeARNPattern("open-llama"))
	assert.Equal(t, "arn:aws:sagemaker:${AWS::Region}:${AWS::AccountId}:endpoint/x*", Environment{}.InvokeARNPattern("x"))
}

func TestRegisterHosting_Model(t *testing.T) {
	tests := []struct {
		name      string
		source    types.ModelSource
		isolation bool
	}{
		{"model id", types.ModelSource{Kind: types.SourceModelID, Value: "huggingface-llm"}, false},
		{"model package", types.ModelSource{Kind: types.SourceModelPackage, Value: "arn:aws:sagemaker:pkg/sd"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := graph.NewBuilder()
			target, err := RegisterHosting(b, testEnv, &types.ModelSpec{Name: "m", Source: tt.source, Instance: "ml.g5.xlarge"})
			require.NoError(t, err)
			assert.Equal(t, graph.NodeID("m/hosting"), target.Hosting)
			assert.Equal(t, "m-endpoint", target.EndpointName)

			registerRoute(t, b, "m", target.Hosting)
			g, err := b.Build()
			require.NoError(t, err)
			n, ok := g.Node(target.Hosting)
			require.True(t, ok)
			assert.Equal(t, false, n.Attributes["external"])
			assert.Equal(t, "ml.g5.xlarge", n.Attributes["instance_type"])
			assert.Equal(t, tt.source.Value, n.Attributes[string(tt.source.Kind)])
			_, isolated := n.Attributes["enable_network_isolation"]
			assert.Equal(t, tt.isolation, isolated)
		})
	}
}

func TestRegisterHosting_Endpoint(t *testing.T) {
	b := graph.NewBuilder()
	target, err := RegisterHosting(b, testEnv, &types.EndpointSpec{Name: "legacy"})
	require.NoError(t, err)
	assert.Equal(t, "legacy", target.EndpointName)

	registerRoute(t, b, "legacy", target.Hosting)
	g, err := b.Build()
	require.NoError(t, err)
	n, _ := g.Node(target.Hosting)
	assert.Equal(t, true, n.Attributes["external"])
	assert.NotContains(t, n.Attributes, "instance_type")
}

func TestDirectStrategy_Resolve(t *testing.T) {
	b := graph.NewBuilder()
	target, err := RegisterHosting(b, testEnv, &types.EndpointSpec{Name: "legacy"})
	require.NoError(t, err)

	id, err := (&DirectStrategy{}).Resolve(b, target, []string{"Content-Type", "Accept", "X-Trace"})
	require.NoError(t, err)
	registerRoute(t, b, "legacy", id)

	g, err := b.Build()
	require.NoError(t, err)
	assert.Zero(t, g.CountByKind()[graph.KindFunction])

	n, _ := g.Node(id)
	assert.Equal(t, []graph.NodeID{"legacy/hosting"}, n.DependsOn)
	assert.Equal(t, "endpoints/legacy/invocations", n.Attributes["path"])
	assert.Equal(t, "runtime.sagemaker", n.Attributes["service"])
	assert.Equal(t, map[string]string{
		"integration.request.header.Content-Type": "method.request.header.Content-Type",
		"integration.request.header.Accept":       "method.request.header.Accept",
		"integration.request.header.X-Trace":      "method.request.header.X-Trace",
	}, n.Attributes["request_parameters"])
	assert.Len(t, n.Attributes["responses"], 3)
}

func TestMediatedStrategy_Resolve(t *testing.T) {
	b := graph.NewBuilder()
	model := &types.ModelSpec{Name: "open-llama", Source: types.ModelSource{Kind: types.SourceModelID, Value: "llama"}, Instance: "ml.g5.2xlarge"}
	target, err := RegisterHosting(b, testEnv, model)
	require.NoError(t, err)

	s := &MediatedStrategy{Properties: types.MediatedProperties{
		Code:        "functions/example_function",
		Permissions: []string{"sagemaker:InvokeEndpoint", "s3:GetObject"},
		Timeout:     29,
		Memory:      intPtr(1024),
		Runtime:     strPtr("python3.12"),
		Environment: map[string]string{"LOG_LEVEL": "debug", "ENDPOINT_NAME": "override-attempt"},
	}}
	id, err := s.Resolve(b, target, []string{"Content-Type", "Accept"})
	require.NoError(t, err)
	registerRoute(t, b, "open-llama", id)

	g, err := b.Build()
	require.NoError(t, err)

	counts := g.CountByKind()
	assert.Equal(t, 1, counts[graph.KindFunction])
	assert.Equal(t, 2, counts[graph.KindPermissionGrant])

	fn, ok := g.Node("open-llama/mediating_function")
	require.True(t, ok)
	assert.Equal(t, []graph.NodeID{
		"open-llama/permission_grant/sagemaker:InvokeEndpoint",
		"open-llama/permission_grant/s3:GetObject",
	}, fn.DependsOn)
	assert.Equal(t, "index.lambda_handler", fn.Attributes["handler"])
	assert.Equal(t, 29, fn.Attributes["timeout_seconds"])
	assert.Equal(t, 1024, fn.Attributes["memory_mb"])
	assert.Equal(t, "python3.12", fn.Attributes["runtime"])
	assert.NotContains(t, fn.Attributes, "layers")
	assert.Equal(t, map[string]string{
		"LOG_LEVEL":     "debug",
		"ENDPOINT_NAME": "open-llama-endpoint",
	}, fn.Attributes["environment"])

	adapter, _ := g.Node(id)
	assert.ElementsMatch(t, []graph.NodeID{"open-llama/hosting", "open-llama/mediating_function"}, adapter.DependsOn)
	assert.Equal(t, "open-llama/mediating_function", adapter.Attributes["function"])
}

func TestMediatedStrategy_OptionalFieldsUnset(t *testing.T) {
	b := graph.NewBuilder()
	target, err := RegisterHosting(b, testEnv, &types.EndpointSpec{Name: "legacy"})
	require.NoError(t, err)

	s := &MediatedStrategy{Properties: types.MediatedProperties{Code: "fn", Permissions: []string{"s3:GetObject"}, Timeout: 10}}
	_, err = s.Resolve(b, target, nil)
	require.NoError(t, err)

	registerRoute(t, b, "legacy", "legacy/integration_adapter")
	g, err := b.Build()
	require.NoError(t, err)
	require.Equal(t, 5, g.Len())

	n, _ := g.Node("legacy/mediating_function")
	assert.NotContains(t, n.Attributes, "memory_mb")
	assert.NotContains(t, n.Attributes, "runtime")
	assert.Equal(t, map[string]string{"ENDPOINT_NAME": "legacy"}, n.Attributes["environment"])
}

func TestMediatedStrategy_DuplicateEntityIsIntegrityError(t *testing.T) {
	b := graph.NewBuilder()
	target, err := RegisterHosting(b, testEnv, &types.EndpointSpec{Name: "legacy"})
	require.NoError(t, err)

	s := &MediatedStrategy{Properties: types.MediatedProperties{Code: "fn", Permissions: []string{"s3:GetObject"}, Timeout: 10}}
	_, err = s.Resolve(b, target, nil)
	require.NoError(t, err)
	_, err = s.Resolve(b, target, nil)
	assert.ErrorIs(t, err, graph.ErrIntegrity)
}
