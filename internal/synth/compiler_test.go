package synth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/af-corp/mlapi/internal/config"
	"github.com/af-corp/mlapi/internal/graph"
	"github.com/af-corp/mlapi/internal/router/adapters"
	"github.com/af-corp/mlapi/internal/schema"
	"github.com/af-corp/mlapi/internal/telemetry"
	"github.com/af-corp/mlapi/internal/types"
)

const exampleDocument = `{
  "models": [
    {
      "name": "open-llama",
      "model_id": "huggingface-textgeneration-open-llama",
      "instance": "ml.g5.2xlarge",
      "integration": {
        "type": "lambda",
        "properties": {
          "code": "functions/example_function",
          "permissions": ["sagemaker:InvokeEndpoint"],
          "timeout": 29,
          "memory": 1024
        }
      }
    },
    {
      "name": "sd-1-0",
      "model_package_arn": "arn:aws:sagemaker:us-east-1:865070037744:model-package/sdxl-v1-0-8cc703e",
      "instance": "ml.g5.2xlarge",
      "integration": {
        "type": "api",
        "headers": ["X-Amzn-SageMaker-Custom-Attributes"]
      }
    }
  ],
  "endpoints": []
}`

const mixedDocument = `{
  "models": [
    {
      "name": "scaled",
      "model_id": "huggingface-llm",
      "instance": "ml.g5.xlarge",
      "autoscaling": {"min_capacity": 1, "max_capacity": 3, "invocations_per_instance": 8},
      "integration": {"type": "api"}
    }
  ],
  "endpoints": [
    {
      "name": "legacy",
      "integration": {
        "type": "lambda",
        "headers": ["Accept", "X-Trace"],
        "properties": {
          "code": "functions/legacy",
          "permissions": ["sagemaker:InvokeEndpoint", "s3:GetObject"],
          "timeout": 10,
          "layers": ["arn:aws:lambda:eu-west-1:123456789012:layer:common:3"],
          "runtime": "python3.12",
          "environment": {"STAGE": "prod"}
        }
      }
    }
  ]
}`

func decode(t *testing.T, src string) any {
	t.Helper()
	doc, err := config.DecodeDocument(".json", []byte(src))
	require.NoError(t, err)
	return doc
}

func newTestCompiler(opts Options) *Compiler {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return NewCompiler(opts)
}

func TestCompile_ExampleConfiguration(t *testing.T) {
	m, err := newTestCompiler(Options{}).Compile(context.Background(), decode(t, exampleDocument))
	require.NoError(t, err)

	assert.Equal(t, []string{"open-llama", "sd-1-0"}, m.Routes.Names())
	llama, ok := m.Routes.Get("open-llama")
	require.True(t, ok)
	assert.Equal(t, "/open-llama", llama.Path)
	assert.Equal(t, types.IntegrationLambda, llama.IntegrationType)
	sd, _ := m.Routes.Get("sd-1-0")
	assert.Equal(t, "/sd-1-0", sd.Path)
	assert.Equal(t, []string{"Content-Type", "Accept", "X-Amzn-SageMaker-Custom-Attributes"}, sd.Headers)

	g := m.Graph()
	counts := g.CountByKind()
	assert.Equal(t, 2, counts[graph.KindRoute])
	assert.Equal(t, 1, counts[graph.KindFunction])
	assert.Equal(t, 1, counts[graph.KindPermissionGrant])
	assert.Zero(t, counts[graph.KindScalingPolicy])

	llamaReach := g.Reachable("open-llama/route")
	assert.Contains(t, llamaReach, graph.NodeID("open-llama/mediating_function"))
	assert.Contains(t, llamaReach, graph.NodeID("open-llama/permission_grant/sagemaker:InvokeEndpoint"))

	fn, _ := g.Node("open-llama/mediating_function")
	assert.Len(t, fn.DependsOn, 1)
	assert.Equal(t, 1024, fn.Attributes["memory_mb"])
	assert.Equal(t, 29, fn.Attributes["timeout_seconds"])

	for _, id := range g.Reachable("sd-1-0/route") {
		n, _ := g.Node(id)
		assert.NotEqual(t, graph.KindFunction, n.Kind)
	}
	hosting, _ := g.Node("sd-1-0/hosting")
	assert.Equal(t, true, hosting.Attributes["enable_network_isolation"])
}

func TestCompile_EmissionOrder(t *testing.T) {
	m, err := newTestCompiler(Options{}).Compile(context.Background(), decode(t, mixedDocument))
	require.NoError(t, err)

	var ids []graph.NodeID
	for _, n := range m.Resources {
		ids = append(ids, n.ID)
	}
	assert.Equal(t, []graph.NodeID{
		"legacy/permission_grant/sagemaker:InvokeEndpoint",
		"legacy/permission_grant/s3:GetObject",
		"legacy/mediating_function",
		"scaled/hosting",
		"legacy/hosting",
		"scaled/integration_adapter",
		"legacy/integration_adapter",
		"scaled/scaling_policy",
		"scaled/route",
		"legacy/route",
	}, ids)

	legacy, _ := m.Routes.Get("legacy")
	assert.Equal(t, types.KindEndpoint, legacy.Kind)
	assert.Equal(t, []string{"Content-Type", "Accept", "X-Trace"}, legacy.Headers)

	route, _ := m.Graph().Node("scaled/route")
	assert.Equal(t, []graph.NodeID{"scaled/integration_adapter", "scaled/scaling_policy"}, route.DependsOn)

	fn, _ := m.Graph().Node("legacy/mediating_function")
	assert.Equal(t, map[string]string{"STAGE": "prod", "ENDPOINT_NAME": "legacy"}, fn.Attributes["environment"])
}

func TestCompile_Deterministic(t *testing.T) {
	c := newTestCompiler(Options{Environment: adapters.Environment{Region: "eu-west-1", Account: "123456789012"}})

	var first []byte
	var digest string
	for i := 0; i < 5; i++ {
		m, err := c.Compile(context.Background(), decode(t, mixedDocument))
		require.NoError(t, err)

		var buf bytes.Buffer
		require.NoError(t, m.Encode(&buf, FormatJSON))
		if i == 0 {
			first, digest = buf.Bytes(), m.Digest
			continue
		}
		assert.Equal(t, first, buf.Bytes())
		assert.Equal(t, digest, m.Digest)
	}
	assert.Len(t, digest, 64)
}

func TestCompile_DigestTracksInput(t *testing.T) {
	c := newTestCompiler(Options{})
	a, err := c.Compile(context.Background(), decode(t, exampleDocument))
	require.NoError(t, err)
	b, err := c.Compile(context.Background(), decode(t, mixedDocument))
	require.NoError(t, err)
	assert.NotEqual(t, a.Digest, b.Digest)
}

func TestCompile_AcyclicAndSingleOwner(t *testing.T) {
	for name, src := range map[string]string{"example": exampleDocument, "mixed": mixedDocument} {
		t.Run(name, func(t *testing.T) {
			m, err := newTestCompiler(Options{}).Compile(context.Background(), decode(t, src))
			require.NoError(t, err)
			g := m.Graph()

			for _, pair := range g.Edges() {
				assert.Less(t, g.Position(pair[1]), g.Position(pair[0]))
			}

			owners := map[graph.NodeID]int{}
			for _, r := range g.ByKind(graph.KindRoute) {
				for _, id := range g.Reachable(r.ID) {
					owners[id]++
				}
			}
			for _, n := range g.Nodes() {
				if n.Kind == graph.KindRoute {
					continue
				}
				assert.Equal(t, 1, owners[n.ID], "node %s", n.ID)
			}
		})
	}
}

func TestCompile_RejectsInvalidDocument(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := telemetry.NewMetricsWith(reg)
	c := newTestCompiler(Options{Metrics: metrics, Source: "test"})

	doc := decode(t, `{"models": [{"name": "dup", "model_id": "x", "instance": "i", "integration": {"type": "api"}}],
		"endpoints": [{"name": "dup", "integration": {"type": "api"}}]}`)

	m, err := c.Compile(context.Background(), doc)
	assert.Nil(t, m)
	vs, ok := schema.AsViolations(err)
	require.True(t, ok)
	require.Len(t, vs, 1)
	assert.Equal(t, schema.KindNameCollision, vs[0].Kind)

	counter, err := metrics.SynthesisTotal.GetMetricWithLabelValues("test", telemetry.OutcomeRejected)
	require.NoError(t, err)
	var metric dto.Metric
	require.NoError(t, counter.Write(&metric))
	assert.Equal(t, float64(1), metric.GetCounter().GetValue())
}

type denyGate struct{ calls int }

func (g *denyGate) Check(_ context.Context, doc *types.Document) error {
	g.calls++
	return &schema.ViolationError{Violations: []schema.Violation{{
		Kind:   schema.KindPolicyDenied,
		Entity: doc.Models[0].Name,
		Path:   "models[0]",
		Reason: "denied",
	}}}
}

func TestCompile_GateRejects(t *testing.T) {
	gate := &denyGate{}
	_, err := newTestCompiler(Options{Gate: gate}).Compile(context.Background(), decode(t, exampleDocument))
	vs, ok := schema.AsViolations(err)
	require.True(t, ok)
	assert.Equal(t, schema.KindPolicyDenied, vs[0].Kind)
	assert.Equal(t, 1, gate.calls)
}

func TestCompile_GateNotReachedOnSchemaErrors(t *testing.T) {
	gate := &denyGate{}
	_, err := newTestCompiler(Options{Gate: gate}).Compile(context.Background(), decode(t, `{"models": []}`))
	require.Error(t, err)
	assert.Zero(t, gate.calls)
}

func TestCompile_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newTestCompiler(Options{}).Compile(ctx, decode(t, exampleDocument))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAssemble_IntegrityErrorOnDuplicateEntity(t *testing.T) {
	dup := &types.EndpointSpec{Name: "legacy", Integration: &types.Direct{}}
	_, err := Assemble(&types.Document{Endpoints: []*types.EndpointSpec{dup, dup}}, adapters.Environment{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, graph.ErrIntegrity))
}

func TestAssemble_EmptyDocument(t *testing.T) {
	m, err := Assemble(&types.Document{}, adapters.Environment{})
	require.NoError(t, err)
	assert.Zero(t, m.Routes.Len())
	assert.Empty(t, m.Resources)

	data, err := json.Marshal(m)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"routes":[]`)
}

func TestManifest_EncodeYAML(t *testing.T) {
	m, err := newTestCompiler(Options{}).Compile(context.Background(), decode(t, exampleDocument))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, m.Encode(&buf, FormatYAML))

	var decoded struct {
		Version string `yaml:"version"`
		Digest  string `yaml:"digest"`
		Routes  []struct {
			Path string `yaml:"path"`
		} `yaml:"routes"`
	}
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, ManifestVersion, decoded.Version)
	assert.Equal(t, m.Digest, decoded.Digest)
	require.Len(t, decoded.Routes, 2)
	assert.Equal(t, "/open-llama", decoded.Routes[0].Path)
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"json": FormatJSON, "yaml": FormatYAML, "yml": FormatYAML} {
		got, err := ParseFormat(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}
	_, err := ParseFormat("toml")
	assert.Error(t, err)
}

func TestInputDigest(t *testing.T) {
	a, err := InputDigest(map[string]any{"models": []any{}, "endpoints": []any{}})
	require.NoError(t, err)
	b, err := InputDigest(map[string]any{"endpoints": []any{}, "models": []any{}})
	require.NoError(t, err)
	assert.Equal(t, a, b)

	_, err = InputDigest(map[string]any{"bad": func() {}})
	assert.Error(t, err)
}

func BenchmarkCompile(b *testing.B) {
	models := make([]any, 0, 100)
	for i := 0; i < 100; i++ {
		models = append(models, map[string]any{
			"name":        fmt.Sprintf("model-%d", i),
			"model_id":    "huggingface-llm",
			"instance":    "ml.g5.xlarge",
			"integration": map[string]any{"type": "api", "headers": []any{"X-Trace"}},
		})
	}
	doc := map[string]any{"models": models, "endpoints": []any{}}
	c := NewCompiler(Options{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := c.Compile(context.Background(), doc); err != nil {
			b.Fatal(err)
		}
	}
}
