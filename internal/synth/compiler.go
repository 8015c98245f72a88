// Package synth compiles a configuration document into a manifest. A run
// validates the document, builds descriptors, applies the policy gate, and
// assembles the resource graph and route table. Runs share no state.
package synth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/af-corp/mlapi/internal/descriptor"
	"github.com/af-corp/mlapi/internal/graph"
	"github.com/af-corp/mlapi/internal/router"
	"github.com/af-corp/mlapi/internal/router/adapters"
	"github.com/af-corp/mlapi/internal/scaling"
	"github.com/af-corp/mlapi/internal/schema"
	"github.com/af-corp/mlapi/internal/telemetry"
	"github.com/af-corp/mlapi/internal/types"
)

// Gate is an optional check over built descriptors. It returns a
// *schema.ViolationError to reject the document.
type Gate interface {
	Check(ctx context.Context, doc *types.Document) error
}

type Options struct {
	Environment adapters.Environment
	Gate        Gate
	Metrics     *telemetry.Metrics
	Logger      *slog.Logger
	// Source labels metrics for this compiler, e.g. "cli" or "http".
	Source string
}

type Compiler struct {
	opts Options
}

func NewCompiler(opts Options) *Compiler {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Source == "" {
		opts.Source = "cli"
	}
	return &Compiler{opts: opts}
}

// Compile turns a raw document into a manifest. Errors are either a
// *schema.ViolationError (the document is rejected), an error wrapping
// graph.ErrIntegrity (a compiler defect) or a context error.
func (c *Compiler) Compile(ctx context.Context, doc any) (*Manifest, error) {
	start := time.Now()
	m, err := c.compile(ctx, doc)
	c.record(time.Since(start), m, err)
	return m, err
}

func (c *Compiler) compile(ctx context.Context, raw any) (*Manifest, error) {
	validated, err := schema.Validate(raw, schema.NewNameRegistry())
	if err != nil {
		return nil, err
	}

	doc := descriptor.Build(validated)

	if c.opts.Gate != nil {
		if err := c.opts.Gate.Check(ctx, doc); err != nil {
			return nil, err
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return Assemble(doc, c.opts.Environment)
}

// Assemble builds the resource graph and route table for validated
// descriptors. Entities are registered models first, each in file order.
func Assemble(doc *types.Document, env adapters.Environment) (*Manifest, error) {
	b := graph.NewBuilder()
	table := router.NewTable()

	for _, e := range doc.Entities() {
		if err := assembleEntity(b, table, env, e); err != nil {
			return nil, fmt.Errorf("assemble %s %s: %w", e.EntityKind(), e.EntityName(), err)
		}
	}

	g, err := b.Build()
	if err != nil {
		return nil, err
	}
	return newManifest(g, table)
}

func assembleEntity(b *graph.Builder, table *router.Table, env adapters.Environment, e types.Entity) error {
	target, err := adapters.RegisterHosting(b, env, e)
	if err != nil {
		return err
	}

	headers := router.ComposeHeaders(e.EntityIntegration().PassthroughHeaders())
	adapter, err := adapters.Resolve(b, e, target, headers)
	if err != nil {
		return err
	}

	var scalingID graph.NodeID
	if policy, ok := scaling.Build(e); ok {
		scalingID, err = b.Add(graph.Node{
			ID:         graph.NewID(e.EntityName(), graph.KindScalingPolicy),
			Kind:       graph.KindScalingPolicy,
			Owner:      e.EntityName(),
			Attributes: policy.Attributes(),
		}, target.Hosting)
		if err != nil {
			return err
		}
	}

	_, err = router.Register(b, table, e, headers, adapter, scalingID)
	return err
}

func (c *Compiler) record(elapsed time.Duration, m *Manifest, err error) {
	labels := telemetry.SynthesisLabels{
		Source:     c.opts.Source,
		DurationMs: float64(elapsed.Microseconds()) / 1000,
	}
	log := c.opts.Logger

	var ve *schema.ViolationError
	switch {
	case err == nil:
		labels.Outcome = telemetry.OutcomeSuccess
		labels.Routes = m.Routes.Len()
		labels.Nodes = make(map[string]int, len(graph.Kinds))
		for kind, n := range m.Graph().CountByKind() {
			labels.Nodes[string(kind)] = n
		}
		log.Info("synthesis complete",
			"routes", labels.Routes,
			"resources", len(m.Resources),
			"digest", m.Digest,
			"duration_ms", labels.DurationMs,
		)
	case errors.As(err, &ve):
		labels.Outcome = telemetry.OutcomeRejected
		labels.Violations = make(map[string]int)
		for _, v := range ve.Violations {
			labels.Violations[string(v.Kind)]++
		}
		log.Warn("synthesis rejected", "violations", len(ve.Violations))
	case errors.Is(err, graph.ErrIntegrity):
		labels.Outcome = telemetry.OutcomeIntegrity
		log.Error("graph integrity violation", "error", err)
	default:
		labels.Outcome = telemetry.OutcomeError
		log.Error("synthesis failed", "error", err)
	}

	c.opts.Metrics.RecordSynthesis(labels)
}
