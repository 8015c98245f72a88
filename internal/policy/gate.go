package policy

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/af-corp/mlapi/internal/schema"
	"github.com/af-corp/mlapi/internal/types"
)

// Input is the document evaluated for one entity.
type Input struct {
	Kind        string            `json:"kind"`
	Name        string            `json:"name"`
	Instance    string            `json:"instance,omitempty"`
	Source      *SourceInput      `json:"source,omitempty"`
	Integration IntegrationInput  `json:"integration"`
	Autoscaling *AutoscalingInput `json:"autoscaling,omitempty"`
}

type SourceInput struct {
	Kind  string `json:"kind"`
	Value string `json:"value"`
}

type IntegrationInput struct {
	Type        string   `json:"type"`
	Headers     []string `json:"headers"`
	Permissions []string `json:"permissions,omitempty"`
	Timeout     int      `json:"timeout,omitempty"`
	Memory      int      `json:"memory,omitempty"`
	Runtime     string   `json:"runtime,omitempty"`
	Layers      []string `json:"layers,omitempty"`
}

type AutoscalingInput struct {
	MinCapacity            int `json:"min_capacity"`
	MaxCapacity            int `json:"max_capacity"`
	InvocationsPerInstance int `json:"invocations_per_instance"`
}

// NewInput builds the policy input for an entity.
func NewInput(e types.Entity) Input {
	in := Input{
		Kind: string(e.EntityKind()),
		Name: e.EntityName(),
	}

	integ := e.EntityIntegration()
	in.Integration = IntegrationInput{
		Type:    string(integ.Type()),
		Headers: append([]string{}, integ.PassthroughHeaders()...),
	}
	if m, ok := integ.(*types.Mediated); ok {
		p := m.Properties
		in.Integration.Permissions = p.Permissions
		in.Integration.Timeout = p.Timeout
		in.Integration.Layers = p.Layers
		if p.Memory != nil {
			in.Integration.Memory = *p.Memory
		}
		if p.Runtime != nil {
			in.Integration.Runtime = *p.Runtime
		}
	}

	if m, ok := e.(*types.ModelSpec); ok {
		in.Instance = m.Instance
		in.Source = &SourceInput{Kind: string(m.Source.Kind), Value: m.Source.Value}
		if a := m.Autoscaling; a != nil {
			in.Autoscaling = &AutoscalingInput{
				MinCapacity:            a.MinCapacity,
				MaxCapacity:            a.MaxCapacity,
				InvocationsPerInstance: a.InvocationsPerInstance,
			}
		}
	}
	return in
}

// Check evaluates every entity and returns a *schema.ViolationError listing
// all denials, or nil. A disabled gate always passes.
func (e *Evaluator) Check(ctx context.Context, doc *types.Document) error {
	if !e.Enabled() {
		return nil
	}
	if !e.Loaded() {
		return &schema.ViolationError{Violations: []schema.Violation{{
			Kind:   schema.KindPolicyDenied,
			Path:   "$",
			Reason: "policy gate enabled but no policies loaded",
		}}}
	}

	var violations []schema.Violation
	for i, entity := range doc.Entities() {
		allowed, reason, err := e.Evaluate(ctx, NewInput(entity))
		if err != nil {
			slog.Error("policy evaluation failed", "entity", entity.EntityName(), "error", err)
		}
		e.metrics.RecordPolicyDecision(allowed)
		if allowed {
			continue
		}
		if reason == "" {
			reason = "denied by policy"
		}
		violations = append(violations, schema.Violation{
			Kind:   schema.KindPolicyDenied,
			Entity: entity.EntityName(),
			Path:   entityPath(doc, i),
			Reason: reason,
		})
	}

	if len(violations) > 0 {
		return &schema.ViolationError{Violations: violations}
	}
	return nil
}

func entityPath(doc *types.Document, i int) string {
	if i < len(doc.Models) {
		return fmt.Sprintf("models[%d]", i)
	}
	return fmt.Sprintf("endpoints[%d]", i-len(doc.Models))
}
