package schema

import (
	"fmt"
	"regexp"

	"github.com/af-corp/mlapi/internal/types"
)

var namePattern = regexp.MustCompile(`^[a-z0-9-]+$`)

// NamePattern is the pattern every model and endpoint name must match.
func NamePattern() string { return namePattern.String() }

type entry struct {
	kind     types.EntityKind
	location string
	fields   map[string]any

	// Filled in as categories pass.
	name            string
	integration     map[string]any
	integrationType types.IntegrationType
}

func (e *entry) path(field string) string {
	return e.location + "." + field
}

func (e *entry) violation(path, format string, args ...any) Violation {
	return Violation{Kind: KindSchema, Entity: e.name, Path: path, Reason: fmt.Sprintf(format, args...)}
}

type validator struct {
	names   *NameRegistry
	entries []*entry
}

// Validate checks a decoded configuration document and returns its typed
// form. Checks run by category: top-level shape, names, model source,
// instance, integration type, lambda properties, autoscaling. The first
// category with violations ends validation, and every violation of that
// category is returned in one *ViolationError.
//
// names collects entity names for this run; nil allocates a fresh registry.
func Validate(doc any, names *NameRegistry) (*Document, error) {
	if names == nil {
		names = NewNameRegistry()
	}

	entries, vs := collectEntries(doc)
	if len(vs) > 0 {
		return nil, &ViolationError{Violations: vs}
	}

	v := &validator{names: names, entries: entries}
	checks := []func() []Violation{
		v.checkNames,
		v.checkSources,
		v.checkInstances,
		v.checkIntegrationTypes,
		v.checkMediatedProperties,
		v.checkAutoscaling,
	}
	for _, check := range checks {
		if vs := check(); len(vs) > 0 {
			return nil, &ViolationError{Violations: vs}
		}
	}
	return v.decode(), nil
}

func collectEntries(doc any) ([]*entry, []Violation) {
	root, ok := asMap(doc)
	if !ok {
		return nil, []Violation{{Kind: KindSchema, Path: "$", Reason: "document must be a mapping with keys models and endpoints"}}
	}

	sections := []struct {
		key  string
		kind types.EntityKind
	}{
		{"models", types.KindModel},
		{"endpoints", types.KindEndpoint},
	}

	var entries []*entry
	var vs []Violation
	for _, section := range sections {
		raw, present := root[section.key]
		if !present {
			vs = append(vs, Violation{Kind: KindSchema, Path: section.key, Reason: "is required"})
			continue
		}
		items, ok := raw.([]any)
		if !ok {
			vs = append(vs, Violation{Kind: KindSchema, Path: section.key, Reason: "must be a sequence"})
			continue
		}
		for i, item := range items {
			loc := fmt.Sprintf("%s[%d]", section.key, i)
			fields, ok := asMap(item)
			if !ok {
				vs = append(vs, Violation{Kind: KindSchema, Path: loc, Reason: "must be a mapping"})
				continue
			}
			entries = append(entries, &entry{kind: section.kind, location: loc, fields: fields})
		}
	}
	return entries, vs
}

func (v *validator) checkNames() []Violation {
	var vs []Violation
	for _, e := range v.entries {
		raw, ok := e.fields["name"]
		if !ok {
			vs = append(vs, e.violation(e.path("name"), "is required"))
			continue
		}
		name, ok := raw.(string)
		if !ok {
			vs = append(vs, e.violation(e.path("name"), "must be a string"))
			continue
		}
		if !namePattern.MatchString(name) {
			vs = append(vs, Violation{
				Kind:   KindSchema,
				Entity: name,
				Path:   e.path("name"),
				Reason: fmt.Sprintf("%q does not match %s", name, namePattern),
			})
			continue
		}
		e.name = name
		if prev, ok := v.names.Claim(name, e.location); !ok {
			vs = append(vs, Violation{
				Kind:   KindNameCollision,
				Entity: name,
				Path:   e.path("name"),
				Reason: fmt.Sprintf("name %q is already declared at %s", name, prev),
				Other:  prev,
			})
		}
	}
	return vs
}

func (v *validator) checkSources() []Violation {
	var vs []Violation
	for _, e := range v.entries {
		id, hasID := e.fields["model_id"]
		pkg, hasPkg := e.fields["model_package_arn"]

		if e.kind == types.KindEndpoint {
			if hasID {
				vs = append(vs, e.violation(e.path("model_id"), "is not accepted on endpoints"))
			}
			if hasPkg {
				vs = append(vs, e.violation(e.path("model_package_arn"), "is not accepted on endpoints"))
			}
			continue
		}

		switch {
		case hasID && hasPkg:
			vs = append(vs, e.violation(e.location, "model_id and model_package_arn are mutually exclusive"))
		case !hasID && !hasPkg:
			vs = append(vs, e.violation(e.location, "exactly one of model_id or model_package_arn is required"))
		case hasID:
			if _, ok := asNonEmptyString(id); !ok {
				vs = append(vs, e.violation(e.path("model_id"), "must be a non-empty string"))
			}
		default:
			if _, ok := asNonEmptyString(pkg); !ok {
				vs = append(vs, e.violation(e.path("model_package_arn"), "must be a non-empty string"))
			}
		}
	}
	return vs
}

func (v *validator) checkInstances() []Violation {
	var vs []Violation
	for _, e := range v.entries {
		raw, present := e.fields["instance"]
		if e.kind == types.KindEndpoint {
			if present {
				vs = append(vs, e.violation(e.path("instance"), "is not accepted on endpoints"))
			}
			continue
		}
		if !present {
			vs = append(vs, e.violation(e.path("instance"), "is required"))
			continue
		}
		if _, ok := asNonEmptyString(raw); !ok {
			vs = append(vs, e.violation(e.path("instance"), "must be a non-empty string"))
		}
	}
	return vs
}

func (v *validator) checkIntegrationTypes() []Violation {
	var vs []Violation
	for _, e := range v.entries {
		raw, ok := e.fields["integration"]
		if !ok {
			vs = append(vs, e.violation(e.path("integration"), "is required"))
			continue
		}
		integ, ok := asMap(raw)
		if !ok {
			vs = append(vs, e.violation(e.path("integration"), "must be a mapping"))
			continue
		}
		e.integration = integ

		if h, present := integ["headers"]; present {
			if _, ok := asStringList(h); !ok {
				vs = append(vs, e.violation(e.path("integration.headers"), "must be a sequence of non-empty strings"))
			}
		}

		rawType, ok := integ["type"]
		if !ok {
			vs = append(vs, e.violation(e.path("integration.type"), "is required"))
			continue
		}
		s, ok := rawType.(string)
		if !ok {
			vs = append(vs, e.violation(e.path("integration.type"), "must be a string"))
			continue
		}
		t, ok := types.ParseIntegrationType(s)
		if !ok {
			vs = append(vs, Violation{
				Kind:   KindUnsupportedIntegration,
				Entity: e.name,
				Path:   e.path("integration.type"),
				Reason: fmt.Sprintf("unsupported integration type %q, want %q or %q", s, types.IntegrationAPI, types.IntegrationLambda),
			})
			continue
		}
		e.integrationType = t
	}
	return vs
}

func (v *validator) checkMediatedProperties() []Violation {
	var vs []Violation
	for _, e := range v.entries {
		raw, present := e.integration["properties"]
		if e.integrationType == types.IntegrationAPI {
			if present {
				vs = append(vs, e.violation(e.path("integration.properties"), "is only accepted when integration.type is %q", types.IntegrationLambda))
			}
			continue
		}
		if !present {
			vs = append(vs, e.violation(e.path("integration.properties"), "is required when integration.type is %q", types.IntegrationLambda))
			continue
		}
		props, ok := asMap(raw)
		if !ok {
			vs = append(vs, e.violation(e.path("integration.properties"), "must be a mapping"))
			continue
		}
		vs = append(vs, checkProperties(e, props)...)
	}
	return vs
}

func checkProperties(e *entry, props map[string]any) []Violation {
	var vs []Violation
	field := func(name string) string { return e.path("integration.properties." + name) }

	if raw, ok := props["code"]; !ok {
		vs = append(vs, e.violation(field("code"), "is required"))
	} else if _, ok := asNonEmptyString(raw); !ok {
		vs = append(vs, e.violation(field("code"), "must be a non-empty string"))
	}

	if raw, ok := props["permissions"]; !ok {
		vs = append(vs, e.violation(field("permissions"), "is required"))
	} else if perms, ok := asStringList(raw); !ok {
		vs = append(vs, e.violation(field("permissions"), "must be a sequence of non-empty strings"))
	} else if len(perms) == 0 {
		vs = append(vs, e.violation(field("permissions"), "must not be empty"))
	} else {
		seen := make(map[string]bool, len(perms))
		for _, p := range perms {
			if seen[p] {
				vs = append(vs, e.violation(field("permissions"), "duplicate permission %q", p))
			}
			seen[p] = true
		}
	}

	if raw, ok := props["timeout"]; !ok {
		vs = append(vs, e.violation(field("timeout"), "is required"))
	} else if _, ok := asPositiveInt(raw); !ok {
		vs = append(vs, e.violation(field("timeout"), "must be a positive integer"))
	}

	if raw, ok := props["memory"]; ok {
		if _, ok := asPositiveInt(raw); !ok {
			vs = append(vs, e.violation(field("memory"), "must be a positive integer"))
		}
	}
	if raw, ok := props["layers"]; ok {
		if _, ok := asStringList(raw); !ok {
			vs = append(vs, e.violation(field("layers"), "must be a sequence of non-empty strings"))
		}
	}
	if raw, ok := props["runtime"]; ok {
		if _, ok := asNonEmptyString(raw); !ok {
			vs = append(vs, e.violation(field("runtime"), "must be a non-empty string"))
		}
	}
	if raw, ok := props["environment"]; ok {
		if _, ok := asStringMap(raw); !ok {
			vs = append(vs, e.violation(field("environment"), "must be a mapping of strings"))
		}
	}
	return vs
}

func (v *validator) checkAutoscaling() []Violation {
	var vs []Violation
	for _, e := range v.entries {
		raw, present := e.fields["autoscaling"]
		if !present {
			continue
		}
		if e.kind == types.KindEndpoint {
			vs = append(vs, e.violation(e.path("autoscaling"), "is not accepted on endpoints"))
			continue
		}
		a, ok := asMap(raw)
		if !ok {
			vs = append(vs, e.violation(e.path("autoscaling"), "must be a mapping"))
			continue
		}

		bounds := make(map[string]int, 3)
		for _, key := range []string{"max_capacity", "min_capacity", "invocations_per_instance"} {
			rawVal, ok := a[key]
			if !ok {
				vs = append(vs, e.violation(e.path("autoscaling."+key), "is required"))
				continue
			}
			n, ok := asPositiveInt(rawVal)
			if !ok {
				vs = append(vs, e.violation(e.path("autoscaling."+key), "must be a positive integer"))
				continue
			}
			bounds[key] = n
		}

		minCap, minOK := bounds["min_capacity"]
		maxCap, maxOK := bounds["max_capacity"]
		if minOK && maxOK && minCap > maxCap {
			vs = append(vs, e.violation(e.path("autoscaling.min_capacity"), "min_capacity (%d) exceeds max_capacity (%d)", minCap, maxCap))
		}
	}
	return vs
}

// decode converts entries that passed every category. Lookups cannot fail here.
func (v *validator) decode() *Document {
	doc := &Document{
		Models:    []RawModel{},
		Endpoints: []RawEndpoint{},
	}
	for _, e := range v.entries {
		integ := decodeIntegration(e)
		switch e.kind {
		case types.KindModel:
			m := RawModel{
				Location:    e.location,
				Name:        e.name,
				Integration: integ,
			}
			m.ModelID, _ = asNonEmptyString(e.fields["model_id"])
			m.ModelPackageARN, _ = asNonEmptyString(e.fields["model_package_arn"])
			m.Instance, _ = asNonEmptyString(e.fields["instance"])
			if raw, ok := e.fields["autoscaling"]; ok {
				a, _ := asMap(raw)
				m.Autoscaling = &RawAutoscaling{}
				m.Autoscaling.MaxCapacity, _ = asInt(a["max_capacity"])
				m.Autoscaling.MinCapacity, _ = asInt(a["min_capacity"])
				m.Autoscaling.InvocationsPerInstance, _ = asInt(a["invocations_per_instance"])
			}
			doc.Models = append(doc.Models, m)
		case types.KindEndpoint:
			doc.Endpoints = append(doc.Endpoints, RawEndpoint{
				Location:    e.location,
				Name:        e.name,
				Integration: integ,
			})
		}
	}
	return doc
}

func decodeIntegration(e *entry) RawIntegration {
	integ := RawIntegration{Type: string(e.integrationType)}
	if raw, ok := e.integration["headers"]; ok {
		integ.Headers, _ = asStringList(raw)
	}
	if e.integrationType != types.IntegrationLambda {
		return integ
	}

	props, _ := asMap(e.integration["properties"])
	p := &RawProperties{}
	p.Code, _ = asNonEmptyString(props["code"])
	p.Permissions, _ = asStringList(props["permissions"])
	p.Timeout, _ = asInt(props["timeout"])
	if raw, ok := props["memory"]; ok {
		n, _ := asInt(raw)
		p.Memory = &n
	}
	if raw, ok := props["layers"]; ok {
		p.Layers, _ = asStringList(raw)
	}
	if raw, ok := props["runtime"]; ok {
		s, _ := asNonEmptyString(raw)
		p.Runtime = &s
	}
	if raw, ok := props["environment"]; ok {
		p.Environment, _ = asStringMap(raw)
	}
	integ.Properties = p
	return integ
}
