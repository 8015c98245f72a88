package types

// EntityKind distinguishes models deployed by the synthesis run from
// endpoints that already exist and are only adopted into the routing surface.
type EntityKind string

const (
	KindModel    EntityKind = "model"
	KindEndpoint EntityKind = "endpoint"
)

// SourceKind says where a model's artifacts come from. It selects the
// provisioning path only; routing never looks at it.
type SourceKind string

const (
	SourceModelID      SourceKind = "model_id"
	SourceModelPackage SourceKind = "model_package_arn"
)

// ModelSource is exactly one of model_id or model_package_arn.
type ModelSource struct {
	Kind  SourceKind `json:"kind"`
	Value string     `json:"value"`
}

// AutoscalingSpec bounds the instance count of a model and sets the
// invocations-per-instance target that scaling tracks.
type AutoscalingSpec struct {
	MaxCapacity            int `json:"max_capacity"`
	MinCapacity            int `json:"min_capacity"`
	InvocationsPerInstance int `json:"invocations_per_instance"`
}

// ModelSpec is the canonical form of one deployable model.
type ModelSpec struct {
	Name        string           `json:"name"`
	Source      ModelSource      `json:"source"`
	Instance    string           `json:"instance"`
	Autoscaling *AutoscalingSpec `json:"autoscaling,omitempty"`
	Integration Integration      `json:"integration"`
}

// EndpointSpec is the canonical form of an already hosted endpoint.
type EndpointSpec struct {
	Name        string      `json:"name"`
	Integration Integration `json:"integration"`
}

// Entity is the common view over models and endpoints used by everything
// downstream of the descriptor builders.
type Entity interface {
	EntityName() string
	EntityKind() EntityKind
	EntityIntegration() Integration
}

func (m *ModelSpec) EntityName() string             { return m.Name }
func (m *ModelSpec) EntityKind() EntityKind         { return KindModel }
func (m *ModelSpec) EntityIntegration() Integration { return m.Integration }

func (e *EndpointSpec) EntityName() string             { return e.Name }
func (e *EndpointSpec) EntityKind() EntityKind         { return KindEndpoint }
func (e *EndpointSpec) EntityIntegration() Integration { return e.Integration }

// Document is the full set of descriptors for one synthesis run, in file order.
type Document struct {
	Models    []*ModelSpec    `json:"models"`
	Endpoints []*EndpointSpec `json:"endpoints"`
}

// Entities returns models first, then endpoints, each in file order.
func (d *Document) Entities() []Entity {
	out := make([]Entity, 0, len(d.Models)+len(d.Endpoints))
	for _, m := range d.Models {
		out = append(out, m)
	}
	for _, e := range d.Endpoints {
		out = append(out, e)
	}
	return out
}

// HostingEndpointName is the name of the inference endpoint that serves an
// entity. Models get a derived name; endpoints already have one.
func HostingEndpointName(e Entity) string {
	if e.EntityKind() == KindModel {
		return e.EntityName() + "-endpoint"
	}
	return e.EntityName()
}
