package graph

import "strings"

// NodeKind is the type of an infrastructure resource in the graph.
type NodeKind string

const (
	KindPermissionGrant NodeKind = "permission_grant"
	KindFunction        NodeKind = "mediating_function"
	KindHosting         NodeKind = "hosting"
	KindAdapter         NodeKind = "integration_adapter"
	KindScalingPolicy   NodeKind = "scaling_policy"
	KindRoute           NodeKind = "route"
)

// Kinds lists every node kind in emission order.
var Kinds = []NodeKind{
	KindPermissionGrant,
	KindFunction,
	KindHosting,
	KindAdapter,
	KindScalingPolicy,
	KindRoute,
}

// Tier is the emission rank of a kind. A node may only depend on nodes of
// the same or a lower tier.
func (k NodeKind) Tier() int {
	for i, kind := range Kinds {
		if kind == k {
			return i
		}
	}
	return -1
}

// NodeID identifies a node. IDs are derived from the owning entity name, so
// the same configuration always yields the same IDs.
type NodeID string

// NewID builds "<owner>/<kind>[/<qualifier>...]".
func NewID(owner string, kind NodeKind, qualifiers ...string) NodeID {
	parts := append([]string{owner, string(kind)}, qualifiers...)
	return NodeID(strings.Join(parts, "/"))
}

// Node is one resource. Attributes carry the provisioning settings for the
// resource and must be JSON-encodable.
type Node struct {
	ID         NodeID         `json:"id" yaml:"id"`
	Kind       NodeKind       `json:"kind" yaml:"kind"`
	Owner      string         `json:"owner" yaml:"owner"`
	Attributes map[string]any `json:"attributes,omitempty" yaml:"attributes,omitempty"`
	DependsOn  []NodeID       `json:"depends_on,omitempty" yaml:"depends_on,omitempty"`
}

// Edge is a dependency between two arena slots: From depends on To.
type Edge struct {
	From int
	To   int
}
