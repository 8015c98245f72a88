package types

// IntegrationType is the user-facing tag of an integration.
type IntegrationType string

const (
	IntegrationAPI    IntegrationType = "api"
	IntegrationLambda IntegrationType = "lambda"
)

func ParseIntegrationType(s string) (IntegrationType, bool) {
	switch IntegrationType(s) {
	case IntegrationAPI, IntegrationLambda:
		return IntegrationType(s), true
	default:
		return "", false
	}
}

// Integration is a closed sum over *Direct and *Mediated. Switch on the
// concrete type; there are no other implementations.
type Integration interface {
	Type() IntegrationType
	PassthroughHeaders() []string
	isIntegration()
}

// Direct routes requests straight to the hosting resource.
type Direct struct {
	Headers []string `json:"headers"`
}

func (d *Direct) Type() IntegrationType        { return IntegrationAPI }
func (d *Direct) PassthroughHeaders() []string { return d.Headers }
func (*Direct) isIntegration()                 {}

// Mediated routes requests through a per-entity function.
type Mediated struct {
	Headers    []string           `json:"headers"`
	Properties MediatedProperties `json:"properties"`
}

func (m *Mediated) Type() IntegrationType        { return IntegrationLambda }
func (m *Mediated) PassthroughHeaders() []string { return m.Headers }
func (*Mediated) isIntegration()                 {}

// MediatedProperties configures the mediating function. Memory, Layers and
// Runtime stay unset when the document omits them; defaults belong to the
// provisioner.
type MediatedProperties struct {
	Code        string            `json:"code"`
	Permissions []string          `json:"permissions"`
	Timeout     int               `json:"timeout"`
	Memory      *int              `json:"memory,omitempty"`
	Layers      []string          `json:"layers,omitempty"`
	Runtime     *string           `json:"runtime,omitempty"`
	Environment map[string]string `json:"environment,omitempty"`
}
