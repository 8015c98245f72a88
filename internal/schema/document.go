package schema

// Document is the typed form of a configuration that passed validation. It
// keeps the user's shape (optional fields stay optional) and the location of
// every entry so later stages can report against the source.
type Document struct {
	Models    []RawModel
	Endpoints []RawEndpoint
}

type RawModel struct {
	Location        string
	Name            string
	ModelID         string
	ModelPackageARN string
	Instance        string
	Autoscaling     *RawAutoscaling
	Integration     RawIntegration
}

type RawEndpoint struct {
	Location    string
	Name        string
	Integration RawIntegration
}

type RawAutoscaling struct {
	MaxCapacity            int
	MinCapacity            int
	InvocationsPerInstance int
}

type RawIntegration struct {
	Type string
	// Headers is nil when the document omits the field.
	Headers    []string
	Properties *RawProperties
}

type RawProperties struct {
	Code        string
	Permissions []string
	Timeout     int
	Memory      *int
	Layers      []string
	Runtime     *string
	Environment map[string]string
}
