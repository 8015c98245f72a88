package synth

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/af-corp/mlapi/internal/graph"
	"github.com/af-corp/mlapi/internal/router"
)

const ManifestVersion = "mlapi.manifest/v1"

// Manifest is the output of one synthesis run: the route table and the
// resource graph in emission order, handed to the provisioner as a unit.
type Manifest struct {
	Version   string        `json:"version" yaml:"version"`
	Digest    string        `json:"digest" yaml:"digest"`
	Routes    *router.Table `json:"routes" yaml:"routes"`
	Resources []graph.Node  `json:"resources" yaml:"resources"`

	graph *graph.Graph
}

// digestBody is the part of the manifest covered by the digest.
type digestBody struct {
	Version   string        `json:"version"`
	Routes    *router.Table `json:"routes"`
	Resources []graph.Node  `json:"resources"`
}

func newManifest(g *graph.Graph, routes *router.Table) (*Manifest, error) {
	m := &Manifest{
		Version:   ManifestVersion,
		Routes:    routes,
		Resources: g.Nodes(),
		graph:     g,
	}
	body, err := json.Marshal(digestBody{Version: m.Version, Routes: m.Routes, Resources: m.Resources})
	if err != nil {
		return nil, fmt.Errorf("encode manifest: %w", err)
	}
	sum := sha256.Sum256(body)
	m.Digest = hex.EncodeToString(sum[:])
	return m, nil
}

// Graph returns the resource graph. It is nil on a manifest decoded from
// its serialized form.
func (m *Manifest) Graph() *graph.Graph { return m.graph }

// Format is a manifest serialization.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatJSON, FormatYAML:
		return Format(s), nil
	case "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unknown output format %q (use json or yaml)", s)
	}
}

// Encode writes the manifest in the given format.
func (m *Manifest) Encode(w io.Writer, format Format) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(m)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(m); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

// InputDigest fingerprints a raw configuration document. Map keys are
// encoded in sorted order, so equal documents share a digest.
func InputDigest(doc any) (string, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("encode document: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
