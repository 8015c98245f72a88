// Package router assembles the route table: one externally addressable path
// per model or endpoint, bound to the integration adapter that serves it.
package router

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/samber/lo"

	"github.com/af-corp/mlapi/internal/graph"
	"github.com/af-corp/mlapi/internal/types"
)

// ImplicitHeaders are passed through on every route ahead of user headers.
var ImplicitHeaders = []string{"Content-Type", "Accept"}

// Route is the compiled routing entry for one entity.
type Route struct {
	Name            string                `json:"name" yaml:"name"`
	Kind            types.EntityKind      `json:"kind" yaml:"kind"`
	Path            string                `json:"path" yaml:"path"`
	IntegrationType types.IntegrationType `json:"integration_type" yaml:"integration_type"`
	IntegrationRef  graph.NodeID          `json:"integration_ref" yaml:"integration_ref"`
	Headers         []string              `json:"headers" yaml:"headers"`
}

// Path is the route path for a validated name.
func Path(name string) string { return "/" + name }

// ComposeHeaders returns the implicit headers followed by the user headers,
// keeping the first occurrence of each header. Header names compare
// case-insensitively.
func ComposeHeaders(user []string) []string {
	all := make([]string, 0, len(ImplicitHeaders)+len(user))
	all = append(all, ImplicitHeaders...)
	all = append(all, user...)
	return lo.UniqBy(all, strings.ToLower)
}

// Table maps names to routes and iterates in insertion order.
type Table struct {
	routes []Route
	index  map[string]int
}

func NewTable() *Table {
	return &Table{index: make(map[string]int)}
}

func (t *Table) Add(r Route) error {
	if _, exists := t.index[r.Name]; exists {
		return fmt.Errorf("route %q already registered", r.Name)
	}
	t.index[r.Name] = len(t.routes)
	t.routes = append(t.routes, r)
	return nil
}

func (t *Table) Get(name string) (Route, bool) {
	i, ok := t.index[name]
	if !ok {
		return Route{}, false
	}
	return t.routes[i], true
}

// Routes returns the routes in table order. Callers must not modify them.
func (t *Table) Routes() []Route { return t.routes }

func (t *Table) Names() []string {
	return lo.Map(t.routes, func(r Route, _ int) string { return r.Name })
}

func (t *Table) Len() int { return len(t.routes) }

func (t *Table) MarshalJSON() ([]byte, error) {
	if t.routes == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(t.routes)
}

func (t *Table) UnmarshalJSON(data []byte) error {
	var routes []Route
	if err := json.Unmarshal(data, &routes); err != nil {
		return err
	}
	*t = *NewTable()
	for _, r := range routes {
		if err := t.Add(r); err != nil {
			return err
		}
	}
	return nil
}

func (t *Table) MarshalYAML() (any, error) {
	if t.routes == nil {
		return []Route{}, nil
	}
	return t.routes, nil
}
