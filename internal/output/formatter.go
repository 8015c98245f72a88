// Package output renders synthesis results for the mlapi CLI.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/olekukonko/tablewriter"
	"gopkg.in/yaml.v3"

	"github.com/af-corp/mlapi/internal/graph"
	"github.com/af-corp/mlapi/internal/router"
	"github.com/af-corp/mlapi/internal/schema"
)

const (
	FormatTable = "table"
	FormatJSON  = "json"
	FormatYAML  = "yaml"
)

type Formatter struct {
	format string
	w      io.Writer
}

func NewFormatter(w io.Writer, format string) *Formatter {
	if format == "" {
		format = FormatTable
	}
	return &Formatter{format: format, w: w}
}

// PrintRoutes prints the route table.
func (f *Formatter) PrintRoutes(t *router.Table) error {
	switch f.format {
	case FormatJSON:
		return f.printJSON(t)
	case FormatYAML:
		return f.printYAML(t)
	case FormatTable:
		return f.printRoutesTable(t)
	default:
		return fmt.Errorf("unsupported output format: %s", f.format)
	}
}

// PrintResources prints a per-kind summary of the resource graph.
func (f *Formatter) PrintResources(nodes []graph.Node) error {
	counts := make(map[graph.NodeKind]int)
	for _, n := range nodes {
		counts[n.Kind]++
	}
	switch f.format {
	case FormatJSON:
		return f.printJSON(counts)
	case FormatYAML:
		return f.printYAML(counts)
	case FormatTable:
		table := f.newTable([]string{"KIND", "COUNT"})
		for _, k := range graph.Kinds {
			if counts[k] == 0 {
				continue
			}
			table.Append([]string{string(k), fmt.Sprintf("%d", counts[k])})
		}
		table.Render()
		return nil
	default:
		return fmt.Errorf("unsupported output format: %s", f.format)
	}
}

// PrintViolations prints every violation of a rejected document.
func (f *Formatter) PrintViolations(vs []schema.Violation) error {
	switch f.format {
	case FormatJSON:
		return f.printJSON(vs)
	case FormatYAML:
		return f.printYAML(vs)
	case FormatTable:
		table := f.newTable([]string{"KIND", "ENTITY", "PATH", "REASON"})
		for _, v := range vs {
			table.Append([]string{string(v.Kind), v.Entity, v.Path, v.Reason})
		}
		table.Render()
		return nil
	default:
		return fmt.Errorf("unsupported output format: %s", f.format)
	}
}

func (f *Formatter) printRoutesTable(t *router.Table) error {
	if t == nil || t.Len() == 0 {
		fmt.Fprintln(f.w, "No routes")
		return nil
	}
	table := f.newTable([]string{"NAME", "KIND", "PATH", "INTEGRATION", "HEADERS"})
	for _, r := range t.Routes() {
		table.Append([]string{
			r.Name,
			string(r.Kind),
			r.Path,
			string(r.IntegrationType),
			strings.Join(r.Headers, ", "),
		})
	}
	table.Render()
	return nil
}

func (f *Formatter) newTable(header []string) *tablewriter.Table {
	table := tablewriter.NewWriter(f.w)
	table.SetHeader(header)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(false)
	table.SetBorder(true)
	return table
}

func (f *Formatter) printJSON(data interface{}) error {
	encoder := json.NewEncoder(f.w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

func (f *Formatter) printYAML(data interface{}) error {
	encoder := yaml.NewEncoder(f.w)
	encoder.SetIndent(2)
	if err := encoder.Encode(data); err != nil {
		return err
	}
	return encoder.Close()
}
