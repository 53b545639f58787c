// Package mapping normalizes raw XBRL tag names onto canonical metric names.
//
// The table is data, not code: it is loaded from YAML or HJSON and carries, for
// every canonical metric, the ordered list of acceptable source tags. The first
// tag present in a company's facts wins.
package mapping

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	hjson "github.com/hjson/hjson-go/v4"
	"gopkg.in/yaml.v2"
)

//go:embed default_tags.yaml
var defaultTagsYAML []byte

// MetricTags is one row of the table.
type MetricTags struct {
	Name string   `yaml:"name" json:"name"`
	Tags []string `yaml:"tags" json:"tags"`
	// Units overrides the table-wide unit preference for this metric.
	Units []string `yaml:"units,omitempty" json:"units,omitempty"`
	// Flow marks income-statement style metrics that accumulate over a period
	// (as opposed to balance sheet instants).
	Flow bool `yaml:"flow,omitempty" json:"flow,omitempty"`
}

// TagTable maps canonical metric names to ordered source tags.
type TagTable struct {
	Taxonomy string       `yaml:"taxonomy" json:"taxonomy"`
	Units    []string     `yaml:"units" json:"units"`
	Metrics  []MetricTags `yaml:"metrics" json:"metrics"`

	byName map[string]int
	byTag  map[string]string
}

// Default returns the built-in table.
func Default() *TagTable {
	t, err := Parse(defaultTagsYAML, "yaml")
	if err != nil {
		panic(fmt.Sprintf("mapping: embedded default table is invalid: %v", err))
	}
	return t
}

// Load reads a table from disk. Files ending in .hjson or .json are parsed as
// HJSON, anything else as YAML. An empty path returns the default table.
func Load(path string) (*TagTable, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tag table: %w", err)
	}
	format := "yaml"
	switch strings.ToLower(filepath.Ext(path)) {
	case ".hjson", ".json":
		format = "hjson"
	}
	t, err := Parse(data, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// Parse decodes a table in the given format ("yaml" or "hjson") and validates it.
func Parse(data []byte, format string) (*TagTable, error) {
	var t TagTable
	switch format {
	case "yaml":
		if err := yaml.Unmarshal(data, &t); err != nil {
			return nil, fmt.Errorf("parse yaml tag table: %w", err)
		}
	case "hjson":
		if err := hjson.Unmarshal(data, &t); err != nil {
			return nil, fmt.Errorf("parse hjson tag table: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported tag table format %q", format)
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	t.index()
	return &t, nil
}

// Validate checks that every row has a unique name and at least one tag.
func (t *TagTable) Validate() error {
	if len(t.Metrics) == 0 {
		return fmt.Errorf("tag table has no metrics")
	}
	seen := make(map[string]bool, len(t.Metrics))
	for i, m := range t.Metrics {
		name := strings.TrimSpace(m.Name)
		if name == "" {
			return fmt.Errorf("metric #%d has no name", i)
		}
		if seen[name] {
			return fmt.Errorf("duplicate metric %q", name)
		}
		seen[name] = true
		if len(m.Tags) == 0 {
			return fmt.Errorf("metric %q has no tags", name)
		}
	}
	return nil
}

func (t *TagTable) index() {
	if t.Taxonomy == "" {
		t.Taxonomy = "us-gaap"
	}
	t.byName = make(map[string]int, len(t.Metrics))
	t.byTag = make(map[string]string)
	for i, m := range t.Metrics {
		t.byName[m.Name] = i
		for _, tag := range m.Tags {
			// First canonical name claiming a tag keeps it.
			if _, ok := t.byTag[tag]; !ok {
				t.byTag[tag] = m.Name
			}
		}
	}
}

// Names lists canonical metric names in table order.
func (t *TagTable) Names() []string {
	names := make([]string, len(t.Metrics))
	for i, m := range t.Metrics {
		names[i] = m.Name
	}
	return names
}

// Tags returns the ordered source tags for a canonical metric, or nil when the
// metric is unknown.
func (t *TagTable) Tags(canonical string) []string {
	i, ok := t.byName[canonical]
	if !ok {
		return nil
	}
	return append([]string(nil), t.Metrics[i].Tags...)
}

// Metric returns the full row for a canonical metric.
func (t *TagTable) Metric(canonical string) (MetricTags, bool) {
	i, ok := t.byName[canonical]
	if !ok {
		return MetricTags{}, false
	}
	return t.Metrics[i], true
}

// UnitsFor returns the preferred units for a metric in priority order.
func (t *TagTable) UnitsFor(canonical string) []string {
	if m, ok := t.Metric(canonical); ok && len(m.Units) > 0 {
		return m.Units
	}
	if len(t.Units) > 0 {
		return t.Units
	}
	return []string{"USD", "pure"}
}

// IsFlow reports whether the metric accumulates over its period.
func (t *TagTable) IsFlow(canonical string) bool {
	m, ok := t.Metric(canonical)
	return ok && m.Flow
}

// Resolve returns the first tag for canonical that available reports as
// present.
func (t *TagTable) Resolve(canonical string, available func(tag string) bool) (string, bool) {
	i, ok := t.byName[canonical]
	if !ok {
		return "", false
	}
	for _, tag := range t.Metrics[i].Tags {
		if available(tag) {
			return tag, true
		}
	}
	return "", false
}

// Canonical maps a raw tag back to its canonical metric name.
func (t *TagTable) Canonical(tag string) (string, bool) {
	name, ok := t.byTag[tag]
	return name, ok
}
