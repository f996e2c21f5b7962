// Package analysis holds the fit-engine configuration documents fanned out
// per phase bin and the typed plan that drives a batch fit.
package analysis

import (
	"bytes"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Document is a YAML mapping of sections. Key order and comments survive a
// load and write, and encoding is deterministic.
type Document struct {
	root *yaml.Node
	path string
}

// Load reads the document at path.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read analysis config: %w", err)
	}
	doc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	doc.path = path
	return doc, nil
}

// Parse decodes data, which must hold a single top-level mapping. Empty
// input yields an empty document.
func Parse(data []byte) (*Document, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	if root.Kind == 0 {
		root = yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{{Kind: yaml.MappingNode, Tag: "!!map"}}}
	}
	if root.Kind != yaml.DocumentNode || len(root.Content) != 1 || root.Content[0].Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%w: top level is not a mapping", ErrInvalidDocument)
	}
	return &Document{root: &root}, nil
}

// Path returns the file the document was loaded from, if any.
func (d *Document) Path() string { return d.path }

func (d *Document) mapping() *yaml.Node { return d.root.Content[0] }

// Get decodes the value at section.key.
func (d *Document) Get(section, key string) (any, bool) {
	sec := lookup(d.mapping(), section)
	if sec == nil || sec.Kind != yaml.MappingNode {
		return nil, false
	}
	val := lookup(sec, key)
	if val == nil {
		return nil, false
	}
	var out any
	if err := val.Decode(&out); err != nil {
		return nil, false
	}
	return out, true
}

// Float returns section.key as a number.
func (d *Document) Float(section, key string) (float64, bool) {
	v, ok := d.Get(section, key)
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	}
	return 0, false
}

// AddEntry sets section.key to value, creating the section when absent.
// An existing key keeps its position.
func (d *Document) AddEntry(section, key string, value any) error {
	val, err := valueNode(value)
	if err != nil {
		return fmt.Errorf("encode %s.%s: %w", section, key, err)
	}
	top := d.mapping()
	sec := lookup(top, section)
	if sec == nil {
		sec = &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		top.Content = append(top.Content, scalarKey(section), sec)
	}
	if sec.Kind != yaml.MappingNode {
		return fmt.Errorf("%w: %s", ErrNotMapping, section)
	}
	for i := 0; i+1 < len(sec.Content); i += 2 {
		if sec.Content[i].Value == key {
			sec.Content[i+1] = val
			return nil
		}
	}
	sec.Content = append(sec.Content, scalarKey(key), val)
	return nil
}

// Clone returns an independent copy.
func (d *Document) Clone() *Document {
	return &Document{root: cloneNode(d.root), path: d.path}
}

// Bytes encodes the document with two-space indentation.
func (d *Document) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(d.root); err != nil {
		return nil, fmt.Errorf("encode analysis config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode analysis config: %w", err)
	}
	return buf.Bytes(), nil
}

// Write stores the document at path through a temporary file in the same
// directory, so readers never see a partial file.
func (d *Document) Write(path string) error {
	data, err := d.Bytes()
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-*.yaml")
	if err != nil {
		return fmt.Errorf("write analysis config: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write analysis config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("write analysis config: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("write analysis config: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("write analysis config: %w", err)
	}
	return nil
}

func lookup(m *yaml.Node, key string) *yaml.Node {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return m.Content[i+1]
		}
	}
	return nil
}

func scalarKey(s string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: s}
}

// valueNode encodes floats in FormatFloat form so they always read back as
// floats; everything else goes through the yaml encoder.
func valueNode(value any) (*yaml.Node, error) {
	switch v := value.(type) {
	case float64:
		return floatNode(v), nil
	case float32:
		return floatNode(float64(v)), nil
	}
	var n yaml.Node
	if err := n.Encode(value); err != nil {
		return nil, err
	}
	return &n, nil
}

func floatNode(f float64) *yaml.Node {
	var s string
	switch {
	case math.IsNaN(f):
		s = ".nan"
	case math.IsInf(f, 1):
		s = ".inf"
	case math.IsInf(f, -1):
		s = "-.inf"
	default:
		s = FormatFloat(f)
	}
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!float", Value: s}
}

func cloneNode(n *yaml.Node) *yaml.Node {
	if n == nil {
		return nil
	}
	c := *n
	c.Alias = cloneNode(n.Alias)
	if n.Content != nil {
		c.Content = make([]*yaml.Node, len(n.Content))
		for i, child := range n.Content {
			c.Content[i] = cloneNode(child)
		}
	}
	return &c
}

// FormatFloat renders f in its shortest round-trip decimal form, always
// with a fractional part or an exponent: 0 is "0.0", 0.5 is "0.5", values
// below 1e-4 or from 1e16 in magnitude use exponent form ("1e-05").
func FormatFloat(f float64) string {
	if f == 0 {
		if math.Signbit(f) {
			return "-0.0"
		}
		return "0.0"
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
	abs := math.Abs(f)
	if abs < 1e-4 || abs >= 1e16 {
		return strconv.FormatFloat(f, 'e', -1, 64)
	}
	s := strconv.FormatFloat(f, 'f', -1, 64)
	for _, r := range s {
		if r == '.' {
			return s
		}
	}
	return s + ".0"
}
