// Package events holds photon event tables, spacecraft tables and the
// observations that pair them.
package events

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// Card is one header keyword.
type Card struct {
	Key     string `json:"key"`
	Value   string `json:"value"`
	Comment string `json:"comment,omitempty"`
}

// Header is an ordered keyword store. Keys are case-sensitive and unique.
type Header struct {
	cards []Card
}

// NewHeader builds a header from cards; later duplicates replace earlier ones.
func NewHeader(cards ...Card) *Header {
	h := &Header{}
	for _, c := range cards {
		h.Set(c.Key, c.Value, c.Comment)
	}
	return h
}

// Cards returns a copy of the header cards in order.
func (h *Header) Cards() []Card {
	return append([]Card(nil), h.cards...)
}

// Len returns the number of cards.
func (h *Header) Len() int { return len(h.cards) }

// Get returns the value stored under key.
func (h *Header) Get(key string) (string, bool) {
	if i := h.index(key); i >= 0 {
		return h.cards[i].Value, true
	}
	return "", false
}

// Float parses the value stored under key.
func (h *Header) Float(key string) (float64, error) {
	v, ok := h.Get(key)
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrKeyNotFound, key)
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return 0, fmt.Errorf("parse header %s: %w", key, err)
	}
	return f, nil
}

// Set replaces the value of key in place, or appends a new card.
func (h *Header) Set(key, value, comment string) {
	if i := h.index(key); i >= 0 {
		h.cards[i].Value = value
		if comment != "" {
			h.cards[i].Comment = comment
		}
		return
	}
	h.cards = append(h.cards, Card{Key: key, Value: value, Comment: comment})
}

// Delete removes key, reporting whether it was present.
func (h *Header) Delete(key string) bool {
	i := h.index(key)
	if i < 0 {
		return false
	}
	h.cards = append(h.cards[:i], h.cards[i+1:]...)
	return true
}

// Clone returns a deep copy.
func (h *Header) Clone() *Header {
	return &Header{cards: h.Cards()}
}

func (h *Header) index(key string) int {
	for i, c := range h.cards {
		if c.Key == key {
			return i
		}
	}
	return -1
}

// Column is a named numeric column. Format keeps the on-disk type code
// (for example "D" or "J"); values are always held as float64.
type Column struct {
	Name   string
	Format string
	Unit   string
	Values []float64
}

// EventsExtension names the event table itself within a container.
const EventsExtension = "EVENTS"

// Extension is a named table kept alongside the events in the same
// container, such as the good time intervals. Writers carry every
// extension through unchanged.
type Extension struct {
	Name  string
	Table *Table
}

// Table is a header plus equal-length columns, and the extensions stored
// with it.
type Table struct {
	Header     *Header
	Columns    []Column
	Extensions []Extension
}

// NewTable builds a table and checks column lengths.
func NewTable(header *Header, cols ...Column) (*Table, error) {
	if header == nil {
		header = NewHeader()
	}
	t := &Table{Header: header}
	for _, c := range cols {
		if err := t.SetColumn(c); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// NumRows returns the row count, zero for a table without columns.
func (t *Table) NumRows() int {
	if len(t.Columns) == 0 {
		return 0
	}
	return len(t.Columns[0].Values)
}

// ColumnNames returns the column names in order.
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// HasColumn reports whether a column called name exists.
func (t *Table) HasColumn(name string) bool {
	return t.columnIndex(name) >= 0
}

// Column returns the column called name.
func (t *Table) Column(name string) (Column, error) {
	i := t.columnIndex(name)
	if i < 0 {
		return Column{}, fmt.Errorf("%w: %s", ErrColumnNotFound, name)
	}
	return t.Columns[i], nil
}

// SetColumn replaces the column with the same name in place, or appends it.
func (t *Table) SetColumn(c Column) error {
	if len(t.Columns) > 0 && len(c.Values) != t.NumRows() {
		if !(len(t.Columns) == 1 && t.Columns[0].Name == c.Name) {
			return fmt.Errorf("%w: %s has %d values, table has %d rows", ErrColumnLength, c.Name, len(c.Values), t.NumRows())
		}
	}
	if c.Format == "" {
		c.Format = "D"
	}
	c.Values = append([]float64(nil), c.Values...)
	if i := t.columnIndex(c.Name); i >= 0 {
		t.Columns[i] = c
		return nil
	}
	t.Columns = append(t.Columns, c)
	return nil
}

// Extension returns the extension called name.
func (t *Table) Extension(name string) (*Table, bool) {
	for _, ext := range t.Extensions {
		if ext.Name == name {
			return ext.Table, true
		}
	}
	return nil, false
}

// SetExtension replaces the extension called name in place, or appends it.
func (t *Table) SetExtension(name string, ext *Table) {
	for i := range t.Extensions {
		if t.Extensions[i].Name == name {
			t.Extensions[i].Table = ext
			return
		}
	}
	t.Extensions = append(t.Extensions, Extension{Name: name, Table: ext})
}

// Clone returns a deep copy, extensions included.
func (t *Table) Clone() *Table {
	out := &Table{Header: t.Header.Clone(), Columns: make([]Column, len(t.Columns))}
	for i, c := range t.Columns {
		c.Values = append([]float64(nil), c.Values...)
		out.Columns[i] = c
	}
	for _, ext := range t.Extensions {
		out.Extensions = append(out.Extensions, Extension{Name: ext.Name, Table: ext.Table.Clone()})
	}
	return out
}

func (t *Table) columnIndex(name string) int {
	for i, c := range t.Columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// WriteOptions controls how a Store persists a table.
type WriteOptions struct {
	// InPlace updates an existing container instead of creating a new one.
	InPlace bool
	// Overwrite allows replacing an existing file when InPlace is false.
	Overwrite bool
	// Checksum records a content digest in the header.
	Checksum bool
}

// Store reads and writes event containers.
type Store interface {
	Read(ctx context.Context, path string) (*Table, error)
	Write(ctx context.Context, path string, t *Table, opts WriteOptions) error
}
