// Package realtime carries row-level change notifications from the comment
// store to subscribed clients.
//
// A Change mirrors one committed write: its event type, the table it touched
// and the row's new and/or old values as JSON. Subscribers select changes with
// a Filter of the form "column=eq.value".
package realtime

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// EventType tags a change with the kind of write that produced it.
type EventType string

const (
	EventInsert EventType = "INSERT"
	EventUpdate EventType = "UPDATE"
	EventDelete EventType = "DELETE"
)

// DefaultSchema is the schema name stamped on every change.
const DefaultSchema = "public"

// Change is a single row-level notification.
type Change struct {
	Type            EventType       `json:"eventType"`
	Schema          string          `json:"schema"`
	Table           string          `json:"table"`
	New             json.RawMessage `json:"new,omitempty"`
	Old             json.RawMessage `json:"old,omitempty"`
	CommitTimestamp time.Time       `json:"commit_timestamp"`
}

// NewChange builds a change for table, marshaling the given rows.
// Either row may be nil.
func NewChange(typ EventType, table string, newRow, oldRow interface{}) (Change, error) {
	c := Change{
		Type:            typ,
		Schema:          DefaultSchema,
		Table:           table,
		CommitTimestamp: time.Now().UTC(),
	}

	if newRow != nil {
		data, err := json.Marshal(newRow)
		if err != nil {
			return Change{}, fmt.Errorf("marshaling new row: %w", err)
		}
		c.New = data
	}
	if oldRow != nil {
		data, err := json.Marshal(oldRow)
		if err != nil {
			return Change{}, fmt.Errorf("marshaling old row: %w", err)
		}
		c.Old = data
	}

	return c, nil
}

// Filter selects changes for one table, optionally narrowed by a column
// predicate. The zero Column matches every row of the table.
type Filter struct {
	Table  string
	Column string
	Op     string // "eq" or "neq"
	Value  string
}

// ParseFilter parses a predicate such as "is_pinned=eq.false" for table.
// An empty expr yields a table-wide filter.
func ParseFilter(table, expr string) (Filter, error) {
	if table == "" {
		return Filter{}, fmt.Errorf("table is required")
	}
	f := Filter{Table: table}
	if expr == "" {
		return f, nil
	}

	column, rest, ok := strings.Cut(expr, "=")
	if !ok || column == "" {
		return Filter{}, fmt.Errorf("invalid filter %q: expected column=op.value", expr)
	}
	op, value, ok := strings.Cut(rest, ".")
	if !ok {
		return Filter{}, fmt.Errorf("invalid filter %q: expected column=op.value", expr)
	}
	if op != "eq" && op != "neq" {
		return Filter{}, fmt.Errorf("invalid filter %q: unsupported operator %q", expr, op)
	}

	f.Column = column
	f.Op = op
	f.Value = value
	return f, nil
}

// Predicate returns the filter expression without the table, or "" when
// the filter is table-wide.
func (f Filter) Predicate() string {
	if f.Column == "" {
		return ""
	}
	return fmt.Sprintf("%s=%s.%s", f.Column, f.Op, f.Value)
}

// String implements fmt.Stringer.
func (f Filter) String() string {
	if p := f.Predicate(); p != "" {
		return f.Table + ":" + p
	}
	return f.Table
}

// Match reports whether c passes the filter. INSERT and UPDATE are matched
// against the new row, DELETE against the old row.
func (f Filter) Match(c Change) bool {
	if c.Table != f.Table {
		return false
	}
	if f.Column == "" {
		return true
	}

	row := c.New
	if c.Type == EventDelete {
		row = c.Old
	}
	if len(row) == 0 {
		return false
	}

	var fields map[string]interface{}
	if err := json.Unmarshal(row, &fields); err != nil {
		return false
	}
	v, ok := fields[f.Column]
	if !ok {
		return false
	}

	equal := formatValue(v) == f.Value
	if f.Op == "neq" {
		return !equal
	}
	return equal
}

// formatValue renders a decoded JSON value the way it appears in a filter.
func formatValue(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case bool:
		return strconv.FormatBool(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case string:
		return x
	default:
		data, err := json.Marshal(x)
		if err != nil {
			return ""
		}
		return string(data)
	}
}
