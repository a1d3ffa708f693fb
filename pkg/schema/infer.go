package schema

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
)

// Kind is a position in the type lattice used while sampling values.
type Kind uint8

const (
	KindNull Kind = iota
	KindBoolean
	KindInt64
	KindFloat64
	KindDate32
	KindTimestamp     // millisecond precision
	KindTimestampNano // sub-millisecond fractions were observed
	KindUtf8
	KindList
	KindStruct
)

var kindNames = [...]string{
	KindNull:          "null",
	KindBoolean:       "boolean",
	KindInt64:         "int64",
	KindFloat64:       "float64",
	KindDate32:        "date32",
	KindTimestamp:     "timestamp[ms]",
	KindTimestampNano: "timestamp[ns]",
	KindUtf8:          "utf8",
	KindList:          "list",
	KindStruct:        "struct",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", k)
}

const dateLayout = "2006-01-02"

// floatPattern accepts decimal and exponent notation only, so that strings
// like "NaN", "Inf" or hex floats stay text.
var floatPattern = regexp.MustCompile(`^[-+]?(\d+\.\d*|\.\d+|\d+)([eE][-+]?\d+)?$`)

// ClassifyText returns the narrowest kind that can represent the textual
// value v. v must already be known to be non-null.
func ClassifyText(v string) Kind {
	switch v {
	case "true", "TRUE", "True", "false", "FALSE", "False":
		return KindBoolean
	}
	if _, err := strconv.ParseInt(v, 10, 64); err == nil {
		return KindInt64
	}
	if floatPattern.MatchString(v) {
		if _, err := strconv.ParseFloat(v, 64); err == nil {
			return KindFloat64
		}
	}
	if len(v) == len(dateLayout) {
		if _, err := time.Parse(dateLayout, v); err == nil {
			return KindDate32
		}
	}
	if len(v) > len(dateLayout) {
		if _, err := arrow.TimestampFromString(v, arrow.Millisecond); err == nil {
			return KindTimestamp
		}
		if _, err := arrow.TimestampFromString(v, arrow.Nanosecond); err == nil {
			return KindTimestampNano
		}
	}
	return KindUtf8
}

// Widen returns the narrowest kind able to hold values of both a and b.
// Composite kinds only widen with themselves; any other mix is text.
func Widen(a, b Kind) Kind {
	switch {
	case a == b:
		return a
	case a == KindNull:
		return b
	case b == KindNull:
		return a
	}
	if a > b {
		a, b = b, a
	}
	switch {
	case a == KindInt64 && b == KindFloat64:
		return KindFloat64
	case a == KindDate32 && (b == KindTimestamp || b == KindTimestampNano):
		return b
	case a == KindTimestamp && b == KindTimestampNano:
		return KindTimestampNano
	}
	return KindUtf8
}

// Node accumulates observations for one column, or for one nested position
// inside a JSON value. The zero value has observed nothing.
type Node struct {
	kind   Kind
	elem   *Node
	names  []string
	fields map[string]*Node
}

// NewNode returns an empty node.
func NewNode() *Node {
	return &Node{}
}

// Kind returns the widened kind observed so far.
func (n *Node) Kind() Kind {
	return n.kind
}

// Observe widens the node with a scalar kind.
func (n *Node) Observe(k Kind) {
	if k == KindNull {
		return
	}
	if n.kind == KindList || n.kind == KindStruct {
		n.collapse()
		return
	}
	n.kind = Widen(n.kind, k)
}

// ObserveText classifies v and widens the node with the result.
func (n *Node) ObserveText(v string) {
	n.Observe(ClassifyText(v))
}

// Elem marks the node as a list and returns the node collecting its
// elements. If the node already holds something other than a list it
// collapses to text and a detached node is returned, so callers can keep
// walking the value without special cases.
func (n *Node) Elem() *Node {
	switch n.kind {
	case KindNull:
		n.kind = KindList
		n.elem = NewNode()
	case KindList:
	default:
		n.collapse()
		return NewNode()
	}
	return n.elem
}

// Field marks the node as a struct and returns the child node for name,
// creating it in first-seen order. Collapsed nodes return a detached child.
func (n *Node) Field(name string) *Node {
	switch n.kind {
	case KindNull:
		n.kind = KindStruct
		n.fields = make(map[string]*Node)
	case KindStruct:
	default:
		n.collapse()
		return NewNode()
	}
	child, ok := n.fields[name]
	if !ok {
		child = NewNode()
		n.fields[name] = child
		n.names = append(n.names, name)
	}
	return child
}

// Names returns the child names of a struct node in first-seen order.
func (n *Node) Names() []string {
	return n.names
}

// EnsureStruct marks an empty node as a struct without adding children.
func (n *Node) EnsureStruct() {
	if n.kind == KindNull {
		n.kind = KindStruct
		n.fields = make(map[string]*Node)
	} else if n.kind != KindStruct {
		n.collapse()
	}
}

func (n *Node) collapse() {
	n.kind = KindUtf8
	n.elem = nil
	n.names = nil
	n.fields = nil
}

// DataType maps the observations to an Arrow type. Columns that only saw
// nulls become Utf8, as do structs without any fields.
func (n *Node) DataType() arrow.DataType {
	switch n.kind {
	case KindBoolean:
		return arrow.FixedWidthTypes.Boolean
	case KindInt64:
		return arrow.PrimitiveTypes.Int64
	case KindFloat64:
		return arrow.PrimitiveTypes.Float64
	case KindDate32:
		return arrow.FixedWidthTypes.Date32
	case KindTimestamp:
		return &arrow.TimestampType{Unit: arrow.Millisecond}
	case KindTimestampNano:
		return &arrow.TimestampType{Unit: arrow.Nanosecond}
	case KindList:
		return arrow.ListOfField(arrow.Field{Name: "item", Type: n.elem.DataType(), Nullable: true})
	case KindStruct:
		if len(n.names) == 0 {
			return arrow.BinaryTypes.String
		}
		return arrow.StructOf(n.Fields()...)
	default:
		return arrow.BinaryTypes.String
	}
}

// Fields returns the nullable child fields of a struct node.
func (n *Node) Fields() []arrow.Field {
	fields := make([]arrow.Field, len(n.names))
	for i, name := range n.names {
		fields[i] = arrow.Field{Name: name, Type: n.fields[name].DataType(), Nullable: true}
	}
	return fields
}

// Schema returns the schema described by a struct node's children.
func (n *Node) Schema() *arrow.Schema {
	return arrow.NewSchema(n.Fields(), nil)
}

// Utf8Schema returns a schema of nullable Utf8 fields with the given names.
// It is the result of inference with a zero sample cap.
func Utf8Schema(names []string) *arrow.Schema {
	fields := make([]arrow.Field, len(names))
	for i, name := range names {
		fields[i] = arrow.Field{Name: name, Type: arrow.BinaryTypes.String, Nullable: true}
	}
	return arrow.NewSchema(fields, nil)
}

// UniqueNames returns names with duplicates disambiguated by a numeric
// suffix ("a", "a_2", "a_3") and empty names replaced by column_N.
func UniqueNames(names []string) []string {
	out := make([]string, len(names))
	seen := make(map[string]bool, len(names))
	for i, name := range names {
		if name == "" {
			name = fmt.Sprintf("column_%d", i+1)
		}
		candidate := name
		for n := 2; seen[candidate]; n++ {
			candidate = fmt.Sprintf("%s_%d", name, n)
		}
		seen[candidate] = true
		out[i] = candidate
	}
	return out
}

// PositionalNames returns column_1..column_n for headerless inputs.
func PositionalNames(n int) []string {
	names := make([]string, n)
	for i := range names {
		names[i] = fmt.Sprintf("column_%d", i+1)
	}
	return names
}
