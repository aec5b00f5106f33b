package schema

import (
	"fmt"
	"strconv"
	"strings"
)

// Well-known namespaces. Each namespace has its own id space.
const (
	NamespaceGlobal  int32 = 0
	NamespacePrivate int32 = 1
)

// Separator joins the namespace token and the type name of a qualified name.
const Separator = "::"

// NamespaceName returns the token used in qualified names for ns.
func NamespaceName(ns int32) string {
	switch ns {
	case NamespaceGlobal:
		return "global"
	case NamespacePrivate:
		return "private"
	default:
		return "ns" + strconv.Itoa(int(ns))
	}
}

// ParseNamespace is the inverse of NamespaceName.
func ParseNamespace(token string) (int32, error) {
	switch token {
	case "global":
		return NamespaceGlobal, nil
	case "private":
		return NamespacePrivate, nil
	}
	if rest, ok := strings.CutPrefix(token, "ns"); ok {
		n, err := strconv.ParseInt(rest, 10, 32)
		if err == nil && n >= 0 {
			return int32(n), nil
		}
	}
	return 0, fmt.Errorf("schema: unknown namespace %q", token)
}

// SplitQualifiedName splits "ns::Type" into its tokens. A bare type name
// yields an empty namespace token.
func SplitQualifiedName(name string) (ns, typ string) {
	if before, after, ok := strings.Cut(name, Separator); ok {
		return before, after
	}
	return "", name
}

// FieldType is the declared type of a field.
type FieldType int32

const (
	Int32 FieldType = iota
	Double
	String
	Int32s
	Doubles
	Strings
	Int64
	Int64s
)

var fieldTypeNames = [...]string{"INT", "DOUBLE", "STRING", "VINT", "VDOUBLE", "VSTRING", "INT64", "VINT64"}

func (t FieldType) String() string {
	if t.Valid() {
		return fieldTypeNames[t]
	}
	return fmt.Sprintf("FieldType(%d)", int32(t))
}

// Valid reports whether t is one of the known types.
func (t FieldType) Valid() bool { return t >= Int32 && t <= Int64s }

// FieldDef describes one indexed field of a definition.
type FieldDef struct {
	Name       string    `cbor:"name"`
	Index      int       `cbor:"pos"`
	Type       FieldType `cbor:"type"`
	Precision  int32     `cbor:"precision,omitempty"`
	Multiple   int32     `cbor:"multiple,omitempty"`
	SampleType int32     `cbor:"sampleType,omitempty"`
}

// MetaDefinition describes one record type. Immutable once loaded.
type MetaDefinition struct {
	Namespace     int32      `cbor:"namespace"`
	ID            int32      `cbor:"id"`
	Name          string     `cbor:"name"`
	DisplayName   string     `cbor:"displayName,omitempty"`
	Revision      uint32     `cbor:"revision,omitempty"`
	Granularities []int32    `cbor:"granularities,omitempty"`
	Fields        []FieldDef `cbor:"fields"`

	// slots maps a declared field index to its position in Fields, -1 for
	// an undeclared index. Built by the registry.
	slots []int
}

// TypeName returns the part of Name after the separator.
func (m *MetaDefinition) TypeName() string {
	_, typ := SplitQualifiedName(m.Name)
	return typ
}

// Field returns the field called name.
func (m *MetaDefinition) Field(name string) (FieldDef, bool) {
	for _, f := range m.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldDef{}, false
}

// FieldAt returns the field declared at index idx.
func (m *MetaDefinition) FieldAt(idx int) (FieldDef, bool) {
	if m.slots == nil {
		for _, f := range m.Fields {
			if f.Index == idx {
				return f, true
			}
		}
		return FieldDef{}, false
	}
	if idx < 0 || idx >= len(m.slots) || m.slots[idx] < 0 {
		return FieldDef{}, false
	}
	return m.Fields[m.slots[idx]], true
}

// Slots returns one past the highest declared field index. Values and the
// wire field array are addressed by declared index, so indexes may have
// gaps.
func (m *MetaDefinition) Slots() int {
	if m.slots != nil {
		return len(m.slots)
	}
	n := 0
	for _, f := range m.Fields {
		if f.Index+1 > n {
			n = f.Index + 1
		}
	}
	return n
}

// FieldNames returns field names in index order.
func (m *MetaDefinition) FieldNames() []string {
	out := make([]string, len(m.Fields))
	for i, f := range m.Fields {
		out[i] = f.Name
	}
	return out
}
