// Package schema holds the metadata definitions announced by the gateway
// and indexes them by namespace and id.
package schema

import (
	"errors"
	"fmt"
	"sort"
)

// Parser turns raw schema bytes into definitions.
type Parser interface {
	Parse(raw []byte) ([]MetaDefinition, error)
}

// ErrEmptySchema is returned when the payload holds no definitions.
var ErrEmptySchema = errors.New("schema: no definitions")

// Registry is built once by Load and read-only afterwards, so concurrent
// readers need no locking.
type Registry struct {
	byID   map[int32]map[int32]*MetaDefinition
	sorted map[int32][]*MetaDefinition // ascending id, for deterministic scans
	count  int
}

// Load parses raw with p and indexes the result.
func Load(raw []byte, p Parser) (*Registry, error) {
	metas, err := p.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("schema: parse: %w", err)
	}
	return New(metas)
}

// MaxFieldIndex bounds declared field indexes.
const MaxFieldIndex = 1023

// New indexes already parsed definitions. Fields are ordered by their
// declared index, which is kept as is.
func New(metas []MetaDefinition) (*Registry, error) {
	if len(metas) == 0 {
		return nil, ErrEmptySchema
	}
	r := &Registry{
		byID:   make(map[int32]map[int32]*MetaDefinition),
		sorted: make(map[int32][]*MetaDefinition),
	}
	for i := range metas {
		m, err := normalise(metas[i])
		if err != nil {
			return nil, err
		}
		ns := r.byID[m.Namespace]
		if ns == nil {
			ns = make(map[int32]*MetaDefinition)
			r.byID[m.Namespace] = ns
		}
		if prev, dup := ns[m.ID]; dup {
			return nil, fmt.Errorf("schema: duplicate id %d in namespace %s: %q and %q",
				m.ID, NamespaceName(m.Namespace), prev.Name, m.Name)
		}
		ns[m.ID] = m
		r.sorted[m.Namespace] = append(r.sorted[m.Namespace], m)
		r.count++
	}
	for _, list := range r.sorted {
		sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	}
	return r, nil
}

func normalise(in MetaDefinition) (*MetaDefinition, error) {
	if in.Name == "" {
		return nil, fmt.Errorf("schema: definition %d in namespace %s has no name", in.ID, NamespaceName(in.Namespace))
	}
	m := in
	m.Fields = append([]FieldDef(nil), in.Fields...)
	m.Granularities = append([]int32(nil), in.Granularities...)
	sort.SliceStable(m.Fields, func(i, j int) bool { return m.Fields[i].Index < m.Fields[j].Index })

	names := make(map[string]struct{}, len(m.Fields))
	slots := 0
	for i := range m.Fields {
		f := &m.Fields[i]
		if !f.Type.Valid() {
			return nil, fmt.Errorf("schema: %s.%s: invalid type %d", m.Name, f.Name, int32(f.Type))
		}
		if f.Index < 0 || f.Index > MaxFieldIndex {
			return nil, fmt.Errorf("schema: %s.%s: index %d out of range", m.Name, f.Name, f.Index)
		}
		if i > 0 && m.Fields[i-1].Index == f.Index {
			return nil, fmt.Errorf("schema: %s: fields %q and %q share index %d", m.Name, m.Fields[i-1].Name, f.Name, f.Index)
		}
		if _, dup := names[f.Name]; dup {
			return nil, fmt.Errorf("schema: %s: duplicate field %q", m.Name, f.Name)
		}
		names[f.Name] = struct{}{}
		slots = f.Index + 1
	}

	m.slots = make([]int, slots)
	for i := range m.slots {
		m.slots[i] = -1
	}
	for i, f := range m.Fields {
		m.slots[f.Index] = i
	}
	return &m, nil
}

// Len returns the number of definitions.
func (r *Registry) Len() int { return r.count }

// Namespaces returns the namespaces present, ascending.
func (r *Registry) Namespaces() []int32 {
	out := make([]int32, 0, len(r.sorted))
	for ns := range r.sorted {
		out = append(out, ns)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Metas returns the definitions of ns in ascending id order.
func (r *Registry) Metas(ns int32) []*MetaDefinition {
	return append([]*MetaDefinition(nil), r.sorted[ns]...)
}

// LookupByID returns the definition (ns, id).
func (r *Registry) LookupByID(ns, id int32) (*MetaDefinition, bool) {
	m, ok := r.byID[ns][id]
	return m, ok
}

// LookupByQualifiedName scans the definitions of ns and returns the first
// whose name splits into the namespace token of ns and the requested type.
// name may be bare ("SampleQuote") or qualified ("global::SampleQuote").
func (r *Registry) LookupByQualifiedName(ns int32, name string) (*MetaDefinition, bool) {
	wantNS, wantType := SplitQualifiedName(name)
	nsToken := NamespaceName(ns)
	if wantNS != "" && wantNS != nsToken {
		return nil, false
	}
	for _, m := range r.sorted[ns] {
		gotNS, gotType := SplitQualifiedName(m.Name)
		if gotNS == nsToken && gotType == wantType {
			return m, true
		}
	}
	return nil, false
}

// MustLookupByQualifiedName is LookupByQualifiedName returning
// *SchemaNotFoundError on a miss.
func (r *Registry) MustLookupByQualifiedName(ns int32, name string) (*MetaDefinition, error) {
	if m, ok := r.LookupByQualifiedName(ns, name); ok {
		return m, nil
	}
	return nil, &SchemaNotFoundError{Namespace: ns, QualifiedName: name}
}
