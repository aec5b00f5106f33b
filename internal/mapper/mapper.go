// Package mapper converts struct values to typed records and back through
// a declarative binding table resolved once against the schema.
package mapper

import (
	"fmt"

	"github.com/YaganovValera/universe-client/internal/schema"
	"github.com/YaganovValera/universe-client/internal/structvalue"
)

type resolved[T any] struct {
	Binding[T]
	idx int
}

// Mapper maps values of one definition to T. It is immutable and safe for
// concurrent use once built.
type Mapper[T any] struct {
	meta     *schema.MetaDefinition
	codec    structvalue.Codec
	bindings []resolved[T]
}

// New resolves bindings against the definition qualifiedName of ns.
func New[T any](
	reg *schema.Registry,
	codec structvalue.Codec,
	ns int32,
	qualifiedName string,
	bindings ...Binding[T],
) (*Mapper[T], error) {
	meta, err := reg.MustLookupByQualifiedName(ns, qualifiedName)
	if err != nil {
		return nil, err
	}

	m := &Mapper[T]{meta: meta, codec: codec, bindings: make([]resolved[T], 0, len(bindings))}
	for _, b := range bindings {
		if b.slot != slotField {
			m.bindings = append(m.bindings, resolved[T]{Binding: b, idx: -1})
			continue
		}
		f, ok := meta.Field(b.name)
		if !ok {
			return nil, &BindingError{Meta: meta.Name, Field: b.name, Missing: true}
		}
		if f.Type != b.typ {
			return nil, &BindingError{Meta: meta.Name, Field: b.name, Want: b.typ, Got: f.Type}
		}
		m.bindings = append(m.bindings, resolved[T]{Binding: b, idx: f.Index})
	}
	return m, nil
}

// Meta returns the resolved definition.
func (m *Mapper[T]) Meta() *schema.MetaDefinition { return m.meta }

// Fields returns every field name of the definition in index order.
func (m *Mapper[T]) Fields() []string { return m.meta.FieldNames() }

// FromRecord builds a T from v. Empty fields leave their member at the
// zero value. v is not released.
func (m *Mapper[T]) FromRecord(v *structvalue.Value) (T, error) {
	var rec T
	if v.Released() {
		return rec, structvalue.ErrReleased
	}
	if v.Namespace() != m.meta.Namespace || v.MetaID() != m.meta.ID {
		return rec, fmt.Errorf("%w: want %s, got %s", ErrMetaMismatch, m.meta.Name, v.Meta().Name)
	}
	for _, b := range m.bindings {
		if err := b.read(v, b.idx, &rec); err != nil {
			return rec, fmt.Errorf("mapper: read %s: %w", m.meta.Name, err)
		}
	}
	return rec, nil
}

// ToRecord allocates a value through the codec and writes every binding.
// The caller owns the returned value.
func (m *Mapper[T]) ToRecord(rec T) (*structvalue.Value, error) {
	v, err := m.codec.New(m.meta.Namespace, m.meta.ID)
	if err != nil {
		return nil, err
	}
	for _, b := range m.bindings {
		if err := b.write(v, b.idx, &rec); err != nil {
			v.Release()
			return nil, fmt.Errorf("mapper: write %s: %w", m.meta.Name, err)
		}
	}
	return v, nil
}
