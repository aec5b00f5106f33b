package fetch

import (
	"fmt"
	"sort"

	"github.com/YaganovValera/universe-client/internal/mapper"
	"github.com/YaganovValera/universe-client/internal/model"
	"github.com/YaganovValera/universe-client/internal/schema"
	"github.com/YaganovValera/universe-client/internal/structvalue"
)

// Decoder turns values of one definition into records.
type Decoder interface {
	Meta() *schema.MetaDefinition
	Fields() []string
	Decode(v *structvalue.Value) (model.Record, error)
}

// MapperDecoder adapts a typed mapper to Decoder.
type MapperDecoder[T model.Record] struct {
	m *mapper.Mapper[T]
}

func (d MapperDecoder[T]) Meta() *schema.MetaDefinition { return d.m.Meta() }
func (d MapperDecoder[T]) Fields() []string             { return d.m.Fields() }

func (d MapperDecoder[T]) Decode(v *structvalue.Value) (model.Record, error) {
	rec, err := d.m.FromRecord(v)
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Factory builds a decoder for the definition qualifiedName of ns.
type Factory func(reg *schema.Registry, codec structvalue.Codec, ns int32, qualifiedName string) (Decoder, error)

// UnknownRecordError reports a qualified name with no registered record type.
type UnknownRecordError struct {
	QualifiedName string
}

func (e *UnknownRecordError) Error() string {
	return fmt.Sprintf("fetch: no record type registered for %q", e.QualifiedName)
}

// Catalog maps type names to record factories.
type Catalog struct {
	factories map[string]Factory
}

func NewCatalog() *Catalog {
	return &Catalog{factories: make(map[string]Factory)}
}

// Register adds f under typeName, replacing any earlier entry.
func (c *Catalog) Register(typeName string, f Factory) {
	c.factories[typeName] = f
}

// Types returns the registered type names, sorted.
func (c *Catalog) Types() []string {
	out := make([]string, 0, len(c.factories))
	for name := range c.factories {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Resolve builds the decoder for qualifiedName in ns.
func (c *Catalog) Resolve(reg *schema.Registry, codec structvalue.Codec, ns int32, qualifiedName string) (Decoder, error) {
	_, typ := schema.SplitQualifiedName(qualifiedName)
	f, ok := c.factories[typ]
	if !ok {
		return nil, &UnknownRecordError{QualifiedName: qualifiedName}
	}
	return f(reg, codec, ns, qualifiedName)
}

// Register adds the record type T, keyed by its type name.
func Register[T model.Mappable[T]](c *Catalog) {
	var zero T
	c.Register(zero.Descriptor().TypeName, func(reg *schema.Registry, codec structvalue.Codec, ns int32, qualifiedName string) (Decoder, error) {
		m, err := mapper.New(reg, codec, ns, qualifiedName, zero.Bindings()...)
		if err != nil {
			return nil, err
		}
		return MapperDecoder[T]{m: m}, nil
	})
}

// DefaultCatalog knows every record type in package model.
func DefaultCatalog() *Catalog {
	c := NewCatalog()
	Register[model.SampleQuote](c)
	Register[model.Market](c)
	return c
}
