// Package model holds the business records produced from fetch results.
package model

import (
	"time"

	"github.com/YaganovValera/universe-client/internal/mapper"
	"github.com/YaganovValera/universe-client/internal/schema"
)

// Record is a mapped business record.
type Record interface {
	// QualifiedName returns the "ns::Type" name of the source definition.
	QualifiedName() string
	// Key identifies the record within its type, e.g. "DCE.A2409@1700000000000".
	Key() string
	// Attributes returns the record as plain values for export.
	Attributes() map[string]any
}

func qualified(ns int32, typ string) string {
	return schema.NamespaceName(ns) + schema.Separator + typ
}

// Descriptor names a record type and where its definition lives.
type Descriptor struct {
	Namespace int32
	TypeName  string
}

// QualifiedName returns the "ns::Type" form of d.
func (d Descriptor) QualifiedName() string { return qualified(d.Namespace, d.TypeName) }

// Mappable is implemented by record types that carry a binding table.
type Mappable[T any] interface {
	Record
	Descriptor() Descriptor
	Bindings() []mapper.Binding[T]
}

// TimeOf converts a millisecond time tag to UTC time.
func TimeOf(tag int64) time.Time { return time.UnixMilli(tag).UTC() }
