package mapper

import (
	"github.com/YaganovValera/universe-client/internal/schema"
	"github.com/YaganovValera/universe-client/internal/structvalue"
)

type slot int

const (
	slotField slot = iota
	slotTimeTag
	slotGranularity
	slotMarket
	slotCode
)

// Binding ties one member of T to a named field or to a header slot of
// the value. Build bindings with the typed constructors below.
type Binding[T any] struct {
	name  string
	typ   schema.FieldType
	slot  slot
	read  func(v *structvalue.Value, idx int, rec *T) error
	write func(v *structvalue.Value, idx int, rec *T) error
}

// Name returns the bound field name, empty for header bindings.
func (b Binding[T]) Name() string { return b.name }

func field[T, F any](
	name string,
	t schema.FieldType,
	ptr func(*T) *F,
	get func(*structvalue.Value, int) (F, error),
	set func(*structvalue.Value, int, F) error,
) Binding[T] {
	return Binding[T]{
		name: name,
		typ:  t,
		read: func(v *structvalue.Value, idx int, rec *T) error {
			if v.IsEmpty(idx) {
				return nil
			}
			x, err := get(v, idx)
			if err != nil {
				return err
			}
			*ptr(rec) = x
			return nil
		},
		write: func(v *structvalue.Value, idx int, rec *T) error {
			return set(v, idx, *ptr(rec))
		},
	}
}

func Int32[T any](name string, ptr func(*T) *int32) Binding[T] {
	return field(name, schema.Int32, ptr, (*structvalue.Value).GetInt32, (*structvalue.Value).SetInt32)
}

func Int64[T any](name string, ptr func(*T) *int64) Binding[T] {
	return field(name, schema.Int64, ptr, (*structvalue.Value).GetInt64, (*structvalue.Value).SetInt64)
}

func Double[T any](name string, ptr func(*T) *float64) Binding[T] {
	return field(name, schema.Double, ptr, (*structvalue.Value).GetDouble, (*structvalue.Value).SetDouble)
}

func String[T any](name string, ptr func(*T) *string) Binding[T] {
	return field(name, schema.String, ptr, (*structvalue.Value).GetString, (*structvalue.Value).SetString)
}

func Int32s[T any](name string, ptr func(*T) *[]int32) Binding[T] {
	return field(name, schema.Int32s, ptr, (*structvalue.Value).GetInt32s, (*structvalue.Value).SetInt32s)
}

func Int64s[T any](name string, ptr func(*T) *[]int64) Binding[T] {
	return field(name, schema.Int64s, ptr, (*structvalue.Value).GetInt64s, (*structvalue.Value).SetInt64s)
}

func Doubles[T any](name string, ptr func(*T) *[]float64) Binding[T] {
	return field(name, schema.Doubles, ptr, (*structvalue.Value).GetDoubles, (*structvalue.Value).SetDoubles)
}

func Strings[T any](name string, ptr func(*T) *[]string) Binding[T] {
	return field(name, schema.Strings, ptr, (*structvalue.Value).GetStrings, (*structvalue.Value).SetStrings)
}

func header[T, F any](s slot, ptr func(*T) *F, get func(*structvalue.Value) F, set func(*structvalue.Value, F)) Binding[T] {
	return Binding[T]{
		slot: s,
		read: func(v *structvalue.Value, _ int, rec *T) error {
			*ptr(rec) = get(v)
			return nil
		},
		write: func(v *structvalue.Value, _ int, rec *T) error {
			set(v, *ptr(rec))
			return nil
		},
	}
}

// TimeTag binds the millisecond time tag of the value header.
func TimeTag[T any](ptr func(*T) *int64) Binding[T] {
	return header(slotTimeTag, ptr, (*structvalue.Value).TimeTag, (*structvalue.Value).SetTimeTag)
}

// Granularity binds the sampling granularity, in seconds, of the value header.
func Granularity[T any](ptr func(*T) *int32) Binding[T] {
	return header(slotGranularity, ptr, (*structvalue.Value).Granularity, (*structvalue.Value).SetGranularity)
}

// Market binds the market of the value header.
func Market[T any](ptr func(*T) *string) Binding[T] {
	return header(slotMarket, ptr, (*structvalue.Value).Market, (*structvalue.Value).SetMarket)
}

// Code binds the instrument code of the value header.
func Code[T any](ptr func(*T) *string) Binding[T] {
	return header(slotCode, ptr, (*structvalue.Value).Code, (*structvalue.Value).SetCode)
}
