package structvalue

import (
	"slices"
	"sync/atomic"

	"github.com/YaganovValera/universe-client/internal/schema"
)

// Value is one decoded record bound to a MetaDefinition. A nil slot is an
// empty field. Values are owned by whoever decoded them and must be
// released once; Release is idempotent and every accessor fails with
// ErrReleased afterwards.
type Value struct {
	meta *schema.MetaDefinition

	timeTag     int64
	granularity int32
	market      string
	code        string

	fields   []any
	released atomic.Bool
}

func newValue(meta *schema.MetaDefinition) *Value {
	return &Value{meta: meta, fields: make([]any, meta.Slots())}
}

// Meta returns the definition the value is bound to.
func (v *Value) Meta() *schema.MetaDefinition { return v.meta }

func (v *Value) Namespace() int32 { return v.meta.Namespace }
func (v *Value) MetaID() int32    { return v.meta.ID }

func (v *Value) TimeTag() int64     { return v.timeTag }
func (v *Value) Granularity() int32 { return v.granularity }
func (v *Value) Market() string     { return v.market }
func (v *Value) Code() string       { return v.code }

func (v *Value) SetTimeTag(t int64)     { v.timeTag = t }
func (v *Value) SetGranularity(g int32) { v.granularity = g }
func (v *Value) SetMarket(m string)     { v.market = m }
func (v *Value) SetCode(c string)       { v.code = c }

// FieldCount returns the number of field slots, one past the highest
// declared index.
func (v *Value) FieldCount() int { return v.meta.Slots() }

// IsEmpty reports whether field idx holds no value. Out of range indexes
// and released values are empty.
func (v *Value) IsEmpty(idx int) bool {
	if v.released.Load() || idx < 0 || idx >= len(v.fields) {
		return true
	}
	return v.fields[idx] == nil
}

// Clear empties field idx.
func (v *Value) Clear(idx int) error {
	if err := v.check(idx, nil); err != nil {
		return err
	}
	v.fields[idx] = nil
	return nil
}

// Reset empties every field and the header.
func (v *Value) Reset() {
	if v.released.Load() {
		return
	}
	clear(v.fields)
	v.timeTag, v.granularity, v.market, v.code = 0, 0, "", ""
}

// Release drops the field storage. Calling it again is a no-op.
func (v *Value) Release() {
	if v.released.CompareAndSwap(false, true) {
		v.fields = nil
	}
}

// Released reports whether Release was called.
func (v *Value) Released() bool { return v.released.Load() }

func (v *Value) check(idx int, want *schema.FieldType) error {
	if v.released.Load() {
		return ErrReleased
	}
	f, ok := v.meta.FieldAt(idx)
	if !ok || idx >= len(v.fields) {
		return &FieldError{Meta: v.meta.Name, Index: idx, Err: ErrFieldIndex}
	}
	if want != nil && f.Type != *want {
		return &FieldError{Meta: v.meta.Name, Index: idx, Field: f.Name,
			Want: *want, Got: f.Type, Err: ErrFieldType}
	}
	return nil
}

func get[T any](v *Value, idx int, t schema.FieldType) (T, error) {
	var zero T
	if err := v.check(idx, &t); err != nil {
		return zero, err
	}
	x, ok := v.fields[idx].(T)
	if !ok {
		return zero, nil
	}
	return x, nil
}

func set(v *Value, idx int, t schema.FieldType, x any) error {
	if err := v.check(idx, &t); err != nil {
		return err
	}
	v.fields[idx] = x
	return nil
}

// Typed getters return the zero value for an empty field. Slices are
// shared with the value and must not be modified.

func (v *Value) GetInt32(idx int) (int32, error)       { return get[int32](v, idx, schema.Int32) }
func (v *Value) GetInt64(idx int) (int64, error)       { return get[int64](v, idx, schema.Int64) }
func (v *Value) GetDouble(idx int) (float64, error)    { return get[float64](v, idx, schema.Double) }
func (v *Value) GetString(idx int) (string, error)     { return get[string](v, idx, schema.String) }
func (v *Value) GetInt32s(idx int) ([]int32, error)    { return get[[]int32](v, idx, schema.Int32s) }
func (v *Value) GetInt64s(idx int) ([]int64, error)    { return get[[]int64](v, idx, schema.Int64s) }
func (v *Value) GetDoubles(idx int) ([]float64, error) { return get[[]float64](v, idx, schema.Doubles) }
func (v *Value) GetStrings(idx int) ([]string, error)  { return get[[]string](v, idx, schema.Strings) }

// Typed setters copy slices. A nil slice empties the field.

func (v *Value) SetInt32(idx int, x int32) error       { return set(v, idx, schema.Int32, x) }
func (v *Value) SetInt64(idx int, x int64) error       { return set(v, idx, schema.Int64, x) }
func (v *Value) SetDouble(idx int, x float64) error    { return set(v, idx, schema.Double, x) }
func (v *Value) SetString(idx int, x string) error     { return set(v, idx, schema.String, x) }
func (v *Value) SetInt32s(idx int, x []int32) error    { return setSlice(v, idx, schema.Int32s, x) }
func (v *Value) SetInt64s(idx int, x []int64) error    { return setSlice(v, idx, schema.Int64s, x) }
func (v *Value) SetDoubles(idx int, x []float64) error { return setSlice(v, idx, schema.Doubles, x) }
func (v *Value) SetStrings(idx int, x []string) error  { return setSlice(v, idx, schema.Strings, x) }

func setSlice[T any](v *Value, idx int, t schema.FieldType, x []T) error {
	if x == nil {
		return set(v, idx, t, nil)
	}
	return set(v, idx, t, slices.Clone(x))
}
