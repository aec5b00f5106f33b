// Package structvalue implements schema-bound struct-value records and the
// codec that moves them on and off the wire.
package structvalue

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/fxamacker/cbor/v2"

	"github.com/YaganovValera/universe-client/internal/schema"
)

// Codec encodes and decodes values against a bound registry. Bind must be
// called exactly once before any other method.
type Codec interface {
	Bind(reg *schema.Registry) error
	Decode(data []byte) ([]*Value, error)
	Encode(values ...*Value) ([]byte, error)
	New(ns, metaID int32) (*Value, error)
}

type wireValue struct {
	Namespace   int32             `cbor:"1,keyasint"`
	MetaID      int32             `cbor:"2,keyasint"`
	TimeTag     int64             `cbor:"3,keyasint,omitempty"`
	Granularity int32             `cbor:"4,keyasint,omitempty"`
	Market      string            `cbor:"5,keyasint,omitempty"`
	Code        string            `cbor:"6,keyasint,omitempty"`
	Fields      []cbor.RawMessage `cbor:"7,keyasint"`
}

// CBORCodec stores each value as a CBOR map of header keys plus a field
// array addressed by declared index in which null marks an empty field or
// an undeclared index.
type CBORCodec struct {
	reg atomic.Pointer[schema.Registry]
	enc cbor.EncMode
	dec cbor.DecMode
}

var _ Codec = (*CBORCodec)(nil)

// NewCBORCodec returns an unbound codec.
func NewCBORCodec() (*CBORCodec, error) {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		return nil, fmt.Errorf("structvalue: cbor enc mode: %w", err)
	}
	dm, err := cbor.DecOptions{}.DecMode()
	if err != nil {
		return nil, fmt.Errorf("structvalue: cbor dec mode: %w", err)
	}
	return &CBORCodec{enc: em, dec: dm}, nil
}

// Bind attaches the registry. It fails with ErrAlreadyBound the second time.
func (c *CBORCodec) Bind(reg *schema.Registry) error {
	if reg == nil {
		return errors.New("structvalue: bind nil registry")
	}
	if !c.reg.CompareAndSwap(nil, reg) {
		return ErrAlreadyBound
	}
	return nil
}

// Bound reports whether Bind succeeded.
func (c *CBORCodec) Bound() bool { return c.reg.Load() != nil }

func (c *CBORCodec) registry() (*schema.Registry, error) {
	reg := c.reg.Load()
	if reg == nil {
		return nil, ErrUnboundCodec
	}
	return reg, nil
}

// New allocates an empty value of definition (ns, metaID).
func (c *CBORCodec) New(ns, metaID int32) (*Value, error) {
	reg, err := c.registry()
	if err != nil {
		return nil, err
	}
	meta, ok := reg.LookupByID(ns, metaID)
	if !ok {
		return nil, &schema.SchemaNotFoundError{Namespace: ns, ID: metaID}
	}
	return newValue(meta), nil
}

// Decode parses a payload into values. An empty payload holds no values.
// On error nothing is returned and every partially decoded value is
// already released.
func (c *CBORCodec) Decode(data []byte) ([]*Value, error) {
	reg, err := c.registry()
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, nil
	}

	var wire []wireValue
	if err := c.dec.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("structvalue: decode: %w", err)
	}

	out := make([]*Value, 0, len(wire))
	for i := range wire {
		v, err := c.fromWire(reg, &wire[i])
		if err != nil {
			ReleaseAll(out)
			return nil, fmt.Errorf("structvalue: decode value %d: %w", i, err)
		}
		out = append(out, v)
	}
	return out, nil
}

func (c *CBORCodec) fromWire(reg *schema.Registry, w *wireValue) (*Value, error) {
	meta, ok := reg.LookupByID(w.Namespace, w.MetaID)
	if !ok {
		return nil, &schema.SchemaNotFoundError{Namespace: w.Namespace, ID: w.MetaID}
	}
	if len(w.Fields) > meta.Slots() {
		return nil, fmt.Errorf("%s: %d fields on the wire, %d slots declared", meta.Name, len(w.Fields), meta.Slots())
	}

	v := newValue(meta)
	v.timeTag, v.granularity, v.market, v.code = w.TimeTag, w.Granularity, w.Market, w.Code
	for i, raw := range w.Fields {
		if isNull(raw) {
			continue
		}
		f, ok := meta.FieldAt(i)
		if !ok {
			return nil, &FieldError{Meta: meta.Name, Index: i, Err: ErrFieldIndex}
		}
		x, err := c.decodeField(f.Type, raw)
		if err != nil {
			return nil, &FieldError{Meta: meta.Name, Index: i, Field: f.Name, Err: err}
		}
		v.fields[i] = x
	}
	return v, nil
}

func (c *CBORCodec) decodeField(t schema.FieldType, raw []byte) (any, error) {
	switch t {
	case schema.Int32:
		return decodeAs[int32](c.dec, raw)
	case schema.Double:
		return decodeAs[float64](c.dec, raw)
	case schema.String:
		return decodeAs[string](c.dec, raw)
	case schema.Int32s:
		return decodeAs[[]int32](c.dec, raw)
	case schema.Doubles:
		return decodeAs[[]float64](c.dec, raw)
	case schema.Strings:
		return decodeAs[[]string](c.dec, raw)
	case schema.Int64:
		return decodeAs[int64](c.dec, raw)
	case schema.Int64s:
		return decodeAs[[]int64](c.dec, raw)
	default:
		return nil, fmt.Errorf("unsupported field type %s", t)
	}
}

func decodeAs[T any](dm cbor.DecMode, raw []byte) (any, error) {
	var x T
	if err := dm.Unmarshal(raw, &x); err != nil {
		return nil, err
	}
	return x, nil
}

// Encode renders values as one payload.
func (c *CBORCodec) Encode(values ...*Value) ([]byte, error) {
	if _, err := c.registry(); err != nil {
		return nil, err
	}
	wire := make([]wireValue, len(values))
	for i, v := range values {
		if v.Released() {
			return nil, fmt.Errorf("structvalue: encode value %d: %w", i, ErrReleased)
		}
		w := wireValue{
			Namespace: v.Namespace(), MetaID: v.MetaID(),
			TimeTag: v.timeTag, Granularity: v.granularity, Market: v.market, Code: v.code,
			Fields: make([]cbor.RawMessage, len(v.fields)),
		}
		for j, x := range v.fields {
			if x == nil {
				continue
			}
			b, err := c.enc.Marshal(x)
			if err != nil {
				return nil, fmt.Errorf("structvalue: encode %s[%d]: %w", v.meta.Name, j, err)
			}
			w.Fields[j] = b
		}
		wire[i] = w
	}
	b, err := c.enc.Marshal(wire)
	if err != nil {
		return nil, fmt.Errorf("structvalue: encode: %w", err)
	}
	return b, nil
}

func isNull(raw []byte) bool {
	return len(raw) == 0 || (len(raw) == 1 && (raw[0] == 0xf6 || raw[0] == 0xf7))
}
