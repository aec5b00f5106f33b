package mapper_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YaganovValera/universe-client/internal/mapper"
	"github.com/YaganovValera/universe-client/internal/schema"
	"github.com/YaganovValera/universe-client/internal/schema/schematest"
	"github.com/YaganovValera/universe-client/internal/structvalue"
)

type allTypes struct {
	TimeTag int64
	Market  string
	Code    string
	Gran    int32
	I32     int32
	F64     float64
	Str     string
	VI32    []int32
	VF64    []float64
	VStr    []string
	I64     int64
	VI64    []int64
}

func allTypesBindings() []mapper.Binding[allTypes] {
	return []mapper.Binding[allTypes]{
		mapper.TimeTag(func(r *allTypes) *int64 { return &r.TimeTag }),
		mapper.Market(func(r *allTypes) *string { return &r.Market }),
		mapper.Code(func(r *allTypes) *string { return &r.Code }),
		mapper.Granularity(func(r *allTypes) *int32 { return &r.Gran }),
		mapper.Int32("i32", func(r *allTypes) *int32 { return &r.I32 }),
		mapper.Double("f64", func(r *allTypes) *float64 { return &r.F64 }),
		mapper.String("str", func(r *allTypes) *string { return &r.Str }),
		mapper.Int32s("vi32", func(r *allTypes) *[]int32 { return &r.VI32 }),
		mapper.Doubles("vf64", func(r *allTypes) *[]float64 { return &r.VF64 }),
		mapper.Strings("vstr", func(r *allTypes) *[]string { return &r.VStr }),
		mapper.Int64("i64", func(r *allTypes) *int64 { return &r.I64 }),
		mapper.Int64s("vi64", func(r *allTypes) *[]int64 { return &r.VI64 }),
	}
}

func setup(t *testing.T) (*schema.Registry, *structvalue.CBORCodec) {
	t.Helper()
	reg := schematest.Registry(t)
	c, err := structvalue.NewCBORCodec()
	require.NoError(t, err)
	require.NoError(t, c.Bind(reg))
	return reg, c
}

func TestMapper_RoundTrip(t *testing.T) {
	reg, c := setup(t)
	m, err := mapper.New(reg, c, schema.NamespaceGlobal, "AllTypes", allTypesBindings()...)
	require.NoError(t, err)

	in := allTypes{
		TimeTag: 1700000000000, Market: "SHFE", Code: "cu2409", Gran: 300,
		I32: 3, F64: 1.5, Str: "s",
		VI32: []int32{1}, VF64: []float64{2.5}, VStr: []string{"x", "y"},
		I64: 1 << 33, VI64: []int64{7, 8},
	}
	v, err := m.ToRecord(in)
	require.NoError(t, err)
	defer v.Release()

	out, err := m.FromRecord(v)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestMapper_RoundTripThroughCodec(t *testing.T) {
	reg, c := setup(t)
	m, err := mapper.New(reg, c, schema.NamespaceGlobal, "global::AllTypes", allTypesBindings()...)
	require.NoError(t, err)

	in := allTypes{TimeTag: 1, I32: -1, F64: 0.25, Str: "q", VI32: []int32{4}, VF64: []float64{1}, VStr: []string{"z"}, I64: -9, VI64: []int64{0}}
	v, err := m.ToRecord(in)
	require.NoError(t, err)
	raw, err := c.Encode(v)
	require.NoError(t, err)
	v.Release()

	values, err := c.Decode(raw)
	require.NoError(t, err)
	var got []allTypes
	require.NoError(t, structvalue.Each(values, func(_ int, v *structvalue.Value) error {
		rec, err := m.FromRecord(v)
		got = append(got, rec)
		return err
	}))
	require.Len(t, got, 1)
	assert.Equal(t, in, got[0])
}

func TestMapper_EmptyFieldsStayZero(t *testing.T) {
	reg, c := setup(t)
	m, err := mapper.New(reg, c, schema.NamespaceGlobal, "AllTypes", allTypesBindings()...)
	require.NoError(t, err)

	v, err := c.New(schema.NamespaceGlobal, schematest.AllTypesID)
	require.NoError(t, err)
	defer v.Release()
	require.NoError(t, v.SetString(2, "only"))

	out, err := m.FromRecord(v)
	require.NoError(t, err)
	assert.Equal(t, allTypes{Str: "only"}, out)
}

func TestMapper_SchemaNotFound(t *testing.T) {
	reg, c := setup(t)
	_, err := mapper.New(reg, c, schema.NamespacePrivate, "AllTypes", allTypesBindings()...)
	var nf *schema.SchemaNotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "AllTypes", nf.QualifiedName)
}

func TestMapper_BindingErrors(t *testing.T) {
	reg, c := setup(t)
	tests := []struct {
		name    string
		binding mapper.Binding[allTypes]
		missing bool
	}{
		{"missing field", mapper.Int32("nope", func(r *allTypes) *int32 { return &r.I32 }), true},
		{"wrong type", mapper.Int64("i32", func(r *allTypes) *int64 { return &r.I64 }), false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := mapper.New(reg, c, schema.NamespaceGlobal, "AllTypes", tc.binding)
			var be *mapper.BindingError
			require.ErrorAs(t, err, &be)
			assert.Equal(t, tc.missing, be.Missing)
			assert.Equal(t, "global::AllTypes", be.Meta)
		})
	}
}

func TestMapper_FieldsAndMeta(t *testing.T) {
	reg, c := setup(t)
	m, err := mapper.New[allTypes](reg, c, schema.NamespaceGlobal, "AllTypes")
	require.NoError(t, err)
	assert.Equal(t, schematest.AllTypesID, m.Meta().ID)
	assert.Equal(t, []string{"i32", "f64", "str", "vi32", "vf64", "vstr", "i64", "vi64"}, m.Fields())
}

func TestMapper_RejectsForeignOrReleasedValue(t *testing.T) {
	reg, c := setup(t)
	m, err := mapper.New(reg, c, schema.NamespaceGlobal, "AllTypes", allTypesBindings()...)
	require.NoError(t, err)

	quote, err := c.New(schema.NamespaceGlobal, schematest.SampleQuoteID)
	require.NoError(t, err)
	_, err = m.FromRecord(quote)
	assert.True(t, errors.Is(err, mapper.ErrMetaMismatch))

	quote.Release()
	_, err = m.FromRecord(quote)
	assert.ErrorIs(t, err, structvalue.ErrReleased)
}
