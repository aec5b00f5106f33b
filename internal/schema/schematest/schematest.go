// Package schematest provides a small schema shared by tests.
package schematest

import (
	"testing"

	"github.com/YaganovValera/universe-client/internal/schema"
)

// Definition ids of the fixture schema.
const (
	MisfiledID    int32 = 1
	MarketID      int32 = 3
	SampleQuoteID int32 = 4
	AllTypesID    int32 = 5
	PrivateQuote  int32 = 4
	SignalID      int32 = 7
)

// Metas returns the fixture definitions. A definition named
// "private::SampleQuote" is deliberately filed under the global namespace
// with the lowest id so that name lookups must check both tokens.
func Metas() []schema.MetaDefinition {
	return []schema.MetaDefinition{
		{
			Namespace: schema.NamespaceGlobal, ID: MisfiledID, Name: "private::SampleQuote",
			Fields: []schema.FieldDef{{Name: "open", Index: 0, Type: schema.Double}},
		},
		{
			Namespace: schema.NamespaceGlobal, ID: MarketID, Name: "global::Market", DisplayName: "Market",
			Fields: []schema.FieldDef{
				{Name: "trade_day", Index: 0, Type: schema.Int32},
				{Name: "display_name", Index: 1, Type: schema.String},
				{Name: "time_zone", Index: 2, Type: schema.String},
				{Name: "open_time", Index: 3, Type: schema.Int64},
				{Name: "close_time", Index: 4, Type: schema.Int64},
				{Name: "status", Index: 5, Type: schema.Int32},
				{Name: "sessions", Index: 6, Type: schema.Strings},
				{Name: "revisions", Index: 7, Type: schema.String},
			},
		},
		{
			Namespace: schema.NamespaceGlobal, ID: SampleQuoteID, Name: "global::SampleQuote", DisplayName: "Quote",
			Revision: 2, Granularities: []int32{60, 300, 86400},
			Fields: []schema.FieldDef{
				{Name: "open", Index: 0, Type: schema.Double, Precision: 4},
				{Name: "close", Index: 1, Type: schema.Double, Precision: 4},
				{Name: "high", Index: 2, Type: schema.Double, Precision: 4},
				{Name: "low", Index: 3, Type: schema.Double, Precision: 4},
				{Name: "volume", Index: 4, Type: schema.Int64},
				{Name: "turnover", Index: 5, Type: schema.Double, Precision: 2},
			},
		},
		{
			Namespace: schema.NamespaceGlobal, ID: AllTypesID, Name: "global::AllTypes",
			Fields: []schema.FieldDef{
				{Name: "i32", Index: 0, Type: schema.Int32},
				{Name: "f64", Index: 1, Type: schema.Double},
				{Name: "str", Index: 2, Type: schema.String},
				{Name: "vi32", Index: 3, Type: schema.Int32s},
				{Name: "vf64", Index: 4, Type: schema.Doubles},
				{Name: "vstr", Index: 5, Type: schema.Strings},
				{Name: "i64", Index: 6, Type: schema.Int64},
				{Name: "vi64", Index: 7, Type: schema.Int64s},
			},
		},
		{
			Namespace: schema.NamespacePrivate, ID: PrivateQuote, Name: "private::SampleQuote",
			Fields: []schema.FieldDef{
				{Name: "close", Index: 0, Type: schema.Double},
			},
		},
		{
			Namespace: schema.NamespacePrivate, ID: SignalID, Name: "private::Signal",
			Fields: []schema.FieldDef{
				{Name: "score", Index: 0, Type: schema.Double},
			},
		},
	}
}

// Registry builds a registry from Metas.
func Registry(t testing.TB) *schema.Registry {
	t.Helper()
	reg, err := schema.New(Metas())
	if err != nil {
		t.Fatalf("schematest: registry: %v", err)
	}
	return reg
}

// Payload returns Metas encoded as a CBOR schema document.
func Payload(t testing.TB) []byte {
	t.Helper()
	p, err := schema.NewCBORParser()
	if err != nil {
		t.Fatalf("schematest: parser: %v", err)
	}
	b, err := p.Encode(Metas())
	if err != nil {
		t.Fatalf("schematest: encode: %v", err)
	}
	return b
}
