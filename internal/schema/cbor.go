package schema

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

type document struct {
	Metas []MetaDefinition `cbor:"metas"`
}

// CBORParser reads schema documents of the form {"metas": [...]}.
type CBORParser struct {
	enc cbor.EncMode
	dec cbor.DecMode
}

// NewCBORParser builds a parser with canonical encoding options.
func NewCBORParser() (*CBORParser, error) {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		return nil, fmt.Errorf("schema: cbor enc mode: %w", err)
	}
	dm, err := cbor.DecOptions{}.DecMode()
	if err != nil {
		return nil, fmt.Errorf("schema: cbor dec mode: %w", err)
	}
	return &CBORParser{enc: em, dec: dm}, nil
}

// Parse implements Parser.
func (p *CBORParser) Parse(raw []byte) ([]MetaDefinition, error) {
	var doc document
	if err := p.dec.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	return doc.Metas, nil
}

// Encode renders metas as a schema document.
func (p *CBORParser) Encode(metas []MetaDefinition) ([]byte, error) {
	return p.enc.Marshal(document{Metas: metas})
}
