package structvalue

import (
	"errors"
	"fmt"

	"github.com/YaganovValera/universe-client/internal/schema"
)

var (
	// ErrUnboundCodec is returned when a codec is used before Bind.
	ErrUnboundCodec = errors.New("structvalue: codec used before bind")
	// ErrAlreadyBound is returned by a second Bind.
	ErrAlreadyBound = errors.New("structvalue: codec already bound")
	// ErrReleased is returned when a released value is accessed.
	ErrReleased = errors.New("structvalue: value used after release")

	ErrFieldIndex = errors.New("field index out of range")
	ErrFieldType  = errors.New("field type mismatch")
)

// FieldError locates a failed field access.
type FieldError struct {
	Meta  string
	Index int
	Field string
	Want  schema.FieldType
	Got   schema.FieldType
	Err   error
}

func (e *FieldError) Error() string {
	if errors.Is(e.Err, ErrFieldType) {
		return fmt.Sprintf("structvalue: %s[%d] %s: %v: declared %s, accessed as %s",
			e.Meta, e.Index, e.Field, e.Err, e.Got, e.Want)
	}
	return fmt.Sprintf("structvalue: %s[%d]: %v", e.Meta, e.Index, e.Err)
}

func (e *FieldError) Unwrap() error { return e.Err }
