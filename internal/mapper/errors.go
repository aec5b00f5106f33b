package mapper

import (
	"errors"
	"fmt"

	"github.com/YaganovValera/universe-client/internal/schema"
)

// ErrMetaMismatch is returned when a value of another definition is mapped.
var ErrMetaMismatch = errors.New("mapper: value bound to another definition")

// BindingError reports a binding that does not fit the definition it was
// resolved against.
type BindingError struct {
	Meta    string
	Field   string
	Missing bool
	Want    schema.FieldType
	Got     schema.FieldType
}

func (e *BindingError) Error() string {
	if e.Missing {
		return fmt.Sprintf("mapper: %s has no field %q", e.Meta, e.Field)
	}
	return fmt.Sprintf("mapper: %s.%s is %s, bound as %s", e.Meta, e.Field, e.Got, e.Want)
}
