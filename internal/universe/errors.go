package universe

import "fmt"

// FieldParseError reports a Market record whose revision table could not
// be read. Only that market is skipped.
type FieldParseError struct {
	Namespace string
	Market    string
	Field     int
	Err       error
}

func (e *FieldParseError) Error() string {
	return fmt.Sprintf("universe: %s/%s field %d: %v", e.Namespace, e.Market, e.Field, e.Err)
}

func (e *FieldParseError) Unwrap() error { return e.Err }
