package structvalue

// ReleaseAll releases every value. Released values are skipped.
func ReleaseAll(values []*Value) {
	for _, v := range values {
		if v != nil {
			v.Release()
		}
	}
}

// Each calls fn for every value in order and releases all of them before
// returning, whether fn finishes, returns early with an error or panics.
// Return nil from fn to skip a value and keep going.
func Each(values []*Value, fn func(i int, v *Value) error) error {
	defer ReleaseAll(values)
	for i, v := range values {
		if err := fn(i, v); err != nil {
			return err
		}
	}
	return nil
}

// With runs fn on v and releases v afterwards.
func With(v *Value, fn func(v *Value) error) error {
	defer v.Release()
	return fn(v)
}

// Batch is a decoded payload that is released as a unit.
type Batch []*Value

// Release releases every value of the batch.
func (b Batch) Release() { ReleaseAll(b) }

// Len returns the number of values.
func (b Batch) Len() int { return len(b) }
