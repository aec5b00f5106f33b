package schema

import "fmt"

// SchemaNotFoundError reports a lookup miss by id or qualified name.
type SchemaNotFoundError struct {
	Namespace     int32
	ID            int32
	QualifiedName string
}

func (e *SchemaNotFoundError) Error() string {
	if e.QualifiedName != "" {
		return fmt.Sprintf("schema: no definition %q in namespace %s", e.QualifiedName, NamespaceName(e.Namespace))
	}
	return fmt.Sprintf("schema: no definition with id %d in namespace %s", e.ID, NamespaceName(e.Namespace))
}
