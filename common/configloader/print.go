package configloader

import (
	"encoding/json"
	"fmt"
	"io"
)

// PrintConfig writes v as indented JSON.
func PrintConfig(w io.Writer, v interface{}) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("configloader: print: %w", err)
	}
	_, err = fmt.Fprintf(w, "Loaded configuration:\n%s\n", b)
	return err
}
