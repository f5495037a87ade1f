package main

import (
	"encoding/json"
	"fmt"
	"io"
)

// printJSON writes v to w as two-space indented JSON followed by a newline.
// Commands use it for their --json output so scripts get stable field names.
func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode json output: %w", err)
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}
