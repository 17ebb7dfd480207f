package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
)

// Output writes a flat result either as indented JSON or as key: value lines.
func Output(w io.Writer, format string, result map[string]string) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	keys := make([]string, 0, len(result))
	for k := range result {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if _, err := fmt.Fprintf(w, "%s: %s\n", k, result[k]); err != nil {
			return err
		}
	}
	return nil
}
