package probe

import (
	"encoding/json"
	"strings"
)

// FieldPresent reports whether the expected field is present in a JSON
// response body. An empty path means "no expectation" and is always present.
// The path is a dot-separated descent through JSON objects ("data.id" matches
// {"data":{"id":...}}); a single segment is a top-level lookup. Arrays are not
// traversed. A non-JSON body never satisfies a non-empty expectation.
func FieldPresent(body []byte, path string) bool {
	if path == "" {
		return true
	}

	var doc map[string]any
	if err := json.Unmarshal(body, &doc); err != nil {
		return false
	}

	segments := strings.Split(path, ".")
	current := doc
	for i, seg := range segments {
		value, ok := current[seg]
		if !ok {
			return false
		}
		if i == len(segments)-1 {
			return true
		}
		next, ok := value.(map[string]any)
		if !ok {
			return false
		}
		current = next
	}
	return false
}
