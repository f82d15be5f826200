package condition

import "strings"

// Resolve walks a dot-separated path ("customer.address.zip") into a nested
// record. It returns nil when a segment is missing, when an intermediate value
// is null, or when an intermediate value is not a mapping.
func Resolve(record map[string]interface{}, path string) interface{} {
	if record == nil || path == "" {
		return nil
	}
	var current interface{} = record
	for _, key := range strings.Split(path, ".") {
		if current == nil {
			return nil
		}
		switch m := current.(type) {
		case map[string]interface{}:
			current = m[key]
		case map[string]string:
			v, ok := m[key]
			if !ok {
				return nil
			}
			current = v
		default:
			return nil
		}
	}
	return current
}
