// Package rawjson navigates the deeply nested, heterogeneous JSON payloads
// the providers return. Payloads are never statically typed; parsers narrow
// them with explicit path lookups instead.
package rawjson

import (
	"encoding/json"
	"strconv"
)

// Document is one raw provider record as decoded from JSON.
type Document = map[string]any

// Decode parses a raw JSON object into a Document.
func Decode(data []byte) (Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// GetNested resolves a dotted path ("a.b.0.c") inside a document. A numeric
// segment indexes a list when the current node is one; otherwise every
// segment is a map key, so purely numeric keys like reference codes still
// resolve. Returns nil when any segment is missing.
func GetNested(node any, path string) any {
	current := node
	for _, segment := range splitPath(path) {
		switch typed := current.(type) {
		case map[string]any:
			value, ok := typed[segment]
			if !ok {
				return nil
			}
			current = value
		case []any:
			index, err := strconv.Atoi(segment)
			if err != nil || index < 0 || index >= len(typed) {
				return nil
			}
			current = typed[index]
		default:
			return nil
		}
	}
	return current
}

// GetString resolves a path to a string value.
func GetString(node any, path string) (string, bool) {
	value, ok := GetNested(node, path).(string)
	return value, ok
}

// GetNumber resolves a path to a numeric value. JSON numbers decode as
// float64; integer-typed provider fields arrive here too.
func GetNumber(node any, path string) (float64, bool) {
	value, ok := GetNested(node, path).(float64)
	return value, ok
}

// GetBool resolves a path to a boolean value.
func GetBool(node any, path string) (bool, bool) {
	value, ok := GetNested(node, path).(bool)
	return value, ok
}

func splitPath(path string) []string {
	if path == "" {
		return nil
	}
	var segments []string
	start := 0
	for i := 0; i < len(path); i++ {
		if path[i] == '.' {
			segments = append(segments, path[start:i])
			start = i + 1
		}
	}
	return append(segments, path[start:])
}
