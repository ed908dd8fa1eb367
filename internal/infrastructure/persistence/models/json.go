package models

import "encoding/json"

// encodeStringMap serializes a string map for a jsonb column. Nil and empty maps become "{}".
func encodeStringMap(in map[string]string) string {
	if len(in) == 0 {
		return "{}"
	}
	b, err := json.Marshal(in)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// decodeStringMap parses a jsonb column back into a map. Invalid JSON yields an empty map.
func decodeStringMap(raw string) map[string]string {
	out := make(map[string]string)
	if raw == "" {
		return out
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return make(map[string]string)
	}
	return out
}

func encodeStrings(in []string) string {
	if len(in) == 0 {
		return "[]"
	}
	b, err := json.Marshal(in)
	if err != nil {
		return "[]"
	}
	return string(b)
}

func decodeStrings(raw string) []string {
	var out []string
	if raw == "" {
		return out
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil
	}
	return out
}
