package segmentation

import (
	"bytes"
	"encoding/json"
	"strings"
)

// stringList decodes a JSON array of strings or numbers into a de-duplicated
// list of trimmed, non-empty strings. Numbers are kept in their literal form
// so product ids like 1024 and "1024" compare equal.
func stringList(raw json.RawMessage) ([]string, bool) {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil || len(items) == 0 {
		return nil, false
	}
	seen := make(map[string]bool, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = bytes.TrimSpace(item)
		var s string
		switch {
		case len(item) > 0 && item[0] == '"':
			if err := json.Unmarshal(item, &s); err != nil {
				return nil, false
			}
		default:
			var n json.Number
			if err := json.Unmarshal(item, &n); err != nil {
				return nil, false
			}
			s = n.String()
		}
		s = strings.TrimSpace(s)
		if s == "" {
			return nil, false
		}
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out, true
}

// scalarString decodes a non-empty JSON string.
func scalarString(raw json.RawMessage) (string, bool) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	s = strings.TrimSpace(s)
	return s, s != ""
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// likePattern wraps s for a substring ILIKE match with wildcards escaped.
func likePattern(s string) string {
	return "%" + likeEscaper.Replace(s) + "%"
}
