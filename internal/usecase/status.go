package usecase

import (
	"encoding/json"
	"strings"

	"github.com/moicben/calendar-agent/internal/entity"
)

// nestedResultKeys are probed, in order, when a mapping has no status of its own.
var nestedResultKeys = []string{"data", "result"}

// CoerceStatus extracts a booking status from whatever the agent returned.
// Checks run from most to least structured: an enum-like value, a mapping
// with a status key, an exact literal, a JSON document with a status field,
// then a literal appearing anywhere in text. It reports false when nothing
// matches.
func CoerceStatus(r entity.AgentResult) (entity.BookingStatus, bool) {
	switch v := r.(type) {
	case entity.StatusValue:
		if v.Status.Valid() {
			return v.Status, true
		}
		return "", false
	case entity.Mapping:
		return statusFromMapping(v)
	case entity.List:
		for i := len(v) - 1; i >= 0; i-- {
			if s, ok := CoerceStatus(v[i]); ok {
				return s, true
			}
		}
		return "", false
	case entity.Text:
		return statusFromText(string(v))
	}
	return "", false
}

// StatusOrError is CoerceStatus with unrecognised results mapped to
// StatusError.
func StatusOrError(r entity.AgentResult) entity.BookingStatus {
	if s, ok := CoerceStatus(r); ok {
		return s
	}
	return entity.StatusError
}

func statusFromMapping(m entity.Mapping) (entity.BookingStatus, bool) {
	if raw, ok := m["status"]; ok {
		if s, ok := raw.(string); ok {
			if st := entity.BookingStatus(strings.TrimSpace(s)); st.Valid() {
				return st, true
			}
		}
	}
	for _, key := range nestedResultKeys {
		nested, ok := m[key].(map[string]any)
		if !ok {
			continue
		}
		if s, ok := statusFromMapping(entity.Mapping(nested)); ok {
			return s, true
		}
	}
	return "", false
}

func statusFromText(text string) (entity.BookingStatus, bool) {
	trimmed := strings.TrimSpace(text)
	if st := entity.BookingStatus(trimmed); st.Valid() {
		return st, true
	}

	if strings.HasPrefix(trimmed, "{") {
		var doc map[string]any
		if err := json.Unmarshal([]byte(trimmed), &doc); err == nil {
			if s, ok := statusFromMapping(entity.Mapping(doc)); ok {
				return s, true
			}
		}
	}

	// The agent's final answer comes last, so the last literal wins.
	best, bestAt := entity.BookingStatus(""), -1
	for _, st := range entity.BookingStatuses {
		if i := strings.LastIndex(trimmed, string(st)); i > bestAt {
			best, bestAt = st, i
		}
	}
	if bestAt >= 0 {
		return best, true
	}
	return "", false
}
