package draftkings

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const stateMarker = "window.__INITIAL_STATE__ = "

// ErrNoState is returned for pages without an initial state script.
var ErrNoState = errors.New("page has no __INITIAL_STATE__")

// ExtractState decodes the JSON object assigned to window.__INITIAL_STATE__.
// Decoding stops at the end of the object, so trailing script is ignored.
func ExtractState(html string) (map[string]interface{}, error) {
	i := strings.Index(html, stateMarker)
	if i < 0 {
		return nil, ErrNoState
	}
	dec := json.NewDecoder(strings.NewReader(html[i+len(stateMarker):]))
	dec.UseNumber()

	var state map[string]interface{}
	if err := dec.Decode(&state); err != nil {
		return nil, fmt.Errorf("decoding initial state: %w", err)
	}
	return state, nil
}

// Helper functions

func extractString(m map[string]interface{}, key string) string {
	if v, ok := m[key]; ok {
		switch val := v.(type) {
		case string:
			return val
		case json.Number:
			return val.String()
		}
	}
	return ""
}

func extractMap(m map[string]interface{}, key string) map[string]interface{} {
	if v, ok := m[key]; ok {
		if mapVal, ok := v.(map[string]interface{}); ok {
			return mapVal
		}
	}
	return map[string]interface{}{}
}

func extractArray(m map[string]interface{}, key string) []interface{} {
	if v, ok := m[key]; ok {
		if arrVal, ok := v.([]interface{}); ok {
			return arrVal
		}
	}
	return []interface{}{}
}

// extractFloat reads a number; ok is false when the key is absent.
func extractFloat(m map[string]interface{}, key string) (float64, bool) {
	v, ok := m[key]
	if !ok {
		return 0, false
	}
	switch val := v.(type) {
	case json.Number:
		f, err := val.Float64()
		return f, err == nil
	case float64:
		return val, true
	case string:
		f, err := strconv.ParseFloat(val, 64)
		return f, err == nil
	}
	return 0, false
}

// values returns the elements of a JSON array or the values of a JSON
// object, which the feed uses interchangeably for collections.
func values(v interface{}) []map[string]interface{} {
	var out []map[string]interface{}
	switch val := v.(type) {
	case []interface{}:
		for _, e := range val {
			if m, ok := e.(map[string]interface{}); ok {
				out = append(out, m)
			}
		}
	case map[string]interface{}:
		for _, e := range val {
			if m, ok := e.(map[string]interface{}); ok {
				out = append(out, m)
			}
		}
	}
	return out
}
