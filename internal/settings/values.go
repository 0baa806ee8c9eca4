package settings

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// StringValue returns the string stored under key, or def when unset or blank.
func StringValue(key, def string) string {
	raw, ok := Value(key)
	if !ok {
		return def
	}
	if parsed, okParse := ParseString(raw); okParse && parsed != "" {
		return parsed
	}
	return def
}

// IntValue returns the integer stored under key, or def when unset or unparsable.
func IntValue(key string, def int) int {
	raw, ok := Value(key)
	if !ok {
		return def
	}
	if parsed, okParse := ParseInt(raw); okParse {
		return parsed
	}
	return def
}

// ParseString decodes a JSON string, or a {"value": ...} wrapper around one.
func ParseString(raw json.RawMessage) (string, bool) {
	raw = bytesTrimSpace(raw)
	if len(raw) == 0 {
		return "", false
	}
	var s string
	if errUnmarshal := json.Unmarshal(raw, &s); errUnmarshal == nil {
		return strings.TrimSpace(s), true
	}
	var wrapper struct {
		Value json.RawMessage `json:"value"`
	}
	if errUnmarshal := json.Unmarshal(raw, &wrapper); errUnmarshal == nil && len(wrapper.Value) > 0 {
		return ParseString(wrapper.Value)
	}
	return "", false
}

// ParseInt decodes integers stored as numbers, numeric strings or {"value": ...} wrappers.
func ParseInt(raw json.RawMessage) (int, bool) {
	raw = bytesTrimSpace(raw)
	if len(raw) == 0 {
		return 0, false
	}
	var n int
	if errUnmarshal := json.Unmarshal(raw, &n); errUnmarshal == nil {
		return n, true
	}
	var f float64
	if errUnmarshal := json.Unmarshal(raw, &f); errUnmarshal == nil {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		if f != math.Trunc(f) {
			return 0, false
		}
		return int(f), true
	}
	var s string
	if errUnmarshal := json.Unmarshal(raw, &s); errUnmarshal == nil {
		parsed, errParse := strconv.Atoi(strings.TrimSpace(s))
		if errParse == nil {
			return parsed, true
		}
	}
	var wrapper struct {
		Value json.RawMessage `json:"value"`
	}
	if errUnmarshal := json.Unmarshal(raw, &wrapper); errUnmarshal == nil && len(wrapper.Value) > 0 {
		return ParseInt(wrapper.Value)
	}
	return 0, false
}

func bytesTrimSpace(input []byte) []byte {
	if len(input) == 0 {
		return nil
	}
	start := 0
	end := len(input)
	for start < end {
		if input[start] > ' ' {
			break
		}
		start++
	}
	for end > start {
		if input[end-1] > ' ' {
			break
		}
		end--
	}
	return input[start:end]
}
