package settings

import (
	"encoding/json"
	"strings"
	"sync/atomic"
	"time"
)

type snapshot struct {
	updatedAt time.Time
	values    map[string]json.RawMessage
}

var current atomic.Pointer[snapshot]

func init() {
	current.Store(&snapshot{values: map[string]json.RawMessage{}})
}

// Replace swaps the in-memory overrides for values. Blank keys are dropped.
func Replace(updatedAt time.Time, values map[string]json.RawMessage) {
	next := &snapshot{updatedAt: updatedAt.UTC(), values: make(map[string]json.RawMessage, len(values))}
	for key, raw := range values {
		if key = strings.TrimSpace(key); key != "" {
			next.values[key] = cloneRaw(raw)
		}
	}
	current.Store(next)
}

// UpdatedAt returns when the overrides last changed.
func UpdatedAt() time.Time {
	return current.Load().updatedAt
}

// Value returns a copy of the raw override for key.
func Value(key string) (json.RawMessage, bool) {
	raw, ok := current.Load().values[strings.TrimSpace(key)]
	if !ok {
		return nil, false
	}
	return cloneRaw(raw), true
}

// Snapshot returns a copy of every override.
func Snapshot() map[string]json.RawMessage {
	snap := current.Load()
	out := make(map[string]json.RawMessage, len(snap.values))
	for key, raw := range snap.values {
		out[key] = cloneRaw(raw)
	}
	return out
}

func cloneRaw(raw json.RawMessage) json.RawMessage {
	if raw == nil {
		return nil
	}
	return append(json.RawMessage(nil), raw...)
}
