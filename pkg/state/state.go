// Package state provides the accumulated run state shared across workflow
// nodes: a JSON-encoded key-value union where merges are strictly additive.
// Because existing keys are never overwritten, re-executing a node after a
// crash and re-merging its output is safe.
package state

import (
	"encoding/json"
	"fmt"
	"maps"
)

// State is an append-only union of node outputs. Values are stored as raw
// JSON so the state round-trips through checkpoint persistence without
// losing type information.
type State map[string]json.RawMessage

// New creates an empty State.
func New() State {
	return State{}
}

// Clone returns a shallow copy of the state map.
func (s State) Clone() State {
	next := make(State, len(s))
	maps.Copy(next, s)
	return next
}

// Has reports whether every given key is present.
func (s State) Has(keys ...string) bool {
	for _, key := range keys {
		if _, ok := s[key]; !ok {
			return false
		}
	}
	return true
}

// Merge returns a new State containing s plus every key from patch that is
// not already present. Existing keys always win; a replayed node's output
// never displaces the output recorded by a prior attempt.
func (s State) Merge(patch State) State {
	next := s.Clone()
	for key, value := range patch {
		if _, ok := next[key]; ok {
			continue
		}
		next[key] = value
	}
	return next
}

// Set returns a new State with value marshaled under key. Unlike Merge, Set
// replaces an existing key; it is used when seeding a state and when building
// a node's output patch, never when combining patches into the run state.
func Set[T any](s State, key string, value T) (State, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return s, fmt.Errorf("marshal state key %s: %w", key, err)
	}

	next := s.Clone()
	next[key] = data
	return next, nil
}

// Get unmarshals the value stored under key into T.
// Returns ErrKeyMissing if the key is absent.
func Get[T any](s State, key string) (T, error) {
	var value T

	data, ok := s[key]
	if !ok {
		return value, fmt.Errorf("%w: %s", ErrKeyMissing, key)
	}

	if err := json.Unmarshal(data, &value); err != nil {
		return value, fmt.Errorf("unmarshal state key %s: %w", key, err)
	}

	return value, nil
}
