package state_test

import (
	"errors"
	"testing"

	"github.com/pencilops/gradeflow/pkg/state"
)

func TestSetGetRoundTrip(t *testing.T) {
	type payload struct {
		Name  string `json:"name"`
		Score int    `json:"score"`
	}

	s, err := state.Set(state.New(), "result", payload{Name: "Ada", Score: 42})
	if err != nil {
		t.Fatalf("set failed: %v", err)
	}

	got, err := state.Get[payload](s, "result")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.Name != "Ada" || got.Score != 42 {
		t.Errorf("got %+v, want {Ada 42}", got)
	}
}

func TestGetMissingKey(t *testing.T) {
	_, err := state.Get[string](state.New(), "absent")
	if !errors.Is(err, state.ErrKeyMissing) {
		t.Errorf("got %v, want ErrKeyMissing", err)
	}
}

func TestHas(t *testing.T) {
	s, _ := state.Set(state.New(), "a", 1)
	s, _ = state.Set(s, "b", 2)

	tests := []struct {
		name string
		keys []string
		want bool
	}{
		{"all present", []string{"a", "b"}, true},
		{"one missing", []string{"a", "c"}, false},
		{"none requested", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.Has(tt.keys...); got != tt.want {
				t.Errorf("Has(%v) = %v, want %v", tt.keys, got, tt.want)
			}
		})
	}
}

func TestMergeNeverOverwrites(t *testing.T) {
	base, _ := state.Set(state.New(), "score", 10)
	patch, _ := state.Set(state.New(), "score", 99)
	patch, _ = state.Set(patch, "extra", "new")

	merged := base.Merge(patch)

	score, err := state.Get[int](merged, "score")
	if err != nil {
		t.Fatalf("get score: %v", err)
	}
	if score != 10 {
		t.Errorf("existing key overwritten: got %d, want 10", score)
	}

	extra, err := state.Get[string](merged, "extra")
	if err != nil {
		t.Fatalf("get extra: %v", err)
	}
	if extra != "new" {
		t.Errorf("new key not merged: got %q", extra)
	}
}

func TestMergeLeavesReceiverUntouched(t *testing.T) {
	base, _ := state.Set(state.New(), "a", 1)
	patch, _ := state.Set(state.New(), "b", 2)

	_ = base.Merge(patch)

	if base.Has("b") {
		t.Error("merge mutated the receiver")
	}
}

func TestSetReplacesExisting(t *testing.T) {
	s, _ := state.Set(state.New(), "key", "first")
	s, err := state.Set(s, "key", "second")
	if err != nil {
		t.Fatalf("set failed: %v", err)
	}

	got, _ := state.Get[string](s, "key")
	if got != "second" {
		t.Errorf("got %q, want second", got)
	}
}

func TestCloneIsIndependent(t *testing.T) {
	orig, _ := state.Set(state.New(), "a", 1)
	clone := orig.Clone()

	clone, _ = state.Set(clone, "b", 2)

	if orig.Has("b") {
		t.Error("writing to clone leaked into original")
	}
	if !clone.Has("a") {
		t.Error("clone missing original key")
	}
}
