package rubric_test

import (
	"testing"

	"github.com/pencilops/gradeflow/internal/rubric"
)

func TestCanonicalLabel(t *testing.T) {
	tests := []struct {
		name  string
		label string
		want  string
	}{
		{"plain number", "7", "7"},
		{"sub-letter parenthesized", "7(a)", "7"},
		{"sub-letter attached", "7b", "7"},
		{"roman sub-item", "7.ii", "7"},
		{"q prefix", "Q3", "3"},
		{"question prefix", "Question 3", "3"},
		{"question prefix with colon", "question: 12", "12"},
		{"spelled numeral", "seven", "7"},
		{"spelled numeral capitalized", "Seven", "7"},
		{"spelled numeral with sub", "seven (a)", "7"},
		{"leading zeros", "007", "7"},
		{"zero", "0", "0"},
		{"whitespace", "  4 ", "4"},
		{"unrecognizable", "Bonus", "bonus"},
		{"unrecognizable merges case", "BONUS", "bonus"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := rubric.CanonicalLabel(tt.label); got != tt.want {
				t.Errorf("CanonicalLabel(%q) = %q, want %q", tt.label, got, tt.want)
			}
		})
	}
}

func TestCanonicalNumber(t *testing.T) {
	tests := []struct {
		label  string
		want   int
		wantOK bool
	}{
		{"7(a)", 7, true},
		{"Q15", 15, true},
		{"twelve", 12, true},
		{"Bonus", 0, false},
		{"0", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			got, ok := rubric.CanonicalNumber(tt.label)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("CanonicalNumber(%q) = (%d, %v), want (%d, %v)",
					tt.label, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}
