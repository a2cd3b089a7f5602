package aggregate

import (
	"fmt"

	"github.com/pencilops/gradeflow/internal/rubric"
)

// distribution buckets are percentage bands of the maximum score.
var bucketBounds = []struct {
	label string
	lower float64
}{
	{"90-100%", 0.9},
	{"80-89%", 0.8},
	{"70-79%", 0.7},
	{"60-69%", 0.6},
	{"0-59%", 0},
}

func (a *Aggregator) summarize(students []StudentResult, tree *rubric.Tree) ClassSummary {
	summary := ClassSummary{Students: len(students)}
	if len(students) == 0 {
		return summary
	}

	buckets := make([]Bucket, len(bucketBounds))
	for i, b := range bucketBounds {
		buckets[i] = Bucket{Label: b.label}
	}

	var scoreSum, ratioSum float64
	passed := 0
	for _, s := range students {
		ratio := 0.0
		if s.MaxScore > 0 {
			ratio = s.Score / s.MaxScore
		}
		scoreSum += s.Score
		ratioSum += ratio
		if ratio >= a.cfg.PassRatio {
			passed++
		}
		for i, b := range bucketBounds {
			if ratio >= b.lower {
				buckets[i].Count++
				break
			}
		}
	}

	n := float64(len(students))
	summary.Average = scoreSum / n
	summary.AverageRatio = ratioSum / n
	summary.PassRate = float64(passed) / n
	summary.Distribution = buckets
	summary.WeakPoints, summary.StrongPoints = questionExtremes(students, tree)

	return summary
}

// questionExtremes names the questions the class struggled with and the ones
// it mastered, by average score ratio.
func questionExtremes(students []StudentResult, tree *rubric.Tree) (weak, strong []string) {
	type tally struct {
		sum float64
		n   int
	}
	tallies := make(map[string]*tally)

	for _, s := range students {
		for _, q := range s.Questions {
			if q.MaxScore <= 0 {
				continue
			}
			t, ok := tallies[q.QuestionID]
			if !ok {
				t = &tally{}
				tallies[q.QuestionID] = t
			}
			t.sum += q.Score / q.MaxScore
			t.n++
		}
	}

	// Walk the rubric order so the output is stable.
	for _, q := range tree.Questions {
		t, ok := tallies[q.ID]
		if !ok || t.n == 0 {
			continue
		}
		avg := t.sum / float64(t.n)
		switch {
		case avg < 0.5:
			weak = append(weak, fmt.Sprintf("%s (class average %.0f%%)", q.ID, avg*100))
		case avg >= 0.85:
			strong = append(strong, fmt.Sprintf("%s (class average %.0f%%)", q.ID, avg*100))
		}
	}
	return weak, strong
}
