package rubric

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/pencilops/gradeflow/internal/grader"
)

const totalEpsilon = 1e-6

// Parser builds a rubric Tree from rubric page images by extracting scoring
// points in fixed-size page batches and merging them under canonical
// question ids.
type Parser struct {
	capability grader.Capability
	cfg        Config
	logger     *slog.Logger
}

// NewParser creates a Parser with the given capability and configuration.
func NewParser(capability grader.Capability, cfg Config, logger *slog.Logger) *Parser {
	return &Parser{
		capability: capability,
		cfg:        cfg,
		logger:     logger.With("system", "rubric"),
	}
}

// Parse extracts and merges scoring points from all pages. declaredTotal is
// the teacher-declared total score supplied at intake; when positive, a
// parsed total that diverges from it raises ErrScoreMismatch rather than
// proceeding. A declaredTotal of zero disables the check.
func (p *Parser) Parse(ctx context.Context, pages []grader.Page, declaredTotal float64) (*Tree, error) {
	if len(pages) == 0 {
		return nil, ErrNoPages
	}

	var (
		merged []Question
		index  = make(map[string]int)
		notes  []string
	)

	for start := 0; start < len(pages); start += p.cfg.BatchSize {
		end := min(start+p.cfg.BatchSize, len(pages))

		extraction, err := p.capability.ExtractRubric(ctx, pages[start:end])
		if err != nil {
			return nil, fmt.Errorf("batch %d-%d: %w", start+1, end, err)
		}

		merged = mergeItems(merged, index, extraction.Items)
		notes = append(notes, extraction.Notes...)

		p.logger.InfoContext(
			ctx, "rubric batch merged",
			"pages", fmt.Sprintf("%d-%d", start+1, end),
			"questions", len(merged),
		)
	}

	if len(merged) == 0 {
		return nil, ErrNoItems
	}

	tree := &Tree{Questions: merged}
	recomputeScores(tree)
	tree.Report = selfReport(tree, declaredTotal, notes)

	if declaredTotal > 0 && math.Abs(tree.Total-declaredTotal) > totalEpsilon {
		return nil, fmt.Errorf(
			"%w: parsed total %.1f, declared total %.1f",
			ErrScoreMismatch, tree.Total, declaredTotal,
		)
	}

	return tree, nil
}

// mergeItems folds a batch's items into the running question list. Items
// whose labels share a canonical id append to the existing question instead
// of creating a duplicate top-level entry.
func mergeItems(questions []Question, index map[string]int, items []grader.RubricItem) []Question {
	for _, item := range items {
		id := CanonicalLabel(item.Label)

		entry := Item{
			Label:       item.Label,
			Description: item.Description,
			MaxScore:    item.MaxScore,
			Keywords:    item.Keywords,
		}

		if pos, ok := index[id]; ok {
			questions[pos].Items = append(questions[pos].Items, entry)
			continue
		}

		index[id] = len(questions)
		questions = append(questions, Question{
			ID:          id,
			Description: item.Description,
			Items:       []Item{entry},
		})
	}

	return questions
}

// recomputeScores derives each question's maximum from its items and the
// tree total from the question maxima.
func recomputeScores(tree *Tree) {
	var total float64
	for i := range tree.Questions {
		var qmax float64
		for _, item := range tree.Questions[i].Items {
			qmax += item.MaxScore
		}
		tree.Questions[i].MaxScore = qmax
		total += qmax
	}
	tree.Total = total
}

func selfReport(tree *Tree, declaredTotal float64, notes []string) SelfReport {
	var checks []QualityCheck

	totalMatches := declaredTotal <= 0 || math.Abs(tree.Total-declaredTotal) <= totalEpsilon
	checks = append(checks, QualityCheck{
		Name:   "parsed total matches declared total",
		Passed: totalMatches,
		Detail: fmt.Sprintf("parsed %.1f, declared %.1f", tree.Total, declaredTotal),
	})

	scoredQuestions := true
	for _, q := range tree.Questions {
		if q.MaxScore <= 0 {
			scoredQuestions = false
			break
		}
	}
	checks = append(checks, QualityCheck{
		Name:   "every question carries a positive maximum",
		Passed: scoredQuestions,
	})

	return SelfReport{
		Confidence: parseConfidence(totalMatches, scoredQuestions, len(notes)),
		Checks:     checks,
		Notes:      notes,
	}
}

func parseConfidence(totalMatches, scoredQuestions bool, noteCount int) float64 {
	confidence := 1.0
	if !totalMatches {
		confidence -= 0.4
	}
	if !scoredQuestions {
		confidence -= 0.3
	}
	confidence -= 0.05 * float64(noteCount)
	return max(confidence, 0)
}
