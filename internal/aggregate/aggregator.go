package aggregate

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/pencilops/gradeflow/internal/grading"
	"github.com/pencilops/gradeflow/internal/rubric"
)

// Aggregator folds terminal grading tasks into per-student results.
type Aggregator struct {
	cfg    Config
	logger *slog.Logger
}

// NewAggregator creates an Aggregator.
func NewAggregator(cfg Config, logger *slog.Logger) *Aggregator {
	return &Aggregator{
		cfg:    cfg,
		logger: logger.With("system", "aggregate"),
	}
}

// Aggregate reconciles tasks against the parsed rubric. Sub-batches of the
// same segment may score the same question more than once; the higher
// confidence score wins and the loser is recorded as a discarded duplicate.
// Scores above a question's maximum are clamped to it. Students are flagged
// for review when their confidence falls below the configured threshold, a
// score needed clamping, or any of their tasks failed.
func (a *Aggregator) Aggregate(tasks []grading.Task, tree *rubric.Tree) (*Report, error) {
	if len(tasks) == 0 {
		return nil, ErrNoTasks
	}

	report := &Report{}
	for _, group := range groupBySegment(tasks) {
		student, duplicates := a.reconcile(group, tree)
		report.Students = append(report.Students, student)
		report.Duplicates = append(report.Duplicates, duplicates...)
	}

	report.Summary = a.summarize(report.Students, tree)

	a.logger.Info("aggregation complete",
		"students", len(report.Students),
		"duplicates", len(report.Duplicates),
		"needs_review", report.NeedsReview(),
	)
	return report, nil
}

// groupBySegment partitions tasks by segment, preserving segment order and
// sub-batch order within each segment.
func groupBySegment(tasks []grading.Task) [][]grading.Task {
	index := make(map[int]int)
	var groups [][]grading.Task

	for _, t := range tasks {
		gi, ok := index[t.SegmentIndex]
		if !ok {
			gi = len(groups)
			index[t.SegmentIndex] = gi
			groups = append(groups, nil)
		}
		groups[gi] = append(groups[gi], t)
	}

	for _, g := range groups {
		sort.SliceStable(g, func(i, j int) bool { return g[i].SubBatch < g[j].SubBatch })
	}
	return groups
}

func (a *Aggregator) reconcile(tasks []grading.Task, tree *rubric.Tree) (StudentResult, []DiscardedDuplicate) {
	student := StudentResult{
		Student:      tasks[0].Student,
		SegmentIndex: tasks[0].SegmentIndex,
		MaxScore:     tree.Total,
	}

	var duplicates []DiscardedDuplicate
	kept := make(map[string]int) // question id -> index in student.Questions
	clamped := make(map[string]bool)
	var clampedIDs []string

	var (
		confidenceSum float64
		confidenceN   int
	)

	for _, task := range tasks {
		if task.Status == grading.TaskFailed {
			student.FailedTasks++
			continue
		}
		if task.Result == nil {
			continue
		}

		confidenceSum += task.Result.Confidence
		confidenceN++
		if task.Result.Feedback != "" {
			student.Feedback = append(student.Feedback, task.Result.Feedback)
		}

		for _, q := range task.Result.Questions {
			candidate := QuestionResult{
				QuestionID: q.QuestionID,
				Score:      q.Score,
				MaxScore:   q.MaxScore,
				Confidence: q.Confidence,
				Feedback:   q.Feedback,
			}
			if candidate.MaxScore == 0 {
				candidate.MaxScore = tree.MaxScoreFor(q.QuestionID)
			}

			// A student's score never exceeds the rubric's maximum, no
			// matter what the model reported.
			if candidate.MaxScore > 0 && candidate.Score > candidate.MaxScore {
				candidate.Score = candidate.MaxScore
				if !clamped[q.QuestionID] {
					clamped[q.QuestionID] = true
					clampedIDs = append(clampedIDs, q.QuestionID)
				}
			}

			i, seen := kept[q.QuestionID]
			if !seen {
				kept[q.QuestionID] = len(student.Questions)
				student.Questions = append(student.Questions, candidate)
				continue
			}

			winner, loser := student.Questions[i], candidate
			if candidate.Confidence > winner.Confidence {
				winner, loser = candidate, student.Questions[i]
				student.Questions[i] = candidate
			}

			duplicates = append(duplicates, DiscardedDuplicate{
				Student:        student.Student,
				QuestionID:     q.QuestionID,
				KeptScore:      winner.Score,
				KeptConfidence: winner.Confidence,
				DroppedScore:   loser.Score,
				DroppedConf:    loser.Confidence,
				Reason: fmt.Sprintf(
					"question scored by multiple sub-batches; kept the %.2f-confidence score over %.2f",
					winner.Confidence, loser.Confidence,
				),
			})
		}
	}

	for _, q := range student.Questions {
		student.Score += q.Score
	}
	if confidenceN > 0 {
		student.Confidence = confidenceSum / float64(confidenceN)
	}

	if student.Confidence < a.cfg.ConfidenceThreshold {
		student.NeedsReview = true
		student.ReviewReasons = append(student.ReviewReasons,
			fmt.Sprintf("confidence %.2f below threshold %.2f", student.Confidence, a.cfg.ConfidenceThreshold))
	}
	if len(clampedIDs) > 0 {
		student.NeedsReview = true
		student.ReviewReasons = append(student.ReviewReasons,
			fmt.Sprintf("score exceeded question maximum and was clamped: %s", strings.Join(clampedIDs, ", ")))
	}
	if student.FailedTasks > 0 {
		student.NeedsReview = true
		student.ReviewReasons = append(student.ReviewReasons,
			fmt.Sprintf("%d grading task(s) failed; score is partial", student.FailedTasks))
	}

	return student, duplicates
}
