package rubric_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/pencilops/gradeflow/internal/grader"
	"github.com/pencilops/gradeflow/internal/rubric"
)

// stubCapability returns a canned extraction per batch, in call order.
type stubCapability struct {
	extractions []*grader.RubricExtraction
	calls       int
	batchSizes  []int
}

func (s *stubCapability) ExtractRubric(_ context.Context, pages []grader.Page) (*grader.RubricExtraction, error) {
	s.batchSizes = append(s.batchSizes, len(pages))
	if s.calls >= len(s.extractions) {
		return &grader.RubricExtraction{}, nil
	}
	out := s.extractions[s.calls]
	s.calls++
	return out, nil
}

func (s *stubCapability) ScanPages(context.Context, []grader.Page) ([]grader.PageScan, error) {
	return nil, errors.New("not implemented")
}

func (s *stubCapability) Grade(context.Context, []grader.Page, grader.RubricSlice) (*grader.Result, error) {
	return nil, errors.New("not implemented")
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func pages(n int) []grader.Page {
	out := make([]grader.Page, n)
	for i := range out {
		out[i] = grader.Page{Number: i + 1, ImagePath: "page.png"}
	}
	return out
}

func item(label string, score float64) grader.RubricItem {
	return grader.RubricItem{Label: label, Description: "desc " + label, MaxScore: score}
}

func TestParseMergesSubLabels(t *testing.T) {
	capability := &stubCapability{
		extractions: []*grader.RubricExtraction{
			{Items: []grader.RubricItem{
				item("1", 10),
				item("2(a)", 5),
				item("2(b)", 5),
			}},
		},
	}

	parser := rubric.NewParser(capability, rubric.Config{BatchSize: 4}, discard())
	tree, err := parser.Parse(context.Background(), pages(2), 20)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	if tree.QuestionCount() != 2 {
		t.Fatalf("questions = %d, want 2", tree.QuestionCount())
	}
	if tree.Questions[1].ID != "2" {
		t.Errorf("second question id = %q, want 2", tree.Questions[1].ID)
	}
	if len(tree.Questions[1].Items) != 2 {
		t.Errorf("question 2 items = %d, want 2", len(tree.Questions[1].Items))
	}
	if tree.Questions[1].MaxScore != 10 {
		t.Errorf("question 2 max = %.1f, want 10", tree.Questions[1].MaxScore)
	}
	if tree.Total != 20 {
		t.Errorf("total = %.1f, want 20", tree.Total)
	}
}

func TestParseMergesAcrossBatches(t *testing.T) {
	capability := &stubCapability{
		extractions: []*grader.RubricExtraction{
			{Items: []grader.RubricItem{item("Q3", 4)}},
			{Items: []grader.RubricItem{item("3(b)", 6)}},
		},
	}

	parser := rubric.NewParser(capability, rubric.Config{BatchSize: 2}, discard())
	tree, err := parser.Parse(context.Background(), pages(4), 0)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	if got := capability.batchSizes; len(got) != 2 || got[0] != 2 || got[1] != 2 {
		t.Errorf("batch sizes = %v, want [2 2]", got)
	}
	if tree.QuestionCount() != 1 {
		t.Fatalf("questions = %d, want 1", tree.QuestionCount())
	}
	if tree.Questions[0].MaxScore != 10 {
		t.Errorf("question max = %.1f, want 10", tree.Questions[0].MaxScore)
	}
}

func TestParseUnevenFinalBatch(t *testing.T) {
	capability := &stubCapability{
		extractions: []*grader.RubricExtraction{
			{Items: []grader.RubricItem{item("1", 5)}},
			{Items: []grader.RubricItem{item("2", 5)}},
		},
	}

	parser := rubric.NewParser(capability, rubric.Config{BatchSize: 3}, discard())
	if _, err := parser.Parse(context.Background(), pages(5), 0); err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	if got := capability.batchSizes; len(got) != 2 || got[0] != 3 || got[1] != 2 {
		t.Errorf("batch sizes = %v, want [3 2]", got)
	}
}

func TestParseScoreMismatch(t *testing.T) {
	capability := &stubCapability{
		extractions: []*grader.RubricExtraction{
			{Items: []grader.RubricItem{item("1", 10), item("2", 8)}},
		},
	}

	parser := rubric.NewParser(capability, rubric.Config{BatchSize: 4}, discard())
	_, err := parser.Parse(context.Background(), pages(1), 20)
	if !errors.Is(err, rubric.ErrScoreMismatch) {
		t.Errorf("got %v, want ErrScoreMismatch", err)
	}
}

func TestParseZeroDeclaredTotalSkipsCheck(t *testing.T) {
	capability := &stubCapability{
		extractions: []*grader.RubricExtraction{
			{Items: []grader.RubricItem{item("1", 7)}},
		},
	}

	parser := rubric.NewParser(capability, rubric.Config{BatchSize: 4}, discard())
	tree, err := parser.Parse(context.Background(), pages(1), 0)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if tree.Total != 7 {
		t.Errorf("total = %.1f, want 7", tree.Total)
	}
}

func TestParseNoPages(t *testing.T) {
	parser := rubric.NewParser(&stubCapability{}, rubric.Config{BatchSize: 4}, discard())
	if _, err := parser.Parse(context.Background(), nil, 0); !errors.Is(err, rubric.ErrNoPages) {
		t.Errorf("got %v, want ErrNoPages", err)
	}
}

func TestParseNoItems(t *testing.T) {
	parser := rubric.NewParser(&stubCapability{}, rubric.Config{BatchSize: 4}, discard())
	if _, err := parser.Parse(context.Background(), pages(1), 0); !errors.Is(err, rubric.ErrNoItems) {
		t.Errorf("got %v, want ErrNoItems", err)
	}
}

func TestSelfReportFlagsMismatch(t *testing.T) {
	capability := &stubCapability{
		extractions: []*grader.RubricExtraction{
			{Items: []grader.RubricItem{item("1", 10)}},
		},
	}

	parser := rubric.NewParser(capability, rubric.Config{BatchSize: 4}, discard())
	tree, err := parser.Parse(context.Background(), pages(1), 0)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	if tree.Report.Confidence != 1.0 {
		t.Errorf("confidence = %.2f, want 1.0", tree.Report.Confidence)
	}
	for _, check := range tree.Report.Checks {
		if !check.Passed {
			t.Errorf("check %q failed unexpectedly", check.Name)
		}
	}
}
