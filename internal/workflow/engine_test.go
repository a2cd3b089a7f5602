package workflow_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/pencilops/gradeflow/internal/aggregate"
	"github.com/pencilops/gradeflow/internal/grader"
	"github.com/pencilops/gradeflow/internal/grading"
	"github.com/pencilops/gradeflow/internal/rubric"
	"github.com/pencilops/gradeflow/internal/segment"
	"github.com/pencilops/gradeflow/internal/workflow"
	"github.com/pencilops/gradeflow/pkg/checkpoint"
	"github.com/pencilops/gradeflow/pkg/state"
)

const waitTimeout = 5 * time.Second

// harness stubs every external collaborator of the engine and counts calls,
// so tests can assert which pipeline stages actually executed.
type harness struct {
	mu           sync.Mutex
	fetchCalls   int
	rasterCalls  int
	extractCalls int
	scanCalls    int
	gradeCalls   int
	exportCalls  int

	// fetchGate, when set, blocks the first intake fetch until closed.
	fetchGate chan struct{}
	// gradeHold, when set, blocks grading until the context is cancelled.
	gradeHold bool
	// rubricTotal is the total score the stubbed extraction adds up to.
	rubricTotal float64
}

func newHarness() *harness {
	return &harness{rubricTotal: 20}
}

func (h *harness) count(field *int) {
	h.mu.Lock()
	*field++
	h.mu.Unlock()
}

func (h *harness) calls(field *int) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return *field
}

// Fetch pretends to download a submission document.
func (h *harness) Fetch(_ context.Context, id uuid.UUID, dir string) (string, int, error) {
	h.mu.Lock()
	gate := h.fetchGate
	h.fetchGate = nil
	h.fetchCalls++
	h.mu.Unlock()

	if gate != nil {
		<-gate
	}
	return filepath.Join(dir, id.String()+".pdf"), 4, nil
}

// Rasterize pretends to render four pages per document.
func (h *harness) Rasterize(_ context.Context, pdfPath, outDir string) ([]grader.Page, error) {
	h.count(&h.rasterCalls)

	pages := make([]grader.Page, 4)
	for i := range pages {
		pages[i] = grader.Page{
			Number:    i + 1,
			ImagePath: filepath.Join(outDir, fmt.Sprintf("page-%d.png", i+1)),
		}
	}
	return pages, nil
}

func (h *harness) ExtractRubric(context.Context, []grader.Page) (*grader.RubricExtraction, error) {
	h.count(&h.extractCalls)

	h.mu.Lock()
	total := h.rubricTotal
	h.mu.Unlock()

	return &grader.RubricExtraction{
		Items: []grader.RubricItem{
			{Label: "1", Description: "first", MaxScore: 5},
			{Label: "2", Description: "second", MaxScore: 7},
			{Label: "3", Description: "third", MaxScore: total - 12},
		},
	}, nil
}

// ScanPages reports a question-number restart on page 3, yielding two
// two-page student segments.
func (h *harness) ScanPages(_ context.Context, pages []grader.Page) ([]grader.PageScan, error) {
	h.count(&h.scanCalls)

	labels := [][]string{{"1", "2"}, {"3"}, {"1", "2"}, {"3"}}
	scans := make([]grader.PageScan, len(pages))
	for i, p := range pages {
		scans[i] = grader.PageScan{PageNumber: p.Number, Labels: labels[(p.Number-1)%len(labels)]}
	}
	return scans, nil
}

func (h *harness) Grade(ctx context.Context, _ []grader.Page, _ grader.RubricSlice) (*grader.Result, error) {
	h.count(&h.gradeCalls)

	h.mu.Lock()
	hold := h.gradeHold
	h.mu.Unlock()

	if hold {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	return &grader.Result{
		Score:      15,
		Confidence: 0.9,
		Questions: []grader.QuestionScore{
			{QuestionID: "1", Score: 5, MaxScore: 5, Confidence: 0.9},
			{QuestionID: "2", Score: 7, MaxScore: 7, Confidence: 0.9},
			{QuestionID: "3", Score: 3, MaxScore: 8, Confidence: 0.9},
		},
	}, nil
}

func (h *harness) Export(_ context.Context, runID uuid.UUID, _ []byte) (string, error) {
	h.count(&h.exportCalls)
	return "reports/" + runID.String() + ".json", nil
}

func testRuntime(t *testing.T, h *harness, cfg workflow.Config) *workflow.Runtime {
	t.Helper()

	if cfg.EventBuffer == 0 {
		cfg.EventBuffer = 64
	}
	if cfg.RubricReviewThreshold == 0 {
		cfg.RubricReviewThreshold = 0.7
	}
	if cfg.WorkDir == "" {
		cfg.WorkDir = t.TempDir()
	}

	segCfg := segment.Config{}
	if err := segCfg.Finalize(nil); err != nil {
		t.Fatalf("finalize segment config: %v", err)
	}

	return &workflow.Runtime{
		Capability:  h,
		Rasterizer:  h,
		Submissions: h,
		Exporter:    h,
		Rubric:      rubric.Config{BatchSize: 4},
		Segment:     segCfg,
		Grading: grading.Config{
			PoolSize:          2,
			MaxRetries:        1,
			TaskTimeout:       time.Second,
			SubBatchPageLimit: 8,
		},
		Aggregate: aggregate.Config{ConfidenceThreshold: 0.6, PassRatio: 0.6},
		Workflow:  cfg,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func testIntake() workflow.Intake {
	return workflow.Intake{
		AnswerSubmissionID: uuid.New(),
		RubricSubmissionID: uuid.New(),
		DeclaredTotal:      20,
		DeclaredPageCount:  4,
	}
}

func waitStatus(t *testing.T, engine *workflow.Engine, id uuid.UUID, status workflow.RunStatus) *workflow.Run {
	t.Helper()

	deadline := time.Now().Add(waitTimeout)
	for time.Now().Before(deadline) {
		run, err := engine.Status(context.Background(), id)
		if err != nil {
			t.Fatalf("status failed: %v", err)
		}
		if run.Status == status {
			return run
		}
		if run.Status.Terminal() && run.Status != status {
			t.Fatalf("run settled at %s (error %q), want %s", run.Status, run.Error, status)
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for status %s", status)
	return nil
}

func TestRunCompletesEndToEnd(t *testing.T) {
	h := newHarness()
	engine := workflow.NewEngine(testRuntime(t, h, workflow.Config{}), checkpoint.NewMemory())

	id, err := engine.Submit(context.Background(), testIntake())
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	run := waitStatus(t, engine, id, workflow.StatusCompleted)

	for _, key := range []string{
		workflow.KeyPages, workflow.KeyRubric, workflow.KeySegments,
		workflow.KeyTasks, workflow.KeyReport, workflow.KeyExport,
	} {
		if !run.State.Has(key) {
			t.Errorf("missing state key %s", key)
		}
	}

	// Both gates auto-approved: a confident parse and a clean report never
	// suspend the run.
	rubricDecision, err := state.Get[workflow.Decision](run.State, workflow.KeyRubricDecision)
	if err != nil {
		t.Fatalf("rubric decision: %v", err)
	}
	if !rubricDecision.Auto || rubricDecision.Kind != workflow.DecisionApprove {
		t.Errorf("rubric decision = %+v, want auto approve", rubricDecision)
	}

	report, err := state.Get[aggregate.Report](run.State, workflow.KeyReport)
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if len(report.Students) != 2 {
		t.Errorf("students = %d, want 2", len(report.Students))
	}

	exportKey, err := state.Get[string](run.State, workflow.KeyExport)
	if err != nil {
		t.Fatalf("export key: %v", err)
	}
	if !strings.HasPrefix(exportKey, "reports/") {
		t.Errorf("export key = %q", exportKey)
	}

	if h.calls(&h.rasterCalls) != 2 {
		t.Errorf("raster calls = %d, want 2 (answers and rubric)", h.rasterCalls)
	}
	if h.calls(&h.gradeCalls) != 2 {
		t.Errorf("grade calls = %d, want 2 segments", h.gradeCalls)
	}
	if h.calls(&h.exportCalls) != 1 {
		t.Errorf("export calls = %d, want 1", h.exportCalls)
	}
}

func TestSubmitValidatesIntake(t *testing.T) {
	h := newHarness()
	engine := workflow.NewEngine(testRuntime(t, h, workflow.Config{}), checkpoint.NewMemory())

	tests := []struct {
		name   string
		intake workflow.Intake
	}{
		{"missing answer id", workflow.Intake{RubricSubmissionID: uuid.New()}},
		{"missing rubric id", workflow.Intake{AnswerSubmissionID: uuid.New()}},
		{
			"negative total",
			workflow.Intake{
				AnswerSubmissionID: uuid.New(),
				RubricSubmissionID: uuid.New(),
				DeclaredTotal:      -1,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := engine.Submit(context.Background(), tt.intake); !errors.Is(err, workflow.ErrInvalidIntake) {
				t.Errorf("got %v, want ErrInvalidIntake", err)
			}
		})
	}
}

func TestStatusUnknownRun(t *testing.T) {
	h := newHarness()
	engine := workflow.NewEngine(testRuntime(t, h, workflow.Config{}), checkpoint.NewMemory())

	if _, err := engine.Status(context.Background(), uuid.New()); !errors.Is(err, workflow.ErrRunNotFound) {
		t.Errorf("got %v, want ErrRunNotFound", err)
	}
}

func TestEventSequenceStrictlyIncreasing(t *testing.T) {
	h := newHarness()
	h.fetchGate = make(chan struct{})
	engine := workflow.NewEngine(testRuntime(t, h, workflow.Config{}), checkpoint.NewMemory())

	id, err := engine.Submit(context.Background(), testIntake())
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	events, cancel := engine.Subscribe(id)
	defer cancel()
	close(h.fetchGate)

	var (
		lastSeq  uint64
		lastKind workflow.EventKind
		taskSeen bool
	)
	deadline := time.After(waitTimeout)
	for {
		select {
		case event, ok := <-events:
			if !ok {
				if lastKind != workflow.EventCompleted {
					t.Fatalf("stream ended on %s, want completed", lastKind)
				}
				if !taskSeen {
					t.Error("no task_update events observed")
				}
				return
			}
			if event.Seq <= lastSeq {
				t.Fatalf("seq %d after %d; stream not strictly increasing", event.Seq, lastSeq)
			}
			lastSeq = event.Seq
			lastKind = event.Kind
			if event.Kind == workflow.EventTaskUpdate {
				taskSeen = true
			}
		case <-deadline:
			t.Fatal("timed out waiting for event stream to close")
		}
	}
}

func TestMandatoryRubricReviewSuspends(t *testing.T) {
	h := newHarness()
	store := checkpoint.NewMemory()
	engine := workflow.NewEngine(testRuntime(t, h, workflow.Config{MandatoryRubricReview: true}), store)

	id, err := engine.Submit(context.Background(), testIntake())
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	run := waitStatus(t, engine, id, workflow.StatusSuspended)
	if run.CurrentNode != workflow.NodeRubricReview {
		t.Fatalf("suspended at %s, want rubric_review", run.CurrentNode)
	}
	if h.calls(&h.gradeCalls) != 0 {
		t.Error("grading ran before the rubric gate resolved")
	}
}

func TestResumeAcrossEngineInstances(t *testing.T) {
	h := newHarness()
	store := checkpoint.NewMemory()
	workDir := t.TempDir()
	first := workflow.NewEngine(testRuntime(t, h, workflow.Config{MandatoryRubricReview: true, WorkDir: workDir}), store)

	id, err := first.Submit(context.Background(), testIntake())
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	waitStatus(t, first, id, workflow.StatusSuspended)

	extractsBefore := h.calls(&h.extractCalls)

	// A fresh engine over the same store sees the parked run and resumes it.
	second := workflow.NewEngine(testRuntime(t, h, workflow.Config{MandatoryRubricReview: true, WorkDir: workDir}), store)
	if _, err := second.Resume(context.Background(), id, workflow.Decision{Kind: workflow.DecisionApprove, Note: "looks right"}); err != nil {
		t.Fatalf("resume failed: %v", err)
	}

	run := waitStatus(t, second, id, workflow.StatusCompleted)

	decision, err := state.Get[workflow.Decision](run.State, workflow.KeyRubricDecision)
	if err != nil {
		t.Fatalf("decision: %v", err)
	}
	if decision.Auto || decision.Kind != workflow.DecisionApprove || decision.Note != "looks right" {
		t.Errorf("decision = %+v", decision)
	}

	// Checkpoint replay re-enters at the gate; completed nodes never rerun.
	if got := h.calls(&h.extractCalls); got != extractsBefore {
		t.Errorf("extract calls went from %d to %d after resume", extractsBefore, got)
	}
	if h.calls(&h.rasterCalls) != 2 {
		t.Errorf("raster calls = %d, want 2", h.rasterCalls)
	}
}

func TestResumeIsIdempotent(t *testing.T) {
	h := newHarness()
	engine := workflow.NewEngine(testRuntime(t, h, workflow.Config{}), checkpoint.NewMemory())

	id, err := engine.Submit(context.Background(), testIntake())
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	waitStatus(t, engine, id, workflow.StatusCompleted)

	// The run is not suspended; a stray decision is a no-op.
	run, err := engine.Resume(context.Background(), id, workflow.Decision{Kind: workflow.DecisionApprove})
	if err != nil {
		t.Fatalf("resume failed: %v", err)
	}
	if run.Status != workflow.StatusCompleted {
		t.Errorf("status = %s, want completed", run.Status)
	}
}

func TestResumeRejectCancelsRun(t *testing.T) {
	h := newHarness()
	engine := workflow.NewEngine(testRuntime(t, h, workflow.Config{MandatoryRubricReview: true}), checkpoint.NewMemory())

	id, err := engine.Submit(context.Background(), testIntake())
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	waitStatus(t, engine, id, workflow.StatusSuspended)

	if _, err := engine.Resume(context.Background(), id, workflow.Decision{Kind: workflow.DecisionReject, Note: "unusable rubric"}); err != nil {
		t.Fatalf("resume failed: %v", err)
	}

	run := waitStatus(t, engine, id, workflow.StatusCancelled)
	if h.calls(&h.gradeCalls) != 0 {
		t.Error("grading ran after rejection")
	}
	if run.CurrentNode != workflow.NodeRubricReview {
		t.Errorf("current node = %s, want rubric_review", run.CurrentNode)
	}
}

func TestResumeEditOverridesState(t *testing.T) {
	h := newHarness()
	engine := workflow.NewEngine(testRuntime(t, h, workflow.Config{MandatoryRubricReview: true}), checkpoint.NewMemory())

	id, err := engine.Submit(context.Background(), testIntake())
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	run := waitStatus(t, engine, id, workflow.StatusSuspended)

	tree, err := state.Get[rubric.Tree](run.State, workflow.KeyRubric)
	if err != nil {
		t.Fatalf("tree: %v", err)
	}
	tree.Questions[0].Description = "corrected"

	edits, err := state.Set(state.New(), workflow.KeyRubric, tree)
	if err != nil {
		t.Fatalf("edits: %v", err)
	}

	if _, err := engine.Resume(context.Background(), id, workflow.Decision{Kind: workflow.DecisionEdit, Edits: edits}); err != nil {
		t.Fatalf("resume failed: %v", err)
	}

	final := waitStatus(t, engine, id, workflow.StatusCompleted)
	edited, err := state.Get[rubric.Tree](final.State, workflow.KeyRubric)
	if err != nil {
		t.Fatalf("edited tree: %v", err)
	}
	if edited.Questions[0].Description != "corrected" {
		t.Errorf("edit not applied: %q", edited.Questions[0].Description)
	}
}

func TestResumeInvalidDecision(t *testing.T) {
	h := newHarness()
	engine := workflow.NewEngine(testRuntime(t, h, workflow.Config{}), checkpoint.NewMemory())

	if _, err := engine.Resume(context.Background(), uuid.New(), workflow.Decision{Kind: "shrug"}); !errors.Is(err, workflow.ErrInvalidDecision) {
		t.Errorf("got %v, want ErrInvalidDecision", err)
	}
}

func TestRubricMismatchBlocksRun(t *testing.T) {
	h := newHarness()
	h.rubricTotal = 15 // parses to 15 against a declared 20

	engine := workflow.NewEngine(testRuntime(t, h, workflow.Config{}), checkpoint.NewMemory())

	id, err := engine.Submit(context.Background(), testIntake())
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	run := waitStatus(t, engine, id, workflow.StatusPending)
	if !strings.Contains(run.Error, "score mismatch") {
		t.Errorf("run error = %q, want score mismatch", run.Error)
	}
	if h.calls(&h.gradeCalls) != 0 {
		t.Error("grading dispatched despite rubric mismatch")
	}
}

func TestCancelSuspendedRun(t *testing.T) {
	h := newHarness()
	engine := workflow.NewEngine(testRuntime(t, h, workflow.Config{MandatoryRubricReview: true}), checkpoint.NewMemory())

	id, err := engine.Submit(context.Background(), testIntake())
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	waitStatus(t, engine, id, workflow.StatusSuspended)

	if err := engine.Cancel(context.Background(), id); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	waitStatus(t, engine, id, workflow.StatusCancelled)
}

func TestCancelRunningRun(t *testing.T) {
	h := newHarness()
	h.gradeHold = true

	engine := workflow.NewEngine(testRuntime(t, h, workflow.Config{}), checkpoint.NewMemory())

	id, err := engine.Submit(context.Background(), testIntake())
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	// Wait until the dispatcher holds in-flight grading work.
	deadline := time.Now().Add(waitTimeout)
	for h.calls(&h.gradeCalls) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("grading never started")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if err := engine.Cancel(context.Background(), id); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}

	run := waitStatus(t, engine, id, workflow.StatusCancelled)
	if run.State.Has(workflow.KeyTasks) {
		t.Error("cancelled node output was merged into state")
	}
}

func TestCancelTerminalRunIsNoOp(t *testing.T) {
	h := newHarness()
	engine := workflow.NewEngine(testRuntime(t, h, workflow.Config{}), checkpoint.NewMemory())

	id, err := engine.Submit(context.Background(), testIntake())
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	waitStatus(t, engine, id, workflow.StatusCompleted)

	if err := engine.Cancel(context.Background(), id); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}

	run, err := engine.Status(context.Background(), id)
	if err != nil {
		t.Fatalf("status failed: %v", err)
	}
	if run.Status != workflow.StatusCompleted {
		t.Errorf("status = %s, want completed", run.Status)
	}
}

func TestRecoverReentersRunningRun(t *testing.T) {
	h := newHarness()
	h.fetchGate = make(chan struct{})
	store := checkpoint.NewMemory()
	first := workflow.NewEngine(testRuntime(t, h, workflow.Config{}), store)

	// The first engine parks inside intake; its checkpoint says running.
	id, err := first.Submit(context.Background(), testIntake())
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	// Simulate a process restart: a new engine recovers from the store while
	// the old driver is still gated. Releasing the gate lets the stale driver
	// finish its fetch; the recovered driver re-executes intake and carries
	// the run to completion.
	second := workflow.NewEngine(testRuntime(t, h, workflow.Config{}), store)
	if err := second.Recover(context.Background(), id); err != nil {
		t.Fatalf("recover failed: %v", err)
	}
	close(h.fetchGate)

	waitStatus(t, second, id, workflow.StatusCompleted)
}

func TestRecoverLeavesSuspendedRun(t *testing.T) {
	h := newHarness()
	store := checkpoint.NewMemory()
	engine := workflow.NewEngine(testRuntime(t, h, workflow.Config{MandatoryRubricReview: true}), store)

	id, err := engine.Submit(context.Background(), testIntake())
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	waitStatus(t, engine, id, workflow.StatusSuspended)

	second := workflow.NewEngine(testRuntime(t, h, workflow.Config{MandatoryRubricReview: true}), store)
	if err := second.Recover(context.Background(), id); err != nil {
		t.Fatalf("recover failed: %v", err)
	}

	run, err := second.Status(context.Background(), id)
	if err != nil {
		t.Fatalf("status failed: %v", err)
	}
	if run.Status != workflow.StatusSuspended {
		t.Errorf("status = %s, want suspended", run.Status)
	}
}
