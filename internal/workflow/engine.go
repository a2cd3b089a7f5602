package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pencilops/gradeflow/internal/rubric"
	"github.com/pencilops/gradeflow/pkg/broadcast"
	"github.com/pencilops/gradeflow/pkg/checkpoint"
	"github.com/pencilops/gradeflow/pkg/state"
)

// Engine drives workflow runs through the node table. Each run executes on
// its own goroutine, strictly one node at a time; the engine checkpoints the
// merged state after every transition, so a crash or restart re-enters at
// the first node whose output is missing and never re-executes a completed
// node.
type Engine struct {
	rt     *Runtime
	store  checkpoint.Store
	events *broadcast.Broadcaster[Event]

	mu        sync.Mutex
	cancels   map[uuid.UUID]context.CancelFunc
	cancelled map[uuid.UUID]bool
}

// NewEngine creates an Engine over the given checkpoint store.
func NewEngine(rt *Runtime, store checkpoint.Store) *Engine {
	return &Engine{
		rt:        rt,
		store:     store,
		events:    broadcast.New[Event](rt.Workflow.EventBuffer),
		cancels:   make(map[uuid.UUID]context.CancelFunc),
		cancelled: make(map[uuid.UUID]bool),
	}
}

// Submit validates the intake payload, creates and checkpoints a new run,
// and starts driving it in the background.
func (e *Engine) Submit(ctx context.Context, intake Intake) (uuid.UUID, error) {
	if intake.AnswerSubmissionID == uuid.Nil {
		return uuid.Nil, fmt.Errorf("%w: answer submission id is required", ErrInvalidIntake)
	}
	if intake.RubricSubmissionID == uuid.Nil {
		return uuid.Nil, fmt.Errorf("%w: rubric submission id is required", ErrInvalidIntake)
	}
	if intake.DeclaredTotal < 0 {
		return uuid.Nil, fmt.Errorf("%w: declared total must not be negative", ErrInvalidIntake)
	}
	if intake.DeclaredPageCount < 0 {
		return uuid.Nil, fmt.Errorf("%w: declared page count must not be negative", ErrInvalidIntake)
	}

	seeded, err := state.Set(state.New(), KeyIntake, intake)
	if err != nil {
		return uuid.Nil, fmt.Errorf("seed run state: %w", err)
	}

	now := time.Now()
	run := &Run{
		ID:        uuid.New(),
		Status:    StatusRunning,
		State:     seeded,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := e.save(ctx, run); err != nil {
		return uuid.Nil, err
	}

	e.start(run)
	return run.ID, nil
}

// Status returns the latest checkpointed record for the run.
func (e *Engine) Status(ctx context.Context, id uuid.UUID) (*Run, error) {
	return e.load(ctx, id)
}

// Subscribe attaches a listener to the run's progress stream. The channel
// closes when the run terminates or the cancel function is called.
func (e *Engine) Subscribe(id uuid.UUID) (<-chan Event, func()) {
	return e.events.Subscribe(id.String())
}

// Cancel requests cooperative cancellation. The currently running node is
// signalled through its context, which also interrupts in-flight grading
// attempts; no new node executes and the node's output is discarded.
// Cancelling a suspended run takes effect immediately; cancelling a
// terminal run is a no-op.
func (e *Engine) Cancel(ctx context.Context, id uuid.UUID) error {
	run, err := e.load(ctx, id)
	if err != nil {
		return err
	}
	if run.Status.Terminal() {
		return nil
	}

	e.mu.Lock()
	e.cancelled[id] = true
	cancel := e.cancels[id]
	e.mu.Unlock()

	if cancel != nil {
		// An active driver settles the run itself once the node returns.
		cancel()
		return nil
	}

	// Suspended or orphaned run: settle it here.
	return e.finalize(context.WithoutCancel(ctx), run, StatusCancelled, EventCancelled, nil)
}

// Resume resolves a suspended review gate. Resuming a run that is not
// suspended is a no-op returning the current record, so retrying a decision
// never double-applies it. A reject decision cancels the run; approve and
// edit record the decision and advance the workflow.
func (e *Engine) Resume(ctx context.Context, id uuid.UUID, decision Decision) (*Run, error) {
	switch decision.Kind {
	case DecisionApprove, DecisionEdit, DecisionReject:
	default:
		return nil, fmt.Errorf("%w: unknown kind %q", ErrInvalidDecision, decision.Kind)
	}

	run, err := e.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if run.Status != StatusSuspended {
		return run, nil
	}

	desc, ok := next(run.State)
	if !ok || !desc.Review {
		return run, nil
	}

	if decision.Kind == DecisionReject {
		e.closeExecution(run, OutcomeInterrupted, "rejected by reviewer")
		if err := e.finalize(ctx, run, StatusCancelled, EventCancelled, map[string]string{
			"node": desc.Name,
			"note": decision.Note,
		}); err != nil {
			return nil, err
		}
		return run, nil
	}

	if decision.Kind == DecisionEdit {
		// Review edits are the one sanctioned overwrite of existing state.
		for key, value := range decision.Edits {
			run.State[key] = value
		}
	}

	decision.At = time.Now()
	run.State, err = state.Set(run.State, desc.Produces[0], decision)
	if err != nil {
		return nil, fmt.Errorf("record decision: %w", err)
	}

	e.closeExecution(run, OutcomeOK, "")
	run.Status = StatusRunning
	e.emit(run, EventNodeCompleted, desc.Name, decision)

	if err := e.save(ctx, run); err != nil {
		return nil, err
	}

	e.start(run)
	return run, nil
}

// Recover re-enters a run that was mid-flight when the process stopped.
// Suspended and terminal runs are left as they are.
func (e *Engine) Recover(ctx context.Context, id uuid.UUID) error {
	run, err := e.load(ctx, id)
	if err != nil {
		return err
	}
	if run.Status != StatusRunning && run.Status != StatusPending {
		return nil
	}

	run.Status = StatusRunning
	if err := e.save(ctx, run); err != nil {
		return err
	}

	e.start(run)
	return nil
}

// start launches the driver goroutine for a run. The run's context lives in
// the cancels map until the driver parks or terminates the run.
func (e *Engine) start(run *Run) {
	ctx, cancel := context.WithCancel(context.Background())

	e.mu.Lock()
	e.cancels[run.ID] = cancel
	e.mu.Unlock()

	go func() {
		defer func() {
			e.mu.Lock()
			delete(e.cancels, run.ID)
			e.mu.Unlock()
			cancel()
		}()
		e.drive(ctx, run)
	}()
}

// drive executes nodes until the run suspends, terminates, or is cancelled.
func (e *Engine) drive(ctx context.Context, run *Run) {
	logger := e.rt.Logger.With("system", "workflow", "run", run.ID)

	for {
		if e.cancelRequested(run.ID) {
			e.finalizeLogged(logger, run, StatusCancelled, EventCancelled, nil)
			return
		}

		desc, ok := next(run.State)
		if !ok {
			e.finalizeLogged(logger, run, StatusCompleted, EventCompleted, nil)
			return
		}

		if !run.State.Has(desc.Requires...) {
			err := fmt.Errorf("%w: node %s", ErrStateUnsatisfied, desc.Name)
			e.fail(logger, run, desc.Name, err)
			return
		}

		if desc.Review {
			if desc.Skip != nil && desc.Skip(e.rt, run.State) {
				if err := e.autoApprove(ctx, run, desc); err != nil {
					e.fail(logger, run, desc.Name, err)
					return
				}
				continue
			}
			e.suspend(ctx, logger, run, desc)
			return
		}

		if err := e.execute(ctx, logger, run, desc); err != nil {
			switch {
			case e.cancelRequested(run.ID):
				e.finalizeLogged(logger, run, StatusCancelled, EventCancelled, nil)
			case errors.Is(err, rubric.ErrScoreMismatch):
				// Hard stop for re-submission, not a terminal failure.
				e.block(ctx, logger, run, desc.Name, err)
			default:
				e.fail(logger, run, desc.Name, err)
			}
			return
		}
	}
}

// execute runs one regular node: records the attempt, emits the start and
// completion events, merges the output patch, and checkpoints.
func (e *Engine) execute(ctx context.Context, logger *slog.Logger, run *Run, desc Descriptor) error {
	run.CurrentNode = desc.Name
	run.Executions = append(run.Executions, NodeExecution{
		Node:      desc.Name,
		Attempt:   run.attempt(desc.Name),
		StartedAt: time.Now(),
	})
	e.emit(run, EventNodeStarted, desc.Name, nil)

	if err := e.save(ctx, run); err != nil {
		return err
	}

	logger.InfoContext(ctx, "node started", "node", desc.Name)

	emit := func(kind EventKind, payload any) {
		e.emit(run, kind, desc.Name, payload)
	}

	patch, err := desc.Run(ctx, e.rt, run, emit)
	if err != nil {
		e.closeExecution(run, OutcomeError, err.Error())
		return err
	}

	run.State = run.State.Merge(patch)
	e.closeExecution(run, OutcomeOK, "")
	e.emit(run, EventNodeCompleted, desc.Name, nil)

	if err := e.save(context.WithoutCancel(ctx), run); err != nil {
		return err
	}

	logger.InfoContext(ctx, "node completed", "node", desc.Name)
	return nil
}

// autoApprove records a sentinel decision for a gate whose review condition
// is not met, so the gate's output contract is satisfied without suspension.
func (e *Engine) autoApprove(ctx context.Context, run *Run, desc Descriptor) error {
	decision := Decision{Kind: DecisionApprove, Auto: true, At: time.Now()}

	next, err := state.Set(run.State, desc.Produces[0], decision)
	if err != nil {
		return fmt.Errorf("record auto-approval: %w", err)
	}
	run.State = next
	run.CurrentNode = desc.Name

	e.emit(run, EventNodeCompleted, desc.Name, decision)
	return e.save(ctx, run)
}

// suspend parks the run at a review gate until Resume is called.
func (e *Engine) suspend(ctx context.Context, logger *slog.Logger, run *Run, desc Descriptor) {
	run.CurrentNode = desc.Name
	run.Status = StatusSuspended
	run.Executions = append(run.Executions, NodeExecution{
		Node:      desc.Name,
		Attempt:   run.attempt(desc.Name),
		StartedAt: time.Now(),
	})

	var payload any
	if desc.Payload != nil {
		payload = desc.Payload(run.State)
	}
	e.emit(run, EventReviewRequired, desc.Name, payload)

	if err := e.save(context.WithoutCancel(ctx), run); err != nil {
		logger.Error("suspend checkpoint failed", "node", desc.Name, "error", err)
		return
	}

	logger.InfoContext(ctx, "run suspended for review", "node", desc.Name)
}

// block returns the run to pending after a rubric mismatch: the teacher must
// re-upload, and no grading dispatch occurs.
func (e *Engine) block(ctx context.Context, logger *slog.Logger, run *Run, node string, cause error) {
	run.Status = StatusPending
	run.Error = cause.Error()
	e.emit(run, EventFailed, node, map[string]string{"error": cause.Error()})

	if err := e.save(context.WithoutCancel(ctx), run); err != nil {
		logger.Error("block checkpoint failed", "error", err)
	}

	logger.WarnContext(ctx, "run blocked pending re-submission", "node", node, "error", cause)
}

func (e *Engine) fail(logger *slog.Logger, run *Run, node string, cause error) {
	run.Error = cause.Error()
	e.finalizeLogged(logger, run, StatusFailed, EventFailed, map[string]string{
		"node":  node,
		"error": cause.Error(),
	})
}

func (e *Engine) finalizeLogged(logger *slog.Logger, run *Run, status RunStatus, kind EventKind, payload any) {
	if err := e.finalize(context.Background(), run, status, kind, payload); err != nil {
		logger.Error("finalize checkpoint failed", "status", status, "error", err)
	}
	logger.Info("run finished", "status", status)
}

// finalize moves the run to a terminal status, checkpoints it, and closes
// the event stream.
func (e *Engine) finalize(ctx context.Context, run *Run, status RunStatus, kind EventKind, payload any) error {
	run.Status = status
	e.emit(run, kind, run.CurrentNode, payload)

	err := e.save(ctx, run)

	e.mu.Lock()
	delete(e.cancelled, run.ID)
	e.mu.Unlock()
	e.events.Close(run.ID.String())

	return err
}

func (e *Engine) cancelRequested(id uuid.UUID) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cancelled[id]
}

// closeExecution stamps the latest execution record for the current node.
func (e *Engine) closeExecution(run *Run, outcome Outcome, detail string) {
	for i := len(run.Executions) - 1; i >= 0; i-- {
		if run.Executions[i].Node == run.CurrentNode && run.Executions[i].EndedAt.IsZero() {
			run.Executions[i].EndedAt = time.Now()
			run.Executions[i].Outcome = outcome
			run.Executions[i].Error = detail
			return
		}
	}
}

// emit assigns the next sequence number and publishes the event. Sequence
// numbers are persisted with the run, so they keep increasing across process
// restarts. Task workers emit concurrently, so assignment and publication
// are serialized under the engine lock to keep the stream strictly ordered.
func (e *Engine) emit(run *Run, kind EventKind, node string, payload any) {
	var raw json.RawMessage
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			e.rt.Logger.Error("event payload marshal failed",
				"run", run.ID, "kind", kind, "node", node, "error", err)
		} else {
			raw = data
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	run.EventSeq++
	e.events.Publish(run.ID.String(), Event{
		RunID:   run.ID,
		Seq:     run.EventSeq,
		Kind:    kind,
		Node:    node,
		Payload: raw,
		At:      time.Now(),
	})
}

func (e *Engine) save(ctx context.Context, run *Run) error {
	run.UpdatedAt = time.Now()

	snapshot, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("marshal run %s: %w", run.ID, err)
	}

	if err := e.store.Save(ctx, run.ID, snapshot); err != nil {
		return fmt.Errorf("checkpoint run %s: %w", run.ID, err)
	}
	return nil
}

func (e *Engine) load(ctx context.Context, id uuid.UUID) (*Run, error) {
	snapshot, err := e.store.Load(ctx, id)
	if err != nil {
		if errors.Is(err, checkpoint.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
		}
		return nil, fmt.Errorf("load run %s: %w", id, err)
	}

	var run Run
	if err := json.Unmarshal(snapshot, &run); err != nil {
		return nil, fmt.Errorf("unmarshal run %s: %w", id, err)
	}
	return &run, nil
}
