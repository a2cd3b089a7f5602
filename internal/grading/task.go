// Package grading fans grading work out across a bounded worker pool. Each
// student segment becomes one or more tasks (large segments are cut into
// sub-batches), and every task carries its own status, retry count, and
// terminal result.
package grading

import (
	"github.com/google/uuid"

	"github.com/pencilops/gradeflow/internal/grader"
)

// TaskStatus tracks a task through the pool.
type TaskStatus string

const (
	TaskQueued  TaskStatus = "queued"
	TaskRunning TaskStatus = "running"
	TaskDone    TaskStatus = "done"
	TaskFailed  TaskStatus = "failed"
)

// Task is one unit of grading work: a sub-batch of pages from a single
// student segment, graded against the full rubric slice. Err holds the final
// error message once all attempts are exhausted.
type Task struct {
	ID           uuid.UUID      `json:"id"`
	Student      string         `json:"student"`
	SegmentIndex int            `json:"segment_index"`
	SubBatch     int            `json:"sub_batch"`
	Pages        []grader.Page  `json:"pages"`
	Status       TaskStatus     `json:"status"`
	Attempts     int            `json:"attempts"`
	Result       *grader.Result `json:"result,omitempty"`
	Err          string         `json:"error,omitempty"`
}

// SegmentPages groups the rasterized pages of one student segment.
type SegmentPages struct {
	Student string
	Pages   []grader.Page
}

// BuildTasks expands segments into a FIFO task list, cutting any segment
// larger than pageLimit into consecutive sub-batches. Sub-batch indices are
// zero-based within their segment.
func BuildTasks(segments []SegmentPages, pageLimit int) []Task {
	var tasks []Task
	for si, seg := range segments {
		batches := cut(seg.Pages, pageLimit)
		for bi, pages := range batches {
			tasks = append(tasks, Task{
				ID:           uuid.New(),
				Student:      seg.Student,
				SegmentIndex: si,
				SubBatch:     bi,
				Pages:        pages,
				Status:       TaskQueued,
			})
		}
	}
	return tasks
}

func cut(pages []grader.Page, limit int) [][]grader.Page {
	if limit <= 0 || len(pages) <= limit {
		return [][]grader.Page{pages}
	}

	var batches [][]grader.Page
	for start := 0; start < len(pages); start += limit {
		end := min(start+limit, len(pages))
		batches = append(batches, pages[start:end])
	}
	return batches
}
