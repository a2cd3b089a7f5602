package segment

import (
	"fmt"
	"log/slog"
)

// Detector infers student segments from per-page question signals.
// expectedQuestions is the rubric's top-level question count; zero disables
// the question-count confidence signal.
type Detector struct {
	cfg               Config
	expectedQuestions int
	logger            *slog.Logger
}

// NewDetector creates a Detector for one run's rubric.
func NewDetector(cfg Config, expectedQuestions int, logger *slog.Logger) *Detector {
	return &Detector{
		cfg:               cfg,
		expectedQuestions: expectedQuestions,
		logger:            logger.With("system", "segment"),
	}
}

// span is a half-open range [start, end) over the signals slice, with the
// boundary evidence that closed it.
type span struct {
	start, end int
	forced     bool // closed by the max-page weak signal, not a restart
	ambiguous  bool // boundary position had multiple plausible candidates
}

// Detect scans pages in order and splits them into student segments at
// question-number restarts. A single page with no restart yields exactly one
// segment at maximum confidence.
func (d *Detector) Detect(signals []PageSignal) ([]Segment, error) {
	if len(signals) == 0 {
		return nil, ErrNoSignals
	}

	spans := d.split(signals)
	spans = d.balanceAmbiguous(signals, spans)

	segments := make([]Segment, len(spans))
	for i, sp := range spans {
		segments[i] = d.score(signals, sp, len(spans), i+1)
	}

	d.logger.Info(
		"boundaries detected",
		"pages", len(signals),
		"segments", len(segments),
	)

	return segments, nil
}

// split performs the forward scan. A new span begins when a page's minimum
// observed question number falls at or below the maximum already seen in the
// open span (a restart), or when the open span exceeds the configured page
// limit without one. A page whose leading question continues the previous
// page's last question is not a restart.
func (d *Detector) split(signals []PageSignal) []span {
	var (
		spans   []span
		start   int
		maxSeen int
		lastQ   int
	)

	for i, sig := range signals {
		questions := sig.Questions

		if i > start && len(questions) > 0 && questions[0] == lastQ {
			// Continuation of the previous page's last question.
			questions = questions[1:]
		}

		if i > start && len(questions) > 0 && minOf(questions) <= maxSeen {
			spans = append(spans, span{start: start, end: i})
			start = i
			maxSeen = 0
		} else if d.cfg.MaxPagesPerSegment > 0 && i-start >= d.cfg.MaxPagesPerSegment {
			spans = append(spans, span{start: start, end: i, forced: true})
			start = i
			maxSeen = 0
		}

		for _, q := range sig.Questions {
			if q > maxSeen {
				maxSeen = q
			}
			lastQ = q
		}
	}

	return append(spans, span{start: start, end: len(signals)})
}

// balanceAmbiguous revisits each restart boundary preceded by a run of pages
// with no detectable question numbers. Those pages could belong to either
// neighbor, so the boundary is ambiguous: the split yielding the most even
// page distribution wins, and both neighbors are flagged for confirmation.
func (d *Detector) balanceAmbiguous(signals []PageSignal, spans []span) []span {
	for i := 1; i < len(spans); i++ {
		if spans[i-1].forced {
			continue
		}

		boundary := spans[i].start
		run := 0
		for p := boundary - 1; p > spans[i-1].start && len(signals[p].Questions) == 0; p-- {
			run++
		}
		if run == 0 {
			continue
		}

		best := boundary
		bestDiff := sizeDiff(spans[i-1], spans[i], boundary)
		for candidate := boundary - run; candidate < boundary; candidate++ {
			if diff := sizeDiff(spans[i-1], spans[i], candidate); diff < bestDiff {
				best, bestDiff = candidate, diff
			}
		}

		spans[i-1].end = best
		spans[i].start = best
		spans[i-1].ambiguous = true
		spans[i].ambiguous = true
	}

	return spans
}

// sizeDiff measures how uneven the two neighboring spans become when the
// boundary between them moves to cut.
func sizeDiff(left, right span, cut int) int {
	l := cut - left.start
	r := right.end - cut
	if l > r {
		return l - r
	}
	return r - l
}

func (d *Detector) score(signals []PageSignal, sp span, total, ordinal int) Segment {
	pages := make([]int, 0, sp.end-sp.start)
	var (
		observed     []int
		distinct     = make(map[int]struct{})
		unknownPages int
		student      string
	)

	for _, sig := range signals[sp.start:sp.end] {
		pages = append(pages, sig.Page)
		if len(sig.Questions) == 0 {
			unknownPages++
		}
		for _, q := range sig.Questions {
			observed = append(observed, q)
			distinct[q] = struct{}{}
		}
		if student == "" && sig.StudentName != "" {
			student = sig.StudentName
		}
	}

	if student == "" {
		student = fmt.Sprintf("Student %d", ordinal)
	}

	confidence := d.confidence(observed, len(distinct), unknownPages, total)

	needsConfirmation := sp.forced || sp.ambiguous
	if needsConfirmation && confidence > d.cfg.AmbiguityCap {
		confidence = d.cfg.AmbiguityCap
	}

	return Segment{
		Student:           student,
		Pages:             pages,
		Confidence:        confidence,
		NeedsConfirmation: needsConfirmation,
	}
}

// confidence blends monotonicity cleanliness with the question-count match
// using the configured weights, then penalizes pages that carried no
// question numbers. A lone segment covering a single page is maximally
// confident by definition.
func (d *Detector) confidence(observed []int, distinct, unknownPages, totalSegments int) float64 {
	if totalSegments == 1 && len(observed) > 0 && unknownPages == 0 && isSorted(observed) {
		return 1.0
	}

	mono := monotonicity(observed)

	countMatch := 1.0
	if d.expectedQuestions > 0 && distinct > 0 {
		countMatch = ratio(distinct, d.expectedQuestions)
	}

	weightSum := d.cfg.MonotonicityWeight + d.cfg.CountMatchWeight
	confidence := (d.cfg.MonotonicityWeight*mono + d.cfg.CountMatchWeight*countMatch) / weightSum
	confidence -= d.cfg.UnknownPagePenalty * float64(unknownPages)

	return min(max(confidence, 0), 1)
}

// monotonicity is the fraction of adjacent observation pairs that do not
// decrease. Fewer than two observations is trivially clean.
func monotonicity(observed []int) float64 {
	if len(observed) < 2 {
		return 1.0
	}

	clean := 0
	for i := 1; i < len(observed); i++ {
		if observed[i] >= observed[i-1] {
			clean++
		}
	}
	return float64(clean) / float64(len(observed)-1)
}

func ratio(a, b int) float64 {
	if a > b {
		a, b = b, a
	}
	return float64(a) / float64(b)
}

func isSorted(values []int) bool {
	for i := 1; i < len(values); i++ {
		if values[i] < values[i-1] {
			return false
		}
	}
	return true
}

func minOf(values []int) int {
	m := values[0]
	for _, v := range values[1:] {
		if v < m {
			m = v
		}
	}
	return m
}
