package grader

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"strings"

	"github.com/JaimeStill/document-context/pkg/document"
	"github.com/JaimeStill/document-context/pkg/encoding"
	"golang.org/x/sync/errgroup"

	"github.com/JaimeStill/go-agents/pkg/agent"
	gaconfig "github.com/JaimeStill/go-agents/pkg/config"

	"github.com/pencilops/gradeflow/pkg/formatting"
)

// Vision implements Capability over a vision-capable model agent.
// Each call creates its own agent from the shared config, so concurrent
// invocations never share conversation state.
type Vision struct {
	cfg    gaconfig.AgentConfig
	logger *slog.Logger
}

// NewVision creates a vision-backed grading capability.
func NewVision(cfg gaconfig.AgentConfig, logger *slog.Logger) *Vision {
	return &Vision{
		cfg:    cfg,
		logger: logger.With("system", "grader"),
	}
}

func (v *Vision) ExtractRubric(ctx context.Context, pages []Page) (*RubricExtraction, error) {
	parsed, err := call[RubricExtraction](ctx, v, promptExtractRubric, pages)
	if err != nil {
		return nil, fmt.Errorf("extract rubric: %w", err)
	}

	v.logger.InfoContext(
		ctx, "rubric batch extracted",
		"pages", len(pages),
		"items", len(parsed.Items),
	)

	return &parsed, nil
}

func (v *Vision) ScanPages(ctx context.Context, pages []Page) ([]PageScan, error) {
	scans := make([]PageScan, len(pages))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workerCount(len(pages)))

	for i, page := range pages {
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}

			scan, err := call[PageScan](gctx, v, promptScanPage, []Page{page})
			if err != nil {
				return fmt.Errorf("scan page %d: %w", page.Number, err)
			}

			scan.PageNumber = page.Number
			scans[i] = scan
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	v.logger.InfoContext(ctx, "first-pass scan complete", "pages", len(pages))
	return scans, nil
}

func (v *Vision) Grade(ctx context.Context, pages []Page, slice RubricSlice) (*Result, error) {
	sliceJSON, err := json.MarshalIndent(slice, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("serialize rubric slice: %w", err)
	}

	prompt := promptGrade + "\n\nRubric:\n\n" + string(sliceJSON)

	parsed, err := call[Result](ctx, v, prompt, pages)
	if err != nil {
		return nil, fmt.Errorf("grade pages: %w", err)
	}

	return &parsed, nil
}

func call[T any](ctx context.Context, v *Vision, prompt string, pages []Page) (T, error) {
	var zero T

	a, err := agent.New(&v.cfg)
	if err != nil {
		return zero, fmt.Errorf("%w: create agent: %w", ErrVisionCall, err)
	}

	images := make([]string, len(pages))
	for i, page := range pages {
		uri, err := encodePageImage(page.ImagePath)
		if err != nil {
			return zero, fmt.Errorf("page %d: %w", page.Number, err)
		}
		images[i] = uri
	}

	resp, err := a.Vision(ctx, prompt, images)
	if err != nil {
		return zero, fmt.Errorf("%w: %w", ErrVisionCall, err)
	}

	content := strings.TrimSpace(resp.Content())
	if content == "" {
		return zero, ErrEmptyResponse
	}

	parsed, err := formatting.Parse[T](content)
	if err != nil {
		return zero, fmt.Errorf("parse response: %w", err)
	}

	return parsed, nil
}

func encodePageImage(imagePath string) (string, error) {
	data, err := os.ReadFile(imagePath)
	if err != nil {
		return "", fmt.Errorf("read image: %w", err)
	}

	dataURI, err := encoding.EncodeImageDataURI(data, document.PNG)
	if err != nil {
		return "", fmt.Errorf("encode image: %w", err)
	}

	return dataURI, nil
}

func workerCount(pageCount int) int {
	return max(min(runtime.NumCPU(), pageCount), 1)
}
