// Package rasterize renders submitted PDF documents into ordered per-page
// PNG images for the vision grading capability.
package rasterize

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/JaimeStill/document-context/pkg/config"
	"github.com/JaimeStill/document-context/pkg/document"
	"github.com/JaimeStill/document-context/pkg/image"
	"golang.org/x/sync/errgroup"

	"github.com/pencilops/gradeflow/internal/grader"
)

// Rasterizer converts a PDF on disk into an ordered list of page images
// written under outDir.
type Rasterizer interface {
	Rasterize(ctx context.Context, pdfPath, outDir string) ([]grader.Page, error)
}

type magick struct{}

// New creates a Rasterizer backed by document-context's ImageMagick renderer.
func New() Rasterizer {
	return &magick{}
}

func (m *magick) Rasterize(ctx context.Context, pdfPath, outDir string) ([]grader.Page, error) {
	pdfDoc, err := document.OpenPDF(pdfPath)
	if err != nil {
		return nil, fmt.Errorf("%w: open pdf: %w", ErrRenderFailed, err)
	}
	defer pdfDoc.Close()

	renderer, err := image.NewImageMagickRenderer(config.DefaultImageConfig())
	if err != nil {
		return nil, fmt.Errorf("%w: create renderer: %w", ErrRenderFailed, err)
	}

	allPages, err := pdfDoc.ExtractAllPages()
	if err != nil {
		return nil, fmt.Errorf("%w: extract pages: %w", ErrRenderFailed, err)
	}

	pageCount := len(allPages)
	pages := make([]grader.Page, pageCount)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(renderWorkerCount(pageCount))

	for i, page := range allPages {
		pageNum := i + 1
		imgPath := filepath.Join(outDir, fmt.Sprintf("page-%d.png", pageNum))
		pages[i] = grader.Page{
			Number:    pageNum,
			ImagePath: imgPath,
		}

		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}

			data, err := page.ToImage(renderer, nil)
			if err != nil {
				return fmt.Errorf("render page %d: %w", pageNum, err)
			}

			if err := os.WriteFile(imgPath, data, 0600); err != nil {
				return fmt.Errorf("write page %d image: %w", pageNum, err)
			}

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRenderFailed, err)
	}

	return pages, nil
}

func renderWorkerCount(pageCount int) int {
	return max(min(runtime.NumCPU(), pageCount), 1)
}
