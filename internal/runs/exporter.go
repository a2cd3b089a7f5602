package runs

import (
	"bytes"
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/pencilops/gradeflow/internal/workflow"
	"github.com/pencilops/gradeflow/pkg/storage"
)

// BlobExporter publishes final run reports to blob storage.
type BlobExporter struct {
	storage storage.System
}

var _ workflow.Exporter = (*BlobExporter)(nil)

// NewBlobExporter creates an Exporter over the given storage system.
func NewBlobExporter(store storage.System) *BlobExporter {
	return &BlobExporter{storage: store}
}

// Export uploads the report under a per-run key and returns it.
func (e *BlobExporter) Export(ctx context.Context, runID uuid.UUID, data []byte) (string, error) {
	key := fmt.Sprintf("reports/%s.json", runID)

	if err := e.storage.Upload(ctx, key, bytes.NewReader(data), "application/json"); err != nil {
		return "", fmt.Errorf("export report %s: %w", runID, err)
	}
	return key, nil
}
