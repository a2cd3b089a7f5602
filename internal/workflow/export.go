package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pencilops/gradeflow/internal/aggregate"
	"github.com/pencilops/gradeflow/pkg/state"
)

// exportNode writes the final report to the run's working directory and,
// when an exporter is configured, publishes it. The state records the
// artifact key so a status query can locate the export.
func exportNode(ctx context.Context, rt *Runtime, run *Run, _ EmitFunc) (state.State, error) {
	report, err := state.Get[aggregate.Report](run.State, KeyReport)
	if err != nil {
		return nil, fmt.Errorf("export: %w", err)
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("export: marshal report: %w", err)
	}

	local := filepath.Join(rt.Workflow.RunDir(run.ID.String()), "report.json")
	if err := os.WriteFile(local, data, 0o600); err != nil {
		return nil, fmt.Errorf("export: write report: %w", err)
	}

	key := local
	if rt.Exporter != nil {
		key, err = rt.Exporter.Export(ctx, run.ID, data)
		if err != nil {
			return nil, fmt.Errorf("export: publish report: %w", err)
		}
	}

	rt.Logger.InfoContext(ctx, "report exported", "run", run.ID, "key", key)

	return state.Set(state.New(), KeyExport, key)
}
