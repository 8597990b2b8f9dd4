package reporting

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"gtaa-lab/internal/domain"
)

// Generator builds reports from run results.
type Generator struct {
	now func() time.Time // Injectable clock for deterministic output
}

// NewGenerator creates a new report generator.
func NewGenerator() *Generator {
	return &Generator{
		now: func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Generate summarizes results, ordered by portfolio_id.
func (g *Generator) Generate(results []*domain.RunResult) *Report {
	runs := make([]RunReport, 0, len(results))
	for _, r := range results {
		if r == nil {
			continue
		}
		runs = append(runs, RunReport{Result: r, Summary: Summarize(r)})
	}
	sort.SliceStable(runs, func(i, j int) bool {
		return runs[i].Result.PortfolioID < runs[j].Result.PortfolioID
	})

	return &Report{GeneratedAt: g.now(), Runs: runs}
}

// WriteFiles writes the report into dir:
//   - report.md: index of all runs
//   - portfolio_<id>/history.csv, totals.csv, report.md per run
func (g *Generator) WriteFiles(dir string, report *Report) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create %s: %w", dir, err)
	}

	var written []string
	write := func(path, content string) error {
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
		written = append(written, path)
		return nil
	}

	if err := write(filepath.Join(dir, "report.md"), RenderIndex(report)); err != nil {
		return nil, err
	}

	for _, run := range report.Runs {
		runDir := filepath.Join(dir, fmt.Sprintf("portfolio_%d", run.Result.PortfolioID))
		if err := os.MkdirAll(runDir, 0o755); err != nil {
			return nil, fmt.Errorf("create %s: %w", runDir, err)
		}
		if err := write(filepath.Join(runDir, "history.csv"), RenderHistoryCSV(run.Result)); err != nil {
			return nil, err
		}
		if err := write(filepath.Join(runDir, "totals.csv"), RenderTotalsCSV(run.Result)); err != nil {
			return nil, err
		}
		if err := write(filepath.Join(runDir, "report.md"), RenderMarkdown(run.Result)); err != nil {
			return nil, err
		}
	}

	return written, nil
}
