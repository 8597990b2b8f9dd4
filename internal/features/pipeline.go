package features

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"gtaa-lab/internal/domain"
)

// Column prefixes for derived columns.
const (
	PrefixReturn = "pct"
	PrefixHigh   = "high"
	PrefixSMA    = "sma"
)

// DefaultCompositeName is the momentum score used for ranking.
const DefaultCompositeName = "pct_gtaa"

// Options configures the columns computed by a Pipeline.
type Options struct {
	ReturnPeriods []int
	HighPeriods   []int
	SMAPeriods    []int
	Composites    []Composite
	Workers       int // max concurrent tickers, 0 means GOMAXPROCS
}

// DefaultOptions returns the GTAA column set: 1/3/6/12 month returns,
// 1/3/5 year highs, 20/50/200 day SMAs and their composite momentum score.
func DefaultOptions() Options {
	return Options{
		ReturnPeriods: []int{21, 63, 126, 252},
		HighPeriods:   []int{252, 760, 1260},
		SMAPeriods:    []int{20, 50, 200},
		Composites: []Composite{{
			Name:       DefaultCompositeName,
			Components: []string{"pct_21d", "pct_63d", "pct_126d", "pct_252d"},
		}},
	}
}

// ColumnNames returns every derived column the options produce, in computation order.
func (o Options) ColumnNames() []string {
	var names []string
	for _, period := range o.ReturnPeriods {
		names = append(names, domain.ColumnName(PrefixReturn, period))
	}
	for _, period := range o.HighPeriods {
		names = append(names, domain.ColumnName(PrefixHigh, period))
	}
	for _, period := range o.SMAPeriods {
		names = append(names, domain.ColumnName(PrefixSMA, period))
	}
	for _, c := range o.Composites {
		names = append(names, c.Name)
	}
	return names
}

// Validate checks that every composite component names a column computed
// before it: a rolling column or an earlier composite.
func (o Options) Validate() error {
	rolling := Options{ReturnPeriods: o.ReturnPeriods, HighPeriods: o.HighPeriods, SMAPeriods: o.SMAPeriods}
	known := make(map[string]struct{})
	for _, name := range rolling.ColumnNames() {
		known[name] = struct{}{}
	}
	for _, c := range o.Composites {
		for _, comp := range c.Components {
			if _, ok := known[comp]; !ok {
				return fmt.Errorf("composite %q: component %q is not computed before it", c.Name, comp)
			}
		}
		known[c.Name] = struct{}{}
	}
	return nil
}

// Pipeline computes FeatureRows from sorted price points.
type Pipeline struct {
	opts Options
}

// NewPipeline creates a feature pipeline.
func NewPipeline(opts Options) *Pipeline {
	return &Pipeline{opts: opts}
}

// Options returns the pipeline configuration.
func (p *Pipeline) Options() Options {
	return p.opts
}

// Compute enriches points with rolling returns, highs, SMAs and composites.
// Points MUST be sorted by (ticker, trade_date) ascending; the pipeline does not
// re-sort. Windows never span a ticker boundary. Output rows follow input order.
func (p *Pipeline) Compute(ctx context.Context, points []*domain.PricePoint) ([]*domain.FeatureRow, error) {
	rows := make([]*domain.FeatureRow, len(points))
	if len(points) == 0 {
		return rows, nil
	}

	workers := p.opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, part := range partitionByTicker(points) {
		part := part
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			p.computeTicker(points[part.start:part.end], rows[part.start:part.end])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return rows, nil
}

// computeTicker fills out with one row per point of a single ticker.
func (p *Pipeline) computeTicker(points []*domain.PricePoint, out []*domain.FeatureRow) {
	prices := make([]float64, len(points))
	for i, pt := range points {
		prices[i] = pt.AdjClose
		out[i] = domain.NewFeatureRow(*pt)
	}

	for _, period := range p.opts.ReturnPeriods {
		setColumn(out, domain.ColumnName(PrefixReturn, period), RollingReturn(prices, period))
	}
	for _, period := range p.opts.HighPeriods {
		setColumn(out, domain.ColumnName(PrefixHigh, period), RollingHigh(prices, period))
	}
	for _, period := range p.opts.SMAPeriods {
		setColumn(out, domain.ColumnName(PrefixSMA, period), RollingMean(prices, period))
	}
	for _, c := range p.opts.Composites {
		for _, row := range out {
			row.Set(c.Name, CompositeScore(row, c.Components))
		}
	}
}

func setColumn(rows []*domain.FeatureRow, name string, values []*float64) {
	for i, row := range rows {
		row.Set(name, values[i])
	}
}

type span struct {
	start, end int
}

// partitionByTicker splits sorted points into contiguous per-ticker spans.
func partitionByTicker(points []*domain.PricePoint) []span {
	var spans []span
	start := 0
	for i := 1; i <= len(points); i++ {
		if i == len(points) || points[i].Ticker != points[start].Ticker {
			spans = append(spans, span{start: start, end: i})
			start = i
		}
	}
	return spans
}
