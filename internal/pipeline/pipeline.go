// Package pipeline runs one dashboard request end to end: load, profile,
// generate, extract, resolve and build.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/KaramelBytes/claridata/internal/ai"
	"github.com/KaramelBytes/claridata/internal/analysis"
	"github.com/KaramelBytes/claridata/internal/dataset"
	"github.com/KaramelBytes/claridata/internal/insight"
	"github.com/KaramelBytes/claridata/internal/viz"
)

// Request describes one dashboard run.
type Request struct {
	Path      string
	Load      dataset.LoadOptions
	Generator insight.Generator
	// Attempts bounds generate+extract rounds; each is independent. <= 0 means 1.
	Attempts int
	Logger   *slog.Logger
}

// Dashboard is the result of a successful run.
type Dashboard struct {
	ID        uuid.UUID                `json:"id"`
	CreatedAt time.Time                `json:"created_at"`
	Source    string                   `json:"source"`
	Attempts  int                      `json:"attempts,omitempty"`
	Profile   *analysis.DatasetProfile `json:"profile"`
	Document  *insight.Document        `json:"document"`
	Charts    []viz.ChartData          `json:"charts"`
	Dropped   []viz.Drop               `json:"dropped,omitempty"`
}

// Analysis is a loaded dataset with its profile.
type Analysis struct {
	Frame   *dataset.Frame
	Profile *analysis.DatasetProfile
}

// Analyze loads path and profiles it.
func Analyze(path string, opt dataset.LoadOptions) (*Analysis, error) {
	f, err := dataset.Load(path, opt)
	if err != nil {
		return nil, err
	}
	return &Analysis{Frame: f, Profile: analysis.Profile(f)}, nil
}

// Release frees the dataset buffers.
func (a *Analysis) Release() { a.Frame.Release() }

// Render resolves doc's proposals against the analysed dataset and builds
// chart data for those that survive.
func (a *Analysis) Render(doc *insight.Document, logger *slog.Logger) ([]viz.ChartData, []viz.Drop) {
	r := &viz.Resolver{Dataset: a.Frame, Profile: a.Profile, Logger: logger}
	resolved, drops := r.ResolveAll(doc.Visualizations)
	return viz.BuildAll(resolved), drops
}

// Run executes req. Extraction and generator failures are returned verbatim
// once attempts are exhausted; dropped proposals are not errors.
func Run(ctx context.Context, req Request) (*Dashboard, error) {
	if req.Generator == nil {
		return nil, errors.New("pipeline: no generator configured")
	}
	logger := req.Logger
	if logger == nil {
		logger = slog.Default()
	}
	a, err := Analyze(req.Path, req.Load)
	if err != nil {
		return nil, err
	}
	defer a.Release()
	logger.Debug("dataset profiled", "source", a.Profile.Source, "rows", a.Profile.RowCount, "columns", len(a.Profile.Columns))

	doc, attempts, err := generateDocument(ctx, req.Generator, a.Profile, req.Attempts, logger)
	if err != nil {
		return nil, err
	}
	return a.dashboard(doc, attempts, logger), nil
}

// Replay builds a dashboard from an already generated reply, without calling
// any generator. Extraction failures are returned as *insight.ExtractionError.
func Replay(path string, opt dataset.LoadOptions, raw []byte, logger *slog.Logger) (*Dashboard, error) {
	if logger == nil {
		logger = slog.Default()
	}
	doc, err := insight.Extract(raw)
	if err != nil {
		return nil, err
	}
	a, err := Analyze(path, opt)
	if err != nil {
		return nil, err
	}
	defer a.Release()
	return a.dashboard(doc, 0, logger), nil
}

func (a *Analysis) dashboard(doc *insight.Document, attempts int, logger *slog.Logger) *Dashboard {
	charts, drops := a.Render(doc, logger)
	return &Dashboard{
		ID:        uuid.New(),
		CreatedAt: time.Now().UTC(),
		Source:    a.Profile.Source,
		Attempts:  attempts,
		Profile:   a.Profile,
		Document:  doc,
		Charts:    charts,
		Dropped:   drops,
	}
}

func generateDocument(ctx context.Context, g insight.Generator, p *analysis.DatasetProfile, attempts int, logger *slog.Logger) (*insight.Document, int, error) {
	if attempts <= 0 {
		attempts = 1
	}
	var lastErr error
	for i := 1; i <= attempts; i++ {
		if err := ctx.Err(); err != nil {
			return nil, i - 1, err
		}
		raw, err := g.Generate(ctx, p)
		if err == nil {
			var doc *insight.Document
			if doc, err = insight.Extract(raw); err == nil {
				return doc, i, nil
			}
		}
		lastErr = err
		if !retryable(ctx, err) {
			break
		}
		if i < attempts {
			logger.Warn("generation attempt failed, retrying", "attempt", i, "of", attempts, "error", err)
		}
	}
	return nil, attempts, fmt.Errorf("generate insights: %w", lastErr)
}

// retryable reports whether a fresh attempt may succeed where err failed.
func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	var (
		rl *ai.RateLimitError
		se *ai.ServerError
		ue *ai.UnreachableError
	)
	switch {
	case errors.Is(err, insight.ErrExtraction), errors.Is(err, insight.ErrEmptyResponse):
		return true
	case errors.Is(err, context.DeadlineExceeded):
		return true
	case errors.As(err, &rl), errors.As(err, &se), errors.As(err, &ue):
		return true
	}
	return false
}
