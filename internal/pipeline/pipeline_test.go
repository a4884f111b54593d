package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/KaramelBytes/claridata/internal/ai"
	"github.com/KaramelBytes/claridata/internal/analysis"
	"github.com/KaramelBytes/claridata/internal/dataset"
	"github.com/KaramelBytes/claridata/internal/insight"
)

const salesCSV = "region,units,price\nN,1,10\nN,2,20\nS,3,30\nS,4,40\nE,5,50\n"

const goodReply = "```json\n" + `{
  "dataset_summary": {"title": "Sales", "description": "Regional sales"},
  "kpis": [{"title": "Units", "value": 15}],
  "visualizations": [
    {"type": "bar", "x": "region", "y": "count", "title": "Rows per region"},
    {"type": "scatter", "x": "units", "y": "region"},
    {"type": "scatter", "x": "units", "y": "price"}
  ]
}` + "\n```"

func writeSales(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sales.csv")
	if err := os.WriteFile(path, []byte(salesCSV), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

// scripted replies with the i-th entry on the i-th call.
func scripted(calls *int, replies ...func() ([]byte, error)) insight.Generator {
	return insight.GeneratorFunc(func(ctx context.Context, p *analysis.DatasetProfile) ([]byte, error) {
		r := replies[*calls]
		*calls++
		return r()
	})
}

func text(s string) func() ([]byte, error) { return func() ([]byte, error) { return []byte(s), nil } }

func fail(err error) func() ([]byte, error) { return func() ([]byte, error) { return nil, err } }

func TestRunBuildsDashboard(t *testing.T) {
	var calls int
	var seen *analysis.DatasetProfile
	gen := insight.GeneratorFunc(func(ctx context.Context, p *analysis.DatasetProfile) ([]byte, error) {
		calls++
		seen = p
		return []byte(goodReply), nil
	})
	d, err := Run(context.Background(), Request{Path: writeSales(t), Generator: gen, Attempts: 3})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if calls != 1 || d.Attempts != 1 {
		t.Fatalf("calls=%d attempts=%d", calls, d.Attempts)
	}
	if seen == nil || seen.RowCount != 5 || len(seen.Columns) != 3 {
		t.Fatalf("generator saw profile %+v", seen)
	}
	if d.ID == uuid.Nil || d.Source != "sales.csv" {
		t.Fatalf("id=%v source=%q", d.ID, d.Source)
	}
	if insight.Deref(d.Document.Summary.Title) != "Sales" {
		t.Fatalf("summary = %+v", d.Document.Summary)
	}
	if len(d.Charts) != 2 {
		t.Fatalf("charts = %d, want 2", len(d.Charts))
	}
	if d.Charts[0].Title != "Rows per region" || len(d.Charts[0].X) != 3 {
		t.Fatalf("bar chart = %+v", d.Charts[0])
	}
	if len(d.Dropped) != 1 || d.Dropped[0].Index != 1 {
		t.Fatalf("dropped = %+v", d.Dropped)
	}
}

func TestRunRetriesUnparseableReply(t *testing.T) {
	var calls int
	gen := scripted(&calls, text("Sorry, I cannot help with that."), text(goodReply))
	d, err := Run(context.Background(), Request{Path: writeSales(t), Generator: gen, Attempts: 2})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if calls != 2 || d.Attempts != 2 {
		t.Fatalf("calls=%d attempts=%d", calls, d.Attempts)
	}
}

func TestRunSurfacesRawTextOnExtractionFailure(t *testing.T) {
	var calls int
	gen := scripted(&calls, text("first garbage"), text("second garbage"))
	_, err := Run(context.Background(), Request{Path: writeSales(t), Generator: gen, Attempts: 2})
	var xe *insight.ExtractionError
	if !errors.As(err, &xe) {
		t.Fatalf("err = %v, want ExtractionError", err)
	}
	if xe.Raw != "second garbage" {
		t.Fatalf("raw = %q", xe.Raw)
	}
	if !errors.Is(err, insight.ErrExtraction) {
		t.Fatalf("errors.Is ErrExtraction = false")
	}
}

func TestRunDoesNotRetryAuthFailure(t *testing.T) {
	var calls int
	auth := &ai.AuthError{APIError: &ai.APIError{StatusCode: 401, Message: "bad key"}}
	gen := scripted(&calls, fail(auth), text(goodReply))
	_, err := Run(context.Background(), Request{Path: writeSales(t), Generator: gen, Attempts: 3})
	var ae *ai.AuthError
	if !errors.As(err, &ae) {
		t.Fatalf("err = %v, want AuthError", err)
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}

func TestRunRetriesTransientFailure(t *testing.T) {
	var calls int
	gen := scripted(&calls, fail(&ai.ServerError{APIError: &ai.APIError{StatusCode: 503}}), text(goodReply))
	if _, err := Run(context.Background(), Request{Path: writeSales(t), Generator: gen, Attempts: 2}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if calls != 2 {
		t.Fatalf("calls = %d", calls)
	}
}

func TestRunRejectsUnsupportedFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.txt")
	if err := os.WriteFile(path, []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}
	var calls int
	_, err := Run(context.Background(), Request{Path: path, Generator: scripted(&calls, text(goodReply))})
	if !errors.Is(err, dataset.ErrUnsupportedFormat) {
		t.Fatalf("err = %v", err)
	}
	if calls != 0 {
		t.Fatalf("generator called for unsupported input")
	}
}

func TestRunHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var calls int
	_, err := Run(ctx, Request{Path: writeSales(t), Generator: scripted(&calls, text(goodReply))})
	if !errors.Is(err, context.Canceled) || calls != 0 {
		t.Fatalf("err=%v calls=%d", err, calls)
	}
}

func TestRenderReplaysDocument(t *testing.T) {
	a, err := Analyze(writeSales(t), dataset.LoadOptions{})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	defer a.Release()
	doc, err := insight.Extract([]byte(goodReply))
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	charts, drops := a.Render(doc, nil)
	if len(charts) != 2 || len(drops) != 1 {
		t.Fatalf("charts=%d drops=%d", len(charts), len(drops))
	}
	if !strings.Contains(drops[0].Reason, "numeric") {
		t.Fatalf("reason = %q", drops[0].Reason)
	}
}

func TestReplayUsesGivenReply(t *testing.T) {
	d, err := Replay(writeSales(t), dataset.LoadOptions{}, []byte(goodReply), nil)
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if d.Attempts != 0 || len(d.Charts) != 2 || d.Profile.RowCount != 5 {
		t.Fatalf("dashboard = %+v", d)
	}
	_, err = Replay(writeSales(t), dataset.LoadOptions{}, []byte("no json here"), nil)
	var xe *insight.ExtractionError
	if !errors.As(err, &xe) || xe.Raw != "no json here" {
		t.Fatalf("err = %v", err)
	}
}
