// Package viz checks chart proposals against a loaded dataset and builds the
// data the rendering layer plots.
package viz

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/KaramelBytes/claridata/internal/analysis"
	"github.com/KaramelBytes/claridata/internal/dataset"
	"github.com/KaramelBytes/claridata/internal/insight"
)

// ChartKind is the closed set of renderable chart types.
type ChartKind string

const (
	Bar      ChartKind = "bar"
	Line     ChartKind = "line"
	Scatter  ChartKind = "scatter"
	Pie      ChartKind = "pie"
	Doughnut ChartKind = "doughnut"
)

// ParseChartKind matches s case-insensitively against the known kinds.
func ParseChartKind(s string) (ChartKind, bool) {
	switch k := ChartKind(strings.ToLower(strings.TrimSpace(s))); k {
	case Bar, Line, Scatter, Pie, Doughnut:
		return k, true
	}
	return "", false
}

// Aggregation names how rows were derived from the dataset.
type Aggregation string

const (
	// Raw is one point per source row.
	Raw   Aggregation = "raw"
	// Count is the number of rows per distinct x.
	Count Aggregation = "count"
	// Mean is the mean of y per distinct x.
	Mean  Aggregation = "mean"
	// Sum is the total of y per distinct x.
	Sum   Aggregation = "sum"
)

// CountSentinel is the reserved y value requesting a frequency count of x.
const CountSentinel = "count"

// Point is one plotted row. X holds the dataset value (float64, time.Time,
// bool or string); Y is a number, or any value for raw pass-through.
type Point struct {
	X any `json:"x"`
	Y any `json:"y"`
}

// Resolved is a proposal bound to a concrete aggregation and its rows. Only
// a Resolver produces populated values.
type Resolved struct {
	proposal insight.Proposal
	kind     ChartKind
	agg      Aggregation
	x, y     string
	rows     []Point
}

func (r *Resolved) Proposal() insight.Proposal { return r.proposal }
func (r *Resolved) Kind() ChartKind { return r.kind }
func (r *Resolved) Aggregation() Aggregation { return r.agg }
func (r *Resolved) XColumn() string { return r.x }

// YColumn is the y column name, or "" for count aggregations.
func (r *Resolved) YColumn() string { return r.y }

// Rows returns the materialized points; callers must not modify them.
func (r *Resolved) Rows() []Point { return r.rows }

// Drop records a proposal that could not be resolved.
type Drop struct {
	Index  int    `json:"index"`
	Type   string `json:"type,omitempty"`
	Reason string `json:"reason"`
}

// Resolver validates proposals against one dataset and its profile.
type Resolver struct {
	Dataset dataset.Dataset
	Profile *analysis.DatasetProfile
	Logger  *slog.Logger
}

// Resolve returns the resolved visualization for p, or false when p is
// dropped. Dropping is not an error.
func (r *Resolver) Resolve(p insight.Proposal) (*Resolved, bool) {
	res, reason := r.resolve(p)
	if res == nil {
		r.logger().Debug("visualization dropped", "type", insight.Deref(p.Type), "x", insight.Deref(p.X), "reason", reason)
		return nil, false
	}
	return res, true
}

// ResolveAll resolves proposals in order, collecting drops with reasons.
func (r *Resolver) ResolveAll(ps []insight.Proposal) ([]*Resolved, []Drop) {
	var (
		out   []*Resolved
		drops []Drop
	)
	for i, p := range ps {
		res, reason := r.resolve(p)
		if res == nil {
			r.logger().Debug("visualization dropped", "index", i, "type", insight.Deref(p.Type), "x", insight.Deref(p.X), "reason", reason)
			drops = append(drops, Drop{Index: i, Type: insight.Deref(p.Type), Reason: reason})
			continue
		}
		out = append(out, res)
	}
	return out, drops
}

func (r *Resolver) resolve(p insight.Proposal) (*Resolved, string) {
	if p.X == nil {
		return nil, "x column is missing"
	}
	xcol, ok := r.Dataset.Column(*p.X)
	if !ok {
		return nil, fmt.Sprintf("x column %q not found", *p.X)
	}
	var ycol *dataset.Column
	if p.Y != nil && !isCountSentinel(*p.Y) {
		if ycol, ok = r.Dataset.Column(*p.Y); !ok {
			return nil, fmt.Sprintf("y column %q not found", *p.Y)
		}
	}
	kind, ok := ParseChartKind(insight.Deref(p.Type))
	if !ok {
		return nil, fmt.Sprintf("unknown chart type %q", insight.Deref(p.Type))
	}

	res := &Resolved{proposal: p, kind: kind, x: xcol.Name}
	switch kind {
	case Scatter, Line:
		if ycol == nil {
			return nil, string(kind) + " needs a y column"
		}
		if !r.isNumeric(ycol) {
			return nil, fmt.Sprintf("%s needs a numeric y, %q is %s", kind, ycol.Name, r.kindOf(ycol))
		}
		res.agg, res.y, res.rows = Raw, ycol.Name, pairs(xcol, ycol)
	case Bar:
		switch {
		case ycol == nil:
			res.agg, res.rows = Count, countBy(xcol)
		case r.isNumeric(ycol):
			res.agg, res.y, res.rows = Mean, ycol.Name, reduceBy(xcol, ycol, meanOf)
		default:
			res.agg, res.y, res.rows = Raw, ycol.Name, passThrough(xcol, ycol)
		}
	case Pie:
		res.agg, res.rows = Count, countBy(xcol)
	case Doughnut:
		if ycol != nil && r.isNumeric(ycol) {
			res.agg, res.y, res.rows = Sum, ycol.Name, reduceBy(xcol, ycol, sumOf)
		} else {
			res.agg, res.rows = Count, countBy(xcol)
		}
	}
	return res, ""
}

func isCountSentinel(y string) bool {
	return strings.EqualFold(strings.TrimSpace(y), CountSentinel)
}

// kindOf prefers the profile's inferred type and falls back to the column.
func (r *Resolver) kindOf(c *dataset.Column) dataset.Kind {
	if r.Profile != nil {
		if cp, ok := r.Profile.Column(c.Name); ok {
			return cp.Type
		}
	}
	return c.Kind
}

func (r *Resolver) isNumeric(c *dataset.Column) bool {
	return r.kindOf(c) == dataset.Numeric && c.Kind == dataset.Numeric
}

func (r *Resolver) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}
