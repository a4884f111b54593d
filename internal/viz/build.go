package viz

import "github.com/KaramelBytes/claridata/internal/insight"

// ChartData is the series and labels handed to the rendering layer.
type ChartData struct {
	Kind        ChartKind   `json:"kind"`
	Aggregation Aggregation `json:"aggregation"`
	Title       string      `json:"title,omitempty"`
	XLabel      string      `json:"x_label"`
	YLabel      string      `json:"y_label"`
	Insight     string      `json:"insight,omitempty"`
	X           []any       `json:"x"`
	Y           []any       `json:"y"`
}

// Build turns a resolved visualization into plot-ready series. Labels fall
// back to the column names, or "count" for count aggregations.
func Build(r *Resolved) ChartData {
	p := r.Proposal()
	cd := ChartData{
		Kind:        r.Kind(),
		Aggregation: r.Aggregation(),
		Title:       insight.Deref(p.Title),
		XLabel:      insight.Deref(p.XLabel),
		YLabel:      insight.Deref(p.YLabel),
		Insight:     insight.Deref(p.Insight),
		X:           make([]any, len(r.Rows())),
		Y:           make([]any, len(r.Rows())),
	}
	if cd.XLabel == "" {
		cd.XLabel = r.XColumn()
	}
	if cd.YLabel == "" {
		cd.YLabel = r.YColumn()
		if r.Aggregation() == Count {
			cd.YLabel = CountSentinel
		}
	}
	for i, pt := range r.Rows() {
		cd.X[i] = pt.X
		cd.Y[i] = pt.Y
	}
	return cd
}

// BuildAll builds every resolved visualization in order.
func BuildAll(rs []*Resolved) []ChartData {
	out := make([]ChartData, len(rs))
	for i, r := range rs {
		out[i] = Build(r)
	}
	return out
}
