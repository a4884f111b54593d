package report

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
	"golang.org/x/term"

	"github.com/KaramelBytes/claridata/internal/insight"
	"github.com/KaramelBytes/claridata/internal/pipeline"
	"github.com/KaramelBytes/claridata/internal/viz"
)

const (
	defaultWidth = 80
	labelWidth   = 18
	maxBarWidth  = 40
	// rows listed for charts that carry raw pairs
	maxRawRows = 8
)

var (
	colorAccent = lipgloss.Color("86")
	colorDim    = lipgloss.Color("242")
	colorWarn   = lipgloss.Color("214")
)

type styles struct {
	title   lipgloss.Style
	heading lipgloss.Style
	label   lipgloss.Style
	value   lipgloss.Style
	dim     lipgloss.Style
	bar     lipgloss.Style
	warn    lipgloss.Style
}

func colorStyles() styles {
	return styles{
		title:   lipgloss.NewStyle().Bold(true).Foreground(colorAccent),
		heading: lipgloss.NewStyle().Bold(true).Underline(true),
		label:   lipgloss.NewStyle(),
		value:   lipgloss.NewStyle().Bold(true),
		dim:     lipgloss.NewStyle().Foreground(colorDim),
		bar:     lipgloss.NewStyle().Foreground(colorAccent),
		warn:    lipgloss.NewStyle().Foreground(colorWarn),
	}
}

func plainStyles() styles {
	s := lipgloss.NewStyle()
	return styles{title: s, heading: s, label: s, value: s, dim: s, bar: s, warn: s}
}

// Terminal writes a readable rendition of d to w. Colours are used only when
// w is a terminal and NO_COLOR is unset.
func Terminal(w io.Writer, d *pipeline.Dashboard) error {
	st := plainStyles()
	if shouldUseColor(w) {
		st = colorStyles()
	}
	_, err := io.WriteString(w, render(d, st, terminalWidth(w)))
	return err
}

func shouldUseColor(w io.Writer) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}

func terminalWidth(w io.Writer) int {
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		if cols, _, err := term.GetSize(int(f.Fd())); err == nil && cols > 20 {
			return cols
		}
	}
	return defaultWidth
}

func render(d *pipeline.Dashboard, st styles, width int) string {
	var b strings.Builder
	doc := d.Document
	if doc == nil {
		doc = &insight.Document{}
	}

	title := d.Source
	if doc.Summary != nil && insight.Deref(doc.Summary.Title) != "" {
		title = insight.Deref(doc.Summary.Title)
	}
	b.WriteString(st.title.Render(title) + "\n")
	if doc.Summary != nil && insight.Deref(doc.Summary.Description) != "" {
		b.WriteString(wrap(insight.Deref(doc.Summary.Description), width) + "\n")
	}
	if d.Profile != nil {
		meta := fmt.Sprintf("%s · %s rows · %d columns", d.Source, value(d.Profile.RowCount), len(d.Profile.Columns))
		b.WriteString(st.dim.Render(meta) + "\n")
	}

	if len(doc.KPIs) > 0 {
		b.WriteString("\n" + st.heading.Render("Key figures") + "\n")
		for _, k := range doc.KPIs {
			v := rawValue(k.Value)
			if u := safeVal(insight.Text(k.Unit)); u != "" {
				v += " " + u
			}
			line := "  " + st.label.Render(pad(safeVal(insight.Text(k.Title)), labelWidth)) + " " + st.value.Render(v)
			if ch := rawValue(k.Change); ch != "" {
				line += st.dim.Render(" (" + ch + ")")
			}
			b.WriteString(line + "\n")
			if in := insight.Text(k.Insight); in != "" {
				b.WriteString(st.dim.Render(indent(wrap(in, width-4), "    ")) + "\n")
			}
		}
	}

	if len(d.Charts) > 0 {
		b.WriteString("\n" + st.heading.Render("Charts") + "\n")
		for i, c := range d.Charts {
			renderChart(&b, i+1, c, st, width)
		}
	}

	if len(d.Dropped) > 0 {
		b.WriteString("\n" + st.warn.Render(fmt.Sprintf("%d proposal(s) skipped", len(d.Dropped))) + "\n")
		for _, dr := range d.Dropped {
			kind := dr.Type
			if kind == "" {
				kind = "(no type)"
			}
			b.WriteString(st.dim.Render(fmt.Sprintf("  #%d %s: %s", dr.Index+1, kind, dr.Reason)) + "\n")
		}
	}
	return b.String()
}

func renderChart(b *strings.Builder, n int, c viz.ChartData, st styles, width int) {
	head := fmt.Sprintf("[%d] %s", n, c.Kind)
	if c.Title != "" {
		head += " · " + c.Title
	}
	b.WriteString("  " + st.value.Render(head) + st.dim.Render(fmt.Sprintf("  (%s × %s, %s)", c.XLabel, c.YLabel, c.Aggregation)) + "\n")
	if c.Insight != "" {
		b.WriteString(st.dim.Render(indent(wrap(c.Insight, width-6), "      ")) + "\n")
	}

	if c.Aggregation == viz.Raw {
		shown := len(c.X)
		if shown > maxRawRows {
			shown = maxRawRows
		}
		for i := 0; i < shown; i++ {
			b.WriteString("      " + pad(value(c.X[i]), labelWidth) + " " + value(c.Y[i]) + "\n")
		}
		if len(c.X) > shown {
			b.WriteString(st.dim.Render(fmt.Sprintf("      … %d more", len(c.X)-shown)) + "\n")
		}
		return
	}

	barWidth := width - labelWidth - 20
	if barWidth > maxBarWidth {
		barWidth = maxBarWidth
	}
	if barWidth < 5 {
		barWidth = 5
	}
	var peak float64
	for _, y := range c.Y {
		if f := toFloat(y); f > peak {
			peak = f
		}
	}
	for i := range c.X {
		f := toFloat(c.Y[i])
		cells := 0
		if peak > 0 && f > 0 {
			cells = int(f / peak * float64(barWidth))
			if cells == 0 {
				cells = 1
			}
		}
		b.WriteString("      " + pad(value(c.X[i]), labelWidth) + " " + st.bar.Render(strings.Repeat("█", cells)) + " " + value(c.Y[i]) + "\n")
	}
}

func toFloat(v any) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case int:
		return float64(t)
	}
	return 0
}

// pad truncates or right-pads s to exactly w display cells.
func pad(s string, w int) string {
	s = runewidth.Truncate(s, w, "…")
	return runewidth.FillRight(s, w)
}

// wrap breaks s on spaces so no line exceeds width display cells.
func wrap(s string, width int) string {
	if width < 20 {
		width = 20
	}
	var (
		out  strings.Builder
		line int
	)
	for i, word := range strings.Fields(s) {
		ww := runewidth.StringWidth(word)
		if i > 0 {
			if line+1+ww > width {
				out.WriteByte('\n')
				line = 0
			} else {
				out.WriteByte(' ')
				line++
			}
		}
		out.WriteString(word)
		line += ww
	}
	return out.String()
}

func indent(s, prefix string) string {
	return prefix + strings.ReplaceAll(s, "\n", "\n"+prefix)
}
