// Package report renders profiles and dashboards for people: a Markdown
// summary for files and prompts, and a styled terminal view.
package report

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/KaramelBytes/claridata/internal/analysis"
	"github.com/KaramelBytes/claridata/internal/dataset"
)

const maxCorrPairs = 10

// Markdown renders p as a sectioned plain-text summary.
func Markdown(p *analysis.DatasetProfile) string {
	var b strings.Builder
	b.WriteString("[DATASET SUMMARY]\n")
	if p.Source != "" {
		b.WriteString(fmt.Sprintf("File: %s\n", p.Source))
	}
	b.WriteString(fmt.Sprintf("Rows: %s\n", humanize.Comma(int64(p.RowCount))))
	b.WriteString(fmt.Sprintf("Columns: %d\n\n", len(p.Columns)))

	b.WriteString("[SCHEMA]\n")
	for _, c := range p.Columns {
		b.WriteString(fmt.Sprintf("- %s: %s (non-null %d, missing %s)", safeName(c.Name), c.Type, c.Count, percent(c.MissingCount, c.Count+c.MissingCount)))
		switch {
		case c.Numeric != nil:
			n := c.Numeric
			b.WriteString(fmt.Sprintf("; min %s, p25 %s, median %s, p75 %s, max %s, mean %s", num(n.Min), num(n.P25), num(n.P50), num(n.P75), num(n.Max), num(n.Mean)))
			if n.Std != nil {
				b.WriteString(fmt.Sprintf(", std %s", num(*n.Std)))
			}
			if n.Outliers > 0 {
				b.WriteString(fmt.Sprintf("; outliers: %d above robust |z|>%.1f", n.Outliers, analysis.OutlierThreshold))
			}
		case c.Temporal != nil:
			t := c.Temporal
			b.WriteString(fmt.Sprintf("; from %s to %s (span %s)", t.Min.Format("2006-01-02 15:04:05"), t.Max.Format("2006-01-02 15:04:05"), t.Range))
		case c.Categorical != nil:
			cs := c.Categorical
			if len(cs.Top) > 0 {
				b.WriteString("; top: ")
				for i, kv := range cs.Top {
					if i > 0 {
						b.WriteString(", ")
					}
					b.WriteString(fmt.Sprintf("%s(%d)", safeVal(kv.Value), kv.Count))
				}
			}
			if cs.Unique > len(cs.Top) || c.Type == dataset.Categorical {
				b.WriteString(fmt.Sprintf("; unique=%d", cs.Unique))
			}
		}
		b.WriteString("\n")
	}

	pairs := p.Correlations.Pairs()
	if len(pairs) > 0 {
		b.WriteString("\n[CORRELATIONS]\n")
		// strongest first
		sort.SliceStable(pairs, func(i, j int) bool {
			ai, aj := math.Abs(pairs[i].R), math.Abs(pairs[j].R)
			if ai == aj {
				return pairs[i].A+pairs[i].B < pairs[j].A+pairs[j].B
			}
			return ai > aj
		})
		if len(pairs) > maxCorrPairs {
			pairs = pairs[:maxCorrPairs]
		}
		for _, pr := range pairs {
			b.WriteString(fmt.Sprintf("- %s ~ %s: r=%.3f\n", pr.A, pr.B, pr.R))
		}
	}
	return b.String()
}
