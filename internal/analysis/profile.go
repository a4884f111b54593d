package analysis

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/KaramelBytes/claridata/internal/dataset"
)

// OutlierThreshold is the robust |z| above which a numeric value counts as
// an outlier.
const OutlierThreshold = 3.5

// MaxTopValues caps the frequency ranking kept per categorical column.
const MaxTopValues = 10

// DatasetProfile is the statistical summary handed to the text generator.
type DatasetProfile struct {
	Source       string          `json:"source,omitempty"`
	RowCount     int             `json:"row_count"`
	Columns      []ColumnProfile `json:"columns"`
	Correlations CorrMatrix      `json:"correlations"`
}

// ColumnProfile captures inferred type and statistics per column. Exactly one
// of the summaries is set for a column with at least one present value.
type ColumnProfile struct {
	Name         string              `json:"name"`
	Type         dataset.Kind        `json:"type"`
	Count        int                 `json:"count"`
	MissingCount int                 `json:"missing_count"`
	Numeric      *NumericSummary     `json:"numeric,omitempty"`
	Temporal     *TemporalSummary    `json:"temporal,omitempty"`
	Categorical  *CategoricalSummary `json:"categorical,omitempty"`
}

// NumericSummary is the five-number summary plus mean and std. Std is nil
// when fewer than two values are present.
type NumericSummary struct {
	Count    int      `json:"count"`
	Mean     float64  `json:"mean"`
	Std      *float64 `json:"std"`
	Min      float64  `json:"min"`
	P25      float64  `json:"p25"`
	P50      float64  `json:"p50"`
	P75      float64  `json:"p75"`
	Max      float64  `json:"max"`
	Outliers int      `json:"outliers"`
}

type TemporalSummary struct {
	Min   time.Time `json:"min"`
	Max   time.Time `json:"max"`
	Range string    `json:"range"`
}

type CategoricalSummary struct {
	Unique int          `json:"unique"`
	Top    []ValueCount `json:"top"`
}

type ValueCount struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// Column returns the profile for name.
func (p *DatasetProfile) Column(name string) (*ColumnProfile, bool) {
	for i := range p.Columns {
		if p.Columns[i].Name == name {
			return &p.Columns[i], true
		}
	}
	return nil, false
}

// Profile derives the DatasetProfile of ds. It never fails: degenerate
// statistics are reported as nil rather than errors.
func Profile(ds dataset.Dataset) *DatasetProfile {
	p := &DatasetProfile{RowCount: ds.RowCount()}
	if named, ok := ds.(interface{ Name() string }); ok {
		p.Source = named.Name()
	}
	var numeric []*dataset.Column
	for _, name := range ds.Columns() {
		c, ok := ds.Column(name)
		if !ok {
			continue
		}
		p.Columns = append(p.Columns, profileColumn(c))
		if c.Kind == dataset.Numeric {
			numeric = append(numeric, c)
		}
	}
	p.Correlations = correlate(numeric)
	return p
}

func profileColumn(c *dataset.Column) ColumnProfile {
	n := c.Len()
	cp := ColumnProfile{Name: c.Name, Type: c.Kind, MissingCount: c.MissingCount()}
	cp.Count = n - cp.MissingCount
	if cp.Count == 0 {
		return cp
	}
	switch c.Kind {
	case dataset.Numeric:
		vals := make([]float64, 0, cp.Count)
		for i := 0; i < n; i++ {
			if x, ok := c.Float(i); ok {
				vals = append(vals, x)
			}
		}
		cp.Numeric = summarizeNumeric(vals)
	case dataset.Temporal:
		var lo, hi time.Time
		first := true
		for i := 0; i < n; i++ {
			t, ok := c.Time(i)
			if !ok {
				continue
			}
			if first || t.Before(lo) {
				lo = t
			}
			if first || t.After(hi) {
				hi = t
			}
			first = false
		}
		cp.Temporal = &TemporalSummary{Min: lo, Max: hi, Range: span(lo, hi)}
	default:
		counts := map[string]int{}
		for i := 0; i < n; i++ {
			if s, ok := c.Text(i); ok {
				counts[s]++
			}
		}
		cp.Categorical = summarizeCategorical(counts)
	}
	return cp
}

func summarizeNumeric(vals []float64) *NumericSummary {
	// numeric stats via Welford, on values scaled into [-1, 1] so squared
	// deltas of huge magnitudes stay finite
	scale := maxAbs(vals)
	var (
		k    int
		mean float64
		m2   float64
	)
	for _, x := range vals {
		x /= scale
		k++
		delta := x - mean
		mean += delta / float64(k)
		m2 += delta * (x - mean)
	}
	mean *= scale
	sorted := make([]float64, len(vals))
	copy(sorted, vals)
	sort.Float64s(sorted)

	s := &NumericSummary{
		Count: k,
		Mean:  mean,
		Min:   sorted[0],
		P25:   quantile(sorted, 0.25),
		P50:   quantile(sorted, 0.5),
		P75:   quantile(sorted, 0.75),
		Max:   sorted[len(sorted)-1],
	}
	if k >= 2 {
		std := math.Sqrt(m2/float64(k-1)) * scale
		s.Std = finite(std)
	}
	s.Outliers = countOutliers(sorted, OutlierThreshold)
	return s
}

// span formats hi-lo as a duration, switching to whole days plus the
// remainder once the gap no longer fits in a time.Duration.
func span(lo, hi time.Time) string {
	secs := hi.Unix() - lo.Unix()
	if secs < int64(math.MaxInt64/time.Second)-1 {
		return hi.Sub(lo).String()
	}
	const day = 24 * 60 * 60
	days := secs / day
	rest := time.Duration(secs%day)*time.Second + time.Duration(hi.Nanosecond()-lo.Nanosecond())
	if rest < 0 {
		days--
		rest += day * time.Second
	}
	return fmt.Sprintf("%dd%s", days, rest)
}

// maxAbs returns the largest magnitude in vals, or 1 when all are zero.
func maxAbs(vals []float64) float64 {
	var m float64
	for _, v := range vals {
		if a := math.Abs(v); a > m {
			m = a
		}
	}
	if m == 0 {
		return 1
	}
	return m
}

// finite returns &v, or nil when v is NaN or infinite.
func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func summarizeCategorical(counts map[string]int) *CategoricalSummary {
	tops := make([]ValueCount, 0, len(counts))
	for k, v := range counts {
		tops = append(tops, ValueCount{Value: k, Count: v})
	}
	sort.Slice(tops, func(i, j int) bool {
		if tops[i].Count == tops[j].Count {
			return tops[i].Value < tops[j].Value
		}
		return tops[i].Count > tops[j].Count
	})
	if len(tops) > MaxTopValues {
		tops = tops[:MaxTopValues]
	}
	return &CategoricalSummary{Unique: len(counts), Top: tops}
}

// countOutliers counts values whose robust z-score (via MAD) exceeds thr.
// Fewer than 8 values, or a zero MAD, yields 0.
func countOutliers(sorted []float64, thr float64) int {
	if len(sorted) < 8 {
		return 0
	}
	median, mad := medianMAD(sorted)
	if mad == 0 {
		return 0
	}
	var cnt int
	for _, v := range sorted {
		if math.Abs(0.6745*(v-median)/mad) > thr {
			cnt++
		}
	}
	return cnt
}

// medianMAD computes median and MAD (median absolute deviation) of sorted values.
func medianMAD(sorted []float64) (median, mad float64) {
	median = quantile(sorted, 0.5)
	dev := make([]float64, len(sorted))
	for i, v := range sorted {
		dev[i] = math.Abs(v - median)
	}
	sort.Float64s(dev)
	mad = quantile(dev, 0.5)
	return
}

// quantile interpolates linearly between closest ranks.
func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[len(sorted)-1]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	w := pos - float64(lo)
	return sorted[lo]*(1-w) + sorted[hi]*w
}
