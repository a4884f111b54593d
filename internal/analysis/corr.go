package analysis

import (
	"math"

	"github.com/KaramelBytes/claridata/internal/dataset"
)

// CorrMatrix holds a symmetric Pearson correlation matrix across numeric
// columns. A nil entry means undefined: fewer than two rows where both
// columns are present, or a column that is constant over those rows.
type CorrMatrix struct {
	Columns []string     `json:"columns"`
	Values  [][]*float64 `json:"values"` // row-major, Values[i][j]
}

// Get returns the coefficient for a pair of column names. ok is false when
// either name is not a numeric column; r is nil when undefined.
func (m CorrMatrix) Get(a, b string) (r *float64, ok bool) {
	i, j := -1, -1
	for k, name := range m.Columns {
		if name == a {
			i = k
		}
		if name == b {
			j = k
		}
	}
	if i < 0 || j < 0 {
		return nil, false
	}
	return m.Values[i][j], true
}

// PairCorr is one off-diagonal pair with a defined coefficient.
type PairCorr struct {
	A, B string
	R    float64
}

// Pairs lists every defined off-diagonal pair in matrix order.
func (m CorrMatrix) Pairs() []PairCorr {
	var out []PairCorr
	for i := range m.Columns {
		for j := i + 1; j < len(m.Columns); j++ {
			if r := m.Values[i][j]; r != nil {
				out = append(out, PairCorr{A: m.Columns[i], B: m.Columns[j], R: *r})
			}
		}
	}
	return out
}

func correlate(cols []*dataset.Column) CorrMatrix {
	m := CorrMatrix{Columns: make([]string, len(cols)), Values: make([][]*float64, len(cols))}
	for i, c := range cols {
		m.Columns[i] = c.Name
		m.Values[i] = make([]*float64, len(cols))
	}
	for i := range cols {
		for j := 0; j <= i; j++ {
			r := pearson(cols[i], cols[j])
			m.Values[i][j] = r
			m.Values[j][i] = r
		}
	}
	return m
}

// pearson computes r over rows where both columns are present, in two passes
// for numerical stability. Self-pairs are exactly 1 unless constant.
func pearson(a, b *dataset.Column) *float64 {
	n := a.Len()
	if b.Len() < n {
		n = b.Len()
	}
	var xs, ys []float64
	for i := 0; i < n; i++ {
		x, okx := a.Float(i)
		y, oky := b.Float(i)
		if okx && oky {
			xs = append(xs, x)
			ys = append(ys, y)
		}
	}
	if len(xs) < 2 || constant(xs) || constant(ys) {
		return nil
	}
	if a == b {
		one := 1.0
		return &one
	}
	// r is scale-invariant; scaling keeps the sums finite
	sx, sy := maxAbs(xs), maxAbs(ys)
	for i := range xs {
		xs[i] /= sx
		ys[i] /= sy
	}
	var mx, my float64
	for i := range xs {
		mx += xs[i]
		my += ys[i]
	}
	mx /= float64(len(xs))
	my /= float64(len(ys))
	var sxx, syy, sxy float64
	for i := range xs {
		dx, dy := xs[i]-mx, ys[i]-my
		sxx += dx * dx
		syy += dy * dy
		sxy += dx * dy
	}
	if sxx == 0 || syy == 0 {
		return nil
	}
	r := sxy / (math.Sqrt(sxx) * math.Sqrt(syy))
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return nil
	}
	if r > 1 {
		r = 1
	} else if r < -1 {
		r = -1
	}
	return &r
}

func constant(vals []float64) bool {
	for _, v := range vals[1:] {
		if v != vals[0] {
			return false
		}
	}
	return true
}
