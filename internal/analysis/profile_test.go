package analysis

import (
	"bytes"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/KaramelBytes/claridata/internal/dataset"
)

func loadCSV(t *testing.T, rows ...string) *dataset.Frame {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fixture.csv")
	if err := os.WriteFile(path, []byte(strings.Join(rows, "\n")+"\n"), 0o644); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	f, err := dataset.Load(path, dataset.LoadOptions{})
	if err != nil {
		t.Fatalf("load csv: %v", err)
	}
	t.Cleanup(f.Release)
	return f
}

func almostEqual(a, b, tol float64) bool { return math.Abs(a-b) <= tol }

func mustColumn(t *testing.T, p *DatasetProfile, name string) *ColumnProfile {
	t.Helper()
	c, ok := p.Column(name)
	if !ok {
		t.Fatalf("column %q missing from profile", name)
	}
	return c
}

func TestProfileExcludesMissingFromStats(t *testing.T) {
	f := loadCSV(t,
		"price,city",
		"10,A",
		"20,A",
		",B",
		"40,C",
	)
	p := Profile(f)
	if p.RowCount != 4 || len(p.Columns) != 2 {
		t.Fatalf("rows=%d cols=%d", p.RowCount, len(p.Columns))
	}
	if p.Source != "fixture.csv" {
		t.Fatalf("source = %q", p.Source)
	}
	price := mustColumn(t, p, "price")
	if price.Type != dataset.Numeric || price.MissingCount != 1 || price.Count != 3 {
		t.Fatalf("price = %+v", price)
	}
	n := price.Numeric
	if n == nil {
		t.Fatalf("price has no numeric summary")
	}
	if !almostEqual(n.Mean, 70.0/3.0, 1e-12) {
		t.Fatalf("mean = %v, want %v", n.Mean, 70.0/3.0)
	}
	if n.Min != 10 || n.Max != 40 || n.P50 != 20 || n.P25 != 15 || n.P75 != 30 {
		t.Fatalf("quartiles = %+v", n)
	}
	wantStd := math.Sqrt(((10-70.0/3)*(10-70.0/3) + (20-70.0/3)*(20-70.0/3) + (40-70.0/3)*(40-70.0/3)) / 2)
	if n.Std == nil || !almostEqual(*n.Std, wantStd, 1e-9) {
		t.Fatalf("std = %v, want %v", n.Std, wantStd)
	}

	city := mustColumn(t, p, "city")
	if city.Type != dataset.Categorical || city.Categorical == nil {
		t.Fatalf("city = %+v", city)
	}
	top := city.Categorical.Top
	if city.Categorical.Unique != 3 || len(top) != 3 {
		t.Fatalf("city top = %+v", city.Categorical)
	}
	if top[0] != (ValueCount{Value: "A", Count: 2}) || top[1].Value != "B" || top[2].Value != "C" {
		t.Fatalf("city ranking = %+v", top)
	}
}

func TestProfileTemporalRange(t *testing.T) {
	f := loadCSV(t, "day", "2024-01-03", "2024-01-01", "", "2024-01-02")
	c := mustColumn(t, Profile(f), "day")
	if c.Temporal == nil {
		t.Fatalf("day = %+v", c)
	}
	if got := c.Temporal.Min.Format("2006-01-02"); got != "2024-01-01" {
		t.Fatalf("min = %s", got)
	}
	if got := c.Temporal.Max.Format("2006-01-02"); got != "2024-01-03" {
		t.Fatalf("max = %s", got)
	}
	if c.Temporal.Range != "48h0m0s" {
		t.Fatalf("range = %q", c.Temporal.Range)
	}
}

func TestProfileSingleValueHasNoStd(t *testing.T) {
	f := loadCSV(t, "x,y", "5,1", ",2", ",3")
	p := Profile(f)
	x := mustColumn(t, p, "x")
	if x.Numeric == nil || x.Numeric.Std != nil {
		t.Fatalf("x summary = %+v", x.Numeric)
	}
	r, ok := p.Correlations.Get("x", "x")
	if !ok || r != nil {
		t.Fatalf("single-value self correlation = %v, %v", r, ok)
	}
	if r, _ := p.Correlations.Get("x", "y"); r != nil {
		t.Fatalf("x~y = %v, want undefined", *r)
	}
}

func TestCorrelationConstantColumnUndefined(t *testing.T) {
	f := loadCSV(t, "a,b,c", "1,7,2", "2,7,4", "3,7,6", "4,7,8")
	m := Profile(f).Correlations
	if r, _ := m.Get("b", "b"); r != nil {
		t.Fatalf("constant self correlation = %v", *r)
	}
	if r, _ := m.Get("a", "b"); r != nil {
		t.Fatalf("a~b = %v, want undefined", *r)
	}
	r, _ := m.Get("a", "a")
	if r == nil || *r != 1 {
		t.Fatalf("a~a = %v, want 1", r)
	}
	r, _ = m.Get("a", "c")
	if r == nil || !almostEqual(*r, 1, 1e-12) {
		t.Fatalf("a~c = %v, want 1", r)
	}
}

func TestCorrelationSymmetricAndBounded(t *testing.T) {
	f := loadCSV(t,
		"a,b,c,label",
		"1,9,3,x",
		"2,7,1,y",
		"3,8,4,x",
		"4,2,1,z",
		"5,,5,y",
		"6,1,9,x",
	)
	m := Profile(f).Correlations
	if len(m.Columns) != 3 {
		t.Fatalf("corr columns = %v, want numeric only", m.Columns)
	}
	for i := range m.Columns {
		for j := range m.Columns {
			a, b := m.Values[i][j], m.Values[j][i]
			if (a == nil) != (b == nil) {
				t.Fatalf("asymmetric definedness at %d,%d", i, j)
			}
			if a == nil {
				continue
			}
			if *a != *b {
				t.Fatalf("corr[%d][%d]=%v != corr[%d][%d]=%v", i, j, *a, j, i, *b)
			}
			if *a < -1 || *a > 1 {
				t.Fatalf("corr out of range: %v", *a)
			}
		}
	}
	r, _ := m.Get("a", "b")
	if r == nil || *r >= 0 {
		t.Fatalf("a~b = %v, want negative", r)
	}
	if len(m.Pairs()) != 3 {
		t.Fatalf("pairs = %+v", m.Pairs())
	}
}

func TestProfileCountsEveryColumn(t *testing.T) {
	f := loadCSV(t, "a,b,c,d", ",,,", "1,,x,true", "2,,y,false")
	p := Profile(f)
	if len(p.Columns) != 4 || p.RowCount != 3 {
		t.Fatalf("cols=%d rows=%d", len(p.Columns), p.RowCount)
	}
	b := mustColumn(t, p, "b")
	if b.Type != dataset.Categorical || b.MissingCount != 3 || b.Categorical != nil {
		t.Fatalf("all-missing column = %+v", b)
	}
	d := mustColumn(t, p, "d")
	if d.Type != dataset.Boolean || d.Categorical == nil || d.Categorical.Unique != 2 {
		t.Fatalf("boolean column = %+v", d)
	}
}

func TestProfileOutliers(t *testing.T) {
	f := loadCSV(t, "score", "10", "11", "9.5", "10.5", "9.8", "10.2", "8.8", "9.7", "50", "10.1")
	c := mustColumn(t, Profile(f), "score")
	if c.Numeric.Outliers != 1 {
		t.Fatalf("outliers = %d, want 1", c.Numeric.Outliers)
	}
}

func TestProfileDeterministic(t *testing.T) {
	rows := []string{"g,v,w,day", "a,1,2,2024-01-01", "b,3,1,2024-02-01", "a,2,,2024-03-01", "c,5,4,"}
	first, err := json.Marshal(Profile(loadCSV(t, rows...)))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	second, err := json.Marshal(Profile(loadCSV(t, rows...)))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Fatalf("profiles differ:\n%s\n%s", first, second)
	}
	if !bytes.Contains(first, []byte(`"values":[[1,`)) {
		t.Fatalf("unexpected correlation encoding: %s", first)
	}
}

func TestQuantile(t *testing.T) {
	sorted := []float64{1, 2, 3, 4}
	cases := map[float64]float64{0: 1, 0.25: 1.75, 0.5: 2.5, 0.75: 3.25, 1: 4}
	for q, want := range cases {
		if got := quantile(sorted, q); !almostEqual(got, want, 1e-12) {
			t.Fatalf("quantile(%v) = %v, want %v", q, got, want)
		}
	}
}

func TestProfileHugeMagnitudesStayFinite(t *testing.T) {
	f := loadCSV(t, "a,b,c", "1e200,2e200,1.7e308", "-1e200,-1e200,-1.7e308", "3e200,5e200,1.7e308")
	p := Profile(f)
	a := mustColumn(t, p, "a")
	if a.Numeric.Std == nil || math.IsInf(*a.Numeric.Std, 0) || !almostEqual(*a.Numeric.Std/1e200, 2, 1e-9) {
		t.Fatalf("a std = %v", a.Numeric.Std)
	}
	if !almostEqual(a.Numeric.Mean/1e200, 1, 1e-9) {
		t.Fatalf("a mean = %v", a.Numeric.Mean)
	}
	// the true std of c exceeds MaxFloat64
	if c := mustColumn(t, p, "c"); c.Numeric.Std != nil {
		t.Fatalf("c std = %v, want undefined", *c.Numeric.Std)
	}
	r, _ := p.Correlations.Get("a", "b")
	if r == nil || math.IsNaN(*r) || *r < 0.99 || *r > 1 {
		t.Fatalf("a~b = %v", r)
	}
	if _, err := json.Marshal(p); err != nil {
		t.Fatalf("marshal: %v", err)
	}
}

func TestProfileTemporalOutsideNanosecondRange(t *testing.T) {
	f := loadCSV(t, "day,old", "1500-01-01,1600-06-01", "2020-01-01,1600-06-03")
	p := Profile(f)
	c := mustColumn(t, p, "day")
	if got := c.Temporal.Min.Format("2006-01-02"); got != "1500-01-01" {
		t.Fatalf("min = %s", got)
	}
	if got := c.Temporal.Max.Format("2006-01-02"); got != "2020-01-01" {
		t.Fatalf("max = %s", got)
	}
	if c.Temporal.Range != "189926d0s" {
		t.Fatalf("range = %q", c.Temporal.Range)
	}
	if old := mustColumn(t, p, "old"); old.Temporal.Range != "48h0m0s" {
		t.Fatalf("old range = %q", old.Temporal.Range)
	}
}
