package viz

import "github.com/KaramelBytes/claridata/internal/dataset"

// group accumulates rows sharing an x display value. Groups keep the order
// in which their x first appears.
type group struct {
	x    any
	n    int
	vals []float64
}

type grouper struct {
	order []*group
	index map[string]*group
}

func newGrouper() *grouper { return &grouper{index: map[string]*group{}} }

func (g *grouper) get(c *dataset.Column, i int) *group {
	key, _ := c.Text(i)
	grp, ok := g.index[key]
	if !ok {
		grp = &group{x: c.Value(i)}
		g.index[key] = grp
		g.order = append(g.order, grp)
	}
	return grp
}

// pairs projects (x, y) for rows where both are present.
func pairs(x, y *dataset.Column) []Point {
	out := make([]Point, 0, x.Len())
	for i := 0; i < x.Len(); i++ {
		yv, ok := y.Float(i)
		if x.IsMissing(i) || !ok {
			continue
		}
		out = append(out, Point{X: x.Value(i), Y: yv})
	}
	return out
}

// passThrough projects (x, y) for every row with a present x; y may be nil.
func passThrough(x, y *dataset.Column) []Point {
	out := make([]Point, 0, x.Len())
	for i := 0; i < x.Len(); i++ {
		if x.IsMissing(i) {
			continue
		}
		out = append(out, Point{X: x.Value(i), Y: y.Value(i)})
	}
	return out
}

// countBy counts rows per distinct present x.
func countBy(x *dataset.Column) []Point {
	g := newGrouper()
	for i := 0; i < x.Len(); i++ {
		if x.IsMissing(i) {
			continue
		}
		g.get(x, i).n++
	}
	out := make([]Point, len(g.order))
	for i, grp := range g.order {
		out[i] = Point{X: grp.x, Y: grp.n}
	}
	return out
}

// reduceBy folds the present y values of each x group with fn.
func reduceBy(x, y *dataset.Column, fn func([]float64) float64) []Point {
	g := newGrouper()
	for i := 0; i < x.Len(); i++ {
		yv, ok := y.Float(i)
		if x.IsMissing(i) || !ok {
			continue
		}
		grp := g.get(x, i)
		grp.vals = append(grp.vals, yv)
	}
	out := make([]Point, len(g.order))
	for i, grp := range g.order {
		out[i] = Point{X: grp.x, Y: fn(grp.vals)}
	}
	return out
}

func sumOf(vals []float64) float64 {
	var s float64
	for _, v := range vals {
		s += v
	}
	return s
}

func meanOf(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	return sumOf(vals) / float64(len(vals))
}
