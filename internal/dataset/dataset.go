package dataset

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/apache/arrow/go/v7/arrow"
	"github.com/apache/arrow/go/v7/arrow/array"
	"github.com/apache/arrow/go/v7/arrow/memory"
)

// Kind is the inferred semantic type of a column.
type Kind string

const (
	Numeric     Kind = "numeric"
	Temporal    Kind = "temporal"
	Boolean     Kind = "boolean"
	Categorical Kind = "categorical"
)

// Dataset is the read-only view every downstream component works against.
type Dataset interface {
	Columns() []string
	Column(name string) (*Column, bool)
	RowCount() int
}

// ErrDuplicateColumn is returned when two columns share a name.
var ErrDuplicateColumn = errors.New("duplicate column name")

// Column is a single typed, immutable column. Exactly one of the backing
// arrays is set, matching Kind. Missing entries are Arrow nulls.
type Column struct {
	Name string
	Kind Kind

	num  *array.Float64
	ts   *array.Timestamp
	flag *array.Boolean
	str  *array.String
}

// Len returns the number of entries, missing included.
func (c *Column) Len() int {
	switch c.Kind {
	case Numeric:
		return c.num.Len()
	case Temporal:
		return c.ts.Len()
	case Boolean:
		return c.flag.Len()
	default:
		return c.str.Len()
	}
}

// IsMissing reports whether row i was marked absent by the source.
func (c *Column) IsMissing(i int) bool {
	switch c.Kind {
	case Numeric:
		return c.num.IsNull(i)
	case Temporal:
		return c.ts.IsNull(i)
	case Boolean:
		return c.flag.IsNull(i)
	default:
		return c.str.IsNull(i)
	}
}

// MissingCount returns the number of absent entries.
func (c *Column) MissingCount() int {
	switch c.Kind {
	case Numeric:
		return c.num.NullN()
	case Temporal:
		return c.ts.NullN()
	case Boolean:
		return c.flag.NullN()
	default:
		return c.str.NullN()
	}
}

// Float returns the numeric value at row i.
func (c *Column) Float(i int) (float64, bool) {
	if c.Kind != Numeric || c.num.IsNull(i) {
		return 0, false
	}
	return c.num.Value(i), true
}

// Time returns the temporal value at row i in UTC.
func (c *Column) Time(i int) (time.Time, bool) {
	if c.Kind != Temporal || c.ts.IsNull(i) {
		return time.Time{}, false
	}
	return time.UnixMicro(int64(c.ts.Value(i))).UTC(), true
}

// Bool returns the boolean value at row i.
func (c *Column) Bool(i int) (bool, bool) {
	if c.Kind != Boolean || c.flag.IsNull(i) {
		return false, false
	}
	return c.flag.Value(i), true
}

// Text returns the display form of row i; missing entries yield "", false.
func (c *Column) Text(i int) (string, bool) {
	if c.IsMissing(i) {
		return "", false
	}
	switch c.Kind {
	case Numeric:
		return strconv.FormatFloat(c.num.Value(i), 'f', -1, 64), true
	case Temporal:
		t, _ := c.Time(i)
		return formatTime(t), true
	case Boolean:
		return strconv.FormatBool(c.flag.Value(i)), true
	default:
		return c.str.Value(i), true
	}
}

// Value returns row i as a plain Go value (float64, time.Time, bool or
// string), or nil when missing.
func (c *Column) Value(i int) any {
	if c.IsMissing(i) {
		return nil
	}
	switch c.Kind {
	case Numeric:
		return c.num.Value(i)
	case Temporal:
		t, _ := c.Time(i)
		return t
	case Boolean:
		return c.flag.Value(i)
	default:
		return c.str.Value(i)
	}
}

func formatTime(t time.Time) string {
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
		return t.Format("2006-01-02")
	}
	return t.Format(time.RFC3339)
}

// Frame is the Arrow-backed Dataset implementation.
type Frame struct {
	name  string
	rows  int
	order []string
	cols  map[string]*Column
}

// Name is the base file name the frame was loaded from.
func (f *Frame) Name() string { return f.name }

func (f *Frame) Columns() []string {
	out := make([]string, len(f.order))
	copy(out, f.order)
	return out
}

func (f *Frame) Column(name string) (*Column, bool) {
	c, ok := f.cols[name]
	return c, ok
}

func (f *Frame) RowCount() int { return f.rows }

// Release frees the Arrow buffers. The frame must not be used afterwards.
func (f *Frame) Release() {
	for _, c := range f.cols {
		switch c.Kind {
		case Numeric:
			c.num.Release()
		case Temporal:
			c.ts.Release()
		case Boolean:
			c.flag.Release()
		default:
			c.str.Release()
		}
	}
}

// rawColumn holds source cells before type inference. present[i] is false
// only when the source marked the entry as absent.
type rawColumn struct {
	name    string
	values  []string
	present []bool
}

func (rc *rawColumn) append(v string, ok bool) {
	rc.values = append(rc.values, v)
	rc.present = append(rc.present, ok)
}

// newFrame infers each column's kind and materializes it as an Arrow array.
func newFrame(name string, raw []*rawColumn) (*Frame, error) {
	f := &Frame{name: name, cols: make(map[string]*Column, len(raw))}
	for i, rc := range raw {
		if _, dup := f.cols[rc.name]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateColumn, rc.name)
		}
		if i == 0 {
			f.rows = len(rc.values)
		} else if len(rc.values) != f.rows {
			return nil, fmt.Errorf("column %q has %d rows, want %d", rc.name, len(rc.values), f.rows)
		}
		f.cols[rc.name] = materialize(rc, InferKind(rc.values, rc.present))
		f.order = append(f.order, rc.name)
	}
	return f, nil
}

var allocator = memory.NewGoAllocator()

func materialize(rc *rawColumn, kind Kind) *Column {
	col := &Column{Name: rc.name, Kind: kind}
	switch kind {
	case Numeric:
		b := array.NewFloat64Builder(allocator)
		defer b.Release()
		for i, v := range rc.values {
			x, ok := parseNumeric(v)
			if !rc.present[i] || !ok {
				b.AppendNull()
				continue
			}
			b.Append(x)
		}
		col.num = b.NewFloat64Array()
	case Temporal:
		// Microseconds cover years 0 through 9999; nanoseconds would wrap outside 1678-2262.
		b := array.NewTimestampBuilder(allocator, &arrow.TimestampType{Unit: arrow.Microsecond})
		defer b.Release()
		for i, v := range rc.values {
			t, ok := parseTime(v)
			if !rc.present[i] || !ok {
				b.AppendNull()
				continue
			}
			b.Append(arrow.Timestamp(t.UnixMicro()))
		}
		col.ts = b.NewTimestampArray()
	case Boolean:
		b := array.NewBooleanBuilder(allocator)
		defer b.Release()
		for i, v := range rc.values {
			x, ok := parseBool(v)
			if !rc.present[i] || !ok {
				b.AppendNull()
				continue
			}
			b.Append(x)
		}
		col.flag = b.NewBooleanArray()
	default:
		b := array.NewStringBuilder(allocator)
		defer b.Release()
		for i, v := range rc.values {
			if !rc.present[i] {
				b.AppendNull()
				continue
			}
			b.Append(v)
		}
		col.str = b.NewStringArray()
	}
	return col
}
