package dataset

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// Field pairs a column name with its inferred kind.
type Field struct {
	Name string `json:"name"`
	Kind Kind   `json:"type"`
}

// Inspect returns the schema of ds in column order.
func Inspect(ds Dataset) []Field {
	names := ds.Columns()
	out := make([]Field, 0, len(names))
	for _, name := range names {
		c, ok := ds.Column(name)
		if !ok {
			continue
		}
		out = append(out, Field{Name: name, Kind: c.Kind})
	}
	return out
}

// InferKind decides a column's kind from its raw cells. Precedence is
// temporal, numeric, boolean, then categorical; a single value that fails to
// parse demotes the column rather than failing. A column with no present
// values is categorical.
func InferKind(values []string, present []bool) Kind {
	var seen int
	temporal, numeric := true, true
	boolPair := -1
	boolOK := true
	for i, v := range values {
		if i < len(present) && !present[i] {
			continue
		}
		seen++
		s := strings.TrimSpace(v)
		if temporal {
			if _, ok := parseTime(s); !ok {
				temporal = false
			}
		}
		if numeric {
			if _, ok := parseNumeric(s); !ok {
				numeric = false
			}
		}
		if boolOK {
			p := boolPairOf(s)
			switch {
			case p < 0:
				boolOK = false
			case boolPair < 0:
				boolPair = p
			case boolPair != p:
				boolOK = false
			}
		}
		if !temporal && !numeric && !boolOK {
			return Categorical
		}
	}
	switch {
	case seen == 0:
		return Categorical
	case temporal:
		return Temporal
	case numeric:
		return Numeric
	case boolOK:
		return Boolean
	}
	return Categorical
}

var timeLayouts = []string{
	time.RFC3339, time.RFC3339Nano, "2006-01-02", "2006/01/02", "02/01/2006", "01/02/2006",
	"2006-01-02 15:04", "2006-01-02 15:04:05", "2006-01-02T15:04:05", "1/2/2006 15:04", "1/2/2006 15:04:05",
}

func parseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, l := range timeLayouts {
		if t, err := time.Parse(l, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// parseNumeric accepts plain and locale-formatted numbers ("1.234,5",
// "1,234.5", "12%"). The decimal separator is whichever of ',' and '.'
// appears last.
func parseNumeric(s string) (float64, bool) {
	raw := strings.TrimSpace(s)
	raw = strings.TrimSuffix(raw, "%")
	raw = strings.ReplaceAll(raw, "\u00A0", " ")
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}
	dec := '.'
	cpos := strings.LastIndex(raw, ",")
	dpos := strings.LastIndex(raw, ".")
	if cpos > dpos {
		dec = ','
	}
	for _, sep := range []rune{',', '.', ' '} {
		if sep != dec {
			raw = strings.ReplaceAll(raw, string(sep), "")
		}
	}
	if dec != '.' {
		raw = strings.ReplaceAll(raw, string(dec), ".")
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

var boolPairs = [][2]string{
	{"true", "false"},
	{"yes", "no"},
	{"y", "n"},
	{"t", "f"},
}

// boolPairOf returns the index of the token pair containing s, or -1.
func boolPairOf(s string) int {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, p := range boolPairs {
		if s == p[0] || s == p[1] {
			return i
		}
	}
	return -1
}

func parseBool(s string) (bool, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, p := range boolPairs {
		switch s {
		case p[0]:
			return true, true
		case p[1]:
			return false, true
		}
	}
	return false, false
}
