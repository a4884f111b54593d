package report

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"
)

// num renders a float with at most four significant decimals, trailing zeros
// trimmed. Magnitudes of 1000 or more get thousands separators.
func num(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return strconv.FormatFloat(v, 'g', -1, 64)
	}
	places := int32(4)
	if math.Abs(v) >= 1 {
		places = 2
	}
	d := decimal.NewFromFloat(v).Round(places)
	if d.Abs().GreaterThanOrEqual(decimal.NewFromInt(1000)) {
		f, _ := d.Float64()
		return humanize.CommafWithDigits(f, int(places))
	}
	return d.String()
}

// value renders a cell produced by the viz package.
func value(v any) string {
	switch t := v.(type) {
	case nil:
		return "(missing)"
	case float64:
		return num(t)
	case int:
		return humanize.Comma(int64(t))
	case string:
		return safeVal(t)
	case bool:
		return strconv.FormatBool(t)
	case time.Time:
		if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
			return t.Format("2006-01-02")
		}
		return t.Format("2006-01-02 15:04:05")
	}
	if s, ok := v.(interface{ String() string }); ok {
		return s.String()
	}
	b, _ := json.Marshal(v)
	return string(b)
}

// rawValue renders a verbatim JSON value: strings unquoted, numbers rounded.
func rawValue(m json.RawMessage) string {
	if len(m) == 0 || string(m) == "null" {
		return ""
	}
	var s string
	if json.Unmarshal(m, &s) == nil {
		return safeVal(s)
	}
	var f float64
	if json.Unmarshal(m, &f) == nil {
		return num(f)
	}
	return safeVal(string(m))
}

func percent(part, total int) string {
	if total == 0 {
		return "0.0%"
	}
	return strconv.FormatFloat(float64(part)*100/float64(total), 'f', 1, 64) + "%"
}

func safeName(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "(unnamed)"
	}
	return s
}

func safeVal(s string) string { return strings.ReplaceAll(strings.ReplaceAll(s, "\n", " "), "|", "/") }
