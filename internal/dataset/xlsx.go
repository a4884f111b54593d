package dataset

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"math"
	"path"
	"strconv"
	"strings"
	"time"
)

type workbookSheet struct {
	Name    string
	SheetID int
	RID     string
}

// readXLSX reads one worksheet; the first row is the header. Cells absent
// from the sheet XML (or holding empty text) are treated as missing.
func readXLSX(b []byte, sheetName string, sheetIndex int) ([]*rawColumn, error) {
	zr, err := zip.NewReader(bytes.NewReader(b), int64(len(b)))
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	sheets, date1904, err := parseWorkbook(zipEntry(zr, "xl/workbook.xml"))
	if err != nil {
		return nil, err
	}
	rels := parseRelationships(zipEntry(zr, "xl/_rels/workbook.xml.rels"))
	target, err := sheetTarget(sheets, rels, sheetName, sheetIndex)
	if err != nil {
		return nil, err
	}
	sheetXML := zipEntry(zr, target)
	if sheetXML == nil {
		return nil, fmt.Errorf("worksheet %s not found in workbook", target)
	}
	rr := &sheetRows{
		dec:        xml.NewDecoder(bytes.NewReader(sheetXML)),
		shared:     parseSharedStrings(zipEntry(zr, "xl/sharedStrings.xml")),
		dateStyles: parseDateStyles(zipEntry(zr, "xl/styles.xml")),
		epoch:      excelEpoch,
	}
	if date1904 {
		rr.epoch = excel1904Epoch
	}

	header, ok, err := rr.next()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	for len(header) > 0 && strings.TrimSpace(header[len(header)-1].text) == "" {
		header = header[:len(header)-1]
	}
	names := make([]string, len(header))
	for i, c := range header {
		names[i] = c.text
	}
	cols := columnsFromHeader(names)
	for {
		row, ok, err := rr.next()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		for j, c := range cols {
			if j >= len(row) || !row[j].set {
				c.append("", false)
				continue
			}
			v := strings.TrimSpace(row[j].text)
			c.append(v, v != "")
		}
	}
	return cols, nil
}

func sheetTarget(sheets []workbookSheet, rels map[string]string, name string, index int) (string, error) {
	if name != "" {
		for _, s := range sheets {
			if strings.EqualFold(s.Name, name) {
				if rel, ok := rels[s.RID]; ok {
					return normalizeRelPath(rel), nil
				}
			}
		}
		available := make([]string, len(sheets))
		for i, s := range sheets {
			available[i] = s.Name
		}
		return "", fmt.Errorf("sheet %q not found (available: %s)", name, strings.Join(available, ", "))
	}
	if index <= 0 {
		index = 1
	}
	for _, s := range sheets {
		if s.SheetID == index {
			if rel, ok := rels[s.RID]; ok {
				return normalizeRelPath(rel), nil
			}
		}
	}
	if index <= len(sheets) {
		if rel, ok := rels[sheets[index-1].RID]; ok {
			return normalizeRelPath(rel), nil
		}
	}
	return path.Join("xl", "worksheets", fmt.Sprintf("sheet%d.xml", index)), nil
}

func zipEntry(zr *zip.Reader, name string) []byte {
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil
		}
		defer rc.Close()
		b, err := io.ReadAll(rc)
		if err != nil {
			return nil
		}
		return b
	}
	return nil
}

func parseWorkbook(data []byte) ([]workbookSheet, bool, error) {
	if len(data) == 0 {
		return nil, false, fmt.Errorf("xl/workbook.xml missing")
	}
	dec := xml.NewDecoder(bytes.NewReader(data))
	var (
		out      []workbookSheet
		date1904 bool
	)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return out, date1904, nil
		}
		if err != nil {
			return nil, false, fmt.Errorf("parse workbook: %w", err)
		}
		se, ok := tok.(xml.StartElement)
		if ok && se.Name.Local == "workbookPr" {
			for _, a := range se.Attr {
				if a.Name.Local == "date1904" {
					date1904 = a.Value == "1" || strings.EqualFold(a.Value, "true")
				}
			}
		}
		if !ok || se.Name.Local != "sheet" {
			continue
		}
		var s workbookSheet
		for _, a := range se.Attr {
			switch a.Name.Local {
			case "name":
				s.Name = a.Value
			case "sheetId":
				s.SheetID, _ = strconv.Atoi(a.Value)
			case "id":
				s.RID = a.Value
			}
		}
		out = append(out, s)
	}
}

func parseRelationships(data []byte) map[string]string {
	out := map[string]string{}
	dec := xml.NewDecoder(bytes.NewReader(data))
	for {
		tok, err := dec.Token()
		if err != nil {
			return out
		}
		se, ok := tok.(xml.StartElement)
		if !ok || se.Name.Local != "Relationship" {
			continue
		}
		var id, target string
		for _, a := range se.Attr {
			switch a.Name.Local {
			case "Id":
				id = a.Value
			case "Target":
				target = a.Value
			}
		}
		if id != "" && target != "" {
			out[id] = target
		}
	}
}

func parseSharedStrings(data []byte) []string {
	if len(data) == 0 {
		return nil
	}
	dec := xml.NewDecoder(bytes.NewReader(data))
	var (
		out []string
		buf strings.Builder
		inT bool
	)
	for {
		tok, err := dec.Token()
		if err != nil {
			return out
		}
		switch se := tok.(type) {
		case xml.StartElement:
			switch se.Name.Local {
			case "si":
				buf.Reset()
			case "t":
				inT = true
			}
		case xml.EndElement:
			switch se.Name.Local {
			case "t":
				inT = false
			case "si":
				out = append(out, buf.String())
			}
		case xml.CharData:
			if inT {
				buf.Write(se)
			}
		}
	}
}

var (
	excelEpoch     = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)
	excel1904Epoch = time.Date(1904, 1, 1, 0, 0, 0, 0, time.UTC)
)

// parseDateStyles reports, per cellXfs index, whether the style's number
// format renders a date or time.
func parseDateStyles(data []byte) []bool {
	if len(data) == 0 {
		return nil
	}
	dec := xml.NewDecoder(bytes.NewReader(data))
	custom := map[int]bool{}
	var (
		out   []bool
		inXfs bool
	)
	for {
		tok, err := dec.Token()
		if err != nil {
			return out
		}
		switch se := tok.(type) {
		case xml.StartElement:
			switch se.Name.Local {
			case "numFmt":
				var id int
				var code string
				for _, a := range se.Attr {
					switch a.Name.Local {
					case "numFmtId":
						id, _ = strconv.Atoi(a.Value)
					case "formatCode":
						code = a.Value
					}
				}
				custom[id] = isDateFormat(code)
			case "cellXfs":
				inXfs = true
			case "xf":
				if !inXfs {
					continue
				}
				id := -1
				for _, a := range se.Attr {
					if a.Name.Local == "numFmtId" {
						id, _ = strconv.Atoi(a.Value)
					}
				}
				out = append(out, isBuiltinDateFormat(id) || custom[id])
			}
		case xml.EndElement:
			if se.Name.Local == "cellXfs" {
				inXfs = false
			}
		}
	}
}

// isBuiltinDateFormat covers the predefined date and time ids (14-22, 45-47).
func isBuiltinDateFormat(id int) bool {
	return id >= 14 && id <= 22 || id >= 45 && id <= 47
}

// isDateFormat reports whether a custom format code contains date or time
// tokens outside quoted literals, escapes and [..] sections.
func isDateFormat(code string) bool {
	var quoted, bracket bool
	for i := 0; i < len(code); i++ {
		c := code[i]
		switch {
		case quoted:
			quoted = c != '"'
		case bracket:
			bracket = c != ']'
		case c == '"':
			quoted = true
		case c == '[':
			bracket = true
		case c == '\\' || c == '_' || c == '*':
			i++
		case c == ';':
			// only the first (positive) section decides
			return false
		default:
			switch c | 0x20 {
			case 'y', 'm', 'd', 'h', 's':
				return true
			}
		}
	}
	return false
}

// serialTime converts a spreadsheet day serial to a timestamp string the
// temporal parser accepts.
func serialTime(serial float64, epoch time.Time) (string, bool) {
	if math.IsNaN(serial) || serial < 0 || serial > 2958465 {
		return "", false
	}
	days := math.Floor(serial)
	secs := math.Round((serial - days) * 86400)
	t := epoch.AddDate(0, 0, int(days)).Add(time.Duration(secs) * time.Second)
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 {
		return t.Format("2006-01-02"), true
	}
	return t.Format("2006-01-02 15:04:05"), true
}

type sheetCell struct {
	text string
	set  bool
}

type sheetRows struct {
	dec        *xml.Decoder
	shared     []string
	dateStyles []bool
	epoch      time.Time
}

// next returns the following <row> as positional cells.
func (r *sheetRows) next() ([]sheetCell, bool, error) {
	var (
		row   []sheetCell
		inRow bool
	)
	for {
		tok, err := r.dec.Token()
		if err == io.EOF {
			return nil, false, nil
		}
		if err != nil {
			return nil, false, fmt.Errorf("parse worksheet: %w", err)
		}
		switch se := tok.(type) {
		case xml.StartElement:
			if se.Name.Local == "row" {
				inRow = true
				row = nil
				continue
			}
			if !inRow || se.Name.Local != "c" {
				continue
			}
			var ref, typ string
			style := -1
			for _, a := range se.Attr {
				switch a.Name.Local {
				case "r":
					ref = a.Value
				case "t":
					typ = a.Value
				case "s":
					style, _ = strconv.Atoi(a.Value)
				}
			}
			idx := colIndexFromRef(ref)
			if idx < 0 {
				idx = len(row)
			}
			val, set, err := r.cellValue(typ)
			if err != nil {
				return nil, false, err
			}
			if set && (typ == "" || typ == "n") && r.isDateStyle(style) {
				if f, perr := strconv.ParseFloat(strings.TrimSpace(val), 64); perr == nil {
					if ts, ok := serialTime(f, r.epoch); ok {
						val = ts
					}
				}
			}
			for len(row) <= idx {
				row = append(row, sheetCell{})
			}
			row[idx] = sheetCell{text: val, set: set}
		case xml.EndElement:
			if se.Name.Local == "row" {
				return row, true, nil
			}
		}
	}
}

func (r *sheetRows) isDateStyle(style int) bool {
	return style >= 0 && style < len(r.dateStyles) && r.dateStyles[style]
}

// cellValue consumes tokens up to </c>, capturing <v> or inline <is><t>.
func (r *sheetRows) cellValue(typ string) (string, bool, error) {
	var (
		val string
		set bool
	)
	for {
		tok, err := r.dec.Token()
		if err != nil {
			return "", false, fmt.Errorf("parse cell: %w", err)
		}
		switch se := tok.(type) {
		case xml.StartElement:
			if se.Name.Local == "v" || se.Name.Local == "t" {
				var sb strings.Builder
				for {
					tk, err := r.dec.Token()
					if err != nil {
						return "", false, fmt.Errorf("parse cell: %w", err)
					}
					if ed, ok := tk.(xml.EndElement); ok && ed.Name.Local == se.Name.Local {
						break
					}
					if ch, ok := tk.(xml.CharData); ok {
						sb.Write(ch)
					}
				}
				val += sb.String()
				set = true
			}
		case xml.EndElement:
			if se.Name.Local != "c" {
				continue
			}
			if typ == "s" && set {
				idx, err := strconv.Atoi(strings.TrimSpace(val))
				if err != nil || idx < 0 || idx >= len(r.shared) {
					return "", false, nil
				}
				return r.shared[idx], true, nil
			}
			if typ == "b" && set {
				return strconv.FormatBool(strings.TrimSpace(val) == "1"), true, nil
			}
			return val, set, nil
		}
	}
}

// colIndexFromRef maps a cell reference like "C12" to its 0-based column.
func colIndexFromRef(ref string) int {
	idx := 0
	for i := 0; i < len(ref); i++ {
		c := ref[i]
		switch {
		case c >= 'A' && c <= 'Z':
			idx = idx*26 + int(c-'A'+1)
		case c >= 'a' && c <= 'z':
			idx = idx*26 + int(c-'a'+1)
		default:
			return idx - 1
		}
	}
	return idx - 1
}

// normalizeRelPath turns a workbook relationship target into a zip entry
// name; targets may be absolute ("/xl/...") or relative to xl/.
func normalizeRelPath(rel string) string {
	rel = strings.TrimPrefix(rel, "/")
	if strings.HasPrefix(rel, "xl/") {
		return rel
	}
	return path.Join("xl", rel)
}
