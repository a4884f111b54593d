package dataset

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// readDelimited parses delimited text with a header row. Empty fields are the
// format's absent marker; short rows are padded with absent cells.
func readDelimited(b []byte, delim rune) ([]*rawColumn, error) {
	r := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(b, []byte("\xef\xbb\xbf"))))
	r.FieldsPerRecord = -1
	r.Comma = delim
	// Trimming would swallow empty fields when the delimiter is itself space.
	r.TrimLeadingSpace = delim != '\t' && delim != ' '

	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	cols := columnsFromHeader(header)
	line := 1
	for {
		rec, err := r.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("read row %d: %w", line, err)
		}
		line++
		if len(rec) > len(cols) {
			return nil, fmt.Errorf("row %d has %d fields, header has %d", line, len(rec), len(cols))
		}
		for j, c := range cols {
			if j >= len(rec) {
				c.append("", false)
				continue
			}
			v := strings.TrimSpace(rec[j])
			c.append(v, v != "")
		}
	}
	return cols, nil
}
