package dataset

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrUnsupportedFormat is returned for file extensions no loader handles.
var ErrUnsupportedFormat = errors.New("unsupported dataset format")

// ErrLoadFailure classifies every LoadError.
var ErrLoadFailure = errors.New("dataset load failed")

// LoadError reports bytes that do not parse as the format their extension
// declares.
type LoadError struct {
	Path   string
	Format string
	Err    error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load %s as %s: %v", filepath.Base(e.Path), e.Format, e.Err)
}

func (e *LoadError) Unwrap() []error { return []error{ErrLoadFailure, e.Err} }

// LoadOptions tunes format-specific loading.
type LoadOptions struct {
	// Delimiter for delimited text. If 0, ',' (or '\t' for .tsv).
	Delimiter rune
	// SheetName selects an XLSX sheet by name; takes precedence over SheetIndex.
	SheetName string
	// SheetIndex is the 1-based XLSX sheet index; <= 0 means the first sheet.
	SheetIndex int
	// Table selects a SQLite table; empty means the first user table.
	Table string
}

// Formats lists the accepted file extensions.
func Formats() []string {
	return []string{".csv", ".tsv", ".xlsx", ".json", ".jsonl", ".ndjson", ".yaml", ".yml", ".db", ".sqlite", ".sqlite3"}
}

// Load reads path, choosing the parser by file extension, and returns an
// immutable Frame with every column's kind inferred.
func Load(path string, opt LoadOptions) (*Frame, error) {
	ext := strings.ToLower(filepath.Ext(path))
	var (
		raw    []*rawColumn
		err    error
		format string
	)
	switch ext {
	case ".csv", ".tsv":
		format = "delimited text"
		raw, err = withFile(path, func(b []byte) ([]*rawColumn, error) { return readDelimited(b, delimiterFor(ext, opt)) })
	case ".xlsx":
		format = "xlsx"
		raw, err = withFile(path, func(b []byte) ([]*rawColumn, error) { return readXLSX(b, opt.SheetName, opt.SheetIndex) })
	case ".json":
		format = "json"
		raw, err = withFile(path, readJSON)
	case ".jsonl", ".ndjson":
		format = "json lines"
		raw, err = withFile(path, readJSONLines)
	case ".yaml", ".yml":
		format = "yaml"
		raw, err = withFile(path, readYAML)
	case ".db", ".sqlite", ".sqlite3":
		format = "sqlite"
		raw, err = readSQLite(path, opt.Table)
	default:
		if ext == "" {
			ext = "(none)"
		}
		return nil, fmt.Errorf("%w: %s (supported: %s)", ErrUnsupportedFormat, ext, strings.Join(Formats(), ", "))
	}
	if err != nil {
		var pe *os.PathError
		if errors.As(err, &pe) {
			return nil, fmt.Errorf("read dataset: %w", err)
		}
		return nil, &LoadError{Path: path, Format: format, Err: err}
	}
	f, err := newFrame(filepath.Base(path), raw)
	if err != nil {
		return nil, &LoadError{Path: path, Format: format, Err: err}
	}
	return f, nil
}

func withFile(path string, parse func([]byte) ([]*rawColumn, error)) ([]*rawColumn, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return parse(b)
}

func delimiterFor(ext string, opt LoadOptions) rune {
	if opt.Delimiter != 0 {
		return opt.Delimiter
	}
	if ext == ".tsv" {
		return '\t'
	}
	return ','
}

// columnsFromHeader creates raw columns, naming blank headers by position.
func columnsFromHeader(header []string) []*rawColumn {
	cols := make([]*rawColumn, len(header))
	for i, h := range header {
		name := strings.TrimSpace(h)
		if name == "" {
			name = fmt.Sprintf("column_%d", i+1)
		}
		cols[i] = &rawColumn{name: name}
	}
	return cols
}
