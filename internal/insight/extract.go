package insight

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrExtraction classifies every ExtractionError.
var ErrExtraction = errors.New("insight extraction failed")

// ExtractionError carries the raw generator text so callers can show it.
type ExtractionError struct {
	Raw   string
	Cause error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("%v: %v", ErrExtraction, e.Cause)
}

func (e *ExtractionError) Unwrap() []error { return []error{ErrExtraction, e.Cause} }

// Extract recovers one Document from raw generator output. It strips
// surrounding whitespace and a code fence (with optional language tag), tries
// a strict parse, then retries on the first balanced {...} span.
func Extract(raw []byte) (*Document, error) {
	text := stripFence(strings.TrimSpace(string(raw)))
	doc, err := parseDocument(text)
	if err == nil {
		return doc, nil
	}
	span, ok := firstObjectSpan(text)
	if !ok {
		return nil, &ExtractionError{Raw: string(raw), Cause: fmt.Errorf("no JSON object found: %w", err)}
	}
	doc, serr := parseDocument(span)
	if serr != nil {
		return nil, &ExtractionError{Raw: string(raw), Cause: serr}
	}
	return doc, nil
}

func parseDocument(s string) (*Document, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "{") {
		return nil, errors.New("document is not a JSON object")
	}
	var doc Document
	if err := json.Unmarshal([]byte(s), &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// stripFence removes a leading ``` fence, the language tag right after it
// (on its own line or inline, any case), and a trailing ``` fence.
func stripFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimLeft(s, "`")
	i := 0
	for i < len(s) && isTagByte(s[i]) {
		i++
	}
	// A tag must be followed by whitespace or the payload itself.
	if i > 0 && (i == len(s) || s[i] == ' ' || s[i] == '\t' || s[i] == '\r' || s[i] == '\n' || s[i] == '{' || s[i] == '[') {
		s = s[i:]
	}
	s = strings.TrimSpace(s)
	if end := strings.LastIndex(s, "```"); end >= 0 {
		s = s[:end]
	}
	return strings.TrimSpace(s)
}

func isTagByte(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '_' || c == '-' || c == '+'
}

// firstObjectSpan returns the first top-level brace-balanced span of s,
// ignoring braces inside JSON strings. ok is false if no span closes.
func firstObjectSpan(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}
	depth := 0
	inString, escaped := false, false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}

// Marshal serializes doc in the shape Extract accepts.
func Marshal(doc *Document) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return nil, err
	}
	return bytes.TrimSpace(buf.Bytes()), nil
}
