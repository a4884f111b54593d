package dataset

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

type cell struct {
	text    string
	present bool
}

// recordSet collects records whose keys become columns in first-seen order.
// A key missing from a record is an absent cell in that row.
type recordSet struct {
	keys  []string
	index map[string]int
	rows  []map[string]cell
}

func newRecordSet() *recordSet { return &recordSet{index: map[string]int{}} }

func (rs *recordSet) add(keys []string, values map[string]cell) {
	for _, k := range keys {
		if _, ok := rs.index[k]; !ok {
			rs.index[k] = len(rs.keys)
			rs.keys = append(rs.keys, k)
		}
	}
	rs.rows = append(rs.rows, values)
}

func (rs *recordSet) columns() []*rawColumn {
	cols := columnsFromHeader(rs.keys)
	for _, row := range rs.rows {
		for i, k := range rs.keys {
			c := row[k]
			cols[i].append(c.text, c.present)
		}
	}
	return cols
}

// fromColumnar builds columns from a name -> values mapping.
func fromColumnar(keys []string, values map[string][]cell) ([]*rawColumn, error) {
	cols := columnsFromHeader(keys)
	n := -1
	for i, k := range keys {
		vs := values[k]
		if n >= 0 && len(vs) != n {
			return nil, fmt.Errorf("column %q has %d values, want %d", k, len(vs), n)
		}
		n = len(vs)
		for _, v := range vs {
			cols[i].append(v.text, v.present)
		}
	}
	return cols, nil
}

// readJSON accepts an array of objects, or an object whose members are
// equal-length arrays (column-oriented).
func readJSON(b []byte) ([]*rawColumn, error) {
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return nil, errors.New("empty document")
	}
	switch b[0] {
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(b, &items); err != nil {
			return nil, err
		}
		rs := newRecordSet()
		for i, it := range items {
			keys, vals, err := jsonObject(it)
			if err != nil {
				return nil, fmt.Errorf("record %d: %w", i, err)
			}
			rs.add(keys, jsonCells(vals))
		}
		return rs.columns(), nil
	case '{':
		keys, vals, err := jsonObject(b)
		if err != nil {
			return nil, err
		}
		columnar := make(map[string][]cell, len(keys))
		for _, k := range keys {
			var arr []json.RawMessage
			if err := json.Unmarshal(vals[k], &arr); err != nil {
				return nil, fmt.Errorf("member %q is not an array: %w", k, err)
			}
			cs := make([]cell, len(arr))
			for i, v := range arr {
				cs[i] = jsonCell(v)
			}
			columnar[k] = cs
		}
		return fromColumnar(keys, columnar)
	default:
		return nil, errors.New("expected an array of records or an object of columns")
	}
}

// readJSONLines reads one object per non-blank line.
func readJSONLines(b []byte) ([]*rawColumn, error) {
	sc := bufio.NewScanner(bytes.NewReader(b))
	sc.Buffer(make([]byte, 0, 64*1024), 16<<20)
	rs := newRecordSet()
	line := 0
	for sc.Scan() {
		line++
		text := bytes.TrimSpace(sc.Bytes())
		if len(text) == 0 {
			continue
		}
		keys, vals, err := jsonObject(text)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		rs.add(keys, jsonCells(vals))
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return rs.columns(), nil
}

// jsonObject decodes one object, preserving member order.
func jsonObject(b []byte) ([]string, map[string]json.RawMessage, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	tok, err := dec.Token()
	if err != nil {
		return nil, nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, nil, errors.New("expected an object")
	}
	var keys []string
	vals := map[string]json.RawMessage{}
	for dec.More() {
		kt, err := dec.Token()
		if err != nil {
			return nil, nil, err
		}
		key, ok := kt.(string)
		if !ok {
			return nil, nil, errors.New("expected object key")
		}
		var v json.RawMessage
		if err := dec.Decode(&v); err != nil {
			return nil, nil, err
		}
		if _, dup := vals[key]; !dup {
			keys = append(keys, key)
		}
		vals[key] = v
	}
	if _, err := dec.Token(); err != nil {
		return nil, nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, nil, errors.New("trailing data after object")
	}
	return keys, vals, nil
}

func jsonCells(vals map[string]json.RawMessage) map[string]cell {
	out := make(map[string]cell, len(vals))
	for k, v := range vals {
		out[k] = jsonCell(v)
	}
	return out
}

// jsonCell maps a JSON value to a raw cell; only null is absent.
func jsonCell(v json.RawMessage) cell {
	v = bytes.TrimSpace(v)
	if len(v) == 0 || string(v) == "null" {
		return cell{}
	}
	if v[0] == '"' {
		var s string
		if err := json.Unmarshal(v, &s); err == nil {
			return cell{text: s, present: true}
		}
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, v); err == nil {
		return cell{text: buf.String(), present: true}
	}
	return cell{text: string(v), present: true}
}

// readYAML accepts a sequence of mappings, or a mapping of sequences.
func readYAML(b []byte) ([]*rawColumn, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return nil, err
	}
	if len(doc.Content) == 0 {
		return nil, errors.New("empty document")
	}
	root := doc.Content[0]
	switch root.Kind {
	case yaml.SequenceNode:
		rs := newRecordSet()
		for i, item := range root.Content {
			if item.Kind != yaml.MappingNode {
				return nil, fmt.Errorf("record %d is not a mapping", i)
			}
			keys, vals := yamlMapping(item)
			cells := make(map[string]cell, len(vals))
			for k, v := range vals {
				cells[k] = yamlCell(v)
			}
			rs.add(keys, cells)
		}
		return rs.columns(), nil
	case yaml.MappingNode:
		keys, vals := yamlMapping(root)
		columnar := make(map[string][]cell, len(keys))
		for _, k := range keys {
			seq := vals[k]
			if seq.Kind != yaml.SequenceNode {
				return nil, fmt.Errorf("member %q is not a sequence", k)
			}
			cs := make([]cell, len(seq.Content))
			for i, v := range seq.Content {
				cs[i] = yamlCell(v)
			}
			columnar[k] = cs
		}
		return fromColumnar(keys, columnar)
	default:
		return nil, errors.New("expected a sequence of records or a mapping of columns")
	}
}

func yamlMapping(n *yaml.Node) ([]string, map[string]*yaml.Node) {
	var keys []string
	vals := make(map[string]*yaml.Node, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		k := n.Content[i].Value
		if _, dup := vals[k]; !dup {
			keys = append(keys, k)
		}
		vals[k] = n.Content[i+1]
	}
	return keys, vals
}

func yamlCell(n *yaml.Node) cell {
	if n.Kind == yaml.AliasNode && n.Alias != nil {
		n = n.Alias
	}
	if n.Kind == yaml.ScalarNode {
		if n.ShortTag() == "!!null" {
			return cell{}
		}
		return cell{text: n.Value, present: true}
	}
	out, err := yaml.Marshal(n)
	if err != nil {
		return cell{}
	}
	return cell{text: strings.TrimSpace(string(out)), present: true}
}
