// Package insight recovers structured insight documents from generated text
// and defines the seam to the text generator that produces them.
package insight

import (
	"encoding/json"
	"errors"
)

// Document is the structured result recovered from generator output.
// Pointer and nil-able fields distinguish absent from empty; nothing is
// defaulted during extraction. An empty but present list stays non-nil.
type Document struct {
	Summary        *Summary   `json:"dataset_summary,omitempty"`
	KPIs           []KPI      `json:"kpis"`
	Visualizations []Proposal `json:"visualizations"`
}

type Summary struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
}

// KPI is free-form display data passed through verbatim. Every field keeps
// its raw JSON, whatever type the generator chose.
type KPI struct {
	Title   json.RawMessage `json:"title,omitempty"`
	Value   json.RawMessage `json:"value,omitempty"`
	Unit    json.RawMessage `json:"unit,omitempty"`
	Insight json.RawMessage `json:"insight,omitempty"`
	Trend   json.RawMessage `json:"trend,omitempty"`
	Change  json.RawMessage `json:"change,omitempty"`
}

// Proposal is an untrusted chart suggestion referencing columns by name.
// A field of the wrong JSON type decodes as absent.
type Proposal struct {
	Type    *string `json:"type,omitempty"`
	X       *string `json:"x,omitempty"`
	Y       *string `json:"y,omitempty"`
	Title   *string `json:"title,omitempty"`
	XLabel  *string `json:"x_label,omitempty"`
	YLabel  *string `json:"y_label,omitempty"`
	Insight *string `json:"insight,omitempty"`
}

// UnmarshalJSON decodes the list elements one at a time so a single
// malformed KPI or proposal never fails the document.
func (d *Document) UnmarshalJSON(b []byte) error {
	var w struct {
		Summary        json.RawMessage   `json:"dataset_summary"`
		KPIs           []json.RawMessage `json:"kpis"`
		Visualizations []json.RawMessage `json:"visualizations"`
	}
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	out := Document{}
	if len(w.Summary) > 0 && string(w.Summary) != "null" {
		if w.Summary[0] != '{' {
			return errors.New("dataset_summary is not an object")
		}
		var s Summary
		if err := json.Unmarshal(w.Summary, &s); err != nil {
			return err
		}
		out.Summary = &s
	}
	if w.KPIs != nil {
		out.KPIs = make([]KPI, len(w.KPIs))
		for i, raw := range w.KPIs {
			// Non-object elements keep their slot as an empty KPI.
			_ = json.Unmarshal(raw, &out.KPIs[i])
		}
	}
	if w.Visualizations != nil {
		out.Visualizations = make([]Proposal, len(w.Visualizations))
		for i, raw := range w.Visualizations {
			_ = json.Unmarshal(raw, &out.Visualizations[i])
		}
	}
	*d = out
	return nil
}

func (s *Summary) UnmarshalJSON(b []byte) error {
	var w struct {
		Title       json.RawMessage `json:"title"`
		Description json.RawMessage `json:"description"`
	}
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	*s = Summary{Title: stringField(w.Title), Description: stringField(w.Description)}
	return nil
}

func (p *Proposal) UnmarshalJSON(b []byte) error {
	var w struct {
		Type    json.RawMessage `json:"type"`
		X       json.RawMessage `json:"x"`
		Y       json.RawMessage `json:"y"`
		Title   json.RawMessage `json:"title"`
		XLabel  json.RawMessage `json:"x_label"`
		YLabel  json.RawMessage `json:"y_label"`
		Insight json.RawMessage `json:"insight"`
	}
	*p = Proposal{}
	if err := json.Unmarshal(b, &w); err != nil {
		// Not an object: every field absent, the resolver drops it.
		return nil
	}
	*p = Proposal{
		Type:    stringField(w.Type),
		X:       stringField(w.X),
		Y:       stringField(w.Y),
		Title:   stringField(w.Title),
		XLabel:  stringField(w.XLabel),
		YLabel:  stringField(w.YLabel),
		Insight: stringField(w.Insight),
	}
	return nil
}

// stringField returns the JSON string in raw, or nil when raw is missing,
// null or not a string.
func stringField(raw json.RawMessage) *string {
	if len(raw) == 0 {
		return nil
	}
	var s *string
	if json.Unmarshal(raw, &s) != nil {
		return nil
	}
	return s
}

// Str returns a pointer to s, for building documents in code.
func Str(s string) *string { return &s }

// Deref returns *p, or "" when p is nil.
func Deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

// Text returns the display text of a raw KPI field: strings unquoted,
// anything else as its JSON literal, "" when absent or null.
func Text(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	return string(raw)
}
