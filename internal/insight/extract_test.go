package insight

import (
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"testing"
)

const cleanDoc = `{"dataset_summary":{"title":"Sales","description":"Monthly sales by region"},` +
	`"kpis":[{"title":"Revenue","value":"1.2M","unit":"USD","trend":"up","change":4.5}],` +
	`"visualizations":[{"type":"bar","x":"region","y":"count","title":"Orders per region"},` +
	`{"type":"scatter","x":"units","y":"price"}]}`

func mustExtract(t *testing.T, raw string) *Document {
	t.Helper()
	doc, err := Extract([]byte(raw))
	if err != nil {
		t.Fatalf("Extract(%q): %v", raw, err)
	}
	return doc
}

func TestExtractCleanDocument(t *testing.T) {
	doc := mustExtract(t, cleanDoc)
	if doc.Summary == nil || Deref(doc.Summary.Title) != "Sales" {
		t.Fatalf("summary = %+v", doc.Summary)
	}
	if len(doc.KPIs) != 1 || string(doc.KPIs[0].Value) != `"1.2M"` || string(doc.KPIs[0].Change) != "4.5" {
		t.Fatalf("kpis = %+v", doc.KPIs)
	}
	if doc.KPIs[0].Insight != nil {
		t.Fatalf("absent KPI insight should stay nil")
	}
	if len(doc.Visualizations) != 2 {
		t.Fatalf("visualizations = %d", len(doc.Visualizations))
	}
	v := doc.Visualizations[1]
	if Deref(v.Type) != "scatter" || v.Title != nil || v.XLabel != nil {
		t.Fatalf("second proposal = %+v", v)
	}
}

func TestExtractIdempotentOnSerializedDocument(t *testing.T) {
	doc := &Document{
		Summary: &Summary{Title: Str("Churn"), Description: Str("Customer churn")},
		KPIs: []KPI{
			{Title: json.RawMessage(`"Churn rate"`), Value: json.RawMessage(`12.5`), Unit: json.RawMessage(`"%"`), Trend: json.RawMessage(`"down"`)},
		},
		Visualizations: []Proposal{
			{Type: Str("pie"), X: Str("plan"), Title: Str("Plans"), Insight: Str("Most users are on the basic plan")},
			{Type: Str("line"), X: Str("month"), Y: Str("churned"), XLabel: Str("Month"), YLabel: Str("Churned")},
		},
	}
	raw, err := Marshal(doc)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	got := mustExtract(t, string(raw))
	if !reflect.DeepEqual(got, doc) {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", got, doc)
	}
}

func TestExtractStripsFences(t *testing.T) {
	want := mustExtract(t, cleanDoc)
	inputs := []string{
		"```json\n" + cleanDoc + "\n```",
		"```JSON\n" + cleanDoc + "\n```",
		"```\n" + cleanDoc + "\n```",
		"```json " + cleanDoc + "```",
		"  \n```json\n" + cleanDoc + "\n```\n\n",
		"```json\n" + cleanDoc,
	}
	for _, in := range inputs {
		got := mustExtract(t, in)
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("fenced input %q extracted %+v", in, got)
		}
	}
}

func TestExtractSalvagesEmbeddedObject(t *testing.T) {
	doc := mustExtract(t, "Here is the result:\n{\"dataset_summary\":{\"title\":\"X\"}}\nThanks!")
	if doc.Summary == nil || Deref(doc.Summary.Title) != "X" {
		t.Fatalf("summary = %+v", doc.Summary)
	}
	if doc.Summary.Description != nil || doc.KPIs != nil || doc.Visualizations != nil {
		t.Fatalf("absent fields were defaulted: %+v", doc)
	}
}

func TestExtractSalvageIgnoresBracesInStrings(t *testing.T) {
	raw := `Sure! {"dataset_summary":{"title":"Use {braces} and \"quotes\" }"}} -- done {not json}`
	doc := mustExtract(t, raw)
	if got := Deref(doc.Summary.Title); got != `Use {braces} and "quotes" }` {
		t.Fatalf("title = %q", got)
	}
}

func TestExtractFailures(t *testing.T) {
	cases := []string{
		"",
		"I could not produce a dashboard.",
		`{"dataset_summary": {"title": "cut off`,
		"null",
		`["not", "an", "object"]`,
		`{"visualizations": "bar"}`,
	}
	for _, raw := range cases {
		_, err := Extract([]byte(raw))
		if !errors.Is(err, ErrExtraction) {
			t.Fatalf("Extract(%q) err = %v, want ErrExtraction", raw, err)
		}
		var ee *ExtractionError
		if !errors.As(err, &ee) || ee.Raw != raw {
			t.Fatalf("Extract(%q) should carry the raw text, got %#v", raw, ee)
		}
	}
}

func TestExtractEmptyObjectHasNoDefaults(t *testing.T) {
	doc := mustExtract(t, "{}")
	if doc.Summary != nil || doc.KPIs != nil || doc.Visualizations != nil {
		t.Fatalf("doc = %+v", doc)
	}
}

func TestStripFenceLeavesPlainText(t *testing.T) {
	if got := stripFence("plain {}"); got != "plain {}" {
		t.Fatalf("stripFence = %q", got)
	}
	if got := stripFence("```python\nprint(1)\n```"); strings.Contains(got, "python") {
		t.Fatalf("language tag kept: %q", got)
	}
}

func TestExtractKeepsDocumentWithMistypedElements(t *testing.T) {
	raw := `{"kpis":[{"title":2024,"value":15,"unit":null},"oops"],` +
		`"visualizations":[{"type":"bar","x":"region","y":"count"},{"type":"bar","x":"region","y":5},42]}`
	doc := mustExtract(t, raw)
	if len(doc.Visualizations) != 3 {
		t.Fatalf("visualizations = %d, want 3", len(doc.Visualizations))
	}
	if got := doc.Visualizations[0]; Deref(got.Type) != "bar" || Deref(got.Y) != "count" {
		t.Fatalf("good proposal = %+v", got)
	}
	bad := doc.Visualizations[1]
	if Deref(bad.Type) != "bar" || Deref(bad.X) != "region" || bad.Y != nil {
		t.Fatalf("mistyped y should decode as absent, got %+v", bad)
	}
	if !reflect.DeepEqual(doc.Visualizations[2], Proposal{}) {
		t.Fatalf("non-object proposal = %+v", doc.Visualizations[2])
	}
	if len(doc.KPIs) != 2 || Text(doc.KPIs[0].Title) != "2024" || string(doc.KPIs[0].Value) != "15" {
		t.Fatalf("kpis = %+v", doc.KPIs)
	}
	if Text(doc.KPIs[0].Unit) != "" || !reflect.DeepEqual(doc.KPIs[1], KPI{}) {
		t.Fatalf("kpis = %+v", doc.KPIs)
	}
}

func TestExtractKeepsPresentEmptyLists(t *testing.T) {
	doc := mustExtract(t, `{"kpis":[],"visualizations":[]}`)
	if doc.KPIs == nil || doc.Visualizations == nil {
		t.Fatalf("present empty lists became absent: %+v", doc)
	}
	raw, err := Marshal(doc)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	again := mustExtract(t, string(raw))
	if !reflect.DeepEqual(again, doc) {
		t.Fatalf("round trip mismatch: %s", raw)
	}
}

func TestText(t *testing.T) {
	cases := map[string]string{``: "", `null`: "", `"1.2M"`: "1.2M", `43.5`: "43.5", `true`: "true"}
	for in, want := range cases {
		if got := Text(json.RawMessage(in)); got != want {
			t.Fatalf("Text(%q) = %q, want %q", in, got, want)
		}
	}
}
