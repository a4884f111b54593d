package insight

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/KaramelBytes/claridata/internal/ai"
	"github.com/KaramelBytes/claridata/internal/analysis"
)

const systemPrompt = `You are a data analyst. You receive a statistical profile of a tabular dataset as JSON and reply with a single JSON object describing a dashboard for it.`

const instructions = `Return ONLY a JSON object with exactly this shape:
{
  "dataset_summary": {"title": string, "description": string},
  "kpis": [{"title": string, "value": number or string, "unit": string, "insight": string, "trend": "up" | "down" | "flat", "change": number or string}],
  "visualizations": [{"type": "bar" | "line" | "scatter" | "pie" | "doughnut", "x": column name, "y": column name or "count", "title": string, "x_label": string, "y_label": string, "insight": string}]
}
Rules:
- Do not wrap the object in markdown code fences and do not add commentary before or after it.
- Do not add fields beyond the ones listed.
- Use only column names that appear in the profile for "x" and "y".
- scatter and line charts need a numeric "y" column.
- Give KPI values as human-readable rounded magnitudes (for example "1.2M" or 43.5).
- Propose at most %d visualizations and %d KPIs.`

// PromptOptions bounds what the generator is asked to produce.
type PromptOptions struct {
	MaxVisualizations int
	MaxKPIs           int
}

func (o PromptOptions) withDefaults() PromptOptions {
	if o.MaxVisualizations <= 0 {
		o.MaxVisualizations = 6
	}
	if o.MaxKPIs <= 0 {
		o.MaxKPIs = 4
	}
	return o
}

// BuildMessages renders the chat messages sent to the generator.
func BuildMessages(p *analysis.DatasetProfile, opt PromptOptions) ([]ai.Message, error) {
	opt = opt.withDefaults()
	profileJSON, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal profile: %w", err)
	}
	var b strings.Builder
	b.WriteString("[DATASET PROFILE]\n")
	b.Write(profileJSON)
	b.WriteString("\n\n[INSTRUCTIONS]\n")
	fmt.Fprintf(&b, instructions, opt.MaxVisualizations, opt.MaxKPIs)
	return []ai.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: b.String()},
	}, nil
}
