package insight

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/KaramelBytes/claridata/internal/ai"
	"github.com/KaramelBytes/claridata/internal/analysis"
)

// Generator produces raw insight text for a profile. Implementations are the
// only blocking, network-bound step of a dashboard run.
type Generator interface {
	Generate(ctx context.Context, p *analysis.DatasetProfile) ([]byte, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, p *analysis.DatasetProfile) ([]byte, error)

func (f GeneratorFunc) Generate(ctx context.Context, p *analysis.DatasetProfile) ([]byte, error) {
	return f(ctx, p)
}

// ErrEmptyResponse is returned when the runtime answers with no content.
var ErrEmptyResponse = errors.New("generator returned no content")

// RuntimeGenerator asks an ai.Runtime for the insight document. Each call is
// bounded by Timeout and paced by Limiter.
type RuntimeGenerator struct {
	Runtime     ai.Runtime
	Model       string
	MaxTokens   int
	Temperature float64
	// JSONMode requests a JSON-object response format from the provider.
	JSONMode bool
	Timeout  time.Duration
	Limiter  *rate.Limiter
	Prompt   PromptOptions
	Logger   *slog.Logger
}

// NewLimiter returns a limiter allowing perMinute calls per minute, or nil
// (unlimited) when perMinute <= 0.
func NewLimiter(perMinute int) *rate.Limiter {
	if perMinute <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1)
}

func (g *RuntimeGenerator) Generate(ctx context.Context, p *analysis.DatasetProfile) ([]byte, error) {
	if g.Runtime == nil {
		return nil, errors.New("no runtime configured")
	}
	msgs, err := BuildMessages(p, g.Prompt)
	if err != nil {
		return nil, err
	}
	if g.Limiter != nil {
		if err := g.Limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}
	}
	if g.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.Timeout)
		defer cancel()
	}
	req := ai.GenerateRequest{
		Model:       g.Model,
		Messages:    msgs,
		MaxTokens:   g.MaxTokens,
		Temperature: g.Temperature,
	}
	if g.JSONMode {
		req.ResponseFormat = &ai.ResponseFormat{Type: "json_object"}
	}
	start := time.Now()
	resp, err := g.Runtime.Generate(ctx, req)
	if err != nil {
		return nil, err
	}
	g.logger().Debug("generation finished",
		"model", g.Model,
		"request_id", resp.RequestID,
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens,
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
	text := resp.Text()
	if text == "" {
		return nil, ErrEmptyResponse
	}
	return []byte(text), nil
}

func (g *RuntimeGenerator) logger() *slog.Logger {
	if g.Logger != nil {
		return g.Logger
	}
	return slog.Default()
}
