package cmd

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/KaramelBytes/claridata/internal/dataset"
	"github.com/KaramelBytes/claridata/internal/insight"
	"github.com/KaramelBytes/claridata/internal/pipeline"
	"github.com/KaramelBytes/claridata/internal/report"
	"github.com/KaramelBytes/claridata/internal/utils"
	"github.com/spf13/cobra"
)

var (
	dashLoad          loadFlags
	dashProvider      string
	dashAPIKey        string
	dashModel         string
	dashOllamaHost    string
	dashMaxTokens     int
	dashTemp          float64
	dashAttempts      int
	dashTimeoutSec    int
	dashRatePerMinute int
	dashJSONMode      bool
	dashFormat        string
	dashOutput        string
	dashDryRun        bool
)

var dashboardCmd = &cobra.Command{
	Use:   "dashboard <file>",
	Short: "Profile a dataset, ask the model for insights and build the charts it proposes",
	Example: `  claridata dashboard sales.csv
  claridata dashboard sales.csv --provider ollama --model llama3.1 --json-mode
  claridata dashboard sales.xlsx --sheet-index 2 --attempts 3 --output dashboard.json
  claridata dashboard sales.csv --dry-run`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opt, err := dashLoad.options()
		if err != nil {
			return err
		}
		format := strings.ToLower(strings.TrimSpace(dashFormat))
		if format != "terminal" && format != "json" {
			return fmt.Errorf("unsupported --format: %s (use terminal|json)", dashFormat)
		}
		settings := resolveDashboardSettings(cmd)

		if dashDryRun {
			return printPrompt(cmd, args[0], opt, settings.prompt)
		}

		rt, providerName, err := buildRuntime(cfg, runtimeOptions{
			ProviderFlag: dashProvider,
			APIKeyFlag:   dashAPIKey,
			OllamaHost:   dashOllamaHost,
		})
		if err != nil {
			return err
		}
		gen := &insight.RuntimeGenerator{
			Runtime:     rt,
			Model:       settings.model,
			MaxTokens:   settings.maxTokens,
			Temperature: settings.temperature,
			JSONMode:    settings.jsonMode,
			Timeout:     settings.timeout,
			Limiter:     insight.NewLimiter(settings.ratePerMinute),
			Prompt:      settings.prompt,
			Logger:      logger,
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "⚙ Generating insights with %s model=%s ...\n", providerName, settings.model)
		d, err := pipeline.Run(cmd.Context(), pipeline.Request{
			Path:      args[0],
			Load:      opt,
			Generator: gen,
			Attempts:  settings.attempts,
			Logger:    logger,
		})
		if err != nil {
			var xErr *insight.ExtractionError
			if errors.As(err, &xErr) {
				fmt.Fprintf(cmd.ErrOrStderr(), "⚠ Raw model reply:\n%s\n", xErr.Raw)
			}
			return explainGenerationError(err, providerName, settings.model)
		}
		return writeDashboard(cmd, d, format)
	},
}

type dashboardSettings struct {
	model         string
	maxTokens     int
	temperature   float64
	jsonMode      bool
	attempts      int
	timeout       time.Duration
	ratePerMinute int
	prompt        insight.PromptOptions
}

// resolveDashboardSettings layers flags changed in this run over config.
func resolveDashboardSettings(cmd *cobra.Command) dashboardSettings {
	s := dashboardSettings{
		model:       "openai/gpt-4o-mini",
		maxTokens:   2048,
		temperature: 0.2,
		attempts:    2,
		timeout:     120 * time.Second,
	}
	if cfg != nil {
		if cfg.Model != "" {
			s.model = cfg.Model
		}
		if cfg.MaxTokens > 0 {
			s.maxTokens = cfg.MaxTokens
		}
		if cfg.Temperature >= 0 {
			s.temperature = cfg.Temperature
		}
		if cfg.Attempts > 0 {
			s.attempts = cfg.Attempts
		}
		if cfg.GenerateTimeoutSec > 0 {
			s.timeout = time.Duration(cfg.GenerateTimeoutSec) * time.Second
		}
		s.jsonMode = cfg.JSONMode
		s.ratePerMinute = cfg.RatePerMinute
		s.prompt = insight.PromptOptions{MaxVisualizations: cfg.MaxVisualizations, MaxKPIs: cfg.MaxKPIs}
	}
	f := cmd.Flags()
	if f.Changed("model") && dashModel != "" {
		s.model = dashModel
	}
	if f.Changed("max-tokens") && dashMaxTokens > 0 {
		s.maxTokens = dashMaxTokens
	}
	if f.Changed("temp") {
		s.temperature = dashTemp
	}
	if f.Changed("attempts") && dashAttempts > 0 {
		s.attempts = dashAttempts
	}
	if f.Changed("timeout-sec") && dashTimeoutSec > 0 {
		s.timeout = time.Duration(dashTimeoutSec) * time.Second
	}
	if f.Changed("rate-per-minute") {
		s.ratePerMinute = dashRatePerMinute
	}
	if f.Changed("json-mode") {
		s.jsonMode = dashJSONMode
	}
	return s
}

// printPrompt shows exactly what would be sent, without calling any runtime.
func printPrompt(cmd *cobra.Command, path string, opt dataset.LoadOptions, po insight.PromptOptions) error {
	a, err := pipeline.Analyze(path, opt)
	if err != nil {
		return err
	}
	defer a.Release()
	msgs, err := insight.BuildMessages(a.Profile, po)
	if err != nil {
		return err
	}
	tokens := 0
	out := cmd.OutOrStdout()
	for _, m := range msgs {
		tokens += utils.CountTokens(m.Content)
		fmt.Fprintf(out, "--- %s ---\n%s\n", m.Role, m.Content)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "--dry-run: no API call made. Prompt tokens≈%d\n", tokens)
	return nil
}

func writeDashboard(cmd *cobra.Command, d *pipeline.Dashboard, format string) error {
	if n := len(d.Dropped); n > 0 {
		fmt.Fprintf(cmd.ErrOrStderr(), "⚠ Warning: %d of %d proposed visualizations could not be built from this dataset\n", n, n+len(d.Charts))
	}
	if dashOutput != "" {
		b, err := utils.PrettyJSON(d)
		if err != nil {
			return err
		}
		if err := utils.SafeWriteFile(dashOutput, b); err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "✓ Wrote dashboard %s to %s\n", d.ID, dashOutput)
		return nil
	}
	if format == "json" {
		b, err := utils.PrettyJSON(d)
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(b)
		return err
	}
	return report.Terminal(cmd.OutOrStdout(), d)
}

func init() {
	rootCmd.AddCommand(dashboardCmd)
	addLoadFlags(dashboardCmd, &dashLoad)
	dashboardCmd.Flags().StringVar(&dashProvider, "provider", "", "text-generation provider: openrouter|ollama (default from config)")
	dashboardCmd.Flags().StringVar(&dashAPIKey, "api-key", "", "API key for the provider (falls back to config, CLARIDATA_API_KEY, OPENROUTER_API_KEY)")
	dashboardCmd.Flags().StringVar(&dashModel, "model", "", "model name (default from config)")
	dashboardCmd.Flags().StringVar(&dashOllamaHost, "ollama-host", "", "override Ollama host (e.g., http://127.0.0.1:11434)")
	dashboardCmd.Flags().IntVar(&dashMaxTokens, "max-tokens", 0, "max tokens for the reply")
	dashboardCmd.Flags().Float64Var(&dashTemp, "temp", 0, "sampling temperature")
	dashboardCmd.Flags().IntVar(&dashAttempts, "attempts", 0, "generate+extract attempts before giving up (default from config)")
	dashboardCmd.Flags().IntVar(&dashTimeoutSec, "timeout-sec", 0, "per-attempt generation timeout in seconds")
	dashboardCmd.Flags().IntVar(&dashRatePerMinute, "rate-per-minute", 0, "cap generation calls per minute (0 = unlimited)")
	dashboardCmd.Flags().BoolVar(&dashJSONMode, "json-mode", false, "ask the provider for a JSON-object response")
	dashboardCmd.Flags().StringVar(&dashFormat, "format", "terminal", "stdout format: terminal|json")
	dashboardCmd.Flags().StringVarP(&dashOutput, "output", "o", "", "write the dashboard JSON to this path")
	dashboardCmd.Flags().BoolVar(&dashDryRun, "dry-run", false, "print the prompt and token estimate without calling the model")
}
