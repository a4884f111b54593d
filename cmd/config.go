package cmd

import (
	"fmt"
	"strconv"
	"strings"

	cfgpkg "github.com/KaramelBytes/claridata/internal/config"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or set claridata configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		if cfg == nil {
			fmt.Fprintln(out, "No config loaded")
			return nil
		}
		fmt.Fprintf(out, "api_key: %s\n", cfgpkg.Mask(cfg.APIKey))
		fmt.Fprintf(out, "provider: %s\n", cfg.Provider)
		fmt.Fprintf(out, "model: %s\n", cfg.Model)
		fmt.Fprintf(out, "max_tokens: %d\n", cfg.MaxTokens)
		fmt.Fprintf(out, "temperature: %.3f\n", cfg.Temperature)
		fmt.Fprintf(out, "json_mode: %t\n", cfg.JSONMode)
		fmt.Fprintf(out, "attempts: %d\n", cfg.Attempts)
		fmt.Fprintf(out, "generate_timeout_sec: %d\n", cfg.GenerateTimeoutSec)
		if cfg.RatePerMinute > 0 {
			fmt.Fprintf(out, "rate_per_minute: %d\n", cfg.RatePerMinute)
		}
		fmt.Fprintf(out, "max_visualizations: %d\n", cfg.MaxVisualizations)
		fmt.Fprintf(out, "max_kpis: %d\n", cfg.MaxKPIs)
		fmt.Fprintf(out, "http_timeout_sec: %d\n", cfg.HTTPTimeoutSec)
		fmt.Fprintf(out, "retry_max_attempts: %d\n", cfg.RetryMaxAttempts)
		fmt.Fprintf(out, "ollama_host: %s\n", cfg.OllamaHost)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a config value and save to disk",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, val := args[0], args[1]
		if cfg == nil {
			c, err := cfgpkg.Load(cfgFile)
			if err != nil {
				return err
			}
			cfg = c
		}
		if err := applyConfigValue(cfg, key, val); err != nil {
			return err
		}
		if err := cfgpkg.Save(cfg, cfgFile); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Saved config")
		return nil
	},
}

func applyConfigValue(c *cfgpkg.Global, key, val string) error {
	positive := func() (int, error) {
		i, err := strconv.Atoi(val)
		if err != nil || i <= 0 {
			return 0, fmt.Errorf("invalid positive int for %s: %s", key, val)
		}
		return i, nil
	}
	switch key {
	case "api_key":
		c.APIKey = strings.TrimSpace(val)
	case "provider":
		p, err := normalizeProvider(val)
		if err != nil {
			return err
		}
		c.Provider = p
	case "model":
		c.Model = val
	case "ollama_host":
		c.OllamaHost = val
	case "max_tokens", "attempts", "generate_timeout_sec", "max_visualizations", "max_kpis", "http_timeout_sec", "retry_max_attempts":
		i, err := positive()
		if err != nil {
			return err
		}
		switch key {
		case "max_tokens":
			c.MaxTokens = i
		case "attempts":
			c.Attempts = i
		case "generate_timeout_sec":
			c.GenerateTimeoutSec = i
		case "max_visualizations":
			c.MaxVisualizations = i
		case "max_kpis":
			c.MaxKPIs = i
		case "http_timeout_sec":
			c.HTTPTimeoutSec = i
		case "retry_max_attempts":
			c.RetryMaxAttempts = i
		}
	case "rate_per_minute":
		i, err := strconv.Atoi(val)
		if err != nil || i < 0 {
			return fmt.Errorf("invalid int for rate_per_minute: %s", val)
		}
		c.RatePerMinute = i
	case "temperature":
		f, err := strconv.ParseFloat(val, 64)
		if err != nil || f < 0 {
			return fmt.Errorf("invalid float for temperature: %s", val)
		}
		c.Temperature = f
	case "json_mode":
		b, err := strconv.ParseBool(val)
		if err != nil {
			return fmt.Errorf("invalid bool for json_mode: %s", val)
		}
		c.JSONMode = b
	default:
		return fmt.Errorf("unknown key: %s", key)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
