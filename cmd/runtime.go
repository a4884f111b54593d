package cmd

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/KaramelBytes/claridata/internal/ai"
	cfgpkg "github.com/KaramelBytes/claridata/internal/config"
	"github.com/KaramelBytes/claridata/internal/dataset"
	"github.com/KaramelBytes/claridata/internal/insight"
)

type runtimeOptions struct {
	ProviderFlag string
	APIKeyFlag   string
	OllamaHost   string
}

// normalizeProvider maps user spellings to a registered provider name.
func normalizeProvider(name string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "openrouter":
		return ai.ProviderOpenRouter, nil
	case "ollama", "local":
		return ai.ProviderOllama, nil
	}
	return "", fmt.Errorf("unknown provider: %s (use %s)", name, strings.Join(ai.Providers(), "|"))
}

// buildRuntime resolves provider, credential and transport settings into a
// ready ai.Runtime. The credential is resolved here once and never logged.
func buildRuntime(cfg *cfgpkg.Global, opts runtimeOptions) (ai.Runtime, string, error) {
	httpTimeout := 60 * time.Second
	retryMax := 3
	baseDelay := 500 * time.Millisecond
	maxDelay := 4 * time.Second
	provider := opts.ProviderFlag
	configKey := ""
	host := strings.TrimSpace(opts.OllamaHost)
	if cfg != nil {
		if cfg.HTTPTimeoutSec > 0 {
			httpTimeout = time.Duration(cfg.HTTPTimeoutSec) * time.Second
		}
		if cfg.RetryMaxAttempts > 0 {
			retryMax = cfg.RetryMaxAttempts
		}
		if cfg.RetryBaseDelayMs > 0 {
			baseDelay = time.Duration(cfg.RetryBaseDelayMs) * time.Millisecond
		}
		if cfg.RetryMaxDelayMs > 0 {
			maxDelay = time.Duration(cfg.RetryMaxDelayMs) * time.Millisecond
		}
		if provider == "" {
			provider = cfg.Provider
		}
		configKey = cfg.APIKey
		if host == "" {
			host = cfg.OllamaHost
		}
	}
	providerName, err := normalizeProvider(provider)
	if err != nil {
		return nil, "", err
	}

	rc := ai.RuntimeConfig{
		HTTPTimeout: httpTimeout,
		RetryMax:    retryMax,
		BaseDelay:   baseDelay,
		MaxDelay:    maxDelay,
		Host:        host,
	}
	if ai.NeedsCredential(providerName) {
		explicit := opts.APIKeyFlag
		if strings.TrimSpace(explicit) == "" {
			explicit = configKey
		}
		cred, err := cfgpkg.ResolveCredential(explicit)
		if err != nil {
			return nil, "", err
		}
		rc.APIKey = cred.Reveal()
	}
	rt, ok := ai.GetRuntime(providerName, rc)
	if !ok {
		return nil, "", fmt.Errorf("provider %s is not available", providerName)
	}
	return rt, providerName, nil
}

// explainGenerationError adds a user-facing hint to typed runtime errors.
func explainGenerationError(err error, providerName, model string) error {
	var (
		authErr *ai.AuthError
		rlErr   *ai.RateLimitError
		nfErr   *ai.ModelNotFoundError
		brErr   *ai.BadRequestError
		qErr    *ai.QuotaExceededError
		sErr    *ai.ServerError
		unreach *ai.UnreachableError
		xErr    *insight.ExtractionError
	)
	switch {
	case errors.As(err, &xErr):
		return fmt.Errorf("the model reply did not contain a usable insight document; rerun with --attempts or inspect it with 'claridata extract': %w", err)
	case errors.As(err, &unreach):
		if providerName == ai.ProviderOllama {
			return fmt.Errorf("Ollama not reachable at %s. Ensure Ollama is running (see https://ollama.com) and host is correct. You can set CLARIDATA_OLLAMA_HOST or config 'ollama_host'. Detail: %w", unreach.Host, err)
		}
		return fmt.Errorf("endpoint unreachable. Check your network and provider settings: %w", err)
	case errors.As(err, &authErr):
		return fmt.Errorf("authentication failed: check --api-key, CLARIDATA_API_KEY, OPENROUTER_API_KEY or api_key in ~/.claridata/config.yaml: %w", err)
	case errors.As(err, &rlErr):
		if rlErr.RetryAfter > 0 {
			return fmt.Errorf("rate limited, try again in ~%ds: %w", int(rlErr.RetryAfter.Seconds()), err)
		}
		return fmt.Errorf("rate limited by provider, please retry or lower --rate-per-minute: %w", err)
	case errors.As(err, &nfErr):
		if providerName == ai.ProviderOllama {
			return fmt.Errorf("local model not available (%s). Install it with 'ollama pull %s' or choose another model. %w", model, model, err)
		}
		return fmt.Errorf("model not found (%s). Verify the model name: %w", model, err)
	case errors.As(err, &brErr):
		return fmt.Errorf("request invalid. Try a smaller --max-tokens or disable --json-mode: %w", err)
	case errors.As(err, &qErr):
		return fmt.Errorf("quota/billing issue. Check your provider account: %w", err)
	case errors.As(err, &sErr):
		return fmt.Errorf("provider appears unavailable (server error). Please retry later: %w", err)
	case errors.Is(err, cfgpkg.ErrMissingCredential), errors.Is(err, ai.ErrMissingAPIKey):
		return err
	default:
		return fmt.Errorf("generation failed: %w", err)
	}
}

// loadFlags are the dataset-loading flags shared by profile and dashboard.
type loadFlags struct {
	Delimiter  string
	SheetName  string
	SheetIndex int
	Table      string
}

func (f loadFlags) options() (dataset.LoadOptions, error) {
	opt := dataset.LoadOptions{SheetName: f.SheetName, SheetIndex: f.SheetIndex, Table: f.Table}
	switch f.Delimiter {
	case "":
	case ",", "comma":
		opt.Delimiter = ','
	case "\t", "tab", `\t`:
		opt.Delimiter = '\t'
	case ";", "semicolon":
		opt.Delimiter = ';'
	case "|", "pipe":
		opt.Delimiter = '|'
	default:
		return opt, fmt.Errorf("unsupported --delimiter: %s (use ,|tab|;|pipe)", f.Delimiter)
	}
	if f.SheetIndex < 0 {
		return opt, fmt.Errorf("--sheet-index must be 1 or greater")
	}
	return opt, nil
}
