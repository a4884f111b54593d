package cmd

import (
	"errors"
	"strings"
	"testing"

	"github.com/KaramelBytes/claridata/internal/ai"
	cfgpkg "github.com/KaramelBytes/claridata/internal/config"
	"github.com/KaramelBytes/claridata/internal/insight"
)

func TestBuildRuntimeDefaults(t *testing.T) {
	t.Setenv("CLARIDATA_API_KEY", "")
	t.Setenv("OPENROUTER_API_KEY", "sk-test-env")
	rt, name, err := buildRuntime(nil, runtimeOptions{})
	if err != nil {
		t.Fatalf("buildRuntime: %v", err)
	}
	if name != ai.ProviderOpenRouter {
		t.Fatalf("provider = %s", name)
	}
	if _, ok := rt.(*ai.Client); !ok {
		t.Fatalf("runtime = %T, want *ai.Client", rt)
	}
}

func TestBuildRuntimeOllamaNeedsNoKey(t *testing.T) {
	t.Setenv("CLARIDATA_API_KEY", "")
	t.Setenv("OPENROUTER_API_KEY", "")
	c := &cfgpkg.Global{Provider: "local", OllamaHost: "http://127.0.0.1:1"}
	rt, name, err := buildRuntime(c, runtimeOptions{})
	if err != nil {
		t.Fatalf("buildRuntime: %v", err)
	}
	if name != ai.ProviderOllama {
		t.Fatalf("provider = %s", name)
	}
	if _, ok := rt.(*ai.OllamaClient); !ok {
		t.Fatalf("runtime = %T", rt)
	}
}

func TestBuildRuntimeCredentialPrecedence(t *testing.T) {
	t.Setenv("CLARIDATA_API_KEY", "")
	t.Setenv("OPENROUTER_API_KEY", "")
	if _, _, err := buildRuntime(&cfgpkg.Global{}, runtimeOptions{}); !errors.Is(err, cfgpkg.ErrMissingCredential) {
		t.Fatalf("err = %v", err)
	}
	if _, _, err := buildRuntime(&cfgpkg.Global{APIKey: "sk-config"}, runtimeOptions{}); err != nil {
		t.Fatalf("config key: %v", err)
	}
	if _, _, err := buildRuntime(nil, runtimeOptions{APIKeyFlag: "sk-flag"}); err != nil {
		t.Fatalf("flag key: %v", err)
	}
}

func TestBuildRuntimeRejectsUnknownProvider(t *testing.T) {
	_, _, err := buildRuntime(nil, runtimeOptions{ProviderFlag: "mystery"})
	if err == nil || !strings.Contains(err.Error(), "unknown provider") {
		t.Fatalf("err = %v", err)
	}
}

func TestExplainGenerationError(t *testing.T) {
	api := &ai.APIError{StatusCode: 404, Message: "no such model"}
	cases := []struct {
		name     string
		err      error
		provider string
		want     string
	}{
		{"ollama model", &ai.ModelNotFoundError{APIError: api}, ai.ProviderOllama, "ollama pull llama3"},
		{"remote model", &ai.ModelNotFoundError{APIError: api}, ai.ProviderOpenRouter, "model not found"},
		{"auth", &ai.AuthError{APIError: api}, ai.ProviderOpenRouter, "CLARIDATA_API_KEY"},
		{"unreachable", &ai.UnreachableError{Host: "http://h", Err: errors.New("refused")}, ai.ProviderOllama, "Ollama not reachable at http://h"},
		{"extraction", &insight.ExtractionError{Raw: "x", Cause: errors.New("no object")}, ai.ProviderOpenRouter, "claridata extract"},
		{"other", errors.New("boom"), ai.ProviderOpenRouter, "generation failed"},
	}
	for _, c := range cases {
		got := explainGenerationError(c.err, c.provider, "llama3")
		if !strings.Contains(got.Error(), c.want) {
			t.Errorf("%s: %q missing %q", c.name, got, c.want)
		}
		if !errors.Is(got, c.err) {
			t.Errorf("%s: hint does not wrap the cause", c.name)
		}
	}
}

func TestLoadFlagsOptions(t *testing.T) {
	opt, err := loadFlags{Delimiter: "tab", SheetName: "Data", Table: "orders"}.options()
	if err != nil {
		t.Fatalf("options: %v", err)
	}
	if opt.Delimiter != '\t' || opt.SheetName != "Data" || opt.Table != "orders" {
		t.Fatalf("opt = %+v", opt)
	}
	if _, err := (loadFlags{Delimiter: "::"}).options(); err == nil {
		t.Fatalf("expected delimiter error")
	}
	if _, err := (loadFlags{SheetIndex: -1}).options(); err == nil {
		t.Fatalf("expected sheet index error")
	}
}

func TestResolveDashboardSettingsHonoursZeroTemperature(t *testing.T) {
	resetFlags(dashboardCmd)
	prev := cfg
	t.Cleanup(func() { cfg = prev })

	cfg = &cfgpkg.Global{Temperature: 0, Attempts: 3}
	if s := resolveDashboardSettings(dashboardCmd); s.temperature != 0 || s.attempts != 3 {
		t.Fatalf("settings = %+v, want temperature 0 from config", s)
	}

	cfg = &cfgpkg.Global{Temperature: 0.7}
	if err := dashboardCmd.Flags().Set("temp", "0"); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resetFlags(dashboardCmd) })
	if s := resolveDashboardSettings(dashboardCmd); s.temperature != 0 {
		t.Fatalf("flag temperature = %v, want 0", s.temperature)
	}
}
