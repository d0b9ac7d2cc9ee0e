package providers

import (
	"errors"
	"testing"

	"github.com/rhuss/palaver/pkg/backend"
)

func TestNewFactory_RegistersBuiltins(t *testing.T) {
	got := NewFactory().Providers()
	want := []string{"azure", "bedrock", "gemini", "openai"}
	if len(got) != len(want) {
		t.Fatalf("providers = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("providers[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestBuild_OpenAI(t *testing.T) {
	h, err := NewFactory().Build(backend.Config{Provider: "openai", Endpoint: "http://localhost:8000", ModelID: "llama"})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if h.Provider() != "openai" || h.Model() != "llama" {
		t.Errorf("handle = %s/%s", h.Provider(), h.Model())
	}
}

func TestBuild_EmptyEndpoint(t *testing.T) {
	for _, provider := range []string{"openai", "azure"} {
		t.Run(provider, func(t *testing.T) {
			_, err := NewFactory().Build(backend.Config{Provider: provider, ModelID: "m", Credential: "k"})
			var cfgErr *backend.ConfigurationError
			if !errors.As(err, &cfgErr) || cfgErr.Field != "endpoint" {
				t.Fatalf("expected endpoint configuration error, got %v", err)
			}
		})
	}
}

func TestBuild_Bedrock(t *testing.T) {
	h, err := NewFactory().Build(backend.Config{
		Provider:   "bedrock",
		ModelID:    "anthropic.claude-3-haiku-20240307-v1:0",
		Credential: "AKID:SECRET",
		Region:     "us-west-2",
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if h.Provider() != "bedrock" {
		t.Errorf("provider = %q", h.Provider())
	}
}
