package providers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/generative-ai-go/genai"

	"github.com/dotsetgreg/factkeeper/pkg/config"
)

func TestCreateProvider_OpenRouter(t *testing.T) {
	var seenAuth string
	var seenPath string
	var seenModel interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenAuth = r.Header.Get("Authorization")
		seenPath = r.URL.Path
		var req map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		seenModel = req["model"]
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"  ok \n"},"finish_reason":"stop"}],"usage":{"prompt_tokens":3,"completion_tokens":1,"total_tokens":4}}`))
	}))
	defer server.Close()

	cfg := config.DefaultConfig()
	cfg.Classifier.Provider = "openrouter"
	cfg.Providers.OpenRouter.APIKey = "or-key"
	cfg.Providers.OpenRouter.APIBase = server.URL
	cfg.Providers.OpenRouter.Model = "test/model"

	provider, err := CreateProvider(cfg)
	if err != nil {
		t.Fatalf("create provider: %v", err)
	}
	if provider.Name() != ProviderOpenRouter {
		t.Fatalf("unexpected provider name %q", provider.Name())
	}
	resp, err := provider.Chat(context.Background(), []Message{{Role: "user", Content: "hi"}}, "", nil)
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if resp.Content != "ok" {
		t.Fatalf("expected trimmed content ok, got %q", resp.Content)
	}
	if resp.Usage == nil || resp.Usage.TotalTokens != 4 {
		t.Fatalf("expected usage to be parsed, got %+v", resp.Usage)
	}
	if seenAuth != "Bearer or-key" {
		t.Fatalf("expected bearer auth, got %q", seenAuth)
	}
	if seenPath != "/chat/completions" {
		t.Fatalf("expected /chat/completions path, got %q", seenPath)
	}
	if seenModel != "test/model" {
		t.Fatalf("expected configured model, got %v", seenModel)
	}
}

func TestHTTPProvider_NonOKStatusIsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"rate limited"}`, http.StatusTooManyRequests)
	}))
	defer server.Close()

	p := NewHTTPProvider("k", server.URL, "", "")
	if _, err := p.Chat(context.Background(), []Message{{Role: "user", Content: "hi"}}, "", nil); err == nil {
		t.Fatal("expected error for 429 response")
	}
}

func TestCreateProvider_NoneIsDisabled(t *testing.T) {
	cfg := config.DefaultConfig()
	if _, err := CreateProvider(cfg); !errors.Is(err, ErrDisabled) {
		t.Fatalf("expected ErrDisabled for default config, got %v", err)
	}
}

func TestCreateProvider_UnsupportedProvider(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Classifier.Provider = "does-not-exist"

	if _, err := CreateProvider(cfg); err == nil {
		t.Fatalf("expected unsupported provider error")
	}
}

func TestValidateProviderConfig_MissingCredentials(t *testing.T) {
	for _, name := range []string{ProviderOpenRouter, ProviderGemini} {
		cfg := config.DefaultConfig()
		cfg.Classifier.Provider = name
		if err := ValidateProviderConfig(cfg); err == nil {
			t.Fatalf("expected missing credentials error for %s", name)
		}
	}
}

func TestRegisterFactory_InvalidRegistrationDoesNotPanic(t *testing.T) {
	factoryMu.RLock()
	origFactories := make(map[string]providerFactory, len(factories))
	for k, v := range factories {
		origFactories[k] = v
	}
	origErr := registrationErr
	factoryMu.RUnlock()

	defer func() {
		factoryMu.Lock()
		factories = origFactories
		registrationErr = origErr
		factoryMu.Unlock()
	}()

	didPanic := false
	func() {
		defer func() {
			if recover() != nil {
				didPanic = true
			}
		}()
		RegisterFactory("", nil, nil)
	}()
	if didPanic {
		t.Fatalf("RegisterFactory should not panic on invalid registration")
	}

	cfg := config.DefaultConfig()
	cfg.Classifier.Provider = ProviderOpenRouter
	cfg.Providers.OpenRouter.APIKey = "k"
	if _, err := CreateProvider(cfg); err == nil {
		t.Fatalf("expected provider creation to fail after invalid registration")
	}
}

func TestSplitForGemini(t *testing.T) {
	system, history, last := splitForGemini([]Message{
		{Role: "system", Content: "be brief"},
		{Role: "user", Content: "hello"},
		{Role: "assistant", Content: "hi there"},
		{Role: "user", Content: "my birthday is 1st May"},
	})
	if system != "be brief" {
		t.Fatalf("system = %q", system)
	}
	if len(history) != 2 || history[0].Role != "user" || history[1].Role != "model" {
		t.Fatalf("unexpected history %+v", history)
	}
	if last != "my birthday is 1st May" {
		t.Fatalf("last = %q", last)
	}
}

func TestFromGeminiResponse_JoinsTextParts(t *testing.T) {
	resp := fromGeminiResponse(&genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []genai.Part{genai.Text("Hello "), genai.Text("Neha!")}},
		}},
		UsageMetadata: &genai.UsageMetadata{PromptTokenCount: 5, CandidatesTokenCount: 2, TotalTokenCount: 7},
	})
	if resp.Content != "Hello Neha!" {
		t.Fatalf("content = %q", resp.Content)
	}
	if resp.Usage == nil || resp.Usage.TotalTokens != 7 {
		t.Fatalf("usage = %+v", resp.Usage)
	}
	if empty := fromGeminiResponse(nil); empty.Content != "" {
		t.Fatalf("expected empty content for nil response")
	}
}
