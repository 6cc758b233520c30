package providers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const defaultGeminiModel = "gemini-1.5-flash"

// GeminiProvider adapts the Gemini generative API to LLMProvider.
type GeminiProvider struct {
	client       *genai.Client
	defaultModel string
}

func NewGeminiProvider(ctx context.Context, apiKey, model string) (*GeminiProvider, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	if strings.TrimSpace(model) == "" {
		model = defaultGeminiModel
	}
	return &GeminiProvider{client: client, defaultModel: model}, nil
}

func (p *GeminiProvider) Name() string {
	return ProviderGemini
}

func (p *GeminiProvider) GetDefaultModel() string {
	return p.defaultModel
}

func (p *GeminiProvider) Close() error {
	return p.client.Close()
}

func (p *GeminiProvider) Chat(ctx context.Context, messages []Message, model string, options map[string]interface{}) (*LLMResponse, error) {
	if len(messages) == 0 {
		return nil, errors.New("gemini: no messages")
	}
	model = strings.TrimSpace(model)
	if model == "" {
		model = p.defaultModel
	}

	// A model handle is cheap; building one per call keeps system
	// instructions and sampling settings out of shared state.
	gm := p.client.GenerativeModel(model)
	if temperature, ok := options["temperature"].(float64); ok {
		gm.SetTemperature(float32(temperature))
	}
	if maxTokens, ok := options["max_tokens"].(int); ok {
		gm.SetMaxOutputTokens(int32(maxTokens))
	}

	system, history, last := splitForGemini(messages)
	if system != "" {
		gm.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}
	}

	cs := gm.StartChat()
	cs.History = history

	resp, err := cs.SendMessage(ctx, genai.Text(last))
	if err != nil {
		return nil, fmt.Errorf("gemini generate: %w%s", err, hintSuffix(ProviderGemini, err.Error()))
	}
	return fromGeminiResponse(resp), nil
}

// splitForGemini folds system messages into one instruction, maps the rest
// to chat history and returns the final user turn separately.
func splitForGemini(messages []Message) (system string, history []*genai.Content, last string) {
	var systemParts []string
	var turns []Message
	for _, m := range messages {
		if m.Role == "system" {
			systemParts = append(systemParts, m.Content)
			continue
		}
		turns = append(turns, m)
	}
	system = strings.Join(systemParts, "\n\n")
	if len(turns) == 0 {
		return system, nil, ""
	}

	for _, m := range turns[:len(turns)-1] {
		role := "user"
		if m.Role == "assistant" {
			role = "model"
		}
		history = append(history, &genai.Content{Role: role, Parts: []genai.Part{genai.Text(m.Content)}})
	}
	return system, history, turns[len(turns)-1].Content
}

func fromGeminiResponse(resp *genai.GenerateContentResponse) *LLMResponse {
	out := &LLMResponse{FinishReason: "stop"}
	if resp == nil {
		return out
	}
	if resp.UsageMetadata != nil {
		out.Usage = &UsageInfo{
			PromptTokens:     int(resp.UsageMetadata.PromptTokenCount),
			CompletionTokens: int(resp.UsageMetadata.CandidatesTokenCount),
			TotalTokens:      int(resp.UsageMetadata.TotalTokenCount),
		}
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return out
	}

	cand := resp.Candidates[0]
	out.FinishReason = strings.ToLower(cand.FinishReason.String())
	var sb strings.Builder
	for _, part := range cand.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	out.Content = strings.TrimSpace(sb.String())
	return out
}
