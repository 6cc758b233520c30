package facts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dotsetgreg/factkeeper/pkg/logger"
	"github.com/dotsetgreg/factkeeper/pkg/providers"
)

// ErrMalformedOutput is returned when the model reply is not a usable extraction.
var ErrMalformedOutput = errors.New("malformed classifier output")

const classifierPrompt = `Extract one personal fact from the chat message below and answer with a single JSON object, nothing else:
{"dataType": "birthday|phone|name|preference|work|identity|trip|event|other", "subject": "self or the other person's name", "extractedData": "value only, not the sentence", "keywords": ["lowercase", "tokens"], "date": "date if any", "person": "other person's name if any"}

Rules:
- Statements about the speaker (I, me, my) use subject "self" and no person.
- Statements about someone else ("Adam's birthday") use that name as both subject and person.
- Birthdays: just the date, written like "15th September".
- Preferences: just the thing liked. Work: just the role. Names: just the name.
- Use "other" when nothing personal is stated.

Message: %q`

// AIClassifier asks a language model for the extraction and falls back to
// the rule table on any transport error, timeout or unusable reply.
type AIClassifier struct {
	provider providers.LLMProvider
	model    string
	timeout  time.Duration
	fallback Classifier
}

func NewAIClassifier(provider providers.LLMProvider, model string, timeout time.Duration) *AIClassifier {
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	return &AIClassifier{
		provider: provider,
		model:    model,
		timeout:  timeout,
		fallback: NewRuleClassifier(),
	}
}

func (c *AIClassifier) Classify(ctx context.Context, text string) Extraction {
	ext, err := c.classifyRemote(ctx, text)
	if err != nil {
		logger.WarnCF("classifier", "AI classification failed, using rule-based extraction", map[string]interface{}{
			"provider": c.provider.Name(),
			"error":    err.Error(),
		})
		return c.fallback.Classify(ctx, text)
	}
	return ext
}

func (c *AIClassifier) classifyRemote(ctx context.Context, text string) (Extraction, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.provider.Chat(callCtx, []providers.Message{
		{Role: "user", Content: fmt.Sprintf(classifierPrompt, text)},
	}, c.model, map[string]interface{}{"temperature": 0.0})
	if err != nil {
		return Extraction{}, err
	}
	return ParseModelExtraction(resp.Content)
}

type modelExtraction struct {
	DataType      string   `json:"dataType"`
	Subject       string   `json:"subject"`
	ExtractedData string   `json:"extractedData"`
	Keywords      []string `json:"keywords"`
	Date          *string  `json:"date"`
	Person        *string  `json:"person"`
}

// ParseModelExtraction decodes and sanitizes a model reply. Code fences and
// prose around the JSON object are tolerated.
func ParseModelExtraction(raw string) (Extraction, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return Extraction{}, fmt.Errorf("%w: no JSON object", ErrMalformedOutput)
	}

	var m modelExtraction
	if err := json.Unmarshal([]byte(raw[start:end+1]), &m); err != nil {
		return Extraction{}, fmt.Errorf("%w: %v", ErrMalformedOutput, err)
	}

	dataType, ok := ParseDataType(m.DataType)
	if !ok {
		return Extraction{}, fmt.Errorf("%w: unknown dataType %q", ErrMalformedOutput, m.DataType)
	}
	content := strings.TrimSpace(m.ExtractedData)
	if content == "" {
		return Extraction{}, fmt.Errorf("%w: empty extractedData", ErrMalformedOutput)
	}

	ext := Extraction{
		DataType: dataType,
		Subject:  SelfSubject,
		Content:  content,
		Keywords: normalizeKeywords(m.Keywords),
	}
	if m.Date != nil {
		ext.Date = strings.TrimSpace(*m.Date)
	}

	subject := strings.TrimSpace(m.Subject)
	person := ""
	if m.Person != nil {
		person = strings.TrimSpace(*m.Person)
	}
	if subject != "" && !strings.EqualFold(subject, SelfSubject) && subject != "other_person_name" {
		ext.Subject = subject
		ext.Person = subject
		if person != "" {
			ext.Person = person
		}
	}
	return ext, nil
}
