package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dotsetgreg/factkeeper/pkg/logger"
	"github.com/dotsetgreg/factkeeper/pkg/providers"
)

const (
	namePromptTemplate = "Hello! Welcome to our WhatsApp Business service. What's your name so I can assist you better?"
	maxGreetingLen     = 60
	maxPromptLen       = 200
)

// Phraser words the free-form replies: the name prompt, greetings and
// confirmation prompts. Without a provider, or when the provider fails
// or times out, it renders fixed templates.
type Phraser struct {
	provider providers.LLMProvider
	model    string
	timeout  time.Duration
}

func NewPhraser(provider providers.LLMProvider, model string, timeout time.Duration) *Phraser {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Phraser{provider: provider, model: model, timeout: timeout}
}

func (p *Phraser) NamePrompt(ctx context.Context) string {
	prompt := "You are a WhatsApp assistant starting a conversation with a new user.\n" +
		"Welcome them warmly, ask for their name and say briefly that it is for personalized service.\n" +
		"Keep it under 160 characters. Reply with the message only."
	return p.generate(ctx, "name_prompt", prompt, nil, maxPromptLen, namePromptTemplate)
}

// Greeting greets the sender, by name when one is known.
func (p *Phraser) Greeting(ctx context.Context, name, message string, history []string) string {
	fallback := "Hello!"
	if name != "" {
		fallback = fmt.Sprintf("Hello %s!", name)
	}
	if name == "" {
		name = "there"
	}
	prompt := fmt.Sprintf("The user %q sent a greeting: %q.\n"+
		"Reply with a short, friendly greeting that includes their name, like \"Hi %s!\".\n"+
		"Keep it under 30 characters. Reply with the greeting only.", name, message, name)
	return p.generate(ctx, "greeting", prompt, history, maxGreetingLen, fallback)
}

// ConfirmPrompt asks whether to replace current with proposed. subject
// is the series wording, e.g. "birthday" or "Adam's birthday".
func (p *Phraser) ConfirmPrompt(ctx context.Context, subject, current, proposed string) string {
	fallback := confirmTemplate(subject, current, proposed)
	prompt := fmt.Sprintf("A user already told you their %s is %q and now says it is %q.\n"+
		"Ask them, in one short friendly sentence, whether to update it. "+
		"Tell them to reply \"yes\" or \"no\". Reply with the question only.", subject, current, proposed)
	out := p.generate(ctx, "confirm_prompt", prompt, nil, maxPromptLen, fallback)
	// A generated prompt must still tell the user how to answer.
	lower := strings.ToLower(out)
	if !strings.Contains(lower, "yes") || !strings.Contains(lower, "no") {
		return fallback
	}
	return out
}

func confirmTemplate(subject, current, proposed string) string {
	possessive := "your " + subject
	if strings.Contains(subject, "'s ") {
		possessive = subject
	}
	return fmt.Sprintf("I already have %s as %q. Do you want to update it to %q? Reply \"yes\" to update or \"no\" to keep it.",
		possessive, current, proposed)
}

func (p *Phraser) generate(ctx context.Context, purpose, prompt string, history []string, maxLen int, fallback string) string {
	if p == nil || p.provider == nil {
		return fallback
	}

	messages := make([]providers.Message, 0, len(history)+1)
	if len(history) > 0 {
		messages = append(messages, providers.Message{
			Role:    "system",
			Content: "Recent messages from the user, oldest first:\n" + strings.Join(history, "\n"),
		})
	}
	messages = append(messages, providers.Message{Role: "user", Content: prompt})

	cctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	resp, err := p.provider.Chat(cctx, messages, p.model, map[string]interface{}{
		"max_tokens":  100,
		"temperature": 0.7,
	})
	if err != nil {
		logger.WarnCF("agent", "Phrase generation failed, using template", map[string]interface{}{
			"purpose":  purpose,
			"provider": p.provider.Name(),
			"error":    err.Error(),
		})
		return fallback
	}

	out := strings.Trim(strings.TrimSpace(resp.Content), "\"")
	if out == "" || len(out) > maxLen {
		return fallback
	}
	return out
}
