package facts

import (
	"context"
	"regexp"
	"strings"
)

type IntentKind string

const (
	IntentNone      IntentKind = "none"
	IntentGreeting  IntentKind = "greeting"
	IntentQuestion  IntentKind = "data_question"
	IntentStatement IntentKind = "statement"
	IntentCommand   IntentKind = "command"
)

const CommandDeleteData = "delete_data"

// Intent is the routing decision for one utterance. Extraction is only
// populated for statements so the caller does not classify twice.
type Intent struct {
	Kind       IntentKind
	Command    string
	Extraction Extraction
}

var greetingPhrases = []string{
	"hello", "hi", "hey", "good morning", "good afternoon", "good evening", "greetings",
}

var questionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)what'?s? my`),
	regexp.MustCompile(`(?i)when is my`),
	regexp.MustCompile(`(?i)who am i`),
	regexp.MustCompile(`(?i)tell me about myself`),
	regexp.MustCompile(`(?i)what do i like`),
	regexp.MustCompile(`(?i)what are my`),
}

// IsDeleteCommand reports whether text asks to purge the sender's data.
func IsDeleteCommand(text string) bool {
	lower := strings.ToLower(text)
	return strings.Contains(lower, "delete data") || strings.Contains(lower, "delete all data")
}

// IsGreeting is a plain case-insensitive substring test over the greeting phrases.
func IsGreeting(text string) bool {
	lower := strings.ToLower(text)
	for _, p := range greetingPhrases {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

var (
	questionOpener = regexp.MustCompile(`(?i)^\s*(?:when|what|who)\b`)
	selfReference  = regexp.MustCompile(`(?i)\b(?:my|i)\b`)
)

// IsDataQuestion matches the fixed question patterns, then any question
// about a stored field: a when/what/who opener or a trailing "?" together
// with "<Name>'s <field>" or a self reference.
func IsDataQuestion(text string) bool {
	for _, re := range questionPatterns {
		if re.MatchString(text) {
			return true
		}
	}
	return hasQuestionCue(text) && (mentionsThirdPartyField(text) || selfReference.MatchString(text))
}

func hasQuestionCue(text string) bool {
	return questionOpener.MatchString(text) || strings.HasSuffix(strings.TrimSpace(text), "?")
}

func mentionsThirdPartyField(text string) bool {
	for _, m := range thirdPartyRegex.FindAllStringSubmatch(text, -1) {
		if !isPronoun(m[1]) {
			return true
		}
	}
	return false
}

// Router classifies utterances in fixed order: command, greeting,
// data question, statement, none.
type Router struct {
	classifier Classifier
}

func NewRouter(classifier Classifier) *Router {
	if classifier == nil {
		classifier = NewRuleClassifier()
	}
	return &Router{classifier: classifier}
}

func (r *Router) Classifier() Classifier {
	return r.classifier
}

func (r *Router) Route(ctx context.Context, text string) Intent {
	switch {
	case IsDeleteCommand(text):
		return Intent{Kind: IntentCommand, Command: CommandDeleteData}
	case IsGreeting(text):
		return Intent{Kind: IntentGreeting}
	case IsDataQuestion(text):
		return Intent{Kind: IntentQuestion}
	}

	ext := r.classifier.Classify(ctx, text)
	if ext.DataType.Personal() {
		return Intent{Kind: IntentStatement, Extraction: ext}
	}
	return Intent{Kind: IntentNone}
}
