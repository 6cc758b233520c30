package facts

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRouter_GreetingWinsOverStatement(t *testing.T) {
	r := NewRouter(nil)
	intent := r.Route(context.Background(), "hi, my birthday is 1st Jan")

	assert.Equal(t, IntentGreeting, intent.Kind)
	assert.Empty(t, intent.Extraction.DataType)
}

func TestRouter_GreetingWinsOverQuestion(t *testing.T) {
	r := NewRouter(nil)
	assert.Equal(t, IntentGreeting, r.Route(context.Background(), "Hello! what's my name?").Kind)
}

func TestRouter_DataQuestions(t *testing.T) {
	r := NewRouter(nil)
	for _, q := range []string{
		"What's my birthday?",
		"whats my phone number",
		"When is my birthday?",
		"Who am I?",
		"Tell me about myself",
		"What do I like?",
		"What are my preferences?",
	} {
		assert.Equal(t, IntentQuestion, r.Route(context.Background(), q).Kind, q)
	}
}

func TestRouter_StatementCarriesExtraction(t *testing.T) {
	r := NewRouter(nil)
	intent := r.Route(context.Background(), "I like pineapple")

	assert.Equal(t, IntentStatement, intent.Kind)
	assert.Equal(t, TypePreference, intent.Extraction.DataType)
	assert.Equal(t, "pineapple", intent.Extraction.Content)
}

func TestRouter_DeleteCommand(t *testing.T) {
	r := NewRouter(nil)
	intent := r.Route(context.Background(), "please DELETE ALL DATA")

	assert.Equal(t, IntentCommand, intent.Kind)
	assert.Equal(t, CommandDeleteData, intent.Command)
	assert.True(t, IsDeleteCommand("delete data"))
}

func TestRouter_NoneForSmallTalk(t *testing.T) {
	r := NewRouter(nil)
	assert.Equal(t, IntentNone, r.Route(context.Background(), "the weather is nice today").Kind)
}

type countingClassifier struct {
	calls int
}

func (c *countingClassifier) Classify(ctx context.Context, text string) Extraction {
	c.calls++
	return ClassifyRules(text)
}

func TestRouter_SkipsClassificationForGreetingAndQuestion(t *testing.T) {
	c := &countingClassifier{}
	r := NewRouter(c)

	r.Route(context.Background(), "good morning")
	r.Route(context.Background(), "what's my birthday")
	assert.Zero(t, c.calls)

	r.Route(context.Background(), "my birthday is 3rd March")
	assert.Equal(t, 1, c.calls)
}

func TestRouter_FieldQuestionsNeverClassify(t *testing.T) {
	c := &countingClassifier{}
	r := NewRouter(c)
	for _, q := range []string{
		"when is Adam's birthday?",
		"What is Priya's phone number",
		"Adam's birthday?",
		"what is my birthday?",
		"who do I work for",
	} {
		assert.Equal(t, IntentQuestion, r.Route(context.Background(), q).Kind, q)
	}
	assert.Zero(t, c.calls)
}

func TestRouter_StatementsAboutOthersStayStatements(t *testing.T) {
	r := NewRouter(nil)
	intent := r.Route(context.Background(), "Adam's birthday is on 8th August")

	assert.Equal(t, IntentStatement, intent.Kind)
	assert.Equal(t, "Adam", intent.Extraction.Person)
	assert.Equal(t, IntentStatement, r.Route(context.Background(), "My birthday is 26th February").Kind)
}
