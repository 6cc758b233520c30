package facts

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

// Reader is the read side of the fact store.
type Reader interface {
	MostRecent(ctx context.Context, subjectKey string, t DataType, person string) (Fact, bool)
	// All returns every fact for the sender, newest first.
	All(ctx context.Context, subjectKey string) []Fact
}

const noInformationReply = "I don't have that information. Please tell me about it so I can remember it for you."

var thirdPartyRegex = regexp.MustCompile(`(?i)\b([a-z]+)['’]s\s+(bday|birthday|number|phone|job|work|likes|like|preference|name|identity|trip|event)\b`)

var whoAreYouRegex = regexp.MustCompile(`(?i)\bwho\b.*\b(?:you|am i)\b|\babout myself\b`)

var fieldAliases = map[string]DataType{
	"bday":       TypeBirthday,
	"birthday":   TypeBirthday,
	"number":     TypePhone,
	"phone":      TypePhone,
	"job":        TypeWork,
	"work":       TypeWork,
	"like":       TypePreference,
	"likes":      TypePreference,
	"preference": TypePreference,
	"name":       TypeName,
	"identity":   TypeIdentity,
	"trip":       TypeTrip,
	"event":      TypeEvent,
}

// selfQuestion is one row of the self-data dispatch table.
type selfQuestion struct {
	match  func(lower string) bool
	answer func(ctx context.Context, a *Answerer, subjectKey string) string
}

var selfQuestions = []selfQuestion{
	{
		match:  containsAny("birthday", "bday", "born"),
		answer: latestAnswer(TypeBirthday, "Your birthday is %s.", "I don't know your birthday yet. Please tell me so I can remember it!"),
	},
	{
		match:  containsAny("phone", "number"),
		answer: latestAnswer(TypePhone, "Your phone number is %s.", "I don't know your phone number yet. Please tell me so I can remember it!"),
	},
	{
		match:  containsAny("name"),
		answer: latestAnswer(TypeName, "Your name is %s.", "I don't know your name yet. Please tell me so I can remember it!"),
	},
	{
		match:  containsAny("like", "prefer"),
		answer: listAnswer(TypePreference, "You like %s.", "I don't know what you like yet. Please tell me so I can remember it!"),
	},
	{
		match:  containsAny("work", "job"),
		answer: latestAnswer(TypeWork, "You work as %s.", "I don't know what you do for work yet. Please tell me so I can remember it!"),
	},
	{
		match:  whoAreYouRegex.MatchString,
		answer: listAnswer(TypeIdentity, "Here's what I know about you: %s.", "I don't know much about you yet. Please tell me about yourself so I can remember it!"),
	},
}

// Answerer renders replies to data questions from stored facts.
type Answerer struct {
	facts Reader
}

func NewAnswerer(facts Reader) *Answerer {
	return &Answerer{facts: facts}
}

// Answer never fails; missing data yields a "please tell me" reply.
func (a *Answerer) Answer(ctx context.Context, subjectKey, question string) string {
	if reply, ok := a.answerThirdParty(ctx, subjectKey, question); ok {
		return reply
	}

	lower := strings.ToLower(question)
	for _, q := range selfQuestions {
		if q.match(lower) {
			return q.answer(ctx, a, subjectKey)
		}
	}

	return a.answerGeneric(ctx, subjectKey, lower)
}

func (a *Answerer) answerThirdParty(ctx context.Context, subjectKey, question string) (string, bool) {
	for _, m := range thirdPartyRegex.FindAllStringSubmatch(question, -1) {
		name, field := m[1], strings.ToLower(m[2])
		if isPronoun(name) {
			continue
		}
		t, ok := fieldAliases[field]
		if !ok {
			continue
		}

		f, found := a.facts.MostRecent(ctx, subjectKey, t, name)
		if !found {
			return fmt.Sprintf("I don't know %s's %s. Please tell me so I can remember it!", name, t.Label()), true
		}
		person := f.Person
		if person == "" {
			person = name
		}
		return fmt.Sprintf("%s's %s is %s.", person, t.Label(), CleanContent(t, f.Content)), true
	}
	return "", false
}

func (a *Answerer) answerGeneric(ctx context.Context, subjectKey, lower string) string {
	fields := strings.Fields(lower)
	if len(fields) == 0 {
		return noInformationReply
	}
	word := strings.Trim(fields[0], "?!.,;:")
	if word == "" {
		return noInformationReply
	}

	var matches []string
	for _, f := range a.facts.All(ctx, subjectKey) {
		if strings.Contains(strings.ToLower(f.Content), word) || strings.Contains(string(f.DataType), word) {
			matches = append(matches, CleanContent(f.DataType, f.Content))
		}
	}
	if len(matches) == 0 {
		return noInformationReply
	}
	return "Based on what you've told me: " + strings.Join(matches, ", ")
}

func containsAny(words ...string) func(string) bool {
	return func(lower string) bool {
		for _, w := range words {
			if strings.Contains(lower, w) {
				return true
			}
		}
		return false
	}
}

func latestAnswer(t DataType, found, missing string) func(context.Context, *Answerer, string) string {
	return func(ctx context.Context, a *Answerer, subjectKey string) string {
		f, ok := a.facts.MostRecent(ctx, subjectKey, t, "")
		if !ok {
			return missing
		}
		return fmt.Sprintf(found, CleanContent(t, f.Content))
	}
}

// listAnswer joins every self fact of type t, newest first, skipping repeats.
func listAnswer(t DataType, found, missing string) func(context.Context, *Answerer, string) string {
	return func(ctx context.Context, a *Answerer, subjectKey string) string {
		var values []string
		seen := map[string]struct{}{}
		for _, f := range a.facts.All(ctx, subjectKey) {
			if !f.InSeries(t, "") {
				continue
			}
			v := CleanContent(t, f.Content)
			key := strings.ToLower(v)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			values = append(values, v)
		}
		if len(values) == 0 {
			return missing
		}
		return fmt.Sprintf(found, strings.Join(values, ", "))
	}
}
