package facts

import (
	"context"
	"regexp"
	"strings"
)

// Classifier turns an utterance into a structured extraction. It never
// fails: when nothing matches the result is an "other" extraction holding
// the text verbatim.
type Classifier interface {
	Classify(ctx context.Context, text string) Extraction
}

// rule is one row of the extraction table: match sees the lowercased
// text, extract sees the original.
type rule struct {
	name    DataType
	match   func(lower string) bool
	extract func(text string) Extraction
}

var (
	dateRegex          = regexp.MustCompile(`(?i)\b(\d{1,2})(st|nd|rd|th)?\s+(jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec|january|february|march|april|june|july|august|september|october|november|december)[a-z]*\b`)
	otherBirthdayRegex = regexp.MustCompile(`(?i)\b([a-z]+)['’]s\s+birthday`)
	phoneRegex         = regexp.MustCompile(`(\d{10,15})`)
	nameRegex          = regexp.MustCompile(`(?i)(?:name is|i am|i'm)\s+([a-z\s]+)`)
	selfIntroRegex     = regexp.MustCompile(`(?i)\bi(?:\s+am|'m)\s+(\S+)`)
	preferenceRegex    = regexp.MustCompile(`(?i)(?:like|love)\s+([^.!?]+)`)
	workRegexes        = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:work|job).*?\bas\s+([^.!?]+)`),
		regexp.MustCompile(`(?i)\bi(?:\s+am|'m)\s+a\s+([^.!?]+)`),
		regexp.MustCompile(`(?i)\bi(?:\s+am|'m)\s+an\s+([^.!?]+)`),
	}
	tripRegex = regexp.MustCompile(`(?i)(?:trip|travel).*?\bto\s+([^.!?]+)`)
)

var monthNames = map[string]string{
	"jan": "January", "feb": "February", "mar": "March", "apr": "April",
	"may": "May", "jun": "June", "jul": "July", "aug": "August",
	"sep": "September", "oct": "October", "nov": "November", "dec": "December",
}

// extractionRules is ordered by precedence; the first matching rule wins.
var extractionRules = []rule{
	{name: TypeBirthday, match: matchBirthday, extract: extractBirthday},
	{name: TypePhone, match: matchPhone, extract: extractPhone},
	{name: TypeName, match: matchName, extract: extractName},
	{name: TypePreference, match: matchPreference, extract: extractPreference},
	{name: TypeWork, match: matchWork, extract: extractWork},
	{name: TypeTrip, match: matchTrip, extract: extractTrip},
}

// RuleOrder lists the data types the rule classifier tries, in precedence order.
func RuleOrder() []DataType {
	out := make([]DataType, 0, len(extractionRules))
	for _, r := range extractionRules {
		out = append(out, r.name)
	}
	return out
}

// RuleClassifier is the deterministic regex/keyword classifier.
type RuleClassifier struct{}

func NewRuleClassifier() *RuleClassifier {
	return &RuleClassifier{}
}

func (RuleClassifier) Classify(_ context.Context, text string) Extraction {
	return ClassifyRules(text)
}

// ClassifyRules runs the rule table over text.
func ClassifyRules(text string) Extraction {
	lower := strings.ToLower(text)
	for _, r := range extractionRules {
		if r.match(lower) {
			return r.extract(text)
		}
	}
	return Extraction{
		DataType: TypeOther,
		Subject:  SelfSubject,
		Content:  text,
		Keywords: []string{},
	}
}

func matchBirthday(lower string) bool {
	return strings.Contains(lower, "birthday") || strings.Contains(lower, "born")
}

func extractBirthday(text string) Extraction {
	date, raw := findDate(text)
	if date == "" {
		date = "date mentioned"
	}

	keywords := append([]string{"birthday"}, strings.Fields(strings.ToLower(date))...)
	ext := Extraction{
		DataType: TypeBirthday,
		Subject:  SelfSubject,
		Content:  date,
		Keywords: keywords,
		Date:     raw,
	}
	if m := otherBirthdayRegex.FindStringSubmatch(text); m != nil && !isPronoun(m[1]) {
		ext.Subject = m[1]
		ext.Person = m[1]
	}
	return ext
}

// findDate returns the first "<day> <month>" token normalized to
// "<day><suffix> <Month>" along with the raw substring.
func findDate(text string) (normalized, raw string) {
	m := dateRegex.FindStringSubmatch(text)
	if m == nil {
		return "", ""
	}
	day := strings.TrimLeft(m[1], "0")
	if day == "" {
		day = "0"
	}
	suffix := strings.ToLower(m[2])
	if suffix == "" {
		suffix = ordinalSuffix(day)
	}
	month := monthNames[strings.ToLower(m[3])[:3]]
	return day + suffix + " " + month, m[0]
}

func ordinalSuffix(day string) string {
	switch {
	case strings.HasSuffix(day, "11"), strings.HasSuffix(day, "12"), strings.HasSuffix(day, "13"):
		return "th"
	case strings.HasSuffix(day, "1"):
		return "st"
	case strings.HasSuffix(day, "2"):
		return "nd"
	case strings.HasSuffix(day, "3"):
		return "rd"
	default:
		return "th"
	}
}

func matchPhone(lower string) bool {
	return strings.Contains(lower, "phone") || strings.Contains(lower, "number")
}

func extractPhone(text string) Extraction {
	phone := "phone number mentioned"
	if m := phoneRegex.FindStringSubmatch(text); m != nil {
		phone = m[1]
	}
	return Extraction{
		DataType: TypePhone,
		Subject:  SelfSubject,
		Content:  phone,
		Keywords: []string{"phone", "number"},
	}
}

// matchName fires on "name is", and on "i am"/"i'm" unless an indefinite
// article follows; "i am a nurse" is left for the work rule.
func matchName(lower string) bool {
	if strings.Contains(lower, "name is") {
		return true
	}
	if !strings.Contains(lower, "i am") && !strings.Contains(lower, "i'm") {
		return false
	}
	return !followedByArticle(lower)
}

func followedByArticle(lower string) bool {
	m := selfIntroRegex.FindStringSubmatch(lower)
	if m == nil {
		return false
	}
	return m[1] == "a" || m[1] == "an"
}

func extractName(text string) Extraction {
	name := "name mentioned"
	if m := nameRegex.FindStringSubmatch(text); m != nil {
		if trimmed := strings.TrimSpace(m[1]); trimmed != "" {
			name = trimmed
		}
	}
	return Extraction{
		DataType: TypeName,
		Subject:  SelfSubject,
		Content:  name,
		Keywords: []string{"name"},
	}
}

func matchPreference(lower string) bool {
	return strings.Contains(lower, "like") || strings.Contains(lower, "love")
}

func extractPreference(text string) Extraction {
	pref := "preference mentioned"
	if m := preferenceRegex.FindStringSubmatch(text); m != nil {
		if trimmed := strings.TrimSpace(m[1]); trimmed != "" {
			pref = trimmed
		}
	}
	return Extraction{
		DataType: TypePreference,
		Subject:  SelfSubject,
		Content:  pref,
		Keywords: []string{"like", "love"},
	}
}

func matchWork(lower string) bool {
	if strings.Contains(lower, "work") || strings.Contains(lower, "job") {
		return true
	}
	return (strings.Contains(lower, "i am") || strings.Contains(lower, "i'm")) && followedByArticle(lower)
}

func extractWork(text string) Extraction {
	work := "work mentioned"
	for _, re := range workRegexes {
		if m := re.FindStringSubmatch(text); m != nil {
			if trimmed := strings.TrimSpace(m[1]); trimmed != "" {
				work = trimmed
				break
			}
		}
	}
	return Extraction{
		DataType: TypeWork,
		Subject:  SelfSubject,
		Content:  work,
		Keywords: []string{"work", "job"},
	}
}

func matchTrip(lower string) bool {
	return strings.Contains(lower, "trip") || strings.Contains(lower, "travel")
}

func extractTrip(text string) Extraction {
	dest := "trip mentioned"
	if m := tripRegex.FindStringSubmatch(text); m != nil {
		if trimmed := strings.TrimSpace(m[1]); trimmed != "" {
			dest = trimmed
		}
	}
	_, raw := findDate(text)
	return Extraction{
		DataType: TypeTrip,
		Subject:  SelfSubject,
		Content:  dest,
		Keywords: []string{"trip", "travel"},
		Date:     raw,
	}
}

var pronouns = map[string]struct{}{
	"it": {}, "that": {}, "what": {}, "who": {}, "he": {}, "she": {}, "there": {},
	"here": {}, "where": {}, "when": {}, "how": {}, "let": {}, "today": {},
}

func isPronoun(word string) bool {
	_, ok := pronouns[strings.ToLower(word)]
	return ok
}
