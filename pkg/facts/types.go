package facts

import (
	"sort"
	"strings"
	"time"
)

// DataType tags what kind of personal data a fact holds.
type DataType string

const (
	TypeBirthday   DataType = "birthday"
	TypePhone      DataType = "phone"
	TypeName       DataType = "name"
	TypePreference DataType = "preference"
	TypeWork       DataType = "work"
	TypeIdentity   DataType = "identity"
	TypeTrip       DataType = "trip"
	TypeEvent      DataType = "event"
	TypeOther      DataType = "other"
)

// SelfSubject marks facts the sender states about themselves.
const SelfSubject = "self"

var knownTypes = map[DataType]struct{}{
	TypeBirthday: {}, TypePhone: {}, TypeName: {}, TypePreference: {}, TypeWork: {},
	TypeIdentity: {}, TypeTrip: {}, TypeEvent: {}, TypeOther: {},
}

func ParseDataType(s string) (DataType, bool) {
	t := DataType(strings.ToLower(strings.TrimSpace(s)))
	_, ok := knownTypes[t]
	return t, ok
}

// Personal reports whether statements of this type are worth storing.
// Everything except "other" qualifies.
func (t DataType) Personal() bool {
	_, ok := knownTypes[t]
	return ok && t != TypeOther
}

// Label is the human wording used in replies ("phone number", "job", ...).
func (t DataType) Label() string {
	switch t {
	case TypePhone:
		return "phone number"
	case TypeWork:
		return "job"
	default:
		return string(t)
	}
}

// Extraction is the structured shape a classifier produces from one utterance.
type Extraction struct {
	DataType DataType `json:"dataType"`
	Subject  string   `json:"subject"`
	Person   string   `json:"person,omitempty"`
	Content  string   `json:"extractedData"`
	Keywords []string `json:"keywords"`
	Date     string   `json:"date,omitempty"`
}

func (e Extraction) IsSelf() bool {
	return e.Subject == "" || e.Subject == SelfSubject
}

// Metadata records where a fact came from. Only fields that are read
// somewhere downstream live here.
type Metadata struct {
	Source    string `json:"source" bson:"source"`
	Context   string `json:"context" bson:"context"`
	Confirmed bool   `json:"confirmed" bson:"confirmed"`
	Response  string `json:"response,omitempty" bson:"response,omitempty"`
}

const (
	SourceUserInput = "user_input"

	ContextNameCollection = "name_collection"
	ContextNameUpdate     = "name_update"
	ContextPersonalInfo   = "personal_information"
	ContextDataUpdate     = "data_update"
)

// Fact is one stored (type, subject, value) unit for a sender.
type Fact struct {
	ID         string    `json:"id" bson:"_id"`
	SubjectKey string    `json:"subjectKey" bson:"subject_key"`
	DataType   DataType  `json:"dataType" bson:"data_type"`
	Subject    string    `json:"subject" bson:"subject"`
	Person     string    `json:"person,omitempty" bson:"person,omitempty"`
	Content    string    `json:"content" bson:"content"`
	Keywords   []string  `json:"keywords" bson:"keywords"`
	SourceDate string    `json:"sourceDate,omitempty" bson:"source_date,omitempty"`
	CreatedAt  time.Time `json:"createdAt" bson:"created_at"`
	Metadata   Metadata  `json:"metadata" bson:"metadata"`
}

// FromExtraction builds an unsaved fact. ID and CreatedAt are assigned by the store.
func FromExtraction(subjectKey string, e Extraction, meta Metadata) Fact {
	f := Fact{
		SubjectKey: subjectKey,
		DataType:   e.DataType,
		Subject:    SelfSubject,
		Content:    e.Content,
		Keywords:   normalizeKeywords(e.Keywords),
		SourceDate: e.Date,
		Metadata:   meta,
	}
	if !e.IsSelf() {
		f.Subject = e.Subject
		f.Person = e.Person
		if f.Person == "" {
			f.Person = e.Subject
		}
	}
	return f
}

func (f Fact) IsSelf() bool {
	return f.Person == ""
}

// StorageKey names the series a fact belongs to.
func StorageKey(subjectKey string, t DataType, person string) string {
	if person == "" {
		return subjectKey + "_" + string(t)
	}
	return subjectKey + "_" + string(t) + "_" + person
}

func (f Fact) SeriesKey() string {
	return StorageKey(f.SubjectKey, f.DataType, strings.ToLower(f.Person))
}

// InSeries reports whether f belongs to the (dataType, person) series.
// An empty person selects the self series, which excludes any fact
// carrying a person.
func (f Fact) InSeries(t DataType, person string) bool {
	if f.DataType != t {
		return false
	}
	if person == "" {
		return f.Person == ""
	}
	return strings.EqualFold(f.Person, person)
}

// Latest returns the current fact of a series: the one with the greatest CreatedAt.
func Latest(all []Fact, t DataType, person string) (Fact, bool) {
	var best Fact
	found := false
	for _, f := range all {
		if !f.InSeries(t, person) {
			continue
		}
		if !found || f.CreatedAt.After(best.CreatedAt) {
			best = f
			found = true
		}
	}
	return best, found
}

// NewestFirst sorts facts by CreatedAt descending, ties broken by ID.
func NewestFirst(all []Fact) {
	sort.SliceStable(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID < all[j].ID
		}
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})
}

func normalizeKeywords(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, k := range in {
		k = strings.ToLower(strings.TrimSpace(k))
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}

// SameContent compares normalized values: case and surrounding space are ignored.
func SameContent(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
