package facts

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyRules_BirthdayForOtherPerson(t *testing.T) {
	ext := ClassifyRules("Adam's birthday is on 8th August")

	assert.Equal(t, TypeBirthday, ext.DataType)
	assert.Equal(t, "Adam", ext.Subject)
	assert.Equal(t, "Adam", ext.Person)
	assert.Equal(t, "8th August", ext.Content)
	assert.Equal(t, "8th August", ext.Date)
}

func TestClassifyRules_SelfBirthdayNormalizesMonth(t *testing.T) {
	ext := ClassifyRules("my birthday is on 15th sept")

	assert.Equal(t, TypeBirthday, ext.DataType)
	assert.Equal(t, SelfSubject, ext.Subject)
	assert.Empty(t, ext.Person)
	assert.Equal(t, "15th September", ext.Content)
	assert.Equal(t, "15th sept", ext.Date)
	assert.ElementsMatch(t, []string{"birthday", "15th", "september"}, ext.Keywords)
}

func TestClassifyRules_BirthdayWithoutDate(t *testing.T) {
	ext := ClassifyRules("I was born in a small town")
	assert.Equal(t, TypeBirthday, ext.DataType)
	assert.Equal(t, "date mentioned", ext.Content)
}

func TestClassifyRules_BirthdayAddsMissingSuffix(t *testing.T) {
	assert.Equal(t, "2nd June", ClassifyRules("my birthday is 2 jun").Content)
	assert.Equal(t, "11th March", ClassifyRules("my birthday is 11 March").Content)
	assert.Equal(t, "23rd December", ClassifyRules("birthday: 23 dec").Content)
}

func TestClassifyRules_Preference(t *testing.T) {
	ext := ClassifyRules("I like pineapple")

	assert.Equal(t, TypePreference, ext.DataType)
	assert.Equal(t, SelfSubject, ext.Subject)
	assert.Equal(t, "pineapple", ext.Content)
}

func TestClassifyRules_Phone(t *testing.T) {
	ext := ClassifyRules("my phone number is 9876543210")
	assert.Equal(t, TypePhone, ext.DataType)
	assert.Equal(t, "9876543210", ext.Content)

	ext = ClassifyRules("I changed my number recently")
	assert.Equal(t, TypePhone, ext.DataType)
	assert.Equal(t, "phone number mentioned", ext.Content)
}

func TestClassifyRules_Name(t *testing.T) {
	assert.Equal(t, "John Smith", ClassifyRules("My name is John Smith").Content)
	assert.Equal(t, "Neha", ClassifyRules("I'm Neha!").Content)
	assert.Equal(t, TypeName, ClassifyRules("i am Ravi").DataType)
}

func TestClassifyRules_ArticleSendsSelfIntroToWork(t *testing.T) {
	ext := ClassifyRules("I am a software engineer")
	assert.Equal(t, TypeWork, ext.DataType)
	assert.Equal(t, "software engineer", ext.Content)

	ext = ClassifyRules("I'm an architect.")
	assert.Equal(t, TypeWork, ext.DataType)
	assert.Equal(t, "architect", ext.Content)
}

func TestClassifyRules_Work(t *testing.T) {
	ext := ClassifyRules("I work as a nurse at the city hospital")
	assert.Equal(t, TypeWork, ext.DataType)
	assert.Equal(t, "a nurse at the city hospital", ext.Content)

	ext = ClassifyRules("I work at a school")
	assert.Equal(t, TypeWork, ext.DataType)
	assert.Equal(t, "work mentioned", ext.Content)
}

func TestClassifyRules_Trip(t *testing.T) {
	ext := ClassifyRules("Can you remember my next trip to the US on 18th Dec?")
	assert.Equal(t, TypeTrip, ext.DataType)
	assert.Equal(t, "the US on 18th Dec", ext.Content)
	assert.Equal(t, "18th Dec", ext.Date)
}

func TestClassifyRules_OtherKeepsTextVerbatim(t *testing.T) {
	ext := ClassifyRules("the weather is nice today")
	assert.Equal(t, TypeOther, ext.DataType)
	assert.Equal(t, SelfSubject, ext.Subject)
	assert.Equal(t, "the weather is nice today", ext.Content)
	assert.Empty(t, ext.Keywords)
}

func TestClassifyRules_Precedence(t *testing.T) {
	cases := []struct {
		text string
		want DataType
	}{
		{"my birthday is 1st May and my number is 9876543210", TypeBirthday},
		{"my phone number is 9876543210 and I like tea", TypePhone},
		{"my name is Asha and I love tea", TypeName},
		{"I love my job", TypePreference},
		{"my job is a trip planner", TypeWork},
		{"planning a trip to Goa", TypeTrip},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ClassifyRules(tc.text).DataType, tc.text)
	}
}

func TestClassifyRules_Deterministic(t *testing.T) {
	inputs := []string{"Adam's birthday is on 8th August", "I like pineapple", "random words"}
	for _, in := range inputs {
		assert.Equal(t, ClassifyRules(in), ClassifyRules(in))
	}
}

func TestRuleClassifier_ImplementsClassifier(t *testing.T) {
	var c Classifier = NewRuleClassifier()
	assert.Equal(t, TypePreference, c.Classify(context.Background(), "I love pizza").DataType)
}
