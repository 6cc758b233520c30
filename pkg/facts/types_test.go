package facts

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLatest_SelfAndOtherSeriesDoNotCollide(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	all := []Fact{
		{ID: "self-1", DataType: TypeBirthday, Subject: SelfSubject, Content: "15th September", CreatedAt: base},
		{ID: "adam-1", DataType: TypeBirthday, Subject: "Adam", Person: "Adam", Content: "8th August", CreatedAt: base.Add(time.Minute)},
		{ID: "name-1", DataType: TypeName, Subject: SelfSubject, Content: "Neha", CreatedAt: base.Add(2 * time.Minute)},
	}

	self, ok := Latest(all, TypeBirthday, "")
	assert.True(t, ok)
	assert.Equal(t, "self-1", self.ID)

	adam, ok := Latest(all, TypeBirthday, "adam")
	assert.True(t, ok)
	assert.Equal(t, "adam-1", adam.ID)

	_, ok = Latest(all, TypePhone, "")
	assert.False(t, ok)
}

func TestLatest_PicksGreatestCreatedAt(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	all := []Fact{
		{ID: "b", DataType: TypeBirthday, Content: "2nd June", CreatedAt: base.Add(time.Hour)},
		{ID: "a", DataType: TypeBirthday, Content: "26th February", CreatedAt: base},
	}
	f, _ := Latest(all, TypeBirthday, "")
	assert.Equal(t, "2nd June", f.Content)
}

func TestFromExtraction_PersonInvariant(t *testing.T) {
	self := FromExtraction(sender, Extraction{DataType: TypeName, Subject: SelfSubject, Person: "ignored", Content: "Neha"}, Metadata{})
	assert.Equal(t, SelfSubject, self.Subject)
	assert.Empty(t, self.Person)

	other := FromExtraction(sender, Extraction{DataType: TypeBirthday, Subject: "Adam", Content: "8th August", Keywords: []string{"Birthday", "birthday", " "}}, Metadata{})
	assert.Equal(t, "Adam", other.Person)
	assert.Equal(t, []string{"birthday"}, other.Keywords)
}

func TestStorageKey(t *testing.T) {
	assert.Equal(t, "15551234567_birthday", StorageKey("15551234567", TypeBirthday, ""))
	assert.Equal(t, "15551234567_birthday_Adam", StorageKey("15551234567", TypeBirthday, "Adam"))
}

func TestDataType_Personal(t *testing.T) {
	assert.True(t, TypeEvent.Personal())
	assert.False(t, TypeOther.Personal())
	assert.False(t, DataType("colour").Personal())
	_, ok := ParseDataType(" Birthday ")
	assert.True(t, ok)
}

func TestAcknowledge(t *testing.T) {
	assert.Equal(t, "gotcha, your birthday is 15th September", Acknowledge(Extraction{DataType: TypeBirthday, Subject: SelfSubject, Content: "15th September"}))
	assert.Equal(t, "gotcha, Adam's birthday is 8th August", Acknowledge(Extraction{DataType: TypeBirthday, Subject: "Adam", Person: "Adam", Content: "8th August"}))
	assert.Equal(t, "gotcha, you like pineapple", Acknowledge(Extraction{DataType: TypePreference, Content: "pineapple"}))
	assert.Equal(t, "Adam's phone number", Subjective(Extraction{DataType: TypePhone, Subject: "Adam", Person: "Adam"}))
}
