package store

import (
	"context"

	"github.com/dotsetgreg/factkeeper/pkg/facts"
)

// Profile is the aggregated view of one sender's stored facts.
type Profile struct {
	PhoneNumber  string   `json:"phoneNumber"`
	Name         *string  `json:"name"`
	Preferences  []string `json:"preferences"`
	PersonalInfo []string `json:"personalInfo"`
	Interests    []string `json:"interests"`
	ContactInfo  []string `json:"contactInfo"`
}

// Profile groups the sender's facts, newest first within each group.
// The name is the current self name; third-party facts land in
// PersonalInfo.
func (s *FactStore) Profile(ctx context.Context, subjectKey string) Profile {
	p := Profile{
		PhoneNumber:  subjectKey,
		Preferences:  []string{},
		PersonalInfo: []string{},
		Interests:    []string{},
		ContactInfo:  []string{},
	}

	for _, f := range s.All(ctx, subjectKey) {
		if !f.IsSelf() {
			p.PersonalInfo = append(p.PersonalInfo, f.Person+"'s "+f.DataType.Label()+": "+f.Content)
			continue
		}
		switch f.DataType {
		case facts.TypeName:
			if p.Name == nil {
				name := f.Content
				p.Name = &name
			}
		case facts.TypePreference:
			p.Preferences = append(p.Preferences, f.Content)
		case facts.TypeIdentity:
			p.Interests = append(p.Interests, f.Content)
		case facts.TypeBirthday, facts.TypePhone:
			p.ContactInfo = append(p.ContactInfo, string(f.DataType)+": "+f.Content)
		default:
			p.PersonalInfo = append(p.PersonalInfo, f.Content)
		}
	}
	return p
}
