package facts

import "fmt"

// Acknowledge renders the "gotcha, ..." reply sent after a fact is stored.
func Acknowledge(e Extraction) string {
	data := e.Content
	if e.IsSelf() {
		switch e.DataType {
		case TypeBirthday:
			return fmt.Sprintf("gotcha, your birthday is %s", data)
		case TypePhone:
			return fmt.Sprintf("gotcha, your phone number is %s", data)
		case TypeName:
			return fmt.Sprintf("gotcha, your name is %s", data)
		case TypePreference:
			return fmt.Sprintf("gotcha, you like %s", data)
		case TypeTrip:
			return fmt.Sprintf("gotcha, your trip is %s", data)
		case TypeWork:
			return fmt.Sprintf("gotcha, you work as %s", data)
		default:
			return fmt.Sprintf("gotcha, %s", data)
		}
	}

	person := e.Person
	if person == "" {
		person = e.Subject
	}
	switch e.DataType {
	case TypeBirthday:
		return fmt.Sprintf("gotcha, %s's birthday is %s", person, data)
	case TypePhone:
		return fmt.Sprintf("gotcha, %s's phone number is %s", person, data)
	case TypeName:
		return fmt.Sprintf("gotcha, %s's name is %s", person, data)
	case TypePreference:
		return fmt.Sprintf("gotcha, %s likes %s", person, data)
	default:
		return fmt.Sprintf("gotcha, %s's %s is %s", person, e.DataType, data)
	}
}

// Subjective names the series for a reply: "birthday" for self,
// "Adam's birthday" otherwise.
func Subjective(e Extraction) string {
	if e.IsSelf() {
		return e.DataType.Label()
	}
	person := e.Person
	if person == "" {
		person = e.Subject
	}
	return person + "'s " + e.DataType.Label()
}
