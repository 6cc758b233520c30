package facts

import "strings"

// connectivePrefixes lists, per type, the lead-in phrasing stripped before a
// stored value is rendered. Longer phrases come first so "my birthday is on"
// wins over "my birthday is".
var connectivePrefixes = map[DataType][]string{
	TypeBirthday:   {"my birthday is on", "my birthday is", "i was born on", "i was born", "born on"},
	TypePhone:      {"my phone number is", "my number is", "phone number is"},
	TypeName:       {"my name is", "i am", "i'm", "call me"},
	TypePreference: {"i really like", "i really love", "i like", "i love", "i prefer"},
	TypeWork:       {"i work as an", "i work as a", "i work as", "i am an", "i am a", "i'm an", "i'm a"},
	TypeIdentity:   {"i am an", "i am a", "i'm an", "i'm a", "i am", "i'm"},
	TypeTrip:       {"my next trip is to", "my trip is to", "i am travelling to", "i'm travelling to"},
}

// CleanContent strips one known connective prefix for t, case-insensitively.
func CleanContent(t DataType, content string) string {
	trimmed := strings.TrimSpace(content)
	for _, prefix := range connectivePrefixes[t] {
		n := len(prefix)
		if len(trimmed) <= n || trimmed[n] != ' ' {
			continue
		}
		if strings.EqualFold(trimmed[:n], prefix) {
			return strings.TrimSpace(trimmed[n:])
		}
	}
	return trimmed
}
