package conversation

import "strings"

// Language is a translation target offered to senders.
type Language struct {
	Name string
	Code string
}

// Languages is the fixed catalogue, in prompt order.
var Languages = []Language{
	{Name: "Arabic", Code: "ar"},
	{Name: "English", Code: "en"},
	{Name: "Spanish", Code: "es"},
	{Name: "French", Code: "fr"},
	{Name: "German", Code: "de"},
}

// LookupLanguage resolves a display name case-insensitively.
// Surrounding whitespace is ignored; anything else must match exactly.
func LookupLanguage(input string) (Language, bool) {
	name := strings.TrimSpace(input)
	for _, l := range Languages {
		if strings.EqualFold(name, l.Name) {
			return l, true
		}
	}
	return Language{}, false
}

// LanguageByCode returns the catalogue entry for an ISO code.
func LanguageByCode(code string) (Language, bool) {
	for _, l := range Languages {
		if l.Code == code {
			return l, true
		}
	}
	return Language{}, false
}

func languageNames() string {
	names := make([]string, len(Languages))
	for i, l := range Languages {
		names[i] = l.Name
	}
	return strings.Join(names, ", ")
}
