package intro

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/dgallion1/protorefine/internal/registry"
)

// Guess is the structured reading of an announcement. Every field may be
// empty.
type Guess struct {
	Name      string `json:"name,omitempty"` // normalised
	Role      string `json:"role,omitempty"`
	Other     string `json:"other,omitempty"`
	Party     string `json:"party,omitempty"` // lower-cased abbreviation
	Gender    string `json:"gender,omitempty"`
	Specifier string `json:"specifier,omitempty"`
}

// IsMinister reports whether the role names a ministerial office.
func (g Guess) IsMinister() bool {
	return strings.Contains(g.Role, "statsråd") || strings.Contains(g.Role, "minister")
}

// IsSpeaker reports whether the role names a presiding officer.
func (g Guess) IsSpeaker() bool {
	return strings.Contains(g.Role, "talman")
}

var (
	partyRe     = regexp.MustCompile(`\(\s*([\p{L}.]{1,8})\s*\)`)
	roleRe      = regexp.MustCompile(`(?i)(?:^| )((?:förste |andre |tredje )?(?:vice )?talman(?:nen)?|statsrådet|statsråd|\p{L}*ministern|\p{L}*minister)(?: |$)`)
	specifierRe = regexp.MustCompile(`(?:^| )i (\p{Lu}[\p{L}\-]*(?: \p{Lu}[\p{L}\-]*)*)`)
)

var honorifics = map[string]string{
	"herr":   "man",
	"hr":     "man",
	"fru":    "woman",
	"fröken": "woman",
	"frk":    "woman",
}

// Parse reads an announcement such as "Herr LINDMAN i Stockholm (h):".
// Only the text before the first colon is considered.
func Parse(text string) Guess {
	var g Guess
	if i := strings.IndexByte(text, ':'); i >= 0 {
		text = text[:i]
	}
	text = collapse(text)
	lower := cases.Lower(language.Swedish)

	if m := partyRe.FindStringSubmatchIndex(text); m != nil {
		g.Party = strings.Trim(lower.String(text[m[2]:m[3]]), ".")
		text = text[:m[0]] + text[m[1]:]
	}

	fields := strings.Fields(text)
	if len(fields) > 0 {
		if gender, ok := honorifics[strings.TrimSuffix(lower.String(fields[0]), ".")]; ok {
			g.Gender = gender
			fields = fields[1:]
		}
	}
	text = strings.Join(fields, " ")

	if m := roleRe.FindStringSubmatchIndex(text); m != nil {
		g.Role = roleLabel(lower.String(text[m[2]:m[3]]))
		text = collapse(text[:m[0]] + " " + text[m[1]:])
	}

	if m := specifierRe.FindStringSubmatchIndex(text); m != nil {
		g.Specifier = registry.NormalizeName(text[m[2]:m[3]])
		text = collapse(text[:m[0]] + " " + text[m[1]:])
	}

	var name, other []string
	for _, f := range strings.Fields(text) {
		if len(other) == 0 && startsUpper(f) {
			name = append(name, f)
			continue
		}
		other = append(other, f)
	}
	g.Name = registry.NormalizeName(strings.Join(name, " "))
	g.Other = strings.Trim(strings.Join(other, " "), " ,.")
	return g
}

// roleLabel maps definite forms to registry labels: "talmannen" to
// "talman", "statsrådet" to "statsråd", "finansministern" to "finansminister".
func roleLabel(role string) string {
	switch {
	case strings.HasSuffix(role, "talmannen"):
		return strings.TrimSuffix(role, "nen")
	case role == "statsrådet":
		return "statsråd"
	case strings.HasSuffix(role, "ministern"):
		return strings.TrimSuffix(role, "n")
	}
	return role
}

func startsUpper(s string) bool {
	for _, r := range s {
		return unicode.IsUpper(r)
	}
	return false
}
