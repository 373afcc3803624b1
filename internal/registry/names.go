package registry

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"

	"github.com/dgallion1/protorefine/internal/tei"
)

// NormalizeName folds a person name for comparison: NFC, Swedish lower
// case, hyphens as spaces, letters only, single spaces.
func NormalizeName(s string) string {
	s = norm.NFC.String(s)
	s = cases.Lower(language.Swedish).String(s)
	s = strings.ReplaceAll(s, "-", " ")
	var b strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsSpace(r) {
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// Surname returns the last token of a normalised name.
func Surname(name string) string {
	fields := strings.Fields(name)
	if len(fields) == 0 {
		return ""
	}
	return fields[len(fields)-1]
}

var (
	chamberRoleRe = regexp.MustCompile(`([a-zåäö]+)\s*kammar`)
	speakerRoleRe = regexp.MustCompile(`(andre |förste |tredje )?(vice )?talman`)
)

// InferChamber reads the chamber from role text such as
// "ledamot av första kammaren".
func InferChamber(role string) tei.Chamber {
	m := chamberRoleRe.FindStringSubmatch(strings.ToLower(role))
	if m == nil {
		return tei.ChamberNone
	}
	switch m[1] {
	case "första":
		return tei.ChamberFirst
	case "andra":
		return tei.ChamberSecond
	}
	return tei.ChamberNone
}

// MinisterRole lower-cases a minister role and drops the "Sveriges " prefix.
func MinisterRole(role string) string {
	role = strings.ReplaceAll(role, "Sveriges ", "")
	return strings.TrimSpace(cases.Lower(language.Swedish).String(role))
}

// SpeakerRole reduces a presiding-officer role to "talman",
// "förste vice talman", "andre vice talman" and so on.
func SpeakerRole(role string) string {
	role = cases.Lower(language.Swedish).String(role)
	if m := speakerRoleRe.FindString(role); m != "" {
		return m
	}
	return strings.TrimSpace(role)
}
