package attribute

import (
	"errors"
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/dgallion1/protorefine/internal/intro"
	"github.com/dgallion1/protorefine/internal/registry"
)

// ErrNoRegistry is returned by a resolver whose registry holds no records.
var ErrNoRegistry = errors.New("attribute: registry is empty")

// Query is the input shared by every resolver.
type Query struct {
	intro.Guess
	Text string
}

// Resolver is one strategy of the resolution cascade. Resolve returns ""
// when nothing matches; an error means the strategy could not run and the
// cascade moves on.
type Resolver interface {
	Name() string
	Applies(q Query) bool
	Resolve(q Query) (string, error)
}

// MinisterResolver matches ministerial announcements.
type MinisterResolver struct {
	Ministers registry.Table
}

func (r *MinisterResolver) Name() string { return "minister" }

func (r *MinisterResolver) Applies(q Query) bool { return q.IsMinister() }

func (r *MinisterResolver) Resolve(q Query) (string, error) {
	valid, err := usable(r.Ministers)
	if err != nil {
		return "", err
	}
	generic := q.Role == "" || q.Role == "statsråd"
	var cands registry.Table
	for _, rec := range valid {
		if q.Name != "" && !nameMatches(rec.Name, q.Name) {
			continue
		}
		if !generic && !strings.Contains(rec.Role, q.Role) {
			continue
		}
		cands = append(cands, rec)
	}
	if q.Name == "" && generic {
		return "", nil
	}
	return unique(cands), nil
}

// SpeakerResolver matches presiding-officer announcements against the
// speakers of the document's own chamber.
type SpeakerResolver struct {
	Speakers registry.Table
}

func (r *SpeakerResolver) Name() string { return "speaker" }

func (r *SpeakerResolver) Applies(q Query) bool { return q.IsSpeaker() }

func (r *SpeakerResolver) Resolve(q Query) (string, error) {
	valid, err := usable(r.Speakers)
	if err != nil {
		return "", err
	}
	var cands registry.Table
	for _, rec := range valid {
		if rec.Role != q.Role {
			continue
		}
		if q.Name != "" && !nameMatches(rec.Name, q.Name) {
			continue
		}
		cands = append(cands, rec)
	}
	return unique(cands), nil
}

// MemberResolver matches named announcements against members, trying
// the document's chamber before the other one. Approximate surname
// matching is used only when Fuzzy is set.
type MemberResolver struct {
	Primary   registry.Table
	Secondary registry.Table
	Parties   registry.PartyMap
	Fuzzy     bool
	// MaxDistance bounds the surname edit distance in fuzzy mode.
	MaxDistance int
}

func (r *MemberResolver) Name() string { return "member" }

func (r *MemberResolver) Applies(q Query) bool { return q.Name != "" }

func (r *MemberResolver) Resolve(q Query) (string, error) {
	if len(r.Primary) == 0 && len(r.Secondary) == 0 {
		return "", ErrNoRegistry
	}
	var lastErr error
	for _, table := range []registry.Table{r.Primary, r.Secondary} {
		valid, err := usable(table)
		if err != nil {
			lastErr = err
			continue
		}
		if id := r.match(valid, q, nameMatches); id != "" {
			return id, nil
		}
		if r.Fuzzy {
			if id := r.match(valid, q, r.fuzzyMatches); id != "" {
				return id, nil
			}
		}
	}
	if lastErr != nil && !errors.Is(lastErr, ErrNoRegistry) {
		return "", lastErr
	}
	return "", nil
}

func (r *MemberResolver) match(table registry.Table, q Query, same func(record, guess string) bool) string {
	var cands registry.Table
	for _, rec := range table {
		if same(rec.Name, q.Name) {
			cands = append(cands, rec)
		}
	}
	if id := unique(cands); id != "" || len(cands) == 0 {
		return id
	}

	// Several people share the name: narrow by whatever the announcement adds.
	if q.Party != "" {
		cands = narrow(cands, func(rec registry.Record) bool { return r.sameParty(rec, q.Party) })
	}
	if q.Specifier != "" {
		cands = narrow(cands, func(rec registry.Record) bool { return rec.Specifier == q.Specifier })
	}
	if q.Gender != "" {
		cands = narrow(cands, func(rec registry.Record) bool { return rec.Gender == q.Gender })
	}
	return unique(cands)
}

func (r *MemberResolver) sameParty(rec registry.Record, abbrev string) bool {
	if rec.PartyAbbrev != "" {
		return rec.PartyAbbrev == abbrev
	}
	name, ok := r.Parties[abbrev]
	return ok && strings.EqualFold(name, rec.Party)
}

func (r *MemberResolver) fuzzyMatches(record, guess string) bool {
	limit := r.MaxDistance
	if limit <= 0 {
		limit = 1
	}
	a, b := registry.Surname(record), registry.Surname(guess)
	if len([]rune(b)) < 4 {
		return false
	}
	return levenshtein.ComputeDistance(a, b) <= limit
}

// nameMatches compares normalised names. A single-token guess matches on
// surname; longer guesses need the same surname and given names that
// prefix the record's (initials included).
func nameMatches(record, guess string) bool {
	if record == guess {
		return true
	}
	rf, gf := strings.Fields(record), strings.Fields(guess)
	if len(rf) == 0 || len(gf) == 0 || rf[len(rf)-1] != gf[len(gf)-1] {
		return false
	}
	given := rf[:len(rf)-1]
	for _, g := range gf[:len(gf)-1] {
		found := false
		for _, r := range given {
			if strings.HasPrefix(r, g) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// usable drops malformed records. It fails when nothing usable remains.
func usable(t registry.Table) (registry.Table, error) {
	if len(t) == 0 {
		return nil, ErrNoRegistry
	}
	out := make(registry.Table, 0, len(t))
	for _, rec := range t {
		if rec.Validate() == nil {
			out = append(out, rec)
		}
	}
	if len(out) == 0 {
		return nil, registry.ErrMalformed
	}
	return out, nil
}

func narrow(t registry.Table, keep func(registry.Record) bool) registry.Table {
	var out registry.Table
	for _, rec := range t {
		if keep(rec) {
			out = append(out, rec)
		}
	}
	if len(out) == 0 {
		return t
	}
	return out
}

// unique returns the person id shared by every candidate, or "".
func unique(t registry.Table) string {
	if len(t) == 0 {
		return ""
	}
	id := t[0].PersonID
	for _, rec := range t[1:] {
		if rec.PersonID != id {
			return ""
		}
	}
	return id
}
