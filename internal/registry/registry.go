// Package registry holds the time-bounded biographical tables (members,
// ministers, presiding officers) that speaker announcements resolve against.
package registry

import (
	"errors"
	"time"

	"github.com/dgallion1/protorefine/internal/tei"
)

// ErrMalformed marks a record that cannot take part in matching.
var ErrMalformed = errors.New("registry: malformed record")

// Record is one validity interval of a person in a role.
type Record struct {
	PersonID    string
	Name        string // normalised, see NormalizeName
	Start       time.Time
	End         time.Time // zero means open-ended
	Chamber     tei.Chamber
	Party       string
	PartyAbbrev string
	Role        string
	Gender      string
	Specifier   string
}

// Validate reports ErrMalformed for records missing an identity or name.
func (r Record) Validate() error {
	if r.PersonID == "" || r.Name == "" {
		return ErrMalformed
	}
	return nil
}

// Overlaps reports whether the record is valid at some point in [start, end].
func (r Record) Overlaps(start, end time.Time) bool {
	if !r.Start.IsZero() && r.Start.After(end) {
		return false
	}
	if !r.End.IsZero() && !r.End.After(start) {
		return false
	}
	return true
}

// Table is an ordered set of records.
type Table []Record

// Overlapping returns a new table with the records valid inside [start, end].
func (t Table) Overlapping(start, end time.Time) Table {
	out := make(Table, 0, len(t))
	for _, r := range t {
		if r.Overlaps(start, end) {
			out = append(out, r)
		}
	}
	return out
}

// Partition splits the table into records of the given chamber and the rest.
func (t Table) Partition(ch tei.Chamber) (primary, secondary Table) {
	primary = make(Table, 0, len(t))
	secondary = make(Table, 0)
	for _, r := range t {
		if r.Chamber == ch {
			primary = append(primary, r)
		} else {
			secondary = append(secondary, r)
		}
	}
	return primary, secondary
}

// PartyMap maps party abbreviations ("s", "h", "fp") to party names.
type PartyMap map[string]string

// Tables bundles the registries consumed for one document.
type Tables struct {
	Members   Table
	Ministers Table
	Speakers  Table
	Parties   PartyMap
}

// ForWindow returns tables restricted to records overlapping [start, end].
// The result shares no slices with t.
func (t Tables) ForWindow(start, end time.Time) Tables {
	return Tables{
		Members:   t.Members.Overlapping(start, end),
		Ministers: t.Ministers.Overlapping(start, end),
		Speakers:  t.Speakers.Overlapping(start, end),
		Parties:   t.Parties,
	}
}
