package registry

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dgallion1/protorefine/internal/tei"
)

// Kind selects how role columns are shaped on load.
type Kind int

const (
	KindMember Kind = iota
	KindMinister
	KindSpeaker
)

// Registry file names inside a metadata directory.
const (
	MembersFile   = "member_of_parliament.csv"
	MinistersFile = "minister.csv"
	SpeakersFile  = "speaker.csv"
	PartiesFile   = "party_abbreviation.csv"
)

// LoadCSV reads a registry table. Columns are located by header name:
// person_id, name, start, end, role are expected; chamber, party,
// party_abbrev, gender and specifier (or location) are optional.
func LoadCSV(r io.Reader, kind Kind) (Table, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse registry csv: %w", err)
	}
	if len(records) == 0 {
		return Table{}, nil
	}

	cols := make(map[string]int, len(records[0]))
	for i, h := range records[0] {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, required := range []string{"person_id", "name"} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("parse registry csv: missing column %q", required)
		}
	}
	get := func(row []string, names ...string) string {
		for _, name := range names {
			if i, ok := cols[name]; ok && i < len(row) {
				return strings.TrimSpace(row[i])
			}
		}
		return ""
	}

	table := make(Table, 0, len(records)-1)
	for line, row := range records[1:] {
		start, err := ParseDate(get(row, "start"), true)
		if err != nil {
			return nil, fmt.Errorf("parse registry csv: row %d: %w", line+2, err)
		}
		end, err := ParseDate(get(row, "end"), false)
		if err != nil {
			return nil, fmt.Errorf("parse registry csv: row %d: %w", line+2, err)
		}

		rec := Record{
			PersonID:    get(row, "person_id"),
			Name:        NormalizeName(get(row, "name")),
			Start:       start,
			End:         end,
			Party:       get(row, "party"),
			PartyAbbrev: strings.ToLower(get(row, "party_abbrev")),
			Role:        get(row, "role"),
			Gender:      strings.ToLower(get(row, "gender")),
			Specifier:   NormalizeName(get(row, "specifier", "location")),
		}
		if c := get(row, "chamber"); c != "" {
			n, err := strconv.Atoi(c)
			if err != nil {
				return nil, fmt.Errorf("parse registry csv: row %d: chamber %q: %w", line+2, c, err)
			}
			rec.Chamber = tei.Chamber(n)
		} else if kind != KindMinister {
			rec.Chamber = InferChamber(rec.Role)
		}

		switch kind {
		case KindMinister:
			rec.Role = MinisterRole(rec.Role)
		case KindSpeaker:
			rec.Role = SpeakerRole(rec.Role)
		default:
			rec.Role = strings.ToLower(rec.Role)
		}
		table = append(table, rec)
	}
	return table, nil
}

// LoadParties reads party,abbreviation rows into a PartyMap keyed by the
// lower-cased abbreviation.
func LoadParties(r io.Reader) (PartyMap, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse party csv: %w", err)
	}
	pm := PartyMap{}
	if len(records) == 0 {
		return pm, nil
	}
	partyCol, abbrevCol := 0, 1
	for i, h := range records[0] {
		switch strings.ToLower(strings.TrimSpace(h)) {
		case "party":
			partyCol = i
		case "abbreviation":
			abbrevCol = i
		}
	}
	for _, row := range records[1:] {
		if partyCol >= len(row) || abbrevCol >= len(row) {
			continue
		}
		abbrev := strings.ToLower(strings.TrimSpace(row[abbrevCol]))
		if abbrev == "" {
			continue
		}
		pm[abbrev] = strings.TrimSpace(row[partyCol])
	}
	return pm, nil
}

// LoadDir loads every registry file found in dir. Missing files yield
// empty tables; resolvers skip empty registries.
func LoadDir(dir string) (Tables, error) {
	var t Tables
	var err error

	if t.Members, err = loadFile(filepath.Join(dir, MembersFile), KindMember); err != nil {
		return Tables{}, err
	}
	if t.Ministers, err = loadFile(filepath.Join(dir, MinistersFile), KindMinister); err != nil {
		return Tables{}, err
	}
	if t.Speakers, err = loadFile(filepath.Join(dir, SpeakersFile), KindSpeaker); err != nil {
		return Tables{}, err
	}

	f, err := os.Open(filepath.Join(dir, PartiesFile))
	switch {
	case errors.Is(err, os.ErrNotExist):
		t.Parties = PartyMap{}
	case err != nil:
		return Tables{}, fmt.Errorf("open %s: %w", PartiesFile, err)
	default:
		defer f.Close()
		if t.Parties, err = LoadParties(f); err != nil {
			return Tables{}, err
		}
	}
	return t, nil
}

func loadFile(path string, kind Kind) (Table, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return Table{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", filepath.Base(path), err)
	}
	defer f.Close()
	t, err := LoadCSV(f, kind)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return t, nil
}

// ParseDate parses YYYY, YYYY-MM or YYYY-MM-DD. Partial dates widen to the
// start of the period when start is true and to the end otherwise. End
// dates are returned exclusive (the day after the last valid day). An
// empty string yields the zero time (open interval).
func ParseDate(s string, start bool) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "nan") {
		return time.Time{}, nil
	}
	var t time.Time
	var err error
	switch len(s) {
	case 4:
		t, err = time.Parse("2006", s)
		if err == nil && !start {
			t = t.AddDate(1, 0, 0)
		}
	case 7:
		t, err = time.Parse("2006-01", s)
		if err == nil && !start {
			t = t.AddDate(0, 1, 0)
		}
	default:
		t, err = time.Parse("2006-01-02", s)
		if err == nil && !start {
			t = t.AddDate(0, 0, 1)
		}
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return t, nil
}
