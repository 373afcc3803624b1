package parser

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/dgallion1/protorefine/internal/tei"
)

// CSVParser handles tabular transcript exports with a header row. The
// "text" column is required; "kind" (note, u, pb, title) and "who" are
// optional. Rows without a kind become notes.
type CSVParser struct{}

func (p *CSVParser) Parse(r io.Reader, filename string) (*tei.Document, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}

	b := newBuilder(filename)
	if len(records) == 0 {
		return b.document(), nil
	}

	cols := map[string]int{}
	for i, h := range records[0] {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	if _, ok := cols["text"]; !ok {
		return nil, fmt.Errorf("parse csv: missing column %q", "text")
	}
	get := func(row []string, name string) string {
		if i, ok := cols[name]; ok && i < len(row) {
			return strings.TrimSpace(row[i])
		}
		return ""
	}

	for _, row := range records[1:] {
		text := get(row, "text")
		switch strings.ToLower(get(row, "kind")) {
		case "u", "utterance":
			b.utterance(get(row, "who"), text)
		case "pb", "page":
			b.pageBreak(text)
		case "title", "heading":
			b.heading(text)
		case tei.SubtypeSpeaker:
			if text = collapse(text); text != "" {
				s := b.section()
				s.Nodes = append(s.Nodes, tei.NewNote(tei.SubtypeSpeaker, text))
			}
		default:
			b.paragraph(text)
		}
	}
	return b.document(), nil
}
