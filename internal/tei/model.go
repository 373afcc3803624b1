package tei

import (
	"strings"

	"github.com/beevik/etree"
)

// Unknown is the speaker value for utterances that cannot be attributed.
const Unknown = "unknown"

// Note subtypes carried in the TEI "type" attribute.
const (
	SubtypeSpeaker = "speaker"
	SubtypeDate    = "date"
	SubtypeTitle   = "title"
)

// CommentSection is the div type of sections where no speech occurs.
const CommentSection = "commentSection"

// Kind classifies a content node under a body section.
type Kind int

const (
	KindUnknown Kind = iota
	KindUtterance
	KindNote
	KindPageBreak
)

func (k Kind) String() string {
	switch k {
	case KindUtterance:
		return "u"
	case KindNote:
		return "note"
	case KindPageBreak:
		return "pb"
	}
	return "unknown"
}

// Chamber is the legislative house a protocol or registry record belongs to.
type Chamber int

const (
	ChamberNone   Chamber = iota // unicameral era or no affiliation
	ChamberFirst                 // Första kammaren
	ChamberSecond                // Andra kammaren
)

// Attr is an attribute the model does not interpret but must write back.
type Attr struct {
	Key   string
	Value string
}

// Segment is one text segment of an utterance.
type Segment struct {
	ID     string
	Text   string
	Inline Inline
	Extra  []Attr
}

// Node is a content node: an utterance, a note, a page break, or an
// unrecognised element kept verbatim.
type Node struct {
	Kind Kind
	ID   string

	// Utterance
	Who      string
	Prev     string
	Next     string
	Segments []*Segment

	// Note
	Type   string
	Text   string
	Inline Inline

	// PageBreak
	Facs string

	Extra []Attr

	raw *etree.Element
}

// NewNote returns a note with the given subtype and text.
func NewNote(subtype, text string) *Node {
	return &Node{Kind: KindNote, Type: subtype, Text: text}
}

// NewUtterance returns an utterance holding one segment per text.
func NewUtterance(who string, texts ...string) *Node {
	u := &Node{Kind: KindUtterance, Who: who}
	for _, t := range texts {
		u.Segments = append(u.Segments, &Segment{Text: t})
	}
	return u
}

// NewPageBreak returns a page break pointing at a page image.
func NewPageBreak(facs string) *Node {
	return &Node{Kind: KindPageBreak, Facs: facs}
}

// Tag returns the element name of an unrecognised node, or the TEI tag
// of a recognised one.
func (n *Node) Tag() string {
	if n.raw != nil {
		return n.raw.Tag
	}
	return n.Kind.String()
}

// PlainText returns the note text or the utterance segments joined by a space.
func (n *Node) PlainText() string {
	switch n.Kind {
	case KindNote:
		return n.Text
	case KindUtterance:
		parts := make([]string, 0, len(n.Segments))
		for _, s := range n.Segments {
			parts = append(parts, s.Text)
		}
		return strings.Join(parts, " ")
	}
	return ""
}

// Section is a body div.
type Section struct {
	Type  string
	Nodes []*Node

	el *etree.Element
}

// IsComment reports whether the section holds procedural notes only.
func (s *Section) IsComment() bool {
	return s.Type == CommentSection
}

// Metadata is document-level information inferred from the protocol id.
type Metadata struct {
	Protocol      string
	DocumentType  string
	Year          int
	SecondaryYear int
	Chamber       Chamber
	ChamberName   string
	Number        int
}

// Document is one parsed transcript.
type Document struct {
	Metadata

	// Dates are the declared session dates (YYYY-MM-DD).
	Dates []string

	Sections []*Section

	raw *etree.Document
}

// Years returns the calendar years the protocol covers.
func (d *Document) Years() []int {
	if d.SecondaryYear != 0 && d.SecondaryYear != d.Year {
		return []int{d.Year, d.SecondaryYear}
	}
	return []int{d.Year}
}

// LastYear is the secondary year when present, otherwise the year.
func (d *Document) LastYear() int {
	if d.SecondaryYear != 0 {
		return d.SecondaryYear
	}
	return d.Year
}

// PageImageURL returns the facs of the first page break, or "".
func (d *Document) PageImageURL() string {
	for _, s := range d.Sections {
		for _, n := range s.Nodes {
			if n.Kind == KindPageBreak {
				return n.Facs
			}
		}
	}
	return ""
}

// AddSection appends a new body section.
func (d *Document) AddSection(typ string) *Section {
	s := &Section{Type: typ}
	d.Sections = append(d.Sections, s)
	return s
}
