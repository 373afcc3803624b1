package parser

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/dgallion1/protorefine/internal/tei"
)

// Parser converts an uploaded transcript into a TEI document.
type Parser interface {
	Parse(r io.Reader, filename string) (*tei.Document, error)
}

// SupportedExtensions lists file extensions this service can handle.
var SupportedExtensions = map[string]bool{
	".xml":  true,
	".txt":  true,
	".md":   true,
	".csv":  true,
	".html": true,
	".htm":  true,
	".pdf":  true,
	".docx": true,
}

// ForFile returns the appropriate parser for a filename.
func ForFile(filename string) (Parser, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".xml":
		return &TEIParser{}, nil
	case ".txt":
		return &TextParser{}, nil
	case ".md", ".markdown":
		return &MarkdownParser{}, nil
	case ".csv":
		return &CSVParser{}, nil
	case ".html", ".htm":
		return &HTMLParser{}, nil
	case ".pdf":
		return &PDFParser{}, nil
	case ".docx":
		return &DOCXParser{}, nil
	default:
		return nil, fmt.Errorf("unsupported file extension: %s", ext)
	}
}

// IsSupportedExtension checks if a file extension is supported.
func IsSupportedExtension(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return SupportedExtensions[ext]
}

// TEIParser reads transcripts that are already TEI encoded.
type TEIParser struct{}

func (p *TEIParser) Parse(r io.Reader, filename string) (*tei.Document, error) {
	return tei.Decode(r, filename)
}

// builder assembles an imported transcript. Headings open a new section
// with a title note; text before the first heading goes into an untitled
// section.
type builder struct {
	doc *tei.Document
	sec *tei.Section
}

const sectionType = "debateSection"

func newBuilder(filename string) *builder {
	return &builder{doc: tei.New(tei.InferMetadata(filename))}
}

func (b *builder) section() *tei.Section {
	if b.sec == nil {
		b.sec = b.doc.AddSection(sectionType)
	}
	return b.sec
}

func (b *builder) heading(title string) {
	title = collapse(title)
	if title == "" {
		return
	}
	b.sec = b.doc.AddSection(sectionType)
	b.sec.Nodes = append(b.sec.Nodes, tei.NewNote(tei.SubtypeTitle, title))
}

func (b *builder) paragraph(text string) {
	if text = collapse(text); text == "" {
		return
	}
	s := b.section()
	s.Nodes = append(s.Nodes, tei.NewNote("", text))
}

func (b *builder) utterance(who, text string) {
	if text = collapse(text); text == "" {
		return
	}
	if who == "" {
		who = tei.Unknown
	}
	s := b.section()
	s.Nodes = append(s.Nodes, tei.NewUtterance(who, text))
}

func (b *builder) pageBreak(facs string) {
	s := b.section()
	s.Nodes = append(s.Nodes, tei.NewPageBreak(facs))
}

// document returns the built transcript. An import without content still
// gets one empty section so the body is never empty.
func (b *builder) document() *tei.Document {
	b.section()
	return b.doc
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
