package parser

import (
	"bufio"
	"io"
	"strings"

	"github.com/dgallion1/protorefine/internal/tei"
)

// TextParser handles plain text transcripts. Blank lines separate
// paragraphs and a form feed marks a new page.
type TextParser struct{}

func (p *TextParser) Parse(r io.Reader, filename string) (*tei.Document, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	b := newBuilder(filename)
	var current strings.Builder
	flush := func() {
		b.paragraph(current.String())
		current.Reset()
	}

	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "\f") {
			flush()
			b.pageBreak("")
			line = strings.TrimLeft(line, "\f")
		}
		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}
		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(line)
	}
	flush()

	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return b.document(), nil
}
