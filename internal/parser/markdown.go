package parser

import (
	"bytes"
	"io"
	"strings"

	"github.com/dgallion1/protorefine/internal/tei"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// MarkdownParser handles Markdown transcripts using goldmark. Headings
// open sections, thematic breaks mark page boundaries and every other
// block becomes a note.
type MarkdownParser struct{}

func (p *MarkdownParser) Parse(r io.Reader, filename string) (*tei.Document, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	md := goldmark.New()
	root := md.Parser().Parse(text.NewReader(src))

	b := newBuilder(filename)
	for n := root.FirstChild(); n != nil; n = n.NextSibling() {
		switch node := n.(type) {
		case *ast.Heading:
			b.heading(extractText(node, src))
		case *ast.ThematicBreak:
			b.pageBreak("")
		case *ast.List:
			for item := node.FirstChild(); item != nil; item = item.NextSibling() {
				b.paragraph(extractText(item, src))
			}
		default:
			b.paragraph(extractText(n, src))
		}
	}
	return b.document(), nil
}

// extractText gets the text content of a goldmark AST node. Leaf blocks
// (code) contribute their raw lines; everything else its inline text.
func extractText(n ast.Node, src []byte) string {
	var buf bytes.Buffer
	if n.Type() == ast.TypeBlock && !n.HasChildren() {
		lines := n.Lines()
		for i := 0; i < lines.Len(); i++ {
			line := lines.At(i)
			buf.Write(line.Value(src))
		}
	}
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if t, ok := c.(*ast.Text); ok {
			buf.Write(t.Value(src))
			if t.HardLineBreak() || t.SoftLineBreak() {
				buf.WriteByte('\n')
			}
		} else {
			buf.WriteString(extractText(c, src))
		}
	}
	return strings.TrimSpace(buf.String())
}
