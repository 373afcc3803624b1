package tei

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/beevik/etree"
)

// Inline is the mixed content of a note or segment as read from the source:
// its child tokens (highlights, line breaks, comments) and the text they
// render to. The zero value means plain text.
type Inline struct {
	tokens []etree.Token
	text   string
}

// IsZero reports whether there is no markup to carry.
func (in Inline) IsZero() bool {
	return len(in.tokens) == 0
}

// Split divides the markup at byte b of the whitespace-collapsed rendered
// text, trimming spaces at the cut. A side without markup is the zero Inline.
func (in Inline) Split(b int) (head, tail Inline) {
	if in.IsZero() {
		return Inline{}, Inline{}
	}
	norm, pos := collapseIndex(in.text)
	if b < 0 || b > len(norm) {
		return Inline{}, Inline{}
	}
	return in.cut(norm, pos, 0, b), in.cut(norm, pos, b, len(norm))
}

// cut keeps the markup rendering norm[i:j].
func (in Inline) cut(norm string, pos []int, i, j int) Inline {
	for i < j && norm[i] == ' ' {
		i++
	}
	for j > i && norm[j-1] == ' ' {
		j--
	}
	if i == j {
		return Inline{}
	}
	offset := 0
	tokens := cutTokens(in.tokens, pos[i], pos[j-1]+1, &offset)
	if !hasMarkup(tokens) {
		return Inline{}
	}
	return Inline{tokens: tokens, text: renderTokens(tokens)}
}

// readInline returns the full rendered text of el and, when el has child
// markup, the tokens needed to write it back.
func readInline(el *etree.Element) (string, Inline) {
	text := renderTokens(el.Child)
	if !hasMarkup(el.Child) {
		return text, Inline{}
	}
	tokens := make([]etree.Token, 0, len(el.Child))
	for _, t := range el.Child {
		tokens = append(tokens, copyToken(t))
	}
	return text, Inline{tokens: tokens, text: text}
}

// writeInline fills el with the markup when it still renders text, and with
// plain text otherwise.
func writeInline(el *etree.Element, text string, in Inline) {
	if in.IsZero() || collapse(in.text) != collapse(text) {
		el.SetText(text)
		return
	}
	for _, t := range in.tokens {
		el.AddChild(copyToken(t))
	}
}

func renderTokens(tokens []etree.Token) string {
	var b strings.Builder
	var walk func([]etree.Token)
	walk = func(ts []etree.Token) {
		for _, t := range ts {
			switch t := t.(type) {
			case *etree.CharData:
				b.WriteString(t.Data)
			case *etree.Element:
				walk(t.Child)
			}
		}
	}
	walk(tokens)
	return b.String()
}

func hasMarkup(tokens []etree.Token) bool {
	for _, t := range tokens {
		if _, ok := t.(*etree.CharData); !ok {
			return true
		}
	}
	return false
}

// cutTokens keeps the parts of tokens whose rendered text falls in
// [start, end). Empty elements such as line breaks are kept when they sit
// strictly inside the range. offset tracks the rendered position.
func cutTokens(tokens []etree.Token, start, end int, offset *int) []etree.Token {
	var out []etree.Token
	for _, t := range tokens {
		switch t := t.(type) {
		case *etree.CharData:
			s, e := *offset, *offset+len(t.Data)
			*offset = e
			lo, hi := max(s, start), min(e, end)
			if lo < hi {
				out = append(out, etree.NewText(t.Data[lo-s:hi-s]))
			}
		case *etree.Element:
			s := *offset
			n := len(renderTokens(t.Child))
			if n == 0 {
				if start < s && s < end {
					out = append(out, t.Copy())
				}
				continue
			}
			if s+n <= start || s >= end {
				*offset += n
				continue
			}
			el := etree.NewElement(t.FullTag())
			for _, a := range t.Attr {
				el.CreateAttr(a.FullKey(), a.Value)
			}
			for _, c := range cutTokens(t.Child, start, end, offset) {
				el.AddChild(c)
			}
			out = append(out, el)
		default:
			if start < *offset && *offset < end {
				out = append(out, copyToken(t))
			}
		}
	}
	return out
}

func copyToken(t etree.Token) etree.Token {
	switch t := t.(type) {
	case *etree.Element:
		return t.Copy()
	case *etree.CharData:
		if t.IsCData() {
			return etree.NewCData(t.Data)
		}
		return etree.NewText(t.Data)
	case *etree.Comment:
		return etree.NewComment(t.Data)
	case *etree.ProcInst:
		return etree.NewProcInst(t.Target, t.Inst)
	case *etree.Directive:
		return etree.NewDirective(t.Data)
	}
	return t
}

// collapseIndex collapses whitespace runs in s to single spaces, trimming
// the ends, and maps every byte of the result to its byte offset in s.
func collapseIndex(s string) (string, []int) {
	var b strings.Builder
	pos := make([]int, 0, len(s))
	space := false
	for i, r := range s {
		if unicode.IsSpace(r) {
			space = b.Len() > 0
			continue
		}
		if space {
			b.WriteByte(' ')
			pos = append(pos, i-1)
			space = false
		}
		_, w := utf8.DecodeRuneInString(s[i:])
		b.WriteString(s[i : i+w])
		for j := range w {
			pos = append(pos, i+j)
		}
	}
	return b.String(), pos
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
