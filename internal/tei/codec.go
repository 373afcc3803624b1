package tei

import (
	"errors"
	"fmt"
	"io"
	"slices"
	"sort"
	"strings"

	"github.com/beevik/etree"
)

// Namespace is the TEI namespace URI.
const Namespace = "http://www.tei-c.org/ns/1.0"

// attrOrder is the leading attribute order on write; the rest follow alphabetically.
var attrOrder = map[string]int{
	"xml:id":  0,
	"who":     1,
	"type":    2,
	"subtype": 3,
	"prev":    4,
	"next":    5,
}

// ErrNoBody is returned when a transcript has no body element.
var ErrNoBody = errors.New("tei: document has no body")

// Decode parses a TEI transcript. The protocol id (usually the file name)
// supplies year and chamber metadata.
func Decode(r io.Reader, protocol string) (*Document, error) {
	raw := etree.NewDocument()
	if _, err := raw.ReadFrom(r); err != nil {
		return nil, fmt.Errorf("parse tei: %w", err)
	}
	root := raw.Root()
	if root == nil {
		return nil, errors.New("parse tei: empty document")
	}

	doc := &Document{Metadata: InferMetadata(protocol), raw: raw}

	for _, front := range descendants(root, "front") {
		for _, dd := range descendants(front, "docDate") {
			if when := dd.SelectAttrValue("when", ""); when != "" {
				doc.Dates = append(doc.Dates, when)
			}
		}
	}

	bodies := descendants(root, "body")
	if len(bodies) == 0 {
		return nil, ErrNoBody
	}
	for _, body := range bodies {
		for _, div := range body.ChildElements() {
			if div.Tag != "div" {
				continue
			}
			sec := &Section{Type: div.SelectAttrValue("type", ""), el: div}
			for _, child := range div.ChildElements() {
				sec.Nodes = append(sec.Nodes, decodeNode(child))
			}
			doc.Sections = append(doc.Sections, sec)
		}
	}
	return doc, nil
}

func decodeNode(el *etree.Element) *Node {
	switch el.Tag {
	case "u":
		n := &Node{Kind: KindUtterance}
		for _, a := range el.Attr {
			switch a.FullKey() {
			case "xml:id":
				n.ID = a.Value
			case "who":
				n.Who = a.Value
			case "prev":
				n.Prev = a.Value
			case "next":
				n.Next = a.Value
			default:
				n.Extra = append(n.Extra, Attr{Key: a.FullKey(), Value: a.Value})
			}
		}
		for _, segEl := range el.ChildElements() {
			if segEl.Tag != "seg" {
				continue
			}
			seg := &Segment{}
			seg.Text, seg.Inline = readInline(segEl)
			for _, a := range segEl.Attr {
				if a.FullKey() == "xml:id" {
					seg.ID = a.Value
					continue
				}
				seg.Extra = append(seg.Extra, Attr{Key: a.FullKey(), Value: a.Value})
			}
			n.Segments = append(n.Segments, seg)
		}
		return n

	case "note":
		n := &Node{Kind: KindNote}
		n.Text, n.Inline = readInline(el)
		for _, a := range el.Attr {
			switch a.FullKey() {
			case "xml:id":
				n.ID = a.Value
			case "type":
				n.Type = a.Value
			default:
				n.Extra = append(n.Extra, Attr{Key: a.FullKey(), Value: a.Value})
			}
		}
		return n

	case "pb":
		n := &Node{Kind: KindPageBreak}
		for _, a := range el.Attr {
			switch a.FullKey() {
			case "xml:id":
				n.ID = a.Value
			case "facs":
				n.Facs = a.Value
			default:
				n.Extra = append(n.Extra, Attr{Key: a.FullKey(), Value: a.Value})
			}
		}
		return n
	}
	return &Node{Kind: KindUnknown, raw: el}
}

// Encode writes the document as indented TEI XML. Body sections are
// rebuilt from the model and the session dates are rewritten under the
// front matter preface.
func (d *Document) Encode(w io.Writer) error {
	if d.raw == nil {
		return errors.New("encode tei: document has no source tree")
	}
	body := d.body()
	if body == nil {
		return ErrNoBody
	}

	for _, s := range d.Sections {
		if s.el == nil {
			s.el = body.CreateElement("div")
		}
		if s.Type != "" {
			s.el.CreateAttr("type", s.Type)
		}
		s.el.Child = nil
		for _, n := range s.Nodes {
			s.el.AddChild(encodeNode(n))
		}
	}
	d.writeDates()

	indent(&d.raw.Element, 0)
	if _, err := d.raw.WriteTo(w); err != nil {
		return fmt.Errorf("write tei: %w", err)
	}
	return nil
}

func encodeNode(n *Node) *etree.Element {
	switch n.Kind {
	case KindUtterance:
		el := etree.NewElement("u")
		setAttrs(el, n.Extra, "xml:id", n.ID, "who", n.Who, "prev", n.Prev, "next", n.Next)
		for _, seg := range n.Segments {
			s := el.CreateElement("seg")
			setAttrs(s, seg.Extra, "xml:id", seg.ID)
			writeInline(s, seg.Text, seg.Inline)
		}
		return el
	case KindNote:
		el := etree.NewElement("note")
		setAttrs(el, n.Extra, "xml:id", n.ID, "type", n.Type)
		writeInline(el, n.Text, n.Inline)
		return el
	case KindPageBreak:
		el := etree.NewElement("pb")
		setAttrs(el, n.Extra, "xml:id", n.ID, "facs", n.Facs)
		return el
	}
	// Detached copy: the original still points into the cleared section.
	return n.raw.Copy()
}

// setAttrs writes known key/value pairs (skipping empty values) plus extras
// in the canonical attribute order.
func setAttrs(el *etree.Element, extra []Attr, kv ...string) {
	attrs := make([]Attr, 0, len(kv)/2+len(extra))
	for i := 0; i+1 < len(kv); i += 2 {
		if kv[i+1] != "" {
			attrs = append(attrs, Attr{Key: kv[i], Value: kv[i+1]})
		}
	}
	attrs = append(attrs, extra...)
	sort.SliceStable(attrs, func(i, j int) bool {
		oi, iok := attrOrder[attrs[i].Key]
		oj, jok := attrOrder[attrs[j].Key]
		switch {
		case iok && jok:
			return oi < oj
		case iok:
			return true
		case jok:
			return false
		}
		return attrs[i].Key < attrs[j].Key
	})
	for _, a := range attrs {
		el.CreateAttr(a.Key, a.Value)
	}
}

func (d *Document) writeDates() {
	root := d.raw.Root()
	for _, text := range descendants(root, "text") {
		for _, front := range descendants(text, "front") {
			for _, dd := range descendants(front, "docDate") {
				if p := dd.Parent(); p != nil {
					p.RemoveChild(dd)
				}
			}
			for _, div := range descendants(front, "div") {
				if div.SelectAttrValue("type", "") != "preface" {
					continue
				}
				for _, date := range d.Dates {
					dd := div.CreateElement("docDate")
					dd.CreateAttr("when", date)
					dd.SetText(date)
				}
			}
		}
	}
}

// textual elements are written back with their content as is.
var textual = map[string]bool{
	"seg": true, "note": true, "head": true, "p": true,
	"hi": true, "title": true, "docDate": true,
}

// indent places structural children on their own lines, two spaces per
// level. Elements holding text keep their content untouched so mixed
// content does not gain whitespace.
func indent(e *etree.Element, depth int) {
	if textual[e.Tag] || holdsText(e) {
		return
	}
	for i := len(e.Child) - 1; i >= 0; i-- {
		if cd, ok := e.Child[i].(*etree.CharData); ok && strings.TrimSpace(cd.Data) == "" {
			e.RemoveChildAt(i)
		}
	}
	if len(e.Child) == 0 {
		return
	}
	children := slices.Clone(e.Child)
	for _, c := range children {
		if depth > 0 || c.Index() > 0 {
			e.InsertChildAt(c.Index(), etree.NewText(newline(depth)))
		}
		if ce, ok := c.(*etree.Element); ok {
			indent(ce, depth+1)
		}
	}
	e.CreateText(newline(max(depth-1, 0)))
}

func holdsText(e *etree.Element) bool {
	for _, c := range e.Child {
		if cd, ok := c.(*etree.CharData); ok && strings.TrimSpace(cd.Data) != "" {
			return true
		}
	}
	return false
}

func newline(depth int) string {
	return "\n" + strings.Repeat("  ", depth)
}

func (d *Document) body() *etree.Element {
	bodies := descendants(d.raw.Root(), "body")
	if len(bodies) == 0 {
		return nil
	}
	return bodies[0]
}

// descendants returns every element below el with the given local name.
func descendants(el *etree.Element, tag string) []*etree.Element {
	var out []*etree.Element
	var walk func(*etree.Element)
	walk = func(e *etree.Element) {
		for _, c := range e.ChildElements() {
			if c.Tag == tag {
				out = append(out, c)
			}
			walk(c)
		}
	}
	if el != nil {
		walk(el)
	}
	return out
}

// New returns an empty TEI transcript skeleton with a preface and an empty body.
func New(meta Metadata) *Document {
	raw := etree.NewDocument()
	raw.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
	root := raw.CreateElement("TEI")
	root.CreateAttr("xmlns", Namespace)

	header := root.CreateElement("teiHeader")
	title := header.CreateElement("fileDesc").CreateElement("titleStmt").CreateElement("title")
	title.SetText(meta.Protocol)

	text := root.CreateElement("text")
	preface := text.CreateElement("front").CreateElement("div")
	preface.CreateAttr("type", "preface")
	preface.CreateElement("head").SetText(meta.Protocol)
	text.CreateElement("body")

	return &Document{Metadata: meta, raw: raw}
}
