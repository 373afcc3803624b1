package tei

import (
	"io"
	"iter"
	"log/slog"
)

// Item is one step of a document walk. Node is nil for elements of an
// unrecognised shape.
type Item struct {
	Kind    Kind
	Node    *Node
	Section *Section
	// First is true for the first item yielded from Section.
	First bool
}

// Walk yields every content node one level under each body section, in
// document order. Each call starts again from the top.
func (d *Document) Walk(log *slog.Logger) iter.Seq[Item] {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return func(yield func(Item) bool) {
		for _, s := range d.Sections {
			for i, n := range s.Nodes {
				it := Item{Kind: n.Kind, Node: n, Section: s, First: i == 0}
				if n.Kind == KindUnknown {
					log.Warn("encountered unknown tag", "protocol", d.Protocol, "tag", n.Tag())
					it.Node = nil
				}
				if !yield(it) {
					return
				}
			}
		}
	}
}
