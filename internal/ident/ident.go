// Package ident assigns xml:id values to transcript nodes.
package ident

import (
	"crypto/md5"
	"fmt"

	"github.com/google/uuid"
	"github.com/mr-tron/base58"

	"github.com/dgallion1/protorefine/internal/tei"
)

// Prefix keeps generated ids valid as XML names.
const Prefix = "i-"

// Formatted returns a new id. With an empty seed the id is random;
// otherwise it is the md5 of the seed read as a UUID.
func Formatted(seed string) string {
	var id uuid.UUID
	if seed == "" {
		id = uuid.New()
	} else {
		sum := md5.Sum([]byte(seed))
		id, _ = uuid.FromBytes(sum[:])
	}
	return Prefix + base58.Encode(id[:])
}

// Assigner gives an id to every utterance, segment, note and page break
// that lacks one. Existing ids are never changed.
type Assigner struct {
	// Seed makes ids reproducible: the same seed and the same text give
	// the same ids.
	Seed string
}

// Assign fills missing ids and returns every id now present in doc.
func (a *Assigner) Assign(doc *tei.Document) map[string]bool {
	ids := make(map[string]bool)
	for _, sec := range doc.Sections {
		for _, n := range sec.Nodes {
			if n.ID != "" {
				ids[n.ID] = true
			}
			for _, s := range n.Segments {
				if s.ID != "" {
					ids[s.ID] = true
				}
			}
		}
	}

	seen := make(map[string]int)
	next := func(kind, text string) string {
		for {
			var seed string
			if a.Seed != "" {
				key := kind + "\n" + text
				seed = fmt.Sprintf("%s\n%s\n%d", a.Seed, key, seen[key])
				seen[key]++
			}
			id := Formatted(seed)
			if !ids[id] {
				ids[id] = true
				return id
			}
		}
	}

	for _, sec := range doc.Sections {
		for _, n := range sec.Nodes {
			switch n.Kind {
			case tei.KindUtterance:
				for _, s := range n.Segments {
					if s.ID == "" {
						s.ID = next("seg", s.Text)
					}
				}
				if n.ID == "" {
					n.ID = next("u", n.PlainText())
				}
			case tei.KindNote:
				if n.ID == "" {
					n.ID = next("note", n.Text)
				}
			case tei.KindPageBreak:
				if n.ID == "" {
					n.ID = next("pb", n.Facs)
				}
			}
		}
	}
	return ids
}
