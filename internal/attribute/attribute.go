// Package attribute stamps every utterance of a transcript with the
// identity of its speaker and links utterances into prev/next chains.
package attribute

import (
	"io"
	"log/slog"

	"github.com/dgallion1/protorefine/internal/intro"
	"github.com/dgallion1/protorefine/internal/registry"
	"github.com/dgallion1/protorefine/internal/tei"
)

// deleteMarker flags a chain pointer for removal in the finishing pass.
const deleteMarker = "delete"

// Observation records an announcement that resolved to nobody.
type Observation struct {
	Protocol string `json:"protocol"`
	NodeID   string `json:"node_id"`
	Text     string `json:"text"`
	Name     string `json:"name"`
	Role     string `json:"role"`
	Other    string `json:"other"`
	Gender   string `json:"gender,omitempty"`
	Party    string `json:"party,omitempty"`
}

// State is the accumulator threaded through the scan. An empty Speaker
// means no current speaker.
type State struct {
	Speaker string
	Prev    *tei.Node
}

// Attributor runs the resolution cascade over a document.
type Attributor struct {
	Resolvers []Resolver
	Log       *slog.Logger
}

// New builds the standard cascade (minister, presiding officer, member)
// for a document of the given chamber. tables must already be limited to
// the document's date window.
func New(tables registry.Tables, chamber tei.Chamber, fuzzy bool, log *slog.Logger) *Attributor {
	members, otherMembers := tables.Members.Partition(chamber)
	speakers, _ := tables.Speakers.Partition(chamber)
	return &Attributor{
		Resolvers: []Resolver{
			&MinisterResolver{Ministers: tables.Ministers},
			&SpeakerResolver{Speakers: speakers},
			&MemberResolver{Primary: members, Secondary: otherMembers, Parties: tables.Parties, Fuzzy: fuzzy},
		},
		Log: log,
	}
}

func (a *Attributor) log() *slog.Logger {
	if a.Log == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return a.Log
}

// Attribute folds Step over the document and strips the pointers marked
// for deletion. It returns the unknown-speaker observations.
func (a *Attributor) Attribute(doc *tei.Document) []Observation {
	log := a.log()
	var (
		st  State
		obs []Observation
	)
	for it := range doc.Walk(log) {
		var o *Observation
		st, o = a.Step(st, it)
		if o != nil {
			o.Protocol = doc.Protocol
			obs = append(obs, *o)
			log.Debug("unknown speaker", "protocol", doc.Protocol, "node_id", o.NodeID, "name", o.Name, "role", o.Role)
		}
	}
	finish(doc)
	return obs
}

// Step advances the state machine by one traversal item.
func (a *Attributor) Step(st State, it tei.Item) (State, *Observation) {
	comment := it.Section != nil && it.Section.IsComment()
	if it.First {
		if comment {
			st = State{}
		} else {
			st.Prev = nil
		}
	}
	n := it.Node
	if n == nil {
		return st, nil
	}

	switch n.Kind {
	case tei.KindUtterance:
		if comment {
			n.Who = tei.Unknown
			n.Prev, n.Next = deleteMarker, deleteMarker
			return st, nil
		}
		n.Who = tei.Unknown
		if st.Speaker != "" {
			n.Who = st.Speaker
		}
		n.Prev, n.Next = deleteMarker, deleteMarker
		if st.Prev != nil {
			st.Prev.Next = n.ID
			n.Prev = st.Prev.ID
		}
		st.Prev = n

	case tei.KindNote:
		if n.Type != tei.SubtypeSpeaker || comment {
			return st, nil
		}
		st.Prev = nil
		q := Query{Guess: intro.Parse(n.Text), Text: n.Text}
		st.Speaker = a.resolve(q)
		if st.Speaker == "" {
			return st, &Observation{
				NodeID: n.ID,
				Text:   n.Text,
				Name:   q.Name,
				Role:   q.Role,
				Other:  q.Other,
				Gender: q.Gender,
				Party:  q.Party,
			}
		}
	}
	return st, nil
}

// resolve runs the cascade. The first applicable resolver that runs
// cleanly decides; failing resolvers are skipped.
func (a *Attributor) resolve(q Query) string {
	for _, r := range a.Resolvers {
		if !r.Applies(q) {
			continue
		}
		id, err := r.Resolve(q)
		if err != nil {
			a.log().Debug("resolver skipped", "resolver", r.Name(), "error", err)
			continue
		}
		return id
	}
	return ""
}

func finish(doc *tei.Document) {
	for _, sec := range doc.Sections {
		for _, n := range sec.Nodes {
			if n.Kind != tei.KindUtterance {
				continue
			}
			if n.Prev == deleteMarker {
				n.Prev = ""
			}
			if n.Next == deleteMarker {
				n.Next = ""
			}
		}
	}
}
