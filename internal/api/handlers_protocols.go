package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/dgallion1/protorefine/internal/pathstore"
	"github.com/dgallion1/protorefine/internal/reviewstore"
)

func queryLimit(r *http.Request, fallback, ceiling int) int {
	n, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || n <= 0 {
		return fallback
	}
	return min(n, ceiling)
}

func (s *Server) reviewStore(w http.ResponseWriter) *reviewstore.Store {
	store := s.orchestrator.ReviewStore()
	if store == nil {
		jsonError(w, "review store unavailable", http.StatusServiceUnavailable)
	}
	return store
}

func (s *Server) publisher(w http.ResponseWriter) *pathstore.Client {
	ps := s.orchestrator.PathstoreClient()
	if ps == nil {
		jsonError(w, "publishing is not configured", http.StatusServiceUnavailable)
	}
	return ps
}

// handleListUnknowns lists unattributed speaker announcements for review,
// optionally for a single protocol.
func (s *Server) handleListUnknowns(w http.ResponseWriter, r *http.Request) {
	store := s.reviewStore(w)
	if store == nil {
		return
	}
	protocol := r.URL.Query().Get("protocol")
	entries, err := store.List(r.Context(), protocol, queryLimit(r, 100, 1000))
	if err != nil {
		jsonError(w, "failed to list unknowns: "+err.Error(), http.StatusInternalServerError)
		return
	}
	total, err := store.Count(r.Context(), protocol)
	if err != nil {
		jsonError(w, "failed to count unknowns: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []reviewstore.Entry{}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"unknowns": entries, "total": total})
}

// handleListProtocols lists the protocols refined by this service.
func (s *Server) handleListProtocols(w http.ResponseWriter, r *http.Request) {
	store := s.reviewStore(w)
	if store == nil {
		return
	}
	protocols, err := store.Protocols(r.Context(), queryLimit(r, 200, 5000))
	if err != nil {
		jsonError(w, "failed to list protocols: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if protocols == nil {
		protocols = []reviewstore.Protocol{}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"protocols": protocols})
}

// handleListPublished lists the protocol summaries in the pathstore.
func (s *Server) handleListPublished(w http.ResponseWriter, r *http.Request) {
	ps := s.publisher(w)
	if ps == nil {
		return
	}
	children, err := ps.ListChildren(r.Context(), pathstore.ProtocolPrefix, queryLimit(r, 200, 5000))
	if err != nil {
		jsonError(w, "failed to list published protocols: "+err.Error(), http.StatusBadGateway)
		return
	}
	docs := make([]map[string]any, 0, len(children))
	for _, child := range children {
		docs = append(docs, map[string]any{
			"key":   child.Key,
			"value": child.Value,
		})
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"published": docs})
}

func (s *Server) handleGetPublished(w http.ResponseWriter, r *http.Request) {
	ps := s.publisher(w)
	if ps == nil {
		return
	}
	node, err := ps.GetNode(r.Context(), pathstore.ProtocolKey(chi.URLParam(r, "protocol")))
	if err != nil {
		jsonError(w, "failed to read published protocol: "+err.Error(), http.StatusBadGateway)
		return
	}
	if node == nil {
		jsonError(w, "protocol not published", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(node)
}

// handleDeletePublished withdraws a published protocol summary.
func (s *Server) handleDeletePublished(w http.ResponseWriter, r *http.Request) {
	ps := s.publisher(w)
	if ps == nil {
		return
	}
	protocol := chi.URLParam(r, "protocol")
	if err := ps.DeleteNode(r.Context(), pathstore.ProtocolKey(protocol), true); err != nil {
		jsonError(w, "failed to delete published protocol: "+err.Error(), http.StatusBadGateway)
		return
	}
	s.log.Info("withdrew published protocol", "protocol", protocol)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"deleted": protocol})
}
