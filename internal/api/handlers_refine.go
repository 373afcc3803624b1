package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/dgallion1/protorefine/internal/parser"
	"github.com/dgallion1/protorefine/internal/pipeline"
	"github.com/dgallion1/protorefine/internal/refine"
)

var errTooLarge = errors.New("file exceeds max size")

func (s *Server) handleRefine(w http.ResponseWriter, r *http.Request) {
	// Limit total request size.
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+1024*1024) // extra 1MB for form overhead

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		jsonError(w, "file is required: "+err.Error(), http.StatusBadRequest)
		return
	}
	file.Close()

	filename := sanitizeFilename(header.Filename)
	if !parser.IsSupportedExtension(filename) {
		jsonError(w, fmt.Sprintf("unsupported file type: %s", filepath.Ext(filename)), http.StatusBadRequest)
		return
	}

	data, err := s.readUpload(header)
	if errors.Is(err, errTooLarge) {
		jsonError(w, fmt.Sprintf("file exceeds max size (%d bytes)", s.cfg.MaxUploadBytes), http.StatusRequestEntityTooLarge)
		return
	}
	if err != nil {
		jsonError(w, "failed to read file", http.StatusInternalServerError)
		return
	}

	opts, err := jobOptions(r)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	job := pipeline.NewJob(filename, data, opts)
	if err := s.orchestrator.Submit(job); err != nil {
		jsonError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(accepted(job))
}

func (s *Server) handleBatchRefine(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes*int64(s.cfg.MaxBatchFiles)+10*1024*1024)

	if err := r.ParseMultipartForm(64 << 20); err != nil {
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		jsonError(w, "at least one file is required", http.StatusBadRequest)
		return
	}
	if len(files) > s.cfg.MaxBatchFiles {
		jsonError(w, fmt.Sprintf("too many files (max %d)", s.cfg.MaxBatchFiles), http.StatusBadRequest)
		return
	}

	opts, err := jobOptions(r)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	results := make([]map[string]any, 0, len(files))
	for _, fh := range files {
		filename := sanitizeFilename(fh.Filename)
		if !parser.IsSupportedExtension(filename) {
			results = append(results, map[string]any{
				"filename": filename,
				"error":    fmt.Sprintf("unsupported file type: %s", filepath.Ext(filename)),
			})
			continue
		}

		data, err := s.readUpload(fh)
		if err != nil {
			results = append(results, map[string]any{
				"filename": filename,
				"error":    "file too large or read error",
			})
			continue
		}

		job := pipeline.NewJob(filename, data, opts)
		if err := s.orchestrator.Submit(job); err != nil {
			results = append(results, map[string]any{
				"filename": filename,
				"job_id":   job.ID,
				"error":    err.Error(),
			})
			continue
		}
		results = append(results, accepted(job))
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]any{"jobs": results})
}

func (s *Server) handleRefineStatus(w http.ResponseWriter, r *http.Request) {
	job := s.orchestrator.GetJob(chi.URLParam(r, "jobID"))
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(job.Snapshot())
}

// handleRefineResult returns the refined TEI document once it is ready.
func (s *Server) handleRefineResult(w http.ResponseWriter, r *http.Request) {
	job := s.orchestrator.GetJob(chi.URLParam(r, "jobID"))
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	out, ok := job.Refined()
	if !ok {
		snap := job.Snapshot()
		jsonError(w, fmt.Sprintf("result not available (status %s)", snap.Status), http.StatusConflict)
		return
	}
	name := job.Snapshot().Protocol
	if name == "" {
		name = "refined"
	}
	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name+".xml"))
	w.Write(out)
}

func (s *Server) readUpload(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, s.cfg.MaxUploadBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > s.cfg.MaxUploadBytes {
		return nil, errTooLarge
	}
	return data, nil
}

// jobOptions reads the per-upload refinement switches: intro_ids (comma
// separated), seed, fuzzy, remove_stale and skip_certificates.
func jobOptions(r *http.Request) (refine.Options, error) {
	opts := refine.Options{Seed: r.FormValue("seed")}
	for _, id := range strings.Split(r.FormValue("intro_ids"), ",") {
		if id = strings.TrimSpace(id); id != "" {
			opts.ConfirmedIntros = append(opts.ConfirmedIntros, id)
		}
	}
	flags := []struct {
		name string
		dst  *bool
	}{
		{"fuzzy", &opts.Fuzzy},
		{"remove_stale", &opts.RemoveStale},
		{"skip_certificates", &opts.SkipCertificates},
	}
	for _, f := range flags {
		v := r.FormValue(f.name)
		if v == "" {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return refine.Options{}, fmt.Errorf("invalid %s: %q", f.name, v)
		}
		*f.dst = b
	}
	return opts, nil
}

func accepted(job *pipeline.Job) map[string]any {
	return map[string]any{
		"filename":   job.Filename,
		"job_id":     job.ID,
		"status":     pipeline.StatusQueued,
		"poll_url":   fmt.Sprintf("/api/refine/%s/status", job.ID),
		"result_url": fmt.Sprintf("/api/refine/%s/result", job.ID),
	}
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func sanitizeFilename(name string) string {
	// Strip path components, keep only the base name.
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.ReplaceAll(name, "..", "_")
	if name == "" || name == "." || name == "/" {
		name = "unnamed"
	}
	return name
}
