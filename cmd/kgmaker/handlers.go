package main

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/brunobiangulo/kgmaker"
	"github.com/brunobiangulo/kgmaker/ontology"
	"github.com/brunobiangulo/kgmaker/store"
)

type handler struct {
	pipeline *kgmaker.Pipeline
}

func newHandler(p *kgmaker.Pipeline) *handler {
	return &handler{pipeline: p}
}

// POST /extract
// Body: {"input_dir", "output_dir", "kind": "relationship"|"attribute"|"all", "delay": "2s"}
func (h *handler) handleExtract(w http.ResponseWriter, r *http.Request) {
	var body struct {
		InputDir  string `json:"input_dir"`
		OutputDir string `json:"output_dir"`
		Kind      string `json:"kind"`
		Delay     string `json:"delay"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request: expected JSON body")
		return
	}
	if body.InputDir == "" {
		writeError(w, http.StatusBadRequest, "input_dir is required")
		return
	}

	req := kgmaker.ExtractRequest{InputDir: body.InputDir, OutputDir: body.OutputDir}
	all := body.Kind == "all"
	if !all {
		if body.Kind == "" {
			body.Kind = string(ontology.KindRelationship)
		}
		kind, err := ontology.ParseKind(body.Kind)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		req.Kind = kind
	}
	if body.Delay != "" {
		d, err := time.ParseDuration(body.Delay)
		if err != nil || d < 0 {
			writeError(w, http.StatusBadRequest, "invalid delay")
			return
		}
		req.Delay = &d
	}

	var job *kgmaker.Job
	if all {
		job = h.pipeline.StartExtractAll(r.Context(), req)
	} else {
		job = h.pipeline.StartExtract(r.Context(), req)
	}
	streamJob(w, job)
}

// POST /import
// Body: {"dir", "graph": {"uri", "username", "password"}}
func (h *handler) handleImport(w http.ResponseWriter, r *http.Request) {
	var req kgmaker.ImportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request: expected JSON body")
		return
	}
	if req.Dir == "" {
		writeError(w, http.StatusBadRequest, "dir is required")
		return
	}
	streamJob(w, h.pipeline.StartImport(r.Context(), req))
}

// streamJob writes each event as a JSON line, flushing as it goes, and
// ends with a "report" line. The status is always 200 once streaming has
// started; failures are carried in the lines.
func streamJob(w http.ResponseWriter, job *kgmaker.Job) {
	w.Header().Set("Content-Type", "application/x-ndjson")
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)
	enc := json.NewEncoder(w)

	for e := range job.Events() {
		if err := enc.Encode(e); err != nil {
			// Client went away; the request context cancels the job.
			slog.Warn("streaming event", "error", err)
			break
		}
		if flusher != nil {
			flusher.Flush()
		}
	}

	report, err := job.Wait()
	final := map[string]any{"kind": "report", "report": report}
	if err != nil {
		final["error"] = err.Error()
	}
	if report != nil {
		if ferr := report.Err(); ferr != nil {
			failures := make([]string, len(report.Failures))
			for i, f := range report.Failures {
				failures[i] = f.Error()
			}
			final["failures"] = failures
		}
	}
	_ = enc.Encode(final)
	if flusher != nil {
		flusher.Flush()
	}
}

// GET /nodes?category=&name=&limit=
func (h *handler) handleNodes(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := intParam(q.Get("limit"), 100)

	g, err := h.pipeline.OpenGraph(store.Config{})
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "graph database unavailable")
		slog.Error("opening graph", "error", err)
		return
	}
	defer g.Close()

	ctx := r.Context()
	if name := q.Get("name"); name != "" {
		category := q.Get("category")
		if category == "" {
			writeError(w, http.StatusBadRequest, "category is required with name")
			return
		}
		n, err := g.GetNode(ctx, category, name)
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "node not found")
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, "node lookup failed")
			slog.Error("node lookup", "error", err)
			return
		}
		nbs, err := g.Neighbors(ctx, n.ID, limit)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "neighbour lookup failed")
			slog.Error("neighbour lookup", "error", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"node": n, "neighbors": nbs})
		return
	}

	nodes, err := g.ListNodes(ctx, q.Get("category"), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list nodes")
		slog.Error("list nodes", "error", err)
		return
	}
	if nodes == nil {
		nodes = []store.Node{}
	}
	stats, err := g.Counts(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to count nodes")
		slog.Error("count nodes", "error", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"nodes": nodes, "counts": stats})
}

// GET /nodes/similar?q=&k=
func (h *handler) handleSimilar(w http.ResponseWriter, r *http.Request) {
	text := r.URL.Query().Get("q")
	if text == "" {
		writeError(w, http.StatusBadRequest, "q is required")
		return
	}
	k := intParam(r.URL.Query().Get("k"), 10)

	g, err := h.pipeline.OpenGraph(store.Config{})
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "graph database unavailable")
		slog.Error("opening graph", "error", err)
		return
	}
	defer g.Close()

	found, err := h.pipeline.SimilarNodes(r.Context(), g, text, k)
	switch {
	case errors.Is(err, kgmaker.ErrNoEmbedder), errors.Is(err, store.ErrNoEmbeddings):
		writeError(w, http.StatusNotImplemented, "similarity search is not configured")
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, "similarity search failed")
		slog.Error("similarity search", "error", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"nodes": found})
}

// GET /health
func (h *handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}

func intParam(s string, def int) int {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
