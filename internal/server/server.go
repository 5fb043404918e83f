// Package server implements the HTTP daemon surface: POST /diff,
// POST /match, GET /health, with a request-size limit, a
// timeout-wrapped handler, and a JSON error envelope around each.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/sbomdiff/sbomdiff/internal/cache"
	"github.com/sbomdiff/sbomdiff/internal/canonical"
	"github.com/sbomdiff/sbomdiff/internal/diff"
	"github.com/sbomdiff/sbomdiff/internal/enrichment"
	"github.com/sbomdiff/sbomdiff/internal/match"
	"github.com/sbomdiff/sbomdiff/internal/parser"
)

const (
	// maxRequestSize is the maximum request body size (10MB).
	maxRequestSize = 10 * 1024 * 1024
	// operationTimeout bounds a single diff/match request.
	operationTimeout = 10 * time.Minute
)

// Server is the HTTP server for the SBOM diff/match/enrichment daemon.
type Server struct {
	enrichment         enrichment.Adapter // nil disables enrichment on /diff
	enrichmentCache    cache.Cache        // nil means no cache-through on lookups
	enrichmentCacheTTL time.Duration
	logger             *slog.Logger
	defaultParallelism int
	version            string
}

// NewServer creates a new Server. enrichAdapter may be nil, in which
// case /diff never enriches before diffing. enrichCache may also be
// nil, in which case enrichment lookups never consult a cache.
func NewServer(enrichAdapter enrichment.Adapter, enrichCache cache.Cache, enrichCacheTTL time.Duration, logger *slog.Logger, defaultParallelism int, version string) *Server {
	return &Server{
		enrichment:         enrichAdapter,
		enrichmentCache:    enrichCache,
		enrichmentCacheTTL: enrichCacheTTL,
		logger:             logger,
		defaultParallelism: defaultParallelism,
		version:            version,
	}
}

// sbomInput is one SBOM document in a /diff or /match request body.
type sbomInput struct {
	// Raw is the SBOM document bytes, in whatever dialect Detect sniffs.
	Raw json.RawMessage `json:"raw"`
	// NameHint helps format detection when sniffing is ambiguous.
	NameHint string `json:"name_hint,omitempty"`
}

// diffRequest is the request body for POST /diff.
type diffRequest struct {
	Old            sbomInput         `json:"old"`
	New            sbomInput         `json:"new"`
	Preset         match.Preset      `json:"preset,omitempty"`
	GraphDiff      bool              `json:"graph_diff,omitempty"`
	ExplainMatches bool              `json:"explain_matches,omitempty"`
	Shards         int               `json:"shards,omitempty"`
	AliasTable     []match.AliasPair `json:"alias_table,omitempty"`
	Enrich         bool              `json:"enrich,omitempty"`
}

// matchRequest is the request body for POST /match.
type matchRequest struct {
	Old            sbomInput         `json:"old"`
	New            sbomInput         `json:"new"`
	Preset         match.Preset      `json:"preset,omitempty"`
	ExplainMatches bool              `json:"explain_matches,omitempty"`
	Shards         int               `json:"shards,omitempty"`
	AliasTable     []match.AliasPair `json:"alias_table,omitempty"`
}

// errorResponse is the error response body.
type errorResponse struct {
	Error string `json:"error"`
}

// Handler returns an http.Handler for the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/diff", s.handleDiff)
	mux.HandleFunc("/match", s.handleMatch)
	mux.HandleFunc("/health", s.handleHealth)
	return mux
}

func (s *Server) handleDiff(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), operationTimeout)
	defer cancel()

	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "only POST method is allowed")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestSize)

	var req diffRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.logger.Error("failed to decode diff request", "error", err)
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %v", err))
		return
	}

	oldDoc, err := s.parseInput(ctx, req.Old)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("old: %v", err))
		return
	}
	newDoc, err := s.parseInput(ctx, req.New)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("new: %v", err))
		return
	}

	if req.Enrich && s.enrichment != nil {
		cfg := enrichment.Config{
			Parallelism: s.defaultParallelism,
			Cache:       s.enrichmentCache,
			CacheTTL:    s.enrichmentCacheTTL,
			Logger:      s.logger,
		}
		if _, enrichErr := s.enrichment.Enrich(ctx, oldDoc, cfg); enrichErr != nil {
			s.logger.Warn("enrichment of old document failed", "error", enrichErr)
		}
		if _, enrichErr := s.enrichment.Enrich(ctx, newDoc, cfg); enrichErr != nil {
			s.logger.Warn("enrichment of new document failed", "error", enrichErr)
		}
	}

	shards := req.Shards
	if shards <= 0 {
		shards = s.defaultParallelism
	}

	result, err := diff.Run(ctx, oldDoc, newDoc, diff.Config{
		Preset:         req.Preset,
		GraphDiff:      req.GraphDiff,
		AliasTable:     req.AliasTable,
		ExplainMatches: req.ExplainMatches,
		Shards:         shards,
	}, s.logger)
	if err != nil {
		s.logger.Error("diff failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, fmt.Sprintf("diff failed: %v", err))
		return
	}

	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleMatch(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), operationTimeout)
	defer cancel()

	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "only POST method is allowed")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestSize)

	var req matchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.logger.Error("failed to decode match request", "error", err)
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %v", err))
		return
	}

	oldDoc, err := s.parseInput(ctx, req.Old)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("old: %v", err))
		return
	}
	newDoc, err := s.parseInput(ctx, req.New)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("new: %v", err))
		return
	}

	shards := req.Shards
	if shards <= 0 {
		shards = s.defaultParallelism
	}

	set, err := match.MatchComponents(oldDoc.Components(), newDoc.Components(), match.Config{
		Preset:     req.Preset,
		AliasTable: req.AliasTable,
		Explain:    req.ExplainMatches,
		Shards:     shards,
	})
	if err != nil {
		s.logger.Error("match failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, fmt.Sprintf("match failed: %v", err))
		return
	}

	s.writeJSON(w, http.StatusOK, set)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "only GET method is allowed")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "OK", "version": s.version})
}

// parseInput detects and parses one request-body SBOM document into a
// NormalizedSbom, logging the detected dialect.
func (s *Server) parseInput(ctx context.Context, in sbomInput) (*canonical.NormalizedSbom, error) {
	if len(in.Raw) == 0 {
		return nil, fmt.Errorf("raw field is required")
	}

	dialect, _, br, err := parser.Detect(parser.Source{
		Reader:   bytes.NewReader(in.Raw),
		NameHint: in.NameHint,
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("detected SBOM dialect", "dialect", dialect)

	return parser.ParseDialect(ctx, dialect, br, parser.Source{
		SizeHint: int64(len(in.Raw)),
		NameHint: in.NameHint,
	}, parser.Options{})
}

func (s *Server) writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, statusCode int, message string) {
	s.writeJSON(w, statusCode, errorResponse{Error: message})
}
