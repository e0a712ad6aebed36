// Package engine composes the parser, chunker, embedder, stores, dependency
// graph, and hybrid retrieval engine into the single resident object the
// CLI and MCP front-ends talk to. It owns the bounded-channel ingestion
// pipeline (pipeline.go) and the read-mostly symbol/graph bookkeeping that
// GetSymbol/GetDependencies/GetFileSummary answer from (convert.go).
//
// Front-ends never touch internal/store, internal/search, or internal/graph
// directly: they call Engine methods, matching the teacher's layering where
// cmd/ and internal/mcp only ever held a *search.Engine plus a metadata
// store handle and never built chunks or embeddings themselves.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/omnicontext/omnicontext-core/internal/chunk"
	"github.com/omnicontext/omnicontext-core/internal/config"
	"github.com/omnicontext/omnicontext-core/internal/embed"
	coreerrors "github.com/omnicontext/omnicontext-core/internal/errors"
	"github.com/omnicontext/omnicontext-core/internal/graph"
	"github.com/omnicontext/omnicontext-core/internal/scanner"
	"github.com/omnicontext/omnicontext-core/internal/search"
	"github.com/omnicontext/omnicontext-core/internal/store"
)

// Config collects every dependency the engine composes. Front-ends build
// these (choosing an embedder backend, opening the stores) the way
// cmd/omnicontext/cmd/index.go's runIndexWithOptions already does, and hand
// the finished set to New.
type Config struct {
	ProjectID string
	RootPath  string
	DataDir   string

	Metadata store.MetadataStore
	BM25     store.BM25Index
	Vector   store.VectorStore
	Embedder embed.Embedder

	CodeChunker chunk.Chunker
	MDChunker   chunk.Chunker
	Scanner     *scanner.Scanner

	Search config.SearchConfig
	Graph  config.GraphConfig

	ExcludePatterns []string
	MaxFileSize     int64
}

// GraphSnapshotName and TemporalHistoryName are the files New/Shutdown
// read and write under DataDir, alongside index.db/vectors.bin (§6).
const (
	GraphSnapshotName = "graph.bin"
)

// Engine is the daemon-resident object owning config, the store handles,
// the dependency graph, and the hybrid retrieval engine behind a single
// readers-writer lock: Search/Status/GetSymbol/GetDependencies take the
// shared (read) side, Index/ProcessFile/RemoveFile take the exclusive side
// only for the bookkeeping that mutates the graph/symbol cache — the heavy
// chunk/embed/store work happens in the pipeline without holding it.
type Engine struct {
	cfg Config

	search   *search.Engine
	symbolic *search.SymbolicIndex
	graph    *graph.Graph

	pipeline *pipeline

	mu            sync.RWMutex
	symbolByID    map[int64]*store.Symbol
	pathSymbolIDs map[string][]int64

	closed bool
}

// New builds the engine: loads (or creates) the dependency graph, wires a
// symbolic recall index over Metadata, builds the hybrid search.Engine with
// graph/symbolic options attached, and starts the bounded-channel pipeline.
func New(ctx context.Context, cfg Config) (*Engine, error) {
	if cfg.Metadata == nil || cfg.BM25 == nil || cfg.Vector == nil || cfg.Embedder == nil {
		return nil, coreerrors.New(coreerrors.ErrCodeInternal, "engine: metadata, bm25, vector, and embedder are required", nil)
	}
	if cfg.CodeChunker == nil {
		cfg.CodeChunker = chunk.NewCodeChunker()
	}
	if cfg.MDChunker == nil {
		cfg.MDChunker = chunk.NewMarkdownChunker()
	}
	if cfg.Graph.MaxDepth <= 0 {
		cfg.Graph.MaxDepth = 2
	}

	g, err := graph.Load(filepath.Join(cfg.DataDir, GraphSnapshotName))
	if err != nil {
		slog.Warn("engine: failed to load graph snapshot, starting empty", slog.String("error", err.Error()))
		g = graph.New(cfg.Graph.MaxDepth)
	}

	symbolic := search.NewSymbolicIndex(cfg.Metadata)

	searchCfg := search.DefaultConfig()
	searchCfg.DefaultWeights = search.Weights{BM25: cfg.Search.BM25Weight, Semantic: cfg.Search.SemanticWeight}
	if cfg.Search.RRFConstant > 0 {
		searchCfg.RRFConstant = cfg.Search.RRFConstant
	}
	if cfg.Search.MaxResults > 0 {
		searchCfg.MaxLimit = cfg.Search.MaxResults
	}

	se, err := search.NewEngine(cfg.BM25, cfg.Vector, cfg.Embedder, cfg.Metadata, searchCfg,
		search.WithGraph(g),
		search.WithSymbolicIndex(symbolic),
	)
	if err != nil {
		return nil, fmt.Errorf("build search engine: %w", err)
	}

	e := &Engine{
		cfg:           cfg,
		search:        se,
		symbolic:      symbolic,
		graph:         g,
		symbolByID:    make(map[int64]*store.Symbol),
		pathSymbolIDs: make(map[string][]int64),
	}
	e.pipeline = newPipeline(e)
	e.pipeline.start(ctx)

	return e, nil
}

// SearchEngine exposes the underlying hybrid search.Engine for callers
// (such as internal/mcp.NewServer) that need a search.SearchEngine value
// rather than going through Engine's own Search method.
func (e *Engine) SearchEngine() *search.Engine {
	return e.search
}

// Shutdown drains the pipeline, persists the graph snapshot, and closes the
// store handles the engine owns.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.mu.Unlock()

	e.pipeline.stop(ctx)

	if err := e.graph.Save(filepath.Join(e.cfg.DataDir, GraphSnapshotName)); err != nil {
		slog.Warn("engine: failed to persist graph snapshot", slog.String("error", err.Error()))
	}

	// search.Engine.Close already closes bm25/vector/metadata (it owns all
	// three handles), so Shutdown only needs to delegate to it.
	return e.search.Close()
}

// Index walks path (relative to RootPath, "." for the whole project)
// and feeds every discovered file through the ingestion pipeline,
// returning a summary report once every file has been processed.
func (e *Engine) Index(ctx context.Context, path string) (*IndexReport, error) {
	return e.pipeline.indexTree(ctx, path)
}

// ProcessFile (re)indexes a single file, used by the file watcher and by
// Index's per-file fan-out alike.
func (e *Engine) ProcessFile(ctx context.Context, relPath string) error {
	return e.pipeline.submit(ctx, fileJob{kind: jobIndex, path: relPath})
}

// RemoveFile removes a single file's chunks from every index.
func (e *Engine) RemoveFile(ctx context.Context, relPath string) error {
	return e.pipeline.submit(ctx, fileJob{kind: jobRemove, path: relPath})
}

// Search runs the hybrid retrieval pipeline. It is gated by the bounded
// query queue: when the queue is full, it returns ErrCodeQueryQueueBusy
// immediately rather than piling up latency behind an already-saturated
// engine (spec.md §5's "busy-error on a full query queue").
func (e *Engine) Search(ctx context.Context, query string, opts search.SearchOptions) ([]*search.SearchResult, error) {
	release, err := e.pipeline.acquireQuerySlot()
	if err != nil {
		return nil, err
	}
	defer release()

	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.search.Search(ctx, query, opts)
}

// ContextWindow runs Search and packs the ranked results into a
// token-budgeted AssembledContext, subject to the same query-queue gate.
func (e *Engine) ContextWindow(ctx context.Context, query string, opts search.SearchOptions, maxTokens int) (*search.AssembledContext, error) {
	release, err := e.pipeline.acquireQuerySlot()
	if err != nil {
		return nil, err
	}
	defer release()

	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.search.ContextWindow(ctx, query, opts, maxTokens)
}
