package engine

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/omnicontext/omnicontext-core/internal/chunk"
	coreerrors "github.com/omnicontext/omnicontext-core/internal/errors"
	"github.com/omnicontext/omnicontext-core/internal/scanner"
	"github.com/omnicontext/omnicontext-core/internal/store"
)

// Queue capacities and worker-pool sizes for the ingestion pipeline
// (spec.md §4.7/§5): a file event waits in fileEventQueue until a parse
// worker claims it, chunked files wait in embedQueue until an embed worker
// claims them, and embedded files wait in storeQueue for bookkeeping.
// querySlots bounds in-flight searches; Search returns a busy error rather
// than blocking once it is exhausted.
const (
	fileEventQueueCap = 256
	embedQueueCap     = 128
	storeQueueCap     = 64
	queryQueueCap     = 32

	// parseConcurrency/embedConcurrency bound the semaphore-gated worker
	// pools for the CPU-bound parse stage and the (possibly
	// not-thread-safe) embedder, per spec.md §5's "funneled through a
	// dedicated inference goroutine when the backend is not thread-safe".
	parseConcurrency = 4
	embedConcurrency = 2
)

type jobKind int

const (
	jobIndex jobKind = iota
	jobRemove
)

// fileJob is a unit of work entering the pipeline via Engine.ProcessFile,
// Engine.RemoveFile, or Engine.Index's per-file fan-out.
type fileJob struct {
	kind   jobKind
	path   string
	result chan error
}

// parsedJob is a chunked file waiting for the embed stage.
type parsedJob struct {
	job    fileJob
	file   *store.File
	chunks []*store.Chunk
}

// storeJob is an embedded-and-persisted file waiting for graph/symbol
// bookkeeping, the pipeline's final stage.
type storeJob struct {
	job    fileJob
	path   string
	chunks []*store.Chunk
}

// pipeline implements the bounded multi-stage worker pool described in
// spec.md §4.7: parse → embed → store, fed by a bounded file-event queue,
// plus a separate query-queue gate for Search/ContextWindow.
type pipeline struct {
	engine *Engine

	fileEvents chan fileJob
	embedQueue chan parsedJob
	storeQueue chan storeJob

	parseSem *semaphore.Weighted
	embedSem *semaphore.Weighted
	querySem *semaphore.Weighted
	queryInUse atomic.Int64

	group  *errgroup.Group
	cancel context.CancelFunc
}

func newPipeline(e *Engine) *pipeline {
	return &pipeline{
		engine:     e,
		fileEvents: make(chan fileJob, fileEventQueueCap),
		embedQueue: make(chan parsedJob, embedQueueCap),
		storeQueue: make(chan storeJob, storeQueueCap),
		parseSem:   semaphore.NewWeighted(parseConcurrency),
		embedSem:   semaphore.NewWeighted(embedConcurrency),
		querySem:   semaphore.NewWeighted(queryQueueCap),
	}
}

func (p *pipeline) start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	g, runCtx := errgroup.WithContext(runCtx)
	p.cancel = cancel
	p.group = g

	g.Go(func() error { return p.runDispatch(runCtx) })
	g.Go(func() error { return p.runEmbedStage(runCtx) })
	g.Go(func() error { return p.runStoreStage(runCtx) })
}

// stop closes the intake queue, waits for in-flight work to drain (subject
// to ctx), and cancels anything still running when ctx expires first.
func (p *pipeline) stop(ctx context.Context) {
	close(p.fileEvents)

	done := make(chan struct{})
	go func() {
		_ = p.group.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		p.cancel()
		<-done
	}
}

// submit enqueues a job and blocks until it has been fully processed,
// giving ProcessFile/RemoveFile synchronous, error-returning semantics
// even though the work happens on pipeline goroutines.
func (p *pipeline) submit(ctx context.Context, job fileJob) error {
	job.result = make(chan error, 1)

	select {
	case p.fileEvents <- job:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-job.result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// acquireQuerySlot implements the busy-error gate on the query queue:
// TryAcquire never blocks, so a saturated engine fails fast instead of
// queuing searches behind an already-long backlog.
func (p *pipeline) acquireQuerySlot() (release func(), err error) {
	if !p.querySem.TryAcquire(1) {
		return nil, coreerrors.New(coreerrors.ErrCodeQueryQueueBusy,
			"search engine is at capacity, retry shortly", nil).
			WithSuggestion("retry the request after a short backoff")
	}
	p.queryInUse.Add(1)
	return func() {
		p.queryInUse.Add(-1)
		p.querySem.Release(1)
	}, nil
}

// runDispatch is the parse stage: it pulls jobs off fileEvents and, for
// index jobs, hands them to a semaphore-gated goroutine that stats, reads,
// and chunks the file before forwarding to embedQueue. Remove jobs don't
// need parsing or embedding, so they're handled inline.
func (p *pipeline) runDispatch(ctx context.Context) error {
	for {
		select {
		case job, ok := <-p.fileEvents:
			if !ok {
				return nil
			}
			if job.kind == jobRemove {
				err := p.engine.removeFile(ctx, job.path)
				deliver(job, err)
				continue
			}
			if err := p.parseSem.Acquire(ctx, 1); err != nil {
				deliver(job, err)
				continue
			}
			go func(job fileJob) {
				defer p.parseSem.Release(1)
				parsed, err := p.engine.parseFile(ctx, job.path)
				if err != nil {
					deliver(job, err)
					return
				}
				if parsed == nil {
					// Skipped (binary, oversized, unsupported type): nothing
					// left to embed or store.
					deliver(job, nil)
					return
				}
				select {
				case p.embedQueue <- parsedJob{job: job, file: parsed.file, chunks: parsed.chunks}:
				case <-ctx.Done():
					deliver(job, ctx.Err())
				}
			}(job)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (p *pipeline) runEmbedStage(ctx context.Context) error {
	for {
		select {
		case pj, ok := <-p.embedQueue:
			if !ok {
				return nil
			}
			go func(pj parsedJob) {
				if err := p.embedSem.Acquire(ctx, 1); err != nil {
					deliver(pj.job, err)
					return
				}
				defer p.embedSem.Release(1)

				if err := p.engine.search.Index(ctx, pj.chunks); err != nil {
					deliver(pj.job, fmt.Errorf("index chunks: %w", err))
					return
				}
				select {
				case p.storeQueue <- storeJob{job: pj.job, path: pj.job.path, chunks: pj.chunks}:
				case <-ctx.Done():
					deliver(pj.job, ctx.Err())
				}
			}(pj)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// runStoreStage is the pipeline's final stage: it registers the file's
// symbols in the engine's id/path caches (GetSymbol, GetDependencies,
// GetFileSummary all read from these) and reports success back to the
// original caller.
func (p *pipeline) runStoreStage(ctx context.Context) error {
	for {
		select {
		case sj, ok := <-p.storeQueue:
			if !ok {
				return nil
			}
			p.engine.registerSymbols(sj.path, sj.chunks)
			deliver(sj.job, nil)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func deliver(job fileJob, err error) {
	if job.result == nil {
		return
	}
	select {
	case job.result <- err:
	default:
	}
}

// indexTree scans relPath (relative to RootPath) and feeds every
// discovered file through the same pipeline ProcessFile uses, returning
// once the whole tree has been processed.
func (p *pipeline) indexTree(ctx context.Context, relPath string) (*IndexReport, error) {
	start := time.Now()
	report := &IndexReport{}

	if p.engine.cfg.Scanner == nil {
		return nil, coreerrors.New(coreerrors.ErrCodeInternal, "engine: no scanner configured for Index", nil)
	}

	opts := &scanner.ScanOptions{
		RootDir:         p.engine.cfg.RootPath,
		ExcludePatterns: p.engine.cfg.ExcludePatterns,
		RespectGitignore: true,
		MaxFileSize:     p.engine.cfg.MaxFileSize,
	}

	var results <-chan scanner.ScanResult
	var err error
	if relPath == "" || relPath == "." {
		results, err = p.engine.cfg.Scanner.Scan(ctx, opts)
	} else {
		results, err = p.engine.cfg.Scanner.ScanSubtree(ctx, opts, relPath)
	}
	if err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}

	var jobs []fileJob
	for res := range results {
		if res.Error != nil {
			report.ScanErrors++
			continue
		}
		jobs = append(jobs, fileJob{kind: jobIndex, path: res.File.Path, result: make(chan error, 1)})
	}

	for _, job := range jobs {
		select {
		case p.fileEvents <- job:
		case <-ctx.Done():
			return report, ctx.Err()
		}
	}
	for _, job := range jobs {
		if err := <-job.result; err != nil {
			report.Failed++
			slog.Warn("engine: file failed to index", slog.String("path", job.path), slog.String("error", err.Error()))
			continue
		}
		report.Indexed++
	}

	if err := p.engine.buildTemporalEdges(ctx); err != nil {
		slog.Warn("engine: temporal co-change edge build failed", slog.String("error", err.Error()))
	}

	report.Duration = time.Since(start)
	return report, nil
}

// parsedFile is parseFile's result: a saved file record plus its chunks,
// ready for the embed stage.
type parsedFile struct {
	file   *store.File
	chunks []*store.Chunk
}

// parseFile mirrors the teacher's Coordinator.indexFile (stat, symlink and
// size guards, binary/content-type detection, chunking, file-record save)
// up to but not including embedding, which the pipeline's embed stage
// handles separately.
func (e *Engine) parseFile(ctx context.Context, relPath string) (*parsedFile, error) {
	absPath := filepath.Join(e.cfg.RootPath, relPath)

	info, err := os.Lstat(absPath)
	if err != nil {
		return nil, fmt.Errorf("stat file: %w", err)
	}
	if info.Mode()&os.ModeSymlink != 0 {
		return nil, nil
	}

	maxSize := e.cfg.MaxFileSize
	if maxSize <= 0 {
		maxSize = scanner.DefaultMaxFileSize
	}
	if info.Size() > maxSize {
		slog.Warn("engine: skipping oversized file", slog.String("path", relPath), slog.Int64("size", info.Size()))
		return nil, nil
	}

	content, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	if isBinaryContent(content) {
		return nil, nil
	}

	language := scanner.DetectLanguage(relPath)
	contentType := scanner.DetectContentType(language)
	if contentType != scanner.ContentTypeCode && contentType != scanner.ContentTypeMarkdown {
		return nil, nil
	}

	// Drop any existing chunks for this file before re-chunking (idempotent
	// on repeated ProcessFile calls for the same path).
	_ = e.removeFile(ctx, relPath)

	var chunker chunk.Chunker
	if contentType == scanner.ContentTypeCode {
		chunker = e.cfg.CodeChunker
	} else {
		chunker = e.cfg.MDChunker
	}

	chunks, err := chunker.Chunk(ctx, &chunk.FileInput{Path: relPath, Content: content, Language: language})
	if err != nil {
		return nil, fmt.Errorf("chunk file: %w", err)
	}
	if len(chunks) == 0 {
		return nil, nil
	}

	fileID := generateFileID(e.cfg.ProjectID, relPath)
	file := &store.File{
		ID:          fileID,
		ProjectID:   e.cfg.ProjectID,
		Path:        relPath,
		Size:        info.Size(),
		ModTime:     info.ModTime(),
		ContentHash: hashContent(content),
		Language:    language,
		ContentType: string(contentType),
	}
	if err := e.cfg.Metadata.SaveFiles(ctx, []*store.File{file}); err != nil {
		return nil, fmt.Errorf("save file record: %w", err)
	}

	storeChunks := convertChunks(chunks, fileID, relPath, language)
	return &parsedFile{file: file, chunks: storeChunks}, nil
}

// removeFile deletes a file's existing chunks from every index, mirroring
// the teacher's Coordinator.removeFile.
func (e *Engine) removeFile(ctx context.Context, relPath string) error {
	fileID := generateFileID(e.cfg.ProjectID, relPath)

	chunks, err := e.cfg.Metadata.GetChunksByFile(ctx, fileID)
	if err != nil || len(chunks) == 0 {
		_ = e.cfg.Metadata.DeleteFile(ctx, fileID)
		return nil
	}

	chunkIDs := make([]string, len(chunks))
	for i, c := range chunks {
		chunkIDs[i] = c.ID
	}
	if err := e.search.Delete(ctx, chunkIDs); err != nil {
		return fmt.Errorf("delete from index: %w", err)
	}
	if err := e.cfg.Metadata.DeleteFile(ctx, fileID); err != nil {
		return fmt.Errorf("delete file record: %w", err)
	}

	e.mu.Lock()
	delete(e.pathSymbolIDs, relPath)
	e.mu.Unlock()

	return nil
}

func generateFileID(projectID, path string) string {
	h := sha256.Sum256([]byte(projectID + ":" + path))
	return fmt.Sprintf("%x", h)[:32]
}

func hashContent(content []byte) string {
	h := sha256.Sum256(content)
	return fmt.Sprintf("%x", h)
}

func isBinaryContent(content []byte) bool {
	n := len(content)
	if n > 8000 {
		n = 8000
	}
	for i := 0; i < n; i++ {
		if content[i] == 0 {
			return true
		}
	}
	return false
}
