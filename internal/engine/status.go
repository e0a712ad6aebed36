package engine

import (
	"context"
	"time"
)

// IndexReport summarizes a completed Index call.
type IndexReport struct {
	Indexed    int
	Failed     int
	ScanErrors int
	Duration   time.Duration
}

// QueueDepths snapshots how full each pipeline stage's queue is at the
// moment Status is called, the operational signal the teacher's
// async.IndexProgress gave for a single background indexer generalized to
// the bounded multi-stage pipeline.
type QueueDepths struct {
	FileEvents int
	Embed      int
	Store      int
	QuerySlotsInUse int
}

// EngineStatus is the engine's answer to spec.md §6's Status() →
// EngineStatus: enough to render `omnicontext status` and the MCP
// index_status tool without either one touching the stores directly.
type EngineStatus struct {
	ProjectID       string
	FileCount       int
	ChunkCount      int
	GraphNodes      int
	GraphEdges      int
	EmbedderModel   string
	EmbedderReady   bool
	Queues          QueueDepths
	Degraded        []string
}

// Status reports the engine's current size and health. Degraded lists
// features running without their full signal (e.g. "graph: empty" before
// the first Index call, "embedder: unavailable" when the configured
// backend failed to load and a fallback embedder is serving searches).
func (e *Engine) Status(ctx context.Context) (*EngineStatus, error) {
	project, err := e.cfg.Metadata.GetProject(ctx, e.cfg.ProjectID)
	if err != nil {
		return nil, err
	}

	status := &EngineStatus{
		ProjectID:     e.cfg.ProjectID,
		FileCount:     project.FileCount,
		ChunkCount:    project.ChunkCount,
		GraphNodes:    e.graph.NodeCount(),
		GraphEdges:    e.graph.EdgeCount(),
		EmbedderModel: e.cfg.Embedder.ModelName(),
		EmbedderReady: e.cfg.Embedder.Available(),
		Queues: QueueDepths{
			FileEvents:      len(e.pipeline.fileEvents),
			Embed:           len(e.pipeline.embedQueue),
			Store:           len(e.pipeline.storeQueue),
			QuerySlotsInUse: int(e.pipeline.queryInUse.Load()),
		},
	}

	if status.GraphNodes == 0 {
		status.Degraded = append(status.Degraded, "graph: empty, run Index to populate")
	}
	if !status.EmbedderReady {
		status.Degraded = append(status.Degraded, "embedder: unavailable, dense signal degraded")
	}

	return status, nil
}
