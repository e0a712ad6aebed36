package store

import (
	"context"

	"github.com/omnicontext/omnicontext-core/internal/graph"
)

// SaveDependencyEdges persists the dependency graph's edge set so a daemon
// restart can rebuild internal/graph.Graph without replaying tree-sitter
// analysis over the whole project (spec.md §6's "dep_edges is the
// authoritative source, graph.bin is a cache" model).
func (s *SQLiteStore) SaveDependencyEdges(ctx context.Context, edges []graph.Edge) error {
	if len(edges) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO dep_edges (source_id, target_id, kind, weight)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(source_id, target_id, kind) DO UPDATE SET weight = excluded.weight
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, e := range edges {
		if _, err := stmt.ExecContext(ctx, e.Source, e.Target, string(e.Kind), e.Weight); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// GetAllDependencyEdges loads the full dependency edge set, used to
// rebuild internal/graph.Graph at engine startup when graph.bin is
// missing or stale.
func (s *SQLiteStore) GetAllDependencyEdges(ctx context.Context) ([]graph.Edge, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT source_id, target_id, kind, weight FROM dep_edges`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []graph.Edge
	for rows.Next() {
		var e graph.Edge
		var kind string
		if err := rows.Scan(&e.Source, &e.Target, &kind, &e.Weight); err != nil {
			return nil, err
		}
		e.Kind = graph.EdgeKind(kind)
		out = append(out, e)
	}
	return out, rows.Err()
}

// DeleteDependencyEdgesFrom removes every edge sourced at the given symbol
// ids, used when a file is re-indexed and its outgoing references need to
// be recomputed from scratch rather than accumulating stale edges.
func (s *SQLiteStore) DeleteDependencyEdgesFrom(ctx context.Context, sourceIDs []int64) error {
	if len(sourceIDs) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `DELETE FROM dep_edges WHERE source_id = ?`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, id := range sourceIDs {
		if _, err := stmt.ExecContext(ctx, id); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// SaveCommunities replaces the stored community-detection result with a
// freshly computed one.
func (s *SQLiteStore) SaveCommunities(ctx context.Context, communities []graph.Community) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM community_members`); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM communities`); err != nil {
		return err
	}

	commStmt, err := tx.PrepareContext(ctx, `INSERT INTO communities (id, modularity) VALUES (?, ?)`)
	if err != nil {
		return err
	}
	defer commStmt.Close()

	memberStmt, err := tx.PrepareContext(ctx, `INSERT INTO community_members (community_id, symbol_id) VALUES (?, ?)`)
	if err != nil {
		return err
	}
	defer memberStmt.Close()

	for _, c := range communities {
		if _, err := commStmt.ExecContext(ctx, c.ID, c.Modularity); err != nil {
			return err
		}
		for _, member := range c.Members {
			if _, err := memberStmt.ExecContext(ctx, c.ID, member); err != nil {
				return err
			}
		}
	}
	return tx.Commit()
}

// GetCommunities loads the last persisted community-detection result.
func (s *SQLiteStore) GetCommunities(ctx context.Context) ([]graph.Community, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, modularity FROM communities ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var communities []graph.Community
	for rows.Next() {
		var c graph.Community
		if err := rows.Scan(&c.ID, &c.Modularity); err != nil {
			return nil, err
		}
		communities = append(communities, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range communities {
		members, err := s.communityMembers(ctx, communities[i].ID)
		if err != nil {
			return nil, err
		}
		communities[i].Members = members
	}
	return communities, nil
}

func (s *SQLiteStore) communityMembers(ctx context.Context, communityID int) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT symbol_id FROM community_members WHERE community_id = ? ORDER BY symbol_id`, communityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		members = append(members, id)
	}
	return members, rows.Err()
}
