package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"factorylift/internal/component"
	"factorylift/internal/deploy"
	"factorylift/internal/extractor"
	"factorylift/internal/graph"
	"factorylift/internal/planner"
	"factorylift/internal/transform"

	_ "github.com/mattn/go-sqlite3"
)

type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore creates or opens a SQLite database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		return nil, err
	}

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init schema: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS components (
			id TEXT PRIMARY KEY,
			position INTEGER,
			name TEXT,
			kind TEXT,
			sub_type TEXT,
			status TEXT,
			fingerprint TEXT,
			body JSON
		);`,
		`CREATE TABLE IF NOT EXISTS nodes (
			id TEXT PRIMARY KEY,
			name TEXT,
			kind TEXT,
			sub_type TEXT,
			label TEXT,
			status TEXT,
			placeholder INTEGER
		);`,
		`CREATE TABLE IF NOT EXISTS edges (
			position INTEGER,
			from_id TEXT,
			to_id TEXT,
			relation TEXT,
			location TEXT,
			PRIMARY KEY (from_id, to_id, relation)
		);`,
		`CREATE TABLE IF NOT EXISTS gaps (
			from_id TEXT,
			target TEXT,
			target_kind TEXT,
			relation TEXT,
			reason TEXT
		);`,
		`CREATE TABLE IF NOT EXISTS pipelines (
			name TEXT PRIMARY KEY,
			definition JSON
		);`,
		`CREATE TABLE IF NOT EXISTS transform_failures (
			pipeline TEXT PRIMARY KEY,
			error TEXT
		);`,
		`CREATE TABLE IF NOT EXISTS deploy_order (
			position INTEGER PRIMARY KEY,
			pipeline TEXT,
			level INTEGER,
			record JSON
		);`,
		`CREATE TABLE IF NOT EXISTS deployed_artifacts (
			name TEXT PRIMARY KEY,
			artifact_id TEXT,
			workspace_id TEXT,
			deployed_at TEXT
		);`,
		`CREATE INDEX IF NOT EXISTS idx_nodes_kind ON nodes(kind);`,
	}

	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return err
		}
	}
	return nil
}

// --- ComponentStore Implementation ---

func (s *SQLiteStore) SaveComponents(ctx context.Context, comps []*component.Component) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM components`); err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO components (id, position, name, kind, sub_type, status, fingerprint, body)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			position=excluded.position,
			name=excluded.name,
			kind=excluded.kind,
			sub_type=excluded.sub_type,
			status=excluded.status,
			fingerprint=excluded.fingerprint,
			body=excluded.body
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, c := range comps {
		body, err := json.Marshal(c)
		if err != nil {
			return fmt.Errorf("encode component %s: %w", c.ID(), err)
		}
		if _, err := stmt.ExecContext(ctx, c.ID(), i, c.Name, string(c.Kind), c.SubType, string(c.Status), extractor.Fingerprint(c), body); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) LoadComponents(ctx context.Context) ([]*component.Component, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT body FROM components ORDER BY position")
	if err != nil {
		return nil, fmt.Errorf("failed to query components: %w", err)
	}
	defer rows.Close()

	var out []*component.Component
	for rows.Next() {
		var body []byte
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("failed to scan component: %w", err)
		}
		var c component.Component
		if err := json.Unmarshal(body, &c); err != nil {
			return nil, fmt.Errorf("failed to decode component: %w", err)
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Fingerprints(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, fingerprint FROM components")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var id, fp string
		if err := rows.Scan(&id, &fp); err != nil {
			return nil, err
		}
		out[id] = fp
	}
	return out, rows.Err()
}

// --- GraphStore Implementation ---

// SaveGraph replaces the stored graph with g.
func (s *SQLiteStore) SaveGraph(ctx context.Context, g *graph.Graph) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, table := range []string{"nodes", "edges", "gaps"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}

	// 1. Save Nodes
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO nodes (id, name, kind, sub_type, label, status, placeholder)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, id := range g.NodeIDs() {
		n := g.Nodes[id]
		if _, err := stmt.ExecContext(ctx, n.ID, n.Name, string(n.Kind), n.SubType, n.Label, string(n.Status), n.Placeholder); err != nil {
			return err
		}
	}

	// 2. Save Edges
	edgeStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO edges (position, from_id, to_id, relation, location) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(from_id, to_id, relation) DO NOTHING
	`)
	if err != nil {
		return err
	}
	defer edgeStmt.Close()

	for i, edge := range g.Edges {
		if _, err := edgeStmt.ExecContext(ctx, i, edge.From, edge.To, string(edge.Relation), edge.Location); err != nil {
			return err
		}
	}

	// 3. Save Gaps
	gapStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO gaps (from_id, target, target_kind, relation, reason) VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer gapStmt.Close()

	for _, gap := range g.Gaps {
		if _, err := gapStmt.ExecContext(ctx, gap.From, gap.Target, string(gap.TargetKind), string(gap.Relation), string(gap.Reason)); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (s *SQLiteStore) LoadGraph(ctx context.Context) (*graph.Graph, error) {
	g := graph.NewGraph()

	// 1. Load Nodes
	nodes, err := s.queryNodes(ctx, "SELECT id, name, kind, sub_type, label, status, placeholder FROM nodes")
	if err != nil {
		return nil, err
	}
	for _, n := range nodes {
		g.Nodes[n.ID] = n
	}

	// 2. Load Edges
	edgeRows, err := s.db.QueryContext(ctx, "SELECT from_id, to_id, relation, location FROM edges ORDER BY position")
	if err != nil {
		return nil, fmt.Errorf("failed to query edges: %w", err)
	}
	defer edgeRows.Close()

	for edgeRows.Next() {
		var edge graph.Edge
		var rel string
		if err := edgeRows.Scan(&edge.From, &edge.To, &rel, &edge.Location); err != nil {
			return nil, fmt.Errorf("failed to scan edge: %w", err)
		}
		edge.Relation = graph.RelationKind(rel)
		g.Edges = append(g.Edges, edge)
	}
	if err := edgeRows.Err(); err != nil {
		return nil, err
	}

	// 3. Load Gaps
	gapRows, err := s.db.QueryContext(ctx, "SELECT from_id, target, target_kind, relation, reason FROM gaps ORDER BY rowid")
	if err != nil {
		return nil, fmt.Errorf("failed to query gaps: %w", err)
	}
	defer gapRows.Close()

	for gapRows.Next() {
		var gap graph.Gap
		var kind, rel, reason string
		if err := gapRows.Scan(&gap.From, &gap.Target, &kind, &rel, &reason); err != nil {
			return nil, fmt.Errorf("failed to scan gap: %w", err)
		}
		gap.TargetKind, gap.Relation, gap.Reason = component.Kind(kind), graph.RelationKind(rel), graph.GapReason(reason)
		g.Gaps = append(g.Gaps, gap)
	}
	if err := gapRows.Err(); err != nil {
		return nil, err
	}

	// Rebuild name and edge indexes for lookups
	g.RebuildIndices()
	return g, nil
}

func (s *SQLiteStore) GetNode(ctx context.Context, id string) (*graph.Node, error) {
	nodes, err := s.queryNodes(ctx, "SELECT id, name, kind, sub_type, label, status, placeholder FROM nodes WHERE id = ?", id)
	if err != nil {
		return nil, err
	}
	if len(nodes) == 0 {
		return nil, sql.ErrNoRows
	}
	return nodes[0], nil
}

func (s *SQLiteStore) FindNodesByKind(ctx context.Context, kind component.Kind) ([]*graph.Node, error) {
	return s.queryNodes(ctx, "SELECT id, name, kind, sub_type, label, status, placeholder FROM nodes WHERE kind = ? ORDER BY id", string(kind))
}

func (s *SQLiteStore) queryNodes(ctx context.Context, query string, args ...any) ([]*graph.Node, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query nodes: %w", err)
	}
	defer rows.Close()

	var nodes []*graph.Node
	for rows.Next() {
		var n graph.Node
		var kind, status string
		if err := rows.Scan(&n.ID, &n.Name, &kind, &n.SubType, &n.Label, &status, &n.Placeholder); err != nil {
			return nil, fmt.Errorf("failed to scan node: %w", err)
		}
		n.Kind, n.Status = component.Kind(kind), component.Status(status)
		nodes = append(nodes, &n)
	}
	return nodes, rows.Err()
}

// --- MigrationStore Implementation ---

// SavePipelines upserts transformed pipelines by name.
func (s *SQLiteStore) SavePipelines(ctx context.Context, pipes []*transform.Pipeline) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO pipelines (name, definition) VALUES (?, ?)
		ON CONFLICT(name) DO UPDATE SET definition=excluded.definition
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, p := range pipes {
		def, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("encode pipeline %q: %w", p.Name, err)
		}
		if _, err := stmt.ExecContext(ctx, p.Name, def); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) LoadPipelines(ctx context.Context) ([]*transform.Pipeline, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT definition FROM pipelines ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("failed to query pipelines: %w", err)
	}
	defer rows.Close()

	var out []*transform.Pipeline
	for rows.Next() {
		var def []byte
		if err := rows.Scan(&def); err != nil {
			return nil, fmt.Errorf("failed to scan pipeline: %w", err)
		}
		var p transform.Pipeline
		if err := json.Unmarshal(def, &p); err != nil {
			return nil, fmt.Errorf("failed to decode pipeline: %w", err)
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}

// SaveFailures replaces the recorded transform failures.
func (s *SQLiteStore) SaveFailures(ctx context.Context, failures map[string]string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM transform_failures`); err != nil {
		return err
	}
	for name, msg := range failures {
		if _, err := tx.ExecContext(ctx, `INSERT INTO transform_failures (pipeline, error) VALUES (?, ?)`, name, msg); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) LoadFailures(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT pipeline, error FROM transform_failures")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var name, msg string
		if err := rows.Scan(&name, &msg); err != nil {
			return nil, err
		}
		out[name] = msg
	}
	return out, rows.Err()
}

// SavePlan replaces the stored deployment order.
func (s *SQLiteStore) SavePlan(ctx context.Context, plan *planner.Plan) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM deploy_order`); err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO deploy_order (position, pipeline, level, record) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, rec := range plan.Order {
		body, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, i, rec.Pipeline, rec.Level, body); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) LoadPlan(ctx context.Context) (*planner.Plan, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT record FROM deploy_order ORDER BY position")
	if err != nil {
		return nil, fmt.Errorf("failed to query deploy order: %w", err)
	}
	defer rows.Close()

	plan := &planner.Plan{}
	for rows.Next() {
		var body []byte
		if err := rows.Scan(&body); err != nil {
			return nil, err
		}
		var rec planner.Record
		if err := json.Unmarshal(body, &rec); err != nil {
			return nil, fmt.Errorf("failed to decode deploy order record: %w", err)
		}
		plan.Order = append(plan.Order, rec)
	}
	return plan, rows.Err()
}

func (s *SQLiteStore) RecordArtifact(ctx context.Context, a deploy.Artifact) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO deployed_artifacts (name, artifact_id, workspace_id, deployed_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			artifact_id=excluded.artifact_id,
			workspace_id=excluded.workspace_id,
			deployed_at=excluded.deployed_at
	`, a.Name, a.ID, a.WorkspaceID, time.Now().UTC().Format(time.RFC3339))
	return err
}

func (s *SQLiteStore) LookupArtifact(ctx context.Context, name string) (deploy.Artifact, bool, error) {
	row := s.db.QueryRowContext(ctx, "SELECT name, artifact_id, workspace_id FROM deployed_artifacts WHERE name = ?", name)
	var a deploy.Artifact
	if err := row.Scan(&a.Name, &a.ID, &a.WorkspaceID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return deploy.Artifact{}, false, nil
		}
		return deploy.Artifact{}, false, err
	}
	return a, true, nil
}

func (s *SQLiteStore) Artifacts(ctx context.Context) ([]deploy.Artifact, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT name, artifact_id, workspace_id FROM deployed_artifacts ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []deploy.Artifact
	for rows.Next() {
		var a deploy.Artifact
		if err := rows.Scan(&a.Name, &a.ID, &a.WorkspaceID); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
