// Package store persists the triple graph in SQLite: nodes keyed by
// (category, name), labelled directed edges between them, an import log,
// and optional node-name embeddings searched with sqlite-vec.
package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	"github.com/mattn/go-sqlite3"
)

func init() {
	sqlite_vec.Auto()
}

var (
	ErrNoURI          = errors.New("store: no database uri")
	ErrUnsupportedURI = errors.New("store: unsupported database scheme")
	ErrNotFound       = errors.New("store: not found")
	ErrNoEmbeddings   = errors.New("store: node embeddings are disabled")

	// ErrAuthUnsupported is returned when credentials are given but the
	// SQLite build cannot check them.
	ErrAuthUnsupported = errors.New("store: credentials given but user authentication is not available")
)

// Node kinds.
const (
	KindEntity    = "entity"
	KindAttribute = "attribute"
)

// Node represents a row in the nodes table.
type Node struct {
	ID       int64  `json:"id"`
	Category string `json:"category"`
	Name     string `json:"name"`
	Kind     string `json:"kind"`
}

// Edge represents a row in the edges table.
type Edge struct {
	ID         int64  `json:"id"`
	SourceID   int64  `json:"source_id"`
	TargetID   int64  `json:"target_id"`
	Label      string `json:"label"`
	Kind       string `json:"kind"`
	SourceFile string `json:"source_file,omitempty"`
}

// Triple is one row to write: two nodes and the label between them.
type Triple struct {
	Head  Node
	Tail  Node
	Label string
}

// ImportResult summarises one ImportTriples call.
type ImportResult struct {
	Rows         int `json:"rows"`
	NodesCreated int `json:"nodes_created"`
	EdgesCreated int `json:"edges_created"`
}

// Neighbor is a node adjacent to a given node.
type Neighbor struct {
	Node     Node   `json:"node"`
	Label    string `json:"label"`
	Outgoing bool   `json:"outgoing"`
}

// ScoredNode is a node returned by similarity search.
type ScoredNode struct {
	Node
	Score float64 `json:"score"`
}

// ImportLogEntry represents a row in the import_log table.
type ImportLogEntry struct {
	SourceFile   string `json:"source_file"`
	Kind         string `json:"kind"`
	Rows         int    `json:"rows"`
	NodesCreated int    `json:"nodes_created"`
	EdgesCreated int    `json:"edges_created"`
	CreatedAt    string `json:"created_at"`
}

// Stats holds table counts.
type Stats struct {
	Nodes      int `json:"nodes"`
	Edges      int `json:"edges"`
	Embeddings int `json:"embeddings"`
	Imports    int `json:"imports"`
}

// Store wraps the SQLite graph database.
type Store struct {
	db           *sql.DB
	embeddingDim int
}

// Open connects to the database described by cfg.
func Open(cfg Config) (*Store, error) {
	path, err := ParseURI(cfg.URI)
	if err != nil {
		return nil, err
	}
	return open(path, cfg.Username, cfg.Password, cfg.EmbeddingDim)
}

// New opens (or creates) a SQLite database at dbPath without credentials.
func New(dbPath string, embeddingDim int) (*Store, error) {
	return open(dbPath, "", "", embeddingDim)
}

func open(dbPath, username, password string, embeddingDim int) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dsn(dbPath, username, password))
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	if username != "" {
		if err := checkAuth(db); err != nil {
			db.Close()
			return nil, err
		}
	}

	if _, err := db.Exec(schemaSQL(embeddingDim)); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	s := &Store{db: db, embeddingDim: embeddingDim}

	if err := s.Migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// checkAuth fails unless the connection enforces user authentication.
// Without the sqlite_userauth build tag go-sqlite3 ignores _auth_user and
// _auth_pass, so any password would be let in.
func checkAuth(db *sql.DB) error {
	conn, err := db.Conn(context.Background())
	if err != nil {
		return fmt.Errorf("checking authentication: %w", err)
	}
	defer conn.Close()
	return conn.Raw(func(dc any) error {
		sc, ok := dc.(*sqlite3.SQLiteConn)
		if !ok || !sc.AuthEnabled() {
			return ErrAuthUnsupported
		}
		return nil
	})
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for advanced queries.
func (s *Store) DB() *sql.DB {
	return s.db
}

// EmbeddingDim returns the configured embedding dimension.
func (s *Store) EmbeddingDim() int {
	return s.embeddingDim
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// --- Node operations ---

// UpsertNode inserts n unless a node with the same category and name
// exists. It returns the node ID and whether a row was created.
func (s *Store) UpsertNode(ctx context.Context, n Node) (int64, bool, error) {
	return upsertNode(ctx, s.db, n)
}

func upsertNode(ctx context.Context, q querier, n Node) (int64, bool, error) {
	if n.Kind == "" {
		n.Kind = KindEntity
	}
	res, err := q.ExecContext(ctx, `
		INSERT INTO nodes (category, name, kind) VALUES (?, ?, ?)
		ON CONFLICT(category, name) DO NOTHING
	`, n.Category, n.Name, n.Kind)
	if err != nil {
		return 0, false, err
	}
	created, err := res.RowsAffected()
	if err != nil {
		return 0, false, err
	}

	var id int64
	row := q.QueryRowContext(ctx,
		"SELECT id FROM nodes WHERE category = ? AND name = ?", n.Category, n.Name)
	if err := row.Scan(&id); err != nil {
		return 0, false, err
	}
	return id, created > 0, nil
}

// GetNode returns the node with the given category and name.
func (s *Store) GetNode(ctx context.Context, category, name string) (*Node, error) {
	var n Node
	err := s.db.QueryRowContext(ctx,
		"SELECT id, category, name, kind FROM nodes WHERE category = ? AND name = ?",
		category, name).Scan(&n.ID, &n.Category, &n.Name, &n.Kind)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: node %s:%s", ErrNotFound, category, name)
	}
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// ListNodes returns nodes ordered by ID, optionally restricted to a
// category. A non-positive limit defaults to 100.
func (s *Store) ListNodes(ctx context.Context, category string, limit int) ([]Node, error) {
	if limit <= 0 {
		limit = 100
	}
	query := "SELECT id, category, name, kind FROM nodes"
	args := []any{}
	if category != "" {
		query += " WHERE category = ?"
		args = append(args, category)
	}
	query += " ORDER BY id LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var nodes []Node
	for rows.Next() {
		var n Node
		if err := rows.Scan(&n.ID, &n.Category, &n.Name, &n.Kind); err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	return nodes, rows.Err()
}

// --- Edge operations ---

// InsertEdge adds an edge unless one with the same source, target and
// label exists. It returns whether a row was created.
func (s *Store) InsertEdge(ctx context.Context, e Edge) (bool, error) {
	return insertEdge(ctx, s.db, e)
}

func insertEdge(ctx context.Context, q querier, e Edge) (bool, error) {
	res, err := q.ExecContext(ctx, `
		INSERT OR IGNORE INTO edges (source_id, target_id, label, kind, source_file)
		VALUES (?, ?, ?, ?, ?)
	`, e.SourceID, e.TargetID, e.Label, e.Kind, e.SourceFile)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ImportTriples writes every triple from one spreadsheet in a single
// transaction and records the import. Either all rows land or none do.
func (s *Store) ImportTriples(ctx context.Context, sourceFile, kind string, triples []Triple) (*ImportResult, error) {
	res := &ImportResult{Rows: len(triples)}
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		for i, t := range triples {
			headID, created, err := upsertNode(ctx, tx, t.Head)
			if err != nil {
				return fmt.Errorf("row %d head node: %w", i+1, err)
			}
			if created {
				res.NodesCreated++
			}
			tailID, created, err := upsertNode(ctx, tx, t.Tail)
			if err != nil {
				return fmt.Errorf("row %d tail node: %w", i+1, err)
			}
			if created {
				res.NodesCreated++
			}
			created, err = insertEdge(ctx, tx, Edge{
				SourceID:   headID,
				TargetID:   tailID,
				Label:      t.Label,
				Kind:       kind,
				SourceFile: sourceFile,
			})
			if err != nil {
				return fmt.Errorf("row %d edge: %w", i+1, err)
			}
			if created {
				res.EdgesCreated++
			}
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO import_log (source_file, kind, rows_read, nodes_created, edges_created)
			VALUES (?, ?, ?, ?, ?)
		`, sourceFile, kind, res.Rows, res.NodesCreated, res.EdgesCreated)
		return err
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Neighbors returns the nodes joined to nodeID by an edge in either
// direction, outgoing edges first.
func (s *Store) Neighbors(ctx context.Context, nodeID int64, limit int) ([]Neighbor, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT n.id, n.category, n.name, n.kind, e.label, 1 AS outgoing, e.id
		FROM edges e JOIN nodes n ON n.id = e.target_id
		WHERE e.source_id = ?
		UNION ALL
		SELECT n.id, n.category, n.name, n.kind, e.label, 0 AS outgoing, e.id
		FROM edges e JOIN nodes n ON n.id = e.source_id
		WHERE e.target_id = ?
		ORDER BY outgoing DESC, 7
		LIMIT ?
	`, nodeID, nodeID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Neighbor
	for rows.Next() {
		var nb Neighbor
		var edgeID int64
		if err := rows.Scan(&nb.Node.ID, &nb.Node.Category, &nb.Node.Name, &nb.Node.Kind,
			&nb.Label, &nb.Outgoing, &edgeID); err != nil {
			return nil, err
		}
		out = append(out, nb)
	}
	return out, rows.Err()
}

// Counts returns row counts for the graph tables.
func (s *Store) Counts(ctx context.Context) (*Stats, error) {
	stats := &Stats{}
	queries := []struct {
		query string
		dest  *int
	}{
		{"SELECT COUNT(*) FROM nodes", &stats.Nodes},
		{"SELECT COUNT(*) FROM edges", &stats.Edges},
		{"SELECT COUNT(*) FROM import_log", &stats.Imports},
	}
	if s.embeddingDim > 0 {
		queries = append(queries, struct {
			query string
			dest  *int
		}{"SELECT COUNT(*) FROM vec_nodes", &stats.Embeddings})
	}
	for _, q := range queries {
		if err := s.db.QueryRowContext(ctx, q.query).Scan(q.dest); err != nil {
			return nil, fmt.Errorf("counting %s: %w", q.query, err)
		}
	}
	return stats, nil
}

// ImportLog returns the most recent imports, newest first.
func (s *Store) ImportLog(ctx context.Context, limit int) ([]ImportLogEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT source_file, kind, rows_read, nodes_created, edges_created, created_at
		FROM import_log ORDER BY id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ImportLogEntry
	for rows.Next() {
		var e ImportLogEntry
		if err := rows.Scan(&e.SourceFile, &e.Kind, &e.Rows, &e.NodesCreated,
			&e.EdgesCreated, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// --- Embeddings ---

// InsertNodeEmbedding stores or replaces the embedding for a node.
func (s *Store) InsertNodeEmbedding(ctx context.Context, nodeID int64, embedding []float32) error {
	if s.embeddingDim <= 0 {
		return ErrNoEmbeddings
	}
	if len(embedding) != s.embeddingDim {
		return fmt.Errorf("embedding has %d dimensions, want %d", len(embedding), s.embeddingDim)
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM vec_nodes WHERE node_id = ?", nodeID); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx,
			"INSERT INTO vec_nodes (node_id, embedding) VALUES (?, ?)",
			nodeID, serializeFloat32(embedding))
		return err
	})
}

// NodesWithoutEmbedding returns up to limit nodes that have no embedding.
func (s *Store) NodesWithoutEmbedding(ctx context.Context, limit int) ([]Node, error) {
	if s.embeddingDim <= 0 {
		return nil, ErrNoEmbeddings
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, category, name, kind FROM nodes
		WHERE id NOT IN (SELECT node_id FROM vec_nodes)
		ORDER BY id LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var nodes []Node
	for rows.Next() {
		var n Node
		if err := rows.Scan(&n.ID, &n.Category, &n.Name, &n.Kind); err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	return nodes, rows.Err()
}

// SimilarNodes returns the k nodes whose embeddings are nearest to query.
func (s *Store) SimilarNodes(ctx context.Context, query []float32, k int) ([]ScoredNode, error) {
	if s.embeddingDim <= 0 {
		return nil, ErrNoEmbeddings
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT v.node_id, v.distance, n.category, n.name, n.kind
		FROM vec_nodes v
		JOIN nodes n ON n.id = v.node_id
		WHERE v.embedding MATCH ? AND k = ?
		ORDER BY v.distance
	`, serializeFloat32(query), k)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ScoredNode
	for rows.Next() {
		var sn ScoredNode
		var distance float64
		if err := rows.Scan(&sn.ID, &distance, &sn.Category, &sn.Name, &sn.Kind); err != nil {
			return nil, err
		}
		sn.Score = 1.0 - distance
		out = append(out, sn)
	}
	return out, rows.Err()
}

// --- helpers ---

func (s *Store) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// serializeFloat32 converts a float32 slice to little-endian bytes for sqlite-vec.
func serializeFloat32(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}
