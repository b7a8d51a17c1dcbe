package store

import "fmt"

// schemaSQL returns the DDL for the property graph. embeddingDim controls
// the vec0 virtual table dimension; zero leaves the table out.
func schemaSQL(embeddingDim int) string {
	ddl := `
-- Nodes are identified by their (category, name) pair
CREATE TABLE IF NOT EXISTS nodes (
    id INTEGER PRIMARY KEY,
    category TEXT NOT NULL,
    name TEXT NOT NULL,
    kind TEXT NOT NULL DEFAULT 'entity',
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    UNIQUE(category, name)
);

-- Directed labelled edges, one per (source, target, label)
CREATE TABLE IF NOT EXISTS edges (
    id INTEGER PRIMARY KEY,
    source_id INTEGER NOT NULL REFERENCES nodes(id) ON DELETE CASCADE,
    target_id INTEGER NOT NULL REFERENCES nodes(id) ON DELETE CASCADE,
    label TEXT NOT NULL,
    kind TEXT NOT NULL,
    source_file TEXT,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    UNIQUE(source_id, target_id, label)
);

-- One row per imported spreadsheet
CREATE TABLE IF NOT EXISTS import_log (
    id INTEGER PRIMARY KEY,
    source_file TEXT NOT NULL,
    kind TEXT NOT NULL,
    rows_read INTEGER NOT NULL,
    nodes_created INTEGER NOT NULL,
    edges_created INTEGER NOT NULL,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_nodes_category ON nodes(category);
CREATE INDEX IF NOT EXISTS idx_edges_source ON edges(source_id);
CREATE INDEX IF NOT EXISTS idx_edges_target ON edges(target_id);
`
	if embeddingDim > 0 {
		ddl += fmt.Sprintf(`
-- Node-name embeddings via sqlite-vec
CREATE VIRTUAL TABLE IF NOT EXISTS vec_nodes USING vec0(
    node_id INTEGER PRIMARY KEY,
    embedding float[%d]
);
`, embeddingDim)
	}
	return ddl
}
