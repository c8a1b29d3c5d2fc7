package store

import (
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/jdutton/skillsearch/internal/embedding"
	"github.com/jdutton/skillsearch/internal/schema"
)

// coreColumns are the fixed columns of the chunks table, in insert
// order. Metadata columns are appended after them, one per schema
// field, named by the lower-cased field name.
var coreColumns = []struct {
	name    string
	sqlType string
}{
	{"chunk_id", "TEXT PRIMARY KEY"},
	{"resource_id", "TEXT NOT NULL"},
	{"chunk_index", "INTEGER NOT NULL"},
	{"total_chunks", "INTEGER NOT NULL"},
	{"title", "TEXT NOT NULL DEFAULT ''"},
	{"content", "TEXT NOT NULL"},
	{"content_hash", "TEXT NOT NULL"},
	{"resource_content_hash", "TEXT NOT NULL"},
	{"token_count", "INTEGER NOT NULL"},
	{"previous_chunk_id", "TEXT NOT NULL DEFAULT ''"},
	{"next_chunk_id", "TEXT NOT NULL DEFAULT ''"},
	{"vector", "BLOB"},
	{"embedding_model", "TEXT NOT NULL"},
	{"embedded_at", "TEXT NOT NULL"},
}

// Chunk is one stored chunk row with its decoded metadata.
type Chunk struct {
	ChunkID             string
	ResourceID          string
	ChunkIndex          int
	TotalChunks         int
	Title               string
	Content             string
	ContentHash         string
	ResourceContentHash string
	TokenCount          int
	PreviousChunkID     string
	NextChunkID         string
	Vector              []float32
	EmbeddingModel      string
	EmbeddedAt          time.Time
	Metadata            map[string]any
}

// ScoredChunk is a chunk with its similarity score against a query
// vector.
type ScoredChunk struct {
	Chunk
	Score float32
}

// ChunkStore provides chunk storage and similarity search over the
// chunks table. The table layout depends on the metadata schema, so the
// store creates it on construction.
type ChunkStore struct {
	db          *DB
	schema      schema.Schema
	metaColumns []string
}

// NewChunkStore validates the metadata schema against the core table
// layout and creates the chunks table if needed.
func NewChunkStore(db *DB, s schema.Schema) (*ChunkStore, error) {
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid metadata schema: %w", err)
	}

	reserved := make(map[string]bool, len(coreColumns))
	for _, col := range coreColumns {
		reserved[col.name] = true
	}

	metaColumns := make([]string, 0, len(s))
	for _, field := range s {
		column := strings.ToLower(field.Name)
		if reserved[column] {
			return nil, fmt.Errorf("metadata field %q collides with a reserved column", field.Name)
		}
		metaColumns = append(metaColumns, column)
	}

	cs := &ChunkStore{db: db, schema: s, metaColumns: metaColumns}
	if err := cs.createTable(); err != nil {
		return nil, err
	}
	return cs, nil
}

// createTable builds the chunks table from the core columns plus one
// column per metadata field. Metadata columns default to their type's
// sentinel so rows written before a schema extension stay readable.
func (cs *ChunkStore) createTable() error {
	var defs []string
	for _, col := range coreColumns {
		defs = append(defs, col.name+" "+col.sqlType)
	}
	for i, field := range cs.schema {
		defs = append(defs, cs.metaColumns[i]+" "+columnType(field.Type))
	}
	defs = append(defs, "UNIQUE(resource_id, chunk_index)")

	ddl := fmt.Sprintf("CREATE TABLE IF NOT EXISTS chunks (\n    %s\n)", strings.Join(defs, ",\n    "))
	if _, err := cs.db.sqlDB.Exec(ddl); err != nil {
		return fmt.Errorf("failed to create chunks table: %w", err)
	}

	if _, err := cs.db.sqlDB.Exec(
		"CREATE INDEX IF NOT EXISTS idx_chunks_resource ON chunks(resource_id)",
	); err != nil {
		return fmt.Errorf("failed to create resource index: %w", err)
	}

	return nil
}

// columnType maps a metadata field type to its SQLite column
// definition, sentinel default included.
func columnType(t schema.FieldType) string {
	inner, _ := t.Unwrap()
	switch inner.Kind {
	case schema.KindNumber:
		return "REAL NOT NULL DEFAULT -1"
	case schema.KindBoolean, schema.KindDate:
		return "INTEGER NOT NULL DEFAULT -1"
	default:
		return "TEXT NOT NULL DEFAULT ''"
	}
}

// ReplaceResourceChunks atomically swaps all chunks of a resource for
// the given set. Delete and insert run in one transaction so a failed
// reindex never leaves a resource half-written.
func (cs *ChunkStore) ReplaceResourceChunks(resourceID string, chunks []Chunk) error {
	tx, err := cs.db.BeginTx()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM chunks WHERE resource_id = ?", resourceID); err != nil {
		return fmt.Errorf("failed to delete existing chunks: %w", err)
	}

	columns := cs.allColumns()
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ")
	stmt, err := tx.Prepare(fmt.Sprintf(
		"INSERT INTO chunks (%s) VALUES (%s)",
		strings.Join(columns, ", "), placeholders,
	))
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for i := range chunks {
		args, err := cs.insertArgs(&chunks[i])
		if err != nil {
			return err
		}
		if _, err := stmt.Exec(args...); err != nil {
			return fmt.Errorf("failed to insert chunk %s: %w", chunks[i].ChunkID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}

	return nil
}

// insertArgs flattens a chunk into insert arguments matching
// allColumns order.
func (cs *ChunkStore) insertArgs(c *Chunk) ([]any, error) {
	row, err := schema.Serialize(c.Metadata, cs.schema)
	if err != nil {
		return nil, fmt.Errorf("chunk %s: %w", c.ChunkID, err)
	}

	args := []any{
		c.ChunkID,
		c.ResourceID,
		c.ChunkIndex,
		c.TotalChunks,
		c.Title,
		c.Content,
		c.ContentHash,
		c.ResourceContentHash,
		c.TokenCount,
		c.PreviousChunkID,
		c.NextChunkID,
		vectorToBlob(c.Vector),
		c.EmbeddingModel,
		c.EmbeddedAt.UTC().Format(time.RFC3339),
	}
	for _, column := range cs.metaColumns {
		args = append(args, row[column])
	}
	return args, nil
}

func (cs *ChunkStore) allColumns() []string {
	columns := make([]string, 0, len(coreColumns)+len(cs.metaColumns))
	for _, col := range coreColumns {
		columns = append(columns, col.name)
	}
	return append(columns, cs.metaColumns...)
}

// ResourceHashes returns the stored content hash per resource, used to
// skip reindexing unchanged resources.
func (cs *ChunkStore) ResourceHashes() (map[string]string, error) {
	rows, err := cs.db.sqlDB.Query(
		"SELECT resource_id, resource_content_hash FROM chunks GROUP BY resource_id",
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query resource hashes: %w", err)
	}
	defer rows.Close()

	hashes := make(map[string]string)
	for rows.Next() {
		var id, hash string
		if err := rows.Scan(&id, &hash); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		hashes[id] = hash
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return hashes, nil
}

// GetChunk retrieves a single chunk by id.
func (cs *ChunkStore) GetChunk(chunkID string) (*Chunk, error) {
	query := fmt.Sprintf(
		"SELECT %s FROM chunks AS metadata WHERE chunk_id = ?",
		strings.Join(cs.allColumns(), ", "),
	)

	rows, err := cs.db.sqlDB.Query(query, chunkID)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunk: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("error iterating rows: %w", err)
		}
		return nil, fmt.Errorf("chunk not found: %s", chunkID)
	}

	chunk, err := cs.scanChunk(rows)
	if err != nil {
		return nil, err
	}
	return chunk, nil
}

// SearchSimilar ranks stored chunks against a query vector by cosine
// similarity. The predicate, when non-empty, is pushed down to the
// database so only matching rows are ranked; the table is aliased as
// "metadata" so metadata.<field> references resolve. The second return
// value is the number of chunks that matched before the result list was
// cut to topK.
//
// Ranking is a brute-force scan over the surviving rows.
// TODO: switch to an ANN index if collections outgrow the linear scan.
func (cs *ChunkStore) SearchSimilar(queryVector []float32, topK int, predicate string) ([]ScoredChunk, int, error) {
	if len(queryVector) == 0 {
		return nil, 0, fmt.Errorf("query vector is empty")
	}
	if topK <= 0 {
		return nil, 0, fmt.Errorf("topK must be positive, got %d", topK)
	}

	query := fmt.Sprintf(
		"SELECT %s FROM chunks AS metadata",
		strings.Join(cs.allColumns(), ", "),
	)
	if predicate != "" {
		query += " WHERE " + predicate
	}

	rows, err := cs.db.sqlDB.Query(query)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query chunks: %w", err)
	}
	defer rows.Close()

	var results []ScoredChunk
	for rows.Next() {
		chunk, err := cs.scanChunk(rows)
		if err != nil {
			return nil, 0, err
		}

		if len(chunk.Vector) != len(queryVector) {
			continue
		}

		results = append(results, ScoredChunk{
			Chunk: *chunk,
			Score: embedding.Similarity(queryVector, chunk.Vector),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating rows: %w", err)
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	totalMatches := len(results)
	if len(results) > topK {
		results = results[:topK]
	}

	return results, totalMatches, nil
}

// scanChunk reads the current row into a Chunk, decoding metadata
// columns through the schema.
func (cs *ChunkStore) scanChunk(rows *sql.Rows) (*Chunk, error) {
	var (
		chunk      Chunk
		blob       []byte
		embeddedAt string
	)

	dest := []any{
		&chunk.ChunkID,
		&chunk.ResourceID,
		&chunk.ChunkIndex,
		&chunk.TotalChunks,
		&chunk.Title,
		&chunk.Content,
		&chunk.ContentHash,
		&chunk.ResourceContentHash,
		&chunk.TokenCount,
		&chunk.PreviousChunkID,
		&chunk.NextChunkID,
		&blob,
		&chunk.EmbeddingModel,
		&embeddedAt,
	}
	metaValues := make([]any, len(cs.metaColumns))
	for i := range metaValues {
		dest = append(dest, &metaValues[i])
	}

	if err := rows.Scan(dest...); err != nil {
		return nil, fmt.Errorf("failed to scan chunk row: %w", err)
	}

	vector, err := blobToVector(blob)
	if err != nil {
		return nil, fmt.Errorf("chunk %s: %w", chunk.ChunkID, err)
	}
	chunk.Vector = vector

	if ts, err := time.Parse(time.RFC3339, embeddedAt); err == nil {
		chunk.EmbeddedAt = ts
	}

	row := make(map[string]any, len(cs.metaColumns))
	for i, column := range cs.metaColumns {
		row[column] = normalizeSQLValue(metaValues[i])
	}
	meta, err := schema.Deserialize(row, cs.schema)
	if err != nil {
		return nil, fmt.Errorf("chunk %s: %w", chunk.ChunkID, err)
	}
	chunk.Metadata = meta

	return &chunk, nil
}

// normalizeSQLValue maps driver scan values onto the codec's expected
// types. TEXT columns may scan as []byte depending on the driver.
func normalizeSQLValue(value any) any {
	if b, ok := value.([]byte); ok {
		return string(b)
	}
	return value
}

// DeleteResource removes all chunks of a resource.
func (cs *ChunkStore) DeleteResource(resourceID string) error {
	if _, err := cs.db.sqlDB.Exec("DELETE FROM chunks WHERE resource_id = ?", resourceID); err != nil {
		return fmt.Errorf("failed to delete resource chunks: %w", err)
	}
	return nil
}

// CountChunks returns the number of stored chunks.
func (cs *ChunkStore) CountChunks() (int, error) {
	var count int
	if err := cs.db.sqlDB.QueryRow("SELECT COUNT(*) FROM chunks").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count chunks: %w", err)
	}
	return count, nil
}

// CountResources returns the number of distinct indexed resources.
func (cs *ChunkStore) CountResources() (int, error) {
	var count int
	if err := cs.db.sqlDB.QueryRow("SELECT COUNT(DISTINCT resource_id) FROM chunks").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count resources: %w", err)
	}
	return count, nil
}

// Helper functions for vector serialization

// vectorToBlob converts a float32 slice to a binary blob
func vectorToBlob(vector []float32) []byte {
	blob := make([]byte, len(vector)*4)
	for i, v := range vector {
		bits := math.Float32bits(v)
		binary.LittleEndian.PutUint32(blob[i*4:i*4+4], bits)
	}
	return blob
}

// blobToVector converts a binary blob to a float32 slice
func blobToVector(blob []byte) ([]float32, error) {
	if len(blob)%4 != 0 {
		return nil, fmt.Errorf("blob size %d is not a multiple of 4", len(blob))
	}

	vector := make([]float32, len(blob)/4)
	for i := 0; i < len(vector); i++ {
		bits := binary.LittleEndian.Uint32(blob[i*4 : i*4+4])
		vector[i] = math.Float32frombits(bits)
	}

	return vector, nil
}
