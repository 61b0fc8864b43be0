package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// SQLiteUnitStore persists units, document metadata and precomputed
// embeddings in a single SQLite database (modernc.org/sqlite).
type SQLiteUnitStore struct {
	db   *sql.DB
	path string
}

var _ UnitStore = (*SQLiteUnitStore)(nil)

// NewSQLiteUnitStore opens or creates the unit store at path.
// If path is empty, the store lives in memory.
func NewSQLiteUnitStore(path string) (*SQLiteUnitStore, error) {
	dsn := ":memory:"
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory for %s: %w", path, err)
		}
		dsn = path
	}

	db, err := openSQLite(dsn)
	if err != nil {
		return nil, err
	}

	s := &SQLiteUnitStore{db: db, path: path}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return s, nil
}

func (s *SQLiteUnitStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		id            TEXT PRIMARY KEY,
		contract_type TEXT NOT NULL,
		kind          TEXT NOT NULL,
		unit_count    INTEGER NOT NULL DEFAULT 0,
		indexed_at    INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS units (
		id              TEXT PRIMARY KEY,
		document_id     TEXT NOT NULL,
		contract_type   TEXT NOT NULL,
		parent_id       TEXT NOT NULL,
		title           TEXT NOT NULL,
		body_raw        TEXT NOT NULL,
		body_normalized TEXT NOT NULL,
		order_index     INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_units_document ON units(document_id, parent_id, order_index);

	CREATE TABLE IF NOT EXISTS embeddings (
		unit_id TEXT NOT NULL REFERENCES units(id) ON DELETE CASCADE,
		field   TEXT NOT NULL,
		vector  BLOB NOT NULL,
		PRIMARY KEY (unit_id, field)
	);

	CREATE TABLE IF NOT EXISTS state (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return err
	}

	_, err := s.db.Exec(`INSERT OR IGNORE INTO state(key, value) VALUES (?, ?)`,
		StateKeySchemaVersion, strconv.Itoa(CurrentSchemaVersion))
	return err
}

// SaveUnits inserts or replaces units in one transaction.
func (s *SQLiteUnitStore) SaveUnits(ctx context.Context, units []*Unit) error {
	if len(units) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO units(id, document_id, contract_type, parent_id, title, body_raw, body_normalized, order_index)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			document_id = excluded.document_id,
			contract_type = excluded.contract_type,
			parent_id = excluded.parent_id,
			title = excluded.title,
			body_raw = excluded.body_raw,
			body_normalized = excluded.body_normalized,
			order_index = excluded.order_index`)
	if err != nil {
		return fmt.Errorf("failed to prepare unit statement: %w", err)
	}
	defer stmt.Close()

	for _, u := range units {
		_, err := stmt.ExecContext(ctx, u.ID, u.DocumentID, u.ContractType, u.ParentID,
			u.Title, u.BodyRaw, u.BodyNormalized, u.OrderIndex)
		if err != nil {
			return fmt.Errorf("failed to save unit %s: %w", u.ID, err)
		}
	}

	return tx.Commit()
}

const unitColumns = `id, document_id, contract_type, parent_id, title, body_raw, body_normalized, order_index`

func scanUnits(rows *sql.Rows) ([]*Unit, error) {
	defer rows.Close()

	units := []*Unit{}
	for rows.Next() {
		u := &Unit{}
		if err := rows.Scan(&u.ID, &u.DocumentID, &u.ContractType, &u.ParentID,
			&u.Title, &u.BodyRaw, &u.BodyNormalized, &u.OrderIndex); err != nil {
			return nil, fmt.Errorf("failed to scan unit: %w", err)
		}
		units = append(units, u)
	}
	return units, rows.Err()
}

// GetUnits returns the units found for ids, in ids order.
func (s *SQLiteUnitStore) GetUnits(ctx context.Context, ids []string) ([]*Unit, error) {
	if len(ids) == 0 {
		return []*Unit{}, nil
	}

	inClause, args := placeholders(ids)
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+unitColumns+" FROM units WHERE id IN ("+inClause+")", args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query units: %w", err)
	}

	found, err := scanUnits(rows)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]*Unit, len(found))
	for _, u := range found {
		byID[u.ID] = u
	}
	result := make([]*Unit, 0, len(found))
	for _, id := range ids {
		if u, ok := byID[id]; ok {
			result = append(result, u)
		}
	}
	return result, nil
}

// UnitsByDocument returns a document's units ordered by parent then order index.
func (s *SQLiteUnitStore) UnitsByDocument(ctx context.Context, documentID string) ([]*Unit, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+unitColumns+" FROM units WHERE document_id = ? ORDER BY parent_id, order_index, id",
		documentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query document units: %w", err)
	}
	return scanUnits(rows)
}

// SaveDocument records document metadata.
func (s *SQLiteUnitStore) SaveDocument(ctx context.Context, doc *DocumentInfo) error {
	indexedAt := doc.IndexedAt
	if indexedAt.IsZero() {
		indexedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents(id, contract_type, kind, unit_count, indexed_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			contract_type = excluded.contract_type,
			kind = excluded.kind,
			unit_count = excluded.unit_count,
			indexed_at = excluded.indexed_at`,
		doc.ID, doc.ContractType, string(doc.Kind), doc.UnitCount, indexedAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to save document %s: %w", doc.ID, err)
	}
	return nil
}

// ListDocuments returns documents of kind, or all documents if kind is "".
func (s *SQLiteUnitStore) ListDocuments(ctx context.Context, kind DocumentKind) ([]*DocumentInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, contract_type, kind, unit_count, indexed_at
		FROM documents
		WHERE ? = '' OR kind = ?
		ORDER BY id`, string(kind), string(kind))
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	docs := []*DocumentInfo{}
	for rows.Next() {
		d := &DocumentInfo{}
		var k string
		var ts int64
		if err := rows.Scan(&d.ID, &d.ContractType, &k, &d.UnitCount, &ts); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		d.Kind = DocumentKind(k)
		d.IndexedAt = time.Unix(ts, 0)
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// SaveEmbeddings stores one vector per unit ID for field.
func (s *SQLiteUnitStore) SaveEmbeddings(ctx context.Context, field Field, ids []string, vectors [][]float32) error {
	if len(ids) != len(vectors) {
		return fmt.Errorf("ids and vectors length mismatch: %d vs %d", len(ids), len(vectors))
	}
	if len(ids) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO embeddings(unit_id, field, vector) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare embedding statement: %w", err)
	}
	defer stmt.Close()

	for i, id := range ids {
		if _, err := stmt.ExecContext(ctx, id, string(field), encodeVector(vectors[i])); err != nil {
			return fmt.Errorf("failed to save embedding for %s: %w", id, err)
		}
	}

	return tx.Commit()
}

// GetEmbeddings returns stored vectors for ids under field.
func (s *SQLiteUnitStore) GetEmbeddings(ctx context.Context, field Field, ids []string) (map[string][]float32, error) {
	result := make(map[string][]float32, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	inClause, args := placeholders(ids)
	args = append([]any{string(field)}, args...)
	rows, err := s.db.QueryContext(ctx,
		"SELECT unit_id, vector FROM embeddings WHERE field = ? AND unit_id IN ("+inClause+")", args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query embeddings: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		var blob []byte
		if err := rows.Scan(&id, &blob); err != nil {
			return nil, fmt.Errorf("failed to scan embedding: %w", err)
		}
		vec, err := decodeVector(blob)
		if err != nil {
			return nil, fmt.Errorf("embedding for %s: %w", id, err)
		}
		result[id] = vec
	}
	return result, rows.Err()
}

// GetState returns the value for key, or "" if unset.
func (s *SQLiteUnitStore) GetState(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM state WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read state %s: %w", key, err)
	}
	return value, nil
}

// SetState sets key to value.
func (s *SQLiteUnitStore) SetState(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `INSERT OR REPLACE INTO state(key, value) VALUES (?, ?)`, key, value)
	if err != nil {
		return fmt.Errorf("failed to write state %s: %w", key, err)
	}
	return nil
}

// Close checkpoints and closes the database.
func (s *SQLiteUnitStore) Close() error {
	_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	return s.db.Close()
}

// encodeVector packs v as little-endian float32s.
func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("vector blob length %d is not a multiple of 4", len(b))
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return v, nil
}
