package metadata

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	ferrors "github.com/input-output-hk/catalyst-forge-libs/feedsync/errors"
	"github.com/input-output-hk/catalyst-forge-libs/feedsync/feedtypes"
)

// SQLiteStore is a Store backed by a SQLite database.
type SQLiteStore struct {
	conn *sql.DB
}

// OpenSQLite opens (creating if needed) the database at path and applies the schema.
// Use ":memory:" for a private in-memory database.
func OpenSQLite(path string) (*SQLiteStore, error) {
	dsn := path
	if path != ":memory:" {
		dsn = path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}

	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open metadata database: %w", err)
	}
	conn.SetMaxOpenConns(1)

	s := &SQLiteStore{conn: conn}
	if err := s.migrate(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("migrate metadata database: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS entities (
			id TEXT PRIMARY KEY,
			position INTEGER NOT NULL,
			name TEXT NOT NULL DEFAULT '',
			disabled INTEGER NOT NULL DEFAULT 0,
			custom TEXT NOT NULL DEFAULT '{}',
			fields TEXT NOT NULL DEFAULT '[]',
			updated_at DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS manifests (
			key TEXT PRIMARY KEY,
			run_id TEXT NOT NULL,
			timestamp DATETIME NOT NULL,
			processed_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_manifests_timestamp ON manifests(timestamp)`,
	}

	for _, m := range migrations {
		if _, err := s.conn.Exec(m); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.conn.Close()
}

// Conn returns the underlying database handle.
func (s *SQLiteStore) Conn() *sql.DB {
	return s.conn
}

const selectEntity = `SELECT id, name, disabled, custom, fields FROM entities`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntity(row rowScanner) (*feedtypes.Entity, error) {
	var (
		e              feedtypes.Entity
		custom, fields string
	)
	if err := row.Scan(&e.ID, &e.Name, &e.Disabled, &custom, &fields); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(custom), &e.Custom); err != nil {
		return nil, fmt.Errorf("decode custom attributes of %s: %w", e.ID, err)
	}
	if err := json.Unmarshal([]byte(fields), &e.Fields); err != nil {
		return nil, fmt.Errorf("decode fields of %s: %w", e.ID, err)
	}
	if len(e.Custom) == 0 {
		e.Custom = nil
	}
	return &e, nil
}

// ListEntities implements feedtypes.EntityStore.
func (s *SQLiteStore) ListEntities(ctx context.Context) ([]*feedtypes.Entity, error) {
	rows, err := s.conn.QueryContext(ctx, selectEntity+` ORDER BY position, id`)
	if err != nil {
		return nil, ferrors.NewError("listEntities", err)
	}
	defer rows.Close()

	var out []*feedtypes.Entity
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, ferrors.NewError("listEntities", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, ferrors.NewError("listEntities", err)
	}
	return out, nil
}

// GetEntity implements feedtypes.EntityStore.
func (s *SQLiteStore) GetEntity(ctx context.Context, id string) (*feedtypes.Entity, error) {
	e, err := scanEntity(s.conn.QueryRowContext(ctx, selectEntity+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ferrors.NewEntityError("getEntity", id, ferrors.ErrEntityNotFound)
	}
	if err != nil {
		return nil, ferrors.NewEntityError("getEntity", id, err)
	}
	return e, nil
}

// SaveEntity implements feedtypes.EntityStore.
func (s *SQLiteStore) SaveEntity(ctx context.Context, entity *feedtypes.Entity) error {
	if entity == nil || entity.ID == "" {
		return ferrors.NewError("saveEntity", ferrors.ErrInvalidInput).WithMessage("entity id is required")
	}
	return s.insert(ctx, entity, true)
}

// Seed implements Store.
func (s *SQLiteStore) Seed(ctx context.Context, entities []*feedtypes.Entity) error {
	for _, e := range entities {
		if err := s.insert(ctx, e, false); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStore) insert(ctx context.Context, e *feedtypes.Entity, overwrite bool) error {
	custom := e.Custom
	if custom == nil {
		custom = map[string]any{}
	}
	customJSON, err := json.Marshal(custom)
	if err != nil {
		return ferrors.NewEntityError("saveEntity", e.ID, err)
	}
	fields := e.Fields
	if fields == nil {
		fields = []*feedtypes.Field{}
	}
	fieldsJSON, err := json.Marshal(fields)
	if err != nil {
		return ferrors.NewEntityError("saveEntity", e.ID, err)
	}

	conflict := `ON CONFLICT(id) DO NOTHING`
	if overwrite {
		conflict = `ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			disabled = excluded.disabled,
			custom = excluded.custom,
			fields = excluded.fields,
			updated_at = excluded.updated_at`
	}

	_, err = s.conn.ExecContext(ctx, `
		INSERT INTO entities (id, position, name, disabled, custom, fields, updated_at)
		VALUES (?, (SELECT COALESCE(MAX(position), 0) + 1 FROM entities), ?, ?, ?, ?, ?)
		`+conflict,
		e.ID, e.Name, e.Disabled, string(customJSON), string(fieldsJSON), time.Now().UTC(),
	)
	if err != nil {
		return ferrors.NewEntityError("saveEntity", e.ID, err)
	}
	return nil
}

// MarkManifestProcessed implements Store.
func (s *SQLiteStore) MarkManifestProcessed(ctx context.Context, cp Checkpoint) error {
	_, err := s.conn.ExecContext(ctx, `
		INSERT INTO manifests (key, run_id, timestamp, processed_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			run_id = excluded.run_id,
			timestamp = excluded.timestamp,
			processed_at = excluded.processed_at`,
		cp.Key, cp.RunID, cp.Timestamp.UTC(), cp.ProcessedAt.UTC(),
	)
	if err != nil {
		return ferrors.NewError("markManifestProcessed", err).WithKey(cp.Key)
	}
	return nil
}

// ProcessedManifests implements Store.
func (s *SQLiteStore) ProcessedManifests(ctx context.Context) ([]Checkpoint, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT key, run_id, timestamp, processed_at FROM manifests ORDER BY timestamp, key`)
	if err != nil {
		return nil, ferrors.NewError("processedManifests", err)
	}
	defer rows.Close()

	var out []Checkpoint
	for rows.Next() {
		var cp Checkpoint
		if err := rows.Scan(&cp.Key, &cp.RunID, &cp.Timestamp, &cp.ProcessedAt); err != nil {
			return nil, ferrors.NewError("processedManifests", err)
		}
		out = append(out, cp)
	}
	if err := rows.Err(); err != nil {
		return nil, ferrors.NewError("processedManifests", err)
	}
	return out, nil
}

var _ Store = (*SQLiteStore)(nil)
