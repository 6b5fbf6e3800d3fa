// Package store - SQLite persistence of trained mixture models, so a camera can skip
// training after a restart.
package store

import (
	"bytes"
	"compress/gzip"
	"context"
	"database/sql"
	_ "embed"
	"encoding/gob"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/nvr-ai/go-mog/gmm"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when no snapshot matches a query.
var ErrNotFound = errors.New("store: snapshot not found")

// Snapshot reasons recorded with each row.
const (
	ReasonTrainingComplete = "training_complete"
	ReasonPeriodic         = "periodic"
	ReasonShutdown         = "shutdown"
	ReasonManual           = "manual"
)

// schema.sql defines the gmm_snapshot table.
//
//go:embed schema.sql
var schemaSQL string

// Record is the metadata of a stored snapshot.
type Record struct {
	ID         string
	SensorID   string
	TakenAt    time.Time
	Width      int
	Height     int
	Channels   int
	K          int
	Phase      string
	FramesSeen int
	Reason     string
	BlobSize   int
}

// Store persists model snapshots in a SQLite database.
type Store struct {
	db     *sql.DB
	now    func() time.Time
	logger *slog.Logger
}

// Open opens (or creates) the database at path and applies the schema.
//
// Arguments:
//   - path: A file path, or ":memory:".
//
// Returns:
//   - *Store: The store. Call Close when done.
//   - error: An error if the database cannot be opened or migrated.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open snapshot database %s", path)
	}
	// A single connection keeps ":memory:" databases alive and serialises writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to apply snapshot schema")
	}

	s := &Store{db: db, now: time.Now, logger: slog.Default()}
	s.logger.Debug("initialized snapshot database schema", "path", path)
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save stores a model state and returns the new snapshot id.
func (s *Store) Save(ctx context.Context, sensorID, reason string, state *gmm.State) (string, error) {
	if err := state.Validate(); err != nil {
		return "", errors.Wrap(err, "refusing to save invalid state")
	}
	blob, err := encodeState(state)
	if err != nil {
		return "", err
	}
	if reason == "" {
		reason = ReasonManual
	}

	id := uuid.NewString()
	const stmt = `INSERT INTO gmm_snapshot (snapshot_id, sensor_id, taken_unix_nanos, width, height, channels,
			max_components, phase, frames_seen, grid_blob, snapshot_reason)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = s.db.ExecContext(ctx, stmt, id, sensorID, s.now().UnixNano(), state.Width, state.Height, state.Channels,
		state.K, state.Phase.String(), state.FramesSeen, blob, reason)
	if err != nil {
		return "", errors.Wrap(err, "failed to insert snapshot")
	}

	s.logger.Info("saved gmm snapshot",
		"id", id,
		"sensor", sensorID,
		"reason", reason,
		"bytes", len(blob),
	)
	return id, nil
}

const selectColumns = `SELECT snapshot_id, sensor_id, taken_unix_nanos, width, height, channels,
		max_components, phase, frames_seen, snapshot_reason, grid_blob FROM gmm_snapshot`

// Latest returns the most recent snapshot of a sensor.
func (s *Store) Latest(ctx context.Context, sensorID string) (*Record, *gmm.State, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+` WHERE sensor_id = ? ORDER BY taken_unix_nanos DESC, rowid DESC LIMIT 1`, sensorID)
	return scanState(row, "sensor "+sensorID)
}

// Load returns the snapshot with the given id.
func (s *Store) Load(ctx context.Context, id string) (*Record, *gmm.State, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+` WHERE snapshot_id = ?`, id)
	return scanState(row, "id "+id)
}

// List returns the metadata of every snapshot of a sensor, newest first.
func (s *Store) List(ctx context.Context, sensorID string) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, selectColumns+` WHERE sensor_id = ? ORDER BY taken_unix_nanos DESC, rowid DESC`, sensorID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query snapshots")
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, _, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, errors.Wrap(rows.Err(), "failed to iterate snapshots")
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*Record, []byte, error) {
	var (
		rec   Record
		taken int64
		blob  []byte
	)
	err := row.Scan(&rec.ID, &rec.SensorID, &taken, &rec.Width, &rec.Height, &rec.Channels,
		&rec.K, &rec.Phase, &rec.FramesSeen, &rec.Reason, &blob)
	if err != nil {
		return nil, nil, err
	}
	rec.TakenAt = time.Unix(0, taken)
	rec.BlobSize = len(blob)
	return &rec, blob, nil
}

func scanState(row scanner, what string) (*Record, *gmm.State, error) {
	rec, blob, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, errors.Wrapf(ErrNotFound, "%s", what)
	}
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to read snapshot")
	}
	state, err := decodeState(blob)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "snapshot %s", rec.ID)
	}
	return rec, state, nil
}

// encodeState compresses a state into a gob+gzip blob.
func encodeState(state *gmm.State) ([]byte, error) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if err := gob.NewEncoder(gz).Encode(state); err != nil {
		gz.Close()
		return nil, errors.Wrap(err, "failed to encode state")
	}
	if err := gz.Close(); err != nil {
		return nil, errors.Wrap(err, "failed to compress state")
	}
	return buf.Bytes(), nil
}

// decodeState decompresses and decodes a gob+gzip blob.
func decodeState(blob []byte) (*gmm.State, error) {
	if len(blob) == 0 {
		return nil, errors.New("empty grid blob")
	}
	gz, err := gzip.NewReader(bytes.NewReader(blob))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create gzip reader")
	}
	defer gz.Close()

	var state gmm.State
	if err := gob.NewDecoder(gz).Decode(&state); err != nil {
		return nil, errors.Wrap(err, "failed to decode state")
	}
	return &state, nil
}
