// Package history records every conversion run in a SQLite database so a
// user can see what was converted, when, and verify the output later
// against the recorded digests.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"

	"github.com/FocuswithJustin/SheikahConverter/core/cas"
	"github.com/FocuswithJustin/SheikahConverter/core/errors"
	"github.com/FocuswithJustin/SheikahConverter/core/savecodec"
	"github.com/FocuswithJustin/SheikahConverter/core/sqlite"
)

// DefaultLimit is the number of runs List returns when limit <= 0.
const DefaultLimit = 20

// FileEntry is one converted save file.
type FileEntry struct {
	Path   string         `json:"path" cbor:"1,keyasint"`
	Kind   string         `json:"kind" cbor:"2,keyasint"`
	Input  cas.HashResult `json:"input" cbor:"3,keyasint"`
	Output cas.HashResult `json:"output" cbor:"4,keyasint"`
}

// Run is one recorded conversion.
type Run struct {
	ID        string
	StartedAt time.Time
	Duration  time.Duration
	InputDir  string
	OutputDir string
	Source    savecodec.Platform
	Target    savecodec.Platform
	Version   string
	Images    int
	Files     []FileEntry
}

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("history: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

func marshalFiles(files []FileEntry) ([]byte, error) {
	if files == nil {
		files = []FileEntry{}
	}
	return cborEncMode.Marshal(files)
}

func unmarshalFiles(data []byte) ([]FileEntry, error) {
	var files []FileEntry
	if err := cbor.Unmarshal(data, &files); err != nil {
		return nil, fmt.Errorf("history: unmarshal files: %w", err)
	}
	return files, nil
}

const schema = `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		started_at INTEGER NOT NULL,
		duration_ns INTEGER NOT NULL,
		input_dir TEXT NOT NULL,
		output_dir TEXT NOT NULL,
		source INTEGER NOT NULL,
		target INTEGER NOT NULL,
		version TEXT NOT NULL,
		file_count INTEGER NOT NULL,
		image_count INTEGER NOT NULL,
		files BLOB NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
`

// Store is a history database.
type Store struct {
	db *sql.DB
}

// Open opens or creates the history database at path and migrates its
// schema. Parent directories are created as needed.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, errors.NewIO("create", dir, err)
		}
	}

	db, err := sqlite.Open(path)
	if err != nil {
		return nil, errors.NewIO("open", path, err)
	}
	// SQLite allows one writer; a single connection also keeps
	// in-memory databases alive between calls.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.Wrapf(err, "failed to migrate history database %s", path)
	}
	return &Store{db: db}, nil
}

// OpenReadOnly opens an existing history database for reading. The schema
// is not migrated. A missing database is reported as a NotFoundError so
// callers can treat it as an empty history.
func OpenReadOnly(path string) (*Store, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewNotFound("history database", path)
		}
		return nil, errors.NewIO("stat", path, err)
	}

	db, err := sqlite.OpenReadOnly(path)
	if err != nil {
		return nil, errors.NewIO("open", path, err)
	}
	db.SetMaxOpenConns(1)
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record stores run. An empty ID is filled with a new UUID.
func (s *Store) Record(ctx context.Context, run *Run) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}

	blob, err := marshalFiles(run.Files)
	if err != nil {
		return errors.Wrap(err, "failed to encode file entries")
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO runs (id, started_at, duration_ns, input_dir, output_dir,
			source, target, version, file_count, image_count, files)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.StartedAt.UnixNano(), int64(run.Duration), run.InputDir, run.OutputDir,
		int(run.Source), int(run.Target), run.Version, len(run.Files), run.Images, blob)
	if err != nil {
		return errors.Wrapf(err, "failed to record run %s", run.ID)
	}
	return nil
}

const selectRuns = `
	SELECT id, started_at, duration_ns, input_dir, output_dir,
		source, target, version, image_count, files
	FROM runs`

// List returns the most recent runs, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}

	rows, err := s.db.QueryContext(ctx, selectRuns+` ORDER BY started_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list runs")
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to list runs")
	}
	return runs, nil
}

// Get returns the run with the given ID.
func (s *Store) Get(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, selectRuns+` WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.NewNotFound("run", id)
	}
	return run, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (*Run, error) {
	var (
		run            Run
		started, dur   int64
		source, target int
		blob           []byte
	)
	err := sc.Scan(&run.ID, &started, &dur, &run.InputDir, &run.OutputDir,
		&source, &target, &run.Version, &run.Images, &blob)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, errors.Wrap(err, "failed to read run")
	}

	run.StartedAt = time.Unix(0, started)
	run.Duration = time.Duration(dur)
	run.Source = savecodec.Platform(source)
	run.Target = savecodec.Platform(target)
	if run.Files, err = unmarshalFiles(blob); err != nil {
		return nil, err
	}
	return &run, nil
}
