package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/artemis/handoffd/internal/model"
	_ "github.com/go-sql-driver/mysql"
	"go.uber.org/zap"
)

// Pool class names accepted in database.pool_class, the Go-idiomatic
// analogue of SQLAlchemy's QueuePool/NullPool choice in the original
// utils.setup_db_conn.
const (
	PoolFixed     = "fixed"     // 10 open, 10 idle connections
	PoolQueue     = "queue"     // 10 open, 2 idle connections (default)
	PoolUnbounded = "unbounded" // no open limit, no idle connections kept
)

// Options configures a MySQLStore.
type Options struct {
	PoolClass string // PoolFixed, PoolQueue (default) or PoolUnbounded
	Echo      bool   // log every statement at Debug before executing it
	Logger    *zap.Logger
}

// MySQLStore is the SQL-backed ledger. It is the one physical embodiment of
// the Store interface this repository ships.
type MySQLStore struct {
	db     *sql.DB
	echo   bool
	logger *zap.Logger
}

// NewMySQLStore opens a connection pool against dsn (database.engine in the
// configuration) and applies the requested pool class.
func NewMySQLStore(dsn string, opts Options) (*MySQLStore, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("ledger: opening connection: %w", err)
	}

	switch opts.PoolClass {
	case PoolFixed:
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(10)
	case PoolUnbounded:
		db.SetMaxOpenConns(0)
		db.SetMaxIdleConns(0)
	case PoolQueue, "":
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(2)
	default:
		db.Close()
		return nil, fmt.Errorf("ledger: unknown pool class %q", opts.PoolClass)
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &MySQLStore{db: db, echo: opts.Echo, logger: logger}, nil
}

func (s *MySQLStore) log(query string, args ...interface{}) {
	if !s.echo {
		return
	}
	s.logger.Debug("executing query", zap.String("sql", query), zap.Any("args", args))
}

// Init creates the schema's tables if they do not already exist.
func (s *MySQLStore) Init(ctx context.Context) error {
	for _, ddl := range []string{ddlFiles, ddlBatches, ddlAttempts} {
		s.log(ddl)
		if _, err := s.db.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("ledger: init: %w", err)
		}
	}
	return nil
}

// Drop removes the schema's tables, association table first to satisfy the
// foreign keys.
func (s *MySQLStore) Drop(ctx context.Context) error {
	for _, ddl := range []string{dropAttempts, dropBatches, dropFiles} {
		s.log(ddl)
		if _, err := s.db.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("ledger: drop: %w", err)
		}
	}
	return nil
}

// Close releases the underlying connection pool.
func (s *MySQLStore) Close() error {
	return s.db.Close()
}

// Ping checks that the connection pool can still reach the database, for
// wiring into observability.LedgerHealthCheck.
func (s *MySQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

const findFileQuery = `
SELECT id, relpath, filename, checksum, size_bytes, created_on, held_on, deleted_on
FROM files
WHERE relpath = ? AND filename = ? AND checksum = ?
ORDER BY id DESC
LIMIT 1`

// FindFile looks up the FileRow identified by (tail, name, checksum).
func (s *MySQLStore) FindFile(ctx context.Context, tail, name, checksum string) (*model.FileRow, error) {
	s.log(findFileQuery, tail, name, checksum)
	row := s.db.QueryRowContext(ctx, findFileQuery, tail, name, checksum)
	return scanFileRow(row)
}

func scanFileRow(row *sql.Row) (*model.FileRow, error) {
	var r model.FileRow
	var heldOn, deletedOn sql.NullTime
	err := row.Scan(&r.ID, &r.Tail, &r.Name, &r.Checksum, &r.SizeBytes, &r.CreatedOn, &heldOn, &deletedOn)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ledger: scanning file row: %w", err)
	}
	if heldOn.Valid {
		r.HeldOn = &heldOn.Time
	}
	if deletedOn.Valid {
		r.DeletedOn = &deletedOn.Time
	}
	return &r, nil
}

const insertFileStmt = `
INSERT INTO files (relpath, filename, checksum, size_bytes, created_on)
VALUES (?, ?, ?, ?, ?)`

// InsertFiles inserts every row in a single transaction: all committed, or
// none is, matching spec.md §4.2's chunk-level commit semantics.
func (s *MySQLStore) InsertFiles(ctx context.Context, rows []model.FileRow) error {
	if len(rows) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("ledger: begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, insertFileStmt)
	if err != nil {
		return fmt.Errorf("ledger: prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range rows {
		s.log(insertFileStmt, r.Tail, r.Name, r.Checksum, r.SizeBytes, r.CreatedOn)
		if _, err := stmt.ExecContext(ctx, r.Tail, r.Name, r.Checksum, r.SizeBytes, r.CreatedOn); err != nil {
			return fmt.Errorf("ledger: inserting file %s/%s: %w", r.Tail, r.Name, err)
		}
	}
	return tx.Commit()
}

const findFileByNameQuery = `
SELECT id, relpath, filename, checksum, size_bytes, created_on, held_on, deleted_on
FROM files
WHERE relpath = ? AND filename = ?
ORDER BY id DESC
LIMIT 1`

const insertBatchStmt = `
INSERT INTO transfer_batches
	(pre_start_time, pre_duration_sec, trans_start_time, trans_duration_sec,
	 post_start_time, post_duration_sec, size_bytes, rate_mbytes_per_sec, status, err_msg)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

const insertAttemptStmt = `
INSERT INTO file_transfer_attempts (files_id, batch_id) VALUES (?, ?)`

// RecordBatch persists rec as a BatchRow and associates it with every
// FileRow matching one of rec.Files by (tail, name). Per spec.md §4.4, if no
// FileRow matches any member, the record is discarded (ok=false) rather than
// inserted as an orphaned batch.
func (s *MySQLStore) RecordBatch(ctx context.Context, rec model.TransferRecord) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("ledger: begin tx: %w", err)
	}
	defer tx.Rollback()

	var fileIDs []int64
	for _, ref := range rec.Files {
		s.log(findFileByNameQuery, ref.Tail, ref.Name)
		row := tx.QueryRowContext(ctx, findFileByNameQuery, ref.Tail, ref.Name)
		fr, err := scanFileRow(row)
		if err != nil {
			return false, fmt.Errorf("ledger: looking up %s/%s: %w", ref.Tail, ref.Name, err)
		}
		if fr == nil {
			continue
		}
		fileIDs = append(fileIDs, fr.ID)
	}
	if len(fileIDs) == 0 {
		return false, nil
	}

	s.log(insertBatchStmt)
	res, err := tx.ExecContext(ctx, insertBatchStmt,
		nullableTime(rec.PreStart), nullableSeconds(rec.PreDur),
		nullableTime(rec.TransStart), nullableSeconds(rec.TransDur),
		nullableTime(rec.PostStart), nullableSeconds(rec.PostDur),
		nullableInt(rec.Size), nullableFloat(rec.Rate),
		int(rec.Status), nullableString(rec.Error),
	)
	if err != nil {
		return false, fmt.Errorf("ledger: inserting batch: %w", err)
	}
	batchID, err := res.LastInsertId()
	if err != nil {
		return false, fmt.Errorf("ledger: batch id: %w", err)
	}

	for _, fid := range fileIDs {
		s.log(insertAttemptStmt, fid, batchID)
		if _, err := tx.ExecContext(ctx, insertAttemptStmt, fid, batchID); err != nil {
			return false, fmt.Errorf("ledger: associating file %d with batch %d: %w", fid, batchID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("ledger: committing batch: %w", err)
	}
	return true, nil
}

const updateHeldStmt = `
UPDATE files SET held_on = ?
WHERE id = (
	SELECT id FROM (
		SELECT id FROM files WHERE relpath = ? AND filename = ? ORDER BY id DESC LIMIT 1
	) latest
)`

// UpdateHeld sets held_on on the latest FileRow matching (tail, name).
func (s *MySQLStore) UpdateHeld(ctx context.Context, tail, name string, heldOn time.Time) error {
	s.log(updateHeldStmt, heldOn, tail, name)
	_, err := s.db.ExecContext(ctx, updateHeldStmt, heldOn, tail, name)
	if err != nil {
		return fmt.Errorf("ledger: updating held_on for %s/%s: %w", tail, name, err)
	}
	return nil
}

func nullableTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return *t
}

func nullableSeconds(d *time.Duration) interface{} {
	if d == nil {
		return nil
	}
	return d.Seconds()
}

func nullableInt(v int64) interface{} {
	return v
}

func nullableFloat(f *float64) interface{} {
	if f == nil {
		return nil
	}
	return *f
}

func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
