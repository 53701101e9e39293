// Package persistence stores lectures, transcript chunks, and jobs in SQLite
// or MySQL.
package persistence

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/MimeLyc/lecture-pipeline/internal/chunker"
	"github.com/MimeLyc/lecture-pipeline/internal/jobs"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	_ "modernc.org/sqlite"
)

var tracer = otel.Tracer("lecture-pipeline/persistence")

//go:embed migrations/sqlite/*.sql migrations/mysql/*.sql
var migrationFiles embed.FS

type SQLStore struct {
	db      *sql.DB
	dialect dialect
}

// NewSQLiteStore opens (and creates) a SQLite database file.
func NewSQLiteStore(dbPath string) (*SQLStore, error) {
	if strings.TrimSpace(dbPath) == "" {
		return nil, fmt.Errorf("db path is required")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &SQLStore{db: db, dialect: sqliteDialect}
	ctx := context.Background()
	for _, pragma := range []string{"PRAGMA journal_mode = WAL;", "PRAGMA busy_timeout = 5000;", "PRAGMA foreign_keys = ON;"} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}
	if err := store.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func NewMySQLStore(dsn string) (*SQLStore, error) {
	dsn, err := mysqlDSN(dsn)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}
	db.SetConnMaxLifetime(3 * time.Minute)
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)

	store := &SQLStore{db: db, dialect: mysqlDialect}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping mysql: %w", err)
	}
	if err := store.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Open picks the backend by driver name.
func Open(driver, dsn, dbPath string) (*SQLStore, error) {
	switch driver {
	case "", "sqlite":
		return NewSQLiteStore(dbPath)
	case "mysql":
		return NewMySQLStore(dsn)
	default:
		return nil, fmt.Errorf("unsupported db driver %q", driver)
	}
}

func (s *SQLStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLStore) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	entries, err := migrationFiles.ReadDir(s.dialect.migrationsDir)
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		version := migrationVersion(entry.Name())
		if version <= 0 {
			continue
		}
		var exists int
		if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM schema_migrations WHERE version = ?`, version).Scan(&exists); err != nil {
			return fmt.Errorf("check migration %s: %w", entry.Name(), err)
		}
		if exists > 0 {
			continue
		}
		content, err := migrationFiles.ReadFile(path.Join(s.dialect.migrationsDir, entry.Name()))
		if err != nil {
			return fmt.Errorf("read migration %s: %w", entry.Name(), err)
		}
		for _, stmt := range splitStatements(string(content)) {
			if _, err := s.db.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("apply migration %s: %w", entry.Name(), err)
			}
		}
		if _, err := s.db.ExecContext(ctx, `INSERT INTO schema_migrations (version) VALUES (?)`, version); err != nil {
			return fmt.Errorf("record migration %s: %w", entry.Name(), err)
		}
	}
	return nil
}

// migrationVersion extracts the leading integer from a migration filename (e.g. "001_init.sql" → 1).
func migrationVersion(name string) int {
	for i, c := range name {
		if c < '0' || c > '9' {
			if i == 0 {
				return 0
			}
			n, _ := strconv.Atoi(name[:i])
			return n
		}
	}
	n, _ := strconv.Atoi(name)
	return n
}

func (s *SQLStore) span(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs, attribute.String("db.system", s.dialect.driver))
	return tracer.Start(ctx, "db."+op, trace.WithAttributes(attrs...))
}

const lectureColumns = `id, title, description, video_path, transcript, summary, status, language, failure_kind, failure_message, created_at, updated_at`

func (s *SQLStore) CreateLecture(ctx context.Context, l *Lecture) error {
	if l == nil {
		return fmt.Errorf("lecture is nil")
	}
	ctx, span := s.span(ctx, "create_lecture")
	defer span.End()

	now := time.Now().UTC()
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	if l.Status == "" {
		l.Status = StatusDraft
	}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = now
	}
	l.UpdatedAt = now

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO lectures (`+lectureColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		l.ID, l.Title, l.Description, l.VideoPath,
		nullString(l.Transcript), nullString(l.Summary), string(l.Status),
		nullString(l.Language), nullString(l.FailureKind), nullString(l.FailureMessage),
		l.CreatedAt, l.UpdatedAt,
	)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("insert lecture: %w", err)
	}
	return nil
}

func (s *SQLStore) GetLecture(ctx context.Context, id string) (*Lecture, error) {
	ctx, span := s.span(ctx, "get_lecture", attribute.String("lecture_id", id))
	defer span.End()

	row := s.db.QueryRowContext(ctx, `SELECT `+lectureColumns+` FROM lectures WHERE id = ?`, id)
	l, err := scanLecture(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return l, nil
}

// UpdateLecture writes every mutable column of l and bumps updated_at.
func (s *SQLStore) UpdateLecture(ctx context.Context, l *Lecture) error {
	if l == nil {
		return fmt.Errorf("lecture is nil")
	}
	ctx, span := s.span(ctx, "update_lecture", attribute.String("lecture_id", l.ID))
	defer span.End()

	l.UpdatedAt = time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE lectures SET
			title = ?, description = ?, video_path = ?, transcript = ?, summary = ?,
			status = ?, language = ?, failure_kind = ?, failure_message = ?, updated_at = ?
		 WHERE id = ?`,
		l.Title, l.Description, l.VideoPath, nullString(l.Transcript), nullString(l.Summary),
		string(l.Status), nullString(l.Language), nullString(l.FailureKind), nullString(l.FailureMessage),
		l.UpdatedAt, l.ID,
	)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("update lecture: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateProcessing writes only the columns the pipeline owns, so an upload
// that lands during a run keeps its title, description and video_path.
func (s *SQLStore) UpdateProcessing(ctx context.Context, id string, u ProcessingUpdate) error {
	ctx, span := s.span(ctx, "update_processing", attribute.String("lecture_id", id))
	defer span.End()

	res, err := s.db.ExecContext(ctx,
		`UPDATE lectures SET
			transcript = ?, summary = ?, status = ?, language = ?,
			failure_kind = ?, failure_message = ?, updated_at = ?
		 WHERE id = ?`,
		nullString(u.Transcript), nullString(u.Summary), string(u.Status), nullString(u.Language),
		nullString(u.FailureKind), nullString(u.FailureMessage), time.Now().UTC(), id,
	)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("update processing state: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLStore) ListLectures(ctx context.Context) ([]*Lecture, error) {
	ctx, span := s.span(ctx, "list_lectures")
	defer span.End()

	rows, err := s.db.QueryContext(ctx, `SELECT `+lectureColumns+` FROM lectures ORDER BY created_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ret := make([]*Lecture, 0)
	for rows.Next() {
		l, err := scanLecture(rows)
		if err != nil {
			return nil, err
		}
		ret = append(ret, l)
	}
	return ret, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLecture(row rowScanner) (*Lecture, error) {
	var l Lecture
	var status string
	var transcript, summary, lang, failureKind, failureMessage sql.NullString
	if err := row.Scan(
		&l.ID, &l.Title, &l.Description, &l.VideoPath,
		&transcript, &summary, &status, &lang, &failureKind, &failureMessage,
		&l.CreatedAt, &l.UpdatedAt,
	); err != nil {
		return nil, err
	}
	l.Status = Status(status)
	l.Transcript = transcript.String
	l.Summary = summary.String
	l.Language = lang.String
	l.FailureKind = failureKind.String
	l.FailureMessage = failureMessage.String
	return &l, nil
}

// ReplaceChunks deletes every chunk of the lecture and inserts the new set in
// one transaction.
func (s *SQLStore) ReplaceChunks(ctx context.Context, lectureID string, chunks []chunker.Chunk) (err error) {
	ctx, span := s.span(ctx, "replace_chunks",
		attribute.String("lecture_id", lectureID),
		attribute.Int("chunks", len(chunks)),
	)
	defer span.End()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			span.RecordError(err)
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM transcript_chunks WHERE lecture_id = ?`, lectureID); err != nil {
		return fmt.Errorf("delete chunks: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO transcript_chunks (id, lecture_id, chunk_index, text, start_time, end_time, timing_approximate)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare chunk insert: %w", err)
	}
	defer stmt.Close()

	for _, c := range chunks {
		if _, err = stmt.ExecContext(ctx,
			uuid.NewString(), lectureID, c.Index, c.Text, c.StartTime, c.EndTime, boolToInt(c.TimingApproximate),
		); err != nil {
			return fmt.Errorf("insert chunk %d: %w", c.Index, err)
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit chunks: %w", err)
	}
	return nil
}

func (s *SQLStore) ListChunks(ctx context.Context, lectureID string) ([]Chunk, error) {
	ctx, span := s.span(ctx, "list_chunks", attribute.String("lecture_id", lectureID))
	defer span.End()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, lecture_id, chunk_index, text, start_time, end_time, timing_approximate
		 FROM transcript_chunks
		 WHERE lecture_id = ?
		 ORDER BY chunk_index ASC`,
		lectureID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ret := make([]Chunk, 0)
	for rows.Next() {
		var c Chunk
		var approx int
		if err := rows.Scan(&c.ID, &c.LectureID, &c.Index, &c.Text, &c.StartTime, &c.EndTime, &approx); err != nil {
			return nil, err
		}
		c.TimingApproximate = approx != 0
		ret = append(ret, c)
	}
	return ret, rows.Err()
}

func (s *SQLStore) LoadJobs(ctx context.Context) ([]*jobs.Job, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, kind, lecture_id, dedupe_key, status, attempts, error, error_kind, created_at, updated_at
		 FROM jobs
		 ORDER BY created_at ASC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ret := make([]*jobs.Job, 0)
	for rows.Next() {
		var item jobs.Job
		var kind, status string
		if err := rows.Scan(
			&item.ID,
			&kind,
			&item.LectureID,
			&item.DedupeKey,
			&status,
			&item.Attempts,
			&item.Error,
			&item.ErrorKind,
			&item.CreatedAt,
			&item.UpdatedAt,
		); err != nil {
			return nil, err
		}
		item.Kind = jobs.Kind(kind)
		item.Status = jobs.Status(status)
		ret = append(ret, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ret, nil
}

func (s *SQLStore) DeleteJob(ctx context.Context, jobID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM jobs WHERE id = ?`, jobID)
	return err
}

func (s *SQLStore) UpsertJob(ctx context.Context, job *jobs.Job) error {
	if job == nil {
		return fmt.Errorf("job is nil")
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO jobs (
			id, kind, lecture_id, dedupe_key, status, attempts, error, error_kind, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`+s.dialect.upsertJobTail,
		job.ID,
		string(job.Kind),
		job.LectureID,
		job.DedupeKey,
		string(job.Status),
		job.Attempts,
		job.Error,
		job.ErrorKind,
		job.CreatedAt.UTC(),
		job.UpdatedAt.UTC(),
	)
	return err
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
