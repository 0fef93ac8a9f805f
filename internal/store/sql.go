package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/danieljhkim/mosaic/internal/palette"

	// database/sql drivers: "pgx" for Postgres, "sqlite" for local files.
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// Options configures a SQLStore.
type Options struct {
	// Driver is DriverPostgres or DriverSQLite
	Driver string

	// DSN is the driver-specific connection string
	DSN string

	// BucketTable holds (bucket, file_ids) rows
	BucketTable string

	// FileTable holds (id, filename, palette_colors, palette_text) rows
	FileTable string
}

// SQLStore implements Store on database/sql.
type SQLStore struct {
	db          *sql.DB
	dialect     dialect
	bucketTable string
	fileTable   string
	logger      *zap.Logger
}

var _ Store = (*SQLStore)(nil)

// Open connects to the database described by opts and verifies the
// connection. The store uses a single connection.
func Open(ctx context.Context, opts Options, logger *zap.Logger) (*SQLStore, error) {
	if opts.Driver == DriverSQLite && isFilePath(opts.DSN) {
		if err := os.MkdirAll(filepath.Dir(opts.DSN), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open(opts.Driver, opts.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s, err := NewSQLStore(db, opts, logger)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if opts.Driver == DriverSQLite {
		if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout = 5000"); err != nil {
			s.logger.Debug("failed to set sqlite busy_timeout", zap.Error(err))
		}
	}
	return s, nil
}

// isFilePath reports whether a sqlite DSN is a plain file path rather than
// an in-memory database or a URI.
func isFilePath(dsn string) bool {
	return dsn != "" && dsn != ":memory:" && !strings.HasPrefix(dsn, "file:")
}

// NewSQLStore wraps an already opened database.
func NewSQLStore(db *sql.DB, opts Options, logger *zap.Logger) (*SQLStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	d, err := dialectFor(opts.Driver)
	if err != nil {
		return nil, err
	}
	if err := validateTable(opts.BucketTable); err != nil {
		return nil, err
	}
	if err := validateTable(opts.FileTable); err != nil {
		return nil, err
	}
	return &SQLStore{
		db:          db,
		dialect:     d,
		bucketTable: opts.BucketTable,
		fileTable:   opts.FileTable,
		logger:      logger,
	}, nil
}

// Close closes the database.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// EnsureSchema creates the bucket and file tables if they are missing.
func (s *SQLStore) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			bucket TEXT PRIMARY KEY,
			file_ids TEXT NOT NULL DEFAULT ''
		)`, s.bucketTable),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			filename TEXT,
			palette_colors TEXT,
			palette_text TEXT
		)`, s.fileTable),
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}

// ListBuckets returns every bucket ordered by descending item count.
func (s *SQLStore) ListBuckets(ctx context.Context) ([]Bucket, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("SELECT bucket, file_ids FROM %s", s.bucketTable))
	if err != nil {
		return nil, fmt.Errorf("failed to list buckets: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	buckets := []Bucket{}
	for rows.Next() {
		var key string
		var ids sql.NullString
		if err := rows.Scan(&key, &ids); err != nil {
			return nil, fmt.Errorf("failed to scan bucket: %w", err)
		}
		buckets = append(buckets, Bucket{Key: key, IDs: SplitIDs(ids.String)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list buckets: %w", err)
	}

	SortBuckets(buckets)
	return buckets, nil
}

// LookupFilenames returns the filename of each id that has a record with a
// non-null filename.
func (s *SQLStore) LookupFilenames(ctx context.Context, ids []string) (map[string]string, error) {
	out := make(map[string]string, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	query := s.dialect.lookupQuery(s.fileTable, "filename", len(ids))
	rows, err := s.db.QueryContext(ctx, query, toArgs(ids)...)
	if err != nil {
		return nil, fmt.Errorf("failed to look up filenames: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	for rows.Next() {
		var id string
		var filename sql.NullString
		if err := rows.Scan(&id, &filename); err != nil {
			return nil, fmt.Errorf("failed to scan filename: %w", err)
		}
		if filename.Valid {
			out[id] = filename.String
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to look up filenames: %w", err)
	}
	return out, nil
}

// LookupPalettes returns the decoded palette of each id that has a record.
// Records without a palette map to an empty palette.
func (s *SQLStore) LookupPalettes(ctx context.Context, ids []string) (map[string][]palette.Entry, error) {
	out := make(map[string][]palette.Entry, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	query := s.dialect.lookupQuery(s.fileTable, "palette_colors, palette_text", len(ids))
	rows, err := s.db.QueryContext(ctx, query, toArgs(ids)...)
	if err != nil {
		return nil, fmt.Errorf("failed to look up palettes: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	for rows.Next() {
		var id string
		var colors, labels sql.NullString
		if err := rows.Scan(&id, &colors, &labels); err != nil {
			return nil, fmt.Errorf("failed to scan palette: %w", err)
		}
		out[id] = palette.Decode(colors.String, labels.String)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to look up palettes: %w", err)
	}
	return out, nil
}

// UpdatePalettes overwrites palette columns for all updates in a single
// UPDATE statement. Callers bound the batch size.
func (s *SQLStore) UpdatePalettes(ctx context.Context, updates []PaletteUpdate) error {
	if len(updates) == 0 {
		return nil
	}

	args := make([]any, 0, len(updates)*5)
	n := 1
	next := func(v any) string {
		args = append(args, v)
		p := s.dialect.placeholder(n)
		n++
		return p
	}

	var colors, labels strings.Builder
	for _, u := range updates {
		fmt.Fprintf(&colors, " WHEN %s THEN %s", next(u.ID), next(palette.EncodeColors(u.Entries)))
	}
	for _, u := range updates {
		fmt.Fprintf(&labels, " WHEN %s THEN %s", next(u.ID), next(palette.EncodeLabels(u.Entries)))
	}
	in := make([]string, len(updates))
	for i, u := range updates {
		in[i] = next(u.ID)
	}

	key := s.dialect.idKey()
	query := fmt.Sprintf(
		"UPDATE %s SET palette_colors = CASE %s%s END, palette_text = CASE %s%s END WHERE %s IN (%s)",
		s.fileTable, key, colors.String(), key, labels.String(), key, strings.Join(in, ", "))

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update palettes: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && int(affected) != len(updates) {
		s.logger.Debug("palette update touched fewer rows than requested",
			zap.Int64("affected", affected), zap.Int("requested", len(updates)))
	}
	return nil
}

// PutBucket inserts or replaces a bucket.
func (s *SQLStore) PutBucket(ctx context.Context, b Bucket) error {
	query := fmt.Sprintf(
		"INSERT INTO %s (bucket, file_ids) VALUES (%s) ON CONFLICT (bucket) DO UPDATE SET file_ids = excluded.file_ids",
		s.bucketTable, s.dialect.placeholders(1, 2))
	if _, err := s.db.ExecContext(ctx, query, b.Key, strings.Join(b.IDs, ",")); err != nil {
		return fmt.Errorf("failed to save bucket %s: %w", b.Key, err)
	}
	return nil
}

// PutFile inserts or replaces an item's filename.
func (s *SQLStore) PutFile(ctx context.Context, id, filename string) error {
	query := fmt.Sprintf(
		"INSERT INTO %s (id, filename) VALUES (%s) ON CONFLICT (id) DO UPDATE SET filename = excluded.filename",
		s.fileTable, s.dialect.placeholders(1, 2))
	if _, err := s.db.ExecContext(ctx, query, id, filename); err != nil {
		return fmt.Errorf("failed to save file %s: %w", id, err)
	}
	return nil
}

func toArgs(ids []string) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}
