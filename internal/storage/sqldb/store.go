// Package sqldb implements the verdict store on SQLite or PostgreSQL.
package sqldb

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/tjfontaine/harassment-moderator/internal/core/domain"
	"github.com/tjfontaine/harassment-moderator/internal/core/ports"
	"github.com/tjfontaine/harassment-moderator/internal/storage/dialect"
)

// DefaultListLimit applies when ListOptions.Limit is zero.
const DefaultListLimit = 20

// Store is a SQL implementation of ports.VerdictStore that supports
// multiple database dialects.
type Store struct {
	db      *sqlx.DB
	dialect dialect.Dialect
}

var _ ports.VerdictStore = (*Store)(nil)

// Config holds database connection configuration
type Config struct {
	Driver string // Driver name: sqlite, postgres
	DSN    string // Data source name / connection string
}

// New creates a new SQL store with the specified configuration.
func New(cfg Config) (*Store, error) {
	d, err := dialect.FromDriverName(cfg.Driver)
	if err != nil {
		return nil, fmt.Errorf("unsupported database driver: %w", err)
	}

	db, err := sqlx.Open(d.DriverName(), cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if d.Name() == "sqlite" {
		// One connection keeps pragmas and in-memory databases consistent.
		db.SetMaxOpenConns(1)
	}

	// Run dialect-specific initialization (e.g., PRAGMA for SQLite)
	for _, stmt := range d.PragmaStatements() {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute pragma: %w", err)
		}
	}

	store := &Store{db: db, dialect: d}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// NewSQLite creates a new SQLite store.
func NewSQLite(dbPath string) (*Store, error) {
	return New(Config{Driver: "sqlite", DSN: dbPath})
}

// Dialect returns the dialect being used
func (s *Store) Dialect() dialect.Dialect {
	return s.dialect
}

func (s *Store) initSchema() error {
	statements := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS moderation_logs (
	id TEXT PRIMARY KEY,
	content TEXT NOT NULL,
	category TEXT NOT NULL,
	severity TEXT NOT NULL,
	reasoning_chain %s NOT NULL,
	suggested_action TEXT NOT NULL,
	source TEXT NOT NULL,
	created_at %s NOT NULL
)`, s.dialect.JSONType(), s.dialect.TimestampType()),
		`CREATE INDEX IF NOT EXISTS idx_moderation_logs_created_at ON moderation_logs(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_moderation_logs_source ON moderation_logs(source)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// recordRow is the row shape of moderation_logs.
type recordRow struct {
	ID              string    `db:"id"`
	Content         string    `db:"content"`
	Category        string    `db:"category"`
	Severity        string    `db:"severity"`
	ReasoningChain  string    `db:"reasoning_chain"`
	SuggestedAction string    `db:"suggested_action"`
	Source          string    `db:"source"`
	CreatedAt       time.Time `db:"created_at"`
}

func (r *recordRow) toRecord() (*domain.Record, error) {
	rec := &domain.Record{
		ID:              r.ID,
		Content:         r.Content,
		Category:        r.Category,
		Severity:        domain.Severity(r.Severity),
		SuggestedAction: domain.Action(r.SuggestedAction),
		Source:          r.Source,
		CreatedAt:       r.CreatedAt,
	}
	if err := json.Unmarshal([]byte(r.ReasoningChain), &rec.ReasoningChain); err != nil {
		return nil, fmt.Errorf("failed to unmarshal reasoning chain: %w", err)
	}
	return rec, nil
}

const recordColumns = `id, content, category, severity, reasoning_chain, suggested_action, source, created_at`

func (s *Store) SaveRecord(ctx context.Context, rec *domain.Record) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	chain := rec.ReasoningChain
	if chain == nil {
		chain = []domain.ReasoningEntry{}
	}
	chainJSON, err := json.Marshal(chain)
	if err != nil {
		return fmt.Errorf("failed to marshal reasoning chain: %w", err)
	}

	query := s.dialect.Rebind(`INSERT INTO moderation_logs (` + recordColumns + `)
	          VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)

	_, err = s.db.ExecContext(ctx, query,
		rec.ID, rec.Content, rec.Category, string(rec.Severity), string(chainJSON),
		string(rec.SuggestedAction), rec.Source, rec.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to save record: %w", err)
	}
	return nil
}

func (s *Store) GetRecord(ctx context.Context, id string) (*domain.Record, error) {
	query := s.dialect.Rebind(`SELECT ` + recordColumns + ` FROM moderation_logs WHERE id = ?`)

	var row recordRow
	err := s.db.GetContext(ctx, &row, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound(fmt.Sprintf("record %s not found", id))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get record: %w", err)
	}
	return row.toRecord()
}

func (s *Store) ListRecords(ctx context.Context, opts ports.ListOptions) ([]*domain.Record, error) {
	var (
		where []string
		args  []any
	)
	if opts.Source != "" {
		where = append(where, "source = ?")
		args = append(args, opts.Source)
	}
	if opts.Category != "" {
		where = append(where, "category = ?")
		args = append(args, opts.Category)
	}

	query := `SELECT ` + recordColumns + ` FROM moderation_logs`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`

	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	args = append(args, limit, opts.Offset)

	var rows []recordRow
	if err := s.db.SelectContext(ctx, &rows, s.dialect.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}

	records := make([]*domain.Record, 0, len(rows))
	for i := range rows {
		rec, err := rows[i].toRecord()
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
