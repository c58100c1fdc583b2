// Package database opens the sqlite database behind the learnctl history store.
package database

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"learnapp/internal/observability"
	contextutils "learnapp/internal/utils"

	// OpenTelemetry SQL instrumentation
	"go.nhat.io/otelsql"
	"go.opentelemetry.io/otel/attribute"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"

	// Pure Go sqlite driver, registered as "sqlite"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// Manager handles database operations with proper logging
type Manager struct {
	logger *observability.Logger
}

var (
	otelDriverNameCache string
	otelDriverOnce      sync.Once
	otelDriverErr       error
)

// ErrTableAlreadyExists is returned when trying to create a table that already exists
var ErrTableAlreadyExists = errors.New("table already exists")

// NewManager creates a new database manager with the provided logger
func NewManager(logger *observability.Logger) *Manager {
	return &Manager{
		logger: logger,
	}
}

// OpenSQLite opens (creating if needed) the sqlite file at path through the
// instrumented driver and applies the schema. ":memory:" is accepted.
func (dm *Manager) OpenSQLite(ctx context.Context, path string) (result *sql.DB, err error) {
	ctx, span := observability.TraceHistoryFunction(ctx, "open_sqlite",
		attribute.String("db.system", "sqlite"),
		attribute.String("db.path", path),
	)
	defer observability.FinishSpan(span, &err)

	if path == "" {
		return nil, contextutils.WrapError(contextutils.ErrInvalidInput, "sqlite path is empty")
	}
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, contextutils.WrapError(err, "failed to create database directory")
			}
		}
	}

	// Register OpenTelemetry SQL driver once per process and reuse the name
	otelDriverOnce.Do(func() {
		otelDriverNameCache, otelDriverErr = otelsql.Register("sqlite",
			otelsql.WithDatabaseName("learnapp_history"),
			otelsql.WithSystem(semconv.DBSystemSqlite),
			otelsql.TraceRowsAffected(),
		)
	})
	if otelDriverErr != nil {
		return nil, contextutils.WrapError(otelDriverErr, "failed to register otelsql driver")
	}

	db, err := sql.Open(otelDriverNameCache, path)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to open database connection")
	}
	// sqlite allows a single writer; one connection also keeps ":memory:" databases alive.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			dm.logger.Error(ctx, "Failed to close database connection after ping failure", closeErr)
		}
		return nil, contextutils.WrapError(err, "failed to ping database")
	}

	if err := dm.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	dm.logger.Debug(ctx, "History database ready", map[string]interface{}{"path": path})
	return db, nil
}

// RunMigrations executes the embedded schema. Statements are idempotent.
func (dm *Manager) RunMigrations(ctx context.Context, db *sql.DB) (err error) {
	ctx, span := observability.TraceHistoryFunction(ctx, "run_migrations",
		attribute.String("migration.type", "application_schema"),
	)
	defer observability.FinishSpan(span, &err)

	statements := ParseSchemaStatements(schemaSQL)
	span.SetAttributes(attribute.Int("schema.statements.count", len(statements)))

	// Tables first, then indexes
	var indexStatements []string
	for _, statement := range statements {
		if strings.HasPrefix(strings.ToUpper(statement), "CREATE INDEX") {
			indexStatements = append(indexStatements, statement)
			continue
		}
		if _, execErr := db.ExecContext(ctx, statement); execErr != nil && !isTableExistsError(execErr) {
			return contextutils.WrapErrorf(execErr, "failed to execute schema statement: %s", statement)
		}
	}
	for _, statement := range indexStatements {
		if _, execErr := db.ExecContext(ctx, statement); execErr != nil && !isTableExistsError(execErr) {
			return contextutils.WrapErrorf(execErr, "failed to execute index statement: %s", statement)
		}
	}
	return nil
}

// ParseSchemaStatements strips comments from a schema file and splits it on semicolons.
func ParseSchemaStatements(schema string) []string {
	var cleanedLines []string
	inComment := false

	for _, line := range strings.Split(schema, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		// Handle multi-line comments
		if strings.HasPrefix(line, "/*") {
			inComment = !strings.HasSuffix(line, "*/")
			continue
		}
		if inComment {
			if strings.HasSuffix(line, "*/") {
				inComment = false
			}
			continue
		}

		if strings.HasPrefix(line, "--") {
			continue
		}
		// Remove inline comments (comments that appear after SQL code)
		if commentIndex := strings.Index(line, "--"); commentIndex != -1 {
			line = strings.TrimSpace(line[:commentIndex])
		}
		cleanedLines = append(cleanedLines, line)
	}

	var result []string
	for _, stmt := range strings.Split(strings.Join(cleanedLines, " "), ";") {
		if stmt = strings.TrimSpace(stmt); stmt != "" {
			result = append(result, stmt)
		}
	}
	return result
}

// isTableExistsError checks if the error is due to a table already existing
func isTableExistsError(err error) bool {
	if errors.Is(err, ErrTableAlreadyExists) {
		return true
	}
	return strings.Contains(err.Error(), "already exists")
}
