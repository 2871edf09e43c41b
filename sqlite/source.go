// Package sqlite reads record collections out of a SQLite database. Tables are
// materialized whole into schema.Documents; filtering, sorting and paging all
// happen in memory afterwards, so the source only ever issues plain SELECTs.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/asaidimu/go-tabula/core/schema"
	"go.uber.org/zap"
)

// dbRunner abstracts the read methods shared by *sql.DB and *sql.Tx so a
// snapshot can be read inside a transaction.
type dbRunner interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SourceOptions configures a Source.
type SourceOptions struct {
	// TablePrefix is prepended to every table name.
	TablePrefix string

	// Limit caps the rows read per table. Zero reads everything.
	Limit int
}

// DefaultSourceOptions returns options that read whole, unprefixed tables.
func DefaultSourceOptions() *SourceOptions {
	return &SourceOptions{}
}

// Column describes one table column.
type Column struct {
	Name     string           `json:"name"`
	DeclType string           `json:"declType"`
	Type     schema.FieldType `json:"type"`
}

// Source reads tables from a SQLite database.
type Source struct {
	db      *sql.DB
	tx      *sql.Tx
	logger  *zap.Logger
	options *SourceOptions
}

// NewSource creates a Source over db.
func NewSource(db *sql.DB, logger *zap.Logger, options *SourceOptions) *Source {
	if logger == nil {
		logger = zap.NewNop()
	}
	if options == nil {
		options = DefaultSourceOptions()
	}
	return &Source{db: db, logger: logger, options: options}
}

// Snapshot returns a Source reading inside a read-only transaction, so several
// tables can be loaded from one consistent view of the database. Call Close on
// the result when done.
func (s *Source) Snapshot(ctx context.Context) (*Source, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("failed to begin snapshot: %w", err)
	}
	return &Source{db: s.db, tx: tx, logger: s.logger, options: s.options}, nil
}

// Close ends a snapshot. It is a no-op on a non-snapshot Source.
func (s *Source) Close() error {
	if s.tx == nil {
		return nil
	}
	return s.tx.Rollback()
}

func (s *Source) runner() dbRunner {
	if s.tx != nil {
		return s.tx
	}
	return s.db
}

// quoteIdentifier quotes a table or column name for SQLite.
func quoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (s *Source) tableName(base string) string {
	return s.options.TablePrefix + base
}

// TableExists reports whether table exists.
func (s *Source) TableExists(ctx context.Context, table string) (bool, error) {
	query := "SELECT name FROM sqlite_master WHERE type='table' AND name = ?;"

	var name string
	err := s.runner().QueryRowContext(ctx, query, s.tableName(table)).Scan(&name)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Describe lists the columns of table with the field type each maps to.
func (s *Source) Describe(ctx context.Context, table string) ([]Column, error) {
	query := fmt.Sprintf("PRAGMA table_info(%s);", quoteIdentifier(s.tableName(table)))
	rows, err := s.runner().QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to describe table %s: %w", table, err)
	}
	defer rows.Close()

	var columns []Column
	for rows.Next() {
		var (
			cid       int
			name      string
			declType  string
			notNull   int
			dfltValue sql.NullString
			pk        int
		)
		if err := rows.Scan(&cid, &name, &declType, &notNull, &dfltValue, &pk); err != nil {
			return nil, fmt.Errorf("failed to scan column info: %w", err)
		}
		columns = append(columns, Column{Name: name, DeclType: declType, Type: FieldTypeFor(declType)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error after scanning column info: %w", err)
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("table %s does not exist", table)
	}
	return columns, nil
}

// FieldTypeFor maps a declared SQLite column type to a field type using
// SQLite's affinity rules, with date and time declarations read as timestamps.
func FieldTypeFor(declType string) schema.FieldType {
	t := strings.ToUpper(declType)
	switch {
	case strings.Contains(t, "DATE"), strings.Contains(t, "TIME"):
		return schema.FieldTypeTimestamp
	case strings.Contains(t, "INT"),
		strings.Contains(t, "REAL"),
		strings.Contains(t, "FLOA"),
		strings.Contains(t, "DOUB"),
		strings.Contains(t, "NUMERIC"),
		strings.Contains(t, "DECIMAL"):
		return schema.FieldTypeNumber
	}
	return schema.FieldTypeString
}

// FieldTypes returns the column to field type map DocumentFieldSet expects.
func FieldTypes(columns []Column) map[string]schema.FieldType {
	out := make(map[string]schema.FieldType, len(columns))
	for _, c := range columns {
		out[c.Name] = c.Type
	}
	return out
}

// ReadTable reads every row of table in rowid order.
func (s *Source) ReadTable(ctx context.Context, table string) ([]schema.Document, error) {
	columns, err := s.Describe(ctx, table)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf("SELECT * FROM %s", quoteIdentifier(s.tableName(table)))
	if s.options.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", s.options.Limit)
	}
	query += ";"

	s.logger.Debug("Executing SQL SELECT", zap.String("sql", query))

	rows, err := s.runner().QueryContext(ctx, query)
	if err != nil {
		s.logger.Error("Failed to execute SELECT query", zap.Error(err), zap.String("sql", query))
		return nil, fmt.Errorf("failed to read table %s: %w", table, err)
	}
	defer rows.Close()

	docs, err := readRows(s.logger, FieldTypes(columns), rows)
	if err != nil {
		return nil, fmt.Errorf("failed to read table %s: %w", table, err)
	}
	s.logger.Debug("Table read", zap.String("table", table), zap.Int("rows", len(docs)))
	return docs, nil
}

// readRows converts rows into Documents. Text comes back as string, numeric
// columns as int64 or float64, and date columns as time.Time when the driver
// recognizes the stored format.
func readRows(logger *zap.Logger, types map[string]schema.FieldType, rows *sql.Rows) ([]schema.Document, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to get columns: %w", err)
	}

	results := make([]schema.Document, 0)
	for rows.Next() {
		row := make(schema.Document, len(columns))
		values := make([]any, len(columns))
		scanArgs := make([]any, len(columns))
		for i := range values {
			scanArgs[i] = &values[i]
		}

		if err := rows.Scan(scanArgs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		for i, col := range columns {
			val := values[i]
			if val == nil {
				row[col] = nil
				continue
			}
			if b, ok := val.([]byte); ok {
				val = string(b)
			}

			fieldType, ok := types[col]
			if !ok {
				logger.Warn("Column not described, using raw value", zap.String("column", col))
				row[col] = val
				continue
			}

			switch fieldType {
			case schema.FieldTypeNumber:
				if str, isString := val.(string); isString {
					if f, ok := schema.ToFloat64(str); ok {
						val = f
					}
				}
			case schema.FieldTypeTimestamp:
				if str, isString := val.(string); isString {
					if ts, err := schema.ParseTimestamp(str); err == nil {
						val = ts
					}
				}
			}
			row[col] = val
		}
		results = append(results, row)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error after scanning rows: %w", err)
	}
	return results, nil
}
