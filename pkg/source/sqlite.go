package source

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"sync"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"learnedkv/pkg/common"
)

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// SQLiteSource stores key/value pairs in a table with an INTEGER PRIMARY
// KEY, so reading them back in key order needs no sort.
type SQLiteSource struct {
	db    *sql.DB
	table string
	mu    sync.Mutex
}

func OpenSQLite(dsn, table string) (*SQLiteSource, error) {
	if !identifier.MatchString(table) {
		return nil, fmt.Errorf("source: invalid table name %q", table)
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS %s (
		key INTEGER PRIMARY KEY,
		value BLOB
	);`, table)
	if _, err := db.Exec(query); err != nil {
		db.Close()
		return nil, fmt.Errorf("source: init table %s: %w", table, err)
	}

	if _, err := db.Exec(`PRAGMA journal_mode = WAL; PRAGMA synchronous = NORMAL;`); err != nil {
		zap.L().Warn("failed to set sqlite pragma", zap.Error(err))
	}
	return &SQLiteSource{db: db, table: table}, nil
}

// BatchWrite upserts records in one transaction.
func (s *SQLiteSource) BatchWrite(ctx context.Context, records []common.Record[int64, []byte]) error {
	if len(records) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf("INSERT OR REPLACE INTO %s (key, value) VALUES (?, ?)", s.table))
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, rec := range records {
		if _, err := stmt.ExecContext(ctx, rec.Key, rec.Value); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// LoadAll returns every row ordered by key, ready for a bulk load.
func (s *SQLiteSource) LoadAll(ctx context.Context) ([]common.Record[int64, []byte], error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("SELECT key, value FROM %s ORDER BY key", s.table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []common.Record[int64, []byte]
	for rows.Next() {
		var rec common.Record[int64, []byte]
		if err := rows.Scan(&rec.Key, &rec.Value); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (s *SQLiteSource) Close() error {
	return s.db.Close()
}

// LoadSQLite opens dsn, reads table in key order and closes it.
func LoadSQLite(ctx context.Context, dsn, table string) ([]common.Record[int64, []byte], error) {
	src, err := OpenSQLite(dsn, table)
	if err != nil {
		return nil, err
	}
	defer src.Close()
	return src.LoadAll(ctx)
}
