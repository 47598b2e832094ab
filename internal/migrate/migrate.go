// Package migrate применяет сгенерированную схему к базе данных
// или запускает внешнюю команду миграции.
package migrate

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // driver: pgx
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" // driver: sqlite

	"stalmer/internal/ir"
	"stalmer/internal/logging"
)

// коды postgres, которые означают «объект уже есть»
const (
	pgDuplicateObject = "42710"
	pgDuplicateTable  = "42P07"
)

const defaultBusyTimeout = 5 * time.Second

// Result: сколько операторов выполнено и сколько пропущено как уже существующие.
type Result struct {
	Applied int
	Skipped int
}

// Open открывает соединение и проверяет его ping'ом.
// Для sqlite dsn — путь к файлу или готовый "file:" DSN.
func Open(ctx context.Context, kind ir.Database, dsn string) (*sqlx.DB, error) {
	var (
		db  *sqlx.DB
		err error
	)
	switch kind {
	case ir.PostgreSQL:
		db, err = sqlx.Open("pgx", dsn)
		if err != nil {
			return nil, fmt.Errorf("open postgresql: %w", err)
		}
		db.SetConnMaxLifetime(30 * time.Minute)
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
	case ir.SQLite:
		full, err := sqliteDSN(dsn)
		if err != nil {
			return nil, err
		}
		db, err = sqlx.Open("sqlite", full)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		db.SetMaxOpenConns(1)
	default:
		return nil, fmt.Errorf("unsupported database %q", kind)
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultBusyTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", kind, err)
	}
	return db, nil
}

func sqliteDSN(dsn string) (string, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return "", errors.New("sqlite path required")
	}
	if strings.HasPrefix(dsn, "file:") {
		return dsn, nil
	}
	abs, err := filepath.Abs(dsn)
	if err != nil {
		return "", fmt.Errorf("resolve sqlite path: %w", err)
	}
	busy := int(defaultBusyTimeout / time.Millisecond)
	return fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=foreign_keys(1)", abs, busy), nil
}

// Apply выполняет DDL по одному оператору.
// Postgres: без общей транзакции, «уже существует» пропускается.
// SQLite: всё в одной транзакции.
func Apply(ctx context.Context, kind ir.Database, dsn, ddl string) (Result, error) {
	db, err := Open(ctx, kind, dsn)
	if err != nil {
		return Result{}, err
	}
	defer db.Close()
	return ApplyDB(ctx, db, kind, ddl)
}

func ApplyDB(ctx context.Context, db *sqlx.DB, kind ir.Database, ddl string) (Result, error) {
	logger := logging.FromContext(ctx).With("database", string(kind))
	stmts := Statements(ddl)
	var res Result

	if kind == ir.SQLite {
		err := withTx(ctx, db, func(tx *sqlx.Tx) error {
			for i, s := range stmts {
				if _, err := tx.ExecContext(ctx, s); err != nil {
					return fmt.Errorf("statement %d: %w", i+1, err)
				}
				res.Applied++
			}
			return nil
		})
		if err != nil {
			return Result{}, fmt.Errorf("DDL apply failed: %w", err)
		}
		logger.Info("Schema applied.", "applied", res.Applied)
		return res, nil
	}

	for i, s := range stmts {
		if _, err := db.ExecContext(ctx, s); err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && (pgErr.Code == pgDuplicateObject || pgErr.Code == pgDuplicateTable) {
				logger.Debug("DDL skipped (already exists).", "statement", i+1, "code", pgErr.Code, "message", pgErr.Message)
				res.Skipped++
				continue
			}
			return res, fmt.Errorf("DDL apply failed at statement %d: %w", i+1, err)
		}
		res.Applied++
	}
	logger.Info("Schema applied.", "applied", res.Applied, "skipped", res.Skipped)
	return res, nil
}

func withTx(ctx context.Context, db *sqlx.DB, fn func(*sqlx.Tx) error) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// Statements режет скрипт на операторы по ";".
// Точка с запятой и "--" внутри '...' и "..." не считаются; удвоенная кавычка — экранирование.
func Statements(ddl string) []string {
	var (
		out   []string
		cur   strings.Builder
		quote byte
	)
	flush := func() {
		if st := strings.TrimSpace(cur.String()); st != "" {
			out = append(out, st)
		}
		cur.Reset()
	}
	for i := 0; i < len(ddl); i++ {
		c := ddl[i]
		switch {
		case quote != 0:
			cur.WriteByte(c)
			if c != quote {
				continue
			}
			if i+1 < len(ddl) && ddl[i+1] == quote {
				cur.WriteByte(c)
				i++
				continue
			}
			quote = 0
		case c == '\'' || c == '"':
			quote = c
			cur.WriteByte(c)
		case c == '-' && i+1 < len(ddl) && ddl[i+1] == '-':
			// комментарий до конца строки
			for i+1 < len(ddl) && ddl[i+1] != '\n' {
				i++
			}
		case c == ';':
			cur.WriteByte(c)
			flush()
		default:
			cur.WriteByte(c)
		}
	}
	flush()
	return out
}
