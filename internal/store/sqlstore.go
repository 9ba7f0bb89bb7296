package store

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql" // driver import
	_ "github.com/jackc/pgx/v5/stdlib" // driver import
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"           // driver import
	_ "github.com/mattn/go-sqlite3" // driver import
	_ "modernc.org/sqlite"          // driver import

	"github.com/isobench/isobench/internal/errors"
	"github.com/isobench/isobench/internal/observability"
	"github.com/isobench/isobench/pkg/types"
)

// Options configures a SQL store.
type Options struct {
	Driver string
	DSN    string

	// MaxOpenConns limits the pool; 0 means unlimited.
	// It must exceed the number of concurrent workers or Connect blocks.
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration

	// PingTimeout bounds the connectivity check in Open
	PingTimeout time.Duration

	Logger observability.Logger
}

// SQLStore is a Store backed by database/sql through sqlx.
type SQLStore struct {
	db      *sqlx.DB
	dialect Dialect
	logger  observability.Logger
}

// Open opens and pings a SQL store.
func Open(ctx context.Context, opts Options) (*SQLStore, error) {
	dialect, ok := LookupDialect(opts.Driver)
	if !ok || opts.Driver == DriverMemory {
		return nil, errors.InvalidSpec("unsupported SQL driver %q", opts.Driver)
	}

	db, err := sqlx.Open(opts.Driver, opts.DSN)
	if err != nil {
		return nil, errors.ConnectionFailure("open "+opts.Driver, err)
	}
	db.SetMaxOpenConns(opts.MaxOpenConns)
	if opts.MaxIdleConns > 0 {
		db.SetMaxIdleConns(opts.MaxIdleConns)
	}
	if opts.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(opts.ConnMaxLifetime)
	}

	pingTimeout := opts.PingTimeout
	if pingTimeout <= 0 {
		pingTimeout = 10 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, errors.ConnectionFailure("ping "+opts.Driver, err)
	}

	logger := observability.OrNop(opts.Logger)
	logger.Debug(logMsgStoreOpened, logAttrDriver, opts.Driver, logAttrMaxConns, opts.MaxOpenConns)

	return &SQLStore{db: db, dialect: dialect, logger: logger}, nil
}

// DB exposes the underlying pool for schema setup.
func (s *SQLStore) DB() *sqlx.DB {
	return s.db
}

// Dialect returns the store's dialect.
func (s *SQLStore) Dialect() Dialect {
	return s.dialect
}

// Connect reserves a dedicated connection from the pool.
func (s *SQLStore) Connect(ctx context.Context) (Conn, error) {
	conn, err := s.db.Connx(ctx)
	if err != nil {
		return nil, errors.ConnectionFailure("acquire connection", err)
	}
	return &sqlConn{conn: conn, dialect: s.dialect, level: types.IsolationRR}, nil
}

// Close closes the pool.
func (s *SQLStore) Close() error {
	if err := s.db.Close(); err != nil {
		return errors.CloseFailure(err)
	}
	return nil
}

type sqlConn struct {
	conn    *sqlx.Conn
	dialect Dialect
	level   types.IsolationLevel
}

func (c *sqlConn) SetIsolationLevel(level types.IsolationLevel) {
	c.level = level
}

func (c *sqlConn) Prepare(ctx context.Context, query string) (Statement, error) {
	stmt, err := c.conn.PreparexContext(ctx, c.dialect.Rebind(query))
	if err != nil {
		return nil, errors.PrepareFailure(query, err)
	}
	return &sqlStatement{stmt: stmt, text: query}, nil
}

func (c *sqlConn) Begin(ctx context.Context) (Tx, error) {
	tx, err := c.conn.BeginTxx(ctx, c.dialect.TxOptions(c.level))
	if err != nil {
		return nil, errors.ExecuteFailure(fmt.Sprintf("begin %s transaction", c.level), err)
	}
	return &sqlTx{tx: tx}, nil
}

func (c *sqlConn) ExecDirect(ctx context.Context, query string, args ...any) error {
	if _, err := c.conn.ExecContext(ctx, c.dialect.Rebind(query), args...); err != nil {
		return errors.ExecuteFailure("exec", err).WithDetails(map[string]interface{}{"statement": query})
	}
	return nil
}

func (c *sqlConn) Close() error {
	if err := c.conn.Close(); err != nil {
		return errors.CloseFailure(err)
	}
	return nil
}

type sqlStatement struct {
	stmt *sqlx.Stmt
	text string
}

func (s *sqlStatement) Text() string {
	return s.text
}

func (s *sqlStatement) NumParams() int {
	return CountPlaceholders(s.text)
}

func (s *sqlStatement) Close() error {
	if err := s.stmt.Close(); err != nil {
		return errors.CloseFailure(err)
	}
	return nil
}

type sqlTx struct {
	tx *sqlx.Tx
}

func (t *sqlTx) bind(ctx context.Context, stmt Statement) (*sqlx.Stmt, error) {
	s, ok := stmt.(*sqlStatement)
	if !ok {
		return nil, errors.NewInternalError(fmt.Sprintf("statement %T was not prepared by a SQL store", stmt), nil)
	}
	return t.tx.StmtxContext(ctx, s.stmt), nil
}

func (t *sqlTx) Query(ctx context.Context, stmt Statement, args ...any) (Rows, error) {
	s, err := t.bind(ctx, stmt)
	if err != nil {
		return nil, err
	}
	rows, err := s.QueryxContext(ctx, args...)
	if err != nil {
		return nil, errors.ExecuteFailure("query", err).WithDetails(map[string]interface{}{"statement": stmt.Text()})
	}
	return rows, nil
}

func (t *sqlTx) Execute(ctx context.Context, stmt Statement, args ...any) (int64, error) {
	s, err := t.bind(ctx, stmt)
	if err != nil {
		return 0, err
	}
	res, err := s.ExecContext(ctx, args...)
	if err != nil {
		return 0, errors.ExecuteFailure("execute", err).WithDetails(map[string]interface{}{"statement": stmt.Text()})
	}
	n, err := res.RowsAffected()
	if err != nil {
		// Not every driver reports affected rows.
		return -1, nil
	}
	return n, nil
}

func (t *sqlTx) Commit() error {
	if err := t.tx.Commit(); err != nil {
		return errors.CommitFailure(err)
	}
	return nil
}

func (t *sqlTx) Rollback() error {
	if err := t.tx.Rollback(); err != nil && !stderrors.Is(err, sql.ErrTxDone) {
		return errors.ExecuteFailure("rollback", err)
	}
	return nil
}
