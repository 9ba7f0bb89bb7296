package store

import (
	"database/sql"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/isobench/isobench/pkg/types"
)

// Driver names accepted by Open.
const (
	DriverSQLite3  = "sqlite3"  // github.com/mattn/go-sqlite3
	DriverSQLite   = "sqlite"   // modernc.org/sqlite
	DriverPostgres = "postgres" // github.com/lib/pq
	DriverPgx      = "pgx"      // github.com/jackc/pgx/v5/stdlib
	DriverMySQL    = "mysql"    // github.com/go-sql-driver/mysql
	DriverMemory   = "memory"   // in-process store, see package memstore
)

// Dialect describes the SQL flavor behind a driver.
type Dialect struct {
	// Driver is the database/sql driver name
	Driver string

	// Builder is the goqu dialect used for generated statements
	Builder string

	// Isolation reports whether the driver honors sql.TxOptions isolation levels
	Isolation bool

	// RowLocks reports whether SELECT ... FOR UPDATE is available
	RowLocks bool

	// LockTable is the exclusive table lock statement; %s is the table name.
	// Empty when the dialect has no transactional table lock.
	LockTable string
}

var dialects = map[string]Dialect{
	DriverSQLite3:  {Driver: DriverSQLite3, Builder: "sqlite3"},
	DriverSQLite:   {Driver: DriverSQLite, Builder: "sqlite3"},
	DriverPostgres: {Driver: DriverPostgres, Builder: "postgres", Isolation: true, RowLocks: true, LockTable: "LOCK TABLE %s IN EXCLUSIVE MODE"},
	DriverPgx:      {Driver: DriverPgx, Builder: "postgres", Isolation: true, RowLocks: true, LockTable: "LOCK TABLE %s IN EXCLUSIVE MODE"},
	DriverMySQL:    {Driver: DriverMySQL, Builder: "mysql", Isolation: true, RowLocks: true},
	DriverMemory:   {Driver: DriverMemory, Builder: "default", Isolation: true},
}

// LookupDialect returns the dialect of a driver name.
func LookupDialect(driver string) (Dialect, bool) {
	d, ok := dialects[driver]
	return d, ok
}

// Drivers lists the supported driver names.
func Drivers() []string {
	names := make([]string, 0, len(dialects))
	for name := range dialects {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Rebind converts '?' placeholders to the dialect's bind style.
func (d Dialect) Rebind(query string) string {
	return sqlx.Rebind(sqlx.BindType(d.Driver), query)
}

// TxOptions maps an isolation level onto sql.TxOptions.
// Drivers without isolation support get the default level.
func (d Dialect) TxOptions(level types.IsolationLevel) *sql.TxOptions {
	if !d.Isolation {
		return &sql.TxOptions{}
	}
	return &sql.TxOptions{Isolation: level.SQLLevel()}
}

// LockTableStatement returns the table lock statement for table, or "".
func (d Dialect) LockTableStatement(table string) string {
	if d.LockTable == "" {
		return ""
	}
	return fmt.Sprintf(d.LockTable, table)
}

// ConnParams are the connection parameters of a server or file database.
type ConnParams struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string

	// Params are appended to the DSN as driver options
	Params map[string]string
}

// BuildDSN builds a data source name for driver. For the SQLite drivers
// Database is the file path; busy timeout, WAL journaling and immediate
// transactions are enabled so concurrent writers queue instead of failing.
func BuildDSN(driver string, p ConnParams) (string, error) {
	switch driver {
	case DriverSQLite3:
		q := url.Values{}
		q.Set("_busy_timeout", "10000")
		q.Set("_journal_mode", "WAL")
		q.Set("_txlock", "immediate")
		addParams(q, p.Params)
		return p.Database + "?" + q.Encode(), nil

	case DriverSQLite:
		q := url.Values{}
		q.Add("_pragma", "busy_timeout(10000)")
		q.Add("_pragma", "journal_mode(WAL)")
		q.Set("_txlock", "immediate")
		addParams(q, p.Params)
		return p.Database + "?" + q.Encode(), nil

	case DriverPostgres, DriverPgx:
		port := p.Port
		if port == 0 {
			port = 5432
		}
		parts := []string{
			"host=" + p.Host,
			fmt.Sprintf("port=%d", port),
			"user=" + p.User,
			"password=" + p.Password,
			"dbname=" + p.Database,
		}
		if _, ok := p.Params["sslmode"]; !ok {
			parts = append(parts, "sslmode=disable")
		}
		for _, k := range sortedKeys(p.Params) {
			parts = append(parts, k+"="+p.Params[k])
		}
		return strings.Join(parts, " "), nil

	case DriverMySQL:
		port := p.Port
		if port == 0 {
			port = 3306
		}
		q := url.Values{}
		q.Set("parseTime", "true")
		q.Set("charset", "utf8mb4")
		addParams(q, p.Params)
		return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?%s", p.User, p.Password, p.Host, port, p.Database, q.Encode()), nil

	case DriverMemory:
		return "", nil

	default:
		return "", fmt.Errorf("unsupported driver %q (supported: %s)", driver, strings.Join(Drivers(), ", "))
	}
}

func addParams(q url.Values, params map[string]string) {
	for _, k := range sortedKeys(params) {
		q.Set(k, params[k])
	}
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
