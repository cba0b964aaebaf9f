package db

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/rowjay/shop-backup/internal/config"
)

// Open connects to the configured database. It does not ping; callers decide
// when an unreachable database is fatal.
func Open(cfg config.DatabaseConfig) (*SQLStore, error) {
	dialect, err := DialectFor(cfg.Type)
	if err != nil {
		return nil, err
	}
	dsn, err := DSN(dialect, cfg)
	if err != nil {
		return nil, err
	}
	conn, err := sql.Open(dialect.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dialect.Name, err)
	}
	if dialect.Name == SQLite.Name {
		// one writer; an in-memory database also lives only on one connection
		conn.SetMaxOpenConns(1)
	}
	return New(conn, dialect), nil
}

// DSN renders the driver connection string for cfg.
func DSN(dialect Dialect, cfg config.DatabaseConfig) (string, error) {
	switch dialect.Name {
	case SQLite.Name:
		return sqliteDSN(cfg)
	case Postgres.Name:
		return postgresDSN(cfg), nil
	case MySQL.Name:
		return mysqlDSN(cfg), nil
	}
	return "", fmt.Errorf("unsupported database type: %s", dialect.Name)
}

func sqliteDSN(cfg config.DatabaseConfig) (string, error) {
	path := cfg.SQLitePath
	if path == "" {
		path = cfg.Database
	}
	if path == "" {
		return "", fmt.Errorf("database.sqlite_path is required for sqlite")
	}
	if path == ":memory:" {
		return path, nil
	}
	return path + "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", nil
}

func postgresDSN(cfg config.DatabaseConfig) string {
	q := url.Values{}
	sslmode := cfg.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	q.Set("sslmode", sslmode)
	if cfg.ConnectionTimeout > 0 {
		q.Set("connect_timeout", strconv.Itoa(int(cfg.ConnectionTimeout/time.Second)))
	}
	for k, v := range cfg.Params {
		q.Set(k, v)
	}
	u := url.URL{
		Scheme:   "postgres",
		Host:     net.JoinHostPort(hostOrDefault(cfg.Host), portOrDefault(cfg.Port, 5432)),
		Path:     "/" + cfg.Database,
		RawQuery: q.Encode(),
	}
	if cfg.Username != "" {
		u.User = url.UserPassword(cfg.Username, cfg.Password)
	}
	return u.String()
}

func mysqlDSN(cfg config.DatabaseConfig) string {
	mc := mysql.NewConfig()
	mc.User = cfg.Username
	mc.Passwd = cfg.Password
	mc.Net = "tcp"
	mc.Addr = net.JoinHostPort(hostOrDefault(cfg.Host), portOrDefault(cfg.Port, 3306))
	mc.DBName = cfg.Database
	mc.ParseTime = true
	mc.Loc = time.UTC
	if cfg.ConnectionTimeout > 0 {
		mc.Timeout = cfg.ConnectionTimeout
	}
	if len(cfg.Params) > 0 {
		mc.Params = map[string]string{}
		for k, v := range cfg.Params {
			mc.Params[k] = v
		}
	}
	return mc.FormatDSN()
}

func hostOrDefault(host string) string {
	if strings.TrimSpace(host) == "" {
		return "localhost"
	}
	return host
}

func portOrDefault(port int, def int) string {
	if port == 0 {
		return strconv.Itoa(def)
	}
	return strconv.Itoa(port)
}

// OpenAndPing is Open followed by a bounded ping.
func OpenAndPing(ctx context.Context, cfg config.DatabaseConfig) (*SQLStore, error) {
	store, err := Open(cfg)
	if err != nil {
		return nil, err
	}
	if cfg.ConnectionTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.ConnectionTimeout)
		defer cancel()
	}
	if err := store.Ping(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}
	return store, nil
}
