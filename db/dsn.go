package db

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/drone/envsubst"
)

const (
	DriverPostgres   = "postgres"
	DriverClickHouse = "clickhouse"
	DriverSQLite     = "sqlite"
)

type DSN struct {
	driver   string
	original string
	scheme   string
	host     string
	port     int64
	username string
	password string
	database string
	schema   string
	path     string
	options  url.Values
}

var defaultPorts = map[string]int64{
	DriverPostgres:   5432,
	DriverClickHouse: 9000,
}

// ParseDSN accepts psql://, postgres://, clickhouse:// and sqlite:// URLs. ${VAR} references
// are expanded from the environment first.
func ParseDSN(dsn string) (*DSN, error) {
	expanded, err := envsubst.EvalEnv(dsn)
	if err != nil {
		return nil, fmt.Errorf("expand environment variables: %w", err)
	}

	dsnURL, err := url.Parse(expanded)
	if err != nil {
		return nil, fmt.Errorf("invalid url: %w", err)
	}

	d := &DSN{
		original: dsn,
		scheme:   dsnURL.Scheme,
		options:  dsnURL.Query(),
	}

	switch dsnURL.Scheme {
	case "psql", "postgres", "postgresql":
		d.driver = DriverPostgres
	case "clickhouse":
		d.driver = DriverClickHouse
	case "sqlite", "sqlite3":
		d.driver = DriverSQLite
	default:
		return nil, fmt.Errorf("invalid scheme %q, expected one of psql, postgres, clickhouse or sqlite", dsnURL.Scheme)
	}

	if d.driver == DriverSQLite {
		d.path = dsnURL.Host + dsnURL.Path
		if d.path == "" {
			return nil, fmt.Errorf("sqlite dsn requires a database file path")
		}
		d.database = d.path
		d.schema = "main"
		return d, nil
	}

	d.host = dsnURL.Hostname()
	if d.host == "" {
		return nil, fmt.Errorf("missing host")
	}

	d.port = defaultPorts[d.driver]
	if rawPort := dsnURL.Port(); rawPort != "" {
		d.port, err = strconv.ParseInt(rawPort, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid port %q: %w", rawPort, err)
		}
	}

	d.database = strings.TrimPrefix(dsnURL.Path, "/")
	if d.database == "" {
		return nil, fmt.Errorf("missing database name")
	}

	if dsnURL.User != nil {
		d.username = dsnURL.User.Username()
		d.password, _ = dsnURL.User.Password()
	}

	switch d.driver {
	case DriverPostgres:
		d.schema = "public"
		for _, key := range []string{"schema", "schemaName"} {
			if value := d.options.Get(key); value != "" {
				d.schema = value
			}
			d.options.Del(key)
		}
	case DriverClickHouse:
		// ClickHouse has no schemas, tables live in the database
		d.schema = d.database
	}

	return d, nil
}

func (d *DSN) Driver() string {
	return d.driver
}

func (d *DSN) Schema() string {
	return d.schema
}

func (d *DSN) Database() string {
	return d.database
}

// ConnString returns the connection string understood by the dsn's database/sql driver.
func (d *DSN) ConnString() string {
	switch d.driver {
	case DriverPostgres:
		out := fmt.Sprintf("host=%s port=%d dbname=%s", d.host, d.port, quoteConnValue(d.database))
		if d.username != "" {
			out += " user=" + quoteConnValue(d.username)
		}
		if d.password != "" {
			out += " password=" + quoteConnValue(d.password)
		}

		keys := make([]string, 0, len(d.options))
		for key := range d.options {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			out += fmt.Sprintf(" %s=%s", key, quoteConnValue(d.options.Get(key)))
		}
		return out

	case DriverClickHouse:
		u := url.URL{
			Scheme:   "clickhouse",
			Host:     fmt.Sprintf("%s:%d", d.host, d.port),
			Path:     "/" + d.database,
			RawQuery: d.options.Encode(),
		}
		if d.username != "" {
			u.User = url.UserPassword(d.username, d.password)
		}
		return u.String()

	case DriverSQLite:
		if len(d.options) == 0 {
			return d.path
		}
		return d.path + "?" + d.options.Encode()
	}

	panic(fmt.Errorf("unknown driver %q", d.driver))
}

func quoteConnValue(value string) string {
	if value != "" && !strings.ContainsAny(value, ` '\`) {
		return value
	}
	value = strings.ReplaceAll(value, `\`, `\\`)
	value = strings.ReplaceAll(value, `'`, `\'`)
	return "'" + value + "'"
}
