// Package sqldb is the SQL plugin: SQLite databases addressed by
// "sqlite:<file>" connection strings, with files resolved against the
// application's config directory.
package sqldb

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"unicode/utf8"

	"go.uber.org/zap"
	_ "modernc.org/sqlite" // SQLite driver registration

	"github.com/waabox/deskbridge/internal/bridge"
	"github.com/waabox/deskbridge/internal/plugin"
)

// Name is the plugin name used in command names.
const Name = "sql"

const scheme = "sqlite:"

// ErrNotLoaded is returned when a command names a database that was not loaded.
var ErrNotLoaded = errors.New("database not loaded")

// ExecResult is the result of an execute command.
type ExecResult struct {
	RowsAffected int64 `json:"rowsAffected"`
	LastInsertID int64 `json:"lastInsertId"`
}

// Plugin keeps one connection pool per loaded database.
type Plugin struct {
	dir    string
	logger *zap.Logger

	mu  sync.Mutex
	dbs map[string]*sql.DB
}

var _ plugin.Plugin = (*Plugin)(nil)

// New creates the SQL plugin. Relative database files are resolved against dir.
func New(dir string, logger *zap.Logger) *Plugin {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Plugin{dir: dir, logger: logger.Named(Name), dbs: make(map[string]*sql.DB)}
}

func (p *Plugin) Name() string { return Name }

type loadArgs struct {
	DB string `json:"db"`
}

type queryArgs struct {
	DB     string            `json:"db"`
	Query  string            `json:"query"`
	Values []json.RawMessage `json:"values"`
}

type closeArgs struct {
	DB *string `json:"db"`
}

func (p *Plugin) Register(r *bridge.Router) error {
	cmds := map[string]bridge.Handler{
		"load": bridge.Typed(func(ctx context.Context, a loadArgs) (any, error) {
			return p.Load(ctx, a.DB)
		}),
		"execute": bridge.Typed(func(ctx context.Context, a queryArgs) (any, error) {
			values, err := decodeValues(a.Values)
			if err != nil {
				return nil, err
			}
			return p.Execute(ctx, a.DB, a.Query, values...)
		}),
		"select": bridge.Typed(func(ctx context.Context, a queryArgs) (any, error) {
			values, err := decodeValues(a.Values)
			if err != nil {
				return nil, err
			}
			return p.Select(ctx, a.DB, a.Query, values...)
		}),
		"close": bridge.Typed(func(_ context.Context, a closeArgs) (any, error) {
			if a.DB == nil {
				return true, p.Close()
			}
			return true, p.CloseDB(*a.DB)
		}),
	}
	for name, h := range cmds {
		if err := r.Register(plugin.Command(Name, name), h); err != nil {
			return err
		}
	}
	return nil
}

// Path resolves a "sqlite:<file>" connection string to a file path.
func (p *Plugin) Path(db string) (string, error) {
	if !strings.HasPrefix(db, scheme) {
		return "", fmt.Errorf("unsupported database %q: only %s<file> is supported", db, scheme)
	}
	file := strings.TrimPrefix(db, scheme)
	if file == "" {
		return "", fmt.Errorf("database %q has no file name", db)
	}
	if file == ":memory:" || filepath.IsAbs(file) {
		return file, nil
	}
	return filepath.Join(p.dir, file), nil
}

// Load opens db, or returns immediately if it is already open.
func (p *Plugin) Load(ctx context.Context, db string) (string, error) {
	path, err := p.Path(db)
	if err != nil {
		return "", err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.dbs[db]; ok {
		return db, nil
	}

	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
			return "", fmt.Errorf("creating database directory: %w", err)
		}
	}
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return "", fmt.Errorf("opening database: %w", err)
	}
	if path == ":memory:" {
		// Every connection to :memory: is a separate database.
		conn.SetMaxOpenConns(1)
	}
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return "", fmt.Errorf("opening database: %w", err)
	}
	p.dbs[db] = conn
	p.logger.Info("Database loaded", zap.String("db", db), zap.String("path", path))
	return db, nil
}

func (p *Plugin) get(db string) (*sql.DB, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	conn, ok := p.dbs[db]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotLoaded, db)
	}
	return conn, nil
}

// Execute runs a statement that returns no rows.
func (p *Plugin) Execute(ctx context.Context, db, query string, values ...any) (ExecResult, error) {
	conn, err := p.get(db)
	if err != nil {
		return ExecResult{}, err
	}
	res, err := conn.ExecContext(ctx, query, values...)
	if err != nil {
		return ExecResult{}, err
	}
	var out ExecResult
	if out.RowsAffected, err = res.RowsAffected(); err != nil {
		return ExecResult{}, err
	}
	if out.LastInsertID, err = res.LastInsertId(); err != nil {
		return ExecResult{}, err
	}
	return out, nil
}

// Select runs a query and returns each row as a column name to value map.
func (p *Plugin) Select(ctx context.Context, db, query string, values ...any) ([]map[string]any, error) {
	conn, err := p.get(db)
	if err != nil {
		return nil, err
	}
	rows, err := conn.QueryContext(ctx, query, values...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	result := []map[string]any{}
	for rows.Next() {
		cells := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range cells {
			ptrs[i] = &cells[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(map[string]any, len(cols))
		for i, col := range cols {
			row[col] = jsonValue(cells[i])
		}
		result = append(result, row)
	}
	return result, rows.Err()
}

// CloseDB closes one database.
func (p *Plugin) CloseDB(db string) error {
	p.mu.Lock()
	conn, ok := p.dbs[db]
	delete(p.dbs, db)
	p.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotLoaded, db)
	}
	return conn.Close()
}

// Close closes every loaded database.
func (p *Plugin) Close() error {
	p.mu.Lock()
	names := make([]string, 0, len(p.dbs))
	for name := range p.dbs {
		names = append(names, name)
	}
	p.mu.Unlock()
	sort.Strings(names)

	var errs []error
	for _, name := range names {
		if err := p.CloseDB(name); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// decodeValues converts bound parameters. Integral numbers bind as int64 so
// they compare equal to INTEGER columns.
func decodeValues(raw []json.RawMessage) ([]any, error) {
	values := make([]any, len(raw))
	for i, r := range raw {
		dec := json.NewDecoder(bytes.NewReader(r))
		dec.UseNumber()
		var v any
		if err := dec.Decode(&v); err != nil {
			return nil, fmt.Errorf("invalid value at index %d: %w", i, err)
		}
		switch n := v.(type) {
		case json.Number:
			if iv, err := n.Int64(); err == nil {
				v = iv
			} else if fv, err := n.Float64(); err == nil {
				v = fv
			} else {
				return nil, fmt.Errorf("invalid number at index %d: %s", i, n)
			}
		case bool:
			if n {
				v = int64(1)
			} else {
				v = int64(0)
			}
		case map[string]any, []any:
			v = string(r)
		}
		values[i] = v
	}
	return values, nil
}

// jsonValue makes text stored as a blob readable on the front-end.
func jsonValue(v any) any {
	if b, ok := v.([]byte); ok && utf8.Valid(b) {
		return string(b)
	}
	return v
}
