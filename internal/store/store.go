// Package store manages the embedded SQLite databases, one file per module.
// Connections are opened lazily on first use and kept for the process
// lifetime; callers receive the *sql.DB and never open files themselves.
package store

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	_ "modernc.org/sqlite"
)

// Registry maps module names to open database handles.
type Registry struct {
	mu      sync.Mutex
	dataDir string
	dbs     map[string]*sql.DB
}

// NewRegistry creates a registry rooted at dataDir. Files are named
// <module>.db under that directory. A dataDir of ":memory:" gives every
// module its own private in-memory database (used by tests).
func NewRegistry(dataDir string) *Registry {
	return &Registry{dataDir: dataDir, dbs: make(map[string]*sql.DB)}
}

// Get returns the open handle for a module, opening it on first use.
func (r *Registry) Get(module string) (*sql.DB, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if db, ok := r.dbs[module]; ok {
		return db, nil
	}
	db, err := open(r.path(module))
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", module, err)
	}
	r.dbs[module] = db
	return db, nil
}

// Reopen closes and reopens a module's handle. Used when corruption is
// detected on an existing file.
func (r *Registry) Reopen(module string) (*sql.DB, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if db, ok := r.dbs[module]; ok {
		db.Close()
		delete(r.dbs, module)
	}
	db, err := open(r.path(module))
	if err != nil {
		return nil, fmt.Errorf("reopen %s store: %w", module, err)
	}
	r.dbs[module] = db
	return db, nil
}

// Close closes every open handle. Safe to call more than once.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for name, db := range r.dbs {
		db.Close()
		delete(r.dbs, name)
	}
}

func (r *Registry) path(module string) string {
	if r.dataDir == ":memory:" {
		return "file:" + module + "?mode=memory&cache=shared"
	}
	return filepath.Join(r.dataDir, module+".db")
}

// dsnPragmas is applied to every connection the pool opens, so each handle
// carries WAL, a busy timeout and foreign-key enforcement — not just the one
// a PRAGMA statement happens to land on.
const dsnPragmas = "_pragma=journal_mode(WAL)&_pragma=busy_timeout(30000)&_pragma=foreign_keys(1)"

func open(path string) (*sql.DB, error) {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	db, err := sql.Open("sqlite", path+sep+dsnPragmas)
	if err != nil {
		return nil, err
	}

	// SQLite handles 1 writer + multiple readers with WAL mode.
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(0)
	return db, nil
}
