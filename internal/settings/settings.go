// Package settings reads and writes the per-module configuration table that
// parameterizes the workflow engine: consecutive prefix and counter, locked
// statuses, tracked fields, custom statuses, final status. Values are read at
// the start of each operation and never cached across calls.
package settings

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Well-known keys.
const (
	KeyPrefix         = "prefix"
	KeyNextNumber     = "next_number"
	KeyPadding        = "padding"
	KeyLockedStatuses = "locked_statuses"
	KeyTrackedFields  = "tracked_fields"
	KeyCustomStatuses = "custom_statuses"
	KeyFinalStatus    = "final_status"
)

// CustomStatus is an operator-defined extra status with a display label.
type CustomStatus struct {
	Key   string `json:"key"`
	Label string `json:"label"`
}

// Store reads and writes one module's settings table.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Migrate creates the settings table if missing.
func (s *Store) Migrate() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL DEFAULT ''
	)`)
	return err
}

// Get returns the value for key, or fallback when the key is absent.
func (s *Store) Get(key, fallback string) string {
	var v string
	err := s.db.QueryRow("SELECT value FROM settings WHERE key=?", key).Scan(&v)
	if err != nil {
		return fallback
	}
	return v
}

// GetInt returns the integer value for key, or fallback.
func (s *Store) GetInt(key string, fallback int) int {
	v := s.Get(key, "")
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return fallback
	}
	return n
}

// GetList returns a comma-separated list value, or fallback when absent.
func (s *Store) GetList(key string, fallback []string) []string {
	v := s.Get(key, "")
	if v == "" {
		return fallback
	}
	var out []string
	for _, p := range strings.Split(v, ",") {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	if out == nil {
		return fallback
	}
	return out
}

// CustomStatuses returns the operator-defined statuses, if any.
func (s *Store) CustomStatuses() []CustomStatus {
	v := s.Get(KeyCustomStatuses, "")
	if v == "" {
		return nil
	}
	var out []CustomStatus
	if err := json.Unmarshal([]byte(v), &out); err != nil {
		return nil
	}
	return out
}

// Put upserts one key.
func (s *Store) Put(key, value string) error {
	_, err := s.db.Exec(`INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value=excluded.value`, key, value)
	return err
}

// All returns every key/value pair.
func (s *Store) All() (map[string]string, error) {
	rows, err := s.db.Query("SELECT key, value FROM settings ORDER BY key")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, rows.Err()
}

// AllocateNumber advances the module counter and formats the consecutive it
// claimed. The increment is the transaction's first write so concurrent
// creations serialize on the counter row instead of racing on a shared read
// snapshot. The caller must run the entity insert in the same transaction so
// that a failed insert rolls the counter back.
func AllocateNumber(tx *sql.Tx, defaultPrefix string, defaultPadding int) (string, error) {
	// Atomic increment-and-read: never a separate read-then-write.
	if _, err := tx.Exec(`INSERT INTO settings (key, value) VALUES (?, '2')
		ON CONFLICT(key) DO UPDATE SET value = CAST(value AS INTEGER) + 1`,
		KeyNextNumber); err != nil {
		return "", fmt.Errorf("advance counter: %w", err)
	}
	var claimed int
	if err := tx.QueryRow("SELECT CAST(value AS INTEGER) - 1 FROM settings WHERE key=?",
		KeyNextNumber).Scan(&claimed); err != nil {
		return "", fmt.Errorf("read counter: %w", err)
	}

	prefix := defaultPrefix
	padding := defaultPadding
	var v string
	if err := tx.QueryRow("SELECT value FROM settings WHERE key=?", KeyPrefix).Scan(&v); err == nil && v != "" {
		prefix = v
	}
	if err := tx.QueryRow("SELECT value FROM settings WHERE key=?", KeyPadding).Scan(&v); err == nil {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && n > 0 {
			padding = n
		}
	}
	return fmt.Sprintf("%s%0*d", prefix, padding, claimed), nil
}
