// Package audit writes the global audit trail and user notifications to the
// main store and mirrors every event to the websocket hub. All writes here are
// fire-and-forget: a failed audit or notification insert is logged locally and
// never fails the workflow transaction that triggered it.
package audit

import (
	"database/sql"
	"log"

	"planta/internal/models"
	"planta/internal/websocket"
)

// Sink implements workflow.Sink against the main store.
type Sink struct {
	DB  *sql.DB
	Hub *websocket.Hub
}

// Migrate creates the audit_log and notifications tables.
func (s *Sink) Migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS audit_log (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			username TEXT NOT NULL DEFAULT '',
			action TEXT NOT NULL,
			module TEXT NOT NULL,
			record_id TEXT NOT NULL DEFAULT '',
			summary TEXT NOT NULL DEFAULT '',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS notifications (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			username TEXT NOT NULL,
			title TEXT NOT NULL,
			message TEXT NOT NULL DEFAULT '',
			module TEXT NOT NULL DEFAULT '',
			record_id TEXT NOT NULL DEFAULT '',
			read INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.DB.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Record writes one audit row and broadcasts the change.
func (s *Sink) Record(module, recordID, actor, action, summary string) {
	_, err := s.DB.Exec(
		"INSERT INTO audit_log (username, action, module, record_id, summary) VALUES (?,?,?,?,?)",
		actor, action, module, recordID, summary)
	if err != nil {
		log.Printf("audit log error: %v", err)
	}
	if s.Hub != nil {
		s.Hub.Broadcast(websocket.Event{Module: module, ID: recordID, Action: action})
	}
}

// Notify creates a notification addressed to one user. Workflow entities store
// actor display names, so the recipient is resolved against the users table
// before insertion; an unresolvable name is kept as given.
func (s *Sink) Notify(username, title, message, module, recordID string) {
	var resolved string
	if err := s.DB.QueryRow("SELECT username FROM users WHERE username=? OR display_name=?",
		username, username).Scan(&resolved); err == nil {
		username = resolved
	}
	_, err := s.DB.Exec(
		"INSERT INTO notifications (username, title, message, module, record_id) VALUES (?,?,?,?,?)",
		username, title, message, module, recordID)
	if err != nil {
		log.Printf("notification error: %v", err)
	}
	if s.Hub != nil {
		s.Hub.Broadcast(websocket.Event{Module: "notifications", ID: username, Action: "created"})
	}
}

// NotifyRole creates the same notification for every active user with a role.
// The recipients are collected before any Notify call: the rows iterator holds
// a pool connection, and Notify needs one of its own.
func (s *Sink) NotifyRole(role, title, message, module, recordID string) {
	rows, err := s.DB.Query("SELECT username FROM users WHERE role=? AND active=1", role)
	if err != nil {
		log.Printf("notification error: %v", err)
		return
	}
	var usernames []string
	for rows.Next() {
		var username string
		if err := rows.Scan(&username); err != nil {
			continue
		}
		usernames = append(usernames, username)
	}
	rows.Close()
	for _, username := range usernames {
		s.Notify(username, title, message, module, recordID)
	}
}

// List returns the newest audit entries, optionally filtered by module,
// username or a summary search term.
func (s *Sink) List(module, username, search string, page, limit int) ([]models.AuditEntry, int, error) {
	where := "WHERE 1=1"
	var args []interface{}
	if module != "" {
		where += " AND module=?"
		args = append(args, module)
	}
	if username != "" {
		where += " AND username=?"
		args = append(args, username)
	}
	if search != "" {
		where += " AND (summary LIKE ? OR record_id LIKE ?)"
		term := "%" + search + "%"
		args = append(args, term, term)
	}

	var total int
	if err := s.DB.QueryRow("SELECT COUNT(*) FROM audit_log "+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	if limit <= 0 {
		limit = 50
	}
	if page <= 0 {
		page = 1
	}
	args = append(args, limit, (page-1)*limit)
	rows, err := s.DB.Query(
		"SELECT id, username, action, module, record_id, summary, created_at FROM audit_log "+
			where+" ORDER BY id DESC LIMIT ? OFFSET ?", args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	items := []models.AuditEntry{}
	for rows.Next() {
		var a models.AuditEntry
		if err := rows.Scan(&a.ID, &a.Username, &a.Action, &a.Module, &a.RecordID, &a.Summary, &a.CreatedAt); err != nil {
			return nil, 0, err
		}
		items = append(items, a)
	}
	return items, total, rows.Err()
}
