// Package auth handles passwords, cookie sessions and role checks against the
// main store's users and sessions tables.
package auth

import (
	"database/sql"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"planta/internal/models"
)

// SessionCookie is the name of the session cookie.
const SessionCookie = "planta_session"

// Roles. Admin and supervisor may resolve pending administrative actions.
const (
	RoleAdmin      = "admin"
	RoleSupervisor = "supervisor"
	RoleBuyer      = "buyer"
	RoleProduction = "production"
	RoleWarehouse  = "warehouse"
)

var ErrInvalidCredentials = errors.New("invalid username or password")

// Migrate creates the users and sessions tables.
func Migrate(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			username TEXT UNIQUE NOT NULL,
			password_hash TEXT NOT NULL,
			display_name TEXT NOT NULL DEFAULT '',
			role TEXT NOT NULL DEFAULT 'buyer',
			active INTEGER NOT NULL DEFAULT 1,
			last_login TIMESTAMP,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS sessions (
			token TEXT PRIMARY KEY,
			user_id INTEGER NOT NULL,
			expires_at TIMESTAMP NOT NULL,
			FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
		)`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// HashPassword hashes a plaintext password.
func HashPassword(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(h), err
}

// Login verifies credentials and creates a session valid for lifetime.
func Login(db *sql.DB, username, password string, lifetime time.Duration) (*models.User, string, error) {
	var u models.User
	var hash string
	var active int
	err := db.QueryRow(
		"SELECT id, username, password_hash, display_name, role, active FROM users WHERE username=?",
		username).Scan(&u.ID, &u.Username, &hash, &u.DisplayName, &u.Role, &active)
	if err != nil {
		return nil, "", ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return nil, "", ErrInvalidCredentials
	}
	if active == 0 {
		return nil, "", errors.New("account deactivated")
	}
	u.Active = true

	// Clean expired sessions opportunistically.
	db.Exec("DELETE FROM sessions WHERE expires_at < CURRENT_TIMESTAMP")

	token := uuid.NewString()
	// UTC to match SQLite's CURRENT_TIMESTAMP in the expiry comparison.
	expires := time.Now().UTC().Add(lifetime)
	if _, err := db.Exec("INSERT INTO sessions (token, user_id, expires_at) VALUES (?,?,?)",
		token, u.ID, expires.Format("2006-01-02 15:04:05")); err != nil {
		return nil, "", err
	}
	db.Exec("UPDATE users SET last_login = CURRENT_TIMESTAMP WHERE id=?", u.ID)
	return &u, token, nil
}

// Logout deletes the session for token.
func Logout(db *sql.DB, token string) {
	db.Exec("DELETE FROM sessions WHERE token=?", token)
}

// UserForRequest resolves the session cookie to a user, or nil when the
// request carries no valid session.
func UserForRequest(db *sql.DB, r *http.Request) *models.User {
	cookie, err := r.Cookie(SessionCookie)
	if err != nil {
		return nil
	}
	var u models.User
	var active int
	err = db.QueryRow(`SELECT u.id, u.username, u.display_name, u.role, u.active
		FROM sessions s JOIN users u ON s.user_id = u.id
		WHERE s.token = ? AND s.expires_at > CURRENT_TIMESTAMP`, cookie.Value).
		Scan(&u.ID, &u.Username, &u.DisplayName, &u.Role, &active)
	if err != nil || active == 0 {
		return nil
	}
	u.Active = true
	return &u
}

// ExtendSession pushes the session expiry forward (sliding window).
func ExtendSession(db *sql.DB, token string, lifetime time.Duration) {
	db.Exec("UPDATE sessions SET expires_at = ? WHERE token = ?",
		time.Now().UTC().Add(lifetime).Format("2006-01-02 15:04:05"), token)
}

// CanResolveActions reports whether the role may grant or deny pending
// administrative actions.
func CanResolveActions(role string) bool {
	return role == RoleAdmin || role == RoleSupervisor
}

// FindByName looks a user up by username or display name. Workflow entities
// store actor display names, not ids; this is the read-only directory used to
// resolve them (no cross-database foreign keys).
func FindByName(db *sql.DB, name string) (*models.User, error) {
	var u models.User
	var active int
	var lastLogin sql.NullString
	err := db.QueryRow(`SELECT id, username, display_name, role, active, COALESCE(last_login,''), created_at
		FROM users WHERE username=? OR display_name=?`, name, name).
		Scan(&u.ID, &u.Username, &u.DisplayName, &u.Role, &active, &lastLogin, &u.CreatedAt)
	if err != nil {
		return nil, err
	}
	u.Active = active != 0
	if lastLogin.Valid {
		u.LastLogin = lastLogin.String
	}
	return &u, nil
}
