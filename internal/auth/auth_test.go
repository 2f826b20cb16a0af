package auth

import (
	"database/sql"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	_ "modernc.org/sqlite"
)

func setupAuthDB(t *testing.T) *sql.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "main.db")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		t.Fatalf("foreign_keys: %v", err)
	}
	if err := Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func addUser(t *testing.T, db *sql.DB, username, password, displayName, role string) {
	t.Helper()
	hash, err := HashPassword(password)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if _, err := db.Exec(
		"INSERT INTO users (username, password_hash, display_name, role) VALUES (?,?,?,?)",
		username, hash, displayName, role); err != nil {
		t.Fatalf("insert user: %v", err)
	}
}

func TestLoginAndSessionRoundTrip(t *testing.T) {
	db := setupAuthDB(t)
	addUser(t, db, "marta", "changeme", "Marta Supervisora", RoleSupervisor)

	u, token, err := Login(db, "marta", "changeme", time.Hour)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if u.Username != "marta" || u.Role != RoleSupervisor {
		t.Errorf("unexpected user: %+v", u)
	}
	if token == "" {
		t.Fatal("expected a session token")
	}

	r := httptest.NewRequest("GET", "/api/v1/requests", nil)
	r.AddCookie(&http.Cookie{Name: SessionCookie, Value: token})
	got := UserForRequest(db, r)
	if got == nil || got.Username != "marta" {
		t.Fatalf("session should resolve to marta, got %+v", got)
	}

	Logout(db, token)
	if got := UserForRequest(db, r); got != nil {
		t.Errorf("logout must invalidate the session, got %+v", got)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	db := setupAuthDB(t)
	addUser(t, db, "marta", "changeme", "Marta", RoleSupervisor)

	if _, _, err := Login(db, "marta", "wrong", time.Hour); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, _, err := Login(db, "nobody", "changeme", time.Hour); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestLoginRejectsDeactivatedUser(t *testing.T) {
	db := setupAuthDB(t)
	addUser(t, db, "carlos", "changeme", "Carlos", RoleBuyer)
	db.Exec("UPDATE users SET active=0 WHERE username='carlos'")

	if _, _, err := Login(db, "carlos", "changeme", time.Hour); err == nil {
		t.Error("deactivated account must not log in")
	}
}

func TestExpiredSessionRejected(t *testing.T) {
	db := setupAuthDB(t)
	addUser(t, db, "marta", "changeme", "Marta", RoleSupervisor)

	_, token, err := Login(db, "marta", "changeme", -time.Minute)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	r := httptest.NewRequest("GET", "/", nil)
	r.AddCookie(&http.Cookie{Name: SessionCookie, Value: token})
	if got := UserForRequest(db, r); got != nil {
		t.Errorf("expired session must not resolve, got %+v", got)
	}
}

func TestExtendSession(t *testing.T) {
	db := setupAuthDB(t)
	addUser(t, db, "marta", "changeme", "Marta", RoleSupervisor)

	_, token, _ := Login(db, "marta", "changeme", time.Minute)
	ExtendSession(db, token, 24*time.Hour)

	// The driver hands TIMESTAMP-declared columns back as time.Time.
	var expires time.Time
	if err := db.QueryRow("SELECT expires_at FROM sessions WHERE token=?", token).Scan(&expires); err != nil {
		t.Fatalf("read expiry: %v", err)
	}
	if time.Until(expires) < 23*time.Hour {
		t.Errorf("expiry not extended: %s", expires)
	}
}

func TestCanResolveActions(t *testing.T) {
	for role, want := range map[string]bool{
		RoleAdmin:      true,
		RoleSupervisor: true,
		RoleBuyer:      false,
		RoleProduction: false,
		RoleWarehouse:  false,
	} {
		if got := CanResolveActions(role); got != want {
			t.Errorf("%s: expected %v, got %v", role, want, got)
		}
	}
}

func TestFindByName(t *testing.T) {
	db := setupAuthDB(t)
	addUser(t, db, "elena", "changeme", "Elena Producción", RoleProduction)

	u, err := FindByName(db, "elena")
	if err != nil {
		t.Fatalf("by username: %v", err)
	}
	if u.DisplayName != "Elena Producción" {
		t.Errorf("unexpected user: %+v", u)
	}

	u, err = FindByName(db, "Elena Producción")
	if err != nil {
		t.Fatalf("by display name: %v", err)
	}
	if u.Username != "elena" {
		t.Errorf("unexpected user: %+v", u)
	}

	if _, err := FindByName(db, "nadie"); err == nil {
		t.Error("unknown name should error")
	}
}
