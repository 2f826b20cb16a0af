package main

import (
	"database/sql"
	"fmt"
	"os"

	"planta/internal/audit"
	"planta/internal/auth"
	"planta/internal/store"
	"planta/internal/workflow"
)

var (
	stores  *store.Registry
	mainDB  *sql.DB
	sink    *audit.Sink
	engines map[string]*workflow.Engine
)

// initApp opens the per-module databases, runs migrations and builds one
// workflow engine per module. Safe to call again with a fresh data dir (tests
// do this); previous connections are closed first.
func initApp(dataDir string) error {
	if stores != nil {
		stores.Close()
	}
	if dataDir != ":memory:" {
		if err := os.MkdirAll(dataDir, 0755); err != nil {
			return fmt.Errorf("create data dir: %w", err)
		}
	}
	stores = store.NewRegistry(dataDir)

	var err error
	mainDB, err = stores.Get("main")
	if err != nil {
		return err
	}
	if err := auth.Migrate(mainDB); err != nil {
		return fmt.Errorf("main migration: %w", err)
	}

	sink = &audit.Sink{DB: mainDB, Hub: wsHub}
	if err := sink.Migrate(); err != nil {
		return fmt.Errorf("main migration: %w", err)
	}

	engines = make(map[string]*workflow.Engine)
	for _, def := range []workflow.Definition{
		requestsDefinition(),
		productionDefinition(),
		dispatchDefinition(),
		quotesDefinition(),
	} {
		db, err := stores.Get(def.Module)
		if err != nil {
			return err
		}
		eng := workflow.NewEngine(db, def, sink)
		if err := eng.Migrate(); err != nil {
			return err
		}
		engines[def.Module] = eng
	}

	if err := migrateDispatchLines(); err != nil {
		return err
	}
	return migrateInventory()
}

func migrateDispatchLines() error {
	db, err := stores.Get(moduleDispatch)
	if err != nil {
		return err
	}
	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS dispatch_lines (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		dispatch_id INTEGER NOT NULL,
		sku TEXT NOT NULL DEFAULT '',
		qty REAL NOT NULL DEFAULT 1 CHECK(qty > 0),
		lot TEXT NOT NULL DEFAULT '',
		notes TEXT NOT NULL DEFAULT '',
		FOREIGN KEY (dispatch_id) REFERENCES dispatches(id) ON DELETE CASCADE
	)`)
	if err != nil {
		return fmt.Errorf("dispatch_lines migration: %w", err)
	}
	return nil
}

func migrateInventory() error {
	db, err := stores.Get(moduleInventory)
	if err != nil {
		return err
	}
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS inventory (
			sku TEXT PRIMARY KEY,
			description TEXT NOT NULL DEFAULT '',
			location TEXT NOT NULL DEFAULT '',
			qty_on_hand REAL NOT NULL DEFAULT 0 CHECK(qty_on_hand >= 0),
			qty_reserved REAL NOT NULL DEFAULT 0 CHECK(qty_reserved >= 0),
			min_qty REAL NOT NULL DEFAULT 0 CHECK(min_qty >= 0),
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS inventory_movements (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			sku TEXT NOT NULL,
			type TEXT NOT NULL CHECK(type IN ('receive','issue','adjust')),
			qty REAL NOT NULL,
			reference TEXT NOT NULL DEFAULT '',
			notes TEXT NOT NULL DEFAULT '',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("inventory migration: %w", err)
		}
	}
	return nil
}

// seedDB inserts the default admin account and a demo user set. Idempotent.
func seedDB() {
	var count int
	mainDB.QueryRow("SELECT COUNT(*) FROM users").Scan(&count)
	if count > 0 {
		return
	}
	users := []struct {
		username, password, display, role string
	}{
		{"admin", "changeme", "Administrador", auth.RoleAdmin},
		{"marta", "changeme", "Marta Supervisora", auth.RoleSupervisor},
		{"carlos", "changeme", "Carlos Compras", auth.RoleBuyer},
		{"elena", "changeme", "Elena Producción", auth.RoleProduction},
		{"pedro", "changeme", "Pedro Bodega", auth.RoleWarehouse},
	}
	for _, u := range users {
		hash, err := auth.HashPassword(u.password)
		if err != nil {
			continue
		}
		mainDB.Exec("INSERT INTO users (username, password_hash, display_name, role) VALUES (?,?,?,?)",
			u.username, hash, u.display, u.role)
	}
}
