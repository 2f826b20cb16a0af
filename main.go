package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/joho/godotenv"

	"planta/internal/config"
)

var cfg config.Config

func main() {
	configPath := flag.String("config", "planta.yaml", "Path to YAML config file")
	port := flag.Int("port", 0, "HTTP port (overrides config)")
	dataDir := flag.String("data", "", "Data directory for module databases (overrides config)")
	flag.Parse()

	// .env is optional; missing file is fine.
	godotenv.Load()

	var err error
	cfg, err = config.Load(*configPath)
	if err != nil {
		log.Fatal("config load failed:", err)
	}
	if *port != 0 {
		cfg.Port = *port
	}
	if *dataDir != "" {
		cfg.DataDir = *dataDir
	}

	if err := initApp(cfg.DataDir); err != nil {
		log.Fatal("DB init failed:", err)
	}
	seedDB()

	mux := newMux()
	addr := fmt.Sprintf(":%d", cfg.Port)
	log.Printf("planta server starting on http://localhost%s", addr)
	log.Fatal(http.ListenAndServe(addr, logging(requireAuth(mux))))
}

func newMux() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/auth/login", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == "POST" {
			handleLogin(w, r)
		} else {
			http.Error(w, "Method not allowed", 405)
		}
	})
	mux.HandleFunc("/auth/logout", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == "POST" {
			handleLogout(w, r)
		} else {
			http.Error(w, "Method not allowed", 405)
		}
	})
	mux.HandleFunc("/auth/me", handleMe)

	mux.HandleFunc("/ws", handleWebSocket)

	// API routes - simple path-splitting router.
	mux.HandleFunc("/api/v1/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		path := strings.TrimPrefix(r.URL.Path, "/api/v1/")
		path = strings.TrimSuffix(path, "/")
		parts := strings.Split(path, "/")

		switch {
		// Workflow modules share one route shape.
		case isWorkflowModule(parts[0]):
			handleModule(w, r, parts)

		// Inventory
		case parts[0] == "inventory":
			handleInventoryRoutes(w, r, parts)

		// Settings
		case parts[0] == "settings" && len(parts) == 2 && r.Method == "GET":
			handleGetSettings(w, r, parts[1])
		case parts[0] == "settings" && len(parts) == 2 && r.Method == "PUT":
			handlePutSettings(w, r, parts[1])

		// Notifications
		case parts[0] == "notifications" && len(parts) == 1 && r.Method == "GET":
			handleListNotifications(w, r)
		case parts[0] == "notifications" && len(parts) == 3 && parts[2] == "read" && r.Method == "POST":
			handleMarkNotificationRead(w, r, parts[1])

		// Audit log
		case parts[0] == "audit" && len(parts) == 1 && r.Method == "GET":
			handleAuditLog(w, r)

		// Users
		case parts[0] == "users" && len(parts) == 2 && parts[1] == "lookup" && r.Method == "GET":
			handleUserLookup(w, r)
		case parts[0] == "users" && len(parts) == 1 && r.Method == "GET":
			handleListUsers(w, r)
		case parts[0] == "users" && len(parts) == 1 && r.Method == "POST":
			handleCreateUser(w, r)
		case parts[0] == "users" && len(parts) == 2 && r.Method == "PUT":
			handleUpdateUser(w, r, parts[1])

		default:
			json.NewEncoder(w).Encode(map[string]string{"error": "not found"})
		}
	})

	return mux
}

func isWorkflowModule(name string) bool {
	_, ok := engines[name]
	return ok
}
