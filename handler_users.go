package main

import (
	"database/sql"
	"net/http"
	"strconv"

	"planta/internal/auth"
)

func handleListUsers(w http.ResponseWriter, r *http.Request) {
	if !requireRole(w, r, auth.RoleAdmin, auth.RoleSupervisor) {
		return
	}
	rows, err := mainDB.Query(
		"SELECT id, username, display_name, role, active, COALESCE(last_login,''), created_at FROM users ORDER BY username")
	if err != nil {
		jsonErr(w, err.Error(), 500)
		return
	}
	defer rows.Close()
	items := []User{}
	for rows.Next() {
		var u User
		var active int
		rows.Scan(&u.ID, &u.Username, &u.DisplayName, &u.Role, &active, &u.LastLogin, &u.CreatedAt)
		u.Active = active != 0
		items = append(items, u)
	}
	jsonResp(w, items)
}

func handleCreateUser(w http.ResponseWriter, r *http.Request) {
	if !requireRole(w, r, auth.RoleAdmin) {
		return
	}
	var body struct {
		Username    string `json:"username"`
		Password    string `json:"password"`
		DisplayName string `json:"display_name"`
		Role        string `json:"role"`
	}
	if err := decodeBody(r, &body); err != nil || body.Username == "" || body.Password == "" {
		jsonErr(w, "username and password required", 400)
		return
	}
	if body.Role == "" {
		body.Role = auth.RoleBuyer
	}
	hash, err := auth.HashPassword(body.Password)
	if err != nil {
		jsonErr(w, err.Error(), 500)
		return
	}
	res, err := mainDB.Exec(
		"INSERT INTO users (username, password_hash, display_name, role) VALUES (?,?,?,?)",
		body.Username, hash, body.DisplayName, body.Role)
	if err != nil {
		jsonErr(w, "username already exists", 409)
		return
	}
	id, _ := res.LastInsertId()
	sink.Record("users", body.Username, actorName(r), "created", "Usuario "+body.Username+" creado")
	jsonResp(w, User{ID: int(id), Username: body.Username, DisplayName: body.DisplayName, Role: body.Role, Active: true})
}

func handleUpdateUser(w http.ResponseWriter, r *http.Request, idStr string) {
	if !requireRole(w, r, auth.RoleAdmin) {
		return
	}
	id, err := strconv.Atoi(idStr)
	if err != nil {
		jsonErr(w, "invalid id", 400)
		return
	}
	var body struct {
		DisplayName *string `json:"display_name"`
		Role        *string `json:"role"`
		Active      *bool   `json:"active"`
		Password    *string `json:"password"`
	}
	if err := decodeBody(r, &body); err != nil {
		jsonErr(w, "invalid body", 400)
		return
	}
	if body.DisplayName != nil {
		mainDB.Exec("UPDATE users SET display_name=? WHERE id=?", *body.DisplayName, id)
	}
	if body.Role != nil {
		mainDB.Exec("UPDATE users SET role=? WHERE id=?", *body.Role, id)
	}
	if body.Active != nil {
		active := 0
		if *body.Active {
			active = 1
		}
		mainDB.Exec("UPDATE users SET active=? WHERE id=?", active, id)
		if active == 0 {
			mainDB.Exec("DELETE FROM sessions WHERE user_id=?", id)
		}
	}
	if body.Password != nil && *body.Password != "" {
		hash, err := auth.HashPassword(*body.Password)
		if err != nil {
			jsonErr(w, err.Error(), 500)
			return
		}
		mainDB.Exec("UPDATE users SET password_hash=? WHERE id=?", hash, id)
	}

	var u User
	var active int
	err = mainDB.QueryRow(
		"SELECT id, username, display_name, role, active, COALESCE(last_login,''), created_at FROM users WHERE id=?", id).
		Scan(&u.ID, &u.Username, &u.DisplayName, &u.Role, &active, &u.LastLogin, &u.CreatedAt)
	if err == sql.ErrNoRows {
		jsonErr(w, "not found", 404)
		return
	}
	if err != nil {
		jsonErr(w, err.Error(), 500)
		return
	}
	u.Active = active != 0
	sink.Record("users", u.Username, actorName(r), "updated", "Usuario "+u.Username+" actualizado")
	jsonResp(w, u)
}

// handleUserLookup is the actor directory: workflow entities store display
// names, and admin pages resolve them here.
func handleUserLookup(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		jsonErr(w, "name required", 400)
		return
	}
	u, err := auth.FindByName(mainDB, name)
	if err != nil {
		jsonErr(w, "not found", 404)
		return
	}
	jsonResp(w, u)
}
