package main

import (
	"net/http"
	"strconv"
)

func handleListNotifications(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r)
	if u == nil {
		jsonErr(w, "Unauthorized", 401)
		return
	}
	query := "SELECT id, username, title, message, module, record_id, read, created_at FROM notifications WHERE username=?"
	args := []interface{}{u.Username}
	if r.URL.Query().Get("unread") == "true" {
		query += " AND read=0"
	}
	query += " ORDER BY id DESC LIMIT 100"
	rows, err := mainDB.Query(query, args...)
	if err != nil {
		jsonErr(w, err.Error(), 500)
		return
	}
	defer rows.Close()
	items := []Notification{}
	for rows.Next() {
		var n Notification
		var read int
		rows.Scan(&n.ID, &n.Username, &n.Title, &n.Message, &n.Module, &n.RecordID, &read, &n.CreatedAt)
		n.Read = read != 0
		items = append(items, n)
	}
	jsonResp(w, items)
}

func handleMarkNotificationRead(w http.ResponseWriter, r *http.Request, idStr string) {
	u := currentUser(r)
	if u == nil {
		jsonErr(w, "Unauthorized", 401)
		return
	}
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		jsonErr(w, "invalid id", 400)
		return
	}
	res, err := mainDB.Exec("UPDATE notifications SET read=1 WHERE id=? AND username=?", id, u.Username)
	if err != nil {
		jsonErr(w, err.Error(), 500)
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		jsonErr(w, "not found", 404)
		return
	}
	jsonResp(w, map[string]string{"status": "ok"})
}
