package main

import (
	"fmt"
	"net/http"
	"strconv"
)

// applyMovement records one inventory movement and adjusts the stock row in
// the same transaction. Issue movements may not drive stock negative.
func applyMovement(sku, typ string, qty float64, reference, notes string) error {
	if qty <= 0 {
		return fmt.Errorf("qty must be positive")
	}
	db, err := stores.Get(moduleInventory)
	if err != nil {
		return err
	}
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("INSERT OR IGNORE INTO inventory (sku) VALUES (?)", sku); err != nil {
		return err
	}
	delta := qty
	if typ == "issue" {
		delta = -qty
		var onHand float64
		if err := tx.QueryRow("SELECT qty_on_hand FROM inventory WHERE sku=?", sku).Scan(&onHand); err != nil {
			return err
		}
		if onHand < qty {
			return fmt.Errorf("insufficient stock for %s: have %.2f, need %.2f", sku, onHand, qty)
		}
	}
	if _, err := tx.Exec("UPDATE inventory SET qty_on_hand=qty_on_hand+?, updated_at=CURRENT_TIMESTAMP WHERE sku=?",
		delta, sku); err != nil {
		return err
	}
	if _, err := tx.Exec("INSERT INTO inventory_movements (sku, type, qty, reference, notes) VALUES (?,?,?,?,?)",
		sku, typ, qty, reference, notes); err != nil {
		return err
	}
	return tx.Commit()
}

func handleInventoryRoutes(w http.ResponseWriter, r *http.Request, parts []string) {
	switch {
	case len(parts) == 1 && r.Method == "GET":
		handleListInventory(w, r)
	case len(parts) == 1 && r.Method == "POST":
		handleUpsertStockItem(w, r)
	case len(parts) == 2 && parts[1] == "movements" && r.Method == "GET":
		handleListMovements(w, r)
	case len(parts) == 2 && parts[1] == "movements" && r.Method == "POST":
		handleCreateMovement(w, r)
	case len(parts) == 2 && parts[1] == "export" && r.Method == "GET":
		handleInventoryExport(w, r)
	default:
		jsonErr(w, "not found", 404)
	}
}

func handleListInventory(w http.ResponseWriter, r *http.Request) {
	db, err := stores.Get(moduleInventory)
	if err != nil {
		jsonErr(w, err.Error(), 500)
		return
	}
	query := "SELECT sku, description, location, qty_on_hand, qty_reserved, min_qty, updated_at FROM inventory"
	var args []interface{}
	if search := r.URL.Query().Get("search"); search != "" {
		query += " WHERE sku LIKE ? OR description LIKE ?"
		term := "%" + search + "%"
		args = append(args, term, term)
	}
	if r.URL.Query().Get("low_stock") == "true" {
		if len(args) > 0 {
			query += " AND qty_on_hand <= min_qty AND min_qty > 0"
		} else {
			query += " WHERE qty_on_hand <= min_qty AND min_qty > 0"
		}
	}
	query += " ORDER BY sku"
	rows, err := db.Query(query, args...)
	if err != nil {
		jsonErr(w, err.Error(), 500)
		return
	}
	defer rows.Close()
	items := []StockItem{}
	for rows.Next() {
		var s StockItem
		rows.Scan(&s.SKU, &s.Description, &s.Location, &s.QtyOnHand, &s.QtyReserved, &s.MinQty, &s.UpdatedAt)
		items = append(items, s)
	}
	jsonResp(w, items)
}

func handleUpsertStockItem(w http.ResponseWriter, r *http.Request) {
	var s StockItem
	if err := decodeBody(r, &s); err != nil || s.SKU == "" {
		jsonErr(w, "sku required", 400)
		return
	}
	db, err := stores.Get(moduleInventory)
	if err != nil {
		jsonErr(w, err.Error(), 500)
		return
	}
	_, err = db.Exec(`INSERT INTO inventory (sku, description, location, min_qty) VALUES (?,?,?,?)
		ON CONFLICT(sku) DO UPDATE SET description=excluded.description,
			location=excluded.location, min_qty=excluded.min_qty,
			updated_at=CURRENT_TIMESTAMP`,
		s.SKU, s.Description, s.Location, s.MinQty)
	if err != nil {
		jsonErr(w, err.Error(), 500)
		return
	}
	sink.Record(moduleInventory, s.SKU, actorName(r), "updated", "Artículo "+s.SKU+" actualizado")
	jsonResp(w, s)
}

func handleListMovements(w http.ResponseWriter, r *http.Request) {
	db, err := stores.Get(moduleInventory)
	if err != nil {
		jsonErr(w, err.Error(), 500)
		return
	}
	query := "SELECT id, sku, type, qty, reference, notes, created_at FROM inventory_movements"
	var args []interface{}
	if sku := r.URL.Query().Get("sku"); sku != "" {
		query += " WHERE sku=?"
		args = append(args, sku)
	}
	query += " ORDER BY id DESC LIMIT 200"
	rows, err := db.Query(query, args...)
	if err != nil {
		jsonErr(w, err.Error(), 500)
		return
	}
	defer rows.Close()
	items := []StockMovement{}
	for rows.Next() {
		var m StockMovement
		rows.Scan(&m.ID, &m.SKU, &m.Type, &m.Qty, &m.Reference, &m.Notes, &m.CreatedAt)
		items = append(items, m)
	}
	jsonResp(w, items)
}

func handleCreateMovement(w http.ResponseWriter, r *http.Request) {
	var m StockMovement
	if err := decodeBody(r, &m); err != nil || m.SKU == "" {
		jsonErr(w, "sku required", 400)
		return
	}
	if m.Type != "receive" && m.Type != "issue" && m.Type != "adjust" {
		jsonErr(w, "type must be receive, issue or adjust", 400)
		return
	}
	if err := applyMovement(m.SKU, m.Type, m.Qty, m.Reference, m.Notes); err != nil {
		jsonErr(w, err.Error(), 400)
		return
	}
	sink.Record(moduleInventory, m.SKU, actorName(r), m.Type,
		"Movimiento "+m.Type+" de "+strconv.FormatFloat(m.Qty, 'f', -1, 64)+" "+m.SKU)
	jsonResp(w, map[string]string{"status": "ok"})
}
