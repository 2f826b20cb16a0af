package main

import (
	"log"
	"net/http"
	"strconv"

	"planta/internal/ticket"
	"planta/internal/workflow"
)

// handleDispatchExtra covers the dispatch-only routes:
//
//	GET    /dispatch/{id}/lines
//	POST   /dispatch/{id}/lines
//	DELETE /dispatch/{id}/lines/{lineID}
//	GET    /dispatch/{id}/ticket.pdf
func handleDispatchExtra(w http.ResponseWriter, r *http.Request, eng *workflow.Engine, id int64, parts []string) {
	switch {
	case len(parts) == 3 && parts[2] == "lines" && r.Method == "GET":
		handleListDispatchLines(w, r, eng, id)
	case len(parts) == 3 && parts[2] == "lines" && r.Method == "POST":
		handleAddDispatchLine(w, r, eng, id)
	case len(parts) == 4 && parts[2] == "lines" && r.Method == "DELETE":
		handleDeleteDispatchLine(w, r, eng, id, parts[3])
	case len(parts) == 3 && parts[2] == "ticket.pdf" && r.Method == "GET":
		handleDispatchTicket(w, r, eng, id)
	default:
		jsonErr(w, "not found", 404)
	}
}

func dispatchLines(id int64) ([]DispatchLine, error) {
	db, err := stores.Get(moduleDispatch)
	if err != nil {
		return nil, err
	}
	rows, err := db.Query(
		"SELECT id, dispatch_id, sku, qty, lot, notes FROM dispatch_lines WHERE dispatch_id=? ORDER BY id", id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []DispatchLine{}
	for rows.Next() {
		var l DispatchLine
		if err := rows.Scan(&l.ID, &l.DispatchID, &l.SKU, &l.Qty, &l.Lot, &l.Notes); err != nil {
			return nil, err
		}
		items = append(items, l)
	}
	return items, rows.Err()
}

func handleListDispatchLines(w http.ResponseWriter, r *http.Request, eng *workflow.Engine, id int64) {
	if _, err := eng.Get(id); err != nil {
		workflowErr(w, err)
		return
	}
	items, err := dispatchLines(id)
	if err != nil {
		jsonErr(w, err.Error(), 500)
		return
	}
	jsonResp(w, items)
}

func handleAddDispatchLine(w http.ResponseWriter, r *http.Request, eng *workflow.Engine, id int64) {
	ent, err := eng.Get(id)
	if err != nil {
		workflowErr(w, err)
		return
	}
	var l DispatchLine
	if err := decodeBody(r, &l); err != nil || l.SKU == "" || l.Qty <= 0 {
		jsonErr(w, "sku and positive qty required", 400)
		return
	}
	db, err := stores.Get(moduleDispatch)
	if err != nil {
		jsonErr(w, err.Error(), 500)
		return
	}
	res, err := db.Exec("INSERT INTO dispatch_lines (dispatch_id, sku, qty, lot, notes) VALUES (?,?,?,?,?)",
		id, l.SKU, l.Qty, l.Lot, l.Notes)
	if err != nil {
		jsonErr(w, err.Error(), 500)
		return
	}
	l.ID, _ = res.LastInsertId()
	l.DispatchID = id
	sink.Record(moduleDispatch, ent.Consecutive, actorName(r), "line_added",
		"Línea "+l.SKU+" agregada a "+ent.Consecutive)
	jsonResp(w, l)
}

func handleDeleteDispatchLine(w http.ResponseWriter, r *http.Request, eng *workflow.Engine, id int64, lineID string) {
	ent, err := eng.Get(id)
	if err != nil {
		workflowErr(w, err)
		return
	}
	lid, err := strconv.ParseInt(lineID, 10, 64)
	if err != nil {
		jsonErr(w, "invalid id", 400)
		return
	}
	db, err := stores.Get(moduleDispatch)
	if err != nil {
		jsonErr(w, err.Error(), 500)
		return
	}
	res, err := db.Exec("DELETE FROM dispatch_lines WHERE id=? AND dispatch_id=?", lid, id)
	if err != nil {
		jsonErr(w, err.Error(), 500)
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		jsonErr(w, "not found", 404)
		return
	}
	sink.Record(moduleDispatch, ent.Consecutive, actorName(r), "line_removed",
		"Línea eliminada de "+ent.Consecutive)
	jsonResp(w, map[string]string{"status": "ok"})
}

func handleDispatchTicket(w http.ResponseWriter, r *http.Request, eng *workflow.Engine, id int64) {
	ent, err := eng.Get(id)
	if err != nil {
		workflowErr(w, err)
		return
	}
	lines, err := dispatchLines(id)
	if err != nil {
		jsonErr(w, err.Error(), 500)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", "inline; filename="+ent.Consecutive+".pdf")
	if err := ticket.Render(w, ticket.Data{Company: cfg.CompanyName, Dispatch: ent, Lines: lines}); err != nil {
		log.Printf("ticket render for %s failed: %v", ent.Consecutive, err)
	}
	sink.Record(moduleDispatch, ent.Consecutive, actorName(r), "export", "Ticket impreso para "+ent.Consecutive)
}

// dispatchDelivered issues the dispatched stock out of inventory when the
// assignment reaches delivered.
func dispatchDelivered(ent *Entity, actor string) {
	if ent.Status != "delivered" {
		return
	}
	lines, err := dispatchLines(ent.ID)
	if err != nil {
		log.Printf("inventory issue for %s failed: %v", ent.Consecutive, err)
		return
	}
	for _, l := range lines {
		if err := applyMovement(l.SKU, "issue", l.Qty, ent.Consecutive, "Salida por "+ent.Consecutive); err != nil {
			log.Printf("inventory issue for %s/%s failed: %v", ent.Consecutive, l.SKU, err)
			continue
		}
		sink.Record(moduleInventory, l.SKU, actor, "issue",
			"Salida de "+strconv.FormatFloat(l.Qty, 'f', -1, 64)+" "+l.SKU+" por "+ent.Consecutive)
	}
}
