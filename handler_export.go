package main

import (
	"net/http"
	"strconv"

	"planta/internal/export"
	"planta/internal/workflow"
)

// handleWorkflowExport streams the module's current listing (same filters as
// the list endpoint, without pagination) as CSV or XLSX.
func handleWorkflowExport(w http.ResponseWriter, r *http.Request, eng *workflow.Engine) {
	q := r.URL.Query()
	format := q.Get("format")
	if format == "" {
		format = "csv"
	}
	items, _, err := eng.List(workflow.ListOptions{
		Archived: q.Get("archived") == "true",
		Status:   q.Get("status"),
		Search:   q.Get("search"),
		Limit:    10000,
	})
	if err != nil {
		jsonErr(w, err.Error(), 500)
		return
	}

	def := eng.Definition()
	headers := []string{"Consecutivo", "Estado", "Acción pendiente", "Modificado", "Solicitado por", "Aprobado por", "Creado"}
	headers = append(headers, def.Fields...)

	var data [][]string
	for _, ent := range items {
		modified := "no"
		if ent.HasBeenModified {
			modified = "sí"
		}
		approvedBy := ""
		if ent.ApprovedBy != nil {
			approvedBy = *ent.ApprovedBy
		}
		row := []string{ent.Consecutive, ent.Status, ent.PendingAction, modified, ent.RequestedBy, approvedBy, ent.CreatedAt}
		for _, f := range def.Fields {
			row = append(row, ent.Fields[f])
		}
		data = append(data, row)
	}

	sink.Record(def.Module, "", actorName(r), "export", "Listado de "+def.Module+" exportado ("+format+")")
	if format == "xlsx" {
		export.Excel(w, def.Module, def.Module+".xlsx", headers, data)
	} else {
		export.CSV(w, def.Module+".csv", headers, data)
	}
}

func handleInventoryExport(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "csv"
	}
	db, err := stores.Get(moduleInventory)
	if err != nil {
		jsonErr(w, err.Error(), 500)
		return
	}
	rows, err := db.Query(
		"SELECT sku, description, location, qty_on_hand, qty_reserved, min_qty, updated_at FROM inventory ORDER BY sku")
	if err != nil {
		jsonErr(w, err.Error(), 500)
		return
	}
	defer rows.Close()

	headers := []string{"SKU", "Descripción", "Ubicación", "Existencias", "Reservado", "Mínimo", "Actualizado"}
	var data [][]string
	for rows.Next() {
		var s StockItem
		rows.Scan(&s.SKU, &s.Description, &s.Location, &s.QtyOnHand, &s.QtyReserved, &s.MinQty, &s.UpdatedAt)
		data = append(data, []string{
			s.SKU, s.Description, s.Location,
			strconv.FormatFloat(s.QtyOnHand, 'f', -1, 64),
			strconv.FormatFloat(s.QtyReserved, 'f', -1, 64),
			strconv.FormatFloat(s.MinQty, 'f', -1, 64),
			s.UpdatedAt,
		})
	}

	sink.Record(moduleInventory, "", actorName(r), "export", "Inventario exportado ("+format+")")
	if format == "xlsx" {
		export.Excel(w, "Inventario", "inventario.xlsx", headers, data)
	} else {
		export.CSV(w, "inventario.csv", headers, data)
	}
}
