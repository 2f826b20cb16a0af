// Package ticket renders the printable dispatch ticket handed to the driver.
package ticket

import (
	"fmt"
	"io"
	"time"

	"github.com/jung-kurt/gofpdf/v2"

	"planta/internal/models"
)

// Data holds everything the ticket shows.
type Data struct {
	Company  string
	Dispatch *models.Entity
	Lines    []models.DispatchLine
}

// Render writes the dispatch ticket PDF to w.
func Render(w io.Writer, data Data) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(10, 10, 10)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(190, 10, data.Company+" - Ticket de despacho", "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(190, 6, "Generado: "+time.Now().Format("02-Jan-2006 03:04 PM"), "", 1, "C", false, 0, "")
	pdf.Ln(5)

	d := data.Dispatch
	pdf.SetFillColor(240, 240, 240)
	pdf.SetFont("Arial", "B", 12)
	pdf.CellFormat(190, 8, "Despacho "+d.Consecutive, "1", 1, "L", true, 0, "")

	pdf.SetFont("Arial", "", 11)
	pdf.CellFormat(95, 7, "Estado: "+d.Status, "LB", 0, "L", false, 0, "")
	pdf.CellFormat(95, 7, "Solicitado por: "+d.RequestedBy, "RB", 1, "L", false, 0, "")
	pdf.CellFormat(95, 7, "Destino: "+d.Fields["destination"], "LB", 0, "L", false, 0, "")
	pdf.CellFormat(95, 7, "Transportista: "+d.Fields["carrier"], "RB", 1, "L", false, 0, "")
	pdf.CellFormat(95, 7, "Vehículo: "+d.Fields["vehicle"], "LB", 0, "L", false, 0, "")
	pdf.CellFormat(95, 7, "Conductor: "+d.Fields["driver"], "RB", 1, "L", false, 0, "")
	pdf.Ln(5)

	pdf.SetFont("Arial", "B", 12)
	pdf.CellFormat(190, 8, "Contenido", "1", 1, "L", true, 0, "")

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(60, 7, "SKU", "1", 0, "L", true, 0, "")
	pdf.CellFormat(30, 7, "Cantidad", "1", 0, "R", true, 0, "")
	pdf.CellFormat(40, 7, "Lote", "1", 0, "L", true, 0, "")
	pdf.CellFormat(60, 7, "Notas", "1", 1, "L", true, 0, "")

	pdf.SetFont("Arial", "", 10)
	var total float64
	for _, l := range data.Lines {
		pdf.CellFormat(60, 7, l.SKU, "1", 0, "L", false, 0, "")
		pdf.CellFormat(30, 7, fmt.Sprintf("%.2f", l.Qty), "1", 0, "R", false, 0, "")
		pdf.CellFormat(40, 7, l.Lot, "1", 0, "L", false, 0, "")
		pdf.CellFormat(60, 7, l.Notes, "1", 1, "L", false, 0, "")
		total += l.Qty
	}
	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(60, 7, "Total", "1", 0, "L", true, 0, "")
	pdf.CellFormat(30, 7, fmt.Sprintf("%.2f", total), "1", 0, "R", true, 0, "")
	pdf.CellFormat(100, 7, "", "1", 1, "L", true, 0, "")

	pdf.Ln(15)
	pdf.SetFont("Arial", "", 11)
	pdf.CellFormat(95, 7, "Entrega: ____________________", "", 0, "L", false, 0, "")
	pdf.CellFormat(95, 7, "Recibe: ____________________", "", 1, "L", false, 0, "")

	return pdf.Output(w)
}
