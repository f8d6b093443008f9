package fleet

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"
)

// RenderInvoicePDF renders a fleet invoice as a single-page A4 PDF.
// Amounts are cents and print with two decimals.
func RenderInvoicePDF(inv *Invoice, lines []LineItem) ([]byte, error) {
	doc := fpdf.New("P", "mm", "A4", "")
	doc.SetTitle(fmt.Sprintf("WashDeck Invoice %d", inv.ID), false)
	doc.AddPage()

	doc.SetFont("Helvetica", "B", 18)
	doc.Cell(0, 10, "WashDeck")
	doc.Ln(12)

	doc.SetFont("Helvetica", "", 11)
	doc.Cell(0, 6, fmt.Sprintf("Invoice #%d", inv.ID))
	doc.Ln(6)
	doc.Cell(0, 6, fmt.Sprintf("Contract: %s", inv.ContractID))
	doc.Ln(6)
	if inv.DueDate != nil {
		doc.Cell(0, 6, fmt.Sprintf("Due: %s", inv.DueDate.Format("January 2, 2006")))
		doc.Ln(6)
	}
	doc.Cell(0, 6, fmt.Sprintf("Status: %s", strings.ToUpper(string(inv.Status))))
	doc.Ln(12)

	// Line item table
	doc.SetFont("Helvetica", "B", 10)
	doc.SetFillColor(230, 230, 230)
	doc.CellFormat(100, 8, "Description", "1", 0, "L", true, 0, "")
	doc.CellFormat(25, 8, "Qty", "1", 0, "R", true, 0, "")
	doc.CellFormat(30, 8, "Unit", "1", 0, "R", true, 0, "")
	doc.CellFormat(30, 8, "Total", "1", 1, "R", true, 0, "")

	doc.SetFont("Helvetica", "", 10)
	var total int64
	for _, li := range lines {
		doc.CellFormat(100, 8, li.Description, "1", 0, "L", false, 0, "")
		doc.CellFormat(25, 8, fmt.Sprintf("%d", li.Quantity), "1", 0, "R", false, 0, "")
		doc.CellFormat(30, 8, formatCents(li.UnitCents, inv.Currency), "1", 0, "R", false, 0, "")
		doc.CellFormat(30, 8, formatCents(li.Total(), inv.Currency), "1", 1, "R", false, 0, "")
		total += li.Total()
	}

	doc.SetFont("Helvetica", "B", 10)
	doc.CellFormat(155, 8, "Amount due", "1", 0, "R", false, 0, "")
	doc.CellFormat(30, 8, formatCents(total, inv.Currency), "1", 1, "R", false, 0, "")

	doc.Ln(10)
	doc.SetFont("Helvetica", "I", 8)
	doc.Cell(0, 5, fmt.Sprintf("Generated %s", time.Now().UTC().Format(time.RFC3339)))

	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to write pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func formatCents(cents int64, currency string) string {
	unit := strings.ToUpper(currency)
	if unit == "" {
		unit = "USD"
	}
	return fmt.Sprintf("%s %d.%02d", unit, cents/100, cents%100)
}
