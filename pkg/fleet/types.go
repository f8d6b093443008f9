// Package fleet manages invoices for fleet contracts: commercial
// customers who are billed per contract instead of through self-service
// checkout. Invoices render to PDF and archive to object storage.
package fleet

import (
	"errors"
	"time"
)

// InvoiceStatus is the local lifecycle of a fleet invoice
type InvoiceStatus string

const (
	InvoiceStatusDraft   InvoiceStatus = "draft"
	InvoiceStatusSent    InvoiceStatus = "sent"
	InvoiceStatusPaid    InvoiceStatus = "paid"
	InvoiceStatusOverdue InvoiceStatus = "overdue"
)

// Invoice is one billing period for a fleet contract
type Invoice struct {
	ID              int64         `json:"id"`
	ContractID      string        `json:"contract_id"`
	StripeInvoiceID string        `json:"stripe_invoice_id,omitempty"`
	Status          InvoiceStatus `json:"status"`
	AmountCents     int64         `json:"amount_cents"`
	Currency        string        `json:"currency"`
	DueDate         *time.Time    `json:"due_date,omitempty"`
	PaidAt          *time.Time    `json:"paid_at,omitempty"`
	PDFKey          string        `json:"pdf_key,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

// LineItem is one charge on a rendered invoice. Line items are not
// stored; callers supply them when rendering the PDF.
type LineItem struct {
	Description string
	Quantity    int64
	UnitCents   int64
}

// Total returns the line's extended amount
func (li LineItem) Total() int64 {
	return li.Quantity * li.UnitCents
}

var (
	// ErrInvoiceNotFound is returned when no invoice row matches
	ErrInvoiceNotFound = errors.New("invoice not found")
	// ErrInvoiceNotDraft is returned when sending an invoice that has
	// already left draft status
	ErrInvoiceNotDraft = errors.New("invoice is not in draft status")
)
