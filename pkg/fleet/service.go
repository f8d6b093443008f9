package fleet

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// Service defines fleet invoice operations
type Service interface {
	ListInvoices(ctx context.Context, contractID string) ([]*Invoice, error)
	GetInvoice(ctx context.Context, id int64) (*Invoice, error)
	CreateInvoice(ctx context.Context, inv *Invoice) (*Invoice, error)
	// SendInvoice moves a draft invoice to sent, the point at which it
	// starts aging toward overdue.
	SendInvoice(ctx context.Context, id int64) (*Invoice, error)
	// MarkOverdueBefore flips sent invoices whose due date passed the
	// cutoff to overdue, returning how many rows changed.
	MarkOverdueBefore(ctx context.Context, cutoff time.Time) (int64, error)
	// RenderAndArchive renders the invoice PDF and stores it, recording
	// the archive key on the row.
	RenderAndArchive(ctx context.Context, id int64, lines []LineItem) (string, error)
}

// Archive stores rendered invoice documents
type Archive interface {
	Put(ctx context.Context, key string, pdf []byte) error
}

// PostgresService implements Service against the fleet_invoices table
type PostgresService struct {
	db      *sql.DB
	archive Archive
	log     *logrus.Logger
}

// NewPostgresService creates a new PostgresService. archive may be nil
// when object storage is not configured; RenderAndArchive then fails.
func NewPostgresService(db *sql.DB, archive Archive, log *logrus.Logger) *PostgresService {
	if log == nil {
		log = logrus.New()
	}
	return &PostgresService{db: db, archive: archive, log: log}
}

const invoiceColumns = `id, contract_id, stripe_invoice_id, status, amount_cents,
	       currency, due_date, paid_at, pdf_key, created_at, updated_at`

func scanInvoice(row interface{ Scan(...interface{}) error }) (*Invoice, error) {
	var inv Invoice
	var due, paid sql.NullTime
	err := row.Scan(&inv.ID, &inv.ContractID, &inv.StripeInvoiceID, &inv.Status,
		&inv.AmountCents, &inv.Currency, &due, &paid, &inv.PDFKey,
		&inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if due.Valid {
		inv.DueDate = &due.Time
	}
	if paid.Valid {
		inv.PaidAt = &paid.Time
	}
	return &inv, nil
}

// ListInvoices returns a contract's invoices, newest first
func (s *PostgresService) ListInvoices(ctx context.Context, contractID string) ([]*Invoice, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+invoiceColumns+`
		FROM fleet_invoices
		WHERE contract_id = $1
		ORDER BY created_at DESC
	`, contractID)
	if err != nil {
		return nil, fmt.Errorf("failed to list invoices: %w", err)
	}
	defer rows.Close()

	var invoices []*Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan invoice: %w", err)
		}
		invoices = append(invoices, inv)
	}
	return invoices, rows.Err()
}

// GetInvoice fetches a single invoice by id
func (s *PostgresService) GetInvoice(ctx context.Context, id int64) (*Invoice, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+invoiceColumns+`
		FROM fleet_invoices
		WHERE id = $1
	`, id)
	inv, err := scanInvoice(row)
	if err == sql.ErrNoRows {
		return nil, ErrInvoiceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get invoice: %w", err)
	}
	return inv, nil
}

// CreateInvoice inserts a new invoice in draft status
func (s *PostgresService) CreateInvoice(ctx context.Context, inv *Invoice) (*Invoice, error) {
	if inv.ContractID == "" {
		return nil, fmt.Errorf("contract id is required")
	}
	currency := inv.Currency
	if currency == "" {
		currency = "usd"
	}
	status := inv.Status
	if status == "" {
		status = InvoiceStatusDraft
	}

	row := s.db.QueryRowContext(ctx, `
		INSERT INTO fleet_invoices
			(contract_id, stripe_invoice_id, status, amount_cents, currency, due_date)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+invoiceColumns+`
	`, inv.ContractID, inv.StripeInvoiceID, string(status), inv.AmountCents, currency, inv.DueDate)

	created, err := scanInvoice(row)
	if err != nil {
		return nil, fmt.Errorf("failed to create invoice: %w", err)
	}
	return created, nil
}

// SendInvoice transitions a draft invoice to sent
func (s *PostgresService) SendInvoice(ctx context.Context, id int64) (*Invoice, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE fleet_invoices
		SET status = 'sent', updated_at = NOW()
		WHERE id = $1 AND status = 'draft'
		RETURNING `+invoiceColumns+`
	`, id)
	inv, err := scanInvoice(row)
	if err == sql.ErrNoRows {
		// Distinguish a missing row from one past draft.
		if _, getErr := s.GetInvoice(ctx, id); getErr != nil {
			return nil, getErr
		}
		return nil, ErrInvoiceNotDraft
	}
	if err != nil {
		return nil, fmt.Errorf("failed to send invoice: %w", err)
	}
	s.log.WithField("invoice_id", id).Info("invoice sent")
	return inv, nil
}

// MarkOverdueBefore flips sent invoices past their due date to overdue
func (s *PostgresService) MarkOverdueBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE fleet_invoices
		SET status = 'overdue', updated_at = NOW()
		WHERE status = 'sent' AND due_date IS NOT NULL AND due_date < $1
	`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to mark invoices overdue: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count overdue invoices: %w", err)
	}
	if n > 0 {
		s.log.WithField("count", n).Info("marked invoices overdue")
	}
	return n, nil
}

// RenderAndArchive renders the invoice PDF, uploads it, and records the
// archive key on the row
func (s *PostgresService) RenderAndArchive(ctx context.Context, id int64, lines []LineItem) (string, error) {
	if s.archive == nil {
		return "", fmt.Errorf("invoice archive is not configured")
	}

	inv, err := s.GetInvoice(ctx, id)
	if err != nil {
		return "", err
	}

	pdf, err := RenderInvoicePDF(inv, lines)
	if err != nil {
		return "", fmt.Errorf("failed to render invoice: %w", err)
	}

	key := fmt.Sprintf("invoices/%s/%d.pdf", inv.ContractID, inv.ID)
	if err := s.archive.Put(ctx, key, pdf); err != nil {
		return "", fmt.Errorf("failed to archive invoice: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE fleet_invoices SET pdf_key = $1, updated_at = NOW() WHERE id = $2
	`, key, id)
	if err != nil {
		return "", fmt.Errorf("failed to record archive key: %w", err)
	}

	s.log.WithFields(logrus.Fields{"invoice_id": id, "key": key}).Info("invoice archived")
	return key, nil
}
