package fleet

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func invoiceRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "contract_id", "stripe_invoice_id", "status", "amount_cents",
		"currency", "due_date", "paid_at", "pdf_key", "created_at", "updated_at",
	})
}

type memArchive struct {
	objects map[string][]byte
}

func (m *memArchive) Put(ctx context.Context, key string, pdf []byte) error {
	if m.objects == nil {
		m.objects = make(map[string][]byte)
	}
	m.objects[key] = pdf
	return nil
}

func TestGetInvoiceNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT (.+) FROM fleet_invoices").
		WithArgs(int64(404)).
		WillReturnRows(invoiceRows())

	svc := NewPostgresService(db, nil, testLogger())
	_, err = svc.GetInvoice(context.Background(), 404)
	assert.ErrorIs(t, err, ErrInvoiceNotFound)
}

func TestMarkOverdueBefore(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	cutoff := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	// Only sent invoices age into overdue; drafts never do.
	mock.ExpectExec("WHERE status = 'sent' AND due_date").
		WithArgs(cutoff).
		WillReturnResult(sqlmock.NewResult(0, 3))

	svc := NewPostgresService(db, nil, testLogger())
	n, err := svc.MarkOverdueBefore(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSendInvoice(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery("UPDATE fleet_invoices").
		WithArgs(int64(5)).
		WillReturnRows(invoiceRows().AddRow(5, "fleet-acme", "", "sent", 250000, "usd", nil, nil, "", now, now))

	svc := NewPostgresService(db, nil, testLogger())
	sent, err := svc.SendInvoice(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, InvoiceStatusSent, sent.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSendInvoiceNotDraft(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now()
	// The guarded update misses, but the row exists in paid status.
	mock.ExpectQuery("UPDATE fleet_invoices").
		WithArgs(int64(6)).
		WillReturnRows(invoiceRows())
	mock.ExpectQuery("SELECT (.+) FROM fleet_invoices").
		WithArgs(int64(6)).
		WillReturnRows(invoiceRows().AddRow(6, "fleet-acme", "", "paid", 250000, "usd", nil, now, "", now, now))

	svc := NewPostgresService(db, nil, testLogger())
	_, err = svc.SendInvoice(context.Background(), 6)
	assert.ErrorIs(t, err, ErrInvoiceNotDraft)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSendInvoiceNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("UPDATE fleet_invoices").
		WithArgs(int64(9)).
		WillReturnRows(invoiceRows())
	mock.ExpectQuery("SELECT (.+) FROM fleet_invoices").
		WithArgs(int64(9)).
		WillReturnRows(invoiceRows())

	svc := NewPostgresService(db, nil, testLogger())
	_, err = svc.SendInvoice(context.Background(), 9)
	assert.ErrorIs(t, err, ErrInvoiceNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateInvoiceDefaults(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery("INSERT INTO fleet_invoices").
		WithArgs("fleet-acme", "", "draft", int64(250000), "usd", nil).
		WillReturnRows(invoiceRows().AddRow(1, "fleet-acme", "", "draft", 250000, "usd", nil, nil, "", now, now))

	svc := NewPostgresService(db, nil, testLogger())
	created, err := svc.CreateInvoice(context.Background(), &Invoice{
		ContractID:  "fleet-acme",
		AmountCents: 250000,
	})
	require.NoError(t, err)
	assert.Equal(t, InvoiceStatusDraft, created.Status)
	assert.Equal(t, "usd", created.Currency)
}

func TestRenderInvoicePDF(t *testing.T) {
	due := time.Date(2026, 4, 15, 0, 0, 0, 0, time.UTC)
	inv := &Invoice{
		ID:         42,
		ContractID: "fleet-acme",
		Status:     InvoiceStatusSent,
		Currency:   "usd",
		DueDate:    &due,
	}
	lines := []LineItem{
		{Description: "Premium wash, 12 vehicles", Quantity: 12, UnitCents: 4499},
		{Description: "Detailing add-on", Quantity: 3, UnitCents: 9999},
	}

	pdf, err := RenderInvoicePDF(inv, lines)
	require.NoError(t, err)
	require.NotEmpty(t, pdf)
	// A PDF stream always opens with the magic header.
	assert.Equal(t, "%PDF", string(pdf[:4]))
}

func TestRenderAndArchive(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery("SELECT (.+) FROM fleet_invoices").
		WithArgs(int64(7)).
		WillReturnRows(invoiceRows().AddRow(7, "fleet-acme", "", "sent", 53988, "usd", nil, nil, "", now, now))
	mock.ExpectExec("UPDATE fleet_invoices SET pdf_key").
		WithArgs("invoices/fleet-acme/7.pdf", int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	archive := &memArchive{}
	svc := NewPostgresService(db, archive, testLogger())

	key, err := svc.RenderAndArchive(context.Background(), 7, []LineItem{
		{Description: "Premium wash, 12 vehicles", Quantity: 12, UnitCents: 4499},
	})
	require.NoError(t, err)
	assert.Equal(t, "invoices/fleet-acme/7.pdf", key)
	assert.NotEmpty(t, archive.objects[key])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFormatCents(t *testing.T) {
	assert.Equal(t, "USD 44.99", formatCents(4499, "usd"))
	assert.Equal(t, "USD 0.05", formatCents(5, ""))
	assert.Equal(t, "EUR 1200.00", formatCents(120000, "eur"))
}
