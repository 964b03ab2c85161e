package quotes

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quoteflow-erp/quoteflow/internal/platform/db"
	"github.com/quoteflow-erp/quoteflow/internal/shared"
)

// RepositoryPort is the read side plus the transactional entry point the
// service depends on.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, tx TxRepository) error) error

	GetQuote(ctx context.Context, id int64) (Quote, error)
	ListQuotes(ctx context.Context, projectID int64, limit, offset int) ([]Quote, error)
	ListSnapshots(ctx context.Context, quoteID int64) ([]Snapshot, error)
	GetSnapshot(ctx context.Context, quoteID int64, version int) (Snapshot, error)
	ListInvoices(ctx context.Context, quoteID int64) ([]Invoice, error)
	ListActiveInvoicesAfter(ctx context.Context, quoteID int64, version int) ([]Invoice, error)
}

// TxRepository is the write surface available inside WithTx.
type TxRepository interface {
	LockProject(ctx context.Context, projectID int64) (Project, error)
	NextSequence(ctx context.Context, projectID int64) (int, error)
	GetCustomer(ctx context.Context, id int64) (Customer, error)

	GetQuote(ctx context.Context, id int64) (Quote, error)
	InsertQuote(ctx context.Context, q Quote) (int64, error)
	UpdateQuote(ctx context.Context, q Quote) error
	DeleteQuote(ctx context.Context, id int64) error

	ListLines(ctx context.Context, quoteID int64) ([]LineItem, error)
	GetLine(ctx context.Context, quoteID, lineID int64) (LineItem, error)
	InsertLine(ctx context.Context, li LineItem) (int64, error)
	UpdateLine(ctx context.Context, li LineItem) error
	DeleteLine(ctx context.Context, id int64) error

	InsertSnapshot(ctx context.Context, snap Snapshot) (int64, error)
	InsertLineSnapshot(ctx context.Context, ls LineSnapshot) error
	GetSnapshot(ctx context.Context, quoteID int64, version int) (Snapshot, error)

	InsertInvoice(ctx context.Context, inv Invoice) (int64, error)
	InsertInvoiceLine(ctx context.Context, il InvoiceLine) (int64, error)
	ListActiveInvoicesAfter(ctx context.Context, quoteID int64, version int) ([]Invoice, error)
	ListActiveInvoiceLines(ctx context.Context, quoteID int64) ([]InvoiceLine, error)
	VoidInvoice(ctx context.Context, id int64, at time.Time) error
	SetInvoiceVoidedBy(ctx context.Context, invoiceIDs []int64, snapshotID int64) error
	RepointInvoiceLines(ctx context.Context, oldLineID, newLineID int64) error
}

// Repository is the pgx-backed implementation of RepositoryPort.
type Repository struct {
	pool *pgxpool.Pool
	q    queries
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool, q: queries{db: pool}}
}

// WithTx runs fn inside a REPEATABLE READ transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(ctx context.Context, tx TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{q: queries{db: tx}})
	})
}

func (r *Repository) GetQuote(ctx context.Context, id int64) (Quote, error) {
	return r.q.getQuote(ctx, id)
}

func (r *Repository) ListQuotes(ctx context.Context, projectID int64, limit, offset int) ([]Quote, error) {
	return r.q.listQuotes(ctx, projectID, limit, offset)
}

func (r *Repository) ListSnapshots(ctx context.Context, quoteID int64) ([]Snapshot, error) {
	return r.q.listSnapshots(ctx, quoteID)
}

func (r *Repository) GetSnapshot(ctx context.Context, quoteID int64, version int) (Snapshot, error) {
	return r.q.getSnapshot(ctx, quoteID, version)
}

func (r *Repository) ListInvoices(ctx context.Context, quoteID int64) ([]Invoice, error) {
	return r.q.listInvoices(ctx, quoteID)
}

func (r *Repository) ListActiveInvoicesAfter(ctx context.Context, quoteID int64, version int) ([]Invoice, error) {
	return r.q.listActiveInvoicesAfter(ctx, quoteID, version)
}

type txRepository struct {
	q queries
}

func (t *txRepository) LockProject(ctx context.Context, projectID int64) (Project, error) {
	return t.q.lockProject(ctx, projectID)
}

func (t *txRepository) NextSequence(ctx context.Context, projectID int64) (int, error) {
	return t.q.nextSequence(ctx, projectID)
}

func (t *txRepository) GetCustomer(ctx context.Context, id int64) (Customer, error) {
	return t.q.getCustomer(ctx, id)
}

func (t *txRepository) GetQuote(ctx context.Context, id int64) (Quote, error) {
	return t.q.getQuote(ctx, id)
}

func (t *txRepository) InsertQuote(ctx context.Context, q Quote) (int64, error) {
	id, err := t.q.insertQuote(ctx, q)
	if db.IsUniqueViolation(err) {
		return 0, fmt.Errorf("sequence %d already allocated on project %d: %w",
			q.Sequence, q.ProjectID, shared.ErrConflict)
	}
	return id, err
}

func (t *txRepository) UpdateQuote(ctx context.Context, q Quote) error {
	return t.q.updateQuote(ctx, q)
}

func (t *txRepository) DeleteQuote(ctx context.Context, id int64) error {
	return t.q.deleteQuote(ctx, id)
}

func (t *txRepository) ListLines(ctx context.Context, quoteID int64) ([]LineItem, error) {
	return t.q.listLines(ctx, quoteID)
}

func (t *txRepository) GetLine(ctx context.Context, quoteID, lineID int64) (LineItem, error) {
	return t.q.getLine(ctx, quoteID, lineID)
}

func (t *txRepository) InsertLine(ctx context.Context, li LineItem) (int64, error) {
	return t.q.insertLine(ctx, li)
}

func (t *txRepository) UpdateLine(ctx context.Context, li LineItem) error {
	return t.q.updateLine(ctx, li)
}

func (t *txRepository) DeleteLine(ctx context.Context, id int64) error {
	return t.q.deleteLine(ctx, id)
}

func (t *txRepository) InsertSnapshot(ctx context.Context, snap Snapshot) (int64, error) {
	return t.q.insertSnapshot(ctx, snap)
}

func (t *txRepository) InsertLineSnapshot(ctx context.Context, ls LineSnapshot) error {
	return t.q.insertLineSnapshot(ctx, ls)
}

func (t *txRepository) GetSnapshot(ctx context.Context, quoteID int64, version int) (Snapshot, error) {
	return t.q.getSnapshot(ctx, quoteID, version)
}

func (t *txRepository) InsertInvoice(ctx context.Context, inv Invoice) (int64, error) {
	return t.q.insertInvoice(ctx, inv)
}

func (t *txRepository) InsertInvoiceLine(ctx context.Context, il InvoiceLine) (int64, error) {
	return t.q.insertInvoiceLine(ctx, il)
}

func (t *txRepository) ListActiveInvoicesAfter(ctx context.Context, quoteID int64, version int) ([]Invoice, error) {
	return t.q.listActiveInvoicesAfter(ctx, quoteID, version)
}

func (t *txRepository) ListActiveInvoiceLines(ctx context.Context, quoteID int64) ([]InvoiceLine, error) {
	return t.q.listActiveInvoiceLines(ctx, quoteID)
}

func (t *txRepository) VoidInvoice(ctx context.Context, id int64, at time.Time) error {
	return t.q.voidInvoice(ctx, id, at)
}

func (t *txRepository) SetInvoiceVoidedBy(ctx context.Context, invoiceIDs []int64, snapshotID int64) error {
	return t.q.setInvoiceVoidedBy(ctx, invoiceIDs, snapshotID)
}

func (t *txRepository) RepointInvoiceLines(ctx context.Context, oldLineID, newLineID int64) error {
	return t.q.repointInvoiceLines(ctx, oldLineID, newLineID)
}
