package purchaseorders

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

	GetPurchaseOrder(ctx context.Context, id int64) (PurchaseOrder, error)
	ListPurchaseOrders(ctx context.Context, projectID int64, limit, offset int) ([]PurchaseOrder, error)
	ListSnapshots(ctx context.Context, poID int64) ([]Snapshot, error)
	GetSnapshot(ctx context.Context, poID int64, version int) (Snapshot, error)
	ListReceivings(ctx context.Context, poID int64) ([]Receiving, error)
	ListActiveReceivingsAfter(ctx context.Context, poID int64, version int) ([]Receiving, error)
}

// TxRepository is the write surface available inside WithTx. Every mutation of
// a purchase order and its snapshot runs through it in a single transaction.
type TxRepository interface {
	LockProject(ctx context.Context, projectID int64) (Project, error)
	NextSequence(ctx context.Context, projectID int64) (int, error)
	GetVendor(ctx context.Context, id int64) (Vendor, error)

	GetPurchaseOrder(ctx context.Context, id int64) (PurchaseOrder, error)
	InsertPurchaseOrder(ctx context.Context, po PurchaseOrder) (int64, error)
	UpdatePurchaseOrder(ctx context.Context, po PurchaseOrder) error
	DeletePurchaseOrder(ctx context.Context, id int64) error

	ListLines(ctx context.Context, poID int64) ([]LineItem, error)
	GetLine(ctx context.Context, poID, lineID int64) (LineItem, error)
	InsertLine(ctx context.Context, li LineItem) (int64, error)
	UpdateLine(ctx context.Context, li LineItem) error
	DeleteLine(ctx context.Context, id int64) error

	InsertSnapshot(ctx context.Context, snap Snapshot) (int64, error)
	InsertLineSnapshot(ctx context.Context, ls LineSnapshot) error
	GetSnapshot(ctx context.Context, poID int64, version int) (Snapshot, error)

	InsertReceiving(ctx context.Context, rec Receiving) (int64, error)
	InsertReceivingLine(ctx context.Context, rl ReceivingLine) (int64, error)
	ListActiveReceivingsAfter(ctx context.Context, poID int64, version int) ([]Receiving, error)
	ListActiveReceivingLines(ctx context.Context, poID int64) ([]ReceivingLine, error)
	VoidReceiving(ctx context.Context, id int64, at time.Time) error
	SetReceivingVoidedBy(ctx context.Context, receivingIDs []int64, snapshotID int64) error
	RepointReceivingLines(ctx context.Context, oldLineID, newLineID int64) error
}

// Repository is the pgx-backed implementation of RepositoryPort.
type Repository struct {
	pool *pgxpool.Pool
	q    queries
}

// NewRepository constructs a Repository over the shared pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool, q: queries{db: pool}}
}

// WithTx runs fn inside a REPEATABLE READ transaction, handing it a
// TxRepository bound to that transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(ctx context.Context, tx TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{q: queries{db: tx}})
	})
}

func (r *Repository) GetPurchaseOrder(ctx context.Context, id int64) (PurchaseOrder, error) {
	return r.q.getPurchaseOrder(ctx, id)
}

func (r *Repository) ListPurchaseOrders(ctx context.Context, projectID int64, limit, offset int) ([]PurchaseOrder, error) {
	return r.q.listPurchaseOrders(ctx, projectID, limit, offset)
}

func (r *Repository) ListSnapshots(ctx context.Context, poID int64) ([]Snapshot, error) {
	return r.q.listSnapshots(ctx, poID)
}

func (r *Repository) GetSnapshot(ctx context.Context, poID int64, version int) (Snapshot, error) {
	return r.q.getSnapshot(ctx, poID, version)
}

func (r *Repository) ListReceivings(ctx context.Context, poID int64) ([]Receiving, error) {
	return r.q.listReceivings(ctx, poID, false)
}

func (r *Repository) ListActiveReceivingsAfter(ctx context.Context, poID int64, version int) ([]Receiving, error) {
	return r.q.listActiveReceivingsAfter(ctx, poID, version)
}

// txRepository adapts queries to the TxRepository interface.
type txRepository struct {
	q queries
}

func (t *txRepository) LockProject(ctx context.Context, projectID int64) (Project, error) {
	return t.q.lockProject(ctx, projectID)
}

func (t *txRepository) NextSequence(ctx context.Context, projectID int64) (int, error) {
	return t.q.nextSequence(ctx, projectID)
}

func (t *txRepository) GetVendor(ctx context.Context, id int64) (Vendor, error) {
	return t.q.getVendor(ctx, id)
}

func (t *txRepository) GetPurchaseOrder(ctx context.Context, id int64) (PurchaseOrder, error) {
	return t.q.getPurchaseOrder(ctx, id)
}

func (t *txRepository) InsertPurchaseOrder(ctx context.Context, po PurchaseOrder) (int64, error) {
	id, err := t.q.insertPurchaseOrder(ctx, po)
	if db.IsUniqueViolation(err) {
		return 0, fmt.Errorf("sequence %d already allocated on project %d: %w",
			po.Sequence, po.ProjectID, shared.ErrConflict)
	}
	return id, err
}

func (t *txRepository) UpdatePurchaseOrder(ctx context.Context, po PurchaseOrder) error {
	return t.q.updatePurchaseOrder(ctx, po)
}

func (t *txRepository) DeletePurchaseOrder(ctx context.Context, id int64) error {
	return t.q.deletePurchaseOrder(ctx, id)
}

func (t *txRepository) ListLines(ctx context.Context, poID int64) ([]LineItem, error) {
	return t.q.listLines(ctx, poID)
}

func (t *txRepository) GetLine(ctx context.Context, poID, lineID int64) (LineItem, error) {
	return t.q.getLine(ctx, poID, lineID)
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

func (t *txRepository) GetSnapshot(ctx context.Context, poID int64, version int) (Snapshot, error) {
	return t.q.getSnapshot(ctx, poID, version)
}

func (t *txRepository) InsertReceiving(ctx context.Context, rec Receiving) (int64, error) {
	return t.q.insertReceiving(ctx, rec)
}

func (t *txRepository) InsertReceivingLine(ctx context.Context, rl ReceivingLine) (int64, error) {
	return t.q.insertReceivingLine(ctx, rl)
}

func (t *txRepository) ListActiveReceivingsAfter(ctx context.Context, poID int64, version int) ([]Receiving, error) {
	return t.q.listActiveReceivingsAfter(ctx, poID, version)
}

func (t *txRepository) ListActiveReceivingLines(ctx context.Context, poID int64) ([]ReceivingLine, error) {
	return t.q.listActiveReceivingLines(ctx, poID)
}

func (t *txRepository) VoidReceiving(ctx context.Context, id int64, at time.Time) error {
	return t.q.voidReceiving(ctx, id, at)
}

func (t *txRepository) SetReceivingVoidedBy(ctx context.Context, receivingIDs []int64, snapshotID int64) error {
	return t.q.setReceivingVoidedBy(ctx, receivingIDs, snapshotID)
}

func (t *txRepository) RepointReceivingLines(ctx context.Context, oldLineID, newLineID int64) error {
	return t.q.repointReceivingLines(ctx, oldLineID, newLineID)
}
