package quotes

import (
	"context"
	"log/slog"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/quoteflow-erp/quoteflow/internal/catalog"
	"github.com/quoteflow-erp/quoteflow/internal/shared"
)

type memoryQuoteRepo struct {
	projects  map[int64]Project
	customers map[int64]Customer
	quotes    map[int64]Quote
	lines     map[int64]LineItem
	snaps     []Snapshot
	invoices  map[int64]Invoice
	invLines  map[int64]InvoiceLine
	nextID    int64
}

type memoryQuoteTx struct {
	repo *memoryQuoteRepo
}

func newMemoryQuoteRepo() *memoryQuoteRepo {
	return &memoryQuoteRepo{
		projects:  map[int64]Project{1: {ID: 1, Code: "A2132", Name: "Plant Retrofit"}},
		customers: map[int64]Customer{1: {ID: 1, Name: "Initech"}},
		quotes:    make(map[int64]Quote),
		lines:     make(map[int64]LineItem),
		invoices:  make(map[int64]Invoice),
		invLines:  make(map[int64]InvoiceLine),
	}
}

func (r *memoryQuoteRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &memoryQuoteTx{repo: r})
}

func (r *memoryQuoteRepo) getQuote(id int64) (Quote, error) {
	q, ok := r.quotes[id]
	if !ok {
		return Quote{}, shared.ErrNotFound
	}
	q.Lines = r.linesOf(id)
	return q, nil
}

func (r *memoryQuoteRepo) linesOf(quoteID int64) []LineItem {
	var out []LineItem
	for _, li := range r.lines {
		if li.QuoteID == quoteID {
			out = append(out, li)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *memoryQuoteRepo) GetQuote(ctx context.Context, id int64) (Quote, error) {
	return r.getQuote(id)
}

func (r *memoryQuoteRepo) ListQuotes(ctx context.Context, projectID int64, limit, offset int) ([]Quote, error) {
	var out []Quote
	for id, q := range r.quotes {
		if projectID != 0 && q.ProjectID != projectID {
			continue
		}
		q.Lines = r.linesOf(id)
		out = append(out, q)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (r *memoryQuoteRepo) ListSnapshots(ctx context.Context, quoteID int64) ([]Snapshot, error) {
	var out []Snapshot
	for _, s := range r.snaps {
		if s.QuoteID == quoteID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *memoryQuoteRepo) GetSnapshot(ctx context.Context, quoteID int64, version int) (Snapshot, error) {
	var found *Snapshot
	for i := range r.snaps {
		if r.snaps[i].QuoteID == quoteID && r.snaps[i].Version == version {
			found = &r.snaps[i]
		}
	}
	if found == nil {
		return Snapshot{}, shared.ErrNotFound
	}
	return *found, nil
}

func (r *memoryQuoteRepo) invLinesOf(invID int64) []InvoiceLine {
	var out []InvoiceLine
	for _, il := range r.invLines {
		if il.InvoiceID == invID {
			out = append(out, il)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *memoryQuoteRepo) ListInvoices(ctx context.Context, quoteID int64) ([]Invoice, error) {
	var out []Invoice
	for id, inv := range r.invoices {
		if inv.QuoteID == quoteID {
			inv.Lines = r.invLinesOf(id)
			out = append(out, inv)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memoryQuoteRepo) ListActiveInvoicesAfter(ctx context.Context, quoteID int64, version int) ([]Invoice, error) {
	seen := make(map[int64]bool)
	var out []Invoice
	for _, s := range r.snaps {
		if s.QuoteID != quoteID || s.Version <= version || s.InvoiceID == nil {
			continue
		}
		inv := r.invoices[*s.InvoiceID]
		if inv.Voided() || seen[inv.ID] {
			continue
		}
		seen[inv.ID] = true
		inv.Lines = r.invLinesOf(inv.ID)
		out = append(out, inv)
	}
	return out, nil
}

func (tx *memoryQuoteTx) id() int64 {
	tx.repo.nextID++
	return tx.repo.nextID
}

func (tx *memoryQuoteTx) LockProject(ctx context.Context, projectID int64) (Project, error) {
	p, ok := tx.repo.projects[projectID]
	if !ok {
		return Project{}, shared.ErrNotFound
	}
	return p, nil
}

func (tx *memoryQuoteTx) NextSequence(ctx context.Context, projectID int64) (int, error) {
	max := 0
	for _, q := range tx.repo.quotes {
		if q.ProjectID == projectID && q.Sequence > max {
			max = q.Sequence
		}
	}
	return max + 1, nil
}

func (tx *memoryQuoteTx) GetCustomer(ctx context.Context, id int64) (Customer, error) {
	c, ok := tx.repo.customers[id]
	if !ok {
		return Customer{}, shared.ErrNotFound
	}
	return c, nil
}

func (tx *memoryQuoteTx) GetQuote(ctx context.Context, id int64) (Quote, error) {
	return tx.repo.getQuote(id)
}

func (tx *memoryQuoteTx) InsertQuote(ctx context.Context, q Quote) (int64, error) {
	q.ID = tx.id()
	q.CreatedAt = time.Now()
	q.Lines = nil
	tx.repo.quotes[q.ID] = q
	return q.ID, nil
}

func (tx *memoryQuoteTx) UpdateQuote(ctx context.Context, q Quote) error {
	stored, ok := tx.repo.quotes[q.ID]
	if !ok {
		return shared.ErrNotFound
	}
	q.CreatedAt = stored.CreatedAt
	q.Lines = nil
	tx.repo.quotes[q.ID] = q
	return nil
}

func (tx *memoryQuoteTx) DeleteQuote(ctx context.Context, id int64) error {
	if _, ok := tx.repo.quotes[id]; !ok {
		return shared.ErrNotFound
	}
	delete(tx.repo.quotes, id)
	for lid, li := range tx.repo.lines {
		if li.QuoteID == id {
			delete(tx.repo.lines, lid)
		}
	}
	return nil
}

func (tx *memoryQuoteTx) ListLines(ctx context.Context, quoteID int64) ([]LineItem, error) {
	return tx.repo.linesOf(quoteID), nil
}

func (tx *memoryQuoteTx) GetLine(ctx context.Context, quoteID, lineID int64) (LineItem, error) {
	li, ok := tx.repo.lines[lineID]
	if !ok || li.QuoteID != quoteID {
		return LineItem{}, shared.ErrNotFound
	}
	return li, nil
}

func (tx *memoryQuoteTx) InsertLine(ctx context.Context, li LineItem) (int64, error) {
	li.ID = tx.id()
	tx.repo.lines[li.ID] = li
	return li.ID, nil
}

func (tx *memoryQuoteTx) UpdateLine(ctx context.Context, li LineItem) error {
	if _, ok := tx.repo.lines[li.ID]; !ok {
		return shared.ErrNotFound
	}
	tx.repo.lines[li.ID] = li
	return nil
}

func (tx *memoryQuoteTx) DeleteLine(ctx context.Context, id int64) error {
	if _, ok := tx.repo.lines[id]; !ok {
		return shared.ErrNotFound
	}
	delete(tx.repo.lines, id)
	return nil
}

func (tx *memoryQuoteTx) InsertSnapshot(ctx context.Context, snap Snapshot) (int64, error) {
	snap.ID = tx.id()
	snap.CreatedAt = time.Now()
	tx.repo.snaps = append(tx.repo.snaps, snap)
	return snap.ID, nil
}

func (tx *memoryQuoteTx) InsertLineSnapshot(ctx context.Context, ls LineSnapshot) error {
	for i := range tx.repo.snaps {
		if tx.repo.snaps[i].ID == ls.SnapshotID {
			ls.ID = tx.id()
			tx.repo.snaps[i].Lines = append(tx.repo.snaps[i].Lines, ls)
			return nil
		}
	}
	return shared.ErrNotFound
}

func (tx *memoryQuoteTx) GetSnapshot(ctx context.Context, quoteID int64, version int) (Snapshot, error) {
	return tx.repo.GetSnapshot(ctx, quoteID, version)
}

func (tx *memoryQuoteTx) InsertInvoice(ctx context.Context, inv Invoice) (int64, error) {
	inv.ID = tx.id()
	inv.CreatedAt = time.Now()
	tx.repo.invoices[inv.ID] = inv
	return inv.ID, nil
}

func (tx *memoryQuoteTx) InsertInvoiceLine(ctx context.Context, il InvoiceLine) (int64, error) {
	il.ID = tx.id()
	tx.repo.invLines[il.ID] = il
	return il.ID, nil
}

func (tx *memoryQuoteTx) ListActiveInvoicesAfter(ctx context.Context, quoteID int64, version int) ([]Invoice, error) {
	return tx.repo.ListActiveInvoicesAfter(ctx, quoteID, version)
}

func (tx *memoryQuoteTx) ListActiveInvoiceLines(ctx context.Context, quoteID int64) ([]InvoiceLine, error) {
	var out []InvoiceLine
	for _, il := range tx.repo.invLines {
		inv := tx.repo.invoices[il.InvoiceID]
		if inv.QuoteID == quoteID && !inv.Voided() {
			out = append(out, il)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (tx *memoryQuoteTx) VoidInvoice(ctx context.Context, id int64, at time.Time) error {
	inv, ok := tx.repo.invoices[id]
	if !ok {
		return shared.ErrNotFound
	}
	inv.VoidedAt = &at
	tx.repo.invoices[id] = inv
	return nil
}

func (tx *memoryQuoteTx) SetInvoiceVoidedBy(ctx context.Context, invoiceIDs []int64, snapshotID int64) error {
	for _, id := range invoiceIDs {
		inv := tx.repo.invoices[id]
		inv.VoidedBySnapshotID = &snapshotID
		tx.repo.invoices[id] = inv
	}
	return nil
}

func (tx *memoryQuoteTx) RepointInvoiceLines(ctx context.Context, oldLineID, newLineID int64) error {
	for id, il := range tx.repo.invLines {
		if il.QuoteLineItemID == oldLineID {
			il.QuoteLineItemID = newLineID
			tx.repo.invLines[id] = il
		}
	}
	return nil
}

func testCatalog() *catalog.Static {
	c := catalog.NewStatic()
	c.Parts[10] = catalog.Part{ID: 10, PartNumber: "VLV-200", Description: "Ball valve", Cost: 100, MarkupPercent: 15}
	c.LaborItems[20] = catalog.Labor{ID: 20, Description: "Field install", Hours: 1, Rate: 95, MarkupPercent: 10}
	c.MiscItems[30] = catalog.Misc{ID: 30, Description: "Freight", UnitPrice: 40, MarkupPercent: 0}
	c.DiscountCodes[40] = catalog.DiscountCode{ID: 40, Code: "LOYAL10", DiscountPercent: 10}
	c.DiscountCodes[41] = catalog.DiscountCode{ID: 41, Code: "OLD", DiscountPercent: 5, Archived: true}
	return c
}

func newQuoteService(repo *memoryQuoteRepo, cat catalog.Catalog) *Service {
	return NewService(repo, cat, slog.Default())
}

func ptr[T any](v T) *T { return &v }

func createTestQuote(t *testing.T, svc *Service, lines ...LineInput) Quote {
	t.Helper()
	q, err := svc.Create(context.Background(), CreateQuoteRequest{
		ProjectID:   1,
		CustomerID:  1,
		Description: "Retrofit quote",
		Lines:       lines,
	})
	require.NoError(t, err)
	return q
}

func TestCreateResolvesCatalogPricing(t *testing.T) {
	svc := newQuoteService(newMemoryQuoteRepo(), testCatalog())

	q := createTestQuote(t, svc,
		LineInput{ItemType: "part", CatalogID: ptr(int64(10)), Quantity: 2},
		LineInput{ItemType: "labor", CatalogID: ptr(int64(20)), Quantity: 8},
		LineInput{ItemType: "pms", Description: "Site supervision", Quantity: 1, UnitPrice: ptr(500.0)},
	)

	require.Equal(t, "A2132-0001-0", q.Number())
	require.Equal(t, StatusActive, q.Status)
	require.Len(t, q.Lines, 3)
	// Part sell price comes from cost plus catalog markup.
	require.InDelta(t, 115.0, q.Lines[0].UnitPrice, 1e-9)
	require.Equal(t, "VLV-200 Ball valve", q.Lines[0].Description)
	require.InDelta(t, 95.0, q.Lines[1].UnitPrice, 1e-9)
	require.InDelta(t, 500.0, q.Lines[2].UnitPrice, 1e-9)
	require.Equal(t, 2, q.Lines[0].QtyPending)
	require.Equal(t, 0, q.Lines[0].QtyFulfilled)
}

func TestInvoiceConsumesPendingAndDerivesStatus(t *testing.T) {
	svc := newQuoteService(newMemoryQuoteRepo(), testCatalog())
	ctx := context.Background()

	q := createTestQuote(t, svc,
		LineInput{ItemType: "misc", Description: "Widgets", Quantity: 5, UnitPrice: ptr(10.0)},
	)
	lineID := q.Lines[0].ID

	inv, err := svc.CreateInvoice(ctx, q.ID, InvoiceRequest{
		ClientPONumber: "CPO-881",
		Lines:          []InvoiceLineInput{{LineItemID: lineID, Qty: 2}},
	})
	require.NoError(t, err)
	require.Equal(t, "CPO-881", inv.ClientPONumber)
	require.Equal(t, 2, inv.Lines[0].QtyThisInvoice)
	require.Equal(t, 3, inv.Lines[0].QtyPendingAfter)

	q, err = svc.Get(ctx, q.ID)
	require.NoError(t, err)
	require.Equal(t, StatusInvoiced, q.Status)
	require.Equal(t, 1, q.CurrentVersion)
	require.Equal(t, 2, q.Lines[0].QtyFulfilled)
	require.Equal(t, 3, q.Lines[0].QtyPending)
	require.Equal(t, q.Lines[0].Quantity, q.Lines[0].QtyPending+q.Lines[0].QtyFulfilled)
}

func TestInvoiceValidatesAllOrNothing(t *testing.T) {
	svc := newQuoteService(newMemoryQuoteRepo(), testCatalog())
	ctx := context.Background()

	q := createTestQuote(t, svc,
		LineInput{ItemType: "misc", Description: "Widgets", Quantity: 5, UnitPrice: ptr(10.0)},
		LineInput{ItemType: "misc", Description: "Gadgets", Quantity: 3, UnitPrice: ptr(20.0)},
	)

	_, err := svc.CreateInvoice(ctx, q.ID, InvoiceRequest{
		ClientPONumber: "CPO-881",
		Lines: []InvoiceLineInput{
			{LineItemID: q.Lines[0].ID, Qty: 1},
			{LineItemID: q.Lines[1].ID, Qty: 4},
		},
	})
	require.ErrorIs(t, err, shared.ErrQuantityConflict)

	q, err = svc.Get(ctx, q.ID)
	require.NoError(t, err)
	require.Equal(t, 0, q.Lines[0].QtyFulfilled)
	require.Equal(t, StatusActive, q.Status)
}

func TestInvoiceDuplicateLineEntriesShareOnePendingBudget(t *testing.T) {
	svc := newQuoteService(newMemoryQuoteRepo(), testCatalog())
	ctx := context.Background()

	q := createTestQuote(t, svc,
		LineInput{ItemType: "misc", Description: "Widgets", Quantity: 5, UnitPrice: ptr(10.0)},
	)
	lineID := q.Lines[0].ID

	// Each entry fits the line's pending on its own; together they exceed it.
	_, err := svc.CreateInvoice(ctx, q.ID, InvoiceRequest{
		ClientPONumber: "CPO-881",
		Lines: []InvoiceLineInput{
			{LineItemID: lineID, Qty: 4},
			{LineItemID: lineID, Qty: 4},
		},
	})
	require.ErrorIs(t, err, shared.ErrQuantityConflict)

	q, err = svc.Get(ctx, q.ID)
	require.NoError(t, err)
	require.Equal(t, 0, q.CurrentVersion)
	require.Equal(t, 0, q.Lines[0].QtyFulfilled)
	require.Equal(t, 5, q.Lines[0].QtyPending)
	require.Equal(t, StatusActive, q.Status)

	// Duplicates that do fit apply cumulatively.
	_, err = svc.CreateInvoice(ctx, q.ID, InvoiceRequest{
		ClientPONumber: "CPO-882",
		Lines: []InvoiceLineInput{
			{LineItemID: lineID, Qty: 2},
			{LineItemID: lineID, Qty: 3},
		},
	})
	require.NoError(t, err)

	q, err = svc.Get(ctx, q.ID)
	require.NoError(t, err)
	require.Equal(t, 5, q.Lines[0].QtyFulfilled)
	require.Equal(t, 0, q.Lines[0].QtyPending)
}

func TestInvoiceRejectsNonPositiveQuantity(t *testing.T) {
	svc := newQuoteService(newMemoryQuoteRepo(), testCatalog())
	ctx := context.Background()

	q := createTestQuote(t, svc,
		LineInput{ItemType: "misc", Description: "Widgets", Quantity: 5, UnitPrice: ptr(10.0)},
	)

	for _, qty := range []int{0, -1} {
		_, err := svc.CreateInvoice(ctx, q.ID, InvoiceRequest{
			ClientPONumber: "CPO-881",
			Lines:          []InvoiceLineInput{{LineItemID: q.Lines[0].ID, Qty: qty}},
		})
		require.ErrorIs(t, err, shared.ErrValidation)
	}

	q, err := svc.Get(ctx, q.ID)
	require.NoError(t, err)
	require.Equal(t, 0, q.Lines[0].QtyFulfilled)
	require.Equal(t, StatusActive, q.Status)
}

func TestEditBelowFulfilledIsQuantityConflict(t *testing.T) {
	svc := newQuoteService(newMemoryQuoteRepo(), testCatalog())
	ctx := context.Background()

	q := createTestQuote(t, svc,
		LineInput{ItemType: "misc", Description: "Widgets", Quantity: 5, UnitPrice: ptr(10.0)},
	)
	lineID := q.Lines[0].ID

	_, err := svc.CreateInvoice(ctx, q.ID, InvoiceRequest{
		ClientPONumber: "CPO-881",
		Lines:          []InvoiceLineInput{{LineItemID: lineID, Qty: 2}},
	})
	require.NoError(t, err)

	// Reducing below the fulfilled amount is the specific conflict; any other
	// structural edit on the frozen quote is a freeze violation.
	_, err = svc.EditLine(ctx, q.ID, lineID, LineEdit{ID: lineID, Quantity: ptr(1)})
	require.ErrorIs(t, err, shared.ErrQuantityConflict)

	_, err = svc.EditLine(ctx, q.ID, lineID, LineEdit{ID: lineID, Description: ptr("renamed")})
	require.ErrorIs(t, err, shared.ErrDocumentFrozen)

	_, err = svc.AddLine(ctx, q.ID, LineInput{ItemType: "misc", Description: "Late", Quantity: 1, UnitPrice: ptr(1.0)})
	require.ErrorIs(t, err, shared.ErrDocumentFrozen)

	_, err = svc.DeleteLine(ctx, q.ID, lineID)
	require.ErrorIs(t, err, shared.ErrDocumentFrozen)

	err = svc.Delete(ctx, q.ID)
	require.ErrorIs(t, err, shared.ErrDocumentFrozen)

	_, err = svc.SetGlobalMarkup(ctx, q.ID, 20)
	require.ErrorIs(t, err, shared.ErrDocumentFrozen)
}

func TestGlobalMarkupRoundTrip(t *testing.T) {
	cat := testCatalog()
	svc := newQuoteService(newMemoryQuoteRepo(), cat)
	ctx := context.Background()

	q := createTestQuote(t, svc,
		LineInput{ItemType: "part", CatalogID: ptr(int64(10)), Quantity: 1},
		LineInput{ItemType: "pms", Description: "Site supervision", Quantity: 1, UnitPrice: ptr(500.0)},
	)

	q, err := svc.SetGlobalMarkup(ctx, q.ID, 20)
	require.NoError(t, err)
	require.NotNil(t, q.MarkupPercent)
	require.InDelta(t, 120.0, q.Lines[0].UnitPrice, 1e-9)
	require.InDelta(t, 100.0, *q.Lines[0].BaseCost, 1e-9)
	require.InDelta(t, 15.0, *q.Lines[0].OriginalMarkupPercent, 1e-9)
	// Exempt PMS line untouched.
	require.InDelta(t, 500.0, q.Lines[1].UnitPrice, 1e-9)
	require.Nil(t, q.Lines[1].BaseCost)
	require.Equal(t, 1, q.CurrentVersion)

	// A later update must reprice from the stored base, not the catalog.
	cat.Parts[10] = catalog.Part{ID: 10, PartNumber: "VLV-200", Description: "Ball valve", Cost: 999, MarkupPercent: 50}
	q, err = svc.SetGlobalMarkup(ctx, q.ID, 30)
	require.NoError(t, err)
	require.InDelta(t, 130.0, q.Lines[0].UnitPrice, 1e-9)

	q, err = svc.ClearGlobalMarkup(ctx, q.ID)
	require.NoError(t, err)
	require.Nil(t, q.MarkupPercent)
	require.InDelta(t, 115.0, q.Lines[0].UnitPrice, 1e-9)
	require.Nil(t, q.Lines[0].BaseCost)
	require.Equal(t, 3, q.CurrentVersion)

	_, err = svc.ClearGlobalMarkup(ctx, q.ID)
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestGlobalMarkupLaborBaseIncludesHours(t *testing.T) {
	cat := testCatalog()
	cat.LaborItems[21] = catalog.Labor{ID: 21, Description: "Commissioning", Hours: 4, Rate: 50, MarkupPercent: 10}
	svc := newQuoteService(newMemoryQuoteRepo(), cat)
	ctx := context.Background()

	q := createTestQuote(t, svc,
		LineInput{ItemType: "labor", CatalogID: ptr(int64(21)), Quantity: 1},
	)

	// Base cost is rate times standard hours, not the bare rate.
	q, err := svc.SetGlobalMarkup(ctx, q.ID, 20)
	require.NoError(t, err)
	require.InDelta(t, 200.0, *q.Lines[0].BaseCost, 1e-9)
	require.InDelta(t, 10.0, *q.Lines[0].OriginalMarkupPercent, 1e-9)
	require.InDelta(t, 240.0, q.Lines[0].UnitPrice, 1e-9)

	q, err = svc.ClearGlobalMarkup(ctx, q.ID)
	require.NoError(t, err)
	require.InDelta(t, 220.0, q.Lines[0].UnitPrice, 1e-9)
	require.Nil(t, q.Lines[0].BaseCost)
}

func TestMarkupConflictsWithDiscounts(t *testing.T) {
	svc := newQuoteService(newMemoryQuoteRepo(), testCatalog())
	ctx := context.Background()

	q := createTestQuote(t, svc,
		LineInput{ItemType: "misc", Description: "Widgets", Quantity: 5, UnitPrice: ptr(10.0), DiscountPercent: ptr(10.0)},
	)
	_, err := svc.SetGlobalMarkup(ctx, q.ID, 20)
	require.ErrorIs(t, err, shared.ErrConflictingPricingMode)

	clean := createTestQuote(t, svc,
		LineInput{ItemType: "misc", Description: "Widgets", Quantity: 5, UnitPrice: ptr(10.0)},
	)
	clean, err = svc.SetGlobalMarkup(ctx, clean.ID, 20)
	require.NoError(t, err)

	_, err = svc.EditLine(ctx, clean.ID, clean.Lines[0].ID,
		LineEdit{ID: clean.Lines[0].ID, DiscountPercent: ptr(5.0)})
	require.ErrorIs(t, err, shared.ErrConflictingPricingMode)

	_, err = svc.AddLine(ctx, clean.ID,
		LineInput{ItemType: "misc", Description: "Cheap", Quantity: 1, UnitPrice: ptr(1.0), DiscountCodeID: ptr(int64(40))})
	require.ErrorIs(t, err, shared.ErrConflictingPricingMode)
}

func TestDiscountCodeResolution(t *testing.T) {
	svc := newQuoteService(newMemoryQuoteRepo(), testCatalog())

	q := createTestQuote(t, svc,
		LineInput{ItemType: "misc", Description: "Widgets", Quantity: 5, UnitPrice: ptr(10.0), DiscountCodeID: ptr(int64(40))},
	)
	require.NotNil(t, q.Lines[0].DiscountPercent)
	require.InDelta(t, 10.0, *q.Lines[0].DiscountPercent, 1e-9)

	_, err := svc.Create(context.Background(), CreateQuoteRequest{
		ProjectID:  1,
		CustomerID: 1,
		Lines: []LineInput{
			{ItemType: "misc", Description: "Widgets", Quantity: 1, UnitPrice: ptr(1.0), DiscountCodeID: ptr(int64(41))},
		},
	})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestCloneResetsFulfillmentAndMarkup(t *testing.T) {
	svc := newQuoteService(newMemoryQuoteRepo(), testCatalog())
	ctx := context.Background()

	q := createTestQuote(t, svc,
		LineInput{ItemType: "misc", Description: "Widgets", Quantity: 5, UnitPrice: ptr(10.0)},
	)
	q, err := svc.SetGlobalMarkup(ctx, q.ID, 20)
	require.NoError(t, err)
	_, err = svc.CreateInvoice(ctx, q.ID, InvoiceRequest{
		ClientPONumber: "CPO-1",
		Lines:          []InvoiceLineInput{{LineItemID: q.Lines[0].ID, Qty: 2}},
	})
	require.NoError(t, err)

	clone, err := svc.Clone(ctx, q.ID)
	require.NoError(t, err)
	require.Equal(t, 2, clone.Sequence)
	require.Equal(t, 0, clone.CurrentVersion)
	require.Equal(t, StatusActive, clone.Status)
	require.Nil(t, clone.MarkupPercent)
	require.Equal(t, 0, clone.Lines[0].QtyFulfilled)
	require.Equal(t, 5, clone.Lines[0].QtyPending)
	require.Nil(t, clone.Lines[0].BaseCost)
}

func TestCommitBatchIsOneVersion(t *testing.T) {
	svc := newQuoteService(newMemoryQuoteRepo(), testCatalog())
	ctx := context.Background()

	q := createTestQuote(t, svc,
		LineInput{ItemType: "misc", Description: "Widgets", Quantity: 5, UnitPrice: ptr(10.0)},
		LineInput{ItemType: "misc", Description: "Gadgets", Quantity: 3, UnitPrice: ptr(20.0)},
	)
	q, err := svc.CommitBatch(ctx, q.ID, BatchRequest{
		Deletes: []int64{q.Lines[0].ID},
		Edits:   []LineEdit{{ID: q.Lines[1].ID, Quantity: ptr(6)}},
		Adds:    []LineInput{{ItemType: "labor", CatalogID: ptr(int64(20)), Quantity: 4}},
	})
	require.NoError(t, err)
	require.Equal(t, 1, q.CurrentVersion)
	require.Len(t, q.Lines, 2)

	snap, err := svc.GetSnapshot(ctx, q.ID, 1)
	require.NoError(t, err)
	require.Len(t, snap.Lines, 3)
}

func TestRevertVoidsInvoicesAndRestoresLines(t *testing.T) {
	svc := newQuoteService(newMemoryQuoteRepo(), testCatalog())
	ctx := context.Background()

	q := createTestQuote(t, svc,
		LineInput{ItemType: "misc", Description: "Widgets", Quantity: 5, UnitPrice: ptr(10.0)},
	)
	lineID := q.Lines[0].ID

	_, err := svc.CreateInvoice(ctx, q.ID, InvoiceRequest{
		ClientPONumber: "CPO-1",
		Lines:          []InvoiceLineInput{{LineItemID: lineID, Qty: 2}},
	})
	require.NoError(t, err)
	_, err = svc.CreateInvoice(ctx, q.ID, InvoiceRequest{
		ClientPONumber: "CPO-2",
		Lines:          []InvoiceLineInput{{LineItemID: lineID, Qty: 3}},
	})
	require.NoError(t, err)

	preview, err := svc.PreviewRevert(ctx, q.ID, 1)
	require.NoError(t, err)
	require.Len(t, preview.InvoicesToVoid, 1)

	// Revert to version 1 keeps the first invoice, voids the second.
	q, err = svc.Revert(ctx, q.ID, 1)
	require.NoError(t, err)
	require.Equal(t, 3, q.CurrentVersion)
	require.Equal(t, StatusInvoiced, q.Status)
	require.Equal(t, 2, q.Lines[0].QtyFulfilled)
	require.Equal(t, 3, q.Lines[0].QtyPending)

	invs, err := svc.ListInvoices(ctx, q.ID)
	require.NoError(t, err)
	require.Len(t, invs, 2)
	require.False(t, invs[0].Voided())
	require.True(t, invs[1].Voided())
	require.NotNil(t, invs[1].VoidedBySnapshotID)

	// Reverting all the way back clears fulfillment and thaws the quote.
	q, err = svc.Revert(ctx, q.ID, 0)
	require.NoError(t, err)
	require.Equal(t, StatusActive, q.Status)
	require.Equal(t, 0, q.Lines[0].QtyFulfilled)
	require.Equal(t, 5, q.Lines[0].QtyPending)

	_, err = svc.EditLine(ctx, q.ID, lineID, LineEdit{ID: lineID, Quantity: ptr(7)})
	require.NoError(t, err)
}

func TestRevertRecreatesDeletedLineAndRepointsInvoices(t *testing.T) {
	svc := newQuoteService(newMemoryQuoteRepo(), testCatalog())
	ctx := context.Background()

	q := createTestQuote(t, svc,
		LineInput{ItemType: "misc", Description: "Widgets", Quantity: 5, UnitPrice: ptr(10.0)},
		LineInput{ItemType: "misc", Description: "Gadgets", Quantity: 3, UnitPrice: ptr(20.0)},
	)
	widgetID := q.Lines[0].ID

	_, err := svc.CreateInvoice(ctx, q.ID, InvoiceRequest{
		ClientPONumber: "CPO-1",
		Lines:          []InvoiceLineInput{{LineItemID: widgetID, Qty: 2}},
	})
	require.NoError(t, err)

	// Undo the fulfillment so the quote thaws, then delete the line.
	_, err = svc.Revert(ctx, q.ID, 0)
	require.NoError(t, err)
	q, err = svc.DeleteLine(ctx, q.ID, widgetID)
	require.NoError(t, err)
	require.Len(t, q.Lines, 1)

	// Reverting to the post-invoice version recreates the line under a new id
	// and repoints the (voided) invoice lines to it.
	q, err = svc.Revert(ctx, q.ID, 1)
	require.NoError(t, err)
	require.Len(t, q.Lines, 2)

	var restored *LineItem
	for i := range q.Lines {
		if q.Lines[i].Description == "Widgets" {
			restored = &q.Lines[i]
		}
	}
	require.NotNil(t, restored)
	require.NotEqual(t, widgetID, restored.ID)
	// The invoice stays voided, so aggregates come back empty.
	require.Equal(t, 0, restored.QtyFulfilled)
	require.Equal(t, 5, restored.QtyPending)

	invs, err := svc.ListInvoices(ctx, q.ID)
	require.NoError(t, err)
	require.Len(t, invs, 1)
	require.Equal(t, restored.ID, invs[0].Lines[0].QuoteLineItemID)
}

func TestRevertIdempotentAggregates(t *testing.T) {
	run := func() Quote {
		svc := newQuoteService(newMemoryQuoteRepo(), testCatalog())
		ctx := context.Background()

		q := createTestQuote(t, svc,
			LineInput{ItemType: "misc", Description: "Widgets", Quantity: 5, UnitPrice: ptr(10.0)},
		)
		_, err := svc.CreateInvoice(ctx, q.ID, InvoiceRequest{
			ClientPONumber: "CPO-1",
			Lines:          []InvoiceLineInput{{LineItemID: q.Lines[0].ID, Qty: 2}},
		})
		require.NoError(t, err)
		q, err = svc.Revert(ctx, q.ID, 0)
		require.NoError(t, err)
		return q
	}

	first := run()
	second := run()
	require.Equal(t, first.Status, second.Status)
	require.Equal(t, first.Lines[0].QtyPending, second.Lines[0].QtyPending)
	require.Equal(t, first.Lines[0].QtyFulfilled, second.Lines[0].QtyFulfilled)
}

func TestRevertRejectsBadTargets(t *testing.T) {
	svc := newQuoteService(newMemoryQuoteRepo(), testCatalog())
	ctx := context.Background()

	q := createTestQuote(t, svc,
		LineInput{ItemType: "misc", Description: "Widgets", Quantity: 5, UnitPrice: ptr(10.0)},
	)
	_, err := svc.Revert(ctx, q.ID, 0)
	require.ErrorIs(t, err, shared.ErrInvalidRevert)

	q, err = svc.AddLine(ctx, q.ID, LineInput{ItemType: "misc", Description: "More", Quantity: 1, UnitPrice: ptr(1.0)})
	require.NoError(t, err)
	_, err = svc.Revert(ctx, q.ID, 5)
	require.ErrorIs(t, err, shared.ErrInvalidRevert)
}
