package purchaseorders

import (
	"context"
	"log/slog"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/quoteflow-erp/quoteflow/internal/shared"
)

type memoryPORepo struct {
	projects map[int64]Project
	vendors  map[int64]Vendor
	pos      map[int64]PurchaseOrder
	lines    map[int64]LineItem
	snaps    []Snapshot
	recs     map[int64]Receiving
	recLines map[int64]ReceivingLine
	nextID   int64
}

type memoryPOTx struct {
	repo *memoryPORepo
}

func newMemoryPORepo() *memoryPORepo {
	return &memoryPORepo{
		projects: map[int64]Project{1: {ID: 1, Code: "A2132", Name: "Plant Retrofit"}},
		vendors: map[int64]Vendor{
			1: {ID: 1, Name: "Acme Supply", IsVendor: true},
			2: {ID: 2, Name: "Some Customer", IsVendor: false},
		},
		pos:      make(map[int64]PurchaseOrder),
		lines:    make(map[int64]LineItem),
		recs:     make(map[int64]Receiving),
		recLines: make(map[int64]ReceivingLine),
	}
}

func (r *memoryPORepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &memoryPOTx{repo: r})
}

func (r *memoryPORepo) getPO(id int64) (PurchaseOrder, error) {
	po, ok := r.pos[id]
	if !ok {
		return PurchaseOrder{}, shared.ErrNotFound
	}
	po.Lines = r.linesOf(id)
	return po, nil
}

func (r *memoryPORepo) linesOf(poID int64) []LineItem {
	var out []LineItem
	for _, li := range r.lines {
		if li.PurchaseOrderID == poID {
			out = append(out, li)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *memoryPORepo) GetPurchaseOrder(ctx context.Context, id int64) (PurchaseOrder, error) {
	return r.getPO(id)
}

func (r *memoryPORepo) ListPurchaseOrders(ctx context.Context, projectID int64, limit, offset int) ([]PurchaseOrder, error) {
	var out []PurchaseOrder
	for id, po := range r.pos {
		if projectID != 0 && po.ProjectID != projectID {
			continue
		}
		po.Lines = r.linesOf(id)
		out = append(out, po)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (r *memoryPORepo) ListSnapshots(ctx context.Context, poID int64) ([]Snapshot, error) {
	var out []Snapshot
	for _, s := range r.snaps {
		if s.PurchaseOrderID == poID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *memoryPORepo) GetSnapshot(ctx context.Context, poID int64, version int) (Snapshot, error) {
	var found *Snapshot
	for i := range r.snaps {
		if r.snaps[i].PurchaseOrderID == poID && r.snaps[i].Version == version {
			found = &r.snaps[i]
		}
	}
	if found == nil {
		return Snapshot{}, shared.ErrNotFound
	}
	return *found, nil
}

func (r *memoryPORepo) recLinesOf(recID int64) []ReceivingLine {
	var out []ReceivingLine
	for _, rl := range r.recLines {
		if rl.ReceivingID == recID {
			out = append(out, rl)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *memoryPORepo) ListReceivings(ctx context.Context, poID int64) ([]Receiving, error) {
	var out []Receiving
	for id, rec := range r.recs {
		if rec.PurchaseOrderID == poID {
			rec.Lines = r.recLinesOf(id)
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memoryPORepo) ListActiveReceivingsAfter(ctx context.Context, poID int64, version int) ([]Receiving, error) {
	seen := make(map[int64]bool)
	var out []Receiving
	for _, s := range r.snaps {
		if s.PurchaseOrderID != poID || s.Version <= version || s.ReceivingID == nil {
			continue
		}
		rec := r.recs[*s.ReceivingID]
		if rec.Voided() || seen[rec.ID] {
			continue
		}
		seen[rec.ID] = true
		rec.Lines = r.recLinesOf(rec.ID)
		out = append(out, rec)
	}
	return out, nil
}

func (tx *memoryPOTx) id() int64 {
	tx.repo.nextID++
	return tx.repo.nextID
}

func (tx *memoryPOTx) LockProject(ctx context.Context, projectID int64) (Project, error) {
	p, ok := tx.repo.projects[projectID]
	if !ok {
		return Project{}, shared.ErrNotFound
	}
	return p, nil
}

func (tx *memoryPOTx) NextSequence(ctx context.Context, projectID int64) (int, error) {
	max := 0
	for _, po := range tx.repo.pos {
		if po.ProjectID == projectID && po.Sequence > max {
			max = po.Sequence
		}
	}
	return max + 1, nil
}

func (tx *memoryPOTx) GetVendor(ctx context.Context, id int64) (Vendor, error) {
	v, ok := tx.repo.vendors[id]
	if !ok {
		return Vendor{}, shared.ErrNotFound
	}
	return v, nil
}

func (tx *memoryPOTx) GetPurchaseOrder(ctx context.Context, id int64) (PurchaseOrder, error) {
	return tx.repo.getPO(id)
}

func (tx *memoryPOTx) InsertPurchaseOrder(ctx context.Context, po PurchaseOrder) (int64, error) {
	po.ID = tx.id()
	po.CreatedAt = time.Now()
	po.Lines = nil
	tx.repo.pos[po.ID] = po
	return po.ID, nil
}

func (tx *memoryPOTx) UpdatePurchaseOrder(ctx context.Context, po PurchaseOrder) error {
	stored, ok := tx.repo.pos[po.ID]
	if !ok {
		return shared.ErrNotFound
	}
	po.CreatedAt = stored.CreatedAt
	po.Lines = nil
	tx.repo.pos[po.ID] = po
	return nil
}

func (tx *memoryPOTx) DeletePurchaseOrder(ctx context.Context, id int64) error {
	if _, ok := tx.repo.pos[id]; !ok {
		return shared.ErrNotFound
	}
	delete(tx.repo.pos, id)
	for lid, li := range tx.repo.lines {
		if li.PurchaseOrderID == id {
			delete(tx.repo.lines, lid)
		}
	}
	return nil
}

func (tx *memoryPOTx) ListLines(ctx context.Context, poID int64) ([]LineItem, error) {
	return tx.repo.linesOf(poID), nil
}

func (tx *memoryPOTx) GetLine(ctx context.Context, poID, lineID int64) (LineItem, error) {
	li, ok := tx.repo.lines[lineID]
	if !ok || li.PurchaseOrderID != poID {
		return LineItem{}, shared.ErrNotFound
	}
	return li, nil
}

func (tx *memoryPOTx) InsertLine(ctx context.Context, li LineItem) (int64, error) {
	li.ID = tx.id()
	tx.repo.lines[li.ID] = li
	return li.ID, nil
}

func (tx *memoryPOTx) UpdateLine(ctx context.Context, li LineItem) error {
	if _, ok := tx.repo.lines[li.ID]; !ok {
		return shared.ErrNotFound
	}
	tx.repo.lines[li.ID] = li
	return nil
}

func (tx *memoryPOTx) DeleteLine(ctx context.Context, id int64) error {
	if _, ok := tx.repo.lines[id]; !ok {
		return shared.ErrNotFound
	}
	delete(tx.repo.lines, id)
	return nil
}

func (tx *memoryPOTx) InsertSnapshot(ctx context.Context, snap Snapshot) (int64, error) {
	snap.ID = tx.id()
	snap.CreatedAt = time.Now()
	tx.repo.snaps = append(tx.repo.snaps, snap)
	return snap.ID, nil
}

func (tx *memoryPOTx) InsertLineSnapshot(ctx context.Context, ls LineSnapshot) error {
	for i := range tx.repo.snaps {
		if tx.repo.snaps[i].ID == ls.SnapshotID {
			ls.ID = tx.id()
			tx.repo.snaps[i].Lines = append(tx.repo.snaps[i].Lines, ls)
			return nil
		}
	}
	return shared.ErrNotFound
}

func (tx *memoryPOTx) GetSnapshot(ctx context.Context, poID int64, version int) (Snapshot, error) {
	return tx.repo.GetSnapshot(ctx, poID, version)
}

func (tx *memoryPOTx) InsertReceiving(ctx context.Context, rec Receiving) (int64, error) {
	rec.ID = tx.id()
	rec.CreatedAt = time.Now()
	tx.repo.recs[rec.ID] = rec
	return rec.ID, nil
}

func (tx *memoryPOTx) InsertReceivingLine(ctx context.Context, rl ReceivingLine) (int64, error) {
	rl.ID = tx.id()
	tx.repo.recLines[rl.ID] = rl
	return rl.ID, nil
}

func (tx *memoryPOTx) ListActiveReceivingsAfter(ctx context.Context, poID int64, version int) ([]Receiving, error) {
	return tx.repo.ListActiveReceivingsAfter(ctx, poID, version)
}

func (tx *memoryPOTx) ListActiveReceivingLines(ctx context.Context, poID int64) ([]ReceivingLine, error) {
	var out []ReceivingLine
	for _, rl := range tx.repo.recLines {
		rec := tx.repo.recs[rl.ReceivingID]
		if rec.PurchaseOrderID == poID && !rec.Voided() {
			out = append(out, rl)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (tx *memoryPOTx) VoidReceiving(ctx context.Context, id int64, at time.Time) error {
	rec, ok := tx.repo.recs[id]
	if !ok {
		return shared.ErrNotFound
	}
	rec.VoidedAt = &at
	tx.repo.recs[id] = rec
	return nil
}

func (tx *memoryPOTx) SetReceivingVoidedBy(ctx context.Context, receivingIDs []int64, snapshotID int64) error {
	for _, id := range receivingIDs {
		rec := tx.repo.recs[id]
		rec.VoidedBySnapshotID = &snapshotID
		tx.repo.recs[id] = rec
	}
	return nil
}

func (tx *memoryPOTx) RepointReceivingLines(ctx context.Context, oldLineID, newLineID int64) error {
	for id, rl := range tx.repo.recLines {
		if rl.POLineItemID == oldLineID {
			rl.POLineItemID = newLineID
			tx.repo.recLines[id] = rl
		}
	}
	return nil
}

func newPOService(repo *memoryPORepo) *Service {
	return NewService(repo, slog.Default())
}

func ptr[T any](v T) *T { return &v }

func createTestPO(t *testing.T, svc *Service, lines ...LineInput) PurchaseOrder {
	t.Helper()
	po, err := svc.Create(context.Background(), CreatePORequest{
		ProjectID:       1,
		VendorID:        1,
		WorkDescription: "Retrofit materials",
		Lines:           lines,
	})
	require.NoError(t, err)
	return po
}

func markSent(t *testing.T, svc *Service, id int64) PurchaseOrder {
	t.Helper()
	po, err := svc.UpdateMeta(context.Background(), id, UpdatePORequest{Status: ptr("sent")})
	require.NoError(t, err)
	return po
}

func TestCreateAssignsSequenceAndSnapshot(t *testing.T) {
	repo := newMemoryPORepo()
	svc := newPOService(repo)

	first := createTestPO(t, svc, LineInput{ItemType: "misc", Description: "Widgets", Quantity: 10, UnitPrice: 5})
	second := createTestPO(t, svc)

	require.Equal(t, 1, first.Sequence)
	require.Equal(t, 2, second.Sequence)
	require.Equal(t, 0, first.CurrentVersion)
	require.Equal(t, "PO-A2132-0001-0", first.Number())
	require.Equal(t, StatusDraft, first.Status)
	require.Equal(t, 10, first.Lines[0].QtyPending)

	snaps, err := svc.ListSnapshots(context.Background(), first.ID)
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	require.Equal(t, ActionCreate, snaps[0].ActionType)
	require.Equal(t, 0, snaps[0].Version)
	require.Len(t, snaps[0].Lines, 1)
}

func TestCreateRejectsNonVendorProfile(t *testing.T) {
	svc := newPOService(newMemoryPORepo())

	_, err := svc.Create(context.Background(), CreatePORequest{ProjectID: 1, VendorID: 2})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestPartialReceivingTracksWeightedAverage(t *testing.T) {
	repo := newMemoryPORepo()
	svc := newPOService(repo)
	ctx := context.Background()

	po := createTestPO(t, svc, LineInput{ItemType: "misc", Description: "Bearings", Quantity: 10, UnitPrice: 5})
	markSent(t, svc, po.ID)
	lineID := po.Lines[0].ID

	_, err := svc.CreateReceiving(ctx, po.ID, ReceivingRequest{
		Lines: []ReceivingLineInput{{LineItemID: lineID, Qty: 6, ActualUnitPrice: ptr(5.50)}},
	})
	require.NoError(t, err)

	po, err = svc.Get(ctx, po.ID)
	require.NoError(t, err)
	require.Equal(t, StatusSent, po.Status)
	require.Equal(t, 1, po.CurrentVersion)
	require.Equal(t, 6, po.Lines[0].QtyReceived)
	require.Equal(t, 4, po.Lines[0].QtyPending)
	require.InDelta(t, 5.50, *po.Lines[0].ActualUnitPrice, 1e-9)

	_, err = svc.CreateReceiving(ctx, po.ID, ReceivingRequest{
		Lines: []ReceivingLineInput{{LineItemID: lineID, Qty: 4, ActualUnitPrice: ptr(6.00)}},
	})
	require.NoError(t, err)

	po, err = svc.Get(ctx, po.ID)
	require.NoError(t, err)
	require.Equal(t, StatusReceived, po.Status)
	require.Equal(t, 2, po.CurrentVersion)
	require.Equal(t, 10, po.Lines[0].QtyReceived)
	require.Equal(t, 0, po.Lines[0].QtyPending)
	require.InDelta(t, 5.70, *po.Lines[0].ActualUnitPrice, 1e-9)

	// The automatic move to received is its own snapshot on the same version.
	snaps, err := svc.ListSnapshots(ctx, po.ID)
	require.NoError(t, err)
	last := snaps[len(snaps)-1]
	require.Equal(t, ActionStatusChange, last.ActionType)
	require.Equal(t, 2, last.Version)
}

func TestReceivingRequiresSentOrder(t *testing.T) {
	svc := newPOService(newMemoryPORepo())
	po := createTestPO(t, svc, LineInput{ItemType: "misc", Description: "Bolts", Quantity: 5, UnitPrice: 1})

	_, err := svc.CreateReceiving(context.Background(), po.ID, ReceivingRequest{
		Lines: []ReceivingLineInput{{LineItemID: po.Lines[0].ID, Qty: 1}},
	})
	require.ErrorIs(t, err, shared.ErrDocumentLocked)
}

func TestReceivingValidatesAllOrNothing(t *testing.T) {
	repo := newMemoryPORepo()
	svc := newPOService(repo)
	ctx := context.Background()

	po := createTestPO(t, svc,
		LineInput{ItemType: "misc", Description: "Bolts", Quantity: 5, UnitPrice: 1},
		LineInput{ItemType: "misc", Description: "Nuts", Quantity: 3, UnitPrice: 2},
	)
	markSent(t, svc, po.ID)

	_, err := svc.CreateReceiving(ctx, po.ID, ReceivingRequest{
		Lines: []ReceivingLineInput{
			{LineItemID: po.Lines[0].ID, Qty: 2},
			{LineItemID: po.Lines[1].ID, Qty: 4},
		},
	})
	require.ErrorIs(t, err, shared.ErrQuantityConflict)

	// The valid first line must not have been applied.
	po, err = svc.Get(ctx, po.ID)
	require.NoError(t, err)
	require.Equal(t, 0, po.Lines[0].QtyReceived)
	recs, err := svc.ListReceivings(ctx, po.ID)
	require.NoError(t, err)
	require.Empty(t, recs)
}

func TestReceivingRejectsForeignLine(t *testing.T) {
	svc := newPOService(newMemoryPORepo())
	po := createTestPO(t, svc, LineInput{ItemType: "misc", Description: "Bolts", Quantity: 5, UnitPrice: 1})
	other := createTestPO(t, svc, LineInput{ItemType: "misc", Description: "Nuts", Quantity: 5, UnitPrice: 1})
	markSent(t, svc, po.ID)

	_, err := svc.CreateReceiving(context.Background(), po.ID, ReceivingRequest{
		Lines: []ReceivingLineInput{{LineItemID: other.Lines[0].ID, Qty: 1}},
	})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestLineEditsLockedOutsideDraft(t *testing.T) {
	svc := newPOService(newMemoryPORepo())
	po := createTestPO(t, svc, LineInput{ItemType: "misc", Description: "Bolts", Quantity: 5, UnitPrice: 1})
	markSent(t, svc, po.ID)

	_, err := svc.AddLine(context.Background(), po.ID, LineInput{ItemType: "misc", Description: "Late add", Quantity: 1, UnitPrice: 1})
	require.ErrorIs(t, err, shared.ErrDocumentLocked)

	_, err = svc.UpdateLine(context.Background(), po.ID, po.Lines[0].ID, LineEdit{ID: po.Lines[0].ID, Quantity: ptr(9)})
	require.ErrorIs(t, err, shared.ErrDocumentLocked)

	err = svc.Delete(context.Background(), po.ID)
	require.ErrorIs(t, err, shared.ErrDocumentLocked)
}

func TestDeleteLineSnapshotKeepsDeletedItem(t *testing.T) {
	svc := newPOService(newMemoryPORepo())
	ctx := context.Background()

	po := createTestPO(t, svc,
		LineInput{ItemType: "misc", Description: "Bolts", Quantity: 5, UnitPrice: 1},
		LineInput{ItemType: "misc", Description: "Nuts", Quantity: 3, UnitPrice: 2},
	)
	po, err := svc.DeleteLine(ctx, po.ID, po.Lines[0].ID)
	require.NoError(t, err)
	require.Len(t, po.Lines, 1)
	require.Equal(t, 1, po.CurrentVersion)

	snap, err := svc.GetSnapshot(ctx, po.ID, 1)
	require.NoError(t, err)
	require.Equal(t, ActionDelete, snap.ActionType)
	require.Len(t, snap.Lines, 2)

	var deleted *LineSnapshot
	for i := range snap.Lines {
		if snap.Lines[i].IsDeleted {
			deleted = &snap.Lines[i]
		}
	}
	require.NotNil(t, deleted)
	require.Equal(t, "Bolts", deleted.Description)
}

func TestCommitBatchIsOneVersion(t *testing.T) {
	svc := newPOService(newMemoryPORepo())
	ctx := context.Background()

	po := createTestPO(t, svc,
		LineInput{ItemType: "misc", Description: "Bolts", Quantity: 5, UnitPrice: 1},
		LineInput{ItemType: "misc", Description: "Nuts", Quantity: 3, UnitPrice: 2},
	)
	po, err := svc.CommitBatch(ctx, po.ID, BatchRequest{
		Deletes: []int64{po.Lines[0].ID},
		Edits:   []LineEdit{{ID: po.Lines[1].ID, Quantity: ptr(7)}},
		Adds:    []LineInput{{ItemType: "misc", Description: "Washers", Quantity: 20, UnitPrice: 0.1}},
	})
	require.NoError(t, err)
	require.Equal(t, 1, po.CurrentVersion)
	require.Len(t, po.Lines, 2)
	require.Equal(t, 7, po.Lines[0].Quantity)
	require.Equal(t, 7, po.Lines[0].QtyPending)

	_, err = svc.CommitBatch(ctx, po.ID, BatchRequest{})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestRevertRestoresQuantitiesAndStatus(t *testing.T) {
	repo := newMemoryPORepo()
	svc := newPOService(repo)
	ctx := context.Background()

	po := createTestPO(t, svc, LineInput{ItemType: "misc", Description: "Bearings", Quantity: 10, UnitPrice: 5})
	markSent(t, svc, po.ID)
	lineID := po.Lines[0].ID

	_, err := svc.CreateReceiving(ctx, po.ID, ReceivingRequest{
		Lines: []ReceivingLineInput{{LineItemID: lineID, Qty: 6, ActualUnitPrice: ptr(5.50)}},
	})
	require.NoError(t, err)
	_, err = svc.CreateReceiving(ctx, po.ID, ReceivingRequest{
		Lines: []ReceivingLineInput{{LineItemID: lineID, Qty: 4, ActualUnitPrice: ptr(6.00)}},
	})
	require.NoError(t, err)

	preview, err := svc.PreviewRevert(ctx, po.ID, 0)
	require.NoError(t, err)
	require.Len(t, preview.ReceivingsToVoid, 2)

	po, err = svc.Revert(ctx, po.ID, 0)
	require.NoError(t, err)
	require.Equal(t, StatusDraft, po.Status)
	require.Equal(t, 3, po.CurrentVersion)
	require.Equal(t, 0, po.Lines[0].QtyReceived)
	require.Equal(t, 10, po.Lines[0].QtyPending)
	require.Nil(t, po.Lines[0].ActualUnitPrice)

	recs, err := svc.ListReceivings(ctx, po.ID)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	for _, rec := range recs {
		require.True(t, rec.Voided())
		require.NotNil(t, rec.VoidedBySnapshotID)
	}
}

func TestRevertRecreatesDeletedLineAndRepointsEvents(t *testing.T) {
	repo := newMemoryPORepo()
	svc := newPOService(repo)
	ctx := context.Background()

	po := createTestPO(t, svc,
		LineInput{ItemType: "misc", Description: "Bolts", Quantity: 5, UnitPrice: 1},
		LineInput{ItemType: "misc", Description: "Nuts", Quantity: 3, UnitPrice: 2},
	)
	boltID := po.Lines[0].ID
	markSent(t, svc, po.ID)

	_, err := svc.CreateReceiving(ctx, po.ID, ReceivingRequest{
		Lines: []ReceivingLineInput{{LineItemID: boltID, Qty: 2, ActualUnitPrice: ptr(1.10)}},
	})
	require.NoError(t, err)

	// Undo the receiving so the order lands back in draft, then delete the
	// line while edits are unlocked.
	_, err = svc.Revert(ctx, po.ID, 0)
	require.NoError(t, err)
	po, err = svc.DeleteLine(ctx, po.ID, boltID)
	require.NoError(t, err)
	require.Len(t, po.Lines, 1)

	// Version 1 is the receive snapshot; reverting to it must bring the
	// deleted line back under a fresh id and drag its receiving lines along.
	po, err = svc.Revert(ctx, po.ID, 1)
	require.NoError(t, err)
	require.Len(t, po.Lines, 2)
	require.Equal(t, 4, po.CurrentVersion)

	var restored *LineItem
	for i := range po.Lines {
		if po.Lines[i].Description == "Bolts" {
			restored = &po.Lines[i]
		}
	}
	require.NotNil(t, restored)
	require.NotEqual(t, boltID, restored.ID)
	// The receiving stays voided, so the recomputed aggregates are empty.
	require.Equal(t, 0, restored.QtyReceived)
	require.Equal(t, 5, restored.QtyPending)
	require.Nil(t, restored.ActualUnitPrice)
	require.Equal(t, StatusDraft, po.Status)

	recs, err := svc.ListReceivings(ctx, po.ID)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	require.True(t, recs[0].Voided())
	require.Equal(t, restored.ID, recs[0].Lines[0].POLineItemID)
}

func TestReceivingDuplicateLineEntriesShareOnePendingBudget(t *testing.T) {
	svc := newPOService(newMemoryPORepo())
	ctx := context.Background()

	po := createTestPO(t, svc, LineInput{ItemType: "misc", Description: "Bolts", Quantity: 5, UnitPrice: 1})
	markSent(t, svc, po.ID)
	lineID := po.Lines[0].ID

	// Each entry fits the line's pending on its own; together they exceed it.
	_, err := svc.CreateReceiving(ctx, po.ID, ReceivingRequest{
		Lines: []ReceivingLineInput{
			{LineItemID: lineID, Qty: 4},
			{LineItemID: lineID, Qty: 4},
		},
	})
	require.ErrorIs(t, err, shared.ErrQuantityConflict)

	po, err = svc.Get(ctx, po.ID)
	require.NoError(t, err)
	require.Equal(t, 0, po.Lines[0].QtyReceived)
	require.Equal(t, 5, po.Lines[0].QtyPending)
	require.Equal(t, 0, po.CurrentVersion)

	// Duplicates that do fit apply cumulatively.
	_, err = svc.CreateReceiving(ctx, po.ID, ReceivingRequest{
		Lines: []ReceivingLineInput{
			{LineItemID: lineID, Qty: 2},
			{LineItemID: lineID, Qty: 3},
		},
	})
	require.NoError(t, err)

	po, err = svc.Get(ctx, po.ID)
	require.NoError(t, err)
	require.Equal(t, 5, po.Lines[0].QtyReceived)
	require.Equal(t, 0, po.Lines[0].QtyPending)
	require.Equal(t, StatusReceived, po.Status)
}

func TestReceivingRejectsNonPositiveQuantity(t *testing.T) {
	svc := newPOService(newMemoryPORepo())
	ctx := context.Background()

	po := createTestPO(t, svc, LineInput{ItemType: "misc", Description: "Bolts", Quantity: 5, UnitPrice: 1})
	markSent(t, svc, po.ID)

	for _, qty := range []int{0, -2} {
		_, err := svc.CreateReceiving(ctx, po.ID, ReceivingRequest{
			Lines: []ReceivingLineInput{{LineItemID: po.Lines[0].ID, Qty: qty}},
		})
		require.ErrorIs(t, err, shared.ErrValidation)
	}

	po, err := svc.Get(ctx, po.ID)
	require.NoError(t, err)
	require.Equal(t, 0, po.Lines[0].QtyReceived)
}

func TestUpdateMetaRejectsBackwardStatus(t *testing.T) {
	svc := newPOService(newMemoryPORepo())
	ctx := context.Background()

	po := createTestPO(t, svc, LineInput{ItemType: "misc", Description: "Bolts", Quantity: 5, UnitPrice: 1})
	markSent(t, svc, po.ID)

	_, err := svc.UpdateMeta(ctx, po.ID, UpdatePORequest{Status: ptr("draft")})
	require.ErrorIs(t, err, shared.ErrDocumentLocked)

	// Skipping forward is fine; walking back from closed is not.
	po, err = svc.UpdateMeta(ctx, po.ID, UpdatePORequest{Status: ptr("closed")})
	require.NoError(t, err)
	require.Equal(t, StatusClosed, po.Status)

	_, err = svc.UpdateMeta(ctx, po.ID, UpdatePORequest{Status: ptr("received")})
	require.ErrorIs(t, err, shared.ErrDocumentLocked)

	po, err = svc.Get(ctx, po.ID)
	require.NoError(t, err)
	require.Equal(t, StatusClosed, po.Status)
}

func TestRevertRejectsBadTargets(t *testing.T) {
	svc := newPOService(newMemoryPORepo())
	ctx := context.Background()

	po := createTestPO(t, svc, LineInput{ItemType: "misc", Description: "Bolts", Quantity: 5, UnitPrice: 1})

	_, err := svc.Revert(ctx, po.ID, 0)
	require.ErrorIs(t, err, shared.ErrInvalidRevert)

	po, err = svc.AddLine(ctx, po.ID, LineInput{ItemType: "misc", Description: "Nuts", Quantity: 1, UnitPrice: 1})
	require.NoError(t, err)
	require.Equal(t, 1, po.CurrentVersion)

	_, err = svc.Revert(ctx, po.ID, 1)
	require.ErrorIs(t, err, shared.ErrInvalidRevert)
	_, err = svc.Revert(ctx, po.ID, -3)
	require.ErrorIs(t, err, shared.ErrInvalidRevert)
}

func TestStatusChangeDoesNotIncrementVersion(t *testing.T) {
	svc := newPOService(newMemoryPORepo())
	ctx := context.Background()

	po := createTestPO(t, svc, LineInput{ItemType: "misc", Description: "Bolts", Quantity: 5, UnitPrice: 1})
	po = markSent(t, svc, po.ID)
	require.Equal(t, 0, po.CurrentVersion)

	snaps, err := svc.ListSnapshots(ctx, po.ID)
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	require.Equal(t, ActionStatusChange, snaps[1].ActionType)
	require.Equal(t, 0, snaps[1].Version)
}
