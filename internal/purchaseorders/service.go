package purchaseorders

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/quoteflow-erp/quoteflow/internal/shared"
	"github.com/quoteflow-erp/quoteflow/internal/versioning"
)

// Service implements the purchase order engine: document CRUD, receiving, and
// version revert. Every mutation runs in one transaction together with the
// snapshot that records it.
type Service struct {
	repo RepositoryPort
	log  *slog.Logger
}

func NewService(repo RepositoryPort, log *slog.Logger) *Service {
	return &Service{repo: repo, log: log}
}

func lineFromInput(poID int64, in LineInput) LineItem {
	return LineItem{
		PurchaseOrderID: poID,
		ItemType:        ItemType(in.ItemType),
		PartID:          in.PartID,
		Description:     in.Description,
		Quantity:        in.Quantity,
		UnitPrice:       in.UnitPrice,
		QtyPending:      in.Quantity,
	}
}

func lineToSnapshot(snapshotID int64, li LineItem, deleted bool) LineSnapshot {
	return LineSnapshot{
		SnapshotID:         snapshotID,
		OriginalLineItemID: li.ID,
		ItemType:           li.ItemType,
		PartID:             li.PartID,
		Description:        li.Description,
		Quantity:           li.Quantity,
		UnitPrice:          li.UnitPrice,
		QtyPending:         li.QtyPending,
		QtyReceived:        li.QtyReceived,
		ActualUnitPrice:    li.ActualUnitPrice,
		IsDeleted:          deleted,
	}
}

// snapshot captures the full current line-item state as a new snapshot row.
// Edits, deletes, receivings and reverts increment the version first; create
// and status_change snapshots share the version already on the document.
// Deleted items are appended with is_deleted set so the capture still shows
// what was removed.
func (s *Service) snapshot(ctx context.Context, tx TxRepository, po *PurchaseOrder, action ActionType, desc string, receivingID *int64, deleted []LineItem) (int64, error) {
	if action != ActionCreate && action != ActionStatusChange {
		po.CurrentVersion++
	}
	if err := tx.UpdatePurchaseOrder(ctx, *po); err != nil {
		return 0, err
	}

	snapID, err := tx.InsertSnapshot(ctx, Snapshot{
		PurchaseOrderID:   po.ID,
		Version:           po.CurrentVersion,
		ActionType:        action,
		ActionDescription: desc,
		ReceivingID:       receivingID,
	})
	if err != nil {
		return 0, err
	}

	lines, err := tx.ListLines(ctx, po.ID)
	if err != nil {
		return 0, err
	}
	for _, li := range lines {
		if err := tx.InsertLineSnapshot(ctx, lineToSnapshot(snapID, li, false)); err != nil {
			return 0, err
		}
	}
	for _, li := range deleted {
		if err := tx.InsertLineSnapshot(ctx, lineToSnapshot(snapID, li, true)); err != nil {
			return 0, err
		}
	}
	return snapID, nil
}

// Create allocates the next per-project sequence under the project row lock
// and records the version-0 create snapshot.
func (s *Service) Create(ctx context.Context, req CreatePORequest) (PurchaseOrder, error) {
	var out PurchaseOrder
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		project, err := tx.LockProject(ctx, req.ProjectID)
		if err != nil {
			return err
		}
		vendor, err := tx.GetVendor(ctx, req.VendorID)
		if err != nil {
			return err
		}
		if !vendor.IsVendor {
			return fmt.Errorf("profile %q is not a vendor: %w", vendor.Name, shared.ErrValidation)
		}

		seq, err := tx.NextSequence(ctx, req.ProjectID)
		if err != nil {
			return err
		}

		po := PurchaseOrder{
			ProjectID:            req.ProjectID,
			ProjectCode:          project.Code,
			VendorID:             req.VendorID,
			Sequence:             seq,
			Status:               StatusDraft,
			CurrentVersion:       0,
			WorkDescription:      req.WorkDescription,
			VendorPONumber:       req.VendorPONumber,
			ExpectedDeliveryDate: req.ExpectedDeliveryDate,
		}
		po.ID, err = tx.InsertPurchaseOrder(ctx, po)
		if err != nil {
			return err
		}

		for _, in := range req.Lines {
			if _, err := tx.InsertLine(ctx, lineFromInput(po.ID, in)); err != nil {
				return err
			}
		}

		desc := fmt.Sprintf("Purchase order created with %d line item(s)", len(req.Lines))
		if _, err := s.snapshot(ctx, tx, &po, ActionCreate, desc, nil, nil); err != nil {
			return err
		}

		out, err = tx.GetPurchaseOrder(ctx, po.ID)
		return err
	})
	if err != nil {
		return PurchaseOrder{}, err
	}
	s.log.InfoContext(ctx, "purchase order created",
		"po_id", out.ID, "po_number", out.Number(), "vendor_id", out.VendorID)
	return out, nil
}

func (s *Service) Get(ctx context.Context, id int64) (PurchaseOrder, error) {
	return s.repo.GetPurchaseOrder(ctx, id)
}

func (s *Service) List(ctx context.Context, projectID int64, limit, offset int) ([]PurchaseOrder, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.ListPurchaseOrders(ctx, projectID, limit, offset)
}

// UpdateMeta changes header fields and status. Header fields are editable only
// while the order is a draft; status may move at any time and records a
// non-incrementing status_change snapshot.
func (s *Service) UpdateMeta(ctx context.Context, id int64, req UpdatePORequest) (PurchaseOrder, error) {
	var out PurchaseOrder
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		po, err := tx.GetPurchaseOrder(ctx, id)
		if err != nil {
			return err
		}

		headerEdit := req.VendorID != nil || req.WorkDescription != nil ||
			req.VendorPONumber != nil || req.ExpectedDeliveryDate != nil
		if headerEdit && po.Status != StatusDraft {
			return fmt.Errorf("purchase order %s is %s and can no longer be edited: %w",
				po.Number(), po.Status, shared.ErrDocumentLocked)
		}

		if req.VendorID != nil {
			vendor, err := tx.GetVendor(ctx, *req.VendorID)
			if err != nil {
				return err
			}
			if !vendor.IsVendor {
				return fmt.Errorf("profile %q is not a vendor: %w", vendor.Name, shared.ErrValidation)
			}
			po.VendorID = *req.VendorID
		}
		if req.WorkDescription != nil {
			po.WorkDescription = *req.WorkDescription
		}
		if req.VendorPONumber != nil {
			po.VendorPONumber = *req.VendorPONumber
		}
		if req.ExpectedDeliveryDate != nil {
			po.ExpectedDeliveryDate = req.ExpectedDeliveryDate
		}

		var statusChanged bool
		var prev Status
		if req.Status != nil && Status(*req.Status) != po.Status {
			next := Status(*req.Status)
			if !ValidStatus(next) {
				return fmt.Errorf("unknown status %q: %w", next, shared.ErrValidation)
			}
			if statusRank[next] < statusRank[po.Status] {
				return fmt.Errorf("purchase order %s cannot move back from %s to %s; revert to an earlier version instead: %w",
					po.Number(), po.Status, next, shared.ErrDocumentLocked)
			}
			prev, po.Status = po.Status, next
			statusChanged = true
		}

		if err := tx.UpdatePurchaseOrder(ctx, po); err != nil {
			return err
		}
		if statusChanged {
			desc := fmt.Sprintf("Status changed from %s to %s", prev, po.Status)
			if _, err := s.snapshot(ctx, tx, &po, ActionStatusChange, desc, nil, nil); err != nil {
				return err
			}
		}

		out, err = tx.GetPurchaseOrder(ctx, id)
		return err
	})
	return out, err
}

// Delete removes a draft order entirely, snapshots included.
func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		po, err := tx.GetPurchaseOrder(ctx, id)
		if err != nil {
			return err
		}
		if po.Status != StatusDraft {
			return fmt.Errorf("purchase order %s is %s and cannot be deleted: %w",
				po.Number(), po.Status, shared.ErrDocumentLocked)
		}
		return tx.DeletePurchaseOrder(ctx, id)
	})
}

func (s *Service) requireDraft(po PurchaseOrder) error {
	if po.Status != StatusDraft {
		return fmt.Errorf("purchase order %s is %s and its line items are locked: %w",
			po.Number(), po.Status, shared.ErrDocumentLocked)
	}
	return nil
}

// AddLine appends one line item and records an edit snapshot.
func (s *Service) AddLine(ctx context.Context, poID int64, in LineInput) (PurchaseOrder, error) {
	var out PurchaseOrder
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		po, err := tx.GetPurchaseOrder(ctx, poID)
		if err != nil {
			return err
		}
		if err := s.requireDraft(po); err != nil {
			return err
		}

		li := lineFromInput(po.ID, in)
		if _, err := tx.InsertLine(ctx, li); err != nil {
			return err
		}

		desc := fmt.Sprintf("Added %q (qty %d at %s)",
			li.Description, li.Quantity, shared.FormatMoney(li.UnitPrice))
		if _, err := s.snapshot(ctx, tx, &po, ActionEdit, desc, nil, nil); err != nil {
			return err
		}
		out, err = tx.GetPurchaseOrder(ctx, poID)
		return err
	})
	return out, err
}

// UpdateLine edits one line item and records an edit snapshot.
func (s *Service) UpdateLine(ctx context.Context, poID, lineID int64, edit LineEdit) (PurchaseOrder, error) {
	var out PurchaseOrder
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		po, err := tx.GetPurchaseOrder(ctx, poID)
		if err != nil {
			return err
		}
		if err := s.requireDraft(po); err != nil {
			return err
		}

		li, err := tx.GetLine(ctx, poID, lineID)
		if err != nil {
			return err
		}
		applyLineEdit(&li, edit)
		if err := tx.UpdateLine(ctx, li); err != nil {
			return err
		}

		desc := fmt.Sprintf("Edited %q (qty %d at %s)",
			li.Description, li.Quantity, shared.FormatMoney(li.UnitPrice))
		if _, err := s.snapshot(ctx, tx, &po, ActionEdit, desc, nil, nil); err != nil {
			return err
		}
		out, err = tx.GetPurchaseOrder(ctx, poID)
		return err
	})
	return out, err
}

func applyLineEdit(li *LineItem, edit LineEdit) {
	if edit.Description != nil {
		li.Description = *edit.Description
	}
	if edit.Quantity != nil {
		li.Quantity = *edit.Quantity
		li.QtyPending = versioning.PendingAfter(li.Quantity, li.QtyReceived)
	}
	if edit.UnitPrice != nil {
		li.UnitPrice = *edit.UnitPrice
	}
}

// DeleteLine removes one line item; the delete snapshot still carries the
// removed item, flagged is_deleted.
func (s *Service) DeleteLine(ctx context.Context, poID, lineID int64) (PurchaseOrder, error) {
	var out PurchaseOrder
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		po, err := tx.GetPurchaseOrder(ctx, poID)
		if err != nil {
			return err
		}
		if err := s.requireDraft(po); err != nil {
			return err
		}

		li, err := tx.GetLine(ctx, poID, lineID)
		if err != nil {
			return err
		}
		if err := tx.DeleteLine(ctx, li.ID); err != nil {
			return err
		}

		desc := fmt.Sprintf("Deleted %q (qty %d)", li.Description, li.Quantity)
		if _, err := s.snapshot(ctx, tx, &po, ActionDelete, desc, nil, []LineItem{li}); err != nil {
			return err
		}
		out, err = tx.GetPurchaseOrder(ctx, poID)
		return err
	})
	return out, err
}

// CommitBatch applies a mixed set of deletes, edits and adds as a single
// version increment with one snapshot. Deletes run first so an edit and a
// delete of the same line cannot race inside the batch.
func (s *Service) CommitBatch(ctx context.Context, poID int64, req BatchRequest) (PurchaseOrder, error) {
	var out PurchaseOrder
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		po, err := tx.GetPurchaseOrder(ctx, poID)
		if err != nil {
			return err
		}
		if err := s.requireDraft(po); err != nil {
			return err
		}

		var deleted []LineItem
		for _, id := range req.Deletes {
			li, err := tx.GetLine(ctx, poID, id)
			if err != nil {
				return err
			}
			if err := tx.DeleteLine(ctx, li.ID); err != nil {
				return err
			}
			deleted = append(deleted, li)
		}
		for _, edit := range req.Edits {
			li, err := tx.GetLine(ctx, poID, edit.ID)
			if err != nil {
				return err
			}
			applyLineEdit(&li, edit)
			if err := tx.UpdateLine(ctx, li); err != nil {
				return err
			}
		}
		for _, in := range req.Adds {
			if _, err := tx.InsertLine(ctx, lineFromInput(poID, in)); err != nil {
				return err
			}
		}

		var parts []string
		if n := len(req.Deletes); n > 0 {
			parts = append(parts, fmt.Sprintf("%d deleted", n))
		}
		if n := len(req.Edits); n > 0 {
			parts = append(parts, fmt.Sprintf("%d edited", n))
		}
		if n := len(req.Adds); n > 0 {
			parts = append(parts, fmt.Sprintf("%d added", n))
		}
		if len(parts) == 0 {
			return fmt.Errorf("empty batch: %w", shared.ErrValidation)
		}

		desc := "Line items updated: " + strings.Join(parts, ", ")
		if _, err := s.snapshot(ctx, tx, &po, ActionEdit, desc, nil, deleted); err != nil {
			return err
		}
		out, err = tx.GetPurchaseOrder(ctx, poID)
		return err
	})
	return out, err
}

// CreateReceiving records a delivery against the order. Quantities are
// validated all-or-nothing before any write; per-line running totals, the
// weighted-average realized price and the receive snapshot all commit
// atomically. When the last pending unit arrives the order moves to received
// with an extra status_change snapshot.
func (s *Service) CreateReceiving(ctx context.Context, poID int64, req ReceivingRequest) (Receiving, error) {
	var recID int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		po, err := tx.GetPurchaseOrder(ctx, poID)
		if err != nil {
			return err
		}
		if po.Status != StatusSent && po.Status != StatusReceived {
			return fmt.Errorf("purchase order %s is %s; receiving requires a sent order: %w",
				po.Number(), po.Status, shared.ErrDocumentLocked)
		}

		lineByID := make(map[int64]LineItem, len(po.Lines))
		for _, li := range po.Lines {
			lineByID[li.ID] = li
		}

		// Validate the whole batch before touching anything. Pending is
		// consumed per line across entries, so duplicates naming the same
		// line cannot pass individually and over-consume together.
		remaining := make(map[int64]int, len(req.Lines))
		for _, in := range req.Lines {
			li, ok := lineByID[in.LineItemID]
			if !ok {
				return fmt.Errorf("line item %d does not belong to purchase order %s: %w",
					in.LineItemID, po.Number(), shared.ErrValidation)
			}
			if in.Qty <= 0 {
				return fmt.Errorf("line %q: received quantity must be at least 1: %w",
					li.Description, shared.ErrValidation)
			}
			left, seen := remaining[in.LineItemID]
			if !seen {
				left = li.QtyPending
			}
			if in.Qty > left {
				return fmt.Errorf("line %q: receiving %d exceeds pending %d: %w",
					li.Description, in.Qty, left, shared.ErrQuantityConflict)
			}
			remaining[in.LineItemID] = left - in.Qty
		}

		receivedDate := time.Now().UTC()
		if req.ReceivedDate != nil {
			receivedDate = *req.ReceivedDate
		}
		recID, err = tx.InsertReceiving(ctx, Receiving{
			PurchaseOrderID: po.ID,
			ReceivedDate:    receivedDate,
			Notes:           req.Notes,
		})
		if err != nil {
			return err
		}

		total := 0
		for _, in := range req.Lines {
			li := lineByID[in.LineItemID]
			li.QtyReceived += in.Qty
			li.QtyPending = versioning.PendingAfter(li.Quantity, li.QtyReceived)

			if _, err := tx.InsertReceivingLine(ctx, ReceivingLine{
				ReceivingID:      recID,
				POLineItemID:     li.ID,
				ItemType:         li.ItemType,
				PartID:           li.PartID,
				Description:      li.Description,
				UnitPrice:        li.UnitPrice,
				ActualUnitPrice:  in.ActualUnitPrice,
				QtyOrdered:       li.Quantity,
				QtyThisReceiving: in.Qty,
				QtyReceivedTotal: li.QtyReceived,
				QtyPendingAfter:  li.QtyPending,
			}); err != nil {
				return err
			}

			lineByID[in.LineItemID] = li
			total += in.Qty
		}

		// Realized unit price is the weighted average over all non-voided
		// receiving lines that recorded a price.
		active, err := tx.ListActiveReceivingLines(ctx, po.ID)
		if err != nil {
			return err
		}
		cons := consumptionsByLine(active)
		for _, in := range req.Lines {
			li := lineByID[in.LineItemID]
			li.ActualUnitPrice = versioning.WeightedAverage(cons[li.ID])
			if err := tx.UpdateLine(ctx, li); err != nil {
				return err
			}
			lineByID[in.LineItemID] = li
		}

		desc := fmt.Sprintf("Received %d item(s) across %d line(s)", total, len(req.Lines))
		if _, err := s.snapshot(ctx, tx, &po, ActionReceive, desc, &recID, nil); err != nil {
			return err
		}

		lines, err := tx.ListLines(ctx, po.ID)
		if err != nil {
			return err
		}
		if fullyReceived(lines) && po.Status != StatusReceived {
			prev := po.Status
			po.Status = StatusReceived
			desc := fmt.Sprintf("Status changed from %s to %s (all items received)", prev, po.Status)
			if _, err := s.snapshot(ctx, tx, &po, ActionStatusChange, desc, nil, nil); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return Receiving{}, err
	}

	s.log.InfoContext(ctx, "receiving recorded", "po_id", poID, "receiving_id", recID)
	return s.getReceiving(ctx, poID, recID)
}

func (s *Service) getReceiving(ctx context.Context, poID, recID int64) (Receiving, error) {
	recs, err := s.repo.ListReceivings(ctx, poID)
	if err != nil {
		return Receiving{}, err
	}
	for _, r := range recs {
		if r.ID == recID {
			return r, nil
		}
	}
	return Receiving{}, fmt.Errorf("receiving %d: %w", recID, shared.ErrNotFound)
}

func (s *Service) ListReceivings(ctx context.Context, poID int64) ([]Receiving, error) {
	if _, err := s.repo.GetPurchaseOrder(ctx, poID); err != nil {
		return nil, err
	}
	return s.repo.ListReceivings(ctx, poID)
}

func (s *Service) ListSnapshots(ctx context.Context, poID int64) ([]Snapshot, error) {
	if _, err := s.repo.GetPurchaseOrder(ctx, poID); err != nil {
		return nil, err
	}
	return s.repo.ListSnapshots(ctx, poID)
}

func (s *Service) GetSnapshot(ctx context.Context, poID int64, version int) (Snapshot, error) {
	if _, err := s.repo.GetPurchaseOrder(ctx, poID); err != nil {
		return Snapshot{}, err
	}
	return s.repo.GetSnapshot(ctx, poID, version)
}

func consumptionsByLine(lines []ReceivingLine) map[int64][]versioning.Consumption {
	out := make(map[int64][]versioning.Consumption)
	for _, rl := range lines {
		out[rl.POLineItemID] = append(out[rl.POLineItemID], versioning.Consumption{
			Qty:   rl.QtyThisReceiving,
			Price: rl.ActualUnitPrice,
		})
	}
	return out
}

func (s *Service) validateRevertTarget(po PurchaseOrder, version int) error {
	if version >= po.CurrentVersion {
		return fmt.Errorf("target version %d is not older than current version %d: %w",
			version, po.CurrentVersion, shared.ErrInvalidRevert)
	}
	if version < 0 {
		return fmt.Errorf("target version %d: %w", version, shared.ErrInvalidRevert)
	}
	return nil
}

// PreviewRevert reports what reverting to the given version would void,
// without changing anything.
func (s *Service) PreviewRevert(ctx context.Context, poID int64, version int) (RevertPreview, error) {
	po, err := s.repo.GetPurchaseOrder(ctx, poID)
	if err != nil {
		return RevertPreview{}, err
	}
	if err := s.validateRevertTarget(po, version); err != nil {
		return RevertPreview{}, err
	}
	if _, err := s.repo.GetSnapshot(ctx, poID, version); err != nil {
		return RevertPreview{}, fmt.Errorf("no snapshot for version %d: %w", version, shared.ErrInvalidRevert)
	}

	recs, err := s.repo.ListActiveReceivingsAfter(ctx, poID, version)
	if err != nil {
		return RevertPreview{}, err
	}
	preview := RevertPreview{
		TargetVersion:  version,
		CurrentVersion: po.CurrentVersion,
	}
	for _, r := range recs {
		preview.ReceivingsToVoid = append(preview.ReceivingsToVoid, r.ID)
		preview.Warnings = append(preview.Warnings,
			fmt.Sprintf("receiving %d from %s will be voided", r.ID, r.ReceivedDate.Format("2006-01-02")))
	}
	return preview, nil
}

// Revert restores the order's line items to the state captured at the target
// version. Receivings recorded after that version are voided, live rows are
// reconciled against the snapshot by original line-item identity, receiving
// lines of recreated rows are repointed, and quantities, realized prices and
// status are recomputed from the surviving events. The revert itself is
// recorded as a new snapshot; history is never rewritten.
func (s *Service) Revert(ctx context.Context, poID int64, version int) (PurchaseOrder, error) {
	var out PurchaseOrder
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		po, err := tx.GetPurchaseOrder(ctx, poID)
		if err != nil {
			return err
		}
		if err := s.validateRevertTarget(po, version); err != nil {
			return err
		}
		target, err := tx.GetSnapshot(ctx, poID, version)
		if err != nil {
			return fmt.Errorf("no snapshot for version %d: %w", version, shared.ErrInvalidRevert)
		}

		// Step 1: void fulfillment recorded after the target version.
		toVoid, err := tx.ListActiveReceivingsAfter(ctx, poID, version)
		if err != nil {
			return err
		}
		now := time.Now().UTC()
		voidedIDs := make([]int64, 0, len(toVoid))
		for _, r := range toVoid {
			if err := tx.VoidReceiving(ctx, r.ID, now); err != nil {
				return err
			}
			voidedIDs = append(voidedIDs, r.ID)
		}

		// Step 2: reconcile live line items against the snapshot.
		live, err := tx.ListLines(ctx, poID)
		if err != nil {
			return err
		}
		liveByID := make(map[int64]LineItem, len(live))
		liveIDs := make([]int64, 0, len(live))
		for _, li := range live {
			liveByID[li.ID] = li
			liveIDs = append(liveIDs, li.ID)
		}

		snapByOrig := make(map[int64]LineSnapshot)
		snapIDs := make([]int64, 0, len(target.Lines))
		for _, ls := range target.Lines {
			if ls.IsDeleted {
				continue
			}
			snapByOrig[ls.OriginalLineItemID] = ls
			snapIDs = append(snapIDs, ls.OriginalLineItemID)
		}

		plan := versioning.PlanRestore(liveIDs, snapIDs)

		for _, id := range plan.Updates {
			li := liveByID[id]
			restoreLine(&li, snapByOrig[id])
			if err := tx.UpdateLine(ctx, li); err != nil {
				return err
			}
		}
		remap := make(map[int64]int64, len(plan.Creates))
		for _, origID := range plan.Creates {
			ls := snapByOrig[origID]
			li := LineItem{PurchaseOrderID: poID}
			restoreLine(&li, ls)
			newID, err := tx.InsertLine(ctx, li)
			if err != nil {
				return err
			}
			remap[origID] = newID
		}
		for _, id := range plan.Deletes {
			if err := tx.DeleteLine(ctx, id); err != nil {
				return err
			}
		}

		// Step 3: surviving receiving lines that referenced a recreated row
		// must follow it to its new id.
		origIDs := make([]int64, 0, len(remap))
		for origID := range remap {
			origIDs = append(origIDs, origID)
		}
		sort.Slice(origIDs, func(i, j int) bool { return origIDs[i] < origIDs[j] })
		for _, origID := range origIDs {
			if err := tx.RepointReceivingLines(ctx, origID, remap[origID]); err != nil {
				return err
			}
		}

		// Step 4: recompute quantities and realized prices from the surviving
		// events only.
		active, err := tx.ListActiveReceivingLines(ctx, poID)
		if err != nil {
			return err
		}
		cons := consumptionsByLine(active)
		lines, err := tx.ListLines(ctx, poID)
		if err != nil {
			return err
		}
		for _, li := range lines {
			li.QtyReceived = versioning.SumQuantity(cons[li.ID])
			li.QtyPending = versioning.PendingAfter(li.Quantity, li.QtyReceived)
			li.ActualUnitPrice = versioning.WeightedAverage(cons[li.ID])
			if err := tx.UpdateLine(ctx, li); err != nil {
				return err
			}
		}

		// Step 5: status follows the recomputed aggregates.
		lines, err = tx.ListLines(ctx, poID)
		if err != nil {
			return err
		}
		po.Status = deriveStatus(lines)

		// Step 6: the revert is itself a versioned snapshot.
		desc := fmt.Sprintf("Reverted to version %d", version)
		if len(voidedIDs) > 0 {
			desc += fmt.Sprintf("; voided %d receiving(s)", len(voidedIDs))
		}
		snapID, err := s.snapshot(ctx, tx, &po, ActionRevert, desc, nil, nil)
		if err != nil {
			return err
		}

		// Step 7: stamp the voided receivings with the snapshot that voided
		// them.
		if err := tx.SetReceivingVoidedBy(ctx, voidedIDs, snapID); err != nil {
			return err
		}

		out, err = tx.GetPurchaseOrder(ctx, poID)
		return err
	})
	if err != nil {
		return PurchaseOrder{}, err
	}
	s.log.InfoContext(ctx, "purchase order reverted",
		"po_id", poID, "target_version", version, "new_version", out.CurrentVersion)
	return out, nil
}

func restoreLine(li *LineItem, ls LineSnapshot) {
	li.ItemType = ls.ItemType
	li.PartID = ls.PartID
	li.Description = ls.Description
	li.Quantity = ls.Quantity
	li.UnitPrice = ls.UnitPrice
	li.QtyPending = ls.QtyPending
	li.QtyReceived = ls.QtyReceived
	li.ActualUnitPrice = ls.ActualUnitPrice
}
