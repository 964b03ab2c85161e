package quotes

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/quoteflow-erp/quoteflow/internal/catalog"
	"github.com/quoteflow-erp/quoteflow/internal/shared"
	"github.com/quoteflow-erp/quoteflow/internal/versioning"
)

// Service implements the quote engine: document CRUD, invoicing, the global
// markup recalculator, and version revert. Every mutation runs in one
// transaction together with the snapshot that records it.
type Service struct {
	repo    RepositoryPort
	catalog catalog.Catalog
	log     *slog.Logger
}

func NewService(repo RepositoryPort, cat catalog.Catalog, log *slog.Logger) *Service {
	return &Service{repo: repo, catalog: cat, log: log}
}

// resolveLine builds a LineItem from input, filling description and price from
// the catalog when the line is linked and the caller left them blank.
func (s *Service) resolveLine(ctx context.Context, quoteID int64, in LineInput) (LineItem, error) {
	li := LineItem{
		QuoteID:         quoteID,
		ItemType:        ItemType(in.ItemType),
		CatalogID:       in.CatalogID,
		Description:     in.Description,
		Quantity:        in.Quantity,
		QtyPending:      in.Quantity,
		DiscountPercent: in.DiscountPercent,
		DiscountCodeID:  in.DiscountCodeID,
	}
	if !ValidItemType(li.ItemType) {
		return LineItem{}, fmt.Errorf("unknown item type %q: %w", in.ItemType, shared.ErrValidation)
	}
	if li.ItemType == ItemPMS && li.CatalogID != nil {
		return LineItem{}, fmt.Errorf("pms items are free-form and cannot reference the catalog: %w", shared.ErrValidation)
	}

	if in.UnitPrice != nil {
		li.UnitPrice = *in.UnitPrice
	}

	if li.CatalogID != nil {
		switch li.ItemType {
		case ItemLabor:
			l, err := s.catalog.Labor(ctx, *li.CatalogID)
			if err != nil {
				return LineItem{}, err
			}
			if li.Description == "" {
				li.Description = l.Description
			}
			if in.UnitPrice == nil {
				li.UnitPrice = l.Rate
			}
		case ItemPart:
			p, err := s.catalog.Part(ctx, *li.CatalogID)
			if err != nil {
				return LineItem{}, err
			}
			if li.Description == "" {
				li.Description = fmt.Sprintf("%s %s", p.PartNumber, p.Description)
			}
			if in.UnitPrice == nil {
				li.UnitPrice = p.Cost * (1 + p.MarkupPercent/100)
			}
		case ItemMisc:
			m, err := s.catalog.Misc(ctx, *li.CatalogID)
			if err != nil {
				return LineItem{}, err
			}
			if li.Description == "" {
				li.Description = m.Description
			}
			if in.UnitPrice == nil {
				li.UnitPrice = m.UnitPrice
			}
		}
	}

	if li.DiscountCodeID != nil {
		dc, err := s.catalog.DiscountCode(ctx, *li.DiscountCodeID)
		if err != nil {
			return LineItem{}, err
		}
		if dc.Archived {
			return LineItem{}, fmt.Errorf("discount code %q is archived: %w", dc.Code, shared.ErrValidation)
		}
		if li.DiscountPercent == nil {
			li.DiscountPercent = &dc.DiscountPercent
		}
	}
	return li, nil
}

func lineToSnapshot(snapshotID int64, li LineItem, deleted bool) LineSnapshot {
	return LineSnapshot{
		SnapshotID:            snapshotID,
		OriginalLineItemID:    li.ID,
		ItemType:              li.ItemType,
		CatalogID:             li.CatalogID,
		Description:           li.Description,
		Quantity:              li.Quantity,
		UnitPrice:             li.UnitPrice,
		QtyPending:            li.QtyPending,
		QtyFulfilled:          li.QtyFulfilled,
		DiscountPercent:       li.DiscountPercent,
		DiscountCodeID:        li.DiscountCodeID,
		BaseCost:              li.BaseCost,
		OriginalMarkupPercent: li.OriginalMarkupPercent,
		IsDeleted:             deleted,
	}
}

// snapshot captures the full current line-item state as a new snapshot row,
// incrementing the version for substantive actions. See the purchase order
// engine for the identical contract.
func (s *Service) snapshot(ctx context.Context, tx TxRepository, q *Quote, action ActionType, desc string, invoiceID *int64, deleted []LineItem) (int64, error) {
	if action != ActionCreate && action != ActionStatusChange {
		q.CurrentVersion++
	}
	if err := tx.UpdateQuote(ctx, *q); err != nil {
		return 0, err
	}

	snapID, err := tx.InsertSnapshot(ctx, Snapshot{
		QuoteID:           q.ID,
		Version:           q.CurrentVersion,
		ActionType:        action,
		ActionDescription: desc,
		InvoiceID:         invoiceID,
	})
	if err != nil {
		return 0, err
	}

	lines, err := tx.ListLines(ctx, q.ID)
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
func (s *Service) Create(ctx context.Context, req CreateQuoteRequest) (Quote, error) {
	var out Quote
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		project, err := tx.LockProject(ctx, req.ProjectID)
		if err != nil {
			return err
		}
		if _, err := tx.GetCustomer(ctx, req.CustomerID); err != nil {
			return err
		}

		seq, err := tx.NextSequence(ctx, req.ProjectID)
		if err != nil {
			return err
		}

		q := Quote{
			ProjectID:      req.ProjectID,
			ProjectCode:    project.Code,
			CustomerID:     req.CustomerID,
			Sequence:       seq,
			Status:         StatusActive,
			CurrentVersion: 0,
			Description:    req.Description,
		}
		q.ID, err = tx.InsertQuote(ctx, q)
		if err != nil {
			return err
		}

		for _, in := range req.Lines {
			li, err := s.resolveLine(ctx, q.ID, in)
			if err != nil {
				return err
			}
			if _, err := tx.InsertLine(ctx, li); err != nil {
				return err
			}
		}

		desc := fmt.Sprintf("Quote created with %d line item(s)", len(req.Lines))
		if _, err := s.snapshot(ctx, tx, &q, ActionCreate, desc, nil, nil); err != nil {
			return err
		}

		out, err = tx.GetQuote(ctx, q.ID)
		return err
	})
	if err != nil {
		return Quote{}, err
	}
	s.log.InfoContext(ctx, "quote created",
		"quote_id", out.ID, "quote_number", out.Number(), "customer_id", out.CustomerID)
	return out, nil
}

func (s *Service) Get(ctx context.Context, id int64) (Quote, error) {
	return s.repo.GetQuote(ctx, id)
}

func (s *Service) List(ctx context.Context, projectID int64, limit, offset int) ([]Quote, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.ListQuotes(ctx, projectID, limit, offset)
}

// UpdateMeta changes header fields only. Header edits do not touch line items,
// so no snapshot is recorded.
func (s *Service) UpdateMeta(ctx context.Context, id int64, req UpdateQuoteRequest) (Quote, error) {
	var out Quote
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		q, err := tx.GetQuote(ctx, id)
		if err != nil {
			return err
		}
		if req.CustomerID != nil {
			if _, err := tx.GetCustomer(ctx, *req.CustomerID); err != nil {
				return err
			}
			q.CustomerID = *req.CustomerID
		}
		if req.Description != nil {
			q.Description = *req.Description
		}
		if err := tx.UpdateQuote(ctx, q); err != nil {
			return err
		}
		out, err = tx.GetQuote(ctx, id)
		return err
	})
	return out, err
}

// Delete removes the quote entirely. A frozen quote (any fulfillment) must be
// reverted first.
func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		q, err := tx.GetQuote(ctx, id)
		if err != nil {
			return err
		}
		if frozen(q.Lines) {
			return fmt.Errorf("quote %s has invoiced items and cannot be deleted: %w",
				q.Number(), shared.ErrDocumentFrozen)
		}
		return tx.DeleteQuote(ctx, id)
	})
}

// Clone copies a quote into a fresh document under the same project: new
// sequence, fulfillment reset, markup override cleared.
func (s *Service) Clone(ctx context.Context, id int64) (Quote, error) {
	var out Quote
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		src, err := tx.GetQuote(ctx, id)
		if err != nil {
			return err
		}
		if _, err := tx.LockProject(ctx, src.ProjectID); err != nil {
			return err
		}
		seq, err := tx.NextSequence(ctx, src.ProjectID)
		if err != nil {
			return err
		}

		clone := Quote{
			ProjectID:      src.ProjectID,
			ProjectCode:    src.ProjectCode,
			CustomerID:     src.CustomerID,
			Sequence:       seq,
			Status:         StatusActive,
			CurrentVersion: 0,
			Description:    src.Description,
		}
		clone.ID, err = tx.InsertQuote(ctx, clone)
		if err != nil {
			return err
		}

		for _, li := range src.Lines {
			li.ID = 0
			li.QuoteID = clone.ID
			li.QtyFulfilled = 0
			li.QtyPending = li.Quantity
			li.BaseCost = nil
			li.OriginalMarkupPercent = nil
			if _, err := tx.InsertLine(ctx, li); err != nil {
				return err
			}
		}

		desc := fmt.Sprintf("Cloned from %s", src.Number())
		if _, err := s.snapshot(ctx, tx, &clone, ActionCreate, desc, nil, nil); err != nil {
			return err
		}
		out, err = tx.GetQuote(ctx, clone.ID)
		return err
	})
	if err != nil {
		return Quote{}, err
	}
	s.log.InfoContext(ctx, "quote cloned", "source_id", id, "quote_id", out.ID)
	return out, nil
}

func (s *Service) requireUnfrozen(q Quote) error {
	if frozen(q.Lines) {
		return fmt.Errorf("quote %s has invoiced items and is frozen: %w",
			q.Number(), shared.ErrDocumentFrozen)
	}
	return nil
}

// AddLine appends one line item and records an edit snapshot. When the global
// markup override is active the new line is priced under it immediately.
func (s *Service) AddLine(ctx context.Context, quoteID int64, in LineInput) (Quote, error) {
	var out Quote
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		q, err := tx.GetQuote(ctx, quoteID)
		if err != nil {
			return err
		}
		if err := s.requireUnfrozen(q); err != nil {
			return err
		}

		li, err := s.resolveLine(ctx, q.ID, in)
		if err != nil {
			return err
		}
		if q.MarkupEnabled() {
			if li.Discounted() {
				return fmt.Errorf("cannot add a discounted line while global markup is active: %w",
					shared.ErrConflictingPricingMode)
			}
			if err := s.applyMarkup(ctx, &li, *q.MarkupPercent); err != nil {
				return err
			}
		}
		if _, err := tx.InsertLine(ctx, li); err != nil {
			return err
		}

		desc := fmt.Sprintf("Added %q (qty %d at %s)",
			li.Description, li.Quantity, shared.FormatMoney(li.UnitPrice))
		if _, err := s.snapshot(ctx, tx, &q, ActionEdit, desc, nil, nil); err != nil {
			return err
		}
		out, err = tx.GetQuote(ctx, quoteID)
		return err
	})
	return out, err
}

// applyLineEdit mutates li per edit. The quantity floor against fulfilled
// amounts must already have been checked.
func applyLineEdit(li *LineItem, edit LineEdit) {
	if edit.Description != nil {
		li.Description = *edit.Description
	}
	if edit.Quantity != nil {
		li.Quantity = *edit.Quantity
		li.QtyPending = li.Quantity - li.QtyFulfilled
	}
	if edit.UnitPrice != nil {
		li.UnitPrice = *edit.UnitPrice
	}
	if edit.ClearDiscount {
		li.DiscountPercent = nil
		li.DiscountCodeID = nil
	}
	if edit.DiscountPercent != nil {
		li.DiscountPercent = edit.DiscountPercent
	}
	if edit.DiscountCodeID != nil {
		li.DiscountCodeID = edit.DiscountCodeID
	}
}

// checkLineEdit enforces the edit preconditions for one line. The quantity
// floor is checked before the freeze so the caller learns the precise conflict.
func (s *Service) checkLineEdit(ctx context.Context, q Quote, li LineItem, edit LineEdit) error {
	if edit.Quantity != nil && *edit.Quantity < li.QtyFulfilled {
		return fmt.Errorf("line %q: cannot reduce quantity below fulfilled amount %d: %w",
			li.Description, li.QtyFulfilled, shared.ErrQuantityConflict)
	}
	if err := s.requireUnfrozen(q); err != nil {
		return err
	}
	if q.MarkupEnabled() && (edit.DiscountPercent != nil || edit.DiscountCodeID != nil) {
		return fmt.Errorf("cannot apply a discount while global markup is active: %w",
			shared.ErrConflictingPricingMode)
	}
	if edit.DiscountCodeID != nil {
		dc, err := s.catalog.DiscountCode(ctx, *edit.DiscountCodeID)
		if err != nil {
			return err
		}
		if dc.Archived {
			return fmt.Errorf("discount code %q is archived: %w", dc.Code, shared.ErrValidation)
		}
	}
	return nil
}

// EditLine edits one line item and records an edit snapshot.
func (s *Service) EditLine(ctx context.Context, quoteID, lineID int64, edit LineEdit) (Quote, error) {
	var out Quote
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		q, err := tx.GetQuote(ctx, quoteID)
		if err != nil {
			return err
		}
		li, err := tx.GetLine(ctx, quoteID, lineID)
		if err != nil {
			return err
		}
		if err := s.checkLineEdit(ctx, q, li, edit); err != nil {
			return err
		}

		applyLineEdit(&li, edit)
		if err := tx.UpdateLine(ctx, li); err != nil {
			return err
		}

		desc := fmt.Sprintf("Edited %q (qty %d at %s)",
			li.Description, li.Quantity, shared.FormatMoney(li.UnitPrice))
		if _, err := s.snapshot(ctx, tx, &q, ActionEdit, desc, nil, nil); err != nil {
			return err
		}
		out, err = tx.GetQuote(ctx, quoteID)
		return err
	})
	return out, err
}

// DeleteLine removes one line item; the delete snapshot carries the removed
// item flagged is_deleted.
func (s *Service) DeleteLine(ctx context.Context, quoteID, lineID int64) (Quote, error) {
	var out Quote
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		q, err := tx.GetQuote(ctx, quoteID)
		if err != nil {
			return err
		}
		if err := s.requireUnfrozen(q); err != nil {
			return err
		}

		li, err := tx.GetLine(ctx, quoteID, lineID)
		if err != nil {
			return err
		}
		if err := tx.DeleteLine(ctx, li.ID); err != nil {
			return err
		}

		desc := fmt.Sprintf("Deleted %q (qty %d)", li.Description, li.Quantity)
		if _, err := s.snapshot(ctx, tx, &q, ActionDelete, desc, nil, []LineItem{li}); err != nil {
			return err
		}
		out, err = tx.GetQuote(ctx, quoteID)
		return err
	})
	return out, err
}

// CommitBatch applies a mixed set of deletes, edits and adds as a single
// version increment with one snapshot. Deletes run first, then edits, then
// adds, regardless of input order.
func (s *Service) CommitBatch(ctx context.Context, quoteID int64, req BatchRequest) (Quote, error) {
	var out Quote
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		q, err := tx.GetQuote(ctx, quoteID)
		if err != nil {
			return err
		}
		if err := s.requireUnfrozen(q); err != nil {
			return err
		}

		var deleted []LineItem
		for _, id := range req.Deletes {
			li, err := tx.GetLine(ctx, quoteID, id)
			if err != nil {
				return err
			}
			if err := tx.DeleteLine(ctx, li.ID); err != nil {
				return err
			}
			deleted = append(deleted, li)
		}
		for _, edit := range req.Edits {
			li, err := tx.GetLine(ctx, quoteID, edit.ID)
			if err != nil {
				return err
			}
			if err := s.checkLineEdit(ctx, q, li, edit); err != nil {
				return err
			}
			applyLineEdit(&li, edit)
			if err := tx.UpdateLine(ctx, li); err != nil {
				return err
			}
		}
		for _, in := range req.Adds {
			li, err := s.resolveLine(ctx, quoteID, in)
			if err != nil {
				return err
			}
			if q.MarkupEnabled() {
				if li.Discounted() {
					return fmt.Errorf("cannot add a discounted line while global markup is active: %w",
						shared.ErrConflictingPricingMode)
				}
				if err := s.applyMarkup(ctx, &li, *q.MarkupPercent); err != nil {
					return err
				}
			}
			if _, err := tx.InsertLine(ctx, li); err != nil {
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
		if _, err := s.snapshot(ctx, tx, &q, ActionEdit, desc, nil, deleted); err != nil {
			return err
		}
		out, err = tx.GetQuote(ctx, quoteID)
		return err
	})
	return out, err
}

// CreateInvoice consumes pending quantity against the quote. Quantities are
// validated all-or-nothing before any write; the consumption, the invoice
// record and the invoice snapshot commit atomically, and the quote's derived
// status follows.
func (s *Service) CreateInvoice(ctx context.Context, quoteID int64, req InvoiceRequest) (Invoice, error) {
	var invID int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		q, err := tx.GetQuote(ctx, quoteID)
		if err != nil {
			return err
		}

		lineByID := make(map[int64]LineItem, len(q.Lines))
		for _, li := range q.Lines {
			lineByID[li.ID] = li
		}

		// Validate the whole batch before touching anything. Pending is
		// consumed per line across entries, so duplicates naming the same
		// line cannot pass individually and over-consume together.
		remaining := make(map[int64]int, len(req.Lines))
		for _, in := range req.Lines {
			li, ok := lineByID[in.LineItemID]
			if !ok {
				return fmt.Errorf("line item %d does not belong to quote %s: %w",
					in.LineItemID, q.Number(), shared.ErrValidation)
			}
			if in.Qty <= 0 {
				return fmt.Errorf("line %q: invoiced quantity must be at least 1: %w",
					li.Description, shared.ErrValidation)
			}
			left, seen := remaining[in.LineItemID]
			if !seen {
				left = li.QtyPending
			}
			if in.Qty > left {
				return fmt.Errorf("line %q: invoicing %d exceeds pending %d: %w",
					li.Description, in.Qty, left, shared.ErrQuantityConflict)
			}
			remaining[in.LineItemID] = left - in.Qty
		}

		invoiceDate := time.Now().UTC()
		if req.InvoiceDate != nil {
			invoiceDate = *req.InvoiceDate
		}
		invID, err = tx.InsertInvoice(ctx, Invoice{
			QuoteID:        q.ID,
			ClientPONumber: req.ClientPONumber,
			InvoiceDate:    invoiceDate,
			Notes:          req.Notes,
		})
		if err != nil {
			return err
		}

		total := 0.0
		for _, in := range req.Lines {
			li := lineByID[in.LineItemID]
			li.QtyFulfilled += in.Qty
			li.QtyPending = li.Quantity - li.QtyFulfilled

			if _, err := tx.InsertInvoiceLine(ctx, InvoiceLine{
				InvoiceID:         invID,
				QuoteLineItemID:   li.ID,
				ItemType:          li.ItemType,
				Description:       li.Description,
				UnitPrice:         li.UnitPrice,
				QtyOrdered:        li.Quantity,
				QtyThisInvoice:    in.Qty,
				QtyFulfilledTotal: li.QtyFulfilled,
				QtyPendingAfter:   li.QtyPending,
			}); err != nil {
				return err
			}
			if err := tx.UpdateLine(ctx, li); err != nil {
				return err
			}
			lineByID[in.LineItemID] = li
			total += float64(in.Qty) * li.UnitPrice
		}

		lines, err := tx.ListLines(ctx, q.ID)
		if err != nil {
			return err
		}
		q.Status = deriveStatus(lines)

		desc := fmt.Sprintf("Invoiced %s against client PO %s",
			shared.FormatMoney(total), req.ClientPONumber)
		if _, err := s.snapshot(ctx, tx, &q, ActionInvoice, desc, &invID, nil); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return Invoice{}, err
	}

	s.log.InfoContext(ctx, "invoice recorded", "quote_id", quoteID, "invoice_id", invID)
	return s.getInvoice(ctx, quoteID, invID)
}

func (s *Service) getInvoice(ctx context.Context, quoteID, invID int64) (Invoice, error) {
	invs, err := s.repo.ListInvoices(ctx, quoteID)
	if err != nil {
		return Invoice{}, err
	}
	for _, inv := range invs {
		if inv.ID == invID {
			return inv, nil
		}
	}
	return Invoice{}, fmt.Errorf("invoice %d: %w", invID, shared.ErrNotFound)
}

func (s *Service) ListInvoices(ctx context.Context, quoteID int64) ([]Invoice, error) {
	if _, err := s.repo.GetQuote(ctx, quoteID); err != nil {
		return nil, err
	}
	return s.repo.ListInvoices(ctx, quoteID)
}

func (s *Service) ListSnapshots(ctx context.Context, quoteID int64) ([]Snapshot, error) {
	if _, err := s.repo.GetQuote(ctx, quoteID); err != nil {
		return nil, err
	}
	return s.repo.ListSnapshots(ctx, quoteID)
}

func (s *Service) GetSnapshot(ctx context.Context, quoteID int64, version int) (Snapshot, error) {
	if _, err := s.repo.GetQuote(ctx, quoteID); err != nil {
		return Snapshot{}, err
	}
	return s.repo.GetSnapshot(ctx, quoteID, version)
}

func consumptionsByLine(lines []InvoiceLine) map[int64][]versioning.Consumption {
	out := make(map[int64][]versioning.Consumption)
	for _, il := range lines {
		out[il.QuoteLineItemID] = append(out[il.QuoteLineItemID], versioning.Consumption{
			Qty: il.QtyThisInvoice,
		})
	}
	return out
}

func (s *Service) validateRevertTarget(q Quote, version int) error {
	if version >= q.CurrentVersion {
		return fmt.Errorf("target version %d is not older than current version %d: %w",
			version, q.CurrentVersion, shared.ErrInvalidRevert)
	}
	if version < 0 {
		return fmt.Errorf("target version %d: %w", version, shared.ErrInvalidRevert)
	}
	return nil
}

// PreviewRevert reports what reverting to the given version would void,
// without changing anything.
func (s *Service) PreviewRevert(ctx context.Context, quoteID int64, version int) (RevertPreview, error) {
	q, err := s.repo.GetQuote(ctx, quoteID)
	if err != nil {
		return RevertPreview{}, err
	}
	if err := s.validateRevertTarget(q, version); err != nil {
		return RevertPreview{}, err
	}
	if _, err := s.repo.GetSnapshot(ctx, quoteID, version); err != nil {
		return RevertPreview{}, fmt.Errorf("no snapshot for version %d: %w", version, shared.ErrInvalidRevert)
	}

	invs, err := s.repo.ListActiveInvoicesAfter(ctx, quoteID, version)
	if err != nil {
		return RevertPreview{}, err
	}
	preview := RevertPreview{
		TargetVersion:  version,
		CurrentVersion: q.CurrentVersion,
	}
	for _, inv := range invs {
		preview.InvoicesToVoid = append(preview.InvoicesToVoid, inv.ID)
		preview.Warnings = append(preview.Warnings,
			fmt.Sprintf("invoice %d against client PO %s will be voided", inv.ID, inv.ClientPONumber))
	}
	return preview, nil
}

// Revert restores the quote's line items to the state captured at the target
// version, reconciling by original line-item identity so surviving invoice
// references stay valid. Invoices recorded after the target are voided, and
// aggregates and status are recomputed from the surviving invoices. The revert
// is recorded as a new snapshot; history is never rewritten.
func (s *Service) Revert(ctx context.Context, quoteID int64, version int) (Quote, error) {
	var out Quote
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		q, err := tx.GetQuote(ctx, quoteID)
		if err != nil {
			return err
		}
		if err := s.validateRevertTarget(q, version); err != nil {
			return err
		}
		target, err := tx.GetSnapshot(ctx, quoteID, version)
		if err != nil {
			return fmt.Errorf("no snapshot for version %d: %w", version, shared.ErrInvalidRevert)
		}

		toVoid, err := tx.ListActiveInvoicesAfter(ctx, quoteID, version)
		if err != nil {
			return err
		}
		now := time.Now().UTC()
		voidedIDs := make([]int64, 0, len(toVoid))
		for _, inv := range toVoid {
			if err := tx.VoidInvoice(ctx, inv.ID, now); err != nil {
				return err
			}
			voidedIDs = append(voidedIDs, inv.ID)
		}

		live, err := tx.ListLines(ctx, quoteID)
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
			li := LineItem{QuoteID: quoteID}
			restoreLine(&li, snapByOrig[origID])
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

		origIDs := make([]int64, 0, len(remap))
		for origID := range remap {
			origIDs = append(origIDs, origID)
		}
		sort.Slice(origIDs, func(i, j int) bool { return origIDs[i] < origIDs[j] })
		for _, origID := range origIDs {
			if err := tx.RepointInvoiceLines(ctx, origID, remap[origID]); err != nil {
				return err
			}
		}

		active, err := tx.ListActiveInvoiceLines(ctx, quoteID)
		if err != nil {
			return err
		}
		cons := consumptionsByLine(active)
		lines, err := tx.ListLines(ctx, quoteID)
		if err != nil {
			return err
		}
		for _, li := range lines {
			li.QtyFulfilled = versioning.SumQuantity(cons[li.ID])
			li.QtyPending = li.Quantity - li.QtyFulfilled
			if err := tx.UpdateLine(ctx, li); err != nil {
				return err
			}
		}

		lines, err = tx.ListLines(ctx, quoteID)
		if err != nil {
			return err
		}
		q.Status = deriveStatus(lines)

		desc := fmt.Sprintf("Reverted to version %d", version)
		if len(voidedIDs) > 0 {
			desc += fmt.Sprintf("; voided %d invoice(s)", len(voidedIDs))
		}
		snapID, err := s.snapshot(ctx, tx, &q, ActionRevert, desc, nil, nil)
		if err != nil {
			return err
		}
		if err := tx.SetInvoiceVoidedBy(ctx, voidedIDs, snapID); err != nil {
			return err
		}

		out, err = tx.GetQuote(ctx, quoteID)
		return err
	})
	if err != nil {
		return Quote{}, err
	}
	s.log.InfoContext(ctx, "quote reverted",
		"quote_id", quoteID, "target_version", version, "new_version", out.CurrentVersion)
	return out, nil
}

func restoreLine(li *LineItem, ls LineSnapshot) {
	li.ItemType = ls.ItemType
	li.CatalogID = ls.CatalogID
	li.Description = ls.Description
	li.Quantity = ls.Quantity
	li.UnitPrice = ls.UnitPrice
	li.QtyPending = ls.QtyPending
	li.QtyFulfilled = ls.QtyFulfilled
	li.DiscountPercent = ls.DiscountPercent
	li.DiscountCodeID = ls.DiscountCodeID
	li.BaseCost = ls.BaseCost
	li.OriginalMarkupPercent = ls.OriginalMarkupPercent
}
