package quotes

import (
	"fmt"
	"time"
)

// Quote statuses. Unlike purchase orders the status is fully derived: a quote
// is Invoiced as soon as any line item has fulfilled quantity and falls back to
// Active when a revert removes the last fulfillment.
type Status string

const (
	StatusActive   Status = "Active"
	StatusInvoiced Status = "Invoiced"
)

// Quote line item kinds. PMS items are free-form service entries, exempt from
// markup recalculation.
type ItemType string

const (
	ItemLabor ItemType = "labor"
	ItemPart  ItemType = "part"
	ItemMisc  ItemType = "misc"
	ItemPMS   ItemType = "pms"
)

// ValidItemType reports whether t names a quote line kind.
func ValidItemType(t ItemType) bool {
	switch t {
	case ItemLabor, ItemPart, ItemMisc, ItemPMS:
		return true
	}
	return false
}

// Audit-trail action kinds.
type ActionType string

const (
	ActionCreate       ActionType = "create"
	ActionEdit         ActionType = "edit"
	ActionDelete       ActionType = "delete"
	ActionInvoice      ActionType = "invoice"
	ActionStatusChange ActionType = "status_change"
	ActionRevert       ActionType = "revert"
)

// Project is the read-only parent; locked only during sequence allocation.
type Project struct {
	ID   int64
	Code string
	Name string
}

// Customer is the counterparty profile a quote is addressed to.
type Customer struct {
	ID   int64
	Name string
}

// Quote is the versioned document. Sequence is assigned once per project;
// CurrentVersion only increases. MarkupPercent is set while the global markup
// override is enabled and nil otherwise.
type Quote struct {
	ID             int64
	ProjectID      int64
	ProjectCode    string
	CustomerID     int64
	Sequence       int
	CreatedAt      time.Time
	Status         Status
	CurrentVersion int
	Description    string
	MarkupPercent  *float64
	Lines          []LineItem
}

// Number renders the display identifier, e.g. A2132-0003-2. Derived, never stored.
func (q Quote) Number() string {
	return fmt.Sprintf("%s-%04d-%d", q.ProjectCode, q.Sequence, q.CurrentVersion)
}

// MarkupEnabled reports whether the global markup override is active.
func (q Quote) MarkupEnabled() bool { return q.MarkupPercent != nil }

// LineItem is the live, mutable state of one quoted line.
// Invariant: Quantity == QtyPending + QtyFulfilled.
//
// BaseCost and OriginalMarkupPercent are populated when global markup is
// enabled: the catalog cost and markup are resolved exactly once so later
// recalculations never chase catalog drift.
type LineItem struct {
	ID                    int64
	QuoteID               int64
	ItemType              ItemType
	CatalogID             *int64
	Description           string
	Quantity              int
	UnitPrice             float64
	QtyPending            int
	QtyFulfilled          int
	DiscountPercent       *float64
	DiscountCodeID        *int64
	BaseCost              *float64
	OriginalMarkupPercent *float64
}

// Exempt reports whether the line is skipped by markup recalculation.
func (li LineItem) Exempt() bool { return li.ItemType == ItemPMS }

// Discounted reports whether the line carries any discount.
func (li LineItem) Discounted() bool {
	return li.DiscountCodeID != nil || (li.DiscountPercent != nil && *li.DiscountPercent != 0)
}

// Snapshot is an immutable, versioned capture of the full line-item state.
type Snapshot struct {
	ID                int64
	QuoteID           int64
	Version           int
	ActionType        ActionType
	ActionDescription string
	CreatedAt         time.Time
	InvoiceID         *int64
	Lines             []LineSnapshot
}

type LineSnapshot struct {
	ID                    int64
	SnapshotID            int64
	OriginalLineItemID    int64
	ItemType              ItemType
	CatalogID             *int64
	Description           string
	Quantity              int
	UnitPrice             float64
	QtyPending            int
	QtyFulfilled          int
	DiscountPercent       *float64
	DiscountCodeID        *int64
	BaseCost              *float64
	OriginalMarkupPercent *float64
	IsDeleted             bool
}

// Invoice is the quote-side fulfillment event. A voided invoice stays on
// record but is excluded from every aggregate.
type Invoice struct {
	ID                 int64
	QuoteID            int64
	ClientPONumber     string
	CreatedAt          time.Time
	InvoiceDate        time.Time
	Notes              string
	VoidedAt           *time.Time
	VoidedBySnapshotID *int64
	Lines              []InvoiceLine
}

func (inv Invoice) Voided() bool { return inv.VoidedAt != nil }

// InvoiceLine records one line item's consumption, with the cumulative totals
// as they stood when the invoice was cut.
type InvoiceLine struct {
	ID                int64
	InvoiceID         int64
	QuoteLineItemID   int64
	ItemType          ItemType
	Description       string
	UnitPrice         float64
	QtyOrdered        int
	QtyThisInvoice    int
	QtyFulfilledTotal int
	QtyPendingAfter   int
}

// deriveStatus: Invoiced as soon as anything has been fulfilled.
func deriveStatus(lines []LineItem) Status {
	for _, li := range lines {
		if li.QtyFulfilled > 0 {
			return StatusInvoiced
		}
	}
	return StatusActive
}

// frozen reports whether structural edits are blocked: any fulfilled quantity
// freezes the document until reverted.
func frozen(lines []LineItem) bool {
	for _, li := range lines {
		if li.QtyFulfilled > 0 {
			return true
		}
	}
	return false
}
