package purchaseorders

import (
	"fmt"
	"time"
)

// Purchase order lifecycle statuses.
type Status string

const (
	StatusDraft    Status = "draft"
	StatusSent     Status = "sent"
	StatusReceived Status = "received"
	StatusClosed   Status = "closed"
)

// ValidStatus reports whether s is a known lifecycle status.
func ValidStatus(s Status) bool {
	switch s {
	case StatusDraft, StatusSent, StatusReceived, StatusClosed:
		return true
	}
	return false
}

// statusRank orders the lifecycle. Manual status changes may only move
// forward; walking an order back happens through a revert, which re-derives
// the status from the surviving receivings.
var statusRank = map[Status]int{
	StatusDraft:    0,
	StatusSent:     1,
	StatusReceived: 2,
	StatusClosed:   3,
}

// Line item kinds. Purchase orders carry parts and miscellaneous items only;
// labor never appears on a PO.
type ItemType string

const (
	ItemPart ItemType = "part"
	ItemMisc ItemType = "misc"
)

// Audit-trail action kinds.
type ActionType string

const (
	ActionCreate       ActionType = "create"
	ActionEdit         ActionType = "edit"
	ActionDelete       ActionType = "delete"
	ActionReceive      ActionType = "receive"
	ActionStatusChange ActionType = "status_change"
	ActionRevert       ActionType = "revert"
)

// Project is the read-only parent a purchase order belongs to. Project
// administration lives elsewhere; this engine only locks the row during
// sequence allocation and reads the display code.
type Project struct {
	ID   int64
	Code string
	Name string
}

// Vendor is the counterparty profile referenced by a purchase order.
type Vendor struct {
	ID       int64
	Name     string
	IsVendor bool
}

// PurchaseOrder is the versioned document. Sequence is assigned once per
// project and never changes; CurrentVersion only increases.
type PurchaseOrder struct {
	ID                   int64
	ProjectID            int64
	ProjectCode          string
	VendorID             int64
	Sequence             int
	CreatedAt            time.Time
	Status               Status
	CurrentVersion       int
	WorkDescription      string
	VendorPONumber       string
	ExpectedDeliveryDate *time.Time
	Lines                []LineItem
}

// Number renders the display identifier, e.g. PO-A2132-0001-3. Derived, never stored.
func (p PurchaseOrder) Number() string {
	return fmt.Sprintf("PO-%s-%04d-%d", p.ProjectCode, p.Sequence, p.CurrentVersion)
}

// LineItem is the live, mutable state of one ordered line.
// Invariant: QtyPending == max(0, Quantity - QtyReceived).
type LineItem struct {
	ID              int64
	PurchaseOrderID int64
	ItemType        ItemType
	PartID          *int64
	Description     string
	Quantity        int
	UnitPrice       float64
	QtyPending      int
	QtyReceived     int
	ActualUnitPrice *float64
}

// Snapshot is an immutable, versioned capture of the full line-item state taken
// inside the same transaction as the mutation it records.
type Snapshot struct {
	ID                int64
	PurchaseOrderID   int64
	Version           int
	ActionType        ActionType
	ActionDescription string
	CreatedAt         time.Time
	ReceivingID       *int64
	Lines             []LineSnapshot
}

// LineSnapshot is one line item's state inside a Snapshot. OriginalLineItemID
// is the stable cross-version identity; IsDeleted marks the one item a delete
// action removed.
type LineSnapshot struct {
	ID                 int64
	SnapshotID         int64
	OriginalLineItemID int64
	ItemType           ItemType
	PartID             *int64
	Description        string
	Quantity           int
	UnitPrice          float64
	QtyPending         int
	QtyReceived        int
	ActualUnitPrice    *float64
	IsDeleted          bool
}

// Receiving is a fulfillment event: a partial or full delivery against the
// order. Voided receivings stay on record for the audit trail but are excluded
// from every aggregate.
type Receiving struct {
	ID                 int64
	PurchaseOrderID    int64
	CreatedAt          time.Time
	ReceivedDate       time.Time
	Notes              string
	VoidedAt           *time.Time
	VoidedBySnapshotID *int64
	Lines              []ReceivingLine
}

// Voided reports whether the receiving has been voided by a revert.
func (r Receiving) Voided() bool { return r.VoidedAt != nil }

// ReceivingLine records one line item's consumption in a receiving, with the
// cumulative totals as they stood when the event was taken.
type ReceivingLine struct {
	ID                int64
	ReceivingID       int64
	POLineItemID      int64
	ItemType          ItemType
	PartID            *int64
	Description       string
	UnitPrice         float64
	ActualUnitPrice   *float64
	QtyOrdered        int
	QtyThisReceiving  int
	QtyReceivedTotal  int
	QtyPendingAfter   int
}

// deriveStatus computes the lifecycle status implied purely by the fulfillment
// aggregates: nothing received yet means draft, everything received means
// received, anything in between means sent. Used on the revert path; closed is
// only ever set manually.
func deriveStatus(lines []LineItem) Status {
	if len(lines) == 0 {
		return StatusDraft
	}
	received := 0
	allDone := true
	for _, l := range lines {
		received += l.QtyReceived
		if l.QtyPending > 0 {
			allDone = false
		}
	}
	switch {
	case received == 0:
		return StatusDraft
	case allDone:
		return StatusReceived
	default:
		return StatusSent
	}
}

// fullyReceived reports whether every line has zero pending quantity.
func fullyReceived(lines []LineItem) bool {
	if len(lines) == 0 {
		return false
	}
	for _, l := range lines {
		if l.QtyPending > 0 {
			return false
		}
	}
	return true
}
