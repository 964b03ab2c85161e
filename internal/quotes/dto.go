package quotes

import "time"

type LineInput struct {
	ItemType        string   `json:"item_type" validate:"required,oneof=labor part misc pms"`
	CatalogID       *int64   `json:"catalog_id,omitempty"`
	Description     string   `json:"description" validate:"required_without=CatalogID,max=500"`
	Quantity        int      `json:"quantity" validate:"required,gte=1"`
	UnitPrice       *float64 `json:"unit_price,omitempty" validate:"omitempty,gte=0"`
	DiscountPercent *float64 `json:"discount_percent,omitempty" validate:"omitempty,gte=0,lte=100"`
	DiscountCodeID  *int64   `json:"discount_code_id,omitempty"`
}

type CreateQuoteRequest struct {
	ProjectID   int64       `json:"project_id" validate:"required,gt=0"`
	CustomerID  int64       `json:"customer_id" validate:"required,gt=0"`
	Description string      `json:"description" validate:"max=2000"`
	Lines       []LineInput `json:"line_items" validate:"dive"`
}

type UpdateQuoteRequest struct {
	CustomerID  *int64  `json:"customer_id,omitempty" validate:"omitempty,gt=0"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=2000"`
}

type LineEdit struct {
	ID              int64    `json:"id" validate:"required,gt=0"`
	Description     *string  `json:"description,omitempty" validate:"omitempty,max=500"`
	Quantity        *int     `json:"quantity,omitempty" validate:"omitempty,gte=1"`
	UnitPrice       *float64 `json:"unit_price,omitempty" validate:"omitempty,gte=0"`
	DiscountPercent *float64 `json:"discount_percent,omitempty" validate:"omitempty,gte=0,lte=100"`
	DiscountCodeID  *int64   `json:"discount_code_id,omitempty"`
	ClearDiscount   bool     `json:"clear_discount,omitempty"`
}

// BatchRequest carries a mixed set of line mutations committed as one version.
type BatchRequest struct {
	Adds    []LineInput `json:"adds" validate:"dive"`
	Edits   []LineEdit  `json:"edits" validate:"dive"`
	Deletes []int64     `json:"deletes" validate:"dive,gt=0"`
}

type InvoiceLineInput struct {
	LineItemID int64 `json:"line_item_id" validate:"required,gt=0"`
	Qty        int   `json:"qty_invoiced" validate:"required,gte=1"`
}

type InvoiceRequest struct {
	ClientPONumber string             `json:"client_po_number" validate:"required,max=100"`
	InvoiceDate    *time.Time         `json:"invoice_date,omitempty"`
	Notes          string             `json:"notes" validate:"max=2000"`
	Lines          []InvoiceLineInput `json:"line_items" validate:"required,min=1,dive"`
}

type MarkupRequest struct {
	Percent float64 `json:"percent" validate:"gte=0,lte=1000"`
}

type RevertRequest struct {
	Version int `json:"version" validate:"gte=0"`
}

type LineResponse struct {
	ID              int64    `json:"id"`
	ItemType        string   `json:"item_type"`
	CatalogID       *int64   `json:"catalog_id,omitempty"`
	Description     string   `json:"description"`
	Quantity        int      `json:"quantity"`
	UnitPrice       float64  `json:"unit_price"`
	QtyPending      int      `json:"qty_pending"`
	QtyFulfilled    int      `json:"qty_fulfilled"`
	DiscountPercent *float64 `json:"discount_percent,omitempty"`
	DiscountCodeID  *int64   `json:"discount_code_id,omitempty"`
	LineTotal       float64  `json:"line_total"`
}

type QuoteResponse struct {
	ID             int64          `json:"id"`
	Number         string         `json:"quote_number"`
	ProjectID      int64          `json:"project_id"`
	CustomerID     int64          `json:"customer_id"`
	Status         string         `json:"status"`
	CurrentVersion int            `json:"current_version"`
	Description    string         `json:"description"`
	MarkupPercent  *float64       `json:"markup_percent,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	Lines          []LineResponse `json:"line_items"`
	Total          float64        `json:"total"`
}

type SnapshotLineResponse struct {
	OriginalLineItemID int64    `json:"original_line_item_id"`
	ItemType           string   `json:"item_type"`
	CatalogID          *int64   `json:"catalog_id,omitempty"`
	Description        string   `json:"description"`
	Quantity           int      `json:"quantity"`
	UnitPrice          float64  `json:"unit_price"`
	QtyPending         int      `json:"qty_pending"`
	QtyFulfilled       int      `json:"qty_fulfilled"`
	DiscountPercent    *float64 `json:"discount_percent,omitempty"`
	IsDeleted          bool     `json:"is_deleted,omitempty"`
}

type SnapshotResponse struct {
	ID                int64                  `json:"id"`
	Version           int                    `json:"version"`
	ActionType        string                 `json:"action_type"`
	ActionDescription string                 `json:"action_description"`
	CreatedAt         time.Time              `json:"created_at"`
	InvoiceID         *int64                 `json:"invoice_id,omitempty"`
	Lines             []SnapshotLineResponse `json:"line_items"`
}

type InvoiceLineResponse struct {
	ID                int64   `json:"id"`
	QuoteLineItemID   int64   `json:"quote_line_item_id"`
	ItemType          string  `json:"item_type"`
	Description       string  `json:"description"`
	UnitPrice         float64 `json:"unit_price"`
	QtyOrdered        int     `json:"qty_ordered"`
	QtyThisInvoice    int     `json:"qty_this_invoice"`
	QtyFulfilledTotal int     `json:"qty_fulfilled_total"`
	QtyPendingAfter   int     `json:"qty_pending_after"`
}

type InvoiceResponse struct {
	ID             int64                 `json:"id"`
	ClientPONumber string                `json:"client_po_number"`
	InvoiceDate    time.Time             `json:"invoice_date"`
	Notes          string                `json:"notes,omitempty"`
	Voided         bool                  `json:"voided"`
	CreatedAt      time.Time             `json:"created_at"`
	Lines          []InvoiceLineResponse `json:"line_items"`
}

// RevertPreview describes what a revert would do without performing it.
type RevertPreview struct {
	TargetVersion  int      `json:"target_version"`
	CurrentVersion int      `json:"current_version"`
	InvoicesToVoid []int64  `json:"invoices_to_void"`
	Warnings       []string `json:"warnings,omitempty"`
}

func lineTotal(li LineItem) float64 {
	total := float64(li.Quantity) * li.UnitPrice
	if li.DiscountPercent != nil {
		total *= 1 - *li.DiscountPercent/100
	}
	return total
}

func toLineResponse(li LineItem) LineResponse {
	return LineResponse{
		ID:              li.ID,
		ItemType:        string(li.ItemType),
		CatalogID:       li.CatalogID,
		Description:     li.Description,
		Quantity:        li.Quantity,
		UnitPrice:       li.UnitPrice,
		QtyPending:      li.QtyPending,
		QtyFulfilled:    li.QtyFulfilled,
		DiscountPercent: li.DiscountPercent,
		DiscountCodeID:  li.DiscountCodeID,
		LineTotal:       lineTotal(li),
	}
}

func toQuoteResponse(q Quote) QuoteResponse {
	resp := QuoteResponse{
		ID:             q.ID,
		Number:         q.Number(),
		ProjectID:      q.ProjectID,
		CustomerID:     q.CustomerID,
		Status:         string(q.Status),
		CurrentVersion: q.CurrentVersion,
		Description:    q.Description,
		MarkupPercent:  q.MarkupPercent,
		CreatedAt:      q.CreatedAt,
		Lines:          make([]LineResponse, 0, len(q.Lines)),
	}
	for _, li := range q.Lines {
		lr := toLineResponse(li)
		resp.Total += lr.LineTotal
		resp.Lines = append(resp.Lines, lr)
	}
	return resp
}

func toSnapshotResponse(s Snapshot) SnapshotResponse {
	resp := SnapshotResponse{
		ID:                s.ID,
		Version:           s.Version,
		ActionType:        string(s.ActionType),
		ActionDescription: s.ActionDescription,
		CreatedAt:         s.CreatedAt,
		InvoiceID:         s.InvoiceID,
		Lines:             make([]SnapshotLineResponse, 0, len(s.Lines)),
	}
	for _, ls := range s.Lines {
		resp.Lines = append(resp.Lines, SnapshotLineResponse{
			OriginalLineItemID: ls.OriginalLineItemID,
			ItemType:           string(ls.ItemType),
			CatalogID:          ls.CatalogID,
			Description:        ls.Description,
			Quantity:           ls.Quantity,
			UnitPrice:          ls.UnitPrice,
			QtyPending:         ls.QtyPending,
			QtyFulfilled:       ls.QtyFulfilled,
			DiscountPercent:    ls.DiscountPercent,
			IsDeleted:          ls.IsDeleted,
		})
	}
	return resp
}

func toInvoiceResponse(inv Invoice) InvoiceResponse {
	resp := InvoiceResponse{
		ID:             inv.ID,
		ClientPONumber: inv.ClientPONumber,
		InvoiceDate:    inv.InvoiceDate,
		Notes:          inv.Notes,
		Voided:         inv.Voided(),
		CreatedAt:      inv.CreatedAt,
		Lines:          make([]InvoiceLineResponse, 0, len(inv.Lines)),
	}
	for _, il := range inv.Lines {
		resp.Lines = append(resp.Lines, InvoiceLineResponse{
			ID:                il.ID,
			QuoteLineItemID:   il.QuoteLineItemID,
			ItemType:          string(il.ItemType),
			Description:       il.Description,
			UnitPrice:         il.UnitPrice,
			QtyOrdered:        il.QtyOrdered,
			QtyThisInvoice:    il.QtyThisInvoice,
			QtyFulfilledTotal: il.QtyFulfilledTotal,
			QtyPendingAfter:   il.QtyPendingAfter,
		})
	}
	return resp
}
