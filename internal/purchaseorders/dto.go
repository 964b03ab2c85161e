package purchaseorders

import "time"

type LineInput struct {
	ItemType    string  `json:"item_type" validate:"required,oneof=part misc"`
	PartID      *int64  `json:"part_id,omitempty"`
	Description string  `json:"description" validate:"required_without=PartID,max=500"`
	Quantity    int     `json:"quantity" validate:"required,gte=1"`
	UnitPrice   float64 `json:"unit_price" validate:"gte=0"`
}

type CreatePORequest struct {
	ProjectID            int64       `json:"project_id" validate:"required,gt=0"`
	VendorID             int64       `json:"vendor_id" validate:"required,gt=0"`
	WorkDescription      string      `json:"work_description" validate:"max=2000"`
	VendorPONumber       string      `json:"vendor_po_number" validate:"max=100"`
	ExpectedDeliveryDate *time.Time  `json:"expected_delivery_date,omitempty"`
	Lines                []LineInput `json:"line_items" validate:"dive"`
}

type UpdatePORequest struct {
	VendorID             *int64     `json:"vendor_id,omitempty" validate:"omitempty,gt=0"`
	Status               *string    `json:"status,omitempty" validate:"omitempty,oneof=draft sent received closed"`
	WorkDescription      *string    `json:"work_description,omitempty" validate:"omitempty,max=2000"`
	VendorPONumber       *string    `json:"vendor_po_number,omitempty" validate:"omitempty,max=100"`
	ExpectedDeliveryDate *time.Time `json:"expected_delivery_date,omitempty"`
}

type LineEdit struct {
	ID          int64    `json:"id" validate:"required,gt=0"`
	Description *string  `json:"description,omitempty" validate:"omitempty,max=500"`
	Quantity    *int     `json:"quantity,omitempty" validate:"omitempty,gte=1"`
	UnitPrice   *float64 `json:"unit_price,omitempty" validate:"omitempty,gte=0"`
}

// BatchRequest carries a mixed set of line mutations committed as one version.
type BatchRequest struct {
	Adds    []LineInput `json:"adds" validate:"dive"`
	Edits   []LineEdit  `json:"edits" validate:"dive"`
	Deletes []int64     `json:"deletes" validate:"dive,gt=0"`
}

type ReceivingLineInput struct {
	LineItemID      int64    `json:"line_item_id" validate:"required,gt=0"`
	Qty             int      `json:"qty_received" validate:"required,gte=1"`
	ActualUnitPrice *float64 `json:"actual_unit_price,omitempty" validate:"omitempty,gte=0"`
}

type ReceivingRequest struct {
	ReceivedDate *time.Time           `json:"received_date,omitempty"`
	Notes        string               `json:"notes" validate:"max=2000"`
	Lines        []ReceivingLineInput `json:"line_items" validate:"required,min=1,dive"`
}

type RevertRequest struct {
	Version int `json:"version" validate:"gte=0"`
}

type LineResponse struct {
	ID              int64    `json:"id"`
	ItemType        string   `json:"item_type"`
	PartID          *int64   `json:"part_id,omitempty"`
	Description     string   `json:"description"`
	Quantity        int      `json:"quantity"`
	UnitPrice       float64  `json:"unit_price"`
	QtyPending      int      `json:"qty_pending"`
	QtyReceived     int      `json:"qty_received"`
	ActualUnitPrice *float64 `json:"actual_unit_price,omitempty"`
}

type POResponse struct {
	ID                   int64          `json:"id"`
	Number               string         `json:"po_number"`
	ProjectID            int64          `json:"project_id"`
	VendorID             int64          `json:"vendor_id"`
	Status               string         `json:"status"`
	CurrentVersion       int            `json:"current_version"`
	WorkDescription      string         `json:"work_description"`
	VendorPONumber       string         `json:"vendor_po_number,omitempty"`
	ExpectedDeliveryDate *time.Time     `json:"expected_delivery_date,omitempty"`
	CreatedAt            time.Time      `json:"created_at"`
	Lines                []LineResponse `json:"line_items"`
}

type SnapshotLineResponse struct {
	OriginalLineItemID int64    `json:"original_line_item_id"`
	ItemType           string   `json:"item_type"`
	PartID             *int64   `json:"part_id,omitempty"`
	Description        string   `json:"description"`
	Quantity           int      `json:"quantity"`
	UnitPrice          float64  `json:"unit_price"`
	QtyPending         int      `json:"qty_pending"`
	QtyReceived        int      `json:"qty_received"`
	ActualUnitPrice    *float64 `json:"actual_unit_price,omitempty"`
	IsDeleted          bool     `json:"is_deleted,omitempty"`
}

type SnapshotResponse struct {
	ID                int64                  `json:"id"`
	Version           int                    `json:"version"`
	ActionType        string                 `json:"action_type"`
	ActionDescription string                 `json:"action_description"`
	CreatedAt         time.Time              `json:"created_at"`
	ReceivingID       *int64                 `json:"receiving_id,omitempty"`
	Lines             []SnapshotLineResponse `json:"line_items"`
}

type ReceivingLineResponse struct {
	ID               int64    `json:"id"`
	POLineItemID     int64    `json:"po_line_item_id"`
	ItemType         string   `json:"item_type"`
	Description      string   `json:"description"`
	UnitPrice        float64  `json:"unit_price"`
	ActualUnitPrice  *float64 `json:"actual_unit_price,omitempty"`
	QtyOrdered       int      `json:"qty_ordered"`
	QtyThisReceiving int      `json:"qty_received_this_receiving"`
	QtyReceivedTotal int      `json:"qty_received_total"`
	QtyPendingAfter  int      `json:"qty_pending_after"`
}

type ReceivingResponse struct {
	ID           int64                   `json:"id"`
	ReceivedDate time.Time               `json:"received_date"`
	Notes        string                  `json:"notes,omitempty"`
	Voided       bool                    `json:"voided"`
	CreatedAt    time.Time               `json:"created_at"`
	Lines        []ReceivingLineResponse `json:"line_items"`
}

// RevertPreview describes what a revert would do without performing it.
type RevertPreview struct {
	TargetVersion     int      `json:"target_version"`
	CurrentVersion    int      `json:"current_version"`
	ReceivingsToVoid  []int64  `json:"receivings_to_void"`
	Warnings          []string `json:"warnings,omitempty"`
}

func toLineResponse(li LineItem) LineResponse {
	return LineResponse{
		ID:              li.ID,
		ItemType:        string(li.ItemType),
		PartID:          li.PartID,
		Description:     li.Description,
		Quantity:        li.Quantity,
		UnitPrice:       li.UnitPrice,
		QtyPending:      li.QtyPending,
		QtyReceived:     li.QtyReceived,
		ActualUnitPrice: li.ActualUnitPrice,
	}
}

func toPOResponse(po PurchaseOrder) POResponse {
	resp := POResponse{
		ID:                   po.ID,
		Number:               po.Number(),
		ProjectID:            po.ProjectID,
		VendorID:             po.VendorID,
		Status:               string(po.Status),
		CurrentVersion:       po.CurrentVersion,
		WorkDescription:      po.WorkDescription,
		VendorPONumber:       po.VendorPONumber,
		ExpectedDeliveryDate: po.ExpectedDeliveryDate,
		CreatedAt:            po.CreatedAt,
		Lines:                make([]LineResponse, 0, len(po.Lines)),
	}
	for _, li := range po.Lines {
		resp.Lines = append(resp.Lines, toLineResponse(li))
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
		ReceivingID:       s.ReceivingID,
		Lines:             make([]SnapshotLineResponse, 0, len(s.Lines)),
	}
	for _, ls := range s.Lines {
		resp.Lines = append(resp.Lines, SnapshotLineResponse{
			OriginalLineItemID: ls.OriginalLineItemID,
			ItemType:           string(ls.ItemType),
			PartID:             ls.PartID,
			Description:        ls.Description,
			Quantity:           ls.Quantity,
			UnitPrice:          ls.UnitPrice,
			QtyPending:         ls.QtyPending,
			QtyReceived:        ls.QtyReceived,
			ActualUnitPrice:    ls.ActualUnitPrice,
			IsDeleted:          ls.IsDeleted,
		})
	}
	return resp
}

func toReceivingResponse(r Receiving) ReceivingResponse {
	resp := ReceivingResponse{
		ID:           r.ID,
		ReceivedDate: r.ReceivedDate,
		Notes:        r.Notes,
		Voided:       r.Voided(),
		CreatedAt:    r.CreatedAt,
		Lines:        make([]ReceivingLineResponse, 0, len(r.Lines)),
	}
	for _, rl := range r.Lines {
		resp.Lines = append(resp.Lines, ReceivingLineResponse{
			ID:               rl.ID,
			POLineItemID:     rl.POLineItemID,
			ItemType:         string(rl.ItemType),
			Description:      rl.Description,
			UnitPrice:        rl.UnitPrice,
			ActualUnitPrice:  rl.ActualUnitPrice,
			QtyOrdered:       rl.QtyOrdered,
			QtyThisReceiving: rl.QtyThisReceiving,
			QtyReceivedTotal: rl.QtyReceivedTotal,
			QtyPendingAfter:  rl.QtyPendingAfter,
		})
	}
	return resp
}
