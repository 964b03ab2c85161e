package purchaseorders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/quoteflow-erp/quoteflow/internal/shared"
)

// dbtx is satisfied by both *pgxpool.Pool and pgx.Tx so the same queries serve
// reads on the pool and writes inside a transaction.
type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type queries struct {
	db dbtx
}

const poColumns = `po.id, po.project_id, p.project_code, po.vendor_id, po.sequence,
	po.created_at, po.status, po.current_version, po.work_description,
	COALESCE(po.vendor_po_number, ''), po.expected_delivery_date`

func scanPO(row pgx.Row) (PurchaseOrder, error) {
	var po PurchaseOrder
	err := row.Scan(&po.ID, &po.ProjectID, &po.ProjectCode, &po.VendorID, &po.Sequence,
		&po.CreatedAt, &po.Status, &po.CurrentVersion, &po.WorkDescription,
		&po.VendorPONumber, &po.ExpectedDeliveryDate)
	return po, err
}

func (q queries) getPurchaseOrder(ctx context.Context, id int64) (PurchaseOrder, error) {
	query := `SELECT ` + poColumns + `
		FROM purchase_orders po
		JOIN projects p ON p.id = po.project_id
		WHERE po.id = $1`
	po, err := scanPO(q.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PurchaseOrder{}, fmt.Errorf("purchase order %d: %w", id, shared.ErrNotFound)
		}
		return PurchaseOrder{}, fmt.Errorf("get purchase order: %w", err)
	}
	po.Lines, err = q.listLines(ctx, po.ID)
	if err != nil {
		return PurchaseOrder{}, err
	}
	return po, nil
}

func (q queries) listPurchaseOrders(ctx context.Context, projectID int64, limit, offset int) ([]PurchaseOrder, error) {
	query := `SELECT ` + poColumns + `
		FROM purchase_orders po
		JOIN projects p ON p.id = po.project_id
		WHERE ($1 = 0 OR po.project_id = $1)
		ORDER BY po.id DESC
		LIMIT $2 OFFSET $3`
	rows, err := q.db.Query(ctx, query, projectID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list purchase orders: %w", err)
	}
	defer rows.Close()

	var out []PurchaseOrder
	for rows.Next() {
		po, err := scanPO(rows)
		if err != nil {
			return nil, fmt.Errorf("scan purchase order: %w", err)
		}
		out = append(out, po)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Lines, err = q.listLines(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (q queries) insertPurchaseOrder(ctx context.Context, po PurchaseOrder) (int64, error) {
	const query = `INSERT INTO purchase_orders
			(project_id, vendor_id, sequence, status, current_version,
			 work_description, vendor_po_number, expected_delivery_date)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), $8)
		RETURNING id`
	var id int64
	err := q.db.QueryRow(ctx, query, po.ProjectID, po.VendorID, po.Sequence, po.Status,
		po.CurrentVersion, po.WorkDescription, po.VendorPONumber, po.ExpectedDeliveryDate).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert purchase order: %w", err)
	}
	return id, nil
}

func (q queries) updatePurchaseOrder(ctx context.Context, po PurchaseOrder) error {
	const query = `UPDATE purchase_orders SET
			vendor_id = $2, status = $3, current_version = $4,
			work_description = $5, vendor_po_number = NULLIF($6, ''),
			expected_delivery_date = $7
		WHERE id = $1`
	tag, err := q.db.Exec(ctx, query, po.ID, po.VendorID, po.Status, po.CurrentVersion,
		po.WorkDescription, po.VendorPONumber, po.ExpectedDeliveryDate)
	if err != nil {
		return fmt.Errorf("update purchase order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("purchase order %d: %w", po.ID, shared.ErrNotFound)
	}
	return nil
}

func (q queries) deletePurchaseOrder(ctx context.Context, id int64) error {
	tag, err := q.db.Exec(ctx, `DELETE FROM purchase_orders WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete purchase order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("purchase order %d: %w", id, shared.ErrNotFound)
	}
	return nil
}

func (q queries) lockProject(ctx context.Context, projectID int64) (Project, error) {
	const query = `SELECT id, project_code, name FROM projects WHERE id = $1 FOR UPDATE`
	var p Project
	err := q.db.QueryRow(ctx, query, projectID).Scan(&p.ID, &p.Code, &p.Name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Project{}, fmt.Errorf("project %d: %w", projectID, shared.ErrNotFound)
		}
		return Project{}, fmt.Errorf("lock project: %w", err)
	}
	return p, nil
}

func (q queries) nextSequence(ctx context.Context, projectID int64) (int, error) {
	const query = `SELECT COALESCE(MAX(sequence), 0) + 1
		FROM purchase_orders WHERE project_id = $1`
	var seq int
	if err := q.db.QueryRow(ctx, query, projectID).Scan(&seq); err != nil {
		return 0, fmt.Errorf("next po sequence: %w", err)
	}
	return seq, nil
}

func (q queries) getVendor(ctx context.Context, id int64) (Vendor, error) {
	const query = `SELECT id, name, is_vendor FROM profiles WHERE id = $1`
	var v Vendor
	err := q.db.QueryRow(ctx, query, id).Scan(&v.ID, &v.Name, &v.IsVendor)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Vendor{}, fmt.Errorf("vendor %d: %w", id, shared.ErrNotFound)
		}
		return Vendor{}, fmt.Errorf("get vendor: %w", err)
	}
	return v, nil
}

const lineColumns = `id, po_id, item_type, part_id, description, quantity,
	unit_price, qty_pending, qty_received, actual_unit_price`

func scanLine(row pgx.Row) (LineItem, error) {
	var li LineItem
	err := row.Scan(&li.ID, &li.PurchaseOrderID, &li.ItemType, &li.PartID, &li.Description,
		&li.Quantity, &li.UnitPrice, &li.QtyPending, &li.QtyReceived, &li.ActualUnitPrice)
	return li, err
}

func (q queries) listLines(ctx context.Context, poID int64) ([]LineItem, error) {
	query := `SELECT ` + lineColumns + ` FROM po_line_items WHERE po_id = $1 ORDER BY id`
	rows, err := q.db.Query(ctx, query, poID)
	if err != nil {
		return nil, fmt.Errorf("list po lines: %w", err)
	}
	defer rows.Close()

	var out []LineItem
	for rows.Next() {
		li, err := scanLine(rows)
		if err != nil {
			return nil, fmt.Errorf("scan po line: %w", err)
		}
		out = append(out, li)
	}
	return out, rows.Err()
}

func (q queries) getLine(ctx context.Context, poID, lineID int64) (LineItem, error) {
	query := `SELECT ` + lineColumns + ` FROM po_line_items WHERE id = $1 AND po_id = $2`
	li, err := scanLine(q.db.QueryRow(ctx, query, lineID, poID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return LineItem{}, fmt.Errorf("po line item %d: %w", lineID, shared.ErrNotFound)
		}
		return LineItem{}, fmt.Errorf("get po line: %w", err)
	}
	return li, nil
}

func (q queries) insertLine(ctx context.Context, li LineItem) (int64, error) {
	const query = `INSERT INTO po_line_items
			(po_id, item_type, part_id, description, quantity, unit_price,
			 qty_pending, qty_received, actual_unit_price)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`
	var id int64
	err := q.db.QueryRow(ctx, query, li.PurchaseOrderID, li.ItemType, li.PartID, li.Description,
		li.Quantity, li.UnitPrice, li.QtyPending, li.QtyReceived, li.ActualUnitPrice).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert po line: %w", err)
	}
	return id, nil
}

func (q queries) updateLine(ctx context.Context, li LineItem) error {
	const query = `UPDATE po_line_items SET
			item_type = $2, part_id = $3, description = $4, quantity = $5,
			unit_price = $6, qty_pending = $7, qty_received = $8, actual_unit_price = $9
		WHERE id = $1`
	tag, err := q.db.Exec(ctx, query, li.ID, li.ItemType, li.PartID, li.Description,
		li.Quantity, li.UnitPrice, li.QtyPending, li.QtyReceived, li.ActualUnitPrice)
	if err != nil {
		return fmt.Errorf("update po line: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("po line item %d: %w", li.ID, shared.ErrNotFound)
	}
	return nil
}

func (q queries) deleteLine(ctx context.Context, id int64) error {
	tag, err := q.db.Exec(ctx, `DELETE FROM po_line_items WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete po line: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("po line item %d: %w", id, shared.ErrNotFound)
	}
	return nil
}

func (q queries) insertSnapshot(ctx context.Context, snap Snapshot) (int64, error) {
	const query = `INSERT INTO po_snapshots
			(po_id, version, action_type, action_description, receiving_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`
	var id int64
	err := q.db.QueryRow(ctx, query, snap.PurchaseOrderID, snap.Version, snap.ActionType,
		snap.ActionDescription, snap.ReceivingID).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert po snapshot: %w", err)
	}
	return id, nil
}

func (q queries) insertLineSnapshot(ctx context.Context, ls LineSnapshot) error {
	const query = `INSERT INTO po_line_item_snapshots
			(snapshot_id, original_line_item_id, item_type, part_id, description,
			 quantity, unit_price, qty_pending, qty_received, actual_unit_price, is_deleted)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err := q.db.Exec(ctx, query, ls.SnapshotID, ls.OriginalLineItemID, ls.ItemType, ls.PartID,
		ls.Description, ls.Quantity, ls.UnitPrice, ls.QtyPending, ls.QtyReceived,
		ls.ActualUnitPrice, ls.IsDeleted)
	if err != nil {
		return fmt.Errorf("insert po line snapshot: %w", err)
	}
	return nil
}

const snapColumns = `id, po_id, version, action_type, action_description, created_at, receiving_id`

func scanSnapshot(row pgx.Row) (Snapshot, error) {
	var s Snapshot
	err := row.Scan(&s.ID, &s.PurchaseOrderID, &s.Version, &s.ActionType,
		&s.ActionDescription, &s.CreatedAt, &s.ReceivingID)
	return s, err
}

// getSnapshot resolves a version to its latest snapshot row. Non-incrementing
// actions (create, status_change) share the version of the preceding snapshot,
// so the newest row with the version is the authoritative state.
func (q queries) getSnapshot(ctx context.Context, poID int64, version int) (Snapshot, error) {
	query := `SELECT ` + snapColumns + `
		FROM po_snapshots
		WHERE po_id = $1 AND version = $2
		ORDER BY id DESC
		LIMIT 1`
	s, err := scanSnapshot(q.db.QueryRow(ctx, query, poID, version))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Snapshot{}, fmt.Errorf("po %d version %d: %w", poID, version, shared.ErrNotFound)
		}
		return Snapshot{}, fmt.Errorf("get po snapshot: %w", err)
	}
	s.Lines, err = q.listSnapshotLines(ctx, s.ID)
	if err != nil {
		return Snapshot{}, err
	}
	return s, nil
}

func (q queries) listSnapshots(ctx context.Context, poID int64) ([]Snapshot, error) {
	query := `SELECT ` + snapColumns + `
		FROM po_snapshots WHERE po_id = $1 ORDER BY id`
	rows, err := q.db.Query(ctx, query, poID)
	if err != nil {
		return nil, fmt.Errorf("list po snapshots: %w", err)
	}
	defer rows.Close()

	var out []Snapshot
	for rows.Next() {
		s, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("scan po snapshot: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Lines, err = q.listSnapshotLines(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (q queries) listSnapshotLines(ctx context.Context, snapshotID int64) ([]LineSnapshot, error) {
	const query = `SELECT id, snapshot_id, original_line_item_id, item_type, part_id,
			description, quantity, unit_price, qty_pending, qty_received,
			actual_unit_price, is_deleted
		FROM po_line_item_snapshots WHERE snapshot_id = $1 ORDER BY id`
	rows, err := q.db.Query(ctx, query, snapshotID)
	if err != nil {
		return nil, fmt.Errorf("list po snapshot lines: %w", err)
	}
	defer rows.Close()

	var out []LineSnapshot
	for rows.Next() {
		var ls LineSnapshot
		if err := rows.Scan(&ls.ID, &ls.SnapshotID, &ls.OriginalLineItemID, &ls.ItemType,
			&ls.PartID, &ls.Description, &ls.Quantity, &ls.UnitPrice, &ls.QtyPending,
			&ls.QtyReceived, &ls.ActualUnitPrice, &ls.IsDeleted); err != nil {
			return nil, fmt.Errorf("scan po snapshot line: %w", err)
		}
		out = append(out, ls)
	}
	return out, rows.Err()
}

func (q queries) insertReceiving(ctx context.Context, rec Receiving) (int64, error) {
	const query = `INSERT INTO po_receivings (po_id, received_date, notes)
		VALUES ($1, $2, NULLIF($3, ''))
		RETURNING id`
	var id int64
	err := q.db.QueryRow(ctx, query, rec.PurchaseOrderID, rec.ReceivedDate, rec.Notes).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert receiving: %w", err)
	}
	return id, nil
}

func (q queries) insertReceivingLine(ctx context.Context, rl ReceivingLine) (int64, error) {
	const query = `INSERT INTO po_receiving_line_items
			(receiving_id, po_line_item_id, item_type, part_id, description,
			 unit_price, actual_unit_price, qty_ordered, qty_received_this_receiving,
			 qty_received_total, qty_pending_after)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id`
	var id int64
	err := q.db.QueryRow(ctx, query, rl.ReceivingID, rl.POLineItemID, rl.ItemType, rl.PartID,
		rl.Description, rl.UnitPrice, rl.ActualUnitPrice, rl.QtyOrdered, rl.QtyThisReceiving,
		rl.QtyReceivedTotal, rl.QtyPendingAfter).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert receiving line: %w", err)
	}
	return id, nil
}

const recColumns = `id, po_id, created_at, received_date, COALESCE(notes, ''),
	voided_at, voided_by_snapshot_id`

func scanReceiving(row pgx.Row) (Receiving, error) {
	var r Receiving
	err := row.Scan(&r.ID, &r.PurchaseOrderID, &r.CreatedAt, &r.ReceivedDate, &r.Notes,
		&r.VoidedAt, &r.VoidedBySnapshotID)
	return r, err
}

func (q queries) listReceivings(ctx context.Context, poID int64, activeOnly bool) ([]Receiving, error) {
	query := `SELECT ` + recColumns + ` FROM po_receivings WHERE po_id = $1`
	if activeOnly {
		query += ` AND voided_at IS NULL`
	}
	query += ` ORDER BY id`
	rows, err := q.db.Query(ctx, query, poID)
	if err != nil {
		return nil, fmt.Errorf("list receivings: %w", err)
	}
	defer rows.Close()

	var out []Receiving
	for rows.Next() {
		r, err := scanReceiving(rows)
		if err != nil {
			return nil, fmt.Errorf("scan receiving: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Lines, err = q.listReceivingLines(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// listActiveReceivingsAfter finds non-voided receivings recorded after the
// given version, via the snapshot each receiving produced.
func (q queries) listActiveReceivingsAfter(ctx context.Context, poID int64, version int) ([]Receiving, error) {
	const query = `SELECT r.id, r.po_id, r.created_at, r.received_date, COALESCE(r.notes, ''),
			r.voided_at, r.voided_by_snapshot_id
		FROM po_receivings r
		WHERE r.po_id = $1 AND r.voided_at IS NULL
		  AND EXISTS (
			SELECT 1 FROM po_snapshots s
			WHERE s.receiving_id = r.id AND s.version > $2
		  )
		ORDER BY r.id`
	rows, err := q.db.Query(ctx, query, poID, version)
	if err != nil {
		return nil, fmt.Errorf("list receivings after version: %w", err)
	}
	defer rows.Close()

	var out []Receiving
	for rows.Next() {
		r, err := scanReceiving(rows)
		if err != nil {
			return nil, fmt.Errorf("scan receiving: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Lines, err = q.listReceivingLines(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (q queries) listReceivingLines(ctx context.Context, receivingID int64) ([]ReceivingLine, error) {
	const query = `SELECT id, receiving_id, po_line_item_id, item_type, part_id, description,
			unit_price, actual_unit_price, qty_ordered, qty_received_this_receiving,
			qty_received_total, qty_pending_after
		FROM po_receiving_line_items WHERE receiving_id = $1 ORDER BY id`
	rows, err := q.db.Query(ctx, query, receivingID)
	if err != nil {
		return nil, fmt.Errorf("list receiving lines: %w", err)
	}
	defer rows.Close()

	var out []ReceivingLine
	for rows.Next() {
		var rl ReceivingLine
		if err := rows.Scan(&rl.ID, &rl.ReceivingID, &rl.POLineItemID, &rl.ItemType, &rl.PartID,
			&rl.Description, &rl.UnitPrice, &rl.ActualUnitPrice, &rl.QtyOrdered,
			&rl.QtyThisReceiving, &rl.QtyReceivedTotal, &rl.QtyPendingAfter); err != nil {
			return nil, fmt.Errorf("scan receiving line: %w", err)
		}
		out = append(out, rl)
	}
	return out, rows.Err()
}

// listActiveReceivingLines returns every line of every non-voided receiving for
// the order, the input to the weighted-average and quantity recomputations.
func (q queries) listActiveReceivingLines(ctx context.Context, poID int64) ([]ReceivingLine, error) {
	const query = `SELECT l.id, l.receiving_id, l.po_line_item_id, l.item_type, l.part_id,
			l.description, l.unit_price, l.actual_unit_price, l.qty_ordered,
			l.qty_received_this_receiving, l.qty_received_total, l.qty_pending_after
		FROM po_receiving_line_items l
		JOIN po_receivings r ON r.id = l.receiving_id
		WHERE r.po_id = $1 AND r.voided_at IS NULL
		ORDER BY l.id`
	rows, err := q.db.Query(ctx, query, poID)
	if err != nil {
		return nil, fmt.Errorf("list active receiving lines: %w", err)
	}
	defer rows.Close()

	var out []ReceivingLine
	for rows.Next() {
		var rl ReceivingLine
		if err := rows.Scan(&rl.ID, &rl.ReceivingID, &rl.POLineItemID, &rl.ItemType, &rl.PartID,
			&rl.Description, &rl.UnitPrice, &rl.ActualUnitPrice, &rl.QtyOrdered,
			&rl.QtyThisReceiving, &rl.QtyReceivedTotal, &rl.QtyPendingAfter); err != nil {
			return nil, fmt.Errorf("scan receiving line: %w", err)
		}
		out = append(out, rl)
	}
	return out, rows.Err()
}

func (q queries) voidReceiving(ctx context.Context, id int64, at time.Time) error {
	_, err := q.db.Exec(ctx, `UPDATE po_receivings SET voided_at = $2 WHERE id = $1`, id, at)
	if err != nil {
		return fmt.Errorf("void receiving: %w", err)
	}
	return nil
}

func (q queries) setReceivingVoidedBy(ctx context.Context, receivingIDs []int64, snapshotID int64) error {
	if len(receivingIDs) == 0 {
		return nil
	}
	_, err := q.db.Exec(ctx,
		`UPDATE po_receivings SET voided_by_snapshot_id = $2 WHERE id = ANY($1)`,
		receivingIDs, snapshotID)
	if err != nil {
		return fmt.Errorf("set receiving voided-by: %w", err)
	}
	return nil
}

func (q queries) repointReceivingLines(ctx context.Context, oldLineID, newLineID int64) error {
	_, err := q.db.Exec(ctx,
		`UPDATE po_receiving_line_items SET po_line_item_id = $2 WHERE po_line_item_id = $1`,
		oldLineID, newLineID)
	if err != nil {
		return fmt.Errorf("repoint receiving lines: %w", err)
	}
	return nil
}
