package quotes

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

const quoteColumns = `q.id, q.project_id, p.project_code, q.customer_id, q.sequence,
	q.created_at, q.status, q.current_version, q.description, q.markup_percent`

func scanQuote(row pgx.Row) (Quote, error) {
	var q Quote
	err := row.Scan(&q.ID, &q.ProjectID, &q.ProjectCode, &q.CustomerID, &q.Sequence,
		&q.CreatedAt, &q.Status, &q.CurrentVersion, &q.Description, &q.MarkupPercent)
	return q, err
}

func (q queries) getQuote(ctx context.Context, id int64) (Quote, error) {
	query := `SELECT ` + quoteColumns + `
		FROM quotes q
		JOIN projects p ON p.id = q.project_id
		WHERE q.id = $1`
	quote, err := scanQuote(q.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Quote{}, fmt.Errorf("quote %d: %w", id, shared.ErrNotFound)
		}
		return Quote{}, fmt.Errorf("get quote: %w", err)
	}
	quote.Lines, err = q.listLines(ctx, quote.ID)
	if err != nil {
		return Quote{}, err
	}
	return quote, nil
}

func (q queries) listQuotes(ctx context.Context, projectID int64, limit, offset int) ([]Quote, error) {
	query := `SELECT ` + quoteColumns + `
		FROM quotes q
		JOIN projects p ON p.id = q.project_id
		WHERE ($1 = 0 OR q.project_id = $1)
		ORDER BY q.id DESC
		LIMIT $2 OFFSET $3`
	rows, err := q.db.Query(ctx, query, projectID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list quotes: %w", err)
	}
	defer rows.Close()

	var out []Quote
	for rows.Next() {
		quote, err := scanQuote(rows)
		if err != nil {
			return nil, fmt.Errorf("scan quote: %w", err)
		}
		out = append(out, quote)
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

func (q queries) insertQuote(ctx context.Context, quote Quote) (int64, error) {
	const query = `INSERT INTO quotes
			(project_id, customer_id, sequence, status, current_version, description, markup_percent)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`
	var id int64
	err := q.db.QueryRow(ctx, query, quote.ProjectID, quote.CustomerID, quote.Sequence,
		quote.Status, quote.CurrentVersion, quote.Description, quote.MarkupPercent).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert quote: %w", err)
	}
	return id, nil
}

func (q queries) updateQuote(ctx context.Context, quote Quote) error {
	const query = `UPDATE quotes SET
			customer_id = $2, status = $3, current_version = $4,
			description = $5, markup_percent = $6
		WHERE id = $1`
	tag, err := q.db.Exec(ctx, query, quote.ID, quote.CustomerID, quote.Status,
		quote.CurrentVersion, quote.Description, quote.MarkupPercent)
	if err != nil {
		return fmt.Errorf("update quote: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("quote %d: %w", quote.ID, shared.ErrNotFound)
	}
	return nil
}

func (q queries) deleteQuote(ctx context.Context, id int64) error {
	tag, err := q.db.Exec(ctx, `DELETE FROM quotes WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete quote: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("quote %d: %w", id, shared.ErrNotFound)
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
	const query = `SELECT COALESCE(MAX(sequence), 0) + 1 FROM quotes WHERE project_id = $1`
	var seq int
	if err := q.db.QueryRow(ctx, query, projectID).Scan(&seq); err != nil {
		return 0, fmt.Errorf("next quote sequence: %w", err)
	}
	return seq, nil
}

func (q queries) getCustomer(ctx context.Context, id int64) (Customer, error) {
	const query = `SELECT id, name FROM profiles WHERE id = $1`
	var c Customer
	err := q.db.QueryRow(ctx, query, id).Scan(&c.ID, &c.Name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Customer{}, fmt.Errorf("customer %d: %w", id, shared.ErrNotFound)
		}
		return Customer{}, fmt.Errorf("get customer: %w", err)
	}
	return c, nil
}

const lineColumns = `id, quote_id, item_type, catalog_id, description, quantity, unit_price,
	qty_pending, qty_fulfilled, discount_percent, discount_code_id, base_cost,
	original_markup_percent`

func scanLine(row pgx.Row) (LineItem, error) {
	var li LineItem
	err := row.Scan(&li.ID, &li.QuoteID, &li.ItemType, &li.CatalogID, &li.Description,
		&li.Quantity, &li.UnitPrice, &li.QtyPending, &li.QtyFulfilled,
		&li.DiscountPercent, &li.DiscountCodeID, &li.BaseCost, &li.OriginalMarkupPercent)
	return li, err
}

func (q queries) listLines(ctx context.Context, quoteID int64) ([]LineItem, error) {
	query := `SELECT ` + lineColumns + ` FROM quote_line_items WHERE quote_id = $1 ORDER BY id`
	rows, err := q.db.Query(ctx, query, quoteID)
	if err != nil {
		return nil, fmt.Errorf("list quote lines: %w", err)
	}
	defer rows.Close()

	var out []LineItem
	for rows.Next() {
		li, err := scanLine(rows)
		if err != nil {
			return nil, fmt.Errorf("scan quote line: %w", err)
		}
		out = append(out, li)
	}
	return out, rows.Err()
}

func (q queries) getLine(ctx context.Context, quoteID, lineID int64) (LineItem, error) {
	query := `SELECT ` + lineColumns + ` FROM quote_line_items WHERE id = $1 AND quote_id = $2`
	li, err := scanLine(q.db.QueryRow(ctx, query, lineID, quoteID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return LineItem{}, fmt.Errorf("quote line item %d: %w", lineID, shared.ErrNotFound)
		}
		return LineItem{}, fmt.Errorf("get quote line: %w", err)
	}
	return li, nil
}

func (q queries) insertLine(ctx context.Context, li LineItem) (int64, error) {
	const query = `INSERT INTO quote_line_items
			(quote_id, item_type, catalog_id, description, quantity, unit_price,
			 qty_pending, qty_fulfilled, discount_percent, discount_code_id,
			 base_cost, original_markup_percent)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id`
	var id int64
	err := q.db.QueryRow(ctx, query, li.QuoteID, li.ItemType, li.CatalogID, li.Description,
		li.Quantity, li.UnitPrice, li.QtyPending, li.QtyFulfilled, li.DiscountPercent,
		li.DiscountCodeID, li.BaseCost, li.OriginalMarkupPercent).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert quote line: %w", err)
	}
	return id, nil
}

func (q queries) updateLine(ctx context.Context, li LineItem) error {
	const query = `UPDATE quote_line_items SET
			item_type = $2, catalog_id = $3, description = $4, quantity = $5,
			unit_price = $6, qty_pending = $7, qty_fulfilled = $8,
			discount_percent = $9, discount_code_id = $10, base_cost = $11,
			original_markup_percent = $12
		WHERE id = $1`
	tag, err := q.db.Exec(ctx, query, li.ID, li.ItemType, li.CatalogID, li.Description,
		li.Quantity, li.UnitPrice, li.QtyPending, li.QtyFulfilled, li.DiscountPercent,
		li.DiscountCodeID, li.BaseCost, li.OriginalMarkupPercent)
	if err != nil {
		return fmt.Errorf("update quote line: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("quote line item %d: %w", li.ID, shared.ErrNotFound)
	}
	return nil
}

func (q queries) deleteLine(ctx context.Context, id int64) error {
	tag, err := q.db.Exec(ctx, `DELETE FROM quote_line_items WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete quote line: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("quote line item %d: %w", id, shared.ErrNotFound)
	}
	return nil
}

func (q queries) insertSnapshot(ctx context.Context, snap Snapshot) (int64, error) {
	const query = `INSERT INTO quote_snapshots
			(quote_id, version, action_type, action_description, invoice_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`
	var id int64
	err := q.db.QueryRow(ctx, query, snap.QuoteID, snap.Version, snap.ActionType,
		snap.ActionDescription, snap.InvoiceID).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert quote snapshot: %w", err)
	}
	return id, nil
}

func (q queries) insertLineSnapshot(ctx context.Context, ls LineSnapshot) error {
	const query = `INSERT INTO quote_line_item_snapshots
			(snapshot_id, original_line_item_id, item_type, catalog_id, description,
			 quantity, unit_price, qty_pending, qty_fulfilled, discount_percent,
			 discount_code_id, base_cost, original_markup_percent, is_deleted)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`
	_, err := q.db.Exec(ctx, query, ls.SnapshotID, ls.OriginalLineItemID, ls.ItemType,
		ls.CatalogID, ls.Description, ls.Quantity, ls.UnitPrice, ls.QtyPending,
		ls.QtyFulfilled, ls.DiscountPercent, ls.DiscountCodeID, ls.BaseCost,
		ls.OriginalMarkupPercent, ls.IsDeleted)
	if err != nil {
		return fmt.Errorf("insert quote line snapshot: %w", err)
	}
	return nil
}

const snapColumns = `id, quote_id, version, action_type, action_description, created_at, invoice_id`

func scanSnapshot(row pgx.Row) (Snapshot, error) {
	var s Snapshot
	err := row.Scan(&s.ID, &s.QuoteID, &s.Version, &s.ActionType,
		&s.ActionDescription, &s.CreatedAt, &s.InvoiceID)
	return s, err
}

// getSnapshot resolves a version to its latest snapshot row; non-incrementing
// actions share the version of the preceding snapshot.
func (q queries) getSnapshot(ctx context.Context, quoteID int64, version int) (Snapshot, error) {
	query := `SELECT ` + snapColumns + `
		FROM quote_snapshots
		WHERE quote_id = $1 AND version = $2
		ORDER BY id DESC
		LIMIT 1`
	s, err := scanSnapshot(q.db.QueryRow(ctx, query, quoteID, version))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Snapshot{}, fmt.Errorf("quote %d version %d: %w", quoteID, version, shared.ErrNotFound)
		}
		return Snapshot{}, fmt.Errorf("get quote snapshot: %w", err)
	}
	s.Lines, err = q.listSnapshotLines(ctx, s.ID)
	if err != nil {
		return Snapshot{}, err
	}
	return s, nil
}

func (q queries) listSnapshots(ctx context.Context, quoteID int64) ([]Snapshot, error) {
	query := `SELECT ` + snapColumns + ` FROM quote_snapshots WHERE quote_id = $1 ORDER BY id`
	rows, err := q.db.Query(ctx, query, quoteID)
	if err != nil {
		return nil, fmt.Errorf("list quote snapshots: %w", err)
	}
	defer rows.Close()

	var out []Snapshot
	for rows.Next() {
		s, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("scan quote snapshot: %w", err)
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
	const query = `SELECT id, snapshot_id, original_line_item_id, item_type, catalog_id,
			description, quantity, unit_price, qty_pending, qty_fulfilled,
			discount_percent, discount_code_id, base_cost, original_markup_percent,
			is_deleted
		FROM quote_line_item_snapshots WHERE snapshot_id = $1 ORDER BY id`
	rows, err := q.db.Query(ctx, query, snapshotID)
	if err != nil {
		return nil, fmt.Errorf("list quote snapshot lines: %w", err)
	}
	defer rows.Close()

	var out []LineSnapshot
	for rows.Next() {
		var ls LineSnapshot
		if err := rows.Scan(&ls.ID, &ls.SnapshotID, &ls.OriginalLineItemID, &ls.ItemType,
			&ls.CatalogID, &ls.Description, &ls.Quantity, &ls.UnitPrice, &ls.QtyPending,
			&ls.QtyFulfilled, &ls.DiscountPercent, &ls.DiscountCodeID, &ls.BaseCost,
			&ls.OriginalMarkupPercent, &ls.IsDeleted); err != nil {
			return nil, fmt.Errorf("scan quote snapshot line: %w", err)
		}
		out = append(out, ls)
	}
	return out, rows.Err()
}

func (q queries) insertInvoice(ctx context.Context, inv Invoice) (int64, error) {
	const query = `INSERT INTO invoices (quote_id, client_po_number, invoice_date, notes)
		VALUES ($1, $2, $3, NULLIF($4, ''))
		RETURNING id`
	var id int64
	err := q.db.QueryRow(ctx, query, inv.QuoteID, inv.ClientPONumber, inv.InvoiceDate, inv.Notes).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert invoice: %w", err)
	}
	return id, nil
}

func (q queries) insertInvoiceLine(ctx context.Context, il InvoiceLine) (int64, error) {
	const query = `INSERT INTO invoice_line_items
			(invoice_id, quote_line_item_id, item_type, description, unit_price,
			 qty_ordered, qty_this_invoice, qty_fulfilled_total, qty_pending_after)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`
	var id int64
	err := q.db.QueryRow(ctx, query, il.InvoiceID, il.QuoteLineItemID, il.ItemType,
		il.Description, il.UnitPrice, il.QtyOrdered, il.QtyThisInvoice,
		il.QtyFulfilledTotal, il.QtyPendingAfter).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert invoice line: %w", err)
	}
	return id, nil
}

const invoiceColumns = `i.id, i.quote_id, i.client_po_number, i.created_at, i.invoice_date,
	COALESCE(i.notes, ''), i.voided_at, i.voided_by_snapshot_id`

func scanInvoice(row pgx.Row) (Invoice, error) {
	var inv Invoice
	err := row.Scan(&inv.ID, &inv.QuoteID, &inv.ClientPONumber, &inv.CreatedAt,
		&inv.InvoiceDate, &inv.Notes, &inv.VoidedAt, &inv.VoidedBySnapshotID)
	return inv, err
}

func (q queries) listInvoices(ctx context.Context, quoteID int64) ([]Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices i WHERE i.quote_id = $1 ORDER BY i.id`
	rows, err := q.db.Query(ctx, query, quoteID)
	if err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}
	defer rows.Close()

	var out []Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, fmt.Errorf("scan invoice: %w", err)
		}
		out = append(out, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Lines, err = q.listInvoiceLines(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (q queries) listActiveInvoicesAfter(ctx context.Context, quoteID int64, version int) ([]Invoice, error) {
	query := `SELECT ` + invoiceColumns + `
		FROM invoices i
		WHERE i.quote_id = $1 AND i.voided_at IS NULL
		  AND EXISTS (
			SELECT 1 FROM quote_snapshots s
			WHERE s.invoice_id = i.id AND s.version > $2
		  )
		ORDER BY i.id`
	rows, err := q.db.Query(ctx, query, quoteID, version)
	if err != nil {
		return nil, fmt.Errorf("list invoices after version: %w", err)
	}
	defer rows.Close()

	var out []Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, fmt.Errorf("scan invoice: %w", err)
		}
		out = append(out, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Lines, err = q.listInvoiceLines(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (q queries) listInvoiceLines(ctx context.Context, invoiceID int64) ([]InvoiceLine, error) {
	const query = `SELECT id, invoice_id, quote_line_item_id, item_type, description,
			unit_price, qty_ordered, qty_this_invoice, qty_fulfilled_total, qty_pending_after
		FROM invoice_line_items WHERE invoice_id = $1 ORDER BY id`
	rows, err := q.db.Query(ctx, query, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("list invoice lines: %w", err)
	}
	defer rows.Close()

	var out []InvoiceLine
	for rows.Next() {
		var il InvoiceLine
		if err := rows.Scan(&il.ID, &il.InvoiceID, &il.QuoteLineItemID, &il.ItemType,
			&il.Description, &il.UnitPrice, &il.QtyOrdered, &il.QtyThisInvoice,
			&il.QtyFulfilledTotal, &il.QtyPendingAfter); err != nil {
			return nil, fmt.Errorf("scan invoice line: %w", err)
		}
		out = append(out, il)
	}
	return out, rows.Err()
}

// listActiveInvoiceLines returns every line of every non-voided invoice for the
// quote, the input to the aggregate recomputation.
func (q queries) listActiveInvoiceLines(ctx context.Context, quoteID int64) ([]InvoiceLine, error) {
	const query = `SELECT l.id, l.invoice_id, l.quote_line_item_id, l.item_type, l.description,
			l.unit_price, l.qty_ordered, l.qty_this_invoice, l.qty_fulfilled_total,
			l.qty_pending_after
		FROM invoice_line_items l
		JOIN invoices i ON i.id = l.invoice_id
		WHERE i.quote_id = $1 AND i.voided_at IS NULL
		ORDER BY l.id`
	rows, err := q.db.Query(ctx, query, quoteID)
	if err != nil {
		return nil, fmt.Errorf("list active invoice lines: %w", err)
	}
	defer rows.Close()

	var out []InvoiceLine
	for rows.Next() {
		var il InvoiceLine
		if err := rows.Scan(&il.ID, &il.InvoiceID, &il.QuoteLineItemID, &il.ItemType,
			&il.Description, &il.UnitPrice, &il.QtyOrdered, &il.QtyThisInvoice,
			&il.QtyFulfilledTotal, &il.QtyPendingAfter); err != nil {
			return nil, fmt.Errorf("scan invoice line: %w", err)
		}
		out = append(out, il)
	}
	return out, rows.Err()
}

func (q queries) voidInvoice(ctx context.Context, id int64, at time.Time) error {
	_, err := q.db.Exec(ctx, `UPDATE invoices SET voided_at = $2 WHERE id = $1`, id, at)
	if err != nil {
		return fmt.Errorf("void invoice: %w", err)
	}
	return nil
}

func (q queries) setInvoiceVoidedBy(ctx context.Context, invoiceIDs []int64, snapshotID int64) error {
	if len(invoiceIDs) == 0 {
		return nil
	}
	_, err := q.db.Exec(ctx,
		`UPDATE invoices SET voided_by_snapshot_id = $2 WHERE id = ANY($1)`,
		invoiceIDs, snapshotID)
	if err != nil {
		return fmt.Errorf("set invoice voided-by: %w", err)
	}
	return nil
}

func (q queries) repointInvoiceLines(ctx context.Context, oldLineID, newLineID int64) error {
	_, err := q.db.Exec(ctx,
		`UPDATE invoice_line_items SET quote_line_item_id = $2 WHERE quote_line_item_id = $1`,
		oldLineID, newLineID)
	if err != nil {
		return fmt.Errorf("repoint invoice lines: %w", err)
	}
	return nil
}
