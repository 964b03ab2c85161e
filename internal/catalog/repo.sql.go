package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quoteflow-erp/quoteflow/internal/shared"
)

// Repository provides PostgreSQL backed catalog lookups.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Part(ctx context.Context, id int64) (Part, error) {
	const q = `SELECT id, part_number, description, cost, COALESCE(markup_percent, 0)
		FROM parts WHERE id = $1`
	var p Part
	err := r.pool.QueryRow(ctx, q, id).Scan(&p.ID, &p.PartNumber, &p.Description, &p.Cost, &p.MarkupPercent)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Part{}, fmt.Errorf("catalog: part %d: %w", id, shared.ErrNotFound)
		}
		return Part{}, err
	}
	return p, nil
}

func (r *Repository) Labor(ctx context.Context, id int64) (Labor, error) {
	const q = `SELECT id, description, hours, rate, COALESCE(markup_percent, 0)
		FROM labor WHERE id = $1`
	var l Labor
	err := r.pool.QueryRow(ctx, q, id).Scan(&l.ID, &l.Description, &l.Hours, &l.Rate, &l.MarkupPercent)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Labor{}, fmt.Errorf("catalog: labor %d: %w", id, shared.ErrNotFound)
		}
		return Labor{}, err
	}
	return l, nil
}

func (r *Repository) Misc(ctx context.Context, id int64) (Misc, error) {
	const q = `SELECT id, description, unit_price, COALESCE(markup_percent, 0)
		FROM miscellaneous WHERE id = $1`
	var m Misc
	err := r.pool.QueryRow(ctx, q, id).Scan(&m.ID, &m.Description, &m.UnitPrice, &m.MarkupPercent)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Misc{}, fmt.Errorf("catalog: misc %d: %w", id, shared.ErrNotFound)
		}
		return Misc{}, err
	}
	return m, nil
}

func (r *Repository) DiscountCode(ctx context.Context, id int64) (DiscountCode, error) {
	const q = `SELECT id, code, discount_percent, is_archived
		FROM discount_codes WHERE id = $1`
	var d DiscountCode
	err := r.pool.QueryRow(ctx, q, id).Scan(&d.ID, &d.Code, &d.DiscountPercent, &d.Archived)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return DiscountCode{}, fmt.Errorf("catalog: discount code %d: %w", id, shared.ErrNotFound)
		}
		return DiscountCode{}, err
	}
	return d, nil
}
