// Package catalog exposes read-only lookups against the parts / labor /
// miscellaneous inventory and the discount-code table. The document engines
// consume these to resolve costs, markups and descriptions; catalog
// administration happens elsewhere.
package catalog

import "context"

// Part is a stocked part with a vendor cost and sell markup.
type Part struct {
	ID            int64
	PartNumber    string
	Description   string
	Cost          float64
	MarkupPercent float64
}

// Labor is a labor rate entry; base cost is Rate*Hours.
type Labor struct {
	ID            int64
	Description   string
	Hours         float64
	Rate          float64
	MarkupPercent float64
}

// Misc is a miscellaneous inventory item priced directly.
type Misc struct {
	ID            int64
	Description   string
	UnitPrice     float64
	MarkupPercent float64
}

// DiscountCode is a percentage discount that can be attached to a quote line.
type DiscountCode struct {
	ID              int64
	Code            string
	DiscountPercent float64
	Archived        bool
}

// Catalog resolves line-item references. Implementations return
// shared.ErrNotFound (wrapped) for unknown ids.
type Catalog interface {
	Part(ctx context.Context, id int64) (Part, error)
	Labor(ctx context.Context, id int64) (Labor, error)
	Misc(ctx context.Context, id int64) (Misc, error)
	DiscountCode(ctx context.Context, id int64) (DiscountCode, error)
}
