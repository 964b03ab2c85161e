package quotes

import (
	"context"
	"fmt"

	"github.com/quoteflow-erp/quoteflow/internal/shared"
)

// resolveBase looks up the line's base cost and catalog markup for the global
// markup override. Unlinked free-text lines fall back to their current price
// with zero markup.
func (s *Service) resolveBase(ctx context.Context, li LineItem) (cost, markup float64, err error) {
	if li.CatalogID == nil {
		return li.UnitPrice, 0, nil
	}
	switch li.ItemType {
	case ItemLabor:
		l, err := s.catalog.Labor(ctx, *li.CatalogID)
		if err != nil {
			return 0, 0, err
		}
		// Labor base is the full rate over its standard hours.
		return l.Rate * l.Hours, l.MarkupPercent, nil
	case ItemPart:
		p, err := s.catalog.Part(ctx, *li.CatalogID)
		if err != nil {
			return 0, 0, err
		}
		return p.Cost, p.MarkupPercent, nil
	case ItemMisc:
		m, err := s.catalog.Misc(ctx, *li.CatalogID)
		if err != nil {
			return 0, 0, err
		}
		return m.UnitPrice, m.MarkupPercent, nil
	}
	return li.UnitPrice, 0, nil
}

// applyMarkup prices li under the global override. On first application the
// base cost and the catalog markup are stored on the line; afterwards only the
// price is recomputed from the stored base, never from the catalog again.
func (s *Service) applyMarkup(ctx context.Context, li *LineItem, percent float64) error {
	if li.Exempt() {
		return nil
	}
	if li.BaseCost == nil {
		cost, markup, err := s.resolveBase(ctx, *li)
		if err != nil {
			return err
		}
		li.BaseCost = &cost
		li.OriginalMarkupPercent = &markup
	}
	li.UnitPrice = *li.BaseCost * (1 + percent/100)
	return nil
}

// SetGlobalMarkup enables the global markup override, or adjusts the percent
// if already enabled. Rejected while any line carries a discount and while the
// quote is frozen. The repricing is a substantive edit and records a snapshot.
func (s *Service) SetGlobalMarkup(ctx context.Context, quoteID int64, percent float64) (Quote, error) {
	var out Quote
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		q, err := tx.GetQuote(ctx, quoteID)
		if err != nil {
			return err
		}
		if err := s.requireUnfrozen(q); err != nil {
			return err
		}
		for _, li := range q.Lines {
			if li.Discounted() {
				return fmt.Errorf("line %q carries a discount; global markup cannot be combined with discounts: %w",
					li.Description, shared.ErrConflictingPricingMode)
			}
		}

		for _, li := range q.Lines {
			if li.Exempt() {
				continue
			}
			if err := s.applyMarkup(ctx, &li, percent); err != nil {
				return err
			}
			if err := tx.UpdateLine(ctx, li); err != nil {
				return err
			}
		}

		q.MarkupPercent = &percent
		desc := fmt.Sprintf("Global markup set to %.1f%%", percent)
		if _, err := s.snapshot(ctx, tx, &q, ActionEdit, desc, nil, nil); err != nil {
			return err
		}
		out, err = tx.GetQuote(ctx, quoteID)
		return err
	})
	if err != nil {
		return Quote{}, err
	}
	s.log.InfoContext(ctx, "global markup set", "quote_id", quoteID, "percent", percent)
	return out, nil
}

// ClearGlobalMarkup disables the override, restoring every line to its stored
// base cost and original catalog markup, then clears the stored fields.
func (s *Service) ClearGlobalMarkup(ctx context.Context, quoteID int64) (Quote, error) {
	var out Quote
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		q, err := tx.GetQuote(ctx, quoteID)
		if err != nil {
			return err
		}
		if err := s.requireUnfrozen(q); err != nil {
			return err
		}
		if !q.MarkupEnabled() {
			return fmt.Errorf("quote %s has no global markup to clear: %w", q.Number(), shared.ErrValidation)
		}

		for _, li := range q.Lines {
			if li.Exempt() || li.BaseCost == nil {
				continue
			}
			li.UnitPrice = *li.BaseCost * (1 + *li.OriginalMarkupPercent/100)
			li.BaseCost = nil
			li.OriginalMarkupPercent = nil
			if err := tx.UpdateLine(ctx, li); err != nil {
				return err
			}
		}

		q.MarkupPercent = nil
		if _, err := s.snapshot(ctx, tx, &q, ActionEdit, "Global markup cleared", nil, nil); err != nil {
			return err
		}
		out, err = tx.GetQuote(ctx, quoteID)
		return err
	})
	if err != nil {
		return Quote{}, err
	}
	s.log.InfoContext(ctx, "global markup cleared", "quote_id", quoteID)
	return out, nil
}
