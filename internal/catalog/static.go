package catalog

import (
	"context"
	"fmt"

	"github.com/quoteflow-erp/quoteflow/internal/shared"
)

// Static is an in-memory Catalog used by tests and seed tooling.
type Static struct {
	Parts         map[int64]Part
	LaborItems    map[int64]Labor
	MiscItems     map[int64]Misc
	DiscountCodes map[int64]DiscountCode
}

// NewStatic returns an empty Static catalog.
func NewStatic() *Static {
	return &Static{
		Parts:         make(map[int64]Part),
		LaborItems:    make(map[int64]Labor),
		MiscItems:     make(map[int64]Misc),
		DiscountCodes: make(map[int64]DiscountCode),
	}
}

func (s *Static) Part(ctx context.Context, id int64) (Part, error) {
	p, ok := s.Parts[id]
	if !ok {
		return Part{}, fmt.Errorf("catalog: part %d: %w", id, shared.ErrNotFound)
	}
	return p, nil
}

func (s *Static) Labor(ctx context.Context, id int64) (Labor, error) {
	l, ok := s.LaborItems[id]
	if !ok {
		return Labor{}, fmt.Errorf("catalog: labor %d: %w", id, shared.ErrNotFound)
	}
	return l, nil
}

func (s *Static) Misc(ctx context.Context, id int64) (Misc, error) {
	m, ok := s.MiscItems[id]
	if !ok {
		return Misc{}, fmt.Errorf("catalog: misc %d: %w", id, shared.ErrNotFound)
	}
	return m, nil
}

func (s *Static) DiscountCode(ctx context.Context, id int64) (DiscountCode, error) {
	d, ok := s.DiscountCodes[id]
	if !ok {
		return DiscountCode{}, fmt.Errorf("catalog: discount code %d: %w", id, shared.ErrNotFound)
	}
	return d, nil
}
