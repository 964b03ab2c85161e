// Package versioning holds the pure calculation and reconciliation logic shared
// by the quote and purchase-order engines. Both the fulfillment path and the
// revert path call the same functions so derived aggregates can never drift
// between the two.
package versioning

// Consumption is one fulfillment-event line for a single document line item:
// the quantity consumed by that event and the price actually realized, when one
// was recorded.
type Consumption struct {
	Qty   int
	Price *float64
}

// SumQuantity totals the consumed quantity across events.
func SumQuantity(entries []Consumption) int {
	total := 0
	for _, e := range entries {
		total += e.Qty
	}
	return total
}

// WeightedAverage returns the quantity-weighted mean of realized prices across
// events, considering only entries that recorded a price. Returns nil when no
// priced quantity exists.
func WeightedAverage(entries []Consumption) *float64 {
	var totalCost float64
	totalQty := 0
	for _, e := range entries {
		if e.Price == nil || e.Qty == 0 {
			continue
		}
		totalCost += *e.Price * float64(e.Qty)
		totalQty += e.Qty
	}
	if totalQty == 0 {
		return nil
	}
	avg := totalCost / float64(totalQty)
	return &avg
}

// PendingAfter computes the remaining pending quantity given the ordered
// quantity and the total consumed so far. Never negative.
func PendingAfter(ordered, consumed int) int {
	if consumed >= ordered {
		return 0
	}
	return ordered - consumed
}
