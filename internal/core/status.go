package core

// DeriveStatus maps a stock count to its status. Stock at or below zero is
// out of stock; stock at or below threshold is low. A non-positive threshold
// therefore never yields StatusLowStock.
func DeriveStatus(stock, threshold int) Status {
	switch {
	case stock <= 0:
		return StatusOutOfStock
	case stock <= threshold:
		return StatusLowStock
	default:
		return StatusInStock
	}
}

// ParseStatus accepts the display form of a status, case-insensitively.
func ParseStatus(s string) (Status, bool) {
	for _, st := range []Status{StatusInStock, StatusLowStock, StatusOutOfStock} {
		if equalFoldTrim(s, string(st)) {
			return st, true
		}
	}
	return "", false
}
