package domain

// StockStatus buckets a product by its on-hand level
type StockStatus string

const (
	StockStatusOverstock StockStatus = "overstock"
	StockStatusNormal    StockStatus = "normal"
	StockStatusLow       StockStatus = "low"
)

// StockThresholds bound the normal band; both limits are exclusive
type StockThresholds struct {
	Overstock int `json:"overstock" yaml:"overstock"`
	Low       int `json:"low" yaml:"low"`
}

// DefaultStockThresholds returns overstock above 60 and low below 10
func DefaultStockThresholds() StockThresholds {
	return StockThresholds{Overstock: 60, Low: 10}
}

// ClassifyStock returns the status for an on-hand level
func ClassifyStock(onHand int, t StockThresholds) StockStatus {
	switch {
	case onHand > t.Overstock:
		return StockStatusOverstock
	case onHand < t.Low:
		return StockStatusLow
	default:
		return StockStatusNormal
	}
}

// IsValid reports whether s is a known status
func (s StockStatus) IsValid() bool {
	switch s {
	case StockStatusOverstock, StockStatusNormal, StockStatusLow:
		return true
	}
	return false
}
