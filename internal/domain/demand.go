package domain

import (
	"fmt"
	"math"
	"time"
)

// DateLayout is the calendar-day format of sales records
const DateLayout = "2006-01-02"

// SalesRecord is one day of sales for a product
type SalesRecord struct {
	Date      string `bson:"date" json:"date"`
	UnitsSold int    `bson:"unitsSold" json:"unitsSold"`
}

// Validate checks the date format and that units are not negative
func (r SalesRecord) Validate() error {
	if _, err := time.Parse(DateLayout, r.Date); err != nil {
		return fmt.Errorf("%w: date %q is not YYYY-MM-DD", ErrInvalidSalesRecord, r.Date)
	}
	if r.UnitsSold < 0 {
		return fmt.Errorf("%w: unitsSold %d is negative", ErrInvalidSalesRecord, r.UnitsSold)
	}
	return nil
}

// EstimateAverageDemand returns the mean unitsSold over the last window records.
// window <= 0 uses every record; an empty history yields 0.
func EstimateAverageDemand(history []SalesRecord, window int) float64 {
	if len(history) == 0 {
		return 0
	}

	recent := history
	if window > 0 && window < len(history) {
		recent = history[len(history)-window:]
	}

	total := 0
	for _, r := range recent {
		total += r.UnitsSold
	}
	return float64(total) / float64(len(recent))
}

// ceilUnits rounds a unit projection up, ignoring float noise below 1e-9
// so that 1.8*30 gives 54 rather than 55. Projections past the int range saturate.
func ceilUnits(x float64) int {
	units := math.Ceil(x - 1e-9)
	if units >= float64(math.MaxInt) {
		return math.MaxInt
	}
	return int(units)
}
