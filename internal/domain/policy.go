package domain

// Policy defaults
const (
	DefaultMinFloorUnits     = 20
	DefaultSupplyHorizonDays = 30
	DefaultHistoryWindow     = 0 // all available records
)

// Policy holds the knobs that decide what counts as excess and who qualifies for it.
// It is a value type; callers pass it explicitly on every call.
type Policy struct {
	MinFloorUnits     int `json:"minFloorUnits" yaml:"minFloorUnits" bson:"minFloorUnits"`
	SupplyHorizonDays int `json:"supplyHorizonDays" yaml:"supplyHorizonDays" bson:"supplyHorizonDays"`
	HistoryWindow     int `json:"historyWindow" yaml:"historyWindow" bson:"historyWindow"`
}

// DefaultPolicy returns the standard policy (floor 20, horizon 30 days, full history)
func DefaultPolicy() Policy {
	return Policy{
		MinFloorUnits:     DefaultMinFloorUnits,
		SupplyHorizonDays: DefaultSupplyHorizonDays,
		HistoryWindow:     DefaultHistoryWindow,
	}
}

// Validate rejects negative knobs and a zero horizon
func (p Policy) Validate() error {
	if p.MinFloorUnits < 0 {
		return &ConfigurationError{Field: "minFloorUnits", Value: p.MinFloorUnits, Reason: "must not be negative"}
	}
	if p.SupplyHorizonDays <= 0 {
		return &ConfigurationError{Field: "supplyHorizonDays", Value: p.SupplyHorizonDays, Reason: "must be positive"}
	}
	if p.HistoryWindow < 0 {
		return &ConfigurationError{Field: "historyWindow", Value: p.HistoryWindow, Reason: "must not be negative"}
	}
	return nil
}

// PolicyOverride carries per-invocation overrides; nil fields keep the base value
type PolicyOverride struct {
	MinFloorUnits     *int `json:"minFloorUnits,omitempty"`
	SupplyHorizonDays *int `json:"supplyHorizonDays,omitempty"`
	HistoryWindow     *int `json:"historyWindow,omitempty"`
}

// Merge applies the override to p and validates the result
func (p Policy) Merge(o *PolicyOverride) (Policy, error) {
	merged := p
	if o != nil {
		if o.MinFloorUnits != nil {
			merged.MinFloorUnits = *o.MinFloorUnits
		}
		if o.SupplyHorizonDays != nil {
			merged.SupplyHorizonDays = *o.SupplyHorizonDays
		}
		if o.HistoryWindow != nil {
			merged.HistoryWindow = *o.HistoryWindow
		}
	}
	if err := merged.Validate(); err != nil {
		return Policy{}, err
	}
	return merged, nil
}
