package domain

import "strconv"

// Price slider domain.
const (
	PriceFloor   = 0
	PriceCeiling = 100000
)

// PriceRange is the inclusive [Min, Max] price window applied to the view.
type PriceRange struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// DefaultPriceRange is the full slider domain.
func DefaultPriceRange() PriceRange {
	return PriceRange{Min: PriceFloor, Max: PriceCeiling}
}

// Normalize clamps both bounds into the slider domain and then forces Min down
// to Max when Min > Max. Applying it twice changes nothing.
func (p PriceRange) Normalize() PriceRange {
	p.Min = clamp(p.Min, PriceFloor, PriceCeiling)
	p.Max = clamp(p.Max, PriceFloor, PriceCeiling)
	if p.Min > p.Max {
		p.Min = p.Max
	}
	return p
}

// Contains reports whether price lies within the range, inclusive.
func (p PriceRange) Contains(price int) bool {
	return price >= p.Min && price <= p.Max
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ValidatePriceRange rejects negative bounds. Anything else is accepted and
// left for Normalize to clamp, the way a range input would.
func ValidatePriceRange(p PriceRange) error {
	if p.Min < 0 {
		return NewValidationError("min", strconv.Itoa(p.Min), ErrInvalidPriceRange)
	}
	if p.Max < 0 {
		return NewValidationError("max", strconv.Itoa(p.Max), ErrInvalidPriceRange)
	}
	return nil
}

// ValidateMake checks that makeName is one of AllowedMakes.
func ValidateMake(makeName string) error {
	if !IsAllowedMake(makeName) {
		return NewValidationError("make", makeName, ErrUnknownMake)
	}
	return nil
}
