package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// A PriceRange accepts prices in [Min, Max).
//
// The zero Max is an open upper bound, so the zero PriceRange accepts any price.
type PriceRange struct {
	Min decimal.Decimal
	Max decimal.Decimal
}

var (
	PriceAny       = PriceRange{}
	PriceUnder25   = PriceRange{Max: decimal.NewFromInt(25)}
	Price25To50    = PriceRange{Min: decimal.NewFromInt(25), Max: decimal.NewFromInt(50)}
	Price50To100   = PriceRange{Min: decimal.NewFromInt(50), Max: decimal.NewFromInt(100)}
	Price100To200  = PriceRange{Min: decimal.NewFromInt(100), Max: decimal.NewFromInt(200)}
	Price200AndUp  = PriceRange{Min: decimal.NewFromInt(200)}
	namedPriceOpts = map[string]PriceRange{
		"ALL":           PriceAny,
		"UNDER_25":      PriceUnder25,
		"25_TO_50":      Price25To50,
		"50_TO_100":     Price50To100,
		"100_TO_200":    Price100To200,
		"200_AND_ABOVE": Price200AndUp,
	}
)

// ParsePriceRange resolves a named price option, the empty string is [PriceAny].
func ParsePriceRange(s string) (PriceRange, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return PriceAny, nil
	}
	r, ok := namedPriceOpts[s]
	if !ok {
		return PriceRange{}, ErrUnknownOption
	}
	return r, nil
}

func (r PriceRange) Contains(price decimal.Decimal) bool {
	if price.LessThan(r.Min) {
		return false
	}
	if r.Max.IsZero() {
		return true
	}
	return price.LessThan(r.Max)
}
