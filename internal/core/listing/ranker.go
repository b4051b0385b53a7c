// Package listing holds the product page listing core: ranking of similar
// products and resolving of display image URLs.
//
// Everything here is a pure function of its inputs and is safe for concurrent
// use as long as callers do not mutate the inputs during a call.
package listing

import (
	"slices"

	"github.com/niksmo/product-page/internal/core/domain"
	"github.com/shopspring/decimal"
)

type PriceMatcher interface {
	Contains(price decimal.Decimal) bool
}

type ShippingMatcher interface {
	Matches(domain.ShippingProgram) bool
}

type compareFn func(a, b *domain.Product) int

type Ranker struct {
	comparators map[domain.SortBy]compareFn
}

func NewRanker() Ranker {
	byBenefit := func(a, b *domain.Product) int {
		return a.TotalBenefit.Cmp(b.TotalBenefit)
	}
	byPrice := func(a, b *domain.Product) int {
		return a.Price.Cmp(b.Price)
	}
	return Ranker{
		comparators: map[domain.SortBy]compareFn{
			domain.SortRewardLowToHigh: byBenefit,
			domain.SortRewardHighToLow: reversed(byBenefit),
			domain.SortPriceLowToHigh:  byPrice,
			domain.SortPriceHighToLow:  reversed(byPrice),
		},
	}
}

// Rank filters candidates and orders them by sortBy.
//
// A candidate is kept when it is non-nil and valid, its price is within
// priceRange and any of its shipping programs satisfies eligibility.
// Equal elements keep their input order. Unknown sortBy keeps the input order
// of the kept candidates. The result is never nil.
func (r Ranker) Rank(
	candidates []*domain.Product,
	sortBy domain.SortBy,
	priceRange PriceMatcher,
	eligibility ShippingMatcher,
) []*domain.Product {
	matching := make([]*domain.Product, 0, len(candidates))
	for _, p := range candidates {
		if !p.IsValid() || !priceRange.Contains(p.Price) {
			continue
		}
		if slices.ContainsFunc(p.ShippingPrograms, eligibility.Matches) {
			matching = append(matching, p)
		}
	}

	if cmp, ok := r.comparators[sortBy]; ok {
		slices.SortStableFunc(matching, cmp)
	}
	return matching
}

func reversed(fn compareFn) compareFn {
	return func(a, b *domain.Product) int {
		return fn(b, a)
	}
}
