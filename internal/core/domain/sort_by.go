package domain

import "strings"

// A SortBy selects the ranking of a listing.
type SortBy string

const (
	SortRelevance       SortBy = "RELEVANCE"
	SortRewardLowToHigh SortBy = "REWARD_LOW_TO_HIGH"
	SortRewardHighToLow SortBy = "REWARD_HIGH_TO_LOW"
	SortPriceLowToHigh  SortBy = "PRICE_LOW_TO_HIGH"
	SortPriceHighToLow  SortBy = "PRICE_HIGH_TO_LOW"
)

// ParseSortBy never fails, unknown keys keep the input order.
func ParseSortBy(s string) SortBy {
	switch v := SortBy(strings.ToUpper(strings.TrimSpace(s))); v {
	case SortRewardLowToHigh, SortRewardHighToLow,
		SortPriceLowToHigh, SortPriceHighToLow:
		return v
	}
	return SortRelevance
}
