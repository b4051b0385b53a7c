package service

import (
	"strconv"

	"github.com/niksmo/product-page/internal/core/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	imageKindMain = "main"
	imageKindLook = "look"
)

var (
	rankCandidates = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "productpage",
			Subsystem: "listing",
			Name:      "rank_candidates",
			Help:      "Number of similar products passed to ranking.",
			Buckets:   []float64{0, 1, 5, 10, 20, 50, 100, 200},
		},
		[]string{"sort_by"},
	)

	rankExcluded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "productpage",
			Subsystem: "listing",
			Name:      "rank_excluded_total",
			Help:      "Similar products excluded by validity, price or shipping filters.",
		},
		[]string{"sort_by"},
	)

	imageResolved = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "productpage",
			Subsystem: "listing",
			Name:      "image_resolve_total",
			Help:      "Image URL resolutions by kind and outcome.",
		},
		[]string{"kind", "resolved"},
	)
)

func observeRank(sortBy domain.SortBy, nCandidates, nRanked int) {
	label := string(domain.ParseSortBy(string(sortBy)))
	rankCandidates.WithLabelValues(label).Observe(float64(nCandidates))
	rankExcluded.WithLabelValues(label).Add(float64(nCandidates - nRanked))
}

func observeImage(kind string, resolved bool) {
	imageResolved.WithLabelValues(kind, strconv.FormatBool(resolved)).Inc()
}
