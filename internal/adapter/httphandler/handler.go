package httphandler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/niksmo/product-page/internal/core/domain"
	"github.com/niksmo/product-page/internal/core/port"
	"github.com/niksmo/product-page/pkg/media"
	"github.com/shopspring/decimal"
)

// POST v1/products JSON (202 Accepted, 400 Bad request)
// GET v1/products/{id}/similar?sort_by=&price_range=&prime= (200 OK, 404 Not found)
// GET v1/products/{id}/images/main?longest= (200 OK, 204 No content)
// GET v1/products/{id}/images/look?longest= (200 OK, 204 No content)
// GET v1/products/{id}/buying-option (200 OK, 204 No content)

type ProductsHandler struct {
	pSender        port.ProductsSender
	pPage          port.ProductPage
	validate       *validator.Validate
	defaultLongest int
}

func RegisterProducts(
	mux *http.ServeMux,
	pSender port.ProductsSender,
	pPage port.ProductPage,
	defaultLongest int,
) {
	h := ProductsHandler{
		pSender:        pSender,
		pPage:          pPage,
		validate:       validator.New(validator.WithRequiredStructEnabled()),
		defaultLongest: defaultLongest,
	}
	mux.HandleFunc("POST /v1/products", h.PostProducts)
	mux.HandleFunc("GET /v1/products/{id}/similar", h.GetSimilar)
	mux.HandleFunc("GET /v1/products/{id}/images/main", h.GetMainImage)
	mux.HandleFunc("GET /v1/products/{id}/images/look", h.GetLookImage)
	mux.HandleFunc("GET /v1/products/{id}/buying-option", h.GetBuyingOption)
}

func (h ProductsHandler) PostProducts(w http.ResponseWriter, r *http.Request) {
	const op = "ProductsHandler.PostProducts"
	log := slog.With("op", op, "requestID", RequestIDFrom(r.Context()))

	var ps []Product
	err := json.NewDecoder(r.Body).Decode(&ps)
	if err != nil {
		http.Error(w, "invalid JSON data", http.StatusBadRequest)
		log.Warn("failed to parse JSON", "err", err)
		return
	}

	if err := h.validate.Var(ps, "required,dive"); err != nil {
		http.Error(w, "invalid products", http.StatusBadRequest)
		log.Warn("invalid products", "err", err)
		return
	}

	dps, err := h.toDomain(ps)
	if err != nil {
		http.Error(w, "invalid products", http.StatusBadRequest)
		log.Warn("failed to convert products", "err", err)
		return
	}

	err = h.pSender.SendProducts(r.Context(), dps)
	if err != nil {
		http.Error(
			w, "failed to accept products", http.StatusServiceUnavailable,
		)
		log.Error("failed to send products", "err", err)
		return
	}

	w.WriteHeader(http.StatusAccepted)
	if _, err = w.Write([]byte("Accepted")); err != nil {
		log.Error("failed to write response body", "err", err)
		return
	}

	log.Info("accepted", "nProducts", len(ps))
}

func (h ProductsHandler) GetSimilar(w http.ResponseWriter, r *http.Request) {
	const op = "ProductsHandler.GetSimilar"
	log := slog.With("op", op, "requestID", RequestIDFrom(r.Context()))

	qv := r.URL.Query()
	params := SimilarParams{
		SortBy:     strings.ToUpper(qv.Get("sort_by")),
		PriceRange: strings.ToUpper(qv.Get("price_range")),
		Prime:      strings.ToUpper(qv.Get("prime")),
	}
	if err := h.validate.Struct(params); err != nil {
		http.Error(w, "invalid query params", http.StatusBadRequest)
		log.Warn("invalid query params", "err", err)
		return
	}

	q, err := h.similarQuery(params)
	if err != nil {
		http.Error(w, "invalid query params", http.StatusBadRequest)
		log.Warn("failed to parse query params", "err", err)
		return
	}

	ps, err := h.pPage.SimilarProducts(r.Context(), r.PathValue("id"), q)
	if err != nil {
		h.writeProviderErr(w, log, err)
		return
	}

	res := make([]SimilarProduct, 0, len(ps))
	for _, p := range ps {
		res = append(res, toSimilarProduct(p))
	}
	writeJSON(w, log, http.StatusOK, res)
}

func (h ProductsHandler) GetMainImage(w http.ResponseWriter, r *http.Request) {
	h.getImage(w, r, "ProductsHandler.GetMainImage", h.pPage.MainImageURL)
}

func (h ProductsHandler) GetLookImage(w http.ResponseWriter, r *http.Request) {
	h.getImage(w, r, "ProductsHandler.GetLookImage", h.pPage.LookImageURL)
}

type imageURLFn func(
	ctx context.Context, productID string, longest int,
) (string, bool, error)

func (h ProductsHandler) getImage(
	w http.ResponseWriter,
	r *http.Request,
	op string,
	resolve imageURLFn,
) {
	log := slog.With("op", op, "requestID", RequestIDFrom(r.Context()))

	params, err := h.imageParams(r)
	if err != nil {
		http.Error(w, "invalid query params", http.StatusBadRequest)
		log.Warn("invalid query params", "err", err)
		return
	}

	url, ok, err := resolve(r.Context(), r.PathValue("id"), params.Longest)
	if err != nil {
		h.writeProviderErr(w, log, err)
		return
	}
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, log, http.StatusOK, ImageURL{URL: url})
}

func (h ProductsHandler) GetBuyingOption(w http.ResponseWriter, r *http.Request) {
	const op = "ProductsHandler.GetBuyingOption"
	log := slog.With("op", op, "requestID", RequestIDFrom(r.Context()))

	bo, ok, err := h.pPage.FirstBuyingOption(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeProviderErr(w, log, err)
		return
	}
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, log, http.StatusOK, BuyingOptionResponse{
		OfferID:    bo.OfferID,
		MerchantID: bo.MerchantID,
		Price:      bo.Price.StringFixed(2),
	})
}

func (h ProductsHandler) similarQuery(p SimilarParams) (port.SimilarQuery, error) {
	priceRange, err := domain.ParsePriceRange(p.PriceRange)
	if err != nil {
		return port.SimilarQuery{}, err
	}
	prime, err := domain.ParsePrimeOption(p.Prime)
	if err != nil {
		return port.SimilarQuery{}, err
	}
	return port.SimilarQuery{
		SortBy:      domain.ParseSortBy(p.SortBy),
		PriceRange:  priceRange,
		PrimeOption: prime,
	}, nil
}

func (h ProductsHandler) imageParams(r *http.Request) (ImageParams, error) {
	params := ImageParams{Longest: h.defaultLongest}
	if s := r.URL.Query().Get("longest"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return ImageParams{}, err
		}
		params.Longest = n
	}
	if err := h.validate.Struct(params); err != nil {
		return ImageParams{}, err
	}
	return params, nil
}

func (h ProductsHandler) writeProviderErr(
	w http.ResponseWriter, log *slog.Logger, err error,
) {
	if errors.Is(err, domain.ErrNotFound) {
		http.Error(w, "product not found", http.StatusNotFound)
		log.Info("product not found", "err", err)
		return
	}
	http.Error(w, "catalog unavailable", http.StatusServiceUnavailable)
	log.Error("failed to read catalog", "err", err)
}

func (h ProductsHandler) toDomain(ps []Product) ([]domain.Product, error) {
	domainPs := make([]domain.Product, 0, len(ps))
	for _, p := range ps {
		price, err := decimal.NewFromString(p.Price)
		if err != nil {
			return nil, err
		}
		benefit := decimal.Zero
		if p.TotalBenefit != "" {
			benefit, err = decimal.NewFromString(p.TotalBenefit)
			if err != nil {
				return nil, err
			}
		}

		dp := domain.Product{
			ProductID:    p.ProductID,
			Title:        p.Title,
			Price:        price,
			TotalBenefit: benefit,
			Valid:        p.Valid,
			SimilarIDs:   p.SimilarIDs,
		}

		dp.ShippingPrograms = make([]domain.ShippingProgram, len(p.ShippingPrograms))
		for i, sp := range p.ShippingPrograms {
			dp.ShippingPrograms[i] = domain.ParseShippingProgram(sp)
		}

		dp.BuyingOptions = make([]domain.BuyingOption, len(p.BuyingOptions))
		for i, bo := range p.BuyingOptions {
			boPrice, err := decimal.NewFromString(bo.Price)
			if err != nil {
				return nil, err
			}
			dp.BuyingOptions[i] = domain.BuyingOption{
				OfferID:    bo.OfferID,
				MerchantID: bo.MerchantID,
				Price:      boPrice,
			}
		}

		if p.Images != nil {
			dp.Images = &domain.ProductImages{
				Images: make([]domain.Image, len(p.Images.Images)),
			}
			for i, img := range p.Images.Images {
				dp.Images.Images[i].Variant = img.Variant
				if img.LowRes != nil {
					dp.Images.Images[i].LowRes = &media.Descriptor{
						ID:        img.LowRes.ID,
						Extension: img.LowRes.Extension,
						Width:     img.LowRes.Width,
						Height:    img.LowRes.Height,
					}
				}
			}
		}
		if err := dp.CheckPrices(); err != nil {
			return nil, err
		}
		domainPs = append(domainPs, dp)
	}
	return domainPs, nil
}

func toSimilarProduct(p *domain.Product) SimilarProduct {
	sps := make([]string, len(p.ShippingPrograms))
	for i, sp := range p.ShippingPrograms {
		sps[i] = string(sp)
	}
	return SimilarProduct{
		ProductID:        p.ProductID,
		Title:            p.Title,
		Price:            p.Price.StringFixed(2),
		TotalBenefit:     p.TotalBenefit.StringFixed(2),
		ShippingPrograms: sps,
	}
}

func writeJSON(w http.ResponseWriter, log *slog.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error("failed to write response body", "err", err)
	}
}
