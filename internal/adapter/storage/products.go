package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/niksmo/product-page/internal/core/domain"
	"github.com/niksmo/product-page/internal/core/port"
	"github.com/niksmo/product-page/pkg/media"
	"github.com/shopspring/decimal"
)

var _ port.ProductsStorage = (*ProductsRepository)(nil)
var _ port.CatalogProvider = (*ProductsRepository)(nil)

type (
	buyingOptionRow struct {
		OfferID    string          `json:"offer_id"`
		MerchantID string          `json:"merchant_id"`
		Price      decimal.Decimal `json:"price"`
	}

	imageRow struct {
		Variant string    `json:"variant,omitempty"`
		LowRes  *mediaRow `json:"low_res,omitempty"`
	}

	mediaRow struct {
		ID        string `json:"id"`
		Extension string `json:"extension"`
		Width     int    `json:"width"`
		Height    int    `json:"height"`
	}
)

const selectProducts = `
	SELECT
		product_id, title, price, total_benefit, shipping_programs,
		valid, similar_ids, buying_options, images
	FROM products`

// A ProductsRepository is safe for concurrent use.
// Every read scans text arrays with its own [pgtype.Map],
// the map is not safe for concurrent use.
type ProductsRepository struct {
	sqldb sqldb
}

func NewProductsRepository(sqldb sqldb) ProductsRepository {
	return ProductsRepository{sqldb}
}

func (r ProductsRepository) StoreProducts(
	ctx context.Context, vs []domain.Product,
) (storeErr error) {
	const op = "ProductsRepository.StoreProducts"
	log := slog.With("op", op)

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	tx, err := r.sqldb.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: failed to begin tx: %w", op, err)
	}

	defer func() {
		if storeErr == nil {
			if err := tx.Commit(); err != nil {
				storeErr = fmt.Errorf("%s: failed to commit %w", op, err)
			}
			return
		}

		err := tx.Rollback()
		if err != nil {
			log.Error("failed to rollback tx", "err", err)
		}
	}()

	query := `
		INSERT INTO products (
			product_id, title, price, total_benefit, shipping_programs,
			valid, similar_ids, buying_options, images
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (product_id) DO UPDATE SET
			title = EXCLUDED.title,
			price = EXCLUDED.price,
			total_benefit = EXCLUDED.total_benefit,
			shipping_programs = EXCLUDED.shipping_programs,
			valid = EXCLUDED.valid,
			similar_ids = EXCLUDED.similar_ids,
			buying_options = EXCLUDED.buying_options,
			images = EXCLUDED.images;
	`

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("%s: failed to prepare stmt: %w", op, err)
	}
	defer func() {
		if err := stmt.Close(); err != nil {
			log.Error("failed to close prepared stmt", "err", err)
		}
	}()

	for _, v := range vs {
		buyingOptions, images, err := r.marshalDocs(v)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}

		programs := make([]string, len(v.ShippingPrograms))
		for i, sp := range v.ShippingPrograms {
			programs[i] = string(sp)
		}

		_, err = stmt.ExecContext(ctx,
			v.ProductID, v.Title, v.Price, v.TotalBenefit, programs,
			v.Valid, nonNil(v.SimilarIDs), buyingOptions, images,
		)
		if err != nil {
			return fmt.Errorf("%s: failed to exec: %w", op, err)
		}
	}

	return nil
}

func (r ProductsRepository) ReadProduct(
	ctx context.Context, productID string,
) (domain.Product, error) {
	const op = "ProductsRepository.ReadProduct"

	if err := ctx.Err(); err != nil {
		return domain.Product{}, fmt.Errorf("%s: %w", op, err)
	}

	row := r.sqldb.QueryRowContext(
		ctx, selectProducts+` WHERE product_id = $1;`, productID,
	)
	v, err := r.scan(pgtype.NewMap(), row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Product{}, fmt.Errorf("%s: %w", op, domain.ErrNotFound)
		}
		return domain.Product{}, fmt.Errorf("%s: %w", op, err)
	}
	return v, nil
}

func (r ProductsRepository) ReadProducts(
	ctx context.Context, ids []string,
) (ps []*domain.Product, readErr error) {
	const op = "ProductsRepository.ReadProducts"
	log := slog.With("op", op)

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	rows, err := r.sqldb.QueryContext(
		ctx, selectProducts+` WHERE product_id = ANY($1);`, nonNil(ids),
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			log.Error("failed to close rows", "err", err)
		}
	}()

	typesMap := pgtype.NewMap()
	found := make(map[string]*domain.Product, len(ids))
	for rows.Next() {
		v, err := r.scan(typesMap, rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		found[v.ProductID] = &v
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	ps = make([]*domain.Product, len(ids))
	for i, id := range ids {
		ps[i] = found[id]
	}
	return ps, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func (r ProductsRepository) scan(
	typesMap *pgtype.Map, row scanner,
) (domain.Product, error) {
	var (
		v             domain.Product
		programs      []string
		buyingOptions []byte
		images        []byte
	)
	err := row.Scan(
		&v.ProductID, &v.Title, &v.Price, &v.TotalBenefit,
		typesMap.SQLScanner(&programs), &v.Valid,
		typesMap.SQLScanner(&v.SimilarIDs), &buyingOptions, &images,
	)
	if err != nil {
		return domain.Product{}, err
	}

	v.ShippingPrograms = make([]domain.ShippingProgram, len(programs))
	for i, sp := range programs {
		v.ShippingPrograms[i] = domain.ParseShippingProgram(sp)
	}

	if err := r.unmarshalDocs(&v, buyingOptions, images); err != nil {
		return domain.Product{}, err
	}
	return v, nil
}

func (r ProductsRepository) marshalDocs(
	v domain.Product,
) (buyingOptions []byte, images []byte, err error) {
	bos := make([]buyingOptionRow, len(v.BuyingOptions))
	for i, bo := range v.BuyingOptions {
		bos[i] = buyingOptionRow(bo)
	}
	buyingOptions, err = json.Marshal(bos)
	if err != nil {
		return nil, nil, err
	}

	if v.Images == nil {
		return buyingOptions, nil, nil
	}
	imgs := make([]imageRow, len(v.Images.Images))
	for i, img := range v.Images.Images {
		imgs[i].Variant = img.Variant
		if img.LowRes != nil {
			m := mediaRow(*img.LowRes)
			imgs[i].LowRes = &m
		}
	}
	images, err = json.Marshal(imgs)
	if err != nil {
		return nil, nil, err
	}
	return buyingOptions, images, nil
}

// unmarshalDocs keeps nil images for the NULL column.
func (r ProductsRepository) unmarshalDocs(
	v *domain.Product, buyingOptions []byte, images []byte,
) error {
	if len(buyingOptions) != 0 {
		var bos []buyingOptionRow
		if err := json.Unmarshal(buyingOptions, &bos); err != nil {
			return err
		}
		for _, bo := range bos {
			v.BuyingOptions = append(v.BuyingOptions, domain.BuyingOption(bo))
		}
	}

	if len(images) == 0 {
		return nil
	}
	var imgs []imageRow
	if err := json.Unmarshal(images, &imgs); err != nil {
		return err
	}
	v.Images = &domain.ProductImages{Images: make([]domain.Image, len(imgs))}
	for i, img := range imgs {
		v.Images.Images[i].Variant = img.Variant
		if img.LowRes != nil {
			d := media.Descriptor(*img.LowRes)
			v.Images.Images[i].LowRes = &d
		}
	}
	return nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
