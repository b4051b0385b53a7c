package listing

import (
	"log/slog"

	"github.com/niksmo/product-page/internal/core/domain"
	"github.com/niksmo/product-page/pkg/media"
)

type ImageResolver struct {
	host string
}

// NewImageResolver returns resolver which builds URLs on host,
// the empty host is [media.DefaultHost].
func NewImageResolver(host string) ImageResolver {
	if host == "" {
		host = media.DefaultHost
	}
	return ImageResolver{host}
}

// ResolvePrimary returns the URL of the first image.
//
// The position defines the primary image, not the variant tag: the "MAIN"
// variant of the catalog is not authoritative. When the first image can not
// be resolved the next ones are not tried.
func (r ImageResolver) ResolvePrimary(
	images *domain.ProductImages, longest int,
) (string, bool) {
	if images == nil || len(images.Images) == 0 {
		return "", false
	}
	return r.resolve(images.Images[0], longest)
}

// ResolveVariant returns the URL of the first image tagged with variant
// which can be resolved. Images without a tag never match.
func (r ImageResolver) ResolveVariant(
	images *domain.ProductImages, variant string, longest int,
) (string, bool) {
	if images == nil {
		return "", false
	}
	for _, img := range images.Images {
		if !img.HasVariant(variant) {
			continue
		}
		if url, ok := r.resolve(img, longest); ok {
			return url, true
		}
	}
	return "", false
}

func (r ImageResolver) resolve(img domain.Image, longest int) (string, bool) {
	const op = "ImageResolver.resolve"

	styled, err := media.NewStyleBuilder(img.LowRes).
		Host(r.host).
		ScaleToLongest(longest).
		Build()
	if err != nil {
		slog.Debug("image skipped", "op", op, "variant", img.Variant, "err", err)
		return "", false
	}
	return styled.URL(), true
}
