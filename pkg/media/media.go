package media

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const DefaultHost = "https://m.media-amazon.com/images/I"

var (
	ErrNoMedia          = errors.New("media descriptor is nil")
	ErrEmptyID          = errors.New("media id is empty")
	ErrUnsupportedFmt   = errors.New("unsupported media format")
	ErrInvalidDimension = errors.New("invalid dimension")
)

var supportedExtensions = map[string]struct{}{
	"jpg":  {},
	"jpeg": {},
	"png":  {},
	"gif":  {},
	"webp": {},
}

// A Descriptor describes a stored low resolution image
// by its physical id, file extension and original size.
type Descriptor struct {
	ID        string
	Extension string
	Width     int
	Height    int
}

// A StyledMedia is the result of [StyleBuilder.Build].
type StyledMedia struct {
	url    string
	Width  int
	Height int
}

func (m StyledMedia) URL() string {
	return m.url
}

// A StyleBuilder collects style options for a [Descriptor].
//
// The zero longest dimension keeps original size.
type StyleBuilder struct {
	d       *Descriptor
	host    string
	longest int
}

func NewStyleBuilder(d *Descriptor) StyleBuilder {
	return StyleBuilder{d: d, host: DefaultHost}
}

func (b StyleBuilder) Host(host string) StyleBuilder {
	b.host = strings.TrimRight(host, "/")
	return b
}

func (b StyleBuilder) ScaleToLongest(n int) StyleBuilder {
	b.longest = n
	return b
}

func (b StyleBuilder) Build() (StyledMedia, error) {
	const op = "StyleBuilder.Build"

	if err := b.validate(); err != nil {
		return StyledMedia{}, fmt.Errorf("%s: %w", op, err)
	}

	w, h := b.scale()
	ext := strings.ToLower(b.d.Extension)

	var sb strings.Builder
	sb.WriteString(b.host)
	sb.WriteByte('/')
	sb.WriteString(b.d.ID)
	sb.WriteString("._SL")
	sb.WriteString(strconv.Itoa(max(w, h)))
	sb.WriteString("_.")
	sb.WriteString(ext)

	return StyledMedia{url: sb.String(), Width: w, Height: h}, nil
}

func (b StyleBuilder) validate() error {
	if b.d == nil {
		return ErrNoMedia
	}
	if strings.TrimSpace(b.d.ID) == "" {
		return ErrEmptyID
	}
	if _, ok := supportedExtensions[strings.ToLower(b.d.Extension)]; !ok {
		return fmt.Errorf("%w: %q", ErrUnsupportedFmt, b.d.Extension)
	}
	if b.d.Width <= 0 || b.d.Height <= 0 {
		return fmt.Errorf(
			"%w: original %dx%d", ErrInvalidDimension, b.d.Width, b.d.Height,
		)
	}
	if b.longest < 0 {
		return fmt.Errorf("%w: longest %d", ErrInvalidDimension, b.longest)
	}
	return nil
}

// scale keeps the aspect ratio, the shorter side is at least 1px.
func (b StyleBuilder) scale() (w, h int) {
	w, h = b.d.Width, b.d.Height
	if b.longest == 0 {
		return w, h
	}
	if w >= h {
		return b.longest, max(1, h*b.longest/w)
	}
	return max(1, w*b.longest/h), b.longest
}
