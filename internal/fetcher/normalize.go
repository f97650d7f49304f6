package fetcher

import (
	"bytes"
	"fmt"
	"image"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"
	"github.com/orgball2608/media-extractor-bot/internal/domain"
	_ "golang.org/x/image/webp"
)

const (
	defaultMaxDimension = 1920
	defaultJPEGQuality  = 85
)

// Normalizer fits images inside MaxDimension and converts formats Telegram
// handles poorly into JPEG, or PNG when the image has transparency. Videos and
// animated images are left alone.
type Normalizer struct {
	MaxDimension int
	JPEGQuality  int
}

func (n Normalizer) Normalize(item *domain.MediaItem) error {
	mt := mimetype.Detect(item.Data)
	switch {
	case strings.HasPrefix(mt.String(), "video/"):
		item.Kind = domain.KindVideo
		return nil
	case mt.Is("image/gif"):
		item.Kind = domain.KindAnimatedImage
		return nil
	}
	if item.Kind != domain.KindImage {
		return nil
	}
	if !strings.HasPrefix(mt.String(), "image/") {
		return fmt.Errorf("not an image: %s", mt.String())
	}

	maxDim := n.MaxDimension
	if maxDim <= 0 {
		maxDim = defaultMaxDimension
	}
	quality := n.JPEGQuality
	if quality <= 0 {
		quality = defaultJPEGQuality
	}

	img, err := imaging.Decode(bytes.NewReader(item.Data), imaging.AutoOrientation(true))
	if err != nil {
		return fmt.Errorf("decode %s: %w", mt.String(), err)
	}

	bounds := img.Bounds()
	item.Width, item.Height = bounds.Dx(), bounds.Dy()

	isPNG := mt.Is("image/png")
	oversized := item.Width > maxDim || item.Height > maxDim
	if !oversized && (isPNG || mt.Is("image/jpeg")) {
		return nil
	}

	if oversized {
		img = imaging.Fit(img, maxDim, maxDim, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if isPNG || !opaque(img) {
		err = imaging.Encode(&buf, img, imaging.PNG)
	} else {
		err = imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(quality))
	}
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}

	bounds = img.Bounds()
	item.Data = buf.Bytes()
	item.Width, item.Height = bounds.Dx(), bounds.Dy()
	return nil
}

func opaque(img image.Image) bool {
	if o, ok := img.(interface{ Opaque() bool }); ok {
		return o.Opaque()
	}
	return imaging.Clone(img).Opaque()
}
