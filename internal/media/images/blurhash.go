package images

import (
	"image"
	"log/slog"

	"github.com/bbrks/go-blurhash"
	"github.com/nfnt/resize"
)

// blurHashSize is the thumbnail bound used for BlurHash and quality sampling.
// A placeholder hash looks the same at 64px and costs milliseconds instead of seconds.
const blurHashSize = 64

// thumbnail scales img to fit blurHashSize, keeping its aspect ratio.
func thumbnail(img image.Image) image.Image {
	b := img.Bounds()
	if b.Dx() <= blurHashSize && b.Dy() <= blurHashSize {
		return img
	}
	return resize.Thumbnail(blurHashSize, blurHashSize, img, resize.Bilinear)
}

// blurHash encodes thumb with 4x3 components. Failures only cost the placeholder.
func blurHash(thumb image.Image, logger *slog.Logger) string {
	hash, err := blurhash.Encode(4, 3, thumb)
	if err != nil {
		logger.Debug("failed to compute blurhash", "error", err)
		return ""
	}
	return hash
}
