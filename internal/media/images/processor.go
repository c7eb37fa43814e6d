// Package images downloads, transcodes and stores cover and chapter page images.
package images

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	_ "image/png" // Register PNG decoder
	"log/slog"

	"github.com/chai2010/webp"
	"github.com/dustin/go-humanize"
	_ "golang.org/x/image/bmp"  // Register BMP decoder
	_ "golang.org/x/image/webp" // Register WebP decoder

	"github.com/DokushoHQ/backends/internal/config"
	"github.com/DokushoHQ/backends/internal/domain"
)

// maxWebPDimension is the largest width or height a WebP image can have.
const maxWebPDimension = 16383

var (
	// ErrPermanent marks image failures that retrying cannot fix.
	ErrPermanent = errors.New("permanent image failure")
	// ErrTooLarge is returned for animated GIFs above the configured size.
	ErrTooLarge = fmt.Errorf("%w: animated gif too large", ErrPermanent)
)

// Result is a transcoded image ready to be stored.
type Result struct {
	Data        []byte
	Ext         string
	ContentType string
	Width       int
	Height      int
	BlurHash    string
	Quality     domain.ImageQuality
	Issues      []string
}

// Metadata describes the stored object.
func (r *Result) Metadata() *domain.PageMetadata {
	return &domain.PageMetadata{
		Width:       r.Width,
		Height:      r.Height,
		Format:      r.Ext,
		Size:        int64(len(r.Data)),
		BlurHash:    r.BlurHash,
		ContentType: r.ContentType,
	}
}

// Processor converts downloaded images to WebP.
type Processor struct {
	quality     float32
	maxGIFBytes int64
	logger      *slog.Logger
}

// NewProcessor creates a processor from the image settings.
func NewProcessor(cfg config.ImagesConfig, logger *slog.Logger) *Processor {
	quality := cfg.Quality
	if quality <= 0 || quality > 100 {
		quality = 80
	}
	return &Processor{quality: quality, maxGIFBytes: cfg.MaxGIFBytes, logger: logger}
}

// Process decodes data, assesses it and re-encodes it. Still images become
// WebP, or JPEG when a side exceeds the WebP limit. Animated GIFs are kept
// as-is up to the configured size.
func (p *Processor) Process(data []byte) (*Result, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty image", ErrPermanent)
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			return nil, fmt.Errorf("%w: unrecognized image format", ErrPermanent)
		}
		return nil, fmt.Errorf("decode image header: %w", err)
	}

	if format == "gif" {
		anim, err := gif.DecodeAll(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("decode gif: %w", err)
		}
		if len(anim.Image) > 1 {
			return p.keepAnimated(data, anim, cfg)
		}
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", format, err)
	}

	out, ext, contentType, err := p.encode(img)
	if err != nil {
		return nil, err
	}

	thumb := thumbnail(img)
	quality, issues := assess(cfg.Width, cfg.Height, len(data), thumb)
	return &Result{
		Data:        out,
		Ext:         ext,
		ContentType: contentType,
		Width:       cfg.Width,
		Height:      cfg.Height,
		BlurHash:    blurHash(thumb, p.logger),
		Quality:     quality,
		Issues:      issues,
	}, nil
}

func (p *Processor) keepAnimated(data []byte, anim *gif.GIF, cfg image.Config) (*Result, error) {
	if p.maxGIFBytes > 0 && int64(len(data)) > p.maxGIFBytes {
		return nil, fmt.Errorf("%w: %s exceeds %s", ErrTooLarge,
			humanize.IBytes(uint64(len(data))), humanize.IBytes(uint64(p.maxGIFBytes)))
	}
	thumb := thumbnail(anim.Image[0])
	quality, issues := assess(cfg.Width, cfg.Height, len(data), thumb)
	return &Result{
		Data:        data,
		Ext:         "gif",
		ContentType: "image/gif",
		Width:       cfg.Width,
		Height:      cfg.Height,
		BlurHash:    blurHash(thumb, p.logger),
		Quality:     quality,
		Issues:      issues,
	}, nil
}

func (p *Processor) encode(img image.Image) ([]byte, string, string, error) {
	var buf bytes.Buffer
	b := img.Bounds()
	if b.Dx() > maxWebPDimension || b.Dy() > maxWebPDimension {
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: int(p.quality)}); err != nil {
			return nil, "", "", fmt.Errorf("encode jpeg: %w", err)
		}
		return buf.Bytes(), "jpg", "image/jpeg", nil
	}
	if err := webp.Encode(&buf, img, &webp.Options{Quality: p.quality}); err != nil {
		return nil, "", "", fmt.Errorf("encode webp: %w", err)
	}
	return buf.Bytes(), "webp", "image/webp", nil
}
