package images

import (
	"image"

	"github.com/DokushoHQ/backends/internal/domain"
)

// Quality issues recorded on pages.
const (
	IssueTinyDimensions = "tiny_dimensions"
	IssueBlank          = "blank"
	IssueLowResolution  = "low_resolution"
	IssueExtremeAspect  = "extreme_aspect_ratio"
	IssueSmallFile      = "small_file"
)

const (
	minDimension     = 16
	lowResolutionMax = 600
	maxAspectRatio   = 25
	smallFileBytes   = 4 << 10
	// blankSpread is the largest luma range, out of 255, of an image considered blank.
	blankSpread = 3
)

// assess grades an image from its size and a thumbnail of its pixels.
// Tiny or single-color images are corrupted; the rest of the issues only degrade it.
func assess(width, height, size int, thumb image.Image) (domain.ImageQuality, []string) {
	var issues []string
	corrupted := false

	if width < minDimension || height < minDimension {
		issues = append(issues, IssueTinyDimensions)
		corrupted = true
	}
	if isBlank(thumb) {
		issues = append(issues, IssueBlank)
		corrupted = true
	}
	if max(width, height) < lowResolutionMax {
		issues = append(issues, IssueLowResolution)
	}
	if short := min(width, height); short > 0 && max(width, height)/short > maxAspectRatio {
		issues = append(issues, IssueExtremeAspect)
	}
	if size < smallFileBytes {
		issues = append(issues, IssueSmallFile)
	}

	switch {
	case corrupted:
		return domain.QualityCorrupted, issues
	case len(issues) > 0:
		return domain.QualityDegraded, issues
	default:
		return domain.QualityHealthy, nil
	}
}

func isBlank(img image.Image) bool {
	b := img.Bounds()
	if b.Empty() {
		return true
	}
	lo, hi := uint32(255), uint32(0)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			// Rec. 601 luma on 16-bit channels, scaled to 0..255.
			l := (299*r + 587*g + 114*bl) / 1000 >> 8
			lo, hi = min(lo, l), max(hi, l)
			if hi-lo > blankSpread {
				return false
			}
		}
	}
	return true
}
