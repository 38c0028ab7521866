package scanimage

import (
	"image"
	"image/color"

	"golang.org/x/image/draw"
)

// DefaultBlackWhiteThreshold is the luminance cutoff used when reducing to
// bilevel. Matches the midpoint used by common scan software.
const DefaultBlackWhiteThreshold = 128

// ToGray converts src to 8-bit grayscale. Returns src unchanged if it
// already is.
func ToGray(src image.Image) *image.Gray {
	if g, ok := src.(*image.Gray); ok {
		return g
	}
	b := src.Bounds()
	dst := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	return dst
}

// ToBlackWhite reduces src to a bilevel image using a fixed luminance
// threshold. The result is still stored as 8-bit gray, holding only 0x00 and
// 0xff values, which 1-bit encoders pack down.
func ToBlackWhite(src image.Image, threshold uint8) *image.Gray {
	gray := ToGray(src)
	b := gray.Bounds()
	dst := image.NewGray(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			v := gray.GrayAt(x, y).Y
			if v < threshold {
				dst.SetGray(x, y, color.Gray{Y: 0})
			} else {
				dst.SetGray(x, y, color.Gray{Y: 0xff})
			}
		}
	}
	return dst
}

// IsBlackWhite reports whether every pixel of src is already pure black or
// pure white.
func IsBlackWhite(src image.Image) bool {
	gray, ok := src.(*image.Gray)
	if !ok {
		return false
	}
	b := gray.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			v := gray.GrayAt(x, y).Y
			if v != 0 && v != 0xff {
				return false
			}
		}
	}
	return true
}

// Resample scales src to the given pixel dimensions. Used to keep
// rasterized PDF pages within the OCR working size.
func Resample(src image.Image, width, height int) image.Image {
	b := src.Bounds()
	if b.Dx() == width && b.Dy() == height {
		return src
	}
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, b, draw.Src, nil)
	return dst
}
