package media

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif" // register gif
	"image/jpeg"
	"image/png"

	"golang.org/x/image/draw"
)

// maxPixels rejects decompression bombs before the full decode.
const maxPixels = 50_000_000

const jpegQuality = 85

// ErrUnsupportedImage is returned when the bytes are not a JPEG, PNG or GIF.
var ErrUnsupportedImage = errors.New("unsupported or corrupt image")

// Image is an upload that passed decoding, possibly downscaled.
type Image struct {
	Data   []byte
	Format string // jpeg, png or gif
	Width  int
	Height int
	Scaled bool
}

// Ext returns the file extension matching Format.
func (i Image) Ext() string {
	switch i.Format {
	case "jpeg":
		return ".jpg"
	case "png":
		return ".png"
	default:
		return "." + i.Format
	}
}

// Prepare validates data as an image and shrinks JPEG/PNG images whose longest
// side exceeds maxDimension, keeping the aspect ratio and format. GIFs are
// kept as-is so animations survive. maxDimension <= 0 disables scaling.
func Prepare(data []byte, maxDimension int) (Image, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Image{}, fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}
	switch format {
	case "jpeg", "png", "gif":
	default:
		return Image{}, fmt.Errorf("%w: format %q", ErrUnsupportedImage, format)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || cfg.Width*cfg.Height > maxPixels {
		return Image{}, fmt.Errorf("%w: %dx%d", ErrUnsupportedImage, cfg.Width, cfg.Height)
	}

	out := Image{Data: data, Format: format, Width: cfg.Width, Height: cfg.Height}
	if format == "gif" {
		return out, nil
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return Image{}, fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}

	width, height := fit(cfg.Width, cfg.Height, maxDimension)
	if width == cfg.Width && height == cfg.Height {
		return out, nil
	}

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)

	var buf bytes.Buffer
	switch format {
	case "jpeg":
		err = jpeg.Encode(&buf, dst, &jpeg.Options{Quality: jpegQuality})
	case "png":
		err = png.Encode(&buf, dst)
	}
	if err != nil {
		return Image{}, fmt.Errorf("encode %s: %w", format, err)
	}

	out.Data = buf.Bytes()
	out.Width, out.Height = width, height
	out.Scaled = true
	return out, nil
}

// fit returns the size that bounds the longest side by limit.
func fit(width, height, limit int) (int, int) {
	if limit <= 0 || (width <= limit && height <= limit) {
		return width, height
	}
	if width >= height {
		h := height * limit / width
		return limit, max(h, 1)
	}
	w := width * limit / height
	return max(w, 1), limit
}
