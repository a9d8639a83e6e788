package shaper

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif" // register decoder
	"image/jpeg"
	"image/png"

	"golang.org/x/image/draw"
)

// maxPhotoAspectRatio is the elongation beyond which a downscale to the
// photo limits leaves nothing legible; such images go out as files instead.
const maxPhotoAspectRatio = 5

// FitsPhotoLimits reports whether encoded image data can go out as an inline
// photo, or must fall back to a file send. Undecodable data is treated as
// within limits; the platform rejects it with a clearer error than we can
// produce here.
func FitsPhotoLimits(data []byte, dimensionLimit int, sizeLimit int64) bool {
	if int64(len(data)) > sizeLimit {
		return false
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return true
	}

	return cfg.Width <= dimensionLimit && cfg.Height <= dimensionLimit
}

// ExtremeAspectRatio reports whether the image is too elongated to survive
// a downscale. Undecodable data is not extreme.
func ExtremeAspectRatio(data []byte) bool {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil || cfg.Width == 0 || cfg.Height == 0 {
		return false
	}

	long, short := cfg.Width, cfg.Height
	if short > long {
		long, short = short, long
	}

	return long >= short*maxPhotoAspectRatio
}

// DownscaleImage re-encodes the image so neither side exceeds limit. Data
// already within the limit comes back untouched. GIFs are never rescaled;
// rescaling would drop the animation frames.
func DownscaleImage(data []byte, limit int) ([]byte, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image config: %w", err)
	}

	if format == "gif" || (cfg.Width <= limit && cfg.Height <= limit) {
		return data, nil
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	width, height := scaledDimensions(cfg.Width, cfg.Height, limit)

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)

	var buf bytes.Buffer

	switch format {
	case "png":
		err = png.Encode(&buf, dst)
	default:
		err = jpeg.Encode(&buf, dst, &jpeg.Options{Quality: 85})
	}

	if err != nil {
		return nil, fmt.Errorf("encode scaled image: %w", err)
	}

	return buf.Bytes(), nil
}

func scaledDimensions(width, height, limit int) (int, int) {
	if width >= height {
		return limit, height * limit / width
	}

	return width * limit / height, limit
}
