package imagecache

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"image/gif"
	"image/jpeg"
	"image/png"

	"github.com/gabriel-vasile/mimetype"
	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
	"golang.org/x/image/bmp"
	"golang.org/x/image/webp"
)

// ErrUnsupportedFormat is returned for data that is not a known image type.
var ErrUnsupportedFormat = errors.New("unsupported image format")

const (
	defaultSVGWidth  = 400
	defaultSVGHeight = 300
	maxSVGSide       = 2000
)

// Decode sniffs data and returns it in an embeddable encoding. JPEG is kept
// as is; every other supported type is re-encoded as 8-bit PNG.
func Decode(data []byte) (*Image, error) {
	mt := mimetype.Detect(data)
	switch {
	case mt.Is("image/jpeg"):
		cfg, err := jpeg.DecodeConfig(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("decode jpeg: %w", err)
		}
		return &Image{Data: data, Format: FormatJPG, Width: cfg.Width, Height: cfg.Height}, nil
	case mt.Is("image/png"):
		return reencode(png.Decode(bytes.NewReader(data)))
	case mt.Is("image/gif"):
		return reencode(gif.Decode(bytes.NewReader(data)))
	case mt.Is("image/webp"):
		return reencode(webp.Decode(bytes.NewReader(data)))
	case mt.Is("image/bmp"):
		return reencode(bmp.Decode(bytes.NewReader(data)))
	case mt.Is("image/svg+xml"):
		return reencode(rasterizeSVG(data))
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, mt.String())
}

// reencode writes img as a non-interlaced 8-bit PNG, the only PNG flavour the
// PDF writer embeds reliably.
func reencode(img image.Image, err error) (*Image, error) {
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, errors.New("empty image")
	}
	nrgba, ok := img.(*image.NRGBA)
	if !ok {
		nrgba = image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		draw.Draw(nrgba, nrgba.Bounds(), img, b.Min, draw.Src)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, nrgba); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return &Image{Data: buf.Bytes(), Format: FormatPNG, Width: b.Dx(), Height: b.Dy()}, nil
}

func rasterizeSVG(data []byte) (image.Image, error) {
	icon, err := oksvg.ReadIconStream(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parse svg: %w", err)
	}
	w, h := int(icon.ViewBox.W), int(icon.ViewBox.H)
	if w <= 0 || h <= 0 {
		w, h = defaultSVGWidth, defaultSVGHeight
	}
	if w > maxSVGSide || h > maxSVGSide {
		fw, fh := FitToBox(float64(w), float64(h), maxSVGSide, maxSVGSide)
		w, h = max(int(fw), 1), max(int(fh), 1)
	}
	icon.SetTarget(0, 0, float64(w), float64(h))
	rgba := image.NewRGBA(image.Rect(0, 0, w, h))
	icon.Draw(rasterx.NewDasher(w, h, rasterx.NewScannerGV(w, h, rgba, rgba.Bounds())), 1)
	return rgba, nil
}
