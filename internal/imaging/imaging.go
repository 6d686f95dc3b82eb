// Package imaging normalizes uploaded stock item photos.
package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	_ "image/png" // register PNG decoder
	"io"
	"net/http"

	"golang.org/x/image/draw"

	"github.com/schoolstock/stockroom/internal/apperr"
)

const (
	// MaxSide bounds the width and height of a stored photo.
	MaxSide = 800
	// MaxUploadBytes bounds the size of an accepted upload.
	MaxUploadBytes = 8 << 20
	// Quality is the JPEG quality of stored photos.
	Quality = 80
	// MIME is the type of every stored photo.
	MIME = "image/jpeg"
)

var accepted = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
}

// Photo is a normalized stock photo.
type Photo struct {
	Data   []byte
	Width  int
	Height int
}

// Prepare validates an upload by content sniffing, fits it within MaxSide,
// flattens transparency onto white and re-encodes it as JPEG.
func Prepare(r io.Reader) (*Photo, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxUploadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading photo: %w", err)
	}
	if len(data) > MaxUploadBytes {
		return nil, apperr.Validation("image", fmt.Sprintf("must be at most %d MB", MaxUploadBytes>>20))
	}
	if kind := http.DetectContentType(data); !accepted[kind] {
		return nil, apperr.Validation("image", "must be a JPEG or PNG image, got "+kind)
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, apperr.Validation("image", "could not be decoded")
	}

	w, h := fit(src.Bounds().Dx(), src.Bounds().Dy(), MaxSide)
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: Quality}); err != nil {
		return nil, fmt.Errorf("encoding photo: %w", err)
	}
	return &Photo{Data: buf.Bytes(), Width: w, Height: h}, nil
}

// fit scales w×h down so the longer side is at most limit, keeping the
// aspect ratio. Smaller images are returned unchanged.
func fit(w, h, limit int) (int, int) {
	if w <= limit && h <= limit {
		return w, h
	}
	if w >= h {
		return limit, max(1, h*limit/w)
	}
	return max(1, w*limit/h), limit
}
