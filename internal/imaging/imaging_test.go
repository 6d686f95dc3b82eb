package imaging

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schoolstock/stockroom/internal/apperr"
)

func solid(w, h int, c color.Color) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for x := range w {
		for y := range h {
			img.Set(x, y, c)
		}
	}
	return img
}

func encodeJPEG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func decode(t *testing.T, p *Photo) image.Image {
	t.Helper()
	img, format, err := image.Decode(bytes.NewReader(p.Data))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	return img
}

func TestPrepareKeepsSmallPhoto(t *testing.T) {
	p, err := Prepare(bytes.NewReader(encodeJPEG(t, solid(120, 60, color.Black))))
	require.NoError(t, err)
	assert.Equal(t, 120, p.Width)
	assert.Equal(t, 60, p.Height)
	assert.Equal(t, image.Rect(0, 0, 120, 60), decode(t, p).Bounds())
}

func TestPrepareDownscales(t *testing.T) {
	p, err := Prepare(bytes.NewReader(encodePNG(t, solid(1600, 400, color.Black))))
	require.NoError(t, err)
	assert.Equal(t, MaxSide, p.Width)
	assert.Equal(t, 200, p.Height)
}

func TestPrepareFlattensTransparency(t *testing.T) {
	p, err := Prepare(bytes.NewReader(encodePNG(t, solid(10, 10, color.Transparent))))
	require.NoError(t, err)

	r, g, b, _ := decode(t, p).At(5, 5).RGBA()
	assert.Greater(t, r>>8, uint32(240))
	assert.Greater(t, g>>8, uint32(240))
	assert.Greater(t, b>>8, uint32(240))
}

func TestPrepareRejectsNonImage(t *testing.T) {
	_, err := Prepare(bytes.NewReader([]byte("just some text")))
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestPrepareRejectsOversized(t *testing.T) {
	_, err := Prepare(bytes.NewReader(make([]byte, MaxUploadBytes+10)))
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestFit(t *testing.T) {
	tests := []struct {
		w, h, wantW, wantH int
	}{
		{100, 100, 100, 100},
		{1600, 800, 800, 400},
		{800, 1600, 400, 800},
		{5000, 2, 800, 1},
	}
	for _, tt := range tests {
		w, h := fit(tt.w, tt.h, 800)
		assert.Equal(t, tt.wantW, w, "%dx%d", tt.w, tt.h)
		assert.Equal(t, tt.wantH, h, "%dx%d", tt.w, tt.h)
	}
}
