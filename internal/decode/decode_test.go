package decode

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"cdhsearch/internal/feature"
	pkgerrors "cdhsearch/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodePNG(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestDecode_ResamplesToFixedSize(t *testing.T) {
	d, err := New(DefaultSize, "")
	require.NoError(t, err)

	for _, dims := range [][2]int{{10, 10}, {300, 40}, {17, 512}} {
		buf, err := d.Decode(bytes.NewReader(encodePNG(t, dims[0], dims[1], color.RGBA{1, 2, 3, 255})))
		require.NoError(t, err)
		assert.Equal(t, 256, buf.Width)
		assert.Equal(t, 256, buf.Height)
		assert.Len(t, buf.Pix, 256*256*feature.BytesPerPixel)
	}
}

func TestDecode_SolidColourSurvivesResampling(t *testing.T) {
	d, err := New(32, "bicubic")
	require.NoError(t, err)

	buf, err := d.Decode(bytes.NewReader(encodePNG(t, 8, 5, color.RGBA{100, 150, 200, 255})))
	require.NoError(t, err)
	for y := 0; y < buf.Height; y++ {
		for x := 0; x < buf.Width; x++ {
			r, g, b := buf.At(x, y)
			require.Equal(t, [3]uint8{100, 150, 200}, [3]uint8{r, g, b})
		}
	}
}

func TestDecode_JPEG(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 20, 20))
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))

	d, err := New(16, "nearest")
	require.NoError(t, err)
	pb, err := d.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, 16, pb.Width)
}

func TestDecode_Failures(t *testing.T) {
	d, err := New(DefaultSize, "lanczos3")
	require.NoError(t, err)

	_, err = d.Decode(strings.NewReader("definitely not an image"))
	assert.ErrorIs(t, err, pkgerrors.ErrDecodeFailure)

	_, err = d.DecodeFile(filepath.Join(t.TempDir(), "missing.png"))
	assert.ErrorIs(t, err, pkgerrors.ErrDecodeFailure)
}

func TestDecodeFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "red.png")
	require.NoError(t, os.WriteFile(path, encodePNG(t, 4, 4, color.RGBA{255, 0, 0, 255}), 0644))

	d, err := New(8, "mitchell")
	require.NoError(t, err)
	buf, err := d.DecodeFile(path)
	require.NoError(t, err)
	r, g, b := buf.At(3, 3)
	assert.Equal(t, [3]uint8{255, 0, 0}, [3]uint8{r, g, b})
}

func TestNew_Validation(t *testing.T) {
	_, err := New(1, "")
	assert.Error(t, err)
	_, err = New(64, "sinc")
	assert.Error(t, err)

	d, err := New(64, "Bilinear")
	require.NoError(t, err)
	assert.Equal(t, uint(64), d.Size())
}
