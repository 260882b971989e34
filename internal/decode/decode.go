/*
Package decode turns encoded image files into fixed-size pixel buffers for
feature extraction.

Every image is resampled to Size×Size regardless of its aspect ratio, so
non-square images are stretched. Comparable fingerprints require all images
to go through the same decoder settings.
*/
package decode

import (
	"fmt"
	"image"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"strings"

	"cdhsearch/internal/feature"
	pkgerrors "cdhsearch/pkg/errors"

	"github.com/nfnt/resize"
)

// DefaultSize is the edge length every image is resampled to.
const DefaultSize uint = 256

var interpolations = map[string]resize.InterpolationFunction{
	"nearest":  resize.NearestNeighbor,
	"bilinear": resize.Bilinear,
	"bicubic":  resize.Bicubic,
	"mitchell": resize.MitchellNetravali,
	"lanczos2": resize.Lanczos2,
	"lanczos3": resize.Lanczos3,
}

// Decoder decodes PNG, JPEG and GIF images and resamples them.
type Decoder struct {
	size   uint
	interp resize.InterpolationFunction
}

// New returns a decoder producing size×size buffers. interp names the
// resampling kernel; an empty name selects bilinear.
func New(size uint, interp string) (*Decoder, error) {
	if size < 2 {
		return nil, fmt.Errorf("decode: size %d too small", size)
	}
	if interp == "" {
		interp = "bilinear"
	}
	fn, ok := interpolations[strings.ToLower(interp)]
	if !ok {
		return nil, fmt.Errorf("decode: unknown interpolation %q", interp)
	}
	return &Decoder{size: size, interp: fn}, nil
}

// Size returns the output edge length.
func (d *Decoder) Size() uint {
	return d.size
}

// Decode reads one encoded image. Any failure wraps ErrDecodeFailure.
func (d *Decoder) Decode(r io.Reader) (*feature.PixelBuffer, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", pkgerrors.ErrDecodeFailure, err)
	}
	b := img.Bounds()
	if b.Empty() {
		return nil, fmt.Errorf("%w: empty %s image", pkgerrors.ErrDecodeFailure, format)
	}
	return d.FromImage(img)
}

// DecodeFile opens and decodes the image at path.
func (d *Decoder) DecodeFile(path string) (*feature.PixelBuffer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", pkgerrors.ErrDecodeFailure, err)
	}
	defer f.Close()
	return d.Decode(f)
}

// FromImage resamples an already decoded image.
func (d *Decoder) FromImage(img image.Image) (*feature.PixelBuffer, error) {
	scaled := resize.Resize(d.size, d.size, img, d.interp)

	// NRGBA keeps samples non-premultiplied, the layout PixelBuffer expects
	n := int(d.size)
	dst := image.NewNRGBA(image.Rect(0, 0, n, n))
	draw.Draw(dst, dst.Bounds(), scaled, scaled.Bounds().Min, draw.Src)

	return feature.NewPixelBuffer(n, n, dst.Pix)
}
