package feature

import (
	"fmt"

	pkgerrors "cdhsearch/pkg/errors"

	"github.com/twmb/murmur3"
)

// BytesPerPixel is the sample layout of PixelBuffer.Pix: R, G, B, A.
const BytesPerPixel = 4

// PixelBuffer is a row-major RGBA raster with 8 bits per channel. The alpha
// sample is carried but ignored by extraction.
type PixelBuffer struct {
	Width  int
	Height int
	Pix    []uint8
}

// NewPixelBuffer wraps pix after checking it holds width*height pixels.
func NewPixelBuffer(width, height int, pix []uint8) (*PixelBuffer, error) {
	buf := &PixelBuffer{Width: width, Height: height, Pix: pix}
	if err := buf.validate(); err != nil {
		return nil, err
	}
	return buf, nil
}

func (p *PixelBuffer) validate() error {
	if p.Width < 0 || p.Height < 0 {
		return fmt.Errorf("%w: negative size %dx%d", pkgerrors.ErrInvalidBuffer, p.Width, p.Height)
	}
	if want := p.Width * p.Height * BytesPerPixel; len(p.Pix) != want {
		return fmt.Errorf("%w: have %d bytes, want %d", pkgerrors.ErrInvalidBuffer, len(p.Pix), want)
	}
	return nil
}

// At returns the R, G, B samples of pixel (x, y).
func (p *PixelBuffer) At(x, y int) (r, g, b uint8) {
	i := (y*p.Width + x) * BytesPerPixel
	return p.Pix[i], p.Pix[i+1], p.Pix[i+2]
}

// Checksum hashes the dimensions and samples, used to key cached vectors.
func (p *PixelBuffer) Checksum() uint64 {
	h := murmur3.New64()
	var dims [8]byte
	for i := 0; i < 4; i++ {
		dims[i] = byte(p.Width >> (8 * i))
		dims[4+i] = byte(p.Height >> (8 * i))
	}
	_, _ = h.Write(dims[:])
	_, _ = h.Write(p.Pix)
	return h.Sum64()
}
