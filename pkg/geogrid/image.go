package geogrid

import (
	"fmt"
	"image"
	"image/color"
	"io"
	"os"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/kass/go-geogrid/pkg/models"
)

// ImageRaster adapts a decoded image to the Raster interface. Samples are
// non-premultiplied 8-bit RGBA values in the range 0-255.
type ImageRaster struct {
	img image.Image
}

// NewImageRaster wraps img.
func NewImageRaster(img image.Image) *ImageRaster {
	return &ImageRaster{img: img}
}

// DecodeImage decodes a PNG, JPEG, GIF, TIFF, BMP or WebP image from r.
func DecodeImage(r io.Reader) (*ImageRaster, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceRead, err)
	}
	return NewImageRaster(img), nil
}

// OpenImage opens and decodes the image file at path.
func OpenImage(path string) (*ImageRaster, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceRead, err)
	}
	defer f.Close()

	r, err := DecodeImage(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return r, nil
}

func (r *ImageRaster) Width() int  { return r.img.Bounds().Dx() }
func (r *ImageRaster) Height() int { return r.img.Bounds().Dy() }

func (r *ImageRaster) Sample(x, y int) []float64 {
	b := r.img.Bounds()
	c := color.NRGBAModel.Convert(r.img.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA)
	return []float64{float64(c.R), float64(c.G), float64(c.B), float64(c.A)}
}

// FromImageFile loads a heatmap image into a grid over rect. Only the red
// channel is read. See FromRaster for the available options.
func FromImageFile(rect models.BoundingBox, path string, opts ...Option) (*Grid, error) {
	r, err := OpenImage(path)
	if err != nil {
		return nil, err
	}
	return FromRaster(rect, r, opts...)
}
