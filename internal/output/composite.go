package output

import (
	"bytes"
	"fmt"
	"image"
	"image/color"

	"github.com/h39s/VessCoopJ/internal/models"

	"golang.org/x/image/tiff"
)

// MaskComposite maps three masks onto red, green and blue.
func MaskComposite(r, g, b models.Mask) (*image.NRGBA, error) {
	if !g.SameSize(r.Width, r.Height) || !b.SameSize(r.Width, r.Height) {
		return nil, fmt.Errorf("mask sizes differ: %dx%d, %dx%d, %dx%d",
			r.Width, r.Height, g.Width, g.Height, b.Width, b.Height)
	}
	img := image.NewNRGBA(image.Rect(0, 0, r.Width, r.Height))
	for i := range r.Pix {
		img.Pix[4*i] = on(r.Pix[i])
		img.Pix[4*i+1] = on(g.Pix[i])
		img.Pix[4*i+2] = on(b.Pix[i])
		img.Pix[4*i+3] = 255
	}
	return img, nil
}

func on(v uint8) uint8 {
	if v != 0 {
		return 255
	}
	return 0
}

// PlaneComposite maps three intensity planes onto red, green and blue,
// each min-max scaled to 8 bits on its own.
func PlaneComposite(r, g, b models.Plane) (*image.NRGBA, error) {
	if !r.SameSize(g) || !r.SameSize(b) {
		return nil, fmt.Errorf("plane sizes differ: %dx%d, %dx%d, %dx%d",
			r.Width, r.Height, g.Width, g.Height, b.Width, b.Height)
	}
	rs, gs, bs := r.Gray8(), g.Gray8(), b.Gray8()
	img := image.NewNRGBA(image.Rect(0, 0, r.Width, r.Height))
	for y := 0; y < r.Height; y++ {
		for x := 0; x < r.Width; x++ {
			img.SetNRGBA(x, y, color.NRGBA{
				R: rs.GrayAt(x, y).Y,
				G: gs.GrayAt(x, y).Y,
				B: bs.GrayAt(x, y).Y,
				A: 255,
			})
		}
	}
	return img, nil
}

// EncodeTIFF writes a deflate-compressed TIFF.
func EncodeTIFF(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := tiff.Encode(&buf, img, &tiff.Options{Compression: tiff.Deflate}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// PlaneGray16 stores a plane as 16-bit gray, clamping out-of-range samples.
// Used for classifier training stacks.
func PlaneGray16(p models.Plane) *image.Gray16 {
	img := image.NewGray16(image.Rect(0, 0, p.Width, p.Height))
	for y := 0; y < p.Height; y++ {
		for x := 0; x < p.Width; x++ {
			v := p.At(x, y)
			switch {
			case v <= 0:
				v = 0
			case v >= 65535:
				v = 65535
			}
			img.SetGray16(x, y, color.Gray16{Y: uint16(v + 0.5)})
		}
	}
	return img
}
