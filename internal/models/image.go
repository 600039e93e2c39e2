package models

import (
	"fmt"
	"image"
	"image/color"
	"math"
)

// ScaleCalibration maps pixels to physical units.
type ScaleCalibration struct {
	PixelWidth  float64
	PixelHeight float64
	Unit        string
	// Scaled is true when the calibration came from image metadata or a
	// traced reference line rather than the defaults.
	Scaled bool
}

// DefaultScale is one pixel per unit, unit "pixels".
func DefaultScale() ScaleCalibration {
	return ScaleCalibration{PixelWidth: 1, PixelHeight: 1, Unit: "pixels"}
}

// PixelArea is the physical area of one pixel.
func (s ScaleCalibration) PixelArea() float64 {
	return s.PixelWidth * s.PixelHeight
}

// Volume is a decoded multi-channel, multi-slice image. Planes are indexed
// [channel][slice] and hold Width*Height samples in row-major order.
type Volume struct {
	Path     string
	Width    int
	Height   int
	Planes   [][][]float32
	Scale    ScaleCalibration
	BitDepth int
}

func (v *Volume) Channels() int {
	return len(v.Planes)
}

func (v *Volume) Slices() int {
	if len(v.Planes) == 0 {
		return 0
	}
	return len(v.Planes[0])
}

// Channel returns the 1-based channel as a ChannelVolume.
func (v *Volume) Channel(index int) (ChannelVolume, error) {
	if index < 1 || index > v.Channels() {
		return ChannelVolume{}, fmt.Errorf("channel %d outside [1, %d]", index, v.Channels())
	}
	return ChannelVolume{Width: v.Width, Height: v.Height, Slices: v.Planes[index-1]}, nil
}

// Validate checks that every plane matches the declared dimensions.
func (v *Volume) Validate() error {
	if v.Width <= 0 || v.Height <= 0 {
		return fmt.Errorf("invalid dimensions %dx%d", v.Width, v.Height)
	}
	if v.Channels() == 0 || v.Slices() == 0 {
		return fmt.Errorf("volume has %d channels and %d slices", v.Channels(), v.Slices())
	}
	n := v.Width * v.Height
	for c, slices := range v.Planes {
		if len(slices) != v.Slices() {
			return fmt.Errorf("channel %d has %d slices, want %d", c+1, len(slices), v.Slices())
		}
		for z, plane := range slices {
			if len(plane) != n {
				return fmt.Errorf("channel %d slice %d has %d samples, want %d", c+1, z+1, len(plane), n)
			}
		}
	}
	return nil
}

// ChannelVolume is a single-channel stack of slices.
type ChannelVolume struct {
	Width  int
	Height int
	Slices [][]float32
}

// Plane is a single-channel 2-D image.
type Plane struct {
	Width  int
	Height int
	Pix    []float32
}

func NewPlane(width, height int) Plane {
	return Plane{Width: width, Height: height, Pix: make([]float32, width*height)}
}

func (p Plane) At(x, y int) float32 {
	return p.Pix[y*p.Width+x]
}

func (p Plane) Set(x, y int, v float32) {
	p.Pix[y*p.Width+x] = v
}

func (p Plane) Clone() Plane {
	out := Plane{Width: p.Width, Height: p.Height, Pix: make([]float32, len(p.Pix))}
	copy(out.Pix, p.Pix)
	return out
}

func (p Plane) SameSize(o Plane) bool {
	return p.Width == o.Width && p.Height == o.Height
}

// Range returns the minimum and maximum sample.
func (p Plane) Range() (lo, hi float32) {
	if len(p.Pix) == 0 {
		return 0, 0
	}
	lo, hi = float32(math.Inf(1)), float32(math.Inf(-1))
	for _, v := range p.Pix {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi
}

// Gray8 scales the plane linearly from its own range into 0..255.
func (p Plane) Gray8() *image.Gray {
	img := image.NewGray(image.Rect(0, 0, p.Width, p.Height))
	lo, hi := p.Range()
	span := hi - lo
	for i, v := range p.Pix {
		if span > 0 {
			img.Pix[i] = uint8(math.Round(float64((v - lo) / span * 255)))
		}
	}
	return img
}

// Mask is a binary image; a pixel is foreground when its byte is non-zero.
type Mask struct {
	Width  int
	Height int
	Pix    []uint8
}

func NewMask(width, height int) Mask {
	return Mask{Width: width, Height: height, Pix: make([]uint8, width*height)}
}

func (m Mask) Foreground(x, y int) bool {
	return m.Pix[y*m.Width+x] != 0
}

func (m Mask) SetForeground(x, y int, on bool) {
	if on {
		m.Pix[y*m.Width+x] = 255
	} else {
		m.Pix[y*m.Width+x] = 0
	}
}

func (m Mask) SameSize(w, h int) bool {
	return m.Width == w && m.Height == h
}

// Count returns the number of foreground pixels.
func (m Mask) Count() int {
	n := 0
	for _, v := range m.Pix {
		if v != 0 {
			n++
		}
	}
	return n
}

// Gray renders the mask as black background with white foreground.
func (m Mask) Gray() *image.Gray {
	img := image.NewGray(image.Rect(0, 0, m.Width, m.Height))
	for i, v := range m.Pix {
		if v != 0 {
			img.Pix[i] = 255
		}
	}
	return img
}

// Overlay paints the mask in red over a grayscale rendering of base.
func (m Mask) Overlay(base Plane) *image.RGBA {
	gray := base.Gray8()
	img := image.NewRGBA(gray.Rect)
	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			g := gray.GrayAt(x, y).Y
			c := color.RGBA{R: g, G: g, B: g, A: 255}
			if m.Foreground(x, y) {
				c.R = 255
			}
			img.SetRGBA(x, y, c)
		}
	}
	return img
}
