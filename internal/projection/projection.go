// Package projection collapses a channel's slice stack into one plane.
package projection

import (
	"fmt"

	apperrors "github.com/h39s/VessCoopJ/internal/errors"
	"github.com/h39s/VessCoopJ/internal/models"
)

type Reduction int

const (
	Sum Reduction = iota
	Max
)

func (r Reduction) String() string {
	switch r {
	case Sum:
		return "sum"
	case Max:
		return "max"
	default:
		return fmt.Sprintf("reduction(%d)", int(r))
	}
}

// Project reduces slices [minSlice, n] (1-based, inclusive) of vol into a
// single plane. Sums are not normalized.
func Project(vol models.ChannelVolume, r Reduction, minSlice int) (models.Plane, error) {
	n := len(vol.Slices)
	if minSlice < 1 || minSlice > n {
		return models.Plane{}, apperrors.NewInvalidSliceRangeError(minSlice, n)
	}

	out := models.NewPlane(vol.Width, vol.Height)
	copy(out.Pix, vol.Slices[minSlice-1])

	for z := minSlice; z < n; z++ {
		slice := vol.Slices[z]
		if len(slice) != len(out.Pix) {
			return models.Plane{}, fmt.Errorf("slice %d has %d samples, want %d", z+1, len(slice), len(out.Pix))
		}
		switch r {
		case Sum:
			for i, v := range slice {
				out.Pix[i] += v
			}
		case Max:
			for i, v := range slice {
				if v > out.Pix[i] {
					out.Pix[i] = v
				}
			}
		default:
			return models.Plane{}, fmt.Errorf("unsupported reduction %v", r)
		}
	}

	return out, nil
}

// MaxCombine returns the pixel-wise maximum of two planes.
func MaxCombine(a, b models.Plane) (models.Plane, error) {
	if !a.SameSize(b) {
		return models.Plane{}, fmt.Errorf("cannot combine %dx%d with %dx%d", a.Width, a.Height, b.Width, b.Height)
	}
	out := a.Clone()
	for i, v := range b.Pix {
		if v > out.Pix[i] {
			out.Pix[i] = v
		}
	}
	return out, nil
}
