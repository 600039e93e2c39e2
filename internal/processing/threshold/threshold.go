package threshold

import (
	"context"
	"fmt"
	"math"

	"github.com/h39s/VessCoopJ/internal/opencv/safe"
	"github.com/h39s/VessCoopJ/internal/processing/filters"

	"gocv.io/x/gocv"
)

// Bernsen is a local adaptive threshold for bright objects. A pixel is
// foreground when it is at least the local mid-range; in flat neighbourhoods
// (contrast below ContrastThreshold) the mid-range alone decides.
type Bernsen struct {
	Radius            int
	ContrastThreshold float64
}

func NewBernsen(radius, contrast float64) *Bernsen {
	r := int(math.Round(radius))
	if r < 1 {
		r = 1
	}
	return &Bernsen{Radius: r, ContrastThreshold: contrast}
}

// Apply expects CV_8UC1 input and returns a CV_8UC1 mask with foreground 255.
func (b *Bernsen) Apply(ctx context.Context, input *safe.Mat) (*safe.Mat, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	if err := safe.ValidateMatType(input, "Bernsen threshold", gocv.MatTypeCV8UC1); err != nil {
		return nil, err
	}

	maxMat, minMat, err := filters.LocalExtrema(input, b.Radius)
	if err != nil {
		return nil, fmt.Errorf("local extrema: %w", err)
	}
	defer maxMat.Close()
	defer minMat.Close()

	src := input.GetMat()
	pix := src.ToBytes()
	hi := maxMat.GetMat().ToBytes()
	lo := minMat.GetMat().ToBytes()

	out := make([]byte, len(pix))
	for i := range pix {
		if b.foreground(pix[i], hi[i], lo[i]) {
			out[i] = 255
		}
	}

	view, err := gocv.NewMatFromBytes(src.Rows(), src.Cols(), gocv.MatTypeCV8UC1, out)
	if err != nil {
		return nil, fmt.Errorf("mask creation failed: %w", err)
	}
	defer view.Close()

	return safe.NewMatFromMat(view, "bernsen")
}

func (b *Bernsen) foreground(v, hi, lo uint8) bool {
	contrast := float64(hi) - float64(lo)
	mid := (int(hi) + int(lo)) / 2
	if contrast < b.ContrastThreshold {
		return mid >= 128
	}
	return int(v) >= mid
}
