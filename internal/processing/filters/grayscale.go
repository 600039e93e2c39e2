package filters

import (
	"context"
	"fmt"

	"github.com/h39s/VessCoopJ/internal/opencv/safe"

	"gocv.io/x/gocv"
)

// Normalize8Bit linearly maps a single-channel image from its own min/max
// range onto 0..255 and converts it to CV_8UC1.
type Normalize8Bit struct{}

func NewNormalize8Bit() *Normalize8Bit {
	return &Normalize8Bit{}
}

func (n *Normalize8Bit) Name() string {
	return "normalize_8bit"
}

func (n *Normalize8Bit) ShouldExecute(params map[string]interface{}) bool {
	return true
}

func (n *Normalize8Bit) Apply(ctx context.Context, input *safe.Mat, params map[string]interface{}) (*safe.Mat, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	return ToGray8(input)
}

// ToGray8 is the standalone form of Normalize8Bit.
func ToGray8(src *safe.Mat) (*safe.Mat, error) {
	if err := safe.ValidateMatForOperation(src, "8-bit conversion"); err != nil {
		return nil, err
	}
	if src.Channels() != 1 {
		return nil, fmt.Errorf("unsupported channel count for 8-bit conversion: %d", src.Channels())
	}

	normalized := gocv.NewMat()
	defer normalized.Close()
	gocv.Normalize(src.GetMat(), &normalized, 0, 255, gocv.NormMinMax)

	gray := gocv.NewMat()
	normalized.ConvertTo(&gray, gocv.MatTypeCV8UC1)

	return safe.Adopt(gray, "gray8")
}
