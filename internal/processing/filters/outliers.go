package filters

import (
	"context"
	"fmt"

	"github.com/h39s/VessCoopJ/internal/opencv/safe"

	"gocv.io/x/gocv"
)

// BrightOutlierFilter replaces a pixel by its local median when it exceeds
// that median by more than the threshold.
type BrightOutlierFilter struct{}

func NewBrightOutlierFilter() *BrightOutlierFilter {
	return &BrightOutlierFilter{}
}

func (b *BrightOutlierFilter) Name() string {
	return "bright_outlier_filter"
}

func (b *BrightOutlierFilter) ShouldExecute(params map[string]interface{}) bool {
	enabled, ok := params["remove_outliers"].(bool)
	return !ok || enabled
}

func (b *BrightOutlierFilter) Apply(ctx context.Context, input *safe.Mat, params map[string]interface{}) (*safe.Mat, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	if err := safe.ValidateMatType(input, "outlier removal", gocv.MatTypeCV8UC1); err != nil {
		return nil, err
	}

	radius := 1
	if val, ok := params["outlier_radius"].(int); ok && val > 0 {
		radius = val
	}
	threshold := 0.0
	if val, ok := params["outlier_threshold"].(float64); ok && val >= 0 {
		threshold = val
	}

	src := input.GetMat()

	median := gocv.NewMat()
	defer median.Close()
	gocv.MedianBlur(src, &median, 2*radius+1)

	// 8-bit subtraction saturates, so only bright deviations survive.
	diff := gocv.NewMat()
	defer diff.Close()
	gocv.Subtract(src, median, &diff)

	mask := gocv.NewMat()
	defer mask.Close()
	gocv.Threshold(diff, &mask, float32(threshold), 255, gocv.ThresholdBinary)

	result, err := safe.NewMatFromMat(src, "outliers_removed")
	if err != nil {
		return nil, fmt.Errorf("failed to copy input: %w", err)
	}
	median.CopyToWithMask(result.Ptr(), mask)

	return result, nil
}
