package filters

import (
	"fmt"
	"image"

	"github.com/h39s/VessCoopJ/internal/opencv/safe"

	"gocv.io/x/gocv"
)

// LocalExtrema returns the maximum and minimum over a disc of the given
// radius around every pixel. Callers own both results.
func LocalExtrema(src *safe.Mat, radius int) (maxMat, minMat *safe.Mat, err error) {
	if err := safe.ValidateMatForOperation(src, "local extrema"); err != nil {
		return nil, nil, err
	}
	if radius < 1 {
		radius = 1
	}

	size := 2*radius + 1
	kernel := gocv.GetStructuringElement(gocv.MorphEllipse, image.Point{X: size, Y: size})
	defer kernel.Close()

	maxMat, err = safe.NewMat(src.Rows(), src.Cols(), src.Type())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create max Mat: %w", err)
	}
	minMat, err = safe.NewMat(src.Rows(), src.Cols(), src.Type())
	if err != nil {
		maxMat.Close()
		return nil, nil, fmt.Errorf("failed to create min Mat: %w", err)
	}

	// The default morphology border value never wins a max or min, so pixels
	// outside the image are ignored.
	gocv.Dilate(src.GetMat(), maxMat.Ptr(), kernel)
	gocv.Erode(src.GetMat(), minMat.Ptr(), kernel)

	return maxMat, minMat, nil
}
