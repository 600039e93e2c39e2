// Package watershed separates touching blobs in a binary mask.
package watershed

import (
	"context"
	"fmt"
	"image"
	"image/color"

	"github.com/h39s/VessCoopJ/internal/opencv/conversion"
	"github.com/h39s/VessCoopJ/internal/opencv/safe"

	"gocv.io/x/gocv"
)

// Split cuts touching objects along one-pixel lines. Seeds are the maxima of
// the Euclidean distance map; nearby maxima within one pixel are merged into
// a single seed. The input must be CV_8UC1 with foreground non-zero.
func Split(ctx context.Context, mask *safe.Mat) (*safe.Mat, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	if err := safe.ValidateMatType(mask, "watershed", gocv.MatTypeCV8UC1); err != nil {
		return nil, err
	}
	if gocv.CountNonZero(mask.GetMat()) == 0 {
		return mask.Clone()
	}

	rows, cols := mask.Rows(), mask.Cols()

	// OpenCV's watershed claims the outermost pixel ring as boundary, so work
	// on a copy padded by one background pixel.
	padded := gocv.NewMat()
	defer padded.Close()
	gocv.CopyMakeBorder(mask.GetMat(), &padded, 1, 1, 1, 1, gocv.BorderConstant, color.RGBA{})

	dist := gocv.NewMat()
	defer dist.Close()
	distLabels := gocv.NewMat()
	defer distLabels.Close()
	gocv.DistanceTransform(padded, &dist, &distLabels, gocv.DistL2, gocv.DistanceMask5, gocv.DistanceLabelCComp)

	seeds, err := seedMask(dist)
	if err != nil {
		return nil, err
	}
	defer seeds.Close()

	markers := gocv.NewMat()
	defer markers.Close()
	n := gocv.ConnectedComponents(seeds, &markers)
	if n <= 2 {
		// Background plus at most one seed: nothing to separate.
		return mask.Clone()
	}
	if markers.Type() != gocv.MatTypeCV32SC1 {
		converted := gocv.NewMat()
		defer converted.Close()
		markers.ConvertTo(&converted, gocv.MatTypeCV32SC1)
		converted.CopyTo(&markers)
	}

	landscape, err := invertedLandscape(dist)
	if err != nil {
		return nil, err
	}
	defer landscape.Close()

	gocv.Watershed(landscape, &markers)

	labels, err := conversion.Labels(markers)
	if err != nil {
		return nil, err
	}

	src := padded.ToBytes()
	pw := cols + 2
	out := make([]byte, rows*cols)
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			i := (y+1)*pw + x + 1
			if src[i] != 0 && labels[i] > 0 {
				out[y*cols+x] = 255
			}
		}
	}

	view, err := gocv.NewMatFromBytes(rows, cols, gocv.MatTypeCV8UC1, out)
	if err != nil {
		return nil, fmt.Errorf("result creation failed: %w", err)
	}
	defer view.Close()
	return safe.NewMatFromMat(view, "watershed")
}

// seedMask marks distance-map pixels that equal their 3x3 neighbourhood
// maximum, then grows them by one pixel so adjacent maxima share a seed.
func seedMask(dist gocv.Mat) (gocv.Mat, error) {
	kernel := gocv.GetStructuringElement(gocv.MorphRect, image.Point{X: 3, Y: 3})
	defer kernel.Close()

	dilated := gocv.NewMat()
	defer dilated.Close()
	gocv.Dilate(dist, &dilated, kernel)

	d, err := dist.DataPtrFloat32()
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("reading distance map: %w", err)
	}
	m, err := dilated.DataPtrFloat32()
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("reading dilated distance map: %w", err)
	}

	peaks := make([]byte, len(d))
	for i, v := range d {
		if v > 0 && v >= m[i] {
			peaks[i] = 255
		}
	}

	raw, err := gocv.NewMatFromBytes(dist.Rows(), dist.Cols(), gocv.MatTypeCV8UC1, peaks)
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("seed creation failed: %w", err)
	}
	defer raw.Close()

	grown := gocv.NewMat()
	gocv.Dilate(raw, &grown, kernel)

	// Keep seeds inside the objects.
	inside := gocv.NewMat()
	defer inside.Close()
	gocv.Threshold(dist, &inside, 0, 255, gocv.ThresholdBinary)
	inside8 := gocv.NewMat()
	defer inside8.Close()
	inside.ConvertTo(&inside8, gocv.MatTypeCV8UC1)

	seeds := gocv.NewMat()
	gocv.BitwiseAnd(grown, inside8, &seeds)
	grown.Close()
	return seeds, nil
}

// invertedLandscape turns the distance map into an 8-bit BGR relief whose
// basins sit at object centres.
func invertedLandscape(dist gocv.Mat) (gocv.Mat, error) {
	norm := gocv.NewMat()
	defer norm.Close()
	gocv.Normalize(dist, &norm, 0, 255, gocv.NormMinMax)

	gray := gocv.NewMat()
	defer gray.Close()
	norm.ConvertTo(&gray, gocv.MatTypeCV8UC1)

	inverted := gocv.NewMat()
	defer inverted.Close()
	gocv.BitwiseNot(gray, &inverted)

	bgr := gocv.NewMat()
	gocv.CvtColor(inverted, &bgr, gocv.ColorGrayToBGR)
	if bgr.Empty() {
		bgr.Close()
		return gocv.NewMat(), fmt.Errorf("landscape conversion failed")
	}
	return bgr, nil
}
