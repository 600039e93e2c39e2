package filters

import (
	"context"
	"fmt"
	"image"

	"github.com/h39s/VessCoopJ/internal/opencv/safe"

	"gocv.io/x/gocv"
)

const (
	DefaultCLAHEBlockSize = 127
	DefaultCLAHEClip      = 3.0
)

// CLAHEFilter equalizes local contrast on an 8-bit image. Tiles are sized to
// approximate the configured block size in pixels.
type CLAHEFilter struct{}

func NewCLAHEFilter() *CLAHEFilter {
	return &CLAHEFilter{}
}

func (c *CLAHEFilter) Name() string {
	return "clahe_filter"
}

func (c *CLAHEFilter) ShouldExecute(params map[string]interface{}) bool {
	useClahe, ok := params["use_clahe"].(bool)
	return !ok || useClahe
}

func (c *CLAHEFilter) Apply(ctx context.Context, input *safe.Mat, params map[string]interface{}) (*safe.Mat, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	if err := safe.ValidateMatType(input, "CLAHE", gocv.MatTypeCV8UC1); err != nil {
		return nil, err
	}

	clipLimit := DefaultCLAHEClip
	if val, ok := params["clahe_clip_limit"].(float64); ok {
		clipLimit = val
	}

	blockSize := DefaultCLAHEBlockSize
	if val, ok := params["clahe_block_size"].(int); ok && val > 0 {
		blockSize = val
	}

	dst, err := safe.NewMat(input.Rows(), input.Cols(), input.Type())
	if err != nil {
		return nil, fmt.Errorf("failed to create destination Mat: %w", err)
	}

	clahe := gocv.NewCLAHEWithParams(clipLimit, TileGrid(input.Cols(), input.Rows(), blockSize))
	defer clahe.Close()

	clahe.Apply(input.GetMat(), dst.Ptr())

	return dst, nil
}

// TileGrid returns how many tiles of roughly blockSize pixels cover the image.
func TileGrid(width, height, blockSize int) image.Point {
	tiles := func(n int) int {
		t := (n + blockSize - 1) / blockSize
		if t < 1 {
			t = 1
		}
		return t
	}
	return image.Point{X: tiles(width), Y: tiles(height)}
}
