package conversion

import (
	"fmt"
	"unsafe"

	"github.com/h39s/VessCoopJ/internal/models"
	"github.com/h39s/VessCoopJ/internal/opencv/safe"

	"gocv.io/x/gocv"
)

// PlaneToMat copies a plane into a CV_32FC1 Mat.
func PlaneToMat(p models.Plane) (*safe.Mat, error) {
	if err := safe.ValidateDimensions(p.Width, p.Height, "plane to Mat conversion"); err != nil {
		return nil, err
	}
	if len(p.Pix) != p.Width*p.Height {
		return nil, fmt.Errorf("plane has %d samples, want %d", len(p.Pix), p.Width*p.Height)
	}

	raw := unsafe.Slice((*byte)(unsafe.Pointer(&p.Pix[0])), len(p.Pix)*4)
	view, err := gocv.NewMatFromBytes(p.Height, p.Width, gocv.MatTypeCV32FC1, raw)
	if err != nil {
		return nil, fmt.Errorf("Mat creation failed: %w", err)
	}
	defer view.Close()

	return safe.NewMatFromMat(view, "plane")
}

// MatToPlane converts any single-channel Mat into a float32 plane.
func MatToPlane(src *safe.Mat) (models.Plane, error) {
	if err := safe.ValidateMatForOperation(src, "Mat to plane conversion"); err != nil {
		return models.Plane{}, err
	}
	if src.Channels() != 1 {
		return models.Plane{}, fmt.Errorf("unsupported channel count: %d", src.Channels())
	}

	m := src.GetMat()
	f32 := gocv.NewMat()
	defer f32.Close()
	if m.Type() == gocv.MatTypeCV32FC1 {
		m.CopyTo(&f32)
	} else {
		m.ConvertTo(&f32, gocv.MatTypeCV32FC1)
	}

	data, err := f32.DataPtrFloat32()
	if err != nil {
		return models.Plane{}, fmt.Errorf("reading Mat data: %w", err)
	}

	out := models.NewPlane(m.Cols(), m.Rows())
	copy(out.Pix, data)
	return out, nil
}

// MaskToMat copies a mask into a CV_8UC1 Mat with foreground 255.
func MaskToMat(mask models.Mask) (*safe.Mat, error) {
	if err := safe.ValidateDimensions(mask.Width, mask.Height, "mask to Mat conversion"); err != nil {
		return nil, err
	}
	if len(mask.Pix) != mask.Width*mask.Height {
		return nil, fmt.Errorf("mask has %d samples, want %d", len(mask.Pix), mask.Width*mask.Height)
	}

	buf := make([]byte, len(mask.Pix))
	for i, v := range mask.Pix {
		if v != 0 {
			buf[i] = 255
		}
	}
	view, err := gocv.NewMatFromBytes(mask.Height, mask.Width, gocv.MatTypeCV8UC1, buf)
	if err != nil {
		return nil, fmt.Errorf("Mat creation failed: %w", err)
	}
	defer view.Close()

	return safe.NewMatFromMat(view, "mask")
}

// MatToMask treats every non-zero pixel of a single-channel 8-bit Mat as
// foreground.
func MatToMask(src *safe.Mat) (models.Mask, error) {
	if err := safe.ValidateMatType(src, "Mat to mask conversion", gocv.MatTypeCV8UC1); err != nil {
		return models.Mask{}, err
	}

	m := src.GetMat()
	data := m.ToBytes()
	out := models.NewMask(m.Cols(), m.Rows())
	for i, v := range data {
		if v != 0 {
			out.Pix[i] = 255
		}
	}
	return out, nil
}

// Labels reads a CV_32SC1 label image in row-major order.
func Labels(src gocv.Mat) ([]int32, error) {
	if src.Type() != gocv.MatTypeCV32SC1 {
		return nil, fmt.Errorf("label Mat has type %d, want CV_32SC1", int(src.Type()))
	}
	data, err := src.DataPtrInt32()
	if err != nil {
		return nil, fmt.Errorf("reading labels: %w", err)
	}
	out := make([]int32, len(data))
	copy(out, data)
	return out, nil
}
