// Package classifier defines the pixel classifier contract used by both
// segmentation engines and an OpenCV DNN backed implementation.
package classifier

import (
	"context"
	"fmt"

	apperrors "github.com/h39s/VessCoopJ/internal/errors"
	"github.com/h39s/VessCoopJ/internal/models"
)

// LabelMap holds one class label per pixel. Label 0 is background.
type LabelMap struct {
	Width  int
	Height int
	Labels []int32
}

// Foreground marks every pixel whose label is at least 1.
func (l LabelMap) Foreground() models.Mask {
	m := models.NewMask(l.Width, l.Height)
	for i, v := range l.Labels {
		if v >= 1 {
			m.Pix[i] = 255
		}
	}
	return m
}

// Classes returns the distinct labels present, in ascending order.
func (l LabelMap) Classes() []int32 {
	seen := make(map[int32]bool)
	var out []int32
	for _, v := range l.Labels {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j] < out[j-1]; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

type Classifier interface {
	Apply(ctx context.Context, img models.Plane) (LabelMap, error)
	Close() error
}

type Loader interface {
	Load(path string) (Classifier, error)
}

// Func adapts a plain function to Classifier.
type Func func(ctx context.Context, img models.Plane) (LabelMap, error)

func (f Func) Apply(ctx context.Context, img models.Plane) (LabelMap, error) {
	return f(ctx, img)
}

func (f Func) Close() error {
	return nil
}

// LoaderFunc adapts a plain function to Loader.
type LoaderFunc func(path string) (Classifier, error)

func (f LoaderFunc) Load(path string) (Classifier, error) {
	return f(path)
}

// ApplyChecked runs c and verifies the result covers img exactly.
func ApplyChecked(ctx context.Context, c Classifier, img models.Plane) (LabelMap, error) {
	labels, err := c.Apply(ctx, img)
	if err != nil {
		if apperrors.IsKind(err, apperrors.KindClassifierApply) {
			return LabelMap{}, err
		}
		return LabelMap{}, apperrors.NewClassifierApplyError("classifier failed", err)
	}
	if labels.Width != img.Width || labels.Height != img.Height || len(labels.Labels) != img.Width*img.Height {
		return LabelMap{}, apperrors.NewClassifierApplyError(
			fmt.Sprintf("label map %dx%d does not match image %dx%d", labels.Width, labels.Height, img.Width, img.Height), nil)
	}
	return labels, nil
}
