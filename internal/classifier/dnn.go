package classifier

import (
	"context"
	"fmt"
	"image"
	"os"
	"sync"

	apperrors "github.com/h39s/VessCoopJ/internal/errors"
	"github.com/h39s/VessCoopJ/internal/logger"
	"github.com/h39s/VessCoopJ/internal/models"
	"github.com/h39s/VessCoopJ/internal/opencv/conversion"
	"github.com/h39s/VessCoopJ/internal/processing/filters"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"
	"gopkg.in/yaml.v3"
)

// ModelSpec describes a segmentation network. It is read from an optional
// "<model>.yaml" file next to the model.
type ModelSpec struct {
	InputWidth      int     `yaml:"input_width"`
	InputHeight     int     `yaml:"input_height"`
	Classes         int     `yaml:"classes"`
	BackgroundClass int     `yaml:"background_class"`
	Resize          bool    `yaml:"resize"`
	Scale           float64 `yaml:"scale"`
	Mean            float64 `yaml:"mean"`
}

func defaultSpec() ModelSpec {
	return ModelSpec{Scale: 1.0 / 255}
}

// LoadSpec reads the sidecar for modelPath, falling back to defaults when it
// does not exist.
func LoadSpec(modelPath string) (ModelSpec, error) {
	spec := defaultSpec()
	data, err := os.ReadFile(modelPath + ".yaml")
	if os.IsNotExist(err) {
		return spec, nil
	}
	if err != nil {
		return spec, errors.Wrap(err, "reading model sidecar")
	}
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return spec, errors.Wrap(err, "parsing model sidecar")
	}
	if spec.Scale == 0 {
		spec.Scale = 1.0 / 255
	}
	return spec, nil
}

type DNNLoader struct {
	Logger logger.Logger
}

func (l DNNLoader) Load(path string) (Classifier, error) {
	if path == "" {
		return nil, apperrors.NewMissingClassifierModelError("classifier")
	}
	if _, err := os.Stat(path); err != nil {
		return nil, &apperrors.Error{
			Kind:    apperrors.KindMissingClassifierModel,
			Message: "model file not readable: " + path,
			Cause:   err,
		}
	}

	spec, err := LoadSpec(path)
	if err != nil {
		return nil, apperrors.NewConfigurationError("invalid model sidecar for "+path, err)
	}

	net := gocv.ReadNet(path, "")
	if net.Empty() {
		net.Close()
		return nil, apperrors.NewConfigurationError("OpenCV could not load model "+path, nil)
	}

	log := l.Logger
	if log == nil {
		log = logger.Nop()
	}
	log.Info("Classifier", "model loaded", map[string]interface{}{
		"path":    path,
		"classes": spec.Classes,
		"resize":  spec.Resize,
	})

	return &DNNClassifier{net: net, spec: spec, path: path}, nil
}

// DNNClassifier runs a per-pixel segmentation network through OpenCV's DNN
// module. The network output must be 1xCxHxW scores.
type DNNClassifier struct {
	mu   sync.Mutex
	net  gocv.Net
	spec ModelSpec
	path string
}

func (d *DNNClassifier) Apply(ctx context.Context, img models.Plane) (LabelMap, error) {
	select {
	case <-ctx.Done():
		return LabelMap{}, ctx.Err()
	default:
	}

	size := image.Pt(img.Width, img.Height)
	if d.spec.InputWidth > 0 && d.spec.InputHeight > 0 {
		want := image.Pt(d.spec.InputWidth, d.spec.InputHeight)
		if want != size && !d.spec.Resize {
			return LabelMap{}, apperrors.NewClassifierApplyError(
				fmt.Sprintf("model %s expects %dx%d input, got %dx%d", d.path, want.X, want.Y, size.X, size.Y), nil)
		}
		size = want
	}

	src, err := conversion.PlaneToMat(img)
	if err != nil {
		return LabelMap{}, err
	}
	defer src.Close()
	gray, err := filters.ToGray8(src)
	if err != nil {
		return LabelMap{}, err
	}
	defer gray.Close()

	blob := gocv.BlobFromImage(gray.GetMat(), d.spec.Scale, size, gocv.NewScalar(d.spec.Mean, 0, 0, 0), false, false)
	defer blob.Close()

	d.mu.Lock()
	d.net.SetInput(blob, "")
	out := d.net.Forward("")
	d.mu.Unlock()
	defer out.Close()

	dims := out.Size()
	if len(dims) != 4 || dims[0] != 1 || dims[2] != size.Y || dims[3] != size.X {
		return LabelMap{}, apperrors.NewClassifierApplyError(fmt.Sprintf("unexpected network output shape %v", dims), nil)
	}
	classes := dims[1]
	if d.spec.Classes > 0 && classes != d.spec.Classes && !(classes == 1 && d.spec.Classes == 2) {
		return LabelMap{}, apperrors.NewClassifierApplyError(
			fmt.Sprintf("network produced %d classes, model declares %d", classes, d.spec.Classes), nil)
	}

	scores, err := out.DataPtrFloat32()
	if err != nil {
		return LabelMap{}, apperrors.NewClassifierApplyError("reading network output", err)
	}

	labels := argmax(scores, classes, size.X, size.Y, d.spec.BackgroundClass)
	if size.X != img.Width || size.Y != img.Height {
		labels = resample(labels, size.X, size.Y, img.Width, img.Height)
	}
	return LabelMap{Width: img.Width, Height: img.Height, Labels: labels}, nil
}

func (d *DNNClassifier) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.net.Close()
}

// argmax picks the best class per pixel from planar scores and renumbers
// classes so the background class becomes 0. A single-channel output is
// treated as a foreground probability.
func argmax(scores []float32, classes, w, h, background int) []int32 {
	n := w * h
	labels := make([]int32, n)
	if classes == 1 {
		for i := 0; i < n; i++ {
			if scores[i] >= 0.5 {
				labels[i] = 1
			}
		}
		return labels
	}

	for i := 0; i < n; i++ {
		best, bestScore := 0, scores[i]
		for c := 1; c < classes; c++ {
			if s := scores[c*n+i]; s > bestScore {
				best, bestScore = c, s
			}
		}
		switch {
		case best == background:
			labels[i] = 0
		case best < background:
			labels[i] = int32(best + 1)
		default:
			labels[i] = int32(best)
		}
	}
	return labels
}

// resample maps labels to a new size with nearest-neighbour lookup.
func resample(labels []int32, sw, sh, dw, dh int) []int32 {
	out := make([]int32, dw*dh)
	for y := 0; y < dh; y++ {
		sy := y * sh / dh
		for x := 0; x < dw; x++ {
			sx := x * sw / dw
			out[y*dw+x] = labels[sy*sw+sx]
		}
	}
	return out
}
