package segmentation

import (
	"context"
	"fmt"

	"github.com/h39s/VessCoopJ/internal/classifier"
	"github.com/h39s/VessCoopJ/internal/logger"
	"github.com/h39s/VessCoopJ/internal/models"
	"github.com/h39s/VessCoopJ/internal/opencv/conversion"
	"github.com/h39s/VessCoopJ/internal/processing/chain"
	"github.com/h39s/VessCoopJ/internal/processing/filters"
)

// VesselSegmenter enhances the vessel projection and hands it to a trained
// classifier. Any label of 1 or more counts as vessel.
type VesselSegmenter struct {
	Classifier classifier.Classifier
	Logger     logger.Logger
	chain      *chain.ProcessingChain
	params     map[string]interface{}
	multiclass bool
}

func NewVesselSegmenter(c classifier.Classifier, log logger.Logger) *VesselSegmenter {
	if log == nil {
		log = logger.Nop()
	}
	return &VesselSegmenter{
		Classifier: c,
		Logger:     log,
		chain: chain.NewProcessingChain(
			filters.NewNormalize8Bit(),
			filters.NewCLAHEFilter(),
			filters.NewBrightOutlierFilter(),
		),
		params: map[string]interface{}{
			"clahe_block_size":  filters.DefaultCLAHEBlockSize,
			"clahe_clip_limit":  filters.DefaultCLAHEClip,
			"outlier_radius":    1,
			"outlier_threshold": 0.0,
		},
	}
}

// Steps lists the preprocessing filters in execution order.
func (v *VesselSegmenter) Steps() []string {
	return v.chain.Names()
}

// Observe reports each preprocessing step to fn.
func (v *VesselSegmenter) Observe(fn func(chain.StepReport)) {
	v.chain.Observe(fn)
}

// Preprocess applies the fixed enhancement chain. The result is the image
// the classifier sees, and the image exported for classifier training.
func (v *VesselSegmenter) Preprocess(ctx context.Context, projection models.Plane) (models.Plane, error) {
	src, err := conversion.PlaneToMat(projection)
	if err != nil {
		return models.Plane{}, err
	}
	defer src.Close()

	out, err := v.chain.Execute(ctx, src, v.params)
	if err != nil {
		return models.Plane{}, fmt.Errorf("vessel preprocessing: %w", err)
	}
	defer out.Close()

	return conversion.MatToPlane(out)
}

func (v *VesselSegmenter) Segment(ctx context.Context, projection models.Plane) (models.Mask, error) {
	enhanced, err := v.Preprocess(ctx, projection)
	if err != nil {
		return models.Mask{}, err
	}
	labels, err := classifier.ApplyChecked(ctx, v.Classifier, enhanced)
	if err != nil {
		return models.Mask{}, err
	}
	if classes := labels.Classes(); len(classes) > 2 && !v.multiclass {
		v.multiclass = true
		v.Logger.Warning("VesselSegmenter", "classifier returned more than two classes, every non-zero label counts as vessel", map[string]interface{}{
			"classes": fmt.Sprint(classes),
		})
	}
	return labels.Foreground(), nil
}
