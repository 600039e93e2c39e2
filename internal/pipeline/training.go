package pipeline

import (
	"context"
	"errors"
	"path"
	"path/filepath"

	apperrors "github.com/h39s/VessCoopJ/internal/errors"
	"github.com/h39s/VessCoopJ/internal/models"
	"github.com/h39s/VessCoopJ/internal/output"
	"github.com/h39s/VessCoopJ/internal/projection"
	"github.com/h39s/VessCoopJ/internal/prompt"
	"github.com/h39s/VessCoopJ/internal/segmentation"
)

// TrainingPrefix is where training stacks are written inside the sink.
const TrainingPrefix = "training"

// exportTraining writes one training image per file of a chosen folder:
// the preprocessed vessel projection for "vessel", the max-combined cell
// projections for "cell". Channel choices made here are cached for the run.
func (d *Driver) exportTraining(ctx context.Context, kind string) error {
	timing := d.deps.Metrics.StartTiming(stageTraining)
	defer d.deps.Metrics.EndTiming(timing)

	def := d.opts.TrainingDir
	if def == "" {
		def = d.opts.InputDir
	}
	resp, err := d.deps.Prompter.Show(ctx, prompt.Dialog{
		ID:          DialogTrainingFolder,
		Title:       "Training images",
		Fields:      []prompt.Field{prompt.Text("dir", "Select a folder of training images", def)},
		OKLabel:     "OK",
		CancelLabel: "Cancel",
	})
	if err != nil {
		return err
	}
	dir := resp.String("dir")
	if !resp.HasValues() || dir == "" {
		d.deps.Logger.Warning("Driver", "training export skipped", map[string]interface{}{"kind": kind})
		return nil
	}

	paths, err := ListImages(dir, d.opts.Extension)
	if err != nil {
		return err
	}

	prefix := path.Join(TrainingPrefix, kind)
	written := 0
	for _, p := range paths {
		plane, err := d.trainingPlane(ctx, kind, p)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			d.deps.Logger.Warning("Driver", "training image skipped", map[string]interface{}{
				"file":  filepath.Base(p),
				"error": err.Error(),
			})
			continue
		}
		data, err := output.EncodeTIFF(output.PlaneGray16(plane))
		if err != nil {
			return apperrors.NewOutputError(p, err)
		}
		if err := d.writer.WriteRaw(path.Join(prefix, BaseName(p)+".tif"), data); err != nil {
			return err
		}
		written++
	}

	d.deps.Logger.Info("Driver", "training stack exported", map[string]interface{}{
		"kind":   kind,
		"images": written,
		"stack":  d.deps.Sink.Location(prefix),
	})

	_, err = d.deps.Prompter.Show(ctx, trainingStepsDialog(kind, d.deps.Sink.Location(prefix)))
	return err
}

func (d *Driver) trainingPlane(ctx context.Context, kind, p string) (models.Plane, error) {
	vol, err := d.loader.Load(p)
	if err != nil {
		return models.Plane{}, err
	}
	preview := (&lazyPreview{vol: vol}).Image
	file := filepath.Base(p)

	if kind == "vessel" {
		vessel, err := d.cache.Vessel.Resolve(ctx, vesselResolver(d.deps.Prompter, vol, preview))
		if err != nil {
			return models.Plane{}, apperrors.WithContext(err, file, stageTraining, apperrors.KindInvalidSelection)
		}
		ch, err := vol.Channel(vessel.Channel)
		if err != nil {
			return models.Plane{}, apperrors.NewInvalidSelectionError("vessel", vessel.Channel, vol.Channels())
		}
		sum, err := projection.Project(ch, projection.Sum, vessel.MinSlice)
		if err != nil {
			return models.Plane{}, err
		}
		return segmentation.NewVesselSegmenter(nil, d.deps.Logger).Preprocess(ctx, sum)
	}

	var sel selection
	if err := d.resolveChannels(ctx, vol, preview, &sel); err != nil {
		return models.Plane{}, apperrors.WithContext(err, file, stageTraining, apperrors.KindInvalidSelection)
	}
	proj, err := project(vol, sel)
	if err != nil {
		return models.Plane{}, err
	}
	return proj.combined, nil
}
