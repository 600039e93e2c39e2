// Package pipeline drives a batch run: run-level classifier setup, then the
// per-image decode, project, segment, measure and write sequence.
package pipeline

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"time"

	"github.com/h39s/VessCoopJ/internal/classifier"
	apperrors "github.com/h39s/VessCoopJ/internal/errors"
	"github.com/h39s/VessCoopJ/internal/measure"
	"github.com/h39s/VessCoopJ/internal/models"
	"github.com/h39s/VessCoopJ/internal/output"
	"github.com/h39s/VessCoopJ/internal/processing/chain"
	"github.com/h39s/VessCoopJ/internal/prompt"
	"github.com/h39s/VessCoopJ/internal/runparams"
	"github.com/h39s/VessCoopJ/internal/segmentation"
)

// Driver owns the run parameter cache and the segmenters for one batch.
// It is not safe for concurrent use; images are processed one at a time.
type Driver struct {
	opts  Options
	deps  Dependencies
	cache *runparams.Cache

	loader     *imageLoader
	writer     *output.Writer
	aggregator *measure.Aggregator

	vessel      *segmentation.VesselSegmenter
	cells       segmentation.CellSegmenter
	classifiers []classifier.Classifier
}

// RunSummary reports what happened to each file of a batch.
type RunSummary struct {
	Processed []models.ImageResult
	Skipped   []string
}

func NewDriver(opts Options, deps Dependencies) (*Driver, error) {
	if deps.Decoder == nil || deps.Sink == nil || deps.Loader == nil {
		return nil, apperrors.NewConfigurationError("decoder, classifier loader and output sink are required", nil)
	}
	if opts.Extension == "" {
		opts.Extension = ".tif"
	}
	deps.fill()

	cache := runparams.NewCache()
	cache.Apply(opts.Presets)

	return &Driver{
		opts:  opts,
		deps:  deps,
		cache: cache,
		loader: &imageLoader{
			decoder:       deps.Decoder,
			logger:        deps.Logger,
			timingTracker: deps.Metrics,
		},
		writer:     output.NewWriter(deps.Sink, deps.Logger),
		aggregator: measure.NewAggregator(deps.Logger),
	}, nil
}

// Cache exposes the run parameters, e.g. for inspection after a run.
func (d *Driver) Cache() *runparams.Cache {
	return d.cache
}

// Setup resolves the vessel classifier and the cell segmentation mode. A
// missing model aborts the run before any image is touched.
func (d *Driver) Setup(ctx context.Context) error {
	timing := d.deps.Metrics.StartTiming(stageSetup)
	defer d.deps.Metrics.EndTiming(timing)

	vesselPath, err := d.resolveModel(ctx, "vessel", d.opts.VesselModel, DialogTrainVessel, DialogVesselModel)
	if err != nil {
		return err
	}
	vesselModel, err := d.load(vesselPath)
	if err != nil {
		return err
	}
	d.vessel = segmentation.NewVesselSegmenter(vesselModel, d.deps.Logger)
	d.vessel.Observe(func(r chain.StepReport) {
		d.deps.Logger.Debug("VesselSegmenter", "preprocessing step", map[string]interface{}{
			"step":     r.Name,
			"skipped":  r.Skipped,
			"duration": r.Duration.String(),
		})
	})

	classify, err := d.classifyCells(ctx)
	if err != nil {
		return err
	}
	if classify {
		cellPath, err := d.resolveModel(ctx, "cell", d.opts.CellModel, DialogTrainCell, DialogCellModel)
		if err != nil {
			return err
		}
		cellModel, err := d.load(cellPath)
		if err != nil {
			return err
		}
		d.cells = segmentation.NewClassifierSegmenter(cellModel)
	} else {
		d.cells = segmentation.NewThresholdSegmenter(d.cache.Threshold, d.deps.Prompter, d.deps.Logger)
	}

	d.deps.Logger.Info("Driver", "setup complete", map[string]interface{}{
		"vessel_model": vesselPath,
		"cell_mode":    d.cells.Name(),
		"vessel_steps": strings.Join(d.vessel.Steps(), ","),
	})
	return nil
}

func (d *Driver) classifyCells(ctx context.Context) (bool, error) {
	if d.opts.ClassifyCells != nil {
		return *d.opts.ClassifyCells, nil
	}
	resp, err := d.deps.Prompter.Show(ctx, yesNoDialog(DialogClassifyCells, "Classify cells?",
		"Would you like to classify cells?", "Classify cells", "Use thresholding"))
	if err != nil {
		return false, err
	}
	return resp.Outcome == prompt.Confirmed, nil
}

// resolveModel offers a training export, then asks for the model path.
func (d *Driver) resolveModel(ctx context.Context, kind, preset, trainID, pathID string) (string, error) {
	if preset != "" {
		return preset, nil
	}
	title := strings.ToUpper(kind[:1]) + kind[1:]
	resp, err := d.deps.Prompter.Show(ctx, yesNoDialog(trainID, "Train "+kind+" classifier?",
		"Would you like to train a new "+kind+" classifier?", "Train new classifier", "Use saved classifier"))
	if err != nil {
		return "", err
	}
	if resp.Outcome == prompt.Confirmed {
		if err := d.exportTraining(ctx, kind); err != nil {
			return "", err
		}
	}

	resp, err = d.deps.Prompter.Show(ctx, pathDialog(pathID, title+" classifier model",
		"Select a saved "+kind+" classifier model", ""))
	if err != nil {
		return "", err
	}
	path := strings.TrimSpace(resp.String("path"))
	if !resp.HasValues() || path == "" {
		return "", apperrors.NewMissingClassifierModelError(kind + " segmentation")
	}
	return path, nil
}

func (d *Driver) load(path string) (classifier.Classifier, error) {
	c, err := d.deps.Loader.Load(path)
	if err != nil {
		return nil, apperrors.WithContext(err, path, stageSetup, apperrors.KindConfiguration)
	}
	d.classifiers = append(d.classifiers, c)
	return c, nil
}

// Run processes every matching file of the input folder in name order.
// Unreadable files are always skipped; other per-image failures skip or
// abort according to the options. Fatal errors and cancellation stop the
// batch immediately.
func (d *Driver) Run(ctx context.Context) (RunSummary, error) {
	var summary RunSummary
	if d.vessel == nil || d.cells == nil {
		return summary, apperrors.NewConfigurationError("Run called before Setup", nil)
	}

	paths, err := ListImages(d.opts.InputDir, d.opts.Extension)
	if err != nil {
		return summary, err
	}
	d.deps.Logger.Info("Driver", "batch started", map[string]interface{}{
		"folder": d.opts.InputDir,
		"images": len(paths),
	})

	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		name := filepath.Base(path)

		res, err := d.ProcessImage(ctx, path)
		if err == nil {
			summary.Processed = append(summary.Processed, res)
			d.deps.Metrics.ImageDone(StatusProcessed)
			continue
		}

		d.deps.Logger.Error("Driver", err, map[string]interface{}{
			"file":    name,
			"message": "image failed",
		})
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return summary, err
		}
		if apperrors.Fatal(err) || (d.opts.AbortOnError && !apperrors.IsKind(err, apperrors.KindDecode)) {
			d.deps.Metrics.ImageDone(StatusFailed)
			return summary, err
		}
		d.deps.Metrics.ImageDone(StatusSkipped)
		summary.Skipped = append(summary.Skipped, name)
	}

	if d.opts.Summary && len(summary.Processed) > 0 {
		if err := d.writer.WriteSummary(summary.Processed); err != nil {
			return summary, err
		}
	}

	d.deps.Logger.Info("Driver", "batch finished", map[string]interface{}{
		"processed": len(summary.Processed),
		"skipped":   len(summary.Skipped),
	})
	return summary, nil
}

// Close releases the loaded classifiers.
func (d *Driver) Close() error {
	var first error
	for _, c := range d.classifiers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	d.classifiers = nil
	return first
}

func since(start time.Time) time.Duration {
	return time.Since(start).Round(time.Millisecond)
}
