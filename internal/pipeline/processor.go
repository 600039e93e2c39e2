package pipeline

import (
	"context"
	"errors"
	"image"
	"path/filepath"
	"time"

	apperrors "github.com/h39s/VessCoopJ/internal/errors"
	"github.com/h39s/VessCoopJ/internal/measure"
	"github.com/h39s/VessCoopJ/internal/models"
	"github.com/h39s/VessCoopJ/internal/output"
	"github.com/h39s/VessCoopJ/internal/projection"
	"github.com/h39s/VessCoopJ/internal/segmentation"
)

// selection is the resolved channel setup for one image.
type selection struct {
	vessel models.VesselSelection
	cellA  models.ChannelSelection
	cellB  models.ChannelSelection
}

// projections holds the per-image planes derived from a volume.
type projections struct {
	vessel   models.Plane
	cellA    models.Plane
	cellB    models.Plane
	combined models.Plane
}

// stage runs fn under a stage timer and annotates its error with the file
// and stage names.
func (d *Driver) stage(file, name string, fallback apperrors.Kind, fn func() error) error {
	timing := d.deps.Metrics.StartTiming(name)
	err := fn()
	d.deps.Metrics.EndTiming(timing)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return apperrors.WithContext(err, file, name, fallback)
	}
	return nil
}

// ProcessImage runs the full per-image sequence and writes its artifacts.
// Parameter choices made here are cached for the following images.
func (d *Driver) ProcessImage(ctx context.Context, path string) (models.ImageResult, error) {
	start := time.Now()
	file := filepath.Base(path)
	base := BaseName(path)
	log := d.deps.Logger

	vol, err := d.loader.Load(path)
	if err != nil {
		return models.ImageResult{}, err
	}
	preview := &lazyPreview{vol: vol}

	var scale models.ScaleCalibration
	err = d.stage(file, stageScale, apperrors.KindProcessing, func() error {
		if vol.Scale.Scaled {
			scale = vol.Scale
			return nil
		}
		scale, err = d.cache.Scale.Resolve(ctx, scaleResolver(d.deps.Prompter, preview.Image))
		return err
	})
	if err != nil {
		return models.ImageResult{}, err
	}

	var sel selection
	err = d.stage(file, stageChannels, apperrors.KindInvalidSelection, func() error {
		return d.resolveChannels(ctx, vol, preview.Image, &sel)
	})
	if err != nil {
		return models.ImageResult{}, err
	}

	var proj projections
	err = d.stage(file, stageProjection, apperrors.KindInvalidSliceRange, func() error {
		proj, err = project(vol, sel)
		return err
	})
	if err != nil {
		return models.ImageResult{}, err
	}

	var cellMask models.Mask
	err = d.stage(file, stageCells, apperrors.KindProcessing, func() error {
		cellMask, err = d.cells.Segment(ctx, proj.combined)
		return err
	})
	if err != nil {
		return models.ImageResult{}, err
	}

	var minSize float64
	err = d.stage(file, stageMinSize, apperrors.KindProcessing, func() error {
		overlay := func() image.Image { return cellMask.Overlay(proj.combined) }
		minSize, err = d.cache.MinCellSize.Resolve(ctx, minSizeResolver(d.deps.Prompter, overlay))
		return err
	})
	if err != nil {
		return models.ImageResult{}, err
	}

	var regions []models.CellRegion
	err = d.stage(file, stageParticles, apperrors.KindProcessing, func() error {
		regions, _, err = segmentation.AnalyzeParticles(ctx, cellMask, segmentation.ParticleOptions{
			MinSize:      minSize,
			ExcludeEdges: d.opts.ExcludeEdges,
		})
		return err
	})
	if err != nil {
		return models.ImageResult{}, err
	}

	var vesselMask models.Mask
	err = d.stage(file, stageVessels, apperrors.KindProcessing, func() error {
		vesselMask, err = d.vessel.Segment(ctx, proj.vessel)
		return err
	})
	if err != nil {
		return models.ImageResult{}, err
	}

	var records []models.MeasurementRecord
	var overlap models.Mask
	err = d.stage(file, stageMeasure, apperrors.KindProcessing, func() error {
		records, err = d.aggregator.Measure(measure.Input{
			Regions:  regions,
			Cells:    cellMask,
			Vessels:  vesselMask,
			ChannelA: proj.cellA,
			ChannelB: proj.cellB,
			Scale:    scale,
		})
		if err != nil {
			return err
		}
		overlap, err = measure.OverlapMask(cellMask, vesselMask)
		return err
	})
	if err != nil {
		return models.ImageResult{}, err
	}

	err = d.stage(file, stageOutput, apperrors.KindOutput, func() error {
		return d.writer.Write(output.Artifacts{
			Name:        base,
			Regions:     regions,
			Records:     records,
			Scale:       scale,
			VesselMask:  vesselMask,
			CellMask:    cellMask,
			OverlapMask: overlap,
			Vessel:      proj.vessel,
			CellA:       proj.cellA,
			CellB:       proj.cellB,
			NameA:       sel.cellA.Name,
			NameB:       sel.cellB.Name,
		})
	})
	if err != nil {
		return models.ImageResult{}, err
	}

	d.deps.Metrics.CellsDetected(len(records))
	res := models.ImageResult{Name: base, Records: records, Scale: scale, ProcessTime: since(start)}
	log.Info("Driver", "image processed", map[string]interface{}{
		"file":      file,
		"cells":     len(records),
		"unit":      scale.Unit,
		"cell_mode": d.cells.Name(),
		"duration":  res.ProcessTime.String(),
	})
	return res, nil
}

// resolveChannels resolves the vessel and both cell channel parameters.
// Locked parameters are still checked against the image.
func (d *Driver) resolveChannels(ctx context.Context, vol *models.Volume, preview func() image.Image, sel *selection) error {
	var err error
	p := d.deps.Prompter
	wasLocked := d.cache.ChannelsLocked()
	if sel.vessel, err = d.cache.Vessel.Resolve(ctx, vesselResolver(p, vol, preview)); err != nil {
		return err
	}
	if sel.cellA, err = d.cache.CellA.Resolve(ctx, cellChannelResolver(p, 1, vol, preview)); err != nil {
		return err
	}
	if sel.cellB, err = d.cache.CellB.Resolve(ctx, cellChannelResolver(p, 2, vol, preview)); err != nil {
		return err
	}

	checks := []struct {
		what    string
		channel int
	}{
		{"vessel", sel.vessel.Channel},
		{"cell 1", sel.cellA.Channel},
		{"cell 2", sel.cellB.Channel},
	}
	for _, c := range checks {
		if c.channel < 1 || c.channel > vol.Channels() {
			return apperrors.NewInvalidSelectionError(c.what, c.channel, vol.Channels())
		}
	}
	if !wasLocked && d.cache.ChannelsLocked() {
		d.deps.Logger.Info("Driver", "channel selection locked for remaining images", map[string]interface{}{
			"vessel": sel.vessel.Channel,
			"cell_1": sel.cellA.Channel,
			"cell_2": sel.cellB.Channel,
		})
	}
	return nil
}

// project sums the vessel channel and max-projects both cell channels from
// the chosen first slice, then max-combines the cell projections.
func project(vol *models.Volume, sel selection) (projections, error) {
	var out projections
	steps := []struct {
		channel int
		r       projection.Reduction
		dst     *models.Plane
	}{
		{sel.vessel.Channel, projection.Sum, &out.vessel},
		{sel.cellA.Channel, projection.Max, &out.cellA},
		{sel.cellB.Channel, projection.Max, &out.cellB},
	}
	for _, s := range steps {
		ch, err := vol.Channel(s.channel)
		if err != nil {
			return out, err
		}
		if *s.dst, err = projection.Project(ch, s.r, sel.vessel.MinSlice); err != nil {
			return out, err
		}
	}
	combined, err := projection.MaxCombine(out.cellA, out.cellB)
	if err != nil {
		return out, err
	}
	out.combined = combined
	return out, nil
}
