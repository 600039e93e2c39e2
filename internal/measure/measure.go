// Package measure computes per-cell overlap and intensity statistics.
package measure

import (
	"fmt"
	"math"

	apperrors "github.com/h39s/VessCoopJ/internal/errors"
	"github.com/h39s/VessCoopJ/internal/logger"
	"github.com/h39s/VessCoopJ/internal/models"
)

// Input bundles everything the aggregator needs for one image.
type Input struct {
	Regions  []models.CellRegion
	Cells    models.Mask
	Vessels  models.Mask
	ChannelA models.Plane
	ChannelB models.Plane
	Scale    models.ScaleCalibration
}

type Aggregator struct {
	logger logger.Logger
}

func NewAggregator(log logger.Logger) *Aggregator {
	if log == nil {
		log = logger.Nop()
	}
	return &Aggregator{logger: log}
}

// Measure returns one record per region in region order. Empty regions
// produce zero areas with NaN ratios instead of failing.
func (a *Aggregator) Measure(in Input) ([]models.MeasurementRecord, error) {
	if err := checkSizes(in); err != nil {
		return nil, err
	}

	pixelArea := in.Scale.PixelArea()
	records := make([]models.MeasurementRecord, 0, len(in.Regions))

	for _, region := range in.Regions {
		total := 0
		overlap := 0
		var sumA, sumB float64

		for _, p := range region.Pixels {
			if p.X < 0 || p.Y < 0 || p.X >= in.Cells.Width || p.Y >= in.Cells.Height {
				return nil, fmt.Errorf("region %d pixel %v outside %dx%d image", region.Index, p, in.Cells.Width, in.Cells.Height)
			}
			total++
			if in.Cells.Foreground(p.X, p.Y) && in.Vessels.Foreground(p.X, p.Y) {
				overlap++
			}
			sumA += float64(in.ChannelA.At(p.X, p.Y))
			sumB += float64(in.ChannelB.At(p.X, p.Y))
		}

		rec := models.MeasurementRecord{
			MaxWidth:          region.Feret * in.Scale.PixelWidth,
			VesselOverlapArea: float64(overlap) * pixelArea,
			CellArea:          float64(total) * pixelArea,
			TotalPixels:       total,
			OverlapPixels:     overlap,
		}

		if total == 0 {
			a.logger.Warning("Aggregator", "empty region measured", map[string]interface{}{
				"region": region.Index,
				"error":  apperrors.NewDegenerateRegionError(region.Index).Error(),
			})
			rec.OverlapPercentage = math.NaN()
			rec.MeanIntensityA = math.NaN()
			rec.MeanIntensityB = math.NaN()
		} else {
			rec.OverlapPercentage = float64(overlap) / float64(total) * 100
			rec.MeanIntensityA = sumA / float64(total)
			rec.MeanIntensityB = sumB / float64(total)
		}

		records = append(records, rec)
	}

	return records, nil
}

func checkSizes(in Input) error {
	w, h := in.Cells.Width, in.Cells.Height
	if !in.Vessels.SameSize(w, h) {
		return fmt.Errorf("vessel mask %dx%d does not match cell mask %dx%d", in.Vessels.Width, in.Vessels.Height, w, h)
	}
	if in.ChannelA.Width != w || in.ChannelA.Height != h {
		return fmt.Errorf("channel A %dx%d does not match cell mask %dx%d", in.ChannelA.Width, in.ChannelA.Height, w, h)
	}
	if in.ChannelB.Width != w || in.ChannelB.Height != h {
		return fmt.Errorf("channel B %dx%d does not match cell mask %dx%d", in.ChannelB.Width, in.ChannelB.Height, w, h)
	}
	return nil
}

// OverlapMask is the pixel-wise AND of the two masks.
func OverlapMask(cells, vessels models.Mask) (models.Mask, error) {
	if !cells.SameSize(vessels.Width, vessels.Height) {
		return models.Mask{}, fmt.Errorf("cannot overlap %dx%d with %dx%d", cells.Width, cells.Height, vessels.Width, vessels.Height)
	}
	out := models.NewMask(cells.Width, cells.Height)
	for i := range out.Pix {
		if cells.Pix[i] != 0 && vessels.Pix[i] != 0 {
			out.Pix[i] = 255
		}
	}
	return out, nil
}
