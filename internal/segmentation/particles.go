package segmentation

import (
	"context"
	"image"

	"github.com/h39s/VessCoopJ/internal/geometry"
	"github.com/h39s/VessCoopJ/internal/models"
	"github.com/h39s/VessCoopJ/internal/opencv/conversion"

	"gocv.io/x/gocv"
)

// ParticleOptions filters connected components.
type ParticleOptions struct {
	// MinSize is the smallest accepted area in pixels.
	MinSize float64
	// ExcludeEdges drops components touching the image border.
	ExcludeEdges bool
}

// AnalyzeParticles splits mask into 8-connected regions, numbered in raster
// order of their first pixel, and drops those rejected by opts. It returns
// the kept regions and a mask containing only them.
func AnalyzeParticles(ctx context.Context, mask models.Mask, opts ParticleOptions) ([]models.CellRegion, models.Mask, error) {
	select {
	case <-ctx.Done():
		return nil, models.Mask{}, ctx.Err()
	default:
	}

	kept := models.NewMask(mask.Width, mask.Height)
	if mask.Count() == 0 {
		return nil, kept, nil
	}

	src, err := conversion.MaskToMat(mask)
	if err != nil {
		return nil, models.Mask{}, err
	}
	defer src.Close()

	labelMat := gocv.NewMat()
	defer labelMat.Close()
	gocv.ConnectedComponents(src.GetMat(), &labelMat)

	labels, err := conversion.Labels(labelMat)
	if err != nil {
		return nil, models.Mask{}, err
	}

	order := make(map[int32]int)
	var groups [][]image.Point
	for y := 0; y < mask.Height; y++ {
		for x := 0; x < mask.Width; x++ {
			l := labels[y*mask.Width+x]
			if l == 0 {
				continue
			}
			idx, ok := order[l]
			if !ok {
				idx = len(groups)
				order[l] = idx
				groups = append(groups, nil)
			}
			groups[idx] = append(groups[idx], image.Pt(x, y))
		}
	}

	var regions []models.CellRegion
	for _, pixels := range groups {
		if float64(len(pixels)) < opts.MinSize {
			continue
		}
		bounds := geometry.Bounds(pixels)
		if opts.ExcludeEdges && touchesEdge(bounds, mask.Width, mask.Height) {
			continue
		}

		regions = append(regions, models.CellRegion{
			Index:    len(regions) + 1,
			Pixels:   pixels,
			Boundary: geometry.Outline(pixels),
			Bounds:   bounds,
			Feret:    geometry.Feret(pixels),
		})
		for _, p := range pixels {
			kept.SetForeground(p.X, p.Y, true)
		}
	}

	return regions, kept, nil
}

func touchesEdge(b image.Rectangle, w, h int) bool {
	return b.Min.X == 0 || b.Min.Y == 0 || b.Max.X == w || b.Max.Y == h
}
