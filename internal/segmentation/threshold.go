package segmentation

import (
	"context"
	"fmt"
	"image"
	"math"

	"github.com/h39s/VessCoopJ/internal/logger"
	"github.com/h39s/VessCoopJ/internal/models"
	"github.com/h39s/VessCoopJ/internal/opencv/conversion"
	"github.com/h39s/VessCoopJ/internal/processing/filters"
	"github.com/h39s/VessCoopJ/internal/processing/threshold"
	"github.com/h39s/VessCoopJ/internal/processing/watershed"
	"github.com/h39s/VessCoopJ/internal/prompt"
	"github.com/h39s/VessCoopJ/internal/runparams"
)

const ThresholdDialogID = "cell-threshold"

// ThresholdSegmenter binarizes cells with a Bernsen local threshold followed
// by a watershed split. While its parameters are unlocked every image goes
// through an interactive preview loop.
type ThresholdSegmenter struct {
	Params   *runparams.Parameter[models.ThresholdParams]
	Prompter prompt.Prompter
	Logger   logger.Logger
}

func NewThresholdSegmenter(params *runparams.Parameter[models.ThresholdParams], p prompt.Prompter, log logger.Logger) *ThresholdSegmenter {
	if log == nil {
		log = logger.Nop()
	}
	return &ThresholdSegmenter{Params: params, Prompter: p, Logger: log}
}

func (s *ThresholdSegmenter) Name() string {
	return "threshold"
}

func (s *ThresholdSegmenter) Segment(ctx context.Context, combined models.Plane) (models.Mask, error) {
	current := s.Params.Value()
	mask, err := Threshold(ctx, combined, current)
	if err != nil {
		return models.Mask{}, err
	}
	if s.Params.Locked() {
		return mask, nil
	}

	state := StatePreview
	for state != StateLocked {
		switch state {
		case StatePreview:
			resp, err := s.Prompter.Show(ctx, thresholdDialog(current, mask.Overlay(combined)))
			if err != nil {
				return models.Mask{}, err
			}

			event := EventAccept
			next := current
			if resp.HasValues() {
				next = models.ThresholdParams{Threshold: resp.Number("threshold"), Radius: resp.Number("radius")}
				if math.IsNaN(next.Threshold) || math.IsNaN(next.Radius) || next.Radius < 1 {
					s.Logger.Warning("ThresholdSegmenter", "ignoring invalid threshold values", map[string]interface{}{
						"threshold": next.Threshold,
						"radius":    next.Radius,
					})
					next = current
				}
				if resp.Outcome == prompt.Alternate {
					event = EventRequestAdjust
				}
				if resp.Bool("lock") {
					s.Params.Lock(next)
				} else {
					s.Params.Set(next)
				}
			}

			if event == EventAccept && next != current {
				// The accepted values must be the ones the mask was built with.
				if mask, err = Threshold(ctx, combined, next); err != nil {
					return models.Mask{}, err
				}
			}
			current = next

			if state, err = Next(state, event); err != nil {
				return models.Mask{}, err
			}

		case StateAdjust:
			s.Logger.Debug("ThresholdSegmenter", "recomputing preview", map[string]interface{}{
				"threshold": current.Threshold,
				"radius":    current.Radius,
			})
			if mask, err = Threshold(ctx, combined, current); err != nil {
				return models.Mask{}, err
			}
			if state, err = Next(state, EventRecomputed); err != nil {
				return models.Mask{}, err
			}
		}
	}

	return mask, nil
}

// Threshold runs the full threshold pipeline on a clean copy of combined:
// 8-bit conversion, Bernsen local threshold, watershed split.
func Threshold(ctx context.Context, combined models.Plane, p models.ThresholdParams) (models.Mask, error) {
	src, err := conversion.PlaneToMat(combined)
	if err != nil {
		return models.Mask{}, err
	}
	defer src.Close()

	gray, err := filters.ToGray8(src)
	if err != nil {
		return models.Mask{}, fmt.Errorf("8-bit conversion: %w", err)
	}
	defer gray.Close()

	binary, err := threshold.NewBernsen(p.Radius, p.Threshold).Apply(ctx, gray)
	if err != nil {
		return models.Mask{}, fmt.Errorf("local threshold: %w", err)
	}
	defer binary.Close()

	split, err := watershed.Split(ctx, binary)
	if err != nil {
		return models.Mask{}, fmt.Errorf("watershed: %w", err)
	}
	defer split.Close()

	return conversion.MatToMask(split)
}

func thresholdDialog(p models.ThresholdParams, preview image.Image) prompt.Dialog {
	return prompt.Dialog{
		ID:       ThresholdDialogID,
		Title:    "Cell threshold",
		OKLabel:  "Use this threshold value",
		AltLabel: "Preview thresholded cells",
		Preview:  preview,
		Fields: []prompt.Field{
			prompt.Message("Red pixels are detected cells. Adjust and preview until the\nsegmentation looks right, then accept."),
			prompt.Number("threshold", "Contrast threshold", p.Threshold, 0),
			prompt.Number("radius", "Radius (pixels)", p.Radius, 0),
			prompt.Checkbox("lock", "Save threshold for all images", true),
		},
	}
}
