package pipeline

import (
	"context"
	"fmt"
	"image"
	"math"
	"strings"

	apperrors "github.com/h39s/VessCoopJ/internal/errors"
	"github.com/h39s/VessCoopJ/internal/models"
	"github.com/h39s/VessCoopJ/internal/prompt"
	"github.com/h39s/VessCoopJ/internal/runparams"
)

// Dialog IDs. Scripted prompters key their answers on these.
const (
	DialogTrainVessel    = "train-vessel-classifier"
	DialogTrainCell      = "train-cell-classifier"
	DialogTrainingFolder = "training-folder"
	DialogTrainingSteps  = "classifier-training"
	DialogVesselModel    = "vessel-model"
	DialogCellModel      = "cell-model"
	DialogClassifyCells  = "classify-cells"
	DialogScale          = "scale"
	DialogVesselChannel  = "vessel-channel"
	DialogCellChannel1   = "cell-channel-1"
	DialogCellChannel2   = "cell-channel-2"
	DialogMinCellSize    = "min-cell-size"
)

func yesNoDialog(id, title, message, ok, cancel string) prompt.Dialog {
	return prompt.Dialog{
		ID:          id,
		Title:       title,
		Fields:      []prompt.Field{prompt.Message(message)},
		OKLabel:     ok,
		CancelLabel: cancel,
	}
}

func pathDialog(id, title, label, def string) prompt.Dialog {
	return prompt.Dialog{
		ID:          id,
		Title:       title,
		Fields:      []prompt.Field{prompt.Text("path", label, def)},
		OKLabel:     "Open",
		CancelLabel: "Cancel",
	}
}

func trainingStepsDialog(kind, stackLocation string) prompt.Dialog {
	return prompt.Dialog{
		ID:    DialogTrainingSteps,
		Title: "Classifier training",
		Fields: []prompt.Field{
			prompt.Message("A training stack was written to " + stackLocation + "."),
			prompt.Message("To train a classifier:"),
			prompt.Message("1. Open the stack in your training tool and mark samples of " + kind + " pixels as class 1."),
			prompt.Message("2. Mark samples of the background as class 2."),
			prompt.Message("3. Train the classifier and export it as a model file."),
			prompt.Message("Press OK once the model is saved."),
		},
		OKLabel: "OK",
	}
}

// scaleResolver asks for a reference length traced on the image. "No
// scale" keeps the current calibration but still honours the lock box.
func scaleResolver(p prompt.Prompter, preview func() image.Image) runparams.ResolveFunc[models.ScaleCalibration] {
	return func(ctx context.Context, cur models.ScaleCalibration) (models.ScaleCalibration, bool, error) {
		resp, err := p.Show(ctx, prompt.Dialog{
			ID:    DialogScale,
			Title: "Set Scale?",
			Fields: []prompt.Field{
				prompt.Message("Trace the scale bar on the image and enter its length."),
				prompt.Number("distance", "Known distance", 1.0, 2),
				prompt.Number("traced", "Traced length (pixels)", 0, 2),
				prompt.Text("unit", "Unit of length", cur.Unit),
				prompt.Checkbox("lock", "Save scale for all images", true),
			},
			OKLabel:     "Set scale",
			AltLabel:    "No scale",
			CancelLabel: "Cancel",
			Preview:     preview(),
		})
		if err != nil {
			return cur, false, err
		}
		if !resp.HasValues() {
			return cur, false, nil
		}

		next := cur
		if resp.Outcome == prompt.Confirmed {
			distance, traced := resp.Number("distance"), resp.Number("traced")
			if distance > 0 && traced > 0 {
				pw := distance / traced
				next = models.ScaleCalibration{PixelWidth: pw, PixelHeight: pw, Unit: cur.Unit, Scaled: true}
				if unit := strings.TrimSpace(resp.String("unit")); unit != "" {
					next.Unit = unit
				}
			}
		}
		return next, resp.Bool("lock"), nil
	}
}

func vesselResolver(p prompt.Prompter, vol *models.Volume, preview func() image.Image) runparams.ResolveFunc[models.VesselSelection] {
	return func(ctx context.Context, cur models.VesselSelection) (models.VesselSelection, bool, error) {
		resp, err := p.Show(ctx, prompt.Dialog{
			ID:    DialogVesselChannel,
			Title: "Blood Vessel Channel Selection",
			Fields: []prompt.Field{
				prompt.Message(fmt.Sprintf("The image has %d channels and %d slices.", vol.Channels(), vol.Slices())),
				prompt.Message("1. Select the blood vessel channel, and"),
				prompt.Message("2. the first slice where the vessels are clearly visible against a dark background."),
				prompt.Number("channel", "Blood vessel channel", float64(cur.Channel), 0),
				prompt.Number("min_slice", "First slice", float64(cur.MinSlice), 0),
				prompt.Checkbox("lock", "Save blood vessel slice selection for all images", true),
			},
			OKLabel: "OK",
			Preview: preview(),
		})
		if err != nil {
			return cur, false, err
		}
		if !resp.HasValues() {
			return cur, false, nil
		}
		next := models.VesselSelection{Channel: resp.Int("channel"), MinSlice: resp.Int("min_slice")}
		if next.Channel < 1 || next.Channel > vol.Channels() {
			return cur, false, apperrors.NewInvalidSelectionError("vessel", next.Channel, vol.Channels())
		}
		if next.MinSlice < 1 || next.MinSlice > vol.Slices() {
			return cur, false, apperrors.NewInvalidSliceRangeError(next.MinSlice, vol.Slices())
		}
		return next, resp.Bool("lock"), nil
	}
}

func cellChannelResolver(p prompt.Prompter, which int, vol *models.Volume, preview func() image.Image) runparams.ResolveFunc[models.ChannelSelection] {
	id := DialogCellChannel1
	if which == 2 {
		id = DialogCellChannel2
	}
	return func(ctx context.Context, cur models.ChannelSelection) (models.ChannelSelection, bool, error) {
		resp, err := p.Show(ctx, prompt.Dialog{
			ID:    id,
			Title: fmt.Sprintf("Cell Channel %d Selection", which),
			Fields: []prompt.Field{
				prompt.Message(fmt.Sprintf("Select channel %d for cells. The image has %d channels.", which, vol.Channels())),
				prompt.Number("channel", fmt.Sprintf("Cell channel %d", which), float64(cur.Channel), 0),
				prompt.Checkbox("lock", fmt.Sprintf("Save cell channel %d selection for all images", which), true),
				prompt.Message("You can name this cell channel for saving results."),
				prompt.Text("name", fmt.Sprintf("Cell Channel %d Name", which), cur.Name),
			},
			OKLabel: "OK",
			Preview: preview(),
		})
		if err != nil {
			return cur, false, err
		}
		if !resp.HasValues() {
			return cur, false, nil
		}
		next := models.ChannelSelection{Channel: resp.Int("channel"), Name: strings.TrimSpace(resp.String("name"))}
		if next.Channel < 1 || next.Channel > vol.Channels() {
			return cur, false, apperrors.NewInvalidSelectionError(fmt.Sprintf("cell %d", which), next.Channel, vol.Channels())
		}
		if next.Name == "" {
			next.Name = cur.Name
		}
		return next, resp.Bool("lock"), nil
	}
}

func minSizeResolver(p prompt.Prompter, preview func() image.Image) runparams.ResolveFunc[float64] {
	return func(ctx context.Context, cur float64) (float64, bool, error) {
		resp, err := p.Show(ctx, prompt.Dialog{
			ID:    DialogMinCellSize,
			Title: "Cell Size",
			Fields: []prompt.Field{
				prompt.Number("min_size", "Minimum cell size (pixels)", cur, 0),
				prompt.Checkbox("lock", "Save minimum cell size for all images", true),
			},
			OKLabel: "OK",
			Preview: preview(),
		})
		if err != nil {
			return cur, false, err
		}
		if !resp.HasValues() {
			return cur, false, nil
		}
		next := resp.Number("min_size")
		if math.IsNaN(next) || next < 0 {
			next = cur
		}
		return next, resp.Bool("lock"), nil
	}
}
