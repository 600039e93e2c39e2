package imageio

import (
	"fmt"

	"github.com/h39s/VessCoopJ/internal/models"
	"github.com/h39s/VessCoopJ/internal/opencv/conversion"
	"github.com/h39s/VessCoopJ/internal/opencv/safe"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// HyperstackLayout describes how the pages of a multi-page TIFF map onto
// channels, slices and frames. Pages are stored channel-fastest (XYCZT).
type HyperstackLayout struct {
	Channels int
	Frames   int
}

// TIFFDecoder reads multi-page TIFF hyperstacks through OpenCV. Only the
// first frame is used. Pages with several colour channels are read as one
// slice per page with one channel per colour plane. An ImageJ hyperstack
// description takes precedence over Layout, and calibration embedded in the
// file is used unless Scale is set.
type TIFFDecoder struct {
	Layout HyperstackLayout
	// Scale, when set, is attached to every decoded volume.
	Scale *models.ScaleCalibration
}

func NewTIFFDecoder(layout HyperstackLayout, scale *models.ScaleCalibration) *TIFFDecoder {
	if layout.Channels < 1 {
		layout.Channels = 1
	}
	if layout.Frames < 1 {
		layout.Frames = 1
	}
	return &TIFFDecoder{Layout: layout, Scale: scale}
}

func (d *TIFFDecoder) Decode(path string) (*models.Volume, error) {
	pages := gocv.IMReadMulti(path, gocv.IMReadUnchanged)
	defer func() {
		for i := range pages {
			pages[i].Close()
		}
	}()
	if len(pages) == 0 {
		return nil, errors.Errorf("no readable pages in %s", path)
	}

	width, height := pages[0].Cols(), pages[0].Rows()
	depth := bitDepth(pages[0].Type())

	// Tags are optional: the decoder also serves other formats OpenCV reads.
	tags, tagErr := readTIFFTagsFile(path)

	var planes [][]float32
	channels := d.Layout.Channels
	frames := d.Layout.Frames
	if layout, ok := tags.Layout(len(pages)); ok && tagErr == nil {
		channels, frames = layout.Channels, layout.Frames
	}

	if pages[0].Channels() > 1 {
		channels = pages[0].Channels()
		frames = 1
		for i, page := range pages {
			split := gocv.Split(page)
			for c := range split {
				p, err := matPlane(split[c])
				split[c].Close()
				if err != nil {
					return nil, errors.Wrapf(err, "page %d channel %d", i+1, c+1)
				}
				planes = append(planes, p)
			}
		}
	} else {
		for i, page := range pages {
			if page.Cols() != width || page.Rows() != height {
				return nil, errors.Errorf("page %d is %dx%d, first page is %dx%d", i+1, page.Cols(), page.Rows(), width, height)
			}
			p, err := matPlane(page)
			if err != nil {
				return nil, errors.Wrapf(err, "page %d", i+1)
			}
			planes = append(planes, p)
		}
	}

	vol, err := Assemble(planes, width, height, channels, frames)
	if err != nil {
		return nil, errors.Wrap(err, path)
	}
	vol.Path = path
	vol.BitDepth = depth
	vol.Scale = models.DefaultScale()
	if embedded, ok := tags.Calibration(); ok && tagErr == nil {
		vol.Scale = embedded
	}
	if d.Scale != nil {
		vol.Scale = *d.Scale
	}
	return vol, nil
}

// Assemble arranges channel-fastest pages into a volume, keeping only the
// first frame.
func Assemble(pages [][]float32, width, height, channels, frames int) (*models.Volume, error) {
	if channels < 1 || frames < 1 {
		return nil, fmt.Errorf("invalid layout: %d channels, %d frames", channels, frames)
	}
	perFrame := len(pages) / frames
	if len(pages)%frames != 0 || perFrame%channels != 0 || perFrame == 0 {
		return nil, fmt.Errorf("%d pages cannot be split into %d channels x %d frames", len(pages), channels, frames)
	}
	slices := perFrame / channels

	vol := &models.Volume{Width: width, Height: height, Planes: make([][][]float32, channels)}
	for c := 0; c < channels; c++ {
		vol.Planes[c] = make([][]float32, slices)
		for z := 0; z < slices; z++ {
			vol.Planes[c][z] = pages[z*channels+c]
		}
	}
	return vol, nil
}

func matPlane(m gocv.Mat) ([]float32, error) {
	sm, err := safe.NewMatFromMat(m, "page")
	if err != nil {
		return nil, err
	}
	defer sm.Close()
	p, err := conversion.MatToPlane(sm)
	if err != nil {
		return nil, err
	}
	return p.Pix, nil
}

func bitDepth(t gocv.MatType) int {
	switch t {
	case gocv.MatTypeCV8UC1, gocv.MatTypeCV8UC3, gocv.MatTypeCV8UC4:
		return 8
	case gocv.MatTypeCV16UC1, gocv.MatTypeCV16UC3, gocv.MatTypeCV16UC4:
		return 16
	default:
		return 32
	}
}
