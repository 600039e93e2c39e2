package imageio

import (
	"encoding/binary"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/h39s/VessCoopJ/internal/models"

	"github.com/pkg/errors"
)

const (
	tagImageDescription = 270
	tagXResolution      = 282
	tagYResolution      = 283
	tagResolutionUnit   = 296

	typeASCII    = 2
	typeShort    = 3
	typeRational = 5

	resUnitInch       = 2
	resUnitCentimeter = 3

	maxDescription = 1 << 20
)

// tiffTags are the first-IFD tags that carry calibration and hyperstack
// layout. OpenCV drops them when decoding.
type tiffTags struct {
	Description    string
	XResolution    float64
	YResolution    float64
	ResolutionUnit uint16
}

func readTIFFTagsFile(path string) (tiffTags, error) {
	f, err := os.Open(path)
	if err != nil {
		return tiffTags{}, err
	}
	defer f.Close()
	return readTIFFTags(f)
}

// readTIFFTags reads the first IFD of a classic (non-Big) TIFF.
func readTIFFTags(r io.ReaderAt) (tiffTags, error) {
	var hdr [8]byte
	if err := readAt(r, hdr[:], 0); err != nil {
		return tiffTags{}, errors.Wrap(err, "reading TIFF header")
	}
	var bo binary.ByteOrder
	switch string(hdr[:2]) {
	case "II":
		bo = binary.LittleEndian
	case "MM":
		bo = binary.BigEndian
	default:
		return tiffTags{}, errors.New("not a TIFF file")
	}
	if bo.Uint16(hdr[2:]) != 42 {
		return tiffTags{}, errors.New("not a classic TIFF file")
	}

	ifd := int64(bo.Uint32(hdr[4:]))
	var count [2]byte
	if err := readAt(r, count[:], ifd); err != nil {
		return tiffTags{}, errors.Wrap(err, "reading IFD")
	}
	entries := make([]byte, 12*int(bo.Uint16(count[:])))
	if err := readAt(r, entries, ifd+2); err != nil {
		return tiffTags{}, errors.Wrap(err, "reading IFD entries")
	}

	tags := tiffTags{ResolutionUnit: resUnitInch}
	for e := entries; len(e) >= 12; e = e[12:] {
		tag, typ, n := bo.Uint16(e[0:]), bo.Uint16(e[2:]), bo.Uint32(e[4:])
		switch {
		case tag == tagImageDescription && typ == typeASCII:
			if n > maxDescription {
				continue
			}
			raw, err := tagValue(r, bo, e, n)
			if err != nil {
				return tiffTags{}, errors.Wrap(err, "reading ImageDescription")
			}
			tags.Description = strings.TrimRight(string(raw), "\x00")
		case (tag == tagXResolution || tag == tagYResolution) && typ == typeRational && n == 1:
			raw, err := tagValue(r, bo, e, 8)
			if err != nil {
				return tiffTags{}, errors.Wrap(err, "reading resolution")
			}
			num, den := bo.Uint32(raw), bo.Uint32(raw[4:])
			if den == 0 {
				continue
			}
			if tag == tagXResolution {
				tags.XResolution = float64(num) / float64(den)
			} else {
				tags.YResolution = float64(num) / float64(den)
			}
		case tag == tagResolutionUnit && typ == typeShort:
			tags.ResolutionUnit = bo.Uint16(e[8:])
		}
	}
	return tags, nil
}

// tagValue returns size bytes of an entry's value, which is stored inline
// when it fits in four bytes and at an offset otherwise.
func tagValue(r io.ReaderAt, bo binary.ByteOrder, entry []byte, size uint32) ([]byte, error) {
	if size <= 4 {
		return entry[8 : 8+size], nil
	}
	buf := make([]byte, size)
	if err := readAt(r, buf, int64(bo.Uint32(entry[8:]))); err != nil {
		return nil, err
	}
	return buf, nil
}

func readAt(r io.ReaderAt, buf []byte, off int64) error {
	n, err := r.ReadAt(buf, off)
	if n == len(buf) {
		return nil
	}
	if err == nil || err == io.EOF {
		err = io.ErrUnexpectedEOF
	}
	return err
}

// parseImageJDescription splits the key=value lines ImageJ writes into the
// ImageDescription tag. It returns nil for descriptions from other writers.
func parseImageJDescription(desc string) map[string]string {
	if !strings.HasPrefix(desc, "ImageJ=") {
		return nil
	}
	out := make(map[string]string)
	for _, line := range strings.Split(desc, "\n") {
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		out[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	return out
}

// Calibration returns the pixel size recorded in the file. ImageJ stores
// pixels per unit in the resolution tags and names the unit in its
// description; without that, only centimetre-based resolution is trusted,
// since inch-based values are usually a screen DPI.
func (t tiffTags) Calibration() (models.ScaleCalibration, bool) {
	if t.XResolution <= 0 {
		return models.ScaleCalibration{}, false
	}
	pw := 1 / t.XResolution
	ph := pw
	if t.YResolution > 0 {
		ph = 1 / t.YResolution
	}

	if meta := parseImageJDescription(t.Description); meta != nil {
		unit := strings.ReplaceAll(meta["unit"], `\u00B5`, "µ")
		switch unit {
		case "", "pixel", "pixels":
			return models.ScaleCalibration{}, false
		}
		return models.ScaleCalibration{PixelWidth: pw, PixelHeight: ph, Unit: unit, Scaled: true}, true
	}

	if t.ResolutionUnit == resUnitCentimeter {
		return models.ScaleCalibration{PixelWidth: pw * 1e4, PixelHeight: ph * 1e4, Unit: "micron", Scaled: true}, true
	}
	return models.ScaleCalibration{}, false
}

// Layout returns the hyperstack shape ImageJ recorded, if the description
// accounts for exactly the given number of pages.
func (t tiffTags) Layout(pages int) (HyperstackLayout, bool) {
	meta := parseImageJDescription(t.Description)
	if meta == nil {
		return HyperstackLayout{}, false
	}
	field := func(key string) int {
		v, err := strconv.Atoi(meta[key])
		if err != nil || v < 1 {
			return 1
		}
		return v
	}
	if field("images") != pages {
		return HyperstackLayout{}, false
	}
	layout := HyperstackLayout{Channels: field("channels"), Frames: field("frames")}
	if pages%(layout.Channels*layout.Frames) != 0 {
		return HyperstackLayout{}, false
	}
	return layout, true
}
