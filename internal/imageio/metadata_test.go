package imageio

import (
	"bytes"
	"encoding/binary"
	"image"
	"math"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/image/tiff"
)

type ifdEntry struct {
	tag, typ uint16
	count    uint32
	data     []byte
}

// buildTIFF writes a header and one IFD; values longer than four bytes
// follow the IFD.
func buildTIFF(bo binary.ByteOrder, entries []ifdEntry) []byte {
	var buf bytes.Buffer
	if bo == binary.BigEndian {
		buf.WriteString("MM")
	} else {
		buf.WriteString("II")
	}
	binary.Write(&buf, bo, uint16(42))
	binary.Write(&buf, bo, uint32(8))

	extra := 8 + 2 + 12*len(entries) + 4
	var tail bytes.Buffer
	binary.Write(&buf, bo, uint16(len(entries)))
	for _, e := range entries {
		binary.Write(&buf, bo, e.tag)
		binary.Write(&buf, bo, e.typ)
		binary.Write(&buf, bo, e.count)
		if len(e.data) <= 4 {
			var inline [4]byte
			copy(inline[:], e.data)
			buf.Write(inline[:])
			continue
		}
		binary.Write(&buf, bo, uint32(extra+tail.Len()))
		tail.Write(e.data)
	}
	binary.Write(&buf, bo, uint32(0))
	buf.Write(tail.Bytes())
	return buf.Bytes()
}

func rational(bo binary.ByteOrder, num, den uint32) []byte {
	b := make([]byte, 8)
	bo.PutUint32(b, num)
	bo.PutUint32(b[4:], den)
	return b
}

func short(bo binary.ByteOrder, v uint16) []byte {
	b := make([]byte, 2)
	bo.PutUint16(b, v)
	return b
}

func ascii(s string) ifdEntry {
	return ifdEntry{tagImageDescription, typeASCII, uint32(len(s) + 1), append([]byte(s), 0)}
}

func TestReadTIFFTagsImageJ(t *testing.T) {
	for _, bo := range []binary.ByteOrder{binary.LittleEndian, binary.BigEndian} {
		desc := "ImageJ=1.54f\nimages=6\nchannels=3\nslices=2\nhyperstack=true\nunit=\\u00B5m\nspacing=2.0\n"
		data := buildTIFF(bo, []ifdEntry{
			ascii(desc),
			{tagXResolution, typeRational, 1, rational(bo, 5, 1)},
			{tagYResolution, typeRational, 1, rational(bo, 4, 1)},
			{tagResolutionUnit, typeShort, 1, short(bo, 1)},
		})

		tags, err := readTIFFTags(bytes.NewReader(data))
		if err != nil {
			t.Fatalf("%v: %v", bo, err)
		}
		if tags.Description != desc || tags.ResolutionUnit != 1 {
			t.Errorf("%v: tags = %+v", bo, tags)
		}

		scale, ok := tags.Calibration()
		if !ok || !scale.Scaled || scale.Unit != "µm" {
			t.Fatalf("%v: calibration = %+v, %v", bo, scale, ok)
		}
		if math.Abs(scale.PixelWidth-0.2) > 1e-12 || math.Abs(scale.PixelHeight-0.25) > 1e-12 {
			t.Errorf("%v: pixel size %v x %v", bo, scale.PixelWidth, scale.PixelHeight)
		}

		layout, ok := tags.Layout(6)
		if !ok || layout.Channels != 3 || layout.Frames != 1 {
			t.Errorf("%v: layout = %+v, %v", bo, layout, ok)
		}
		if _, ok := tags.Layout(5); ok {
			t.Errorf("%v: layout must not apply to a different page count", bo)
		}
	}
}

func TestCalibrationFromResolutionUnit(t *testing.T) {
	bo := binary.LittleEndian
	tests := []struct {
		name   string
		unit   uint16
		desc   string
		want   float64
		scaled bool
	}{
		{"centimetre", resUnitCentimeter, "", 5, true},
		{"inch is a screen dpi", resUnitInch, "", 0, false},
		{"ImageJ without unit", resUnitCentimeter, "ImageJ=1.54f\nunit=pixel\n", 0, false},
	}
	for _, tt := range tests {
		entries := []ifdEntry{
			{tagXResolution, typeRational, 1, rational(bo, 2000, 1)},
			{tagResolutionUnit, typeShort, 1, short(bo, tt.unit)},
		}
		if tt.desc != "" {
			entries = append([]ifdEntry{ascii(tt.desc)}, entries...)
		}
		tags, err := readTIFFTags(bytes.NewReader(buildTIFF(bo, entries)))
		if err != nil {
			t.Fatalf("%s: %v", tt.name, err)
		}
		scale, ok := tags.Calibration()
		if ok != tt.scaled {
			t.Errorf("%s: scaled = %v, want %v", tt.name, ok, tt.scaled)
			continue
		}
		if ok && (math.Abs(scale.PixelWidth-tt.want) > 1e-9 || scale.PixelWidth != scale.PixelHeight || scale.Unit != "micron") {
			t.Errorf("%s: calibration = %+v", tt.name, scale)
		}
	}
}

func TestReadTIFFTagsRejectsOtherFormats(t *testing.T) {
	for _, data := range [][]byte{
		[]byte("\x89PNG\r\n\x1a\n"),
		{'I', 'I', 43, 0, 8, 0, 0, 0},
		{'I', 'I', 42, 0, 8, 0, 0, 0, 3, 0},
	} {
		if _, err := readTIFFTags(bytes.NewReader(data)); err == nil {
			t.Errorf("% x: expected error", data)
		}
	}
}

func TestParseImageJDescription(t *testing.T) {
	if parseImageJDescription("Created with some other tool") != nil {
		t.Error("non-ImageJ description must be ignored")
	}
	meta := parseImageJDescription("ImageJ=1.53t\nimages=15\nmode=composite\nmin=0.0\n")
	if meta["images"] != "15" || meta["mode"] != "composite" || meta["ImageJ"] != "1.53t" {
		t.Errorf("meta = %v", meta)
	}
}

func TestTIFFDecoderIgnoresScreenResolution(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dpi.tif")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := tiff.Encode(f, image.NewGray(image.Rect(0, 0, 2, 2)), nil); err != nil {
		t.Fatal(err)
	}
	f.Close()

	vol, err := NewTIFFDecoder(HyperstackLayout{}, nil).Decode(path)
	if err != nil {
		t.Fatal(err)
	}
	if vol.Scale.Scaled || vol.Scale.Unit != "pixels" {
		t.Errorf("scale = %+v", vol.Scale)
	}
}
