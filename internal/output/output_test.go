package output

import (
	"archive/zip"
	"bytes"
	"encoding/csv"
	"errors"
	"image"
	"math"
	"strings"
	"testing"

	apperrors "github.com/h39s/VessCoopJ/internal/errors"
	"github.com/h39s/VessCoopJ/internal/geometry"
	"github.com/h39s/VessCoopJ/internal/logger"
	"github.com/h39s/VessCoopJ/internal/models"
	"github.com/h39s/VessCoopJ/internal/storage"

	"golang.org/x/image/tiff"
)

func square(x, y, n int) models.CellRegion {
	r := models.CellRegion{
		Index:  1,
		Bounds: image.Rect(x, y, x+n, y+n),
		Boundary: []image.Point{
			{X: x, Y: y}, {X: x + n, Y: y}, {X: x + n, Y: y + n}, {X: x, Y: y + n},
		},
	}
	for yy := y; yy < y+n; yy++ {
		for xx := x; xx < x+n; xx++ {
			r.Pixels = append(r.Pixels, image.Pt(xx, yy))
		}
	}
	return r
}

func TestROIRoundTrip(t *testing.T) {
	pts := []image.Point{{X: 10, Y: 20}, {X: 14, Y: 20}, {X: 14, Y: 27}, {X: 10, Y: 27}}
	data, err := EncodeROI(pts)
	if err != nil {
		t.Fatal(err)
	}
	if string(data[:4]) != "Iout" || data[4] != 0 || data[5] != 227 {
		t.Fatalf("bad header % x", data[:8])
	}
	if len(data) != 64+16 {
		t.Errorf("length = %d", len(data))
	}
	got, err := DecodeROI(data)
	if err != nil {
		t.Fatal(err)
	}
	for i := range pts {
		if got[i] != pts[i] {
			t.Errorf("vertex %d = %v, want %v", i, got[i], pts[i])
		}
	}
}

func shoelace(pts []image.Point) int {
	sum := 0
	for i, p := range pts {
		q := pts[(i+1)%len(pts)]
		sum += p.X*q.Y - q.X*p.Y
	}
	if sum < 0 {
		sum = -sum
	}
	return sum / 2
}

func TestROIEnclosesMeasuredPixels(t *testing.T) {
	tests := []struct {
		name     string
		pixels   []image.Point
		vertices int
	}{
		{"3x3 block", square(4, 7, 3).Pixels, 4},
		{"single pixel", []image.Point{{X: 12, Y: 3}}, 4},
		{"L shape", []image.Point{{X: 2, Y: 2}, {X: 2, Y: 3}, {X: 2, Y: 4}, {X: 3, Y: 4}, {X: 4, Y: 4}}, 6},
		{"diagonal pair", []image.Point{{X: 5, Y: 5}, {X: 6, Y: 6}}, 8},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := models.CellRegion{
				Index:    1,
				Pixels:   tt.pixels,
				Boundary: geometry.Outline(tt.pixels),
				Bounds:   geometry.Bounds(tt.pixels),
			}
			data, err := EncodeROISet([]models.CellRegion{r})
			if err != nil {
				t.Fatal(err)
			}
			zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
			if err != nil {
				t.Fatal(err)
			}
			rc, err := zr.File[0].Open()
			if err != nil {
				t.Fatal(err)
			}
			var roi bytes.Buffer
			if _, err := roi.ReadFrom(rc); err != nil {
				t.Fatal(err)
			}
			rc.Close()

			pts, err := DecodeROI(roi.Bytes())
			if err != nil {
				t.Fatal(err)
			}
			if len(pts) != tt.vertices {
				t.Errorf("polygon %v has %d vertices, want %d", pts, len(pts), tt.vertices)
			}
			if got := shoelace(pts); got != r.Area() {
				t.Errorf("polygon area = %d, region area = %d", got, r.Area())
			}
			b := roi.Bytes()
			top, left := int(b[8])<<8|int(b[9]), int(b[10])<<8|int(b[11])
			bottom, right := int(b[12])<<8|int(b[13]), int(b[14])<<8|int(b[15])
			if got := image.Rect(left, top, right, bottom); got != r.Bounds {
				t.Errorf("header bounds = %v, want %v", got, r.Bounds)
			}
		})
	}
}

func TestEncodeROIRejectsEmpty(t *testing.T) {
	if _, err := EncodeROI(nil); err == nil {
		t.Error("expected error")
	}
}

func TestROISetKeepsOrderAndDedupesNames(t *testing.T) {
	a := square(0, 0, 3)
	b := square(0, 0, 3)
	b.Index = 2
	c := square(10, 4, 2)
	c.Index = 3

	data, err := EncodeROISet([]models.CellRegion{a, b, c})
	if err != nil {
		t.Fatal(err)
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"0001-0001.roi", "0001-0001-1.roi", "0005-0011.roi"}
	if len(zr.File) != len(want) {
		t.Fatalf("got %d entries", len(zr.File))
	}
	for i, f := range zr.File {
		if f.Name != want[i] {
			t.Errorf("entry %d = %s, want %s", i, f.Name, want[i])
		}
	}
}

func TestMaskCompositeChannels(t *testing.T) {
	v := models.NewMask(2, 1)
	c := models.NewMask(2, 1)
	o := models.NewMask(2, 1)
	v.SetForeground(0, 0, true)
	c.SetForeground(0, 0, true)
	c.SetForeground(1, 0, true)
	o.SetForeground(0, 0, true)

	img, err := MaskComposite(v, c, o)
	if err != nil {
		t.Fatal(err)
	}
	if p := img.NRGBAAt(0, 0); p.R != 255 || p.G != 255 || p.B != 255 {
		t.Errorf("pixel 0 = %v", p)
	}
	if p := img.NRGBAAt(1, 0); p.R != 0 || p.G != 255 || p.B != 0 {
		t.Errorf("pixel 1 = %v", p)
	}

	if _, err := MaskComposite(v, models.NewMask(3, 1), o); err == nil {
		t.Error("expected size error")
	}
}

func TestPlaneCompositeScalesEachChannel(t *testing.T) {
	r := models.Plane{Width: 2, Height: 1, Pix: []float32{0, 4000}}
	g := models.Plane{Width: 2, Height: 1, Pix: []float32{10, 5}}
	b := models.Plane{Width: 2, Height: 1, Pix: []float32{7, 7}}
	img, err := PlaneComposite(r, g, b)
	if err != nil {
		t.Fatal(err)
	}
	p0, p1 := img.NRGBAAt(0, 0), img.NRGBAAt(1, 0)
	if p0.R != 0 || p1.R != 255 || p0.G != 255 || p1.G != 0 || p0.B != 0 {
		t.Errorf("pixels %v %v", p0, p1)
	}
}

func TestEncodeTIFFIsLossless(t *testing.T) {
	m := models.NewMask(3, 3)
	m.SetForeground(1, 1, true)
	img, _ := MaskComposite(m, m, models.NewMask(3, 3))
	data, err := EncodeTIFF(img)
	if err != nil {
		t.Fatal(err)
	}
	back, err := tiff.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	r, g, b, _ := back.At(1, 1).RGBA()
	if r>>8 != 255 || g>>8 != 255 || b != 0 {
		t.Errorf("decoded %d %d %d", r>>8, g>>8, b>>8)
	}
}

func TestResultsHeader(t *testing.T) {
	h := ResultsHeader("µm", "GFP", "DAPI")
	want := []string{
		"Maximum Cell Width (µm)",
		"Cell-Vessel Overlap (µm^2)",
		"Total Cell Area (µm^2)",
		"% of Cell Area Overlapping with Vessel",
		"Average Intensity in GFP (per pixel)",
		"Average Intensity in DAPI (per pixel)",
	}
	for i := range want {
		if h[i] != want[i] {
			t.Errorf("column %d = %q, want %q", i, h[i], want[i])
		}
	}
}

func TestEncodeResultsFormatsNaN(t *testing.T) {
	records := []models.MeasurementRecord{
		{MaxWidth: 4.2426, VesselOverlapArea: 9, CellArea: 9, OverlapPercentage: 100, MeanIntensityA: 50, MeanIntensityB: 7},
		{OverlapPercentage: math.NaN(), MeanIntensityA: math.NaN(), MeanIntensityB: math.NaN()},
	}
	data, err := EncodeResults(records, "pixels", "A", "B")
	if err != nil {
		t.Fatal(err)
	}
	rows, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 {
		t.Fatalf("got %d rows", len(rows))
	}
	if rows[1][0] != "4.243" || rows[1][3] != "100.000" {
		t.Errorf("row 1 = %v", rows[1])
	}
	if rows[2][3] != "NaN" {
		t.Errorf("row 2 = %v", rows[2])
	}
}

func TestSummarize(t *testing.T) {
	res := models.ImageResult{
		Name:  "img",
		Scale: models.DefaultScale(),
		Records: []models.MeasurementRecord{
			{CellArea: 2, OverlapPercentage: 50},
			{CellArea: 4, OverlapPercentage: 100},
			{CellArea: 0, OverlapPercentage: math.NaN()},
		},
	}
	row := Summarize(res)
	if row.Cells != 3 || row.MeanCellArea != 2 || row.MeanOverlapPerc != 75 {
		t.Errorf("row = %+v", row)
	}
	if row.StdDevCellArea != 2 {
		t.Errorf("stddev = %v", row.StdDevCellArea)
	}

	empty := Summarize(models.ImageResult{Name: "none"})
	if empty.Cells != 0 || !math.IsNaN(empty.MeanCellArea) {
		t.Errorf("empty row = %+v", empty)
	}
}

func TestWriterEmitsAllArtifacts(t *testing.T) {
	sink := storage.NewMemory()
	w := NewWriter(sink, logger.Nop())

	cells := models.NewMask(5, 5)
	for y := 1; y < 4; y++ {
		for x := 1; x < 4; x++ {
			cells.SetForeground(x, y, true)
		}
	}
	plane := models.NewPlane(5, 5)
	a := Artifacts{
		Name:        "sample",
		Regions:     []models.CellRegion{square(1, 1, 3)},
		Records:     []models.MeasurementRecord{{CellArea: 9}},
		Scale:       models.DefaultScale(),
		VesselMask:  cells,
		CellMask:    cells,
		OverlapMask: cells,
		Vessel:      plane,
		CellA:       plane,
		CellB:       plane,
		NameA:       "A",
		NameB:       "B",
	}
	if err := w.Write(a); err != nil {
		t.Fatal(err)
	}
	want := []string{"sample_copy.tif", "sample_overlap.tif", "sample_results.csv", "sample_rois.zip"}
	got := sink.Names()
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("objects = %v", got)
	}

	if err := w.WriteSummary([]models.ImageResult{{Name: "sample", Records: a.Records, Scale: a.Scale}}); err != nil {
		t.Fatal(err)
	}
	if _, ok := sink.Object(SummaryName); !ok {
		t.Error("summary missing")
	}
}

type failingSink struct{}

func (failingSink) WriteObject(string, []byte) error { return errors.New("disk full") }
func (failingSink) Location(name string) string      { return "/out/" + name }

func TestWriterReportsOutputError(t *testing.T) {
	w := NewWriter(failingSink{}, nil)
	err := w.WriteRaw("x.tif", []byte{1})
	if !apperrors.IsKind(err, apperrors.KindOutput) {
		t.Fatalf("got %v", err)
	}
	if !strings.Contains(err.Error(), "/out/x.tif") {
		t.Errorf("error does not name the file: %v", err)
	}
}
