package segmentation

import (
	"bytes"
	"context"
	"errors"
	"image"
	"math"
	"sort"
	"strings"
	"testing"

	"github.com/h39s/VessCoopJ/internal/classifier"
	apperrors "github.com/h39s/VessCoopJ/internal/errors"
	"github.com/h39s/VessCoopJ/internal/logger"
	"github.com/h39s/VessCoopJ/internal/models"
	"github.com/h39s/VessCoopJ/internal/prompt"
	"github.com/h39s/VessCoopJ/internal/runparams"
)

// twoDiscs draws two separate bright discs on a dim background.
func twoDiscs() models.Plane {
	p := models.NewPlane(40, 40)
	for y := 0; y < 40; y++ {
		for x := 0; x < 40; x++ {
			v := float32(10)
			for _, c := range []image.Point{{12, 12}, {28, 28}} {
				dx, dy := x-c.X, y-c.Y
				if dx*dx+dy*dy <= 25 {
					v = 200
				}
			}
			p.Set(x, y, v)
		}
	}
	return p
}

func areas(regions []models.CellRegion) []int {
	out := make([]int, len(regions))
	for i, r := range regions {
		out[i] = r.Area()
	}
	sort.Ints(out)
	return out
}

func TestThresholdIsDeterministic(t *testing.T) {
	ctx := context.Background()
	img := twoDiscs()
	params := models.ThresholdParams{Threshold: 15, Radius: 15}

	first, err := Threshold(ctx, img, params)
	if err != nil {
		t.Fatal(err)
	}
	second, err := Threshold(ctx, img, params)
	if err != nil {
		t.Fatal(err)
	}

	r1, _, err := AnalyzeParticles(ctx, first, ParticleOptions{})
	if err != nil {
		t.Fatal(err)
	}
	r2, _, err := AnalyzeParticles(ctx, second, ParticleOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(r1) != len(r2) {
		t.Fatalf("region counts differ: %d vs %d", len(r1), len(r2))
	}
	a1, a2 := areas(r1), areas(r2)
	for i := range a1 {
		if a1[i] != a2[i] {
			t.Fatalf("area multisets differ: %v vs %v", a1, a2)
		}
	}
	if len(r1) < 2 {
		t.Errorf("expected at least the two discs, got %d regions", len(r1))
	}
	if first.Foreground(0, 0) || !first.Foreground(12, 12) {
		t.Error("background/foreground misclassified")
	}
}

func TestLockedThresholdNeverPrompts(t *testing.T) {
	param := runparams.NewParameter(models.ThresholdParams{Threshold: 15, Radius: 15})
	param.Lock(param.Value())
	script := prompt.NewScript()

	s := NewThresholdSegmenter(param, script, nil)
	for i := 0; i < 3; i++ {
		if _, err := s.Segment(context.Background(), twoDiscs()); err != nil {
			t.Fatal(err)
		}
	}
	if n := script.Count(ThresholdDialogID); n != 0 {
		t.Errorf("prompted %d times", n)
	}
}

func TestPreviewLoopAdjustsThenLocks(t *testing.T) {
	param := runparams.NewParameter(models.ThresholdParams{Threshold: 15, Radius: 15})
	script := prompt.NewScript().Queue(ThresholdDialogID,
		prompt.Answer{Outcome: prompt.Alternate, Values: map[string]interface{}{"threshold": 20.0, "radius": 10.0, "lock": false}},
		prompt.Answer{Outcome: prompt.Confirmed},
	)
	s := NewThresholdSegmenter(param, script, nil)

	if _, err := s.Segment(context.Background(), twoDiscs()); err != nil {
		t.Fatal(err)
	}
	if n := script.Count(ThresholdDialogID); n != 2 {
		t.Fatalf("dialog shown %d times, want 2", n)
	}
	if !param.Locked() {
		t.Fatal("accepting with the lock box checked must lock")
	}
	if got := param.Value(); got.Threshold != 20 || got.Radius != 10 {
		t.Errorf("locked values %+v", got)
	}

	if _, err := s.Segment(context.Background(), twoDiscs()); err != nil {
		t.Fatal(err)
	}
	if n := script.Count(ThresholdDialogID); n != 2 {
		t.Errorf("second image prompted again (%d)", n)
	}
}

func TestPreviewLoopDeclineAcceptsWithoutLocking(t *testing.T) {
	param := runparams.NewParameter(models.ThresholdParams{Threshold: 15, Radius: 15})
	script := prompt.NewScript().Queue(ThresholdDialogID, prompt.Answer{Outcome: prompt.Declined})

	if _, err := NewThresholdSegmenter(param, script, nil).Segment(context.Background(), twoDiscs()); err != nil {
		t.Fatal(err)
	}
	if param.Locked() {
		t.Error("declining must not lock")
	}
	if script.Count(ThresholdDialogID) != 1 {
		t.Error("expected exactly one dialog")
	}
}

func squareMask(w, h int, rects ...image.Rectangle) models.Mask {
	m := models.NewMask(w, h)
	for _, r := range rects {
		for y := r.Min.Y; y < r.Max.Y; y++ {
			for x := r.Min.X; x < r.Max.X; x++ {
				m.SetForeground(x, y, true)
			}
		}
	}
	return m
}

func TestAnalyzeParticlesFiltersAndOrders(t *testing.T) {
	mask := squareMask(12, 12,
		image.Rect(6, 1, 9, 4),     // 9 px, first in raster order
		image.Rect(1, 6, 5, 10),    // 16 px
		image.Rect(10, 10, 11, 11), // 1 px speck
	)

	regions, kept, err := AnalyzeParticles(context.Background(), mask, ParticleOptions{MinSize: 5})
	if err != nil {
		t.Fatal(err)
	}
	if len(regions) != 2 {
		t.Fatalf("got %d regions, want 2", len(regions))
	}
	if regions[0].Area() != 9 || regions[1].Area() != 16 {
		t.Errorf("areas %d, %d", regions[0].Area(), regions[1].Area())
	}
	if regions[0].Index != 1 || regions[1].Index != 2 {
		t.Error("regions must be numbered from 1 in detection order")
	}
	if math.Abs(regions[0].Feret-math.Sqrt(18)) > 1e-9 {
		t.Errorf("Feret = %v", regions[0].Feret)
	}
	if kept.Foreground(10, 10) {
		t.Error("speck must be removed from the kept mask")
	}
	if kept.Count() != 25 {
		t.Errorf("kept mask has %d pixels", kept.Count())
	}
	wantBoundary := []image.Point{{6, 1}, {9, 1}, {9, 4}, {6, 4}}
	if len(regions[0].Boundary) != len(wantBoundary) {
		t.Fatalf("boundary = %v, want %v", regions[0].Boundary, wantBoundary)
	}
	for i, p := range wantBoundary {
		if regions[0].Boundary[i] != p {
			t.Errorf("boundary = %v, want %v", regions[0].Boundary, wantBoundary)
			break
		}
	}
}

func TestAnalyzeParticlesExcludesEdges(t *testing.T) {
	mask := squareMask(10, 10, image.Rect(0, 0, 3, 3), image.Rect(5, 5, 8, 8))

	all, _, _ := AnalyzeParticles(context.Background(), mask, ParticleOptions{})
	inner, _, _ := AnalyzeParticles(context.Background(), mask, ParticleOptions{ExcludeEdges: true})
	if len(all) != 2 || len(inner) != 1 {
		t.Fatalf("all=%d inner=%d", len(all), len(inner))
	}
	if inner[0].Bounds != image.Rect(5, 5, 8, 8) {
		t.Errorf("kept wrong region %v", inner[0].Bounds)
	}
}

func TestAnalyzeParticlesEmptyMask(t *testing.T) {
	regions, kept, err := AnalyzeParticles(context.Background(), models.NewMask(4, 4), ParticleOptions{})
	if err != nil || len(regions) != 0 || kept.Count() != 0 {
		t.Errorf("regions=%v kept=%d err=%v", regions, kept.Count(), err)
	}
}

func halfBright() models.Plane {
	p := models.NewPlane(20, 10)
	for y := 0; y < 10; y++ {
		for x := 10; x < 20; x++ {
			p.Set(x, y, 1000)
		}
	}
	return p
}

func TestVesselSegmenterBinarizesLabels(t *testing.T) {
	var seen models.Plane
	c := classifier.Func(func(_ context.Context, img models.Plane) (classifier.LabelMap, error) {
		seen = img
		l := classifier.LabelMap{Width: img.Width, Height: img.Height, Labels: make([]int32, len(img.Pix))}
		for i, v := range img.Pix {
			if v > 127 {
				l.Labels[i] = 1
			}
		}
		return l, nil
	})

	v := NewVesselSegmenter(c, nil)
	if got := v.Steps(); len(got) != 3 || got[1] != "clahe_filter" {
		t.Errorf("steps = %v", got)
	}

	mask, err := v.Segment(context.Background(), halfBright())
	if err != nil {
		t.Fatal(err)
	}
	if _, hi := seen.Range(); hi > 255 {
		t.Errorf("classifier input not 8-bit scaled, max %v", hi)
	}
	if mask.Foreground(2, 5) || !mask.Foreground(15, 5) {
		t.Error("vessel mask does not follow classifier labels")
	}
}

func TestVesselSegmenterWarnsOnceAboutExtraClasses(t *testing.T) {
	c := classifier.Func(func(_ context.Context, img models.Plane) (classifier.LabelMap, error) {
		l := classifier.LabelMap{Width: img.Width, Height: img.Height, Labels: make([]int32, len(img.Pix))}
		for i := range l.Labels {
			l.Labels[i] = int32(i % 3)
		}
		return l, nil
	})
	var buf bytes.Buffer
	log, err := logger.New(&buf, logger.FormatJSON, "info")
	if err != nil {
		t.Fatal(err)
	}

	v := NewVesselSegmenter(c, log)
	for i := 0; i < 2; i++ {
		mask, err := v.Segment(context.Background(), halfBright())
		if err != nil {
			t.Fatal(err)
		}
		if mask.Foreground(0, 0) || !mask.Foreground(1, 0) || !mask.Foreground(2, 0) {
			t.Error("labels 1 and 2 must both count as vessel")
		}
	}
	if n := strings.Count(buf.String(), "more than two classes"); n != 1 {
		t.Errorf("warning logged %d times:\n%s", n, buf.String())
	}
	if !strings.Contains(buf.String(), "[0 1 2]") {
		t.Errorf("warning does not list the classes:\n%s", buf.String())
	}
}

func TestVesselSegmenterPropagatesClassifierErrors(t *testing.T) {
	c := classifier.Func(func(context.Context, models.Plane) (classifier.LabelMap, error) {
		return classifier.LabelMap{Width: 1, Height: 1, Labels: []int32{0}}, nil
	})
	_, err := NewVesselSegmenter(c, nil).Segment(context.Background(), halfBright())
	if !errors.Is(err, apperrors.ErrClassifierApply) {
		t.Fatalf("got %v", err)
	}
}

func TestClassifierSegmenter(t *testing.T) {
	c := classifier.Func(func(_ context.Context, img models.Plane) (classifier.LabelMap, error) {
		l := classifier.LabelMap{Width: img.Width, Height: img.Height, Labels: make([]int32, len(img.Pix))}
		l.Labels[0] = 2
		return l, nil
	})
	mask, err := NewClassifierSegmenter(c).Segment(context.Background(), models.NewPlane(3, 3))
	if err != nil {
		t.Fatal(err)
	}
	if mask.Count() != 1 || !mask.Foreground(0, 0) {
		t.Errorf("mask = %v", mask.Pix)
	}
}
