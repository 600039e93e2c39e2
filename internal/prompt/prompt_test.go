package prompt

import (
	"bytes"
	"context"
	"image"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func thresholdDialog() Dialog {
	return Dialog{
		ID:       "threshold",
		Title:    "Threshold",
		OKLabel:  "Use this threshold value",
		AltLabel: "Preview thresholded cells",
		Fields: []Field{
			Message("Adjust the local threshold."),
			Number("threshold", "Threshold", 15, 0),
			Number("radius", "Radius", 15, 0),
			Checkbox("lock", "Save for all images", true),
			Text("name", "Name", "Cell Channel 1"),
		},
	}
}

func TestDefaults(t *testing.T) {
	r := Defaults(thresholdDialog(), Confirmed)
	if r.Number("threshold") != 15 || !r.Bool("lock") || r.String("name") != "Cell Channel 1" {
		t.Errorf("unexpected defaults %v", r.Values)
	}
	if r.Int("radius") != 15 {
		t.Errorf("Int(radius) = %d", r.Int("radius"))
	}

	declined := Defaults(thresholdDialog(), Declined)
	if declined.HasValues() || declined.Values != nil {
		t.Error("declined response must not carry values")
	}
}

func TestAutoDeclinesCancellableDialogs(t *testing.T) {
	ctx := context.Background()

	r, err := Auto{}.Show(ctx, thresholdDialog())
	if err != nil || r.Outcome != Confirmed || r.Number("threshold") != 15 {
		t.Errorf("threshold dialog: %+v, %v", r, err)
	}

	yesNo := Dialog{
		ID:          "train",
		Fields:      []Field{Message("Would you like to train a new classifier?")},
		OKLabel:     "Train new classifier",
		CancelLabel: "Use saved classifier",
	}
	r, err = Auto{}.Show(ctx, yesNo)
	if err != nil || r.Outcome != Declined || r.HasValues() {
		t.Errorf("yes/no dialog: %+v, %v", r, err)
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := (Auto{}).Show(cancelled, yesNo); err == nil {
		t.Error("expected context error")
	}
}

func TestScriptReplaysQueuedAnswersThenDefaults(t *testing.T) {
	s := NewScript().Queue("threshold",
		Answer{Outcome: Alternate, Values: map[string]interface{}{"threshold": 30.0}},
		Answer{Outcome: Declined},
	)
	ctx := context.Background()

	r1, _ := s.Show(ctx, thresholdDialog())
	if r1.Outcome != Alternate || r1.Number("threshold") != 30 || r1.Number("radius") != 15 {
		t.Errorf("first answer = %+v", r1)
	}
	r2, _ := s.Show(ctx, thresholdDialog())
	if r2.Outcome != Declined {
		t.Errorf("second answer = %+v", r2)
	}
	r3, _ := s.Show(ctx, thresholdDialog())
	if r3.Outcome != Confirmed || r3.Number("threshold") != 15 {
		t.Errorf("fallback answer = %+v", r3)
	}
	if s.Count("threshold") != 3 {
		t.Errorf("Count = %d", s.Count("threshold"))
	}
}

func TestScriptHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewScript().Show(ctx, thresholdDialog()); err == nil {
		t.Error("expected context error")
	}
}

func TestConsoleReadsValuesAndChoice(t *testing.T) {
	in := strings.NewReader("22\n\nmaybe\nn\nMy cells\n2\n")
	var out bytes.Buffer
	dir := t.TempDir()
	c := NewConsole(in, &out, dir)

	d := thresholdDialog()
	d.Preview = image.NewGray(image.Rect(0, 0, 4, 4))

	r, err := c.Show(context.Background(), d)
	if err != nil {
		t.Fatalf("Show: %v", err)
	}
	if r.Outcome != Alternate {
		t.Errorf("outcome = %v", r.Outcome)
	}
	if r.Number("threshold") != 22 || r.Number("radius") != 15 {
		t.Errorf("numbers = %v", r.Values)
	}
	if r.Bool("lock") {
		t.Error("lock should be false after answering n")
	}
	if r.String("name") != "My cells" {
		t.Errorf("name = %q", r.String("name"))
	}
	if !strings.Contains(out.String(), "expected yes or no") {
		t.Errorf("invalid checkbox input not reported: %s", out.String())
	}

	matches, _ := filepath.Glob(filepath.Join(dir, "*.png"))
	if len(matches) != 1 {
		t.Fatalf("expected one preview file, got %v", matches)
	}
	if info, err := os.Stat(matches[0]); err != nil || info.Size() == 0 {
		t.Errorf("preview not written: %v", err)
	}
}

func TestConsoleEOFFallsBackToDefaults(t *testing.T) {
	c := NewConsole(strings.NewReader(""), &bytes.Buffer{}, "")
	r, err := c.Show(context.Background(), thresholdDialog())
	if err != nil {
		t.Fatal(err)
	}
	if r.Outcome != Confirmed || r.Number("threshold") != 15 {
		t.Errorf("unexpected %+v", r)
	}
}

func TestParseValue(t *testing.T) {
	if _, err := ParseValue(Number("n", "N", 0, 0), "abc"); err == nil {
		t.Error("expected number error")
	}
	if _, err := ParseValue(Number("n", "N", 0, 0), "NaN"); err == nil {
		t.Error("NaN must be rejected")
	}
	if v, err := ParseValue(Checkbox("c", "C", false), "yes"); err != nil || v != true {
		t.Errorf("checkbox yes = %v, %v", v, err)
	}
}
