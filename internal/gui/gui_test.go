package gui

import (
	"image"
	"testing"

	"fyne.io/fyne/v2/test"
	"fyne.io/fyne/v2/widget"

	"github.com/h39s/VessCoopJ/internal/prompt"
)

func scaleFields() []prompt.Field {
	return []prompt.Field{
		prompt.Message("Trace the scale bar."),
		prompt.Number("distance", "Known distance", 1, 2),
		prompt.Text("unit", "Unit of length", "pixels"),
		prompt.Checkbox("lock", "Save scale for all images", true),
	}
}

func TestFormDefaults(t *testing.T) {
	test.NewTempApp(t)

	f := newForm(scaleFields())
	values, err := f.values()
	if err != nil {
		t.Fatal(err)
	}
	if values["distance"] != 1.0 || values["unit"] != "pixels" || values["lock"] != true {
		t.Errorf("values = %v", values)
	}
	if _, ok := values[""]; ok {
		t.Error("messages must not produce values")
	}
	if got := f.entry("distance").Text; got != "1.00" {
		t.Errorf("distance text = %q", got)
	}
}

func TestFormRejectsBadNumber(t *testing.T) {
	test.NewTempApp(t)

	f := newForm(scaleFields())
	f.entry("distance").SetText("ten")
	if _, err := f.values(); err == nil {
		t.Fatal("expected parse error")
	}
	f.entry("distance").SetText(" 12.5 ")
	values, err := f.values()
	if err != nil || values["distance"] != 12.5 {
		t.Errorf("values = %v err = %v", values, err)
	}
}

func TestModalButtons(t *testing.T) {
	tests := []struct {
		name   string
		tap    func(m *modal) *widget.Button
		want   prompt.Outcome
		values bool
	}{
		{"ok", func(m *modal) *widget.Button { return m.ok }, prompt.Confirmed, true},
		{"alternate", func(m *modal) *widget.Button { return m.alt }, prompt.Alternate, true},
		{"cancel", func(m *modal) *widget.Button { return m.cancel }, prompt.Declined, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			test.NewTempApp(t)
			w := test.NewTempWindow(t, widget.NewLabel("status"))
			p := NewPrompter(w, nil)

			answers := make(chan prompt.Response, 1)
			m := p.open(prompt.Dialog{
				ID:          "scale",
				Title:       "Set Scale?",
				Fields:      scaleFields(),
				OKLabel:     "Set scale",
				AltLabel:    "No scale",
				CancelLabel: "Cancel",
				Preview:     image.NewGray(image.Rect(0, 0, 4, 4)),
			}, answers)

			test.Tap(tt.tap(m))
			resp := <-answers
			if resp.Outcome != tt.want || resp.HasValues() != tt.values {
				t.Errorf("response = %+v", resp)
			}
			if tt.values && resp.Number("distance") != 1 {
				t.Errorf("distance = %v", resp.Number("distance"))
			}
			select {
			case extra := <-answers:
				t.Errorf("second answer %+v", extra)
			default:
			}
		})
	}
}

func TestStatusReport(t *testing.T) {
	test.NewTempApp(t)

	sb := NewStatusBar()
	sb.Report("batch started", map[string]interface{}{"images": 3})
	sb.Report("image processed", map[string]interface{}{"file": "a.tif"})
	sb.Report("image failed", map[string]interface{}{"file": "b.tif"})

	if got := sb.statusLabel.Text; got != "image failed: b.tif" {
		t.Errorf("status = %q", got)
	}
	if got := sb.countsLabel.Text; got != "1 of 3 processed, 1 failed" {
		t.Errorf("counts = %q", got)
	}
}
