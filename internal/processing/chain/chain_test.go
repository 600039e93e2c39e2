package chain

import (
	"context"
	"errors"
	"testing"

	"github.com/h39s/VessCoopJ/internal/opencv/safe"

	"gocv.io/x/gocv"
)

type addStep struct {
	name    string
	delta   float64
	enabled bool
	err     error
}

func (s addStep) Name() string { return s.name }

func (s addStep) ShouldExecute(map[string]interface{}) bool { return s.enabled }

func (s addStep) Apply(_ context.Context, input *safe.Mat, _ map[string]interface{}) (*safe.Mat, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := input.GetMat().Clone()
	out.AddFloat(float32(s.delta))
	return safe.Adopt(out, s.name)
}

func newInput(t *testing.T) *safe.Mat {
	t.Helper()
	m, err := safe.NewMat(2, 2, gocv.MatTypeCV32F)
	if err != nil {
		t.Fatal(err)
	}
	m.GetMat().SetTo(gocv.NewScalar(0, 0, 0, 0))
	t.Cleanup(m.Close)
	return m
}

func TestExecuteRunsEnabledStepsInOrder(t *testing.T) {
	var reports []StepReport
	c := NewProcessingChain(
		addStep{name: "one", delta: 1, enabled: true},
		addStep{name: "skip", delta: 100, enabled: false},
		addStep{name: "two", delta: 2, enabled: true},
	).Observe(func(r StepReport) { reports = append(reports, r) })

	in := newInput(t)
	out, err := c.Execute(context.Background(), in, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer out.Close()

	if got := out.GetMat().GetFloatAt(1, 1); got != 3 {
		t.Errorf("value = %v, want 3", got)
	}
	if got := in.GetMat().GetFloatAt(1, 1); got != 0 {
		t.Errorf("input modified: %v", got)
	}
	if len(reports) != 3 || !reports[1].Skipped || reports[2].Name != "two" {
		t.Errorf("reports = %+v", reports)
	}
	if names := c.Names(); len(names) != 3 || names[0] != "one" {
		t.Errorf("names = %v", names)
	}
}

func TestExecuteWithoutStepsClones(t *testing.T) {
	in := newInput(t)
	out, err := NewProcessingChain().Execute(context.Background(), in, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer out.Close()
	if out == in {
		t.Error("empty chain must return a new Mat")
	}
}

func TestExecuteStopsOnError(t *testing.T) {
	boom := errors.New("boom")
	c := NewProcessingChain(
		addStep{name: "one", delta: 1, enabled: true},
		addStep{name: "bad", enabled: true, err: boom},
	)
	if _, err := c.Execute(context.Background(), newInput(t), nil); !errors.Is(err, boom) {
		t.Errorf("got %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.Execute(ctx, newInput(t), nil); !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled: %v", err)
	}
}
