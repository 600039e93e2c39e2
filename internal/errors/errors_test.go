package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"testing"
)

func TestIsMatchesKind(t *testing.T) {
	err := fmt.Errorf("stage failed: %w", NewInvalidSliceRangeError(4, 3))

	if !stderrors.Is(err, ErrInvalidSliceRange) {
		t.Error("expected errors.Is to match on kind")
	}
	if stderrors.Is(err, ErrDecode) {
		t.Error("decode sentinel must not match")
	}
}

func TestWithContextAnnotatesFileAndStage(t *testing.T) {
	err := WithContext(NewClassifierApplyError("shape mismatch", nil), "a.tif", "vessel segmentation", KindOutput)

	msg := err.Error()
	for _, want := range []string{"classifier_apply", "a.tif", "vessel segmentation", "shape mismatch"} {
		if !strings.Contains(msg, want) {
			t.Errorf("message %q missing %q", msg, want)
		}
	}
	if !IsKind(err, KindClassifierApply) {
		t.Error("kind lost while annotating")
	}
}

func TestWithContextWrapsForeignErrors(t *testing.T) {
	cause := stderrors.New("disk full")
	err := WithContext(cause, "b.tif", "output", KindOutput)

	if !IsKind(err, KindOutput) {
		t.Fatalf("expected output kind, got %v", err)
	}
	if !stderrors.Is(err, cause) {
		t.Error("cause must stay reachable")
	}
	if WithContext(nil, "x", "y", KindOutput) != nil {
		t.Error("nil must stay nil")
	}
}

func TestFatal(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{NewMissingClassifierModelError("vessels"), true},
		{NewConfigurationError("no output", nil), true},
		{NewDecodeError("a.tif", nil), false},
		{NewDegenerateRegionError(1), false},
		{stderrors.New("plain"), false},
	}
	for _, tt := range tests {
		if got := Fatal(tt.err); got != tt.want {
			t.Errorf("Fatal(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestInvalidSelectionIsPerImage(t *testing.T) {
	err := WithContext(NewInvalidSelectionError("vessel", 4, 2), "c.tif", "channels", KindProcessing)
	if !IsKind(err, KindInvalidSelection) || Fatal(err) {
		t.Errorf("got %v", err)
	}
	if !strings.Contains(err.Error(), "vessel channel 4 outside [1, 2]") {
		t.Errorf("message = %q", err.Error())
	}
}
