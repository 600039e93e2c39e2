// Package chain runs a fixed sequence of Mat filters.
package chain

import (
	"context"
	"fmt"
	"time"

	"github.com/h39s/VessCoopJ/internal/opencv/safe"
)

type ProcessingStep interface {
	Apply(ctx context.Context, input *safe.Mat, params map[string]interface{}) (*safe.Mat, error)
	Name() string
	ShouldExecute(params map[string]interface{}) bool
}

// StepReport describes one executed step.
type StepReport struct {
	Name     string
	Skipped  bool
	Duration time.Duration
}

// ProcessingChain runs steps in order, each consuming the previous result.
// The input is never closed; the returned Mat is always a new one owned by
// the caller.
type ProcessingChain struct {
	steps    []ProcessingStep
	observer func(StepReport)
}

func NewProcessingChain(steps ...ProcessingStep) *ProcessingChain {
	return &ProcessingChain{steps: steps}
}

// Observe registers fn to be called after every step, skipped ones included.
func (pc *ProcessingChain) Observe(fn func(StepReport)) *ProcessingChain {
	pc.observer = fn
	return pc
}

func (pc *ProcessingChain) Execute(ctx context.Context, input *safe.Mat, params map[string]interface{}) (*safe.Mat, error) {
	current := input
	release := func() {
		if current != input {
			current.Close()
		}
	}

	for _, step := range pc.steps {
		if err := ctx.Err(); err != nil {
			release()
			return nil, err
		}

		if !step.ShouldExecute(params) {
			pc.report(StepReport{Name: step.Name(), Skipped: true})
			continue
		}

		start := time.Now()
		result, err := step.Apply(ctx, current, params)
		if err != nil {
			release()
			return nil, fmt.Errorf("step %s failed: %w", step.Name(), err)
		}
		pc.report(StepReport{Name: step.Name(), Duration: time.Since(start)})

		release()
		current = result
	}

	if current == input {
		return input.Clone()
	}
	return current, nil
}

func (pc *ProcessingChain) report(r StepReport) {
	if pc.observer != nil {
		pc.observer(r)
	}
}

// Names lists the steps in execution order.
func (pc *ProcessingChain) Names() []string {
	names := make([]string, len(pc.steps))
	for i, step := range pc.steps {
		names[i] = step.Name()
	}
	return names
}
