// Package wizard drives a linear sequence of steps with validity-gated
// forward navigation.
//
// An Engine is not safe for concurrent use. Callbacks run synchronously on
// the caller's goroutine and may read the engine, but must not navigate it.
package wizard

import (
	"errors"
	"fmt"
)

// ErrNoSteps is returned when an engine is given an empty step list.
var ErrNoSteps = errors.New("wizard: at least one step is required")

// Step describes one page of the wizard. Component is whatever the caller
// renders for the step; the engine never inspects it.
type Step struct {
	ID        string
	Title     string
	Valid     bool
	Component any
}

type Options struct {
	// AllowSkip lifts every validity gate.
	AllowSkip bool
	// OnStepChange fires right after the index changes.
	OnStepChange func(index int)
	// OnComplete fires when the final step is confirmed.
	OnComplete func()
}

// Engine is the step-wizard state machine.
type Engine struct {
	steps []Step
	index int
	opts  Options
}

// New creates an engine positioned on the first step.
func New(steps []Step, opts Options) (*Engine, error) {
	if len(steps) == 0 {
		return nil, ErrNoSteps
	}
	return &Engine{steps: append([]Step(nil), steps...), opts: opts}, nil
}

// Index returns the current step index.
func (e *Engine) Index() int { return e.index }

// Len returns the number of steps.
func (e *Engine) Len() int { return len(e.steps) }

// Current returns the current step.
func (e *Engine) Current() Step { return e.steps[e.index] }

// Steps returns a copy of every step in order.
func (e *Engine) Steps() []Step { return append([]Step(nil), e.steps...) }

// IsLast reports whether the current step is the final one.
func (e *Engine) IsLast() bool { return e.index == len(e.steps)-1 }

// CanNext reports whether Next would advance or complete from here.
func (e *Engine) CanNext() bool {
	if e.IsLast() {
		return e.CanComplete()
	}
	return e.opts.AllowSkip || e.steps[e.index].Valid
}

// Next advances one step when the current step is valid (or skipping is
// allowed). On the final step it fires OnComplete instead of moving, if
// CanComplete. It reports whether the index moved.
func (e *Engine) Next() bool {
	if e.IsLast() {
		e.Complete()
		return false
	}
	if !e.opts.AllowSkip && !e.steps[e.index].Valid {
		return false
	}
	e.move(e.index + 1)
	return true
}

// Prev moves back one step. Backward navigation is never gated.
func (e *Engine) Prev() bool {
	if e.index == 0 {
		return false
	}
	e.move(e.index - 1)
	return true
}

// JumpTo moves to step j when skipping is allowed, j is not ahead of the
// current step, or the current step is valid.
func (e *Engine) JumpTo(j int) bool {
	if j < 0 || j >= len(e.steps) || j == e.index {
		return false
	}
	if !e.opts.AllowSkip && j > e.index && !e.steps[e.index].Valid {
		return false
	}
	e.move(j)
	return true
}

// CanComplete reports whether the wizard may be finished: every step is
// valid, or skipping is allowed.
func (e *Engine) CanComplete() bool {
	if e.opts.AllowSkip {
		return true
	}
	for _, s := range e.steps {
		if !s.Valid {
			return false
		}
	}
	return true
}

// Complete fires OnComplete when the engine is on the final step and
// CanComplete. It reports whether OnComplete was fired.
func (e *Engine) Complete() bool {
	if !e.IsLast() || !e.CanComplete() {
		return false
	}
	if e.opts.OnComplete != nil {
		e.opts.OnComplete()
	}
	return true
}

// SetValid records the validity of the step with the given ID.
func (e *Engine) SetValid(id string, valid bool) error {
	for i := range e.steps {
		if e.steps[i].ID == id {
			e.steps[i].Valid = valid
			return nil
		}
	}
	return fmt.Errorf("wizard: unknown step %q", id)
}

// SetSteps replaces the step list, e.g. when an earlier answer changes which
// steps exist. The cursor stays on the same step ID when it survives,
// otherwise it is clamped to the new range. OnStepChange fires if the index
// changed.
func (e *Engine) SetSteps(steps []Step) error {
	if len(steps) == 0 {
		return ErrNoSteps
	}
	currentID := e.steps[e.index].ID
	e.steps = append([]Step(nil), steps...)

	next := min(e.index, len(e.steps)-1)
	for i, s := range e.steps {
		if s.ID == currentID {
			next = i
			break
		}
	}
	if next != e.index {
		e.move(next)
	}
	return nil
}

func (e *Engine) move(to int) {
	e.index = to
	if e.opts.OnStepChange != nil {
		e.opts.OnStepChange(to)
	}
}
