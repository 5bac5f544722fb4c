// Package engine implements the execution engine of spec.md §4.F-4.H: a
// sequenced step runner dispatching config.Task variants over a
// transport.Transport, publishing progress on a Bus, and running
// compensation (on_fail) steps when a primary step fails.
package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/ormasoftchile/scenex/pkg/config"
	"github.com/ormasoftchile/scenex/pkg/scenexerr"
	"github.com/ormasoftchile/scenex/pkg/transport"
	"github.com/ormasoftchile/scenex/pkg/vars"
)

// Engine runs one Scenario to completion over one Transport. An Engine
// instance is single-use: construct a new one per run.
type Engine struct {
	scenario  *config.Scenario
	transport transport.Transport
	bus       *Bus

	phase ExecutionPhase
}

// New builds an Engine for scenario, owning transport exclusively for the
// duration of Run (spec.md §5). t may be nil when the caller only intends
// to call Run with RunOptions.DryRun set — a dry run never dereferences it.
func New(scenario *config.Scenario, t transport.Transport, bus *Bus) *Engine {
	return &Engine{scenario: scenario, transport: t, bus: bus, phase: PhaseIdle}
}

// RunOptions controls a single Run invocation.
type RunOptions struct {
	// DryRun, when true, stops after Preparing: paths and variables are
	// validated and resolved but no Transport is ever touched and no step
	// runs. The engine reports Done(Success) directly.
	DryRun bool
}

// Run executes every step in order. On a step failure it runs that step's
// on_fail compensation list (which cannot itself trigger further
// compensation, spec.md §4.F invariant) and then stops — remaining steps
// never run. Run returns the terminating error, or nil on full success.
func (e *Engine) Run(ctx context.Context, opts RunOptions) error {
	e.setPhase(PhasePreparing)

	if err := e.scenario.Variables.ValidatePaths(); err != nil {
		e.setPhase(PhaseDoneFailure)
		return err
	}
	resolved, err := e.scenario.Variables.Resolve()
	if err != nil {
		e.setPhase(PhaseDoneFailure)
		return err
	}

	if opts.DryRun {
		e.setPhase(PhaseDoneSuccess)
		return nil
	}

	e.setPhase(PhaseRunning)

	total := len(e.scenario.Steps)
	for index, step := range e.scenario.Steps {
		task := e.scenario.Tasks[step.TaskRef]

		var stepErr error
		if err := ctx.Err(); err != nil {
			// The run was cancelled before this step could start. Report it
			// the same way an in-flight cancellation would: StepStarted
			// immediately followed by the canonical cancelled StepFailed,
			// so this step still drives its own on_fail list.
			e.bus.stepStarted(task.Name(), index, total)
			e.bus.stepFailed(task.Name(), index, total, "cancelled")
			stepErr = scenexerr.Wrap(scenexerr.KindCancelled, "execution cancelled", err)
		} else {
			stepErr = e.runStep(ctx, task, resolved, index, total)
		}
		if stepErr == nil {
			continue
		}

		if len(step.OnFail) > 0 {
			e.setPhase(PhaseCompensating)
			e.runCompensation(ctx, index, total, step.OnFail, resolved)
			e.setPhase(PhaseRunning)
		}

		e.setPhase(PhaseDoneFailure)
		return stepErr
	}

	e.setPhase(PhaseDoneSuccess)
	return nil
}

func (e *Engine) setPhase(p ExecutionPhase) {
	e.phase = p
	e.bus.executionStatus(p)
}

// Phase reports the engine's current ExecutionPhase.
func (e *Engine) Phase() ExecutionPhase {
	return e.phase
}

func (e *Engine) runStep(ctx context.Context, task config.Task, resolved vars.ResolvedVariables, index, total int) error {
	e.bus.stepStarted(task.Name(), index, total)
	if err := e.dispatch(ctx, task, resolved, index, total, false); err != nil {
		e.bus.stepFailed(task.Name(), index, total, stepFailureMessage(err))
		return err
	}
	e.bus.stepCompleted(task.Name(), index, total)
	return nil
}

// runCompensation runs every task in onFail in order, best-effort: a
// failure in one compensating task does not stop the rest from running,
// since compensation's purpose is cleanup (spec.md §4.F). stepIndex and
// stepsTotal identify the primary step that is compensating.
func (e *Engine) runCompensation(ctx context.Context, stepIndex, stepsTotal int, onFail []string, resolved vars.ResolvedVariables) {
	onFailTotal := len(onFail)
	for onFailIndex, name := range onFail {
		task, ok := e.scenario.Tasks[name]
		if !ok {
			continue
		}
		e.bus.onFailStepStarted(task.Name(), stepIndex, stepsTotal, onFailIndex, onFailTotal)
		if err := e.dispatch(ctx, task, resolved, stepIndex, stepsTotal, true); err != nil {
			e.bus.onFailStepFailed(task.Name(), stepIndex, stepsTotal, onFailIndex, onFailTotal, stepFailureMessage(err))
			continue
		}
		e.bus.onFailStepCompleted(task.Name(), stepIndex, stepsTotal, onFailIndex, onFailTotal)
	}
}

// stepFailureMessage renders the canonical "cancelled" message for a
// cancelled step (spec.md §4.F/§8) instead of leaking the transport's raw
// error text, and falls back to the error's own message otherwise.
func stepFailureMessage(err error) string {
	var se *scenexerr.Error
	if errors.As(err, &se) && se.Kind == scenexerr.KindCancelled {
		return "cancelled"
	}
	return err.Error()
}

func (e *Engine) dispatch(ctx context.Context, task config.Task, resolved vars.ResolvedVariables, index, total int, isCompensation bool) error {
	switch t := task.(type) {
	case *config.RemoteSudoTask:
		return e.runRemoteSudo(ctx, t, resolved, index, total)
	case *config.SftpCopyTask:
		return e.runSftpCopy(ctx, t, resolved, index, total)
	default:
		return scenexerr.New(scenexerr.KindConfigSchema, fmt.Sprintf("task %q has unsupported kind %q", task.Name(), task.Kind()))
	}
}

func (e *Engine) runRemoteSudo(ctx context.Context, t *config.RemoteSudoTask, resolved vars.ResolvedVariables, index, total int) error {
	command, err := vars.Interpolate(t.Command, resolved)
	if err != nil {
		return err
	}

	var output strings.Builder
	result, err := e.transport.ExecSudo(ctx, command, func(line string, stderr bool) {
		if output.Len() > 0 {
			output.WriteByte('\n')
		}
		output.WriteString(line)
		e.bus.stepOutput(t.Name(), index, total, command, output.String())
	})
	if err != nil {
		return err
	}
	if result.ExitCode != 0 {
		msg := fmt.Sprintf("command exited with status %d", result.ExitCode)
		if t.ErrorMessage != "" {
			if rendered, ierr := vars.Interpolate(t.ErrorMessage, resolved); ierr == nil {
				msg = rendered
			}
		}
		return scenexerr.New(scenexerr.KindRemoteExitNonZero, msg)
	}
	return nil
}

// statRegularFile is overridable in tests.
var statRegularFile = func(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%s is not a regular file", path)
	}
	return nil
}

func (e *Engine) runSftpCopy(ctx context.Context, t *config.SftpCopyTask, resolved vars.ResolvedVariables, index, total int) error {
	src, err := vars.Interpolate(t.SourcePath, resolved)
	if err != nil {
		return err
	}
	dst, err := vars.Interpolate(t.DestinationPath, resolved)
	if err != nil {
		return err
	}

	if statErr := statRegularFile(src); statErr != nil {
		msg := fmt.Sprintf("source_path %s is not an existing regular file: %v", src, statErr)
		if t.ErrorMessage != "" {
			if rendered, ierr := vars.Interpolate(t.ErrorMessage, resolved); ierr == nil {
				msg = rendered
			}
		}
		return scenexerr.Wrap(scenexerr.KindSftpFailed, msg, statErr)
	}

	err = e.transport.SFTPPut(ctx, src, dst, func(p transport.SftpProgress) {
		e.bus.stepProgressBytes(t.Name(), index, total, Progress{BytesSent: p.BytesSent, TotalBytes: p.TotalBytes})
	})
	if err != nil {
		if t.ErrorMessage != "" {
			if rendered, ierr := vars.Interpolate(t.ErrorMessage, resolved); ierr == nil {
				return scenexerr.Wrap(scenexerr.KindSftpFailed, rendered, err)
			}
		}
		return err
	}
	return nil
}
