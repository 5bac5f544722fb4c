package engine

import (
	"context"
	"testing"

	"github.com/ormasoftchile/scenex/pkg/config"
	"github.com/ormasoftchile/scenex/pkg/transport"
	"github.com/ormasoftchile/scenex/pkg/vars"
)

func newScenario(t *testing.T, tasks config.TaskCatalog, steps []config.Step) *config.Scenario {
	t.Helper()
	store := vars.NewStore("deployer")
	if _, err := store.Resolve(); err != nil {
		t.Fatal(err)
	}
	return &config.Scenario{
		Credentials: config.Credentials{Username: "deployer"},
		Server:      config.Server{Host: "10.0.0.1", Port: 22},
		Variables:   store,
		Tasks:       tasks,
		Steps:       steps,
	}
}

func drainEvents(bus *Bus) []Event {
	var out []Event
	for e := range bus.Events() {
		out = append(out, e)
	}
	return out
}

func TestEngineRunsStepsInOrderOnSuccess(t *testing.T) {
	tasks := config.TaskCatalog{
		"first":  &config.RemoteSudoTask{TaskName: "first", Command: "echo one"},
		"second": &config.RemoteSudoTask{TaskName: "second", Command: "echo two"},
	}
	steps := []config.Step{{TaskRef: "first"}, {TaskRef: "second"}}
	scenario := newScenario(t, tasks, steps)

	ft := transport.NewFakeTransport(
		transport.FakeExecResponse{Command: "echo one", ExitCode: 0},
		transport.FakeExecResponse{Command: "echo two", ExitCode: 0},
	)
	bus := NewBus(32)
	eng := New(scenario, ft, bus)

	done := make(chan []Event, 1)
	go func() { done <- drainEvents(bus) }()

	if err := eng.Run(context.Background(), RunOptions{}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	bus.Close()
	events := <-done

	if eng.Phase() != PhaseDoneSuccess {
		t.Errorf("phase = %v, want PhaseDoneSuccess", eng.Phase())
	}

	var completed []string
	for _, e := range events {
		if e.Kind == EventStepState && e.Phase == StepCompleted {
			completed = append(completed, e.StepName)
		}
	}
	if len(completed) != 2 || completed[0] != "first" || completed[1] != "second" {
		t.Errorf("completed steps = %v, want [first second]", completed)
	}
}

func TestEngineRunsCompensationOnFailureAndStops(t *testing.T) {
	tasks := config.TaskCatalog{
		"deploy":   &config.RemoteSudoTask{TaskName: "deploy", Command: "deploy now"},
		"rollback": &config.RemoteSudoTask{TaskName: "rollback", Command: "rollback now"},
		"never":    &config.RemoteSudoTask{TaskName: "never", Command: "should not run"},
	}
	steps := []config.Step{
		{TaskRef: "deploy", OnFail: []string{"rollback"}},
		{TaskRef: "never"},
	}
	scenario := newScenario(t, tasks, steps)

	ft := transport.NewFakeTransport(
		transport.FakeExecResponse{Command: "deploy now", ExitCode: 1},
		transport.FakeExecResponse{Command: "rollback now", ExitCode: 0},
	)
	bus := NewBus(32)
	eng := New(scenario, ft, bus)

	done := make(chan []Event, 1)
	go func() { done <- drainEvents(bus) }()

	err := eng.Run(context.Background(), RunOptions{})
	bus.Close()
	events := <-done

	if err == nil {
		t.Fatal("expected a failure, got nil")
	}
	if eng.Phase() != PhaseDoneFailure {
		t.Errorf("phase = %v, want PhaseDoneFailure", eng.Phase())
	}

	var sawRollback, sawNever bool
	for _, e := range events {
		if e.Kind == EventOnFailStepState && e.StepName == "rollback" && e.Phase == StepCompleted {
			sawRollback = true
		}
		if e.StepName == "never" {
			sawNever = true
		}
	}
	if !sawRollback {
		t.Error("expected rollback compensation to run and complete")
	}
	if sawNever {
		t.Error("step after the failed one must not run")
	}
}

func TestEngineCompensationIsBestEffort(t *testing.T) {
	tasks := config.TaskCatalog{
		"deploy": &config.RemoteSudoTask{TaskName: "deploy", Command: "deploy now"},
		"clean1": &config.RemoteSudoTask{TaskName: "clean1", Command: "clean one"},
		"clean2": &config.RemoteSudoTask{TaskName: "clean2", Command: "clean two"},
	}
	steps := []config.Step{{TaskRef: "deploy", OnFail: []string{"clean1", "clean2"}}}
	scenario := newScenario(t, tasks, steps)

	ft := transport.NewFakeTransport(
		transport.FakeExecResponse{Command: "deploy now", ExitCode: 1},
		transport.FakeExecResponse{Command: "clean one", ExitCode: 1},
		transport.FakeExecResponse{Command: "clean two", ExitCode: 0},
	)
	bus := NewBus(32)
	eng := New(scenario, ft, bus)

	done := make(chan []Event, 1)
	go func() { done <- drainEvents(bus) }()

	_ = eng.Run(context.Background(), RunOptions{})
	bus.Close()
	events := <-done

	var sawClean2Completed bool
	for _, e := range events {
		if e.Kind == EventOnFailStepState && e.StepName == "clean2" && e.Phase == StepCompleted {
			sawClean2Completed = true
		}
	}
	if !sawClean2Completed {
		t.Error("clean2 should still run to completion even though clean1 failed")
	}
}

func TestEngineDryRunNeverTouchesTransport(t *testing.T) {
	tasks := config.TaskCatalog{
		"deploy": &config.RemoteSudoTask{TaskName: "deploy", Command: "deploy now"},
	}
	steps := []config.Step{{TaskRef: "deploy"}}
	scenario := newScenario(t, tasks, steps)

	bus := NewBus(8)
	eng := New(scenario, nil, bus)

	err := eng.Run(context.Background(), RunOptions{DryRun: true})
	bus.Close()

	if err != nil {
		t.Fatalf("dry run returned an error: %v", err)
	}
	if eng.Phase() != PhaseDoneSuccess {
		t.Errorf("phase = %v, want PhaseDoneSuccess", eng.Phase())
	}
}

func TestEngineSftpProgressIsMonotonic(t *testing.T) {
	orig := statRegularFile
	statRegularFile = func(string) error { return nil }
	defer func() { statRegularFile = orig }()

	tasks := config.TaskCatalog{
		"copy": &config.SftpCopyTask{TaskName: "copy", SourcePath: "/local/app.jar", DestinationPath: "/remote/app.jar"},
	}
	steps := []config.Step{{TaskRef: "copy"}}
	scenario := newScenario(t, tasks, steps)

	ft := transport.NewFakeTransport()
	bus := NewBus(32)
	eng := New(scenario, ft, bus)

	done := make(chan []Event, 1)
	go func() { done <- drainEvents(bus) }()

	if err := eng.Run(context.Background(), RunOptions{}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	bus.Close()
	events := <-done

	var last int64 = -1
	for _, e := range events {
		if e.Kind == EventStepState && e.Phase == StepProgress && e.Progress != nil {
			if e.Progress.BytesSent < last {
				t.Fatalf("progress regressed: %d after %d", e.Progress.BytesSent, last)
			}
			last = e.Progress.BytesSent
		}
	}
	if last <= 0 {
		t.Error("expected at least one progress event with BytesSent > 0")
	}
}

func TestEngineStepIndexIsMonotonicallyIncreasing(t *testing.T) {
	tasks := config.TaskCatalog{
		"first":  &config.RemoteSudoTask{TaskName: "first", Command: "echo one"},
		"second": &config.RemoteSudoTask{TaskName: "second", Command: "echo two"},
		"third":  &config.RemoteSudoTask{TaskName: "third", Command: "echo three"},
	}
	steps := []config.Step{{TaskRef: "first"}, {TaskRef: "second"}, {TaskRef: "third"}}
	scenario := newScenario(t, tasks, steps)

	ft := transport.NewFakeTransport(
		transport.FakeExecResponse{Command: "echo one", ExitCode: 0},
		transport.FakeExecResponse{Command: "echo two", ExitCode: 0},
		transport.FakeExecResponse{Command: "echo three", ExitCode: 0},
	)
	bus := NewBus(32)
	eng := New(scenario, ft, bus)

	done := make(chan []Event, 1)
	go func() { done <- drainEvents(bus) }()

	if err := eng.Run(context.Background(), RunOptions{}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	bus.Close()
	events := <-done

	last := -1
	maxIndex := -1
	for _, e := range events {
		if e.Kind != EventStepState {
			continue
		}
		if e.StepsTotal != len(steps) {
			t.Errorf("StepsTotal = %d, want %d", e.StepsTotal, len(steps))
		}
		if e.StepIndex < last {
			t.Fatalf("step_index regressed: %d after %d", e.StepIndex, last)
		}
		last = e.StepIndex
		if e.StepIndex > maxIndex {
			maxIndex = e.StepIndex
		}
	}
	if maxIndex != len(steps)-1 {
		t.Errorf("max step_index = %d, want %d (full success runs every step)", maxIndex, len(steps)-1)
	}
}

func TestEngineCancelledBetweenStepsEmitsCancelledStepFailed(t *testing.T) {
	tasks := config.TaskCatalog{
		"deploy":   &config.RemoteSudoTask{TaskName: "deploy", Command: "deploy now"},
		"rollback": &config.RemoteSudoTask{TaskName: "rollback", Command: "rollback now"},
	}
	steps := []config.Step{{TaskRef: "deploy", OnFail: []string{"rollback"}}}
	scenario := newScenario(t, tasks, steps)

	ft := transport.NewFakeTransport(
		transport.FakeExecResponse{Command: "rollback now", ExitCode: 0},
	)
	bus := NewBus(32)
	eng := New(scenario, ft, bus)

	done := make(chan []Event, 1)
	go func() { done <- drainEvents(bus) }()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := eng.Run(ctx, RunOptions{})
	bus.Close()
	events := <-done

	if err == nil {
		t.Fatal("expected a cancellation error, got nil")
	}

	var sawCancelled, sawRollback bool
	for _, e := range events {
		if e.Kind == EventStepState && e.StepName == "deploy" && e.Phase == StepFailed {
			sawCancelled = e.Detail == "cancelled"
		}
		if e.Kind == EventOnFailStepState && e.StepName == "rollback" && e.Phase == StepCompleted {
			sawRollback = true
		}
	}
	if !sawCancelled {
		t.Error("expected StepFailed{detail=\"cancelled\"} for the step that never got to run")
	}
	if !sawRollback {
		t.Error("cancellation should still drive the step's on_fail list")
	}
}

func TestEngineRemoteSudoOutputAccumulates(t *testing.T) {
	tasks := config.TaskCatalog{
		"echo": &config.RemoteSudoTask{TaskName: "echo", Command: "printf '%s' 'hi u'"},
	}
	steps := []config.Step{{TaskRef: "echo"}}
	scenario := newScenario(t, tasks, steps)

	ft := transport.NewFakeTransport(
		transport.FakeExecResponse{Command: "printf '%s' 'hi u'", Stdout: "hi u", ExitCode: 0},
	)
	bus := NewBus(32)
	eng := New(scenario, ft, bus)

	done := make(chan []Event, 1)
	go func() { done <- drainEvents(bus) }()

	if err := eng.Run(context.Background(), RunOptions{}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	bus.Close()
	events := <-done

	var last Event
	var found bool
	for _, e := range events {
		if e.Kind == EventStepState && e.Phase == StepProgress && e.Command != "" {
			last = e
			found = true
		}
	}
	if !found {
		t.Fatal("expected a RemoteSudoOutput event")
	}
	if last.Command != "printf '%s' 'hi u'" {
		t.Errorf("Command = %q, want the interpolated command", last.Command)
	}
	if last.Output != "hi u" {
		t.Errorf("Output = %q, want accumulated \"hi u\"", last.Output)
	}
}
