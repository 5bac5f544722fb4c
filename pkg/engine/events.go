package engine

import "time"

// EventKind discriminates the Event tagged variant of spec.md §4.F.
type EventKind string

const (
	EventStepState       EventKind = "step_state"
	EventOnFailStepState EventKind = "on_fail_step_state"
	EventExecutionStatus EventKind = "execution_status"
	EventLogMessage      EventKind = "log_message"
)

// StepPhase is the per-step state machine of spec.md §4.F:
// StepStarted -> {progress}* -> (StepCompleted|StepFailed).
type StepPhase string

const (
	StepStarted   StepPhase = "started"
	StepProgress  StepPhase = "progress"
	StepCompleted StepPhase = "completed"
	StepFailed    StepPhase = "failed"
)

// ExecutionPhase is the run-level state machine of spec.md §4.F:
// Idle -> Preparing -> Running <-> Compensating -> Done(Success|Failure).
type ExecutionPhase string

const (
	PhaseIdle         ExecutionPhase = "idle"
	PhasePreparing    ExecutionPhase = "preparing"
	PhaseRunning      ExecutionPhase = "running"
	PhaseCompensating ExecutionPhase = "compensating"
	PhaseDoneSuccess  ExecutionPhase = "done_success"
	PhaseDoneFailure  ExecutionPhase = "done_failure"
)

// Event is the single tagged-union event the engine publishes to its
// subscriber channel: one flat struct whose Kind says which fields are
// set, dispatched by a switch on Kind at the consuming front-end rather
// than subclassing. It plays the
// same role a JSON-RPC push notification would, collapsed to an in-process
// channel since this engine has no network boundary of its own.
type Event struct {
	Kind      EventKind
	Timestamp time.Time

	// StepState / OnFailStepState fields. StepIndex/StepsTotal locate the
	// primary step within the run (0,1,2,…); for OnFailStepState events
	// they identify the primary step that is compensating, and
	// OnFailStepIndex/OnFailStepsTotal additionally locate this event
	// within that step's on_fail list.
	StepName         string
	StepIndex        int
	StepsTotal       int
	OnFailStepIndex  int
	OnFailStepsTotal int
	Phase            StepPhase
	Detail           string // error message, or progress description
	Command          string // RemoteSudoOutput: the interpolated command
	Output           string // RemoteSudoOutput: accumulated output so far
	Progress         *Progress

	// ExecutionStatus fields.
	Execution ExecutionPhase

	// LogMessage fields.
	Message string
}

// Progress carries a monotonically increasing byte count for SFTP uploads
// (spec.md §8 property: progress events for a single step never regress).
type Progress struct {
	BytesSent  int64
	TotalBytes int64
}

// Bus is the buffered event channel an execution run publishes to and a
// front-end (CLI or desktop UI) subscribes to. One Bus per run.
type Bus struct {
	events chan Event
}

// NewBus creates a Bus with the given buffer size.
func NewBus(buffer int) *Bus {
	return &Bus{events: make(chan Event, buffer)}
}

// Events returns the receive side of the channel for subscribers.
func (b *Bus) Events() <-chan Event {
	return b.events
}

// Close signals no further events will be published.
func (b *Bus) Close() {
	close(b.events)
}

func (b *Bus) publish(e Event) {
	e.Timestamp = timeNow()
	b.events <- e
}

func (b *Bus) stepStarted(name string, index, total int) {
	b.publish(Event{Kind: EventStepState, StepName: name, StepIndex: index, StepsTotal: total, Phase: StepStarted})
}

func (b *Bus) stepOutput(name string, index, total int, command, output string) {
	b.publish(Event{Kind: EventStepState, StepName: name, StepIndex: index, StepsTotal: total, Phase: StepProgress, Command: command, Output: output})
}

func (b *Bus) stepProgressBytes(name string, index, total int, p Progress) {
	b.publish(Event{Kind: EventStepState, StepName: name, StepIndex: index, StepsTotal: total, Phase: StepProgress, Progress: &p})
}

func (b *Bus) stepCompleted(name string, index, total int) {
	b.publish(Event{Kind: EventStepState, StepName: name, StepIndex: index, StepsTotal: total, Phase: StepCompleted})
}

func (b *Bus) stepFailed(name string, index, total int, detail string) {
	b.publish(Event{Kind: EventStepState, StepName: name, StepIndex: index, StepsTotal: total, Phase: StepFailed, Detail: detail})
}

func (b *Bus) onFailStepStarted(name string, stepIndex, stepsTotal, onFailIndex, onFailTotal int) {
	b.publish(Event{Kind: EventOnFailStepState, StepName: name, StepIndex: stepIndex, StepsTotal: stepsTotal, OnFailStepIndex: onFailIndex, OnFailStepsTotal: onFailTotal, Phase: StepStarted})
}

func (b *Bus) onFailStepCompleted(name string, stepIndex, stepsTotal, onFailIndex, onFailTotal int) {
	b.publish(Event{Kind: EventOnFailStepState, StepName: name, StepIndex: stepIndex, StepsTotal: stepsTotal, OnFailStepIndex: onFailIndex, OnFailStepsTotal: onFailTotal, Phase: StepCompleted})
}

func (b *Bus) onFailStepFailed(name string, stepIndex, stepsTotal, onFailIndex, onFailTotal int, detail string) {
	b.publish(Event{Kind: EventOnFailStepState, StepName: name, StepIndex: stepIndex, StepsTotal: stepsTotal, OnFailStepIndex: onFailIndex, OnFailStepsTotal: onFailTotal, Phase: StepFailed, Detail: detail})
}

func (b *Bus) executionStatus(phase ExecutionPhase) {
	b.publish(Event{Kind: EventExecutionStatus, Execution: phase})
}

func (b *Bus) logMessage(msg string) {
	b.publish(Event{Kind: EventLogMessage, Message: msg})
}

// timeNow is overridable in tests for deterministic event timestamps.
var timeNow = time.Now
