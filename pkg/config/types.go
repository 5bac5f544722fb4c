// Package config implements the document loader, inheritance merger, and
// scenario model builder of spec.md §§4.A-4.C: components A, B, and C.
package config

import "github.com/ormasoftchile/scenex/pkg/vars"

// Credentials holds the SSH identity. Password is never exposed through
// vars.ResolvedVariables (invariant 6, spec.md §3) — it lives only here,
// read once by pkg/transport to authenticate.
type Credentials struct {
	Username string
	Password string // optional; empty means agent auth
}

// Server is the single remote host a Scenario targets.
type Server struct {
	Host string
	Port uint16 // 1..65535; defaults to 22
}

// TaskKind discriminates the Task tagged variant of spec.md §3.
type TaskKind string

const (
	TaskRemoteSudo TaskKind = "RemoteSudo"
	TaskSftpCopy   TaskKind = "SftpCopy"
)

// Task is implemented by RemoteSudoTask and SftpCopyTask, dispatched by
// the execution engine via a type switch on the concrete task type rather
// than a class hierarchy.
type Task interface {
	Kind() TaskKind
	Name() string
	Description() string
}

// RemoteSudoTask runs a privileged shell command over the SSH session.
type RemoteSudoTask struct {
	TaskName     string
	Desc         string
	Command      string // template
	ErrorMessage string // template
}

func (t *RemoteSudoTask) Kind() TaskKind      { return TaskRemoteSudo }
func (t *RemoteSudoTask) Name() string        { return t.TaskName }
func (t *RemoteSudoTask) Description() string { return t.Desc }

// SftpCopyTask uploads a local file to the remote host over SFTP.
type SftpCopyTask struct {
	TaskName        string
	Desc            string
	SourcePath      string // template
	DestinationPath string // template
	ErrorMessage    string // template
}

func (t *SftpCopyTask) Kind() TaskKind      { return TaskSftpCopy }
func (t *SftpCopyTask) Name() string        { return t.TaskName }
func (t *SftpCopyTask) Description() string { return t.Desc }

// TaskCatalog maps task name to its declaration.
type TaskCatalog map[string]Task

// Step is a reference to a task plus an ordered list of compensating task
// references to run on failure (spec.md §3, "Step").
type Step struct {
	TaskRef string
	OnFail  []string
}

// Scenario is the immutable, fully-built model of spec.md §3. It owns
// Credentials, Server, a variable Store, a TaskCatalog, and a StepList.
type Scenario struct {
	Credentials Credentials
	Server      Server
	Variables   *vars.Store
	Tasks       TaskCatalog
	Steps       []Step
}

// TaskView and StepView are the UI-facing projections returned by
// tasks_view() and steps_view() (spec.md §6).
type TaskView struct {
	Name        string   `json:"name"`
	Kind        TaskKind `json:"kind"`
	Description string   `json:"description"`
}

type StepView struct {
	Task   string   `json:"task"`
	OnFail []string `json:"on_fail"`
}

// TasksView returns the task catalog for UI display.
func (s *Scenario) TasksView() []TaskView {
	out := make([]TaskView, 0, len(s.Tasks))
	for name, t := range s.Tasks {
		out = append(out, TaskView{Name: name, Kind: t.Kind(), Description: t.Description()})
	}
	return out
}

// StepsView returns the step list for UI display, in execution order.
func (s *Scenario) StepsView() []StepView {
	out := make([]StepView, 0, len(s.Steps))
	for _, st := range s.Steps {
		out = append(out, StepView{Task: st.TaskRef, OnFail: append([]string(nil), st.OnFail...)})
	}
	return out
}
