package tui

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ormasoftchile/scenex/pkg/config"
	"github.com/ormasoftchile/scenex/pkg/engine"
	"github.com/ormasoftchile/scenex/pkg/ipc"
)

// Config holds the parameters needed to launch the TUI.
type Config struct {
	ScenarioPath string
	Required     map[string]string // pre-supplied required variable values
}

type serverEventMsg struct {
	Kind engine.EventKind
	Evt  engine.Event
}

type loadedMsg struct {
	tasksView []config.TaskView
	stepsView []config.StepView
	err       error
}

type executeDoneMsg struct{ err error }

type errMsg struct{ err error }

// Model is the top-level Bubble Tea model.
type Model struct {
	steps   stepsPanel
	output  outputPanel
	spinner spinner.Model

	client *ipc.Client
	cfg    Config

	running  bool
	complete bool
	fatalErr string

	width, height int
}

// Run starts the TUI. It spins up an in-process ipc.Server over in-memory
// pipes, so the desktop UI drives the engine through the identical wire
// protocol a separate `scenexctl serve` subprocess would expose.
func Run(cfg Config) error {
	clientR, serverW := io.Pipe()
	serverR, clientW := io.Pipe()

	srv := ipc.NewWithIO(serverR, serverW)
	go func() {
		_ = srv.Run()
		serverW.Close()
	}()

	client := ipc.NewClient(clientR, clientW)
	go client.Listen()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = spinnerStyle

	m := Model{
		steps:   newStepsPanel(),
		output:  newOutputPanel(),
		spinner: sp,
		client:  client,
		cfg:     cfg,
	}

	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.loadConfig, m.listenEvents)
}

func (m Model) loadConfig() tea.Msg {
	raw, err := m.client.LoadConfig(m.cfg.ScenarioPath)
	if err != nil {
		return loadedMsg{err: err}
	}
	var payload struct {
		Tasks []config.TaskView `json:"tasks"`
		Steps []config.StepView `json:"steps"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return loadedMsg{err: err}
	}
	if len(m.cfg.Required) > 0 {
		if err := m.client.SetRequired(m.cfg.Required); err != nil {
			return loadedMsg{err: err}
		}
	}
	return loadedMsg{tasksView: payload.Tasks, stepsView: payload.Steps}
}

func (m Model) listenEvents() tea.Msg {
	evt, ok := <-m.client.Events
	if !ok {
		return nil
	}
	var e engine.Event
	if err := json.Unmarshal(evt.Params, &e); err != nil {
		return errMsg{err: err}
	}
	return serverEventMsg{Kind: e.Kind, Evt: e}
}

func (m Model) execute() tea.Msg {
	return executeDoneMsg{err: m.client.Execute()}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.steps.width = msg.Width / 3
		m.output.width = msg.Width - m.steps.width - 4
		m.output.height = msg.Height - 6
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "enter":
			if !m.running && !m.complete {
				m.running = true
				return m, m.execute
			}
		}
		return m, nil

	case loadedMsg:
		if msg.err != nil {
			m.fatalErr = msg.err.Error()
			return m, nil
		}
		refs := make([]string, 0, len(msg.stepsView))
		for _, s := range msg.stepsView {
			refs = append(refs, s.Task)
		}
		m.steps.SetSteps(refs)
		return m, nil

	case serverEventMsg:
		m.applyEvent(msg.Evt)
		return m, m.listenEvents

	case executeDoneMsg:
		m.running = false
		m.complete = true
		if msg.err != nil {
			m.fatalErr = msg.err.Error()
		}
		return m, nil

	case errMsg:
		m.fatalErr = msg.err.Error()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *Model) applyEvent(e engine.Event) {
	switch e.Kind {
	case engine.EventStepState:
		switch e.Phase {
		case engine.StepStarted:
			m.steps.markStarted(e.StepName)
		case engine.StepProgress:
			switch {
			case e.Command != "":
				m.output.Append(e.Output)
			case e.Progress != nil:
				m.output.Append(fmt.Sprintf("%s: %d/%d bytes", e.StepName, e.Progress.BytesSent, e.Progress.TotalBytes))
			case e.Detail != "":
				m.output.Append(e.Detail)
			}
		case engine.StepCompleted:
			m.steps.markCompleted(e.StepName)
		case engine.StepFailed:
			m.steps.markFailed(e.StepName, e.Detail)
		}
	case engine.EventLogMessage:
		m.output.Append(e.Message)
	}
}

func (m Model) View() string {
	if m.fatalErr != "" {
		return errorStyle.Render("error: "+m.fatalErr) + "\n"
	}

	header := headerStyle.Render("scenex")
	if m.running {
		header += " " + m.spinner.View() + " running"
	} else if m.complete {
		header += " done"
	}

	body := lipgloss.JoinHorizontal(lipgloss.Top, m.steps.View(), m.output.View())
	return header + "\n" + body + "\n"
}
