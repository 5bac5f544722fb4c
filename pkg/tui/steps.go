package tui

import (
	"fmt"
	"strings"
)

type stepStatus int

const (
	statusPending stepStatus = iota
	statusCurrent
	statusPassed
	statusFailed
)

type stepInfo struct {
	Name   string
	Status stepStatus
	Error  string
}

// stepsPanel renders the step list with its current execution status.
type stepsPanel struct {
	steps   []stepInfo
	current int
	width   int
	height  int
}

func newStepsPanel() stepsPanel {
	return stepsPanel{current: -1}
}

// SetSteps initializes the step list from the steps_view() result.
func (p *stepsPanel) SetSteps(taskRefs []string) {
	p.steps = make([]stepInfo, len(taskRefs))
	for i, name := range taskRefs {
		p.steps[i] = stepInfo{Name: name, Status: statusPending}
	}
}

func (p *stepsPanel) markStarted(name string) {
	for i := range p.steps {
		if p.steps[i].Name == name {
			p.steps[i].Status = statusCurrent
			p.current = i
			return
		}
	}
}

func (p *stepsPanel) markCompleted(name string) {
	for i := range p.steps {
		if p.steps[i].Name == name {
			p.steps[i].Status = statusPassed
			return
		}
	}
}

func (p *stepsPanel) markFailed(name, detail string) {
	for i := range p.steps {
		if p.steps[i].Name == name {
			p.steps[i].Status = statusFailed
			p.steps[i].Error = detail
			return
		}
	}
}

func (p stepsPanel) View() string {
	var b strings.Builder
	b.WriteString(panelTitle.Render("Steps"))
	b.WriteString("\n")
	for _, s := range p.steps {
		glyph := GlyphPending
		style := stepNormal
		switch s.Status {
		case statusCurrent:
			glyph, style = GlyphCurrent, stepCurrent
		case statusPassed:
			glyph, style = GlyphPassed, stepPassed
		case statusFailed:
			glyph, style = GlyphFailed, stepFailed
		}
		b.WriteString(style.Render(fmt.Sprintf("%s %s", glyph, s.Name)))
		b.WriteString("\n")
	}
	return panelBorder.Width(p.width).Render(b.String())
}
