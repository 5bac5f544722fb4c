package tui

import "strings"

// outputPanel renders the tail of combined step output lines.
type outputPanel struct {
	lines  []string
	width  int
	height int
}

func newOutputPanel() outputPanel {
	return outputPanel{}
}

func (p *outputPanel) Append(line string) {
	p.lines = append(p.lines, line)
	max := 500
	if len(p.lines) > max {
		p.lines = p.lines[len(p.lines)-max:]
	}
}

func (p outputPanel) View() string {
	var b strings.Builder
	b.WriteString(panelTitle.Render("Output"))
	b.WriteString("\n")

	visible := p.lines
	if p.height > 2 && len(visible) > p.height-2 {
		visible = visible[len(visible)-(p.height-2):]
	}
	for _, l := range visible {
		b.WriteString(outputStyle.Render(l))
		b.WriteString("\n")
	}
	return panelBorder.Width(p.width).Render(b.String())
}
