package tui

import "testing"

func TestOutputPanelAppendCapsAt500Lines(t *testing.T) {
	p := newOutputPanel()
	for i := 0; i < 600; i++ {
		p.Append("line")
	}
	if len(p.lines) != 500 {
		t.Errorf("lines = %d, want 500", len(p.lines))
	}
}

func TestOutputPanelViewShowsTail(t *testing.T) {
	p := newOutputPanel()
	p.height = 5
	for i := 0; i < 10; i++ {
		p.Append("x")
	}
	view := p.View()
	if view == "" {
		t.Fatal("expected a non-empty rendered view")
	}
}
