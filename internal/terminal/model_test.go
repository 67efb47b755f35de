package terminal

import (
	"context"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/eigenbahn/dynix/internal/catalog"
	"github.com/eigenbahn/dynix/internal/catalog/catalogtest"
	"github.com/eigenbahn/dynix/internal/render"
	"github.com/eigenbahn/dynix/internal/screen"
)

func newModel(records int) (Model, *screen.Machine) {
	fake := &catalogtest.Backend{Records: catalogtest.Items(records)}
	sm := screen.New(screen.Options{Menu: []screen.Category{
		{Key: "1", Label: "TITLE Keyword Search", SearchType: catalog.SearchTitle, Backend: fake},
	}})
	r := render.New(render.Options{LibraryName: "Test Library"})
	return New(context.Background(), sm, r, 10*time.Millisecond), sm
}

func typeLine(t *testing.T, m Model, text string) (Model, tea.Cmd) {
	t.Helper()
	var next tea.Model = m
	if text != "" {
		next, _ = next.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(text)})
	}
	next, cmd := next.Update(tea.KeyMsg{Type: tea.KeyEnter})
	return next.(Model), cmd
}

func TestEnterDrivesMachine(t *testing.T) {
	m, sm := newModel(3)

	m, _ = typeLine(t, m, "1")
	if sm.Current().Kind != screen.KindSearchInput {
		t.Fatalf("expected search input, got %s", sm.Current().ID)
	}
	if m.input.Value() != "" {
		t.Errorf("expected input to reset, got %q", m.input.Value())
	}

	m, _ = typeLine(t, m, "title")
	if sm.Current().Kind != screen.KindCounting {
		t.Fatalf("expected counting, got %s", sm.Current().ID)
	}
	if !strings.Contains(m.View(), "3 titles match your search.") {
		t.Errorf("counting screen not drawn:\n%s", m.View())
	}
}

func TestTickAdvancesCounting(t *testing.T) {
	m, sm := newModel(3)
	m, _ = typeLine(t, m, "1")
	m, _ = typeLine(t, m, "title")

	next, cmd := m.Update(tickMsg(time.Now()))
	if cmd == nil {
		t.Fatal("expected the tick to be rescheduled")
	}
	if sm.Current().Kind != screen.KindListing {
		t.Fatalf("expected listing after tick, got %s", sm.Current().ID)
	}
	if !strings.Contains(next.(Model).View(), "Titles 1-3 of 3") {
		t.Error("listing not drawn")
	}
}

func TestQuitFromWelcome(t *testing.T) {
	m, sm := newModel(0)
	_, cmd := typeLine(t, m, "2")
	if !sm.Done() {
		t.Fatal("expected machine to be done")
	}
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("expected tea.QuitMsg")
	}
}

func TestCtrlCQuits(t *testing.T) {
	m, _ := newModel(0)
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("expected tea.QuitMsg")
	}
}

func TestWindowResize(t *testing.T) {
	m, _ := newModel(0)
	next, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	if next.(Model).renderer.Width() != 100 {
		t.Errorf("expected width 100, got %d", next.(Model).renderer.Width())
	}
	if !strings.Contains(next.(Model).View(), "End catalog session") {
		t.Error("welcome menu not drawn")
	}
}
