package render

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/eigenbahn/dynix/internal/catalog"
	"github.com/eigenbahn/dynix/internal/catalog/catalogtest"
	"github.com/eigenbahn/dynix/internal/screen"
)

func fixedRenderer(seconds bool) *Renderer {
	return New(Options{
		LibraryName:    "Goshen Public Library",
		DisplaySeconds: seconds,
		Now: func() time.Time {
			return time.Date(2026, time.October, 19, 22, 32, 7, 0, time.UTC)
		},
	})
}

func TestHeader(t *testing.T) {
	h := fixedRenderer(false).Header()
	if len(h) != 2 {
		t.Fatalf("expected 2 header lines, got %d", len(h))
	}
	if !strings.HasPrefix(h[0], "  19 OCT 2026") {
		t.Errorf("unexpected date line %q", h[0])
	}
	if !strings.HasSuffix(h[0], "10:32pm  ") {
		t.Errorf("unexpected clock in %q", h[0])
	}
	if len(h[0]) != 80 {
		t.Errorf("expected header to span 80 columns, got %d", len(h[0]))
	}
	if strings.TrimSpace(h[1]) != "Goshen Public Library" {
		t.Errorf("unexpected library line %q", h[1])
	}

	if !strings.Contains(fixedRenderer(true).Header()[0], "10:32:07pm") {
		t.Error("expected seconds in the clock")
	}
}

func machine(records int) (*screen.Machine, *catalogtest.Backend) {
	fake := &catalogtest.Backend{Records: catalogtest.Items(records)}
	m := screen.New(screen.Options{Menu: []screen.Category{
		{Key: "1", Label: "TITLE Keyword Search", SearchType: catalog.SearchTitle, Backend: fake},
	}})
	return m, fake
}

func TestWelcomePage(t *testing.T) {
	m, _ := machine(0)
	p := fixedRenderer(false).Render(m.Frame())
	body := strings.Join(p.Body, "\n")
	if !strings.Contains(body, "1.  TITLE Keyword Search") {
		t.Errorf("menu entry missing:\n%s", body)
	}
	if !strings.Contains(body, "2.  End catalog session") {
		t.Errorf("quit entry missing:\n%s", body)
	}
	if p.Prompt != "Enter your selection (1-2) and press <Return> :" {
		t.Errorf("unexpected prompt %q", p.Prompt)
	}
}

func TestSearchInputPage(t *testing.T) {
	m, _ := machine(0)
	m.Handle(context.Background(), "1")
	p := fixedRenderer(false).Render(m.Frame())
	body := strings.Join(p.Body, "\n")
	for _, want := range []string{"TITLE Keyword Search", "HUCKLEBERRY", "GONE WIND", "COMPUT?"} {
		if !strings.Contains(body, want) {
			t.Errorf("missing %q in:\n%s", want, body)
		}
	}
	if !strings.Contains(p.Commands, "SO=Start Over") {
		t.Errorf("unexpected command bar %q", p.Commands)
	}
}

func TestCountingPage(t *testing.T) {
	m, _ := machine(12)
	ctx := context.Background()
	m.Handle(ctx, "1")
	m.Handle(ctx, "title 1?")
	p := fixedRenderer(false).Render(m.Frame())
	body := strings.Join(p.Body, "\n")
	if !strings.Contains(body, "Your search: title 1?") {
		t.Errorf("query missing:\n%s", body)
	}
	var counts []string
	for _, l := range p.Body {
		if strings.Contains(l, "....") {
			counts = append(counts, l)
		}
	}
	if len(counts) != 2 || !strings.HasSuffix(counts[0], " 12") || !strings.HasSuffix(counts[1], " 4") {
		t.Errorf("unexpected running counts %q", counts)
	}
	if !strings.Contains(body, "4 titles match your search.") {
		t.Errorf("total missing:\n%s", body)
	}
}

func TestListingAndItemPages(t *testing.T) {
	m, _ := machine(3)
	ctx := context.Background()
	r := fixedRenderer(false)
	m.Handle(ctx, "1")
	m.Handle(ctx, "title")
	m.Advance(ctx)

	p := r.Render(m.Frame())
	if !strings.Contains(strings.Join(p.Body, "\n"), "Titles 1-3 of 3") {
		t.Errorf("range line missing:\n%s", strings.Join(p.Body, "\n"))
	}
	if !strings.HasPrefix(p.Body[len(p.Body)-1], "   3. TITLE 3") {
		t.Errorf("unexpected last line %q", p.Body[len(p.Body)-1])
	}
	for _, l := range p.Body[5:] {
		if len(l) > r.Width() {
			t.Errorf("line wider than screen: %q", l)
		}
	}

	m.Handle(ctx, "2")
	p = r.Render(m.Frame())
	body := strings.Join(p.Body, "\n")
	if !strings.Contains(body, "Title 2 of 3") || !strings.Contains(body, "TITLE:") {
		t.Errorf("unexpected item page:\n%s", body)
	}
	if !strings.Contains(p.Commands, "NT=Next Title") {
		t.Errorf("unexpected command bar %q", p.Commands)
	}
}

func TestWrapField(t *testing.T) {
	r := New(Options{Width: 40})
	lines := r.wrapField("SUBJECTS:", "Mississippi River Fiction; Boys Fiction; Runaway children Fiction")
	if len(lines) < 2 {
		t.Fatalf("expected wrapping, got %q", lines)
	}
	for _, l := range lines {
		if len(l) > 40 {
			t.Errorf("line too wide: %q", l)
		}
	}
	if !strings.HasPrefix(lines[0], "    SUBJECTS:") {
		t.Errorf("label missing: %q", lines[0])
	}
}

func TestPageString(t *testing.T) {
	p := Page{Header: []string{"H"}, Body: []string{"B"}, Notice: "N", Prompt: "P :", Commands: "C"}
	if got := p.String(); got != "H\n\nB\n\nN\nC\nP : " {
		t.Errorf("unexpected flattening %q", got)
	}
}
