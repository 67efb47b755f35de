// Package render lays out catalog screens as plain text lines: the dated
// header, the screen body, a notice line, the input prompt and the command
// bar. Drivers decide how to style and place each part.
package render

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"

	"github.com/eigenbahn/dynix/internal/catalog"
	"github.com/eigenbahn/dynix/internal/screen"
	"github.com/eigenbahn/dynix/internal/session"
)

const defaultWidth = 80

var examples = []string{
	"HUCKLEBERRY (Single word search)",
	"GONE WIND (Multiple word search)",
	"COMPUT? (For words starting with COMPUT...)",
}

// Page is one rendered screen.
type Page struct {
	Header   []string
	Body     []string
	Notice   string
	Prompt   string
	Commands string
}

type Options struct {
	LibraryName    string
	DisplaySeconds bool
	Width          int
	Now            func() time.Time
}

type Renderer struct {
	library string
	seconds bool
	width   int
	now     func() time.Time
}

func New(opts Options) *Renderer {
	if opts.Width <= 0 {
		opts.Width = defaultWidth
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Renderer{
		library: opts.LibraryName,
		seconds: opts.DisplaySeconds,
		width:   opts.Width,
		now:     opts.Now,
	}
}

// SetWidth adapts the layout to a resized terminal.
func (r *Renderer) SetWidth(w int) {
	if w > 0 {
		r.width = w
	}
}

func (r *Renderer) Width() int { return r.width }

func (r *Renderer) Render(f screen.Frame) Page {
	p := Page{Header: r.Header(), Notice: f.Notice}
	st := f.State
	switch st.Kind {
	case screen.KindWelcome:
		p.Body = r.welcome(f)
		p.Prompt = fmt.Sprintf("Enter your selection (1-%s) and press <Return> :", f.QuitKey)
		p.Commands = "Commands: ?=Help"
	case screen.KindSearchInput:
		p.Body = r.searchInput(st)
		p.Prompt = "Enter search terms and press <Return> :"
		p.Commands = "Commands: SO=Start Over, B=Back, ?=Help"
	case screen.KindCounting:
		p.Body = r.counting(st)
		p.Prompt = "Enter command and press <Return> :"
		p.Commands = "Commands: D=Display Titles, SO=Start Over, ?=Help"
	case screen.KindListing:
		p.Body = r.listing(st)
		p.Prompt = "Enter line number to see a title :"
		p.Commands = "Commands: B=Back, SO=Start Over, ?=Help"
	case screen.KindItem:
		p.Body = r.item(st)
		p.Prompt = "Enter command and press <Return> :"
		p.Commands = "Commands: PT=Previous Title, NT=Next Title, B=Back, SO=Start Over"
	}
	return p
}

// String flattens a page for line-oriented output.
func (p Page) String() string {
	var b strings.Builder
	for _, l := range p.Header {
		b.WriteString(l)
		b.WriteByte('\n')
	}
	b.WriteByte('\n')
	for _, l := range p.Body {
		b.WriteString(l)
		b.WriteByte('\n')
	}
	b.WriteByte('\n')
	if p.Notice != "" {
		b.WriteString(p.Notice)
		b.WriteByte('\n')
	}
	b.WriteString(p.Commands)
	b.WriteByte('\n')
	b.WriteString(p.Prompt)
	b.WriteByte(' ')
	return b.String()
}

// Header renders the date and clock line followed by the centered library
// name.
func (r *Renderer) Header() []string {
	now := r.now()
	date := strings.ToUpper(now.Format("02 Jan 2006"))
	layout := "03:04pm"
	if r.seconds {
		layout = "03:04:05pm"
	}
	clock := now.Format(layout)
	gap := r.width - 2 - runewidth.StringWidth(date) - runewidth.StringWidth(clock) - 2
	if gap < 1 {
		gap = 1
	}
	return []string{
		"  " + date + strings.Repeat(" ", gap) + clock + "  ",
		r.center(r.library),
	}
}

func (r *Renderer) welcome(f screen.Frame) []string {
	lines := []string{
		"",
		r.center("Welcome to the " + strings.ToUpper(r.library) + " online catalog"),
		"",
	}
	for _, c := range f.Menu {
		lines = append(lines, menuLine(c.Key, c.Label))
	}
	lines = append(lines, menuLine(f.QuitKey, "End catalog session"))
	return lines
}

func menuLine(key, label string) string {
	sep := "  "
	if len(key) > 1 {
		sep = " "
	}
	return strings.Repeat(" ", 24) + key + "." + sep + label
}

func (r *Renderer) searchInput(st *screen.State) []string {
	lines := []string{r.center(st.Category.Label), "", "", ""}
	lines = append(lines, "    Examples:")
	for _, e := range examples {
		lines = append(lines, strings.Repeat(" ", 15)+e, "")
	}
	return lines
}

func (r *Renderer) counting(st *screen.State) []string {
	s := st.Session
	lines := []string{
		r.center(st.Category.Label),
		"",
		"    Your search: " + s.Query().Raw,
		"",
		"    Searching:",
	}
	for _, tc := range s.Counts() {
		lines = append(lines, r.leader("      "+tc.Term, strconv.Itoa(tc.Count)))
	}
	lines = append(lines, "")
	switch s.Total() {
	case 0:
		lines = append(lines, "    No titles match your search.")
	case 1:
		lines = append(lines, "    1 title matches your search.")
	default:
		lines = append(lines, fmt.Sprintf("    %d titles match your search.", s.Total()))
	}
	return lines
}

func (r *Renderer) listing(st *screen.State) []string {
	s := st.Session
	results := s.Results()
	shown := len(results)
	if s.Total() < shown {
		shown = s.Total()
	}
	lines := []string{
		r.center(st.Category.Label),
		"",
		fmt.Sprintf("    Your search: %s", s.Query().Raw),
		fmt.Sprintf("    Titles 1-%d of %d", shown, s.Total()),
		"",
	}
	if shown == 0 {
		return append(lines, "    No titles match your search.")
	}
	for i, it := range results[:shown] {
		lines = append(lines, r.listLine(i+1, it))
	}
	return lines
}

func (r *Renderer) listLine(n int, it catalog.Item) string {
	num := fmt.Sprintf("%4d. ", n)
	year := "  " + it.PubDate
	author := ""
	if len(it.Authors) > 0 {
		author = " / " + it.Authors[0]
	}
	room := r.width - runewidth.StringWidth(num) - runewidth.StringWidth(year) - 1
	text := runewidth.Truncate(it.Title+author, room, "...")
	return num + runewidth.FillRight(text, room) + year
}

func (r *Renderer) item(st *screen.State) []string {
	s := st.Session
	it, ok := s.Current()
	if !ok {
		return nil
	}
	lines := []string{
		r.center(fmt.Sprintf("Title %d of %d", s.Cursor(), listed(s))),
		"",
	}
	field := func(label, value string) {
		if value == "" {
			return
		}
		lines = append(lines, r.wrapField(label, value)...)
	}
	field("TITLE:", it.Title)
	field("AUTHOR:", strings.Join(it.Authors, "; "))
	field("PUBLISHER:", strings.Join(it.Publishers, "; "))
	field("PUB DATE:", it.PubDate)
	field("SUBJECTS:", strings.Join(it.Subjects, "; "))
	field("SERIES:", strings.Join(it.Series, "; "))
	for _, k := range []string{"ISBN", "LCCN"} {
		field(k+":", it.Identifiers[k])
	}
	field("ITEM ID:", it.ID)
	return lines
}

// wrapField lays a labelled value out over as many lines as it needs.
func (r *Renderer) wrapField(label, value string) []string {
	const indent = 16
	prefix := "    " + runewidth.FillRight(label, indent-4)
	room := r.width - indent - 1
	if room < 10 {
		room = 10
	}
	var lines []string
	line := ""
	for _, word := range strings.Fields(value) {
		if line != "" && runewidth.StringWidth(line)+1+runewidth.StringWidth(word) > room {
			lines = append(lines, prefix+line)
			prefix = strings.Repeat(" ", indent)
			line = ""
		}
		if line != "" {
			line += " "
		}
		line += runewidth.Truncate(word, room, "...")
	}
	return append(lines, prefix+line)
}

func (r *Renderer) leader(left, right string) string {
	dots := r.width/2 - runewidth.StringWidth(left) - runewidth.StringWidth(right) - 2
	if dots < 3 {
		dots = 3
	}
	return left + " " + strings.Repeat(".", dots) + " " + right
}

func (r *Renderer) center(s string) string {
	w := runewidth.StringWidth(s)
	if w >= r.width {
		return runewidth.Truncate(s, r.width, "")
	}
	return strings.Repeat(" ", (r.width-w)/2) + s
}

func listed(s *session.Session) int {
	n := len(s.Results())
	if s.Total() < n {
		n = s.Total()
	}
	return n
}
