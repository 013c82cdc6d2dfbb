package catalog

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/term"
	"github.com/jedib0t/go-pretty/v6/table"
)

// ErrNoInput is returned when the input ends, or the menu is dismissed,
// before a choice was made.
var ErrNoInput = errors.New("no selection made")

const (
	invalidChoice     = "Invalid choice. Please try again."
	invalidNumber     = "Invalid input. Please enter a number."
	invalidSubchoice  = "Invalid subcategory number. Please try again."
	cursorMarker      = "> "
	cursorPlaceholder = "  "
)

// Prompt runs the interactive menu on in/out and returns the selected slug.
// A number typed and confirmed with enter picks that entry; enter alone picks
// the highlighted one. Invalid answers are reported and asked again.
func Prompt(in io.Reader, out io.Writer, city string) (string, error) {
	if city == "" {
		city = DefaultCity
	}

	m := newMenu(city)
	var p *tea.Program
	input := in
	if f, ok := in.(*os.File); !ok || !term.IsTerminal(f.Fd()) {
		// bubbletea stops reading at EOF without telling the model
		input = &closeNotifier{r: in, closed: func() { p.Send(inputClosedMsg{}) }}
	}
	p = tea.NewProgram(m, tea.WithInput(input), tea.WithOutput(out))

	final, err := p.Run()
	if errors.Is(err, tea.ErrInterrupted) {
		return "", ErrNoInput
	}
	if err != nil {
		return "", fmt.Errorf("failed to run category menu: %w", err)
	}
	return final.(menu).result()
}

// inputClosedMsg tells the menu that no more keys will arrive.
type inputClosedMsg struct{}

type closeNotifier struct {
	r      io.Reader
	closed func()
}

func (c *closeNotifier) Read(b []byte) (int, error) {
	n, err := c.r.Read(b)
	if errors.Is(err, io.EOF) && n == 0 {
		c.closed()
	}
	return n, err
}

type stage int

const (
	pickCategory stage = iota
	pickSubcategory
)

// menu walks Categories, then the subcategories of the chosen one.
type menu struct {
	city     string
	stage    stage
	category int
	cursor   int
	input    string
	notice   string
	slug     string
	aborted  bool
}

func newMenu(city string) menu {
	return menu{city: city}
}

func (m menu) result() (string, error) {
	if m.slug == "" {
		return "", ErrNoInput
	}
	return m.slug, nil
}

func (m menu) options() int {
	if m.stage == pickCategory {
		return len(Categories)
	}
	return len(Categories[m.category].Subcategories)
}

func (m menu) Init() tea.Cmd {
	return nil
}

func (m menu) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case inputClosedMsg:
		m.aborted = true
		return m, tea.Quit
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyCtrlD, tea.KeyEsc:
			m.aborted = true
			return m, tea.Quit
		case tea.KeyUp:
			if m.cursor > 0 {
				m.cursor--
			}
		case tea.KeyDown:
			if m.cursor < m.options()-1 {
				m.cursor++
			}
		case tea.KeyBackspace:
			if r := []rune(m.input); len(r) > 0 {
				m.input = string(r[:len(r)-1])
			}
		case tea.KeyRunes:
			m.input += string(msg.Runes)
		case tea.KeyEnter, tea.KeyCtrlJ:
			return m.submit()
		}
	}
	return m, nil
}

func (m menu) submit() (tea.Model, tea.Cmd) {
	line := strings.TrimSpace(m.input)
	m.input = ""

	if m.stage == pickCategory {
		n := m.cursor
		if line != "" {
			parsed, err := strconv.Atoi(line)
			if err != nil || parsed < 0 || parsed >= len(Categories) {
				m.notice = invalidChoice
				return m, nil
			}
			n = parsed
		}
		m.notice = ""
		c := Categories[n]
		if len(c.Subcategories) == 0 {
			m.slug = c.Slug
			return m, tea.Quit
		}
		m.stage, m.category, m.cursor = pickSubcategory, n, 0
		return m, nil
	}

	n := m.cursor + 1
	if line != "" {
		parsed, err := strconv.Atoi(line)
		if err != nil {
			m.notice = invalidNumber
			return m, nil
		}
		n = parsed
	}
	slug, err := Resolve(m.category, n)
	if err != nil {
		m.notice = invalidSubchoice
		return m, nil
	}
	m.notice = ""
	m.slug = slug
	return m, tea.Quit
}

func (m menu) View() string {
	if m.aborted {
		return ""
	}
	if m.slug != "" {
		return fmt.Sprintf("Selected: %s\n", m.slug)
	}

	var b strings.Builder
	line := func(i int, label string, n int) {
		marker := cursorPlaceholder
		if i == m.cursor {
			marker = cursorMarker
		}
		fmt.Fprintf(&b, "%s%d - %s\n", marker, n, label)
	}

	if m.stage == pickCategory {
		fmt.Fprintf(&b, "Welcome\nSelect a category for scraping ads from Divar (%s)\n", m.city)
		for i, c := range Categories {
			line(i, c.Label, i)
		}
		fmt.Fprintf(&b, "Enter your choice (0-%d): %s\n", len(Categories)-1, m.input)
	} else {
		c := Categories[m.category]
		fmt.Fprintf(&b, "Subcategories for %s:\n", c.Label)
		for i, s := range c.Subcategories {
			line(i, s.Label, i+1)
		}
		fmt.Fprintf(&b, "Enter subcategory number (1-%d): %s\n", len(c.Subcategories), m.input)
	}
	if m.notice != "" {
		b.WriteString(m.notice + "\n")
	}
	return b.String()
}

// Table renders the catalog with one row per feed.
func Table(city string) table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"#", "Category", "Sub", "Option", "URL"})
	for i, c := range Categories {
		if len(c.Subcategories) == 0 {
			t.AppendRow(table.Row{i, c.Label, "", "", URL(city, c.Slug)})
			continue
		}
		for j, s := range c.Subcategories {
			t.AppendRow(table.Row{i, c.Label, j + 1, s.Label, URL(city, s.Slug)})
		}
		t.AppendSeparator()
	}
	return t
}
