package flow

import (
	"errors"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	baseStyle = lipgloss.NewStyle().PaddingLeft(2)

	headerStyle = baseStyle.Copy().
			Foreground(lipgloss.Color("#FF69B4")).
			Bold(true)

	searchStyle = baseStyle.Copy().
			Foreground(lipgloss.Color("#00FFFF"))

	normalItemStyle = baseStyle.Copy().
				Foreground(lipgloss.Color("#FFFFFF"))

	selectedItemStyle = baseStyle.Copy().
				Background(lipgloss.Color("#304878")).
				Foreground(lipgloss.Color("#FFFFFF"))

	footerStyle = baseStyle.Copy().
			Foreground(lipgloss.Color("#666666")).
			Italic(true)

	dividerStyle = baseStyle.Copy().
			Foreground(lipgloss.Color("#304878"))
)

// listModel is a searchable, scrollable list prompt — grounded on
// Wraient-pair/pkg/ui/cli.go's bubbletea model, generalized to work
// from this package's Item rather than ui.Pair.
type listModel struct {
	items    []Item
	filtered []Item
	cursor   int
	search   string
	selected string
	quit     bool
}

func (m listModel) Init() tea.Cmd { return nil }

func (m listModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch keyMsg.String() {
	case "ctrl+c", "esc":
		m.quit = true
		return m, tea.Quit
	case "enter":
		if len(m.filtered) > 0 {
			m.selected = m.filtered[m.cursor].Value
			return m, tea.Quit
		}
	case "up":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down":
		if m.cursor < len(m.filtered)-1 {
			m.cursor++
		}
	case "backspace":
		if len(m.search) > 0 {
			m.search = m.search[:len(m.search)-1]
			m.filterItems()
		}
	default:
		if len(keyMsg.String()) == 1 {
			m.search += keyMsg.String()
			m.filterItems()
		}
	}
	return m, nil
}

func (m *listModel) filterItems() {
	m.cursor = 0
	if m.search == "" {
		m.filtered = m.items
		return
	}
	lowered := strings.ToLower(m.search)
	m.filtered = m.filtered[:0]
	for _, item := range m.items {
		if strings.Contains(strings.ToLower(item.Label), lowered) {
			m.filtered = append(m.filtered, item)
		}
	}
}

func (m listModel) View() string {
	var s strings.Builder

	header := lipgloss.JoinHorizontal(lipgloss.Left,
		headerStyle.Render(""), "    ", searchStyle.Render("Search: "+m.search))
	s.WriteString(header + "\n\n")
	s.WriteString(dividerStyle.Render(strings.Repeat("─", 50)) + "\n")

	if len(m.filtered) == 0 {
		s.WriteString(baseStyle.Render("No matches found"))
	} else {
		for i, item := range m.filtered {
			style := normalItemStyle
			if i == m.cursor {
				style = selectedItemStyle
			}
			s.WriteString(style.Render(item.Label) + "\n")
		}
	}

	s.WriteString("\n" + footerStyle.Render("↑/↓ navigate • enter select • esc quit"))
	return s.String()
}

// PresentCLI is a Presenter backed by a searchable bubbletea list.
func PresentCLI(menu *Menu) (string, error) {
	items := make([]Item, 0, len(menu.Items))
	for _, item := range menu.Items {
		if item.Enabled {
			items = append(items, item)
		}
	}
	if len(items) == 0 {
		return "", errors.New("no items to show")
	}

	initial := listModel{items: items, filtered: items}
	p := tea.NewProgram(initial)
	final, err := p.Run()
	if err != nil {
		return "", err
	}

	result := final.(listModel)
	if result.quit {
		return "", errors.New("selection cancelled")
	}
	return result.selected, nil
}
