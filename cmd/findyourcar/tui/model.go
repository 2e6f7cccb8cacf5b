// Package tui is the terminal front end for a catalog session.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/WessleyAI/findyourcar/engine/browser"
	"github.com/WessleyAI/findyourcar/engine/domain"
)

// PriceStep is how far one arrow key moves a price bound.
const PriceStep = 5000

// Session is the part of *browser.Session the UI drives.
type Session interface {
	Load(ctx context.Context) error
	Search(ctx context.Context, raw string) error
	UpdatePrice(lo, hi int) domain.PriceRange
	Reset(ctx context.Context) error
	Snapshot() browser.Snapshot
}

type focus int

const (
	focusSearch focus = iota
	focusPrice
)

// opDone reports a finished session operation.
type opDone struct {
	op  string
	err error
}

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	labelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	activeStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	priceStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))
	bannerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	emptyStyle   = lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("244"))
	helpStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	cardTitleCol = lipgloss.NewStyle().Width(34)
	cardSpecCol  = lipgloss.NewStyle().Width(34).Foreground(lipgloss.Color("250"))
)

// Model is the bubbletea model.
type Model struct {
	ctx     context.Context
	session Session
	input   textinput.Model
	spinner spinner.Model
	snap    browser.Snapshot
	focus   focus
	err     error
	height  int
}

// New creates a model. Operations run under ctx.
func New(ctx context.Context, s Session) Model {
	in := textinput.New()
	in.Placeholder = "Search by make or model, e.g. toyota corolla"
	in.CharLimit = 64
	in.Width = 48
	in.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return Model{
		ctx:     ctx,
		session: s,
		input:   in,
		spinner: sp,
		snap:    s.Snapshot(),
	}
}

// Init starts the initial load.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick, m.run("load", m.session.Load))
}

func (m Model) run(op string, f func(context.Context) error) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		return opDone{op: op, err: f(ctx)}
	}
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.height = msg.Height
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		m.snap = m.session.Snapshot()
		return m, cmd

	case opDone:
		m.snap = m.session.Snapshot()
		switch {
		case msg.err == nil:
			m.err = nil
		case errors.Is(msg.err, domain.ErrSearchSuperseded), errors.Is(msg.err, context.Canceled):
		default:
			m.err = fmt.Errorf("%s: %w", msg.op, msg.err)
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "esc":
		return m, tea.Quit
	case "ctrl+r":
		m.err = nil
		m.input.SetValue("")
		return m, m.run("reset", m.session.Reset)
	case "tab", "shift+tab":
		if m.focus == focusSearch {
			m.focus = focusPrice
			m.input.Blur()
		} else {
			m.focus = focusSearch
			m.input.Focus()
		}
		return m, nil
	}

	if m.focus == focusSearch {
		if msg.Type == tea.KeyEnter {
			raw := m.input.Value()
			return m, m.run("search", func(ctx context.Context) error {
				return m.session.Search(ctx, raw)
			})
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}

	pr := m.snap.PriceRange
	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "left":
		pr.Min -= PriceStep
	case "right":
		pr.Min += PriceStep
	case "shift+left":
		pr.Max -= PriceStep
	case "shift+right":
		pr.Max += PriceStep
	default:
		return m, nil
	}
	m.session.UpdatePrice(pr.Min, pr.Max)
	m.snap = m.session.Snapshot()
	return m, nil
}

// View renders the screen.
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Find Your Car"))
	b.WriteString("\n\n")
	b.WriteString(m.input.View())
	b.WriteString("\n\n")

	b.WriteString(titleStyle.Render(m.snap.Title))
	b.WriteString("\n")
	price := labelStyle.Render("Price: ") + m.snap.PriceLabel
	if m.focus == focusPrice {
		price = activeStyle.Render("▸ ") + price
	}
	b.WriteString(price)
	b.WriteString("\n\n")

	if m.snap.Banner != "" {
		b.WriteString(bannerStyle.Render(m.snap.Banner) + "\n")
	}
	if m.err != nil {
		b.WriteString(errorStyle.Render(m.err.Error()) + "\n")
	}

	switch {
	case m.snap.Loading:
		b.WriteString(m.spinner.View() + " Loading…\n")
	case m.snap.Empty:
		b.WriteString(emptyStyle.Render("No cars match your search.") + "\n")
	default:
		m.writeCards(&b)
	}

	b.WriteString("\n")
	b.WriteString(helpStyle.Render("enter search • ctrl+r reset • tab price controls • ←/→ min • shift+←/→ max • esc quit"))
	return b.String()
}

func (m Model) writeCards(b *strings.Builder) {
	cards := m.snap.Cards
	limit := len(cards)
	// Two lines per card plus the header and help rows.
	if m.height > 0 {
		if fit := (m.height - 14) / 2; fit >= 1 && fit < limit {
			limit = fit
		}
	}
	for _, c := range cards[:limit] {
		b.WriteString(cardTitleCol.Render(c.Title) + priceStyle.Render(c.Price) + "\n")
		b.WriteString(cardSpecCol.Render(c.BodyType+" · "+c.Transmission) + labelStyle.Render(c.Mileage) + "\n")
	}
	if limit < len(cards) {
		fmt.Fprintf(b, "…and %d more\n", len(cards)-limit)
	}
	b.WriteString(labelStyle.Render(fmt.Sprintf("%d of %d cars", m.snap.Count, m.snap.Total)) + "\n")
}
