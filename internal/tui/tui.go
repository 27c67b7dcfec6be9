package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/tatianab/rpg-narrator/internal/campaign"
	"github.com/tatianab/rpg-narrator/internal/engine"
	"github.com/tatianab/rpg-narrator/internal/models"
)

type sessionState int

const (
	stateInputTheme sessionState = iota
	stateLoading
	statePlaying
	stateError
)

// memoryShown caps how many world facts fit in the side panel.
const memoryShown = 8

// Options configure a new game.
type Options struct {
	// SessionID resumes an existing session instead of asking for a theme.
	SessionID  string
	Theme      string
	Difficulty models.Difficulty
	Roster     []models.RosterEntry
}

type model struct {
	state     sessionState
	manager   *campaign.Manager
	opts      Options
	session   models.Session
	textInput textinput.Model
	viewport  viewport.Model
	err       error
	width     int
	height    int
	waiting   bool
	notice    string
}

var (
	userStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#EEEEEE")).
			Background(lipgloss.Color("#5F5F87")).
			Bold(true).
			PaddingLeft(1)

	gameStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888")).
			Italic(true)

	stateStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder(), false, false, false, true).
			BorderForeground(lipgloss.Color("#3C3C3C")).
			PaddingLeft(2).
			Foreground(lipgloss.Color("#AAAAAA"))

	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFA500")).
			Bold(true).
			Underline(true)

	downStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#AA4444")).
			Strikethrough(true)

	combatStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF5555")).
			Bold(true)
)

func newModel(m *campaign.Manager, opts Options) model {
	ti := textinput.New()
	ti.Placeholder = "Describe the world you want to adventure in..."
	ti.Focus()
	ti.CharLimit = 500
	ti.Width = 60

	state := stateInputTheme
	if opts.SessionID != "" || opts.Theme != "" {
		state = stateLoading
	}
	return model{
		state:     state,
		manager:   m,
		opts:      opts,
		textInput: ti,
	}
}

func (m model) Init() tea.Cmd {
	switch {
	case m.opts.SessionID != "":
		return tea.Batch(textinput.Blink, m.loadSession(m.opts.SessionID))
	case m.opts.Theme != "":
		return tea.Batch(textinput.Blink, m.createSession(m.opts.Theme))
	default:
		return textinput.Blink
	}
}

type sessionReadyMsg struct {
	session models.Session
}

type turnProcessedMsg struct {
	result engine.TurnResult
	err    error
}

type errMsg struct {
	err error
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit

		case tea.KeyEnter:
			if m.state == stateInputTheme {
				theme := strings.TrimSpace(m.textInput.Value())
				if theme == "" {
					theme = "classic high fantasy"
				}
				m.state = stateLoading
				return m, m.createSession(theme)
			}
			if m.state == statePlaying {
				// One turn at a time for this session.
				if m.waiting {
					return m, nil
				}
				action := strings.TrimSpace(m.textInput.Value())
				if action == "" {
					return m, nil
				}
				m.textInput.Reset()

				if action == "/quit" {
					return m, tea.Quit
				}
				if action == "/new" {
					m.state = stateInputTheme
					m.session = models.Session{}
					m.notice = ""
					m.textInput.Placeholder = "Describe the world you want to adventure in..."
					return m, nil
				}

				m.waiting = true
				m.notice = ""
				m.viewport.SetContent(m.renderLog(action))
				m.viewport.GotoBottom()
				return m, m.processTurn(action)
			}
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.viewport.Width = m.logWidth()
		m.viewport.Height = msg.Height - 6
		if m.state == statePlaying {
			m.viewport.SetContent(m.renderLog(""))
		}

	case sessionReadyMsg:
		m.session = msg.session
		m.state = statePlaying
		if m.viewport.Width == 0 {
			m.viewport = viewport.New(m.logWidth(), max(m.height-6, 10))
		}
		m.viewport.SetContent(m.renderLog(""))
		m.viewport.GotoBottom()
		m.textInput.Placeholder = "What does the party do?"
		m.textInput.Reset()
		return m, nil

	case turnProcessedMsg:
		m.waiting = false
		if msg.err != nil {
			m.err = msg.err
			m.state = stateError
			return m, nil
		}
		m.session = msg.result.Session
		if msg.result.Degraded() {
			m.notice = msg.result.Narration
		}
		m.viewport.SetContent(m.renderLog(""))
		m.viewport.GotoBottom()
		return m, nil

	case errMsg:
		m.err = msg.err
		m.state = stateError
		return m, nil
	}

	if m.state == stateInputTheme || m.state == statePlaying {
		m.textInput, cmd = m.textInput.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m model) View() string {
	var s string

	switch m.state {
	case stateInputTheme:
		s = fmt.Sprintf(
			"Welcome, adventurers!\n\n%s\n\n%s",
			"What kind of world should the narrator weave?",
			m.textInput.View(),
		)

	case stateLoading:
		s = "\n  The narrator gathers their notes... please wait.\n"

	case statePlaying:
		mainView := lipgloss.JoinHorizontal(lipgloss.Top,
			m.viewport.View(),
			m.renderState(),
		)

		help := "Commands: /new, /quit, or describe what the party does."
		if m.waiting {
			help = "The narrator is thinking..."
		}

		s = lipgloss.JoinVertical(lipgloss.Left,
			mainView,
			"\n"+m.textInput.View(),
			"\n"+helpStyle.Render(help),
		)

	case stateError:
		s = fmt.Sprintf("\n  Error: %v\n\nPress Esc to quit.", m.err)
	}

	return "\n" + s + "\n"
}

func (m model) logWidth() int {
	return int(float64(m.width) * 0.70)
}

func (m model) renderState() string {
	s := m.session

	party := titleStyle.Render("PARTY") + "\n"
	for _, member := range s.Party {
		line := fmt.Sprintf("%s  HP %d  %s", member.Name, member.HP, member.Status)
		if member.HP == 0 {
			line = downStyle.Render(line)
		}
		party += line + "\n"
	}
	party += "\n"

	combat := ""
	if s.InCombat() {
		combat = combatStyle.Render("IN COMBAT") + "\n\n"
	}

	memory := titleStyle.Render("WORLD") + "\n"
	facts := s.WorldMemory
	if len(facts) > memoryShown {
		facts = facts[len(facts)-memoryShown:]
	}
	if len(facts) == 0 {
		memory += "(nothing known yet)"
	}
	for _, fact := range facts {
		memory += "- " + fact + "\n"
	}

	content := party + combat + memory

	stateWidth := int(float64(m.width) * 0.27)
	return stateStyle.Width(stateWidth).Height(m.viewport.Height).Render(content)
}

// renderLog draws the transcript, plus a pending player action while a turn is in flight.
func (m model) renderLog(pending string) string {
	width := m.logWidth()
	var b strings.Builder

	b.WriteString(gameStyle.Bold(true).Render("Theme: "+m.session.Theme) + "\n\n")
	for _, turn := range m.session.Transcript {
		switch turn.Role {
		case models.RoleUser:
			b.WriteString(userStyle.Width(width).Render("> "+turn.Content) + "\n\n")
		default:
			b.WriteString(gameStyle.Width(width).Render(turn.Content) + "\n\n")
		}
	}
	if pending != "" {
		b.WriteString(userStyle.Width(width).Render("> "+pending) + "\n\n")
	}
	if m.notice != "" {
		b.WriteString(helpStyle.Width(width).Render(m.notice) + "\n\n")
	}
	return b.String()
}

func (m model) createSession(theme string) tea.Cmd {
	return func() tea.Msg {
		session, err := m.manager.Create(context.Background(), theme, m.opts.Difficulty, m.opts.Roster)
		if err != nil {
			return errMsg{err}
		}
		return sessionReadyMsg{session}
	}
}

func (m model) loadSession(id string) tea.Cmd {
	return func() tea.Msg {
		session, err := m.manager.Get(context.Background(), id)
		if err != nil {
			return errMsg{err}
		}
		return sessionReadyMsg{session}
	}
}

func (m model) processTurn(action string) tea.Cmd {
	id := m.session.ID
	return func() tea.Msg {
		res, err := m.manager.Play(context.Background(), id, action)
		return turnProcessedMsg{result: res, err: err}
	}
}

// Run starts the interactive game and blocks until the player quits.
func Run(manager *campaign.Manager, opts Options) error {
	p := tea.NewProgram(newModel(manager, opts), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
