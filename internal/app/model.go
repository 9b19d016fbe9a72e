package app

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/jwulff/mathquiz/internal/bank"
	"github.com/jwulff/mathquiz/internal/config"
	"github.com/jwulff/mathquiz/internal/db"
	"github.com/jwulff/mathquiz/internal/quiz"
	"github.com/jwulff/mathquiz/internal/ui"

	tea "github.com/charmbracelet/bubbletea"
)

// Model is the root bubbletea model for the mathquiz TUI.
type Model struct {
	cfg       *config.Config
	questions []db.Question // seed bank

	// Store
	store    *db.Store
	loading  bool
	storeErr error // fatal; the TUI can only quit

	// Quiz state. View renders from snap, never from the session directly.
	session    *quiz.Session
	snap       quiz.Snapshot
	categories []string
	busy       bool // Start is running in a tea.Cmd; leave the session alone

	// UI state
	cursor int
	width  int
	height int

	// Errors
	errorMessage   string
	errorTransient bool

	// Status
	statusText string
}

// New creates a Model that will open the store at cfg.DBPath and seed it
// with questions.
func New(cfg *config.Config, questions []db.Question) Model {
	return Model{
		cfg:        cfg,
		questions:  questions,
		loading:    true,
		statusText: "Opening question bank...",
	}
}

// Init returns the initial command: open and seed the store.
func (m Model) Init() tea.Cmd {
	return openStoreCmd(m.cfg, m.questions)
}

// Err returns the error that stopped the store from opening, if any.
func (m Model) Err() error {
	return m.storeErr
}

// Close releases the store. Call it after the program exits.
func (m Model) Close() error {
	if m.store == nil {
		return nil
	}
	return m.store.Close()
}

// openStoreCmd opens and seeds the store, then reads the category list and
// the saved selection.
func openStoreCmd(cfg *config.Config, questions []db.Question) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.StoreTimeout)
		defer cancel()

		store, err := bank.Open(ctx, cfg.DBPath, questions)
		if err != nil {
			return StoreErrorMsg{Err: err}
		}
		categories, err := store.Categories(ctx)
		if err != nil {
			store.Close()
			return StoreErrorMsg{Err: err}
		}

		selected, err := store.SelectedCategories(ctx, cfg.DefaultCategories)
		if err != nil {
			log.Printf("read saved selection: %v", err)
			selected = db.OnlyKnown(cfg.DefaultCategories, categories)
		}

		return StoreReadyMsg{
			Store:      store,
			Categories: categories,
			Selected:   selected,
		}
	}
}

// startCmd starts the quiz. It is the only place the session is touched
// outside Update.
func startCmd(session *quiz.Session, timeout time.Duration) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return QuizStartedMsg{Err: session.Start(ctx)}
	}
}

// saveSelectionCmd persists the category selection.
func saveSelectionCmd(store *db.Store, selected []string, timeout time.Duration) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return SelectionSavedMsg{Err: store.SaveSelectedCategories(ctx, selected)}
	}
}

// clearTransientErrorCmd fires after a delay to clear transient errors.
func clearTransientErrorCmd() tea.Cmd {
	return tea.Tick(5*time.Second, func(time.Time) tea.Msg {
		return ClearTransientErrorMsg{}
	})
}

// Update processes messages and returns the updated model and any commands.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case StoreReadyMsg:
		m.store = msg.Store
		m.categories = msg.Categories
		m.loading = false
		m.statusText = ""
		m.session = quiz.NewSession(msg.Store,
			quiz.WithCategories(msg.Selected...),
			quiz.WithLogger(log.Default()),
		)
		m.snap = m.session.Snapshot()
		return m, nil

	case StoreErrorMsg:
		m.loading = false
		m.storeErr = msg.Err
		m.statusText = "Question bank unavailable"
		log.Printf("store: %v", msg.Err)
		return m, nil

	case QuizStartedMsg:
		m.busy = false
		m.statusText = ""
		m.snap = m.session.Snapshot()
		if msg.Err != nil {
			return m, m.showError(msg.Err)
		}
		m.cursor = 0
		return m, nil

	case SelectionSavedMsg:
		if msg.Err != nil {
			return m, m.showError(fmt.Errorf("save selection: %w", msg.Err))
		}
		return m, nil

	case ClearTransientErrorMsg:
		if m.errorTransient {
			m.errorMessage = ""
			m.errorTransient = false
		}
		return m, nil
	}

	return m, nil
}

// showError puts err in the error bar and schedules its removal.
func (m *Model) showError(err error) tea.Cmd {
	m.errorMessage = err.Error()
	m.errorTransient = true
	return clearTransientErrorCmd()
}

// handleKey processes key presses.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	switch key {
	case KeyQuit, KeyQuitUpper, KeyCtrlC:
		return m, tea.Quit
	}

	if m.session == nil || m.busy {
		return m, nil
	}

	switch m.snap.State {
	case quiz.StateCategorySelection:
		return m.handleSelectionKey(key)
	case quiz.StateInProgress:
		return m.handleQuizKey(key)
	case quiz.StateResults:
		if key == KeyRestart || key == KeyEnter {
			return m.restart()
		}
	}
	return m, nil
}

func (m Model) handleSelectionKey(key string) (tea.Model, tea.Cmd) {
	switch key {
	case KeyUp, KeyK:
		if m.cursor > 0 {
			m.cursor--
		}
		return m, nil

	case KeyDown, KeyJ:
		if m.cursor < len(m.categories)-1 {
			m.cursor++
		}
		return m, nil

	case KeySpace:
		if m.cursor >= len(m.categories) {
			return m, nil
		}
		name := m.categories[m.cursor]
		if err := m.session.ToggleCategory(name, !m.isSelected(name)); err != nil {
			return m, m.showError(err)
		}
		m.snap = m.session.Snapshot()
		return m, saveSelectionCmd(m.store, m.snap.SelectedCategories, m.cfg.StoreTimeout)

	case KeyEnter:
		m.busy = true
		m.statusText = "Loading questions..."
		return m, startCmd(m.session, m.cfg.StoreTimeout)
	}
	return m, nil
}

func (m Model) handleQuizKey(key string) (tea.Model, tea.Cmd) {
	cur := m.snap.Current
	if cur == nil {
		return m, nil
	}

	switch key {
	case KeyUp, KeyK:
		if !cur.Answered && m.cursor > 0 {
			m.cursor--
		}
		return m, nil

	case KeyDown, KeyJ:
		if !cur.Answered && m.cursor < len(cur.Choices)-1 {
			m.cursor++
		}
		return m, nil

	case KeyEnter:
		if cur.Answered {
			return m.advance()
		}
		return m.answer(m.cursor)

	case KeyNext:
		if cur.Answered {
			return m.advance()
		}
		return m, nil

	case KeyRestart:
		return m.restart()
	}

	if n, err := strconv.Atoi(key); err == nil && n >= 1 && n <= 9 {
		return m.answer(n - 1)
	}
	return m, nil
}

// answer locks in the i-th displayed choice.
func (m Model) answer(i int) (tea.Model, tea.Cmd) {
	cur := m.snap.Current
	if cur == nil || i < 0 || i >= len(cur.Choices) {
		return m, nil
	}
	if _, err := m.session.SelectAnswer(cur.Choices[i]); err != nil {
		return m, m.showError(err)
	}
	m.cursor = i
	m.snap = m.session.Snapshot()
	return m, nil
}

func (m Model) advance() (tea.Model, tea.Cmd) {
	if err := m.session.Advance(); err != nil {
		return m, m.showError(err)
	}
	m.cursor = 0
	m.snap = m.session.Snapshot()
	return m, nil
}

func (m Model) restart() (tea.Model, tea.Cmd) {
	m.session.Restart()
	m.cursor = 0
	m.snap = m.session.Snapshot()
	return m, nil
}

func (m Model) isSelected(name string) bool {
	for _, c := range m.snap.SelectedCategories {
		if c == name {
			return true
		}
	}
	return false
}

func (m Model) contentLines() int {
	if m.height == 0 {
		return 20
	}
	// Reserve: header(1) + status(1) + divider(2) + error(1) + footer(1)
	reserved := 6
	return max(5, m.height-reserved)
}

// View renders the full TUI.
func (m Model) View() string {
	if m.width == 0 {
		return "Initializing..."
	}

	var sections []string

	sections = append(sections, m.renderHeader())
	sections = append(sections, m.renderStatusBar())
	sections = append(sections, ui.DividerStyle.Render(strings.Repeat("─", m.width)))
	sections = append(sections, m.renderMainContent())
	sections = append(sections, ui.DividerStyle.Render(strings.Repeat("─", m.width)))

	if m.errorMessage != "" {
		sections = append(sections, m.renderErrorBar())
	}

	sections = append(sections, m.renderFooter())

	return strings.Join(sections, "\n")
}

func (m Model) renderHeader() string {
	title := ui.TitleStyle.Render("MATHQUIZ")
	if len(m.snap.SelectedCategories) > 0 && m.snap.State != quiz.StateCategorySelection {
		title += ui.DimStyle.Render(" · " + strings.Join(m.snap.SelectedCategories, ", "))
	}
	return title
}

func (m Model) renderStatusBar() string {
	if m.statusText != "" {
		return ui.StatusStyle.Render(m.statusText)
	}

	switch m.snap.State {
	case quiz.StateInProgress:
		return ui.ScoreStyle.Render(fmt.Sprintf("Question %d/%d", m.snap.Index+1, m.snap.Total)) +
			"  " + ui.ScoreStyle.Render(fmt.Sprintf("Score: %d", m.snap.Score))
	case quiz.StateResults:
		return ui.ScoreStyle.Render("Finished")
	}
	return ui.StatusStyle.Render(fmt.Sprintf("Select categories  %d of %d selected",
		len(m.snap.SelectedCategories), len(m.categories)))
}

func (m Model) renderMainContent() string {
	width := m.width
	height := m.contentLines()

	var lines []string
	switch {
	case m.storeErr != nil:
		lines = []string{
			"",
			ui.ErrorStyle.Render("  Cannot open the question bank."),
			ui.ErrorTextStyle.Render("  " + m.storeErr.Error()),
			ui.DimStyle.Render("  Check QUIZ_DB_PATH and restart."),
		}
	case m.loading:
		lines = []string{"", ui.DimStyle.Render("  Opening question bank...")}
	case m.snap.State == quiz.StateInProgress:
		lines = m.renderQuestion(width)
	case m.snap.State == quiz.StateResults:
		lines = m.renderResults()
	default:
		lines = m.renderCategories(width)
	}

	// Pad to height
	for len(lines) < height {
		lines = append(lines, "")
	}
	if len(lines) > height {
		lines = lines[:height]
	}

	return strings.Join(lines, "\n")
}

func (m Model) renderCategories(width int) []string {
	lines := []string{ui.PanelTitleStyle.Render(fmt.Sprintf("CATEGORIES (%d)", len(m.categories)))}

	if len(m.categories) == 0 {
		lines = append(lines, ui.DimStyle.Render("  No categories in the question bank"))
		return lines
	}

	for i, c := range m.categories {
		box := "[ ]"
		if m.isSelected(c) {
			box = ui.CheckedStyle.Render("[x]")
		}

		var line string
		if i == m.cursor {
			line = ui.SelectedStyle.Render("> ") + box + " " + ui.SelectedStyle.Render(c)
		} else {
			line = "  " + box + " " + c
		}
		lines = append(lines, truncateToWidth(line, width))
	}
	return lines
}

func (m Model) renderQuestion(width int) []string {
	cur := m.snap.Current
	if cur == nil {
		return nil
	}

	lines := []string{ui.CategoryTagStyle.Render("[" + cur.Question.Category + "]")}
	for _, wl := range wrapText(cur.Question.Question, max(10, width-4)) {
		lines = append(lines, ui.PanelTitleStyle.Render("  "+wl))
	}
	lines = append(lines, "")

	for i, choice := range cur.Choices {
		label := fmt.Sprintf("%d. %s", i+1, choice)
		var line string
		switch {
		case cur.Answered && choice == cur.Question.CorrectAnswer:
			line = ui.CorrectStyle.Render("  ✓ " + label)
		case cur.Answered && choice == cur.Chosen:
			line = "  " + ui.IncorrectStyle.Render("✗ "+label)
		case cur.Answered:
			line = ui.DimStyle.Render("    " + label)
		case i == m.cursor:
			line = ui.SelectedStyle.Render("  > " + label)
		default:
			line = "    " + label
		}
		lines = append(lines, truncateToWidth(line, width))
	}

	if cur.Answered {
		lines = append(lines, "")
		if cur.Correct {
			lines = append(lines, ui.CorrectStyle.Render("  Correct!"))
		} else {
			lines = append(lines, ui.ErrorTextStyle.Render("  Incorrect. The answer is "+cur.Question.CorrectAnswer))
		}
	}
	return lines
}

func (m Model) renderResults() []string {
	res := m.snap.Results
	if res == nil {
		return nil
	}
	return []string{
		ui.PanelTitleStyle.Render("RESULTS"),
		"",
		ui.ScoreStyle.Render(fmt.Sprintf("  Your score: %d/%d", res.Score, res.Total)),
		ui.DimStyle.Render(fmt.Sprintf("  %d%% correct", res.Percent())),
	}
}

func (m Model) renderErrorBar() string {
	return ui.ErrorStyle.Render("Error: ") + ui.ErrorTextStyle.Render(m.errorMessage)
}

func (m Model) renderFooter() string {
	var parts []string

	if m.session != nil && !m.busy {
		switch m.snap.State {
		case quiz.StateCategorySelection:
			parts = append(parts, ui.FooterKeyStyle.Render("Space")+ui.FooterDescStyle.Render(" Toggle"))
			parts = append(parts, ui.FooterKeyStyle.Render("j/k")+ui.FooterDescStyle.Render(" Nav"))
			parts = append(parts, ui.FooterKeyStyle.Render("Enter")+ui.FooterDescStyle.Render(" Start"))
		case quiz.StateInProgress:
			if m.snap.Current != nil && m.snap.Current.Answered {
				parts = append(parts, ui.FooterKeyStyle.Render("n/Enter")+ui.FooterDescStyle.Render(" Next"))
			} else {
				parts = append(parts, ui.FooterKeyStyle.Render("1-9")+ui.FooterDescStyle.Render(" Answer"))
				parts = append(parts, ui.FooterKeyStyle.Render("j/k")+ui.FooterDescStyle.Render(" Nav"))
				parts = append(parts, ui.FooterKeyStyle.Render("Enter")+ui.FooterDescStyle.Render(" Select"))
			}
			parts = append(parts, ui.FooterKeyStyle.Render("r")+ui.FooterDescStyle.Render(" Restart"))
		case quiz.StateResults:
			parts = append(parts, ui.FooterKeyStyle.Render("r")+ui.FooterDescStyle.Render(" Play again"))
		}
	}

	parts = append(parts, ui.FooterKeyStyle.Render("q")+ui.FooterDescStyle.Render(" Quit"))

	return strings.Join(parts, "  ")
}

// Helpers

// truncateToWidth cuts s to at most width cells, keeping escape sequences
// intact so styled text is never split mid-sequence.
func truncateToWidth(s string, width int) string {
	if lipgloss.Width(s) <= width {
		return s
	}
	return ansi.Truncate(s, width, "…")
}

func wrapText(text string, width int) []string {
	if width <= 0 {
		return []string{text}
	}

	var lines []string
	for _, paragraph := range strings.Split(text, "\n") {
		var current string
		for _, word := range strings.Fields(paragraph) {
			if current == "" {
				current = word
			} else if len(current)+1+len(word) <= width {
				current += " " + word
			} else {
				lines = append(lines, current)
				current = word
			}
		}
		if current != "" {
			lines = append(lines, current)
		} else {
			lines = append(lines, "")
		}
	}
	if len(lines) == 0 {
		return []string{""}
	}
	return lines
}
