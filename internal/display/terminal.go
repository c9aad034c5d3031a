package display

import (
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"barviz/internal/render"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/harmonica"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5")).
			Background(lipgloss.Color("#25A065")).
			Padding(0, 1).
			Bold(true)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5"))

	barStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#25A065"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF5F5F")).
			Bold(true)
)

// barChars holds eighth-block glyphs from empty to full.
var barChars = []rune(" ▁▂▃▄▅▆▇█")

// Spring settings for bar smoothing.
const (
	springFrequency = 10.0
	springDamping   = 0.7
)

// headerRows is the space taken by the title and help lines.
const headerRows = 4

type keyMap struct {
	Quit key.Binding
}

var keys = keyMap{
	Quit: key.NewBinding(key.WithKeys("q", "ctrl+c", "esc"), key.WithHelp("q", "quit")),
}

type initMsg struct {
	bands []float64
	cal   render.Calibration
}

type bandsMsg struct {
	bands []float64
}

type failMsg struct {
	err error
}

// springField animates each bar towards its latest value.
type springField struct {
	spring harmonica.Spring
	pos    []float64
	vel    []float64
}

func newSpringField(interval time.Duration) springField {
	fps := int(time.Second / interval)
	if fps < 1 {
		fps = 1
	}
	return springField{spring: harmonica.NewSpring(harmonica.FPS(fps), springFrequency, springDamping)}
}

func (s *springField) reset(values []float64) {
	s.pos = slices.Clone(values)
	s.vel = make([]float64, len(values))
}

func (s *springField) step(i int, target float64) float64 {
	p, v := s.spring.Update(s.pos[i], s.vel[i], target)
	s.pos[i] = p
	s.vel[i] = v
	return math.Max(p, 0)
}

// BarsModel is the Bubble Tea model that draws one bar per band.
type BarsModel struct {
	title     string
	cal       render.Calibration
	shown     []float64
	smoothing bool
	springs   springField
	ticks     uint64

	width  int
	height int
	ready  bool
	err    error

	onQuit func()
}

// NewBarsModel creates a model. When smoothing is set, bars spring towards
// each new value at the loop's interval instead of jumping.
func NewBarsModel(title string, interval time.Duration, smoothing bool, onQuit func()) BarsModel {
	if interval <= 0 {
		interval = render.DefaultInterval
	}
	return BarsModel{
		title:     title,
		smoothing: smoothing,
		springs:   newSpringField(interval),
		onQuit:    onQuit,
	}
}

// Init implements tea.Model.
func (m BarsModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m BarsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true

	case initMsg:
		m.cal = msg.cal
		m.shown = slices.Clone(msg.bands)
		m.springs.reset(msg.bands)
		m.ticks = 1

	case bandsMsg:
		if len(msg.bands) != len(m.shown) {
			m.shown = make([]float64, len(msg.bands))
			m.springs.reset(m.shown)
		}
		for i, v := range msg.bands {
			if m.smoothing {
				m.shown[i] = m.springs.step(i, v)
			} else {
				m.shown[i] = v
			}
		}
		m.ticks++

	case failMsg:
		m.err = msg.err

	case tea.KeyMsg:
		if key.Matches(msg, keys.Quit) {
			if m.onQuit != nil {
				m.onQuit()
			}
			return m, tea.Quit
		}
	}

	return m, nil
}

// View implements tea.Model.
func (m BarsModel) View() string {
	if !m.ready {
		return "Initializing..."
	}

	title := titleStyle.Render(m.title)
	if m.err != nil {
		return fmt.Sprintf("%s\n\n%s\n\nPress q to exit.", title, errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
	}
	if m.shown == nil {
		return fmt.Sprintf("%s\n\nCalibrating...", title)
	}

	rows := max(m.height-headerRows, 1)
	colWidth := 1
	if n := len(m.shown); n > 0 {
		colWidth = max((m.width-2)/n, 1)
	}

	help := infoStyle.Render(fmt.Sprintf("max height %.3g • tick %d • q: Quit", m.cal.MaxHeight, m.ticks))
	return fmt.Sprintf("%s\n\n%s\n%s", title, barStyle.Render(renderBars(m.shown, m.cal.MaxHeight, rows, colWidth)), help)
}

// renderBars draws values as vertical bars scaled so maxHeight fills rows.
// Values above maxHeight are clipped to a full column. Each bar is colWidth
// cells wide including a one-cell gap when colWidth > 1.
func renderBars(values []float64, maxHeight float64, rows, colWidth int) string {
	if rows < 1 {
		rows = 1
	}
	gap := 0
	if colWidth > 1 {
		gap = 1
	}
	full := len(barChars) - 1

	lines := make([]string, rows)
	for row := range rows {
		var line strings.Builder
		rowFromBottom := float64(rows - 1 - row)
		for b, v := range values {
			if b > 0 && gap > 0 {
				line.WriteByte(' ')
			}
			level := 0.0
			if maxHeight > 0 && v > 0 {
				level = math.Min(v/maxHeight, 1) * float64(rows)
			}
			idx := 0
			if level >= rowFromBottom+1 {
				idx = full
			} else if level > rowFromBottom {
				idx = int((level - rowFromBottom) * float64(full))
			}
			ch := barChars[idx]
			for range colWidth - gap {
				line.WriteRune(ch)
			}
		}
		lines[row] = line.String()
	}
	return strings.Join(lines, "\n")
}

// Terminal shows band vectors as bars in the terminal. It satisfies
// render.Display by forwarding each call to a running Bubble Tea program.
type Terminal struct {
	program *tea.Program
}

// NewTerminal creates the display. onQuit runs when the user presses q and
// should cancel the session. Call Run to take over the terminal.
func NewTerminal(model BarsModel, opts ...tea.ProgramOption) *Terminal {
	if len(opts) == 0 {
		opts = []tea.ProgramOption{tea.WithAltScreen()}
	}
	return &Terminal{program: tea.NewProgram(model, opts...)}
}

// Run blocks until the user quits or Quit is called.
func (t *Terminal) Run() error {
	_, err := t.program.Run()
	return err
}

// Quit asks the program to exit.
func (t *Terminal) Quit() {
	t.program.Quit()
}

// Init forwards the first vector and the calibration.
func (t *Terminal) Init(bands []float64, cal render.Calibration) error {
	t.program.Send(initMsg{bands: slices.Clone(bands), cal: cal})
	return nil
}

// Update forwards a tick's vector.
func (t *Terminal) Update(bands []float64) error {
	t.program.Send(bandsMsg{bands: slices.Clone(bands)})
	return nil
}

// Fail shows err until the user quits.
func (t *Terminal) Fail(err error) {
	t.program.Send(failMsg{err: err})
}

var _ render.Display = (*Terminal)(nil)
