package tui

import (
	"fmt"
	"math"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/turretctl/internal/sim"
)

const (
	width           = 60
	height          = 22
	historyCapacity = 300
	trailCapacity   = 80
	maxSpeed        = 32
)

// Builder creates a fresh simulator; it is called again on reset.
type Builder func() (*sim.Simulator, error)

type TickMsg time.Time

// Model steps a simulator on a timer and draws the turret, its target and
// the tracking error.
type Model struct {
	title   string
	build   Builder
	sim     *sim.Simulator
	frame   time.Duration
	speed   int
	running bool
	side    bool
	err     error

	last     sim.Sample
	steps    int
	failures int
	clamps   int
	trail    []r3.Vec
	misses   []float64

	canvas *Canvas
}

func NewModel(title string, build Builder) (Model, error) {
	s, err := build()
	if err != nil {
		return Model{}, err
	}
	return Model{
		title:   title,
		build:   build,
		sim:     s,
		frame:   s.Controller().Period(),
		speed:   1,
		running: true,
		trail:   make([]r3.Vec, 0, trailCapacity),
		misses:  make([]float64, 0, historyCapacity),
		canvas:  NewCanvas(width, height),
	}, nil
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(m.frame, func(t time.Time) tea.Msg { return TickMsg(t) })
}

func (m Model) Init() tea.Cmd { return m.tick() }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case " ", "space":
			m.running = !m.running
		case "r":
			m.reset()
		case "v":
			m.side = !m.side
		case "+", "=":
			m.speed = min(m.speed*2, maxSpeed)
		case "-":
			m.speed = max(m.speed/2, 1)
		case "s":
			if !m.running {
				m.advance()
			}
		}
		return m, nil
	case TickMsg:
		if m.running {
			for i := 0; i < m.speed && m.err == nil; i++ {
				m.advance()
			}
		}
		return m, m.tick()
	}
	return m, nil
}

func (m *Model) advance() {
	smp, err := m.sim.Step()
	if err != nil {
		m.err = err
		m.running = false
		return
	}
	m.last = smp
	m.steps++
	if !smp.Solved {
		m.failures++
	}
	if smp.Clamped {
		m.clamps++
	}
	m.trail = append(m.trail, smp.Aim)
	if len(m.trail) > trailCapacity {
		m.trail = m.trail[1:]
	}
	if d := smp.Miss(); finite(d) {
		m.misses = append(m.misses, d)
	}
	if len(m.misses) > historyCapacity {
		m.misses = m.misses[1:]
	}
}

func (m *Model) reset() {
	s, err := m.build()
	if err != nil {
		m.err = err
		return
	}
	m.sim = s
	m.err = nil
	m.last = sim.Sample{}
	m.steps, m.failures, m.clamps = 0, 0, 0
	m.trail = m.trail[:0]
	m.misses = m.misses[:0]
}

// plane picks the two world axes shown: x-y from above, x-z from the side.
func (m Model) plane(v r3.Vec) (float64, float64) {
	if m.side {
		return v.X, v.Z
	}
	return v.X, v.Y
}

func (m Model) draw() {
	c := m.canvas
	c.Clear()
	view := View{Canvas: c, Extent: 0.7}
	if m.side {
		view.CY = 0.3
	}

	// ground line in side view
	if m.side {
		x0, y0 := view.Project(-view.Extent, 0)
		x1, _ := view.Project(view.Extent, 0)
		c.DrawLine(x0, y0, x1, y0)
	}

	for _, p := range m.trail {
		c.Set(view.Project(m.plane(p)))
	}

	if m.steps == 0 {
		return
	}
	pivot := r3.Vec{Z: sim.DefaultGeometry.PanHeight + sim.DefaultGeometry.TiltOffset}
	px, py := view.Project(m.plane(pivot))
	ax, ay := view.Project(m.plane(m.last.Aim))
	c.DrawLine(px, py, ax, ay)
	c.Mark(px, py, '+')
	c.Mark(ax, ay, 'o')
	tx, ty := view.Project(m.plane(m.last.Target))
	c.Mark(tx, ty, 'X')
}

func (m Model) status() string {
	switch {
	case m.err != nil:
		return statusFault.Render("FAULT: " + m.err.Error())
	case !m.running:
		return statusPaused.Render("PAUSED")
	default:
		return statusRunning.Render(fmt.Sprintf("RUNNING x%d", m.speed))
	}
}

func (m Model) View() string {
	m.draw()
	name := "TOP"
	if m.side {
		name = "SIDE"
	}
	canvasView := canvasStyle.Render(headerStyle.Render(name) + "\n" + m.canvas.String())

	var s strings.Builder
	s.WriteString(headerStyle.Render(strings.ToUpper(m.title)) + "\n")
	s.WriteString(m.status() + "\n\n")

	if len(m.misses) > 1 {
		chart := asciigraph.Plot(m.misses, asciigraph.Height(5), asciigraph.Width(34), asciigraph.Caption("miss (m)"))
		s.WriteString(graphStyle.Render(chart) + "\n")
	}

	row := func(label, value string) {
		s.WriteString(labelStyle.Render(label) + valueStyle.Render(value) + "\n")
	}
	q, dq := m.last.Q, m.last.DQ
	row("Time", fmt.Sprintf("%.1fs", m.last.T))
	row("Pan", fmt.Sprintf("%+.3f rad  %+.3f/s", q[0], dq[0]))
	row("Tilt", fmt.Sprintf("%+.3f rad  %+.3f/s", q[1], dq[1]))
	row("Aim", fmt.Sprintf("%.3f m  %+.3f/s", q[2], dq[2]))
	row("Miss", fmt.Sprintf("%.4f m", m.last.Miss()))
	row("Error", fmt.Sprintf("(%+.3f %+.3f %+.3f)", m.last.Error.X, m.last.Error.Y, m.last.Error.Z))
	row("Failures", fmt.Sprintf("%d / %d", m.failures, m.steps))
	row("At floor", fmt.Sprintf("%d", m.clamps))
	row("Trend", Sparkline(lastN(m.misses, 30), 30))

	s.WriteString(helpStyle.Render("SP:Pause  S:Step  R:Reset  V:View\n+/-:Speed  Q:Quit"))

	return lipgloss.JoinHorizontal(lipgloss.Top, canvasView, statsStyle.Render(s.String()))
}

func lastN(v []float64, n int) []float64 {
	if len(v) <= n {
		return v
	}
	return v[len(v)-n:]
}

// Run blocks until the user quits.
func Run(m Model) error {
	_, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
	return err
}

// finite guards plotted values; asciigraph panics on NaN bounds.
func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }
