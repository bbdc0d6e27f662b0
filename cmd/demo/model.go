package main

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/kass/go-geogrid/pkg/geogrid"
	"github.com/kass/go-geogrid/pkg/models"
	"github.com/kass/go-geogrid/pkg/tileindex"
)

var (
	// Styles
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FF79C6")).
			Background(lipgloss.Color("#282A36")).
			Padding(0, 1).
			MarginTop(1).
			MarginBottom(1)

	subtitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#8BE9FD"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF5555"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6272A4"))

	statStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFB86C"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#BD93F9")).
			Padding(0, 2).
			MarginTop(1)

	cursorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#282A36")).
			Background(lipgloss.Color("#FF79C6"))

	// Low to high.
	shades = []lipgloss.Style{
		lipgloss.NewStyle().Foreground(lipgloss.Color("#6272A4")),
		lipgloss.NewStyle().Foreground(lipgloss.Color("#8BE9FD")),
		lipgloss.NewStyle().Foreground(lipgloss.Color("#50FA7B")),
		lipgloss.NewStyle().Foreground(lipgloss.Color("#F1FA8C")),
		lipgloss.NewStyle().Foreground(lipgloss.Color("#FFB86C")),
		lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5555")),
	}
)

const (
	emptyCell  = "·"
	filledCell = "█"
	// Lines taken by everything but the map.
	chromeHeight = 16
)

type model struct {
	path     string
	loading  bool
	spinner  spinner.Model
	progress progress.Model
	err      error

	source   string
	grid     *geogrid.Grid
	index    *tileindex.Index
	loadTime time.Duration
	lo, hi   float64

	// Cursor in grid coordinates; row 0 is the southern edge.
	row, col int

	width  int
	height int
}

func initialModel(path string) model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF79C6"))

	return model{
		path:     path,
		loading:  true,
		spinner:  s,
		progress: progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
		width:    80,
		height:   24,
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		loadGrid(m.path),
	)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.progress.Width = min(40, max(10, msg.Width-30))
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}
		if m.grid != nil {
			m.move(msg.String())
		}
		return m, nil

	case spinner.TickMsg:
		if !m.loading {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case gridLoadedMsg:
		m.loading = false
		m.source = msg.source
		m.grid = msg.grid
		m.index = msg.index
		m.loadTime = msg.duration
		m.lo, m.hi = valueRange(msg.grid)
		size := msg.grid.GridSize()
		m.row, m.col = size.Rows/2, size.Cols/2
		return m, nil

	case errMsg:
		m.loading = false
		m.err = msg.err
		return m, nil
	}

	return m, nil
}

func (m *model) move(key string) {
	size := m.grid.GridSize()
	switch key {
	case "up", "k":
		m.row++
	case "down", "j":
		m.row--
	case "left", "h":
		m.col--
	case "right", "l":
		m.col++
	case "home":
		m.row, m.col = 0, 0
	}
	m.row = min(max(m.row, 0), size.Rows-1)
	m.col = min(max(m.col, 0), size.Cols-1)
}

func valueRange(g *geogrid.Grid) (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for v := range g.Values() {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		lo = min(lo, v)
		hi = max(hi, v)
	}
	if lo > hi {
		return 0, 0
	}
	return lo, hi
}

func (m model) shade(v float64) lipgloss.Style {
	if m.hi == m.lo || math.IsNaN(v) {
		return shades[len(shades)-1]
	}
	level := int((v-m.lo)/(m.hi-m.lo)*float64(len(shades)-1) + 0.5)
	return shades[min(max(level, 0), len(shades)-1)]
}

// window returns the first visible index and the visible count along an
// axis of length n, keeping pos inside the window.
func window(pos, n, room int) (start, count int) {
	count = min(n, max(room, 1))
	start = min(max(pos-count/2, 0), n-count)
	return start, count
}

func (m model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("🌍 GeoGrid Viewer"))
	b.WriteString("\n")

	switch {
	case m.err != nil:
		b.WriteString(errorStyle.Render("Error: " + m.err.Error()))
	case m.loading:
		source := m.path
		if source == "" {
			source = "synthetic data"
		}
		b.WriteString(m.spinner.View() + " Loading grid from " + source + "...")
	default:
		b.WriteString(m.renderGrid())
	}

	b.WriteString("\n\n")
	b.WriteString(dimStyle.Render("arrows/hjkl move • home to origin • q quit"))
	return b.String()
}

func (m model) renderGrid() string {
	var b strings.Builder
	g := m.grid
	size := g.GridSize()
	total := size.Cols * size.Rows

	b.WriteString(subtitleStyle.Render(fmt.Sprintf("%s: %dx%d tiles", m.source, size.Cols, size.Rows)))
	b.WriteString(dimStyle.Render(fmt.Sprintf("  loaded in %s", m.loadTime.Round(time.Millisecond))))
	b.WriteString("\n")
	b.WriteString(m.progress.ViewAs(float64(g.Len()) / float64(total)))
	b.WriteString(fmt.Sprintf(" %s of %d tiles populated\n\n", statStyle.Render(fmt.Sprint(g.Len())), total))

	top, rows := window(m.row, size.Rows, m.height-chromeHeight)
	left, cols := window(m.col, size.Cols, m.width-4)
	def := g.Default()

	// North at the top.
	for r := top + rows - 1; r >= top; r-- {
		for c := left; c < left+cols; c++ {
			v := g.Get(g.AnchorOf(models.TileIndex{Row: r, Col: c}))
			switch {
			case r == m.row && c == m.col:
				b.WriteString(cursorStyle.Render(filledCell))
			case v == def:
				b.WriteString(dimStyle.Render(emptyCell))
			default:
				b.WriteString(m.shade(v).Render(filledCell))
			}
		}
		b.WriteString("\n")
	}

	b.WriteString(boxStyle.Render(m.status()))
	return b.String()
}

func (m model) status() string {
	g := m.grid
	idx := models.TileIndex{Row: m.row, Col: m.col}
	anchor := g.AnchorOf(idx)
	v := g.Get(anchor)

	lines := []string{
		fmt.Sprintf("tile   row %d col %d", idx.Row, idx.Col),
		fmt.Sprintf("anchor %s", anchor),
		fmt.Sprintf("value  %s", statStyle.Render(fmt.Sprintf("%g", v))),
	}
	if v == g.Default() && m.index != nil {
		latSize, lonSize := g.TileSize()
		center := models.Location{Lat: anchor.Lat + latSize/2, Lon: anchor.Lon + lonSize/2}
		if near := m.index.Nearest(center, 1); len(near) > 0 {
			lines = append(lines, fmt.Sprintf("nearest populated %s = %g", near[0].Anchor, near[0].Value))
		} else {
			lines = append(lines, "grid is empty")
		}
	}
	return strings.Join(lines, "\n")
}
