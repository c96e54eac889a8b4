package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/visionpipe/graph-runtime/pose"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	plotStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

const (
	plotWidth  = 48
	plotHeight = 18
)

type resultMsg pose.Result

type feedDoneMsg struct{ err error }

type viewerModel struct {
	spin     spinner.Model
	latest   *pose.Result
	frames   int
	total    int
	done     bool
	err      error
	termCols int
}

func newViewerModel(total int) *viewerModel {
	s := spinner.New()
	s.Spinner = spinner.Dot

	cols := 80
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		cols = w
	}

	return &viewerModel{spin: s, total: total, termCols: cols}
}

func (m *viewerModel) Init() tea.Cmd {
	return m.spin.Tick
}

func (m *viewerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		if msg.Width > 0 {
			m.termCols = msg.Width
		}

	case resultMsg:
		r := pose.Result(msg)
		m.latest = &r
		m.frames++

	case feedDoneMsg:
		m.done = true
		m.err = msg.err
		if m.err != nil {
			return m, tea.Quit
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m *viewerModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("posegraph"))
	b.WriteString("\n\n")

	if m.err != nil {
		b.WriteString(errorStyle.Render("error: " + m.err.Error()))
		b.WriteString("\n")
		return b.String()
	}

	status := fmt.Sprintf("frame %d/%d", m.frames, m.total)
	if !m.done {
		status = m.spin.View() + " " + status
	} else {
		status += " (done)"
	}
	b.WriteString(infoStyle.Render(status))
	b.WriteString("\n\n")

	if m.latest != nil {
		// Narrow terminals get the numeric summary without the plot.
		if m.termCols >= plotWidth {
			b.WriteString(plotStyle.Render(renderPlot(m.latest)))
			b.WriteString("\n")
		}
		if m.latest.Rect != nil {
			b.WriteString(infoStyle.Render(fmt.Sprintf(
				"roi center=(%.2f, %.2f) size=(%.2f x %.2f) rot=%.2f",
				m.latest.Rect.XCenter, m.latest.Rect.YCenter,
				m.latest.Rect.Width, m.latest.Rect.Height,
				m.latest.Rect.Rotation)))
			b.WriteString("\n")
		}
		b.WriteString(infoStyle.Render(fmt.Sprintf("%d landmarks @ %dus",
			len(m.latest.Landmarks), m.latest.Timestamp)))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(helpStyle.Render("q: quit"))
	b.WriteString("\n")
	return b.String()
}

// renderPlot draws landmarks on a character grid in normalized coordinates.
// Low-visibility points render dimmer.
func renderPlot(r *pose.Result) string {
	grid := make([][]rune, plotHeight)
	for y := range grid {
		grid[y] = []rune(strings.Repeat(".", plotWidth))
	}

	for _, lm := range r.Landmarks {
		x := int(lm.X * float32(plotWidth-1))
		y := int(lm.Y * float32(plotHeight-1))
		if x < 0 || x >= plotWidth || y < 0 || y >= plotHeight {
			continue
		}
		mark := '*'
		if lm.Visibility < 0.5 {
			mark = '+'
		}
		grid[y][x] = mark
	}

	lines := make([]string, plotHeight)
	for y, row := range grid {
		lines[y] = string(row)
	}
	return strings.Join(lines, "\n")
}

// runInteractive renders results live while a background goroutine feeds the
// frames.
func runInteractive(ctx context.Context, p *pose.Pose, files []string, flags runFlags) error {
	prog := tea.NewProgram(newViewerModel(len(files)))

	if err := p.OnResults(ctx, func(r pose.Result) {
		prog.Send(resultMsg(r))
	}); err != nil {
		return err
	}

	go func() {
		for i, file := range files {
			frame, err := readFrame(file, flags.width, flags.height)
			if err != nil {
				prog.Send(feedDoneMsg{err: err})
				return
			}
			frame.Timestamp = frameTimestamp(i, flags.fps)
			if err := p.Send(ctx, frame); err != nil {
				prog.Send(feedDoneMsg{err: err})
				return
			}
		}
		prog.Send(feedDoneMsg{})
	}()

	model, err := prog.Run()
	if err != nil {
		return err
	}
	if vm, ok := model.(*viewerModel); ok && vm.err != nil {
		return vm.err
	}
	return nil
}
