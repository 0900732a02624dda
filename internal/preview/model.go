// Package preview is a terminal view of a running controller: mood, model,
// caption and the strongest expression weights, refreshed every frame, with
// keys to push the avatar through a conversation by hand.
package preview

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/fulopkrisztian-prog/Mia/internal/controller"
	"github.com/fulopkrisztian-prog/Mia/internal/logging"
	"github.com/fulopkrisztian-prog/Mia/internal/mood"
	"github.com/fulopkrisztian-prog/Mia/internal/rig"
)

const (
	barWidth = 20
	logLines = 4
)

var sampleReplies = []string{
	"Sure, here is what I found.",
	"That makes sense to me.",
	"Let me explain it step by step.",
}

const alarmReply = "Careful, that could be a real emergency."

// Controller is what the preview drives.
type Controller interface {
	SetMood(m mood.Mood) bool
	SetBusy(busy bool)
	RequestDispatched()
	ResponseArrived(text string) mood.Mood
	Frame(dt time.Duration) controller.FrameState
	Snapshot() controller.Snapshot
}

// LogSource supplies recent log entries. Console output is off while the
// preview owns the terminal, so this is where warnings show up.
type LogSource interface {
	GetHistory(limit int) []logging.LogEntry
	GetLogPath() string
}

type tickMsg time.Time

type Model struct {
	ctrl     Controller
	interval time.Duration
	keys     KeyMap
	help     help.Model
	styles   styles
	logs     LogSource

	width   int
	last    time.Time
	frame   controller.FrameState
	snap    controller.Snapshot
	replies int
	recent  []logging.LogEntry
}

func NewModel(ctrl Controller, fps int) Model {
	if fps <= 0 {
		fps = 30
	}
	return Model{
		ctrl:     ctrl,
		interval: time.Second / time.Duration(fps),
		keys:     DefaultKeyMap(),
		help:     help.New(),
		styles:   defaultStyles(),
		snap:     ctrl.Snapshot(),
	}
}

// WithLogs shows the last few entries from src under the expression bars.
func (m Model) WithLogs(src LogSource) Model {
	m.logs = src
	return m
}

// Init implements tea.Model
func (m Model) Init() tea.Cmd {
	return m.tick()
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Update implements tea.Model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyMsg(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width

	case tickMsg:
		now := time.Time(msg)
		dt := m.interval
		if !m.last.IsZero() {
			dt = now.Sub(m.last)
		}
		m.last = now
		m.frame = m.ctrl.Frame(dt)
		m.snap = m.ctrl.Snapshot()
		if m.logs != nil {
			m.recent = m.logs.GetHistory(logLines)
		}
		return m, m.tick()
	}
	return m, nil
}

func (m Model) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
	case key.Matches(msg, m.keys.Idle):
		m.ctrl.SetMood(mood.Idle)
	case key.Matches(msg, m.keys.Thinking):
		m.ctrl.SetMood(mood.Thinking)
	case key.Matches(msg, m.keys.Speaking):
		m.ctrl.SetMood(mood.Speaking)
	case key.Matches(msg, m.keys.Scared):
		m.ctrl.SetMood(mood.Scared)
	case key.Matches(msg, m.keys.Busy):
		m.ctrl.SetBusy(!m.ctrl.Snapshot().Busy)
	case key.Matches(msg, m.keys.Request):
		m.ctrl.RequestDispatched()
	case key.Matches(msg, m.keys.Reply):
		m.ctrl.ResponseArrived(sampleReplies[m.replies%len(sampleReplies)])
		m.replies++
	case key.Matches(msg, m.keys.Alarm):
		m.ctrl.ResponseArrived(alarmReply)
	default:
		return m, nil
	}
	m.snap = m.ctrl.Snapshot()
	return m, nil
}

// View implements tea.Model
func (m Model) View() string {
	s := m.styles
	var b strings.Builder

	b.WriteString(s.title.Render("Mia avatar preview"))
	b.WriteString("\n\n")

	badge := s.moods[m.snap.Mood].Render(strings.ToUpper(string(m.snap.Mood)))
	b.WriteString(badge)
	if m.snap.Busy {
		b.WriteString("  " + s.busy.Render("busy"))
	}
	b.WriteString("\n\n")

	b.WriteString(m.row("model", m.modelLine()))
	b.WriteString(m.row("loads", fmt.Sprintf("%d attached · %d discarded · %d failed",
		m.snap.Loads.Attached, m.snap.Loads.Discarded, m.snap.Loads.Failed)))
	b.WriteString(m.row("activity", fmt.Sprintf("%d captions · %d blinks · %d pulses · %d timers",
		m.snap.Captions, m.snap.Blinks, m.snap.Pulses, m.snap.Timers)))
	if pose := m.frame.Model; pose != nil {
		if head, ok := pose.Bones[rig.BoneHead]; ok {
			b.WriteString(m.row("head", fmt.Sprintf("yaw %+.2f  pitch %+.2f", head.Euler[1], head.Euler[0])))
		}
		b.WriteString(m.row("bob", fmt.Sprintf("%+.3f", pose.Position[1])))
	}
	b.WriteString("\n")

	b.WriteString(s.caption.Render(m.captionText()))
	b.WriteString("\n\n")

	for _, line := range m.expressionBars() {
		b.WriteString(line + "\n")
	}
	if m.logs != nil {
		b.WriteString("\n")
		b.WriteString(m.logPanel())
	}
	b.WriteString("\n")
	b.WriteString(s.muted.Render(fmt.Sprintf("frame #%d  t=%.1fs", m.frame.Seq, m.frame.Elapsed)))
	b.WriteString("\n")
	b.WriteString(m.help.View(m.keys))

	return s.panel.Render(b.String())
}

func (m Model) row(label, value string) string {
	return lipgloss.JoinHorizontal(lipgloss.Top, m.styles.label.Render(label), m.styles.value.Render(value)) + "\n"
}

func (m Model) modelLine() string {
	switch {
	case m.snap.Model != "" && m.snap.Loading != "":
		return fmt.Sprintf("%s (%s), loading %s", m.snap.Model, m.snap.Active, m.snap.Loading)
	case m.snap.Model != "":
		return fmt.Sprintf("%s (%s)", m.snap.Model, m.snap.Active)
	case m.snap.Loading != "":
		return "loading " + string(m.snap.Loading)
	}
	return "none"
}

func (m Model) captionText() string {
	c := m.frame.Caption
	if !c.Visible {
		return m.styles.muted.Render("…")
	}
	if c.Typing {
		return c.Text + "▌"
	}
	return c.Text
}

// expressionBars renders every non-zero expression weight, strongest first.
func (m Model) expressionBars() []string {
	pose := m.frame.Model
	if pose == nil {
		return []string{m.styles.muted.Render("no model attached")}
	}
	names := make([]string, 0, len(pose.Expressions))
	for name, w := range pose.Expressions {
		if w > 0 {
			names = append(names, name)
		}
	}
	sort.Slice(names, func(i, j int) bool {
		wi, wj := pose.Expressions[names[i]], pose.Expressions[names[j]]
		if wi != wj {
			return wi > wj
		}
		return names[i] < names[j]
	})

	lines := make([]string, 0, len(names))
	for _, name := range names {
		w := pose.Expressions[name]
		lines = append(lines, fmt.Sprintf("%s %s %.2f",
			m.styles.label.Render(name), m.styles.bar.Render(bar(w)), w))
	}
	if len(lines) == 0 {
		lines = append(lines, m.styles.muted.Render("resting face"))
	}
	return lines
}

func (m Model) logPanel() string {
	var b strings.Builder
	if len(m.recent) == 0 {
		b.WriteString(m.styles.muted.Render("no log entries yet") + "\n")
	}
	for _, e := range m.recent {
		line := fmt.Sprintf("%-5s %s", e.Level, e.Message)
		if e.Component != "" {
			line += " [" + e.Component + "]"
		}
		b.WriteString(line + "\n")
	}
	if path := m.logs.GetLogPath(); path != "" {
		b.WriteString(m.styles.muted.Render("full log: "+path) + "\n")
	}
	return b.String()
}

func bar(w float32) string {
	if w < 0 {
		w = 0
	}
	if w > 1 {
		w = 1
	}
	filled := int(w*barWidth + 0.5)
	return strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled)
}
