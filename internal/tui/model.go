package tui

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/cjeanneret/SnapGo/internal/debug"
	"github.com/cjeanneret/SnapGo/internal/hw/camera"
	"github.com/cjeanneret/SnapGo/internal/logic/session"
)

const (
	refreshEvery   = 500 * time.Millisecond
	noticeDuration = 2500 * time.Millisecond
	sideEffectWait = 2 * time.Minute
)

// Session is the part of the capture controller driven by the screen.
type Session interface {
	Start(ctx context.Context) error
	State() session.State
	Capture(ctx context.Context) (*session.CaptureResult, error)
	SwitchLens() (session.State, error)
	ToggleFlash() (session.State, error)
	Dismiss(ctx context.Context) error
	Frame(ctx context.Context) ([]byte, error)
}

// ChanNotifier forwards notices to the screen. Sends never block; a full
// buffer drops the notice.
type ChanNotifier chan session.Notice

// NewChanNotifier creates a notifier with a small buffer.
func NewChanNotifier() ChanNotifier {
	return make(ChanNotifier, 8)
}

func (c ChanNotifier) Notify(n session.Notice) {
	select {
	case c <- n:
	default:
		debug.Verbose("Notice dropped: %s", n.Message)
	}
}

// Bubble Tea message types

type startedMsg struct{ err error }

type tickMsg time.Time

type frameMsg struct {
	ascii string
	err   error
}

type captureDoneMsg struct {
	result *session.CaptureResult
	err    error
}

type sideEffectsDoneMsg struct{ err error }

type dismissedMsg struct{ err error }

type noticeMsg session.Notice

type noticeExpiredMsg struct{ seq int }

// Model is the camera screen.
type Model struct {
	sess    Session
	notices ChanNotifier
	keys    KeyMap

	width  int
	height int

	state    session.State
	frame    string
	fetching bool
	busy     bool // capture or dismiss call in flight

	notice      string
	noticeLevel string
	noticeSeq   int
}

// New creates the screen for a session that has not been started yet.
// notices may be nil.
func New(sess Session, notices ChanNotifier) Model {
	return Model{
		sess:    sess,
		notices: notices,
		keys:    DefaultKeyMap(),
		width:   64,
		height:  24,
	}
}

// Init starts the session and the refresh loop.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.startCmd(), tickCmd(), m.waitForNotice())
}

func (m Model) startCmd() tea.Cmd {
	sess := m.sess
	return func() tea.Msg {
		return startedMsg{err: sess.Start(context.Background())}
	}
}

func tickCmd() tea.Cmd {
	return tea.Tick(refreshEvery, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m Model) waitForNotice() tea.Cmd {
	if m.notices == nil {
		return nil
	}
	ch := m.notices
	return func() tea.Msg {
		n, ok := <-ch
		if !ok {
			return nil
		}
		return noticeMsg(n)
	}
}

// frameSize is the ASCII frame size, leaving room for the control bar,
// notice and help lines.
func (m Model) frameSize() (int, int) {
	w, h := m.width, m.height-5
	if w < 8 {
		w = 8
	}
	if h < 4 {
		h = 4
	}
	return w, h
}

func (m Model) frameCmd() tea.Cmd {
	sess := m.sess
	w, h := m.frameSize()
	return func() tea.Msg {
		data, err := sess.Frame(context.Background())
		if err != nil {
			return frameMsg{err: err}
		}
		ascii, err := renderFrame(data, w, h)
		return frameMsg{ascii: ascii, err: err}
	}
}

func (m Model) captureCmd() tea.Cmd {
	sess := m.sess
	return func() tea.Msg {
		res, err := sess.Capture(context.Background())
		return captureDoneMsg{result: res, err: err}
	}
}

func waitSideEffects(res *session.CaptureResult) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), sideEffectWait)
		defer cancel()
		return sideEffectsDoneMsg{err: res.Wait(ctx)}
	}
}

func (m Model) dismissCmd() tea.Cmd {
	sess := m.sess
	return func() tea.Msg {
		return dismissedMsg{err: sess.Dismiss(context.Background())}
	}
}

// refreshFrame fetches a frame unless one is already on its way.
func (m *Model) refreshFrame() tea.Cmd {
	if m.fetching {
		return nil
	}
	m.fetching = true
	return m.frameCmd()
}

func (m *Model) showNotice(level, text string) tea.Cmd {
	m.noticeSeq++
	m.notice = text
	m.noticeLevel = level
	seq := m.noticeSeq
	return tea.Tick(noticeDuration, func(time.Time) tea.Msg { return noticeExpiredMsg{seq: seq} })
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case startedMsg:
		m.state = m.sess.State()
		if msg.err != nil {
			debug.Info("Session start: %v", msg.err)
			return m, nil
		}
		cmd := m.refreshFrame()
		return m, cmd

	case tickMsg:
		m.state = m.sess.State()
		if m.state.Kind == session.StateLive && !m.busy {
			cmd := tea.Batch(tickCmd(), m.refreshFrame())
			return m, cmd
		}
		return m, tickCmd()

	case frameMsg:
		m.fetching = false
		if msg.err != nil {
			debug.Verbose("Frame: %v", msg.err)
			return m, nil
		}
		m.frame = msg.ascii
		return m, nil

	case captureDoneMsg:
		m.busy = false
		m.state = m.sess.State()
		if msg.err != nil {
			debug.Verbose("Capture: %v", msg.err)
			return m, nil
		}
		// The feed is paused now; one more fetch shows the frozen picture.
		m.fetching = false
		cmd := tea.Batch(m.refreshFrame(), waitSideEffects(msg.result))
		return m, cmd

	case sideEffectsDoneMsg:
		if msg.err != nil {
			debug.Verbose("Capture side effects: %v", msg.err)
		}
		return m, nil

	case dismissedMsg:
		m.busy = false
		m.state = m.sess.State()
		if msg.err != nil {
			cmd := m.showNotice(session.NoticeError, msg.err.Error())
			return m, cmd
		}
		cmd := m.refreshFrame()
		return m, cmd

	case noticeMsg:
		cmd := tea.Batch(m.showNotice(msg.Level, msg.Message), m.waitForNotice())
		return m, cmd

	case noticeExpiredMsg:
		if msg.seq == m.noticeSeq {
			m.notice = ""
		}
		return m, nil
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Quit) {
		return m, tea.Quit
	}
	if m.busy {
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Capture):
		if !m.state.CanCapture() {
			return m, nil
		}
		m.busy = true
		return m, m.captureCmd()

	case key.Matches(msg, m.keys.Lens):
		if !m.state.CanToggle() {
			return m, nil
		}
		s, err := m.sess.SwitchLens()
		m.state = s
		if err != nil {
			return m, nil
		}
		m.fetching = false
		cmd := m.refreshFrame()
		return m, cmd

	case key.Matches(msg, m.keys.Flash):
		if !m.state.CanToggle() {
			return m, nil
		}
		s, _ := m.sess.ToggleFlash()
		m.state = s
		return m, nil

	case key.Matches(msg, m.keys.Dismiss):
		if m.state.Kind != session.StatePreview {
			return m, nil
		}
		m.busy = true
		return m, m.dismissCmd()
	}
	return m, nil
}

// View renders the screen.
func (m Model) View() string {
	switch m.state.Kind {
	case session.StateUninitialized:
		return ""
	case session.StateDenied:
		return DeniedStyle.Render("No access to camera")
	}

	var b strings.Builder
	b.WriteString(m.frame)
	if !strings.HasSuffix(m.frame, "\n") {
		b.WriteString("\n")
	}
	b.WriteString(BarStyle.Width(m.width).Render(m.renderBar()))
	b.WriteString("\n")
	if m.notice != "" {
		style := InfoStyle
		if m.noticeLevel == session.NoticeError {
			style = ErrorStyle
		}
		b.WriteString(style.Render(m.notice))
	}
	b.WriteString("\n")
	b.WriteString(m.renderHelp())
	return b.String()
}

func (m Model) renderBar() string {
	if m.state.Kind == session.StatePreview {
		return ControlStyle.Render("[x] close")
	}

	toggle := DisabledControlStyle
	if m.state.CanToggle() {
		toggle = ControlStyle
	}
	flash := toggle
	if m.state.Flash == camera.FlashOn && m.state.CanToggle() {
		flash = ActiveControlStyle
	}
	shutter := DisabledControlStyle
	if m.state.CanCapture() {
		shutter = ShutterStyle
	}

	return lipgloss.JoinHorizontal(lipgloss.Center,
		toggle.Render("[l] lens: "+m.state.Facing.String()),
		shutter.Render("( O )"),
		flash.Render("[f] flash: "+m.state.Flash.String()),
	)
}

func (m Model) renderHelp() string {
	bindings := []key.Binding{m.keys.Capture, m.keys.Lens, m.keys.Flash, m.keys.Quit}
	if m.state.Kind == session.StatePreview {
		bindings = []key.Binding{m.keys.Dismiss, m.keys.Quit}
	}
	parts := make([]string, 0, len(bindings))
	for _, kb := range bindings {
		h := kb.Help()
		parts = append(parts, h.Key+" "+h.Desc)
	}
	return HelpStyle.Render(strings.Join(parts, " • "))
}
