package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/astar313/ARIS/internal/capture"
	"github.com/astar313/ARIS/internal/conversation"
	"github.com/astar313/ARIS/internal/db"
	"github.com/astar313/ARIS/internal/device"
	"github.com/astar313/ARIS/internal/metrics"
	"github.com/astar313/ARIS/internal/pcm"
	"github.com/astar313/ARIS/internal/playback"
	"github.com/astar313/ARIS/internal/session"
	"github.com/astar313/ARIS/internal/ui"

	tea "github.com/charmbracelet/bubbletea"
)

const webcamErrorText = "Could not access webcam. Please check permissions."

// Client is the session transport as the console drives it.
type Client interface {
	Run(ctx context.Context) error
	Events() <-chan session.Event
	Connected() bool
	SendText(message string) error
	SendFrame(dataURL string) error
	Close() error
}

// Webcam is the frame capture throttle.
type Webcam interface {
	Start(ctx context.Context) error
	Stop()
	Active() bool
}

// Options wires the model to its collaborators. Only NewClient and Engine
// are required.
type Options struct {
	NewClient  func() Client
	Relay      *session.Relay
	Engine     *playback.Engine
	Webcam     Webcam
	Recorder   *db.Recorder
	History    []db.Message
	SampleRate int
	Log        *zap.Logger
	Metrics    *metrics.Metrics
}

// LogEntry is one line of the conversation log.
type LogEntry struct {
	Sender  db.Sender
	Text    string
	At      time.Time
	History bool // loaded from a previous run
}

// Model is the root bubbletea model for the console.
type Model struct {
	opts Options
	log  *zap.Logger

	// Session
	client    Client
	clientGen uint64
	cancelRun context.CancelFunc
	connError string

	// Conversation
	conv          conversation.State
	entries       []LogEntry
	assistantOpen bool
	input         string

	// Widgets, replaced wholesale on arrival
	weather json.RawMessage
	mapInfo json.RawMessage
	search  json.RawMessage
	code    *session.CodeExecution

	// Devices
	audioRequested bool
	webcamOn       bool
	webcamGen      uint64
	webcamError    string

	// UI state
	width     int
	height    int
	logScroll int
	logLive   bool
	now       time.Time

	// Errors
	errorMessage   string
	errorTransient bool
}

// New creates a model. Nothing connects until Init runs.
func New(opts Options) Model {
	if opts.Log == nil {
		opts.Log = zap.NewNop()
	}
	if opts.SampleRate <= 0 {
		opts.SampleRate = pcm.DefaultSampleRate
	}
	m := Model{
		opts:    opts,
		log:     opts.Log,
		conv:    conversation.Initial(),
		logLive: true,
		now:     time.Now(),
	}
	for _, h := range opts.History {
		m.entries = append(m.entries, LogEntry{
			Sender:  h.Sender,
			Text:    h.Text,
			At:      h.CreatedAt,
			History: true,
		})
	}
	return m
}

// Init starts the session, the playback listener and the clock.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		func() tea.Msg { return StartSessionMsg{} },
		waitPlaybackCmd(m.opts.Engine),
		clockTickCmd(),
	)
}

// runSessionCmd blocks in the client's connect/reconnect loop.
func runSessionCmd(ctx context.Context, gen uint64, c Client) tea.Cmd {
	return func() tea.Msg {
		return SessionEndedMsg{Gen: gen, Err: c.Run(ctx)}
	}
}

// readEventCmd reads the next event from the client. The stream closing
// ends the chain.
func readEventCmd(gen uint64, c Client) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-c.Events()
		if !ok {
			return nil
		}
		return SessionEventMsg{Gen: gen, Event: ev}
	}
}

// sendTextCmd writes a text message off the update loop.
func sendTextCmd(c Client, text string) tea.Cmd {
	return func() tea.Msg {
		if err := c.SendText(text); err != nil && !errors.Is(err, session.ErrSendSuppressed) {
			return SendFailedMsg{Err: err}
		}
		return nil
	}
}

// waitPlaybackCmd waits for the next buffer completion.
func waitPlaybackCmd(e *playback.Engine) tea.Cmd {
	if e == nil {
		return nil
	}
	return func() tea.Msg {
		select {
		case c := <-e.Completions():
			return PlaybackDoneMsg{Completion: c}
		case <-e.Done():
			return nil
		}
	}
}

func activateAudioCmd(e *playback.Engine) tea.Cmd {
	return func() tea.Msg {
		return AudioActivatedMsg{Err: e.Activate()}
	}
}

func startWebcamCmd(w Webcam, gen uint64) tea.Cmd {
	return func() tea.Msg {
		return WebcamStartedMsg{Gen: gen, Err: w.Start(context.Background())}
	}
}

// clearTransientErrorCmd fires after a delay to clear transient errors.
func clearTransientErrorCmd() tea.Cmd {
	return tea.Tick(5*time.Second, func(time.Time) tea.Msg {
		return ClearTransientErrorMsg{}
	})
}

func clockTickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return ClockTickMsg{Time: t}
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

	case StartSessionMsg:
		return m, m.startSession()

	case SessionEventMsg:
		if msg.Gen != m.clientGen || m.client == nil {
			return m, nil
		}
		cmd := m.handleEvent(msg.Event)
		return m, tea.Batch(cmd, readEventCmd(msg.Gen, m.client))

	case SessionEndedMsg:
		if msg.Gen != m.clientGen {
			return m, nil
		}
		if msg.Err != nil {
			m.connError = msg.Err.Error()
			m.log.Warn("session ended", zap.Error(msg.Err))
		}
		return m, nil

	case SendFailedMsg:
		m.log.Warn("send failed", zap.Error(msg.Err))
		return m, m.setError(msg.Err.Error(), true)

	case PlaybackDoneMsg:
		if e := m.opts.Engine; e != nil && msg.Completion.Generation == e.Generation() {
			m.conv = conversation.Reduce(m.conv, conversation.PlaybackEndedEvent{Pending: msg.Completion.Pending})
		}
		return m, waitPlaybackCmd(m.opts.Engine)

	case AudioActivatedMsg:
		if msg.Err != nil {
			m.log.Warn("audio output unavailable", zap.Error(msg.Err))
			return m, m.setError("Audio output unavailable: "+msg.Err.Error(), false)
		}
		return m, nil

	case WebcamStartedMsg:
		if msg.Gen != m.webcamGen || !m.webcamOn {
			return m, nil
		}
		if msg.Err != nil {
			if errors.Is(msg.Err, capture.ErrStopped) {
				return m, nil
			}
			m.webcamOn = false
			m.webcamError = webcamErrorText
			var de *device.Error
			if errors.As(msg.Err, &de) {
				m.log.Warn("webcam unavailable", zap.Error(de))
			} else {
				m.log.Warn("webcam start", zap.Error(msg.Err))
			}
		}
		return m, nil

	case ClearTransientErrorMsg:
		if m.errorTransient {
			m.errorMessage = ""
			m.errorTransient = false
		}
		return m, nil

	case ClockTickMsg:
		m.now = msg.Time
		return m, clockTickCmd()
	}

	return m, nil
}

// startSession replaces the current client with a fresh one and a fresh
// reconnect budget.
func (m *Model) startSession() tea.Cmd {
	m.stopSession()
	if m.opts.NewClient == nil {
		return nil
	}

	m.endAssistantReply()
	m.clientGen++
	gen := m.clientGen
	c := m.opts.NewClient()
	m.client = c
	m.connError = ""
	if m.opts.Relay != nil {
		m.opts.Relay.Set(c)
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.cancelRun = cancel
	return tea.Batch(runSessionCmd(ctx, gen, c), readEventCmd(gen, c))
}

// stopSession closes the current client. An explicit close emits no
// disconnect event, so the model applies it itself.
func (m *Model) stopSession() {
	if m.client == nil {
		return
	}
	if m.opts.Relay != nil {
		m.opts.Relay.Set(nil)
	}
	m.cancelRun()
	m.client.Close()
	m.client = nil
	m.cancelRun = nil
	if m.conv.Connection != conversation.Disconnected {
		m.conv = conversation.Reduce(m.conv, conversation.DisconnectedEvent{})
	}
}

// shutdown releases every resource synchronously.
func (m *Model) shutdown() {
	if m.opts.Webcam != nil {
		m.opts.Webcam.Stop()
	}
	m.webcamOn = false
	if m.opts.Engine != nil {
		m.opts.Engine.Close()
	}
	m.stopSession()
	if m.opts.Recorder != nil {
		m.opts.Recorder.Close()
	}
}

// handleEvent processes a session event and returns any resulting command.
func (m *Model) handleEvent(ev session.Event) tea.Cmd {
	switch ev.Name {
	case session.EventConnecting:
		m.conv = conversation.Reduce(m.conv, conversation.ConnectingEvent{Attempt: ev.Attempt})

	case session.EventConnect:
		m.connError = ""
		m.endAssistantReply()
		m.conv = conversation.Reduce(m.conv, conversation.ConnectedEvent{})

	case session.EventDisconnect:
		m.endAssistantReply()
		m.conv = conversation.Reduce(m.conv, conversation.DisconnectedEvent{})

	case session.EventReconnectFailed:
		m.endAssistantReply()
		if ev.Err != nil {
			m.connError = ev.Err.Error()
		}
		m.conv = conversation.Reduce(m.conv, conversation.ReconnectFailedEvent{})

	case session.EventTextChunk:
		chunk, err := session.Decode[session.TextChunk](ev)
		if err != nil {
			m.log.Warn("bad text chunk", zap.Error(err))
			return nil
		}
		m.appendAssistant(chunk.Text)

	case session.EventAudioChunk:
		m.playAudio(ev)

	case session.EventWeatherUpdate:
		m.weather = cloneRaw(ev.Data)

	case session.EventMapUpdate:
		m.mapInfo = cloneRaw(ev.Data)

	case session.EventSearchResults:
		m.search = cloneRaw(ev.Data)

	case session.EventCodeExecution:
		code, err := session.Decode[session.CodeExecution](ev)
		if err != nil {
			m.log.Warn("bad code execution payload", zap.Error(err))
			return nil
		}
		m.code = &code

	case session.EventListening:
		l, err := session.Decode[session.Listening](ev)
		if err != nil {
			m.log.Warn("bad listening payload", zap.Error(err))
			return nil
		}
		m.conv = conversation.Reduce(m.conv, conversation.ListeningEvent{Listening: l.Listening})

	default:
		m.log.Debug("unhandled event", zap.String("event", ev.Name))
	}
	return nil
}

// playAudio decodes and schedules an audio chunk in arrival order.
// Malformed chunks are dropped.
func (m *Model) playAudio(ev session.Event) {
	if m.opts.Metrics != nil {
		m.opts.Metrics.AudioChunks.Inc()
	}
	samples, err := decodeAudio(ev)
	if err != nil {
		if m.opts.Metrics != nil {
			m.opts.Metrics.DecodeErrors.Inc()
		}
		m.log.Warn("dropping audio chunk", zap.Error(err))
		return
	}
	if m.opts.Engine != nil && m.opts.Engine.Enqueue(samples, m.opts.SampleRate) {
		m.conv = conversation.Reduce(m.conv, conversation.PlaybackStartedEvent{})
	}
}

func decodeAudio(ev session.Event) ([]float32, error) {
	chunk, err := session.Decode[session.AudioChunk](ev)
	if err != nil {
		return nil, &pcm.DecodeError{Reason: "payload", Err: err}
	}
	return pcm.Decode(chunk.Audio)
}

// endAssistantReply stops later text chunks from merging into the current
// reply. Replies never span a connection.
func (m *Model) endAssistantReply() {
	if !m.assistantOpen {
		return
	}
	m.assistantOpen = false
	if m.opts.Recorder != nil {
		m.opts.Recorder.Break()
	}
}

func (m *Model) appendAssistant(text string) {
	extend := m.assistantOpen && len(m.entries) > 0
	if extend {
		m.entries[len(m.entries)-1].Text += text
	} else {
		m.entries = append(m.entries, LogEntry{Sender: db.SenderAssistant, Text: text, At: m.now})
		m.assistantOpen = true
	}
	if m.opts.Recorder != nil {
		m.opts.Recorder.Assistant(text, extend)
	}
	if m.logLive {
		m.scrollToBottom()
	}
}

// sendText logs the message locally, then sends it if connected.
func (m *Model) sendText() tea.Cmd {
	text := strings.TrimSpace(m.input)
	m.input = ""
	if text == "" {
		return nil
	}

	m.entries = append(m.entries, LogEntry{Sender: db.SenderUser, Text: text, At: m.now})
	m.assistantOpen = false
	m.logLive = true
	m.scrollToBottom()
	if m.opts.Recorder != nil {
		m.opts.Recorder.User(text)
	}

	if m.client == nil || !m.client.Connected() {
		if m.opts.Metrics != nil {
			m.opts.Metrics.SendsSuppressed.Inc()
		}
		return nil
	}
	m.conv = conversation.Reduce(m.conv, conversation.MessageSentEvent{})
	return sendTextCmd(m.client, text)
}

func (m *Model) toggleWebcam() tea.Cmd {
	if m.opts.Webcam == nil {
		m.webcamError = "Webcam not configured."
		return nil
	}
	m.webcamGen++
	if m.webcamOn {
		m.webcamOn = false
		m.opts.Webcam.Stop()
		return nil
	}
	m.webcamOn = true
	m.webcamError = ""
	return startWebcamCmd(m.opts.Webcam, m.webcamGen)
}

func (m *Model) setError(text string, transient bool) tea.Cmd {
	m.errorMessage = text
	m.errorTransient = transient
	if transient {
		return clearTransientErrorCmd()
	}
	return nil
}

// handleKey processes key presses. The first key press of the run also
// creates the audio output.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	var activate tea.Cmd
	if !m.audioRequested && m.opts.Engine != nil {
		m.audioRequested = true
		activate = activateAudioCmd(m.opts.Engine)
	}

	switch msg.String() {
	case KeyQuit:
		m.shutdown()
		return m, tea.Quit

	case KeySend:
		return m, tea.Batch(activate, m.sendText())

	case KeyBackspace:
		if r := []rune(m.input); len(r) > 0 {
			m.input = string(r[:len(r)-1])
		}
		return m, activate

	case KeyToggleMute:
		m.conv = conversation.Reduce(m.conv, conversation.MuteEvent{Muted: !m.conv.Muted})
		return m, tea.Batch(activate, m.startSession())

	case KeyToggleCam:
		return m, tea.Batch(activate, m.toggleWebcam())

	case KeyRetry:
		if m.conv.Terminal {
			return m, tea.Batch(activate, m.startSession())
		}
		return m, activate

	case KeyClose:
		if m.code != nil {
			m.code = nil
		} else {
			m.search = nil
		}
		return m, activate

	case KeyUp:
		m.logLive = false
		if m.logScroll > 0 {
			m.logScroll--
		}
		return m, activate

	case KeyDown:
		maxScroll := m.maxLogScroll()
		m.logScroll++
		if m.logScroll >= maxScroll {
			m.logScroll = maxScroll
			m.logLive = true
		}
		return m, activate
	}

	switch msg.Type {
	case tea.KeyRunes:
		m.input += string(msg.Runes)
	case tea.KeySpace:
		m.input += " "
	}
	return m, activate
}

func (m *Model) scrollToBottom() {
	m.logScroll = m.maxLogScroll()
}

func (m Model) maxLogScroll() int {
	total := len(m.logLines(m.logPanelWidth()))
	visible := m.logVisibleLines()
	if total <= visible {
		return 0
	}
	return total - visible
}

func (m Model) contentHeight() int {
	if m.height == 0 {
		return 20
	}
	// header, status, 2 dividers, input, error, footer
	return max(5, m.height-7)
}

func (m Model) logVisibleLines() int {
	return m.contentHeight() - 1
}

func (m Model) hasWidgets() bool {
	return m.weather != nil || m.mapInfo != nil || m.search != nil || m.code != nil
}

func (m Model) widgetPanelWidth() int {
	if !m.hasWidgets() {
		return 0
	}
	if m.width == 0 {
		return 30
	}
	return max(24, m.width*40/100)
}

func (m Model) logPanelWidth() int {
	if m.width == 0 {
		return 60
	}
	if w := m.widgetPanelWidth(); w > 0 {
		return max(30, m.width-w-3)
	}
	return m.width
}

// View renders the full TUI.
func (m Model) View() string {
	if m.width == 0 {
		return conversation.TextInitializing
	}

	divider := ui.DividerStyle.Render(strings.Repeat("─", m.width))
	sections := []string{
		m.renderHeader(),
		m.renderStatusBar(),
		divider,
		m.renderMainContent(),
		divider,
		m.renderInput(),
	}
	if m.errorMessage != "" {
		sections = append(sections, m.renderErrorBar())
	}
	sections = append(sections, m.renderFooter())

	return strings.Join(sections, "\n")
}

func (m Model) renderHeader() string {
	return ui.TitleStyle.Render("A.R.I.S") + "  " + renderVisualizer(m.conv.Visualizer)
}

func renderVisualizer(v conversation.Visualizer) string {
	switch v {
	case conversation.Listening:
		return ui.VisualizerListeningStyle.Render("◉ LISTENING")
	case conversation.Speaking:
		return ui.VisualizerSpeakingStyle.Render("♪ SPEAKING")
	case conversation.Processing:
		return ui.VisualizerProcessingStyle.Render("⟳ PROCESSING")
	default:
		return ui.VisualizerIdleStyle.Render("○ IDLE")
	}
}

func (m Model) renderStatusBar() string {
	parts := []string{ui.StatusStyle.Render(m.conv.StatusText)}

	if m.conv.Muted {
		parts = append(parts, ui.MicMutedStyle.Render("[MIC MUTED]"))
	} else {
		parts = append(parts, ui.MicLiveStyle.Render("[MIC LIVE]"))
	}

	switch {
	case m.webcamError != "":
		parts = append(parts, ui.ErrorTextStyle.Render("[CAM] "+m.webcamError))
	case m.webcamOn && m.opts.Webcam.Active():
		parts = append(parts, ui.CamOnStyle.Render("[CAM ON]"))
	case m.webcamOn:
		parts = append(parts, ui.CamOffStyle.Render("[CAM STARTING]"))
	default:
		parts = append(parts, ui.CamOffStyle.Render("[CAM OFF]"))
	}

	if m.opts.Engine == nil || !m.opts.Engine.Active() {
		parts = append(parts, ui.DimStyle.Render("[SPEAKER OFF: press any key]"))
	}

	return strings.Join(parts, "  ")
}

func (m Model) renderMainContent() string {
	height := m.contentHeight()
	logW := m.logPanelWidth()
	logPanel := m.renderLogPanel(logW, height)

	widgetW := m.widgetPanelWidth()
	if widgetW == 0 {
		return logPanel
	}
	widgetPanel := m.renderWidgetPanel(widgetW, height)

	divider := ui.DividerStyle.Render("│")
	logLines := strings.Split(logPanel, "\n")
	widgetLines := strings.Split(widgetPanel, "\n")

	var rows []string
	for i := 0; i < height; i++ {
		var l, w string
		if i < len(logLines) {
			l = logLines[i]
		}
		if i < len(widgetLines) {
			w = widgetLines[i]
		}
		rows = append(rows, padRight(l, logW)+" "+divider+" "+w)
	}
	return strings.Join(rows, "\n")
}

// logLines renders every log entry, wrapped to width.
func (m Model) logLines(width int) []string {
	// "[15:04:05] ARIS: " is 17 visible columns
	const prefixWidth = 17
	textWidth := max(10, width-prefixWidth-2)
	indent := strings.Repeat(" ", prefixWidth)

	var lines []string
	for _, e := range m.entries {
		ts := ui.TimestampStyle.Render(e.At.Format("[15:04:05]"))
		var label string
		if e.Sender == db.SenderUser {
			label = ui.UserLabelStyle.Render("You:  ")
		} else {
			label = ui.AssistantLabelStyle.Render("ARIS: ")
		}
		wrapped := wrapText(e.Text, textWidth)
		for i, wl := range wrapped {
			if e.History {
				wl = ui.HistoryStyle.Render(wl)
			}
			if i == 0 {
				lines = append(lines, ts+" "+label+wl)
			} else {
				lines = append(lines, indent+wl)
			}
		}
	}
	return lines
}

func (m Model) renderLogPanel(width, height int) string {
	var badge string
	if m.logLive {
		badge = ui.LiveBadgeStyle.Render(" LIVE")
	} else {
		badge = ui.ScrollBadgeStyle.Render(" SCROLL")
	}
	lines := []string{ui.PanelTitleStyle.Render("CONVERSATION") + badge}
	contentHeight := height - 1

	switch {
	case m.conv.Connection != conversation.Connected && m.conv.Terminal:
		lines = append(lines, "")
		lines = append(lines, ui.ErrorStyle.Render("  Could not reach the server."))
		if m.connError != "" {
			lines = append(lines, ui.DimStyle.Render("  "+truncateToWidth(m.connError, max(10, width-2))))
		}
		lines = append(lines, ui.DimStyle.Render("  Press ctrl+r to retry"))

	case len(m.entries) == 0:
		lines = append(lines, "")
		if m.conv.Connection == conversation.Connected {
			lines = append(lines, ui.DimStyle.Render("  Type a message and press Enter"))
		} else {
			lines = append(lines, ui.DimStyle.Render("  Connecting to the assistant..."))
		}

	default:
		display := m.logLines(width)
		start := 0
		if m.logLive {
			if len(display) > contentHeight {
				start = len(display) - contentHeight
			}
		} else {
			start = m.logScroll
		}
		start = max(0, start)
		end := min(start+contentHeight, len(display))
		for i := start; i < end; i++ {
			lines = append(lines, " "+display[i])
		}
	}

	for len(lines) < height {
		lines = append(lines, "")
	}
	if len(lines) > height {
		lines = lines[:height]
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderWidgetPanel(width, height int) string {
	var lines []string
	bodyWidth := max(10, width-2)

	addJSON := func(title string, raw json.RawMessage) {
		if raw == nil {
			return
		}
		lines = append(lines, ui.WidgetTitleStyle.Render(title))
		for _, l := range formatJSON(raw) {
			for _, wl := range wrapText(l, bodyWidth) {
				lines = append(lines, "  "+ui.WidgetBodyStyle.Render(wl))
			}
		}
		lines = append(lines, "")
	}

	if m.code != nil {
		title := "CODE"
		if m.code.Language != "" {
			title += " (" + m.code.Language + ")"
		}
		lines = append(lines, ui.WidgetTitleStyle.Render(title)+ui.DimStyle.Render("  esc close"))
		for _, l := range strings.Split(m.code.Code, "\n") {
			lines = append(lines, "  "+ui.CodeStyle.Render(truncateToWidth(l, bodyWidth)))
		}
		lines = append(lines, "")
	}
	if m.search != nil && m.code == nil {
		lines = append(lines, ui.DimStyle.Render("esc closes search"))
	}
	addJSON("SEARCH", m.search)
	addJSON("WEATHER", m.weather)
	addJSON("MAP", m.mapInfo)

	if len(lines) > height {
		lines = lines[:height]
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderInput() string {
	return ui.InputPromptStyle.Render("> ") + m.input + ui.CursorStyle.Render("▌")
}

func (m Model) renderErrorBar() string {
	return ui.ErrorStyle.Render("Error: ") + ui.ErrorTextStyle.Render(m.errorMessage)
}

func (m Model) renderFooter() string {
	var parts []string
	parts = append(parts, ui.FooterKeyStyle.Render("Enter")+ui.FooterDescStyle.Render(" Send"))
	if m.conv.Muted {
		parts = append(parts, ui.FooterKeyStyle.Render("^T")+ui.FooterDescStyle.Render(" Unmute"))
	} else {
		parts = append(parts, ui.FooterKeyStyle.Render("^T")+ui.FooterDescStyle.Render(" Mute"))
	}
	if m.webcamOn {
		parts = append(parts, ui.FooterKeyStyle.Render("^W")+ui.FooterDescStyle.Render(" Cam off"))
	} else {
		parts = append(parts, ui.FooterKeyStyle.Render("^W")+ui.FooterDescStyle.Render(" Cam on"))
	}
	if m.conv.Terminal {
		parts = append(parts, ui.FooterKeyStyle.Render("^R")+ui.FooterDescStyle.Render(" Retry"))
	}
	parts = append(parts, ui.FooterKeyStyle.Render("↑↓")+ui.FooterDescStyle.Render(" Scroll"))
	parts = append(parts, ui.FooterKeyStyle.Render("^C")+ui.FooterDescStyle.Render(" Quit"))

	left := strings.Join(parts, "  ")
	clock := ui.TimestampStyle.Render(m.now.Format("3:04:05 PM"))
	gap := m.width - lipgloss.Width(left) - lipgloss.Width(clock)
	if gap < 2 {
		return left + "  " + clock
	}
	return left + strings.Repeat(" ", gap) + clock
}

// Helpers

func cloneRaw(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	return append(json.RawMessage(nil), raw...)
}

// formatJSON renders a widget payload as indented lines. Anything that is
// not valid JSON is shown verbatim.
func formatJSON(raw json.RawMessage) []string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return []string{string(raw)}
	}
	return strings.Split(buf.String(), "\n")
}

func padRight(s string, width int) string {
	// Get visible length (ignoring ANSI codes)
	visible := lipgloss.Width(s)
	if visible >= width {
		return s
	}
	return s + strings.Repeat(" ", width-visible)
}

func truncateToWidth(s string, width int) string {
	visible := lipgloss.Width(s)
	if visible <= width {
		return s
	}
	runes := []rune(s)
	if width > 1 && len(runes) > width-1 {
		return string(runes[:width-1]) + "…"
	}
	return s
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
		lines = append(lines, current)
	}
	if len(lines) == 0 {
		return []string{""}
	}
	return lines
}
