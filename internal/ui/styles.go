// Package ui holds the console's lipgloss palette and styles.
package ui

import "github.com/charmbracelet/lipgloss"

// HUD palette, named by role rather than hue.
var (
	ColorAccent   = lipgloss.Color("#29D3F5")
	ColorAccentLo = lipgloss.Color("#1B6E8C")
	ColorOK       = lipgloss.Color("#4ADE80")
	ColorWarn     = lipgloss.Color("#FBBF24")
	ColorAlert    = lipgloss.Color("#F87171")
	ColorThinking = lipgloss.Color("#C084FC")
	ColorText     = lipgloss.Color("#E2E8F0")
	ColorMuted    = lipgloss.Color("#7C8A9E")
	ColorFaint    = lipgloss.Color("#3B4656")
)

func fg(c lipgloss.Color) lipgloss.Style { return lipgloss.NewStyle().Foreground(c) }

func bold(c lipgloss.Color) lipgloss.Style { return fg(c).Bold(true) }

// Chrome: header, status line, panels, footer.
var (
	TitleStyle      = bold(ColorAccent).Underline(true)
	StatusStyle     = fg(ColorText)
	DimStyle        = fg(ColorMuted)
	TimestampStyle  = fg(ColorMuted).Italic(true)
	PanelTitleStyle = bold(ColorAccent)
	DividerStyle    = fg(ColorFaint)
	FooterKeyStyle  = bold(ColorAccent).Reverse(true)
	FooterDescStyle = fg(ColorMuted)

	ErrorStyle     = bold(ColorAlert).Reverse(true)
	ErrorTextStyle = fg(ColorAlert)

	LiveBadgeStyle   = bold(ColorOK)
	ScrollBadgeStyle = bold(ColorWarn)
)

// Visualizer badges, one per conversational status.
var (
	VisualizerIdleStyle       = fg(ColorAccentLo)
	VisualizerListeningStyle  = bold(ColorOK)
	VisualizerSpeakingStyle   = bold(ColorAccent).Blink(true)
	VisualizerProcessingStyle = bold(ColorThinking)
)

// Conversation log and input line.
var (
	UserLabelStyle      = bold(ColorWarn)
	AssistantLabelStyle = bold(ColorAccent)
	HistoryStyle        = fg(ColorFaint)
	InputPromptStyle    = bold(ColorAccent)
	CursorStyle         = fg(ColorAccent)
)

// Device indicators.
var (
	MicMutedStyle = fg(ColorAlert)
	MicLiveStyle  = bold(ColorOK)
	CamOnStyle    = bold(ColorOK)
	CamOffStyle   = fg(ColorMuted)
)

// Widget panel.
var (
	WidgetTitleStyle = bold(ColorAccent).Underline(true)
	WidgetBodyStyle  = fg(ColorText)
	CodeStyle        = fg(ColorOK).Background(lipgloss.Color("#0F172A"))
)
