package ui

import "time"

// Icons (emojis/symbols)
const (
	IconSettings = "⚙"
	IconPlay     = "▶"
	IconPause    = "⏸"
	IconQueued   = "⏳"
	IconStop     = "⏹"
	IconFolder   = "📁"
	IconList     = "☰"
	IconClose    = "×"
	IconError    = "❌"
	IconLanguage = "🌐"
	IconMoon     = "🌙"
)

// Text fragments
const (
	MiddleDotSeparator  = " · "
	DashPlaceholder     = "—"
	ProgressLabelFormat = "%d%%"
	SegmentsLabelFormat = "%d/%d"
)

// Layout sizing (TaskRow / lists)
const (
	StatusLabelWidth  float32 = 96
	SpeedLabelWidth   float32 = 120
	PercentLabelWidth float32 = 48

	RowMinWidth  float32 = 420
	RowMinHeight float32 = 76
)

// Dialog sizing
const (
	SettingsDialogWidth  float32 = 520
	SettingsDialogHeight float32 = 520
	ChannelsDialogWidth  float32 = 640
	ChannelsDialogHeight float32 = 480
)

// Toast notification sizing and behavior
const (
	ToastAutoHide = 5 * time.Second
)

// Debounce durations
const (
	UIUpdateDebounce = 100 * time.Millisecond
)
