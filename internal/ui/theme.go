package ui

import (
	"github.com/gdamore/tcell/v2"
)

// Theme defines UI color tokens used across widgets and text tags.
type Theme struct {
	Bg          tcell.Color
	Surface     tcell.Color
	Border      tcell.Color
	FocusBorder tcell.Color
	SelectionBg tcell.Color
	SelectionFg tcell.Color
	TextPrimary tcell.Color
	TextMuted   tcell.Color
	Accent      tcell.Color

	TableHeader   tcell.Color
	TableHeaderBg tcell.Color
	TableRow      tcell.Color
	TableRowMuted tcell.Color

	SeverityCritical tcell.Color
	SeverityHigh     tcell.Color
	SeverityMedium   tcell.Color
	SeverityLow      tcell.Color
	SeverityInfo     tcell.Color

	// Text tag colors (for tview dynamic color markup)
	TagMuted   string
	TagAccent  string
	TagSuccess string
	TagWarning string
	TagError   string
}

func hex(s string) tcell.Color { return tcell.GetColor(s) }

func themeDark() Theme {
	return Theme{
		Bg:          hex("#0e1116"),
		Surface:     hex("#12161e"),
		Border:      hex("#2b3240"),
		FocusBorder: hex("#4aa8ff"),
		SelectionBg: hex("#2b3240"),
		SelectionFg: hex("#cfd8e3"),
		TextPrimary: hex("#e6edf3"),
		TextMuted:   hex("#8a939f"),
		Accent:      hex("#2dd4bf"),

		TableHeader:   hex("#eab308"),
		TableHeaderBg: hex("#1a2332"),
		TableRow:      hex("#e6edf3"),
		TableRowMuted: hex("#94a3b8"),

		SeverityCritical: hex("#ff5f5f"),
		SeverityHigh:     hex("#ffaf5f"),
		SeverityMedium:   hex("#ffd75f"),
		SeverityLow:      hex("#87ffaf"),
		SeverityInfo:     hex("#87afff"),

		TagMuted:   "#8a939f",
		TagAccent:  "#2dd4bf",
		TagSuccess: "#22c55e",
		TagWarning: "#f59e0b",
		TagError:   "#ef4444",
	}
}

func themeLight() Theme {
	return Theme{
		Bg:          hex("#f6f8fa"),
		Surface:     hex("#ffffff"),
		Border:      hex("#d0d7de"),
		FocusBorder: hex("#1f6feb"),
		SelectionBg: hex("#e2e8f0"),
		SelectionFg: hex("#111827"),
		TextPrimary: hex("#111827"),
		TextMuted:   hex("#6b7280"),
		Accent:      hex("#2563eb"),

		TableHeader:   hex("#1f2937"),
		TableHeaderBg: hex("#e5e7eb"),
		TableRow:      hex("#111827"),
		TableRowMuted: hex("#6b7280"),

		SeverityCritical: hex("#dc2626"),
		SeverityHigh:     hex("#f97316"),
		SeverityMedium:   hex("#ca8a04"),
		SeverityLow:      hex("#16a34a"),
		SeverityInfo:     hex("#2563eb"),

		TagMuted:   "#6b7280",
		TagAccent:  "#2563eb",
		TagSuccess: "#15803d",
		TagWarning: "#b45309",
		TagError:   "#b91c1c",
	}
}

func (t Theme) severityColor(severity string) tcell.Color {
	switch severity {
	case "critical", "fatal":
		return t.SeverityCritical
	case "high":
		return t.SeverityHigh
	case "medium":
		return t.SeverityMedium
	case "low":
		return t.SeverityLow
	default:
		return t.SeverityInfo
	}
}
