// Package ui renders the human-readable summaries printed after migrate,
// reconcile and users export. Colors follow the Ayu palette with adaptive
// light and dark variants.
package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Ayu palette: https://terminalcolors.com/themes/ayu/
var (
	green  = lipgloss.AdaptiveColor{Light: "#86b300", Dark: "#c2d94c"}
	yellow = lipgloss.AdaptiveColor{Light: "#f2ae49", Dark: "#ffb454"}
	red    = lipgloss.AdaptiveColor{Light: "#f07171", Dark: "#f07178"}
	gray   = lipgloss.AdaptiveColor{Light: "#828c99", Dark: "#6c7680"}
	blue   = lipgloss.AdaptiveColor{Light: "#399ee6", Dark: "#59c2ff"}
)

var (
	okStyle     = lipgloss.NewStyle().Foreground(green)
	warnStyle   = lipgloss.NewStyle().Foreground(yellow)
	failStyle   = lipgloss.NewStyle().Foreground(red)
	mutedStyle  = lipgloss.NewStyle().Foreground(gray)
	infoStyle   = lipgloss.NewStyle().Foreground(blue)
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(blue)
)

// Status selects the icon and color of a summary row.
type Status int

const (
	StatusNone Status = iota
	StatusOK
	StatusWarn
	StatusFail
	StatusSkip
	StatusInfo
)

// Icons, one per Status.
const (
	IconOK   = "✓"
	IconWarn = "⚠"
	IconFail = "✗"
	IconSkip = "-"
	IconInfo = "ℹ"
)

// Separator underlines Header titles.
const Separator = "──────────────────────────────────────────"

// labelWidth aligns row values; it fits the longest label, "Attachments:".
const labelWidth = 13

// Icon returns the styled icon for s, or a blank for StatusNone.
func Icon(s Status) string {
	switch s {
	case StatusOK:
		return okStyle.Render(IconOK)
	case StatusWarn:
		return warnStyle.Render(IconWarn)
	case StatusFail:
		return failStyle.Render(IconFail)
	case StatusSkip:
		return mutedStyle.Render(IconSkip)
	case StatusInfo:
		return infoStyle.Render(IconInfo)
	default:
		return " "
	}
}

// Header returns the upper-cased title and the separator line.
func Header(title string) string {
	return headerStyle.Render(strings.ToUpper(title)) + "\n" + mutedStyle.Render(Separator)
}

// Row formats one summary line: icon, aligned label, value.
func Row(s Status, label, format string, args ...any) string {
	return fmt.Sprintf("%s %-*s %s", Icon(s), labelWidth, label+":", fmt.Sprintf(format, args...))
}

func Warn(s string) string  { return warnStyle.Render(s) }
func Fail(s string) string  { return failStyle.Render(s) }
func Muted(s string) string { return mutedStyle.Render(s) }
