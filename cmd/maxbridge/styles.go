// SPDX-License-Identifier: MPL-2.0

package cmd

import "github.com/charmbracelet/lipgloss"

// Shared palette for CLI output. Hex values assume a dark terminal.
const (
	colorAccent  = lipgloss.Color("#8B5CF6") // headings
	colorMuted   = lipgloss.Color("#6B7280") // secondary text
	colorGood    = lipgloss.Color("#34D399") // success states
	colorBad     = lipgloss.Color("#F87171") // failures
	colorCaution = lipgloss.Color("#FBBF24") // warnings
	colorCode    = lipgloss.Color("#60A5FA") // commands and literals
)

var (
	// TitleStyle marks section headers.
	TitleStyle = lipgloss.NewStyle().Bold(true).Foreground(colorAccent)

	// SubtitleStyle marks secondary lines under a title.
	SubtitleStyle = lipgloss.NewStyle().Foreground(colorMuted)

	// SuccessStyle marks completed operations.
	SuccessStyle = lipgloss.NewStyle().Foreground(colorGood)

	// ErrorStyle marks failures.
	ErrorStyle = lipgloss.NewStyle().Bold(true).Foreground(colorBad)

	// WarningStyle marks degraded but non-fatal conditions.
	WarningStyle = lipgloss.NewStyle().Foreground(colorCaution)

	// CmdStyle marks command names and config keys.
	CmdStyle = lipgloss.NewStyle().Foreground(colorCode)

	// PathStyle marks filesystem paths.
	PathStyle = lipgloss.NewStyle().Foreground(colorMuted)
)
