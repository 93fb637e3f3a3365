// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ui implements the terminal interface: a Bubble Tea program
// with three screens (setup, conversation list, chat) driven by the
// session controller.
package ui

import "github.com/charmbracelet/lipgloss"

// =============================================================================
// COLORS
// =============================================================================

// Colors use AdaptiveColor so light and dark terminals both read well.
var (
	// Purple - accent, assistant messages, selections
	colorAccent = lipgloss.AdaptiveColor{Light: "#7C3AED", Dark: "#A78BFA"}

	// Cyan - user highlights, balance display
	colorInfo = lipgloss.AdaptiveColor{Light: "#0891B2", Dark: "#22D3EE"}

	// Emerald - success states
	colorSuccess = lipgloss.AdaptiveColor{Light: "#059669", Dark: "#34D399"}

	// Rose - errors, delete confirmation
	colorError = lipgloss.AdaptiveColor{Light: "#E11D48", Dark: "#FB7185"}

	// Amber - top-up banner, warnings
	colorWarn = lipgloss.AdaptiveColor{Light: "#D97706", Dark: "#FBBF24"}

	// Muted text - hints, timestamps
	colorMuted = lipgloss.AdaptiveColor{Light: "#9CA3AF", Dark: "#6C7086"}

	// Main body text
	colorText = lipgloss.AdaptiveColor{Light: "#1F2937", Dark: "#CDD6F4"}
)

// =============================================================================
// STYLES
// =============================================================================

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorAccent)

	balanceStyle = lipgloss.NewStyle().
			Foreground(colorInfo)

	balanceErrorStyle = lipgloss.NewStyle().
				Foreground(colorError)

	titleStyle = lipgloss.NewStyle().
			Foreground(colorText).
			Bold(true)

	userLabelStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorInfo)

	assistantLabelStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(colorAccent)

	errorTextStyle = lipgloss.NewStyle().
			Foreground(colorError)

	selectedItemStyle = lipgloss.NewStyle().
				Foreground(colorAccent).
				Bold(true)

	itemStyle = lipgloss.NewStyle().
			Foreground(colorText)

	itemMetaStyle = lipgloss.NewStyle().
			Foreground(colorMuted)

	helpStyle = lipgloss.NewStyle().
			Foreground(colorMuted)

	bannerStyle = lipgloss.NewStyle().
			Foreground(colorWarn).
			Bold(true)

	bannerErrorStyle = lipgloss.NewStyle().
				Foreground(colorError).
				Bold(true)

	successStyle = lipgloss.NewStyle().
			Foreground(colorSuccess).
			Bold(true)

	confirmStyle = lipgloss.NewStyle().
			Foreground(colorError).
			Bold(true)

	setupStyle = lipgloss.NewStyle().
			Foreground(colorText)
)
