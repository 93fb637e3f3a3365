// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/elsirion/fedi-ppq-mod/internal/session"
	"github.com/elsirion/fedi-ppq-mod/internal/util"
)

// listTitleMaxRunes bounds a conversation title in the list.
const listTitleMaxRunes = 60

// View renders the active screen.
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	if m.confirm != nil {
		return m.renderConfirmOverlay()
	}

	switch m.screen {
	case session.ScreenSetup:
		return m.renderSetup()
	case session.ScreenConversations:
		return m.renderList()
	case session.ScreenChat:
		return m.renderChat()
	}
	return ""
}

// =============================================================================
// HEADER
// =============================================================================

// renderHeader draws the top line: app name or conversation title on the
// left, balance on the right.
func (m Model) renderHeader(left string) string {
	balance := m.balance
	if balance == "" {
		balance = "$..."
	}
	style := balanceStyle
	if balance == "Error" {
		style = balanceErrorStyle
	}
	right := style.Render(balance)

	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		gap = 1
	}
	return left + strings.Repeat(" ", gap) + right
}

func (m Model) separator() string {
	return helpStyle.Render(strings.Repeat("─", m.width))
}

// =============================================================================
// SETUP SCREEN
// =============================================================================

func (m Model) renderSetup() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("ppqchat"))
	b.WriteString("\n\n")

	if m.setupErr {
		b.WriteString(errorTextStyle.Render(m.setupStatus))
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("r retry · q quit"))
	} else {
		status := m.setupStatus
		if status == "" {
			status = "Starting..."
		}
		b.WriteString(m.spin.View())
		b.WriteString(" ")
		b.WriteString(setupStyle.Render(status))
	}

	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, b.String())
}

// =============================================================================
// CONVERSATION LIST SCREEN
// =============================================================================

func (m Model) renderList() string {
	var b strings.Builder
	b.WriteString(m.renderHeader(headerStyle.Render("ppqchat")))
	b.WriteString("\n")
	b.WriteString(m.separator())
	b.WriteString("\n")

	if m.showBanner {
		b.WriteString(m.renderBanner())
		b.WriteString("\n")
	}

	if len(m.convs) == 0 {
		b.WriteString("\n")
		b.WriteString(itemMetaStyle.Render("  No conversations yet. Type a message or press C-n."))
		b.WriteString("\n")
	}

	visible := m.height - 6
	if m.showBanner {
		visible--
	}
	start := 0
	if m.selected >= visible && visible > 0 {
		start = m.selected - visible + 1
	}
	for i := start; i < len(m.convs) && i-start < visible; i++ {
		conv := m.convs[i]
		title := util.Ellipsize(conv.DisplayTitle(), listTitleMaxRunes)
		meta := fmt.Sprintf(" · %d messages · %s", conv.MessageCount(), conv.CreatedAt.Format("Jan 2 15:04"))

		if i == m.selected {
			b.WriteString(selectedItemStyle.Render("> " + title))
		} else {
			b.WriteString(itemStyle.Render("  " + title))
		}
		b.WriteString(itemMetaStyle.Render(meta))
		b.WriteString("\n")
	}

	body := b.String()
	footer := m.separator() + "\n"
	if m.sending {
		footer += m.spin.View() + " "
	}
	footer += m.input.View() + "\n" +
		helpStyle.Render("type+Enter new chat · Enter open · C-n new · C-x delete · C-t top up · C-c quit")
	return m.padToBottom(body, footer)
}

// =============================================================================
// CHAT SCREEN
// =============================================================================

func (m Model) renderChat() string {
	var b strings.Builder
	b.WriteString(m.renderHeader(titleStyle.Render(util.Ellipsize(m.title, listTitleMaxRunes))))
	b.WriteString("\n")

	if m.showBanner {
		b.WriteString(m.renderBanner())
		b.WriteString("\n")
	}

	b.WriteString(m.viewport.View())
	b.WriteString("\n")
	b.WriteString(m.separator())
	b.WriteString("\n")

	if m.sending {
		b.WriteString(m.spin.View())
		b.WriteString(" ")
	}
	b.WriteString(m.input.View())
	b.WriteString("\n")
	b.WriteString(helpStyle.Render("Enter send · Esc conversations · C-x delete chat"))

	return b.String()
}

// renderBanner draws the top-up status line.
func (m Model) renderBanner() string {
	style := bannerStyle
	switch {
	case m.bannerErr:
		style = bannerErrorStyle
	case strings.Contains(m.banner, "successful"):
		style = successStyle
	}
	text := m.banner
	if m.bannerErr {
		text += "  (C-t to retry)"
	}
	return style.Render(text)
}

// =============================================================================
// CONFIRM OVERLAY
// =============================================================================

func (m Model) renderConfirmOverlay() string {
	title := util.Ellipsize(m.confirm.title, 40)
	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(colorError).
		Padding(1, 2).
		Render(confirmStyle.Render("Delete \""+title+"\"?") + "\n\n" + helpStyle.Render("y delete · any other key cancel"))
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, box)
}

// padToBottom pins the footer to the bottom rows.
func (m Model) padToBottom(body, footer string) string {
	pad := m.height - lipgloss.Height(body) - lipgloss.Height(footer)
	if pad < 0 {
		pad = 0
	}
	return body + strings.Repeat("\n", pad) + footer
}
