// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ui

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/elsirion/fedi-ppq-mod/internal/session"
)

// Update applies controller messages and user input. Controller methods
// block on network I/O, so every call runs as a command off the loop.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	// Controller render commands.
	case showScreenMsg:
		m.screen = msg.screen
		// Both main screens take typed input; the list screen starts a
		// new conversation from it.
		if m.screen == session.ScreenSetup {
			m.input.Blur()
			return m, nil
		}
		m.input.Focus()
		return m, textinput.Blink

	case appendMsg:
		m.transcript = append(m.transcript, msg.msg)
		m.refreshTranscript()
		return m, nil

	case transcriptMsg:
		m.transcript = msg.msgs
		m.refreshTranscript()
		return m, nil

	case listMsg:
		m.convs = msg.convs
		if m.selected >= len(m.convs) {
			m.selected = len(m.convs) - 1
		}
		if m.selected < 0 {
			m.selected = 0
		}
		return m, nil

	case titleMsg:
		m.title = msg.title
		return m, nil

	case balanceMsg:
		m.balance = msg.display
		return m, nil

	case setupStatusMsg:
		m.setupStatus = msg.msg
		m.setupErr = msg.isError
		return m, nil

	case topupStatusMsg:
		m.banner = msg.msg
		m.bannerErr = msg.isError
		m.showBanner = true
		m.resize()
		return m, nil

	case hideBannerMsg:
		m.showBanner = false
		m.resize()
		return m, nil

	case focusInputMsg:
		m.input.Focus()
		return m, textinput.Blink

	case confirmDeleteMsg:
		m.confirm = &msg
		return m, nil

	case sendDoneMsg:
		m.sending = false
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

// handleKey routes a key press to the confirm overlay or the active
// screen.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.confirm != nil {
		return m.handleConfirmKey(msg)
	}

	if key.Matches(msg, m.keys.Quit) {
		return m, tea.Quit
	}

	switch m.screen {
	case session.ScreenSetup:
		return m.handleSetupKey(msg)
	case session.ScreenConversations:
		return m.handleListKey(msg)
	case session.ScreenChat:
		return m.handleChatKey(msg)
	}
	return m, nil
}

// handleConfirmKey answers the pending delete overlay. Any key other
// than an explicit yes declines.
func (m Model) handleConfirmKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	confirm := m.confirm
	m.confirm = nil

	switch msg.String() {
	case "y", "Y":
		confirm.reply <- true
	default:
		confirm.reply <- false
	}
	return m, nil
}

func (m Model) handleSetupKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.setupErr && key.Matches(msg, m.keys.Retry) {
		m.setupErr = false
		ctrl := m.ctrl
		return m, func() tea.Msg {
			ctrl.ProvisionAccount(context.Background())
			return nil
		}
	}
	if msg.String() == "q" {
		return m, tea.Quit
	}
	return m, nil
}

func (m Model) handleListKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	ctrl := m.ctrl

	switch {
	case key.Matches(msg, m.keys.Up):
		if m.selected > 0 {
			m.selected--
		}
		return m, nil

	case key.Matches(msg, m.keys.Down):
		if m.selected < len(m.convs)-1 {
			m.selected++
		}
		return m, nil

	case key.Matches(msg, m.keys.Select):
		// Typed text starts a new conversation with that message, as
		// the original's list-screen input does. An empty input opens
		// the selected conversation instead.
		text := strings.TrimSpace(m.input.Value())
		if text != "" {
			if m.sending {
				return m, nil
			}
			m.input.Reset()
			m.sending = true
			return m, tea.Batch(m.spin.Tick, func() tea.Msg {
				ctrl.SendMessage(context.Background(), text)
				return sendDoneMsg{}
			})
		}
		if len(m.convs) == 0 {
			return m, nil
		}
		id := m.convs[m.selected].ID
		return m, func() tea.Msg {
			ctrl.SelectConversation(id)
			return nil
		}

	case key.Matches(msg, m.keys.New):
		return m, func() tea.Msg {
			ctrl.StartNewConversation()
			return nil
		}

	case key.Matches(msg, m.keys.Delete):
		if len(m.convs) == 0 {
			return m, nil
		}
		id := m.convs[m.selected].ID
		return m, func() tea.Msg {
			ctrl.DeleteConversation(id)
			return nil
		}

	case key.Matches(msg, m.keys.Deposit):
		ctrl.Deposit()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleChatKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	ctrl := m.ctrl

	switch {
	case key.Matches(msg, m.keys.Back):
		return m, func() tea.Msg {
			ctrl.ShowConversationList()
			return nil
		}

	case key.Matches(msg, m.keys.Submit):
		text := strings.TrimSpace(m.input.Value())
		if text == "" || m.sending {
			return m, nil
		}
		m.input.Reset()
		m.sending = true
		return m, tea.Batch(m.spin.Tick, func() tea.Msg {
			ctrl.SendMessage(context.Background(), text)
			return sendDoneMsg{}
		})

	case key.Matches(msg, m.keys.Delete):
		return m, func() tea.Msg {
			ctrl.DeleteActiveConversation()
			return nil
		}

	case key.Matches(msg, m.keys.Deposit):
		ctrl.Deposit()
		return m, nil

	case msg.Type == tea.KeyPgUp || msg.Type == tea.KeyPgDown:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}
