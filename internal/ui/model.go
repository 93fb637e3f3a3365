// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ui

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"

	"github.com/elsirion/fedi-ppq-mod/internal/model"
	"github.com/elsirion/fedi-ppq-mod/internal/session"
)

// inputCharLimit bounds a single message.
const inputCharLimit = 4000

// =============================================================================
// MODEL
// =============================================================================

// Model is the Bubble Tea model for the whole application.
type Model struct {
	ctrl *session.Controller
	keys KeyMap

	screen session.Screen
	width  int
	height int
	ready  bool

	viewport viewport.Model
	input    textinput.Model
	spin     spinner.Model

	transcript []model.Message
	convs      []*model.Conversation
	selected   int

	title   string
	balance string

	setupStatus string
	setupErr    bool

	banner     string
	bannerErr  bool
	showBanner bool

	sending bool

	// confirm holds the pending delete overlay; nil when none is up.
	confirm *confirmDeleteMsg

	md *glamour.TermRenderer
}

// New creates the application model around a session controller.
func New(ctrl *session.Controller) Model {
	input := textinput.New()
	input.Placeholder = "Type a message..."
	input.CharLimit = inputCharLimit

	spin := spinner.New()
	spin.Spinner = spinner.Dot
	spin.Style = headerStyle

	return Model{
		ctrl:   ctrl,
		keys:   DefaultKeyMap(),
		screen: session.ScreenSetup,
		input:  input,
		spin:   spin,
		title:  model.DefaultTitle,
	}
}

// Init starts the spinner and boots the controller.
func (m Model) Init() tea.Cmd {
	ctrl := m.ctrl
	return tea.Batch(
		m.spin.Tick,
		textinput.Blink,
		func() tea.Msg {
			ctrl.Start(context.Background())
			return nil
		},
	)
}

// =============================================================================
// TRANSCRIPT RENDERING
// =============================================================================

// renderMarkdown renders assistant markdown for the terminal, falling
// back to the raw text when the renderer is unavailable or fails.
func (m *Model) renderMarkdown(content string) string {
	if m.md == nil {
		return content
	}
	rendered, err := m.md.Render(content)
	if err != nil {
		return content
	}
	return strings.TrimRight(rendered, "\n") + "\n"
}

// transcriptView builds the viewport content from the transcript.
func (m *Model) transcriptView() string {
	var b strings.Builder
	for _, msg := range m.transcript {
		switch msg.Role {
		case model.RoleUser:
			b.WriteString(userLabelStyle.Render("You"))
			b.WriteString("\n")
			b.WriteString(msg.Content)
			b.WriteString("\n\n")
		case model.RoleAssistant:
			b.WriteString(assistantLabelStyle.Render("Assistant"))
			b.WriteString("\n")
			b.WriteString(m.renderMarkdown(msg.Content))
			b.WriteString("\n")
		case model.RoleError:
			b.WriteString(errorTextStyle.Render(msg.Content))
			b.WriteString("\n\n")
		}
	}
	return b.String()
}

// refreshTranscript pushes the transcript into the viewport and scrolls
// to the newest message.
func (m *Model) refreshTranscript() {
	m.viewport.SetContent(m.transcriptView())
	m.viewport.GotoBottom()
}

// chromeHeight is the number of terminal rows used by everything except
// the viewport on the chat screen.
func (m *Model) chromeHeight() int {
	h := 5 // header, separator, input, separator, help
	if m.showBanner {
		h++
	}
	return h
}

// resize recomputes component dimensions after a terminal resize or a
// banner visibility change.
func (m *Model) resize() {
	if m.width == 0 || m.height == 0 {
		return
	}

	vpHeight := m.height - m.chromeHeight()
	if vpHeight < 1 {
		vpHeight = 1
	}
	if !m.ready {
		m.viewport = viewport.New(m.width, vpHeight)
		m.ready = true
	} else {
		m.viewport.Width = m.width
		m.viewport.Height = vpHeight
	}

	m.input.Width = m.width - 4

	wrap := m.width - 2
	if wrap > 100 {
		wrap = 100
	}
	if wrap > 0 {
		if md, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(wrap),
		); err == nil {
			m.md = md
		}
	}

	m.refreshTranscript()
}
