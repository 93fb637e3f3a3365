// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/elsirion/fedi-ppq-mod/internal/model"
	"github.com/elsirion/fedi-ppq-mod/internal/session"
)

// =============================================================================
// MESSAGES
// =============================================================================

// Messages carry controller render commands into the Bubble Tea loop.
type (
	showScreenMsg  struct{ screen session.Screen }
	appendMsg      struct{ msg model.Message }
	transcriptMsg  struct{ msgs []model.Message }
	listMsg        struct{ convs []*model.Conversation }
	titleMsg       struct{ title string }
	balanceMsg     struct{ display string }
	setupStatusMsg struct {
		msg     string
		isError bool
	}
	topupStatusMsg struct {
		msg     string
		isError bool
	}
	hideBannerMsg    struct{}
	focusInputMsg    struct{}
	confirmDeleteMsg struct {
		title string
		reply chan bool
	}
	sendDoneMsg struct{}
)

// =============================================================================
// BRIDGE
// =============================================================================

// sender is the slice of *tea.Program the bridge needs; tests substitute
// a recorder.
type sender interface {
	Send(tea.Msg)
}

// Bridge adapts the controller's view interface onto a running Bubble
// Tea program. Every call becomes a message; the program's Update
// applies it. Safe to call from any goroutine, which is exactly how the
// controller uses it.
type Bridge struct {
	p sender
}

// NewBridge wraps a program (or any sender) as a session view.
func NewBridge(p sender) *Bridge {
	return &Bridge{p: p}
}

var _ session.View = (*Bridge)(nil)

func (b *Bridge) ShowScreen(s session.Screen) {
	b.p.Send(showScreenMsg{screen: s})
}

func (b *Bridge) AppendMessage(msg model.Message) {
	b.p.Send(appendMsg{msg: msg})
}

func (b *Bridge) RenderTranscript(msgs []model.Message) {
	b.p.Send(transcriptMsg{msgs: msgs})
}

func (b *Bridge) RenderConversationList(convs []*model.Conversation) {
	b.p.Send(listMsg{convs: convs})
}

func (b *Bridge) SetConversationTitle(title string) {
	b.p.Send(titleMsg{title: title})
}

func (b *Bridge) SetBalance(display string) {
	b.p.Send(balanceMsg{display: display})
}

func (b *Bridge) ShowSetupStatus(msg string, isError bool) {
	b.p.Send(setupStatusMsg{msg: msg, isError: isError})
}

func (b *Bridge) ShowTopupStatus(msg string, isError bool) {
	b.p.Send(topupStatusMsg{msg: msg, isError: isError})
}

func (b *Bridge) HideTopupBanner() {
	b.p.Send(hideBannerMsg{})
}

// ConfirmDelete blocks the calling goroutine until the user answers the
// overlay. The controller always calls this off the Update loop, so
// blocking here cannot deadlock the program.
func (b *Bridge) ConfirmDelete(title string) bool {
	reply := make(chan bool, 1)
	b.p.Send(confirmDeleteMsg{title: title, reply: reply})
	return <-reply
}

func (b *Bridge) FocusInput() {
	b.p.Send(focusInputMsg{})
}
