// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"github.com/elsirion/fedi-ppq-mod/internal/model"
)

// Screen identifies one of the application's three screens.
type Screen int

const (
	// ScreenSetup shows account-provisioning progress.
	ScreenSetup Screen = iota
	// ScreenConversations lists stored conversations.
	ScreenConversations
	// ScreenChat shows the active conversation transcript.
	ScreenChat
)

// String returns the screen name for logging.
func (s Screen) String() string {
	switch s {
	case ScreenSetup:
		return "setup"
	case ScreenConversations:
		return "conversations"
	case ScreenChat:
		return "chat"
	default:
		return "unknown"
	}
}

// View is the rendering collaborator the controller drives. The
// controller never inspects view internals; it issues render commands
// and receives user intents as method calls on itself.
//
// Implementations must tolerate calls from multiple goroutines: the
// balance monitor, the top-up task and the summarizer all report
// asynchronously.
type View interface {
	// ShowScreen switches the visible screen.
	ShowScreen(screen Screen)

	// AppendMessage appends one message to the visible transcript.
	AppendMessage(msg model.Message)

	// RenderTranscript replaces the visible transcript, in order, and
	// scrolls to the end.
	RenderTranscript(msgs []model.Message)

	// RenderConversationList replaces the conversation list.
	RenderConversationList(convs []*model.Conversation)

	// SetConversationTitle updates the chat header title.
	SetConversationTitle(title string)

	// SetBalance updates the balance display ("$0.12", "$...", "Error").
	SetBalance(display string)

	// ShowSetupStatus reports account-provisioning progress. When
	// isError is true the view surfaces a retry affordance.
	ShowSetupStatus(message string, isError bool)

	// ShowTopupStatus reports top-up progress in the banner. When
	// isError is true the view surfaces a manual retry affordance.
	ShowTopupStatus(message string, isError bool)

	// HideTopupBanner dismisses the top-up banner.
	HideTopupBanner()

	// ConfirmDelete blocks on a yes/no gate for deleting the named
	// conversation and returns the user's answer.
	ConfirmDelete(title string) bool

	// FocusInput returns input focus to the message entry.
	FocusInput()
}
