// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ui

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/elsirion/fedi-ppq-mod/internal/model"
	"github.com/elsirion/fedi-ppq-mod/internal/session"
)

// recorder captures messages a Bridge sends.
type recorder struct {
	msgs []tea.Msg
}

func (r *recorder) Send(msg tea.Msg) {
	r.msgs = append(r.msgs, msg)
}

func TestBridge_ForwardsRenderCommands(t *testing.T) {
	rec := &recorder{}
	b := NewBridge(rec)

	b.ShowScreen(session.ScreenChat)
	b.AppendMessage(model.NewUserMessage("hi"))
	b.SetBalance("$0.50")
	b.ShowTopupStatus("Confirming payment...", false)
	b.HideTopupBanner()
	b.FocusInput()

	if len(rec.msgs) != 6 {
		t.Fatalf("sent %d messages, want 6", len(rec.msgs))
	}
	if got, ok := rec.msgs[0].(showScreenMsg); !ok || got.screen != session.ScreenChat {
		t.Errorf("msg 0 = %#v", rec.msgs[0])
	}
	if got, ok := rec.msgs[2].(balanceMsg); !ok || got.display != "$0.50" {
		t.Errorf("msg 2 = %#v", rec.msgs[2])
	}
	if got, ok := rec.msgs[3].(topupStatusMsg); !ok || got.isError {
		t.Errorf("msg 3 = %#v", rec.msgs[3])
	}
}

// chanSender hands sent messages to the test goroutine.
type chanSender struct {
	ch chan tea.Msg
}

func (s chanSender) Send(msg tea.Msg) {
	s.ch <- msg
}

func TestBridge_ConfirmDeleteRoundTrip(t *testing.T) {
	ch := make(chan tea.Msg, 1)
	b := NewBridge(chanSender{ch: ch})

	done := make(chan bool, 1)
	go func() {
		done <- b.ConfirmDelete("Old chat")
	}()

	confirm, ok := (<-ch).(confirmDeleteMsg)
	if !ok || confirm.title != "Old chat" {
		t.Fatalf("confirm msg = %#v", confirm)
	}

	confirm.reply <- true
	if !<-done {
		t.Error("ConfirmDelete should return the user's answer")
	}
}

func newSizedModel() Model {
	m := New(nil)
	updated, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	return updated.(Model)
}

func TestUpdate_ScreenSwitchFocusesInput(t *testing.T) {
	m := newSizedModel()

	updated, _ := m.Update(showScreenMsg{screen: session.ScreenChat})
	m = updated.(Model)

	if m.screen != session.ScreenChat {
		t.Errorf("screen = %v", m.screen)
	}
	if !m.input.Focused() {
		t.Error("chat screen must focus the input")
	}
}

func TestUpdate_AppendBuildsTranscript(t *testing.T) {
	m := newSizedModel()
	updated, _ := m.Update(appendMsg{msg: model.NewUserMessage("what is Go?")})
	m = updated.(Model)
	updated, _ = m.Update(appendMsg{msg: model.NewErrorMessage("Error: offline")})
	m = updated.(Model)

	if len(m.transcript) != 2 {
		t.Fatalf("transcript length = %d", len(m.transcript))
	}
	content := m.transcriptView()
	if !strings.Contains(content, "what is Go?") {
		t.Error("transcript should contain the user message")
	}
	if !strings.Contains(content, "Error: offline") {
		t.Error("transcript should contain the error entry")
	}
}

func TestUpdate_BannerChangesViewportHeight(t *testing.T) {
	m := newSizedModel()
	before := m.viewport.Height

	updated, _ := m.Update(topupStatusMsg{msg: "Creating Lightning invoice...", isError: false})
	m = updated.(Model)
	if !m.showBanner {
		t.Fatal("banner should be visible")
	}
	if m.viewport.Height != before-1 {
		t.Errorf("viewport height = %d, want %d", m.viewport.Height, before-1)
	}

	updated, _ = m.Update(hideBannerMsg{})
	m = updated.(Model)
	if m.showBanner || m.viewport.Height != before {
		t.Errorf("banner hidden, viewport height = %d, want %d", m.viewport.Height, before)
	}
}

func TestUpdate_ConfirmOverlayAnswers(t *testing.T) {
	tests := []struct {
		name string
		key  string
		want bool
	}{
		{"yes", "y", true},
		{"no", "n", false},
		{"anything else declines", "x", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newSizedModel()
			reply := make(chan bool, 1)
			updated, _ := m.Update(confirmDeleteMsg{title: "chat", reply: reply})
			m = updated.(Model)
			if m.confirm == nil {
				t.Fatal("overlay should be pending")
			}

			updated, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(tt.key)})
			m = updated.(Model)

			select {
			case got := <-reply:
				if got != tt.want {
					t.Errorf("answer = %v, want %v", got, tt.want)
				}
			default:
				t.Fatal("overlay key must answer the reply channel")
			}
			if m.confirm != nil {
				t.Error("overlay should be dismissed")
			}
		})
	}
}

func TestUpdate_ListEnterWithTextStartsSend(t *testing.T) {
	m := newSizedModel()
	updated, _ := m.Update(showScreenMsg{screen: session.ScreenConversations})
	m = updated.(Model)

	m.input.SetValue("hello from the list")
	updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = updated.(Model)

	if !m.sending {
		t.Error("typed Enter on the list screen should start a send")
	}
	if m.input.Value() != "" {
		t.Error("input should clear on send")
	}
	if cmd == nil {
		t.Error("a send command should be issued")
	}
}

func TestView_SetupErrorShowsRetryHint(t *testing.T) {
	m := newSizedModel()
	updated, _ := m.Update(setupStatusMsg{msg: "Account setup failed: boom", isError: true})
	m = updated.(Model)

	out := m.View()
	if !strings.Contains(out, "retry") {
		t.Error("setup failure view should mention retry")
	}
}

func TestView_ListShowsBalanceAndTitles(t *testing.T) {
	m := newSizedModel()

	conv := model.NewConversation()
	conv.Append(model.NewUserMessage("hello world"))
	conv.DeriveTitle()

	updated, _ := m.Update(showScreenMsg{screen: session.ScreenConversations})
	m = updated.(Model)
	updated, _ = m.Update(listMsg{convs: []*model.Conversation{conv}})
	m = updated.(Model)
	updated, _ = m.Update(balanceMsg{display: "$1.23"})
	m = updated.(Model)

	out := m.View()
	if !strings.Contains(out, "hello world") {
		t.Error("list should show the conversation title")
	}
	if !strings.Contains(out, "$1.23") {
		t.Error("header should show the balance")
	}
}
