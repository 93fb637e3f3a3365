// ppqchat - a prepaid LLM chat client for the terminal.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"fmt"
	"log"
	"os"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"

	"github.com/elsirion/fedi-ppq-mod/internal/config"
	"github.com/elsirion/fedi-ppq-mod/internal/credentials"
	"github.com/elsirion/fedi-ppq-mod/internal/session"
	"github.com/elsirion/fedi-ppq-mod/internal/storage"
	"github.com/elsirion/fedi-ppq-mod/internal/ui"
	"github.com/elsirion/fedi-ppq-mod/internal/wallet"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
)

// programSender forwards controller render commands to the Bubble Tea
// program. The program is created after the controller, so the pointer
// is bound late.
type programSender struct {
	mu sync.Mutex
	p  *tea.Program
}

func (s *programSender) bind(p *tea.Program) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.p = p
}

func (s *programSender) Send(msg tea.Msg) {
	s.mu.Lock()
	p := s.p
	s.mu.Unlock()
	if p != nil {
		p.Send(msg)
	}
}

func main() {
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-v" {
			fmt.Printf("ppqchat %s (%s)\n", Version, GitCommit)
			return
		}
	}

	if !term.IsTerminal(int(os.Stdout.Fd())) {
		fmt.Fprintln(os.Stderr, "ppqchat is a terminal application; stdout is not a terminal")
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to create %s: %v\n", cfg.DataDir, err)
		os.Exit(1)
	}

	// Log to a file; stdout belongs to the TUI.
	logFile, err := os.OpenFile(cfg.LogPath(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to open log file: %v\n", err)
		os.Exit(1)
	}
	defer logFile.Close()
	log.SetOutput(logFile)
	log.Printf("ppqchat %s starting", Version)

	credStore := credentials.NewStore(cfg.CredentialsPath())
	convStore, err := storage.NewConversationStore(cfg.ConversationsPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	sender := &programSender{}
	bridge := ui.NewBridge(sender)

	// No wallet capability is injected in the standalone build; top-ups
	// report the wallet-required failure until one is.
	ctrl := session.NewController(cfg, bridge, wallet.Unavailable(), credStore, convStore)
	defer ctrl.Close()

	p := tea.NewProgram(ui.New(ctrl), tea.WithAltScreen())
	sender.bind(p)

	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	log.Printf("ppqchat exiting")
}
