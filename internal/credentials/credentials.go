// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package credentials persists the API credential pair across sessions.
package credentials

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/elsirion/fedi-ppq-mod/internal/util"
)

// ErrNotFound is returned when no credential has been provisioned yet.
var ErrNotFound = errors.New("credentials not found")

// Credential is the API key and credit identifier issued by account
// provisioning. It is created once and never mutated afterwards.
type Credential struct {
	APIKey   string `json:"api_key"`
	CreditID string `json:"credit_id"`
}

// Valid reports whether both fields are present.
func (c Credential) Valid() bool {
	return c.APIKey != "" && c.CreditID != ""
}

// Store reads and writes the credential file.
type Store struct {
	path string
}

// NewStore creates a store backed by the given file path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Load reads the persisted credential. ErrNotFound means the account has
// not been provisioned on this machine.
func (s *Store) Load() (Credential, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return Credential{}, ErrNotFound
		}
		return Credential{}, fmt.Errorf("failed to read credentials: %w", err)
	}

	var cred Credential
	if err := json.Unmarshal(data, &cred); err != nil {
		return Credential{}, fmt.Errorf("failed to parse credentials: %w", err)
	}
	if !cred.Valid() {
		return Credential{}, ErrNotFound
	}
	return cred, nil
}

// Save persists the credential. The file is written atomically and
// readable only by the owner.
func (s *Store) Save(cred Credential) error {
	if !cred.Valid() {
		return errors.New("refusing to save incomplete credentials")
	}

	data, err := json.MarshalIndent(cred, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal credentials: %w", err)
	}
	return util.AtomicWriteFile(s.path, data, 0600)
}

// Reset removes the persisted credential. Not reachable from the UI;
// kept for tests and a future account-reset surface.
func (s *Store) Reset() error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove credentials: %w", err)
	}
	return nil
}
