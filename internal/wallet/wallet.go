// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package wallet models the externally injected Lightning wallet
// capability. The wallet may be absent at runtime; absence is a normal,
// reported failure mode, never a crash.
package wallet

import (
	"context"
	"errors"
)

// ErrUnavailable is returned when no wallet capability was injected.
// The top-up flow surfaces it verbatim as the "wallet required" failure.
var ErrUnavailable = errors.New("Add mini-app to Fedi Wallet")

// Gateway is the capability needed to settle a Lightning invoice.
type Gateway interface {
	// Available reports whether a wallet was injected. When false, the
	// other methods fail with ErrUnavailable.
	Available() bool

	// Enable asks the wallet to authorize this application. Must be
	// called before SendPayment.
	Enable(ctx context.Context) error

	// SendPayment submits an encoded (bolt11) invoice for payment. The
	// wallet may reject it or the user may decline approval.
	SendPayment(ctx context.Context, encodedInvoice string) error
}

// Unavailable returns the gateway used when no wallet was injected.
func Unavailable() Gateway {
	return unavailable{}
}

type unavailable struct{}

func (unavailable) Available() bool { return false }

func (unavailable) Enable(context.Context) error { return ErrUnavailable }

func (unavailable) SendPayment(context.Context, string) error { return ErrUnavailable }
