// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/elsirion/fedi-ppq-mod/internal/wallet"
)

// ErrConfirmationTimeout is the failure reason when an invoice stays
// unconfirmed for the full polling window.
var ErrConfirmationTimeout = errors.New("Payment confirmation timeout")

// TopupState is the position of the top-up flow. At rest the state is
// TopupIdle; Succeeded and Failed are reported through the banner and
// the flow returns to idle.
type TopupState int

const (
	TopupIdle TopupState = iota
	TopupInvoiceRequested
	TopupAwaitingWallet
	TopupAwaitingConfirmation
	TopupSucceeded
	TopupFailed
)

// String returns the state name for logging.
func (s TopupState) String() string {
	switch s {
	case TopupIdle:
		return "idle"
	case TopupInvoiceRequested:
		return "invoice-requested"
	case TopupAwaitingWallet:
		return "awaiting-wallet"
	case TopupAwaitingConfirmation:
		return "awaiting-confirmation"
	case TopupSucceeded:
		return "succeeded"
	case TopupFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// TopupState returns the current position of the top-up flow.
func (c *Controller) TopupState() TopupState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.topupState
}

// IsToppingUp reports whether a top-up attempt is in flight.
func (c *Controller) IsToppingUp() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.isTopping
}

// LastTopupError returns the failure reason of the most recent top-up
// attempt, or nil if it succeeded.
func (c *Controller) LastTopupError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastTopupErr
}

func (c *Controller) setTopupState(s TopupState) {
	c.mu.Lock()
	c.topupState = s
	attempt := c.topupAttempt
	c.mu.Unlock()
	log.Printf("top-up %s: state %s", attempt, s)
}

// Deposit starts a manual top-up in the background, the same flow the
// balance monitor triggers automatically. The retry affordance after a
// failed attempt calls this too.
func (c *Controller) Deposit() {
	go c.TopUp(c.ctx)
}

// =============================================================================
// TOP-UP FLOW
// =============================================================================

// TopUp runs one invoice-to-confirmation top-up attempt. Only one
// attempt runs at a time; a call while one is in flight is a no-op. The
// low-balance monitor, the balance-exhausted send path and the manual
// deposit action all funnel through here.
func (c *Controller) TopUp(ctx context.Context) {
	c.mu.Lock()
	if c.isTopping {
		c.mu.Unlock()
		return
	}
	c.isTopping = true
	c.topupState = TopupInvoiceRequested
	c.topupAttempt = uuid.NewString()
	c.lastTopupErr = nil
	attempt := c.topupAttempt
	c.mu.Unlock()

	log.Printf("top-up %s: started", attempt)

	if err := c.runTopup(ctx); err != nil {
		log.Printf("top-up %s: failed: %v", attempt, err)
		c.mu.Lock()
		c.topupState = TopupFailed
		c.lastTopupErr = err
		c.mu.Unlock()

		c.view.ShowTopupStatus("Top-up failed: "+err.Error(), true)

		c.mu.Lock()
		c.isTopping = false
		c.topupState = TopupIdle
		c.mu.Unlock()
		return
	}

	log.Printf("top-up %s: confirmed", attempt)
	c.setTopupState(TopupSucceeded)
	c.view.ShowTopupStatus("Top-up successful!", false)

	// Refresh while isTopping still holds, so a balance that is somehow
	// still low cannot start a second attempt underneath this one.
	c.RefreshBalance(ctx)

	select {
	case <-time.After(c.successDelay):
	case <-ctx.Done():
	}

	c.view.HideTopupBanner()
	c.mu.Lock()
	c.isTopping = false
	c.topupState = TopupIdle
	c.mu.Unlock()
}

// runTopup walks the attempt through its states and returns the failure
// reason, if any.
func (c *Controller) runTopup(ctx context.Context) error {
	c.view.ShowTopupStatus("Creating Lightning invoice...", false)

	inv, err := c.billingClient().CreateInvoice(ctx, c.cfg.Billing.TopupAmount, c.cfg.Billing.TopupCurrency)
	if err != nil {
		return err
	}

	// Wallet absence is a normal failure, reported before any payment
	// attempt. The invoice is simply abandoned.
	if !c.wallet.Available() {
		log.Printf("no wallet available for invoice %s", inv.ID)
		return wallet.ErrUnavailable
	}

	c.setTopupState(TopupAwaitingWallet)
	c.view.ShowTopupStatus("Approve payment in wallet...", false)

	if err := c.wallet.Enable(ctx); err != nil {
		return err
	}
	if err := c.wallet.SendPayment(ctx, inv.Encoded); err != nil {
		return err
	}

	c.setTopupState(TopupAwaitingConfirmation)
	c.view.ShowTopupStatus("Confirming payment...", false)

	return c.awaitConfirmation(ctx, inv.ID)
}

// awaitConfirmation polls the invoice until it confirms or the attempt
// budget runs out. Individual poll failures are tolerated; the invoice
// may confirm on a later attempt.
func (c *Controller) awaitConfirmation(ctx context.Context, invoiceID string) error {
	for i := 0; i < c.topupAttempts; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.topupInterval):
		}

		st, err := c.billingClient().InvoiceStatus(ctx, invoiceID)
		if err != nil {
			log.Printf("invoice status check failed: %v", err)
			continue
		}
		if st.Confirmed() {
			return nil
		}
	}
	return ErrConfirmationTimeout
}
