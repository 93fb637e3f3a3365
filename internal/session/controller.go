// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session holds the application state machine. The Controller
// owns all mutable state (active conversation, in-flight flags, selected
// model, balance) and drives a View; the view layer renders and forwards
// user intents back as method calls.
package session

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/elsirion/fedi-ppq-mod/internal/billing"
	"github.com/elsirion/fedi-ppq-mod/internal/config"
	"github.com/elsirion/fedi-ppq-mod/internal/credentials"
	"github.com/elsirion/fedi-ppq-mod/internal/model"
	"github.com/elsirion/fedi-ppq-mod/internal/ppq"
	"github.com/elsirion/fedi-ppq-mod/internal/storage"
	"github.com/elsirion/fedi-ppq-mod/internal/wallet"
)

// summaryPrompt asks the summary model for a one-line conversation title.
const summaryPrompt = "Summarize the following conversation in one short sentence (max 60 characters). Be concise and capture the main topic:"

// defaultReadyDelay is how long the "Ready!" setup status stays visible
// before the main screen appears.
const defaultReadyDelay = 500 * time.Millisecond

// =============================================================================
// CONTROLLER
// =============================================================================

// Controller coordinates credential provisioning, conversations, chat
// completions, the balance monitor and the top-up flow. All exported
// methods are safe for concurrent use.
type Controller struct {
	mu sync.Mutex

	cfg    *config.Config
	view   View
	wallet wallet.Gateway
	creds  *credentials.Store
	store  *storage.ConversationStore

	chat    *ppq.Client
	billing *billing.Client

	selectedModel string
	balance       float64

	activeID  string
	history   []model.Message
	isSending bool

	isTopping     bool
	topupState    TopupState
	lastTopupErr  error
	topupAttempt  string
	readyDelay    time.Duration
	successDelay  time.Duration
	topupInterval time.Duration
	topupAttempts int

	// ctx scopes background tasks (balance refresh, polling, summaries)
	// to the controller lifetime. Close cancels them.
	ctx    context.Context
	cancel context.CancelFunc
}

// NewController wires the controller to its collaborators. Clients are
// built from the configured base URL; the API key is attached once a
// credential is loaded or provisioned.
func NewController(cfg *config.Config, view View, gw wallet.Gateway, creds *credentials.Store, store *storage.ConversationStore) *Controller {
	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		cfg:           cfg,
		view:          view,
		wallet:        gw,
		creds:         creds,
		store:         store,
		chat:          ppq.NewClient(cfg.APIBaseURL, ""),
		topupState:    TopupIdle,
		readyDelay:    defaultReadyDelay,
		successDelay:  2 * time.Second,
		topupInterval: cfg.Billing.PollInterval,
		topupAttempts: cfg.Billing.PollAttempts,
		ctx:           ctx,
		cancel:        cancel,
	}
}

// Close cancels all background work owned by the controller.
func (c *Controller) Close() {
	c.cancel()
}

// configure attaches the credential to the API clients.
func (c *Controller) configure(cred credentials.Credential) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.chat = c.chat.WithAPIKey(cred.APIKey)
	c.billing = billing.NewClient(c.cfg.APIBaseURL, cred.APIKey)
}

func (c *Controller) chatClient() *ppq.Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.chat
}

func (c *Controller) billingClient() *billing.Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.billing
}

// =============================================================================
// STARTUP
// =============================================================================

// Start brings the application up: a stored credential goes straight to
// the conversation list, otherwise the setup screen provisions one.
func (c *Controller) Start(ctx context.Context) {
	cred, err := c.creds.Load()
	if err == nil && cred.Valid() {
		log.Printf("credential loaded, entering main screen")
		c.configure(cred)
		c.enterMain(ctx)
		return
	}

	log.Printf("no stored credential, starting setup")
	c.view.ShowScreen(ScreenSetup)
	c.ProvisionAccount(ctx)
}

// ProvisionAccount creates a new account and stores its credential. The
// view calls this again when the user retries after a failure.
func (c *Controller) ProvisionAccount(ctx context.Context) {
	c.view.ShowSetupStatus("Creating account...", false)

	acct, err := c.chatClient().CreateAccount(ctx)
	if err != nil {
		log.Printf("account provisioning failed: %v", err)
		c.view.ShowSetupStatus("Account setup failed: "+err.Error(), true)
		return
	}

	cred := credentials.Credential{APIKey: acct.APIKey, CreditID: acct.CreditID}
	if err := c.creds.Save(cred); err != nil {
		log.Printf("credential save failed: %v", err)
		c.view.ShowSetupStatus("Account setup failed: "+err.Error(), true)
		return
	}

	c.configure(cred)
	c.view.ShowSetupStatus("Ready!", false)
	select {
	case <-time.After(c.readyDelay):
	case <-ctx.Done():
	}
	c.enterMain(ctx)
}

// enterMain shows the conversation list and kicks off model selection
// and the first balance check.
func (c *Controller) enterMain(ctx context.Context) {
	c.view.RenderConversationList(c.store.List())
	c.view.ShowScreen(ScreenConversations)
	c.selectModel(ctx)
	c.RefreshBalance(ctx)
}

// =============================================================================
// MODEL SELECTION
// =============================================================================

// selectModel picks the completion model: the configured model when the
// server lists it, otherwise the first listed model. When listing fails
// the configured model is used unverified.
func (c *Controller) selectModel(ctx context.Context) {
	pick := c.cfg.ChatModel

	models, err := c.chatClient().ListModels(ctx)
	switch {
	case err != nil:
		log.Printf("model listing failed, keeping %q: %v", pick, err)
	case len(models) == 0:
		log.Printf("model listing empty, keeping %q", pick)
	default:
		found := false
		for _, m := range models {
			if m.ID == pick {
				found = true
				break
			}
		}
		if !found {
			pick = models[0].ID
		}
	}

	c.mu.Lock()
	c.selectedModel = pick
	c.mu.Unlock()
	log.Printf("selected model: %s", pick)
}

// SelectedModel returns the model used for completions.
func (c *Controller) SelectedModel() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.selectedModel == "" {
		return c.cfg.ChatModel
	}
	return c.selectedModel
}

// =============================================================================
// BALANCE MONITOR
// =============================================================================

// RefreshBalance fetches the prepaid balance and updates the display.
// A reading below the configured threshold starts a top-up, unless one
// is already in flight.
func (c *Controller) RefreshBalance(ctx context.Context) {
	c.view.SetBalance("$...")

	billingClient := c.billingClient()
	if billingClient == nil {
		c.view.SetBalance("Error")
		return
	}

	bal, err := billingClient.Balance(ctx)
	if err != nil {
		log.Printf("balance check failed: %v", err)
		c.view.SetBalance("Error")
		return
	}

	c.mu.Lock()
	c.balance = bal
	topping := c.isTopping
	c.mu.Unlock()

	c.view.SetBalance(fmt.Sprintf("$%.2f", bal))

	if bal < c.cfg.Billing.LowBalanceThreshold && !topping {
		log.Printf("balance %.4f below threshold %.4f, starting top-up", bal, c.cfg.Billing.LowBalanceThreshold)
		go c.TopUp(c.ctx)
	}
}

// Balance returns the last fetched balance.
func (c *Controller) Balance() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.balance
}

// =============================================================================
// CONVERSATION LIFECYCLE
// =============================================================================

// ActiveConversationID returns the ID of the open conversation, or ""
// when the list screen is active.
func (c *Controller) ActiveConversationID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.activeID
}

// StartNewConversation creates an empty conversation, persists it at the
// head of the collection and opens it.
func (c *Controller) StartNewConversation() error {
	conv := model.NewConversation()
	if err := c.store.Prepend(conv); err != nil {
		log.Printf("failed to persist new conversation: %v", err)
		return err
	}

	c.mu.Lock()
	c.activeID = conv.ID
	c.history = nil
	c.mu.Unlock()

	c.view.SetConversationTitle(conv.Title)
	c.view.RenderTranscript(nil)
	c.view.ShowScreen(ScreenChat)
	c.view.FocusInput()
	return nil
}

// SelectConversation opens a stored conversation. An unknown ID is a
// logged no-op; the list may be stale.
func (c *Controller) SelectConversation(id string) {
	conv, err := c.store.Get(id)
	if err != nil {
		log.Printf("select of unknown conversation %q ignored", id)
		return
	}

	c.mu.Lock()
	c.activeID = conv.ID
	c.history = append([]model.Message(nil), conv.Messages...)
	c.mu.Unlock()

	c.view.SetConversationTitle(conv.DisplayTitle())
	c.view.RenderTranscript(conv.Messages)
	c.view.ShowScreen(ScreenChat)
	c.view.FocusInput()
}

// ShowConversationList deactivates the open conversation and returns to
// the list screen.
func (c *Controller) ShowConversationList() {
	c.mu.Lock()
	c.activeID = ""
	c.history = nil
	c.mu.Unlock()

	c.view.RenderConversationList(c.store.List())
	c.view.ShowScreen(ScreenConversations)
}

// DeleteConversation removes a conversation after the view's yes/no
// gate confirms. Deleting the active conversation also deactivates it.
func (c *Controller) DeleteConversation(id string) {
	conv, err := c.store.Get(id)
	if err != nil {
		return
	}
	if !c.view.ConfirmDelete(conv.DisplayTitle()) {
		return
	}

	if err := c.store.Delete(id); err != nil {
		log.Printf("delete failed: %v", err)
		return
	}
	log.Printf("deleted conversation %s", id)

	if c.ActiveConversationID() == id {
		c.ShowConversationList()
		return
	}
	c.view.RenderConversationList(c.store.List())
}

// DeleteActiveConversation removes the open conversation.
func (c *Controller) DeleteActiveConversation() {
	id := c.ActiveConversationID()
	if id == "" {
		return
	}
	c.DeleteConversation(id)
}

// =============================================================================
// SENDING
// =============================================================================

// SendMessage submits the user's text to the completion API and appends
// the exchange to the active conversation. Blank input and sends while a
// send is in flight are ignored. With no active conversation a new one
// is started first.
func (c *Controller) SendMessage(ctx context.Context, text string) {
	text = strings.TrimSpace(text)

	c.mu.Lock()
	if text == "" || c.isSending {
		c.mu.Unlock()
		return
	}
	c.isSending = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.isSending = false
		c.mu.Unlock()
		c.view.FocusInput()
	}()

	if c.ActiveConversationID() == "" {
		if err := c.StartNewConversation(); err != nil {
			c.view.AppendMessage(model.NewErrorMessage("Error: " + err.Error()))
			return
		}
	}

	c.appendToActive(model.NewUserMessage(text))

	req := ppq.ChatRequest{
		Model:       c.SelectedModel(),
		Messages:    c.chatHistory(),
		Temperature: c.cfg.Temperature,
	}

	resp, err := c.chatClient().Chat(ctx, req)
	if err != nil {
		if ppq.IsBalanceError(err) {
			log.Printf("send hit balance exhaustion: %v", err)
			c.appendToActive(model.NewErrorMessage("Insufficient balance. Topping up..."))
			go c.TopUp(c.ctx)
			return
		}
		log.Printf("send failed: %v", err)
		c.appendToActive(model.NewErrorMessage("Error: " + err.Error()))
		return
	}

	c.appendToActive(model.NewAssistantMessage(resp.Content()))

	convID := c.ActiveConversationID()
	go c.summarize(c.ctx, convID)
	go c.RefreshBalance(c.ctx)
}

// chatHistory projects the in-memory transcript onto the request shape,
// dropping local error entries.
func (c *Controller) chatHistory() []ppq.ChatMessage {
	c.mu.Lock()
	defer c.mu.Unlock()

	msgs := make([]ppq.ChatMessage, 0, len(c.history))
	for _, m := range c.history {
		if m.Role.IsChatRole() {
			msgs = append(msgs, ppq.ChatMessage{Role: string(m.Role), Content: m.Content})
		}
	}
	return msgs
}

// appendToActive appends to the transcript, renders the message and
// persists the conversation. Persisting after every append means a crash
// mid-request loses nothing already shown.
func (c *Controller) appendToActive(msg model.Message) {
	c.mu.Lock()
	c.history = append(c.history, msg)
	id := c.activeID
	snapshot := append([]model.Message(nil), c.history...)
	c.mu.Unlock()

	c.view.AppendMessage(msg)
	c.persist(id, snapshot)
}

// persist writes the transcript back to the store and refreshes the
// title, which the first user message may have just named.
func (c *Controller) persist(id string, msgs []model.Message) {
	var title string
	err := c.store.UpdateFunc(id, func(conv *model.Conversation) {
		conv.Messages = msgs
		conv.DeriveTitle()
		title = conv.DisplayTitle()
	})
	if err != nil {
		log.Printf("persist of conversation %s skipped: %v", id, err)
		return
	}

	if c.ActiveConversationID() == id {
		c.view.SetConversationTitle(title)
	}
}

// =============================================================================
// SUMMARIZATION
// =============================================================================

// summarize asks the summary model for a one-line description of the
// conversation and applies it by ID, so a conversation deleted or
// switched away from while the request was in flight is left alone.
// Failures are logged and dropped; summaries are a nicety.
func (c *Controller) summarize(ctx context.Context, convID string) {
	conv, err := c.store.Get(convID)
	if err != nil {
		return
	}

	history := conv.ChatHistory()
	if len(history) < 2 {
		return
	}

	var transcript strings.Builder
	for _, m := range history {
		label := "User"
		if m.Role == model.RoleAssistant {
			label = "Assistant"
		}
		fmt.Fprintf(&transcript, "%s: %s\n", label, m.Content)
	}

	req := ppq.ChatRequest{
		Model: c.cfg.SummaryModel,
		Messages: []ppq.ChatMessage{{
			Role:    string(model.RoleUser),
			Content: summaryPrompt + "\n\n" + transcript.String(),
		}},
		Temperature: c.cfg.SummaryTemperature,
	}

	resp, err := c.chatClient().Chat(ctx, req)
	if err != nil {
		log.Printf("summarization failed: %v", err)
		return
	}
	summary := strings.TrimSpace(resp.Content())
	if summary == "" {
		return
	}

	// Apply under the store lock. The conversation may have been deleted
	// or appended to while the request was in flight; a deleted one is
	// left alone, an appended one keeps its new messages.
	var title string
	err = c.store.UpdateFunc(convID, func(conv *model.Conversation) {
		conv.ApplySummary(summary)
		title = conv.DisplayTitle()
	})
	if err != nil {
		log.Printf("summary for conversation %s dropped: %v", convID, err)
		return
	}

	if c.ActiveConversationID() == convID {
		c.view.SetConversationTitle(title)
	}
	c.view.RenderConversationList(c.store.List())
}
