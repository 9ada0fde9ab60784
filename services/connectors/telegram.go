package connectors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/mudler/remindbot/core/conversations"
	"github.com/mudler/remindbot/pkg/xstrings"
	"github.com/mudler/xlog"
)

const (
	telegramMaxMessageLength = 3000
	ReminderPrefix           = "⏰ Reminder: "

	// WebhookPath is where the HTTP server mounts the Telegram webhook.
	WebhookPath = "/webhook/telegram"
)

// Sender is the subset of the Telegram Bot API the connector talks to.
// *bot.Bot implements it.
type Sender interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
	EditMessageText(ctx context.Context, params *bot.EditMessageTextParams) (*models.Message, error)
	AnswerCallbackQuery(ctx context.Context, params *bot.AnswerCallbackQueryParams) (bool, error)
}

type Telegram struct {
	Token         string
	WebhookURL    string
	WebhookSecret string

	bot     *bot.Bot
	sender  Sender
	handler *conversations.Handler

	admins []string

	retries      uint64
	retryBackoff time.Duration
}

type TelegramOption func(*Telegram)

// WithWebhook switches the connector from long polling to webhook mode.
// baseURL is the public address the HTTP server is reachable at.
func WithWebhook(baseURL, secret string) TelegramOption {
	return func(t *Telegram) {
		t.WebhookURL = strings.TrimRight(baseURL, "/") + WebhookPath
		t.WebhookSecret = secret
	}
}

// WithAdmins restricts the bot to the given usernames.
func WithAdmins(admins ...string) TelegramOption {
	return func(t *Telegram) {
		for _, a := range admins {
			if a = strings.TrimPrefix(strings.TrimSpace(a), "@"); a != "" {
				t.admins = append(t.admins, a)
			}
		}
	}
}

// WithRetry sets how many times a failed reminder message is resent and
// the first wait between attempts. Waits double up to one minute.
func WithRetry(retries uint64, initial time.Duration) TelegramOption {
	return func(t *Telegram) {
		t.retries = retries
		t.retryBackoff = initial
	}
}

// WithSender replaces the Bot API client, for tests.
func WithSender(s Sender) TelegramOption {
	return func(t *Telegram) {
		t.sender = s
	}
}

func NewTelegramConnector(token string, opts ...TelegramOption) (*Telegram, error) {
	if token == "" {
		return nil, errors.New("token is required")
	}

	t := &Telegram{
		Token:        token,
		retries:      3,
		retryBackoff: 500 * time.Millisecond,
	}
	for _, o := range opts {
		o(t)
	}
	if t.sender != nil {
		return t, nil
	}

	botOpts := []bot.Option{
		bot.WithDefaultHandler(func(ctx context.Context, b *bot.Bot, update *models.Update) {
			go t.handleUpdate(ctx, update)
		}),
	}
	if t.WebhookSecret != "" {
		botOpts = append(botOpts, bot.WithWebhookSecretToken(t.WebhookSecret))
	}

	b, err := bot.New(token, botOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	t.bot = b
	t.sender = b
	return t, nil
}

// Notify implements scheduler.NotificationSink: the owner id is the chat id.
// Transient failures are retried with exponential backoff until ctx is done.
func (t *Telegram) Notify(ctx context.Context, ownerID int64, text string) error {
	messages := splitMessage(ReminderPrefix + text)
	for i, msg := range messages {
		params := &bot.SendMessageParams{
			ChatID: ownerID,
			Text:   msg,
		}

		exp := backoff.NewExponentialBackOff()
		exp.InitialInterval = t.retryBackoff
		exp.Multiplier = 2
		exp.MaxInterval = time.Minute
		exp.Reset()

		attempt := 0
		err := backoff.Retry(func() error {
			attempt++
			_, err := t.sender.SendMessage(ctx, params)
			if err == nil {
				return nil
			}
			if permanentSendError(err) {
				return backoff.Permanent(err)
			}
			xlog.Warn("Failed to send reminder, retrying", "chat", ownerID, "attempt", attempt, "error", err)
			return err
		}, backoff.WithContext(backoff.WithMaxRetries(exp, t.retries), ctx))
		if err != nil {
			return fmt.Errorf("failed to send reminder part %d: %w", i+1, err)
		}
	}
	return nil
}

// splitMessage breaks text on whitespace into Telegram sized parts and hard
// cuts any single word that is still too long.
func splitMessage(text string) []string {
	var parts []string
	for _, p := range xstrings.SplitParagraph(text, telegramMaxMessageLength) {
		parts = append(parts, xstrings.SplitRunes(p, telegramMaxMessageLength)...)
	}
	return parts
}

// permanentSendError reports errors resending cannot fix, such as a user
// that blocked the bot or a chat that no longer exists.
func permanentSendError(err error) bool {
	return errors.Is(err, bot.ErrorForbidden) ||
		errors.Is(err, bot.ErrorBadRequest) ||
		errors.Is(err, bot.ErrorUnauthorized) ||
		errors.Is(err, bot.ErrorNotFound)
}

// WebhookHandler returns the HTTP handler Telegram posts updates to, or nil
// when the connector polls.
func (t *Telegram) WebhookHandler() http.HandlerFunc {
	if t.bot == nil || t.WebhookURL == "" {
		return nil
	}
	return t.bot.WebhookHandler()
}

// Start serves updates until ctx is cancelled.
func (t *Telegram) Start(ctx context.Context, handler *conversations.Handler) error {
	t.handler = handler

	if t.bot == nil {
		<-ctx.Done()
		return nil
	}

	if t.WebhookURL != "" {
		if _, err := t.bot.SetWebhook(ctx, &bot.SetWebhookParams{
			URL:         t.WebhookURL,
			SecretToken: t.WebhookSecret,
		}); err != nil {
			return fmt.Errorf("failed to set telegram webhook: %w", err)
		}
		xlog.Info("Telegram connector started", "mode", "webhook", "url", t.WebhookURL)
		t.bot.StartWebhook(ctx)
		return nil
	}

	if _, err := t.bot.DeleteWebhook(ctx, &bot.DeleteWebhookParams{}); err != nil {
		xlog.Warn("Failed to delete telegram webhook", "error", err)
	}
	xlog.Info("Telegram connector started", "mode", "polling")
	t.bot.Start(ctx)
	return nil
}

func (t *Telegram) handleUpdate(ctx context.Context, update *models.Update) {
	if t.handler == nil {
		xlog.Warn("Update received before the connector was started")
		return
	}

	switch {
	case update.CallbackQuery != nil:
		t.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil && update.Message.Text != "":
		t.handleMessage(ctx, update.Message)
	}
}

func (t *Telegram) handleMessage(ctx context.Context, m *models.Message) {
	if !t.authorized(m.From) {
		return
	}

	chatID := m.Chat.ID
	xlog.Debug("New message", "chat", chatID, "text", m.Text)

	resp := t.handler.HandleMessage(chatID, m.Text)
	t.send(ctx, chatID, resp)
}

func (t *Telegram) handleCallback(ctx context.Context, q *models.CallbackQuery) {
	if _, err := t.sender.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{
		CallbackQueryID: q.ID,
	}); err != nil {
		xlog.Debug("Failed to answer callback query", "error", err)
	}

	if !t.authorized(&q.From) {
		return
	}

	chatID, messageID, ok := callbackOrigin(q)
	if !ok {
		xlog.Warn("Callback query without a chat", "data", q.Data)
		return
	}
	xlog.Debug("New callback", "chat", chatID, "data", q.Data)

	resp := t.handler.HandleCallback(chatID, q.Data)

	if messageID != 0 {
		_, err := t.sender.EditMessageText(ctx, &bot.EditMessageTextParams{
			ChatID:      chatID,
			MessageID:   messageID,
			Text:        resp.Text,
			ReplyMarkup: InlineKeyboard(resp.Buttons),
		})
		if err == nil {
			return
		}
		xlog.Debug("Failed to edit message, sending a new one", "chat", chatID, "error", err)
	}
	t.send(ctx, chatID, resp)
}

func (t *Telegram) send(ctx context.Context, chatID int64, resp conversations.Response) {
	_, err := t.sender.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:      chatID,
		Text:        resp.Text,
		ReplyMarkup: InlineKeyboard(resp.Buttons),
	})
	if err != nil {
		xlog.Error("Error sending message", "chat", chatID, "error", err)
	}
}

func (t *Telegram) authorized(u *models.User) bool {
	if len(t.admins) == 0 {
		return true
	}
	if u != nil && slices.Contains(t.admins, u.Username) {
		return true
	}
	username := ""
	if u != nil {
		username = u.Username
	}
	xlog.Info("Unauthorized user", "username", username)
	return false
}

// callbackOrigin returns the chat and message a button press came from.
// The message id is zero when the message is no longer accessible.
func callbackOrigin(q *models.CallbackQuery) (int64, int, bool) {
	switch {
	case q.Message.Message != nil:
		return q.Message.Message.Chat.ID, q.Message.Message.ID, true
	case q.Message.InaccessibleMessage != nil:
		return q.Message.InaccessibleMessage.Chat.ID, 0, true
	}
	return 0, 0, false
}

// InlineKeyboard converts handler buttons to a Telegram inline keyboard.
func InlineKeyboard(rows [][]conversations.Button) models.ReplyMarkup {
	if len(rows) == 0 {
		return nil
	}
	keyboard := make([][]models.InlineKeyboardButton, 0, len(rows))
	for _, row := range rows {
		buttons := make([]models.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			buttons = append(buttons, models.InlineKeyboardButton{Text: b.Text, CallbackData: b.Data})
		}
		keyboard = append(keyboard, buttons)
	}
	return &models.InlineKeyboardMarkup{InlineKeyboard: keyboard}
}
