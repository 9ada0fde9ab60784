package services

import (
	"github.com/mudler/remindbot/pkg/config"
	"github.com/mudler/remindbot/services/connectors"
)

// Telegram builds the Telegram connector from the configuration: webhook
// mode when a public URL is configured, long polling otherwise.
func Telegram(cfg *config.Config, extra ...connectors.TelegramOption) (*connectors.Telegram, error) {
	opts := []connectors.TelegramOption{
		connectors.WithAdmins(cfg.TelegramAdmins...),
	}
	if cfg.WebhookURL != "" {
		opts = append(opts, connectors.WithWebhook(cfg.WebhookURL, cfg.WebhookSecret))
	}
	return connectors.NewTelegramConnector(cfg.TelegramToken, append(opts, extra...)...)
}
